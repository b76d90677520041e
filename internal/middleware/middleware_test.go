package middleware

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// fakeClock avança um passo fixo a cada leitura.
func fakeClock(step time.Duration) func() time.Time {
	t := time.Unix(1718440200, 0)
	return func() time.Time {
		t = t.Add(step)
		return t
	}
}

func newRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw)
	r.GET("/clients/", func(c *gin.Context) {
		c.Set(UsernameKey, "maria")
		c.String(http.StatusOK, "ok")
	})
	r.GET("/api/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"total": 1})
	})
	return r
}

func TestRequestTimeSetsHeaders(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := newRouter(requestTime(zap.New(core), RequestTimeConfig{Log: true, SlowThreshold: time.Second}, fakeClock(10*time.Millisecond)))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Regexp(t, regexp.MustCompile(`^\d+\.\d{2}ms$`), w.Header().Get("X-Processing-Time"))
	assert.NotEmpty(t, w.Header().Get("X-Processing-Timestamp"))

	entries := logs.FilterMessage("FAST REQUEST").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Anonymous", entries[0].ContextMap()["user"])
}

func TestRequestTimeSlowRequest(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := newRouter(requestTime(zap.New(core), RequestTimeConfig{Log: true, SlowThreshold: time.Second}, fakeClock(800*time.Millisecond)))

	req := httptest.NewRequest(http.MethodGet, "/clients/?search=ana", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	slow := logs.FilterMessage("SLOW REQUEST").All()
	require.Len(t, slow, 1)
	ctx := slow[0].ContextMap()
	assert.Equal(t, "maria", ctx["user"])
	assert.Equal(t, "203.0.113.9", ctx["ip"])
	assert.Equal(t, "search=ana", ctx["query"])
	assert.Equal(t, zapcore.WarnLevel, slow[0].Level)
	assert.Equal(t, 1, logs.FilterMessage("SLOW REQUEST ALERT").Len())
}

func TestRequestTimeMediumRequest(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := newRouter(requestTime(zap.New(core), RequestTimeConfig{Log: true, SlowThreshold: 5 * time.Second}, fakeClock(300*time.Millisecond)))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/clients/", nil))
	assert.Equal(t, 1, logs.FilterMessage("MEDIUM REQUEST").Len())
	assert.Zero(t, logs.FilterMessage("SLOW REQUEST").Len())
}

func TestRequestTimeWithoutLogs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := newRouter(RequestTime(zap.New(core), RequestTimeConfig{}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/clients/", nil))
	assert.NotEmpty(t, w.Header().Get("X-Processing-Time"))
	assert.Zero(t, logs.Len())
}

func TestClientIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", ClientIP(c))

	c.Request.Header.Set("X-Forwarded-For", " 198.51.100.7 ")
	assert.Equal(t, "198.51.100.7", ClientIP(c))
}

func TestMetricsEndpoint(t *testing.T) {
	m := NewMetrics(time.Second)
	r := newRouter(m.Middleware())
	r.GET("/metrics", m.Handler())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nao-existe", nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.True(t, strings.Contains(body, `http_requests_total{code="200",method="GET",path="/api/stats"} 1`), body)
	assert.Contains(t, body, `path="unmatched"`)
	assert.Contains(t, body, "http_request_duration_seconds_bucket")
}
