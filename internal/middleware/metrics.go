package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics guarda os coletores HTTP registrados em um registry próprio.
type Metrics struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	slowRequests    *prometheus.CounterVec
	slowThreshold   time.Duration
}

// NewMetrics cria o registry com os coletores de processo, do Go e de HTTP.
func NewMetrics(slowThreshold time.Duration) *Metrics {
	if slowThreshold <= 0 {
		slowThreshold = time.Second
	}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total de requisições HTTP.",
			},
			[]string{"path", "method", "code"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Tempo de resposta das requisições HTTP em segundos.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),
		slowRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_slow_requests_total",
				Help: "Requisições acima do limite de requisição lenta.",
			},
			[]string{"path", "method"},
		),
		slowThreshold: slowThreshold,
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestsTotal,
		m.requestDuration,
		m.slowRequests,
	)
	return m
}

// Registry permite registrar coletores adicionais.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Middleware conta as requisições pela rota registrada no gin.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		elapsed := time.Since(start)

		m.requestsTotal.WithLabelValues(path, method, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(path, method).Observe(elapsed.Seconds())
		if elapsed > m.slowThreshold {
			m.slowRequests.WithLabelValues(path, method).Inc()
		}
	}
}

// Handler expõe o registry no formato do Prometheus.
func (m *Metrics) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
