// Package middleware reúne os middlewares gin compartilhados pelo site e pela API.
package middleware

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UsernameKey é a chave do contexto gin com o usuário autenticado.
const UsernameKey = "username"

// mediumRequest separa requisições rápidas das médias.
const mediumRequest = 500 * time.Millisecond

// RequestTimeConfig controla o registro do tempo de processamento.
type RequestTimeConfig struct {
	// Log desliga só os logs; os cabeçalhos são sempre enviados.
	Log           bool
	SlowThreshold time.Duration
}

// timingWriter grava os cabeçalhos de tempo antes do primeiro byte da resposta.
type timingWriter struct {
	gin.ResponseWriter
	start   time.Time
	now     func() time.Time
	stamped bool
}

func (w *timingWriter) stamp() {
	if w.stamped || w.Written() {
		return
	}
	w.stamped = true
	end := w.now()
	w.Header().Set("X-Processing-Time", formatMillis(end.Sub(w.start)))
	w.Header().Set("X-Processing-Timestamp", strconv.FormatInt(end.Unix(), 10))
}

func (w *timingWriter) WriteHeaderNow() {
	w.stamp()
	w.ResponseWriter.WriteHeaderNow()
}

func (w *timingWriter) Write(data []byte) (int, error) {
	w.stamp()
	return w.ResponseWriter.Write(data)
}

func (w *timingWriter) WriteString(s string) (int, error) {
	w.stamp()
	return w.ResponseWriter.WriteString(s)
}

func formatMillis(d time.Duration) string {
	return fmt.Sprintf("%.2fms", float64(d)/float64(time.Millisecond))
}

// ClientIP devolve o primeiro endereço de X-Forwarded-For ou o endereço remoto.
func ClientIP(c *gin.Context) string {
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil || host == "" {
		return "Unknown"
	}
	return host
}

func username(c *gin.Context) string {
	if name := c.GetString(UsernameKey); name != "" {
		return name
	}
	return "Anonymous"
}

// RequestTime mede cada requisição, envia X-Processing-Time e registra as lentas.
func RequestTime(log *zap.Logger, cfg RequestTimeConfig) gin.HandlerFunc {
	return requestTime(log, cfg, time.Now)
}

func requestTime(log *zap.Logger, cfg RequestTimeConfig, now func() time.Time) gin.HandlerFunc {
	threshold := cfg.SlowThreshold
	if threshold <= 0 {
		threshold = time.Second
	}
	return func(c *gin.Context) {
		start := now()
		tw := &timingWriter{ResponseWriter: c.Writer, start: start, now: now}
		c.Writer = tw

		defer func() {
			if rec := recover(); rec != nil {
				log.Error("EXCEPTION",
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.String("time", formatMillis(now().Sub(start))),
					zap.Any("panic", rec),
				)
				panic(rec)
			}
		}()

		c.Next()
		tw.stamp()

		elapsed := now().Sub(start)
		if !cfg.Log {
			return
		}

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("time", formatMillis(elapsed)),
			zap.String("user", username(c)),
			zap.String("ip", ClientIP(c)),
			zap.Int("status", c.Writer.Status()),
		}
		if q := c.Request.URL.RawQuery; q != "" {
			fields = append(fields, zap.String("query", q))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case elapsed > threshold:
			log.Warn("SLOW REQUEST", fields...)
			log.Warn("SLOW REQUEST ALERT",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.String("time", formatMillis(elapsed)),
				zap.Int64("threshold_ms", threshold.Milliseconds()),
			)
		case elapsed > mediumRequest:
			log.Info("MEDIUM REQUEST", fields...)
		default:
			log.Debug("FAST REQUEST", fields...)
		}
	}
}
