package observability

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// StatusSource reports live connection facts for /state.
type StatusSource interface {
	Enabled() bool
	Connected() bool
	State() string
}

// NewRouter serves /healthz, /state, and /metrics for a host application.
func NewRouter(logger zerolog.Logger, src StatusSource) *gin.Engine {
	RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), accessLog(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/state", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"enabled":   src.Enabled(),
			"connected": src.Connected(),
			"state":     src.State(),
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// accessLog logs /metrics scrapes at trace and failed requests at warn or
// error.
func accessLog(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		var ev *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			ev = logger.Error()
		case status >= http.StatusBadRequest:
			ev = logger.Warn()
		case route == "/metrics":
			ev = logger.Trace()
		default:
			ev = logger.Debug()
		}
		ev.Str("method", c.Request.Method).
			Str("route", route).
			Int("status", status).
			Dur("elapsed", time.Since(start)).
			Msg("diagnostics request")
	}
}
