package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

const replayHeader = "X-Idempotent-Replay"

// Logger writes one line per request once the handler chain has run, so the
// correlation and user ids set further down the chain are included. Server
// errors log at error level, client errors at warn, health checks at debug.
func Logger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"route", c.FullPath(),
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"bytes", c.Writer.Size(),
		}
		if id := GetCorrelationID(c); id != "" {
			attrs = append(attrs, "correlation_id", id)
		}
		if userID := GetUserID(c); userID != "" {
			attrs = append(attrs, "user_id", userID)
		}
		if c.Writer.Header().Get(replayHeader) == "true" {
			attrs = append(attrs, "idempotent_replay", true)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			logger.Error("HTTP request", attrs...)
		case status >= 400:
			logger.Warn("HTTP request", attrs...)
		case c.FullPath() == "/health":
			logger.Debug("HTTP request", attrs...)
		default:
			logger.Info("HTTP request", attrs...)
		}
	}
}
