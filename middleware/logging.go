package middleware

import (
	"strings"
	"time"

	"github.com/Digital-Creators-Team/spin-rewards/auth"
	"github.com/Digital-Creators-Team/spin-rewards/logging"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// LoggingConfig holds logging middleware configuration
type LoggingConfig struct {
	// SkipPaths are never logged.
	SkipPaths []string
	// StreamPaths hold a connection open; they log at debug on close.
	StreamPaths []string
}

// Logging logs one line per operator request
func Logging(logger zerolog.Logger) gin.HandlerFunc {
	return LoggingWithConfig(logger, LoggingConfig{
		SkipPaths:   []string{"/health", "/metrics"},
		StreamPaths: []string{"/api/wheel/events", "/ws"},
	})
}

// LoggingWithConfig logs with custom skip and stream paths
func LoggingWithConfig(logger zerolog.Logger, config LoggingConfig) gin.HandlerFunc {
	skip := make(map[string]bool, len(config.SkipPaths))
	for _, p := range config.SkipPaths {
		skip[p] = true
	}
	stream := make(map[string]bool, len(config.StreamPaths))
	for _, p := range config.StreamPaths {
		stream[p] = true
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if skip[path] || strings.HasPrefix(path, "/swagger/") {
			c.Next()
			return
		}

		start := time.Now()
		reqLogger := logging.WithRequestID(logger, GetRequestID(c)).With().
			Str("method", c.Request.Method).
			Str("path", path).
			Str("client_ip", c.ClientIP()).
			Logger()

		c.Next()

		status := c.Writer.Status()
		var event *zerolog.Event
		switch {
		case status >= 500:
			event = reqLogger.Error()
		case status >= 400:
			event = reqLogger.Warn()
		case stream[path]:
			event = reqLogger.Debug()
		default:
			event = reqLogger.Info()
		}

		// Auth runs inside the route group, so the operator is known only now.
		if id, ok := auth.GetOperatorID(c); ok {
			event = event.Str("operator_id", id)
		}
		for _, e := range c.Errors {
			event = event.AnErr("handler_error", e.Err)
		}
		event.
			Int("status", status).
			Dur("duration", time.Since(start)).
			Int("response_size", c.Writer.Size()).
			Msg("Request completed")
	}
}
