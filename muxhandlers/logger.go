package muxhandlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/vitalvas/relay/mux"
)

// LoggerConfig configures the access log middleware.
type LoggerConfig struct {
	// Logger receives one record per request. Defaults to slog.Default().
	Logger *slog.Logger

	// Message is the record message. Defaults to "request".
	Message string

	// Skip, when set, suppresses the record for requests it returns true
	// for, such as health checks.
	Skip func(c *mux.Context) bool

	// Level returns the record level for a response status. Defaults to
	// Info for statuses below 500 and Error otherwise.
	Level func(status int) slog.Level
}

// LoggerMiddleware returns a middleware that writes an access log record
// once the response has been sent, including not-found replies produced
// after the route walk. Attributes: method, path, route, status, bytes,
// duration, remote and request_id (when RequestIDMiddleware ran before it).
func LoggerMiddleware(cfg LoggerConfig) mux.MiddlewareFunc {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	message := cfg.Message
	if message == "" {
		message = "request"
	}

	level := cfg.Level
	if level == nil {
		level = defaultLogLevel
	}

	skip := cfg.Skip

	return func(c *mux.Context, next mux.NextFunc) {
		if skip != nil && skip(c) {
			next()
			return
		}

		start := time.Now()

		c.OnDone(func(c *mux.Context) {
			status := c.ResponseStatus()

			attrs := []slog.Attr{
				slog.String("method", c.Method()),
				slog.String("path", c.Path()),
				slog.Int("status", status),
				slog.Int64("bytes", c.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote", c.Request().RemoteAddr),
			}

			if route := c.Route(); route != "" {
				attrs = append(attrs, slog.String("route", route))
			}

			if id := RequestID(c); id != "" {
				attrs = append(attrs, slog.String("request_id", id))
			}

			logger.LogAttrs(c.Context(), level(status), message, attrs...)
		})

		next()
	}
}

func defaultLogLevel(status int) slog.Level {
	if status >= http.StatusInternalServerError {
		return slog.LevelError
	}
	return slog.LevelInfo
}
