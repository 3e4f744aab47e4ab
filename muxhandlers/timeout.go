package muxhandlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/vitalvas/relay/mux"
)

// ErrInvalidTimeout is returned when TimeoutConfig.Duration is not greater
// than zero.
var ErrInvalidTimeout = errors.New("timeout: duration must be greater than zero")

// defaultTimeoutMessage matches the body sent by http.TimeoutHandler.
const defaultTimeoutMessage = "<html><head><title>Timeout</title></head><body><h1>Timeout</h1></body></html>"

// TimeoutConfig configures the Timeout middleware behaviour.
type TimeoutConfig struct {
	// Duration is the maximum time allowed for the entries after the
	// middleware to complete. Must be greater than zero.
	Duration time.Duration

	// Message is the response body returned when the deadline passes.
	// When empty, the body of http.TimeoutHandler is used.
	Message string
}

// TimeoutMiddleware returns a middleware that bounds the rest of the chain
// with a deadline on the request context. Once the deadline passes no
// further entries are dispatched, and if the response is still open when
// next returns the client receives 503 Service Unavailable (RFC 7231
// Section 6.6.4).
//
// Handlers run on the request goroutine, so the deadline is cooperative:
// long-running handlers should watch c.Context().Done().
//
// It returns ErrInvalidTimeout if Duration is not greater than zero.
func TimeoutMiddleware(cfg TimeoutConfig) (mux.MiddlewareFunc, error) {
	if cfg.Duration <= 0 {
		return nil, ErrInvalidTimeout
	}

	duration := cfg.Duration

	message := cfg.Message
	if message == "" {
		message = defaultTimeoutMessage
	}

	return func(c *mux.Context, next mux.NextFunc) {
		parent := c.Context()

		ctx, cancel := context.WithTimeout(parent, duration)
		defer cancel()

		c.SetContext(ctx)
		next()
		c.SetContext(parent)

		if !errors.Is(ctx.Err(), context.DeadlineExceeded) || c.Closed() {
			return
		}

		if c.ResponseHeader().Get("Content-Type") == "" {
			c.Header("Content-Type", "text/html; charset=utf-8")
		}

		_ = c.Status(http.StatusServiceUnavailable).SendString(message)
	}, nil
}
