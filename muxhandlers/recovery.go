package muxhandlers

import (
	"errors"
	"net/http"

	"github.com/vitalvas/relay/mux"
)

// RecoveryConfig configures the Recovery middleware behaviour.
type RecoveryConfig struct {
	// LogFunc is an optional callback invoked with the request and the
	// recovered value when a panic occurs. When nil, no logging is performed.
	LogFunc func(r *http.Request, err any)
}

// RecoveryMiddleware returns a middleware that recovers from panics in the
// route entries after it. When a panic occurs and the response is still
// open it returns 500 Internal Server Error to the client, and it optionally
// invokes LogFunc. http.ErrAbortHandler is re-panicked so that net/http
// aborts the connection.
func RecoveryMiddleware(cfg RecoveryConfig) mux.MiddlewareFunc {
	return func(c *mux.Context, next mux.NextFunc) {
		defer func() {
			err := recover()
			if err == nil {
				return
			}

			if e, ok := err.(error); ok && errors.Is(e, http.ErrAbortHandler) {
				panic(err)
			}

			if cfg.LogFunc != nil {
				cfg.LogFunc(c.Request(), err)
			}

			if !c.Closed() {
				sendStatus(c, http.StatusInternalServerError)
			}
		}()

		next()
	}
}
