package muxhandlers

import (
	"errors"
	"net/http"

	"github.com/vitalvas/relay/mux"
)

// ErrInvalidMaxSize is returned when RequestSizeLimitConfig.MaxBytes is not
// greater than zero.
var ErrInvalidMaxSize = errors.New("request size limit: max size must be greater than zero")

// RequestSizeLimitConfig configures the Request Size Limit middleware behaviour.
type RequestSizeLimitConfig struct {
	// MaxBytes is the maximum allowed request body size in bytes.
	// Must be greater than zero.
	MaxBytes int64
}

// RequestSizeLimitMiddleware returns a middleware that limits the size of
// incoming request bodies. Requests that declare a Content-Length above the
// limit are answered with 413 Request Entity Too Large (RFC 7231 Section
// 6.5.11) without reading the body. Other bodies are wrapped with
// http.MaxBytesReader so that the entries after it receive an
// *http.MaxBytesError when reading beyond the limit.
//
// It returns ErrInvalidMaxSize if MaxBytes is not greater than zero.
func RequestSizeLimitMiddleware(cfg RequestSizeLimitConfig) (mux.MiddlewareFunc, error) {
	if cfg.MaxBytes <= 0 {
		return nil, ErrInvalidMaxSize
	}

	maxBytes := cfg.MaxBytes

	return func(c *mux.Context, next mux.NextFunc) {
		req := c.Request()
		if req.ContentLength > maxBytes {
			sendStatus(c, http.StatusRequestEntityTooLarge)
			return
		}

		req.Body = http.MaxBytesReader(c.Writer(), req.Body, maxBytes)
		next()
	}, nil
}
