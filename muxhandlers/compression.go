package muxhandlers

import (
	"github.com/vitalvas/relay/mux"
)

// ErrInvalidCompressionLevel is returned when CompressionConfig.Level is
// outside the valid compression level range.
var ErrInvalidCompressionLevel = mux.ErrInvalidCompressionLevel

// CompressionConfig configures the Compression middleware behaviour.
type CompressionConfig struct {
	// Level is the compression level for both gzip and deflate. When zero,
	// flate.DefaultCompression is used. Must be in
	// [flate.HuffmanOnly, flate.BestCompression] or zero.
	Level int

	// MinLength is the minimum response body size in bytes before compression
	// is applied. When zero, all responses are compressed.
	MinLength int
}

// CompressionMiddleware returns a middleware that compresses response bodies
// using gzip or deflate when the client advertises support via the
// Accept-Encoding header (RFC 7231 Section 5.3.4). Gzip is preferred over
// deflate when the client accepts both with equal quality.
//
// The negotiated codec is installed on the context, so it applies to bodies
// sent through Send, SendString, SendJSON, SendXML, Render, SendFile and
// Stream by the entries after this middleware. Bytes written straight to
// Context.Writer are not encoded.
//
// Compression is skipped when:
//   - The request does not accept "gzip" or "deflate"
//   - The response already has a Content-Encoding header
//   - The response Content-Type is an inherently compressed format
//     (image/*, video/*, audio/*, or common archive types)
//   - A body passed to Send is shorter than MinLength
//
// It returns ErrInvalidCompressionLevel if Level is outside the valid range.
func CompressionMiddleware(cfg CompressionConfig) (mux.MiddlewareFunc, error) {
	gz, err := mux.GzipCodec(cfg.Level)
	if err != nil {
		return nil, err
	}

	deflate, err := mux.DeflateCodec(cfg.Level)
	if err != nil {
		return nil, err
	}

	codecs := []mux.Codec{gz, deflate}
	minLength := cfg.MinLength

	return func(c *mux.Context, next mux.NextFunc) {
		if codec := mux.NegotiateCodec(c.RequestHeader("Accept-Encoding"), codecs); codec != nil {
			c.UseCodec(codec, minLength)
		}

		next()
	}, nil
}
