// Package muxhandlers provides route table entries built on the mux
// continuation protocol: a static file responder and middleware.
//
// Every middleware is created from a config struct. Constructors that can
// reject their configuration return (mux.MiddlewareFunc, error). Register
// middleware before the handlers they should wrap: entries run in
// registration order.
//
//	r := mux.NewRouter()
//	r.Use(muxhandlers.RecoveryMiddleware(muxhandlers.RecoveryConfig{}))
//	r.Use(muxhandlers.RequestIDMiddleware(muxhandlers.RequestIDConfig{}))
//	r.Use(muxhandlers.LoggerMiddleware(muxhandlers.LoggerConfig{Logger: logger}))
//	r.Get("/users/:id", getUser)
//
// # Static Files
//
// StaticFilesHandler returns a router that serves a mux.FileSystem (local
// directory, io/fs, S3) for GET and HEAD requests. Mount it at the prefix
// the files live under, or at "/*". Empty paths and trailing slashes map to
// index.html, "<path>.html" is preferred over "<path>", missing files answer
// 404 with 404.html when present, and Range requests get a single window of
// at most MaxRangeBytes (RFC 7233).
//
//	static, err := muxhandlers.StaticFilesHandler(muxhandlers.StaticFilesConfig{
//	    FS: os.DirFS("public"),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	r.Mount("/*", static)
//
// # Observability
//
// LoggerMiddleware writes one log/slog record per request, MetricsMiddleware
// records Prometheus request counters and latency histograms labelled by
// route template, and TracingMiddleware starts an OpenTelemetry server span
// continuing the incoming W3C trace. All three record after the response
// has been sent, so not-found replies are included.
//
// # CORS Middleware
//
// CORSMiddleware implements the CORS protocol per the Fetch Standard. It
// validates the Origin header (RFC 6454) and answers preflight OPTIONS
// requests itself, listing the methods the router serves for the path.
//
//	mw, err := muxhandlers.CORSMiddleware(r, muxhandlers.CORSConfig{
//	    AllowedOrigins:   []string{"https://example.com"},
//	    AllowCredentials: true,
//	})
//
// # Basic Auth Middleware
//
// BasicAuthMiddleware implements HTTP Basic Authentication per RFC 7617.
// Credentials can be validated via a callback or a static map compared in
// constant time. The authenticated user is available through BasicAuthUser.
//
// # Proxy Headers Middleware
//
// ProxyHeadersMiddleware rewrites RemoteAddr, URL.Scheme and Host from
// X-Forwarded-* headers (and optionally RFC 7239 Forwarded) when the peer is
// a trusted proxy. DefaultTrustedProxies covers loopback and private ranges.
package muxhandlers
