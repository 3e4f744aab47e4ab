package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vitalvas/relay/internal/config"
	"github.com/vitalvas/relay/mux"
	"github.com/vitalvas/relay/muxhandlers"
	"github.com/vitalvas/relay/muxs3"
)

// newRouter builds the public route table from cfg: the middleware chain
// followed by the static file mount.
func newRouter(cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*mux.Router, error) {
	r := mux.NewRouter()
	mw := cfg.Middleware

	r.Use(muxhandlers.RecoveryMiddleware(muxhandlers.RecoveryConfig{
		LogFunc: func(req *http.Request, err any) {
			logger.Error("panic recovered",
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.Any("panic", err),
			)
		},
	}))

	if mw.RealIP {
		r.Use(mux.Adapt(middleware.RealIP))
	}

	if mw.ProxyHeaders != nil {
		proxy, err := muxhandlers.ProxyHeadersMiddleware(muxhandlers.ProxyHeadersConfig{
			TrustedProxies:  mw.ProxyHeaders.TrustedProxies,
			EnableForwarded: mw.ProxyHeaders.EnableForwarded,
		})
		if err != nil {
			return nil, err
		}
		r.Use(proxy)
	}

	if mw.RequestID {
		r.Use(muxhandlers.RequestIDMiddleware(muxhandlers.RequestIDConfig{
			GenerateFunc:  muxhandlers.GenerateUUIDv7,
			TrustIncoming: true,
		}))
	}

	if mw.AccessLog {
		r.Use(muxhandlers.LoggerMiddleware(muxhandlers.LoggerConfig{Logger: logger}))
	}

	if reg != nil {
		metrics, err := muxhandlers.MetricsMiddleware(muxhandlers.MetricsConfig{Registerer: reg})
		if err != nil {
			return nil, err
		}
		r.Use(metrics)
	}

	if mw.Tracing {
		r.Use(muxhandlers.TracingMiddleware(muxhandlers.TracingConfig{}))
	}

	if mw.SecurityHeaders {
		headers, err := muxhandlers.SecurityHeadersMiddleware(muxhandlers.SecurityHeadersConfig{})
		if err != nil {
			return nil, err
		}
		r.Use(headers)
	}

	if mw.CORS != nil {
		cors, err := muxhandlers.CORSMiddleware(r, muxhandlers.CORSConfig{
			AllowedOrigins:   mw.CORS.AllowedOrigins,
			AllowCredentials: mw.CORS.AllowCredentials,
		})
		if err != nil {
			return nil, err
		}
		r.Use(cors)
	}

	if cfg.Server.MaxBodyBytes > 0 {
		limit, err := muxhandlers.RequestSizeLimitMiddleware(muxhandlers.RequestSizeLimitConfig{MaxBytes: cfg.Server.MaxBodyBytes})
		if err != nil {
			return nil, err
		}
		r.Use(limit)
	}

	if cfg.Server.RequestTimeout > 0 {
		timeout, err := muxhandlers.TimeoutMiddleware(muxhandlers.TimeoutConfig{Duration: cfg.Server.RequestTimeout})
		if err != nil {
			return nil, err
		}
		r.Use(timeout)
	}

	if mw.Compression {
		compress, err := muxhandlers.CompressionMiddleware(muxhandlers.CompressionConfig{MinLength: 256})
		if err != nil {
			return nil, err
		}
		r.Use(compress)
	}

	if cfg.Static.Enabled() {
		static, err := newStatic(cfg.Static)
		if err != nil {
			return nil, err
		}
		r.Mount(cfg.Static.Mount, static)
	}

	return r, r.Err()
}

func newStatic(cfg config.StaticConfig) (*mux.Router, error) {
	var files mux.FileSystem

	switch {
	case cfg.S3 != nil:
		client := muxs3.NewClient(muxs3.ClientOptions{
			Region:       cfg.S3.Region,
			Endpoint:     cfg.S3.Endpoint,
			UsePathStyle: cfg.S3.PathStyle,
		})

		bucket, err := muxs3.New(client, cfg.S3.Bucket, cfg.S3.Prefix)
		if err != nil {
			return nil, err
		}
		files = bucket
	default:
		files = mux.Dir(cfg.Dir)
	}

	return muxhandlers.StaticFilesHandler(muxhandlers.StaticFilesConfig{
		Files:         files,
		CacheControl:  cfg.CacheControl,
		MaxRangeBytes: cfg.MaxRangeBytes,
		SPAFallback:   cfg.SPAFallback,
	})
}
