package muxhandlers

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/vitalvas/relay/mux"
)

// DefaultTracerName is the instrumentation name used when
// TracingConfig.TracerName is empty.
const DefaultTracerName = "github.com/vitalvas/relay/muxhandlers"

// TracingConfig configures the OpenTelemetry tracing middleware.
type TracingConfig struct {
	// TracerProvider creates the tracer. Defaults to the global provider.
	TracerProvider trace.TracerProvider

	// Propagator extracts the parent span context from request headers.
	// Defaults to the global text map propagator.
	Propagator propagation.TextMapPropagator

	// TracerName is the instrumentation name. Defaults to DefaultTracerName.
	TracerName string

	// Filter, when set, skips tracing for requests it returns false for.
	Filter func(c *mux.Context) bool
}

// TracingMiddleware returns a middleware that starts a server span for every
// request, continues the trace found in the request headers (W3C Trace
// Context by default) and stores the span in the request context for the
// entries after it. The span is named "<method> <route>" once the serving
// handler is known and ends after the response; 5xx statuses mark it as
// an error.
func TracingMiddleware(cfg TracingConfig) mux.MiddlewareFunc {
	provider := cfg.TracerProvider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}

	propagator := cfg.Propagator
	if propagator == nil {
		propagator = otel.GetTextMapPropagator()
	}

	name := cfg.TracerName
	if name == "" {
		name = DefaultTracerName
	}

	tracer := provider.Tracer(name)
	filter := cfg.Filter

	return func(c *mux.Context, next mux.NextFunc) {
		if filter != nil && !filter(c) {
			next()
			return
		}

		r := c.Request()
		parent := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		ctx, span := tracer.Start(parent, c.Method(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", c.Method()),
				attribute.String("url.path", c.Path()),
				attribute.String("server.address", r.Host),
				attribute.String("client.address", r.RemoteAddr),
			),
		)

		c.SetContext(ctx)

		c.OnDone(func(c *mux.Context) {
			status := c.ResponseStatus()

			if route := c.Route(); route != "" {
				span.SetName(c.Method() + " " + route)
				span.SetAttributes(attribute.String("http.route", route))
			}

			span.SetAttributes(
				attribute.Int("http.response.status_code", status),
				attribute.Int64("http.response.body.size", c.BytesWritten()),
			)

			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}

			span.End()
		})

		next()
	}
}
