package muxhandlers

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vitalvas/relay/mux"
)

// unmatchedRoute labels requests that no handler entry served.
const unmatchedRoute = "unmatched"

// MetricsConfig configures the Prometheus metrics middleware.
type MetricsConfig struct {
	// Namespace is the metrics namespace. Defaults to "relay".
	Namespace string

	// Subsystem is the metrics subsystem. Defaults to "http".
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the request duration histogram buckets.
	// Defaults to prometheus.DefBuckets.
	Buckets []float64

	// Registerer receives the collectors. Defaults to
	// prometheus.DefaultRegisterer. Collectors already registered under
	// the same names are reused, so several routers can share them.
	Registerer prometheus.Registerer
}

type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	size     *prometheus.CounterVec
	inFlight prometheus.Gauge
}

// MetricsMiddleware returns a middleware that records Prometheus metrics
// for every request reaching it:
//
//   - <ns>_<sub>_requests_total{method, route, status}
//   - <ns>_<sub>_request_duration_seconds{method, route}
//   - <ns>_<sub>_response_size_bytes_total{method, route}
//   - <ns>_<sub>_requests_in_flight
//
// The route label is the template of the handler entry that served the
// request, or "unmatched", which keeps label cardinality bounded.
func MetricsMiddleware(cfg MetricsConfig) (mux.MiddlewareFunc, error) {
	m, err := newHTTPMetrics(cfg)
	if err != nil {
		return nil, err
	}

	return func(c *mux.Context, next mux.NextFunc) {
		start := time.Now()
		m.inFlight.Inc()

		c.OnDone(func(c *mux.Context) {
			m.inFlight.Dec()

			route := c.Route()
			if route == "" {
				route = unmatchedRoute
			}

			method := c.Method()
			status := strconv.Itoa(c.ResponseStatus())

			m.requests.WithLabelValues(method, route, status).Inc()
			m.duration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			m.size.WithLabelValues(method, route).Add(float64(c.BytesWritten()))
		})

		next()
	}, nil
}

func newHTTPMetrics(cfg MetricsConfig) (*httpMetrics, error) {
	if cfg.Namespace == "" {
		cfg.Namespace = "relay"
	}

	if cfg.Subsystem == "" {
		cfg.Subsystem = "http"
	}

	if cfg.Buckets == nil {
		cfg.Buckets = prometheus.DefBuckets
	}

	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.DefaultRegisterer
	}

	m := &httpMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "requests_total",
			Help:        "Total number of HTTP requests answered.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"method", "route", "status"}),

		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "request_duration_seconds",
			Help:        "HTTP request duration in seconds.",
			ConstLabels: cfg.ConstLabels,
			Buckets:     cfg.Buckets,
		}, []string{"method", "route"}),

		size: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "response_size_bytes_total",
			Help:        "Total number of response body bytes written.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"method", "route"}),

		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "requests_in_flight",
			Help:        "Number of HTTP requests being served.",
			ConstLabels: cfg.ConstLabels,
		}),
	}

	var err error
	if m.requests, err = register(cfg.Registerer, m.requests); err != nil {
		return nil, err
	}
	if m.duration, err = register(cfg.Registerer, m.duration); err != nil {
		return nil, err
	}
	if m.size, err = register(cfg.Registerer, m.size); err != nil {
		return nil, err
	}
	if m.inFlight, err = register(cfg.Registerer, m.inFlight); err != nil {
		return nil, err
	}

	return m, nil
}

// register adds c to reg, or returns the collector already registered
// with the same descriptor.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}

	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing, nil
		}
	}

	var zero T
	return zero, err
}
