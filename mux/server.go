package mux

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Server binds a handler to a TCP listener.
//
//	srv := &mux.Server{Handler: r, Logger: logger}
//	go srv.Listen("0.0.0.0", 8080, nil)
//	...
//	srv.Shutdown(ctx)
type Server struct {
	// Handler serves every request. Usually a *Router.
	Handler http.Handler

	// Logger receives lifecycle events. If nil, slog.Default() is used.
	Logger *slog.Logger

	// H2C enables HTTP/2 over cleartext TCP (RFC 7540 Section 3.2)
	// alongside HTTP/1.1 on plain listeners.
	H2C bool

	// TLSConfig is used by ListenTLS. Certificates loaded from files are
	// appended to it.
	TLSConfig *tls.Config

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration

	mu  sync.Mutex
	srv *http.Server
}

// Listen binds host:port and serves until Shutdown. onReady, when not nil,
// is called with the bound address once the listener accepts connections.
// A port of zero picks a free port. Listen returns nil after Shutdown.
func (s *Server) Listen(host string, port int, onReady func(addr net.Addr)) error {
	return s.serve(host, port, "", "", onReady)
}

// ListenTLS is Listen over TLS with the certificate and key read from the
// given PEM files. HTTP/2 is negotiated with ALPN.
func (s *Server) ListenTLS(host string, port int, certFile, keyFile string, onReady func(addr net.Addr)) error {
	if certFile == "" || keyFile == "" {
		return errors.New("mux: tls certificate and key files are required")
	}
	return s.serve(host, port, certFile, keyFile, onReady)
}

func (s *Server) serve(host string, port int, certFile, keyFile string, onReady func(net.Addr)) error {
	if r, ok := s.Handler.(*Router); ok {
		if err := r.Compile(); err != nil {
			return err
		}
	}

	handler := s.Handler
	tlsMode := certFile != ""
	if s.H2C && !tlsMode {
		handler = h2c.NewHandler(handler, &http2.Server{})
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: s.ReadHeaderTimeout,
		ReadTimeout:       s.ReadTimeout,
		WriteTimeout:      s.WriteTimeout,
		IdleTimeout:       s.IdleTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger().Handler(), slog.LevelWarn),
	}
	if s.TLSConfig != nil {
		srv.TLSConfig = s.TLSConfig.Clone()
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("mux: listen: %w", err)
	}

	s.mu.Lock()
	s.srv = srv
	s.mu.Unlock()

	log := s.logger().With(slog.String("addr", ln.Addr().String()), slog.Bool("tls", tlsMode))
	log.Info("listening")

	if onReady != nil {
		onReady(ln.Addr())
	}

	if tlsMode {
		err = srv.ServeTLS(ln, certFile, keyFile)
	} else {
		err = srv.Serve(ln)
	}

	if errors.Is(err, http.ErrServerClosed) {
		log.Info("stopped")
		return nil
	}

	return err
}

// Shutdown stops accepting connections and waits for active requests to
// finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	s.logger().Info("shutting down")
	return srv.Shutdown(ctx)
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Listen serves r on host:port with default server settings. See
// Server.Listen.
func (r *Router) Listen(host string, port int, onReady func(addr net.Addr)) error {
	return (&Server{Handler: r}).Listen(host, port, onReady)
}

// ListenTLS serves r over TLS on host:port. See Server.ListenTLS.
func (r *Router) ListenTLS(host string, port int, certFile, keyFile string, onReady func(addr net.Addr)) error {
	return (&Server{Handler: r}).ListenTLS(host, port, certFile, keyFile, onReady)
}
