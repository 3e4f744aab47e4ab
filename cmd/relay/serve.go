package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/vitalvas/relay/internal/config"
	"github.com/vitalvas/relay/mux"
)

func serveCmd() *cobra.Command {
	var (
		host string
		port int
		dir  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server and, when admin.address is set, the admin
listener with /metrics, /healthz and /readyz.

Examples:
  relay serve --dir ./public
  relay serve -c relay.yaml --port 9000`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("dir") {
				cfg.Static.Dir = dir
				cfg.Static.S3 = nil
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := cfg.Log.NewLogger(os.Stderr)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg, logger, nil)
		},
	}

	cmd.Flags().StringVarP(&host, "host", "H", "", "address to bind (default from config)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (default from config)")
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "serve static files from this directory")

	return cmd
}

// runServe serves until ctx is done, then shuts both listeners down within
// the configured shutdown timeout. onReady, when set, receives the bound
// public address.
func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger, onReady func(net.Addr)) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	router, err := newRouter(cfg, logger, reg)
	if err != nil {
		return err
	}

	var ready atomic.Bool

	srv := &mux.Server{
		Handler:      router,
		Logger:       logger,
		H2C:          cfg.Server.H2C,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 2)

	var admin *http.Server
	if cfg.Admin.Address != "" {
		admin = &http.Server{
			Addr:              cfg.Admin.Address,
			Handler:           newAdminHandler(cfg.Admin, reg, &ready),
			ReadHeaderTimeout: cfg.Server.ReadTimeout,
		}

		go func() {
			logger.Info("admin listening", slog.String("addr", cfg.Admin.Address))
			if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	markReady := func(addr net.Addr) {
		ready.Store(true)
		if onReady != nil {
			onReady(addr)
		}
	}

	go func() {
		tls := cfg.Server.TLS
		if tls.Enabled() {
			errCh <- srv.ListenTLS(cfg.Server.Host, cfg.Server.Port, tls.CertFile, tls.KeyFile, markReady)
			return
		}
		errCh <- srv.Listen(cfg.Server.Host, cfg.Server.Port, markReady)
	}()

	select {
	case err := <-errCh:
		if admin != nil {
			_ = admin.Close()
		}
		return err
	case <-ctx.Done():
	}

	ready.Store(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}

	if admin != nil {
		if err := admin.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}

	if err := <-errCh; err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
