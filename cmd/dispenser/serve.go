package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	httpAdapter "github.com/aretw0/dispenser/pkg/adapters/http"
	"github.com/aretw0/dispenser/pkg/fleet"
	"github.com/aretw0/dispenser/pkg/observability"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Serves the fleet as a JSON API over HTTP, with Prometheus metrics on /metrics
and per-machine change streams on /machines/{id}/events.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			port := a.cfg.Port
			if cmd.Flags().Changed("port") {
				port, _ = cmd.Flags().GetInt("port")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			metrics := observability.NewMetrics()
			a.storeMiddleware = append(a.storeMiddleware, metrics.StoreMiddleware())
			hooks := metrics.Hooks().Merge(observability.LoggingHooks(a.logger))
			mgr, err := a.openFleet(ctx, fleet.WithLifecycleHooks(hooks))
			if err != nil {
				return err
			}
			if err := a.seedFleet(ctx, mgr); err != nil {
				return err
			}

			srv := &http.Server{
				Addr: ":" + strconv.Itoa(port),
				Handler: httpAdapter.NewHandler(mgr,
					httpAdapter.WithMetrics(metrics.Handler()),
					httpAdapter.WithLogger(a.logger),
				),
				ReadHeaderTimeout: 5 * time.Second,
			}
			return serveUntilDone(ctx, a, srv)
		},
	}
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on (env DISPENSER_PORT)")
	return serveCmd
}

// serveUntilDone runs srv until it fails or ctx is cancelled, then drains it.
func serveUntilDone(ctx context.Context, a *app, srv *http.Server) error {
	serverErrors := make(chan error, 1)
	go func() {
		a.logger.Info("Starting Dispenser Server", "address", srv.Addr, "store", a.cfg.Store)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		a.logger.Info("Start shutdown...")

		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("Graceful shutdown did not complete", "timeout", 5*time.Second, "err", err)
			if err := srv.Close(); err != nil {
				return fmt.Errorf("error killing server: %w", err)
			}
		}
		a.logger.Info("Dispenser Server stopped gracefully")
		return nil
	}
}
