package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// Serve runs the HTTP server on ln and the registry sweep until ctx is
// cancelled, then cancels live tasks and shuts down gracefully.
func (app *application) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           app.setupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
		// No WriteTimeout: progress streams stay open for the whole task.
	}

	app.registry.Start()
	defer app.registry.Stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.logger.Info("Starting server", "addr", ln.Addr().String())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		app.logger.Info("Shutting down server...")

		// Cancelled tasks end their streams, which lets Shutdown drain.
		if n := app.registry.CancelAll(); n > 0 {
			app.logger.Info("Cancelled in-flight tasks", "count", n)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout())
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	app.logger.Info("Server shutdown completed")
	return nil
}
