// Package app provides application lifecycle management for the mirror server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/stacklok/repomirror/internal/config"
)

// MirrorApp encapsulates all components needed to run the mirror server.
// It owns the mirror root lock and provides graceful shutdown.
type MirrorApp struct {
	config       *config.Config
	components   *AppComponents
	httpServer   *http.Server
	lock         *flock.Flock
	registration metric.Registration

	// ownsTelemetry is false when the providers were injected
	ownsTelemetry bool

	// Lifecycle management
	ctx        context.Context
	cancelFunc context.CancelFunc
	stopOnce   sync.Once
	stopErr    error
}

// Start runs the sync scheduler and the HTTP server. It blocks until both
// have stopped, or one of them fails.
func (app *MirrorApp) Start() error {
	listener, err := net.Listen("tcp", app.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return app.Serve(listener)
}

// Serve is Start on an existing listener
func (app *MirrorApp) Serve(listener net.Listener) error {
	g, ctx := errgroup.WithContext(app.ctx)

	scheduler := app.components.Scheduler
	g.Go(func() error {
		if err := scheduler.Run(ctx); err != nil {
			return fmt.Errorf("sync server failed: %w", err)
		}
		<-scheduler.Done()
		return nil
	})

	g.Go(func() error {
		slog.Info("Server listening", "address", listener.Addr().String())
		if err := app.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Stop gracefully stops the application with the given timeout. The sync
// server finishes its current repository, then the HTTP server shuts down
// and the mirror root is unlocked. Calling Stop again returns the first result.
func (app *MirrorApp) Stop(timeout time.Duration) error {
	app.stopOnce.Do(func() {
		app.stopErr = app.stop(timeout)
	})
	return app.stopErr
}

func (app *MirrorApp) stop(timeout time.Duration) error {
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error

	scheduler := app.components.Scheduler
	scheduler.Stop()
	select {
	case <-scheduler.Done():
	case <-shutdownCtx.Done():
		errs = append(errs, fmt.Errorf("sync server did not stop within %s", timeout))
	}

	if app.cancelFunc != nil {
		app.cancelFunc()
	}

	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server forced to shutdown: %w", err))
	}

	if app.registration != nil {
		if err := app.registration.Unregister(); err != nil {
			errs = append(errs, fmt.Errorf("failed to unregister metrics: %w", err))
		}
	}

	if tel := app.components.Telemetry; tel != nil && app.ownsTelemetry {
		if err := tel.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown telemetry: %w", err))
		}
	}

	if app.lock != nil {
		if err := app.lock.Unlock(); err != nil {
			errs = append(errs, fmt.Errorf("failed to unlock mirror directory: %w", err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	slog.Info("Server shutdown complete")
	return nil
}

// GetConfig returns the application configuration
func (app *MirrorApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server
func (app *MirrorApp) GetHTTPServer() *http.Server {
	return app.httpServer
}

// GetComponents returns the application components
func (app *MirrorApp) GetComponents() *AppComponents {
	return app.components
}
