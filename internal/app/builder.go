package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gofrs/flock"
	"go.opentelemetry.io/otel/metric"

	"github.com/stacklok/repomirror/internal/api"
	"github.com/stacklok/repomirror/internal/config"
	"github.com/stacklok/repomirror/internal/metrics"
	"github.com/stacklok/repomirror/internal/server"
	"github.com/stacklok/repomirror/internal/sources"
	"github.com/stacklok/repomirror/internal/status"
	"github.com/stacklok/repomirror/internal/telemetry"
	"github.com/stacklok/repomirror/internal/versions"
)

const (
	// LockFileName is the lock file held in the mirror root while the server runs
	LockFileName = ".repomirror.lock"
	// StatusDirName is the directory under the mirror root holding the pass status
	StatusDirName = ".repomirror"

	defaultRequestTimeout = 10 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 15 * time.Second
	defaultIdleTimeout    = 60 * time.Second
)

// ErrLocked is returned when another process holds the mirror root
var ErrLocked = errors.New("mirror directory is locked by another process")

// MirrorAppOptions is a function that configures the mirror app builder
type MirrorAppOptions func(*mirrorAppConfig) error

// mirrorAppConfig collects the builder inputs. Component fields left nil
// are built from the configuration.
type mirrorAppConfig struct {
	config *config.Config

	sources       []sources.Source
	telemetry     *telemetry.Telemetry
	serverOptions []server.Option

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration
}

func baseConfig(opts ...MirrorAppOptions) (*mirrorAppConfig, error) {
	cfg := &mirrorAppConfig{
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.address == "" {
		cfg.address = cfg.config.Server.Address
	}
	if cfg.address == "" {
		cfg.address = config.DefaultAddress
	}

	return cfg, nil
}

// NewMirrorApp builds the application from the given options. The mirror
// root is locked until Stop is called or building fails.
func NewMirrorApp(ctx context.Context, opts ...MirrorAppOptions) (*MirrorApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	slog.Info(fmt.Sprintf("repomirror %s start", versions.GetVersionInfo().Version),
		"directory", cfg.config.Directory,
		"dry_run", cfg.config.DryRun)

	lock, err := lockDirectory(cfg.config.Directory)
	if err != nil {
		return nil, err
	}

	var cleanups []func()
	cleanupNeeded := true
	defer func() {
		if !cleanupNeeded {
			return
		}
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
		_ = lock.Unlock()
	}()

	ownsTelemetry := cfg.telemetry == nil
	if ownsTelemetry {
		cfg.telemetry, err = buildTelemetry(ctx, cfg.config)
		if err != nil {
			return nil, fmt.Errorf("failed to build telemetry: %w", err)
		}
		tel := cfg.telemetry
		cleanups = append(cleanups, func() { _ = tel.Shutdown(context.Background()) })
	}

	scheduler, store, registration, err := buildSyncComponents(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build sync components: %w", err)
	}
	if registration != nil {
		cleanups = append(cleanups, func() { _ = registration.Unregister() })
	}

	httpServer, err := buildHTTPServer(ctx, cfg, scheduler, store)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	appCtx, cancel := context.WithCancel(ctx)
	cleanupNeeded = false

	return &MirrorApp{
		config: cfg.config,
		components: &AppComponents{
			Scheduler:   scheduler,
			StatusStore: store,
			Telemetry:   cfg.telemetry,
		},
		httpServer:   httpServer,
		lock:         lock,
		registration: registration,
		ownsTelemetry: ownsTelemetry,
		ctx:          appCtx,
		cancelFunc:   cancel,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) MirrorAppOptions {
	return func(cfg *mirrorAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address, overriding server.address
func WithAddress(addr string) MirrorAppOptions {
	return func(cfg *mirrorAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, found := strings.Cut(addr, ":")
		if !found || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares sets custom HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) MirrorAppOptions {
	return func(cfg *mirrorAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithSources replaces the sources built from the configuration (for testing)
func WithSources(srcs ...sources.Source) MirrorAppOptions {
	return func(cfg *mirrorAppConfig) error {
		cfg.sources = srcs
		return nil
	}
}

// WithTelemetry sets the telemetry providers instead of building them from
// the configuration. The caller keeps ownership and shuts them down.
func WithTelemetry(t *telemetry.Telemetry) MirrorAppOptions {
	return func(cfg *mirrorAppConfig) error {
		cfg.telemetry = t
		return nil
	}
}

// WithServerOptions adds options passed to the sync server
func WithServerOptions(opts ...server.Option) MirrorAppOptions {
	return func(cfg *mirrorAppConfig) error {
		cfg.serverOptions = append(cfg.serverOptions, opts...)
		return nil
	}
}

// lockDirectory creates the mirror root if needed and takes its lock file
func lockDirectory(dir string) (*flock.Flock, error) {
	if err := os.MkdirAll(dir, sources.DirectoryPermissions); err != nil {
		return nil, fmt.Errorf("failed to create mirror directory %s: %w", dir, err)
	}

	lock := flock.New(filepath.Join(dir, LockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock mirror directory %s: %w", dir, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, dir)
	}

	slog.Debug("Locked mirror directory", "path", lock.Path())
	return lock, nil
}

func buildTelemetry(ctx context.Context, cfg *config.Config) (*telemetry.Telemetry, error) {
	if cfg.Telemetry != nil && cfg.Telemetry.ServiceVersion == "" {
		cfg.Telemetry.ServiceVersion = versions.GetVersionInfo().Version
	}
	return telemetry.New(ctx, telemetry.WithTelemetryConfig(cfg.Telemetry))
}

// buildSyncComponents builds the sources, the status store and the sync server
func buildSyncComponents(
	ctx context.Context,
	b *mirrorAppConfig,
) (*server.Server, status.Store, metric.Registration, error) {
	slog.Info("Initializing sync components")

	if b.sources == nil {
		srcs, err := sources.NewFactory(b.config.Git).NewSources(b.config)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create sources: %w", err)
		}
		b.sources = srcs
	}

	store := status.NewFileStore(filepath.Join(b.config.Directory, StatusDirName))
	warnOnNewerStatus(ctx, store)

	provider := b.telemetry.MeterProvider()
	recorder := metrics.NewRecorder()
	registration, err := metrics.Register(recorder, provider)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to register server metrics: %w", err)
	}

	syncMetrics, err := telemetry.NewSyncMetrics(provider)
	if err != nil {
		if registration != nil {
			_ = registration.Unregister()
		}
		return nil, nil, nil, fmt.Errorf("failed to create sync metrics: %w", err)
	}

	serverOpts := append([]server.Option{
		server.WithRecorder(recorder),
		server.WithTracerProvider(b.telemetry.TracerProvider()),
		server.WithStatusStore(store),
		server.WithSyncMetrics(syncMetrics),
	}, b.serverOptions...)

	scheduler := server.New(server.SettingsFromConfig(b.config, b.sources), serverOpts...)
	slog.Info("Sync components initialized successfully", "sources", len(b.sources))

	return scheduler, store, registration, nil
}

// warnOnNewerStatus logs when the mirror root was last written by a newer release
func warnOnNewerStatus(ctx context.Context, store status.Store) {
	previous, err := store.Load(ctx)
	if err != nil {
		return
	}
	current := versions.GetVersionInfo().Version
	if previous.ServerVersion != "" && versions.IsNewerVersion(previous.ServerVersion, current) {
		slog.Warn("Mirror directory was last synced by a newer repomirror",
			"previous_version", previous.ServerVersion,
			"version", current)
	}
}

// buildHTTPServer builds the HTTP server with router and middleware
//
//nolint:unparam // we prefer having a similar interface
func buildHTTPServer(
	_ context.Context,
	b *mirrorAppConfig,
	scheduler Scheduler,
	store status.Store,
) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	serverOpts := []api.ServerOption{}
	if b.telemetry != nil {
		metricsMiddleware, err := telemetry.MetricsMiddleware(b.telemetry.MeterProvider())
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
		}
		// Metrics and tracing wrap every other middleware to see the final status
		b.middlewares = append([]func(http.Handler) http.Handler{
			metricsMiddleware,
			telemetry.TracingMiddleware(b.telemetry.TracerProvider()),
		}, b.middlewares...)

		if h := b.telemetry.MetricsHandler(); h != nil {
			serverOpts = append(serverOpts, api.WithMetricsHandler(h))
			slog.Info("Prometheus metrics endpoint enabled", "path", "/metrics")
		}
	}
	serverOpts = append(serverOpts, api.WithMiddlewares(b.middlewares...))

	router := api.NewServer(scheduler, store, serverOpts...)

	httpServer := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return httpServer, nil
}
