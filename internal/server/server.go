package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"k8s.io/utils/clock"

	"github.com/stacklok/repomirror/internal/config"
	"github.com/stacklok/repomirror/internal/metrics"
	"github.com/stacklok/repomirror/internal/names"
	"github.com/stacklok/repomirror/internal/sources"
	"github.com/stacklok/repomirror/internal/status"
	"github.com/stacklok/repomirror/internal/telemetry"
)

// TracerName is the instrumentation name of scheduler spans
const TracerName = "github.com/stacklok/repomirror/server"

var (
	// ErrAlreadyRunning is returned by Run when the server was already started
	ErrAlreadyRunning = errors.New("server is already running")

	// ErrStopped is returned by Run once Stop has been called
	ErrStopped = errors.New("server is stopped")
)

// State is the lifecycle state of a Server
type State int32

const (
	// StateCreated is the state before Run
	StateCreated State = iota
	// StateRunning means passes are being run
	StateRunning
	// StateStopping means Stop was called and the current work is finishing
	StateStopping
	// StateStopped is terminal
	StateStopped
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Settings are the scheduler parameters
type Settings struct {
	// Directory is the mirror root
	Directory string
	// PauseDuration is the time from the start of one pass to the start of the next
	PauseDuration time.Duration
	// MinimumPause is the shortest pause that is not counted as short
	MinimumPause time.Duration
	// DryRun walks the sources without touching any mirror
	DryRun bool
	// Sources are visited in order on every pass
	Sources []sources.Source
}

// SettingsFromConfig returns the scheduler settings of cfg
func SettingsFromConfig(cfg *config.Config, srcs []sources.Source) Settings {
	return Settings{
		Directory:     cfg.Directory,
		PauseDuration: cfg.PauseDuration.Std(),
		MinimumPause:  cfg.MinimumPause.Std(),
		DryRun:        cfg.DryRun,
		Sources:       srcs,
	}
}

// Server runs sync passes until stopped
type Server struct {
	settings Settings

	clock        clock.WithTicker
	recorder     *metrics.Recorder
	tracer       trace.Tracer
	statusStore  status.Store
	syncMetrics  *telemetry.SyncMetrics
	pollInterval time.Duration
	newPassID    func() string

	state    atomic.Int32
	stopping atomic.Bool
	wake     chan struct{}
	done     chan struct{}
}

// New creates a server in the created state
func New(settings Settings, opts ...Option) *Server {
	s := &Server{
		settings:     settings,
		clock:        clock.RealClock{},
		tracer:       noop.NewTracerProvider().Tracer(TracerName),
		pollInterval: DefaultPollInterval,
		newPassID:    uuid.NewString,
		wake:         make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.recorder == nil {
		s.recorder = metrics.NewRecorder()
	}
	return s
}

// MirrorPath returns the location of the mirror of group/name under root
func MirrorPath(root string, group names.GroupName, name names.RepositoryName) string {
	return filepath.Join(root, group.String(), name.String()+".git")
}

// Run starts the pass loop on a background goroutine and returns. Cancelling
// ctx has the same effect as Stop; the work itself runs without ctx's
// cancellation so that mirror operations are never interrupted.
func (s *Server) Run(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateCreated), int32(StateRunning)) {
		if s.State() == StateRunning {
			return ErrAlreadyRunning
		}
		return ErrStopped
	}

	slog.InfoContext(ctx, "Starting sync server",
		"directory", s.settings.Directory,
		"sources", len(s.settings.Sources),
		"pause", config.FormatDuration(s.settings.PauseDuration),
		"dry_run", s.settings.DryRun)

	stopOnCancel := context.AfterFunc(ctx, s.Stop)
	go func() {
		defer stopOnCancel()
		s.loop(context.WithoutCancel(ctx))
	}()
	return nil
}

// Stop asks the loop to exit after the current repository. It may be called
// more than once and from any goroutine.
func (s *Server) Stop() {
	if !s.stopping.CompareAndSwap(false, true) {
		return
	}
	slog.Info("Stopping sync server")

	if s.state.CompareAndSwap(int32(StateCreated), int32(StateStopped)) {
		close(s.done)
		return
	}
	s.state.CompareAndSwap(int32(StateRunning), int32(StateStopping))

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Done is closed once the server has stopped
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the server has stopped
func (s *Server) Wait() {
	<-s.done
}

// State returns the current lifecycle state
func (s *Server) State() State {
	return State(s.state.Load())
}

// Metrics returns the current metrics snapshot
func (s *Server) Metrics() metrics.Snapshot {
	return s.recorder.Snapshot()
}

// Recorder returns the recorder the server publishes to
func (s *Server) Recorder() *metrics.Recorder {
	return s.recorder
}

func (s *Server) loop(ctx context.Context) {
	defer func() {
		s.state.Store(int32(StateStopped))
		close(s.done)
		slog.InfoContext(ctx, "Sync server stopped")
	}()

	for !s.stopping.Load() {
		start := s.clock.Now()
		s.safePass(ctx, start)
		s.pause(ctx, start.Add(s.settings.PauseDuration))
	}
}

// safePass runs one pass, logging anything that escapes it
func (s *Server) safePass(ctx context.Context, start time.Time) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "Sync pass failed", "error", fmt.Sprint(r))
		}
	}()
	s.runPass(ctx, start)
}
