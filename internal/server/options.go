package server

import (
	"time"

	"go.opentelemetry.io/otel/trace"
	"k8s.io/utils/clock"

	"github.com/stacklok/repomirror/internal/metrics"
	"github.com/stacklok/repomirror/internal/status"
	"github.com/stacklok/repomirror/internal/telemetry"
)

// DefaultPollInterval is how often the pause publishes the remaining wait
const DefaultPollInterval = time.Second

// Option configures a Server
type Option func(*Server)

// WithClock sets the clock used for pass timing and the pause
func WithClock(c clock.WithTicker) Option {
	return func(s *Server) {
		s.clock = c
	}
}

// WithRecorder sets the metrics recorder
func WithRecorder(r *metrics.Recorder) Option {
	return func(s *Server) {
		s.recorder = r
	}
}

// WithTracerProvider sets the tracer provider for pass and repository spans
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Server) {
		if tp != nil {
			s.tracer = tp.Tracer(TracerName)
		}
	}
}

// WithStatusStore sets the store that receives the status of every pass
func WithStatusStore(store status.Store) Option {
	return func(s *Server) {
		s.statusStore = store
	}
}

// WithSyncMetrics sets the duration histograms
func WithSyncMetrics(m *telemetry.SyncMetrics) Option {
	return func(s *Server) {
		s.syncMetrics = m
	}
}

// WithPollInterval sets how often the pause wakes to publish the remaining wait
func WithPollInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithPassIDGenerator replaces the generator of pass identifiers
func WithPassIDGenerator(fn func() string) Option {
	return func(s *Server) {
		s.newPassID = fn
	}
}
