package app

import (
	"context"

	"github.com/stacklok/repomirror/internal/metrics"
	"github.com/stacklok/repomirror/internal/server"
	"github.com/stacklok/repomirror/internal/status"
	"github.com/stacklok/repomirror/internal/telemetry"
)

// Scheduler runs sync passes in the background
type Scheduler interface {
	Run(ctx context.Context) error
	Stop()
	Done() <-chan struct{}
	State() server.State
	Metrics() metrics.Snapshot
}

var _ Scheduler = (*server.Server)(nil)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Scheduler runs the sync passes
	Scheduler Scheduler

	// StatusStore persists the outcome of the latest pass
	StatusStore status.Store

	// Telemetry owns the tracer and meter providers
	Telemetry *telemetry.Telemetry
}
