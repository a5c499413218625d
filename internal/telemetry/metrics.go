package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// SyncMetricsMeterName is the name used for the sync histogram meter
	SyncMetricsMeterName = "github.com/stacklok/repomirror/sync"
)

// SyncMetrics holds duration histograms for sync passes and repository updates.
// The counters and gauges of the mirror server live in internal/metrics.
type SyncMetrics struct {
	passDuration   metric.Float64Histogram
	updateDuration metric.Float64Histogram
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	passDuration, err := meter.Float64Histogram(
		"repomirror_pass_duration_seconds",
		metric.WithDescription("Duration of complete sync passes in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 10, 30, 60, 300, 600, 1800, 3600, 7200),
	)
	if err != nil {
		return nil, err
	}

	updateDuration, err := meter.Float64Histogram(
		"repomirror_repository_update_duration_seconds",
		metric.WithDescription("Duration of single repository updates in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		passDuration:   passDuration,
		updateDuration: updateDuration,
	}, nil
}

// RecordPassDuration records the duration of one sync pass
func (m *SyncMetrics) RecordPassDuration(ctx context.Context, duration time.Duration) {
	if m == nil || m.passDuration == nil {
		return
	}
	m.passDuration.Record(ctx, duration.Seconds())
}

// RecordUpdateDuration records the duration of one repository update
func (m *SyncMetrics) RecordUpdateDuration(ctx context.Context, source, group string, duration time.Duration, success bool) {
	if m == nil || m.updateDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("source", source),
		attribute.String("group", group),
		attribute.Bool("success", success),
	}

	m.updateDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
