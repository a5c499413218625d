package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope of the server metrics
const MeterName = "github.com/stacklok/repomirror/metrics"

// Register exposes the recorder through observable instruments of provider.
// Every collection reads a single snapshot, so one export never mixes values
// from before and after an update. A nil provider registers nothing.
func Register(recorder *Recorder, provider metric.MeterProvider) (metric.Registration, error) {
	if provider == nil {
		return nil, nil
	}
	meter := provider.Meter(MeterName)

	counters := []struct {
		name  string
		desc  string
		value func(Snapshot) int64
	}{
		{"repomirror_group_retrieval_failures", "Failed repository source retrievals", func(s Snapshot) int64 { return s.GroupRetrievalFailures }},
		{"repomirror_sync_attempts", "Attempted repository updates in finished passes", func(s Snapshot) int64 { return s.SyncAttemptsTotal }},
		{"repomirror_sync_succeeded", "Successful repository updates in finished passes", func(s Snapshot) int64 { return s.SyncSucceededTotal }},
		{"repomirror_sync_failed", "Failed repository updates in finished passes", func(s Snapshot) int64 { return s.SyncFailedTotal }},
		{"repomirror_short_pauses", "Pauses shorter than the minimum healthy pause", func(s Snapshot) int64 { return s.ShortPauses }},
		{"repomirror_passes", "Finished sync passes", func(s Snapshot) int64 { return s.Passes }},
	}
	gauges := []struct {
		name  string
		desc  string
		unit  string
		value func(Snapshot) int64
	}{
		{"repomirror_repositories", "Repositories seen in the last finished pass", "{repository}", func(s Snapshot) int64 { return s.RepositoryCount }},
		{"repomirror_repositories_latest", "Repositories seen so far in the current pass", "{repository}", func(s Snapshot) int64 { return s.RepositoryCountLatest }},
		{"repomirror_sync_attempts_latest", "Attempted repository updates in the current pass", "{update}", func(s Snapshot) int64 { return s.SyncAttemptsLatest }},
		{"repomirror_sync_succeeded_latest", "Successful repository updates in the current pass", "{update}", func(s Snapshot) int64 { return s.SyncSucceededLatest }},
		{"repomirror_sync_failed_latest", "Failed repository updates in the current pass", "{update}", func(s Snapshot) int64 { return s.SyncFailedLatest }},
		{"repomirror_last_sync_duration_seconds", "Elapsed time of the last finished pass", "s", func(s Snapshot) int64 { return s.LastSyncDurationSeconds }},
		{"repomirror_wait_seconds_remaining", "Time left before the next pass", "s", func(s Snapshot) int64 { return s.WaitSecondsRemaining }},
	}

	observables := make([]metric.Observable, 0, len(counters)+len(gauges))
	observers := make([]func(metric.Observer, Snapshot), 0, len(counters)+len(gauges))

	for _, c := range counters {
		counter, err := meter.Int64ObservableCounter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("failed to create counter %s: %w", c.name, err)
		}
		value := c.value
		observables = append(observables, counter)
		observers = append(observers, func(o metric.Observer, s Snapshot) {
			o.ObserveInt64(counter, value(s))
		})
	}

	for _, g := range gauges {
		gauge, err := meter.Int64ObservableGauge(g.name, metric.WithDescription(g.desc), metric.WithUnit(g.unit))
		if err != nil {
			return nil, fmt.Errorf("failed to create gauge %s: %w", g.name, err)
		}
		value := g.value
		observables = append(observables, gauge)
		observers = append(observers, func(o metric.Observer, s Snapshot) {
			o.ObserveInt64(gauge, value(s))
		})
	}

	registration, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		snapshot := recorder.Snapshot()
		for _, observe := range observers {
			observe(o, snapshot)
		}
		return nil
	}, observables...)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics callback: %w", err)
	}
	return registration, nil
}
