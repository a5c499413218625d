package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collectHistogram(t *testing.T, reader *sdkmetric.ManualReader, name string) metricdata.Histogram[float64] {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	for _, scope := range rm.ScopeMetrics {
		if scope.Scope.Name != SyncMetricsMeterName {
			continue
		}
		for _, m := range scope.Metrics {
			if m.Name == name {
				hist, ok := m.Data.(metricdata.Histogram[float64])
				require.True(t, ok, "expected histogram data type")
				return hist
			}
		}
	}
	t.Fatalf("histogram %s not found", name)
	return metricdata.Histogram[float64]{}
}

func TestNewSyncMetrics(t *testing.T) {
	t.Parallel()

	t.Run("returns nil when provider is nil", func(t *testing.T) {
		t.Parallel()

		metrics, err := NewSyncMetrics(nil)
		require.NoError(t, err)
		assert.Nil(t, metrics)
	})

	t.Run("creates metrics with SDK provider", func(t *testing.T) {
		t.Parallel()

		mp := sdkmetric.NewMeterProvider()
		defer func() { _ = mp.Shutdown(context.Background()) }()

		metrics, err := NewSyncMetrics(mp)
		require.NoError(t, err)
		require.NotNil(t, metrics)
		assert.NotNil(t, metrics.passDuration)
		assert.NotNil(t, metrics.updateDuration)
	})
}

func TestSyncMetrics_NilReceiver(t *testing.T) {
	t.Parallel()

	var metrics *SyncMetrics
	// Must not panic
	metrics.RecordPassDuration(context.Background(), time.Second)
	metrics.RecordUpdateDuration(context.Background(), "github", "tools", time.Second, true)
}

func TestSyncMetrics_RecordPassDuration(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	metrics, err := NewSyncMetrics(mp)
	require.NoError(t, err)

	metrics.RecordPassDuration(context.Background(), 90*time.Second)

	hist := collectHistogram(t, reader, "repomirror_pass_duration_seconds")
	require.Len(t, hist.DataPoints, 1)
	assert.InDelta(t, 90.0, hist.DataPoints[0].Sum, 0.001)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
}

func TestSyncMetrics_RecordUpdateDuration(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	metrics, err := NewSyncMetrics(mp)
	require.NoError(t, err)

	ctx := context.Background()
	metrics.RecordUpdateDuration(ctx, "github", "tools", 1500*time.Millisecond, true)
	metrics.RecordUpdateDuration(ctx, "github", "tools", 500*time.Millisecond, true)
	metrics.RecordUpdateDuration(ctx, "github", "tools", 250*time.Millisecond, false)

	hist := collectHistogram(t, reader, "repomirror_repository_update_duration_seconds")
	require.Len(t, hist.DataPoints, 2)

	for _, dp := range hist.DataPoints {
		success, ok := dp.Attributes.Value(attribute.Key("success"))
		require.True(t, ok)
		group, ok := dp.Attributes.Value(attribute.Key("group"))
		require.True(t, ok)
		assert.Equal(t, "tools", group.AsString())

		if success.AsBool() {
			assert.Equal(t, uint64(2), dp.Count)
			assert.InDelta(t, 2.0, dp.Sum, 0.001)
		} else {
			assert.Equal(t, uint64(1), dp.Count)
			assert.InDelta(t, 0.25, dp.Sum, 0.001)
		}
	}
}
