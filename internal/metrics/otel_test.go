package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	values := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		if scope.Scope.Name != MeterName {
			continue
		}
		for _, m := range scope.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				require.Len(t, data.DataPoints, 1)
				assert.True(t, data.IsMonotonic, "%s should be monotonic", m.Name)
				values[m.Name] = data.DataPoints[0].Value
			case metricdata.Gauge[int64]:
				require.Len(t, data.DataPoints, 1)
				values[m.Name] = data.DataPoints[0].Value
			default:
				t.Fatalf("unexpected data type %T for %s", m.Data, m.Name)
			}
		}
	}
	return values
}

func TestRegister_NilProvider(t *testing.T) {
	t.Parallel()

	registration, err := Register(NewRecorder(), nil)
	require.NoError(t, err)
	assert.Nil(t, registration)
}

func TestRegister_ExportsSnapshot(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	recorder := NewRecorder()
	registration, err := Register(recorder, mp)
	require.NoError(t, err)
	require.NotNil(t, registration)

	recorder.RepositoriesSeen(4)
	for range 4 {
		recorder.SyncAttempted()
	}
	recorder.SyncSucceeded()
	recorder.SyncSucceeded()
	recorder.SyncSucceeded()
	recorder.SyncFailed()
	recorder.GroupRetrievalFailed()
	recorder.FinishPeriod(12 * time.Second)
	recorder.ShortPause()
	recorder.SetWait(30*time.Second, time.Now().Add(30*time.Second))
	recorder.RepositoriesSeen(2)
	recorder.SyncAttempted()

	values := collect(t, reader)
	assert.Equal(t, map[string]int64{
		"repomirror_group_retrieval_failures":   1,
		"repomirror_sync_attempts":              4,
		"repomirror_sync_succeeded":             3,
		"repomirror_sync_failed":                1,
		"repomirror_short_pauses":               1,
		"repomirror_passes":                     1,
		"repomirror_repositories":               4,
		"repomirror_repositories_latest":        2,
		"repomirror_sync_attempts_latest":       1,
		"repomirror_sync_succeeded_latest":      0,
		"repomirror_sync_failed_latest":         0,
		"repomirror_last_sync_duration_seconds": 12,
		"repomirror_wait_seconds_remaining":     30,
	}, values)

	require.NoError(t, registration.Unregister())
}
