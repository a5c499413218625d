package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func TestNewMeterProvider(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		opts       []MeterProviderOption
		expectNoOp bool
		wantErr    string
	}{
		{
			name:       "returns no-op provider when no config provided",
			expectNoOp: true,
		},
		{
			name: "returns no-op provider when metrics disabled",
			opts: []MeterProviderOption{
				WithMetricsConfig(&MetricsConfig{Enabled: false}),
			},
			expectNoOp: true,
		},
		{
			name: "returns SDK provider for OTLP",
			opts: []MeterProviderOption{
				WithMetricsConfig(&MetricsConfig{Enabled: true}),
				WithMeterInsecure(true),
			},
		},
		{
			name: "returns SDK provider for Prometheus",
			opts: []MeterProviderOption{
				WithMetricsConfig(&MetricsConfig{Enabled: true, Exporters: []string{ExporterPrometheus}}),
				WithPrometheusRegisterer(promclient.NewRegistry()),
			},
		},
		{
			name: "prometheus without registerer fails",
			opts: []MeterProviderOption{
				WithMetricsConfig(&MetricsConfig{Enabled: true, Exporters: []string{ExporterPrometheus}}),
			},
			wantErr: "requires a registerer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			mp, err := NewMeterProvider(ctx, tt.opts...)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, mp)

			if tt.expectNoOp {
				_, ok := mp.(noop.MeterProvider)
				assert.True(t, ok, "expected no-op meter provider")
				return
			}

			sdkMP, ok := mp.(*sdkmetric.MeterProvider)
			require.True(t, ok, "expected SDK meter provider")
			// Shutdown errors are expected without a collector
			_ = sdkMP.Shutdown(ctx)
		})
	}
}

func TestNewMeterProvider_PrometheusScrape(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	registry := promclient.NewRegistry()
	mp, err := NewMeterProvider(ctx,
		WithMetricsConfig(&MetricsConfig{Enabled: true, Exporters: []string{ExporterPrometheus}}),
		WithPrometheusRegisterer(registry),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mp.(*sdkmetric.MeterProvider).Shutdown(ctx) })

	counter, err := mp.Meter("test").Int64Counter("repomirror_test_events")
	require.NoError(t, err)
	counter.Add(ctx, 3)

	srv := httptest.NewServer(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "repomirror_test_events_total")
	assert.Contains(t, string(body), `otel_scope_name="test"`)
}

func TestMeterProviderOptions(t *testing.T) {
	t.Parallel()

	cfg := &meterProviderConfig{}
	metricsCfg := &MetricsConfig{Enabled: true}
	registry := promclient.NewRegistry()

	WithMeterServiceName("my-service")(cfg)
	WithMeterServiceVersion("2.0.0")(cfg)
	WithMetricsConfig(metricsCfg)(cfg)
	WithMeterEndpoint("collector.example.com:4318")(cfg)
	WithMeterInsecure(true)(cfg)
	WithPrometheusRegisterer(registry)(cfg)

	assert.Equal(t, "my-service", cfg.serviceName)
	assert.Equal(t, "2.0.0", cfg.serviceVersion)
	assert.Equal(t, metricsCfg, cfg.metricsConfig)
	assert.Equal(t, "collector.example.com:4318", cfg.endpoint)
	assert.True(t, cfg.insecure)
	assert.Equal(t, registry, cfg.registerer)
}
