package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	noopMetric "go.opentelemetry.io/otel/metric/noop"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewWithoutEndpointIsNoop(t *testing.T) {
	client, err := New(t.Context(), "", "host-metrics", "test", "instance")
	require.NoError(t, err)

	assert.IsType(t, noopMetric.MeterProvider{}, client.MeterProvider)
	assert.NotNil(t, client.LogsProvider)
	assert.True(t, client.IsNoop())
	require.NoError(t, client.Shutdown(t.Context()))
}

func TestNewWithEndpoint(t *testing.T) {
	// the grpc exporters dial lazily, so no collector is needed
	client, err := New(t.Context(), "localhost:4317", "host-metrics", "test", "instance")
	require.NoError(t, err)

	_, ok := client.MeterProvider.(*sdkmetric.MeterProvider)
	assert.True(t, ok)

	_, ok = client.LogsProvider.(*sdklog.LoggerProvider)
	assert.True(t, ok)
	assert.False(t, client.IsNoop())

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	// a canceled shutdown may fail to flush, but must not panic
	_ = client.Shutdown(ctx)
}

func TestMeters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := mp.Meter("test")

	counter, err := GetCounter(meter, SamplesRecordedCounterName)
	require.NoError(t, err)
	counter.Add(t.Context(), 2)

	_, err = GetGaugeFloat(meter, CPUUsageGaugeName, func(_ context.Context, o metric.Float64Observer) error {
		o.Observe(42.5)

		return nil
	})
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(t.Context(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	byName := map[string]metricdata.Metrics{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		byName[m.Name] = m
	}

	recorded := byName[string(SamplesRecordedCounterName)]
	assert.Equal(t, "{sample}", recorded.Unit)
	assert.Equal(t, counterDesc[SamplesRecordedCounterName], recorded.Description)
	assert.Equal(t, int64(2), recorded.Data.(metricdata.Sum[int64]).DataPoints[0].Value)

	cpu := byName[string(CPUUsageGaugeName)]
	assert.Equal(t, "%", cpu.Unit)
	assert.InDelta(t, 42.5, cpu.Data.(metricdata.Gauge[float64]).DataPoints[0].Value, 1e-9)
}
