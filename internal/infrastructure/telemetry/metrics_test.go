package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"

	"github.com/oliehub/backend/internal/infrastructure/telemetry"
)

func newTestMeter(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return reader, provider
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{ServiceName: "oliehub-sync"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("test"))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestNewMeterProvider_Enabled(t *testing.T) {
	ctx := context.Background()
	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           true,
		CollectorEndpoint: "localhost:14317",
		ServiceName:       "oliehub-sync",
		Insecure:          true,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.True(t, mp.IsEnabled())

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_ = mp.Shutdown(cancelled)
}

func TestCounter(t *testing.T) {
	reader, provider := newTestMeter(t)
	counter, err := telemetry.NewCounter(provider.Meter("test"), "oliehub_sync_runs_total", "runs", "{run}")
	require.NoError(t, err)

	ctx := context.Background()
	counter.Inc(ctx, telemetry.AttrSyncType.String("orders"))
	counter.Add(ctx, 4, telemetry.AttrSyncType.String("orders"))

	sum := collect(t, reader)["oliehub_sync_runs_total"].Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(5), sum.DataPoints[0].Value)
	assert.True(t, sum.IsMonotonic)
}

func TestHistogram_Buckets(t *testing.T) {
	reader, provider := newTestMeter(t)
	hist, err := telemetry.NewHistogram(provider.Meter("test"), telemetry.HistogramOpts{
		Name:       "oliehub_sync_duration_seconds",
		Unit:       "s",
		Boundaries: telemetry.SyncDurationBuckets,
	})
	require.NoError(t, err)

	ctx := context.Background()
	hist.RecordDuration(ctx, 2*time.Second)
	hist.Record(ctx, 45)

	data := collect(t, reader)["oliehub_sync_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.Len(t, data.DataPoints, 1)
	dp := data.DataPoints[0]
	assert.Equal(t, uint64(2), dp.Count)
	assert.Equal(t, telemetry.SyncDurationBuckets, dp.Bounds)
	assert.InDelta(t, 47.0, dp.Sum, 0.001)
}

func TestHistogram_DefaultBuckets(t *testing.T) {
	reader, provider := newTestMeter(t)
	hist, err := telemetry.NewHistogram(provider.Meter("test"), telemetry.HistogramOpts{Name: "plain"})
	require.NoError(t, err)
	hist.Record(context.Background(), 1)

	dp := collect(t, reader)["plain"].Data.(metricdata.Histogram[float64]).DataPoints[0]
	assert.NotEqual(t, telemetry.SyncDurationBuckets, dp.Bounds)
}

func TestGauge_KeepsLastValue(t *testing.T) {
	reader, provider := newTestMeter(t)
	gauge, err := telemetry.NewGauge(provider.Meter("test"), "oliehub_orders_by_stage", "board", "{order}")
	require.NoError(t, err)

	ctx := context.Background()
	gauge.Record(ctx, 3, telemetry.AttrStage.String("costura"))
	gauge.Record(ctx, 7, telemetry.AttrStage.String("costura"))

	data := collect(t, reader)["oliehub_orders_by_stage"].Data.(metricdata.Gauge[int64])
	require.Len(t, data.DataPoints, 1)
	assert.Equal(t, int64(7), data.DataPoints[0].Value)
}
