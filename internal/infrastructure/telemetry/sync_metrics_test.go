package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// sumFor returns the int64 sum data points of a named counter
func sumFor(rm metricdata.ResourceMetrics, name string) []metricdata.DataPoint[int64] {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				return sum.DataPoints
			}
		}
	}
	return nil
}

// findMetric reports whether a metric with the given name was collected
func findMetric(rm metricdata.ResourceMetrics, name string) bool {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return true
			}
		}
	}
	return false
}

func TestNewSyncMetrics(t *testing.T) {
	sm, err := NewSyncMetrics(SyncMetricsConfig{
		Meter:  noop.NewMeterProvider().Meter("test"),
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)
	require.NotNil(t, sm)
}

func TestNewSyncMetrics_NilMeter(t *testing.T) {
	sm, err := NewSyncMetrics(SyncMetricsConfig{Logger: zap.NewNop()})
	require.Error(t, err)
	assert.Nil(t, sm)
	assert.Equal(t, "NewSyncMetrics: meter cannot be nil", err.Error())
}

func TestSyncMetrics_RecordSync(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	sm, err := NewSyncMetrics(SyncMetricsConfig{Meter: provider.Meter("test")})
	require.NoError(t, err)

	ctx := context.Background()
	sm.RecordSync(ctx, "orders", "success", 7, 2*time.Second)
	sm.RecordSync(ctx, "orders", "success", 3, time.Second)
	sm.RecordSync(ctx, "products", "error", 0, 3*time.Second)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	runs := sumFor(rm, "oliehub_sync_runs_total")
	require.Len(t, runs, 2)
	for _, dp := range runs {
		syncType, _ := dp.Attributes.Value(AttrSyncType)
		switch syncType.AsString() {
		case "orders":
			assert.Equal(t, int64(2), dp.Value)
			assert.True(t, dp.Attributes.HasValue(AttrSyncStatus))
		case "products":
			assert.Equal(t, int64(1), dp.Value)
			status, _ := dp.Attributes.Value(AttrSyncStatus)
			assert.Equal(t, "error", status.AsString())
		default:
			t.Fatalf("unexpected sync type %q", syncType.AsString())
		}
	}

	items := sumFor(rm, "oliehub_sync_items_total")
	require.Len(t, items, 1)
	assert.Equal(t, int64(10), items[0].Value)
	syncType, ok := items[0].Attributes.Value(AttrSyncType)
	require.True(t, ok)
	assert.Equal(t, "orders", syncType.AsString())

	assert.True(t, findMetric(rm, "oliehub_sync_duration_seconds"))
}

type stubStateProvider struct {
	byStage map[string]int64
	pending int64
	err     error
	calls   chan struct{}
}

func (p *stubStateProvider) OrdersByStage(ctx context.Context) (map[string]int64, error) {
	if p.calls != nil {
		select {
		case p.calls <- struct{}{}:
		default:
		}
	}
	return p.byStage, p.err
}

func (p *stubStateProvider) PendingConflicts(ctx context.Context) (int64, error) {
	return p.pending, p.err
}

func TestSyncMetrics_PeriodicCollection(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	state := &stubStateProvider{
		byStage: map[string]int64{"costura": 4, "pronto": 2},
		pending: 3,
		calls:   make(chan struct{}, 1),
	}
	sm, err := NewSyncMetrics(SyncMetricsConfig{
		Meter:         provider.Meter("test"),
		Logger:        zap.NewNop(),
		StateProvider: state,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sm.StartPeriodicCollection(ctx, time.Hour)
	// only the first call starts a collector
	sm.StartPeriodicCollection(ctx, time.Millisecond)

	select {
	case <-state.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("state provider was not sampled")
	}
	sm.Stop()
	sm.Stop()

	assert.Eventually(t, func() bool {
		var rm metricdata.ResourceMetrics
		if err := reader.Collect(context.Background(), &rm); err != nil {
			return false
		}
		return findMetric(rm, "oliehub_orders_by_stage") && findMetric(rm, "oliehub_price_conflicts_pending")
	}, time.Second, 10*time.Millisecond)
}

func TestSyncMetrics_CollectionToleratesProviderErrors(t *testing.T) {
	sm, err := NewSyncMetrics(SyncMetricsConfig{
		Meter:         noop.NewMeterProvider().Meter("test"),
		StateProvider: &stubStateProvider{err: errors.New("db down")},
	})
	require.NoError(t, err)

	// Should not panic
	sm.collectState(context.Background())

	withoutProvider, err := NewSyncMetrics(SyncMetricsConfig{Meter: noop.NewMeterProvider().Meter("test")})
	require.NoError(t, err)
	withoutProvider.collectState(context.Background())
}

func TestGormSyncStateProvider(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Exec(`CREATE TABLE orders (id INTEGER PRIMARY KEY, source TEXT, production_stage TEXT)`).Error)
	require.NoError(t, db.Exec(`INSERT INTO orders (source, production_stage) VALUES
		('tiny', 'costura'), ('tiny', 'costura'), ('tiny', 'pronto'), ('vnda', ''), ('vnda', 'costura')`).Error)

	p := NewGormSyncStateProvider(db, func() int { return 2 })
	ctx := context.Background()

	counts, err := p.OrdersByStage(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"costura": 2, "pronto": 1}, counts)

	pending, err := p.PendingConflicts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pending)

	pending, err = NewGormSyncStateProvider(db, nil).PendingConflicts(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}
