package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// SyncMetrics tracks sync runs, reconciled items and the workshop board.
type SyncMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	runsTotal  *Counter
	itemsTotal *Counter

	// Histogram metrics
	runDuration *Histogram

	// Gauge metrics (point-in-time values)
	ordersByStage    *Gauge
	pendingConflicts *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	stateProvider SyncStateProvider
}

// SyncStateProvider provides reconciliation state for periodic metrics
// collection without tying the telemetry layer to the domain packages.
type SyncStateProvider interface {
	// OrdersByStage returns the number of ERP orders per production stage
	OrdersByStage(ctx context.Context) (map[string]int64, error)

	// PendingConflicts returns the number of unresolved price conflicts
	PendingConflicts(ctx context.Context) (int64, error)
}

// SyncMetricsConfig holds configuration for sync metrics.
type SyncMetricsConfig struct {
	Meter         metric.Meter
	Logger        *zap.Logger
	StateProvider SyncStateProvider
}

// NewSyncMetrics creates a new SyncMetrics instance.
func NewSyncMetrics(cfg SyncMetricsConfig) (*SyncMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sm := &SyncMetrics{
		meter:         cfg.Meter,
		logger:        logger,
		stopChan:      make(chan struct{}),
		stateProvider: cfg.StateProvider,
	}

	var err error

	sm.runsTotal, err = NewCounter(
		cfg.Meter,
		"oliehub_sync_runs_total",
		"Total number of sync attempts by type and outcome",
		"{runs}",
	)
	if err != nil {
		return nil, err
	}

	sm.itemsTotal, err = NewCounter(
		cfg.Meter,
		"oliehub_sync_items_total",
		"Total number of records stored by successful syncs",
		"{items}",
	)
	if err != nil {
		return nil, err
	}

	sm.runDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "oliehub_sync_duration_seconds",
		Description: "Duration of sync attempts",
		Unit:        "s",
		Boundaries:  SyncDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	sm.ordersByStage, err = NewGauge(
		cfg.Meter,
		"oliehub_orders_by_stage",
		"Current ERP orders per production stage",
		"{orders}",
	)
	if err != nil {
		return nil, err
	}

	sm.pendingConflicts, err = NewGauge(
		cfg.Meter,
		"oliehub_price_conflicts_pending",
		"Current unresolved price conflicts",
		"{conflicts}",
	)
	if err != nil {
		return nil, err
	}

	return sm, nil
}

// RecordSync records one finished sync attempt.
func (sm *SyncMetrics) RecordSync(ctx context.Context, syncType, status string, items int, duration time.Duration) {
	sm.runsTotal.Inc(ctx,
		AttrSyncType.String(syncType),
		AttrSyncStatus.String(status),
	)
	if items > 0 {
		sm.itemsTotal.Add(ctx, int64(items), AttrSyncType.String(syncType))
	}
	sm.runDuration.RecordDuration(ctx, duration,
		AttrSyncType.String(syncType),
		AttrSyncStatus.String(status),
	)
}

// RecordOrdersByStage records the current order count of one stage.
func (sm *SyncMetrics) RecordOrdersByStage(ctx context.Context, stage string, count int64) {
	sm.ordersByStage.Record(ctx, count, AttrStage.String(stage))
}

// RecordPendingConflicts records the current number of unresolved conflicts.
func (sm *SyncMetrics) RecordPendingConflicts(ctx context.Context, count int64) {
	sm.pendingConflicts.Record(ctx, count)
}

// StartPeriodicCollection starts a background goroutine that samples the
// state provider every interval. It only starts once.
func (sm *SyncMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	sm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		go sm.runPeriodicCollection(ctx, interval)
	})
}

func (sm *SyncMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sm.collectState(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sm.stopChan:
			return
		case <-ticker.C:
			sm.collectState(ctx)
		}
	}
}

func (sm *SyncMetrics) collectState(ctx context.Context) {
	if sm.stateProvider == nil {
		sm.logger.Debug("No state provider configured, skipping sync state collection")
		return
	}

	byStage, err := sm.stateProvider.OrdersByStage(ctx)
	if err != nil {
		sm.logger.Warn("Failed to get orders by stage", zap.Error(err))
	} else {
		for stage, count := range byStage {
			sm.RecordOrdersByStage(ctx, stage, count)
		}
	}

	pending, err := sm.stateProvider.PendingConflicts(ctx)
	if err != nil {
		sm.logger.Warn("Failed to get pending conflicts", zap.Error(err))
	} else {
		sm.RecordPendingConflicts(ctx, pending)
	}
}

// Stop stops the periodic collection.
func (sm *SyncMetrics) Stop() {
	sm.stopOnce.Do(func() {
		close(sm.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewSyncMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
