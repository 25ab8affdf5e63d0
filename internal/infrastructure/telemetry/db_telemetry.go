package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTelemetryConfig configures query tracing and query metrics for the
// order, product and sync-log tables.
type DBTelemetryConfig struct {
	// Tracing wraps every statement in an otelgorm span
	Tracing bool
	// LogFullSQL keeps bound variables in span statements (dev only)
	LogFullSQL bool
	// SlowQueryThreshold marks spans and counts slow statements
	SlowQueryThreshold time.Duration
	// DBName is reported as db.name on spans and pool gauges
	DBName string
	// PoolStatsInterval is how often connection pool gauges are sampled
	PoolStatsInterval time.Duration
	// TracerProvider overrides the global provider; used by tests
	TracerProvider oteltrace.TracerProvider
}

// DefaultDBTelemetryConfig returns the default database telemetry configuration
func DefaultDBTelemetryConfig() DBTelemetryConfig {
	return DBTelemetryConfig{
		SlowQueryThreshold: 200 * time.Millisecond,
		DBName:             "oliehub",
		PoolStatsInterval:  15 * time.Second,
	}
}

// DBTelemetry is a gorm plugin that traces and measures statements issued
// by the reconciliation repositories. Metrics are optional: with a nil meter
// only span annotation is done.
type DBTelemetry struct {
	config DBTelemetryConfig
	logger *zap.Logger

	queryTotal     *Counter
	queryDuration  *Histogram
	slowQueryTotal *Counter
	poolOpen       *Gauge
	poolInUse      *Gauge
	poolIdle       *Gauge

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// ErrTelemetryDisabled is returned by NewDBTelemetry when neither tracing nor metrics are on
var ErrTelemetryDisabled = errors.New("database telemetry disabled")

type dbTelemetryKey struct{}

var dbOperations = []string{"create", "query", "update", "delete", "row", "raw"}

// NewDBTelemetry builds the plugin. meter may be nil.
func NewDBTelemetry(cfg DBTelemetryConfig, meter metric.Meter, logger *zap.Logger) (*DBTelemetry, error) {
	if !cfg.Tracing && meter == nil {
		return nil, ErrTelemetryDisabled
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultDBTelemetryConfig()
	if cfg.SlowQueryThreshold <= 0 {
		cfg.SlowQueryThreshold = defaults.SlowQueryThreshold
	}
	if cfg.DBName == "" {
		cfg.DBName = defaults.DBName
	}
	if cfg.PoolStatsInterval <= 0 {
		cfg.PoolStatsInterval = defaults.PoolStatsInterval
	}

	t := &DBTelemetry{config: cfg, logger: logger, stopCh: make(chan struct{})}
	if meter == nil {
		return t, nil
	}

	var err error
	if t.queryTotal, err = NewCounter(meter, "oliehub_db_query_total", "Database statements by operation and table", "{query}"); err != nil {
		return nil, err
	}
	if t.queryDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "oliehub_db_query_duration_seconds",
		Description: "Database statement latency",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if t.slowQueryTotal, err = NewCounter(meter, "oliehub_db_slow_query_total", "Statements slower than the slow query threshold", "{query}"); err != nil {
		return nil, err
	}
	if t.poolOpen, err = NewGauge(meter, "oliehub_db_pool_open", "Open connections in the pool", "{connection}"); err != nil {
		return nil, err
	}
	if t.poolInUse, err = NewGauge(meter, "oliehub_db_pool_in_use", "Connections currently in use", "{connection}"); err != nil {
		return nil, err
	}
	if t.poolIdle, err = NewGauge(meter, "oliehub_db_pool_idle", "Idle connections in the pool", "{connection}"); err != nil {
		return nil, err
	}
	return t, nil
}

// Name implements gorm.Plugin
func (t *DBTelemetry) Name() string { return "oliehub:db-telemetry" }

// Initialize implements gorm.Plugin
func (t *DBTelemetry) Initialize(db *gorm.DB) error {
	if t.config.Tracing {
		opts := []otelgorm.Option{otelgorm.WithDBName(t.config.DBName)}
		if !t.config.LogFullSQL {
			opts = append(opts, otelgorm.WithoutQueryVariables())
		}
		if t.config.TracerProvider != nil {
			opts = append(opts, otelgorm.WithTracerProvider(t.config.TracerProvider))
		}
		if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
			return err
		}
	}

	for _, op := range dbOperations {
		before, after := hooksFor(db, op)
		if err := before("oliehub:before_"+op, t.before); err != nil {
			return err
		}
		op := op
		if err := after("oliehub:after_"+op, func(tx *gorm.DB) { t.after(tx, op) }); err != nil {
			return err
		}
	}

	t.logger.Info("Database telemetry enabled",
		zap.Bool("tracing", t.config.Tracing),
		zap.Bool("metrics", t.queryTotal != nil),
		zap.String("db_name", t.config.DBName),
		zap.Duration("slow_query_threshold", t.config.SlowQueryThreshold))
	return nil
}

type registerFunc func(name string, fn func(*gorm.DB)) error

// hooksFor returns registrars placed around the built-in gorm callback for op
func hooksFor(db *gorm.DB, op string) (before, after registerFunc) {
	cb := db.Callback()
	name := "gorm:" + op
	switch op {
	case "create":
		return cb.Create().Before(name).Register, cb.Create().After(name).Register
	case "update":
		return cb.Update().Before(name).Register, cb.Update().After(name).Register
	case "delete":
		return cb.Delete().Before(name).Register, cb.Delete().After(name).Register
	case "row":
		return cb.Row().Before(name).Register, cb.Row().After(name).Register
	case "raw":
		return cb.Raw().Before(name).Register, cb.Raw().After(name).Register
	default:
		return cb.Query().Before(name).Register, cb.Query().After(name).Register
	}
}

func (t *DBTelemetry) before(db *gorm.DB) {
	if db.Statement.Context == nil {
		db.Statement.Context = context.Background()
	}
	db.Statement.Context = context.WithValue(db.Statement.Context, dbTelemetryKey{}, time.Now())
}

func (t *DBTelemetry) after(db *gorm.DB, op string) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	var elapsed time.Duration
	if start, ok := ctx.Value(dbTelemetryKey{}).(time.Time); ok {
		elapsed = time.Since(start)
	}
	slow := elapsed > t.config.SlowQueryThreshold
	failed := db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound)

	if span := oteltrace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
		if db.Statement.Table != "" {
			span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
		}
		if failed {
			span.SetStatus(codes.Error, db.Error.Error())
			span.RecordError(db.Error)
		}
		if slow {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()))
		}
	}

	if t.queryTotal == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("operation", op),
		attribute.String("table", db.Statement.Table),
		attribute.Bool("error", failed),
	}
	t.queryTotal.Inc(ctx, attrs...)
	t.queryDuration.RecordDuration(ctx, elapsed, attrs[:2]...)
	if slow {
		t.slowQueryTotal.Inc(ctx, attrs[:2]...)
		t.logger.Warn("Slow database statement",
			zap.String("operation", op),
			zap.String("table", db.Statement.Table),
			zap.Duration("elapsed", elapsed))
	}
}

// StartPoolStats samples connection pool gauges until Stop is called.
// It is a no-op when metrics are disabled.
func (t *DBTelemetry) StartPoolStats(ctx context.Context, sqlDB *sql.DB) {
	if t.poolOpen == nil || sqlDB == nil {
		return
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ticker := time.NewTicker(t.config.PoolStatsInterval)
		defer ticker.Stop()
		t.recordPool(ctx, sqlDB)
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.stopCh:
				return
			case <-ticker.C:
				t.recordPool(ctx, sqlDB)
			}
		}
	}()
}

func (t *DBTelemetry) recordPool(ctx context.Context, sqlDB *sql.DB) {
	stats := sqlDB.Stats()
	name := attribute.String("db.name", t.config.DBName)
	t.poolOpen.Record(ctx, int64(stats.OpenConnections), name)
	t.poolInUse.Record(ctx, int64(stats.InUse), name)
	t.poolIdle.Record(ctx, int64(stats.Idle), name)
}

// Stop ends pool sampling. Safe to call more than once.
func (t *DBTelemetry) Stop() {
	t.stopOnce.Do(func() { close(t.stopCh) })
	t.wg.Wait()
}
