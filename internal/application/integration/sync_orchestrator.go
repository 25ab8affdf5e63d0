package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oliehub/backend/internal/domain/integration"
	"github.com/oliehub/backend/internal/domain/shared"
	"github.com/oliehub/backend/internal/infrastructure/logger"
	"github.com/oliehub/backend/internal/infrastructure/telemetry"
	"github.com/oliehub/backend/internal/infrastructure/validation"
	"go.uber.org/zap"
)

// SyncReport is the outcome of one sync attempt as returned to callers
type SyncReport struct {
	Type     integration.SyncType   `json:"type"`
	Status   integration.SyncStatus `json:"status"`
	Count    int                    `json:"count"`
	Message  string                 `json:"message,omitempty"`
	Issues   []integration.RowIssue `json:"issues,omitempty"`
	Failed   []string               `json:"failed_sources,omitempty"`
	Duration time.Duration          `json:"duration"`
}

// Sources lists the upstream adapters each sync type reads from
type Sources struct {
	Orders    []integration.OrderSource
	Products  []integration.ProductSource
	Customers []integration.CustomerSource
}

// SyncRecorder receives one observation per finished sync attempt
type SyncRecorder interface {
	RecordSync(ctx context.Context, syncType, status string, items int, duration time.Duration)
}

// SyncOrchestrator runs the three sync types independently: fetch from the
// adapters, validate, reconcile, then log exactly one entry per attempt.
type SyncOrchestrator struct {
	engine    *ReconciliationEngine
	gate      *validation.Gate
	sources   Sources
	logs      integration.SyncLogRepository
	cache     integration.SyncLogCache
	publisher shared.EventPublisher
	recorder  SyncRecorder
	logger    *zap.Logger

	busy map[integration.SyncType]*atomic.Bool
}

// NewSyncOrchestrator creates a new SyncOrchestrator
func NewSyncOrchestrator(
	engine *ReconciliationEngine,
	gate *validation.Gate,
	sources Sources,
	logs integration.SyncLogRepository,
	cache integration.SyncLogCache,
	publisher shared.EventPublisher,
	logger *zap.Logger,
) *SyncOrchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	busy := make(map[integration.SyncType]*atomic.Bool, 3)
	for _, t := range integration.AllSyncTypes() {
		busy[t] = &atomic.Bool{}
	}
	return &SyncOrchestrator{
		engine:    engine,
		gate:      gate,
		sources:   sources,
		logs:      logs,
		cache:     cache,
		publisher: publisher,
		logger:    logger.Named("sync"),
		busy:      busy,
	}
}

// SetSyncRecorder sets the metrics sink for sync attempts
func (o *SyncOrchestrator) SetSyncRecorder(recorder SyncRecorder) {
	o.recorder = recorder
}

// Sync runs a single sync type
func (o *SyncOrchestrator) Sync(ctx context.Context, syncType integration.SyncType, trigger integration.Trigger) (SyncReport, error) {
	switch syncType {
	case integration.SyncTypeOrders:
		return o.SyncOrders(ctx, trigger)
	case integration.SyncTypeProducts:
		return o.SyncProducts(ctx, trigger)
	case integration.SyncTypeCustomers:
		return o.SyncCustomers(ctx, trigger)
	default:
		return SyncReport{Type: syncType, Status: integration.SyncStatusError}, integration.ErrInvalidSyncType
	}
}

// SyncAll runs every sync type concurrently and waits for all of them.
// A failing type never prevents the others from completing; reports come
// back in orders, products, customers order.
func (o *SyncOrchestrator) SyncAll(ctx context.Context, trigger integration.Trigger) []SyncReport {
	types := integration.AllSyncTypes()
	reports := make([]SyncReport, len(types))

	var wg sync.WaitGroup
	for i, t := range types {
		wg.Add(1)
		go func(i int, t integration.SyncType) {
			defer wg.Done()
			reports[i], _ = o.Sync(ctx, t, trigger)
		}(i, t)
	}
	wg.Wait()
	return reports
}

// SyncOrders pulls orders from every configured source
func (o *SyncOrchestrator) SyncOrders(ctx context.Context, trigger integration.Trigger) (SyncReport, error) {
	return o.run(ctx, integration.SyncTypeOrders, trigger, func(ctx context.Context) (UpsertResult, error) {
		if len(o.sources.Orders) == 0 {
			return UpsertResult{}, integration.NewConfigurationError("", "order source", "is not configured")
		}
		rows, failed, err := fetchAll(ctx, o.logger, o.sources.Orders, integration.OrderSource.FetchOrders)
		if err != nil {
			return UpsertResult{}, err
		}
		batch, err := validation.ValidateBatch(o.gate, validation.SchemaOrder, rows, func(r integration.Order) string { return r.Key() })
		if err != nil {
			return UpsertResult{}, err
		}
		result, err := admit(ctx, batch, o.engine.UpsertOrders)
		result.FailedSources = failed
		return result, err
	})
}

// SyncProducts pulls the catalog from every configured source
func (o *SyncOrchestrator) SyncProducts(ctx context.Context, trigger integration.Trigger) (SyncReport, error) {
	return o.run(ctx, integration.SyncTypeProducts, trigger, func(ctx context.Context) (UpsertResult, error) {
		if len(o.sources.Products) == 0 {
			return UpsertResult{}, integration.NewConfigurationError("", "product source", "is not configured")
		}
		rows, failed, err := fetchAll(ctx, o.logger, o.sources.Products, integration.ProductSource.FetchProducts)
		if err != nil {
			return UpsertResult{}, err
		}
		batch, err := validation.ValidateBatch(o.gate, validation.SchemaProduct, rows, func(r integration.Product) string { return r.SKU })
		if err != nil {
			return UpsertResult{}, err
		}
		result, err := admit(ctx, batch, o.engine.UpsertProducts)
		result.FailedSources = failed
		return result, err
	})
}

// SyncCustomers pulls contacts from every configured source
func (o *SyncOrchestrator) SyncCustomers(ctx context.Context, trigger integration.Trigger) (SyncReport, error) {
	return o.run(ctx, integration.SyncTypeCustomers, trigger, func(ctx context.Context) (UpsertResult, error) {
		if len(o.sources.Customers) == 0 {
			return UpsertResult{}, integration.NewConfigurationError("", "customer source", "is not configured")
		}
		rows, failed, err := fetchAll(ctx, o.logger, o.sources.Customers, integration.CustomerSource.FetchCustomers)
		if err != nil {
			return UpsertResult{}, err
		}
		batch, err := validation.ValidateBatch(o.gate, validation.SchemaCustomer, rows, func(r integration.Customer) string { return r.Phone })
		if err != nil {
			return UpsertResult{}, err
		}
		result, err := admit(ctx, batch, o.engine.UpsertCustomers)
		result.FailedSources = failed
		return result, err
	})
}

// fetchAll reads every source. A failing source is logged and reported
// while the rows of the others are still admitted; the attempt fails only
// when no source answered.
func fetchAll[S interface{ Name() integration.Source }, T any](
	ctx context.Context,
	log *zap.Logger,
	sources []S,
	fetch func(S, context.Context) ([]T, error),
) ([]T, []string, error) {
	var (
		rows   []T
		failed []string
		errs   []error
	)
	for _, src := range sources {
		fetched, err := fetch(src, ctx)
		if err != nil {
			logger.Enrich(ctx, log).Warn("source failed",
				zap.String("source", string(src.Name())), zap.Error(err))
			failed = append(failed, fmt.Sprintf("%s: %s", src.Name(), integration.UserMessage(err)))
			errs = append(errs, err)
			continue
		}
		rows = append(rows, fetched...)
	}
	switch {
	case len(errs) == 1 && len(sources) == 1:
		return nil, nil, errs[0]
	case len(errs) == len(sources):
		return nil, nil, errors.Join(errs...)
	}
	return rows, failed, nil
}

// admit hands the valid rows to the engine. A batch where every row was
// rejected is a failed attempt.
func admit[T any](
	ctx context.Context,
	batch validation.BatchResult[T],
	upsert func(context.Context, []T) (UpsertResult, error),
) (UpsertResult, error) {
	if batch.AllRejected() {
		return UpsertResult{Rejected: batch.Rejected}, fmt.Errorf("%w: all %d rows rejected",
			integration.ErrValidationFailure, len(batch.Rejected))
	}
	result, err := upsert(ctx, batch.Valid)
	result.Rejected = append(batch.Rejected, result.Rejected...)
	return result, err
}

func (o *SyncOrchestrator) run(
	ctx context.Context,
	syncType integration.SyncType,
	trigger integration.Trigger,
	fn func(ctx context.Context) (UpsertResult, error),
) (SyncReport, error) {
	busy := o.busy[syncType]
	if !busy.CompareAndSwap(false, true) {
		o.logger.Info("sync skipped, already running", zap.String("sync_type", syncType.String()))
		return SyncReport{
			Type:    syncType,
			Status:  integration.SyncStatusSkipped,
			Message: integration.UserMessage(integration.ErrSyncInProgress),
		}, integration.ErrSyncInProgress
	}
	defer busy.Store(false)

	ctx = logger.WithSyncType(ctx, syncType.String())
	ctx, span := telemetry.StartServiceSpan(ctx, "sync", syncType.String())
	defer span.End()
	telemetry.SetAttributes(span, "trigger", trigger.String())

	start := time.Now()
	result, err := fn(ctx)
	duration := time.Since(start)

	report := SyncReport{
		Type:     syncType,
		Issues:   result.Rejected,
		Failed:   result.FailedSources,
		Duration: duration,
	}

	var entry *integration.SyncLogEntry
	if err != nil {
		telemetry.RecordError(span, err)
		entry = integration.NewErrorLog(syncType, trigger, err, duration)
		report.Status = integration.SyncStatusError
		report.Message = integration.UserMessage(err)
	} else {
		var notes []string
		if n := len(result.Rejected); n > 0 {
			notes = append(notes, fmt.Sprintf("%d rows rejected by validation", n))
		}
		if len(result.FailedSources) > 0 {
			notes = append(notes, "unavailable "+strings.Join(result.FailedSources, "; "))
		}
		details := strings.Join(notes, ", ")
		entry = integration.NewSuccessLog(syncType, trigger, result.Count, details, duration)
		report.Status = integration.SyncStatusSuccess
		report.Count = result.Count
		report.Message = fmt.Sprintf("synced %d %s", result.Count, syncType)
		if details != "" {
			report.Message += ", " + details
		}
		telemetry.SetOK(span)
	}
	telemetry.SetAttributes(span, "status", report.Status.String(), "count", report.Count)

	o.record(ctx, entry)
	return report, err
}

// record writes the audit entry of one attempt and notifies observers
func (o *SyncOrchestrator) record(ctx context.Context, entry *integration.SyncLogEntry) {
	log := logger.Enrich(ctx, o.logger).With(
		zap.String("sync_type", entry.Type.String()),
		zap.String("trigger", entry.Trigger.String()),
		zap.String("status", entry.Status.String()),
		zap.Int("count", entry.Count),
		zap.Duration("duration", entry.Duration),
	)

	if err := o.logs.Append(ctx, entry); err != nil {
		log.Error("failed to write sync log", zap.Error(err))
	}
	if o.cache != nil {
		if err := o.cache.Push(ctx, *entry); err != nil {
			log.Warn("failed to cache sync log", zap.Error(err))
		}
	}
	if o.recorder != nil {
		o.recorder.RecordSync(ctx, entry.Type.String(), entry.Status.String(), entry.Count, entry.Duration)
	}
	if o.publisher != nil {
		if err := o.publisher.Publish(ctx, integration.NewSyncCompletedEvent(*entry)); err != nil {
			log.Warn("failed to publish events", zap.Error(err))
		}
	}

	if entry.Status == integration.SyncStatusError {
		log.Error("sync failed", zap.String("details", entry.Details))
		return
	}
	log.Info("sync completed")
}

// IsRunning reports whether a sync of the given type is in flight
func (o *SyncOrchestrator) IsRunning(syncType integration.SyncType) bool {
	busy, ok := o.busy[syncType]
	return ok && busy.Load()
}

// ---------------------------------------------------------------------------
// Audit log reads
// ---------------------------------------------------------------------------

// RecentLogs returns the newest entries, from the cache when it answers
func (o *SyncOrchestrator) RecentLogs(ctx context.Context, limit int) ([]integration.SyncLogEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	if o.cache != nil {
		entries, err := o.cache.Recent(ctx, limit)
		if err == nil && len(entries) > 0 {
			return entries, nil
		}
		if err != nil {
			o.logger.Warn("sync log cache unavailable, reading repository", zap.Error(err))
		}
	}
	entries, _, err := o.logs.List(ctx, integration.SyncLogFilter{Page: 1, PageSize: limit})
	return entries, err
}

// ListLogs returns a page of the durable audit log, newest first
func (o *SyncOrchestrator) ListLogs(ctx context.Context, filter integration.SyncLogFilter) ([]integration.SyncLogEntry, int64, error) {
	filter.Normalize()
	return o.logs.List(ctx, filter)
}

// AllLogs returns the whole durable audit log, newest first
func (o *SyncOrchestrator) AllLogs(ctx context.Context) ([]integration.SyncLogEntry, error) {
	return o.logs.All(ctx)
}

// IsSkipped reports whether err means the attempt never started
func IsSkipped(err error) bool {
	return errors.Is(err, integration.ErrSyncInProgress)
}
