package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oliehub/backend/internal/domain/integration"
	"github.com/oliehub/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// resetAllKey marks a change event that touched every mapping row
const resetAllKey = "*"

// StatusTranslator resolves raw ERP statuses to production stages through
// the runtime-editable mapping table. Reads are lock-shared; an edit is
// written to the repository first and then to the in-memory table, so the
// next Translate sees it.
type StatusTranslator struct {
	repo      integration.StatusMappingRepository
	publisher shared.EventPublisher
	logger    *zap.Logger

	mu     sync.RWMutex
	rows   map[string]integration.StatusMapping
	stages map[string]integration.ProductionStage
}

// NewStatusTranslator creates a translator seeded with the default table.
// Call Load to switch to the persisted table.
func NewStatusTranslator(repo integration.StatusMappingRepository, publisher shared.EventPublisher, logger *zap.Logger) *StatusTranslator {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &StatusTranslator{
		repo:      repo,
		publisher: publisher,
		logger:    logger.Named("status_translator"),
	}
	t.setRows(defaultRows(time.Now()))
	return t
}

func defaultRows(now time.Time) map[string]integration.StatusMapping {
	defaults := integration.DefaultStatusMappings()
	rows := make(map[string]integration.StatusMapping, len(defaults))
	for raw, stage := range defaults {
		key := integration.NormalizeStatusKey(raw)
		rows[key] = integration.StatusMapping{RawStatus: key, Stage: stage, UpdatedAt: now}
	}
	return rows
}

// Load reads the persisted table, seeding the defaults on first start
func (t *StatusTranslator) Load(ctx context.Context) error {
	mappings, err := t.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("load status mappings: %w", err)
	}
	if len(mappings) == 0 {
		t.logger.Info("status mapping table empty, seeding defaults")
		return t.replaceWithDefaults(ctx)
	}

	rows := make(map[string]integration.StatusMapping, len(mappings))
	for _, m := range mappings {
		rows[integration.NormalizeStatusKey(m.RawStatus)] = m
	}
	t.mu.Lock()
	t.setRows(rows)
	t.mu.Unlock()

	t.logger.Info("status mappings loaded", zap.Int("count", len(rows)))
	return nil
}

// Translate returns the stage for raw. It is total: unknown statuses
// resolve to the default stage.
func (t *StatusTranslator) Translate(raw string) integration.ProductionStage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return integration.ResolveStage(t.stages, raw)
}

// Annotate derives the production stage and lifecycle of an order from
// its raw status. Only ERP orders carry a production stage.
func (t *StatusTranslator) Annotate(order *integration.Order) {
	var stage integration.ProductionStage
	if order.Source == integration.SourceTiny {
		stage = t.Translate(order.Status)
	}
	order.ProductionStage = stage
	order.Lifecycle = integration.DeriveLifecycle(order.Source, order.Status, stage)
}

// SetMapping creates or replaces one row
func (t *StatusTranslator) SetMapping(ctx context.Context, raw string, stage integration.ProductionStage) (*integration.StatusMapping, error) {
	mapping, err := integration.NewStatusMapping(raw, stage)
	if err != nil {
		return nil, err
	}
	if err := t.repo.Save(ctx, mapping); err != nil {
		return nil, fmt.Errorf("save status mapping: %w", err)
	}

	t.mu.Lock()
	t.rows[mapping.RawStatus] = *mapping
	t.stages[mapping.RawStatus] = mapping.Stage
	t.mu.Unlock()

	t.logger.Info("status mapping set",
		zap.String("raw_status", mapping.RawStatus),
		zap.String("stage", mapping.Stage.String()),
	)
	t.publish(ctx, integration.NewStatusMappingChangedEvent(mapping.RawStatus, mapping.Stage, false))
	return mapping, nil
}

// DeleteMapping removes one row; the status then falls back to the default stage
func (t *StatusTranslator) DeleteMapping(ctx context.Context, raw string) error {
	key := integration.NormalizeStatusKey(raw)
	if key == "" {
		return integration.ErrEmptyStatusKey
	}
	if err := t.repo.Delete(ctx, key); err != nil {
		return err
	}

	t.mu.Lock()
	delete(t.rows, key)
	delete(t.stages, key)
	t.mu.Unlock()

	t.logger.Info("status mapping deleted", zap.String("raw_status", key))
	t.publish(ctx, integration.NewStatusMappingChangedEvent(key, "", true))
	return nil
}

// ListMappings returns the table sorted by stage position, then raw status
func (t *StatusTranslator) ListMappings() []integration.StatusMapping {
	t.mu.RLock()
	mappings := make([]integration.StatusMapping, 0, len(t.rows))
	for _, row := range t.rows {
		mappings = append(mappings, row)
	}
	t.mu.RUnlock()

	sort.Slice(mappings, func(i, j int) bool {
		pi, pj := mappings[i].Stage.Position(), mappings[j].Stage.Position()
		if pi != pj {
			return pi < pj
		}
		return mappings[i].RawStatus < mappings[j].RawStatus
	})
	return mappings
}

// ResetDefaults replaces the whole table with the seed mappings
func (t *StatusTranslator) ResetDefaults(ctx context.Context) error {
	if err := t.replaceWithDefaults(ctx); err != nil {
		return err
	}
	t.publish(ctx, integration.NewStatusMappingChangedEvent(resetAllKey, "", false))
	return nil
}

func (t *StatusTranslator) replaceWithDefaults(ctx context.Context) error {
	rows := defaultRows(time.Now())
	mappings := make([]integration.StatusMapping, 0, len(rows))
	for _, row := range rows {
		mappings = append(mappings, row)
	}
	if err := t.repo.ReplaceAll(ctx, mappings); err != nil {
		return fmt.Errorf("reset status mappings: %w", err)
	}

	t.mu.Lock()
	t.setRows(rows)
	t.mu.Unlock()

	t.logger.Info("status mappings reset to defaults", zap.Int("count", len(rows)))
	return nil
}

// setRows swaps the table; callers hold mu except during construction
func (t *StatusTranslator) setRows(rows map[string]integration.StatusMapping) {
	stages := make(map[string]integration.ProductionStage, len(rows))
	for key, row := range rows {
		stages[key] = row.Stage
	}
	t.rows, t.stages = rows, stages
}

func (t *StatusTranslator) publish(ctx context.Context, events ...shared.DomainEvent) {
	if t.publisher == nil {
		return
	}
	if err := t.publisher.Publish(ctx, events...); err != nil {
		t.logger.Warn("failed to publish events", zap.Error(err))
	}
}
