package telemetry

import (
	"context"

	"gorm.io/gorm"
)

// PendingCounter reports the number of unresolved price conflicts
type PendingCounter func() int

// GormSyncStateProvider implements SyncStateProvider using GORM for the
// board counts and an in-process counter for pending conflicts.
type GormSyncStateProvider struct {
	db      *gorm.DB
	pending PendingCounter
}

// NewGormSyncStateProvider creates a new GormSyncStateProvider. pending may be nil.
func NewGormSyncStateProvider(db *gorm.DB, pending PendingCounter) *GormSyncStateProvider {
	return &GormSyncStateProvider{db: db, pending: pending}
}

// OrdersByStage returns ERP order counts grouped by production stage.
func (p *GormSyncStateProvider) OrdersByStage(ctx context.Context) (map[string]int64, error) {
	type result struct {
		Stage string `gorm:"column:stage"`
		Count int64  `gorm:"column:count"`
	}

	var results []result
	err := p.db.WithContext(ctx).
		Table("orders").
		Select("production_stage AS stage, COUNT(*) AS count").
		Where("source = ? AND production_stage <> ''", "tiny").
		Group("production_stage").
		Find(&results).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(results))
	for _, r := range results {
		counts[r.Stage] = r.Count
	}
	return counts, nil
}

// PendingConflicts returns the number of unresolved price conflicts.
func (p *GormSyncStateProvider) PendingConflicts(_ context.Context) (int64, error) {
	if p.pending == nil {
		return 0, nil
	}
	return int64(p.pending()), nil
}
