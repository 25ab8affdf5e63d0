package persistence

import (
	"context"

	"github.com/oliehub/backend/internal/domain/integration"
	"github.com/oliehub/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormConflictResolutionRepository stores the audit trail of price decisions
type GormConflictResolutionRepository struct {
	db *gorm.DB
}

// NewGormConflictResolutionRepository creates a new GormConflictResolutionRepository
func NewGormConflictResolutionRepository(db *gorm.DB) *GormConflictResolutionRepository {
	return &GormConflictResolutionRepository{db: db}
}

// Append stores one resolution and writes the generated id back to it
func (r *GormConflictResolutionRepository) Append(ctx context.Context, resolution *integration.ConflictResolution) error {
	model := models.ConflictResolutionModelFromDomain(resolution)
	model.ID = 0
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	resolution.ID = model.ID
	return nil
}

// List returns the most recent resolutions, newest first
func (r *GormConflictResolutionRepository) List(ctx context.Context, limit int) ([]integration.ConflictResolution, error) {
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}
	var rows []models.ConflictResolutionModel
	if err := r.db.WithContext(ctx).Order("resolved_at DESC").Order("id DESC").
		Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	resolutions := make([]integration.ConflictResolution, len(rows))
	for i := range rows {
		resolutions[i] = rows[i].ToDomain()
	}
	return resolutions, nil
}

// LatestBySKU returns the most recent resolution of each SKU. A nil skus
// slice covers every resolved SKU.
func (r *GormConflictResolutionRepository) LatestBySKU(ctx context.Context, skus []string) (map[string]integration.ConflictResolution, error) {
	latest := make(map[string]integration.ConflictResolution)
	collect := func(q *gorm.DB) error {
		var rows []models.ConflictResolutionModel
		if err := q.Order("resolved_at ASC").Order("id ASC").Find(&rows).Error; err != nil {
			return err
		}
		for i := range rows {
			latest[rows[i].SKU] = rows[i].ToDomain()
		}
		return nil
	}

	if skus == nil {
		if err := collect(r.db.WithContext(ctx)); err != nil {
			return nil, err
		}
		return latest, nil
	}
	for _, part := range chunk(skus, lookupChunk) {
		if err := collect(r.db.WithContext(ctx).Where("sku IN ?", part)); err != nil {
			return nil, err
		}
	}
	return latest, nil
}

var (
	_ integration.OrderRepository              = (*GormOrderRepository)(nil)
	_ integration.ProductRepository            = (*GormProductRepository)(nil)
	_ integration.CustomerRepository           = (*GormCustomerRepository)(nil)
	_ integration.StatusMappingRepository      = (*GormStatusMappingRepository)(nil)
	_ integration.SyncLogRepository            = (*GormSyncLogRepository)(nil)
	_ integration.ConflictResolutionRepository = (*GormConflictResolutionRepository)(nil)
)
