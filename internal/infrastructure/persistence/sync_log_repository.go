package persistence

import (
	"context"

	"github.com/oliehub/backend/internal/domain/integration"
	"github.com/oliehub/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormSyncLogRepository is the durable, append-only sync audit store
type GormSyncLogRepository struct {
	db *gorm.DB
}

// NewGormSyncLogRepository creates a new GormSyncLogRepository
func NewGormSyncLogRepository(db *gorm.DB) *GormSyncLogRepository {
	return &GormSyncLogRepository{db: db}
}

// Append stores one entry and writes the generated id back to it
func (r *GormSyncLogRepository) Append(ctx context.Context, entry *integration.SyncLogEntry) error {
	model := models.SyncLogModelFromDomain(entry)
	model.ID = 0
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	entry.ID = model.ID
	return nil
}

// List returns a page of entries, newest first
func (r *GormSyncLogRepository) List(ctx context.Context, filter integration.SyncLogFilter) ([]integration.SyncLogEntry, int64, error) {
	filter.Normalize()

	query := r.db.WithContext(ctx).Model(&models.SyncLogModel{})
	if filter.Type != "" {
		query = query.Where("type = ?", string(filter.Type))
	}
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.SyncLogModel
	if err := query.Order("logged_at DESC").Order("id DESC").
		Offset((filter.Page - 1) * filter.PageSize).Limit(filter.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return toSyncLogEntries(rows), total, nil
}

// All returns every entry newest first, for exports
func (r *GormSyncLogRepository) All(ctx context.Context) ([]integration.SyncLogEntry, error) {
	var rows []models.SyncLogModel
	if err := r.db.WithContext(ctx).Order("logged_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toSyncLogEntries(rows), nil
}

func toSyncLogEntries(rows []models.SyncLogModel) []integration.SyncLogEntry {
	entries := make([]integration.SyncLogEntry, len(rows))
	for i := range rows {
		entries[i] = rows[i].ToDomain()
	}
	return entries
}
