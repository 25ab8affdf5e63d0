package persistence

import (
	"context"

	"github.com/oliehub/backend/internal/domain/integration"
	"github.com/oliehub/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStatusMappingRepository implements integration.StatusMappingRepository using GORM
type GormStatusMappingRepository struct {
	db *gorm.DB
}

// NewGormStatusMappingRepository creates a new GormStatusMappingRepository
func NewGormStatusMappingRepository(db *gorm.DB) *GormStatusMappingRepository {
	return &GormStatusMappingRepository{db: db}
}

// List returns every mapping ordered by raw status
func (r *GormStatusMappingRepository) List(ctx context.Context) ([]integration.StatusMapping, error) {
	var rows []models.StatusMappingModel
	if err := r.db.WithContext(ctx).Order("raw_status ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	mappings := make([]integration.StatusMapping, len(rows))
	for i := range rows {
		mappings[i] = rows[i].ToDomain()
	}
	return mappings, nil
}

// Save inserts or replaces one mapping
func (r *GormStatusMappingRepository) Save(ctx context.Context, mapping *integration.StatusMapping) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "raw_status"}},
			DoUpdates: clause.AssignmentColumns([]string{"stage", "updated_at"}),
		}).
		Create(models.StatusMappingModelFromDomain(mapping)).Error
}

// Delete removes one mapping
func (r *GormStatusMappingRepository) Delete(ctx context.Context, rawStatus string) error {
	result := r.db.WithContext(ctx).Where("raw_status = ?", rawStatus).Delete(&models.StatusMappingModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrMappingNotFound
	}
	return nil
}

// ReplaceAll swaps the whole table in one transaction
func (r *GormStatusMappingRepository) ReplaceAll(ctx context.Context, mappings []integration.StatusMapping) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).
			Delete(&models.StatusMappingModel{}).Error; err != nil {
			return err
		}
		if len(mappings) == 0 {
			return nil
		}
		rows := make([]*models.StatusMappingModel, len(mappings))
		for i := range mappings {
			rows[i] = models.StatusMappingModelFromDomain(&mappings[i])
		}
		return tx.Create(rows).Error
	})
}
