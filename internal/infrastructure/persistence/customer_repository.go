package persistence

import (
	"context"

	"github.com/oliehub/backend/internal/domain/integration"
	"github.com/oliehub/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// customerUpdateColumns are written on conflict. ltv, total_orders and
// created_at are owned by UpdateStats and the first insert.
var customerUpdateColumns = []string{
	"full_name",
	"email",
	"tiny_contact_id",
	"vnda_id",
	"tags",
	"source",
	"updated_at",
}

// GormCustomerRepository implements integration.CustomerRepository using GORM
type GormCustomerRepository struct {
	db *gorm.DB
}

// NewGormCustomerRepository creates a new GormCustomerRepository
func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *GormCustomerRepository) WithTx(tx *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: tx}
}

// UpsertBatch merges incoming contacts into the stored rows inside one
// transaction: stored rows are read, merged additively, then written back.
func (r *GormCustomerRepository) UpsertBatch(ctx context.Context, customers []integration.Customer) (int, error) {
	if len(customers) == 0 {
		return 0, nil
	}

	index := make(map[string]int, len(customers))
	incoming := make([]integration.Customer, 0, len(customers))
	phones := make([]string, 0, len(customers))
	for _, c := range customers {
		if pos, ok := index[c.Phone]; ok {
			incoming[pos].MergeFrom(c)
			continue
		}
		// stats come from UpdateStats only
		c.LTV = decimal.Zero
		c.TotalOrders = 0
		index[c.Phone] = len(incoming)
		incoming = append(incoming, c)
		phones = append(phones, c.Phone)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := r.WithTx(tx).FindByPhones(ctx, phones)
		if err != nil {
			return err
		}

		rows := make([]*models.CustomerModel, len(incoming))
		for i := range incoming {
			merged := incoming[i]
			if stored, ok := existing[merged.Phone]; ok {
				stored.MergeFrom(incoming[i])
				merged = stored
			}
			rows[i] = models.CustomerModelFromDomain(&merged)
		}

		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "phone"}},
			DoUpdates: clause.AssignmentColumns(customerUpdateColumns),
		}).CreateInBatches(rows, insertBatch).Error
	})
	if err != nil {
		return 0, err
	}
	return len(incoming), nil
}

// UpdateStats raises ltv and total_orders to the recomputed totals.
// The CASE guards keep a concurrent or stale recomputation from lowering them.
func (r *GormCustomerRepository) UpdateStats(ctx context.Context, totals map[string]integration.CustomerTotals) (int, error) {
	if len(totals) == 0 {
		return 0, nil
	}

	updated := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for phone, t := range totals {
			result := tx.Model(&models.CustomerModel{}).
				Where("phone = ?", phone).
				Updates(map[string]any{
					"ltv":          gorm.Expr("CASE WHEN ltv < ? THEN ? ELSE ltv END", t.Total, t.Total),
					"total_orders": gorm.Expr("CASE WHEN total_orders < ? THEN ? ELSE total_orders END", t.Orders, t.Orders),
				})
			if result.Error != nil {
				return result.Error
			}
			updated += int(result.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

// FindByPhones loads stored customers indexed by phone
func (r *GormCustomerRepository) FindByPhones(ctx context.Context, phones []string) (map[string]integration.Customer, error) {
	found := make(map[string]integration.Customer, len(phones))
	for _, part := range chunk(phones, lookupChunk) {
		var rows []models.CustomerModel
		if err := r.db.WithContext(ctx).Where("phone IN ?", part).Find(&rows).Error; err != nil {
			return nil, err
		}
		for i := range rows {
			found[rows[i].Phone] = rows[i].ToDomain()
		}
	}
	return found, nil
}

// List returns a page of customers, highest lifetime value first
func (r *GormCustomerRepository) List(ctx context.Context, page, pageSize int) ([]integration.Customer, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.CustomerModel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := pageBounds(page, pageSize)
	var rows []models.CustomerModel
	if err := r.db.WithContext(ctx).Order("ltv DESC").Order("phone ASC").
		Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	customers := make([]integration.Customer, len(rows))
	for i := range rows {
		customers[i] = rows[i].ToDomain()
	}
	return customers, total, nil
}

// Count returns the number of stored customers
func (r *GormCustomerRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.CustomerModel{}).Count(&count).Error
	return count, err
}
