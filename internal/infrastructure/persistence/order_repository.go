package persistence

import (
	"context"
	"errors"

	"github.com/oliehub/backend/internal/domain/integration"
	"github.com/oliehub/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// orderUpdateColumns are overwritten when an order key already exists.
// id and created_at survive re-syncs.
var orderUpdateColumns = []string{
	"cross_reference",
	"customer_name",
	"customer_email",
	"customer_phone",
	"status",
	"total_value",
	"items",
	"lifecycle_state",
	"lifecycle_stage",
	"production_stage",
	"updated_at",
}

// GormOrderRepository implements integration.OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *GormOrderRepository) WithTx(tx *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: tx}
}

// UpsertBatch inserts or updates orders keyed on (source, external_id).
// Duplicate keys inside the batch collapse to the last occurrence.
func (r *GormOrderRepository) UpsertBatch(ctx context.Context, orders []integration.Order) (int, error) {
	if len(orders) == 0 {
		return 0, nil
	}

	index := make(map[string]int, len(orders))
	rows := make([]*models.OrderModel, 0, len(orders))
	for i := range orders {
		m := models.OrderModelFromDomain(&orders[i])
		m.ID = 0
		key := orders[i].Key()
		if pos, ok := index[key]; ok {
			m.CreatedAt = rows[pos].CreatedAt
			rows[pos] = m
			continue
		}
		index[key] = len(rows)
		rows = append(rows, m)
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source"}, {Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns(orderUpdateColumns),
		}).
		CreateInBatches(rows, insertBatch).Error
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// FindByKeys loads the stored counterparts of the given orders, indexed by Order.Key()
func (r *GormOrderRepository) FindByKeys(ctx context.Context, orders []integration.Order) (map[string]integration.Order, error) {
	bySource := make(map[integration.Source][]string)
	for i := range orders {
		bySource[orders[i].Source] = append(bySource[orders[i].Source], orders[i].ExternalID)
	}

	found := make(map[string]integration.Order, len(orders))
	for source, ids := range bySource {
		for _, part := range chunk(ids, lookupChunk) {
			var rows []models.OrderModel
			if err := r.db.WithContext(ctx).
				Where("source = ? AND external_id IN ?", string(source), part).
				Find(&rows).Error; err != nil {
				return nil, err
			}
			for i := range rows {
				order := rows[i].ToDomain()
				found[order.Key()] = order
			}
		}
	}
	return found, nil
}

// FindByExternalID finds one order by its upstream id
func (r *GormOrderRepository) FindByExternalID(ctx context.Context, source integration.Source, externalID string) (*integration.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).
		Where("source = ? AND external_id = ?", string(source), externalID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrOrderNotFound
		}
		return nil, err
	}
	order := model.ToDomain()
	return &order, nil
}

// List returns a page of orders, most recently updated first
func (r *GormOrderRepository) List(ctx context.Context, filter integration.OrderFilter) ([]integration.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.OrderModel{})
	if filter.Source != "" {
		query = query.Where("source = ?", string(filter.Source))
	}
	if filter.Stage != "" {
		query = query.Where("production_stage = ?", string(filter.Stage))
	}
	if filter.State != "" {
		query = query.Where("lifecycle_state = ?", string(filter.State))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := pageBounds(filter.Page, filter.PageSize)
	var rows []models.OrderModel
	sortBy := ValidateSortField(filter.SortBy, OrderSortFields, "updated_at")
	if err := query.Order(sortBy + " " + ValidateSortOrder(filter.SortDir)).Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	orders := make([]integration.Order, len(rows))
	for i := range rows {
		orders[i] = rows[i].ToDomain()
	}
	return orders, total, nil
}

// UpdateStages rewrites the derived stage columns of stored orders in one
// transaction. Raw data and updated_at are left as synced.
func (r *GormOrderRepository) UpdateStages(ctx context.Context, orders []integration.Order) (int, error) {
	if len(orders) == 0 {
		return 0, nil
	}
	updated := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range orders {
			res := tx.Model(&models.OrderModel{}).
				Where("id = ?", orders[i].ID).
				UpdateColumns(map[string]any{
					"production_stage": string(orders[i].ProductionStage),
					"lifecycle_state":  string(orders[i].Lifecycle.State),
					"lifecycle_stage":  string(orders[i].Lifecycle.Stage),
				})
			if res.Error != nil {
				return res.Error
			}
			updated += int(res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

// Count returns the number of stored orders
func (r *GormOrderRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.OrderModel{}).Count(&count).Error
	return count, err
}

type phoneTotalsRow struct {
	CustomerPhone string
	Total         decimal.Decimal
	Orders        int
}

// TotalsByPhone sums order value and count per customer phone. Canceled
// orders are excluded, and so are e-commerce orders already mirrored in the
// ERP (non-empty cross reference), so one purchase counts once.
// A nil phones slice aggregates every customer.
func (r *GormOrderRepository) TotalsByPhone(ctx context.Context, phones []string) (map[string]integration.CustomerTotals, error) {
	base := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.OrderModel{}).
			Select("customer_phone, COALESCE(SUM(total_value), 0) AS total, COUNT(*) AS orders").
			Where("customer_phone <> ''").
			Where("lifecycle_state <> ?", string(integration.LifecycleCanceled)).
			Where("NOT (source <> ? AND cross_reference <> '')", string(integration.SourceTiny)).
			Group("customer_phone")
	}

	totals := make(map[string]integration.CustomerTotals)
	collect := func(q *gorm.DB) error {
		var rows []phoneTotalsRow
		if err := q.Scan(&rows).Error; err != nil {
			return err
		}
		for _, row := range rows {
			totals[row.CustomerPhone] = integration.CustomerTotals{Total: row.Total, Orders: row.Orders}
		}
		return nil
	}

	if phones == nil {
		if err := collect(base()); err != nil {
			return nil, err
		}
		return totals, nil
	}
	for _, part := range chunk(phones, lookupChunk) {
		if err := collect(base().Where("customer_phone IN ?", part)); err != nil {
			return nil, err
		}
	}
	return totals, nil
}
