package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/oliehub/backend/internal/domain/integration"
	"github.com/oliehub/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// productUpsertAssignments overwrites every column on conflict except
// image_url, which keeps the stored value when the incoming one is NULL.
var productUpsertAssignments = clause.Assignments(map[string]any{
	"name":        gorm.Expr("excluded.name"),
	"base_price":  gorm.Expr("excluded.base_price"),
	"stock_level": gorm.Expr("excluded.stock_level"),
	"source":      gorm.Expr("excluded.source"),
	"updated_at":  gorm.Expr("excluded.updated_at"),
	"image_url":   gorm.Expr("COALESCE(excluded.image_url, products.image_url)"),
})

// GormProductRepository implements integration.ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *GormProductRepository) WithTx(tx *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: tx}
}

// UpsertBatch inserts or updates products keyed on SKU. Duplicate SKUs in
// the batch are merged in order, with the same image rule as the database.
func (r *GormProductRepository) UpsertBatch(ctx context.Context, products []integration.Product) (int, error) {
	if len(products) == 0 {
		return 0, nil
	}

	index := make(map[string]int, len(products))
	merged := make([]integration.Product, 0, len(products))
	for _, p := range products {
		if pos, ok := index[p.SKU]; ok {
			merged[pos].MergeFrom(p)
			continue
		}
		index[p.SKU] = len(merged)
		merged = append(merged, p)
	}

	rows := make([]*models.ProductModel, len(merged))
	for i := range merged {
		rows[i] = models.ProductModelFromDomain(&merged[i])
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sku"}},
			DoUpdates: productUpsertAssignments,
		}).
		CreateInBatches(rows, insertBatch).Error
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// FindBySKU finds a product by its SKU
func (r *GormProductRepository) FindBySKU(ctx context.Context, sku string) (*integration.Product, error) {
	var model models.ProductModel
	if err := r.db.WithContext(ctx).First(&model, "sku = ?", sku).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrProductNotFound
		}
		return nil, err
	}
	product := model.ToDomain()
	return &product, nil
}

// List returns a page of products ordered by SKU
func (r *GormProductRepository) List(ctx context.Context, page, pageSize int) ([]integration.Product, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.ProductModel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := pageBounds(page, pageSize)
	var rows []models.ProductModel
	if err := r.db.WithContext(ctx).Order("sku ASC").Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	products := make([]integration.Product, len(rows))
	for i := range rows {
		products[i] = rows[i].ToDomain()
	}
	return products, total, nil
}

// UpdatePrice writes a resolved price to the canonical product
func (r *GormProductRepository) UpdatePrice(ctx context.Context, sku string, price decimal.Decimal, source integration.Source) error {
	result := r.db.WithContext(ctx).Model(&models.ProductModel{}).
		Where("sku = ?", sku).
		Updates(map[string]any{
			"base_price": price,
			"source":     string(source),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrProductNotFound
	}
	return nil
}

// Prices returns the canonical base price of every stored SKU
func (r *GormProductRepository) Prices(ctx context.Context) (map[string]decimal.Decimal, error) {
	var rows []models.ProductModel
	if err := r.db.WithContext(ctx).Select("sku", "base_price").Find(&rows).Error; err != nil {
		return nil, err
	}
	prices := make(map[string]decimal.Decimal, len(rows))
	for _, row := range rows {
		prices[row.SKU] = row.BasePrice
	}
	return prices, nil
}

// Count returns the number of stored products
func (r *GormProductRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ProductModel{}).Count(&count).Error
	return count, err
}
