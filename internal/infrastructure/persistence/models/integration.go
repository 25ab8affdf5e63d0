package models

import (
	"encoding/json"
	"time"

	"github.com/oliehub/backend/internal/domain/integration"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

// OrderModel is the persistence model for canonical orders.
// (source, external_id) is the upsert key.
type OrderModel struct {
	ID              uint            `gorm:"primaryKey;autoIncrement"`
	Source          string          `gorm:"type:varchar(20);not null;uniqueIndex:idx_orders_source_external,priority:1"`
	ExternalID      string          `gorm:"type:varchar(64);not null;uniqueIndex:idx_orders_source_external,priority:2"`
	CrossReference  string          `gorm:"type:varchar(64);index"`
	CustomerName    string          `gorm:"type:varchar(200)"`
	CustomerEmail   string          `gorm:"type:varchar(200)"`
	CustomerPhone   string          `gorm:"type:varchar(20);index"`
	Status          string          `gorm:"type:varchar(64);not null"`
	TotalValue      decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	ItemsJSON       string          `gorm:"type:text;column:items"`
	LifecycleState  string          `gorm:"type:varchar(20);not null;index"`
	LifecycleStage  string          `gorm:"type:varchar(20)"`
	ProductionStage string          `gorm:"type:varchar(20);index"`
	CreatedAt       time.Time       `gorm:"not null"`
	UpdatedAt       time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a canonical order
func (m *OrderModel) ToDomain() integration.Order {
	order := integration.Order{
		ID:             m.ID,
		Source:         integration.Source(m.Source),
		ExternalID:     m.ExternalID,
		CrossReference: m.CrossReference,
		CustomerName:   m.CustomerName,
		CustomerEmail:  m.CustomerEmail,
		CustomerPhone:  m.CustomerPhone,
		Status:         m.Status,
		TotalValue:     m.TotalValue,
		Items:          make([]integration.OrderItem, 0),
		Lifecycle: integration.Lifecycle{
			State: integration.LifecycleState(m.LifecycleState),
			Stage: integration.ProductionStage(m.LifecycleStage),
		},
		ProductionStage: integration.ProductionStage(m.ProductionStage),
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	if m.ItemsJSON != "" {
		var items []integration.OrderItem
		if err := json.Unmarshal([]byte(m.ItemsJSON), &items); err == nil {
			order.Items = items
		}
	}
	return order
}

// OrderModelFromDomain converts a canonical order to its persistence model
func OrderModelFromDomain(o *integration.Order) *OrderModel {
	m := &OrderModel{
		ID:              o.ID,
		Source:          string(o.Source),
		ExternalID:      o.ExternalID,
		CrossReference:  o.CrossReference,
		CustomerName:    o.CustomerName,
		CustomerEmail:   o.CustomerEmail,
		CustomerPhone:   o.CustomerPhone,
		Status:          o.Status,
		TotalValue:      o.TotalValue,
		ItemsJSON:       "[]",
		LifecycleState:  string(o.Lifecycle.State),
		LifecycleStage:  string(o.Lifecycle.Stage),
		ProductionStage: string(o.ProductionStage),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	if len(o.Items) > 0 {
		if data, err := json.Marshal(o.Items); err == nil {
			m.ItemsJSON = string(data)
		}
	}
	return m
}

// ---------------------------------------------------------------------------
// Products
// ---------------------------------------------------------------------------

// ProductModel is the persistence model for SKU-level catalog entries
type ProductModel struct {
	SKU        string          `gorm:"type:varchar(64);primaryKey"`
	Name       string          `gorm:"type:varchar(200);not null"`
	BasePrice  decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	StockLevel int             `gorm:"not null;default:0"`
	ImageURL   *string         `gorm:"type:text"`
	Source     string          `gorm:"type:varchar(20);not null"`
	UpdatedAt  time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a canonical product
func (m *ProductModel) ToDomain() integration.Product {
	return integration.Product{
		SKU:        m.SKU,
		Name:       m.Name,
		BasePrice:  m.BasePrice,
		StockLevel: m.StockLevel,
		ImageURL:   m.ImageURL,
		Source:     integration.Source(m.Source),
		UpdatedAt:  m.UpdatedAt,
	}
}

// ProductModelFromDomain converts a canonical product to its persistence model
func ProductModelFromDomain(p *integration.Product) *ProductModel {
	return &ProductModel{
		SKU:        p.SKU,
		Name:       p.Name,
		BasePrice:  p.BasePrice,
		StockLevel: p.StockLevel,
		ImageURL:   p.ImageURL,
		Source:     string(p.Source),
		UpdatedAt:  p.UpdatedAt,
	}
}

// ---------------------------------------------------------------------------
// Customers
// ---------------------------------------------------------------------------

// CustomerModel is the persistence model for contacts, keyed by phone
type CustomerModel struct {
	Phone         string          `gorm:"type:varchar(20);primaryKey"`
	FullName      string          `gorm:"type:varchar(200);not null"`
	Email         string          `gorm:"type:varchar(200);index"`
	TinyContactID string          `gorm:"type:varchar(64)"`
	VndaID        string          `gorm:"type:varchar(64)"`
	LTV           decimal.Decimal `gorm:"type:decimal(18,2);not null;column:ltv"`
	TotalOrders   int             `gorm:"not null;default:0"`
	TagsJSON      string          `gorm:"type:text;column:tags"`
	Source        string          `gorm:"type:varchar(20);not null"`
	CreatedAt     time.Time       `gorm:"not null"`
	UpdatedAt     time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// ToDomain converts the persistence model to a canonical customer
func (m *CustomerModel) ToDomain() integration.Customer {
	customer := integration.Customer{
		FullName:      m.FullName,
		Email:         m.Email,
		Phone:         m.Phone,
		TinyContactID: m.TinyContactID,
		VndaID:        m.VndaID,
		LTV:           m.LTV,
		TotalOrders:   m.TotalOrders,
		Tags:          make([]string, 0),
		Source:        integration.Source(m.Source),
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
	if m.TagsJSON != "" {
		var tags []string
		if err := json.Unmarshal([]byte(m.TagsJSON), &tags); err == nil {
			customer.Tags = tags
		}
	}
	return customer
}

// CustomerModelFromDomain converts a canonical customer to its persistence model
func CustomerModelFromDomain(c *integration.Customer) *CustomerModel {
	m := &CustomerModel{
		Phone:         c.Phone,
		FullName:      c.FullName,
		Email:         c.Email,
		TinyContactID: c.TinyContactID,
		VndaID:        c.VndaID,
		LTV:           c.LTV,
		TotalOrders:   c.TotalOrders,
		TagsJSON:      "[]",
		Source:        string(c.Source),
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
	if len(c.Tags) > 0 {
		if data, err := json.Marshal(c.Tags); err == nil {
			m.TagsJSON = string(data)
		}
	}
	return m
}

// ---------------------------------------------------------------------------
// Status mappings
// ---------------------------------------------------------------------------

// StatusMappingModel is one row of the raw status → production stage table
type StatusMappingModel struct {
	RawStatus string    `gorm:"type:varchar(100);primaryKey"`
	Stage     string    `gorm:"type:varchar(20);not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (StatusMappingModel) TableName() string {
	return "status_mappings"
}

// ToDomain converts the persistence model to a domain mapping
func (m *StatusMappingModel) ToDomain() integration.StatusMapping {
	return integration.StatusMapping{
		RawStatus: m.RawStatus,
		Stage:     integration.ProductionStage(m.Stage),
		UpdatedAt: m.UpdatedAt,
	}
}

// StatusMappingModelFromDomain converts a domain mapping to its persistence model
func StatusMappingModelFromDomain(s *integration.StatusMapping) *StatusMappingModel {
	return &StatusMappingModel{
		RawStatus: s.RawStatus,
		Stage:     string(s.Stage),
		UpdatedAt: s.UpdatedAt,
	}
}

// ---------------------------------------------------------------------------
// Sync audit log
// ---------------------------------------------------------------------------

// SyncLogModel is an append-only audit row, one per sync attempt
type SyncLogModel struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	Type       string    `gorm:"type:varchar(20);not null;index:idx_sync_logs_type_time,priority:1"`
	Count      int       `gorm:"not null;default:0"`
	Status     string    `gorm:"type:varchar(20);not null;index"`
	Trigger    string    `gorm:"type:varchar(20);not null;column:trigger_source"`
	Details    string    `gorm:"type:text"`
	DurationMs int64     `gorm:"not null;default:0"`
	LoggedAt   time.Time `gorm:"not null;index;index:idx_sync_logs_type_time,priority:2"`
}

// TableName returns the table name for GORM
func (SyncLogModel) TableName() string {
	return "sync_logs"
}

// ToDomain converts the persistence model to a domain log entry
func (m *SyncLogModel) ToDomain() integration.SyncLogEntry {
	return integration.SyncLogEntry{
		ID:        m.ID,
		Type:      integration.SyncType(m.Type),
		Count:     m.Count,
		Status:    integration.SyncStatus(m.Status),
		Trigger:   integration.Trigger(m.Trigger),
		Details:   m.Details,
		Duration:  time.Duration(m.DurationMs) * time.Millisecond,
		Timestamp: m.LoggedAt,
	}
}

// SyncLogModelFromDomain converts a domain log entry to its persistence model
func SyncLogModelFromDomain(e *integration.SyncLogEntry) *SyncLogModel {
	return &SyncLogModel{
		ID:         e.ID,
		Type:       string(e.Type),
		Count:      e.Count,
		Status:     string(e.Status),
		Trigger:    string(e.Trigger),
		Details:    e.Details,
		DurationMs: e.Duration.Milliseconds(),
		LoggedAt:   e.Timestamp,
	}
}

// ---------------------------------------------------------------------------
// Conflict resolutions
// ---------------------------------------------------------------------------

// ConflictResolutionModel is the audit trail of price decisions
type ConflictResolutionModel struct {
	ID               uint            `gorm:"primaryKey;autoIncrement"`
	SKU              string          `gorm:"type:varchar(64);not null;index;column:sku"`
	WinningSource    string          `gorm:"type:varchar(20);not null"`
	PriceFromSourceA decimal.Decimal `gorm:"type:decimal(18,2);not null;column:price_from_source_a"`
	PriceFromSourceB decimal.Decimal `gorm:"type:decimal(18,2);not null;column:price_from_source_b"`
	PreviousPrice    decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	ResolvedPrice    decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	ResolvedBy       string          `gorm:"type:varchar(100)"`
	ResolvedAt       time.Time       `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (ConflictResolutionModel) TableName() string {
	return "conflict_resolutions"
}

// ToDomain converts the persistence model to a domain resolution
func (m *ConflictResolutionModel) ToDomain() integration.ConflictResolution {
	return integration.ConflictResolution{
		ID:               m.ID,
		SKU:              m.SKU,
		WinningSource:    integration.Source(m.WinningSource),
		PriceFromSourceA: m.PriceFromSourceA,
		PriceFromSourceB: m.PriceFromSourceB,
		PreviousPrice:    m.PreviousPrice,
		ResolvedPrice:    m.ResolvedPrice,
		ResolvedBy:       m.ResolvedBy,
		ResolvedAt:       m.ResolvedAt,
	}
}

// ConflictResolutionModelFromDomain converts a domain resolution to its persistence model
func ConflictResolutionModelFromDomain(r *integration.ConflictResolution) *ConflictResolutionModel {
	return &ConflictResolutionModel{
		ID:               r.ID,
		SKU:              r.SKU,
		WinningSource:    string(r.WinningSource),
		PriceFromSourceA: r.PriceFromSourceA,
		PriceFromSourceB: r.PriceFromSourceB,
		PreviousPrice:    r.PreviousPrice,
		ResolvedPrice:    r.ResolvedPrice,
		ResolvedBy:       r.ResolvedBy,
		ResolvedAt:       r.ResolvedAt,
	}
}

// All lists every model, in dependency order, for AutoMigrate in tests
// and local sqlite runs
func All() []any {
	return []any{
		&OrderModel{},
		&ProductModel{},
		&CustomerModel{},
		&StatusMappingModel{},
		&SyncLogModel{},
		&ConflictResolutionModel{},
	}
}
