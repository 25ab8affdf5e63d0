package integration

import (
	"context"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Upstream ports
// ---------------------------------------------------------------------------

// OrderSource fetches orders from an upstream system, already mapped to
// the canonical shape but not yet validated.
type OrderSource interface {
	Name() Source
	FetchOrders(ctx context.Context) ([]Order, error)
}

// ProductSource fetches catalog entries from an upstream system
type ProductSource interface {
	Name() Source
	FetchProducts(ctx context.Context) ([]Product, error)
}

// CustomerSource fetches contacts from an upstream system
type CustomerSource interface {
	Name() Source
	FetchCustomers(ctx context.Context) ([]Customer, error)
}

// PriceSource reports current SKU prices for conflict detection
type PriceSource interface {
	Name() Source
	FetchPrices(ctx context.Context) (map[string]decimal.Decimal, error)
}

// HealthChecker pings an upstream for diagnostics
type HealthChecker interface {
	Name() Source
	Ping(ctx context.Context) error
}

// ---------------------------------------------------------------------------
// Repository ports
// ---------------------------------------------------------------------------

// OrderFilter narrows an order listing
type OrderFilter struct {
	Source   Source
	Stage    ProductionStage
	State    LifecycleState
	Page     int
	PageSize int
	// SortBy is a column name checked against a whitelist by the store
	SortBy  string
	SortDir string
}

// OrderRepository persists canonical orders keyed by (source, external id)
type OrderRepository interface {
	// UpsertBatch inserts or updates all orders in one write
	UpsertBatch(ctx context.Context, orders []Order) (int, error)
	// FindByKeys returns stored orders indexed by Order.Key()
	FindByKeys(ctx context.Context, orders []Order) (map[string]Order, error)
	FindByExternalID(ctx context.Context, source Source, externalID string) (*Order, error)
	List(ctx context.Context, filter OrderFilter) ([]Order, int64, error)
	// UpdateStages rewrites only the derived production stage and
	// lifecycle of stored orders, matched by ID
	UpdateStages(ctx context.Context, orders []Order) (int, error)
	Count(ctx context.Context) (int64, error)
	// TotalsByPhone sums total_value and counts orders per customer phone
	TotalsByPhone(ctx context.Context, phones []string) (map[string]CustomerTotals, error)
}

// CustomerTotals aggregates canonical orders of one customer
type CustomerTotals struct {
	Total  decimal.Decimal
	Orders int
}

// ProductRepository persists canonical products keyed by SKU
type ProductRepository interface {
	// UpsertBatch inserts or updates all products in one write, keeping
	// stored image URLs when the incoming record has none
	UpsertBatch(ctx context.Context, products []Product) (int, error)
	FindBySKU(ctx context.Context, sku string) (*Product, error)
	List(ctx context.Context, page, pageSize int) ([]Product, int64, error)
	UpdatePrice(ctx context.Context, sku string, price decimal.Decimal, source Source) error
	// Prices returns the canonical base price of every stored SKU
	Prices(ctx context.Context) (map[string]decimal.Decimal, error)
	Count(ctx context.Context) (int64, error)
}

// CustomerRepository persists canonical customers keyed by phone
type CustomerRepository interface {
	// UpsertBatch merges all customers into stored rows in one transaction.
	// Tags are unioned, external ids are never cleared and LTV/TotalOrders
	// are left untouched.
	UpsertBatch(ctx context.Context, customers []Customer) (int, error)
	// UpdateStats raises LTV and TotalOrders to the given totals; stored
	// values are never lowered
	UpdateStats(ctx context.Context, totals map[string]CustomerTotals) (int, error)
	FindByPhones(ctx context.Context, phones []string) (map[string]Customer, error)
	List(ctx context.Context, page, pageSize int) ([]Customer, int64, error)
	Count(ctx context.Context) (int64, error)
}

// StatusMappingRepository persists the editable translation table
type StatusMappingRepository interface {
	List(ctx context.Context) ([]StatusMapping, error)
	Save(ctx context.Context, mapping *StatusMapping) error
	Delete(ctx context.Context, rawStatus string) error
	ReplaceAll(ctx context.Context, mappings []StatusMapping) error
}

// SyncLogRepository is the durable, unbounded audit store
type SyncLogRepository interface {
	Append(ctx context.Context, entry *SyncLogEntry) error
	List(ctx context.Context, filter SyncLogFilter) ([]SyncLogEntry, int64, error)
	// All streams every entry newest first, for exports
	All(ctx context.Context) ([]SyncLogEntry, error)
}

// SyncLogCache holds the most recent N entries for fast reads
type SyncLogCache interface {
	Push(ctx context.Context, entry SyncLogEntry) error
	Recent(ctx context.Context, limit int) ([]SyncLogEntry, error)
}

// ConflictResolutionRepository stores the audit trail of price decisions
type ConflictResolutionRepository interface {
	Append(ctx context.Context, resolution *ConflictResolution) error
	List(ctx context.Context, limit int) ([]ConflictResolution, error)
	// LatestBySKU returns the most recent resolution per SKU
	LatestBySKU(ctx context.Context, skus []string) (map[string]ConflictResolution, error)
}
