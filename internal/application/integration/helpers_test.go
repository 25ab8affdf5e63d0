package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/oliehub/backend/internal/domain/integration"
	"github.com/oliehub/backend/internal/domain/shared"
	"github.com/oliehub/backend/internal/infrastructure/cache"
	"github.com/oliehub/backend/internal/infrastructure/persistence"
	"github.com/oliehub/backend/internal/infrastructure/persistence/models"
	"github.com/oliehub/backend/internal/infrastructure/validation"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// ---------------------------------------------------------------------------
// Mock sources
// ---------------------------------------------------------------------------

// MockOrderSource is a mock implementation of OrderSource
type MockOrderSource struct {
	mock.Mock
	name integration.Source
}

func (m *MockOrderSource) Name() integration.Source { return m.name }

func (m *MockOrderSource) FetchOrders(ctx context.Context) ([]integration.Order, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.Order), args.Error(1)
}

// MockProductSource is a mock implementation of ProductSource
type MockProductSource struct {
	mock.Mock
	name integration.Source
}

func (m *MockProductSource) Name() integration.Source { return m.name }

func (m *MockProductSource) FetchProducts(ctx context.Context) ([]integration.Product, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.Product), args.Error(1)
}

// MockCustomerSource is a mock implementation of CustomerSource
type MockCustomerSource struct {
	mock.Mock
	name integration.Source
}

func (m *MockCustomerSource) Name() integration.Source { return m.name }

func (m *MockCustomerSource) FetchCustomers(ctx context.Context) ([]integration.Customer, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.Customer), args.Error(1)
}

// MockPriceSource is a mock implementation of PriceSource
type MockPriceSource struct {
	mock.Mock
	name integration.Source
}

func (m *MockPriceSource) Name() integration.Source { return m.name }

func (m *MockPriceSource) FetchPrices(ctx context.Context) (map[string]decimal.Decimal, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]decimal.Decimal), args.Error(1)
}

// MockHealthChecker is a mock implementation of HealthChecker
type MockHealthChecker struct {
	mock.Mock
	name integration.Source
}

func (m *MockHealthChecker) Name() integration.Source { return m.name }

func (m *MockHealthChecker) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) ofType(eventType string) []shared.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []shared.DomainEvent
	for _, e := range p.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

// recordingRecorder keeps every sync observation
type recordingRecorder struct {
	mu   sync.Mutex
	runs []string
}

func (r *recordingRecorder) RecordSync(_ context.Context, syncType, status string, _ int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, syncType+":"+status)
}

// ---------------------------------------------------------------------------
// Rig
// ---------------------------------------------------------------------------

type rig struct {
	db           *gorm.DB
	repos        Repositories
	mappings     *persistence.GormStatusMappingRepository
	logs         *persistence.GormSyncLogRepository
	logCache     *cache.InMemorySyncLogCache
	gate         *validation.Gate
	publisher    *recordingPublisher
	translator   *StatusTranslator
	engine       *ReconciliationEngine
	orchestrator *SyncOrchestrator
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(models.All()...))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newRig(t *testing.T, sources Sources, log *zap.Logger) *rig {
	t.Helper()
	if log == nil {
		log = zap.NewNop()
	}
	db := setupTestDB(t)
	gate, err := validation.NewGate()
	require.NoError(t, err)

	r := &rig{
		db: db,
		repos: Repositories{
			Orders:      persistence.NewGormOrderRepository(db),
			Products:    persistence.NewGormProductRepository(db),
			Customers:   persistence.NewGormCustomerRepository(db),
			Resolutions: persistence.NewGormConflictResolutionRepository(db),
		},
		mappings:  persistence.NewGormStatusMappingRepository(db),
		logs:      persistence.NewGormSyncLogRepository(db),
		logCache:  cache.NewInMemorySyncLogCache(50),
		gate:      gate,
		publisher: &recordingPublisher{},
	}
	r.translator = NewStatusTranslator(r.mappings, r.publisher, log)
	require.NoError(t, r.translator.Load(context.Background()))
	r.engine = NewReconciliationEngine(r.repos, r.translator, r.publisher, log)
	r.orchestrator = NewSyncOrchestrator(r.engine, gate, sources, r.logs, r.logCache, r.publisher, log)
	return r
}

func (r *rig) logEntries(t *testing.T) []integration.SyncLogEntry {
	t.Helper()
	entries, err := r.logs.All(context.Background())
	require.NoError(t, err)
	return entries
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func strPtr(s string) *string { return &s }

func tinyOrder(id, status, total string) integration.Order {
	o := integration.Order{
		Source:        integration.SourceTiny,
		ExternalID:    id,
		CustomerName:  "Maria Silva",
		CustomerPhone: "11987654321",
		Status:        status,
		TotalValue:    dec(total),
		Items: []integration.OrderItem{{
			Name:      "Bolsa Lille",
			SKU:       "OL-LILLE-KTA",
			Quantity:  1,
			UnitPrice: dec(total),
			Configuration: integration.ItemConfiguration{
				Color:    "caramelo",
				Hardware: "dourado",
			},
		}},
	}
	o.Normalize()
	return o
}

func vndaOrder(code, status, total string) integration.Order {
	o := integration.Order{
		Source:        integration.SourceVnda,
		ExternalID:    code,
		CustomerName:  "Maria Silva",
		CustomerPhone: "11987654321",
		Status:        status,
		TotalValue:    dec(total),
		Items:         []integration.OrderItem{},
	}
	o.Normalize()
	return o
}

func product(sku, price string, source integration.Source) integration.Product {
	p := integration.Product{
		SKU:        sku,
		Name:       "Bolsa " + sku,
		BasePrice:  dec(price),
		StockLevel: 3,
		Source:     source,
	}
	p.Normalize()
	return p
}

func customer(phone, name string, tags ...string) integration.Customer {
	c := integration.Customer{
		FullName: name,
		Phone:    phone,
		Tags:     tags,
		Source:   integration.SourceTiny,
	}
	c.Normalize()
	return c
}
