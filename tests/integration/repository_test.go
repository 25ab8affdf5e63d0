//go:build integration

package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oliehub/backend/internal/domain/integration"
	"github.com/oliehub/backend/internal/infrastructure/persistence"
)

func TestMain(m *testing.M) {
	code := m.Run()
	CleanupSharedContainer()
	os.Exit(code)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func strPtr(s string) *string { return &s }

func erpOrder(id, status, total string) integration.Order {
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
		Lifecycle:       integration.Lifecycle{State: integration.LifecycleInProduction, Stage: integration.StageCostura},
		ProductionStage: integration.StageCostura,
	}
	o.Normalize()
	return o
}

func TestPostgresOrderUpsert_Idempotent(t *testing.T) {
	tdb := NewTestDB(t)
	ctx := context.Background()
	repo := persistence.NewGormOrderRepository(tdb.DB)

	batch := []integration.Order{erpOrder("1001", "Aprovado", "489.00"), erpOrder("1002", "Faturado", "300.00")}
	for i := 0; i < 2; i++ {
		n, err := repo.UpsertBatch(ctx, batch)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	}

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	updated := erpOrder("1001", "Pronto", "489.00")
	updated.ProductionStage = integration.StagePronto
	_, err = repo.UpsertBatch(ctx, []integration.Order{updated})
	require.NoError(t, err)

	stored, err := repo.FindByExternalID(ctx, integration.SourceTiny, "1001")
	require.NoError(t, err)
	assert.Equal(t, integration.StagePronto, stored.ProductionStage)
	assert.True(t, dec("489.00").Equal(stored.TotalValue))
	require.Len(t, stored.Items, 1)
	assert.Equal(t, "caramelo", stored.Items[0].Configuration.Color)
}

func TestPostgresOrderList_SortedByTotal(t *testing.T) {
	tdb := NewTestDB(t)
	ctx := context.Background()
	repo := persistence.NewGormOrderRepository(tdb.DB)

	_, err := repo.UpsertBatch(ctx, []integration.Order{
		erpOrder("1", "Aprovado", "100.00"),
		erpOrder("2", "Aprovado", "50.00"),
		erpOrder("3", "Aprovado", "75.00"),
	})
	require.NoError(t, err)

	orders, total, err := repo.List(ctx, integration.OrderFilter{Page: 1, PageSize: 10, SortBy: "total_value", SortDir: "desc"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, orders, 3)
	assert.Equal(t, []string{"1", "3", "2"}, []string{orders[0].ExternalID, orders[1].ExternalID, orders[2].ExternalID})
}

func TestPostgresProductUpsert_KeepsImage(t *testing.T) {
	tdb := NewTestDB(t)
	ctx := context.Background()
	repo := persistence.NewGormProductRepository(tdb.DB)

	withImage := integration.Product{SKU: "OL-LILLE-KTA", Name: "Bolsa Lille", BasePrice: dec("489.00"),
		StockLevel: 3, ImageURL: strPtr("https://cdn.example.com/lille.jpg"), Source: integration.SourceVnda}
	_, err := repo.UpsertBatch(ctx, []integration.Product{withImage})
	require.NoError(t, err)

	withoutImage := integration.Product{SKU: "OL-LILLE-KTA", Name: "Bolsa Lille", BasePrice: dec("499.00"),
		StockLevel: 1, Source: integration.SourceTiny}
	_, err = repo.UpsertBatch(ctx, []integration.Product{withoutImage})
	require.NoError(t, err)

	stored, err := repo.FindBySKU(ctx, "OL-LILLE-KTA")
	require.NoError(t, err)
	require.NotNil(t, stored.ImageURL)
	assert.Equal(t, "https://cdn.example.com/lille.jpg", *stored.ImageURL)
	assert.Equal(t, 1, stored.StockLevel)
	assert.True(t, dec("499.00").Equal(stored.BasePrice))
}

func TestPostgresCustomerUpsert_MergesTags(t *testing.T) {
	tdb := NewTestDB(t)
	ctx := context.Background()
	repo := persistence.NewGormCustomerRepository(tdb.DB)

	first := integration.Customer{FullName: "Maria Silva", Phone: "(11) 98765-4321", TinyContactID: "T-1",
		Tags: []string{"vip"}, Source: integration.SourceTiny}
	first.Normalize()
	second := integration.Customer{FullName: "Maria Silva", Phone: "11987654321", VndaID: "V-9",
		Tags: []string{"atacado"}, Source: integration.SourceVnda}
	second.Normalize()

	_, err := repo.UpsertBatch(ctx, []integration.Customer{first})
	require.NoError(t, err)
	_, err = repo.UpsertBatch(ctx, []integration.Customer{second})
	require.NoError(t, err)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	found, err := repo.FindByPhones(ctx, []string{second.Phone})
	require.NoError(t, err)
	stored, ok := found[second.Phone]
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"vip", "atacado"}, stored.Tags)
	assert.Equal(t, "T-1", stored.TinyContactID)
	assert.Equal(t, "V-9", stored.VndaID)
}

func TestPostgresSyncLog_NewestFirst(t *testing.T) {
	tdb := NewTestDB(t)
	ctx := context.Background()
	repo := persistence.NewGormSyncLogRepository(tdb.DB)

	older := integration.NewSuccessLog(integration.SyncTypeOrders, integration.TriggerScheduled, 3, "", time.Second)
	older.Timestamp = time.Now().Add(-time.Hour)
	newer := integration.NewSuccessLog(integration.SyncTypeProducts, integration.TriggerManual, 5, "", time.Second)
	require.NoError(t, repo.Append(ctx, older))
	require.NoError(t, repo.Append(ctx, newer))

	entries, total, err := repo.List(ctx, integration.SyncLogFilter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, entries, 2)
	assert.Equal(t, integration.SyncTypeProducts, entries[0].Type)
	assert.Equal(t, integration.SyncTypeOrders, entries[1].Type)

	filtered, total, err := repo.List(ctx, integration.SyncLogFilter{Type: integration.SyncTypeOrders, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, 3, filtered[0].Count)
}
