package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/oliehub/backend/internal/domain/integration"
	"github.com/oliehub/backend/internal/infrastructure/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

func TestReconciliationEngine_UpsertOrders_Idempotent(t *testing.T) {
	r := newRig(t, Sources{}, nil)
	ctx := context.Background()
	batch := []integration.Order{
		tinyOrder("1001", "Aprovado", "489.00"),
		tinyOrder("1002", "Em produção", "978.00"),
		vndaOrder("V-77", "confirmed", "489.00"),
	}

	first, err := r.engine.UpsertOrders(ctx, batch)
	require.NoError(t, err)
	count1, err := r.repos.Orders.Count(ctx)
	require.NoError(t, err)

	second, err := r.engine.UpsertOrders(ctx, batch)
	require.NoError(t, err)
	count2, err := r.repos.Orders.Count(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, first.Count)
	assert.Equal(t, first.Count, second.Count)
	assert.Equal(t, int64(3), count1)
	assert.Equal(t, count1, count2)
	assert.Empty(t, r.publisher.ofType(integration.EventTypeOrderLifecycleChanged))
}

func TestReconciliationEngine_UpsertOrders_AnnotatesStage(t *testing.T) {
	r := newRig(t, Sources{}, nil)
	ctx := context.Background()

	_, err := r.engine.UpsertOrders(ctx, []integration.Order{tinyOrder("1001", "Aprovado", "489.00")})
	require.NoError(t, err)

	stored, err := r.repos.Orders.FindByExternalID(ctx, integration.SourceTiny, "1001")
	require.NoError(t, err)
	assert.Equal(t, "Aprovado", stored.Status)
	assert.Equal(t, integration.StageCostura, stored.ProductionStage)
	assert.Equal(t, integration.LifecycleInProduction, stored.Lifecycle.State)
}

func TestReconciliationEngine_UpsertOrders_RejectsInvalidRows(t *testing.T) {
	r := newRig(t, Sources{}, nil)
	ctx := context.Background()

	broken := tinyOrder("", "Aprovado", "10.00")
	result, err := r.engine.UpsertOrders(ctx, []integration.Order{tinyOrder("1001", "Aprovado", "489.00"), broken})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Count)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, 1, result.Rejected[0].Row)
	require.NotEmpty(t, result.Rejected[0].Issues)
	assert.Contains(t, result.Rejected[0].Issues[0].Message, "external id")
}

func TestReconciliationEngine_UpsertOrders_LinksCrossReference(t *testing.T) {
	r := newRig(t, Sources{}, nil)
	ctx := context.Background()

	// storefront order stored first, ERP mirror arrives later
	_, err := r.engine.UpsertOrders(ctx, []integration.Order{vndaOrder("V-77", "paid", "489.00")})
	require.NoError(t, err)

	erp := tinyOrder("1001", "Aprovado", "489.00")
	erp.CrossReference = "V-77"
	result, err := r.engine.UpsertOrders(ctx, []integration.Order{erp})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)

	linked, err := r.repos.Orders.FindByExternalID(ctx, integration.SourceVnda, "V-77")
	require.NoError(t, err)
	assert.Equal(t, "1001", linked.CrossReference)

	// a later storefront delivery without the link keeps it
	_, err = r.engine.UpsertOrders(ctx, []integration.Order{vndaOrder("V-77", "shipped", "489.00")})
	require.NoError(t, err)
	linked, err = r.repos.Orders.FindByExternalID(ctx, integration.SourceVnda, "V-77")
	require.NoError(t, err)
	assert.Equal(t, "1001", linked.CrossReference)
	assert.Equal(t, integration.LifecycleShipped, linked.Lifecycle.State)
}

func TestReconciliationEngine_UpsertOrders_LinksWithinBatch(t *testing.T) {
	r := newRig(t, Sources{}, nil)
	ctx := context.Background()

	erp := tinyOrder("1001", "Aprovado", "489.00")
	erp.CrossReference = "V-77"
	_, err := r.engine.UpsertOrders(ctx, []integration.Order{erp, vndaOrder("V-77", "paid", "489.00")})
	require.NoError(t, err)

	linked, err := r.repos.Orders.FindByExternalID(ctx, integration.SourceVnda, "V-77")
	require.NoError(t, err)
	assert.Equal(t, "1001", linked.CrossReference)
}

func TestReconciliationEngine_UpsertOrders_LifecycleEvents(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r := newRig(t, Sources{}, zap.New(core))
	ctx := context.Background()

	_, err := r.engine.UpsertOrders(ctx, []integration.Order{tinyOrder("1001", "Enviado", "489.00")})
	require.NoError(t, err)

	// shipped back to in production is applied but reported
	_, err = r.engine.UpsertOrders(ctx, []integration.Order{tinyOrder("1001", "Aprovado", "489.00")})
	require.NoError(t, err)

	events := r.publisher.ofType(integration.EventTypeOrderLifecycleChanged)
	require.Len(t, events, 1)
	changed := events[0].(*integration.OrderLifecycleChangedEvent)
	assert.Equal(t, integration.LifecycleShipped, changed.From.State)
	assert.Equal(t, integration.LifecycleInProduction, changed.To.State)
	assert.False(t, changed.Regular)

	warned := logs.FilterMessage("irregular lifecycle transition").All()
	require.Len(t, warned, 1)
	assert.Equal(t, "tiny:1001", warned[0].ContextMap()["order_key"])

	stored, err := r.repos.Orders.FindByExternalID(ctx, integration.SourceTiny, "1001")
	require.NoError(t, err)
	assert.Equal(t, integration.StageCostura, stored.ProductionStage)
}

func TestReconciliationEngine_UpsertOrders_RecomputesCustomerStats(t *testing.T) {
	r := newRig(t, Sources{}, nil)
	ctx := context.Background()

	_, err := r.engine.UpsertCustomers(ctx, []integration.Customer{customer("11987654321", "Maria Silva")})
	require.NoError(t, err)

	mirrored := vndaOrder("V-77", "paid", "489.00")
	erp := tinyOrder("1001", "Aprovado", "489.00")
	erp.CrossReference = "V-77"
	_, err = r.engine.UpsertOrders(ctx, []integration.Order{
		erp,
		mirrored,
		tinyOrder("1002", "Em produção", "300.00"),
		tinyOrder("1003", "Cancelado", "1000.00"),
	})
	require.NoError(t, err)

	stored, err := r.repos.Customers.FindByPhones(ctx, []string{"11987654321"})
	require.NoError(t, err)
	c := stored["11987654321"]
	assert.Equal(t, "789.00", c.LTV.StringFixed(2))
	assert.Equal(t, 2, c.TotalOrders)
}

// ---------------------------------------------------------------------------
// Products
// ---------------------------------------------------------------------------

func TestReconciliationEngine_UpsertProducts_KeepsImage(t *testing.T) {
	r := newRig(t, Sources{}, nil)
	ctx := context.Background()

	withImage := product("OL-LILLE-KTA", "489.00", integration.SourceVnda)
	withImage.ImageURL = strPtr("https://cdn.example.com/lille.jpg")
	_, err := r.engine.UpsertProducts(ctx, []integration.Product{withImage})
	require.NoError(t, err)

	_, err = r.engine.UpsertProducts(ctx, []integration.Product{product("OL-LILLE-KTA", "499.00", integration.SourceTiny)})
	require.NoError(t, err)

	stored, err := r.repos.Products.FindBySKU(ctx, "OL-LILLE-KTA")
	require.NoError(t, err)
	require.NotNil(t, stored.ImageURL)
	assert.Equal(t, "https://cdn.example.com/lille.jpg", *stored.ImageURL)
	assert.Equal(t, "499.00", stored.BasePrice.StringFixed(2))
}

func TestReconciliationEngine_UpsertProducts_RejectsInvalidRows(t *testing.T) {
	r := newRig(t, Sources{}, nil)

	bad := product("OL-BAD", "10.00", integration.SourceTiny)
	bad.StockLevel = -1
	result, err := r.engine.UpsertProducts(context.Background(), []integration.Product{bad})
	require.NoError(t, err)
	assert.Zero(t, result.Count)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, "OL-BAD", result.Rejected[0].Key)
}

// ---------------------------------------------------------------------------
// Customers
// ---------------------------------------------------------------------------

func TestReconciliationEngine_UpsertCustomers_MergesByPhone(t *testing.T) {
	r := newRig(t, Sources{}, nil)
	ctx := context.Background()

	fromERP := customer("+55 (11) 98765-4321", "Maria Silva", "vip")
	fromERP.TinyContactID = "c-1"
	_, err := r.engine.UpsertCustomers(ctx, []integration.Customer{fromERP})
	require.NoError(t, err)

	fromStore := customer("11987654321", "Maria S.", "newsletter")
	fromStore.Source = integration.SourceVnda
	fromStore.VndaID = "v-9"
	result, err := r.engine.UpsertCustomers(ctx, []integration.Customer{fromStore})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Count)

	count, err := r.repos.Customers.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	stored, err := r.repos.Customers.FindByPhones(ctx, []string{"11987654321"})
	require.NoError(t, err)
	c := stored["11987654321"]
	assert.Equal(t, "c-1", c.TinyContactID)
	assert.Equal(t, "v-9", c.VndaID)
	assert.ElementsMatch(t, []string{"vip", "newsletter"}, c.Tags)
}

// ---------------------------------------------------------------------------
// Conflicts
// ---------------------------------------------------------------------------

func priceSources(a, b map[string]decimal.Decimal) (*MockPriceSource, *MockPriceSource) {
	tiny := &MockPriceSource{name: integration.SourceTiny}
	tiny.On("FetchPrices", mock.Anything).Return(a, nil)
	vnda := &MockPriceSource{name: integration.SourceVnda}
	vnda.On("FetchPrices", mock.Anything).Return(b, nil)
	return tiny, vnda
}

func TestReconciliationEngine_ConflictRoundTrip(t *testing.T) {
	r := newRig(t, Sources{}, nil)
	ctx := context.Background()

	_, err := r.engine.UpsertProducts(ctx, []integration.Product{product("OL-LILLE-KTA", "489.00", integration.SourceTiny)})
	require.NoError(t, err)

	tiny, vnda := priceSources(
		map[string]decimal.Decimal{"OL-LILLE-KTA": dec("489.00"), "OL-ONLY-TINY": dec("10.00"), "OL-SAME": dec("50.00")},
		map[string]decimal.Decimal{"OL-LILLE-KTA": dec("499.00"), "OL-ONLY-VNDA": dec("20.00"), "OL-SAME": dec("50")},
	)
	r.engine.SetPriceSources(tiny, vnda)

	conflicts, err := r.engine.DetectConflicts(ctx)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	c := conflicts[0]
	assert.Equal(t, "OL-LILLE-KTA", c.SKU)
	assert.Equal(t, "Bolsa OL-LILLE-KTA", c.Name)
	assert.Equal(t, "-10.00", c.Diff.StringFixed(2))
	assert.Equal(t, integration.SourceTiny, c.SourceA)
	assert.Equal(t, integration.SourceVnda, c.SourceB)
	require.NotNil(t, c.CanonicalPrice)
	assert.Equal(t, "489.00", c.CanonicalPrice.StringFixed(2))
	assert.Len(t, r.engine.Pending(), 1)

	resolveCtx := logger.WithActor(ctx, "ana@olie.com.br")
	resolution, err := r.engine.Resolve(resolveCtx, "OL-LILLE-KTA", integration.SourceVnda)
	require.NoError(t, err)
	assert.Equal(t, "489.00", resolution.PreviousPrice.StringFixed(2))
	assert.Equal(t, "499.00", resolution.ResolvedPrice.StringFixed(2))
	assert.Equal(t, "ana@olie.com.br", resolution.ResolvedBy)

	stored, err := r.repos.Products.FindBySKU(ctx, "OL-LILLE-KTA")
	require.NoError(t, err)
	assert.Equal(t, "499.00", stored.BasePrice.StringFixed(2))
	assert.Empty(t, r.engine.Pending())

	events := r.publisher.ofType(integration.EventTypeConflictResolved)
	require.Len(t, events, 1)
	assert.Equal(t, "OL-LILLE-KTA", events[0].AggregateID())

	// the settled disagreement is not raised again
	conflicts, err = r.engine.DetectConflicts(ctx)
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	history, err := r.engine.ListResolutions(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestReconciliationEngine_ResolvedPriceSurvivesResync(t *testing.T) {
	r := newRig(t, Sources{}, nil)
	ctx := context.Background()

	_, err := r.engine.UpsertProducts(ctx, []integration.Product{product("OL-LILLE-KTA", "489.00", integration.SourceTiny)})
	require.NoError(t, err)
	tiny, vnda := priceSources(
		map[string]decimal.Decimal{"OL-LILLE-KTA": dec("489.00")},
		map[string]decimal.Decimal{"OL-LILLE-KTA": dec("499.00")},
	)
	r.engine.SetPriceSources(tiny, vnda)
	_, err = r.engine.DetectConflicts(ctx)
	require.NoError(t, err)
	_, err = r.engine.Resolve(ctx, "OL-LILLE-KTA", integration.SourceVnda)
	require.NoError(t, err)

	// ERP still reports the losing price
	_, err = r.engine.UpsertProducts(ctx, []integration.Product{product("OL-LILLE-KTA", "489.00", integration.SourceTiny)})
	require.NoError(t, err)
	stored, err := r.repos.Products.FindBySKU(ctx, "OL-LILLE-KTA")
	require.NoError(t, err)
	assert.Equal(t, "499.00", stored.BasePrice.StringFixed(2))

	// a new ERP price is taken
	_, err = r.engine.UpsertProducts(ctx, []integration.Product{product("OL-LILLE-KTA", "459.00", integration.SourceTiny)})
	require.NoError(t, err)
	stored, err = r.repos.Products.FindBySKU(ctx, "OL-LILLE-KTA")
	require.NoError(t, err)
	assert.Equal(t, "459.00", stored.BasePrice.StringFixed(2))
}

func TestReconciliationEngine_ConflictReturnsWhenCanonicalMoves(t *testing.T) {
	r := newRig(t, Sources{}, nil)
	ctx := context.Background()

	_, err := r.engine.UpsertProducts(ctx, []integration.Product{product("OL-LILLE-KTA", "489.00", integration.SourceTiny)})
	require.NoError(t, err)
	tiny, vnda := priceSources(
		map[string]decimal.Decimal{"OL-LILLE-KTA": dec("489.00"), "OL-NEW": dec("10.00")},
		map[string]decimal.Decimal{"OL-LILLE-KTA": dec("499.00"), "OL-NEW": dec("12.00")},
	)
	r.engine.SetPriceSources(tiny, vnda)
	_, err = r.engine.DetectConflicts(ctx)
	require.NoError(t, err)
	_, err = r.engine.Resolve(ctx, "OL-LILLE-KTA", integration.SourceVnda)
	require.NoError(t, err)

	// the stored price is moved away from the decided value
	_, err = r.engine.UpsertProducts(ctx, []integration.Product{product("OL-LILLE-KTA", "459.00", integration.SourceTiny)})
	require.NoError(t, err)

	conflicts, err := r.engine.DetectConflicts(ctx)
	require.NoError(t, err)
	require.Len(t, conflicts, 2)
	assert.Equal(t, "OL-LILLE-KTA", conflicts[0].SKU)
	require.NotNil(t, conflicts[0].CanonicalPrice)
	assert.Equal(t, "459.00", conflicts[0].CanonicalPrice.StringFixed(2))
	assert.Equal(t, "OL-NEW", conflicts[1].SKU)
	assert.Nil(t, conflicts[1].CanonicalPrice, "SKU not stored yet")
}

func TestReconciliationEngine_Resolve_Errors(t *testing.T) {
	r := newRig(t, Sources{}, nil)
	ctx := context.Background()

	_, err := r.engine.Resolve(ctx, "OL-UNKNOWN", integration.SourceVnda)
	assert.ErrorIs(t, err, integration.ErrConflictNotFound)

	_, err = r.engine.UpsertProducts(ctx, []integration.Product{product("OL-LILLE-KTA", "489.00", integration.SourceTiny)})
	require.NoError(t, err)
	tiny, vnda := priceSources(
		map[string]decimal.Decimal{"OL-LILLE-KTA": dec("489.00")},
		map[string]decimal.Decimal{"OL-LILLE-KTA": dec("499.00")},
	)
	r.engine.SetPriceSources(tiny, vnda)
	_, err = r.engine.DetectConflicts(ctx)
	require.NoError(t, err)

	_, err = r.engine.Resolve(ctx, "OL-LILLE-KTA", integration.SourceOther)
	assert.ErrorIs(t, err, integration.ErrInvalidSource)
	assert.Len(t, r.engine.Pending(), 1)
}

func TestReconciliationEngine_DetectConflicts_Errors(t *testing.T) {
	r := newRig(t, Sources{}, nil)
	ctx := context.Background()

	_, err := r.engine.DetectConflicts(ctx)
	assert.ErrorIs(t, err, integration.ErrConfiguration)

	tiny := &MockPriceSource{name: integration.SourceTiny}
	tiny.On("FetchPrices", mock.Anything).Return(nil,
		integration.NewUpstreamError(integration.SourceTiny, integration.KindTimeout, "timeout", errors.New("deadline")))
	vnda := &MockPriceSource{name: integration.SourceVnda}
	vnda.On("FetchPrices", mock.Anything).Return(map[string]decimal.Decimal{}, nil)
	r.engine.SetPriceSources(tiny, vnda)

	_, err = r.engine.DetectConflicts(ctx)
	assert.ErrorIs(t, err, integration.ErrTimeout)
	tiny.AssertExpectations(t)
	vnda.AssertExpectations(t)
}
