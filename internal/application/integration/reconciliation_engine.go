package integration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oliehub/backend/internal/domain/integration"
	"github.com/oliehub/backend/internal/domain/shared"
	"github.com/oliehub/backend/internal/infrastructure/logger"
	"github.com/oliehub/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// UpsertResult reports how many rows reached the canonical store and
// which rows were turned away by the domain invariants.
type UpsertResult struct {
	Count    int                    `json:"count"`
	Rejected []integration.RowIssue `json:"rejected,omitempty"`
	// FailedSources names the sources that could not be read, with the reason
	FailedSources []string `json:"failed_sources,omitempty"`
}

// Repositories groups the canonical store ports used by the engine
type Repositories struct {
	Orders      integration.OrderRepository
	Products    integration.ProductRepository
	Customers   integration.CustomerRepository
	Resolutions integration.ConflictResolutionRepository
}

// ReconciliationEngine merges upstream records into the canonical store
// and surfaces price conflicts between the ERP and the storefront.
type ReconciliationEngine struct {
	repos      Repositories
	translator *StatusTranslator
	publisher  shared.EventPublisher
	logger     *zap.Logger

	priceA integration.PriceSource
	priceB integration.PriceSource

	mu      sync.Mutex
	pending map[string]integration.ConflictRecord

	now func() time.Time
}

// NewReconciliationEngine creates a new ReconciliationEngine
func NewReconciliationEngine(
	repos Repositories,
	translator *StatusTranslator,
	publisher shared.EventPublisher,
	logger *zap.Logger,
) *ReconciliationEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconciliationEngine{
		repos:      repos,
		translator: translator,
		publisher:  publisher,
		logger:     logger.Named("reconciliation"),
		pending:    make(map[string]integration.ConflictRecord),
		now:        time.Now,
	}
}

// SetPriceSources sets the two sides compared by DetectConflicts.
// Diffs are reported as a minus b.
func (e *ReconciliationEngine) SetPriceSources(a, b integration.PriceSource) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.priceA = a
	e.priceB = b
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

// UpsertOrders stores orders keyed on (source, external id). Each order is
// annotated with its stage and lifecycle first; e-commerce orders are
// linked to the ERP order that mirrors them.
func (e *ReconciliationEngine) UpsertOrders(ctx context.Context, orders []integration.Order) (UpsertResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "upsert_orders")
	defer span.End()

	result := UpsertResult{}
	valid := make([]integration.Order, 0, len(orders))
	for i := range orders {
		order := orders[i]
		order.Normalize()
		e.translator.Annotate(&order)
		if err := order.Validate(); err != nil {
			result.Rejected = append(result.Rejected, rowIssue(i, order.Key(), err))
			continue
		}
		valid = append(valid, order)
	}
	if len(valid) == 0 {
		return result, nil
	}

	existing, err := e.repos.Orders.FindByKeys(ctx, valid)
	if err != nil {
		telemetry.RecordError(span, err)
		return result, fmt.Errorf("load stored orders: %w", err)
	}

	valid, err = e.linkCrossReferences(ctx, valid, existing)
	if err != nil {
		telemetry.RecordError(span, err)
		return result, err
	}

	events := make([]shared.DomainEvent, 0)
	for i := range valid {
		order := &valid[i]
		stored, ok := existing[order.Key()]
		if !ok {
			continue
		}
		if order.CrossReference == "" {
			order.CrossReference = stored.CrossReference
		}
		if stored.Lifecycle == order.Lifecycle {
			continue
		}
		if !integration.IsRegularTransition(stored.Lifecycle, order.Lifecycle) {
			logger.Enrich(ctx, e.logger).Warn("irregular lifecycle transition",
				zap.String("order_key", order.Key()),
				zap.String("from", stored.Lifecycle.String()),
				zap.String("to", order.Lifecycle.String()),
			)
		}
		events = append(events, integration.NewOrderLifecycleChangedEvent(*order, stored.Lifecycle))
	}

	count, err := e.repos.Orders.UpsertBatch(ctx, valid)
	if err != nil {
		telemetry.RecordError(span, err)
		return result, fmt.Errorf("upsert orders: %w", err)
	}
	result.Count = count
	e.publish(ctx, events...)

	if _, err := e.RecomputeCustomerStats(ctx, orderPhones(valid)); err != nil {
		e.logger.Warn("failed to recompute customer stats", zap.Error(err))
	}

	telemetry.SetAttributes(span, "orders_count", count, "rejected_count", len(result.Rejected))
	return result, nil
}

// linkCrossReferences copies the ERP's cross reference onto the e-commerce
// order it points at, whether that order is in the batch or already
// stored. Stored orders that gain a link are appended to the batch.
func (e *ReconciliationEngine) linkCrossReferences(
	ctx context.Context,
	orders []integration.Order,
	existing map[string]integration.Order,
) ([]integration.Order, error) {
	inBatch := make(map[string]int, len(orders))
	for i := range orders {
		inBatch[orders[i].Key()] = i
	}

	for i := range orders {
		tinyOrder := orders[i]
		if tinyOrder.Source != integration.SourceTiny || tinyOrder.CrossReference == "" {
			continue
		}
		key := integration.OrderKey(integration.SourceVnda, tinyOrder.CrossReference)
		if pos, ok := inBatch[key]; ok {
			orders[pos].CrossReference = tinyOrder.ExternalID
			continue
		}

		stored, ok := existing[key]
		if !ok {
			found, err := e.repos.Orders.FindByExternalID(ctx, integration.SourceVnda, tinyOrder.CrossReference)
			if errors.Is(err, integration.ErrOrderNotFound) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("load linked order: %w", err)
			}
			stored = *found
		}
		if stored.CrossReference == tinyOrder.ExternalID {
			continue
		}
		stored.CrossReference = tinyOrder.ExternalID
		existing[key] = stored
		inBatch[key] = len(orders)
		orders = append(orders, stored)
	}
	return orders, nil
}

func orderPhones(orders []integration.Order) []string {
	seen := make(map[string]struct{}, len(orders))
	phones := make([]string, 0, len(orders))
	for _, o := range orders {
		if o.CustomerPhone == "" {
			continue
		}
		if _, ok := seen[o.CustomerPhone]; ok {
			continue
		}
		seen[o.CustomerPhone] = struct{}{}
		phones = append(phones, o.CustomerPhone)
	}
	return phones
}

// ---------------------------------------------------------------------------
// Products
// ---------------------------------------------------------------------------

// UpsertProducts stores products keyed on SKU. A stored image URL survives
// an incoming record without one. When a SKU's price was settled by hand
// and the losing source still reports the price it had at that time, the
// settled price is kept.
func (e *ReconciliationEngine) UpsertProducts(ctx context.Context, products []integration.Product) (UpsertResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "upsert_products")
	defer span.End()

	result := UpsertResult{}
	valid := make([]integration.Product, 0, len(products))
	for i := range products {
		product := products[i]
		product.Normalize()
		if err := product.Validate(); err != nil {
			result.Rejected = append(result.Rejected, rowIssue(i, product.SKU, err))
			continue
		}
		valid = append(valid, product)
	}
	if len(valid) == 0 {
		return result, nil
	}

	if err := e.keepResolvedPrices(ctx, valid); err != nil {
		telemetry.RecordError(span, err)
		return result, err
	}

	count, err := e.repos.Products.UpsertBatch(ctx, valid)
	if err != nil {
		telemetry.RecordError(span, err)
		return result, fmt.Errorf("upsert products: %w", err)
	}
	result.Count = count

	telemetry.SetAttributes(span, "products_count", count, "rejected_count", len(result.Rejected))
	return result, nil
}

func (e *ReconciliationEngine) keepResolvedPrices(ctx context.Context, products []integration.Product) error {
	skus := make([]string, len(products))
	for i := range products {
		skus[i] = products[i].SKU
	}
	latest, err := e.repos.Resolutions.LatestBySKU(ctx, skus)
	if err != nil {
		return fmt.Errorf("load conflict resolutions: %w", err)
	}

	for i := range products {
		p := &products[i]
		res, ok := latest[p.SKU]
		if !ok || p.Source == res.WinningSource {
			continue
		}
		if priceAtResolution(res, p.Source).Equal(p.BasePrice) {
			p.BasePrice = res.ResolvedPrice
			p.Source = res.WinningSource
		}
	}
	return nil
}

// priceAtResolution returns what source reported when res was decided.
// The ERP is always side A.
func priceAtResolution(res integration.ConflictResolution, source integration.Source) decimal.Decimal {
	if source == integration.SourceTiny {
		return res.PriceFromSourceA
	}
	return res.PriceFromSourceB
}

// ---------------------------------------------------------------------------
// Customers
// ---------------------------------------------------------------------------

// UpsertCustomers merges customers keyed on phone, then refreshes their
// lifetime value from the stored orders.
func (e *ReconciliationEngine) UpsertCustomers(ctx context.Context, customers []integration.Customer) (UpsertResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "upsert_customers")
	defer span.End()

	result := UpsertResult{}
	valid := make([]integration.Customer, 0, len(customers))
	for i := range customers {
		customer := customers[i]
		customer.Normalize()
		if err := customer.Validate(); err != nil {
			result.Rejected = append(result.Rejected, rowIssue(i, customer.Phone, err))
			continue
		}
		valid = append(valid, customer)
	}
	if len(valid) == 0 {
		return result, nil
	}

	count, err := e.repos.Customers.UpsertBatch(ctx, valid)
	if err != nil {
		telemetry.RecordError(span, err)
		return result, fmt.Errorf("upsert customers: %w", err)
	}
	result.Count = count

	phones := make([]string, len(valid))
	for i := range valid {
		phones[i] = valid[i].Phone
	}
	if _, err := e.RecomputeCustomerStats(ctx, phones); err != nil {
		e.logger.Warn("failed to recompute customer stats", zap.Error(err))
	}

	telemetry.SetAttributes(span, "customers_count", count, "rejected_count", len(result.Rejected))
	return result, nil
}

// RecomputeCustomerStats refreshes LTV and order counts from the stored
// orders. A nil phones slice refreshes every customer.
func (e *ReconciliationEngine) RecomputeCustomerStats(ctx context.Context, phones []string) (int, error) {
	if phones != nil && len(phones) == 0 {
		return 0, nil
	}
	totals, err := e.repos.Orders.TotalsByPhone(ctx, phones)
	if err != nil {
		return 0, fmt.Errorf("sum orders by phone: %w", err)
	}
	if len(totals) == 0 {
		return 0, nil
	}
	return e.repos.Customers.UpdateStats(ctx, totals)
}

// ---------------------------------------------------------------------------
// Conflicts
// ---------------------------------------------------------------------------

// DetectConflicts fetches fresh prices from both sources and returns one
// record per SKU they disagree on. A disagreement that was already settled
// by hand, with both sources still reporting the same prices, is not
// raised again. The result replaces the pending set used by Resolve.
func (e *ReconciliationEngine) DetectConflicts(ctx context.Context) ([]integration.ConflictRecord, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "detect_conflicts")
	defer span.End()

	e.mu.Lock()
	a, b := e.priceA, e.priceB
	e.mu.Unlock()
	if a == nil || b == nil {
		err := integration.NewConfigurationError("", "price sources", "two price sources are required")
		telemetry.RecordError(span, err)
		return nil, err
	}

	snapshots, err := fetchSnapshots(ctx, a, b)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	detected := integration.DetectPriceConflicts(snapshots[0], snapshots[1], e.now())
	skus := make([]string, len(detected))
	for i := range detected {
		skus[i] = detected[i].SKU
	}
	latest, err := e.repos.Resolutions.LatestBySKU(ctx, skus)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("load conflict resolutions: %w", err)
	}

	canonical, err := e.repos.Products.Prices(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("load canonical prices: %w", err)
	}

	conflicts := make([]integration.ConflictRecord, 0, len(detected))
	pending := make(map[string]integration.ConflictRecord, len(detected))
	for _, c := range detected {
		if price, ok := canonical[c.SKU]; ok {
			c.CanonicalPrice = &price
		}
		if res, ok := latest[c.SKU]; ok && c.SettledBy(res) {
			continue
		}
		if product, err := e.repos.Products.FindBySKU(ctx, c.SKU); err == nil {
			c.Name = product.Name
		}
		conflicts = append(conflicts, c)
		pending[c.SKU] = c
	}

	e.mu.Lock()
	e.pending = pending
	e.mu.Unlock()

	logger.Enrich(ctx, e.logger).Info("price conflicts detected",
		zap.Int("count", len(conflicts)),
		zap.Int("suppressed", len(detected)-len(conflicts)),
	)
	telemetry.SetAttributes(span, "conflicts_count", len(conflicts))
	return conflicts, nil
}

func fetchSnapshots(ctx context.Context, sources ...integration.PriceSource) ([]integration.PriceSnapshot, error) {
	snapshots := make([]integration.PriceSnapshot, len(sources))
	errs := make([]error, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src integration.PriceSource) {
			defer wg.Done()
			prices, err := src.FetchPrices(ctx)
			if err != nil {
				errs[i] = err
				return
			}
			snapshots[i] = integration.PriceSnapshot{Source: src.Name(), Prices: prices}
		}(i, src)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return snapshots, nil
}

// Pending returns the conflicts awaiting resolution, sorted by SKU
func (e *ReconciliationEngine) Pending() []integration.ConflictRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	conflicts := make([]integration.ConflictRecord, 0, len(e.pending))
	for _, c := range e.pending {
		conflicts = append(conflicts, c)
	}
	sort.Slice(conflicts, func(i, j int) bool {
		return conflicts[i].SKU < conflicts[j].SKU
	})
	return conflicts
}

// Resolve writes the winning source's price to the canonical product,
// records the decision and drops the SKU from the pending set.
func (e *ReconciliationEngine) Resolve(ctx context.Context, sku string, winning integration.Source) (*integration.ConflictResolution, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "resolve_conflict")
	defer span.End()
	telemetry.SetAttributes(span, "sku", sku, "winning_source", winning.String())

	e.mu.Lock()
	defer e.mu.Unlock()

	conflict, ok := e.pending[sku]
	if !ok {
		return nil, integration.ErrConflictNotFound
	}
	price, err := conflict.PriceFor(winning)
	if err != nil {
		return nil, err
	}

	previous := decimal.Zero
	if product, err := e.repos.Products.FindBySKU(ctx, sku); err == nil {
		previous = product.BasePrice
	} else if !errors.Is(err, integration.ErrProductNotFound) {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("load product: %w", err)
	}

	if err := e.repos.Products.UpdatePrice(ctx, sku, price, winning); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("update price: %w", err)
	}

	resolution := &integration.ConflictResolution{
		SKU:              sku,
		WinningSource:    winning,
		PriceFromSourceA: conflict.PriceFromSourceA,
		PriceFromSourceB: conflict.PriceFromSourceB,
		PreviousPrice:    previous,
		ResolvedPrice:    price,
		ResolvedBy:       logger.GetActor(ctx),
		ResolvedAt:       e.now(),
	}
	if err := e.repos.Resolutions.Append(ctx, resolution); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("record resolution: %w", err)
	}
	delete(e.pending, sku)

	logger.Enrich(ctx, e.logger).Info("conflict resolved",
		zap.String("sku", sku),
		zap.String("winning_source", winning.String()),
		zap.String("previous_price", previous.StringFixed(2)),
		zap.String("resolved_price", price.StringFixed(2)),
	)
	e.publish(ctx, integration.NewConflictResolvedEvent(*resolution))
	return resolution, nil
}

// ListResolutions returns the most recent price decisions
func (e *ReconciliationEngine) ListResolutions(ctx context.Context, limit int) ([]integration.ConflictResolution, error) {
	return e.repos.Resolutions.List(ctx, limit)
}

func (e *ReconciliationEngine) publish(ctx context.Context, events ...shared.DomainEvent) {
	if e.publisher == nil || len(events) == 0 {
		return
	}
	if err := e.publisher.Publish(ctx, events...); err != nil {
		e.logger.Warn("failed to publish events", zap.Error(err))
	}
}

func rowIssue(row int, key string, err error) integration.RowIssue {
	var failure *integration.ValidationFailure
	if errors.As(err, &failure) {
		return integration.RowIssue{Row: row, Key: key, Issues: failure.Issues}
	}
	return integration.RowIssue{
		Row:    row,
		Key:    key,
		Issues: []integration.Issue{{Path: "/", Message: err.Error()}},
	}
}
