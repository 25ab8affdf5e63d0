package integration

import (
	"context"

	"github.com/oliehub/backend/internal/domain/integration"
)

const (
	// boardColumnSize caps the cards returned per stage
	boardColumnSize = 200
	// scanPageSize is the page size used when walking every stored order
	scanPageSize = 500
)

// OrderAnnotator derives the stage and lifecycle of an order from its raw status
type OrderAnnotator interface {
	Annotate(order *integration.Order)
}

// OrderQueryService serves the read side of the canonical orders
type OrderQueryService struct {
	orders    integration.OrderRepository
	annotator OrderAnnotator
}

// NewOrderQueryService creates a new OrderQueryService
func NewOrderQueryService(orders integration.OrderRepository, annotator OrderAnnotator) *OrderQueryService {
	return &OrderQueryService{orders: orders, annotator: annotator}
}

// ListOrders returns a page of orders matching filter
func (s *OrderQueryService) ListOrders(ctx context.Context, filter integration.OrderFilter) ([]integration.Order, int64, error) {
	return s.orders.List(ctx, filter)
}

// Board groups ERP orders in production by stage, in workshop order.
// Stages are translated with the current mapping table, so an edit moves
// cards without waiting for a resync. A non-empty stage limits the board
// to that column.
func (s *OrderQueryService) Board(ctx context.Context, stage integration.ProductionStage) ([]KanbanColumn, error) {
	stages := integration.AllProductionStages()
	if stage != "" {
		if !stage.IsValid() {
			return nil, integration.ErrInvalidStage
		}
		stages = []integration.ProductionStage{stage}
	}

	orders, err := listAll(ctx, s.orders, integration.OrderFilter{
		Source: integration.SourceTiny,
		State:  integration.LifecycleInProduction,
	})
	if err != nil {
		return nil, err
	}

	byStage := make(map[integration.ProductionStage][]integration.Order, len(stages))
	for i := range orders {
		order := orders[i]
		if s.annotator != nil {
			s.annotator.Annotate(&order)
		}
		if order.Lifecycle.State != integration.LifecycleInProduction {
			continue
		}
		byStage[order.ProductionStage] = append(byStage[order.ProductionStage], order)
	}

	columns := make([]KanbanColumn, 0, len(stages))
	for _, st := range stages {
		cards := byStage[st]
		total := int64(len(cards))
		if len(cards) > boardColumnSize {
			cards = cards[:boardColumnSize]
		}
		columns = append(columns, KanbanColumn{Stage: st, Count: total, Orders: ToOrderCards(cards)})
	}
	return columns, nil
}

// listAll pages through every order matching filter
func listAll(ctx context.Context, repo integration.OrderRepository, filter integration.OrderFilter) ([]integration.Order, error) {
	filter.PageSize = scanPageSize
	var all []integration.Order
	for page := 1; ; page++ {
		filter.Page = page
		orders, total, err := repo.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, orders...)
		if len(orders) < scanPageSize || int64(len(all)) >= total {
			return all, nil
		}
	}
}
