package integration

import (
	"context"
	"fmt"

	"github.com/oliehub/backend/internal/domain/integration"
	"github.com/oliehub/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// StageRefresher rewrites the stored production stage of ERP orders after
// the status mapping table changes. Raw statuses are untouched; only the
// derived columns move.
type StageRefresher struct {
	orders    integration.OrderRepository
	annotator OrderAnnotator
	logger    *zap.Logger
}

// NewStageRefresher creates a new StageRefresher
func NewStageRefresher(orders integration.OrderRepository, annotator OrderAnnotator, logger *zap.Logger) *StageRefresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StageRefresher{orders: orders, annotator: annotator, logger: logger.Named("stage_refresher")}
}

// EventTypes subscribes to mapping edits
func (r *StageRefresher) EventTypes() []string {
	return []string{integration.EventTypeStatusMappingChanged}
}

// Handle refreshes stored stages for any mapping edit
func (r *StageRefresher) Handle(ctx context.Context, _ shared.DomainEvent) error {
	_, err := r.Refresh(ctx)
	return err
}

// Refresh re-translates every ERP order in production and stores the ones
// whose stage changed. It returns the number of rows rewritten.
func (r *StageRefresher) Refresh(ctx context.Context) (int, error) {
	orders, err := listAll(ctx, r.orders, integration.OrderFilter{
		Source: integration.SourceTiny,
		State:  integration.LifecycleInProduction,
	})
	if err != nil {
		return 0, fmt.Errorf("list orders in production: %w", err)
	}

	var changed []integration.Order
	for i := range orders {
		order := orders[i]
		r.annotator.Annotate(&order)
		if order.ProductionStage != orders[i].ProductionStage || order.Lifecycle != orders[i].Lifecycle {
			changed = append(changed, order)
		}
	}

	updated, err := r.orders.UpdateStages(ctx, changed)
	if err != nil {
		return 0, fmt.Errorf("update order stages: %w", err)
	}
	r.logger.Info("order stages refreshed",
		zap.Int("scanned", len(orders)),
		zap.Int("updated", updated),
	)
	return updated, nil
}
