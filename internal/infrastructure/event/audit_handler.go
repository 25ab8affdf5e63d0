package event

import (
	"context"

	"github.com/oliehub/backend/internal/domain/integration"
	"github.com/oliehub/backend/internal/domain/shared"
	"github.com/oliehub/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// AuditLogHandler writes every domain event as one structured log line.
// Conflict resolutions and irregular lifecycle transitions are logged at
// warn so they stand out from routine sync completions.
type AuditLogHandler struct {
	logger *zap.Logger
}

// NewAuditLogHandler creates the handler
func NewAuditLogHandler(l *zap.Logger) *AuditLogHandler {
	if l == nil {
		l = zap.NewNop()
	}
	return &AuditLogHandler{logger: l.Named("audit")}
}

// EventTypes subscribes to every event
func (h *AuditLogHandler) EventTypes() []string {
	return nil
}

// Handle logs the event
func (h *AuditLogHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	log := logger.Enrich(ctx, h.logger)
	fields := []zap.Field{
		zap.String("event_id", event.EventID().String()),
		zap.String("event_type", event.EventType()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID()),
		zap.Time("occurred_at", event.OccurredAt()),
	}

	switch e := event.(type) {
	case *integration.ConflictResolvedEvent:
		log.Warn("domain event", append(fields,
			zap.String("sku", e.SKU),
			zap.String("winning_source", string(e.WinningSource)),
			zap.String("previous_price", e.PreviousPrice.StringFixed(2)),
			zap.String("resolved_price", e.ResolvedPrice.StringFixed(2)),
			zap.String("resolved_by", e.ResolvedBy),
		)...)
	case *integration.OrderLifecycleChangedEvent:
		fields = append(fields,
			zap.String("from", e.From.String()),
			zap.String("to", e.To.String()),
			zap.Bool("regular", e.Regular),
		)
		if e.Regular {
			log.Info("domain event", fields...)
		} else {
			log.Warn("domain event", fields...)
		}
	case *integration.SyncCompletedEvent:
		log.Info("domain event", append(fields,
			zap.String("status", string(e.Status)),
			zap.Int("count", e.Count),
			zap.String("trigger", string(e.Trigger)),
		)...)
	default:
		log.Info("domain event", fields...)
	}
	return nil
}

var _ shared.EventHandler = (*AuditLogHandler)(nil)
