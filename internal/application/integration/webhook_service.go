package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/oliehub/backend/internal/domain/integration"
	"github.com/oliehub/backend/internal/domain/shared"
	"github.com/oliehub/backend/internal/infrastructure/logger"
	"github.com/oliehub/backend/internal/infrastructure/telemetry"
	"github.com/oliehub/backend/internal/infrastructure/validation"
	"go.uber.org/zap"
)

// DefaultWebhookDedupTTL is how long a delivery key is remembered
const DefaultWebhookDedupTTL = 24 * time.Hour

// WebhookService applies storefront deliveries to the canonical store.
// Every delivery is acknowledged; the ack status says what happened.
type WebhookService struct {
	decoder      integration.WebhookDecoder
	gate         *validation.Gate
	engine       *ReconciliationEngine
	orchestrator *SyncOrchestrator
	idempotency  shared.IdempotencyStore
	dedupTTL     time.Duration
	logger       *zap.Logger
}

// NewWebhookService creates a new WebhookService
func NewWebhookService(
	decoder integration.WebhookDecoder,
	gate *validation.Gate,
	engine *ReconciliationEngine,
	orchestrator *SyncOrchestrator,
	idempotency shared.IdempotencyStore,
	dedupTTL time.Duration,
	logger *zap.Logger,
) *WebhookService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dedupTTL <= 0 {
		dedupTTL = DefaultWebhookDedupTTL
	}
	return &WebhookService{
		decoder:      decoder,
		gate:         gate,
		engine:       engine,
		orchestrator: orchestrator,
		idempotency:  idempotency,
		dedupTTL:     dedupTTL,
		logger:       logger.Named("webhook"),
	}
}

// Receive validates, deduplicates and applies one delivery. resource and
// event may be empty, in which case the payload's own fields are used.
// The returned error is informational only: the ack already reflects it.
func (s *WebhookService) Receive(ctx context.Context, resource, event string, payload []byte) (integration.WebhookAck, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "webhook", "receive")
	defer span.End()

	log := logger.Enrich(ctx, s.logger)
	ack := integration.WebhookAck{Resource: resource, Event: event}

	document, err := withHeader(payload, resource, event)
	if err == nil {
		err = s.gate.Validate(validation.SchemaWebhook, document)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		log.Warn("webhook rejected", zap.String("resource", resource), zap.String("event", event), zap.Error(err))
		ack.Status = integration.AckFailed
		ack.Message = integration.UserMessage(err)
		return ack, err
	}

	change, err := s.decoder.Decode(resource, event, payload)
	if err != nil {
		telemetry.RecordError(span, err)
		log.Warn("webhook payload could not be decoded", zap.Error(err))
		ack.Status = integration.AckFailed
		ack.Message = integration.UserMessage(err)
		return ack, err
	}
	ack.Resource, ack.Event = change.Resource, change.Event
	telemetry.SetAttributes(span, "resource", change.Resource, "event", change.Event)

	if change.Ignored {
		log.Info("webhook ignored",
			zap.String("resource", change.Resource),
			zap.String("event", change.Event),
			zap.String("reason", change.Reason),
		)
		ack.Status = integration.AckIgnored
		ack.Message = change.Reason
		return ack, nil
	}

	if s.idempotency != nil {
		processed, err := s.idempotency.IsProcessed(ctx, change.DeliveryKey)
		if err != nil {
			log.Warn("webhook dedup lookup failed", zap.Error(err))
		} else if processed {
			log.Info("duplicate webhook delivery", zap.String("delivery_key", change.DeliveryKey))
			ack.Status = integration.AckDuplicate
			return ack, nil
		}
	}

	syncType, count, err := s.apply(ctx, change)
	if err != nil {
		telemetry.RecordError(span, err)
		ack.Status = integration.AckFailed
		ack.Message = integration.UserMessage(err)
		return ack, err
	}

	if s.idempotency != nil {
		if _, err := s.idempotency.MarkProcessed(ctx, change.DeliveryKey, s.dedupTTL); err != nil {
			log.Warn("failed to mark webhook processed", zap.Error(err))
		}
	}
	ack.Status = integration.AckProcessed
	ack.Message = fmt.Sprintf("%d %s updated", count, syncType)
	return ack, nil
}

// apply validates the decoded rows against the canonical schemas,
// reconciles the admitted ones and writes one audit entry for the delivery
func (s *WebhookService) apply(ctx context.Context, change *integration.WebhookChange) (integration.SyncType, int, error) {
	start := time.Now()

	var (
		syncType integration.SyncType
		result   UpsertResult
		err      error
	)
	switch {
	case change.Order != nil:
		syncType = integration.SyncTypeOrders
		var batch validation.BatchResult[integration.Order]
		batch, err = validation.ValidateBatch(s.gate, validation.SchemaOrder, []integration.Order{*change.Order},
			func(r integration.Order) string { return r.Key() })
		if err == nil {
			result, err = admit(ctx, batch, s.engine.UpsertOrders)
		}
	default:
		syncType = integration.SyncTypeProducts
		var batch validation.BatchResult[integration.Product]
		batch, err = validation.ValidateBatch(s.gate, validation.SchemaProduct, change.Products,
			func(r integration.Product) string { return r.SKU })
		if err == nil {
			result, err = admit(ctx, batch, s.engine.UpsertProducts)
		}
	}
	if result.Count == 0 && len(result.Rejected) > 0 {
		err = rejectedRows(string(syncType), result.Rejected)
	}

	var entry *integration.SyncLogEntry
	if err != nil {
		entry = integration.NewErrorLog(syncType, integration.TriggerWebhook, err, time.Since(start))
	} else {
		details := fmt.Sprintf("%s %s", change.Resource, change.Event)
		if n := len(result.Rejected); n > 0 {
			details += fmt.Sprintf(", %d rows rejected by validation", n)
		}
		entry = integration.NewSuccessLog(syncType, integration.TriggerWebhook, result.Count, details, time.Since(start))
	}
	if s.orchestrator != nil {
		s.orchestrator.record(ctx, entry)
	}
	return syncType, result.Count, err
}

// rejectedRows folds row issues into one failure, paths prefixed by row key
func rejectedRows(schema string, rows []integration.RowIssue) *integration.ValidationFailure {
	failure := &integration.ValidationFailure{Schema: schema}
	for _, row := range rows {
		for _, issue := range row.Issues {
			if row.Key != "" {
				issue.Path = row.Key + issue.Path
			}
			failure.Issues = append(failure.Issues, issue)
		}
	}
	return failure
}

// withHeader decodes payload and fills in resource and event when the
// delivery carried them outside the body
func withHeader(payload []byte, resource, event string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var document map[string]any
	if err := dec.Decode(&document); err != nil {
		return nil, fmt.Errorf("%w: webhook payload: %v", integration.ErrValidationFailure, err)
	}
	if document == nil {
		return nil, fmt.Errorf("%w: webhook payload is empty", integration.ErrValidationFailure)
	}
	if _, ok := document["resource"]; !ok && strings.TrimSpace(resource) != "" {
		document["resource"] = resource
	}
	if _, ok := document["event"]; !ok && strings.TrimSpace(event) != "" {
		document["event"] = event
	}
	return document, nil
}
