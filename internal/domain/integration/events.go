package integration

import (
	"github.com/oliehub/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeConflictResolved      = "ConflictResolved"
	EventTypeSyncCompleted         = "SyncCompleted"
	EventTypeOrderLifecycleChanged = "OrderLifecycleChanged"
	EventTypeStatusMappingChanged  = "StatusMappingChanged"
)

// Aggregate types
const (
	AggregateTypeProduct       = "Product"
	AggregateTypeOrder         = "Order"
	AggregateTypeSync          = "Sync"
	AggregateTypeStatusMapping = "StatusMapping"
)

// ConflictResolvedEvent is published when an operator picks the winning
// price for a conflicting SKU. It is kept apart from routine sync events.
type ConflictResolvedEvent struct {
	shared.BaseDomainEvent
	SKU              string          `json:"sku"`
	WinningSource    Source          `json:"winning_source"`
	PreviousPrice    decimal.Decimal `json:"previous_price"`
	ResolvedPrice    decimal.Decimal `json:"resolved_price"`
	PriceFromSourceA decimal.Decimal `json:"price_from_source_a"`
	PriceFromSourceB decimal.Decimal `json:"price_from_source_b"`
	ResolvedBy       string          `json:"resolved_by,omitempty"`
}

// NewConflictResolvedEvent creates a ConflictResolvedEvent
func NewConflictResolvedEvent(resolution ConflictResolution) *ConflictResolvedEvent {
	return &ConflictResolvedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeConflictResolved, AggregateTypeProduct, resolution.SKU),
		SKU:              resolution.SKU,
		WinningSource:    resolution.WinningSource,
		PreviousPrice:    resolution.PreviousPrice,
		ResolvedPrice:    resolution.ResolvedPrice,
		PriceFromSourceA: resolution.PriceFromSourceA,
		PriceFromSourceB: resolution.PriceFromSourceB,
		ResolvedBy:       resolution.ResolvedBy,
	}
}

// SyncCompletedEvent is published once per sync attempt
type SyncCompletedEvent struct {
	shared.BaseDomainEvent
	SyncType SyncType   `json:"sync_type"`
	Status   SyncStatus `json:"status"`
	Count    int        `json:"count"`
	Trigger  Trigger    `json:"trigger"`
	Details  string     `json:"details,omitempty"`
}

// NewSyncCompletedEvent creates a SyncCompletedEvent from a log entry
func NewSyncCompletedEvent(entry SyncLogEntry) *SyncCompletedEvent {
	return &SyncCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSyncCompleted, AggregateTypeSync, string(entry.Type)),
		SyncType:        entry.Type,
		Status:          entry.Status,
		Count:           entry.Count,
		Trigger:         entry.Trigger,
		Details:         entry.Details,
	}
}

// OrderLifecycleChangedEvent is published when an upstream signal moves an order
type OrderLifecycleChangedEvent struct {
	shared.BaseDomainEvent
	Source     Source    `json:"source"`
	ExternalID string    `json:"external_id"`
	From       Lifecycle `json:"from"`
	To         Lifecycle `json:"to"`
	Regular    bool      `json:"regular"`
}

// NewOrderLifecycleChangedEvent creates an OrderLifecycleChangedEvent
func NewOrderLifecycleChangedEvent(order Order, from Lifecycle) *OrderLifecycleChangedEvent {
	return &OrderLifecycleChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderLifecycleChanged, AggregateTypeOrder, order.Key()),
		Source:          order.Source,
		ExternalID:      order.ExternalID,
		From:            from,
		To:              order.Lifecycle,
		Regular:         IsRegularTransition(from, order.Lifecycle),
	}
}

// StatusMappingChangedEvent is published when an operator edits the table
type StatusMappingChangedEvent struct {
	shared.BaseDomainEvent
	RawStatus string          `json:"raw_status"`
	Stage     ProductionStage `json:"stage,omitempty"`
	Deleted   bool            `json:"deleted"`
}

// NewStatusMappingChangedEvent creates a StatusMappingChangedEvent
func NewStatusMappingChangedEvent(rawStatus string, stage ProductionStage, deleted bool) *StatusMappingChangedEvent {
	return &StatusMappingChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStatusMappingChanged, AggregateTypeStatusMapping, rawStatus),
		RawStatus:       rawStatus,
		Stage:           stage,
		Deleted:         deleted,
	}
}
