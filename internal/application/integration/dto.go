package integration

import (
	"time"

	"github.com/oliehub/backend/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Request DTOs
// ---------------------------------------------------------------------------

// SetStatusMappingRequest creates or replaces one translation row
type SetStatusMappingRequest struct {
	RawStatus string `json:"raw_status,omitempty"`
	Stage     string `json:"stage" validate:"required,oneof=corte costura montagem acabamento pronto"`
}

// ResolveConflictRequest picks the source whose price wins
type ResolveConflictRequest struct {
	Source string `json:"source" validate:"required,oneof=tiny vnda"`
}

// UpdateScheduleRequest changes the background sync at runtime
type UpdateScheduleRequest struct {
	Enabled         *bool `json:"enabled,omitempty"`
	IntervalSeconds int   `json:"interval_seconds,omitempty" validate:"omitempty,min=5,max=86400"`
}

// Interval returns the requested interval, zero when unchanged
func (r UpdateScheduleRequest) Interval() time.Duration {
	return time.Duration(r.IntervalSeconds) * time.Second
}

// SyncLogListFilter represents filter options for the audit log
type SyncLogListFilter struct {
	Type     string `form:"type" validate:"omitempty,oneof=orders products customers"`
	Status   string `form:"status" validate:"omitempty,oneof=success error"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"page_size" validate:"omitempty,min=1,max=500"`
}

// ToDomainFilter converts a list filter to domain filter
func (f SyncLogListFilter) ToDomainFilter() integration.SyncLogFilter {
	filter := integration.SyncLogFilter{
		Type:     integration.SyncType(f.Type),
		Status:   integration.SyncStatus(f.Status),
		Page:     f.Page,
		PageSize: f.PageSize,
	}
	filter.Normalize()
	return filter
}

// OrderListFilter represents filter options for listing orders
type OrderListFilter struct {
	Source   string `form:"source" validate:"omitempty,oneof=tiny vnda other"`
	Stage    string `form:"stage" validate:"omitempty,oneof=corte costura montagem acabamento pronto"`
	State    string `form:"state" validate:"omitempty,oneof=open approved in_production shipped delivered canceled"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"page_size" validate:"omitempty,min=1,max=500"`
	SortBy   string `form:"sort_by" validate:"omitempty,oneof=updated_at created_at external_id total_value production_stage"`
	SortDir  string `form:"sort_dir" validate:"omitempty,oneof=asc desc ASC DESC"`
}

// ToDomainFilter converts a list filter to domain filter
func (f OrderListFilter) ToDomainFilter() integration.OrderFilter {
	filter := integration.OrderFilter{
		Source:   integration.Source(f.Source),
		Stage:    integration.ProductionStage(f.Stage),
		State:    integration.LifecycleState(f.State),
		Page:     f.Page,
		PageSize: f.PageSize,
		SortBy:   f.SortBy,
		SortDir:  f.SortDir,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 50
	}
	return filter
}

// ---------------------------------------------------------------------------
// Response DTOs
// ---------------------------------------------------------------------------

// KanbanColumn is one production stage of the workshop board
type KanbanColumn struct {
	Stage  integration.ProductionStage `json:"stage"`
	Count  int64                       `json:"count"`
	Orders []OrderCard                 `json:"orders"`
}

// OrderCard is the compact order shown on the workshop board
type OrderCard struct {
	ID             uint                        `json:"id"`
	Source         integration.Source          `json:"source"`
	ExternalID     string                      `json:"external_id"`
	CrossReference string                      `json:"cross_reference,omitempty"`
	CustomerName   string                      `json:"customer_name"`
	Status         string                      `json:"status"`
	Stage          integration.ProductionStage `json:"stage,omitempty"`
	Lifecycle      string                      `json:"lifecycle"`
	Total          string                      `json:"total"`
	Items          []integration.OrderItem     `json:"items"`
	UpdatedAt      time.Time                   `json:"updated_at"`
}

// ToOrderCard converts a domain Order to a board card
func ToOrderCard(o *integration.Order) OrderCard {
	return OrderCard{
		ID:             o.ID,
		Source:         o.Source,
		ExternalID:     o.ExternalID,
		CrossReference: o.CrossReference,
		CustomerName:   o.CustomerName,
		Status:         o.Status,
		Stage:          o.ProductionStage,
		Lifecycle:      o.Lifecycle.String(),
		Total:          o.DisplayTotal(),
		Items:          o.Items,
		UpdatedAt:      o.UpdatedAt,
	}
}

// ToOrderCards converts a slice of domain Orders to board cards
func ToOrderCards(orders []integration.Order) []OrderCard {
	cards := make([]OrderCard, len(orders))
	for i := range orders {
		cards[i] = ToOrderCard(&orders[i])
	}
	return cards
}
