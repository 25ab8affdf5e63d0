package integration

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// StatusPending is stored when an upstream order arrives without a status
const StatusPending = "pending"

// ItemConfiguration holds the customization of a single piece
type ItemConfiguration struct {
	Color           string `json:"color"`
	Hardware        string `json:"hardware"`
	Personalization string `json:"personalization,omitempty"`
}

// OrderItem is one line of an order
type OrderItem struct {
	Name          string            `json:"name"`
	SKU           string            `json:"sku,omitempty"`
	Quantity      int               `json:"quantity"`
	UnitPrice     decimal.Decimal   `json:"unit_price"`
	Configuration ItemConfiguration `json:"configuration"`
}

// Order is the canonical representation of a customer order.
// ExternalID values from different sources live in different id spaces;
// CrossReference is the only field that links them.
type Order struct {
	ID              uint            `json:"id,omitempty"`
	Source          Source          `json:"source"`
	ExternalID      string          `json:"external_id"`
	CrossReference  string          `json:"cross_reference,omitempty"`
	CustomerName    string          `json:"customer_name"`
	CustomerEmail   string          `json:"customer_email,omitempty"`
	CustomerPhone   string          `json:"customer_phone,omitempty"`
	Status          string          `json:"status"`
	TotalValue      decimal.Decimal `json:"total_value"`
	Items           []OrderItem     `json:"items"`
	Lifecycle       Lifecycle       `json:"lifecycle"`
	ProductionStage ProductionStage `json:"production_stage,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	// Unparsed names the fields whose upstream value could not be read.
	// An order that carries any is rejected, never stored with a guess.
	Unparsed []string `json:"unparsed,omitempty"`
}

// Normalize applies the canonical defaults: trimmed identifiers and a
// "pending" status when the upstream omitted one.
func (o *Order) Normalize() {
	o.ExternalID = strings.TrimSpace(o.ExternalID)
	o.CrossReference = strings.TrimSpace(o.CrossReference)
	o.CustomerName = strings.TrimSpace(o.CustomerName)
	o.CustomerEmail = strings.TrimSpace(o.CustomerEmail)
	o.CustomerPhone = NormalizePhone(o.CustomerPhone)
	o.Status = strings.TrimSpace(o.Status)
	if o.Status == "" {
		o.Status = StatusPending
	}
	if o.Lifecycle.State == "" {
		o.Lifecycle = Lifecycle{State: LifecycleOpen}
	}
	now := time.Now()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = now
	}
}

// Validate checks the invariants an order must hold before it is stored
func (o *Order) Validate() error {
	if !o.Source.IsValid() {
		return fmt.Errorf("%w: %w", ErrInvalidOrder, ErrInvalidSource)
	}
	if o.ExternalID == "" {
		return fmt.Errorf("%w: external id is required", ErrInvalidOrder)
	}
	if len(o.Unparsed) > 0 {
		return fmt.Errorf("%w: unreadable fields %s", ErrInvalidOrder, strings.Join(o.Unparsed, ", "))
	}
	if o.TotalValue.IsNegative() {
		return fmt.Errorf("%w: total value must not be negative", ErrInvalidOrder)
	}
	if o.Status == "" {
		return fmt.Errorf("%w: status is required", ErrInvalidOrder)
	}
	return nil
}

// Key returns the upsert key of the order: source plus external id
func (o *Order) Key() string {
	return OrderKey(o.Source, o.ExternalID)
}

// DisplayTotal formats the total with two fractional digits
func (o *Order) DisplayTotal() string {
	return o.TotalValue.StringFixed(2)
}

// OrderKey builds the upsert key used to deduplicate orders
func OrderKey(source Source, externalID string) string {
	return string(source) + ":" + externalID
}
