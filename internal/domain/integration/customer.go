package integration

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Customer is the canonical contact record. Phone is the dedup key;
// email is never assumed unique across sources.
type Customer struct {
	FullName      string          `json:"full_name"`
	Email         string          `json:"email,omitempty"`
	Phone         string          `json:"phone"`
	TinyContactID string          `json:"tiny_contact_id,omitempty"`
	VndaID        string          `json:"vnda_id,omitempty"`
	LTV           decimal.Decimal `json:"ltv"`
	TotalOrders   int             `json:"total_orders"`
	Tags          []string        `json:"tags"`
	Source        Source          `json:"source"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Normalize trims fields and reduces the phone to its dedup form
func (c *Customer) Normalize() {
	c.FullName = strings.TrimSpace(c.FullName)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.Phone = NormalizePhone(c.Phone)
	c.Tags = MergeTags(nil, c.Tags)
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now
	}
}

// Validate checks the invariants a customer must hold before it is stored
func (c *Customer) Validate() error {
	if c.Phone == "" {
		return fmt.Errorf("%w: phone is required", ErrInvalidCustomer)
	}
	if c.FullName == "" {
		return fmt.Errorf("%w: full name is required", ErrInvalidCustomer)
	}
	return nil
}

// MergeFrom applies a fresher upstream record additively. Contact fields
// are overwritten when the upstream supplies them, external ids and tags
// are never cleared, and LTV / TotalOrders are left to RecomputeStats.
func (c *Customer) MergeFrom(incoming Customer) {
	if incoming.FullName != "" {
		c.FullName = incoming.FullName
	}
	if incoming.Email != "" {
		c.Email = incoming.Email
	}
	if incoming.TinyContactID != "" {
		c.TinyContactID = incoming.TinyContactID
	}
	if incoming.VndaID != "" {
		c.VndaID = incoming.VndaID
	}
	c.Tags = MergeTags(c.Tags, incoming.Tags)
	c.Source = incoming.Source
	c.UpdatedAt = incoming.UpdatedAt
}

// RecomputeStats sets lifetime value and order count from canonical orders.
// A recomputation never lowers LTV below the stored value.
func (c *Customer) RecomputeStats(total decimal.Decimal, orders int) {
	if total.GreaterThan(c.LTV) {
		c.LTV = total
	}
	if orders > c.TotalOrders {
		c.TotalOrders = orders
	}
}

// NormalizePhone keeps digits only and drops the Brazilian country code
// so "+55 (11) 98765-4321" and "11987654321" dedupe to the same key.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if (len(digits) == 12 || len(digits) == 13) && strings.HasPrefix(digits, "55") {
		digits = digits[2:]
	}
	return digits
}

// MergeTags returns the union of existing and incoming tags, keeping the
// order of first appearance. Blank tags are dropped.
func MergeTags(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	merged := make([]string, 0, len(existing)+len(incoming))
	for _, list := range [][]string{existing, incoming} {
		for _, tag := range list {
			tag = strings.TrimSpace(tag)
			if tag == "" {
				continue
			}
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			merged = append(merged, tag)
		}
	}
	return merged
}
