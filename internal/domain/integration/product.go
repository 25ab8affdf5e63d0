package integration

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product is the canonical SKU-level catalog entry. SKU is the only
// identifier both sources agree on.
type Product struct {
	SKU        string          `json:"sku"`
	Name       string          `json:"name"`
	BasePrice  decimal.Decimal `json:"base_price"`
	StockLevel int             `json:"stock_level"`
	ImageURL   *string         `json:"image_url"`
	Source     Source          `json:"source"`
	UpdatedAt  time.Time       `json:"updated_at"`
	// Unparsed names the fields whose upstream value could not be read
	Unparsed []string `json:"unparsed,omitempty"`
}

// Normalize trims identifiers and drops blank image URLs
func (p *Product) Normalize() {
	p.SKU = strings.TrimSpace(p.SKU)
	p.Name = strings.TrimSpace(p.Name)
	if p.ImageURL != nil && strings.TrimSpace(*p.ImageURL) == "" {
		p.ImageURL = nil
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}
}

// Validate checks the invariants a product must hold before it is stored
func (p *Product) Validate() error {
	if p.SKU == "" {
		return fmt.Errorf("%w: sku is required", ErrInvalidProduct)
	}
	if len(p.Unparsed) > 0 {
		return fmt.Errorf("%w: unreadable fields %s", ErrInvalidProduct, strings.Join(p.Unparsed, ", "))
	}
	if p.StockLevel < 0 {
		return fmt.Errorf("%w: stock level must not be negative", ErrInvalidProduct)
	}
	if p.BasePrice.IsNegative() {
		return fmt.Errorf("%w: base price must not be negative", ErrInvalidProduct)
	}
	return nil
}

// PriceKnown reports whether BasePrice was read from the upstream
func (p *Product) PriceKnown() bool {
	for _, field := range p.Unparsed {
		if field == "base_price" {
			return false
		}
	}
	return true
}

// MergeFrom applies a fresher upstream record. Every field is overwritten
// except ImageURL, which keeps the last known good value when the
// incoming record has none.
func (p *Product) MergeFrom(incoming Product) {
	p.Name = incoming.Name
	p.BasePrice = incoming.BasePrice
	p.StockLevel = incoming.StockLevel
	p.Source = incoming.Source
	p.UpdatedAt = incoming.UpdatedAt
	if incoming.ImageURL != nil {
		url := *incoming.ImageURL
		p.ImageURL = &url
	}
}
