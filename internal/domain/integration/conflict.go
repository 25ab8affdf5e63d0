package integration

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ConflictRecord is a price disagreement between the two sources for one SKU.
// It is derived on demand and never persisted.
type ConflictRecord struct {
	SKU              string          `json:"sku"`
	Name             string          `json:"name,omitempty"`
	SourceA          Source          `json:"source_a"`
	SourceB          Source          `json:"source_b"`
	PriceFromSourceA decimal.Decimal `json:"price_from_source_a"`
	PriceFromSourceB decimal.Decimal `json:"price_from_source_b"`
	Diff             decimal.Decimal `json:"diff"`
	// CanonicalPrice is the stored price, nil when the SKU is not stored yet
	CanonicalPrice *decimal.Decimal `json:"canonical_price,omitempty"`
	DetectedAt     time.Time        `json:"detected_at"`
}

// SettledBy reports whether res already decided this disagreement: same
// prices on both sides and the stored price still at the decided value
func (c ConflictRecord) SettledBy(res ConflictResolution) bool {
	if !res.PriceFromSourceA.Equal(c.PriceFromSourceA) || !res.PriceFromSourceB.Equal(c.PriceFromSourceB) {
		return false
	}
	return c.CanonicalPrice == nil || c.CanonicalPrice.Equal(res.ResolvedPrice)
}

// PriceFor returns the price reported by the given source
func (c ConflictRecord) PriceFor(source Source) (decimal.Decimal, error) {
	switch source {
	case c.SourceA:
		return c.PriceFromSourceA, nil
	case c.SourceB:
		return c.PriceFromSourceB, nil
	default:
		return decimal.Zero, ErrInvalidSource
	}
}

// PriceSnapshot is a set of prices keyed by SKU as reported by one source
type PriceSnapshot struct {
	Source Source
	Prices map[string]decimal.Decimal
}

// DetectPriceConflicts compares the SKUs known to both snapshots with
// exact decimal equality and returns one record per disagreement, sorted
// by SKU. Diff is PriceFromSourceA minus PriceFromSourceB.
func DetectPriceConflicts(a, b PriceSnapshot, now time.Time) []ConflictRecord {
	conflicts := make([]ConflictRecord, 0)
	for sku, priceA := range a.Prices {
		priceB, ok := b.Prices[sku]
		if !ok || priceA.Equal(priceB) {
			continue
		}
		conflicts = append(conflicts, ConflictRecord{
			SKU:              sku,
			SourceA:          a.Source,
			SourceB:          b.Source,
			PriceFromSourceA: priceA,
			PriceFromSourceB: priceB,
			Diff:             priceA.Sub(priceB),
			DetectedAt:       now,
		})
	}
	sort.Slice(conflicts, func(i, j int) bool {
		return conflicts[i].SKU < conflicts[j].SKU
	})
	return conflicts
}

// ConflictResolution is the durable audit trail of a human price decision
type ConflictResolution struct {
	ID               uint            `json:"id"`
	SKU              string          `json:"sku"`
	WinningSource    Source          `json:"winning_source"`
	PriceFromSourceA decimal.Decimal `json:"price_from_source_a"`
	PriceFromSourceB decimal.Decimal `json:"price_from_source_b"`
	PreviousPrice    decimal.Decimal `json:"previous_price"`
	ResolvedPrice    decimal.Decimal `json:"resolved_price"`
	ResolvedBy       string          `json:"resolved_by,omitempty"`
	ResolvedAt       time.Time       `json:"resolved_at"`
}
