//go:build property

package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/oliehub/backend/internal/domain/integration"
	"github.com/shopspring/decimal"
)

// Property: Translate(s) is one of the five stages for any s
func TestStatusTranslator_Totality(t *testing.T) {
	tr, _, _ := newTranslator(t)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("every status resolves to a known stage", prop.ForAll(
		func(raw string) bool {
			return tr.Translate(raw).IsValid()
		},
		gen.AnyString(),
	))
	properties.Property("translation ignores case and spacing", prop.ForAll(
		func(pad int) bool {
			padding := fmt.Sprintf("%*s", pad, "")
			return tr.Translate(padding+"APROVADO"+padding) == integration.StageCostura
		},
		gen.IntRange(0, 8),
	))

	properties.TestingRun(t)
}

// Property: upserting the same batch twice leaves the same number of rows
func TestReconciliationEngine_IdempotentUpsert(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	statuses := gen.OneConstOf("Aprovado", "Em produção", "Faturado", "Cancelado", "", "desconhecido")

	properties.Property("second upsert is a no-op on row counts", prop.ForAll(
		func(ids []int, status string) bool {
			r := newRig(t, Sources{}, nil)
			ctx := context.Background()

			batch := make([]integration.Order, 0, len(ids))
			distinct := make(map[int]struct{})
			for _, id := range ids {
				batch = append(batch, tinyOrder(fmt.Sprintf("%d", id), status, "100.00"))
				distinct[id] = struct{}{}
			}

			if _, err := r.engine.UpsertOrders(ctx, batch); err != nil {
				return false
			}
			first, err := r.repos.Orders.Count(ctx)
			if err != nil {
				return false
			}
			if _, err := r.engine.UpsertOrders(ctx, batch); err != nil {
				return false
			}
			second, err := r.repos.Orders.Count(ctx)
			if err != nil {
				return false
			}
			return first == second && first == int64(len(distinct))
		},
		gen.SliceOfN(20, gen.IntRange(1, 50)),
		statuses,
	))

	properties.TestingRun(t)
}

// Property: swapping the two sides negates every diff
func TestDetectPriceConflicts_Symmetry(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("diff(a,b) == -diff(b,a)", prop.ForAll(
		func(pa, pb int64) bool {
			a := integration.PriceSnapshot{
				Source: integration.SourceTiny,
				Prices: map[string]decimal.Decimal{"OL-LILLE-KTA": decimal.New(pa, -2)},
			}
			b := integration.PriceSnapshot{
				Source: integration.SourceVnda,
				Prices: map[string]decimal.Decimal{"OL-LILLE-KTA": decimal.New(pb, -2)},
			}
			now := time.Now()
			ab := integration.DetectPriceConflicts(a, b, now)
			ba := integration.DetectPriceConflicts(b, a, now)
			if pa == pb {
				return len(ab) == 0 && len(ba) == 0
			}
			return len(ab) == 1 && len(ba) == 1 && ab[0].Diff.Equal(ba[0].Diff.Neg())
		},
		gen.Int64Range(0, 1_000_000),
		gen.Int64Range(0, 1_000_000),
	))

	properties.TestingRun(t)
}
