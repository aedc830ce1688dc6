package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"flashArb/internal/model"
)

// BpsScale converts a ratio into basis points.
var BpsScale = decimal.NewFromInt(10_000)

const bpsPrecision int32 = 8

// Divergence is the normalized difference between two quotes.
type Divergence struct {
	Bps   decimal.Decimal
	Low   model.PriceQuote
	High  model.PriceQuote
	Equal bool
}

// Compare returns |pA - pB| / min(pA, pB) in basis points. The magnitude does
// not depend on argument order; Low is the cheaper quote.
func Compare(a, b model.PriceQuote) (Divergence, error) {
	if !a.Price.IsPositive() || !b.Price.IsPositive() {
		return Divergence{}, fmt.Errorf("%w: non-positive price %s / %s", model.ErrDataUnavailable, a.Price, b.Price)
	}

	low, high := a, b
	if b.Price.LessThan(a.Price) {
		low, high = b, a
	}
	if low.Price.Equal(high.Price) {
		return Divergence{Bps: decimal.Zero, Low: a, High: b, Equal: true}, nil
	}

	diff := high.Price.Sub(low.Price)
	bps := diff.Mul(BpsScale).DivRound(low.Price, bpsPrecision)
	return Divergence{Bps: bps, Low: low, High: high}, nil
}
