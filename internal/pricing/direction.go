package pricing

import (
	"github.com/shopspring/decimal"

	"flashArb/internal/model"
)

// Resolve returns nil unless the divergence reaches thresholdBps (inclusive).
// The buy side is always the strictly cheaper venue.
func Resolve(div Divergence, thresholdBps decimal.Decimal) *model.Opportunity {
	if div.Equal || div.Bps.LessThan(thresholdBps) {
		return nil
	}
	if !div.Low.Price.LessThan(div.High.Price) {
		return nil
	}
	return &model.Opportunity{
		Buy:           div.Low.Pool,
		Sell:          div.High.Pool,
		BuyPrice:      div.Low.Price,
		SellPrice:     div.High.Price,
		DivergenceBps: div.Bps,
	}
}
