package model

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Opportunity is an actionable divergence: buy Token0 on Buy, sell it on Sell.
type Opportunity struct {
	Buy           Pool            `json:"buy"`
	Sell          Pool            `json:"sell"`
	BuyPrice      decimal.Decimal `json:"buy_price"`
	SellPrice     decimal.Decimal `json:"sell_price"`
	DivergenceBps decimal.Decimal `json:"divergence_bps"`
}

// TradeDecision is the estimator verdict. Amount and AmountIn are the flash
// loan size in Token1: Amount in token units, AmountIn in base units.
type TradeDecision struct {
	IsProfitable bool            `json:"is_profitable"`
	Amount       decimal.Decimal `json:"amount"`
	AmountIn     *big.Int        `json:"amount_in"`
	Bought       *big.Int        `json:"bought"`
	ExpectedOut  *big.Int        `json:"expected_out"`
	GrossProfit  decimal.Decimal `json:"gross_profit"`
	FlashFee     decimal.Decimal `json:"flash_fee"`
	GasCost      decimal.Decimal `json:"gas_cost"`
	NetProfit    decimal.Decimal `json:"net_profit"`
	Reason       string          `json:"reason,omitempty"`
}
