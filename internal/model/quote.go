package model

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// PriceQuote is a pool price of Token1 per Token0, decimals normalized.
type PriceQuote struct {
	Pool         Pool            `json:"pool"`
	Price        decimal.Decimal `json:"price"`
	SqrtPriceX96 *big.Int        `json:"sqrt_price_x96"`
	Liquidity    *big.Int        `json:"liquidity"`
	At           time.Time       `json:"at"`
}
