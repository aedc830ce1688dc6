package model

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TradeEvent is a decoded Swap on one of the watched pools. The coordinator
// only needs to know that something changed; the rest is for logging.
type TradeEvent struct {
	Pool         common.Address `json:"pool"`
	Venue        string         `json:"venue"`
	BlockNumber  uint64         `json:"block_number"`
	TxHash       common.Hash    `json:"tx_hash"`
	LogIndex     uint           `json:"log_index"`
	Amount0      *big.Int       `json:"amount0"`
	Amount1      *big.Int       `json:"amount1"`
	SqrtPriceX96 *big.Int       `json:"sqrt_price_x96"`
	Tick         int32          `json:"tick"`
	ReceivedAt   time.Time      `json:"received_at"`
}
