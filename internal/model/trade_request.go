package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TradeRequest is the argument set of the arbitrage contract's executeTrade.
type TradeRequest struct {
	RouterPath [2]common.Address `json:"router_path"`
	TokenPath  [2]common.Address `json:"token_path"`
	Fee        uint32            `json:"fee"`
	Amount     *big.Int          `json:"amount"`
}

// NewTradeRequest borrows Token1, buys Token0 on the buy venue and sells it
// back on the sell venue.
func NewTradeRequest(opp Opportunity, decision TradeDecision) TradeRequest {
	return TradeRequest{
		RouterPath: [2]common.Address{opp.Buy.Venue.Router, opp.Sell.Venue.Router},
		TokenPath:  [2]common.Address{opp.Buy.Token1.Address, opp.Buy.Token0.Address},
		Fee:        opp.Buy.Fee,
		Amount:     decision.AmountIn,
	}
}
