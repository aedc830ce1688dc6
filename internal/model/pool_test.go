package model

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

func TestPoolInverted(t *testing.T) {
	weth := Token{Address: common.HexToAddress("0x4200000000000000000000000000000000000006"), Decimals: 18}
	usdc := Token{Address: common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"), Decimals: 6}

	pool := Pool{Token0: weth, Token1: usdc, OnChainToken0: weth.Address}
	if pool.Inverted() {
		t.Fatalf("pool with matching token0 should not be inverted")
	}
	pool.OnChainToken0 = usdc.Address
	if !pool.Inverted() {
		t.Fatalf("pool with swapped token0 should be inverted")
	}
}

func TestOpportunityJSONDecimalStrings(t *testing.T) {
	opp := Opportunity{
		BuyPrice:      decimal.RequireFromString("100.00"),
		SellPrice:     decimal.RequireFromString("101.50"),
		DivergenceBps: decimal.RequireFromString("150"),
	}

	data, err := json.Marshal(opp)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if _, ok := decoded["divergence_bps"].(string); !ok {
		t.Fatalf("divergence_bps should be string")
	}
	if _, ok := decoded["buy_price"].(string); !ok {
		t.Fatalf("buy_price should be string")
	}
}

func TestNewTradeRequest(t *testing.T) {
	weth := Token{Address: common.HexToAddress("0x4200000000000000000000000000000000000006")}
	dai := Token{Address: common.HexToAddress("0x50c5725949A6F0c72E6C4a641F24049A917DB0Cb")}
	buyRouter := common.HexToAddress("0x2626664c2603336E57B271c5C0b26F421741e481")
	sellRouter := common.HexToAddress("0x1b81D678ffb9C0263b24A97847620C99d213eB14")

	opp := Opportunity{
		Buy:  Pool{Venue: Venue{Router: buyRouter}, Token0: weth, Token1: dai, Fee: 500},
		Sell: Pool{Venue: Venue{Router: sellRouter}, Token0: weth, Token1: dai, Fee: 500},
	}
	req := NewTradeRequest(opp, TradeDecision{AmountIn: big.NewInt(10)})

	if req.RouterPath != [2]common.Address{buyRouter, sellRouter} {
		t.Fatalf("router path mismatch: %v", req.RouterPath)
	}
	if req.TokenPath != [2]common.Address{dai.Address, weth.Address} {
		t.Fatalf("token path should borrow the against token first: %v", req.TokenPath)
	}
	if req.Fee != 500 || req.Amount.Int64() != 10 {
		t.Fatalf("request fields mismatch: %+v", req)
	}
}
