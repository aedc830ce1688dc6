package model

import "github.com/ethereum/go-ethereum/common"

// Venue is a V3 deployment: its factory, swap router and quoter.
type Venue struct {
	Name    string         `json:"name"`
	Factory common.Address `json:"factory"`
	Router  common.Address `json:"router"`
	Quoter  common.Address `json:"quoter"`
}

// Pair is the traded pair. Token0 is the asset being arbitraged, Token1 the
// asset the flash loan is taken in and profit is measured in.
type Pair struct {
	Token0 Token  `json:"token0"`
	Token1 Token  `json:"token1"`
	Fee    uint32 `json:"fee"`
}

// Pool is one venue's pool for the pair. Token0/Token1 follow the pair order;
// OnChainToken0 is the pool's own sorted token0.
type Pool struct {
	Venue         Venue          `json:"venue"`
	Address       common.Address `json:"address"`
	Token0        Token          `json:"token0"`
	Token1        Token          `json:"token1"`
	Fee           uint32         `json:"fee"`
	OnChainToken0 common.Address `json:"on_chain_token0"`
}

// Inverted reports whether the pair's Token0 is the pool's on-chain token1.
func (p Pool) Inverted() bool {
	return p.OnChainToken0 != p.Token0.Address
}
