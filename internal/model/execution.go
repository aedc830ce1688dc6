package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Balances is a snapshot of the signer's native and Token1 balances.
type Balances struct {
	Native *big.Int `json:"native"`
	Token  *big.Int `json:"token"`
}

// ExecutionResult describes one executor call.
type ExecutionResult struct {
	Before   Balances    `json:"before"`
	After    Balances    `json:"after"`
	GasSpent *big.Int    `json:"gas_spent"`
	TxHash   common.Hash `json:"tx_hash"`
	Success  bool        `json:"success"`
	DryRun   bool        `json:"dry_run"`
}

// NativeDelta is After.Native - Before.Native; negative when gas was paid.
func (r ExecutionResult) NativeDelta() *big.Int {
	return delta(r.Before.Native, r.After.Native)
}

// TokenDelta is After.Token - Before.Token.
func (r ExecutionResult) TokenDelta() *big.Int {
	return delta(r.Before.Token, r.After.Token)
}

func delta(before, after *big.Int) *big.Int {
	if before == nil || after == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Sub(after, before)
}
