package model

import "github.com/ethereum/go-ethereum/common"

// Token captures ERC20 metadata resolved once at startup.
type Token struct {
	Address  common.Address `json:"address"`
	Decimals uint8          `json:"decimals"`
	Symbol   string         `json:"symbol"`
	Name     string         `json:"name"`
}

// Label returns the symbol, or the address when the token has no symbol.
func (t Token) Label() string {
	if t.Symbol != "" {
		return t.Symbol
	}
	return t.Address.Hex()
}
