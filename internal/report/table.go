package report

import (
	"io"
	"math/big"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"flashArb/internal/model"
)

const nativeDecimals = 18

// RenderBalances writes the before/after balance summary of one execution.
func RenderBalances(w io.Writer, result model.ExecutionResult, token model.Token, nativeSymbol string) {
	if nativeSymbol == "" {
		nativeSymbol = "ETH"
	}
	spent := new(big.Int).Neg(result.NativeDelta())

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Balance", "Value"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.Append([]string{nativeSymbol + " before", format(result.Before.Native, nativeDecimals)})
	table.Append([]string{nativeSymbol + " after", format(result.After.Native, nativeDecimals)})
	table.Append([]string{nativeSymbol + " spent (gas)", format(spent, nativeDecimals)})
	table.Append([]string{token.Label() + " before", format(result.Before.Token, token.Decimals)})
	table.Append([]string{token.Label() + " after", format(result.After.Token, token.Decimals)})
	table.Append([]string{token.Label() + " gained/lost", format(result.TokenDelta(), token.Decimals)})
	table.Render()
}

func format(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "-"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}
