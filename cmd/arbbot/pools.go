package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"flashArb/internal/dex"
	"flashArb/internal/model"
	"flashArb/internal/pricing"
)

// runPools prints the resolved pair with each pool's live price.
func runPools(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()
	a, err := loadApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	oracle := pricing.NewOracle(dex.NewReader(a.client))
	qa, qb, err := oracle.GetPrices(ctx, a.poolA, a.poolB)
	if err != nil {
		return err
	}
	div, err := pricing.Compare(qa, qb)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s / %s fee %d on chain %s\n", a.pair.Token0.Label(), a.pair.Token1.Label(), a.pair.Fee, a.chainID)

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"venue", "pool", "inverted", "price", "liquidity"})
	for _, row := range []struct {
		pool  model.Pool
		quote model.PriceQuote
	}{{a.poolA, qa}, {a.poolB, qb}} {
		table.Append([]string{
			row.pool.Venue.Name,
			row.pool.Address.Hex(),
			fmt.Sprint(row.pool.Inverted()),
			row.quote.Price.StringFixed(8),
			row.quote.Liquidity.String(),
		})
	}
	table.Render()

	fmt.Fprintf(out, "divergence %s bps\n", div.Bps.StringFixed(2))

	if a.store != nil {
		counts, err := a.store.OutcomeCounts(ctx)
		if err != nil {
			return fmt.Errorf("stored outcomes: %w", err)
		}
		renderOutcomes(out, counts)
	}
	return nil
}

// renderOutcomes prints stored cycle counts per outcome in a stable order.
func renderOutcomes(w io.Writer, counts map[model.Outcome]int64) {
	outcomes := make([]string, 0, len(counts))
	var total int64
	for outcome, n := range counts {
		outcomes = append(outcomes, string(outcome))
		total += n
	}
	slices.Sort(outcomes)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"outcome", "cycles"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, outcome := range outcomes {
		table.Append([]string{outcome, strconv.FormatInt(counts[model.Outcome(outcome)], 10)})
	}
	table.SetFooter([]string{"total", strconv.FormatInt(total, 10)})
	table.Render()
}
