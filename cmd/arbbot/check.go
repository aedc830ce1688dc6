package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"flashArb/internal/model"
)

// runCheck evaluates current prices once and exits non-zero when the cycle
// ends in an error or a failed trade.
func runCheck(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := loadApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	coord, err := a.coordinator(ctx)
	if err != nil {
		return err
	}
	report, err := coord.Evaluate(ctx)
	if err != nil {
		return err
	}

	switch report.Outcome {
	case model.OutcomeError, model.OutcomeFailed, model.OutcomeReverted:
		return fmt.Errorf("cycle %s ended %s: %s", report.ID, report.Outcome, report.Error)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "cycle %s: %s\n", report.ID, report.Outcome)
	return nil
}
