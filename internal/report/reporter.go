// Package report logs cycle outcomes, prints balance tables and fans reports
// out to storage sinks.
package report

import (
	"context"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"

	"flashArb/internal/model"
	"flashArb/internal/storage"
)

type Reporter struct {
	sinks  []storage.Sink
	out    io.Writer
	token  model.Token
	native string
	logger *zap.Logger
	mu     sync.Mutex
}

type Options struct {
	Sinks []storage.Sink
	// Out receives balance tables. Defaults to stdout.
	Out io.Writer
	// Token is the tracked flash-loan token.
	Token        model.Token
	NativeSymbol string
	Logger       *zap.Logger
}

func New(opts Options) *Reporter {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Reporter{
		sinks:  opts.Sinks,
		out:    opts.Out,
		token:  opts.Token,
		native: opts.NativeSymbol,
		logger: opts.Logger,
	}
}

// Report logs the cycle, renders balances when a trade ran and writes the
// report to every sink. Sink failures are logged, never returned.
func (r *Reporter) Report(ctx context.Context, report model.CycleReport) {
	fields := []zap.Field{
		zap.String("cycle", report.ID),
		zap.String("outcome", string(report.Outcome)),
		zap.Duration("took", report.FinishedAt.Sub(report.StartedAt)),
	}
	if report.Trigger != nil {
		fields = append(fields, zap.String("venue", report.Trigger.Venue), zap.Uint64("block", report.Trigger.BlockNumber))
	}
	if report.Opportunity != nil {
		fields = append(fields, zap.String("divergence_bps", report.Opportunity.DivergenceBps.String()))
	}
	if report.Decision != nil {
		fields = append(fields, zap.String("net", report.Decision.NetProfit.String()))
	}
	if report.Error != "" {
		fields = append(fields, zap.String("error", report.Error))
	}

	switch report.Outcome {
	case model.OutcomeError, model.OutcomeFailed:
		r.logger.Error("cycle finished", fields...)
	case model.OutcomeReverted:
		r.logger.Warn("cycle finished", fields...)
	case model.OutcomeNoOpportunity:
		r.logger.Debug("cycle finished", fields...)
	default:
		r.logger.Info("cycle finished", fields...)
	}

	if report.Execution != nil {
		r.mu.Lock()
		RenderBalances(r.out, *report.Execution, r.token, r.native)
		r.mu.Unlock()
	}

	for _, sink := range r.sinks {
		if err := sink.PutCycleReport(ctx, report); err != nil {
			r.logger.Warn("store cycle report failed", zap.String("cycle", report.ID), zap.Error(err))
		}
	}
}
