// Package engine serializes reactions to pool trade events through the
// price, divergence, sizing and execution pipeline.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"flashArb/internal/model"
	"flashArb/internal/pricing"
)

// ErrBusy is returned by Evaluate when a reaction is already in flight.
var ErrBusy = errors.New("coordinator busy")

type PriceSource interface {
	GetPrices(ctx context.Context, a, b model.Pool) (model.PriceQuote, model.PriceQuote, error)
}

type Estimator interface {
	Estimate(ctx context.Context, opp model.Opportunity) (model.TradeDecision, error)
}

type Executor interface {
	Execute(ctx context.Context, req model.TradeRequest) (model.ExecutionResult, error)
}

// Guard serializes execution across processes. Acquire returns
// model.ErrLockHeld when another holder owns it.
type Guard interface {
	Acquire(ctx context.Context) (func(), error)
}

// Reporter receives one report per reaction.
type Reporter interface {
	Report(ctx context.Context, report model.CycleReport)
}

type Options struct {
	PoolA        model.Pool
	PoolB        model.Pool
	ThresholdBps decimal.Decimal
	Prices       PriceSource
	Estimator    Estimator
	Executor     Executor
	Guard        Guard
	Reporter     Reporter
	Logger       *zap.Logger
}

// Stats are cumulative coordinator counters.
type Stats struct {
	Received uint64
	Dropped  uint64
	Started  uint64
	Outcomes map[model.Outcome]uint64
}

type Coordinator struct {
	poolA, poolB model.Pool
	threshold    decimal.Decimal
	prices       PriceSource
	estimator    Estimator
	executor     Executor
	guard        Guard
	reporter     Reporter
	logger       *zap.Logger

	state    stateCell
	inflight sync.WaitGroup

	received atomic.Uint64
	dropped  atomic.Uint64
	started  atomic.Uint64
	mu       sync.Mutex
	outcomes map[model.Outcome]uint64

	now   func() time.Time
	newID func() string
}

func New(opts Options) (*Coordinator, error) {
	if opts.Prices == nil || opts.Estimator == nil || opts.Executor == nil {
		return nil, fmt.Errorf("%w: coordinator needs prices, estimator and executor", model.ErrConfiguration)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		poolA:     opts.PoolA,
		poolB:     opts.PoolB,
		threshold: opts.ThresholdBps,
		prices:    opts.Prices,
		estimator: opts.Estimator,
		executor:  opts.Executor,
		guard:     opts.Guard,
		reporter:  opts.Reporter,
		logger:    logger,
		outcomes:  make(map[model.Outcome]uint64),
		now:       time.Now,
		newID:     uuid.NewString,
	}, nil
}

func (c *Coordinator) State() State {
	return c.state.load()
}

func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	outcomes := make(map[model.Outcome]uint64, len(c.outcomes))
	for k, v := range c.outcomes {
		outcomes[k] = v
	}
	c.mu.Unlock()
	return Stats{
		Received: c.received.Load(),
		Dropped:  c.dropped.Load(),
		Started:  c.started.Load(),
		Outcomes: outcomes,
	}
}

// Run consumes events until ctx is done or events is closed. An event that
// arrives while a reaction is in flight is dropped. Run waits for the
// in-flight reaction before returning.
func (c *Coordinator) Run(ctx context.Context, events <-chan model.TradeEvent) error {
	defer c.inflight.Wait()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			c.received.Add(1)
			if !c.state.enter() {
				c.dropped.Add(1)
				c.logger.Debug("event dropped",
					zap.String("state", c.State().String()),
					zap.String("venue", ev.Venue),
					zap.Uint64("block", ev.BlockNumber),
				)
				continue
			}
			c.started.Add(1)
			c.inflight.Add(1)
			// the reaction outlives ctx so a submitted trade is always awaited
			rctx := context.WithoutCancel(ctx)
			go func(ev model.TradeEvent) {
				defer c.inflight.Done()
				c.react(rctx, &ev)
			}(ev)
		}
	}
}

// Evaluate runs one reaction synchronously.
func (c *Coordinator) Evaluate(ctx context.Context) (model.CycleReport, error) {
	if !c.state.enter() {
		return model.CycleReport{}, ErrBusy
	}
	c.started.Add(1)
	return c.react(ctx, nil), nil
}

// react must be entered in StateEvaluating. It always leaves the coordinator
// idle. The report is emitted after release, so the next reaction may start
// while sinks are still writing; the Reporter must be safe for concurrent use.
func (c *Coordinator) react(ctx context.Context, trigger *model.TradeEvent) (report model.CycleReport) {
	report = model.CycleReport{
		ID:        c.newID(),
		Trigger:   trigger,
		StartedAt: c.now().UTC(),
	}
	logger := c.logger.With(zap.String("cycle", report.ID))

	defer func() {
		if r := recover(); r != nil {
			report.Outcome = model.OutcomeError
			report.Error = fmt.Sprintf("panic: %v", r)
			logger.Error("reaction panicked", zap.Any("panic", r))
		}
		c.state.release()
		report.FinishedAt = c.now().UTC()
		c.record(report.Outcome)
		if c.reporter != nil {
			c.reporter.Report(ctx, report)
		}
	}()

	c.pipeline(ctx, logger, &report)
	return report
}

func (c *Coordinator) pipeline(ctx context.Context, logger *zap.Logger, report *model.CycleReport) {
	quoteA, quoteB, err := c.prices.GetPrices(ctx, c.poolA, c.poolB)
	if err != nil {
		c.fail(logger, report, "read prices", err)
		return
	}
	div, err := pricing.Compare(quoteA, quoteB)
	if err != nil {
		c.fail(logger, report, "compare prices", err)
		return
	}

	opp := pricing.Resolve(div, c.threshold)
	if opp == nil {
		report.Outcome = model.OutcomeNoOpportunity
		logger.Debug("no opportunity",
			zap.String("price_a", quoteA.Price.String()),
			zap.String("price_b", quoteB.Price.String()),
			zap.String("divergence_bps", div.Bps.String()),
		)
		return
	}
	report.Opportunity = opp
	logger.Info("opportunity",
		zap.String("buy", opp.Buy.Venue.Name),
		zap.String("sell", opp.Sell.Venue.Name),
		zap.String("buy_price", opp.BuyPrice.String()),
		zap.String("sell_price", opp.SellPrice.String()),
		zap.String("divergence_bps", opp.DivergenceBps.String()),
	)

	decision, err := c.estimator.Estimate(ctx, *opp)
	if err != nil {
		c.fail(logger, report, "estimate", err)
		return
	}
	report.Decision = &decision
	if !decision.IsProfitable {
		report.Outcome = model.OutcomeNotProfitable
		logger.Info("not profitable", zap.String("reason", decision.Reason), zap.String("net", decision.NetProfit.String()))
		return
	}

	if c.guard != nil {
		unlock, err := c.guard.Acquire(ctx)
		if errors.Is(err, model.ErrLockHeld) {
			report.Outcome = model.OutcomeSkipped
			report.Error = err.Error()
			logger.Info("execution lock held elsewhere")
			return
		}
		if err != nil {
			c.fail(logger, report, "acquire execution lock", err)
			return
		}
		defer unlock()
	}

	if !c.state.promote() {
		report.Outcome = model.OutcomeError
		report.Error = fmt.Sprintf("unexpected state %s", c.State())
		return
	}

	req := model.NewTradeRequest(*opp, decision)
	result, err := c.executor.Execute(ctx, req)
	report.Execution = &result
	switch {
	case err == nil && result.DryRun:
		report.Outcome = model.OutcomeDryRun
		logger.Info("dry run", zap.String("amount", decision.Amount.String()))
	case err == nil:
		report.Outcome = model.OutcomeExecuted
		logger.Info("trade executed", zap.String("tx", result.TxHash.Hex()), zap.String("token_delta", result.TokenDelta().String()))
	case errors.Is(err, model.ErrRevertedExecution):
		report.Outcome = model.OutcomeReverted
		report.Error = err.Error()
		logger.Warn("trade reverted", zap.String("tx", result.TxHash.Hex()), zap.Error(err))
	default:
		report.Outcome = model.OutcomeFailed
		report.Error = err.Error()
		logger.Error("trade failed", zap.Error(err))
	}
}

// fail records a pipeline error. Data failures count as no opportunity.
func (c *Coordinator) fail(logger *zap.Logger, report *model.CycleReport, op string, err error) {
	report.Error = fmt.Sprintf("%s: %v", op, err)
	if errors.Is(err, model.ErrDataUnavailable) {
		report.Outcome = model.OutcomeNoOpportunity
		logger.Warn("data unavailable", zap.String("op", op), zap.Error(err))
		return
	}
	report.Outcome = model.OutcomeError
	logger.Error("reaction failed", zap.String("op", op), zap.Error(err))
}

func (c *Coordinator) record(outcome model.Outcome) {
	c.mu.Lock()
	c.outcomes[outcome]++
	c.mu.Unlock()
}
