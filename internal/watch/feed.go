// Package watch turns Swap logs of the watched pools into one ordered stream
// of trade events.
package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"flashArb/internal/model"
)

// LogSource is the node surface the feed reads. *chain.Client satisfies it.
type LogSource interface {
	SupportsSubscriptions() bool
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
	SubscribeLogs(ctx context.Context, addresses []common.Address, topic0 []common.Hash, ch chan<- types.Log) (ethereum.Subscription, error)
}

// Decoder turns a raw log into a trade event. *dex.SwapDecoder satisfies it.
type Decoder interface {
	Addresses() []common.Address
	Topic0() []common.Hash
	Decode(log types.Log) (model.TradeEvent, error)
}

type Config struct {
	PollInterval time.Duration
	// BatchSize bounds one eth_getLogs range while polling.
	BatchSize    uint64
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxBackoff caps the wait between resubscribe attempts.
	MaxBackoff time.Duration
	// ForcePoll disables subscriptions even on streaming endpoints.
	ForcePoll bool
}

type Feed struct {
	source  LogSource
	decoder Decoder
	cfg     Config
	logger  *zap.Logger
}

func NewFeed(source LogSource, decoder Decoder, cfg Config, logger *zap.Logger) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 500
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff < cfg.RetryBackoff {
		cfg.MaxBackoff = max(30*time.Second, cfg.RetryBackoff)
	}
	return &Feed{source: source, decoder: decoder, cfg: cfg, logger: logger}
}

// Run pushes decoded events onto out until ctx is cancelled. It subscribes
// when the endpoint streams and polls block ranges otherwise.
func (f *Feed) Run(ctx context.Context, out chan<- model.TradeEvent) error {
	if f.source == nil || f.decoder == nil {
		return fmt.Errorf("feed needs a log source and decoder")
	}
	if f.source.SupportsSubscriptions() && !f.cfg.ForcePoll {
		return f.subscribe(ctx, out)
	}
	return f.poll(ctx, out)
}

// subscribe fails only when the first subscription cannot be established.
// Once streaming, dropped subscriptions and node outages are retried forever
// with a delay that doubles up to MaxBackoff.
func (f *Feed) subscribe(ctx context.Context, out chan<- model.TradeEvent) error {
	logs := make(chan types.Log, 64)
	sub, err := f.dial(ctx, logs)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe logs: %w", err)
	}

	delay := f.cfg.RetryBackoff
	for {
		f.logger.Info("subscribed to swap logs", zap.Int("pools", len(f.decoder.Addresses())))
		done, forwarded := f.drain(ctx, sub, logs, out)
		sub.Unsubscribe()
		if done {
			return nil
		}
		if forwarded > 0 {
			delay = f.cfg.RetryBackoff
		}

		for {
			if !sleep(ctx, delay) {
				return nil
			}
			delay = min(delay*2, f.cfg.MaxBackoff)
			if sub, err = f.dial(ctx, logs); err == nil {
				break
			}
			if ctx.Err() != nil {
				return nil
			}
			f.logger.Warn("resubscribe failed, still retrying", zap.Error(err), zap.Duration("next", delay))
		}
	}
}

func (f *Feed) dial(ctx context.Context, logs chan<- types.Log) (ethereum.Subscription, error) {
	var sub ethereum.Subscription
	err := withRetry(ctx, f.cfg.MaxRetries, f.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		sub, err = f.source.SubscribeLogs(ctx, f.decoder.Addresses(), f.decoder.Topic0(), logs)
		if err != nil {
			f.logger.Warn("subscribe logs failed", zap.Error(err))
		}
		return err
	})
	return sub, err
}

// drain forwards logs until the subscription fails or ctx ends. done reports
// the latter; forwarded counts the logs read from this subscription.
func (f *Feed) drain(ctx context.Context, sub ethereum.Subscription, logs <-chan types.Log, out chan<- model.TradeEvent) (done bool, forwarded int) {
	for {
		select {
		case <-ctx.Done():
			return true, forwarded
		case err := <-sub.Err():
			f.logger.Warn("log subscription dropped", zap.Error(err))
			return false, forwarded
		case log := <-logs:
			forwarded++
			if !f.emit(ctx, log, out) {
				return true, forwarded
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (f *Feed) poll(ctx context.Context, out chan<- model.TradeEvent) error {
	var next uint64
	err := withRetry(ctx, f.cfg.MaxRetries, f.cfg.RetryBackoff, func(ctx context.Context) error {
		latest, err := f.source.LatestBlockNumber(ctx)
		next = latest + 1
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("get latest block: %w", err)
	}
	f.logger.Info("polling swap logs", zap.Uint64("from", next), zap.Duration("interval", f.cfg.PollInterval))

	ticker := time.NewTicker(f.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		var latest uint64
		err := withRetry(ctx, f.cfg.MaxRetries, f.cfg.RetryBackoff, func(ctx context.Context) error {
			var err error
			latest, err = f.source.LatestBlockNumber(ctx)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			f.logger.Warn("latest block failed", zap.Error(err))
			continue
		}
		if latest < next {
			continue
		}

		ranges, err := SplitRange(next, latest, f.cfg.BatchSize)
		if err != nil {
			return err
		}
		for _, r := range ranges {
			logs, err := f.filterLogsWithRetry(ctx, r)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				// the range is retried on the next tick
				f.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", r.From), zap.Uint64("to", r.To))
				break
			}
			for _, log := range logs {
				if !f.emit(ctx, log, out) {
					return nil
				}
			}
			next = r.To + 1
		}
	}
}

func (f *Feed) filterLogsWithRetry(ctx context.Context, r BlockRange) ([]types.Log, error) {
	var logs []types.Log
	err := withRetry(ctx, f.cfg.MaxRetries, f.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = f.source.FilterLogs(ctx, r.From, r.To, f.decoder.Addresses(), f.decoder.Topic0())
		return err
	})
	return logs, err
}

// emit decodes and forwards one log. It returns false once ctx is done.
func (f *Feed) emit(ctx context.Context, log types.Log, out chan<- model.TradeEvent) bool {
	if log.Removed {
		return true
	}
	event, err := f.decoder.Decode(log)
	if err != nil {
		f.logger.Debug("skip undecodable log", zap.Error(err), zap.String("tx", log.TxHash.Hex()))
		return true
	}
	select {
	case out <- event:
		return true
	case <-ctx.Done():
		return false
	}
}
