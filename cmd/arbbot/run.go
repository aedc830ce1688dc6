package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"flashArb/internal/dex"
	"flashArb/internal/model"
	"flashArb/internal/watch"
)

func runBot(cmd *cobra.Command, _ []string) error {
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
	decoder, err := dex.NewSwapDecoder([]model.Pool{a.poolA, a.poolB})
	if err != nil {
		return err
	}
	feed := watch.NewFeed(a.client, decoder, watch.Config{
		PollInterval: a.cfg.PollInterval,
		BatchSize:    a.cfg.BatchSize,
		MaxRetries:   a.cfg.MaxRetries,
		RetryBackoff: a.cfg.RetryBackoff,
		MaxBackoff:   a.cfg.MaxBackoff,
		ForcePoll:    a.cfg.ForcePoll,
	}, a.logger.Named("watch"))

	events := make(chan model.TradeEvent)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(events)
		return feed.Run(gctx, events)
	})
	g.Go(func() error {
		return coord.Run(gctx, events)
	})

	a.logger.Info("watching pools",
		zap.String("venue_a", a.poolA.Venue.Name),
		zap.String("venue_b", a.poolB.Venue.Name),
		zap.Bool("subscribe", a.client.SupportsSubscriptions() && !a.cfg.ForcePoll),
	)
	err = g.Wait()

	stats := coord.Stats()
	fields := []zap.Field{
		zap.Uint64("received", stats.Received),
		zap.Uint64("dropped", stats.Dropped),
		zap.Uint64("cycles", stats.Started),
	}
	for outcome, n := range stats.Outcomes {
		fields = append(fields, zap.Uint64(string(outcome), n))
	}
	a.logger.Info("bot stopped", fields...)

	if a.store != nil {
		// ctx is already cancelled here
		qctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		counts, qerr := a.store.OutcomeCounts(qctx)
		cancel()
		if qerr != nil {
			a.logger.Warn("stored outcomes unavailable", zap.Error(qerr))
		} else {
			stored := make([]zap.Field, 0, len(counts))
			for outcome, n := range counts {
				stored = append(stored, zap.Int64(string(outcome), n))
			}
			a.logger.Info("stored cycle history", stored...)
		}
	}

	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
