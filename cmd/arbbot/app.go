package main

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io/fs"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"flashArb/internal/chain"
	"flashArb/internal/config"
	"flashArb/internal/dex"
	"flashArb/internal/engine"
	"flashArb/internal/executor"
	"flashArb/internal/lock"
	"flashArb/internal/model"
	"flashArb/internal/pricing"
	"flashArb/internal/profit"
	"flashArb/internal/report"
	"flashArb/internal/storage"
	"flashArb/internal/storage/postgres"
)

// app holds everything a command builds from configuration. close releases
// connections in reverse order of creation.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	client  *chain.Client
	chainID *big.Int
	pair    model.Pair
	poolA   model.Pool
	poolB   model.Pool
	store   *postgres.Store
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.logger.Sync()
}

// loadApp reads configuration and resolves the pair. It connects to the node
// and, when configured, to Postgres.
func loadApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := loadEnvFile(envFile, cmd.Flags().Changed("env-file")); err != nil {
		return nil, err
	}
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}

	client, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	a.client = client
	a.closers = append(a.closers, client.Close)

	if cfg.ChainID != 0 {
		a.chainID = new(big.Int).SetUint64(cfg.ChainID)
	} else {
		id, err := client.GetChainID(ctx)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("chain id: %w", err)
		}
		a.chainID = id
	}

	if err := a.resolvePair(ctx); err != nil {
		a.close()
		return nil, err
	}

	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN, a.chainID.Uint64())
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.store = store
		a.closers = append(a.closers, store.Close)
		if err := store.Migrate(ctx); err != nil {
			a.close()
			return nil, err
		}
		if err := store.UpsertPools(ctx, []model.Pool{a.poolA, a.poolB}); err != nil {
			a.close()
			return nil, err
		}
	}

	logger.Info("pair resolved",
		zap.Uint64("chain_id", a.chainID.Uint64()),
		zap.String("arb_for", a.pair.Token0.Label()),
		zap.String("arb_against", a.pair.Token1.Label()),
		zap.String("pool_a", a.poolA.Address.Hex()),
		zap.String("pool_b", a.poolB.Address.Hex()),
	)
	return a, nil
}

// loadEnvFile applies a dotenv file. Only the default file may be missing.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err == nil || (!explicit && errors.Is(err, fs.ErrNotExist)) {
		return nil
	}
	return fmt.Errorf("%w: env file %s: %v", model.ErrConfiguration, path, err)
}

func (a *app) resolvePair(ctx context.Context) error {
	token0, err := dex.FetchTokenMeta(ctx, a.client, common.HexToAddress(a.cfg.ArbFor), a.logger)
	if err != nil {
		return fmt.Errorf("arb-for token: %w", err)
	}
	token1, err := dex.FetchTokenMeta(ctx, a.client, common.HexToAddress(a.cfg.ArbAgainst), a.logger)
	if err != nil {
		return fmt.Errorf("arb-against token: %w", err)
	}
	a.pair = model.Pair{Token0: token0, Token1: token1, Fee: a.cfg.PoolFee}

	a.poolA, err = dex.ResolvePool(ctx, a.client, dex.PoolSpec{
		Venue:    a.cfg.VenueA.ModelVenue(),
		Override: a.cfg.VenueA.PoolOverride(),
	}, a.pair)
	if err != nil {
		return err
	}
	a.poolB, err = dex.ResolvePool(ctx, a.client, dex.PoolSpec{
		Venue:    a.cfg.VenueB.ModelVenue(),
		Override: a.cfg.VenueB.PoolOverride(),
	}, a.pair)
	if err != nil {
		return err
	}
	if a.poolA.Address == a.poolB.Address {
		return fmt.Errorf("%w: both venues resolved to pool %s", model.ErrConfiguration, a.poolA.Address.Hex())
	}
	return nil
}

// coordinator wires the pricing, sizing and execution pipeline.
func (a *app) coordinator(ctx context.Context) (*engine.Coordinator, error) {
	cfg := a.cfg
	reader := dex.NewReader(a.client)

	var key *ecdsa.PrivateKey
	if cfg.PrivateKey != "" {
		parsed, err := executor.ParseKey(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		key = parsed
	}
	var gasPrice *big.Int
	if cfg.GasPriceGwei.IsPositive() {
		gasPrice = cfg.GasPriceGwei.Shift(9).Floor().BigInt()
	}
	exec, err := executor.NewFlashExecutor(executor.Config{
		Contract: common.HexToAddress(cfg.ArbitrageContract),
		Token:    a.pair.Token1.Address,
		Key:      key,
		ChainID:  a.chainID,
		GasLimit: cfg.GasLimit,
		GasPrice: gasPrice,
		DryRun:   !cfg.Execute,
	}, a.client.Backend(), reader, a.logger.Named("executor"))
	if err != nil {
		return nil, err
	}

	estimator := profit.NewEstimator(reader, profit.Params{
		LiquidityRatio: cfg.LiquidityRatio,
		MaxAmount:      cfg.MaxAmount,
		FlashFeeBps:    cfg.FlashFeeBps,
		GasLimit:       cfg.GasLimit,
		GasPriceGwei:   cfg.GasPriceGwei,
		NativeIsArbFor: cfg.NativeIsArbFor,
		NativePrice:    cfg.NativePrice,
		Signer:         exec.Signer(),
	}, a.logger.Named("profit"))

	var sinks []storage.Sink
	if cfg.ReportOut != "" {
		sinks = append(sinks, storage.NewJsonlStorage(cfg.ReportOut))
	}
	if a.store != nil {
		sinks = append(sinks, a.store)
	}

	opts := engine.Options{
		PoolA:        a.poolA,
		PoolB:        a.poolB,
		ThresholdBps: cfg.MinDivergenceBps,
		Prices:       pricing.NewOracle(reader),
		Estimator:    estimator,
		Executor:     exec,
		Reporter: report.New(report.Options{
			Sinks:        sinks,
			Token:        a.pair.Token1,
			NativeSymbol: cfg.NativeSymbol,
			Logger:       a.logger.Named("report"),
		}),
		Logger: a.logger.Named("engine"),
	}

	if cfg.RedisAddr != "" {
		client, err := lock.Dial(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		opts.Guard = lock.NewGuard(client, lock.Key(a.pair), cfg.LockTTL)
	}

	a.logger.Info("pipeline ready",
		zap.Bool("execute", cfg.Execute),
		zap.String("signer", exec.Signer().Hex()),
		zap.String("min_divergence_bps", cfg.MinDivergenceBps.String()),
		zap.Bool("redis_lock", opts.Guard != nil),
		zap.Int("sinks", len(sinks)),
	)
	return engine.New(opts)
}
