package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"flashArb/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// Store persists resolved pools and every cycle that found an opportunity.
type Store struct {
	pool    *pgxpool.Pool
	chainID uint64
}

func NewStore(ctx context.Context, dsn string, chainID uint64) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, chainID: chainID}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the tables if they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// UpsertPools inserts or refreshes pool metadata.
func (s *Store) UpsertPools(ctx context.Context, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		batch.Queue(`
			INSERT INTO pools (
				chain_id, pool_address, venue, token0, token1, fee, on_chain_token0, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
			ON CONFLICT (chain_id, pool_address)
			DO UPDATE SET
				venue = EXCLUDED.venue,
				token0 = EXCLUDED.token0,
				token1 = EXCLUDED.token1,
				fee = EXCLUDED.fee,
				on_chain_token0 = EXCLUDED.on_chain_token0,
				updated_at = now()
		`,
			int64(s.chainID),
			hexLower(pool.Address.Hex()),
			pool.Venue.Name,
			hexLower(pool.Token0.Address.Hex()),
			hexLower(pool.Token1.Address.Hex()),
			int32(pool.Fee),
			hexLower(pool.OnChainToken0.Hex()),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range pools {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// PutCycleReport stores cycles that reached the estimator. Reports without
// an opportunity are skipped.
func (s *Store) PutCycleReport(ctx context.Context, report model.CycleReport) error {
	args, ok := cycleRow(s.chainID, report)
	if !ok {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO arb_cycles (
			id, chain_id, outcome, buy_pool, sell_pool, buy_price, sell_price, divergence_bps,
			amount, net_profit, gas_cost, tx_hash, gas_spent, token_delta, error, trigger_block,
			started_at, finished_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		ON CONFLICT (id) DO NOTHING
	`, args...)
	if err != nil {
		return fmt.Errorf("insert cycle %s: %w", report.ID, err)
	}
	return nil
}

// OutcomeCounts returns how many stored cycles ended in each outcome.
func (s *Store) OutcomeCounts(ctx context.Context) (map[model.Outcome]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT outcome, count(*) FROM arb_cycles WHERE chain_id=$1 GROUP BY outcome`, int64(s.chainID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[model.Outcome]int64)
	for rows.Next() {
		var outcome string
		var n int64
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		out[model.Outcome(outcome)] = n
	}
	if err := rows.Err(); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	return out, nil
}

func cycleRow(chainID uint64, r model.CycleReport) ([]any, bool) {
	if r.Opportunity == nil {
		return nil, false
	}
	opp := r.Opportunity

	var amount, net, gasCost, txHash, gasSpent, tokenDelta, errText *string
	var triggerBlock *int64
	if d := r.Decision; d != nil {
		amount = ptr(d.Amount.String())
		net = ptr(d.NetProfit.String())
		gasCost = ptr(d.GasCost.String())
	}
	if e := r.Execution; e != nil {
		if e.TxHash != (common.Hash{}) {
			txHash = ptr(e.TxHash.Hex())
		}
		if e.GasSpent != nil {
			gasSpent = ptr(e.GasSpent.String())
		}
		tokenDelta = ptr(e.TokenDelta().String())
	}
	if r.Error != "" {
		errText = ptr(r.Error)
	}
	if r.Trigger != nil {
		block := int64(r.Trigger.BlockNumber)
		triggerBlock = &block
	}

	return []any{
		r.ID,
		int64(chainID),
		string(r.Outcome),
		hexLower(opp.Buy.Address.Hex()),
		hexLower(opp.Sell.Address.Hex()),
		opp.BuyPrice.String(),
		opp.SellPrice.String(),
		opp.DivergenceBps.String(),
		amount,
		net,
		gasCost,
		txHash,
		gasSpent,
		tokenDelta,
		errText,
		triggerBlock,
		r.StartedAt,
		r.FinishedAt,
	}, true
}

func ptr(s string) *string {
	return &s
}

func hexLower(s string) string {
	return strings.ToLower(s)
}
