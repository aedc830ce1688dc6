// Package pricing turns live V3 pool state into comparable prices and
// decides whether two venues diverge enough to trade.
package pricing

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"flashArb/internal/model"
)

// PricePrecision is the number of decimal places kept in a normalized price.
const PricePrecision int32 = 18

var q192 = new(big.Int).Lsh(big.NewInt(1), 192)

// PoolState reads live pool state.
type PoolState interface {
	Slot0(ctx context.Context, pool common.Address) (*big.Int, int32, error)
	Liquidity(ctx context.Context, pool common.Address) (*big.Int, error)
}

// Oracle prices pools from slot0.
type Oracle struct {
	state PoolState
	now   func() time.Time
}

func NewOracle(state PoolState) *Oracle {
	return &Oracle{state: state, now: time.Now}
}

// GetPrice reads the pool and returns Token1 per Token0. It never caches.
func (o *Oracle) GetPrice(ctx context.Context, pool model.Pool) (model.PriceQuote, error) {
	liquidity, err := o.state.Liquidity(ctx, pool.Address)
	if err != nil {
		return model.PriceQuote{}, fmt.Errorf("%s liquidity: %w", pool.Venue.Name, err)
	}
	if liquidity.Sign() == 0 {
		return model.PriceQuote{}, fmt.Errorf("%w: %s pool %s has no liquidity", model.ErrDataUnavailable, pool.Venue.Name, pool.Address.Hex())
	}

	sqrtPriceX96, _, err := o.state.Slot0(ctx, pool.Address)
	if err != nil {
		return model.PriceQuote{}, fmt.Errorf("%s slot0: %w", pool.Venue.Name, err)
	}
	price, err := PriceFromSqrtX96(sqrtPriceX96, pool)
	if err != nil {
		return model.PriceQuote{}, err
	}

	return model.PriceQuote{
		Pool:         pool,
		Price:        price,
		SqrtPriceX96: sqrtPriceX96,
		Liquidity:    liquidity,
		At:           o.now().UTC(),
	}, nil
}

// GetPrices reads both pools in the same pass.
func (o *Oracle) GetPrices(ctx context.Context, a, b model.Pool) (model.PriceQuote, model.PriceQuote, error) {
	var quoteA, quoteB model.PriceQuote
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		quoteA, err = o.GetPrice(gctx, a)
		return err
	})
	g.Go(func() error {
		var err error
		quoteB, err = o.GetPrice(gctx, b)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.PriceQuote{}, model.PriceQuote{}, err
	}
	return quoteA, quoteB, nil
}

// PriceFromSqrtX96 converts sqrtPriceX96 into Token1 per Token0 of the pool's
// pair, adjusting for decimals and for pools whose on-chain order is inverted.
func PriceFromSqrtX96(sqrtPriceX96 *big.Int, pool model.Pool) (decimal.Decimal, error) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: %s pool %s has zero sqrtPrice", model.ErrDataUnavailable, pool.Venue.Name, pool.Address.Hex())
	}

	priceX192 := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	scale0 := pow10(pool.Token0.Decimals)
	scale1 := pow10(pool.Token1.Decimals)

	var num, den *big.Int
	if !pool.Inverted() {
		// on-chain token1 per token0 is already the pair orientation
		num = new(big.Int).Mul(priceX192, scale0)
		den = new(big.Int).Mul(q192, scale1)
	} else {
		num = new(big.Int).Mul(q192, scale0)
		den = new(big.Int).Mul(priceX192, scale1)
	}

	return decimal.NewFromBigInt(num, 0).DivRound(decimal.NewFromBigInt(den, 0), PricePrecision), nil
}

func pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}
