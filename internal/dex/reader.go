package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"flashArb/internal/model"
)

// Backend is the node surface the Reader needs. *chain.Client satisfies it.
type Backend interface {
	ContractCaller
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// Reader is the read-only chain data source for pools, tokens and quoters.
// Every error it returns wraps model.ErrDataUnavailable.
type Reader struct {
	backend Backend
}

func NewReader(backend Backend) *Reader {
	return &Reader{backend: backend}
}

// Slot0 returns the pool's current sqrtPriceX96 and tick.
func (r *Reader) Slot0(ctx context.Context, pool common.Address) (*big.Int, int32, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return nil, 0, fmt.Errorf("parse pool abi: %w", err)
	}
	values, err := callMethod(ctx, r.backend, pool, poolABI, "slot0", nil)
	if err != nil {
		return nil, 0, unavailable(err)
	}
	if len(values) < 2 {
		return nil, 0, unavailable(fmt.Errorf("slot0 return size %d", len(values)))
	}
	sqrt, err := asBigInt(values[0])
	if err != nil {
		return nil, 0, unavailable(fmt.Errorf("sqrtPriceX96: %w", err))
	}
	tickInt, err := asBigInt(values[1])
	if err != nil {
		return nil, 0, unavailable(fmt.Errorf("tick: %w", err))
	}
	tick, err := int24FromBig(tickInt)
	if err != nil {
		return nil, 0, unavailable(err)
	}
	return sqrt, tick, nil
}

// Liquidity returns the pool's in-range liquidity.
func (r *Reader) Liquidity(ctx context.Context, pool common.Address) (*big.Int, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}
	values, err := callMethod(ctx, r.backend, pool, poolABI, "liquidity", nil)
	if err != nil {
		return nil, unavailable(err)
	}
	liq, err := asBigInt(values[0])
	if err != nil {
		return nil, unavailable(fmt.Errorf("liquidity: %w", err))
	}
	return liq, nil
}

// BalanceOf returns owner's ERC20 balance of token.
func (r *Reader) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	erc20ABI, err := erc20ABIStringInstance()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := callMethod(ctx, r.backend, token, erc20ABI, "balanceOf", nil, owner)
	if err != nil {
		return nil, unavailable(err)
	}
	bal, ok := values[0].(*big.Int)
	if !ok {
		return nil, unavailable(fmt.Errorf("balanceOf unexpected type %T", values[0]))
	}
	return bal, nil
}

// NativeBalance returns the account's native balance in wei.
func (r *Reader) NativeBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	bal, err := r.backend.BalanceAt(ctx, account)
	if err != nil {
		return nil, unavailable(fmt.Errorf("balance of %s: %w", account.Hex(), err))
	}
	return bal, nil
}

// SuggestGasPrice returns the node's gas price in wei.
func (r *Reader) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	price, err := r.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, unavailable(fmt.Errorf("gas price: %w", err))
	}
	return price, nil
}

// QuoteExactInputSingle simulates swapping amountIn of tokenIn through quoter.
func (r *Reader) QuoteExactInputSingle(ctx context.Context, quoter, tokenIn, tokenOut common.Address, fee uint32, amountIn *big.Int) (*big.Int, error) {
	quoterABI, err := QuoterV2ABI()
	if err != nil {
		return nil, fmt.Errorf("parse quoter abi: %w", err)
	}
	params := quoteExactInputSingleParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		AmountIn:          amountIn,
		Fee:               new(big.Int).SetUint64(uint64(fee)),
		SqrtPriceLimitX96: big.NewInt(0),
	}
	values, err := callMethod(ctx, r.backend, quoter, quoterABI, "quoteExactInputSingle", nil, params)
	if err != nil {
		return nil, unavailable(err)
	}
	out, err := asBigInt(values[0])
	if err != nil {
		return nil, unavailable(fmt.Errorf("amountOut: %w", err))
	}
	return out, nil
}

// QuoteExactOutputSingle returns the tokenIn needed to receive amountOut of tokenOut.
func (r *Reader) QuoteExactOutputSingle(ctx context.Context, quoter, tokenIn, tokenOut common.Address, fee uint32, amountOut *big.Int) (*big.Int, error) {
	quoterABI, err := QuoterV2ABI()
	if err != nil {
		return nil, fmt.Errorf("parse quoter abi: %w", err)
	}
	params := quoteExactOutputSingleParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		Amount:            amountOut,
		Fee:               new(big.Int).SetUint64(uint64(fee)),
		SqrtPriceLimitX96: big.NewInt(0),
	}
	values, err := callMethod(ctx, r.backend, quoter, quoterABI, "quoteExactOutputSingle", nil, params)
	if err != nil {
		return nil, unavailable(err)
	}
	in, err := asBigInt(values[0])
	if err != nil {
		return nil, unavailable(fmt.Errorf("amountIn: %w", err))
	}
	return in, nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", model.ErrDataUnavailable, err)
}
