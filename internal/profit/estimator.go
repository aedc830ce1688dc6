// Package profit sizes a candidate arbitrage and decides whether it clears
// fees and gas.
package profit

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"flashArb/internal/model"
)

var bps = decimal.NewFromInt(10_000)

// ChainReader is the slice of the chain data source the estimator needs.
type ChainReader interface {
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)
	NativeBalance(ctx context.Context, account common.Address) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	QuoteExactInputSingle(ctx context.Context, quoter, tokenIn, tokenOut common.Address, fee uint32, amountIn *big.Int) (*big.Int, error)
	QuoteExactOutputSingle(ctx context.Context, quoter, tokenIn, tokenOut common.Address, fee uint32, amountOut *big.Int) (*big.Int, error)
}

// Params configures sizing and cost accounting.
type Params struct {
	// LiquidityRatio is the share of the buy pool's Token0 balance to target.
	LiquidityRatio decimal.Decimal
	// MaxAmount caps the flash loan in Token1 units. Zero disables the cap.
	MaxAmount   decimal.Decimal
	FlashFeeBps decimal.Decimal
	GasLimit    uint64
	// GasPriceGwei overrides eth_gasPrice when positive.
	GasPriceGwei decimal.Decimal
	// NativeIsArbFor prices gas with the sell venue price of Token0.
	NativeIsArbFor bool
	// NativePrice is Token1 per native coin when NativeIsArbFor is false.
	NativePrice decimal.Decimal
	Signer      common.Address
}

type Estimator struct {
	reader ChainReader
	params Params
	logger *zap.Logger
}

func NewEstimator(reader ChainReader, params Params, logger *zap.Logger) *Estimator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Estimator{reader: reader, params: params, logger: logger}
}

// Estimate sizes the trade against buy-side depth, quotes both legs and nets
// out the flash fee and gas. Data failures produce a not-profitable decision
// with a reason rather than an error.
func (e *Estimator) Estimate(ctx context.Context, opp model.Opportunity) (model.TradeDecision, error) {
	decision, err := e.estimate(ctx, opp)
	if err != nil {
		if errors.Is(err, model.ErrDataUnavailable) {
			e.logger.Debug("estimate data unavailable", zap.Error(err))
			return model.TradeDecision{Reason: err.Error()}, nil
		}
		return model.TradeDecision{}, err
	}
	return decision, nil
}

func (e *Estimator) estimate(ctx context.Context, opp model.Opportunity) (model.TradeDecision, error) {
	buy, sell := opp.Buy, opp.Sell
	token0, token1 := buy.Token0, buy.Token1

	depth, err := e.reader.BalanceOf(ctx, token0.Address, buy.Address)
	if err != nil {
		return model.TradeDecision{}, fmt.Errorf("buy-side depth: %w", err)
	}
	target := decimal.NewFromBigInt(depth, 0).Mul(e.params.LiquidityRatio).Floor().BigInt()
	if target.Sign() <= 0 {
		return model.TradeDecision{Reason: fmt.Sprintf("%s pool holds no %s", buy.Venue.Name, token0.Label())}, nil
	}

	bought := target
	amountIn, err := e.reader.QuoteExactOutputSingle(ctx, buy.Venue.Quoter, token1.Address, token0.Address, buy.Fee, target)
	if err != nil {
		return model.TradeDecision{}, fmt.Errorf("quote buy leg: %w", err)
	}
	if limit := e.maxAmountIn(token1); limit != nil && amountIn.Cmp(limit) > 0 {
		amountIn = limit
		bought, err = e.reader.QuoteExactInputSingle(ctx, buy.Venue.Quoter, token1.Address, token0.Address, buy.Fee, amountIn)
		if err != nil {
			return model.TradeDecision{}, fmt.Errorf("quote capped buy leg: %w", err)
		}
	}

	expectedOut, err := e.reader.QuoteExactInputSingle(ctx, sell.Venue.Quoter, token0.Address, token1.Address, sell.Fee, bought)
	if err != nil {
		return model.TradeDecision{}, fmt.Errorf("quote sell leg: %w", err)
	}

	gasWei, err := e.gasCostWei(ctx)
	if err != nil {
		return model.TradeDecision{}, err
	}

	in := units(amountIn, token1.Decimals)
	out := units(expectedOut, token1.Decimals)
	gross := out.Sub(in)
	flashFee := in.Mul(e.params.FlashFeeBps).Div(bps)
	gasCost := e.gasInToken1(gasWei, opp.SellPrice)
	net := gross.Sub(flashFee).Sub(gasCost)

	decision := model.TradeDecision{
		Amount:      in,
		AmountIn:    amountIn,
		Bought:      bought,
		ExpectedOut: expectedOut,
		GrossProfit: gross,
		FlashFee:    flashFee,
		GasCost:     gasCost,
		NetProfit:   net,
	}

	e.logger.Debug("estimated trade",
		zap.String("buy", buy.Venue.Name),
		zap.String("sell", sell.Venue.Name),
		zap.String("amount_in", in.String()),
		zap.String("expected_out", out.String()),
		zap.String("net", net.String()),
	)

	if !net.IsPositive() {
		decision.Reason = fmt.Sprintf("net %s %s after fee and gas", net.StringFixed(6), token1.Label())
		return decision, nil
	}

	native, err := e.reader.NativeBalance(ctx, e.params.Signer)
	if err != nil {
		return model.TradeDecision{}, fmt.Errorf("signer balance: %w", err)
	}
	if native.Cmp(gasWei) < 0 {
		decision.Reason = fmt.Sprintf("signer balance %s wei below gas cost %s wei", native, gasWei)
		return decision, nil
	}

	decision.IsProfitable = true
	return decision, nil
}

func (e *Estimator) maxAmountIn(token model.Token) *big.Int {
	if !e.params.MaxAmount.IsPositive() {
		return nil
	}
	return e.params.MaxAmount.Shift(int32(token.Decimals)).Floor().BigInt()
}

func (e *Estimator) gasCostWei(ctx context.Context) (*big.Int, error) {
	var price *big.Int
	if e.params.GasPriceGwei.IsPositive() {
		price = e.params.GasPriceGwei.Shift(9).Floor().BigInt()
	} else {
		suggested, err := e.reader.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("gas price: %w", err)
		}
		price = suggested
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(e.params.GasLimit), price), nil
}

func (e *Estimator) gasInToken1(gasWei *big.Int, sellPrice decimal.Decimal) decimal.Decimal {
	native := units(gasWei, 18)
	if e.params.NativeIsArbFor {
		return native.Mul(sellPrice)
	}
	return native.Mul(e.params.NativePrice)
}

func units(amount *big.Int, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(amount, -int32(decimals))
}
