package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"flashArb/internal/model"
)

// ContractCaller performs eth_call. *chain.Client satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// PoolSpec is the startup input for resolving a venue's pool.
type PoolSpec struct {
	Venue model.Venue
	// Override skips the factory lookup when set.
	Override common.Address
}

// ResolvePool finds the venue pool for the pair and checks its tokens and fee.
func ResolvePool(ctx context.Context, caller ContractCaller, spec PoolSpec, pair model.Pair) (model.Pool, error) {
	if caller == nil {
		return model.Pool{}, fmt.Errorf("chain client is nil")
	}

	address := spec.Override
	if address == (common.Address{}) {
		factoryABI, err := V3FactoryABI()
		if err != nil {
			return model.Pool{}, fmt.Errorf("parse factory abi: %w", err)
		}
		values, err := callMethod(ctx, caller, spec.Venue.Factory, factoryABI, "getPool", nil,
			pair.Token0.Address, pair.Token1.Address, new(big.Int).SetUint64(uint64(pair.Fee)))
		if err != nil {
			return model.Pool{}, fmt.Errorf("%s factory: %w", spec.Venue.Name, err)
		}
		address, err = asAddress(values[0])
		if err != nil {
			return model.Pool{}, fmt.Errorf("getPool: %w", err)
		}
		if address == (common.Address{}) {
			return model.Pool{}, fmt.Errorf("%s has no pool for %s/%s fee %d",
				spec.Venue.Name, pair.Token0.Label(), pair.Token1.Label(), pair.Fee)
		}
	}

	poolABI, err := V3PoolABI()
	if err != nil {
		return model.Pool{}, fmt.Errorf("parse pool abi: %w", err)
	}

	values, err := callMethod(ctx, caller, address, poolABI, "token0", nil)
	if err != nil {
		return model.Pool{}, err
	}
	token0, err := asAddress(values[0])
	if err != nil {
		return model.Pool{}, fmt.Errorf("token0: %w", err)
	}

	values, err = callMethod(ctx, caller, address, poolABI, "token1", nil)
	if err != nil {
		return model.Pool{}, err
	}
	token1, err := asAddress(values[0])
	if err != nil {
		return model.Pool{}, fmt.Errorf("token1: %w", err)
	}

	values, err = callMethod(ctx, caller, address, poolABI, "fee", nil)
	if err != nil {
		return model.Pool{}, err
	}
	feeInt, err := asBigInt(values[0])
	if err != nil {
		return model.Pool{}, fmt.Errorf("fee: %w", err)
	}
	fee := uint32(feeInt.Uint64())

	a, b := pair.Token0.Address, pair.Token1.Address
	if !((token0 == a && token1 == b) || (token0 == b && token1 == a)) {
		return model.Pool{}, fmt.Errorf("pool %s trades %s/%s, not the configured pair", address.Hex(), token0.Hex(), token1.Hex())
	}
	if fee != pair.Fee {
		return model.Pool{}, fmt.Errorf("pool %s fee %d does not match %d", address.Hex(), fee, pair.Fee)
	}

	return model.Pool{
		Venue:         spec.Venue,
		Address:       address,
		Token0:        pair.Token0,
		Token1:        pair.Token1,
		Fee:           fee,
		OnChainToken0: token0,
	}, nil
}

func callMethod(ctx context.Context, caller ContractCaller, to common.Address, parsed abi.ABI, method string, block *big.Int, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &to, Data: data}
	resp, err := caller.CallContract(ctx, msg, block)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: empty result", method)
	}
	return values, nil
}

// FetchTokenMeta reads decimals, symbol and name of an ERC20. Only decimals
// is required; symbol and name are best effort.
func FetchTokenMeta(ctx context.Context, caller ContractCaller, token common.Address, logger *zap.Logger) (model.Token, error) {
	meta := model.Token{Address: token}
	if caller == nil {
		return meta, fmt.Errorf("chain client is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	erc20ABI, err := erc20ABIStringInstance()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := callMethod(ctx, caller, token, erc20ABI, "decimals", nil)
	if err != nil {
		return meta, fmt.Errorf("token %s: %w", token.Hex(), err)
	}
	if meta.Decimals, err = asUint8(values[0]); err != nil {
		return meta, fmt.Errorf("token %s decimals: %w", token.Hex(), err)
	}

	if meta.Symbol, err = readText(ctx, caller, token, "symbol"); err != nil {
		logger.Debug("symbol call failed", zap.String("token", token.Hex()), zap.Error(err))
	}
	if meta.Name, err = readText(ctx, caller, token, "name"); err != nil {
		logger.Debug("name call failed", zap.String("token", token.Hex()), zap.Error(err))
	}
	return meta, nil
}

// readText calls a string getter, retrying with the bytes32 variant.
func readText(ctx context.Context, caller ContractCaller, token common.Address, method string) (string, error) {
	stringABI, err := erc20ABIStringInstance()
	if err != nil {
		return "", err
	}
	values, err := callMethod(ctx, caller, token, stringABI, method, nil)
	if err == nil {
		if text, ok := values[0].(string); ok {
			return text, nil
		}
	}

	bytes32ABI, abiErr := erc20ABIBytes32Instance()
	if abiErr != nil {
		return "", abiErr
	}
	values, b32Err := callMethod(ctx, caller, token, bytes32ABI, method, nil)
	if b32Err != nil {
		if err == nil {
			err = b32Err
		}
		return "", err
	}
	text, ok := bytes32ToString(values[0])
	if !ok {
		return "", fmt.Errorf("%s: unexpected type %T", method, values[0])
	}
	return text, nil
}
