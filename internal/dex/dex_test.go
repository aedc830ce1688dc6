package dex

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"flashArb/internal/model"
)

type callKey struct {
	to       common.Address
	selector [4]byte
}

type fakeCaller struct {
	responses map[callKey][]byte
	calls     []ethereum.CallMsg
	native    *big.Int
	gasPrice  *big.Int
	err       error
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{responses: make(map[callKey][]byte)}
}

func (f *fakeCaller) set(t *testing.T, to common.Address, parsed abi.ABI, method string, outputs ...interface{}) {
	t.Helper()
	m, ok := parsed.Methods[method]
	if !ok {
		t.Fatalf("unknown method %s", method)
	}
	data, err := m.Outputs.Pack(outputs...)
	if err != nil {
		t.Fatalf("pack %s outputs: %v", method, err)
	}
	var sel [4]byte
	copy(sel[:], m.ID)
	f.responses[callKey{to: to, selector: sel}] = data
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls = append(f.calls, msg)
	if f.err != nil {
		return nil, f.err
	}
	var sel [4]byte
	copy(sel[:], msg.Data[:4])
	resp, ok := f.responses[callKey{to: *msg.To, selector: sel}]
	if !ok {
		return nil, fmt.Errorf("execution reverted")
	}
	return resp, nil
}

func (f *fakeCaller) BalanceAt(context.Context, common.Address) (*big.Int, error) {
	if f.native == nil {
		return nil, fmt.Errorf("no balance")
	}
	return f.native, nil
}

func (f *fakeCaller) SuggestGasPrice(context.Context) (*big.Int, error) {
	if f.gasPrice == nil {
		return nil, fmt.Errorf("no gas price")
	}
	return f.gasPrice, nil
}

var (
	weth    = model.Token{Address: common.HexToAddress("0x4200000000000000000000000000000000000006"), Decimals: 18, Symbol: "WETH"}
	usdc    = model.Token{Address: common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"), Decimals: 6, Symbol: "USDC"}
	factory = common.HexToAddress("0x33128a8fC17869897dcE68Ed026d694621f6FDfD")
	poolA   = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

func TestResolvePoolViaFactory(t *testing.T) {
	factoryABI, _ := V3FactoryABI()
	poolABI, _ := V3PoolABI()

	caller := newFakeCaller()
	caller.set(t, factory, factoryABI, "getPool", poolA)
	caller.set(t, poolA, poolABI, "token0", weth.Address)
	caller.set(t, poolA, poolABI, "token1", usdc.Address)
	caller.set(t, poolA, poolABI, "fee", big.NewInt(500))

	pair := model.Pair{Token0: usdc, Token1: weth, Fee: 500}
	pool, err := ResolvePool(context.Background(), caller, PoolSpec{
		Venue: model.Venue{Name: "Uniswap V3", Factory: factory},
	}, pair)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if pool.Address != poolA {
		t.Fatalf("pool address mismatch: %s", pool.Address.Hex())
	}
	if pool.OnChainToken0 != weth.Address || !pool.Inverted() {
		t.Fatalf("expected inverted pool, on-chain token0 %s", pool.OnChainToken0.Hex())
	}
	if pool.Token0.Symbol != "USDC" || pool.Fee != 500 {
		t.Fatalf("pool pair fields mismatch: %+v", pool)
	}
}

func TestResolvePoolRejectsMissingPool(t *testing.T) {
	factoryABI, _ := V3FactoryABI()
	caller := newFakeCaller()
	caller.set(t, factory, factoryABI, "getPool", common.Address{})

	_, err := ResolvePool(context.Background(), caller, PoolSpec{
		Venue: model.Venue{Name: "PancakeSwap V3", Factory: factory},
	}, model.Pair{Token0: weth, Token1: usdc, Fee: 500})
	if err == nil {
		t.Fatalf("expected error for zero pool address")
	}
}

func TestResolvePoolRejectsFeeMismatch(t *testing.T) {
	poolABI, _ := V3PoolABI()
	caller := newFakeCaller()
	caller.set(t, poolA, poolABI, "token0", weth.Address)
	caller.set(t, poolA, poolABI, "token1", usdc.Address)
	caller.set(t, poolA, poolABI, "fee", big.NewInt(3000))

	_, err := ResolvePool(context.Background(), caller, PoolSpec{Override: poolA}, model.Pair{Token0: weth, Token1: usdc, Fee: 500})
	if err == nil {
		t.Fatalf("expected fee mismatch error")
	}
	if len(caller.calls) != 3 {
		t.Fatalf("override should skip factory, got %d calls", len(caller.calls))
	}
}

func TestFetchTokenMeta(t *testing.T) {
	stringABI, _ := erc20ABIStringInstance()
	caller := newFakeCaller()
	caller.set(t, usdc.Address, stringABI, "decimals", uint8(6))
	caller.set(t, usdc.Address, stringABI, "symbol", "USDC")
	caller.set(t, usdc.Address, stringABI, "name", "USD Coin")

	meta, err := FetchTokenMeta(context.Background(), caller, usdc.Address, nil)
	if err != nil {
		t.Fatalf("fetch token meta: %v", err)
	}
	if meta.Decimals != 6 || meta.Symbol != "USDC" || meta.Name != "USD Coin" {
		t.Fatalf("token meta mismatch: %+v", meta)
	}
}

func TestReaderSlot0AndLiquidity(t *testing.T) {
	poolABI, _ := V3PoolABI()
	caller := newFakeCaller()
	sqrt, _ := new(big.Int).SetString("79228162514264337593543950336", 10)
	caller.set(t, poolA, poolABI, "slot0", sqrt, big.NewInt(-201234))
	caller.set(t, poolA, poolABI, "liquidity", big.NewInt(5_000_000))

	reader := NewReader(caller)
	gotSqrt, tick, err := reader.Slot0(context.Background(), poolA)
	if err != nil {
		t.Fatalf("slot0: %v", err)
	}
	if gotSqrt.Cmp(sqrt) != 0 || tick != -201234 {
		t.Fatalf("slot0 mismatch: %s %d", gotSqrt, tick)
	}

	liq, err := reader.Liquidity(context.Background(), poolA)
	if err != nil {
		t.Fatalf("liquidity: %v", err)
	}
	if liq.Cmp(big.NewInt(5_000_000)) != 0 {
		t.Fatalf("liquidity mismatch: %s", liq)
	}
}

func TestReaderQuotes(t *testing.T) {
	quoterABI, _ := QuoterV2ABI()
	quoter := common.HexToAddress("0x3d4e44Eb1374240CE5F1B871ab261CD16335B76a")
	caller := newFakeCaller()
	caller.set(t, quoter, quoterABI, "quoteExactInputSingle", big.NewInt(2_000_000), big.NewInt(1), uint32(1), big.NewInt(90_000))
	caller.set(t, quoter, quoterABI, "quoteExactOutputSingle", big.NewInt(1_010_000), big.NewInt(1), uint32(1), big.NewInt(90_000))

	reader := NewReader(caller)
	out, err := reader.QuoteExactInputSingle(context.Background(), quoter, weth.Address, usdc.Address, 500, big.NewInt(1e15))
	if err != nil {
		t.Fatalf("quote exact input: %v", err)
	}
	if out.Cmp(big.NewInt(2_000_000)) != 0 {
		t.Fatalf("amount out mismatch: %s", out)
	}

	in, err := reader.QuoteExactOutputSingle(context.Background(), quoter, usdc.Address, weth.Address, 500, big.NewInt(1e15))
	if err != nil {
		t.Fatalf("quote exact output: %v", err)
	}
	if in.Cmp(big.NewInt(1_010_000)) != 0 {
		t.Fatalf("amount in mismatch: %s", in)
	}
}

func TestReaderErrorsAreDataUnavailable(t *testing.T) {
	caller := newFakeCaller()
	caller.err = fmt.Errorf("connection refused")
	reader := NewReader(caller)

	if _, _, err := reader.Slot0(context.Background(), poolA); !errors.Is(err, model.ErrDataUnavailable) {
		t.Fatalf("slot0 error should be data unavailable: %v", err)
	}
	if _, err := reader.BalanceOf(context.Background(), usdc.Address, poolA); !errors.Is(err, model.ErrDataUnavailable) {
		t.Fatalf("balanceOf error should be data unavailable: %v", err)
	}
	if _, err := reader.NativeBalance(context.Background(), poolA); !errors.Is(err, model.ErrDataUnavailable) {
		t.Fatalf("native balance error should be data unavailable: %v", err)
	}
}
