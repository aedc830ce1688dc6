// Package executor submits the flash-loan arbitrage transaction.
package executor

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"flashArb/internal/dex"
	"flashArb/internal/model"
)

// Backend is what bind needs to send a transaction and wait for it.
// *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// BalanceReader snapshots the signer's balances.
type BalanceReader interface {
	NativeBalance(ctx context.Context, account common.Address) (*big.Int, error)
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)
}

type Config struct {
	Contract common.Address
	// Token is the flash-loan token whose balance is tracked.
	Token   common.Address
	Key     *ecdsa.PrivateKey
	Signer  common.Address
	ChainID *big.Int
	// GasLimit and GasPrice are applied to every submission. A nil GasPrice
	// falls back to the node's suggestion.
	GasLimit uint64
	GasPrice *big.Int
	DryRun   bool
}

type FlashExecutor struct {
	cfg      Config
	backend  Backend
	balances BalanceReader
	contract *bind.BoundContract
	logger   *zap.Logger
}

func NewFlashExecutor(cfg Config, backend Backend, balances BalanceReader, logger *zap.Logger) (*FlashExecutor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Key != nil {
		cfg.Signer = crypto.PubkeyToAddress(cfg.Key.PublicKey)
	}
	if !cfg.DryRun {
		if cfg.Key == nil {
			return nil, fmt.Errorf("%w: live execution needs a private key", model.ErrConfiguration)
		}
		if cfg.Contract == (common.Address{}) {
			return nil, fmt.Errorf("%w: live execution needs the arbitrage contract", model.ErrConfiguration)
		}
		if cfg.ChainID == nil {
			return nil, fmt.Errorf("%w: live execution needs a chain id", model.ErrConfiguration)
		}
	}

	parsed, err := dex.FlashArbitrageABI()
	if err != nil {
		return nil, fmt.Errorf("parse arbitrage abi: %w", err)
	}
	var contract *bind.BoundContract
	if backend != nil {
		contract = bind.NewBoundContract(cfg.Contract, parsed, backend, backend, backend)
	}

	return &FlashExecutor{
		cfg:      cfg,
		backend:  backend,
		balances: balances,
		contract: contract,
		logger:   logger,
	}, nil
}

// Signer returns the account trades are sent from.
func (e *FlashExecutor) Signer() common.Address {
	return e.cfg.Signer
}

// ParseKey decodes a hex private key with or without the 0x prefix.
func ParseKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: parse private key: %v", model.ErrConfiguration, err)
	}
	return key, nil
}

// Execute sends executeTrade and waits for the receipt. In dry-run mode the
// call is only simulated. Both paths snapshot balances before and after.
func (e *FlashExecutor) Execute(ctx context.Context, req model.TradeRequest) (model.ExecutionResult, error) {
	result := model.ExecutionResult{DryRun: e.cfg.DryRun, GasSpent: big.NewInt(0)}

	before, err := e.snapshot(ctx)
	if err != nil {
		return result, fmt.Errorf("balances before: %w", err)
	}
	result.Before = before

	if e.cfg.DryRun {
		err = e.simulate(ctx, req)
	} else {
		err = e.send(ctx, req, &result)
	}

	after, snapErr := e.snapshot(ctx)
	if snapErr != nil {
		e.logger.Warn("balances after failed", zap.Error(snapErr))
		after = before
	}
	result.After = after
	return result, err
}

func (e *FlashExecutor) simulate(ctx context.Context, req model.TradeRequest) error {
	if e.contract == nil || e.cfg.Contract == (common.Address{}) {
		return nil
	}
	var out []interface{}
	err := e.contract.Call(&bind.CallOpts{Context: ctx, From: e.cfg.Signer}, &out, "executeTrade", callArgs(req)...)
	if err != nil {
		return classifySendError(err)
	}
	return nil
}

func (e *FlashExecutor) send(ctx context.Context, req model.TradeRequest, result *model.ExecutionResult) error {
	if e.contract == nil {
		return fmt.Errorf("%w: no transaction backend", model.ErrSigner)
	}
	auth, err := bind.NewKeyedTransactorWithChainID(e.cfg.Key, e.cfg.ChainID)
	if err != nil {
		return fmt.Errorf("%w: create transactor: %v", model.ErrSigner, err)
	}
	auth.Context = ctx
	auth.GasLimit = e.cfg.GasLimit
	auth.GasPrice = e.cfg.GasPrice
	if auth.GasPrice == nil {
		price, err := e.backend.SuggestGasPrice(ctx)
		if err != nil {
			return fmt.Errorf("%w: gas price: %v", model.ErrDataUnavailable, err)
		}
		auth.GasPrice = price
	}

	tx, err := e.contract.Transact(auth, "executeTrade", callArgs(req)...)
	if err != nil {
		return classifySendError(err)
	}
	result.TxHash = tx.Hash()
	e.logger.Info("trade submitted", zap.String("tx", tx.Hash().Hex()), zap.String("amount", req.Amount.String()))

	receipt, err := bind.WaitMined(ctx, e.backend, tx)
	if err != nil {
		return fmt.Errorf("wait for %s: %w", tx.Hash().Hex(), err)
	}
	result.GasSpent = gasSpent(receipt, tx)
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: tx %s status %d", model.ErrRevertedExecution, tx.Hash().Hex(), receipt.Status)
	}
	result.Success = true
	return nil
}

func (e *FlashExecutor) snapshot(ctx context.Context) (model.Balances, error) {
	if e.balances == nil {
		return model.Balances{}, nil
	}
	native, err := e.balances.NativeBalance(ctx, e.cfg.Signer)
	if err != nil {
		return model.Balances{}, err
	}
	token, err := e.balances.BalanceOf(ctx, e.cfg.Token, e.cfg.Signer)
	if err != nil {
		return model.Balances{}, err
	}
	return model.Balances{Native: native, Token: token}, nil
}

func callArgs(req model.TradeRequest) []interface{} {
	return []interface{}{
		req.RouterPath[:],
		req.TokenPath[:],
		new(big.Int).SetUint64(uint64(req.Fee)),
		req.Amount,
	}
}

func gasSpent(receipt *types.Receipt, tx *types.Transaction) *big.Int {
	price := receipt.EffectiveGasPrice
	if price == nil {
		price = tx.GasPrice()
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(receipt.GasUsed), price)
}

// classifySendError maps node rejections to reverted or signer errors.
func classifySendError(err error) error {
	if errors.Is(err, model.ErrRevertedExecution) || strings.Contains(strings.ToLower(err.Error()), "execution reverted") {
		return fmt.Errorf("%w: %v", model.ErrRevertedExecution, err)
	}
	return fmt.Errorf("%w: %v", model.ErrSigner, err)
}
