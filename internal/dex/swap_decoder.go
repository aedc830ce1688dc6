package dex

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"flashArb/internal/model"
)

// SwapDecoder decodes Uniswap V3 and PancakeSwap V3 Swap logs of known pools.
type SwapDecoder struct {
	events map[common.Hash]abi.Event
	venues map[common.Address]string
	now    func() time.Time
}

// NewSwapDecoder builds a decoder for the given pools.
func NewSwapDecoder(pools []model.Pool) (*SwapDecoder, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}
	pancakeABI, err := PancakeSwapEventABI()
	if err != nil {
		return nil, fmt.Errorf("parse pancake abi: %w", err)
	}

	uni := poolABI.Events["Swap"]
	cake := pancakeABI.Events["Swap"]
	venues := make(map[common.Address]string, len(pools))
	for _, pool := range pools {
		venues[pool.Address] = pool.Venue.Name
	}

	return &SwapDecoder{
		events: map[common.Hash]abi.Event{uni.ID: uni, cake.ID: cake},
		venues: venues,
		now:    time.Now,
	}, nil
}

// Addresses returns the watched pool addresses.
func (d *SwapDecoder) Addresses() []common.Address {
	out := make([]common.Address, 0, len(d.venues))
	for addr := range d.venues {
		out = append(out, addr)
	}
	return out
}

// Topic0 returns the Swap signatures the decoder understands.
func (d *SwapDecoder) Topic0() []common.Hash {
	out := make([]common.Hash, 0, len(d.events))
	for id := range d.events {
		out = append(out, id)
	}
	return out
}

// Decode converts a Swap log into a TradeEvent.
func (d *SwapDecoder) Decode(log types.Log) (model.TradeEvent, error) {
	if len(log.Topics) == 0 {
		return model.TradeEvent{}, fmt.Errorf("missing topics")
	}
	event, ok := d.events[log.Topics[0]]
	if !ok {
		return model.TradeEvent{}, fmt.Errorf("unsupported topic0: %s", log.Topics[0].Hex())
	}
	venue, ok := d.venues[log.Address]
	if !ok {
		return model.TradeEvent{}, fmt.Errorf("unknown pool: %s", log.Address.Hex())
	}

	values, err := event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return model.TradeEvent{}, fmt.Errorf("unpack swap: %w", err)
	}
	if len(values) < 5 {
		return model.TradeEvent{}, fmt.Errorf("swap data size %d", len(values))
	}

	ints := make([]*big.Int, 5)
	for i := range ints {
		v, err := asBigInt(values[i])
		if err != nil {
			return model.TradeEvent{}, fmt.Errorf("swap field %d: %w", i, err)
		}
		ints[i] = v
	}
	tick, err := int24FromBig(ints[4])
	if err != nil {
		return model.TradeEvent{}, fmt.Errorf("tick: %w", err)
	}

	return model.TradeEvent{
		Pool:         log.Address,
		Venue:        venue,
		BlockNumber:  log.BlockNumber,
		TxHash:       log.TxHash,
		LogIndex:     log.Index,
		Amount0:      ints[0],
		Amount1:      ints[1],
		SqrtPriceX96: ints[2],
		Tick:         tick,
		ReceivedAt:   d.now().UTC(),
	}, nil
}
