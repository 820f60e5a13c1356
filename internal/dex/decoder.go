// Package dex decodes pool creation logs into creation events.
package dex

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"poolScout/internal/model"
)

// Decoder turns a raw log into a CreationEvent.
type Decoder interface {
	CanDecode(topic0 common.Hash) bool
	Decode(log types.Log, timestampMs int64) (model.CreationEvent, error)
}

// InitializeDecoder decodes PoolManager Initialize logs.
type InitializeDecoder struct {
	event abi.Event
}

// NewInitializeDecoder builds an Initialize decoder.
func NewInitializeDecoder() (*InitializeDecoder, error) {
	parsed, err := PoolManagerABI()
	if err != nil {
		return nil, err
	}
	event, ok := parsed.Events["Initialize"]
	if !ok {
		return nil, fmt.Errorf("initialize event missing from abi")
	}
	return &InitializeDecoder{event: event}, nil
}

// Topic0 returns the Initialize event signature hash.
func (d *InitializeDecoder) Topic0() common.Hash {
	return d.event.ID
}

// CanDecode checks if the topic0 is supported.
func (d *InitializeDecoder) CanDecode(topic0 common.Hash) bool {
	return topic0 == d.event.ID
}

// Decode converts an Initialize log into a CreationEvent.
func (d *InitializeDecoder) Decode(log types.Log, timestampMs int64) (model.CreationEvent, error) {
	if len(log.Topics) == 0 {
		return model.CreationEvent{}, fmt.Errorf("missing topics")
	}
	if !d.CanDecode(log.Topics[0]) {
		return model.CreationEvent{}, fmt.Errorf("unsupported topic0: %s", log.Topics[0].Hex())
	}
	indexedArgs := indexedArguments(d.event.Inputs)
	if len(log.Topics) != len(indexedArgs)+1 {
		return model.CreationEvent{}, fmt.Errorf("expected %d topics, got %d", len(indexedArgs)+1, len(log.Topics))
	}

	var indexed struct {
		Id        [32]byte
		Currency0 common.Address
		Currency1 common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArgs, log.Topics[1:]); err != nil {
		return model.CreationEvent{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := d.event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return model.CreationEvent{}, fmt.Errorf("unpack %s: %w", d.event.Name, err)
	}
	if len(values) != 5 {
		return model.CreationEvent{}, fmt.Errorf("unexpected initialize values: %d", len(values))
	}

	fee, err := asBigInt(values[0])
	if err != nil {
		return model.CreationEvent{}, fmt.Errorf("fee: %w", err)
	}
	tickSpacing, err := asBigInt(values[1])
	if err != nil {
		return model.CreationEvent{}, fmt.Errorf("tick spacing: %w", err)
	}
	hooks, ok := values[2].(common.Address)
	if !ok {
		return model.CreationEvent{}, fmt.Errorf("unexpected hooks type %T", values[2])
	}
	sqrtPrice, err := asBigInt(values[3])
	if err != nil {
		return model.CreationEvent{}, fmt.Errorf("sqrt price: %w", err)
	}
	tick, err := asBigInt(values[4])
	if err != nil {
		return model.CreationEvent{}, fmt.Errorf("tick: %w", err)
	}

	return model.CreationEvent{
		PoolID:      strings.ToLower(common.Hash(indexed.Id).Hex()),
		Asset0:      strings.ToLower(indexed.Currency0.Hex()),
		Asset1:      strings.ToLower(indexed.Currency1.Hex()),
		FeeTier:     fee.Int64(),
		TickSpacing: tickSpacing.Int64(),
		Hook:        strings.ToLower(hooks.Hex()),
		PriceRepr:   sqrtPrice.String(),
		Tick:        tick.Int64(),
		BlockNumber: log.BlockNumber,
		TxHash:      strings.ToLower(log.TxHash.Hex()),
		LogIndex:    uint64(log.Index),
		TimestampMs: timestampMs,
	}, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return v, nil
	case int64:
		return big.NewInt(v), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case uint32:
		return big.NewInt(int64(v)), nil
	default:
		return nil, fmt.Errorf("unexpected numeric type %T", value)
	}
}
