package discovery

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"poolScout/internal/model"
	"poolScout/internal/pair"
	"poolScout/internal/registry"
)

const (
	maxFee       = 1<<24 - 1
	maxInt24     = 1<<23 - 1
	minInt24     = -(1 << 23)
	maxPriceBits = 160
)

// ExtractPool builds a PoolInfo from a creation event. Any missing or malformed
// field fails with ErrExtraction naming the field.
func ExtractPool(event model.CreationEvent) (model.PoolInfo, error) {
	id := registry.NormalizePoolID(event.PoolID)
	fail := func(field, reason string) (model.PoolInfo, error) {
		return model.PoolInfo{}, model.NewFieldError(model.ErrExtraction, "event", id, field, reason)
	}

	if id == "" {
		return fail("pool_id", "missing")
	}
	if !registry.ValidPoolID(id) {
		return fail("pool_id", "not a 32-byte hex id")
	}
	if !pair.IsValidAsset(event.Asset0) {
		return fail("asset0", "malformed")
	}
	if !pair.IsValidAsset(event.Asset1) {
		return fail("asset1", "malformed")
	}
	p := pair.Normalize(event.Asset0, event.Asset1)
	if p.Asset0 == p.Asset1 {
		return fail("asset1", "same as asset0")
	}
	if event.FeeTier < 0 || event.FeeTier > maxFee {
		return fail("fee_tier", "out of range")
	}
	if event.TickSpacing < 0 || event.TickSpacing > maxInt24 {
		return fail("tick_spacing", "out of range")
	}
	if event.Tick < minInt24 || event.Tick > maxInt24 {
		return fail("tick", "out of range")
	}
	if event.Hook != "" && !pair.IsValidAsset(event.Hook) {
		return fail("hook", "malformed")
	}
	price, ok := new(big.Int).SetString(strings.TrimSpace(event.PriceRepr), 10)
	if !ok || price.Sign() < 0 || price.BitLen() > maxPriceBits {
		return fail("price_repr", "not an unsigned 160-bit integer")
	}
	if event.BlockNumber == 0 {
		return fail("block_number", "missing")
	}
	if !validHash(event.TxHash) {
		return fail("tx_hash", "not a 32-byte hex hash")
	}
	if event.TimestampMs <= 0 {
		return fail("timestamp_ms", "missing")
	}

	return model.PoolInfo{
		ID:           id,
		Pair:         p,
		Fee:          int32(event.FeeTier),
		TickSpacing:  int32(event.TickSpacing),
		Hook:         registry.NormalizeHook(event.Hook),
		SqrtPriceX96: price.String(),
		Tick:         int32(event.Tick),
		BlockNumber:  event.BlockNumber,
		TxHash:       strings.ToLower(event.TxHash),
		CreatedAtMs:  event.TimestampMs,
	}, nil
}

func validHash(h string) bool {
	data, err := hexutil.Decode(strings.TrimSpace(h))
	return err == nil && len(data) == common.HashLength
}
