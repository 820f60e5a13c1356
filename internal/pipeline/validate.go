package pipeline

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"poolScout/internal/model"
	"poolScout/internal/pair"
)

// ValidateEvent checks the shape of an event before it reaches discovery.
// Failures wrap ErrInvalidEvent and are never retried.
func ValidateEvent(event model.CreationEvent) error {
	invalid := func(field, reason string) error {
		return model.NewFieldError(model.ErrInvalidEvent, "event", strings.ToLower(strings.TrimSpace(event.PoolID)), field, reason)
	}

	switch {
	case strings.TrimSpace(event.PoolID) == "":
		return invalid("pool_id", "missing")
	case !isHash(event.PoolID):
		return invalid("pool_id", "not a 32-byte hex id")
	case strings.TrimSpace(event.Asset0) == "":
		return invalid("asset0", "missing")
	case !pair.IsValidAsset(event.Asset0):
		return invalid("asset0", "not an address")
	case strings.TrimSpace(event.Asset1) == "":
		return invalid("asset1", "missing")
	case !pair.IsValidAsset(event.Asset1):
		return invalid("asset1", "not an address")
	case event.Hook != "" && !pair.IsValidAsset(event.Hook):
		return invalid("hook", "not an address")
	case event.BlockNumber == 0:
		return invalid("block_number", "must be positive")
	case event.TimestampMs <= 0:
		return invalid("timestamp_ms", "must be positive")
	case strings.TrimSpace(event.TxHash) == "":
		return invalid("tx_hash", "missing")
	case !isHash(event.TxHash):
		return invalid("tx_hash", "not a 32-byte hex hash")
	}
	return nil
}

func isHash(s string) bool {
	data, err := hexutil.Decode(strings.TrimSpace(s))
	return err == nil && len(data) == common.HashLength
}
