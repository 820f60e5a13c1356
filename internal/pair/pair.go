// Package pair canonicalizes unordered asset pairs into ordered, case-insensitive keys.
package pair

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"poolScout/internal/model"
)

// NativeAsset is the currency identifier the pool manager uses for the chain's
// native asset. It orders and compares like any other address.
const NativeAsset = "0x0000000000000000000000000000000000000000"

const keySeparator = ":"

// NormalizeAsset lowercases an identifier and adds the 0x prefix when missing.
func NormalizeAsset(asset string) string {
	asset = strings.ToLower(strings.TrimSpace(asset))
	if asset == "" {
		return ""
	}
	if !strings.HasPrefix(asset, "0x") && len(asset) == 2*common.AddressLength {
		asset = "0x" + asset
	}
	return asset
}

// Normalize returns the canonical pair for a and b regardless of argument order.
func Normalize(a, b string) model.AssetPair {
	a = NormalizeAsset(a)
	b = NormalizeAsset(b)
	if b < a {
		a, b = b, a
	}
	return model.AssetPair{Asset0: a, Asset1: b}
}

// Canonical re-normalizes an existing pair. It is idempotent.
func Canonical(p model.AssetPair) model.AssetPair {
	return Normalize(p.Asset0, p.Asset1)
}

// Key returns the stable index key of the pair.
func Key(p model.AssetPair) string {
	c := Canonical(p)
	return c.Asset0 + keySeparator + c.Asset1
}

// Matches reports whether both pairs denote the same unordered asset set.
func Matches(p1, p2 model.AssetPair) bool {
	return Canonical(p1) == Canonical(p2)
}

// IsValidAsset reports whether the identifier is an address or the native sentinel.
func IsValidAsset(asset string) bool {
	asset = NormalizeAsset(asset)
	if asset == NativeAsset {
		return true
	}
	return strings.HasPrefix(asset, "0x") && common.IsHexAddress(asset)
}

// IsValid rejects pairs with equal or malformed assets.
func IsValid(p model.AssetPair) bool {
	if !IsValidAsset(p.Asset0) || !IsValidAsset(p.Asset1) {
		return false
	}
	return NormalizeAsset(p.Asset0) != NormalizeAsset(p.Asset1)
}

// IsNoHook reports whether the hook address denotes a pool without hooks.
func IsNoHook(hook string) bool {
	hook = NormalizeAsset(hook)
	return hook == "" || hook == NativeAsset
}
