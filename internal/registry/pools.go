// Package registry holds the authoritative in-memory pool and subscription indices.
package registry

import (
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"poolScout/internal/model"
	"poolScout/internal/pair"
)

type idSet map[string]struct{}

func addTo(index map[string]idSet, key, id string) {
	set, ok := index[key]
	if !ok {
		set = make(idSet)
		index[key] = set
	}
	set[id] = struct{}{}
}

func removeFrom(index map[string]idSet, key, id string) {
	set, ok := index[key]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(index, key)
	}
}

// PoolIndex stores discovered pools by id, hook, pair and asset.
type PoolIndex struct {
	mu      sync.RWMutex
	byID    map[string]model.PoolInfo
	byHook  map[string]idSet
	byPair  map[string]idSet
	byAsset map[string]idSet
}

func NewPoolIndex() *PoolIndex {
	return &PoolIndex{
		byID:    make(map[string]model.PoolInfo),
		byHook:  make(map[string]idSet),
		byPair:  make(map[string]idSet),
		byAsset: make(map[string]idSet),
	}
}

// NormalizePoolID lowercases a pool id.
func NormalizePoolID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// ValidPoolID reports whether id is a 32-byte hex string.
func ValidPoolID(id string) bool {
	data, err := hexutil.Decode(id)
	return err == nil && len(data) == common.HashLength
}

// NormalizeHook maps empty hooks to the zero address and lowercases the rest.
func NormalizeHook(hook string) string {
	if pair.IsNoHook(hook) {
		return pair.NativeAsset
	}
	return pair.NormalizeAsset(hook)
}

func validatePool(pool model.PoolInfo) error {
	invalid := func(field, reason string) error {
		return model.NewFieldError(model.ErrInvalidPool, "pool", pool.ID, field, reason)
	}
	switch {
	case pool.ID == "":
		return invalid("pool_id", "empty")
	case !ValidPoolID(pool.ID):
		return invalid("pool_id", "not a 32-byte hex id")
	case pool.Fee < 0:
		return invalid("fee", "negative")
	case pool.TickSpacing < 0:
		return invalid("tick_spacing", "negative")
	case !pair.IsValid(pool.Pair):
		return invalid("pair", "malformed or identical assets")
	case !pair.IsValidAsset(pool.Hook):
		return invalid("hook", "not an address")
	}
	return nil
}

// Register adds a pool. It fails with ErrDuplicatePool if the id is known and
// ErrInvalidPool if required fields are missing or malformed.
func (x *PoolIndex) Register(pool model.PoolInfo) error {
	pool.ID = NormalizePoolID(pool.ID)
	pool.Pair = pair.Canonical(pool.Pair)
	pool.Hook = NormalizeHook(pool.Hook)
	if err := validatePool(pool); err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if _, exists := x.byID[pool.ID]; exists {
		return model.NewFieldError(model.ErrDuplicatePool, "pool", pool.ID, "", "already registered")
	}

	x.byID[pool.ID] = pool
	addTo(x.byHook, pool.Hook, pool.ID)
	addTo(x.byPair, pair.Key(pool.Pair), pool.ID)
	addTo(x.byAsset, pool.Pair.Asset0, pool.ID)
	addTo(x.byAsset, pool.Pair.Asset1, pool.ID)
	return nil
}

// Remove deletes a pool from every index. Unknown ids are a no-op.
func (x *PoolIndex) Remove(id string) {
	id = NormalizePoolID(id)

	x.mu.Lock()
	defer x.mu.Unlock()

	pool, ok := x.byID[id]
	if !ok {
		return
	}
	delete(x.byID, id)
	removeFrom(x.byHook, pool.Hook, id)
	removeFrom(x.byPair, pair.Key(pool.Pair), id)
	removeFrom(x.byAsset, pool.Pair.Asset0, id)
	removeFrom(x.byAsset, pool.Pair.Asset1, id)
}

// Get returns the pool with the given id.
func (x *PoolIndex) Get(id string) (model.PoolInfo, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	pool, ok := x.byID[NormalizePoolID(id)]
	return pool, ok
}

// GetByPair returns pools trading the pair in either order.
func (x *PoolIndex) GetByPair(p model.AssetPair) []model.PoolInfo {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.collect(x.byPair[pair.Key(p)])
}

// GetByHook returns pools using the hook. An empty hook selects hook-less pools.
func (x *PoolIndex) GetByHook(hook string) []model.PoolInfo {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.collect(x.byHook[NormalizeHook(hook)])
}

// GetByAsset returns pools holding the asset in either slot.
func (x *PoolIndex) GetByAsset(asset string) []model.PoolInfo {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.collect(x.byAsset[pair.NormalizeAsset(asset)])
}

// All returns every pool.
func (x *PoolIndex) All() []model.PoolInfo {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := make([]model.PoolInfo, 0, len(x.byID))
	for _, pool := range x.byID {
		out = append(out, pool)
	}
	sortPools(out)
	return out
}

// Query filters pools conjunctively. It scans the narrowest index available.
func (x *PoolIndex) Query(c model.PoolCriteria) []model.PoolInfo {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var candidates []model.PoolInfo
	switch {
	case c.Asset0 != "" && c.Asset1 != "":
		candidates = x.collect(x.byPair[pair.Key(model.AssetPair{Asset0: c.Asset0, Asset1: c.Asset1})])
	case c.Hook != "":
		candidates = x.collect(x.byHook[NormalizeHook(c.Hook)])
	case c.Asset != "":
		candidates = x.collect(x.byAsset[pair.NormalizeAsset(c.Asset)])
	default:
		candidates = make([]model.PoolInfo, 0, len(x.byID))
		for _, pool := range x.byID {
			candidates = append(candidates, pool)
		}
		sortPools(candidates)
	}

	out := candidates[:0]
	for _, pool := range candidates {
		if matchesCriteria(pool, c) {
			out = append(out, pool)
		}
	}
	return out
}

func matchesCriteria(pool model.PoolInfo, c model.PoolCriteria) bool {
	if c.Asset0 != "" && !hasAsset(pool.Pair, c.Asset0) {
		return false
	}
	if c.Asset1 != "" && !hasAsset(pool.Pair, c.Asset1) {
		return false
	}
	if c.Asset != "" && !hasAsset(pool.Pair, c.Asset) {
		return false
	}
	if c.Hook != "" && pool.Hook != NormalizeHook(c.Hook) {
		return false
	}
	if c.Fee != nil && pool.Fee != *c.Fee {
		return false
	}
	if c.TickSpacing != nil && pool.TickSpacing != *c.TickSpacing {
		return false
	}
	return true
}

func hasAsset(p model.AssetPair, asset string) bool {
	asset = pair.NormalizeAsset(asset)
	return p.Asset0 == asset || p.Asset1 == asset
}

// Stats counts pools by hook and asset. It is computed on each call.
func (x *PoolIndex) Stats() model.PoolStats {
	x.mu.RLock()
	defer x.mu.RUnlock()

	stats := model.PoolStats{
		Total:         len(x.byID),
		DistinctPairs: len(x.byPair),
		ByHook:        make(map[string]int, len(x.byHook)),
		ByAsset:       make(map[string]int, len(x.byAsset)),
	}
	for hook, ids := range x.byHook {
		stats.ByHook[hook] = len(ids)
	}
	for asset, ids := range x.byAsset {
		stats.ByAsset[asset] = len(ids)
	}
	return stats
}

// Len returns the number of registered pools.
func (x *PoolIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.byID)
}

func (x *PoolIndex) collect(ids idSet) []model.PoolInfo {
	out := make([]model.PoolInfo, 0, len(ids))
	for id := range ids {
		if pool, ok := x.byID[id]; ok {
			out = append(out, pool)
		}
	}
	sortPools(out)
	return out
}

func sortPools(pools []model.PoolInfo) {
	sort.Slice(pools, func(i, j int) bool {
		if pools[i].CreatedAtMs != pools[j].CreatedAtMs {
			return pools[i].CreatedAtMs < pools[j].CreatedAtMs
		}
		return pools[i].ID < pools[j].ID
	})
}
