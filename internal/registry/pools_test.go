package registry

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolScout/internal/model"
	"poolScout/internal/pair"
)

const (
	tokenA = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	tokenB = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	tokenC = "0xcccccccccccccccccccccccccccccccccccccccc"
	hookH  = "0x1111111111111111111111111111111111111111"
	hookZ  = "0x2222222222222222222222222222222222222222"
)

func poolID(n int) string {
	return "0x" + strings.Repeat("0", 62) + string(rune('a'+n/16)) + string("0123456789abcdef"[n%16])
}

func testPool(n int, a, b, hook string) model.PoolInfo {
	return model.PoolInfo{
		ID:           poolID(n),
		Pair:         model.AssetPair{Asset0: b, Asset1: a},
		Fee:          3000,
		TickSpacing:  60,
		Hook:         hook,
		SqrtPriceX96: "79228162514264337593543950336",
		BlockNumber:  uint64(100 + n),
		TxHash:       "0x" + strings.Repeat("f", 64),
		CreatedAtMs:  int64(1_700_000_000_000 + n),
	}
}

func TestPoolIndexRegisterAndGet(t *testing.T) {
	idx := NewPoolIndex()
	require.NoError(t, idx.Register(testPool(1, tokenA, tokenB, hookH)))

	got, ok := idx.Get("0x" + strings.ToUpper(poolID(1)[2:]))
	require.True(t, ok)
	assert.Equal(t, pair.Normalize(tokenA, tokenB), got.Pair)
	assert.Equal(t, hookH, got.Hook)
	assert.Equal(t, 1, idx.Len())
}

func TestPoolIndexDuplicate(t *testing.T) {
	idx := NewPoolIndex()
	pool := testPool(1, tokenA, tokenB, hookH)
	require.NoError(t, idx.Register(pool))

	pool.ID = "0x" + strings.ToUpper(pool.ID[2:])
	err := idx.Register(pool)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrDuplicatePool))
	assert.True(t, model.IsDuplicate(err))
	assert.Equal(t, 1, idx.Len())
}

func TestPoolIndexInvalid(t *testing.T) {
	idx := NewPoolIndex()
	base := testPool(1, tokenA, tokenB, hookH)

	cases := map[string]func(p *model.PoolInfo){
		"empty id":         func(p *model.PoolInfo) { p.ID = "" },
		"short id":         func(p *model.PoolInfo) { p.ID = "0x1234" },
		"negative fee":     func(p *model.PoolInfo) { p.Fee = -1 },
		"negative spacing": func(p *model.PoolInfo) { p.TickSpacing = -10 },
		"same assets":      func(p *model.PoolInfo) { p.Pair = model.AssetPair{Asset0: tokenA, Asset1: tokenA} },
		"bad asset":        func(p *model.PoolInfo) { p.Pair.Asset0 = "0x12" },
		"bad hook":         func(p *model.PoolInfo) { p.Hook = "hook" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			pool := base
			mutate(&pool)
			err := idx.Register(pool)
			assert.True(t, errors.Is(err, model.ErrInvalidPool), "got %v", err)
			assert.True(t, model.IsValidation(err))
		})
	}
	assert.Equal(t, 0, idx.Len())
}

func TestPoolIndexSecondaryIndices(t *testing.T) {
	idx := NewPoolIndex()
	require.NoError(t, idx.Register(testPool(1, tokenA, tokenB, hookH)))
	require.NoError(t, idx.Register(testPool(2, tokenB, tokenA, "")))
	require.NoError(t, idx.Register(testPool(3, tokenA, tokenC, hookH)))

	assert.Len(t, idx.GetByPair(model.AssetPair{Asset0: tokenB, Asset1: tokenA}), 2)
	assert.Len(t, idx.GetByHook(hookH), 2)
	assert.Len(t, idx.GetByHook(""), 1)
	assert.Len(t, idx.GetByAsset(tokenA), 3)
	assert.Len(t, idx.GetByAsset(tokenC), 1)

	byAsset := idx.GetByAsset(tokenB)
	require.Len(t, byAsset, 2)
	assert.Equal(t, poolID(1), byAsset[0].ID)
	assert.Equal(t, poolID(2), byAsset[1].ID)
}

func TestPoolIndexRemovePrunesBuckets(t *testing.T) {
	idx := NewPoolIndex()
	require.NoError(t, idx.Register(testPool(1, tokenA, tokenB, hookH)))
	require.NoError(t, idx.Register(testPool(2, tokenA, tokenC, hookZ)))

	idx.Remove(poolID(1))
	idx.Remove(poolID(1))
	idx.Remove(poolID(99))

	_, ok := idx.Get(poolID(1))
	assert.False(t, ok)
	assert.Empty(t, idx.GetByHook(hookH))
	assert.Empty(t, idx.GetByAsset(tokenB))

	stats := idx.Stats()
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.DistinctPairs)
	assert.NotContains(t, stats.ByHook, hookH)
	assert.NotContains(t, stats.ByAsset, tokenB)
	assert.Equal(t, 1, stats.ByAsset[tokenA])
}

func TestPoolIndexQuery(t *testing.T) {
	idx := NewPoolIndex()
	p1 := testPool(1, tokenA, tokenB, hookH)
	p2 := testPool(2, tokenA, tokenB, hookZ)
	p2.Fee = 500
	p3 := testPool(3, tokenA, tokenC, hookH)
	p3.TickSpacing = 10
	for _, p := range []model.PoolInfo{p1, p2, p3} {
		require.NoError(t, idx.Register(p))
	}

	fee := int32(500)
	spacing := int32(10)

	assert.Len(t, idx.Query(model.PoolCriteria{}), 3)
	assert.Len(t, idx.Query(model.PoolCriteria{Asset0: tokenB, Asset1: tokenA}), 2)
	assert.Len(t, idx.Query(model.PoolCriteria{Asset0: tokenA}), 3)
	assert.Len(t, idx.Query(model.PoolCriteria{Asset: tokenC}), 1)
	assert.Len(t, idx.Query(model.PoolCriteria{Hook: hookH}), 2)

	got := idx.Query(model.PoolCriteria{Asset0: tokenA, Asset1: tokenB, Fee: &fee})
	require.Len(t, got, 1)
	assert.Equal(t, poolID(2), got[0].ID)

	got = idx.Query(model.PoolCriteria{Hook: hookH, TickSpacing: &spacing})
	require.Len(t, got, 1)
	assert.Equal(t, poolID(3), got[0].ID)

	assert.Empty(t, idx.Query(model.PoolCriteria{Hook: hookZ, Fee: &spacing}))
}
