package registry

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolScout/internal/model"
)

func testSub(id string, a, b string, hooks ...string) model.Subscription {
	return model.Subscription{
		ID:           id,
		VariableType: "liquidity",
		Pair:         model.AssetPair{Asset0: a, Asset1: b},
		Parameters:   map[string]any{"min_tvl": 1000},
		Hooks:        hooks,
		CreatedAt:    time.Unix(1_700_000_000, 0).UTC(),
		Active:       true,
	}
}

func TestSubscriptionIndexRegister(t *testing.T) {
	idx := NewSubscriptionIndex()
	sub := testSub("s1", tokenB, strings.ToUpper(tokenA[2:]), strings.ToUpper(hookH[2:]))
	require.NoError(t, idx.Register(sub))

	got, ok := idx.Get("s1")
	require.True(t, ok)
	assert.Equal(t, tokenA, got.Pair.Asset0)
	assert.Equal(t, tokenB, got.Pair.Asset1)
	assert.Equal(t, []string{hookH}, got.Hooks)

	got.Parameters["min_tvl"] = 5
	again, _ := idx.Get("s1")
	assert.Equal(t, 1000, again.Parameters["min_tvl"], "stored copy must not alias returned value")

	err := idx.Register(sub)
	assert.True(t, errors.Is(err, model.ErrDuplicateSubscription))
}

func TestSubscriptionIndexInvalid(t *testing.T) {
	idx := NewSubscriptionIndex()

	cases := map[string]model.Subscription{
		"empty id":    testSub("", tokenA, tokenB),
		"same assets": testSub("s", tokenA, strings.ToUpper(tokenA)),
		"missing":     testSub("s", tokenA, ""),
		"bad hook":    testSub("s", tokenA, tokenB, "0x1234"),
		"bad asset":   testSub("s", "usdc", tokenB),
	}
	for name, sub := range cases {
		t.Run(name, func(t *testing.T) {
			err := idx.Register(sub)
			assert.True(t, errors.Is(err, model.ErrInvalidSubscription), "got %v", err)
		})
	}
	assert.Equal(t, 0, idx.Counts().Total)
}

func TestSubscriptionIndexLinks(t *testing.T) {
	idx := NewSubscriptionIndex()
	require.NoError(t, idx.Register(testSub("s1", tokenA, tokenB)))
	require.NoError(t, idx.Register(testSub("s2", tokenA, tokenB)))

	require.NoError(t, idx.LinkPool(poolID(1), "s1"))
	require.NoError(t, idx.LinkPool(poolID(1), "s1"))
	require.NoError(t, idx.LinkPool(poolID(1), "s2"))
	require.NoError(t, idx.LinkPool(poolID(2), "s1"))

	err := idx.LinkPool(poolID(1), "missing")
	assert.True(t, errors.Is(err, model.ErrUnknownSubscription))
	assert.True(t, model.IsNotFound(err))

	assert.Equal(t, []string{poolID(1), poolID(2)}, idx.PoolsFor("s1"))
	assert.Len(t, idx.SubscriptionsFor(poolID(1), model.FilterAll), 2)
	assert.Equal(t, 3, idx.Counts().Links)

	idx.UnlinkPool(poolID(2), "s1")
	assert.Equal(t, []string{poolID(1)}, idx.PoolsFor("s1"))
}

func TestSubscriptionIndexUnregisterCascade(t *testing.T) {
	idx := NewSubscriptionIndex()
	require.NoError(t, idx.Register(testSub("s1", tokenA, tokenB)))
	require.NoError(t, idx.Register(testSub("s2", tokenA, tokenB)))
	require.NoError(t, idx.LinkPool(poolID(1), "s1"))
	require.NoError(t, idx.LinkPool(poolID(1), "s2"))

	idx.Unregister("s1")
	idx.Unregister("s1")

	_, ok := idx.Get("s1")
	assert.False(t, ok)
	assert.Empty(t, idx.PoolsFor("s1"))

	linked := idx.SubscriptionsFor(poolID(1), model.FilterAll)
	require.Len(t, linked, 1)
	assert.Equal(t, "s2", linked[0].ID)
	assert.Len(t, idx.ByPair(model.AssetPair{Asset0: tokenB, Asset1: tokenA}, model.FilterAll), 1)
	assert.Len(t, idx.ByType("liquidity", model.FilterAll), 1)

	idx.Unregister("s2")
	assert.Empty(t, idx.LinkedPoolIDs())
	assert.Equal(t, 0, idx.Counts().Links)
}

func TestSubscriptionIndexUpdate(t *testing.T) {
	idx := NewSubscriptionIndex()
	require.NoError(t, idx.Register(testSub("s1", tokenA, tokenB)))
	require.NoError(t, idx.LinkPool(poolID(1), "s1"))

	newType := "volume"
	newPair := model.AssetPair{Asset0: tokenC, Asset1: tokenA}
	updated, err := idx.Update("s1", model.SubscriptionPatch{VariableType: &newType, Pair: &newPair})
	require.NoError(t, err)
	assert.Equal(t, "volume", updated.VariableType)
	assert.Equal(t, tokenA, updated.Pair.Asset0)

	assert.Empty(t, idx.ByType("liquidity", model.FilterAll))
	assert.Len(t, idx.ByType("volume", model.FilterAll), 1)
	assert.Empty(t, idx.ByPair(model.AssetPair{Asset0: tokenA, Asset1: tokenB}, model.FilterAll))
	assert.Len(t, idx.ByPair(newPair, model.FilterAll), 1)
	assert.Equal(t, []string{poolID(1)}, idx.PoolsFor("s1"), "links survive update")

	bad := model.AssetPair{Asset0: tokenA, Asset1: tokenA}
	_, err = idx.Update("s1", model.SubscriptionPatch{Pair: &bad})
	assert.True(t, errors.Is(err, model.ErrInvalidSubscription))
	restored, ok := idx.Get("s1")
	require.True(t, ok)
	assert.Equal(t, "volume", restored.VariableType)
	assert.Len(t, idx.ByPair(newPair, model.FilterAll), 1)

	_, err = idx.Update("missing", model.SubscriptionPatch{})
	assert.True(t, errors.Is(err, model.ErrUnknownSubscription))
}

func TestSubscriptionIndexActiveFilter(t *testing.T) {
	idx := NewSubscriptionIndex()
	require.NoError(t, idx.Register(testSub("s1", tokenA, tokenB)))
	require.NoError(t, idx.Register(testSub("s2", tokenA, tokenB)))

	_, err := idx.SetActive("s2", false)
	require.NoError(t, err)

	assert.Len(t, idx.List(model.FilterAll), 2)
	assert.Len(t, idx.List(model.FilterActive), 1)
	inactive := idx.List(model.FilterInactive)
	require.Len(t, inactive, 1)
	assert.Equal(t, "s2", inactive[0].ID)

	counts := idx.Counts()
	assert.Equal(t, 2, counts.Total)
	assert.Equal(t, 1, counts.Active)
	assert.Equal(t, 2, counts.ByType["liquidity"])
}
