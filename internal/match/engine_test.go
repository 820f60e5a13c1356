package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolScout/internal/model"
	"poolScout/internal/registry"
)

const (
	tokenA = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	tokenB = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	tokenC = "0xcccccccccccccccccccccccccccccccccccccccc"
	hookH  = "0x1111111111111111111111111111111111111111"
	hookZ  = "0x2222222222222222222222222222222222222222"
)

func sub(id, a, b string, hooks ...string) model.Subscription {
	return model.Subscription{
		ID:           id,
		VariableType: "price",
		Pair:         model.AssetPair{Asset0: a, Asset1: b},
		Hooks:        hooks,
		CreatedAt:    time.Unix(1_700_000_000, 0),
		Active:       true,
	}
}

func ids(subs []model.Subscription) []string {
	out := make([]string, 0, len(subs))
	for _, s := range subs {
		out = append(out, s.ID)
	}
	return out
}

func TestFindCandidatesByPair(t *testing.T) {
	e := NewEngine()
	e.Index(sub("s1", tokenA, tokenB))
	e.Index(sub("s2", tokenB, tokenA))
	e.Index(sub("s3", tokenA, tokenC))

	got := e.FindCandidates(model.AssetPair{Asset0: tokenB, Asset1: tokenA}, "")
	assert.ElementsMatch(t, []string{"s1", "s2"}, ids(got))
	assert.Empty(t, e.FindCandidates(model.AssetPair{Asset0: tokenB, Asset1: tokenC}, ""))
}

func TestFindCandidatesHookIsExclusionary(t *testing.T) {
	e := NewEngine()
	e.Index(sub("open", tokenA, tokenB))
	e.Index(sub("hooked", tokenA, tokenB, hookH))
	p := model.AssetPair{Asset0: tokenA, Asset1: tokenB}

	assert.ElementsMatch(t, []string{"open", "hooked"}, ids(e.FindCandidates(p, "")))
	assert.Equal(t, []string{"hooked"}, ids(e.FindCandidates(p, hookH)))
	assert.Empty(t, e.FindCandidates(p, hookZ))
}

func TestMatchesHook(t *testing.T) {
	open := sub("open", tokenA, tokenB)
	hooked := sub("hooked", tokenA, tokenB, hookH)

	assert.True(t, MatchesHook(open, hookH))
	assert.True(t, MatchesHook(open, hookZ))
	assert.True(t, MatchesHook(hooked, hookH))
	assert.False(t, MatchesHook(hooked, hookZ))
	assert.False(t, MatchesHook(hooked, ""))
}

func TestInactiveExcluded(t *testing.T) {
	e := NewEngine()
	s := sub("s1", tokenA, tokenB)
	s.Active = false
	e.Index(s)

	assert.Empty(t, e.Candidates(model.AssetPair{Asset0: tokenA, Asset1: tokenB}))
	assert.Equal(t, 1, e.Len())

	active := true
	_, err := e.Update("s1", model.SubscriptionPatch{Active: &active})
	require.NoError(t, err)
	assert.Len(t, e.Candidates(model.AssetPair{Asset0: tokenA, Asset1: tokenB}), 1)
}

func TestUpdateRebuckets(t *testing.T) {
	e := NewEngine()
	e.Index(sub("s1", tokenA, tokenB))

	moved := model.AssetPair{Asset0: tokenC, Asset1: tokenA}
	updated, err := e.Update("s1", model.SubscriptionPatch{Pair: &moved})
	require.NoError(t, err)
	assert.Equal(t, tokenA, updated.Pair.Asset0)

	assert.Empty(t, e.Candidates(model.AssetPair{Asset0: tokenA, Asset1: tokenB}))
	assert.Len(t, e.Candidates(moved), 1)
	assert.Len(t, e.Snapshot(), 1)

	_, err = e.Update("missing", model.SubscriptionPatch{})
	assert.True(t, model.IsNotFound(err))
}

func TestRemovePrunesBucket(t *testing.T) {
	e := NewEngine()
	e.Index(sub("s1", tokenA, tokenB))
	e.Index(sub("s2", tokenA, tokenB))

	e.Remove("s1")
	e.Remove("s1")
	assert.Equal(t, []string{"s2"}, ids(e.Candidates(model.AssetPair{Asset0: tokenA, Asset1: tokenB})))

	e.Remove("s2")
	assert.Empty(t, e.Snapshot())
	assert.Equal(t, 0, e.Len())
}

func TestIndexReplacesExisting(t *testing.T) {
	e := NewEngine()
	e.Index(sub("s1", tokenA, tokenB))
	e.Index(sub("s1", tokenA, tokenC))

	assert.Equal(t, 1, e.Len())
	assert.Empty(t, e.Candidates(model.AssetPair{Asset0: tokenA, Asset1: tokenB}))
}

func TestRebuildMatchesIncremental(t *testing.T) {
	source := registry.NewSubscriptionIndex()
	incremental := NewEngine()

	for _, s := range []model.Subscription{
		sub("s1", tokenA, tokenB),
		sub("s2", tokenB, tokenA, hookH),
		sub("s3", tokenA, tokenC),
	} {
		require.NoError(t, source.Register(s))
		incremental.Index(s)
	}
	source.Unregister("s3")
	incremental.Remove("s3")

	rebuilt := NewEngine()
	rebuilt.Rebuild(source.List(model.FilterAll))

	assert.Equal(t, incremental.Snapshot(), rebuilt.Snapshot())
	assert.Equal(t, incremental.Len(), rebuilt.Len())
}
