package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolScout/internal/model"
)

func sampleMatch(id string) model.MatchResult {
	return model.MatchResult{
		Pool: model.PoolInfo{
			ID:          id,
			Pair:        model.AssetPair{Asset0: "0x0000000000000000000000000000000000000000", Asset1: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"},
			Fee:         3000,
			TickSpacing: 60,
			BlockNumber: 10,
		},
		Subscriptions: []model.Subscription{
			{ID: "s1", VariableType: "price"},
			{ID: "s2", VariableType: "tvl"},
		},
	}
}

func TestJsonlSinkAppends(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "matches.jsonl")
	sink := NewJsonlSink(path, "")

	require.NoError(t, sink.PutMatches(context.Background(), []model.MatchResult{sampleMatch("0x01")}))
	require.NoError(t, sink.PutMatches(context.Background(), nil))
	require.NoError(t, sink.PutMatches(context.Background(), []model.MatchResult{sampleMatch("0x02")}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var record MatchRecord
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &record))
	assert.Equal(t, "0x02", record.Pool.ID)
	assert.Equal(t, []string{"s1", "s2"}, record.SubscriptionIDs)
	assert.Equal(t, []string{"price", "tvl"}, record.VariableTypes)
}

func TestJsonlSinkDecodeErrors(t *testing.T) {
	dir := t.TempDir()
	errorsPath := filepath.Join(dir, "errors.jsonl")

	require.NoError(t, NewJsonlSink(filepath.Join(dir, "m.jsonl"), "").PutDecodeErrors([]model.DecodeError{{Stage: "decode"}}))
	_, err := os.Stat(errorsPath)
	assert.True(t, os.IsNotExist(err))

	sink := NewJsonlSink(filepath.Join(dir, "m.jsonl"), errorsPath)
	require.NoError(t, sink.PutDecodeErrors([]model.DecodeError{{BlockNumber: 5, Stage: "decode", Error: "bad data"}}))
	data, err := os.ReadFile(errorsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"stage":"decode"`)
}

func TestReadCreationEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	content := `{"pool_id":"0x01","asset0":"0xaa","asset1":"0xbb","fee_tier":500,"block_number":7,"timestamp_ms":1000}

{"pool_id":"0x02","asset0":"0xaa","asset1":"0xcc","fee_tier":3000,"block_number":8,"timestamp_ms":2000}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	events, err := ReadCreationEvents(path)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "0x02", events[1].PoolID)
	assert.Equal(t, int64(3000), events[1].FeeTier)
	assert.Equal(t, uint64(7), events[0].BlockNumber)

	require.NoError(t, os.WriteFile(path, []byte("{not json}\n"), 0o644))
	_, err = ReadCreationEvents(path)
	assert.ErrorContains(t, err, "line 1")
}

type failingSink struct{ err error }

func (f failingSink) PutMatches(context.Context, []model.MatchResult) error { return f.err }

func TestFanoutJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	path := filepath.Join(t.TempDir(), "m.jsonl")
	fanout := Fanout{failingSink{err: boom}, NewJsonlSink(path, "")}

	err := fanout.PutMatches(context.Background(), []model.MatchResult{sampleMatch("0x01")})
	assert.ErrorIs(t, err, boom)

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr, "later sinks still run")
	assert.NoError(t, Fanout{}.PutMatches(context.Background(), nil))
}
