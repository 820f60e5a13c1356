package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"poolScout/internal/config"
	"poolScout/internal/model"
	"poolScout/internal/storage"
)

func writeEvents(t *testing.T, path string, events []model.CreationEvent) {
	t.Helper()
	var b strings.Builder
	for _, e := range events {
		line, err := json.Marshal(e)
		require.NoError(t, err)
		b.Write(line)
		b.WriteByte('\n')
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
}

func creation(n int, asset0, asset1, hook string) model.CreationEvent {
	return model.CreationEvent{
		PoolID:      fmt.Sprintf("0x%064x", n),
		Asset0:      asset0,
		Asset1:      asset1,
		FeeTier:     3000,
		TickSpacing: 60,
		Hook:        hook,
		PriceRepr:   "79228162514264337593543950336",
		BlockNumber: 1000 + uint64(n),
		TxHash:      fmt.Sprintf("0x%064x", 50+n),
		TimestampMs: 1_700_000_000_000,
	}
}

func TestReplayWritesMatchesAndErrors(t *testing.T) {
	dir := t.TempDir()
	subsPath := filepath.Join(dir, "subs.yaml")
	require.NoError(t, os.WriteFile(subsPath, []byte(`subscriptions:
  - id: eth-usdc
    variable_type: price
    asset0: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
    asset1: "0x0000000000000000000000000000000000000000"
    hooks: ["0x1111111111111111111111111111111111111111"]
  - id: any-hook
    variable_type: tvl
    asset0: "0x0000000000000000000000000000000000000000"
    asset1: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
`), 0o644))

	const (
		native = "0x0000000000000000000000000000000000000000"
		usdc   = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
		hookH  = "0x1111111111111111111111111111111111111111"
		hookZ  = "0x2222222222222222222222222222222222222222"
	)
	events := []model.CreationEvent{
		creation(1, usdc, native, hookH),
		creation(2, native, usdc, hookZ),
		creation(1, usdc, native, hookH),
		creation(3, usdc, "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", ""),
	}
	inPath := filepath.Join(dir, "events.jsonl")
	writeEvents(t, inPath, events)
	loaded, err := storage.ReadCreationEvents(inPath)
	require.NoError(t, err)

	cfg := config.Common{
		Subscriptions:  subsPath,
		Out:            filepath.Join(dir, "matches.jsonl"),
		ErrorsOut:      filepath.Join(dir, "errors.jsonl"),
		MaxRetries:     1,
		MinSuccessRate: 0.5,
	}
	a, err := newApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.replay(context.Background(), loaded))

	data, err := os.ReadFile(cfg.Out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var first storage.MatchRecord
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.ElementsMatch(t, []string{"eth-usdc", "any-hook"}, first.SubscriptionIDs)

	var second storage.MatchRecord
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, []string{"any-hook"}, second.SubscriptionIDs)

	errData, err := os.ReadFile(cfg.ErrorsOut)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(errData), "\n"))
	assert.Contains(t, string(errData), "duplicate")

	stats := a.service.ServiceStats()
	assert.Equal(t, 2, stats.Pools.Total)
	assert.Equal(t, 3, stats.Subscriptions.Links)
	assert.True(t, a.service.HealthCheck().Healthy)
	assert.Equal(t, uint64(4), a.pipeline.Stats().Processed)
}

func TestNewAppRejectsBadSubscriptions(t *testing.T) {
	dir := t.TempDir()
	subsPath := filepath.Join(dir, "subs.yaml")
	require.NoError(t, os.WriteFile(subsPath, []byte(`subscriptions:
  - id: broken
    asset0: "not-an-address"
    asset1: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
`), 0o644))

	_, err := newApp(context.Background(), config.Common{Subscriptions: subsPath, Out: filepath.Join(dir, "m.jsonl")}, zap.NewNop())
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))

	_, err = newApp(context.Background(), config.Common{Subscriptions: filepath.Join(dir, "missing.yaml")}, zap.NewNop())
	assert.ErrorContains(t, err, "read subscriptions")
}
