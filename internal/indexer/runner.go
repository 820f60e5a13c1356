// Package indexer scans block ranges for pool creation logs and feeds them
// through the event pipeline.
package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"poolScout/internal/dex"
	"poolScout/internal/metrics"
	"poolScout/internal/model"
	"poolScout/internal/pipeline"
	"poolScout/internal/storage"
)

// LogSource is the subset of the chain client the runner needs.
type LogSource interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// BatchProcessor runs decoded events through discovery.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, events []model.CreationEvent) pipeline.BatchResult
}

// DecodeErrorSink records logs that could not be turned into matches.
type DecodeErrorSink interface {
	PutDecodeErrors(errs []model.DecodeError) error
}

// StatsProvider exposes registry sizes for metrics.
type StatsProvider interface {
	ServiceStats() model.ServiceStats
}

// RunConfig holds runtime settings for the indexer.
type RunConfig struct {
	FromBlock     uint64
	ToBlock       uint64
	PoolManager   common.Address
	BatchSize     uint64
	MaxRetries    int
	RetryBackoff  time.Duration
	RetryMaxDelay time.Duration
}

// Summary totals a Run.
type Summary struct {
	Ranges    int
	Logs      int
	Events    int
	Matched   int
	Failed    int
	LastBlock uint64
}

// Runner streams creation logs from the chain into the pipeline and writes
// matches to the sink.
type Runner struct {
	cfg        RunConfig
	source     LogSource
	decoder    *dex.InitializeDecoder
	processor  BatchProcessor
	sink       storage.Sink
	errSink    DecodeErrorSink
	checkpoint Checkpointer
	metrics    *metrics.Metrics
	stats      StatsProvider
	logger     *zap.Logger
	seen       map[string]struct{}
}

// Option customizes a Runner.
type Option func(*Runner)

// WithCheckpoint resumes from and records progress in cp.
func WithCheckpoint(cp Checkpointer) Option {
	return func(r *Runner) { r.checkpoint = cp }
}

// WithDecodeErrorSink records undecodable or failed logs.
func WithDecodeErrorSink(s DecodeErrorSink) Option {
	return func(r *Runner) { r.errSink = s }
}

// WithMetrics records batch progress and, when stats is non-nil, registry sizes.
func WithMetrics(m *metrics.Metrics, stats StatsProvider) Option {
	return func(r *Runner) {
		r.metrics = m
		r.stats = stats
	}
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, source LogSource, decoder *dex.InitializeDecoder, processor BatchProcessor, sink storage.Sink, logger *zap.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{
		cfg:       cfg,
		source:    source,
		decoder:   decoder,
		processor: processor,
		sink:      sink,
		logger:    logger,
		seen:      make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the indexing loop.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	var summary Summary
	switch {
	case r.source == nil:
		return summary, fmt.Errorf("log source is nil")
	case r.decoder == nil:
		return summary, fmt.Errorf("decoder is nil")
	case r.processor == nil:
		return summary, fmt.Errorf("processor is nil")
	case r.sink == nil:
		return summary, fmt.Errorf("sink is nil")
	case r.cfg.BatchSize == 0:
		return summary, fmt.Errorf("batch size must be greater than zero")
	case r.cfg.PoolManager == (common.Address{}):
		return summary, fmt.Errorf("pool manager address is required")
	}

	from := r.cfg.FromBlock
	to := r.cfg.ToBlock
	if to == 0 {
		latest, err := r.latestBlockWithRetry(ctx)
		if err != nil {
			return summary, fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	if r.checkpoint != nil {
		last, ok, err := r.checkpoint.Load(ctx)
		if err != nil {
			return summary, fmt.Errorf("load checkpoint: %w", err)
		}
		if ok && last >= from {
			from = last + 1
			r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", last), zap.Uint64("from", from))
		}
	}

	if from > to {
		r.logger.Info("nothing to sync", zap.Uint64("from", from), zap.Uint64("to", to))
		return summary, nil
	}

	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return summary, err
	}

	for _, blockRange := range ranges {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if err := r.processRange(ctx, blockRange, &summary); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

func (r *Runner) processRange(ctx context.Context, blockRange BlockRange, summary *Summary) error {
	log := r.logger.With(zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
	log.Info("fetch logs")

	logs, err := r.filterLogsWithRetry(ctx, blockRange.From, blockRange.To)
	if err != nil {
		return fmt.Errorf("filter logs: %w", err)
	}

	events := make([]model.CreationEvent, 0, len(logs))
	var failures []model.DecodeError
	for _, l := range logs {
		if l.Removed || r.isDuplicate(l) {
			continue
		}
		ts, err := r.blockTimestampWithRetry(ctx, l.BlockNumber)
		if err != nil {
			return fmt.Errorf("block timestamp %d: %w", l.BlockNumber, err)
		}
		event, err := r.decoder.Decode(l, int64(ts)*1000)
		if err != nil {
			log.Warn("decode failed", zap.String("tx_hash", l.TxHash.Hex()), zap.Uint("log_index", l.Index), zap.Error(err))
			failures = append(failures, model.DecodeError{
				BlockNumber: l.BlockNumber,
				TxHash:      l.TxHash.Hex(),
				LogIndex:    uint64(l.Index),
				Stage:       "decode",
				Error:       err.Error(),
			})
			continue
		}
		events = append(events, event)
	}

	batch := r.processor.ProcessBatch(ctx, events)
	if batch.Cancelled > 0 {
		return ctx.Err()
	}
	for i, res := range batch.Results {
		if res.Err == nil {
			continue
		}
		ev := events[i]
		failures = append(failures, model.DecodeError{
			BlockNumber: ev.BlockNumber,
			TxHash:      ev.TxHash,
			LogIndex:    ev.LogIndex,
			PoolID:      res.PoolID,
			Stage:       "process",
			Error:       res.Err.Error(),
		})
	}

	matches := batch.Matches()
	err = r.sink.PutMatches(ctx, matches)
	r.metrics.ObserveSinkWrite(err)
	if err != nil {
		return fmt.Errorf("store matches: %w", err)
	}
	if r.errSink != nil {
		if err := r.errSink.PutDecodeErrors(failures); err != nil {
			return fmt.Errorf("store decode errors: %w", err)
		}
	}

	if r.checkpoint != nil {
		if err := r.checkpoint.Save(ctx, blockRange.To); err != nil {
			return fmt.Errorf("save checkpoint: %w", err)
		}
	}
	r.metrics.ObserveBatch(blockRange.To)
	if r.stats != nil {
		st := r.stats.ServiceStats()
		r.metrics.SetRegistrySize(st.Pools.Total, st.Subscriptions.Active, st.Subscriptions.Total-st.Subscriptions.Active)
	}

	summary.Ranges++
	summary.Logs += len(logs)
	summary.Events += len(events)
	summary.Matched += batch.Matched
	summary.Failed += len(failures)
	summary.LastBlock = blockRange.To

	log.Info("batch complete",
		zap.Int("logs", len(logs)),
		zap.Int("events", len(events)),
		zap.Int("matched", batch.Matched),
		zap.Int("failed", len(failures)),
	)
	return nil
}

func (r *Runner) latestBlockWithRetry(ctx context.Context) (uint64, error) {
	var latest uint64
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, r.cfg.RetryMaxDelay, func(ctx context.Context) error {
		var err error
		latest, err = r.source.LatestBlockNumber(ctx)
		if err != nil {
			r.logger.Warn("latest block fetch failed", zap.Error(err))
		}
		return err
	})
	return latest, err
}

func (r *Runner) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error) {
	var logs []types.Log
	addresses := []common.Address{r.cfg.PoolManager}
	topics := []common.Hash{r.decoder.Topic0()}
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, r.cfg.RetryMaxDelay, func(ctx context.Context) error {
		var err error
		logs, err = r.source.FilterLogs(ctx, fromBlock, toBlock, addresses, topics)
		if err != nil {
			r.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
		}
		return err
	})
	return logs, err
}

func (r *Runner) blockTimestampWithRetry(ctx context.Context, blockNumber uint64) (uint64, error) {
	var ts uint64
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, r.cfg.RetryMaxDelay, func(ctx context.Context) error {
		var err error
		ts, err = r.source.BlockTimestamp(ctx, blockNumber)
		if err != nil {
			r.logger.Warn("block timestamp fetch failed", zap.Error(err), zap.Uint64("block_number", blockNumber))
		}
		return err
	})
	return ts, err
}

func (r *Runner) isDuplicate(l types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", l.BlockNumber, l.TxHash.Hex(), l.Index)
	if _, ok := r.seen[id]; ok {
		return true
	}
	r.seen[id] = struct{}{}
	return false
}
