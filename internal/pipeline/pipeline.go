// Package pipeline drives creation events through discovery with validation,
// duplicate suppression, retries and throughput accounting.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"poolScout/internal/metrics"
	"poolScout/internal/model"
)

// Processor turns a creation event into a match. *discovery.Service implements it.
type Processor interface {
	ProcessCreationEvent(event model.CreationEvent) (*model.MatchResult, error)
}

// Config tunes retries and the health thresholds.
type Config struct {
	MaxRetries     int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	MinSuccessRate float64
	MinThroughput  float64
	MinSamples     uint64
}

// DefaultConfig returns the settings used when the CLI does not override them.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		BaseDelay:      500 * time.Millisecond,
		MaxDelay:       10 * time.Second,
		MinSuccessRate: 0.9,
		MinThroughput:  0,
		MinSamples:     20,
	}
}

// Outcome classifies a Result.
type Outcome string

const (
	OutcomeMatched   Outcome = "matched"
	OutcomeNoMatch   Outcome = "no_match"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// Result is the outcome of a single event.
type Result struct {
	PoolID   string
	Outcome  Outcome
	Match    *model.MatchResult
	Err      error
	Attempts int
	Duration time.Duration
}

// OK reports whether the event was processed without error, matched or not.
func (r Result) OK() bool {
	return r.Err == nil
}

// BatchResult aggregates the results of ProcessBatch in input order.
type BatchResult struct {
	Results   []Result
	Succeeded int
	Failed    int
	Matched   int
	Cancelled int
	Duration  time.Duration
}

// Matches returns the non-nil match results of the batch.
func (b BatchResult) Matches() []model.MatchResult {
	out := make([]model.MatchResult, 0, b.Matched)
	for _, r := range b.Results {
		if r.Match != nil {
			out = append(out, *r.Match)
		}
	}
	return out
}

// Pipeline wraps a Processor. It is safe for concurrent use; events for the
// same pool id are never processed concurrently.
type Pipeline struct {
	proc    Processor
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
	counters counters
}

// New builds a Pipeline. m may be nil.
func New(proc Processor, cfg Config, logger *zap.Logger, m *metrics.Metrics) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		proc:     proc,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
		inFlight: make(map[string]struct{}),
	}
}

// ProcessOne validates and processes an event once.
func (p *Pipeline) ProcessOne(ctx context.Context, event model.CreationEvent) Result {
	return p.process(ctx, event, 0, 0)
}

// ProcessWithRetry processes an event, retrying retryable failures with
// exponential backoff starting at baseDelay and capped at the configured
// MaxDelay. Exhaustion yields a *RetryError.
func (p *Pipeline) ProcessWithRetry(ctx context.Context, event model.CreationEvent, maxRetries int, baseDelay time.Duration) Result {
	return p.process(ctx, event, maxRetries, baseDelay)
}

// ProcessBatch processes events sequentially with the configured retry policy.
// A failed event does not stop the batch. Once ctx is done the remaining
// events are marked cancelled without being attempted.
func (p *Pipeline) ProcessBatch(ctx context.Context, events []model.CreationEvent) BatchResult {
	start := p.now()
	batch := BatchResult{Results: make([]Result, 0, len(events))}

	for _, event := range events {
		var res Result
		if err := ctx.Err(); err != nil {
			res = Result{PoolID: poolKey(event), Outcome: OutcomeCancelled, Err: err}
		} else {
			res = p.ProcessWithRetry(ctx, event, p.cfg.MaxRetries, p.cfg.BaseDelay)
		}

		switch res.Outcome {
		case OutcomeMatched:
			batch.Matched++
			batch.Succeeded++
		case OutcomeNoMatch:
			batch.Succeeded++
		case OutcomeCancelled:
			batch.Cancelled++
		default:
			batch.Failed++
		}
		batch.Results = append(batch.Results, res)
	}

	batch.Duration = p.now().Sub(start)
	p.logger.Debug("batch processed",
		zap.Int("events", len(events)),
		zap.Int("succeeded", batch.Succeeded),
		zap.Int("matched", batch.Matched),
		zap.Int("failed", batch.Failed),
		zap.Int("cancelled", batch.Cancelled),
		zap.Duration("duration", batch.Duration),
	)
	return batch
}

func (p *Pipeline) process(ctx context.Context, event model.CreationEvent, maxRetries int, baseDelay time.Duration) Result {
	start := p.now()
	res := Result{PoolID: poolKey(event)}
	log := p.logger.With(zap.String("pool_id", res.PoolID))

	if err := ValidateEvent(event); err != nil {
		log.Debug("event invalid", zap.Error(err))
		res.Outcome = OutcomeFailed
		res.Err = err
		return p.finish(res, start)
	}

	if !p.acquire(res.PoolID) {
		res.Outcome = OutcomeFailed
		res.Err = model.NewFieldError(model.ErrEventInFlight, "event", res.PoolID, "pool_id", "already being processed")
		return p.finish(res, start)
	}
	defer p.release(res.PoolID)

	onRetry := func(attempt int, err error, delay time.Duration) {
		p.metrics.ObserveRetry()
		p.mu.Lock()
		p.counters.retries++
		p.mu.Unlock()
		log.Warn("retryable failure", zap.Int("attempt", attempt), zap.Duration("backoff", delay), zap.Error(err))
	}

	attempts, err := withRetry(ctx, maxRetries, baseDelay, p.cfg.MaxDelay, onRetry, func(context.Context) error {
		match, err := p.proc.ProcessCreationEvent(event)
		if err != nil {
			return err
		}
		res.Match = match
		return nil
	})
	res.Attempts = attempts
	res.Err = err

	switch {
	case err == nil && res.Match != nil:
		res.Outcome = OutcomeMatched
	case err == nil:
		res.Outcome = OutcomeNoMatch
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		res.Outcome = OutcomeCancelled
	default:
		res.Outcome = OutcomeFailed
		log.Warn("event failed", zap.Int("attempts", attempts), zap.Error(err))
	}
	return p.finish(res, start)
}

func (p *Pipeline) finish(res Result, start time.Time) Result {
	res.Duration = p.now().Sub(start)
	links := 0
	if res.Match != nil {
		links = len(res.Match.Subscriptions)
	}
	p.record(res)
	p.metrics.ObserveEvent(string(res.Outcome), res.Duration, links)
	return res
}

func (p *Pipeline) acquire(poolID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inFlight[poolID]; busy {
		return false
	}
	p.inFlight[poolID] = struct{}{}
	return true
}

func (p *Pipeline) release(poolID string) {
	p.mu.Lock()
	delete(p.inFlight, poolID)
	p.mu.Unlock()
}

func poolKey(event model.CreationEvent) string {
	return strings.ToLower(strings.TrimSpace(event.PoolID))
}
