package pipeline

import (
	"fmt"
	"time"
)

type counters struct {
	processed    uint64
	succeeded    uint64
	failed       uint64
	matched      uint64
	cancelled    uint64
	retries      uint64
	totalLatency time.Duration
	first        time.Time
	last         time.Time
}

// Stats is a snapshot of the pipeline counters and the rates derived from them.
// Throughput is events per second between the first and the last completed event.
type Stats struct {
	Processed    uint64        `json:"processed"`
	Succeeded    uint64        `json:"succeeded"`
	Failed       uint64        `json:"failed"`
	Matched      uint64        `json:"matched"`
	Cancelled    uint64        `json:"cancelled"`
	Retries      uint64        `json:"retries"`
	TotalLatency time.Duration `json:"total_latency"`
	SuccessRate  float64       `json:"success_rate"`
	AvgLatency   time.Duration `json:"avg_latency"`
	Throughput   float64       `json:"throughput"`
}

// Health reports whether the pipeline meets its thresholds.
type Health struct {
	Healthy bool     `json:"healthy"`
	Reasons []string `json:"reasons"`
	Stats   Stats    `json:"stats"`
}

func (p *Pipeline) record(res Result) {
	end := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()

	c := &p.counters
	c.processed++
	switch res.Outcome {
	case OutcomeMatched:
		c.matched++
		c.succeeded++
	case OutcomeNoMatch:
		c.succeeded++
	case OutcomeCancelled:
		c.cancelled++
	default:
		c.failed++
	}
	c.totalLatency += res.Duration
	if c.first.IsZero() {
		c.first = end.Add(-res.Duration)
	}
	c.last = end
}

// Stats returns the current counters.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	c := p.counters
	p.mu.Unlock()

	s := Stats{
		Processed:    c.processed,
		Succeeded:    c.succeeded,
		Failed:       c.failed,
		Matched:      c.matched,
		Cancelled:    c.cancelled,
		Retries:      c.retries,
		TotalLatency: c.totalLatency,
	}
	if c.processed == 0 {
		return s
	}
	s.SuccessRate = float64(c.succeeded) / float64(c.processed)
	s.AvgLatency = c.totalLatency / time.Duration(c.processed)
	if elapsed := c.last.Sub(c.first); elapsed > 0 {
		s.Throughput = float64(c.processed) / elapsed.Seconds()
	}
	return s
}

// Health compares the stats against the configured minimums. Thresholds only
// apply once MinSamples events have been processed.
func (p *Pipeline) Health() Health {
	stats := p.Stats()
	h := Health{Healthy: true, Reasons: []string{}, Stats: stats}
	if stats.Processed == 0 || stats.Processed < p.cfg.MinSamples {
		return h
	}

	if stats.SuccessRate < p.cfg.MinSuccessRate {
		h.Reasons = append(h.Reasons, fmt.Sprintf("success rate %.3f below %.3f", stats.SuccessRate, p.cfg.MinSuccessRate))
	}
	if p.cfg.MinThroughput > 0 && stats.Throughput < p.cfg.MinThroughput {
		h.Reasons = append(h.Reasons, fmt.Sprintf("throughput %.2f/s below %.2f/s", stats.Throughput, p.cfg.MinThroughput))
	}
	h.Healthy = len(h.Reasons) == 0
	return h
}
