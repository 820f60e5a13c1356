package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"poolScout/internal/config"
	"poolScout/internal/discovery"
	"poolScout/internal/match"
	"poolScout/internal/metrics"
	"poolScout/internal/pipeline"
	"poolScout/internal/registry"
	"poolScout/internal/storage"
	"poolScout/internal/storage/postgres"
)

// app holds the components shared by the run and replay commands.
type app struct {
	service  *discovery.Service
	pipeline *pipeline.Pipeline
	sink     storage.Sink
	jsonl    *storage.JsonlSink
	store    *postgres.Store
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func newApp(ctx context.Context, cfg config.Common, logger *zap.Logger) (*app, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	svc := discovery.NewService(registry.NewPoolIndex(), registry.NewSubscriptionIndex(), match.NewEngine(), logger.Named("discovery"))

	requests, err := config.LoadSubscriptions(cfg.Subscriptions)
	if err != nil {
		return nil, err
	}
	for _, req := range requests {
		sub, err := svc.RegisterSubscription(req)
		if err != nil {
			return nil, fmt.Errorf("register subscription %q: %w", req.ID, err)
		}
		logger.Debug("subscription loaded", zap.String("subscription_id", sub.ID))
	}
	counts := svc.ServiceStats().Subscriptions
	m.SetRegistrySize(0, counts.Active, counts.Total-counts.Active)
	logger.Info("subscriptions loaded", zap.Int("total", counts.Total), zap.Int("active", counts.Active))

	pipe := pipeline.New(svc, pipeline.Config{
		MaxRetries:     cfg.MaxRetries,
		BaseDelay:      cfg.RetryBackoff,
		MaxDelay:       cfg.RetryMaxDelay,
		MinSuccessRate: cfg.MinSuccessRate,
		MinThroughput:  cfg.MinThroughput,
		MinSamples:     cfg.MinSamples,
	}, logger.Named("pipeline"), m)

	a := &app{
		service:  svc,
		pipeline: pipe,
		jsonl:    storage.NewJsonlSink(cfg.Out, cfg.ErrorsOut),
		registry: reg,
		metrics:  m,
		logger:   logger,
	}

	sinks := storage.Fanout{a.jsonl}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
		a.store = store
		sinks = append(sinks, store)
	}
	a.sink = sinks
	return a, nil
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
}

// serveMetrics exposes /metrics on addr until ctx is done.
func (a *app) serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(a.registry))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("metrics listening", zap.String("addr", addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

// report logs the final service and pipeline state.
func (a *app) report() {
	stats := a.service.ServiceStats()
	health := a.service.HealthCheck()
	pipeStats := a.pipeline.Stats()
	pipeHealth := a.pipeline.Health()

	a.logger.Info("service stats",
		zap.Int("pools", stats.Pools.Total),
		zap.Int("distinct_pairs", stats.Pools.DistinctPairs),
		zap.Int("subscriptions", stats.Subscriptions.Total),
		zap.Int("active_subscriptions", stats.Subscriptions.Active),
		zap.Int("links", stats.Subscriptions.Links),
		zap.Bool("healthy", health.Healthy),
		zap.Strings("errors", health.Errors),
	)
	a.logger.Info("pipeline stats",
		zap.Uint64("processed", pipeStats.Processed),
		zap.Uint64("matched", pipeStats.Matched),
		zap.Uint64("failed", pipeStats.Failed),
		zap.Uint64("retries", pipeStats.Retries),
		zap.Float64("success_rate", pipeStats.SuccessRate),
		zap.Duration("avg_latency", pipeStats.AvgLatency),
		zap.Float64("throughput", pipeStats.Throughput),
		zap.Bool("healthy", pipeHealth.Healthy),
		zap.Strings("reasons", pipeHealth.Reasons),
	)
}
