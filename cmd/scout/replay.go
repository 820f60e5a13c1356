package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"poolScout/internal/config"
	"poolScout/internal/model"
	"poolScout/internal/storage"
)

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input file is required")
	}

	events, err := storage.ReadCreationEvents(cfg.In)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg.Common, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	logger.Info("replay start", zap.String("in", cfg.In), zap.Int("events", len(events)), zap.String("out", cfg.Out))

	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancelRun := context.WithCancel(gctx)
	defer cancelRun()

	g.Go(func() error {
		defer cancelRun()
		return a.replay(runCtx, events)
	})
	if cfg.MetricsAddr != "" {
		g.Go(func() error { return a.serveMetrics(runCtx, cfg.MetricsAddr) })
	}

	err = g.Wait()
	a.report()
	return err
}

func (a *app) replay(ctx context.Context, events []model.CreationEvent) error {
	batch := a.pipeline.ProcessBatch(ctx, events)

	var failures []model.DecodeError
	for i, res := range batch.Results {
		if res.Err == nil {
			continue
		}
		failures = append(failures, model.DecodeError{
			BlockNumber: events[i].BlockNumber,
			TxHash:      events[i].TxHash,
			LogIndex:    events[i].LogIndex,
			PoolID:      res.PoolID,
			Stage:       string(res.Outcome),
			Error:       res.Err.Error(),
		})
	}

	err := a.sink.PutMatches(ctx, batch.Matches())
	a.metrics.ObserveSinkWrite(err)
	if err != nil {
		return fmt.Errorf("store matches: %w", err)
	}
	if err := a.jsonl.PutDecodeErrors(failures); err != nil {
		return fmt.Errorf("store errors: %w", err)
	}

	stats := a.service.ServiceStats()
	a.metrics.SetRegistrySize(stats.Pools.Total, stats.Subscriptions.Active, stats.Subscriptions.Total-stats.Subscriptions.Active)

	a.logger.Info("replay finished",
		zap.Int("events", len(events)),
		zap.Int("matched", batch.Matched),
		zap.Int("failed", batch.Failed),
		zap.Int("cancelled", batch.Cancelled),
		zap.Duration("duration", batch.Duration),
	)
	if batch.Cancelled > 0 {
		return ctx.Err()
	}
	return nil
}
