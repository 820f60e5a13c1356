package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"poolScout/internal/chain"
	"poolScout/internal/config"
	"poolScout/internal/dex"
	"poolScout/internal/indexer"
	"poolScout/internal/storage/postgres"
)

func runScan(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	addresses, err := indexer.ParseAddresses([]string{cfg.PoolManager})
	if err != nil {
		return err
	}
	if len(addresses) == 0 {
		return fmt.Errorf("pool manager address is required")
	}
	poolManager := addresses[0]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg.Common, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	decoder, err := dex.NewInitializeDecoder()
	if err != nil {
		return fmt.Errorf("load abi: %w", err)
	}

	opts := []indexer.Option{
		indexer.WithDecodeErrorSink(a.jsonl),
		indexer.WithMetrics(a.metrics, a.service),
	}
	if cp := checkpointFor(cfg, a.store, poolManager); cp != nil {
		opts = append(opts, indexer.WithCheckpoint(cp))
	}

	runner := indexer.NewRunner(indexer.RunConfig{
		FromBlock:     cfg.FromBlock,
		ToBlock:       cfg.ToBlock,
		PoolManager:   poolManager,
		BatchSize:     cfg.BatchSize,
		MaxRetries:    cfg.MaxRetries,
		RetryBackoff:  cfg.RetryBackoff,
		RetryMaxDelay: cfg.RetryMaxDelay,
	}, chainClient, decoder, a.pipeline, a.sink, logger.Named("indexer"), opts...)

	logger.Info("scout start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("pool_manager", poolManager.Hex()),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("out", cfg.Out),
		zap.Bool("postgres", a.store != nil),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
	)

	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancelRun := context.WithCancel(gctx)
	defer cancelRun()

	g.Go(func() error {
		defer cancelRun()
		summary, err := runner.Run(runCtx)
		logger.Info("scan finished",
			zap.Int("ranges", summary.Ranges),
			zap.Int("logs", summary.Logs),
			zap.Int("events", summary.Events),
			zap.Int("matched", summary.Matched),
			zap.Int("failed", summary.Failed),
			zap.Uint64("last_block", summary.LastBlock),
		)
		return err
	})
	if cfg.MetricsAddr != "" {
		g.Go(func() error { return a.serveMetrics(runCtx, cfg.MetricsAddr) })
	}

	err = g.Wait()
	a.report()
	return err
}

func checkpointFor(cfg config.Config, store *postgres.Store, poolManager common.Address) indexer.Checkpointer {
	if !cfg.CheckpointEnabled {
		return nil
	}
	if store != nil {
		return postgres.Checkpoint{Store: store, Name: "scout:" + strings.ToLower(poolManager.Hex())}
	}
	return indexer.NewFileCheckpoint(cfg.Checkpoint)
}
