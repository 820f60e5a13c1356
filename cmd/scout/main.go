package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "scout",
		Short:        "Uniswap v4 pool discovery and subscription matching",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Scan PoolManager Initialize logs and match new pools",
		RunE:  runScan,
	}

	runCmd.Flags().String("rpc", "", "RPC URL")
	runCmd.Flags().String("pool-manager", "", "PoolManager contract address")
	runCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	runCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	runCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	runCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	runCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	addCommonFlags(runCmd)

	root.AddCommand(runCmd)

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Match decoded creation events from a JSONL file",
		RunE:  runReplay,
	}

	replayCmd.Flags().String("in", "", "input creation events JSONL")
	addCommonFlags(replayCmd)

	root.AddCommand(replayCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().String("subscriptions", "./subscriptions.yaml", "subscriptions YAML file")
	cmd.Flags().String("out", "./data/matches.jsonl", "output matches JSONL")
	cmd.Flags().String("errors-out", "", "decode and processing errors JSONL (disabled when empty)")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN for match persistence")
	cmd.Flags().String("metrics-addr", "", "Prometheus listen address, e.g. :9100 (disabled when empty)")
	cmd.Flags().Int("max-retries", 3, "maximum retry attempts")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().Duration("retry-max-delay", 10*time.Second, "maximum retry backoff")
	cmd.Flags().Float64("min-success-rate", 0.9, "health threshold for event success rate")
	cmd.Flags().Float64("min-throughput", 0, "health threshold for events per second (0 disables)")
	cmd.Flags().Uint64("min-samples", 20, "events required before health thresholds apply")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
