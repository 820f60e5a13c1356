// Package config loads command settings from flags, SCOUT_* environment
// variables and an optional config file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "SCOUT"

// Common holds the settings shared by every command.
type Common struct {
	Subscriptions  string
	Out            string
	ErrorsOut      string
	PGDSN          string
	MetricsAddr    string
	MaxRetries     int
	RetryBackoff   time.Duration
	RetryMaxDelay  time.Duration
	MinSuccessRate float64
	MinThroughput  float64
	MinSamples     uint64
	LogLevel       string
}

// Config holds the settings of the run command.
type Config struct {
	Common
	RPCURL            string
	PoolManager       string
	FromBlock         uint64
	ToBlock           uint64
	BatchSize         uint64
	Checkpoint        string
	CheckpointEnabled bool
}

// ReplayConfig holds the settings of the replay command.
type ReplayConfig struct {
	Common
	In string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("batch-size", uint64(2000))
		v.SetDefault("checkpoint", "./data/checkpoint.json")
		v.SetDefault("checkpoint-enabled", true)
	})
	if err != nil {
		return Config{}, err
	}

	return Config{
		Common:            loadCommon(v),
		RPCURL:            v.GetString("rpc"),
		PoolManager:       strings.TrimSpace(v.GetString("pool-manager")),
		FromBlock:         v.GetUint64("from"),
		ToBlock:           v.GetUint64("to"),
		BatchSize:         v.GetUint64("batch-size"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
	}, nil
}

// LoadReplay merges config file, environment variables, and flags into ReplayConfig.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	v, err := newViper(cfgFile, flags, nil)
	if err != nil {
		return ReplayConfig{}, err
	}
	return ReplayConfig{Common: loadCommon(v), In: v.GetString("in")}, nil
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults func(*viper.Viper)) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("subscriptions", "./subscriptions.yaml")
	v.SetDefault("out", "./data/matches.jsonl")
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("retry-max-delay", 10*time.Second)
	v.SetDefault("min-success-rate", 0.9)
	v.SetDefault("min-samples", uint64(20))
	v.SetDefault("log-level", "info")
	if defaults != nil {
		defaults(v)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("scout")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func loadCommon(v *viper.Viper) Common {
	return Common{
		Subscriptions:  v.GetString("subscriptions"),
		Out:            v.GetString("out"),
		ErrorsOut:      v.GetString("errors-out"),
		PGDSN:          v.GetString("pg-dsn"),
		MetricsAddr:    v.GetString("metrics-addr"),
		MaxRetries:     v.GetInt("max-retries"),
		RetryBackoff:   v.GetDuration("retry-backoff"),
		RetryMaxDelay:  v.GetDuration("retry-max-delay"),
		MinSuccessRate: v.GetFloat64("min-success-rate"),
		MinThroughput:  v.GetFloat64("min-throughput"),
		MinSamples:     v.GetUint64("min-samples"),
		LogLevel:       v.GetString("log-level"),
	}
}
