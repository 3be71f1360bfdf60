package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. AMM_STATE_DIR.
const EnvPrefix = "AMM"

// Config holds the settings shared by every command.
type Config struct {
	StateDir    string
	ProgramID   string
	LogLevel    string
	Journal     string
	PGDSN       string
	MetricsAddr string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags, nil)
	if err != nil {
		return Config{}, err
	}
	return common(v), nil
}

// ReplayConfig holds configuration for the replay command.
type ReplayConfig struct {
	Config
	In                string
	Errors            string
	FromSeq           uint64
	ToSeq             uint64
	BatchSize         uint64
	Checkpoint        string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
}

// LoadReplay merges config file, environment variables, and flags into ReplayConfig.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"errors":             "./data/decode_errors.jsonl",
		"batch-size":         uint64(500),
		"checkpoint":         "./data/checkpoint.json",
		"checkpoint-enabled": true,
		"max-retries":        5,
		"retry-backoff":      500 * time.Millisecond,
	})
	if err != nil {
		return ReplayConfig{}, err
	}

	cfg := ReplayConfig{
		Config:            common(v),
		In:                v.GetString("in"),
		Errors:            v.GetString("errors"),
		FromSeq:           v.GetUint64("from"),
		ToSeq:             v.GetUint64("to"),
		BatchSize:         v.GetUint64("batch-size"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
	}
	if cfg.In == "" {
		return ReplayConfig{}, fmt.Errorf("in is required")
	}
	if cfg.ToSeq != 0 && cfg.FromSeq > cfg.ToSeq {
		return ReplayConfig{}, fmt.Errorf("from (%d) is after to (%d)", cfg.FromSeq, cfg.ToSeq)
	}
	return cfg, nil
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("state-dir", "./data/state")
	v.SetDefault("log-level", "info")
	v.SetDefault("journal", "./data/journal.jsonl")
	for key, value := range defaults {
		v.SetDefault(key, value)
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
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func common(v *viper.Viper) Config {
	return Config{
		StateDir:    v.GetString("state-dir"),
		ProgramID:   strings.TrimSpace(v.GetString("program-id")),
		LogLevel:    v.GetString("log-level"),
		Journal:     v.GetString("journal"),
		PGDSN:       v.GetString("pg-dsn"),
		MetricsAddr: v.GetString("metrics-addr"),
	}
}
