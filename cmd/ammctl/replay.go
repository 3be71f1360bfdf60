package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ammLedger/internal/config"
	"ammLedger/internal/replay"
)

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Execute an instruction JSONL file against the ledger",
		RunE:  runReplay,
	}
	cmd.Flags().String("in", "", "input instructions JSONL")
	cmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	cmd.Flags().Uint64("from", 0, "first sequence number (inclusive)")
	cmd.Flags().Uint64("to", 0, "last sequence number (inclusive), 0 means the last in the file")
	cmd.Flags().Uint64("batch-size", 500, "instructions per journal batch")
	cmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	cmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	cmd.Flags().Int("max-retries", 5, "maximum journal write retries")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address during the run")
	return cmd
}

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

	ctx := cmd.Context()
	a, err := openApp(ctx, cfg.Config, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.MetricsAddr != "" {
		stop := serveMetrics(a, cfg.MetricsAddr)
		defer stop()
	}

	runner := replay.NewRunner(replay.RunConfig{
		FromSeq:           cfg.FromSeq,
		ToSeq:             cfg.ToSeq,
		BatchSize:         cfg.BatchSize,
		ErrorsPath:        cfg.Errors,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
	}, a.engine, a.journal, a.metrics, logger)

	logger.Info("replay start",
		zap.String("in", cfg.In),
		zap.Uint64("from", cfg.FromSeq),
		zap.Uint64("to", cfg.ToSeq),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("journal", cfg.Journal),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.String("checkpoint", cfg.Checkpoint),
	)

	summary, err := runner.Run(ctx, cfg.In)
	if err != nil {
		return err
	}
	return printJSON(cmd, summary)
}

func serveMetrics(a *app, addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server", zap.Error(err))
		}
	}()
	a.logger.Info("metrics listening", zap.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
