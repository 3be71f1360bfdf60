package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:          "ammctl",
		Short:        "Constant-product AMM ledger",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file path")
	flags.String("state-dir", "./data/state", "ledger state directory")
	flags.String("program-id", "", "AMM program id (base58), empty means the built-in id")
	flags.String("journal", "./data/journal.jsonl", "journal JSONL path")
	flags.String("pg-dsn", "", "optional Postgres DSN for the journal")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		newKeygenCmd(),
		newCreateMintCmd(),
		newMintToCmd(),
		newBalanceCmd(),
		newInitPoolCmd(),
		newDepositCmd(),
		newSwapCmd(),
		newWithdrawCmd(),
		newLockCmd(true),
		newLockCmd(false),
		newPoolCmd(),
		newReplayCmd(),
		newAggregateCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
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

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
