package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/event"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ammLedger/internal/address"
	"ammLedger/internal/amm"
	"ammLedger/internal/config"
	"ammLedger/internal/ledger"
	"ammLedger/internal/model"
	"ammLedger/internal/observability"
	"ammLedger/internal/storage"
	pebblestore "ammLedger/internal/storage/pebble"
	"ammLedger/internal/storage/postgres"
)

// app is the ledger opened from the state directory, with the engine and
// journal sinks wired to it.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	store   *pebblestore.Store
	pg      *postgres.Store
	ledger  *ledger.Ledger
	engine  *amm.Engine
	journal storage.Journal
	metrics *observability.Metrics
}

func openApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	programID := address.DefaultProgramID
	if cfg.ProgramID != "" {
		id, err := address.Parse(cfg.ProgramID)
		if err != nil {
			return nil, fmt.Errorf("parse program id: %w", err)
		}
		programID = id
	}

	store, err := pebblestore.Open(cfg.StateDir, logger)
	if err != nil {
		return nil, err
	}
	applied, err := store.AppliedSeq()
	if err != nil {
		store.Close()
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		metrics: observability.NewMetrics(""),
	}
	// entries are read from the store on first use
	a.ledger = ledger.New(programID, store, logger)
	a.ledger.SetSource(store)
	a.ledger.Load(ledger.State{AppliedSeq: applied})
	a.engine = amm.NewEngine(a.ledger, a.metrics, logger)

	sinks := []storage.Journal{storage.NewJsonlJournal(cfg.Journal)}
	if cfg.PGDSN != "" {
		pg, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			store.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		a.pg = pg
		sinks = append(sinks, pg)
	}
	a.journal = storage.NewMultiJournal(sinks...)

	logger.Debug("ledger opened",
		zap.String("state_dir", cfg.StateDir),
		zap.Stringer("program_id", programID),
		zap.Uint64("applied_seq", applied),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
	)
	return a, nil
}

func (a *app) Close() {
	if a.pg != nil {
		a.pg.Close()
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close state", zap.Error(err))
	}
}

// withApp loads the common config, opens the app and runs fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
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

	ctx := cmd.Context()
	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// apply runs one instruction under a fresh journal sequence number. The
// record reaches the journal through the engine's feed. The ledger write is
// durable before the journal write, so a journal failure is reported
// together with the record rather than as a failed operation.
func (a *app) apply(ctx context.Context, cmd *cobra.Command, ins model.Instruction) error {
	seq, err := a.store.NextSeq()
	if err != nil {
		return err
	}
	ins.Seq = seq

	pump := startJournalPump(ctx, a.engine, a.journal, a.logger)
	rec := a.engine.Apply(ctx, ins)
	journalErr := pump.Close()

	if err := printJSON(cmd, rec); err != nil {
		return err
	}
	if journalErr != nil {
		if rec.Succeeded() {
			return fmt.Errorf("%s %d applied, do not retry: write journal: %w", ins.Kind, seq, journalErr)
		}
		return fmt.Errorf("write journal: %w", journalErr)
	}
	if !rec.Succeeded() {
		return fmt.Errorf("%s rejected: %s (code %d)", ins.Kind, rec.Error, rec.ErrorCode)
	}
	return nil
}

// journalPump writes every record published by the engine to a journal.
type journalPump struct {
	sub  event.Subscription
	ch   chan model.JournalRecord
	done chan struct{}
	err  error
}

func startJournalPump(ctx context.Context, engine *amm.Engine, journal storage.Journal, logger *zap.Logger) *journalPump {
	p := &journalPump{
		ch:   make(chan model.JournalRecord, 16),
		done: make(chan struct{}),
	}
	p.sub = engine.Subscribe(p.ch)

	write := func(rec model.JournalRecord) {
		if err := journal.PutJournalBatch(ctx, []model.JournalRecord{rec}); err != nil {
			logger.Error("journal write failed", zap.Uint64("seq", rec.Seq), zap.Error(err))
			if p.err == nil {
				p.err = err
			}
		}
	}

	go func() {
		defer close(p.done)
		for {
			select {
			case rec := <-p.ch:
				write(rec)
			case <-p.sub.Err():
				for {
					select {
					case rec := <-p.ch:
						write(rec)
					default:
						return
					}
				}
			}
		}
	}()
	return p
}

// Close stops the subscription and waits until buffered records are written.
func (p *journalPump) Close() error {
	p.sub.Unsubscribe()
	<-p.done
	return p.err
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func keyFlag(cmd *cobra.Command, name string) (address.PublicKey, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return address.PublicKey{}, fmt.Errorf("--%s is required", name)
	}
	key, err := address.Parse(raw)
	if err != nil {
		return address.PublicKey{}, fmt.Errorf("--%s: %w", name, err)
	}
	return key, nil
}

// poolFlag resolves --pool, or derives the pool address from --seed.
func poolFlag(cmd *cobra.Command, engine *amm.Engine) (address.PublicKey, error) {
	if raw, _ := cmd.Flags().GetString("pool"); raw != "" {
		return keyFlag(cmd, "pool")
	}
	if !cmd.Flags().Changed("seed") {
		return address.PublicKey{}, fmt.Errorf("--pool or --seed is required")
	}
	seed, _ := cmd.Flags().GetUint64("seed")
	return engine.PoolAddress(seed)
}

func addPoolFlags(cmd *cobra.Command) {
	cmd.Flags().String("pool", "", "pool config address (base58)")
	cmd.Flags().Uint64("seed", 0, "pool seed, used when --pool is empty")
	cmd.Flags().String("user", "", "acting user public key (base58)")
}
