package replay

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ammLedger/internal/amm"
	"ammLedger/internal/ledger"
	"ammLedger/internal/model"
	"ammLedger/internal/observability"
	"ammLedger/internal/storage"
)

// RunConfig holds runtime settings for a replay.
type RunConfig struct {
	FromSeq           uint64
	ToSeq             uint64
	BatchSize         uint64
	ErrorsPath        string
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
}

// Summary counts what a replay did.
type Summary struct {
	Applied  int
	Rejected int
	Skipped  int
	Failed   int
}

// Runner executes an instruction file through the engine and journals the results.
type Runner struct {
	cfg        RunConfig
	engine     *amm.Engine
	journal    storage.Journal
	metrics    *observability.Metrics
	logger     *zap.Logger
	checkpoint *CheckpointStore
}

// NewRunner builds a Runner with its dependencies. metrics may be nil.
func NewRunner(cfg RunConfig, engine *amm.Engine, journal storage.Journal, metrics *observability.Metrics, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		engine:     engine,
		journal:    journal,
		metrics:    metrics,
		logger:     logger,
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
	}
}

// Run replays the instructions in inputPath. Rejected instructions are
// journaled with their error and do not stop the run. Instructions at or
// below the ledger's applied sequence number are skipped, so a run that
// failed after its writes were committed can be repeated.
func (r *Runner) Run(ctx context.Context, inputPath string) (Summary, error) {
	var summary Summary
	if r.engine == nil {
		return summary, fmt.Errorf("engine is nil")
	}
	if r.journal == nil {
		return summary, fmt.Errorf("journal is nil")
	}
	if r.cfg.BatchSize == 0 {
		return summary, fmt.Errorf("batch size must be greater than zero")
	}

	instructions, failures, err := ReadInstructions(inputPath)
	if err != nil {
		return summary, err
	}
	summary.Failed = len(failures)
	if err := r.writeDecodeErrors(failures); err != nil {
		return summary, err
	}
	if len(instructions) == 0 {
		r.logger.Info("no instructions", zap.String("in", inputPath), zap.Int("failed", summary.Failed))
		return summary, nil
	}

	from := r.cfg.FromSeq
	if first := instructions[0].Seq; from < first {
		from = first
	}
	to := r.cfg.ToSeq
	if last := instructions[len(instructions)-1].Seq; to == 0 || to > last {
		to = last
	}

	if r.checkpoint != nil {
		cp, ok, err := r.checkpoint.Load()
		if err != nil {
			return summary, err
		}
		if ok && cp.Input != "" && cp.Input != inputPath {
			r.logger.Warn("checkpoint was written for another input", zap.String("checkpoint_input", cp.Input), zap.String("in", inputPath))
		}
		if ok && cp.LastProcessedSeq >= from {
			from = cp.LastProcessedSeq + 1
			r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", cp.LastProcessedSeq), zap.Uint64("from", from))
		}
	}

	if from > to {
		r.logger.Info("nothing to replay", zap.Uint64("from", from), zap.Uint64("to", to))
		return summary, nil
	}

	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return summary, err
	}

	applied := r.engine.Ledger().AppliedSeq()
	next := 0
	for _, seqRange := range ranges {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		records := make([]model.JournalRecord, 0, r.cfg.BatchSize)
		for next < len(instructions) && instructions[next].Seq <= seqRange.To {
			ins := instructions[next]
			next++
			if ins.Seq < seqRange.From {
				summary.Skipped++
				continue
			}
			if ins.Seq <= applied {
				summary.Skipped++
				r.logger.Warn("instruction already applied, journal record may be missing", zap.Uint64("seq", ins.Seq), zap.Uint64("applied_seq", applied))
				continue
			}

			rec := r.engine.Apply(ledger.WithSeq(ctx, ins.Seq), ins)
			if rec.Succeeded() {
				summary.Applied++
			} else {
				summary.Rejected++
				r.logger.Debug("instruction rejected", zap.Uint64("seq", ins.Seq), zap.String("kind", ins.Kind), zap.String("error", rec.Error))
			}
			records = append(records, rec)
			if r.metrics != nil {
				r.metrics.ReplayInstructions.Inc()
			}
		}

		if err := r.putWithRetry(ctx, records); err != nil {
			return summary, fmt.Errorf("store journal: %w", err)
		}

		if r.checkpoint != nil {
			cp := Checkpoint{Input: inputPath, LastProcessedSeq: seqRange.To, Applied: summary.Applied, Rejected: summary.Rejected}
			if err := r.checkpoint.Save(cp); err != nil {
				return summary, err
			}
		}
		if r.metrics != nil {
			r.metrics.LastProcessedSeq.Set(float64(seqRange.To))
		}

		r.logger.Info("batch complete", zap.Int("records", len(records)), zap.Uint64("from", seqRange.From), zap.Uint64("to", seqRange.To))
	}

	r.logger.Info("replay complete",
		zap.Int("applied", summary.Applied),
		zap.Int("rejected", summary.Rejected),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

func (r *Runner) putWithRetry(ctx context.Context, records []model.JournalRecord) error {
	start := time.Now()
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		err := r.journal.PutJournalBatch(ctx, records)
		if err != nil {
			r.logger.Warn("journal write failed", zap.Error(err), zap.Int("records", len(records)))
		}
		return err
	})
	if r.metrics != nil {
		r.metrics.JournalWriteDuration.Observe(time.Since(start).Seconds())
	}
	return err
}

func (r *Runner) writeDecodeErrors(failures []model.DecodeError) error {
	if len(failures) == 0 {
		return nil
	}
	for _, f := range failures {
		r.logger.Warn("decode instruction", zap.Uint64("line", f.Line), zap.String("error", f.Error))
		if r.metrics != nil {
			r.metrics.ReplayDecodeErrors.Inc()
		}
	}
	if r.cfg.ErrorsPath == "" {
		return nil
	}

	w, err := newJSONLWriter(r.cfg.ErrorsPath)
	if err != nil {
		return err
	}
	for _, f := range failures {
		if err := w.Write(f); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}
