package aggregate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"ammLedger/internal/model"
	"ammLedger/internal/observability"
)

// Store receives aggregated pools and windows.
type Store interface {
	UpsertPools(ctx context.Context, pools []model.Pool) error
	UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error
}

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds uint64
	BatchSize     int
	RecomputeFrom uint64
	StateStore    StateStore
}

// Aggregator folds journal records into per-pool window metrics.
type Aggregator struct {
	cfg          Config
	store        Store
	metrics      *observability.Metrics
	logger       *zap.Logger
	accumulators map[string]*Accumulator
	lastTS       uint64
}

// NewAggregator builds an Aggregator. metrics may be nil.
func NewAggregator(cfg Config, store Store, metrics *observability.Metrics, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		cfg:          cfg,
		store:        store,
		metrics:      metrics,
		logger:       logger,
		accumulators: make(map[string]*Accumulator),
	}
}

// Run aggregates the journal JSONL file at inputPath. Records at or before the
// stored state timestamp are skipped; RecomputeFrom overrides the stored state.
func (a *Aggregator) Run(ctx context.Context, inputPath string) error {
	if a.store == nil {
		return fmt.Errorf("store is nil")
	}
	if a.cfg.WindowSeconds == 0 {
		return fmt.Errorf("window seconds must be > 0")
	}
	if a.cfg.BatchSize <= 0 {
		a.cfg.BatchSize = 1000
	}

	startTs, err := a.loadStartTimestamp(ctx)
	if err != nil {
		return err
	}
	a.lastTS = startTs

	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	batch := make([]model.PoolWindowMetrics, 0, a.cfg.BatchSize)
	pools := make(map[string]model.Pool)
	var total, windows, skipped, failed int

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		total++

		var record model.JournalRecord
		if err := json.Unmarshal(line, &record); err != nil {
			failed++
			a.logger.Warn("decode journal record", zap.Error(err))
			continue
		}
		if record.Timestamp <= startTs || !record.Succeeded() || record.Pool.IsZero() {
			skipped++
			continue
		}

		start := windowStart(record.Timestamp, a.cfg.WindowSeconds)
		key := record.Pool.String()
		acc := a.accumulators[key]
		if acc != nil && acc.WindowStart != start {
			batch, pools = a.flush(acc, batch, pools)
			windows++
			acc = nil
		}
		if acc == nil {
			acc = NewAccumulator(record, start, start+a.cfg.WindowSeconds)
			a.accumulators[key] = acc
		}
		if !acc.AddRecord(record) {
			skipped++
			continue
		}
		if record.Timestamp > a.lastTS {
			a.lastTS = record.Timestamp
		}

		if len(batch) >= a.cfg.BatchSize {
			if err := a.write(ctx, batch, pools); err != nil {
				return err
			}
			batch = batch[:0]
			pools = make(map[string]model.Pool)
			if err := a.saveState(ctx); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}

	for _, acc := range a.accumulators {
		batch, pools = a.flush(acc, batch, pools)
		windows++
	}
	a.accumulators = make(map[string]*Accumulator)

	if err := a.write(ctx, batch, pools); err != nil {
		return err
	}
	if err := a.saveState(ctx); err != nil {
		return err
	}

	a.logger.Info("aggregate complete",
		zap.Int("total", total),
		zap.Int("windows", windows),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)
	return nil
}

func (a *Aggregator) loadStartTimestamp(ctx context.Context) (uint64, error) {
	if a.cfg.RecomputeFrom > 0 {
		return a.cfg.RecomputeFrom - 1, nil
	}
	if a.cfg.StateStore == nil {
		return 0, nil
	}
	last, ok, err := a.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return last, nil
}

// saveState stores the newest timestamp whose window is closed. While windows
// are still open the state stops just before the oldest of them.
func (a *Aggregator) saveState(ctx context.Context) error {
	if a.cfg.StateStore == nil {
		return nil
	}
	safeTs := a.lastTS
	if open := minOpenWindowStart(a.accumulators); open > 0 && open-1 < safeTs {
		safeTs = open - 1
	}
	return a.cfg.StateStore.Save(ctx, safeTs)
}

func (a *Aggregator) flush(acc *Accumulator, batch []model.PoolWindowMetrics, pools map[string]model.Pool) ([]model.PoolWindowMetrics, map[string]model.Pool) {
	batch = append(batch, acc.Metrics(a.cfg.WindowSeconds))
	if acc.LastState != nil {
		pools[acc.PoolAddress] = acc.Pool
	}
	if a.metrics != nil {
		a.metrics.WindowsComputed.Inc()
	}
	return batch, pools
}

func (a *Aggregator) write(ctx context.Context, batch []model.PoolWindowMetrics, pools map[string]model.Pool) error {
	if len(pools) > 0 {
		list := make([]model.Pool, 0, len(pools))
		for _, pool := range pools {
			list = append(list, pool)
		}
		if err := a.store.UpsertPools(ctx, list); err != nil {
			return fmt.Errorf("upsert pools: %w", err)
		}
	}
	if len(batch) > 0 {
		if err := a.store.UpsertWindowMetrics(ctx, batch); err != nil {
			return fmt.Errorf("upsert window metrics: %w", err)
		}
	}
	return nil
}

func minOpenWindowStart(acc map[string]*Accumulator) uint64 {
	var min uint64
	for _, entry := range acc {
		if entry == nil {
			continue
		}
		if min == 0 || entry.WindowStart < min {
			min = entry.WindowStart
		}
	}
	return min
}
