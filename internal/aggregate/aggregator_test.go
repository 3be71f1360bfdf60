package aggregate

import (
	"context"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"ammLedger/internal/address"
	"ammLedger/internal/model"
)

type memStore struct {
	pools   []model.Pool
	windows []model.PoolWindowMetrics
}

func (m *memStore) UpsertPools(_ context.Context, pools []model.Pool) error {
	m.pools = append(m.pools, pools...)
	return nil
}

func (m *memStore) UpsertWindowMetrics(_ context.Context, metrics []model.PoolWindowMetrics) error {
	m.windows = append(m.windows, metrics...)
	return nil
}

func writeJournal(t *testing.T, records []model.JournalRecord) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create journal: %v", err)
	}
	defer file.Close()
	for _, rec := range records {
		line, err := json.Marshal(rec)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if _, err := file.Write(append(line, '\n')); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return path
}

func poolState(pool address.PublicKey, x, y, supply uint64) *model.PoolState {
	return &model.PoolState{Pool: model.Pool{Address: pool, FeeBps: 100}, VaultX: x, VaultY: y, LPSupply: supply}
}

func sampleJournal(pool address.PublicKey) []model.JournalRecord {
	return []model.JournalRecord{
		{Seq: 1, Kind: model.KindDeposit, Pool: pool, Timestamp: 10, Deposit: &model.DepositEventData{LPAmount: 1000, AmountX: 1000, AmountY: 1000}, State: poolState(pool, 1000, 1000, 1000)},
		{Seq: 2, Kind: model.KindSwap, Pool: pool, Timestamp: 20, Swap: &model.SwapEventData{IsX: true, AmountIn: 100, Fee: 1, AmountOut: 90}, State: poolState(pool, 1100, 910, 1000)},
		{Seq: 3, Kind: model.KindSwap, Pool: pool, Timestamp: 30, Error: "SlippageExceeded", ErrorCode: 6005},
		{Seq: 4, Kind: model.KindSwap, Pool: pool, Timestamp: 70, Swap: &model.SwapEventData{IsX: false, AmountIn: 50, Fee: 2, AmountOut: 55}, State: poolState(pool, 1045, 960, 1000)},
		{Seq: 5, Kind: model.KindWithdraw, Pool: pool, Timestamp: 80, Withdraw: &model.WithdrawEventData{LPAmount: 500, AmountX: 522, AmountY: 480}, State: poolState(pool, 523, 480, 500)},
	}
}

func TestAggregatorWindows(t *testing.T) {
	pool := address.FromLabel("pool")
	input := writeJournal(t, sampleJournal(pool))
	store := &memStore{}
	state := &FileStateStore{Path: filepath.Join(t.TempDir(), "state.json")}

	agg := NewAggregator(Config{WindowSeconds: 60, BatchSize: 10, StateStore: state}, store, nil, nil)
	if err := agg.Run(context.Background(), input); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(store.windows) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(store.windows))
	}
	first, second := store.windows[0], store.windows[1]
	if first.WindowStart.Unix() != 0 || second.WindowStart.Unix() != 60 {
		t.Fatalf("unexpected window starts %v %v", first.WindowStart, second.WindowStart)
	}
	if first.SwapCount != 1 || first.DepositCount != 1 || first.WithdrawCount != 0 {
		t.Fatalf("unexpected first counts %+v", first)
	}
	if first.VolumeInX != "100" || first.VolumeOutY != "90" || first.FeeX != "1" || first.FeeY != "0" {
		t.Fatalf("unexpected first volumes %+v", first)
	}
	if first.VaultX == nil || *first.VaultX != "1100" || *first.LPSupply != "1000" {
		t.Fatalf("unexpected first vaults %+v", first)
	}
	if first.FeeRateX == nil || *first.FeeRateX != "0.000909090909090909" {
		t.Fatalf("unexpected fee rate x %v", first.FeeRateX)
	}
	if first.FeeRateY != nil {
		t.Fatalf("expected no fee rate y, got %s", *first.FeeRateY)
	}
	if second.SwapCount != 1 || second.WithdrawCount != 1 || second.VolumeInY != "50" || second.VolumeOutX != "55" {
		t.Fatalf("unexpected second window %+v", second)
	}
	if *second.VaultY != "480" {
		t.Fatalf("unexpected second vault y %s", *second.VaultY)
	}
	if len(store.pools) == 0 || store.pools[0].Address != pool {
		t.Fatalf("expected pool upsert, got %+v", store.pools)
	}

	last, ok, err := state.Load(context.Background())
	if err != nil || !ok {
		t.Fatalf("load state: ok=%v err=%v", ok, err)
	}
	if last != 80 {
		t.Fatalf("expected state 80, got %d", last)
	}
}

func TestAggregatorSkipsProcessed(t *testing.T) {
	pool := address.FromLabel("pool")
	input := writeJournal(t, sampleJournal(pool))
	state := &FileStateStore{Path: filepath.Join(t.TempDir(), "state.json")}
	if err := state.Save(context.Background(), 59); err != nil {
		t.Fatalf("save state: %v", err)
	}

	store := &memStore{}
	agg := NewAggregator(Config{WindowSeconds: 60, StateStore: state}, store, nil, nil)
	if err := agg.Run(context.Background(), input); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(store.windows) != 1 || store.windows[0].WindowStart.Unix() != 60 {
		t.Fatalf("expected only the second window, got %+v", store.windows)
	}

	// recompute overrides the stored state
	store = &memStore{}
	agg = NewAggregator(Config{WindowSeconds: 60, RecomputeFrom: 1, StateStore: state}, store, nil, nil)
	if err := agg.Run(context.Background(), input); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if len(store.windows) != 2 {
		t.Fatalf("expected 2 windows on recompute, got %d", len(store.windows))
	}
}

func TestAggregatorRejectsBadConfig(t *testing.T) {
	if err := NewAggregator(Config{WindowSeconds: 60}, nil, nil, nil).Run(context.Background(), "unused"); err == nil {
		t.Fatalf("expected error for nil store")
	}
	if err := NewAggregator(Config{}, &memStore{}, nil, nil).Run(context.Background(), "unused"); err == nil {
		t.Fatalf("expected error for zero window")
	}
}

func TestComputeRateFromInt(t *testing.T) {
	cases := []struct {
		fee, balance int64
		want         string
	}{
		{fee: 0, balance: 100, want: ""},
		{fee: 1, balance: 0, want: ""},
		{fee: 1, balance: 4, want: "0.250000000000000000"},
	}
	for _, tc := range cases {
		got := computeRateFromInt(bigInt(tc.fee), bigInt(tc.balance))
		if got != tc.want {
			t.Fatalf("rate(%d, %d) = %q, want %q", tc.fee, tc.balance, got, tc.want)
		}
	}
}

func TestWindowStart(t *testing.T) {
	if got := windowStart(125, 60); got != 120 {
		t.Fatalf("windowStart = %d", got)
	}
	if got := windowStart(60, 60); got != 60 {
		t.Fatalf("windowStart = %d", got)
	}
}

func bigInt(v int64) *big.Int {
	return big.NewInt(v)
}
