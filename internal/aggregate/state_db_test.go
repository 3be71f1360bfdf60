package aggregate

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type memJobState struct {
	rows map[string]uint64
	fail error
}

func (m *memJobState) LoadState(_ context.Context, name string) (uint64, bool, error) {
	if m.fail != nil {
		return 0, false, m.fail
	}
	ts, ok := m.rows[name]
	return ts, ok, nil
}

func (m *memJobState) SaveState(_ context.Context, name string, last uint64) error {
	if m.fail != nil {
		return m.fail
	}
	m.rows[name] = last
	return nil
}

func TestDBStateStoreKeepsOneRowPerWindow(t *testing.T) {
	db := &memJobState{rows: map[string]uint64{}}
	minute, err := NewDBStateStore(db, 60)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	hour, err := NewDBStateStore(db, 3600)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if minute.Name() != "aggregate:60s" {
		t.Fatalf("unexpected name %q", minute.Name())
	}

	ctx := context.Background()
	if _, ok, err := minute.Load(ctx); err != nil || ok {
		t.Fatalf("expected empty state, got ok=%v err=%v", ok, err)
	}
	if err := minute.Save(ctx, 1700000060); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := hour.Save(ctx, 1700003600); err != nil {
		t.Fatalf("save: %v", err)
	}

	ts, ok, err := minute.Load(ctx)
	if err != nil || !ok || ts != 1700000060 {
		t.Fatalf("unexpected minute state: ts=%d ok=%v err=%v", ts, ok, err)
	}
	if len(db.rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(db.rows))
	}
}

func TestDBStateStoreErrors(t *testing.T) {
	if _, err := NewDBStateStore(nil, 60); err == nil {
		t.Fatalf("expected error for nil store")
	}
	if _, err := NewDBStateStore(&memJobState{}, 0); err == nil {
		t.Fatalf("expected error for zero window")
	}

	db := &memJobState{rows: map[string]uint64{}, fail: errors.New("connection reset")}
	store, err := NewDBStateStore(db, 60)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, _, err := store.Load(context.Background()); err == nil || !strings.Contains(err.Error(), "aggregate:60s") {
		t.Fatalf("expected wrapped load error, got %v", err)
	}
	if err := store.Save(context.Background(), 1); !errors.Is(err, db.fail) {
		t.Fatalf("expected wrapped save error, got %v", err)
	}
}
