package aggregate

import (
	"context"
	"fmt"
)

// jobStateStore is the part of the postgres store that keeps named watermarks.
type jobStateStore interface {
	LoadState(ctx context.Context, name string) (uint64, bool, error)
	SaveState(ctx context.Context, name string, last uint64) error
}

// DBStateStore keeps the aggregation watermark in the job_state table. Each
// window size has its own row, so aggregators with different windows can
// share a database.
type DBStateStore struct {
	db   jobStateStore
	name string
}

// NewDBStateStore returns the state store for windowSeconds wide windows.
func NewDBStateStore(db jobStateStore, windowSeconds uint64) (*DBStateStore, error) {
	if db == nil {
		return nil, fmt.Errorf("job state store is nil")
	}
	if windowSeconds == 0 {
		return nil, fmt.Errorf("window seconds must be greater than zero")
	}
	return &DBStateStore{db: db, name: fmt.Sprintf("aggregate:%ds", windowSeconds)}, nil
}

// Name is the job_state row this store reads and writes.
func (s *DBStateStore) Name() string {
	return s.name
}

func (s *DBStateStore) Load(ctx context.Context) (uint64, bool, error) {
	ts, ok, err := s.db.LoadState(ctx, s.name)
	if err != nil {
		return 0, false, fmt.Errorf("load %s: %w", s.name, err)
	}
	return ts, ok, nil
}

func (s *DBStateStore) Save(ctx context.Context, ts uint64) error {
	if err := s.db.SaveState(ctx, s.name, ts); err != nil {
		return fmt.Errorf("save %s: %w", s.name, err)
	}
	return nil
}
