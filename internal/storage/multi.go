package storage

import (
	"context"

	"golang.org/x/sync/errgroup"

	"ammLedger/internal/model"
)

// MultiJournal writes every batch to all of its sinks concurrently and fails
// if any sink fails.
type MultiJournal struct {
	sinks []Journal
}

func NewMultiJournal(sinks ...Journal) *MultiJournal {
	out := make([]Journal, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &MultiJournal{sinks: out}
}

func (m *MultiJournal) PutJournalBatch(ctx context.Context, records []model.JournalRecord) error {
	if len(records) == 0 {
		return nil
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, sink := range m.sinks {
		sink := sink
		g.Go(func() error {
			return sink.PutJournalBatch(ctx, records)
		})
	}
	return g.Wait()
}
