package storage

import (
	"context"

	"ammLedger/internal/model"
)

// Journal defines a sink for journal records.
type Journal interface {
	PutJournalBatch(ctx context.Context, records []model.JournalRecord) error
}
