package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StateStore persists the timestamp up to which journal records are aggregated.
type StateStore interface {
	Load(ctx context.Context) (uint64, bool, error)
	Save(ctx context.Context, ts uint64) error
}

// FileStateStore keeps the state in a JSON file next to the journal.
type FileStateStore struct {
	Path string
}

type fileState struct {
	LastProcessedTS uint64 `json:"last_processed_ts"`
	UpdatedAt       string `json:"updated_at"`
}

func (s *FileStateStore) Load(_ context.Context) (uint64, bool, error) {
	if s == nil || s.Path == "" {
		return 0, false, nil
	}
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read aggregate state: %w", err)
	}
	var st fileState
	if err := json.Unmarshal(data, &st); err != nil {
		return 0, false, fmt.Errorf("parse aggregate state: %w", err)
	}
	return st.LastProcessedTS, true, nil
}

// Save writes through a temp file and rename so a crash never leaves a torn file.
func (s *FileStateStore) Save(_ context.Context, ts uint64) error {
	if s == nil || s.Path == "" {
		return nil
	}
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create aggregate state dir: %w", err)
		}
	}
	data, err := json.Marshal(fileState{
		LastProcessedTS: ts,
		UpdatedAt:       time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal aggregate state: %w", err)
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write aggregate state: %w", err)
	}
	return os.Rename(tmp, s.Path)
}
