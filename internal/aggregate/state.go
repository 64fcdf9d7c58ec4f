package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StateStore persists the last processed journal timestamp.
type StateStore interface {
	Load(ctx context.Context) (uint64, bool, error)
	Save(ctx context.Context, ts uint64) error
}

// FileStateStore keeps named progress entries in one local JSON file, so
// runs with different window sizes can share it.
type FileStateStore struct {
	Path string
	Name string
}

type stateEntry struct {
	LastProcessed uint64 `json:"last_processed_ts"`
	UpdatedAt     string `json:"updated_at"`
}

func (s *FileStateStore) read() (map[string]stateEntry, error) {
	entries := make(map[string]stateEntry)
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return entries, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	return entries, nil
}

func (s *FileStateStore) Load(ctx context.Context) (uint64, bool, error) {
	if s == nil || s.Path == "" {
		return 0, false, nil
	}
	entries, err := s.read()
	if err != nil {
		return 0, false, err
	}
	entry, ok := entries[s.Name]
	return entry.LastProcessed, ok, nil
}

func (s *FileStateStore) Save(ctx context.Context, ts uint64) error {
	if s == nil || s.Path == "" {
		return nil
	}
	dir := filepath.Dir(s.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	entries, err := s.read()
	if err != nil {
		return err
	}
	entries[s.Name] = stateEntry{
		LastProcessed: ts,
		UpdatedAt:     time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state tmp: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}
