package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// HistoryStore persists harvested messages. Append ignores messages whose ID
// is already stored and reports how many were new.
type HistoryStore interface {
	Load(ctx context.Context) ([]Message, error)
	Last(ctx context.Context, chat string) (*Message, error)
	Append(ctx context.Context, msgs []Message) (int, error)
	Close() error
}

// HarvestRun describes one harvest invocation.
type HarvestRun struct {
	ID         string
	Chat       string
	StartedAt  time.Time
	FinishedAt time.Time
	Added      int
	Matched    int
	Err        error
}

// runRecorder is implemented by stores that keep an audit trail of runs.
type runRecorder interface {
	RecordRun(ctx context.Context, run HarvestRun) error
}

// OpenStore opens the backend selected in the storage section.
func OpenStore(config *Config) (HistoryStore, error) {
	switch config.Storage.Backend {
	case "", "json":
		return NewJSONStore(config.Harvest.MessagesFile), nil
	case "sqlite":
		return NewSQLiteStore(config.Storage.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", config.Storage.Backend)
	}
}

// JSONStore keeps every message in a single indented JSON array.
type JSONStore struct {
	path string
	mu   sync.Mutex
}

func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

func (s *JSONStore) Load(ctx context.Context) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *JSONStore) load() ([]Message, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read messages file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var msgs []Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("failed to parse messages file %s: %w", s.path, err)
	}
	return msgs, nil
}

func (s *JSONStore) Last(ctx context.Context, chat string) (*Message, error) {
	msgs, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if chat == "" || msgs[i].Chat == chat {
			m := msgs[i]
			return &m, nil
		}
	}
	return nil, nil
}

func (s *JSONStore) Append(ctx context.Context, msgs []Message) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.load()
	if err != nil {
		return 0, err
	}
	seen := make(map[string]bool, len(existing))
	for _, m := range existing {
		seen[m.ID] = true
	}

	added := 0
	for _, m := range msgs {
		if m.ID == "" {
			m.ID = computeID(m)
		}
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		existing = append(existing, m)
		added++
	}
	if added == 0 {
		return 0, nil
	}

	if err := writeJSONFile(s.path, existing, "    "); err != nil {
		return 0, err
	}
	return added, nil
}

func (s *JSONStore) Close() error { return nil }

// writeJSONFile replaces path atomically with the indented encoding of v.
func writeJSONFile(path string, v any, indent string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", indent)
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
