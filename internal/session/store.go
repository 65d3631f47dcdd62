package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Record is one persisted login session: opaque platform fields keyed by
// the session id, which doubles as the OAuth state parameter.
type Record struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"created_at"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// Store keeps one JSON file per session under a directory.
type Store struct {
	dir    string
	logger *zap.Logger
}

func NewStore(dir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{dir: dir, logger: logger}
}

// Create persists a new session record with a fresh id.
func (s *Store) Create(fields map[string]string) (*Record, error) {
	rec := &Record{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Fields:    fields,
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	if err := os.WriteFile(s.path(rec.ID), data, 0o600); err != nil {
		return nil, fmt.Errorf("write session file: %w", err)
	}
	return rec, nil
}

// Get loads a session by id. Returns (nil, nil) when no such session
// exists.
func (s *Store) Get(id string) (*Record, error) {
	if id == "" || id != filepath.Base(id) {
		return nil, nil
	}
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session file: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse session file: %w", err)
	}
	return &rec, nil
}

// Delete removes a session file; missing files are fine.
func (s *Store) Delete(id string) error {
	if id == "" || id != filepath.Base(id) {
		return nil
	}
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete session file: %w", err)
	}
	return nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}
