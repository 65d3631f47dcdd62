package token

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/solegrid/syncapi/internal/domain"
)

// FileStorage persists token state as a JSON file at a well-known path.
type FileStorage struct {
	path string
}

func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

func (f *FileStorage) Load() (*domain.TokenState, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read token file: %w", err)
	}
	var state domain.TokenState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse token file: %w", err)
	}
	return &state, nil
}

func (f *FileStorage) Save(state *domain.TokenState) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal token state: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}
