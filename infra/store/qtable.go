// Package store persists learned agent state between simulation runs.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gridpulse/evsim/core/strategy"
)

// FileQTableStore saves Q-tables as a JSON document on disk.
type FileQTableStore struct {
	Path string
}

// NewFileQTableStore creates a store writing to path.
func NewFileQTableStore(path string) *FileQTableStore {
	return &FileQTableStore{Path: path}
}

// Save writes the tables atomically via a temp file rename.
func (s *FileQTableStore) Save(tables strategy.AgentTables) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("qtable store: %w", err)
	}
	data, err := json.MarshalIndent(tables, "", "  ")
	if err != nil {
		return fmt.Errorf("qtable store: %w", err)
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("qtable store: %w", err)
	}
	return os.Rename(tmp, s.Path)
}

// Load reads the tables back. A missing file yields empty tables, not an
// error, so a first run starts clean.
func (s *FileQTableStore) Load() (strategy.AgentTables, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return strategy.AgentTables{}, nil
		}
		return nil, fmt.Errorf("qtable store: %w", err)
	}
	var tables strategy.AgentTables
	if err := json.Unmarshal(data, &tables); err != nil {
		return nil, fmt.Errorf("qtable store: %w", err)
	}
	return tables, nil
}
