// Package checkpoint persists the whole-pipeline work state to a local
// file so a crashed run can resume from its last completed phase.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dverhagen/pharmsync/internal/models"
)

// ErrNotFound indicates no checkpoint exists at the configured path.
var ErrNotFound = errors.New("checkpoint not found")

// Store saves and loads WorkState snapshots. Every save is a full
// overwrite; a crash between phases loses at most one phase's progress.
type Store struct {
	path string
}

// NewStore creates a checkpoint store writing to path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the checkpoint file location.
func (s *Store) Path() string {
	return s.path
}

// Save serializes the entire state. The snapshot is written to a temp file
// in the same directory and renamed into place so a crash mid-write never
// leaves a truncated checkpoint.
func (s *Store) Save(state *models.WorkState) error {
	state.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal work state: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace checkpoint: %w", err)
	}
	return nil
}

// Load returns the previously saved state, or ErrNotFound if no checkpoint
// exists. Enum-typed fields are reconstructed from their string tags and
// unknown tags fail the load rather than silently defaulting.
func (s *Store) Load() (*models.WorkState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, s.path)
		}
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	var state models.WorkState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse checkpoint: %w", err)
	}
	return &state, nil
}
