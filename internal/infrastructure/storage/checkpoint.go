package storage

import (
	"context"
	"fmt"

	"HeadlineRadar/internal/domain"
	"HeadlineRadar/internal/ports"
)

// FileCheckpoint persists the open window as JSON between runs.
type FileCheckpoint struct {
	path string
}

var _ ports.WindowCheckpoint = (*FileCheckpoint)(nil)

// NewFileCheckpoint stores snapshots at path.
func NewFileCheckpoint(path string) *FileCheckpoint {
	return &FileCheckpoint{path: path}
}

// Load returns nil when no checkpoint was written yet.
func (c *FileCheckpoint) Load(ctx context.Context) (*domain.WindowSnapshot, error) {
	var snap domain.WindowSnapshot
	ok, err := readJSON(c.path, &snap)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

// Save replaces the checkpoint atomically.
func (c *FileCheckpoint) Save(ctx context.Context, snapshot domain.WindowSnapshot) error {
	if err := writeJSONAtomic(c.path, snapshot); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}
