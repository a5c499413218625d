// Package status provides persistence for the outcome of sync passes.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// StatusFileName is the name of the status file
	StatusFileName = "status.json"
)

// ErrNoStatus is returned by Load before any pass has been saved
var ErrNoStatus = errors.New("no pass status recorded yet")

// Store persists the status of the latest sync pass
type Store interface {
	// Save replaces the stored status
	Save(ctx context.Context, status *PassStatus) error

	// Load returns the stored status, or ErrNoStatus when none exists
	Load(ctx context.Context) (*PassStatus, error)
}

// fileStore implements Store using a JSON file in a directory
type fileStore struct {
	dir string
}

// NewFileStore creates a store that keeps the status in dir/status.json
func NewFileStore(dir string) Store {
	return &fileStore{dir: dir}
}

// Save writes the status to a temporary file and renames it into place
func (f *fileStore) Save(_ context.Context, status *PassStatus) error {
	if status == nil {
		return fmt.Errorf("status cannot be nil")
	}
	if err := os.MkdirAll(f.dir, 0750); err != nil {
		return fmt.Errorf("failed to create status directory: %w", err)
	}

	filePath := filepath.Join(f.dir, StatusFileName)

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal pass status: %w", err)
	}

	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary status file: %w", err)
	}

	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename status file: %w", err)
	}

	return nil
}

// Load reads the status file
func (f *fileStore) Load(_ context.Context) (*PassStatus, error) {
	// #nosec G304 -- path is built from the configured mirror directory
	data, err := os.ReadFile(filepath.Join(f.dir, StatusFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoStatus
		}
		return nil, fmt.Errorf("failed to read status file: %w", err)
	}

	var status PassStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pass status: %w", err)
	}

	return &status, nil
}
