// Package git provides the mirror executors that create and refresh bare mirror
// clones of remote repositories.
package git

import (
	"context"
	"fmt"
	"os"
)

//go:generate mockgen -destination=mocks/mock_executor.go -package=mocks -source=executor.go Executor

// Executor performs mirror operations against a version-control backend
type Executor interface {
	// MirrorClone creates a bare mirror of url at destination
	MirrorClone(ctx context.Context, url, destination string) error

	// FetchPrune refreshes the mirror at repository, removing refs deleted on the remote
	FetchPrune(ctx context.Context, repository string) error
}

const (
	// BackendCommand runs the git binary
	BackendCommand = "command"

	// BackendGoGit uses the go-git library
	BackendGoGit = "go-git"
)

// AuthConfig holds HTTP basic credentials for remote access
type AuthConfig struct {
	Username string
	Password string
}

// requireDirectory fails unless path exists and is a directory
func requireDirectory(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat repository: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", path)
	}
	return nil
}
