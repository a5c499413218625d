package sources

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/stacklok/repomirror/internal/git"
	"github.com/stacklok/repomirror/internal/names"
)

// DirectoryPermissions is the mode used for group directories
const DirectoryPermissions = 0750

// UpdateMirror brings the mirror at destination up to date with url. An
// existing directory is refreshed with a pruning fetch; anything else gets a
// fresh mirror clone, creating the parent directory first.
func UpdateMirror(ctx context.Context, executor git.Executor, url, destination string) error {
	info, err := os.Stat(destination)
	if err == nil && info.IsDir() {
		slog.DebugContext(ctx, "Fetching existing mirror", "destination", destination)
		if err := executor.FetchPrune(ctx, destination); err != nil {
			return fmt.Errorf("failed to fetch mirror: %w", err)
		}
		return nil
	}

	parent := filepath.Dir(destination)
	if err := ensureDirectory(parent); err != nil {
		return err
	}

	slog.DebugContext(ctx, "Creating mirror", "destination", destination)
	if err := executor.MirrorClone(ctx, url, destination); err != nil {
		return fmt.Errorf("failed to clone mirror: %w", err)
	}
	return nil
}

// ensureDirectory creates path if needed and fails if something other than a
// directory occupies it
func ensureDirectory(path string) error {
	info, err := os.Stat(path)
	switch {
	case err == nil && !info.IsDir():
		return fmt.Errorf("not a directory: %s", path)
	case err == nil:
		return nil
	case !os.IsNotExist(err):
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := os.MkdirAll(path, DirectoryPermissions); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}

// postUpdateFunc runs after the mirror itself was updated successfully
type postUpdateFunc func(ctx context.Context, repo *repository, destination string) error

// repository is the Repository handle shared by all sources
type repository struct {
	group    names.GroupName
	name     names.RepositoryName
	url      string
	executor git.Executor
	after    postUpdateFunc
}

var _ Repository = (*repository)(nil)

func (r *repository) Group() names.GroupName {
	return r.group
}

func (r *repository) Name() names.RepositoryName {
	return r.name
}

func (r *repository) URL() string {
	return r.url
}

func (r *repository) String() string {
	return names.Qualified(r.group, r.name)
}

// Update implements Repository
func (r *repository) Update(ctx context.Context, destination string) error {
	if err := UpdateMirror(ctx, r.executor, r.url, destination); err != nil {
		return err
	}
	if r.after != nil {
		return r.after(ctx, r, destination)
	}
	return nil
}
