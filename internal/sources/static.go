package sources

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stacklok/repomirror/internal/filter"
	"github.com/stacklok/repomirror/internal/git"
	"github.com/stacklok/repomirror/internal/names"
)

// StaticRepository is a repository listed in configuration
type StaticRepository struct {
	Group names.GroupName
	Name  names.RepositoryName
	URL   string
}

// StaticSource returns a fixed list of repositories, filtered on every call
type StaticSource struct {
	name         string
	repositories []StaticRepository
	program      *filter.Program
	executor     git.Executor
}

var _ Source = (*StaticSource)(nil)

// NewStaticSource creates a static source
func NewStaticSource(name string, repositories []StaticRepository, program *filter.Program, executor git.Executor) *StaticSource {
	return &StaticSource{
		name:         name,
		repositories: repositories,
		program:      program,
		executor:     executor,
	}
}

// Name implements Source
func (s *StaticSource) Name() string {
	return s.name
}

// Get implements Source
func (s *StaticSource) Get(ctx context.Context) (*Snapshot, error) {
	builder := newSnapshotBuilder()
	for _, entry := range s.repositories {
		candidate := names.Qualified(entry.Group, entry.Name)
		if !s.program.Includes(ctx, candidate) {
			slog.DebugContext(ctx, "Repository is not included", "repository", candidate)
			continue
		}
		repo := &repository{
			group:    entry.Group,
			name:     entry.Name,
			url:      entry.URL,
			executor: s.executor,
		}
		if !builder.add(repo) {
			return nil, fmt.Errorf("duplicate repository %s", candidate)
		}
	}
	return builder.build()
}
