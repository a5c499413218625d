package sources

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/stacklok/repomirror/internal/names"
)

//go:generate mockgen -destination=mocks/mock_source.go -package=mocks -source=types.go Source,Repository

// Source lists the repositories to mirror
type Source interface {
	// Name identifies the source in logs and status
	Name() string

	// Get retrieves the current groups of the source
	Get(ctx context.Context) (*Snapshot, error)
}

// Repository is a handle on one remote repository
type Repository interface {
	// Group returns the group the repository belongs to
	Group() names.GroupName

	// Name returns the repository name within its group
	Name() names.RepositoryName

	// URL returns the remote the mirror is cloned from
	URL() string

	// String returns "<group>/<name>"
	String() string

	// Update creates or refreshes the mirror at destination
	Update(ctx context.Context, destination string) error
}

// Group is an immutable set of repositories sharing a group name
type Group struct {
	name         names.GroupName
	repositories map[names.RepositoryName]Repository
}

// NewGroup creates a group. Every repository must belong to name and
// repository names must be unique.
func NewGroup(name names.GroupName, repositories ...Repository) (*Group, error) {
	g := &Group{
		name:         name,
		repositories: make(map[names.RepositoryName]Repository, len(repositories)),
	}
	for _, repo := range repositories {
		if repo.Group() != name {
			return nil, fmt.Errorf("repository %s does not belong to group %s", repo, name)
		}
		if _, exists := g.repositories[repo.Name()]; exists {
			return nil, fmt.Errorf("duplicate repository %s", repo)
		}
		g.repositories[repo.Name()] = repo
	}
	return g, nil
}

// Name returns the group name
func (g *Group) Name() names.GroupName {
	return g.name
}

// Names returns the repository names in sorted order
func (g *Group) Names() []names.RepositoryName {
	return slices.SortedFunc(maps.Keys(g.repositories), names.RepositoryName.Compare)
}

// Repository returns the named repository
func (g *Group) Repository(name names.RepositoryName) (Repository, bool) {
	repo, ok := g.repositories[name]
	return repo, ok
}

// Len returns the number of repositories in the group
func (g *Group) Len() int {
	return len(g.repositories)
}

// Snapshot is the set of groups returned by one call to Source.Get
type Snapshot struct {
	groups map[names.GroupName]*Group
}

// NewSnapshot creates a snapshot from groups with distinct names
func NewSnapshot(groups ...*Group) (*Snapshot, error) {
	s := &Snapshot{groups: make(map[names.GroupName]*Group, len(groups))}
	for _, g := range groups {
		if _, exists := s.groups[g.name]; exists {
			return nil, fmt.Errorf("duplicate group %s", g.name)
		}
		s.groups[g.name] = g
	}
	return s, nil
}

// GroupNames returns the group names in sorted order
func (s *Snapshot) GroupNames() []names.GroupName {
	return slices.SortedFunc(maps.Keys(s.groups), names.GroupName.Compare)
}

// Group returns the named group
func (s *Snapshot) Group(name names.GroupName) (*Group, bool) {
	g, ok := s.groups[name]
	return g, ok
}

// Len returns the number of groups
func (s *Snapshot) Len() int {
	return len(s.groups)
}

// RepositoryCount returns the number of repositories across all groups
func (s *Snapshot) RepositoryCount() int {
	total := 0
	for _, g := range s.groups {
		total += g.Len()
	}
	return total
}

// snapshotBuilder collects repositories into groups
type snapshotBuilder struct {
	groups map[names.GroupName][]Repository
	seen   map[string]bool
}

func newSnapshotBuilder() *snapshotBuilder {
	return &snapshotBuilder{
		groups: make(map[names.GroupName][]Repository),
		seen:   make(map[string]bool),
	}
}

// add records repo, reporting false if a repository with the same name was
// already added
func (b *snapshotBuilder) add(repo Repository) bool {
	key := repo.String()
	if b.seen[key] {
		return false
	}
	b.seen[key] = true
	b.groups[repo.Group()] = append(b.groups[repo.Group()], repo)
	return true
}

func (b *snapshotBuilder) build() (*Snapshot, error) {
	groups := make([]*Group, 0, len(b.groups))
	for name, repos := range b.groups {
		g, err := NewGroup(name, repos...)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return NewSnapshot(groups...)
}
