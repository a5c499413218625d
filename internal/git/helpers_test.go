package git

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

// testRepo is a working repository used as a remote in tests
type testRepo struct {
	Path string
	repo *git.Repository
}

var testAuthor = &object.Signature{
	Name:  "Test Author",
	Email: "test@example.com",
}

// requireGitBinary skips the test when no git binary is available
func requireGitBinary(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath(DefaultExecutable); err != nil {
		t.Skip("git binary not available")
	}
}

// createTestRepo creates a working repository with a single commit
func createTestRepo(t *testing.T, files map[string]string) *testRepo {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	r := &testRepo{Path: dir, repo: repo}
	r.commit(t, files, "Initial commit")
	return r
}

// commit writes files and records them in a new commit
func (r *testRepo) commit(t *testing.T, files map[string]string, message string) plumbing.Hash {
	t.Helper()

	workTree, err := r.repo.Worktree()
	require.NoError(t, err)

	for name, content := range files {
		path := filepath.Join(r.Path, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750))
		require.NoError(t, os.WriteFile(path, []byte(content), 0600))
		_, err := workTree.Add(name)
		require.NoError(t, err)
	}

	author := *testAuthor
	author.When = time.Now()
	hash, err := workTree.Commit(message, &git.CommitOptions{Author: &author})
	require.NoError(t, err)
	return hash
}

// createBranch points a new branch at HEAD
func (r *testRepo) createBranch(t *testing.T, name string) {
	t.Helper()

	head, err := r.repo.Head()
	require.NoError(t, err)
	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), head.Hash())
	require.NoError(t, r.repo.Storer.SetReference(ref))
}

// deleteBranch removes a branch
func (r *testRepo) deleteBranch(t *testing.T, name string) {
	t.Helper()
	require.NoError(t, r.repo.Storer.RemoveReference(plumbing.NewBranchReferenceName(name)))
}

// hasBranch reports whether the bare mirror at path has the named branch
func hasBranch(t *testing.T, path, name string) bool {
	t.Helper()

	mirror, err := git.PlainOpen(path)
	require.NoError(t, err)
	_, err = mirror.Reference(plumbing.NewBranchReferenceName(name), false)
	return err == nil
}

// headOf returns the hash a branch points to in the mirror at path
func headOf(t *testing.T, path, branch string) plumbing.Hash {
	t.Helper()

	mirror, err := git.PlainOpen(path)
	require.NoError(t, err)
	ref, err := mirror.Reference(plumbing.NewBranchReferenceName(branch), true)
	require.NoError(t, err)
	return ref.Hash()
}
