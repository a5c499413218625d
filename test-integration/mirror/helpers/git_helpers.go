// Package helpers provides fixtures for the mirror integration tests.
package helpers

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/onsi/gomega"
)

// GitTestHelper manages upstream Git repositories for testing
type GitTestHelper struct {
	ctx          context.Context
	tempDir      string
	repositories []*GitTestRepository
}

// GitTestRepository is a working repository served to the mirror over file://
type GitTestRepository struct {
	Name     string
	Path     string
	CloneURL string
}

// NewGitTestHelper creates a new Git test helper
func NewGitTestHelper(ctx context.Context) *GitTestHelper {
	tempDir, err := os.MkdirTemp("", "git-test-repos-*")
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	return &GitTestHelper{
		ctx:          ctx,
		tempDir:      tempDir,
		repositories: make([]*GitTestRepository, 0),
	}
}

// GitAvailable reports whether a git binary is on the PATH
func GitAvailable() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

// CreateRepository creates a new repository with one commit on main
func (g *GitTestHelper) CreateRepository(name string) *GitTestRepository {
	repoPath := filepath.Join(g.tempDir, name)
	err := os.MkdirAll(repoPath, 0750)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	g.runGitCommand(repoPath, "init", "--initial-branch=main")
	g.runGitCommand(repoPath, "config", "user.name", "Test User")
	g.runGitCommand(repoPath, "config", "user.email", "test@example.com")

	repo := &GitTestRepository{
		Name:     name,
		Path:     repoPath,
		CloneURL: fmt.Sprintf("file://%s", repoPath),
	}
	g.Commit(repo, "README.md", "# "+name+"\n", "Initial commit")

	g.repositories = append(g.repositories, repo)
	return repo
}

// Commit writes a file and commits it, returning the new HEAD
func (g *GitTestHelper) Commit(repo *GitTestRepository, filename, content, message string) string {
	filePath := filepath.Join(repo.Path, filename)
	err := os.MkdirAll(filepath.Dir(filePath), 0750)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	err = os.WriteFile(filePath, []byte(content), 0600)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	g.runGitCommand(repo.Path, "add", filename)
	g.runGitCommand(repo.Path, "commit", "-m", message)
	return g.output(repo.Path, "rev-parse", "HEAD")
}

// CreateBranch creates a branch at HEAD without switching to it
func (g *GitTestHelper) CreateBranch(repo *GitTestRepository, branchName string) {
	g.runGitCommand(repo.Path, "branch", branchName)
}

// DeleteBranch removes a branch
func (g *GitTestHelper) DeleteBranch(repo *GitTestRepository, branchName string) {
	g.runGitCommand(repo.Path, "branch", "-D", branchName)
}

// MirrorRef returns the hash a ref points to in a bare mirror, or "" when the
// ref does not exist
func (*GitTestHelper) MirrorRef(mirrorPath, ref string) string {
	cmd := exec.Command("git", "--git-dir", mirrorPath, "rev-parse", "--verify", "--quiet", ref)
	output, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(output))
}

// CleanupRepositories removes all test repositories
func (g *GitTestHelper) CleanupRepositories() error {
	return os.RemoveAll(g.tempDir)
}

// runGitCommand runs a Git command in the specified directory
func (g *GitTestHelper) runGitCommand(dir string, args ...string) {
	_ = g.output(dir, args...)
}

func (g *GitTestHelper) output(dir string, args ...string) string {
	cmd := exec.CommandContext(g.ctx, "git", args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	gomega.Expect(err).NotTo(gomega.HaveOccurred(),
		"Git command failed: %s\nOutput: %s", cmd.String(), string(output))
	return strings.TrimSpace(string(output))
}
