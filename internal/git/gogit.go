package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// mirrorRefSpec maps every remote ref onto the same local ref
const mirrorRefSpec = gitconfig.RefSpec("+refs/*:refs/*")

// goGitExecutor implements Executor using go-git, without an external binary
type goGitExecutor struct {
	auth transport.AuthMethod
}

var _ Executor = (*goGitExecutor)(nil)

// NewGoGitExecutor creates a go-git backed executor. auth may be nil for
// anonymous access.
func NewGoGitExecutor(auth *AuthConfig) Executor {
	e := &goGitExecutor{}
	if auth != nil && auth.Username != "" {
		e.auth = &githttp.BasicAuth{
			Username: auth.Username,
			Password: auth.Password,
		}
	}
	return e
}

// MirrorClone creates a bare mirror clone of url at destination
func (e *goGitExecutor) MirrorClone(ctx context.Context, url, destination string) error {
	start := time.Now()
	slog.DebugContext(ctx, "Starting go-git mirror clone", "url", url, "destination", destination)

	_, err := git.PlainCloneContext(ctx, destination, true, &git.CloneOptions{
		URL:    url,
		Auth:   e.auth,
		Mirror: true,
	})
	if err != nil {
		return fmt.Errorf("failed to mirror clone %s: %w", url, err)
	}

	slog.DebugContext(ctx, "go-git mirror clone completed",
		"destination", destination,
		"duration", time.Since(start).String())
	return nil
}

// FetchPrune fetches every ref of the origin remote into the mirror and prunes
// refs that no longer exist remotely
func (e *goGitExecutor) FetchPrune(ctx context.Context, repository string) error {
	if err := requireDirectory(repository); err != nil {
		return err
	}

	repo, err := git.PlainOpen(repository)
	if err != nil {
		return fmt.Errorf("failed to open repository %s: %w", repository, err)
	}

	err = repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: git.DefaultRemoteName,
		RefSpecs:   []gitconfig.RefSpec{mirrorRefSpec},
		Auth:       e.auth,
		Force:      true,
		Prune:      true,
	})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		slog.DebugContext(ctx, "Mirror already up to date", "repository", repository)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", repository, err)
	}
	return nil
}
