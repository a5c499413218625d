package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/stacklok/repomirror/internal/artifact"
	"github.com/stacklok/repomirror/internal/filter"
	"github.com/stacklok/repomirror/internal/git"
	"github.com/stacklok/repomirror/internal/httpclient"
	"github.com/stacklok/repomirror/internal/names"
)

const (
	// GitHubAccept is the media type requested from the GitHub REST API
	GitHubAccept = "application/vnd.github+json"

	// IssuesSuffix is appended to the mirror path to name the issues snapshot
	IssuesSuffix = ".issues.json.gz"

	// repositoryListPath lists every repository the authenticated user can see
	repositoryListPath = "/user/repos?per_page=100&affiliation=owner,collaborator,organization_member"
)

// GitHubSource lists the repositories of a GitHub user
type GitHubSource struct {
	name      string
	user      string
	apiURL    string
	program   *filter.Program
	client    httpclient.Client
	executor  git.Executor
	artifacts *artifact.Fetcher
}

var _ Source = (*GitHubSource)(nil)

// GitHubSourceConfig holds the settings of a GitHub source
type GitHubSourceConfig struct {
	// Name identifies the source
	Name string
	// User is put in clone URLs as user info
	User string
	// APIURL is the REST API root without a trailing slash
	APIURL string
	// Issues enables the issues snapshot written next to each mirror
	Issues bool
}

// NewGitHubSource creates a GitHub source. client must already carry the
// credentials of the user.
func NewGitHubSource(
	cfg GitHubSourceConfig,
	program *filter.Program,
	client httpclient.Client,
	executor git.Executor,
) *GitHubSource {
	s := &GitHubSource{
		name:     cfg.Name,
		user:     cfg.User,
		apiURL:   strings.TrimSuffix(cfg.APIURL, "/"),
		program:  program,
		client:   client,
		executor: executor,
	}
	if cfg.Issues {
		s.artifacts = artifact.NewFetcher(client)
	}
	return s
}

// Name implements Source
func (s *GitHubSource) Name() string {
	return s.name
}

// Get implements Source. Every page of the repository list is requested; an
// error on any page fails the whole call.
func (s *GitHubSource) Get(ctx context.Context) (*Snapshot, error) {
	builder := newSnapshotBuilder()
	visited := make(map[string]bool)

	next := s.apiURL + repositoryListPath
	for next != "" && !visited[next] {
		visited[next] = true

		resp, err := s.client.Get(ctx, next)
		if err != nil {
			return nil, fmt.Errorf("failed to list repositories: %w", err)
		}
		logRateLimit(ctx, resp)

		list := gjson.ParseBytes(resp.Body)
		if !list.IsArray() {
			return nil, fmt.Errorf("unexpected repository list from %s: expected a JSON array", next)
		}

		for _, item := range list.Array() {
			if repo := s.repository(ctx, item); repo != nil {
				if !builder.add(repo) {
					slog.DebugContext(ctx, "Ignoring repeated repository", "repository", repo.String())
				}
			}
		}

		next = resp.NextLink()
	}

	return builder.build()
}

// repository turns one element of the repository list into a handle, or
// returns nil if it is excluded or unusable
func (s *GitHubSource) repository(ctx context.Context, item gjson.Result) *repository {
	owner := item.Get("owner.login").String()
	repoName := item.Get("name").String()
	cloneURL := item.Get("clone_url").String()

	candidate := owner + "/" + repoName
	slog.DebugContext(ctx, "Listed repository", "repository", candidate, "url", cloneURL)

	if !s.program.Includes(ctx, candidate) {
		slog.DebugContext(ctx, "Repository is not included", "repository", candidate)
		return nil
	}

	group, err := names.ParseGroupName(owner)
	if err != nil {
		slog.WarnContext(ctx, "Skipping repository with invalid owner", "repository", candidate, "error", err)
		return nil
	}
	name, err := names.ParseRepositoryName(repoName)
	if err != nil {
		slog.WarnContext(ctx, "Skipping repository with invalid name", "repository", candidate, "error", err)
		return nil
	}

	remote, err := withUserInfo(cloneURL, s.user)
	if err != nil {
		slog.WarnContext(ctx, "Skipping repository with invalid clone URL", "repository", candidate, "error", err)
		return nil
	}

	repo := &repository{
		group:    group,
		name:     name,
		url:      remote,
		executor: s.executor,
	}
	if s.artifacts != nil {
		repo.after = s.fetchIssues
	}
	return repo
}

// fetchIssues replaces the issues snapshot next to the mirror at destination
func (s *GitHubSource) fetchIssues(ctx context.Context, repo *repository, destination string) error {
	issuesURL := fmt.Sprintf("%s/repos/%s/%s/issues?state=all",
		s.apiURL, url.PathEscape(repo.group.String()), url.PathEscape(repo.name.String()))

	result, err := s.artifacts.Fetch(ctx, issuesURL, destination+IssuesSuffix)
	if err != nil {
		return fmt.Errorf("failed to fetch issues of %s: %w", repo, err)
	}
	slog.DebugContext(ctx, "Updated issues snapshot", "repository", repo.String(), "bytes", result.Bytes)
	return nil
}

// withUserInfo returns rawURL with user set as its user info
func withUserInfo(rawURL, user string) (string, error) {
	if rawURL == "" {
		return "", fmt.Errorf("clone URL is empty")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if user != "" {
		u.User = url.User(user)
	}
	return u.String(), nil
}

// logRateLimit reports the API rate limit headers at debug level
func logRateLimit(ctx context.Context, resp *httpclient.Response) {
	limit := resp.Header.Get("X-RateLimit-Limit")
	if limit == "" {
		return
	}
	attrs := []any{
		"limit", limit,
		"remaining", resp.Header.Get("X-RateLimit-Remaining"),
	}
	if reset, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64); err == nil {
		attrs = append(attrs, "reset", time.Unix(reset, 0).UTC().Format(time.RFC3339))
	}
	slog.DebugContext(ctx, "GitHub API rate limit", attrs...)
}
