// Package config provides configuration loading and validation for the mirror server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stacklok/repomirror/internal/filter"
	"github.com/stacklok/repomirror/internal/git"
	"github.com/stacklok/repomirror/internal/names"
	"github.com/stacklok/repomirror/internal/telemetry"
)

const (
	// SourceTypeGitHub lists the repositories of a GitHub user
	SourceTypeGitHub = "github"

	// SourceTypeStatic lists repositories written in the configuration
	SourceTypeStatic = "static"
)

const (
	// DefaultAddress is the listen address of the management API
	DefaultAddress = ":9090"

	// DefaultMinimumPause is the shortest pause between passes considered healthy
	DefaultMinimumPause = 60 * time.Second

	// MinimumPauseDuration is the lower bound of the configured pause
	MinimumPauseDuration = time.Second

	// DefaultGitHubAPIURL is the GitHub REST API root
	DefaultGitHubAPIURL = "https://api.github.com"

	// EnvPrefix is the prefix of environment variables read by the CLI
	EnvPrefix = "REPOMIRROR"

	// EnvGitHubToken supplies the GitHub token when no tokenFile is configured
	EnvGitHubToken = EnvPrefix + "_GITHUB_TOKEN"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
	now  func() time.Time
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// WithFilterClock sets the clock used to timestamp compiled filter programs
func WithFilterClock(now func() time.Time) Option {
	return func(cfg *loaderConfig) error {
		cfg.now = now
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// Directory is the root under which mirrors are kept as <group>/<name>.git
	Directory string `yaml:"directory"`

	// PauseDuration is the time from the start of one pass to the start of the next
	PauseDuration Duration `yaml:"pauseDuration"`

	// MinimumPause is the shortest pause considered healthy. Defaults to 60s.
	MinimumPause Duration `yaml:"minimumPause,omitempty"`

	// DryRun skips all mirror operations while still walking the sources
	DryRun bool `yaml:"dryRun,omitempty"`

	Git       GitConfig         `yaml:"git,omitempty"`
	Server    ServerConfig      `yaml:"server,omitempty"`
	Sources   []SourceConfig    `yaml:"sources"`
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// GitConfig selects the mirror executor
type GitConfig struct {
	// Backend is "command" (default) or "go-git"
	Backend string `yaml:"backend,omitempty"`

	// Executable is the git binary used by the command backend
	Executable string `yaml:"executable,omitempty"`
}

// ServerConfig configures the management API
type ServerConfig struct {
	// Address is the listen address. Defaults to ":9090".
	Address string `yaml:"address,omitempty"`
}

// SourceConfig describes one repository source
type SourceConfig struct {
	// Name identifies the source in logs, metrics and status
	Name string `yaml:"name"`

	// Type is "github" or "static"
	Type string `yaml:"type"`

	GitHub *GitHubConfig `yaml:"github,omitempty"`
	Static *StaticConfig `yaml:"static,omitempty"`

	// Filter is the path of the filter file, relative to the configuration file
	Filter string `yaml:"filter"`

	program *filter.Program
}

// Program returns the compiled filter of the source. It is set by LoadConfig.
func (s *SourceConfig) Program() *filter.Program {
	return s.program
}

// SetProgram replaces the compiled filter, for sources built in code
func (s *SourceConfig) SetProgram(p *filter.Program) {
	s.program = p
}

// GitHubConfig configures a GitHub source
type GitHubConfig struct {
	// User is the account whose repositories are listed
	User string `yaml:"user"`

	// TokenFile holds a personal access token
	TokenFile string `yaml:"tokenFile,omitempty"`

	// PasswordFile holds a password for basic authentication
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// APIURL is the REST API root. Defaults to https://api.github.com.
	APIURL string `yaml:"apiURL,omitempty"`

	// Issues enables the issues snapshot next to each mirror
	Issues bool `yaml:"issues,omitempty"`
}

// StaticConfig lists repositories explicitly
type StaticConfig struct {
	Repositories []StaticRepository `yaml:"repositories"`
}

// StaticRepository is one configured repository
type StaticRepository struct {
	Group string `yaml:"group"`
	Name  string `yaml:"name"`
	URL   string `yaml:"url"`
}

// LoadConfig loads, validates and compiles the configuration
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{now: time.Now}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	config.applyDefaults()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := config.compileFilters(filepath.Dir(loaderCfg.path), loaderCfg.now); err != nil {
		return nil, fmt.Errorf("failed to compile filters: %w", err)
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.MinimumPause == 0 {
		c.MinimumPause = Duration(DefaultMinimumPause)
	}
	if c.Server.Address == "" {
		c.Server.Address = DefaultAddress
	}
	if c.Git.Backend == "" {
		c.Git.Backend = git.BackendCommand
	}
	for i := range c.Sources {
		if gh := c.Sources[i].GitHub; gh != nil && gh.APIURL == "" {
			gh.APIURL = DefaultGitHubAPIURL
		}
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if c.Directory == "" {
		return fmt.Errorf("directory is required")
	}

	if c.PauseDuration.Std() < MinimumPauseDuration {
		return fmt.Errorf("pauseDuration must be at least %s, got %s",
			MinimumPauseDuration, FormatDuration(c.PauseDuration.Std()))
	}

	if c.MinimumPause.Std() < 0 {
		return fmt.Errorf("minimumPause cannot be negative")
	}

	switch c.Git.Backend {
	case git.BackendCommand, git.BackendGoGit:
	default:
		return fmt.Errorf("git.backend must be %s or %s, got %s", git.BackendCommand, git.BackendGoGit, c.Git.Backend)
	}

	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source must be configured")
	}

	seen := make(map[string]bool)
	for i := range c.Sources {
		src := &c.Sources[i]
		if src.Name == "" {
			return fmt.Errorf("sources[%d]: name is required", i)
		}
		if seen[src.Name] {
			return fmt.Errorf("sources[%d]: duplicate source name '%s'", i, src.Name)
		}
		seen[src.Name] = true

		if err := validateSource(src, fmt.Sprintf("sources[%d] (%s)", i, src.Name)); err != nil {
			return err
		}
	}

	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	return nil
}

// validateSource validates the configuration of one source
func validateSource(src *SourceConfig, prefix string) error {
	if src.Filter == "" {
		return fmt.Errorf("%s: filter is required", prefix)
	}

	switch src.Type {
	case SourceTypeGitHub:
		if src.GitHub == nil {
			return fmt.Errorf("%s: github configuration is required for type %s", prefix, src.Type)
		}
		if src.Static != nil {
			return fmt.Errorf("%s: static configuration is not allowed for type %s", prefix, src.Type)
		}
		return validateGitHubConfig(src.GitHub, prefix)
	case SourceTypeStatic:
		if src.Static == nil {
			return fmt.Errorf("%s: static configuration is required for type %s", prefix, src.Type)
		}
		if src.GitHub != nil {
			return fmt.Errorf("%s: github configuration is not allowed for type %s", prefix, src.Type)
		}
		return validateStaticConfig(src.Static, prefix)
	case "":
		return fmt.Errorf("%s: type is required", prefix)
	default:
		return fmt.Errorf("%s: unsupported source type: %s", prefix, src.Type)
	}
}

func validateGitHubConfig(gh *GitHubConfig, prefix string) error {
	if gh.User == "" {
		return fmt.Errorf("%s: github.user is required", prefix)
	}
	if gh.TokenFile != "" && gh.PasswordFile != "" {
		return fmt.Errorf("%s: only one of github.tokenFile or github.passwordFile may be specified", prefix)
	}
	if !strings.HasPrefix(gh.APIURL, "http://") && !strings.HasPrefix(gh.APIURL, "https://") {
		return fmt.Errorf("%s: github.apiURL must be an http or https URL", prefix)
	}
	return nil
}

func validateStaticConfig(st *StaticConfig, prefix string) error {
	seen := make(map[string]bool)
	for i, repo := range st.Repositories {
		if _, err := names.ParseGroupName(repo.Group); err != nil {
			return fmt.Errorf("%s: static.repositories[%d]: %w", prefix, i, err)
		}
		if _, err := names.ParseRepositoryName(repo.Name); err != nil {
			return fmt.Errorf("%s: static.repositories[%d]: %w", prefix, i, err)
		}
		if repo.URL == "" {
			return fmt.Errorf("%s: static.repositories[%d]: url is required", prefix, i)
		}
		key := repo.Group + "/" + repo.Name
		if seen[key] {
			return fmt.Errorf("%s: static.repositories[%d]: duplicate repository '%s'", prefix, i, key)
		}
		seen[key] = true
	}
	return nil
}

// compileFilters compiles every source filter, collecting all failures
func (c *Config) compileFilters(baseDir string, now func() time.Time) error {
	var errs []error
	for i := range c.Sources {
		src := &c.Sources[i]
		path := src.Filter
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		program, err := filter.CompileFile(path, filter.WithClock(now))
		if err != nil {
			errs = append(errs, fmt.Errorf("source %s: %w", src.Name, err))
			continue
		}
		src.program = program
	}
	return errors.Join(errs...)
}

// GetToken returns the GitHub token using the following priority:
// 1. Read from TokenFile if specified
// 2. Read from the REPOMIRROR_GITHUB_TOKEN environment variable
//
// An empty token with a nil error means basic or anonymous access.
func (g *GitHubConfig) GetToken() (string, error) {
	if g.TokenFile != "" {
		return readSecretFile(g.TokenFile, "token")
	}
	if g.PasswordFile != "" {
		return "", nil
	}
	return os.Getenv(EnvGitHubToken), nil
}

// GetPassword returns the basic authentication password, or "" when none is configured
func (g *GitHubConfig) GetPassword() (string, error) {
	if g.PasswordFile == "" {
		return "", nil
	}
	return readSecretFile(g.PasswordFile, "password")
}

// readSecretFile reads a credential file, trimming surrounding whitespace
func readSecretFile(path, kind string) (string, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to read %s from file %s: %w", kind, path, err)
	}
	return strings.TrimSpace(string(data)), nil
}
