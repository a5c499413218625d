package sources

import (
	"fmt"

	"github.com/stacklok/repomirror/internal/config"
	"github.com/stacklok/repomirror/internal/git"
	"github.com/stacklok/repomirror/internal/httpclient"
	"github.com/stacklok/repomirror/internal/names"
)

// Factory creates the sources of a configuration
type Factory struct {
	gitConfig  config.GitConfig
	clientOpts []httpclient.Option
}

// FactoryOption configures a Factory
type FactoryOption func(*Factory)

// WithHTTPClientOptions adds options to every API client the factory creates
func WithHTTPClientOptions(opts ...httpclient.Option) FactoryOption {
	return func(f *Factory) {
		f.clientOpts = append(f.clientOpts, opts...)
	}
}

// NewFactory creates a source factory using the executor settings in gitConfig
func NewFactory(gitConfig config.GitConfig, opts ...FactoryOption) *Factory {
	f := &Factory{gitConfig: gitConfig}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewSources creates one source per configured source, in configuration order
func (f *Factory) NewSources(cfg *config.Config) ([]Source, error) {
	result := make([]Source, 0, len(cfg.Sources))
	for i := range cfg.Sources {
		src, err := f.NewSource(&cfg.Sources[i])
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", cfg.Sources[i].Name, err)
		}
		result = append(result, src)
	}
	return result, nil
}

// NewSource creates the source described by cfg. The filter program must
// already be compiled.
func (f *Factory) NewSource(cfg *config.SourceConfig) (Source, error) {
	program := cfg.Program()
	if program == nil {
		return nil, fmt.Errorf("filter program is not compiled")
	}

	switch cfg.Type {
	case config.SourceTypeGitHub:
		return f.newGitHubSource(cfg)
	case config.SourceTypeStatic:
		if cfg.Static == nil {
			return nil, fmt.Errorf("static configuration is required for source type %s", cfg.Type)
		}
		executor, err := git.NewExecutor(f.gitConfig.Backend, f.gitConfig.Executable, nil)
		if err != nil {
			return nil, err
		}
		repositories, err := staticRepositories(cfg.Static)
		if err != nil {
			return nil, err
		}
		return NewStaticSource(cfg.Name, repositories, program, executor), nil
	default:
		return nil, fmt.Errorf("unsupported source type: %s", cfg.Type)
	}
}

func (f *Factory) newGitHubSource(cfg *config.SourceConfig) (Source, error) {
	gh := cfg.GitHub
	if gh == nil {
		return nil, fmt.Errorf("github configuration is required for source type %s", cfg.Type)
	}

	token, err := gh.GetToken()
	if err != nil {
		return nil, err
	}
	password, err := gh.GetPassword()
	if err != nil {
		return nil, err
	}

	clientOpts := []httpclient.Option{httpclient.WithAccept(GitHubAccept)}
	var auth *git.AuthConfig
	switch {
	case token != "":
		clientOpts = append(clientOpts, httpclient.WithToken(token))
		auth = &git.AuthConfig{Username: gh.User, Password: token}
	case password != "":
		clientOpts = append(clientOpts, httpclient.WithBasicAuth(gh.User, password))
		auth = &git.AuthConfig{Username: gh.User, Password: password}
	}
	clientOpts = append(clientOpts, f.clientOpts...)

	executor, err := git.NewExecutor(f.gitConfig.Backend, f.gitConfig.Executable, auth)
	if err != nil {
		return nil, err
	}

	apiURL := gh.APIURL
	if apiURL == "" {
		apiURL = config.DefaultGitHubAPIURL
	}

	return NewGitHubSource(GitHubSourceConfig{
		Name:   cfg.Name,
		User:   gh.User,
		APIURL: apiURL,
		Issues: gh.Issues,
	}, cfg.Program(), httpclient.NewDefaultClient(clientOpts...), executor), nil
}

func staticRepositories(cfg *config.StaticConfig) ([]StaticRepository, error) {
	result := make([]StaticRepository, 0, len(cfg.Repositories))
	for _, entry := range cfg.Repositories {
		group, err := names.ParseGroupName(entry.Group)
		if err != nil {
			return nil, err
		}
		name, err := names.ParseRepositoryName(entry.Name)
		if err != nil {
			return nil, err
		}
		result = append(result, StaticRepository{Group: group, Name: name, URL: entry.URL})
	}
	return result, nil
}
