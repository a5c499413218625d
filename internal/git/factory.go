package git

import "fmt"

// NewExecutor creates an executor for the named backend
func NewExecutor(backend, executable string, auth *AuthConfig) (Executor, error) {
	switch backend {
	case "", BackendCommand:
		return NewCommandExecutor(executable), nil
	case BackendGoGit:
		return NewGoGitExecutor(auth), nil
	default:
		return nil, fmt.Errorf("unsupported git backend: %s", backend)
	}
}
