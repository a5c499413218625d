package git

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// DefaultExecutable is the git binary looked up on PATH when none is configured
const DefaultExecutable = "git"

// CommandError is returned when a git invocation fails. Output holds the
// combined stdout and stderr of the process.
type CommandError struct {
	Args   []string
	Dir    string
	Output string
	Err    error
}

// Error implements the error interface
func (e *CommandError) Error() string {
	msg := fmt.Sprintf("git %s failed: %v", strings.Join(e.Args, " "), e.Err)
	if e.Output != "" {
		msg += "\n" + e.Output
	}
	return msg
}

// Unwrap returns the process error
func (e *CommandError) Unwrap() error {
	return e.Err
}

// commandExecutor runs an external git binary
type commandExecutor struct {
	executable string
	env        []string
}

var _ Executor = (*commandExecutor)(nil)

// NewCommandExecutor creates an executor that runs the git binary at executable.
// An empty executable means DefaultExecutable.
func NewCommandExecutor(executable string) Executor {
	if executable == "" {
		executable = DefaultExecutable
	}
	return &commandExecutor{
		executable: executable,
		// Never block on a credential prompt
		env: append(os.Environ(), "GIT_TERMINAL_PROMPT=0"),
	}
}

// MirrorClone runs "git clone --progress --mirror url destination"
func (c *commandExecutor) MirrorClone(ctx context.Context, url, destination string) error {
	abs, err := filepath.Abs(destination)
	if err != nil {
		return fmt.Errorf("failed to resolve destination: %w", err)
	}
	return c.run(ctx, "", "clone", "--progress", "--mirror", url, abs)
}

// FetchPrune runs "git fetch --progress --prune" inside repository
func (c *commandExecutor) FetchPrune(ctx context.Context, repository string) error {
	abs, err := filepath.Abs(repository)
	if err != nil {
		return fmt.Errorf("failed to resolve repository: %w", err)
	}
	if err := requireDirectory(abs); err != nil {
		return err
	}
	return c.run(ctx, abs, "fetch", "--progress", "--prune")
}

func (c *commandExecutor) run(ctx context.Context, dir string, args ...string) error {
	slog.DebugContext(ctx, "Executing git", "executable", c.executable, "args", args, "dir", dir)

	//nolint:gosec // G204: executable comes from trusted configuration
	cmd := exec.CommandContext(ctx, c.executable, args...)
	cmd.Dir = dir
	cmd.Env = c.env

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	runErr := cmd.Run()

	if slog.Default().Enabled(ctx, slog.LevelDebug) {
		scanner := bufio.NewScanner(bytes.NewReader(out.Bytes()))
		for scanner.Scan() {
			slog.DebugContext(ctx, "git output", "line", scanner.Text())
		}
	}

	if runErr != nil {
		return &CommandError{
			Args:   args,
			Dir:    dir,
			Output: strings.TrimSpace(out.String()),
			Err:    runErr,
		}
	}
	return nil
}
