package filter

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// maxLineLength bounds a single filter line
const maxLineLength = 1024 * 1024

// CompileOption configures a compilation
type CompileOption func(*compileConfig)

type compileConfig struct {
	now func() time.Time
}

// WithClock sets the function used to timestamp compiled programs
func WithClock(now func() time.Time) CompileOption {
	return func(cfg *compileConfig) {
		cfg.now = now
	}
}

// Compile reads filter rules from r. sourceID names the input in error
// positions, usually the file path.
//
// Every line is examined before failing: if any line is malformed the returned
// error is a *CompileError holding one CompilationError per bad line.
func Compile(sourceID string, r io.Reader, opts ...CompileOption) (*Program, error) {
	cfg := &compileConfig{now: time.Now}
	for _, opt := range opts {
		opt(cfg)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineLength)

	var rules []Rule
	var errs []CompilationError

	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		position := Position{Source: sourceID, Line: lineNumber, Column: 0}

		kind, rest, ok := parseKeyword(line)
		if !ok {
			errs = append(errs, CompilationError{
				Position: position,
				Message:  "Expected an 'include' or 'exclude' rule, but received: " + line,
			})
			continue
		}

		pattern := strings.TrimSpace(rest)
		rule, err := NewRule(kind, pattern)
		if err != nil {
			errs = append(errs, CompilationError{
				Position: position,
				Message:  "Invalid pattern: " + pattern,
				Cause:    err,
			})
			continue
		}
		rules = append(rules, rule)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read filter source %s: %w", sourceID, err)
	}

	if len(errs) > 0 {
		return nil, &CompileError{Errors: errs}
	}

	return NewProgram(cfg.now(), rules...), nil
}

// CompileFile compiles the filter program stored at path
func CompileFile(path string, opts ...CompileOption) (*Program, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open filter file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	return Compile(path, f, opts...)
}

// parseKeyword splits a rule line into its kind and the remaining text
func parseKeyword(line string) (Kind, string, bool) {
	for _, kw := range keywords {
		if rest, ok := strings.CutPrefix(line, kw.text); ok {
			return kw.kind, rest, true
		}
	}
	return 0, "", false
}
