package filter

import (
	"fmt"
	"strings"
)

// Position is a location in a filter source
type Position struct {
	// Source identifies the input, usually a file path
	Source string
	// Line is 1-indexed
	Line int
	// Column is 0-indexed
	Column int
}

// String formats the position as source:line:column
func (p Position) String() string {
	return fmt.Sprintf("%s:%d:%d", p.Source, p.Line, p.Column)
}

// CompilationError describes one problem found while compiling a filter source
type CompilationError struct {
	Position Position
	Message  string
	// Cause is the underlying error, if any (for example a regexp syntax error)
	Cause error
}

// Error implements the error interface
func (e CompilationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Position, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Position, e.Message)
}

// Unwrap returns the underlying cause
func (e CompilationError) Unwrap() error {
	return e.Cause
}

// CompileError is returned when a filter source contains one or more errors
type CompileError struct {
	Errors []CompilationError
}

// Error implements the error interface
func (e *CompileError) Error() string {
	lines := make([]string, 0, len(e.Errors)+1)
	lines = append(lines, "one or more compilation errors occurred")
	for _, ce := range e.Errors {
		lines = append(lines, "  "+ce.Error())
	}
	return strings.Join(lines, "\n")
}

// CompilationErrors collects every CompilationError carried by err, looking
// through wrapped and joined errors
func CompilationErrors(err error) []CompilationError {
	var out []CompilationError
	var walk func(error)
	walk = func(e error) {
		switch v := e.(type) {
		case nil:
		case *CompileError:
			out = append(out, v.Errors...)
		case CompilationError:
			out = append(out, v)
		case interface{ Unwrap() []error }:
			for _, inner := range v.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(v.Unwrap())
		}
	}
	walk(err)
	return out
}
