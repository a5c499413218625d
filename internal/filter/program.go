package filter

import (
	"context"
	"log/slog"
	"slices"
	"time"
)

// Program is an ordered, immutable list of filter rules
type Program struct {
	compiled time.Time
	rules    []Rule
}

// NewProgram creates a program from rules in evaluation order
func NewProgram(compiled time.Time, rules ...Rule) *Program {
	return &Program{
		compiled: compiled,
		rules:    slices.Clone(rules),
	}
}

// Compiled returns the time the program was compiled
func (p *Program) Compiled() time.Time {
	return p.compiled
}

// Rules returns a copy of the program rules
func (p *Program) Rules() []Rule {
	return slices.Clone(p.rules)
}

// Len returns the number of rules
func (p *Program) Len() int {
	return len(p.rules)
}

// Includes reports whether name is included by the program. Names start out
// excluded, so an empty program excludes everything.
func (p *Program) Includes(ctx context.Context, name string) bool {
	included := false
	debug := slog.Default().Enabled(ctx, slog.LevelDebug)

	for _, rule := range p.rules {
		var matched bool
		var next step
		included, matched, next = rule.apply(name, included)

		if debug {
			slog.DebugContext(ctx, "Filter rule evaluated",
				"rule", rule.String(),
				"name", name,
				"matches", matched)
		}

		if next == stepHalt {
			break
		}
	}

	slog.DebugContext(ctx, "Filter result", "name", name, "included", included)
	return included
}
