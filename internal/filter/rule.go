package filter

import (
	"fmt"
	"regexp"
)

// Kind is the kind of a filter rule
type Kind int

const (
	// KindInclude includes matching names and continues evaluation
	KindInclude Kind = iota
	// KindExclude excludes matching names and continues evaluation
	KindExclude
	// KindIncludeAndHalt includes matching names and stops evaluation
	KindIncludeAndHalt
	// KindExcludeAndHalt excludes matching names and stops evaluation
	KindExcludeAndHalt
)

// keywords lists rule keywords in the order they must be tried, so that
// "include-and-halt" is never read as "include".
var keywords = []struct {
	text string
	kind Kind
}{
	{text: "include-and-halt", kind: KindIncludeAndHalt},
	{text: "include", kind: KindInclude},
	{text: "exclude-and-halt", kind: KindExcludeAndHalt},
	{text: "exclude", kind: KindExclude},
}

// String returns the keyword for the kind
func (k Kind) String() string {
	switch k {
	case KindInclude:
		return "include"
	case KindExclude:
		return "exclude"
	case KindIncludeAndHalt:
		return "include-and-halt"
	case KindExcludeAndHalt:
		return "exclude-and-halt"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Rule is a single compiled filter rule
type Rule struct {
	kind    Kind
	source  string
	matcher *regexp.Regexp
}

// NewRule compiles pattern into a rule of the given kind. The pattern must match
// the whole candidate name.
func NewRule(kind Kind, pattern string) (Rule, error) {
	// The bare pattern is checked first so that text which only balances once
	// wrapped, such as "a)|(b", is still rejected.
	if _, err := regexp.Compile(pattern); err != nil {
		return Rule{}, err
	}
	matcher, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return Rule{}, err
	}
	return Rule{kind: kind, source: pattern, matcher: matcher}, nil
}

// MustRule is like NewRule but panics if the pattern does not compile.
func MustRule(kind Kind, pattern string) Rule {
	r, err := NewRule(kind, pattern)
	if err != nil {
		panic(err)
	}
	return r
}

// Kind returns the rule kind
func (r Rule) Kind() Kind {
	return r.kind
}

// Pattern returns the pattern text as written in the filter source
func (r Rule) Pattern() string {
	return r.source
}

// String returns the rule in filter source syntax
func (r Rule) String() string {
	return r.kind.String() + " " + r.source
}

// step is the outcome of evaluating one rule
type step int

const (
	stepContinue step = iota
	stepHalt
)

// apply evaluates the rule against name, returning the new inclusion state and
// whether evaluation continues.
func (r Rule) apply(name string, included bool) (bool, bool, step) {
	if !r.matcher.MatchString(name) {
		return included, false, stepContinue
	}

	switch r.kind {
	case KindInclude:
		return true, true, stepContinue
	case KindExclude:
		return false, true, stepContinue
	case KindIncludeAndHalt:
		return true, true, stepHalt
	case KindExcludeAndHalt:
		return false, true, stepHalt
	default:
		return included, true, stepContinue
	}
}
