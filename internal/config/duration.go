package config

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// pausePattern is the "<h>h <m>m <s>s" form, e.g. "1h 30m 0s"
var pausePattern = regexp.MustCompile(`^([0-9]+)h ([0-9]+)m ([0-9]+)s$`)

// ParseDuration parses either the "<h>h <m>m <s>s" form or a Go duration
// string such as "90m"
func ParseDuration(text string) (time.Duration, error) {
	if m := pausePattern.FindStringSubmatch(text); m != nil {
		var total time.Duration
		for i, unit := range []time.Duration{time.Hour, time.Minute, time.Second} {
			n, err := strconv.ParseInt(m[i+1], 10, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid duration %q: %w", text, err)
			}
			total += time.Duration(n) * unit
		}
		return total, nil
	}

	d, err := time.ParseDuration(text)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: must be like \"1h 0m 0s\" or \"1h\"", text)
	}
	return d, nil
}

// FormatDuration renders d in the "<h>h <m>m <s>s" form, truncated to seconds
func FormatDuration(d time.Duration) string {
	total := int64(d / time.Second)
	return fmt.Sprintf("%dh %dm %ds", total/3600, (total%3600)/60, total%60)
}

// Duration is a time.Duration read from YAML with ParseDuration
type Duration time.Duration

// Std returns the standard library duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var text string
	if err := node.Decode(&text); err != nil {
		return fmt.Errorf("line %d: duration must be a string: %w", node.Line, err)
	}
	parsed, err := ParseDuration(text)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (any, error) {
	return FormatDuration(time.Duration(d)), nil
}
