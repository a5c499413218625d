// Package names provides the validated identifiers used to address mirrored
// repositories: the group (owning account or namespace) and the repository name.
package names

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxLength is the maximum length, in characters, of a group or repository name.
const MaxLength = 128

// pattern is the syntax shared by group and repository names.
var pattern = regexp.MustCompile(`^[\p{L}\p{N}_-][\p{L}\p{N}_.-]{0,127}$`)

// GroupName is the name of a repository group, such as a user or an organization.
type GroupName string

// RepositoryName is the name of a repository within a group.
type RepositoryName string

func validate(kind, text string) error {
	if text == "" {
		return fmt.Errorf("%s name cannot be empty", kind)
	}
	if !pattern.MatchString(text) {
		return fmt.Errorf("invalid %s name %q: must match %s", kind, text, pattern.String())
	}
	return nil
}

// ParseGroupName validates text as a group name
func ParseGroupName(text string) (GroupName, error) {
	if err := validate("group", text); err != nil {
		return "", err
	}
	return GroupName(text), nil
}

// ParseRepositoryName validates text as a repository name
func ParseRepositoryName(text string) (RepositoryName, error) {
	if err := validate("repository", text); err != nil {
		return "", err
	}
	return RepositoryName(text), nil
}

// MustGroupName is like ParseGroupName but panics on invalid input.
func MustGroupName(text string) GroupName {
	n, err := ParseGroupName(text)
	if err != nil {
		panic(err)
	}
	return n
}

// MustRepositoryName is like ParseRepositoryName but panics on invalid input.
func MustRepositoryName(text string) RepositoryName {
	n, err := ParseRepositoryName(text)
	if err != nil {
		panic(err)
	}
	return n
}

// String returns the name text
func (g GroupName) String() string {
	return string(g)
}

// Compare orders group names by their text
func (g GroupName) Compare(other GroupName) int {
	return strings.Compare(string(g), string(other))
}

// String returns the name text
func (r RepositoryName) String() string {
	return string(r)
}

// Compare orders repository names by their text
func (r RepositoryName) Compare(other RepositoryName) int {
	return strings.Compare(string(r), string(other))
}

// Qualified returns the "<group>/<name>" form used by filter programs.
func Qualified(group GroupName, name RepositoryName) string {
	return string(group) + "/" + string(name)
}
