// Package sources provides the repository sources that tell the scheduler
// which repositories to mirror.
//
// A Source returns a Snapshot of groups on every call to Get. Each group holds
// Repository handles that know how to bring a local mirror up to date: the
// handle decides between a mirror clone and a fetch from the state of the
// destination directory, and may write side artifacts next to the mirror.
//
// Current implementations:
//   - GitHubSource: lists the repositories visible to a GitHub user through
//     the REST API, following pagination links
//   - StaticSource: repositories written directly in the configuration
//
// Both filter candidate names of the form "<group>/<name>" through the
// compiled filter program of their source before any handle is created.
package sources
