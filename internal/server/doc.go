// Package server contains the synchronization scheduler of the mirror server.
//
// A Server runs sync passes on one background goroutine. Each pass asks every
// configured source for its groups and updates every repository in sorted
// group and name order, then pauses until the configured pause duration has
// elapsed since the start of the pass. Stop only sets a flag and wakes the
// pause; in-flight mirror operations always run to completion, and the flag
// is checked before each source, group and repository.
package server
