// Package metrics holds the counters and gauges of the mirror server.
//
// A Recorder publishes an immutable Snapshot after every change. Readers on
// other goroutines always see one consistent snapshot, never a half-applied
// update.
package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot is a point-in-time copy of all server counters and gauges.
// The Latest fields accumulate during the current pass and are rolled into
// the Total fields when the pass finishes.
type Snapshot struct {
	// RepositoryCount is the number of repositories seen in the last finished pass
	RepositoryCount int64 `json:"repositoryCount"`
	// RepositoryCountLatest is the number of repositories seen so far in the current pass
	RepositoryCountLatest int64 `json:"repositoryCountLatest"`
	// GroupRetrievalFailures counts failed source retrievals over the server lifetime
	GroupRetrievalFailures int64 `json:"groupRetrievalFailures"`

	SyncAttemptsTotal   int64 `json:"syncAttemptsTotal"`
	SyncSucceededTotal  int64 `json:"syncSucceededTotal"`
	SyncFailedTotal     int64 `json:"syncFailedTotal"`
	SyncAttemptsLatest  int64 `json:"syncAttemptsLatest"`
	SyncSucceededLatest int64 `json:"syncSucceededLatest"`
	SyncFailedLatest    int64 `json:"syncFailedLatest"`

	// LastSyncDurationSeconds is the elapsed time of the last finished pass
	LastSyncDurationSeconds int64 `json:"lastSyncDurationSeconds"`
	// WaitSecondsRemaining is the time left before the next pass starts
	WaitSecondsRemaining int64 `json:"waitSecondsRemaining"`
	// NextSyncTime is the start of the next pass in RFC 3339 UTC, empty before the first pause
	NextSyncTime string `json:"nextSyncTime"`
	// ShortPauses counts pauses shorter than the minimum healthy pause
	ShortPauses int64 `json:"shortPauses"`
	// Passes counts finished passes
	Passes int64 `json:"passes"`
}

// Recorder accumulates server metrics. It is safe for concurrent use; the
// zero value is ready to use.
type Recorder struct {
	current atomic.Pointer[Snapshot]
}

// NewRecorder creates a recorder with all counters at zero
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Snapshot returns the current values
func (r *Recorder) Snapshot() Snapshot {
	if s := r.current.Load(); s != nil {
		return *s
	}
	return Snapshot{}
}

// update applies fn to a copy of the current snapshot and publishes it
func (r *Recorder) update(fn func(*Snapshot)) {
	for {
		old := r.current.Load()
		next := Snapshot{}
		if old != nil {
			next = *old
		}
		fn(&next)
		if r.current.CompareAndSwap(old, &next) {
			return
		}
	}
}

// RepositoriesSeen adds n repositories to the current pass
func (r *Recorder) RepositoriesSeen(n int) {
	r.update(func(s *Snapshot) {
		s.RepositoryCountLatest += int64(n)
	})
}

// GroupRetrievalFailed counts a failed source retrieval
func (r *Recorder) GroupRetrievalFailed() {
	r.update(func(s *Snapshot) {
		s.GroupRetrievalFailures++
	})
}

// SyncAttempted counts an attempted repository update
func (r *Recorder) SyncAttempted() {
	r.update(func(s *Snapshot) {
		s.SyncAttemptsLatest++
	})
}

// SyncSucceeded counts a successful repository update
func (r *Recorder) SyncSucceeded() {
	r.update(func(s *Snapshot) {
		s.SyncSucceededLatest++
	})
}

// SyncFailed counts a failed repository update
func (r *Recorder) SyncFailed() {
	r.update(func(s *Snapshot) {
		s.SyncFailedLatest++
	})
}

// ShortPause counts a pause shorter than the minimum healthy pause
func (r *Recorder) ShortPause() {
	r.update(func(s *Snapshot) {
		s.ShortPauses++
	})
}

// FinishPeriod rolls the current pass into the lifetime totals and resets it
func (r *Recorder) FinishPeriod(elapsed time.Duration) {
	r.update(func(s *Snapshot) {
		s.SyncAttemptsTotal += s.SyncAttemptsLatest
		s.SyncSucceededTotal += s.SyncSucceededLatest
		s.SyncFailedTotal += s.SyncFailedLatest
		s.SyncAttemptsLatest = 0
		s.SyncSucceededLatest = 0
		s.SyncFailedLatest = 0

		s.RepositoryCount = s.RepositoryCountLatest
		s.RepositoryCountLatest = 0

		s.LastSyncDurationSeconds = int64(elapsed / time.Second)
		s.Passes++
	})
}

// SetWait publishes the remaining pause and the time the next pass starts
func (r *Recorder) SetWait(remaining time.Duration, next time.Time) {
	if remaining < 0 {
		remaining = 0
	}
	r.update(func(s *Snapshot) {
		s.WaitSecondsRemaining = int64(remaining / time.Second)
		s.NextSyncTime = next.UTC().Format(time.RFC3339)
	})
}
