package status

import "time"

// PassPhase represents the phase of a sync pass
type PassPhase string

const (
	// PassPhaseSyncing means the pass is in progress
	PassPhaseSyncing PassPhase = "Syncing"

	// PassPhaseComplete means every repository of the pass was updated
	PassPhaseComplete PassPhase = "Complete"

	// PassPhaseDegraded means the pass finished with failed repositories or sources
	PassPhaseDegraded PassPhase = "Degraded"
)

// SourceStatus is the outcome of one source within a pass
type SourceStatus struct {
	// Name is the configured source name
	Name string `json:"name"`

	// Groups is the number of groups the source returned
	Groups int `json:"groups"`

	// Repositories is the number of repositories the source returned
	Repositories int `json:"repositories"`

	// Error is set when the source could not be listed
	Error string `json:"error,omitempty"`
}

// PassStatus records the outcome of the latest sync pass
type PassStatus struct {
	// PassID identifies the pass in logs and traces
	PassID string `json:"passId"`

	// Phase is the pass phase
	Phase PassPhase `json:"phase"`

	// StartedAt is when the pass began
	StartedAt time.Time `json:"startedAt"`

	// FinishedAt is when the pass ended; nil while syncing
	FinishedAt *time.Time `json:"finishedAt,omitempty"`

	// Attempted, Succeeded and Failed count repository updates
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`

	// DryRun is true when updates were skipped
	DryRun bool `json:"dryRun,omitempty"`

	// Sources is the per-source outcome in configuration order
	Sources []SourceStatus `json:"sources"`

	// FailedRepositories lists "<group>/<name>" of failed updates
	FailedRepositories []string `json:"failedRepositories,omitempty"`

	// NextSyncTime is when the following pass is due, RFC 3339 UTC
	NextSyncTime string `json:"nextSyncTime,omitempty"`

	// ServerVersion is the version of the server that wrote the status
	ServerVersion string `json:"serverVersion,omitempty"`
}

// Duration returns the elapsed time of a finished pass, or zero while syncing
func (p *PassStatus) Duration() time.Duration {
	if p.FinishedAt == nil {
		return 0
	}
	return p.FinishedAt.Sub(p.StartedAt)
}
