package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/repomirror/internal/config"
	"github.com/stacklok/repomirror/internal/otel"
	"github.com/stacklok/repomirror/internal/sources"
	"github.com/stacklok/repomirror/internal/status"
	"github.com/stacklok/repomirror/internal/versions"
)

// pass is the bookkeeping of one sync pass. It is only touched by the loop.
type pass struct {
	id     string
	status *status.PassStatus
	failed bool
}

func (s *Server) runPass(ctx context.Context, start time.Time) {
	p := &pass{
		id: s.newPassID(),
		status: &status.PassStatus{
			Phase:     status.PassPhaseSyncing,
			StartedAt: start.UTC(),
			DryRun:    s.settings.DryRun,
			Sources:   []status.SourceStatus{},

			ServerVersion: versions.GetVersionInfo().Version,
		},
	}
	p.status.PassID = p.id

	ctx, span := otel.StartSpan(ctx, s.tracer, "sync.pass", trace.WithAttributes(
		otel.AttrPassID.String(p.id),
		otel.AttrPassDryRun.Bool(s.settings.DryRun),
	))
	defer span.End()

	slog.InfoContext(ctx, "Starting sync pass", "pass_id", p.id, "sources", len(s.settings.Sources))
	s.saveStatus(ctx, p)

	for _, src := range s.settings.Sources {
		if s.stopping.Load() {
			slog.InfoContext(ctx, "Stop requested, ending sync pass early", "pass_id", p.id)
			break
		}
		s.syncSource(ctx, p, src)
	}

	elapsed := s.clock.Since(start)
	s.recorder.FinishPeriod(elapsed)
	s.syncMetrics.RecordPassDuration(ctx, elapsed)

	finished := start.Add(elapsed).UTC()
	p.status.FinishedAt = &finished
	p.status.Phase = status.PassPhaseComplete
	if p.failed || p.status.Failed > 0 {
		p.status.Phase = status.PassPhaseDegraded
		span.SetStatus(codes.Error, "pass finished with failures")
	}
	p.status.NextSyncTime = start.Add(s.settings.PauseDuration).UTC().Format(time.RFC3339)

	span.SetAttributes(
		otel.AttrPassAttempted.Int(p.status.Attempted),
		otel.AttrPassSucceeded.Int(p.status.Succeeded),
		otel.AttrPassFailed.Int(p.status.Failed),
	)

	slog.InfoContext(ctx, "Sync pass finished",
		"pass_id", p.id,
		"elapsed", config.FormatDuration(elapsed),
		"attempted", p.status.Attempted,
		"succeeded", p.status.Succeeded,
		"failed", p.status.Failed)
	s.saveStatus(ctx, p)
}

// syncSource retrieves the groups of src and synchronizes each of them
func (s *Server) syncSource(ctx context.Context, p *pass, src sources.Source) {
	name := src.Name()
	slog.DebugContext(ctx, "Retrieving repository groups", "pass_id", p.id, "source", name)

	snapshot, err := src.Get(ctx)
	if err != nil {
		s.recorder.GroupRetrievalFailed()
		p.failed = true
		p.status.Sources = append(p.status.Sources, status.SourceStatus{Name: name, Error: err.Error()})
		slog.ErrorContext(ctx, "Failed to retrieve repository groups",
			"pass_id", p.id, "source", name, "error", err)
		return
	}

	p.status.Sources = append(p.status.Sources, status.SourceStatus{
		Name:         name,
		Groups:       snapshot.Len(),
		Repositories: snapshot.RepositoryCount(),
	})

	for _, groupName := range snapshot.GroupNames() {
		if s.stopping.Load() {
			return
		}
		group, _ := snapshot.Group(groupName)
		s.recorder.RepositoriesSeen(group.Len())
		s.safeGroup(ctx, p, name, group)
	}
}

// safeGroup synchronizes group, logging anything that escapes it so that the
// remaining groups still run
func (s *Server) safeGroup(ctx context.Context, p *pass, source string, group *sources.Group) {
	defer func() {
		if r := recover(); r != nil {
			p.failed = true
			slog.ErrorContext(ctx, "Failed to synchronize repository group",
				"pass_id", p.id, "source", source, "group", group.Name().String(), "error", fmt.Sprint(r))
		}
	}()
	s.syncGroup(ctx, p, source, group)
}

func (s *Server) syncGroup(ctx context.Context, p *pass, source string, group *sources.Group) {
	for _, name := range group.Names() {
		if s.stopping.Load() {
			return
		}
		repo, _ := group.Repository(name)
		s.syncRepository(ctx, p, source, repo)
	}
}

// syncRepository updates one mirror and records the outcome
func (s *Server) syncRepository(ctx context.Context, p *pass, source string, repo sources.Repository) {
	s.recorder.SyncAttempted()
	p.status.Attempted++

	path := MirrorPath(s.settings.Directory, repo.Group(), repo.Name())
	attrs := []any{
		"pass_id", p.id,
		"source", source,
		"group", repo.Group().String(),
		"repository", repo.Name().String(),
	}

	ctx, span := otel.StartSpan(ctx, s.tracer, "sync.repository", trace.WithAttributes(
		otel.RepositoryAttributes(source, repo.Group().String(), repo.Name().String())...,
	))
	defer span.End()

	if s.settings.DryRun {
		slog.InfoContext(ctx, "Dry run, skipping repository update", append(attrs, "path", path)...)
		s.recorder.SyncSucceeded()
		p.status.Succeeded++
		return
	}

	slog.InfoContext(ctx, "Updating repository", append(attrs, "path", path)...)
	start := s.clock.Now()
	err := repo.Update(ctx, path)
	s.syncMetrics.RecordUpdateDuration(ctx, source, repo.Group().String(), s.clock.Since(start), err == nil)

	if err != nil {
		otel.RecordError(span, err)
		s.recorder.SyncFailed()
		p.status.Failed++
		p.status.FailedRepositories = append(p.status.FailedRepositories, repo.String())
		slog.ErrorContext(ctx, "Failed to update repository", append(attrs, "error", err)...)
		return
	}

	s.recorder.SyncSucceeded()
	p.status.Succeeded++
}

// pause waits until deadline, publishing the remaining time on every poll.
// Stop ends the wait at once.
func (s *Server) pause(ctx context.Context, deadline time.Time) {
	remaining := deadline.Sub(s.clock.Now())
	if remaining < s.settings.MinimumPause {
		s.recorder.ShortPause()
		slog.WarnContext(ctx, "Pause before the next sync pass is shorter than the minimum",
			"remaining", config.FormatDuration(max(remaining, 0)),
			"minimum", config.FormatDuration(s.settings.MinimumPause))
	}

	for {
		if s.stopping.Load() {
			return
		}

		remaining = deadline.Sub(s.clock.Now())
		s.recorder.SetWait(remaining, deadline)
		if remaining <= 0 {
			return
		}

		timer := s.clock.NewTimer(min(s.pollInterval, remaining))
		select {
		case <-timer.C():
		case <-s.wake:
			timer.Stop()
			return
		}
	}
}

// saveStatus persists the pass status; failures are only logged
func (s *Server) saveStatus(ctx context.Context, p *pass) {
	if s.statusStore == nil {
		return
	}
	if err := s.statusStore.Save(ctx, p.status); err != nil {
		slog.WarnContext(ctx, "Failed to save pass status", "pass_id", p.id, "error", err)
	}
}
