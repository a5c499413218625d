// Package v1 contains the management API routes of the mirror server.
package v1

//go:generate mockgen -destination=mocks/mock_scheduler.go -package=mocks -source=routes.go Scheduler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/repomirror/internal/api/common"
	"github.com/stacklok/repomirror/internal/metrics"
	"github.com/stacklok/repomirror/internal/server"
	"github.com/stacklok/repomirror/internal/status"
	"github.com/stacklok/repomirror/internal/versions"
)

// Scheduler is the view of the sync server the API reads from
type Scheduler interface {
	// State returns the lifecycle state of the sync loop
	State() server.State

	// Metrics returns a consistent snapshot of the server counters
	Metrics() metrics.Snapshot
}

// HealthRouter creates the probe and version routes mounted at the root
func HealthRouter(scheduler Scheduler) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", healthHandler)
	r.Get("/readiness", readinessHandler(scheduler))
	r.Get("/version", versionHandler)
	return r
}

// Router creates the v1 routes
func Router(scheduler Scheduler, store status.Store) http.Handler {
	r := chi.NewRouter()
	r.Get("/metrics", metricsHandler(scheduler))
	r.Get("/status", statusHandler(store))
	return r
}

// healthHandler reports that the process is serving requests
//
// @Summary		Health check
// @Tags			system
// @Produce		json
// @Success		200	{object}	HealthResponse
// @Router			/health [get]
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, HealthResponse{Status: "ok"}, http.StatusOK)
}

// readinessHandler reports ready while the sync loop is running
//
// @Summary		Readiness check
// @Tags			system
// @Produce		json
// @Success		200	{object}	ReadinessResponse
// @Failure		503	{object}	common.ErrorResponse
// @Router			/readiness [get]
func readinessHandler(scheduler Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		state := scheduler.State()
		if state != server.StateRunning {
			common.WriteErrorResponse(w, fmt.Sprintf("sync server is %s", state), http.StatusServiceUnavailable)
			return
		}
		common.WriteJSONResponse(w, ReadinessResponse{Status: "ready", State: state.String()}, http.StatusOK)
	}
}

// versionHandler handles version information requests
//
// @Summary		Version information
// @Tags			system
// @Produce		json
// @Success		200	{object}	versions.VersionInfo
// @Router			/version [get]
func versionHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, versions.GetVersionInfo(), http.StatusOK)
}

// metricsHandler returns the server counters as JSON
//
// @Summary		Sync metrics
// @Tags			v1
// @Produce		json
// @Success		200	{object}	metrics.Snapshot
// @Router			/v1/metrics [get]
func metricsHandler(scheduler Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		common.WriteJSONResponse(w, scheduler.Metrics(), http.StatusOK)
	}
}

// statusHandler returns the status of the latest sync pass
//
// @Summary		Latest pass status
// @Tags			v1
// @Produce		json
// @Success		200	{object}	status.PassStatus
// @Failure		404	{object}	common.ErrorResponse
// @Failure		500	{object}	common.ErrorResponse
// @Router			/v1/status [get]
func statusHandler(store status.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			common.WriteErrorResponse(w, status.ErrNoStatus.Error(), http.StatusNotFound)
			return
		}

		passStatus, err := store.Load(r.Context())
		if errors.Is(err, status.ErrNoStatus) {
			common.WriteErrorResponse(w, err.Error(), http.StatusNotFound)
			return
		}
		if err != nil {
			slog.ErrorContext(r.Context(), "Failed to load pass status", "error", err)
			common.WriteErrorResponse(w, "failed to load pass status", http.StatusInternalServerError)
			return
		}
		common.WriteJSONResponse(w, passStatus, http.StatusOK)
	}
}
