package app

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/repomirror/internal/metrics"
	"github.com/stacklok/repomirror/internal/server"
	"github.com/stacklok/repomirror/internal/status"
)

const (
	waitFor = 5 * time.Second
	tick    = 10 * time.Millisecond
)

// createTestApp builds an app with an empty source listening on an ephemeral port
func createTestApp(t *testing.T, ctrl *gomock.Controller) (*MirrorApp, net.Listener) {
	t.Helper()

	app, err := NewMirrorApp(context.Background(),
		WithConfig(createValidTestConfig(t)),
		WithAddress("127.0.0.1:0"),
		WithSources(newEmptySource(t, ctrl)),
		WithServerOptions(server.WithPassIDGenerator(func() string { return "pass-test" })),
	)
	require.NoError(t, err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return app, listener
}

func getJSON(t *testing.T, url string, target any) int {
	t.Helper()

	resp, err := http.Get(url) //nolint:gosec // test server URL
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	if target != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
	}
	return resp.StatusCode
}

func TestMirrorApp_ServeAndStop(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	app, listener := createTestApp(t, ctrl)
	base := "http://" + listener.Addr().String()

	errChan := make(chan error, 1)
	go func() {
		errChan <- app.Serve(listener)
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/readiness") //nolint:gosec // test server URL
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, waitFor, tick)

	require.Eventually(t, func() bool {
		var snapshot metrics.Snapshot
		return getJSON(t, base+"/v1/metrics", &snapshot) == http.StatusOK && snapshot.Passes == 1
	}, waitFor, tick)

	// The final status is saved right after the pass is counted
	var passStatus status.PassStatus
	require.Eventually(t, func() bool {
		passStatus = status.PassStatus{}
		return getJSON(t, base+"/v1/status", &passStatus) == http.StatusOK &&
			passStatus.Phase == status.PassPhaseComplete
	}, waitFor, tick)
	assert.Equal(t, "pass-test", passStatus.PassID)
	assert.NotEmpty(t, passStatus.ServerVersion)

	// Prometheus is not configured
	assert.Equal(t, http.StatusNotFound, getJSON(t, base+"/metrics", nil))

	require.NoError(t, app.Stop(5*time.Second))
	assert.Equal(t, server.StateStopped, app.GetComponents().Scheduler.State())

	select {
	case err := <-errChan:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("Serve() did not return after Stop()")
	}
}

func TestMirrorApp_StopIdempotent(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	app, listener := createTestApp(t, ctrl)
	_ = listener.Close()

	require.NoError(t, app.Stop(5*time.Second))
	require.NoError(t, app.Stop(5*time.Second))
	assert.Equal(t, server.StateStopped, app.GetComponents().Scheduler.State())
}

func TestMirrorApp_ServeAfterStop(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	app, listener := createTestApp(t, ctrl)
	t.Cleanup(func() { _ = listener.Close() })
	require.NoError(t, app.Stop(5*time.Second))

	err := app.Serve(listener)
	require.Error(t, err)
	assert.ErrorIs(t, err, server.ErrStopped)
}

func TestMirrorApp_StartError_InvalidAddress(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	app, listener := createTestApp(t, ctrl)
	t.Cleanup(func() { _ = app.Stop(5 * time.Second) })
	defer func() { _ = listener.Close() }()

	// The port is already taken by the listener
	app.GetHTTPServer().Addr = listener.Addr().String()
	err := app.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP server failed")
}
