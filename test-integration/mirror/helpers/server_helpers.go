package helpers

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/onsi/gomega"

	mirrorapp "github.com/stacklok/repomirror/internal/app"
	"github.com/stacklok/repomirror/internal/config"
	"github.com/stacklok/repomirror/internal/metrics"
	"github.com/stacklok/repomirror/internal/status"
)

// ServerTestHelper manages the mirror server lifecycle for testing
type ServerTestHelper struct {
	ctx        context.Context
	configPath string
	baseURL    string
	httpClient *http.Client
	app        *mirrorapp.MirrorApp
}

// NewServerTestHelper creates a new server test helper
func NewServerTestHelper(ctx context.Context, configPath string) *ServerTestHelper {
	return &ServerTestHelper{
		ctx:        ctx,
		configPath: configPath,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// StartServer loads the configuration and starts the mirror server on an
// ephemeral port
func (s *ServerTestHelper) StartServer() error {
	cfg, err := config.LoadConfig(config.WithConfigPath(s.configPath))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	app, err := mirrorapp.NewMirrorApp(s.ctx,
		mirrorapp.WithConfig(cfg),
		mirrorapp.WithAddress(listener.Addr().String()))
	if err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to build app: %w", err)
	}

	s.app = app
	s.baseURL = "http://" + listener.Addr().String()

	go func() {
		if err := app.Serve(listener); err != nil {
			// The test fails when it tries to connect
			fmt.Fprintf(os.Stderr, "Server start failed: %v\n", err)
		}
	}()

	return nil
}

// StopServer gracefully stops the mirror server
func (s *ServerTestHelper) StopServer() error {
	if s.app != nil {
		return s.app.Stop(30 * time.Second)
	}
	return nil
}

// WaitForServerReady waits until the sync loop is running
func (s *ServerTestHelper) WaitForServerReady(timeout time.Duration) {
	gomega.Eventually(func() error {
		resp, err := s.httpClient.Get(s.baseURL + "/readiness")
		if err != nil {
			return err
		}
		defer func() {
			_ = resp.Body.Close()
		}()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("server returned status %d", resp.StatusCode)
		}
		return nil
	}, timeout, 100*time.Millisecond).Should(gomega.Succeed(), "Server should be ready")
}

// GetMetrics returns the metrics snapshot served on /v1/metrics
func (s *ServerTestHelper) GetMetrics() (metrics.Snapshot, error) {
	var snapshot metrics.Snapshot
	err := s.getJSON("/v1/metrics", &snapshot)
	return snapshot, err
}

// GetStatus returns the latest pass status served on /v1/status
func (s *ServerTestHelper) GetStatus() (*status.PassStatus, error) {
	var passStatus status.PassStatus
	if err := s.getJSON("/v1/status", &passStatus); err != nil {
		return nil, err
	}
	return &passStatus, nil
}

// WaitForPasses waits until at least n passes have finished
func (s *ServerTestHelper) WaitForPasses(n int64, timeout time.Duration) {
	gomega.Eventually(func() (int64, error) {
		snapshot, err := s.GetMetrics()
		return snapshot.Passes, err
	}, timeout, 100*time.Millisecond).Should(gomega.BeNumerically(">=", n))
}

// GetBaseURL returns the base URL of the server
func (s *ServerTestHelper) GetBaseURL() string {
	return s.baseURL
}

func (s *ServerTestHelper) getJSON(path string, target any) error {
	resp, err := s.httpClient.Get(s.baseURL + path)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s returned status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(target)
}
