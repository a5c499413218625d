package artifact

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/repomirror/internal/httpclient"
)

func readGzip(t *testing.T, path string) string {
	t.Helper()

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	gz, err := gzip.NewReader(file)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	return string(data)
}

func serve(t *testing.T, status int, body string) string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestValidateJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "empty array", input: "[]"},
		{name: "nested objects", input: `[{"number": 1, "labels": [{"name": "bug"}]}]`},
		{name: "scalar", input: `"text"`},
		{name: "trailing whitespace", input: "{}\n\n"},
		{name: "empty document", input: "", wantErr: true},
		{name: "truncated array", input: `[{"number": 1},`, wantErr: true},
		{name: "truncated object", input: `{"a": [1, 2`, wantErr: true},
		{name: "malformed", input: `{"a" 1}`, wantErr: true},
		{name: "trailing garbage", input: `[] x`, wantErr: true},
		{name: "two values", input: `[] []`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateJSON(strings.NewReader(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestFetch_WritesCompressedArtifact(t *testing.T) {
	t.Parallel()

	body := `[{"number": 7, "title": "Mirror me"}]`
	url := serve(t, http.StatusOK, body)
	final := filepath.Join(t.TempDir(), "repo.git.issues.json.gz")

	result, err := NewFetcher(httpclient.NewDefaultClient()).Fetch(context.Background(), url, final)
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), result.Bytes)
	assert.Equal(t, body, readGzip(t, final))

	_, err = os.Stat(final + TempSuffix)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFetch_ReplacesPreviousArtifact(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	final := filepath.Join(dir, "repo.git.issues.json.gz")
	fetcher := NewFetcher(httpclient.NewDefaultClient())

	_, err := fetcher.Fetch(context.Background(), serve(t, http.StatusOK, `[1]`), final)
	require.NoError(t, err)
	_, err = fetcher.Fetch(context.Background(), serve(t, http.StatusOK, `[1, 2]`), final)
	require.NoError(t, err)

	assert.Equal(t, `[1, 2]`, readGzip(t, final))
}

func TestFetch_PreservesPreviousArtifactOnFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "malformed JSON", status: http.StatusOK, body: `[{"number": 1`, wantErr: "not valid JSON"},
		{name: "empty body", status: http.StatusOK, body: "", wantErr: "not valid JSON"},
		{name: "server error", status: http.StatusInternalServerError, body: "oops", wantErr: "HTTP 500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			final := filepath.Join(dir, "repo.git.issues.json.gz")
			fetcher := NewFetcher(httpclient.NewDefaultClient())

			_, err := fetcher.Fetch(context.Background(), serve(t, http.StatusOK, `["previous"]`), final)
			require.NoError(t, err)

			_, err = fetcher.Fetch(context.Background(), serve(t, tt.status, tt.body), final)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			assert.Equal(t, `["previous"]`, readGzip(t, final))
			_, statErr := os.Stat(final + TempSuffix)
			assert.ErrorIs(t, statErr, os.ErrNotExist)
		})
	}
}

func TestFetch_MissingDirectory(t *testing.T) {
	t.Parallel()

	final := filepath.Join(t.TempDir(), "missing", "repo.git.issues.json.gz")
	_, err := NewFetcher(httpclient.NewDefaultClient()).Fetch(context.Background(), serve(t, http.StatusOK, "[]"), final)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create temporary file")
}
