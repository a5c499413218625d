// Package artifact downloads side artifacts next to a mirror and replaces the
// previous copy atomically.
//
// A download is written gzip-compressed to "<final>.tmp". The temporary file is
// validated as JSON and renamed over the final path only when it is well
// formed, so readers either see the previous artifact or the new one.
package artifact

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/stacklok/repomirror/internal/httpclient"
)

// TempSuffix is appended to the final path to name the download in progress
const TempSuffix = ".tmp"

// Result describes a completed download
type Result struct {
	// Bytes is the number of decoded octets received
	Bytes int64
}

// Fetcher downloads JSON documents into gzip-compressed files
type Fetcher struct {
	client httpclient.Client
}

// NewFetcher creates a fetcher that downloads through client
func NewFetcher(client httpclient.Client) *Fetcher {
	return &Fetcher{client: client}
}

// Fetch downloads url into finalPath. On any failure the temporary file is
// removed and an existing file at finalPath is left untouched.
func (f *Fetcher) Fetch(ctx context.Context, url, finalPath string) (result Result, err error) {
	tmpPath := finalPath + TempSuffix
	defer func() {
		if err != nil {
			if rmErr := os.Remove(tmpPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				slog.WarnContext(ctx, "Failed to remove temporary artifact", "path", tmpPath, "error", rmErr)
			}
		}
	}()

	body, err := f.client.Open(ctx, url)
	if err != nil {
		return Result{}, fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer func() {
		_ = body.Close()
	}()

	n, err := writeGzip(tmpPath, body)
	if err != nil {
		return Result{}, err
	}
	slog.DebugContext(ctx, "Received artifact", "url", url, "bytes", n)

	if err := validateGzipFile(tmpPath); err != nil {
		return Result{}, err
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return Result{}, fmt.Errorf("failed to replace %s: %w", finalPath, err)
	}
	return Result{Bytes: n}, nil
}

func writeGzip(path string, r io.Reader) (int64, error) {
	// #nosec G304 - path is derived from the configured mirror directory
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}

	gz := gzip.NewWriter(file)
	n, copyErr := io.Copy(gz, r)
	gzErr := gz.Close()
	syncErr := file.Sync()
	closeErr := file.Close()

	switch {
	case copyErr != nil:
		return n, fmt.Errorf("failed to write temporary file: %w", copyErr)
	case gzErr != nil:
		return n, fmt.Errorf("failed to finish compression: %w", gzErr)
	case syncErr != nil:
		return n, fmt.Errorf("failed to sync temporary file: %w", syncErr)
	case closeErr != nil:
		return n, fmt.Errorf("failed to close temporary file: %w", closeErr)
	}
	return n, nil
}

func validateGzipFile(path string) error {
	// #nosec G304 - path is derived from the configured mirror directory
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to reopen temporary file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("failed to read temporary file: %w", err)
	}
	defer func() {
		_ = gz.Close()
	}()

	if err := ValidateJSON(gz); err != nil {
		return fmt.Errorf("downloaded artifact is not valid JSON: %w", err)
	}
	return nil
}

// ValidateJSON consumes r as a single JSON value and fails on malformed or
// truncated input, or on anything but whitespace after the value
func ValidateJSON(r io.Reader) error {
	dec := json.NewDecoder(r)
	depth := 0
	values := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if depth == 0 {
			values++
			if values > 1 {
				return fmt.Errorf("unexpected data after top-level value at offset %d", dec.InputOffset())
			}
		}
		if delim, ok := tok.(json.Delim); ok {
			switch delim {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	if values == 0 {
		return errors.New("empty document")
	}
	if depth != 0 {
		return io.ErrUnexpectedEOF
	}
	return nil
}
