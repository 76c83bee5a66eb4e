package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// isRemote reports whether location is an http(s) URL rather than a path.
func isRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// openLocation opens a local file or issues a GET for a remote URL.
// The caller must close the returned reader.
func openLocation(ctx context.Context, client *http.Client, location string) (io.ReadCloser, error) {
	if !isRemote(location) {
		f, err := os.Open(location)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", location, err)
		}
		return f, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", location, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", location, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("failed to fetch %s: HTTP %d", location, resp.StatusCode)
	}
	return resp.Body, nil
}
