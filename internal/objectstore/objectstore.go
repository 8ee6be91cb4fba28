// Package objectstore fetches GPX bytes by URL for the course cache. It
// delegates the transport to httputil.HTTPClient so the object-store
// collaborator (assumed to be S3 or similar, per the core's scope) can be
// swapped or mocked without touching the cache or parser.
package objectstore

import (
	"fmt"
	"io"
	"net/http"

	"github.com/racetrack/gpscore/internal/httputil"
)

// MaxGpxFileSize caps the bytes read from a single GPX download to guard
// against a misconfigured URL streaming an unbounded response.
const MaxGpxFileSize = 32 * 1024 * 1024 // 32MB

// Store fetches arbitrary objects (GPX files) by URL.
type Store struct {
	client httputil.HTTPClient
}

// New builds a Store using the given HTTP client, defaulting to a
// standard client when nil.
func New(client httputil.HTTPClient) *Store {
	if client == nil {
		client = httputil.NewStandardClient(nil)
	}
	return &Store{client: client}
}

// FetchBytes downloads the object at url and returns its full body,
// capped at MaxGpxFileSize.
func (s *Store) FetchBytes(url string) ([]byte, error) {
	resp, err := s.client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetching %q: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %q: unexpected status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxGpxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading body of %q: %w", url, err)
	}
	if len(data) > MaxGpxFileSize {
		return nil, fmt.Errorf("fetching %q: object exceeds %d bytes", url, MaxGpxFileSize)
	}

	return data, nil
}
