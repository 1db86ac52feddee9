// Package fetcher performs the outbound requests against the external salary sources.
package fetcher

import (
	"context"
	"fmt"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// FetchText fetches the URL and returns the response body as text.
	FetchText(ctx context.Context, url string) (string, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// FetchError is returned once every attempt for a URL has failed.
type FetchError struct {
	URL        string
	Attempts   int
	StatusCode int // last non-success status, 0 for transport errors
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: http %d after %d attempt(s)", e.URL, e.StatusCode, e.Attempts)
	}
	return fmt.Sprintf("fetch %s: %v after %d attempt(s)", e.URL, e.Err, e.Attempts)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// statusError marks a completed request with a non-success status.
type statusError struct {
	code int
	url  string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("http %d from %s", e.code, e.url)
}
