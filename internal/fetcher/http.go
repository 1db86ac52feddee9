package fetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/salary-cli/internal/resilience"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent string
	Timeout   time.Duration
	Retries   int           // retries after the first attempt
	Backoff   time.Duration // fixed wait between attempts
}

// HTTPFetcher implements Fetcher using net/http with bounded, fixed-backoff retries.
// It never logs; callers decide what a failure means.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "salary-cli/1.0 (public salary disclosure indexer)"
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts: opts,
	}
}

// FetchText fetches the URL and returns the response body as text.
func (f *HTTPFetcher) FetchText(ctx context.Context, rawURL string) (string, error) {
	return withRetry(ctx, f, rawURL, func(body io.Reader) (string, error) {
		data, err := io.ReadAll(body)
		if err != nil {
			return "", eris.Wrap(err, "read body")
		}
		return string(data), nil
	})
}

// DownloadToFile fetches the URL and writes it to the given path.
func (f *HTTPFetcher) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	return withRetry(ctx, f, rawURL, func(body io.Reader) (int64, error) {
		file, err := os.Create(path)
		if err != nil {
			return 0, eris.Wrap(err, "create file")
		}
		defer file.Close() //nolint:errcheck

		n, err := io.Copy(file, body)
		if err != nil {
			return n, eris.Wrap(err, "write file")
		}
		return n, nil
	})
}

// withRetry runs one GET per attempt and hands a successful body to consume.
// A failed consume (e.g. a truncated body) counts as a failed attempt.
func withRetry[T any](ctx context.Context, f *HTTPFetcher, rawURL string, consume func(io.Reader) (T, error)) (T, error) {
	attempts := 0
	val, err := resilience.DoVal(ctx, resilience.Fixed(f.opts.Retries, f.opts.Backoff), func(ctx context.Context) (T, error) {
		attempts++
		var zero T
		resp, err := f.get(ctx, rawURL)
		if err != nil {
			return zero, err
		}
		defer resp.Body.Close() //nolint:errcheck
		return consume(resp.Body)
	})
	if err != nil {
		fe := &FetchError{URL: rawURL, Attempts: attempts, Err: err}
		var se *statusError
		if errors.As(err, &se) {
			fe.StatusCode = se.code
		}
		return val, fe
	}
	return val, nil
}

func (f *HTTPFetcher) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, &statusError{code: resp.StatusCode, url: rawURL}
	}
	return resp, nil
}
