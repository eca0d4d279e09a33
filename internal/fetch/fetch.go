package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"trackline/internal/config"
	"trackline/internal/services"
)

// DefaultTimeout bounds a whole download, including reading the body.
const DefaultTimeout = 60 * time.Second

// Asset is a downloaded resource held in memory.
type Asset struct {
	Body        []byte
	ContentType string
	URL         string
}

// Fetcher downloads a remote resource. Implementations do not retry.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Asset, error)
}

// DownloadError reports a non-success HTTP status or a transport failure.
// StatusCode is zero when no response was received.
type DownloadError struct {
	StatusCode int
	URL        string
	Err        error
}

func (e *DownloadError) Error() string {
	if e.StatusCode == http.StatusNotFound || e.StatusCode == http.StatusGone {
		return fmt.Sprintf("download %s: not found (HTTP %d)", e.URL, e.StatusCode)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("download %s: HTTP %d", e.URL, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("download %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("download %s failed", e.URL)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// Is maps the failure onto the services markers: 404/410 are permanent,
// timeouts and everything else are transient.
func (e *DownloadError) Is(target error) bool {
	switch target {
	case services.ErrNotFound:
		return e.StatusCode == http.StatusNotFound || e.StatusCode == http.StatusGone
	case services.ErrTimeout:
		return isTimeout(e.Err)
	case services.ErrTransient:
		return e.StatusCode != http.StatusNotFound && e.StatusCode != http.StatusGone && !isTimeout(e.Err)
	}
	return false
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// HTTPFetcher downloads assets with a fixed client timeout.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
}

// Option customizes an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(f *HTTPFetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *HTTPFetcher) {
		f.userAgent = strings.TrimSpace(ua)
	}
}

// WithMaxBytes rejects bodies larger than n bytes. Zero disables the limit.
func WithMaxBytes(n int64) Option {
	return func(f *HTTPFetcher) {
		f.maxBytes = n
	}
}

// New constructs an HTTPFetcher with the given client timeout.
func New(timeout time.Duration, opts ...Option) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	f := &HTTPFetcher{client: &http.Client{Timeout: timeout}}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewFromConfig builds a fetcher from the [fetch] section.
func NewFromConfig(cfg *config.Config) *HTTPFetcher {
	return New(cfg.FetchTimeout(),
		WithUserAgent(cfg.Fetch.UserAgent),
		WithMaxBytes(cfg.Fetch.MaxBytes),
	)
}

// Fetch downloads url in a single attempt.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Asset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &DownloadError{URL: url, Err: err}
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &DownloadError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &DownloadError{StatusCode: resp.StatusCode, URL: url}
	}

	var reader io.Reader = resp.Body
	if f.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, &DownloadError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}
	if f.maxBytes > 0 && int64(len(body)) > f.maxBytes {
		return nil, &DownloadError{URL: url, Err: fmt.Errorf("body exceeds %d bytes", f.maxBytes)}
	}
	if len(body) == 0 {
		return nil, &DownloadError{URL: url, Err: errors.New("empty body")}
	}

	return &Asset{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		URL:         url,
	}, nil
}
