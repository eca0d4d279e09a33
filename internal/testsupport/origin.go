package testsupport

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

// Origin is a fake asset host that serves fixed bodies and counts requests per path.
type Origin struct {
	*httptest.Server

	mu       sync.Mutex
	bodies   map[string][]byte
	statuses map[string]int
	hits     map[string]int
}

// NewOrigin starts an origin server and closes it when the test ends.
func NewOrigin(t testing.TB) *Origin {
	t.Helper()

	o := &Origin{
		bodies:   make(map[string][]byte),
		statuses: make(map[string]int),
		hits:     make(map[string]int),
	}
	o.Server = httptest.NewServer(http.HandlerFunc(o.serve))
	t.Cleanup(o.Close)
	return o
}

// Serve registers body for path (for example "/a.mp3").
func (o *Origin) Serve(path string, body []byte) string {
	o.mu.Lock()
	o.bodies[path] = body
	o.mu.Unlock()
	return o.URL + path
}

// Fail makes path answer with status.
func (o *Origin) Fail(path string, status int) string {
	o.mu.Lock()
	o.statuses[path] = status
	o.mu.Unlock()
	return o.URL + path
}

// Client returns an HTTP client that routes every request to the origin,
// whatever scheme and host the URL names, so tests can use realistic CDN URLs.
func (o *Origin) Client() *http.Client {
	target, _ := url.Parse(o.URL)
	base := o.Server.Client().Transport
	return &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		clone := r.Clone(r.Context())
		clone.URL.Scheme = target.Scheme
		clone.URL.Host = target.Host
		clone.Host = target.Host
		return base.RoundTrip(clone)
	})}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// Hits returns how many requests path received.
func (o *Origin) Hits(path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.hits[path]
}

// TotalHits returns the number of requests across all paths.
func (o *Origin) TotalHits() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	total := 0
	for _, n := range o.hits {
		total += n
	}
	return total
}

func (o *Origin) serve(w http.ResponseWriter, r *http.Request) {
	o.mu.Lock()
	o.hits[r.URL.Path]++
	status, failed := o.statuses[r.URL.Path]
	body, ok := o.bodies[r.URL.Path]
	o.mu.Unlock()

	if failed {
		http.Error(w, http.StatusText(status), status)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write(body)
}
