package health

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sitehealth/internal/pagespeed"
)

const fixtureURL = "https://example.com"

type roundTripFunc func(*http.Request) (*http.Response, error)

func (fn roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return fn(req) }

type pingerFunc func(ctx context.Context, host string) (time.Duration, error)

func (fn pingerFunc) Ping(ctx context.Context, host string) (time.Duration, error) {
	return fn(ctx, host)
}

type resolverFunc func(ctx context.Context, host string) ([]net.IP, error)

func (fn resolverFunc) LookupA(ctx context.Context, host string) ([]net.IP, error) {
	return fn(ctx, host)
}

type insightsFunc func(ctx context.Context, target string) (pagespeed.Insights, error)

func (fn insightsFunc) Run(ctx context.Context, target string) (pagespeed.Insights, error) {
	return fn(ctx, target)
}

// stepClock advances by step on every Now call.
type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewStepClock lets the external test package share the same clock.
var NewStepClock = newStepClock

func newStepClock(step time.Duration) *stepClock {
	return &stepClock{now: time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC), step: step}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.now
	c.now = c.now.Add(c.step)

	return current
}

// countingClient serves body with status for every request and counts requests.
type countingClient struct {
	mu     sync.Mutex
	calls  int
	status int
	body   []byte
	err    error
}

func (c *countingClient) client() *http.Client {
	return &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			c.mu.Lock()
			c.calls++
			c.mu.Unlock()

			if c.err != nil {
				return nil, c.err
			}

			return responseWithBody(c.status, c.body), nil
		}),
	}
}

func (c *countingClient) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.calls
}

func responseWithBody(status int, body []byte) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"text/html"}},
		Body:       io.NopCloser(bytes.NewReader(body)),
	}
}

func readFixture(t *testing.T, parts ...string) []byte {
	t.Helper()

	path := filepath.Join(append([]string{"..", "testdata"}, parts...)...)
	b, err := os.ReadFile(path)
	require.NoError(t, err, "failed to read fixture: %s", path)

	return b
}

func unusedResolver(t *testing.T) Resolver {
	return resolverFunc(func(context.Context, string) ([]net.IP, error) {
		t.Errorf("resolver must not be called")
		return nil, nil
	})
}
