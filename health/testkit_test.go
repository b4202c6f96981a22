package health_test

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sitehealth/internal/pagespeed"
)

const fixtureBaseURL = "https://example.com"

type roundTripFunc func(*http.Request) (*http.Response, error)

func (fn roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return fn(req) }

func readFixture(t *testing.T, parts ...string) []byte {
	t.Helper()

	path := filepath.Join(append([]string{"..", "testdata"}, parts...)...)
	b, err := os.ReadFile(path)
	require.NoError(t, err, "failed to read fixture: %s", path)

	return b
}

func newFixtureClient(t *testing.T) *http.Client {
	t.Helper()

	rootHTML := readFixture(t, "pages", "root.html")

	return &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			switch req.URL.Path {
			case "", "/":
				return responseWithBody(http.StatusOK, rootHTML), nil
			default:
				return responseWithBody(http.StatusNotFound, []byte("not found")), nil
			}
		}),
	}
}

func responseWithBody(status int, body []byte) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"text/html"}},
		Body:       io.NopCloser(bytes.NewReader(body)),
	}
}

type fixedPinger time.Duration

func (p fixedPinger) Ping(context.Context, string) (time.Duration, error) {
	return time.Duration(p), nil
}

type fixedResolver struct{}

func (fixedResolver) LookupA(context.Context, string) ([]net.IP, error) {
	return []net.IP{net.IPv4(93, 184, 216, 34)}, nil
}

type fixedInsights pagespeed.Insights

func (f fixedInsights) Run(context.Context, string) (pagespeed.Insights, error) {
	return pagespeed.Insights(f), nil
}
