package pagespeed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

const lighthouseBody = `{
  "lighthouseResult": {
    "categories": {"performance": {"score": 0.87}},
    "audits": {
      "first-contentful-paint": {"displayValue": "1.2 s"},
      "largest-contentful-paint": {"displayValue": "2.5 s"},
      "cumulative-layout-shift": {"displayValue": "0.01"}
    }
  }
}`

func newAPIServer(t *testing.T, status int, body string, seen *http.Request) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			*seen = *r.Clone(context.Background())
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	return server
}

func TestRunExtractsInsights(t *testing.T) {
	t.Parallel()

	var seen http.Request
	server := newAPIServer(t, http.StatusOK, lighthouseBody, &seen)

	client := New(server.Client(), server.URL+"/runPagespeed", "secret")

	insights, err := client.Run(context.Background(), "https://example.com/?a=1&b=2")
	require.NoError(t, err)
	require.InDelta(t, 87.0, insights.PerformanceScore, 1e-9)
	require.Equal(t, "1.2 s", insights.FirstContentfulPaint)
	require.Equal(t, "2.5 s", insights.LargestContentfulPaint)
	require.Equal(t, "0.01", insights.CumulativeLayoutShift)

	require.Equal(t, "/runPagespeed", seen.URL.Path)
	require.Equal(t, "https://example.com/?a=1&b=2", seen.URL.Query().Get("url"))
	require.Equal(t, "secret", seen.URL.Query().Get("key"))
}

func TestRunWithoutKeyOmitsParameter(t *testing.T) {
	t.Parallel()

	var seen http.Request
	server := newAPIServer(t, http.StatusOK, lighthouseBody, &seen)

	_, err := New(server.Client(), server.URL, "").Run(context.Background(), "https://example.com")
	require.NoError(t, err)
	require.False(t, seen.URL.Query().Has("key"))
}

func TestRunErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   `{"error": {"code": 500, "message": "backend"}}`,
			check: func(t *testing.T, err error) {
				var statusErr *StatusError
				require.ErrorAs(t, err, &statusErr)
				require.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
				require.Contains(t, statusErr.Body, "backend")
			},
		},
		{
			name:   "missing lighthouse result",
			status: http.StatusOK,
			body:   `{"id": "x"}`,
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ErrMalformedResponse)
				require.Contains(t, err.Error(), "lighthouseResult")
			},
		},
		{
			name:   "missing audit",
			status: http.StatusOK,
			body:   `{"lighthouseResult": {"categories": {"performance": {"score": 0.5}}, "audits": {}}}`,
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ErrMalformedResponse)
				require.Contains(t, err.Error(), "first-contentful-paint")
			},
		},
		{
			name:   "null score",
			status: http.StatusOK,
			body:   `{"lighthouseResult": {"categories": {"performance": {"score": null}}}}`,
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ErrMalformedResponse)
			},
		},
		{
			name:   "invalid json",
			status: http.StatusOK,
			body:   `not json`,
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ErrMalformedResponse)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := newAPIServer(t, tt.status, tt.body, nil)

			_, err := New(server.Client(), server.URL, "k").Run(context.Background(), "https://example.com")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestRunTransportError(t *testing.T) {
	t.Parallel()

	boom := errors.New("dial failed")
	client := &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, boom
	})}

	_, err := New(client, "", "k").Run(context.Background(), "https://example.com")
	require.ErrorIs(t, err, boom)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (fn roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return fn(req)
}
