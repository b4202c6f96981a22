package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"time"

	"sitehealth/internal/clock"
)

var errInvalidRequest = errors.New("invalid request")

// Result contains the HTTP response data.
// Elapsed covers the request and the full body read.
type Result struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Elapsed    time.Duration
}

// OK reports whether the response status is exactly 200.
func (r Result) OK() bool {
	return r.StatusCode == http.StatusOK
}

// FirstByte describes a request whose body was never read.
type FirstByte struct {
	StatusCode int
	Elapsed    time.Duration
}

// Fetcher performs single-attempt HTTP GET requests.
type Fetcher struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	clock     clock.Timer
}

// New creates a Fetcher with the provided configuration.
func New(client *http.Client, timeout time.Duration, userAgent string, timer clock.Timer) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}

	return &Fetcher{
		client:    client,
		timeout:   timeout,
		userAgent: userAgent,
		clock:     clock.OrDefault(timer),
	}
}

// Fetch performs one GET request and reads the whole body.
// Any status code is returned without error; only transport failures are errors.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Result, error) {
	requestCtx, cancel := f.withTimeout(ctx)
	defer cancel()

	request, err := f.newRequest(requestCtx, rawURL)
	if err != nil {
		return Result{}, err
	}

	start := f.clock.Now()

	response, err := f.client.Do(request)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		_ = response.Body.Close()
	}()

	body, err := io.ReadAll(response.Body)
	elapsed := clock.Since(f.clock, start)
	if err != nil {
		return Result{StatusCode: response.StatusCode, Header: response.Header, Elapsed: elapsed}, fmt.Errorf("read body: %w", err)
	}

	return Result{
		StatusCode: response.StatusCode,
		Header:     response.Header,
		Body:       body,
		Elapsed:    elapsed,
	}, nil
}

// FirstByte sends one GET request and measures the time until the first
// response byte arrives. The body is closed unread.
func (f *Fetcher) FirstByte(ctx context.Context, rawURL string) (FirstByte, error) {
	requestCtx, cancel := f.withTimeout(ctx)
	defer cancel()

	var firstByteAt time.Time
	trace := &httptrace.ClientTrace{
		GotFirstResponseByte: func() {
			firstByteAt = f.clock.Now()
		},
	}

	request, err := f.newRequest(httptrace.WithClientTrace(requestCtx, trace), rawURL)
	if err != nil {
		return FirstByte{}, err
	}

	start := f.clock.Now()

	response, err := f.client.Do(request)
	if err != nil {
		return FirstByte{}, err
	}
	_ = response.Body.Close()

	// Transports that bypass the network never fire the trace hook; headers
	// being available is the closest observable point then.
	if firstByteAt.IsZero() {
		firstByteAt = f.clock.Now()
	}

	return FirstByte{
		StatusCode: response.StatusCode,
		Elapsed:    firstByteAt.Sub(start),
	}, nil
}

func (f *Fetcher) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.timeout > 0 {
		return context.WithTimeout(ctx, f.timeout)
	}

	return context.WithCancel(ctx)
}

func (f *Fetcher) newRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidRequest, err)
	}

	if parsedURL.Path == "" {
		parsedURL.Path = "/"
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, parsedURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidRequest, err)
	}

	if f.userAgent != "" {
		request.Header.Set("User-Agent", f.userAgent)
	}

	return request, nil
}

// IsInvalidRequest reports whether err was caused by a URL that could not
// be turned into a request.
func IsInvalidRequest(err error) bool {
	return errors.Is(err, errInvalidRequest)
}
