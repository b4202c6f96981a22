// Package pagespeed talks to the Google PageSpeed Insights v5 API.
package pagespeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// DefaultEndpoint is the public runPagespeed endpoint.
const DefaultEndpoint = "https://www.googleapis.com/pagespeedonline/v5/runPagespeed"

const maxErrorBody = 2048

// Audit identifiers read from the Lighthouse result.
const (
	auditFirstContentfulPaint   = "first-contentful-paint"
	auditLargestContentfulPaint = "largest-contentful-paint"
	auditCumulativeLayoutShift  = "cumulative-layout-shift"
	categoryPerformance         = "performance"
)

// ErrMalformedResponse is returned when the body lacks the expected Lighthouse fields.
var ErrMalformedResponse = errors.New("pagespeed: malformed response")

// StatusError is returned for non-200 responses. Body holds the start of the error payload.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("pagespeed: api returned status code %d", e.StatusCode)
}

// Insights is the subset of a Lighthouse run reported to callers.
type Insights struct {
	PerformanceScore       float64
	FirstContentfulPaint   string
	LargestContentfulPaint string
	CumulativeLayoutShift  string
}

// Client calls the PageSpeed API with a fixed credential.
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
}

// New creates a Client. An empty endpoint uses DefaultEndpoint; an empty key
// sends keyless requests, which the API accepts with a low quota.
func New(httpClient *http.Client, endpoint, apiKey string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	return &Client{
		httpClient: httpClient,
		endpoint:   endpoint,
		apiKey:     apiKey,
	}
}

type runResponse struct {
	LighthouseResult *lighthouseResult `json:"lighthouseResult"`
}

type lighthouseResult struct {
	Categories map[string]category `json:"categories"`
	Audits     map[string]audit    `json:"audits"`
}

type category struct {
	Score *float64 `json:"score"`
}

type audit struct {
	DisplayValue *string `json:"displayValue"`
}

// Run analyzes target and returns its performance insights.
func (c *Client) Run(ctx context.Context, target string) (Insights, error) {
	requestURL, err := c.requestURL(target)
	if err != nil {
		return Insights{}, err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return Insights{}, fmt.Errorf("pagespeed: build request: %w", err)
	}
	request.Header.Set("Accept", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return Insights{}, fmt.Errorf("pagespeed: request failed: %w", err)
	}
	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBody))

		return Insights{}, &StatusError{
			StatusCode: response.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	var decoded runResponse
	if err := json.NewDecoder(response.Body).Decode(&decoded); err != nil {
		return Insights{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return extractInsights(decoded)
}

func (c *Client) requestURL(target string) (string, error) {
	endpoint, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("pagespeed: invalid endpoint %q: %w", c.endpoint, err)
	}

	query := endpoint.Query()
	query.Set("url", target)
	if c.apiKey != "" {
		query.Set("key", c.apiKey)
	}
	endpoint.RawQuery = query.Encode()

	return endpoint.String(), nil
}

func extractInsights(decoded runResponse) (Insights, error) {
	result := decoded.LighthouseResult
	if result == nil {
		return Insights{}, fmt.Errorf("%w: 'lighthouseResult' not found", ErrMalformedResponse)
	}

	performance, ok := result.Categories[categoryPerformance]
	if !ok || performance.Score == nil {
		return Insights{}, fmt.Errorf("%w: missing performance score", ErrMalformedResponse)
	}

	values := make(map[string]string, 3)
	for _, name := range []string{auditFirstContentfulPaint, auditLargestContentfulPaint, auditCumulativeLayoutShift} {
		entry, ok := result.Audits[name]
		if !ok || entry.DisplayValue == nil {
			return Insights{}, fmt.Errorf("%w: missing audit %q", ErrMalformedResponse, name)
		}
		values[name] = *entry.DisplayValue
	}

	return Insights{
		PerformanceScore:       *performance.Score * 100,
		FirstContentfulPaint:   values[auditFirstContentfulPaint],
		LargestContentfulPaint: values[auditLargestContentfulPaint],
		CumulativeLayoutShift:  values[auditCumulativeLayoutShift],
	}, nil
}
