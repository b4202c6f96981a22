package health_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sitehealth/health"
)

func TestGoldenReport(t *testing.T) {
	t.Parallel()

	opts := health.Options{
		URL:        fixtureBaseURL,
		HTTPClient: newFixtureClient(t),
		Timeout:    time.Second,
		UserAgent:  "test-agent",
		Pinger:     fixedPinger(12500 * time.Microsecond),
		Resolver:   fixedResolver{},
		PageSpeed: fixedInsights{
			PerformanceScore:       87,
			FirstContentfulPaint:   "1.2 s",
			LargestContentfulPaint: "2.5 s",
			CumulativeLayoutShift:  "0.01",
		},
		Clock:      health.NewStepClock(500 * time.Millisecond),
		IndentJSON: true,
	}

	got, err := health.Analyze(context.Background(), opts)
	require.NoError(t, err)

	want := readFixture(t, "golden", "report.json")
	require.Equal(t, string(want), string(got), "JSON must match golden exactly, including key order and trailing newline")
}

func TestAnalyze_ErrorStillReturnsJSON(t *testing.T) {
	t.Parallel()

	got, err := health.Analyze(context.Background(), health.Options{URL: fixtureBaseURL})
	require.Error(t, err)
	require.JSONEq(t, `{
		"seo_score": 0,
		"ping": null,
		"dns_response_time": null,
		"https_enabled": false,
		"ttfb": null,
		"accessibility_score": null,
		"pagespeed_insights": null
	}`, string(got))
}

func TestReportUnavailable(t *testing.T) {
	t.Parallel()

	score := 50.0
	title := "Example"

	report := health.Report{AccessibilityScore: &score, Title: &title}
	require.Equal(t, []string{"ping", "dns_response_time", "ttfb", "pagespeed_insights"}, report.Unavailable())

	require.Equal(t, []string{"ping", "dns_response_time", "ttfb", "accessibility_score", "pagespeed_insights", "title"},
		health.Report{}.Unavailable())
}
