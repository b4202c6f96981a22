package health

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"sitehealth/internal/clock"
	"sitehealth/internal/pagespeed"
)

// Pinger measures ICMP round trips to a host.
type Pinger interface {
	Ping(ctx context.Context, host string) (time.Duration, error)
}

// Resolver performs A-record lookups.
type Resolver interface {
	LookupA(ctx context.Context, host string) ([]net.IP, error)
}

// InsightsProvider runs a third-party page-speed analysis.
type InsightsProvider interface {
	Run(ctx context.Context, target string) (pagespeed.Insights, error)
}

// Options configures one analysis.
// Pinger, Resolver and PageSpeed are optional; a nil collaborator leaves its
// metric null. ReusePageFetch fetches the page once per analysis instead of
// once per metric. IndentJSON affects formatting only.
type Options struct {
	URL            string
	HTTPClient     *http.Client
	Timeout        time.Duration
	UserAgent      string
	ReusePageFetch bool
	SEOWeights     SEOWeights
	Pinger         Pinger
	Resolver       Resolver
	PageSpeed      InsightsProvider
	Clock          clock.Timer
	Logger         logrus.FieldLogger
	IndentJSON     bool
}

// Report is the aggregate analysis result.
// Nil pointers encode unavailable metrics as JSON null. Title and
// MetaDescription are omitted when the page could not be fetched.
type Report struct {
	SEOScore           float64            `json:"seo_score"`
	Ping               *float64           `json:"ping"`
	DNSResponseTime    *float64           `json:"dns_response_time"`
	HTTPSEnabled       bool               `json:"https_enabled"`
	TTFB               *float64           `json:"ttfb"`
	AccessibilityScore *float64           `json:"accessibility_score"`
	PageSpeedInsights  *PageSpeedInsights `json:"pagespeed_insights"`
	Title              *string            `json:"title,omitempty"`
	MetaDescription    *string            `json:"meta_description,omitempty"`
}

// PageSpeedInsights holds the Lighthouse figures reported by the page-speed API.
type PageSpeedInsights struct {
	PerformanceScore       float64 `json:"Performance Score"`
	FirstContentfulPaint   string  `json:"First Contentful Paint"`
	LargestContentfulPaint string  `json:"Largest Contentful Paint"`
	CumulativeLayoutShift  string  `json:"Cumulative Layout Shift"`
}

// Unavailable lists the JSON names of the metrics that came back null.
func (r Report) Unavailable() []string {
	missing := []string{}

	if r.Ping == nil {
		missing = append(missing, "ping")
	}
	if r.DNSResponseTime == nil {
		missing = append(missing, "dns_response_time")
	}
	if r.TTFB == nil {
		missing = append(missing, "ttfb")
	}
	if r.AccessibilityScore == nil {
		missing = append(missing, "accessibility_score")
	}
	if r.PageSpeedInsights == nil {
		missing = append(missing, "pagespeed_insights")
	}
	if r.Title == nil {
		missing = append(missing, "title")
	}

	return missing
}
