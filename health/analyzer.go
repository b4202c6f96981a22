package health

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sitehealth/internal/cache"
	"sitehealth/internal/clock"
	"sitehealth/internal/fetcher"
	"sitehealth/internal/pagespeed"
	"sitehealth/internal/parser"
	"sitehealth/internal/urlutil"
)

const (
	titleFallback       = "Title not found"
	descriptionFallback = "Meta description not found"
)

var tracer = otel.Tracer("sitehealth/health")

type analyzer struct {
	url       string
	fetch     *fetcher.Fetcher
	pages     *cache.Memo[fetcher.Result]
	weights   SEOWeights
	pinger    Pinger
	resolver  Resolver
	pageSpeed InsightsProvider
	clock     clock.Timer
	logger    logrus.FieldLogger
}

func (a *analyzer) run(ctx context.Context) Report {
	report := Report{}

	a.step(ctx, "seo_score", func(ctx context.Context) {
		report.SEOScore = a.seoScore(ctx)
	})
	a.step(ctx, "ping", func(ctx context.Context) {
		report.Ping = a.ping(ctx)
	})
	a.step(ctx, "dns_response_time", func(ctx context.Context) {
		report.DNSResponseTime = a.dnsResponseTime(ctx)
	})
	a.step(ctx, "https_enabled", func(context.Context) {
		report.HTTPSEnabled = urlutil.IsHTTPS(a.url)
	})
	a.step(ctx, "ttfb", func(ctx context.Context) {
		report.TTFB = a.ttfb(ctx)
	})
	a.step(ctx, "accessibility_score", func(ctx context.Context) {
		report.AccessibilityScore = a.accessibility(ctx)
	})
	a.step(ctx, "pagespeed_insights", func(ctx context.Context) {
		report.PageSpeedInsights = a.pageSpeedInsights(ctx)
	})
	a.step(ctx, "website_data", func(ctx context.Context) {
		report.Title, report.MetaDescription = a.websiteData(ctx)
	})

	return report
}

// step runs one metric inside its own span.
func (a *analyzer) step(ctx context.Context, name string, measure func(context.Context)) {
	ctx, span := tracer.Start(ctx, "metric."+name)
	defer span.End()

	span.SetAttributes(attribute.String("url", a.url))

	start := a.clock.Now()
	measure(ctx)

	a.logger.WithFields(logrus.Fields{
		"metric":  name,
		"elapsed": clock.Since(a.clock, start).String(),
	}).Debug("metric done")
}

// fetchPage returns the target page, fetched once per analysis when page reuse is on.
func (a *analyzer) fetchPage(ctx context.Context) (fetcher.Result, error) {
	return a.pages.Do(a.url, func() (fetcher.Result, error) {
		return a.fetch.Fetch(ctx, a.url)
	})
}

// parsedPage fetches and parses the page. ok is false on transport or parse
// failure; requireOK additionally rejects any status other than 200.
func (a *analyzer) parsedPage(ctx context.Context, metric string, requireOK bool) (parser.ParseResult, bool) {
	result, err := a.fetchPage(ctx)
	if err != nil {
		a.unavailable(ctx, metric, err)
		return parser.ParseResult{}, false
	}

	if requireOK && !result.OK() {
		a.logger.WithFields(logrus.Fields{"metric": metric, "status": result.StatusCode}).Debug("unexpected status")
		return parser.ParseResult{}, false
	}

	parsed, err := parser.ParseHTML(result.Body)
	if err != nil {
		a.unavailable(ctx, metric, err)
		return parser.ParseResult{}, false
	}

	return parsed, true
}

func (a *analyzer) unavailable(ctx context.Context, metric string, err error) {
	a.logger.WithField("metric", metric).WithError(err).Debug("metric unavailable")
	recordError(ctx, err)
}

func (a *analyzer) loadTime(ctx context.Context) *float64 {
	result, err := a.fetchPage(ctx)
	if err != nil {
		a.unavailable(ctx, "load_time", err)
		return nil
	}

	if !result.OK() {
		return nil
	}

	return seconds(result.Elapsed)
}

func (a *analyzer) metaData(ctx context.Context) (string, string) {
	parsed, ok := a.parsedPage(ctx, "meta_tags", false)
	if !ok {
		return "", ""
	}

	return parsed.SEO.Title, parsed.SEO.Description
}

func (a *analyzer) imageOptimization(ctx context.Context) float64 {
	parsed, ok := a.parsedPage(ctx, "image_optimization", false)
	if !ok {
		return 0
	}

	return imageRatio(parsed.Images)
}

func (a *analyzer) seoScore(ctx context.Context) float64 {
	loadTime := a.loadTime(ctx)
	httpsEnabled := urlutil.IsHTTPS(a.url)
	title, description := a.metaData(ctx)
	images := a.imageOptimization(ctx)

	return ComputeSEOScore(SEOComponents{
		LoadTime:          loadTimeScore(loadTime),
		HTTPS:             boolScore(httpsEnabled),
		MetaTags:          boolScore(title != "" && description != ""),
		ImageOptimization: images,
		MobileFriendly:    MobileFriendlyScore,
	}, a.weights)
}

// ping reports the echo round trip in milliseconds.
func (a *analyzer) ping(ctx context.Context) *float64 {
	host := urlutil.Hostname(a.url)
	if host == "" || a.pinger == nil {
		return nil
	}

	rtt, err := a.pinger.Ping(ctx, host)
	if err != nil {
		a.unavailable(ctx, "ping", err)
		return nil
	}

	ms := float64(rtt) / float64(time.Millisecond)

	return &ms
}

func (a *analyzer) dnsResponseTime(ctx context.Context) *float64 {
	host := urlutil.Hostname(a.url)
	if host == "" || a.resolver == nil {
		return nil
	}

	start := a.clock.Now()
	if _, err := a.resolver.LookupA(ctx, host); err != nil {
		a.unavailable(ctx, "dns_response_time", err)
		return nil
	}

	return seconds(clock.Since(a.clock, start))
}

func (a *analyzer) ttfb(ctx context.Context) *float64 {
	result, err := a.fetch.FirstByte(ctx, a.url)
	if err != nil {
		a.unavailable(ctx, "ttfb", err)
		return nil
	}

	if result.StatusCode != http.StatusOK {
		return nil
	}

	return seconds(result.Elapsed)
}

func (a *analyzer) accessibility(ctx context.Context) *float64 {
	parsed, ok := a.parsedPage(ctx, "accessibility_score", true)
	if !ok {
		return nil
	}

	score := accessibilityScore(parsed.Accessibility)

	return &score
}

func (a *analyzer) pageSpeedInsights(ctx context.Context) *PageSpeedInsights {
	if a.pageSpeed == nil {
		return nil
	}

	insights, err := a.pageSpeed.Run(ctx, a.url)
	if err != nil {
		entry := a.logger.WithField("metric", "pagespeed_insights").WithError(err)

		var statusErr *pagespeed.StatusError
		if errors.As(err, &statusErr) {
			entry = entry.WithFields(logrus.Fields{"status": statusErr.StatusCode, "body": statusErr.Body})
		}

		entry.Warn("pagespeed insights unavailable")
		recordError(ctx, err)

		return nil
	}

	return &PageSpeedInsights{
		PerformanceScore:       insights.PerformanceScore,
		FirstContentfulPaint:   insights.FirstContentfulPaint,
		LargestContentfulPaint: insights.LargestContentfulPaint,
		CumulativeLayoutShift:  insights.CumulativeLayoutShift,
	}
}

// websiteData returns nil for both values when the page cannot be fetched,
// and fallbacks when the elements are missing.
func (a *analyzer) websiteData(ctx context.Context) (*string, *string) {
	parsed, ok := a.parsedPage(ctx, "website_data", false)
	if !ok {
		return nil, nil
	}

	title := titleFallback
	if parsed.SEO.HasTitle {
		title = parsed.SEO.Title
	}

	description := descriptionFallback
	if parsed.SEO.HasDescription {
		description = parsed.SEO.Description
	}

	return &title, &description
}

func recordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
