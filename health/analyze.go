// Package health measures how healthy a website looks from the outside:
// SEO signals, network latency, accessibility and third-party page-speed figures.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"sitehealth/internal/cache"
	"sitehealth/internal/clock"
	"sitehealth/internal/fetcher"
	"sitehealth/internal/logging"
)

const defaultUserAgent = "sitehealth/1.0"

// Analyze evaluates a website and returns the JSON report as bytes.
// IndentJSON affects formatting only, and the output always ends with a newline.
func Analyze(ctx context.Context, opts Options) ([]byte, error) {
	report, err := Evaluate(ctx, opts)

	return marshalReport(report, opts.IndentJSON), err
}

// Evaluate computes every metric for opts.URL in a fixed order.
// Surrounding whitespace in the URL is ignored.
// Metric failures never fail the analysis; they surface as null values.
func Evaluate(ctx context.Context, opts Options) (Report, error) {
	opts.URL = strings.TrimSpace(opts.URL)
	if opts.URL == "" {
		return Report{}, errors.New("url is required")
	}

	if opts.HTTPClient == nil {
		return Report{}, errors.New("http client is required")
	}

	analyzer := newAnalyzer(opts)

	return analyzer.run(ctx), nil
}

func newAnalyzer(opts Options) *analyzer {
	timer := clock.OrDefault(opts.Clock)

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	weights := opts.SEOWeights
	if weights == (SEOWeights{}) {
		weights = DefaultSEOWeights()
	}

	var logger logrus.FieldLogger = opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	var pages *cache.Memo[fetcher.Result]
	if opts.ReusePageFetch {
		pages = cache.New[fetcher.Result]()
	}

	return &analyzer{
		url:       opts.URL,
		fetch:     fetcher.New(opts.HTTPClient, opts.Timeout, userAgent, timer),
		pages:     pages,
		weights:   weights,
		pinger:    opts.Pinger,
		resolver:  opts.Resolver,
		pageSpeed: opts.PageSpeed,
		clock:     timer,
		logger:    logger.WithField("url", opts.URL),
	}
}

func marshalReport(report Report, indent bool) []byte {
	var (
		data []byte
		err  error
	)

	if indent {
		data, err = json.MarshalIndent(report, "", "  ")
	} else {
		data, err = json.Marshal(report)
	}

	if err != nil {
		data = []byte(`{"error":"failed to marshal report"}`)
	}

	return ensureNewline(data)
}

func ensureNewline(data []byte) []byte {
	if len(data) == 0 || data[len(data)-1] != '\n' {
		return append(data, '\n')
	}

	return data
}

func seconds(d time.Duration) *float64 {
	value := d.Seconds()

	return &value
}
