// Package telemetry wires OpenTelemetry tracing and Sentry error reporting.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"sitehealth/internal/config"
)

const sentryFlushTimeout = 2 * time.Second

// Telemetry holds whatever was switched on and must be flushed on exit.
type Telemetry struct {
	provider *sdktrace.TracerProvider
	sentry   bool
	logger   logrus.FieldLogger
}

// Setup installs the global tracer provider when tracing is enabled and
// initializes Sentry when a DSN is configured. Everything disabled yields a
// Telemetry whose Shutdown is a no-op.
func Setup(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (*Telemetry, error) {
	t := &Telemetry{logger: logger}

	if cfg.Telemetry.TracingEnabled {
		provider, err := newTracerProvider(ctx, cfg.Telemetry)
		if err != nil {
			return nil, err
		}

		otel.SetTracerProvider(provider)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
		t.provider = provider

		logger.WithField("exporter", cfg.Telemetry.ExporterURL).Info("tracing enabled")
	}

	if cfg.Telemetry.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Telemetry.SentryDSN,
			Environment:      cfg.Environment,
			Debug:            cfg.Debug,
			AttachStacktrace: true,
		})
		if err != nil {
			return nil, fmt.Errorf("init sentry: %w", err)
		}
		t.sentry = true

		logger.Info("sentry enabled")
	}

	return t, nil
}

// SentryEnabled reports whether panics should be forwarded to Sentry.
func (t *Telemetry) SentryEnabled() bool {
	return t != nil && t.sentry
}

// TracingEnabled reports whether a tracer provider was installed.
func (t *Telemetry) TracingEnabled() bool {
	return t != nil && t.provider != nil
}

// Shutdown flushes pending spans and events.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}

	var errs []error

	if t.provider != nil {
		if err := t.provider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer provider: %w", err))
		}
	}

	if t.sentry && !sentry.Flush(sentryFlushTimeout) {
		t.logger.Warn("sentry flush timed out")
	}

	return errors.Join(errs...)
}

func newTracerProvider(ctx context.Context, opts config.TelemetryOptions) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracehttp.New(ctx, exporterOptions(opts.ExporterURL)...)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(attribute.String("service.name", opts.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	), nil
}

// exporterOptions accepts either a full URL or a bare host:port, which is
// treated as a plain-HTTP collector.
func exporterOptions(target string) []otlptracehttp.Option {
	if strings.Contains(target, "://") {
		return []otlptracehttp.Option{otlptracehttp.WithEndpointURL(target)}
	}

	return []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(target),
		otlptracehttp.WithInsecure(),
	}
}
