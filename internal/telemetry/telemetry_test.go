package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"sitehealth/internal/config"
	"sitehealth/internal/logging"
)

func TestSetupDisabled(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}

	tel, err := Setup(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	require.False(t, tel.TracingEnabled())
	require.False(t, tel.SentryEnabled())
	require.NoError(t, tel.Shutdown(context.Background()))
}

func TestNilTelemetry(t *testing.T) {
	t.Parallel()

	var tel *Telemetry
	require.False(t, tel.TracingEnabled())
	require.False(t, tel.SentryEnabled())
	require.NoError(t, tel.Shutdown(context.Background()))
}

func TestNewTracerProvider(t *testing.T) {
	t.Parallel()

	// the exporter connects lazily, so nothing has to listen here
	provider, err := newTracerProvider(context.Background(), config.TelemetryOptions{
		ExporterURL: "http://127.0.0.1:4318",
		ServiceName: "sitehealth-test",
	})
	require.NoError(t, err)

	_, span := provider.Tracer("test").Start(context.Background(), "probe")
	require.True(t, span.SpanContext().IsValid())
	span.End()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = provider.Shutdown(ctx)
}

func TestExporterOptions(t *testing.T) {
	t.Parallel()

	require.Len(t, exporterOptions("https://collector.example.com/v1/traces"), 1)
	require.Len(t, exporterOptions("localhost:4318"), 2)
}
