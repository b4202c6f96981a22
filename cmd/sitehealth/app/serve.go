package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"sitehealth/internal/clock"
	"sitehealth/internal/config"
	"sitehealth/internal/metrics"
	"sitehealth/internal/server"
	"sitehealth/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

// serve runs the HTTP API until ctx is canceled. ready, when set, receives the
// bound address once the listener is open.
func serve(
	ctx context.Context,
	cfg *config.Config,
	client *http.Client,
	timer clock.Timer,
	logger *logrus.Logger,
	ready func(addr string),
) error {
	tel, err := telemetry.Setup(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := tel.Shutdown(flushCtx); err != nil {
			logger.WithError(err).Warn("telemetry shutdown")
		}
	}()

	if tel.TracingEnabled() {
		client = tracedClient(client)
	}

	options, err := analysisOptions(cfg, client, timer, logger)
	if err != nil {
		return err
	}

	var recorder *metrics.Recorder
	if cfg.Telemetry.MetricsEnabled {
		recorder = metrics.New()
	}

	api := server.New(server.Config{
		Analysis:    options,
		CORSOrigins: cfg.CORSOrigins,
		Metrics:     recorder,
		MetricsPath: cfg.Telemetry.MetricsPath,
		Sentry:      tel.SentryEnabled(),
		Logger:      logger,
		Clock:       timer,
	})

	listener, err := net.Listen("tcp", cfg.Address())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Address(), err)
	}

	httpServer := api.HTTPServer(listener.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(listener)
	}()

	logger.WithFields(logrus.Fields{
		"addr":      listener.Addr().String(),
		"pagespeed": cfg.PageSpeed.Enabled,
		"metrics":   cfg.Telemetry.MetricsEnabled,
	}).Info("sitehealth listening")

	if ready != nil {
		ready(listener.Addr().String())
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}

// tracedClient copies client with an instrumented transport.
func tracedClient(client *http.Client) *http.Client {
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	traced := *client
	traced.Transport = otelhttp.NewTransport(base)

	return &traced
}
