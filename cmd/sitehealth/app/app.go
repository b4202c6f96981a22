package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"sitehealth/health"
	"sitehealth/internal/clock"
	"sitehealth/internal/config"
	"sitehealth/internal/dnsprobe"
	"sitehealth/internal/logging"
	"sitehealth/internal/pagespeed"
	"sitehealth/internal/ping"
)

// Run executes the CLI. Without a command it prints help and returns nil.
func Run(args []string, stdout, stderr io.Writer, client *http.Client, timer clock.Timer) error {
	app := cli.NewApp()
	app.Name = "sitehealth"
	app.Usage = "analyze the health of a website"
	app.UsageText = "sitehealth [global options] command [command options] [arguments...]"
	app.Writer = stdout
	app.ErrWriter = stderr
	app.Flags = []cli.Flag{
		cli.StringSliceFlag{
			Name:  "env-file",
			Usage: "dotenv file to load before reading the environment (repeatable)",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:      "serve",
			Usage:     "run the HTTP API",
			UsageText: "sitehealth serve [--host HOST] [--port PORT] [--debug]",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "host",
					Usage: "listen host (overrides HOST)",
				},
				cli.IntFlag{
					Name:  "port",
					Usage: "listen port (overrides PORT)",
				},
				cli.BoolFlag{
					Name:  "debug",
					Usage: "text logs at debug level (overrides DEBUG)",
				},
			},
			Action: func(c *cli.Context) error {
				cfg, err := loadConfig(c)
				if err != nil {
					return err
				}

				logger := logging.New(cfg.LogLevel, cfg.Debug, stderr)

				ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
				defer stop()

				return serve(ctx, cfg, client, timer, logger, nil)
			},
		},
		{
			Name:      "analyze",
			Usage:     "print the JSON health report of a website",
			UsageText: "sitehealth analyze [--compact] [--timeout 30s] <url>",
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:  "compact",
					Usage: "print the report on a single line",
				},
				cli.DurationFlag{
					Name:  "timeout",
					Usage: "per-request timeout (overrides HTTP_TIMEOUT)",
				},
				cli.StringFlag{
					Name:  "user-agent",
					Usage: "custom user agent (overrides USER_AGENT)",
				},
			},
			Action: func(c *cli.Context) error {
				rawURL := c.Args().First()
				if rawURL == "" {
					_ = cli.ShowCommandHelp(c, "analyze")

					return nil
				}

				cfg, err := loadConfig(c)
				if err != nil {
					return err
				}

				logger := logging.New(cfg.LogLevel, cfg.Debug, stderr)

				return analyze(context.Background(), cfg, rawURL, !c.Bool("compact"), stdout, client, timer, logger)
			},
		},
	}
	app.Action = func(c *cli.Context) error {
		_ = cli.ShowAppHelp(c)

		return nil
	}

	return app.Run(args)
}

// loadConfig reads the environment and applies the flags the user set explicitly.
func loadConfig(c *cli.Context) (*config.Config, error) {
	envFiles := c.GlobalStringSlice("env-file")
	if len(envFiles) == 0 {
		envFiles = config.DefaultEnvFiles
	}

	cfg, err := config.Load(envFiles)
	if err != nil {
		return nil, err
	}

	if c.IsSet("host") {
		cfg.Host = c.String("host")
	}
	if c.IsSet("port") {
		cfg.Port = c.Int("port")
	}
	if c.IsSet("debug") {
		cfg.Debug = c.Bool("debug")
	}
	if c.IsSet("timeout") {
		cfg.HTTPTimeout = c.Duration("timeout")
	}
	if c.IsSet("user-agent") {
		cfg.UserAgent = c.String("user-agent")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func analyze(
	ctx context.Context,
	cfg *config.Config,
	rawURL string,
	indent bool,
	stdout io.Writer,
	client *http.Client,
	timer clock.Timer,
	logger logrus.FieldLogger,
) error {
	options, err := analysisOptions(cfg, client, timer, logger)
	if err != nil {
		return err
	}

	options.URL = rawURL
	options.IndentJSON = indent

	report, err := health.Analyze(ctx, options)
	if err != nil {
		return err
	}

	_, err = stdout.Write(report)

	return err
}

// analysisOptions turns the configuration into the option template shared by
// every analysis. Disabled probes stay nil and report null.
func analysisOptions(
	cfg *config.Config,
	client *http.Client,
	timer clock.Timer,
	logger logrus.FieldLogger,
) (health.Options, error) {
	options := health.Options{
		HTTPClient:     client,
		Timeout:        cfg.HTTPTimeout,
		UserAgent:      cfg.UserAgent,
		ReusePageFetch: cfg.ReusePageFetch,
		Clock:          timer,
		Logger:         logger,
	}

	if cfg.Ping.Enabled {
		options.Pinger = ping.New(cfg.Ping.Timeout, cfg.Ping.Privileged, timer)
	}

	if cfg.DNS.Enabled {
		resolver, err := dnsprobe.New(cfg.DNS.Servers, cfg.DNS.Timeout)
		if err != nil {
			return health.Options{}, fmt.Errorf("configure dns probe: %w", err)
		}
		options.Resolver = resolver
	}

	if cfg.PageSpeed.Enabled {
		pageSpeedClient := &http.Client{
			Transport: client.Transport,
			Timeout:   cfg.PageSpeed.Timeout,
		}
		options.PageSpeed = pagespeed.New(pageSpeedClient, cfg.PageSpeed.Endpoint, cfg.PageSpeed.APIKey)
	}

	return options, nil
}
