package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DefaultEnvFiles are loaded, when present, before the environment is parsed.
var DefaultEnvFiles = []string{".env", ".env.local"}

type PageSpeedOptions struct {
	Enabled  bool          `env:"PAGESPEED_ENABLED" envDefault:"true"`
	Endpoint string        `env:"PAGESPEED_ENDPOINT" envDefault:"https://www.googleapis.com/pagespeedonline/v5/runPagespeed"`
	APIKey   string        `env:"PAGESPEED_API_KEY"`
	Timeout  time.Duration `env:"PAGESPEED_TIMEOUT" envDefault:"60s"`
}

type DNSOptions struct {
	// Servers are queried in order; empty means /etc/resolv.conf.
	Servers []string      `env:"DNS_SERVERS" envSeparator:","`
	Timeout time.Duration `env:"DNS_TIMEOUT" envDefault:"5s"`
	Enabled bool          `env:"DNS_ENABLED" envDefault:"true"`
}

type PingOptions struct {
	Enabled    bool          `env:"PING_ENABLED" envDefault:"true"`
	Timeout    time.Duration `env:"PING_TIMEOUT" envDefault:"4s"`
	Privileged bool          `env:"PING_PRIVILEGED" envDefault:"false"`
}

type TelemetryOptions struct {
	TracingEnabled bool   `env:"OTEL_ENABLED" envDefault:"false"`
	ExporterURL    string `env:"OTEL_EXPORTER_URL" envDefault:"localhost:4318"`
	ServiceName    string `env:"OTEL_SERVICE_NAME" envDefault:"sitehealth"`
	MetricsEnabled bool   `env:"METRICS_ENABLED" envDefault:"true"`
	MetricsPath    string `env:"METRICS_PATH" envDefault:"/metrics"`
	SentryDSN      string `env:"SENTRY_DSN"`
}

type Config struct {
	PageSpeed PageSpeedOptions
	DNS       DNSOptions
	Ping      PingOptions
	Telemetry TelemetryOptions

	Host           string        `env:"HOST" envDefault:"127.0.0.1"`
	Port           int           `env:"PORT" envDefault:"5000"`
	Debug          bool          `env:"DEBUG" envDefault:"false"`
	Environment    string        `env:"APP_ENV" envDefault:"development"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	HTTPTimeout    time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`
	UserAgent      string        `env:"USER_AGENT" envDefault:"sitehealth/1.0"`
	ReusePageFetch bool          `env:"REUSE_PAGE_FETCH" envDefault:"false"`
	CORSOrigins    []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

// Load reads the env files that exist and parses the environment into a Config.
func Load(envFiles []string) (*Config, error) {
	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}

	return Parse()
}

// Parse builds a Config from the current environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.DNS.Servers = compact(cfg.DNS.Servers)
	cfg.CORSOrigins = compact(cfg.CORSOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadEnvFiles(envFiles []string) error {
	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}

	if len(existing) == 0 {
		return nil
	}

	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load env files %v: %w", existing, err)
	}

	return nil
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be within 0..65535, got %d", c.Port))
	}

	switch c.LogLevel {
	case "silent", "error", "warn", "info", "debug":
	default:
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL=%q (expected silent|error|warn|info|debug)", c.LogLevel))
	}

	durations := map[string]time.Duration{
		"HTTP_TIMEOUT":      c.HTTPTimeout,
		"PAGESPEED_TIMEOUT": c.PageSpeed.Timeout,
		"DNS_TIMEOUT":       c.DNS.Timeout,
		"PING_TIMEOUT":      c.Ping.Timeout,
	}
	for name, value := range durations {
		if value < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %s", name, value))
		}
	}

	for _, server := range c.DNS.Servers {
		if !validNameserver(server) {
			errs = append(errs, fmt.Errorf("invalid DNS_SERVERS entry %q", server))
		}
	}

	if c.PageSpeed.Enabled && c.PageSpeed.Endpoint == "" {
		errs = append(errs, errors.New("PAGESPEED_ENDPOINT is required when PAGESPEED_ENABLED is set"))
	}

	return errors.Join(errs...)
}

// Address returns the host:port the HTTP server listens on.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, fmt.Sprint(c.Port))
}

func validNameserver(server string) bool {
	host := server
	if h, _, err := net.SplitHostPort(server); err == nil {
		host = h
	}

	return net.ParseIP(host) != nil
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}

	return out
}
