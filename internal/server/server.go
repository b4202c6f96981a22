// Package server exposes website analysis over HTTP.
package server

import (
	"embed"
	"encoding/json"
	"net/http"
	"time"

	"github.com/NYTimes/gziphandler"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"sitehealth/health"
	"sitehealth/internal/clock"
	"sitehealth/internal/logging"
	"sitehealth/internal/metrics"
)

//go:embed static/index.html
var static embed.FS

const maxRequestBody = 1 << 20

// Config assembles a Server. Analysis is the option template every request
// starts from; only its URL and Logger are replaced per request.
type Config struct {
	Analysis    health.Options
	CORSOrigins []string
	Metrics     *metrics.Recorder
	MetricsPath string
	Sentry      bool
	Logger      logrus.FieldLogger
	Clock       clock.Timer
}

// Server is the HTTP surface of the analyzer.
type Server struct {
	cfg      Config
	router   chi.Router
	handler  http.Handler
	validate *validator.Validate
	logger   logrus.FieldLogger
	clock    clock.Timer
}

// New builds the router and its middleware stack.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}

	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}

	s := &Server{
		cfg:      cfg,
		router:   chi.NewRouter(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
		clock:    clock.OrDefault(cfg.Clock),
	}

	s.routes()
	s.handler = otelhttp.NewHandler(s.router, "sitehealth",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)

	return s
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.requestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	if s.cfg.Sentry {
		r.Use(sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)
	}
	r.Use(cors.New(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         86400,
	}).Handler)
	r.Use(gziphandler.GzipHandler)

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealth)
	r.Post("/analyze", s.handleAnalyze)

	if s.cfg.Metrics != nil {
		r.Method(http.MethodGet, s.cfg.MetricsPath, s.cfg.Metrics.Handler())
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
// WriteTimeout stays open because one analysis can take a minute.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
