package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/go-playground/validator/v10"

	"sitehealth/health"
	"sitehealth/internal/clock"
	"sitehealth/internal/metrics"
)

type analyzeRequest struct {
	URL string `json:"url" validate:"required"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page, err := static.ReadFile("static/index.html")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "index page unavailable")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	logger := s.loggerFrom(r.Context())

	var body analyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := s.validate.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	opts := s.cfg.Analysis
	opts.URL = body.URL
	opts.Logger = logger

	start := s.clock.Now()
	report, err := health.Evaluate(r.Context(), opts)
	elapsed := clock.Since(s.clock, start)

	if err != nil {
		s.cfg.Metrics.ObserveAnalysis(metrics.ResultError, elapsed, nil)
		logger.WithError(err).Error("analysis failed")
		if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
			hub.CaptureException(err)
		}
		writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}

	unavailable := report.Unavailable()
	s.cfg.Metrics.ObserveAnalysis(metrics.ResultOK, elapsed, unavailable)

	logger.WithField("url", body.URL).
		WithField("unavailable", unavailable).
		WithField("elapsed", elapsed.String()).
		Info("analysis finished")

	writeJSON(w, http.StatusOK, report)
}

func validationMessage(err error) string {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		field := validationErrs[0]
		if field.Tag() == "required" {
			return "url is required"
		}

		return "invalid " + field.Field()
	}

	return "invalid request"
}
