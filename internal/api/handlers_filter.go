package api

import (
	"bytes"
	"errors"
	"net/http"
	"strings"

	"github.com/dgallion1/texprefilter/internal/parser"
	"github.com/dgallion1/texprefilter/internal/pipeline"
)

// handleFilter filters a posted pandoc JSON document synchronously. The
// response is pandoc JSON unless ?format names another pandoc writer.
func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	to := r.URL.Query().Get("format")
	if to == "" {
		to = "json"
	}

	var out bytes.Buffer
	phase := pipeline.StatusQueued
	stats, err := s.orchestrator.Converter().Convert(r.Context(), r.Body, "json", to, &out, func(p pipeline.JobStatus) {
		phase = p
	})
	if err != nil {
		s.log.Warn("filter request failed", "phase", phase, "format", to, "error", err)
		jsonError(w, err.Error(), errorStatus(phase, err))
		return
	}

	s.log.Debug("filtered document", "environments", stats.Environments, "figures", stats.Figures)
	w.Header().Set("Content-Type", contentType(to))
	w.Write(out.Bytes())
}

// errorStatus maps a conversion error to an HTTP status by the stage that
// failed.
func errorStatus(phase pipeline.JobStatus, err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, parser.ErrPandocNotFound):
		return http.StatusNotImplemented
	case errors.Is(err, parser.ErrUnsupportedFormat):
		return http.StatusBadRequest
	}
	switch phase {
	case pipeline.StatusParsing:
		return http.StatusBadRequest
	case pipeline.StatusFiltering:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func contentType(format string) string {
	switch strings.ToLower(format) {
	case "json":
		return "application/json"
	case "html", "html4", "html5":
		return "text/html; charset=utf-8"
	case "latex":
		return "application/x-latex"
	}
	return "text/plain; charset=utf-8"
}
