package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/pagelens/pagelens/internal/analytics"
	"github.com/pagelens/pagelens/internal/cache"
	"github.com/pagelens/pagelens/internal/source"
)

// invalidFunnelMessage is the user-facing text for funnel misconfiguration,
// rendered verbatim by the dashboard.
const invalidFunnelMessage = "A funnel needs at least 2 steps"

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	req := parseRequest(r)

	var key string
	if s.cache != nil {
		key = cache.Key(req)
		if report := s.cache.Get(r.Context(), key); report != nil {
			writeJSON(w, http.StatusOK, report)
			return
		}
	}

	src := s.sources.For(req.ProjectID)
	report, err := s.builder.Build(r.Context(), src, src, req)
	if err != nil {
		switch {
		case errors.Is(err, analytics.ErrInvalidFunnel):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: invalidFunnelMessage})
		case errors.Is(err, source.ErrDataUnavailable):
			log.Error().Err(err).Str("project_id", req.ProjectID).Msg("Event store unavailable")
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "Analytics data is temporarily unavailable"})
		default:
			log.Error().Err(err).Str("project_id", req.ProjectID).Msg("Failed to build report")
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal error"})
		}
		return
	}

	if s.cache != nil {
		s.cache.Set(r.Context(), key, report)
	}
	writeJSON(w, http.StatusOK, report)
}

// parseRequest maps query parameters onto the logical request. Defaults
// and malformed-filter handling live in the analytics package; this layer
// only splits strings.
func parseRequest(r *http.Request) analytics.Request {
	q := r.URL.Query()

	rangeDays := 0
	if raw := q.Get("range"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			rangeDays = n
		}
	}

	return analytics.Request{
		ProjectID:      chi.URLParam(r, "projectID"),
		RangeDays:      rangeDays,
		RetentionEvent: q.Get("retention_event"),
		Filters:        analytics.ParseFilters(q.Get("filters")),
		FunnelSteps:    splitList(q.Get("funnel")),
	}
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to write response")
	}
}
