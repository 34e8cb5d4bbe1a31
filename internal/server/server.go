package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/pagelens/pagelens/internal/analytics"
	"github.com/pagelens/pagelens/internal/cache"
	"github.com/pagelens/pagelens/internal/source"
)

// Server wires the analytics query surface: resolve the event source for
// the project, run the builder, serve the report.
type Server struct {
	sources *source.Resolver
	builder *analytics.Builder
	cache   *cache.ReportCache
}

// New creates a server. cache may be nil, in which case every request
// recomputes from scratch.
func New(sources *source.Resolver, builder *analytics.Builder, reportCache *cache.ReportCache) *Server {
	return &Server{
		sources: sources,
		builder: builder,
		cache:   reportCache,
	}
}

// Router builds the chi router with the standard middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Upstream fetches inherit the request context; a hung store surfaces
	// as data-unavailable instead of a stuck dashboard.
	r.Use(middleware.Timeout(15 * time.Second))
	r.Use(requestLogger)

	r.Get("/health", handleHealth)
	r.Get("/v1/projects/{projectID}/analytics", s.handleAnalytics)

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// requestLogger logs one line per request through zerolog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("Request handled")
	})
}
