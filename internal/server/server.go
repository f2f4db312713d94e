package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/glaciation-heu/timegraph/internal/engine"
)

// maxBodyBytes bounds inbound documents and update statements.
const maxBodyBytes = 32 << 20

// Server is the timegraph HTTP API server.
type Server struct {
	engine   *engine.Engine
	gatherer prometheus.Gatherer
	logger   logrus.FieldLogger
	router   chi.Router
	version  string
	started  time.Time
}

// New creates a new Server. gatherer backs /metrics and may be nil.
func New(eng *engine.Engine, gatherer prometheus.Gatherer, logger logrus.FieldLogger, version string) *Server {
	s := &Server{
		engine:   eng,
		gatherer: gatherer,
		logger:   logger,
		version:  version,
		started:  time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/health", http.StatusSeeOther)
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/v0", func(r chi.Router) {
			r.Get("/graph", s.handleQuery)
			r.Post("/graph", s.handleExecute)
			r.Patch("/graph", s.handleUpdateGraph)
			r.Get("/timeline", s.handleTimeline)
			r.Get("/history", s.handleHistory)
			r.Get("/sweeps", s.handleSweeps)
			r.Post("/retention/sweep", s.handleSweep)
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	storeOK := s.engine.Ping(r.Context()) == nil

	journal := ""
	if s.engine.DB != nil {
		journal = s.engine.DB.Path
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"version":      s.version,
		"uptime":       time.Since(s.started).Seconds(),
		"store":        storeOK,
		"journal_path": journal,
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.WithFields(logrus.Fields{
			"action":     "http_request",
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("request served")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
