package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/scoreslice/internal/config"
	"github.com/dgallion1/scoreslice/internal/pipeline"
	"github.com/dgallion1/scoreslice/internal/recognize"
	"github.com/dgallion1/scoreslice/internal/vocab"
)

// Server is the HTTP API server for scoreslice.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	vocab        *vocab.Vocabulary
	stats        *recognize.Stats
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. stats may be nil.
func NewServer(orch *pipeline.Orchestrator, v *vocab.Vocabulary, stats *recognize.Stats, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		vocab:        v,
		stats:        stats,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/analyze", s.handleAnalyze)
		r.Get("/api/jobs", s.handleListJobs)

		r.Route("/api/jobs/{jobID}", func(r chi.Router) {
			r.Get("/status", s.handleJobStatus)
			r.Delete("/", s.handleDeleteJob)
			r.Get("/classifications", s.handleClassifications)
			r.Get("/segments", s.handleSegments)
			r.Post("/corrections", s.handleCorrection)
			r.Post("/undo", s.handleUndo)
			r.Post("/export", s.handleExport)
			r.Get("/report", s.handleReport)
		})

		r.Get("/api/vocabulary", s.handleVocabulary)
		r.Get("/api/stats/recognition", s.handleRecognitionStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
