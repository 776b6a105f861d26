package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/DAMG7250-Team1/reportgen/internal/config"
	"github.com/DAMG7250-Team1/reportgen/internal/llm"
	"github.com/DAMG7250-Team1/reportgen/internal/pipeline"
)

// Reporter produces a report synchronously. Failures come back as text.
type Reporter interface {
	GenerateReport(ctx context.Context, query string) string
}

// Server is the HTTP API server for reportgen.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	reporter     Reporter
	stats        *llm.Stats
	model        string
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. stats may be nil.
func NewServer(orch *pipeline.Orchestrator, reporter Reporter, stats *llm.Stats, model string, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		reporter:     reporter,
		stats:        stats,
		model:        model,
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

	// Authenticated endpoints. With no API key configured they are open.
	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		}

		r.Post("/generate_report", s.handleGenerateReport)
		r.Post("/api/reports", s.handleSubmitReport)
		r.Get("/api/reports/{jobID}", s.handleReportStatus)
		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
