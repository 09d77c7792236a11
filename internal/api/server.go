package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/finextract/internal/config"
	"github.com/dgallion1/finextract/internal/pipeline"
)

// Server is the HTTP API server for finextract.
type Server struct {
	router  chi.Router
	service *pipeline.Service
	model   string
	log     *slog.Logger
	cfg     config.Config
}

// NewServer creates and configures the HTTP server. model names the
// conversion model in the stats endpoint.
func NewServer(svc *pipeline.Service, model string, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		service: svc,
		model:   model,
		log:     log,
		cfg:     cfg,
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

	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		}

		r.Post("/api/documents", s.handleProcessDocument)
		r.Post("/api/doctags", s.handleProcessDocTags)
		r.Get("/api/stats/model", s.handleModelStats)

		r.Route("/api/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", s.handleSessionSummary)
			r.Delete("/", s.handleDeleteSession)
			r.Get("/doctags", s.handleSessionDocTags)
			r.Get("/overlay.png", s.handleOverlay)
			r.Get("/export.csv", s.handleExportCSV)
			r.Get("/export.json", s.handleExportJSON)
			r.Get("/export.xlsx", s.handleExportXLSX)
			r.Get("/report.html", s.handleReportHTML)
			r.Get("/report.docx", s.handleReportDOCX)
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// writeJSON encodes v without HTML escaping so metric values such as
// "R&D" come back verbatim.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
