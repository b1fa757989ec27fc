package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/raysh454/darklens/internal/app"
	"github.com/raysh454/darklens/internal/logging"
	_ "github.com/raysh454/darklens/internal/server/docs" // registers the OpenAPI document
)

// Server is the HTTP + WebSocket API surface for darklens.
type Server struct {
	cfg          Config
	orchestrator *app.Orchestrator
	router       chi.Router
	upgrader     websocket.Upgrader
	logger       logging.Logger
}

// NewServer creates a Server around an already wired orchestrator.
func NewServer(cfg Config, orch *app.Orchestrator) (*Server, error) {
	if orch == nil {
		return nil, errors.New("server needs an orchestrator")
	}
	def := DefaultConfig()
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = def.ListenAddr
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = def.MaxUploadBytes
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("Server")
	}

	s := &Server{
		cfg:          cfg,
		orchestrator: orch,
		router:       chi.NewRouter(),
		logger:       logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// the API is already CORS-open
				return true
			},
		},
	}

	s.routes()
	return s, nil
}

// Orchestrator returns the underlying orchestrator for advanced use (tests, etc.).
func (s *Server) Orchestrator() *app.Orchestrator {
	return s.orchestrator
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	// CORS preflight
	r.Options("/api/*", s.optionsHandler("GET, POST, DELETE"))
	r.Options("/analyze", s.optionsHandler("POST"))

	r.Get("/health", s.handleHealth)
	r.Get("/api/taxonomy", s.handleTaxonomy)

	// Audits
	r.Post("/api/audit", s.handleAudit)
	r.Post("/api/test-scraper", s.handleTestScraper)
	r.Post("/api/capture", s.handleCapture)
	r.Post("/analyze", s.handleAnalyze)
	r.Post("/api/score", s.handleScore)
	r.Get("/api/discover", s.handleDiscover)

	// Jobs over REST
	r.Post("/api/jobs/audit", s.handleStartAuditJob)
	r.Get("/api/jobs", s.handleListJobs)
	r.Get("/api/jobs/{jobID}", s.handleGetJob)
	r.Delete("/api/jobs/{jobID}", s.handleCancelJob)

	// WebSockets for job progress
	r.Get("/ws/audit", s.handleAuditWS)

	// Stored reports
	r.Get("/api/reports", s.handleListReports)
	r.Get("/api/reports/{id}", s.handleGetReport)
	r.Get("/api/reports/{id}/{format}", s.handleRenderReport)
	r.Get("/api/compare", s.handleCompare)
	r.Get("/api/trend", s.handleTrend)

	if exp := s.orchestrator.Components().Exporter; exp != nil {
		r.Handle("/exports/*", http.StripPrefix("/exports/", exp.Handler()))
	}
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fields := []logging.Field{
		{Key: "method", Value: r.Method},
		{Key: "path", Value: r.URL.Path},
	}

	if q := r.URL.Query(); len(q) > 0 {
		fields = append(fields, logging.Field{Key: "query", Value: q.Encode()})
	}

	if s.cfg.LogBodies && r.Body != nil && r.Method == http.MethodPost &&
		!strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if bodyBytes, err := io.ReadAll(io.LimitReader(r.Body, 64<<10)); err == nil {
			fields = append(fields, logging.Field{Key: "body", Value: string(bodyBytes)})
			r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(bodyBytes), r.Body))
		}
	}

	s.logger.Info("http_request", fields...)

	s.router.ServeHTTP(w, r)
}

// Close stops running jobs. The orchestrator's components belong to the caller.
func (s *Server) Close() {
	if s.orchestrator != nil {
		s.orchestrator.Close()
	}
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      0, // audits and websockets can run long
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
	writeJSON(w, status, ErrorResponse{Error: msg})
}
