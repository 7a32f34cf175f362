// Package server exposes the fitplan HTTP API and the WebSocket event stream.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/raphaelgruber/fitplan/internal/hub"
	"github.com/raphaelgruber/fitplan/internal/metrics"
	"github.com/raphaelgruber/fitplan/internal/service"
)

// Deps wires a Server.
type Deps struct {
	Uploads    *service.UploadTracker
	Ingest     *service.IngestService
	Generation *service.GenerationService
	Hub        *hub.Hub
	Timings    *metrics.Collector
	Metrics    *metrics.Prometheus
	Gatherer   prometheus.Gatherer

	UploadDir      string
	MaxUploadBytes int64
}

// Server routes HTTP requests to the pipelines.
type Server struct {
	Deps
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// New creates a server.
func New(deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Deps:   deps,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for local dev
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Handler returns the root handler with request logging applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/uploads", s.handleUpload)
	mux.HandleFunc("GET /api/uploads/{id}", s.handleUploadStatus)
	mux.HandleFunc("GET /api/uploads/{id}/files", s.handleUploadFiles)
	mux.HandleFunc("POST /api/uploads/{id}/process", s.handleProcess)
	mux.HandleFunc("GET /api/uploads/{id}/processing", s.handleProcessingStatus)

	mux.HandleFunc("POST /api/plans/generate", s.handleGenerate)
	mux.HandleFunc("GET /api/plans/jobs/{id}", s.handleGenerationStatus)
	mux.HandleFunc("GET /api/plans/{id}", s.handlePlan)

	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	gatherer := s.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return LoggingMiddleware(s.logger)(mux)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Timings.Snapshot())
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Category service.ErrorCategory `json:"category"`
	Message  string                `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("failed to write response", "error", err)
	}
}

// writeError renders err with a status derived from its category.
func writeError(w http.ResponseWriter, err error) {
	category := service.Category(err)
	status := statusFor(category)

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		category, status = service.CategoryValidation, http.StatusRequestEntityTooLarge
	}
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "category", category, "error", err)
	}
	writeJSON(w, status, errorBody{Error: errorDetail{Category: category, Message: err.Error()}})
}

func statusFor(c service.ErrorCategory) int {
	switch c {
	case service.CategoryValidation:
		return http.StatusBadRequest
	case service.CategoryUnsupportedMedia:
		return http.StatusUnsupportedMediaType
	case service.CategoryNotFound:
		return http.StatusNotFound
	case service.CategoryConflict:
		return http.StatusConflict
	case service.CategoryRetrievalEmpty, service.CategoryExtraction, service.CategorySchemaValidation:
		return http.StatusUnprocessableEntity
	case service.CategoryProvider, service.CategoryPersistence:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
