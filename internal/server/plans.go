package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/raphaelgruber/fitplan/internal/models"
	"github.com/raphaelgruber/fitplan/internal/service"
)

// maxRequestBytes bounds JSON request bodies.
const maxRequestBytes = 1 << 20

// generateResponse acknowledges an accepted generation job.
type generateResponse struct {
	JobID  string                  `json:"jobId"`
	Status models.GenerationStatus `json:"status"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req models.PlanRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: decode request: %w", service.ErrValidation, err))
		return
	}

	job, err := s.Generation.Generate(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, generateResponse{JobID: job.ID, Status: job.Status})
}

func (s *Server) handleGenerationStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, ok := s.Generation.Job(r.Context(), id)
	if !ok {
		writeError(w, fmt.Errorf("generation job %s: %w", id, service.ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	rec, err := s.Generation.Plan(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
