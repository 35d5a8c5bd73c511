package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hugo-lorenzo-mato/diligent/internal/core"
)

// submitRequest is the analysis submission payload.
type submitRequest struct {
	StartupName        string `json:"startup_name"`
	StartupDescription string `json:"startup_description"`
	FundingStage       string `json:"funding_stage,omitempty"`
	Context            string `json:"context,omitempty"`
}

// submitResponse acknowledges a queued analysis.
type submitResponse struct {
	JobID core.JobID    `json:"job_id"`
	State core.JobState `json:"state"`
}

// handleSubmitAnalysis enqueues a new due-diligence run.
func (s *Server) handleSubmitAnalysis(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON")
		return
	}
	if req.StartupName == "" {
		respondError(w, http.StatusBadRequest, core.CodeInvalidConfig, "startup_name is required")
		return
	}
	if req.StartupDescription == "" {
		respondError(w, http.StatusBadRequest, core.CodeInvalidConfig, "startup_description is required")
		return
	}

	apiKey := requestAPIKey(r.Context())
	if apiKey != "" && s.maxJobsPerKey > 0 {
		active, err := s.jobs.CountActive(r.Context(), apiKey)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		if active >= s.maxJobsPerKey {
			respondError(w, http.StatusTooManyRequests, core.CodeConcurrentJobsExceeded,
				"concurrent job limit reached for this API key")
			return
		}
	}

	input := core.TaskInput{
		StartupName:        req.StartupName,
		StartupDescription: req.StartupDescription,
		FundingStage:       req.FundingStage,
		Context:            req.Context,
	}
	id, err := s.jobs.Submit(r.Context(), input, apiKey)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	s.logger.Info("analysis submitted", "job_id", id, "startup", req.StartupName)
	respondJSON(w, http.StatusAccepted, submitResponse{JobID: id, State: core.JobQueued})
}

// handleGetAnalysis returns the current view of a job, including partial
// state while the run is still in flight.
func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	id := core.JobID(chi.URLParam(r, "jobID"))

	job, err := s.jobs.Poll(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}

// handleCancelAnalysis requests cancellation of a queued or running job.
func (s *Server) handleCancelAnalysis(w http.ResponseWriter, r *http.Request) {
	id := core.JobID(chi.URLParam(r, "jobID"))

	if err := s.jobs.Cancel(r.Context(), id); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"job_id": string(id),
		"state":  string(core.JobCancelled),
	})
}
