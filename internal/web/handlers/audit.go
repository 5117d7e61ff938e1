package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kozaktomas/facemood/internal/enrollment"
)

// AuditHandler runs near-duplicate audits as background jobs
type AuditHandler struct {
	enrollment *enrollment.Service
	jobManager *JobManager
	neighbors  int
	indexPath  string
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(svc *enrollment.Service, jm *JobManager, neighbors int, indexPath string) *AuditHandler {
	return &AuditHandler{
		enrollment: svc,
		jobManager: jm,
		neighbors:  neighbors,
		indexPath:  indexPath,
	}
}

// AuditRequest represents an audit start request
type AuditRequest struct {
	Neighbors int `json:"neighbors"`
}

// Start starts a new audit job
func (h *AuditHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req AuditRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, errInvalidRequestBody)
			return
		}
	}
	if req.Neighbors < 0 {
		respondError(w, http.StatusBadRequest, "neighbors must not be negative")
		return
	}
	if req.Neighbors == 0 {
		req.Neighbors = h.neighbors
	}

	job := h.jobManager.CreateJob(uuid.New().String(), req.Neighbors)
	ctx, cancel := context.WithCancel(context.Background())
	job.cancel = cancel

	go h.runAuditJob(ctx, job)

	respondJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.ID,
		"status": string(JobStatusPending),
	})
}

// List returns all known audit jobs
func (h *AuditHandler) List(w http.ResponseWriter, _ *http.Request) {
	jobs := h.jobManager.ListJobs()
	result := make([]AuditJobView, 0, len(jobs))
	for _, job := range jobs {
		result = append(result, job.Snapshot())
	}
	respondJSON(w, http.StatusOK, result)
}

// Status returns the status of an audit job
func (h *AuditHandler) Status(w http.ResponseWriter, r *http.Request) {
	job := h.lookup(w, r)
	if job == nil {
		return
	}
	respondJSON(w, http.StatusOK, job.Snapshot())
}

// Events streams job events via SSE
func (h *AuditHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r,
		func(id string) SSEJob {
			job := h.jobManager.GetJob(id)
			if job == nil {
				return nil
			}
			return job
		},
		func(job SSEJob) any {
			return job.(*AuditJob).Snapshot()
		},
	)
}

// Cancel cancels an audit job
func (h *AuditHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	job := h.lookup(w, r)
	if job == nil {
		return
	}
	job.Cancel()
	respondJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

func (h *AuditHandler) lookup(w http.ResponseWriter, r *http.Request) *AuditJob {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "missing job ID")
		return nil
	}
	job := h.jobManager.GetJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return nil
	}
	return job
}

// runAuditJob runs the audit in the background
func (h *AuditHandler) runAuditJob(ctx context.Context, job *AuditJob) {
	defer job.cancel()

	job.mu.Lock()
	if job.Status == JobStatusCancelled {
		job.mu.Unlock()
		return
	}
	job.Status = JobStatusRunning
	job.mu.Unlock()
	job.SendEvent(JobEvent{Type: "started", Message: "Audit started"})

	pairs, err := h.enrollment.Audit(ctx, enrollment.AuditOptions{
		Neighbors: job.Neighbors,
		IndexPath: h.indexPath,
		Progress:  job.setProgress,
	})
	job.finish(pairs, err)
}
