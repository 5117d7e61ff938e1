package handlers

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/kozaktomas/facemood/internal/database"
	"github.com/kozaktomas/facemood/internal/reporting"
)

// DetectionResponse represents a detection event in API responses
type DetectionResponse struct {
	ID         int64   `json:"id"`
	IdentityID int64   `json:"identity_id"`
	Emotion    string  `json:"emotion"`
	Confidence float64 `json:"confidence"`
	SessionID  string  `json:"session_id,omitempty"`
	DetectedAt string  `json:"detected_at"`
}

func detectionToResponse(e database.DetectionEvent) DetectionResponse {
	return DetectionResponse{
		ID:         e.ID,
		IdentityID: e.IdentityID,
		Emotion:    e.Emotion,
		Confidence: e.Confidence,
		SessionID:  e.SessionID,
		DetectedAt: e.DetectedAt.UTC().Format(time.RFC3339),
	}
}

// ReportsHandler handles detection history and statistics endpoints
type ReportsHandler struct {
	reports *reporting.Service
}

// NewReportsHandler creates a new reports handler
func NewReportsHandler(reports *reporting.Service) *ReportsHandler {
	return &ReportsHandler{reports: reports}
}

// Detections returns an identity's detection history, as JSON or as CSV with ?format=csv
func (h *ReportsHandler) Detections(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := h.reports.History(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"identity-%d-detections.csv\"", id))
		w.WriteHeader(http.StatusOK)
		if err := reporting.WriteCSV(w, events); err != nil {
			log.Printf("Warning: failed to write CSV for identity %d: %v", id, err)
		}
		return
	}

	result := make([]DetectionResponse, 0, len(events))
	for _, e := range events {
		result = append(result, detectionToResponse(e))
	}
	respondJSON(w, http.StatusOK, result)
}

// Report returns emotion counts and mean confidences for an identity
func (h *ReportsHandler) Report(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.reports.Summary(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}
