package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/facemood/internal/database"
	"github.com/kozaktomas/facemood/internal/pipeline"
	"github.com/kozaktomas/facemood/internal/recognition"
)

// RecognizeRequest is the JSON form of a recognition request. Emotion and
// Confidence are recorded as given when the embedding matches.
type RecognizeRequest struct {
	Embedding  []float32 `json:"embedding"`
	Emotion    string    `json:"emotion,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
}

// RecognizeResponse is the outcome of one recognition request
type RecognizeResponse struct {
	Outcome     string                  `json:"outcome"`
	Match       recognition.MatchResult `json:"match"`
	Emotion     pipeline.Emotion        `json:"emotion"`
	Recorded    bool                    `json:"recorded"`
	DetectionID int64                   `json:"detection_id,omitempty"`
	Message     string                  `json:"message,omitempty"`
}

// RecognizeHandler handles recognition endpoints
type RecognizeHandler struct {
	recorder  database.DetectionWriter
	pipeline  *pipeline.Pipeline
	index     *recognition.IdentityIndex
	threshold float64
}

// NewRecognizeHandler creates a new recognize handler
func NewRecognizeHandler(recorder database.DetectionWriter, p *pipeline.Pipeline, index *recognition.IdentityIndex, threshold float64) *RecognizeHandler {
	return &RecognizeHandler{
		recorder:  recorder,
		pipeline:  p,
		index:     index,
		threshold: threshold,
	}
}

// Recognize matches an uploaded image or a raw embedding against the enrolled identities.
// A detection event is recorded on match unless ?record=false.
func (h *RecognizeHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	record := r.URL.Query().Get("record") != "false"

	if isMultipart(r) {
		h.recognizeImage(w, r, record)
		return
	}

	var req RecognizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if len(req.Embedding) == 0 {
		respondError(w, http.StatusBadRequest, "embedding is required")
		return
	}

	match, err := h.index.Recognize(req.Embedding, h.threshold)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	emotion := pipeline.Emotion{Label: req.Emotion, Confidence: req.Confidence}
	if emotion.Label == "" {
		emotion = pipeline.Unknown()
	}
	resp := RecognizeResponse{
		Outcome: pipeline.OutcomeEmbedded.String(),
		Match:   match,
		Emotion: emotion,
	}

	if match.Matched && record {
		id, err := h.recorder.RecordDetection(r.Context(), database.NewDetection{
			IdentityID: match.IdentityID,
			Emotion:    emotion.Label,
			Confidence: emotion.Confidence,
			SessionID:  chiMiddleware.GetReqID(r.Context()),
		})
		if err != nil {
			respondServiceError(w, err)
			return
		}
		resp.Recorded = true
		resp.DetectionID = id
	}

	respondJSON(w, http.StatusOK, resp)
}

func (h *RecognizeHandler) recognizeImage(w http.ResponseWriter, r *http.Request, record bool) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	image, err := readImageField(r.MultipartForm)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	session := recognition.NewSession(h.index, h.pipeline, h.recorder, h.threshold)
	if reqID := chiMiddleware.GetReqID(r.Context()); reqID != "" {
		session.ID = reqID
	}
	session.Record = record

	report, err := session.ProcessFrame(r.Context(), image)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	resp := RecognizeResponse{
		Outcome:     report.Outcome.String(),
		Match:       report.Match,
		Emotion:     report.Emotion,
		Recorded:    report.Recorded,
		DetectionID: report.DetectionID,
	}
	if report.Err != nil {
		resp.Message = report.Err.Error()
	}
	respondJSON(w, http.StatusOK, resp)
}

// IndexStatusResponse describes the recognition snapshot
type IndexStatusResponse struct {
	Identities int    `json:"identities"`
	LoadedAt   string `json:"loaded_at,omitempty"`
}

// RefreshIndex reloads the identity snapshot used for recognition
func (h *RecognizeHandler) RefreshIndex(w http.ResponseWriter, r *http.Request) {
	if err := h.index.Refresh(r.Context()); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, IndexStatusResponse{
		Identities: h.index.Len(),
		LoadedAt:   h.index.LoadedAt().UTC().Format(time.RFC3339),
	})
}
