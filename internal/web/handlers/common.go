package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/facemood/internal/database"
	"github.com/kozaktomas/facemood/internal/enrollment"
	"github.com/kozaktomas/facemood/internal/facematch"
	"github.com/kozaktomas/facemood/internal/pipeline"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// maxUploadSize caps multipart image uploads (20MB).
const maxUploadSize = 20 << 20

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusForError maps service errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, enrollment.ErrDuplicateFace), errors.Is(err, database.ErrDuplicateContact):
		return http.StatusConflict
	case errors.Is(err, facematch.ErrDimensionMismatch), errors.Is(err, pipeline.ErrNoFaceDetected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, pipeline.ErrExtractionFailed):
		return http.StatusBadGateway
	case errors.Is(err, database.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, database.ErrIdentityNotFound):
		return http.StatusNotFound
	case errors.Is(err, enrollment.ErrInvalidRequest):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondServiceError translates a service error into a JSON error response.
// Duplicate faces also report the identity that blocked the request.
func respondServiceError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		log.Printf("Error: %s", sanitizeForLog(err.Error()))
	}

	var dup *enrollment.DuplicateFaceError
	if errors.As(err, &dup) {
		respondJSON(w, status, map[string]any{
			"error":       err.Error(),
			"identity_id": dup.IdentityID,
			"distance":    dup.Distance,
		})
		return
	}
	respondError(w, status, err.Error())
}

// parseIDParam reads the {id} URL parameter.
func parseIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid identity id %q", chi.URLParam(r, "id"))
	}
	return id, nil
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// readImageField reads the "image" file from a parsed multipart form.
func readImageField(form *multipart.Form) ([]byte, error) {
	files := form.File["image"]
	if len(files) == 0 {
		return nil, errors.New("image is required")
	}
	file, err := files[0].Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("image is empty")
	}
	return data, nil
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
