package handlers

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/facemood/internal/database"
	"github.com/kozaktomas/facemood/internal/enrollment"
	"github.com/kozaktomas/facemood/internal/facematch"
	"github.com/kozaktomas/facemood/internal/pipeline"
)

func TestRespondJSON_SetsStatusAndContentType(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
	}{
		{"OK", http.StatusOK},
		{"Created", http.StatusCreated},
		{"Conflict", http.StatusConflict},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			respondJSON(recorder, tc.statusCode, map[string]string{"status": "ok"})

			assertStatusCode(t, recorder, tc.statusCode)
			assertContentType(t, recorder, "application/json")
		})
	}
}

func TestRespondJSON_NilData(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondJSON(recorder, http.StatusOK, nil)

	if recorder.Body.Len() != 0 {
		t.Errorf("expected empty body for nil data, got '%s'", recorder.Body.String())
	}
}

func TestRespondError_ContainsErrorKey(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondError(recorder, http.StatusBadRequest, "something went wrong")

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "something went wrong")
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"duplicate face", &enrollment.DuplicateFaceError{IdentityID: 1, Distance: 0.1}, http.StatusConflict},
		{"duplicate contact", fmt.Errorf("enroll a@b.c: %w", database.ErrDuplicateContact), http.StatusConflict},
		{"dimension mismatch", fmt.Errorf("%w: 3 != 2", facematch.ErrDimensionMismatch), http.StatusUnprocessableEntity},
		{"no face", pipeline.ErrNoFaceDetected, http.StatusUnprocessableEntity},
		{"extraction failed", fmt.Errorf("%w: timeout", pipeline.ErrExtractionFailed), http.StatusBadGateway},
		{"storage unavailable", database.StorageError("list identities", driver.ErrBadConn), http.StatusServiceUnavailable},
		{"not found", fmt.Errorf("identity 9: %w", database.ErrIdentityNotFound), http.StatusNotFound},
		{"invalid request", fmt.Errorf("%w: name required", enrollment.ErrInvalidRequest), http.StatusBadRequest},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := statusForError(tc.err); got != tc.want {
				t.Errorf("statusForError(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}

func TestRespondServiceError_DuplicateFace(t *testing.T) {
	recorder := httptest.NewRecorder()
	err := fmt.Errorf("enroll ana@example.com: %w", &enrollment.DuplicateFaceError{IdentityID: 4, Label: "Ana Gómez", Distance: 0.12})

	respondServiceError(recorder, err)

	assertStatusCode(t, recorder, http.StatusConflict)
	var result map[string]any
	parseJSONResponse(t, recorder, &result)
	if result["identity_id"] != float64(4) {
		t.Errorf("expected identity_id 4, got %v", result["identity_id"])
	}
	if result["distance"] != 0.12 {
		t.Errorf("expected distance 0.12, got %v", result["distance"])
	}
}

func TestHealthCheck_ReturnsStatusOk(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	recorder := httptest.NewRecorder()

	HealthCheck(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if result["status"] != "ok" {
		t.Errorf("expected status 'ok', got '%s'", result["status"])
	}
}
