package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/facemood/internal/database"
	"github.com/kozaktomas/facemood/internal/database/mock"
	"github.com/kozaktomas/facemood/internal/enrollment"
	"github.com/kozaktomas/facemood/internal/pipeline"
	"github.com/kozaktomas/facemood/internal/recognition"
	"github.com/kozaktomas/facemood/internal/reporting"
)

const testThreshold = 0.35

// faceLocator treats an image named "blank" as containing no face
type faceLocator struct{}

func (faceLocator) Locate(_ context.Context, image []byte) ([]byte, bool, error) {
	if string(image) == "blank" {
		return nil, false, nil
	}
	return image, true, nil
}

// tableExtractor maps image contents to fixed embeddings; unknown images fail extraction
type tableExtractor map[string][]float32

func (e tableExtractor) Embed(_ context.Context, image []byte) ([]float32, error) {
	if vec, ok := e[string(image)]; ok {
		return vec, nil
	}
	return nil, errors.New("embedding service returned 500")
}

type fixedClassifier pipeline.Emotion

func (c fixedClassifier) Classify(context.Context, []byte) (pipeline.Emotion, error) {
	return pipeline.Emotion(c), nil
}

// testEnv wires the real services over an in-memory store
type testEnv struct {
	store      *mock.MockStore
	index      *recognition.IdentityIndex
	identities *IdentitiesHandler
	recognize  *RecognizeHandler
	reports    *ReportsHandler
}

// newTestEnv creates handlers with Ana enrolled at (1, 0)
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := mock.NewMockStore()
	store.AddIdentity(database.Identity{Name: "Ana", Surname: "Gómez", Contact: "ana@example.com", Embedding: []float32{1, 0}})

	p := pipeline.New(faceLocator{}, tableExtractor{
		"ana.jpg":   {1, 0},
		"luis.jpg":  {0, 1},
		"twin.jpg":  {0.99, 0.01},
		"three.jpg": {1, 0, 0},
	}, fixedClassifier{Label: "happy", Confidence: 88})

	index := recognition.NewIdentityIndex(store)
	if err := index.Refresh(context.Background()); err != nil {
		t.Fatalf("failed to load index: %v", err)
	}

	return &testEnv{
		store:      store,
		index:      index,
		identities: NewIdentitiesHandler(store, enrollment.NewService(store, p, 2, testThreshold), index),
		recognize:  NewRecognizeHandler(store, p, index, testThreshold),
		reports:    NewReportsHandler(reporting.NewService(store)),
	}
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// jsonRequest creates a request with a JSON encoded body
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request body: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// multipartRequest creates a multipart request with form fields and an optional image
func multipartRequest(t *testing.T, path string, fields map[string]string, image []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}
	if image != nil {
		part, err := writer.CreateFormFile("image", "face.jpg")
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		part.Write(image)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest("POST", path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
