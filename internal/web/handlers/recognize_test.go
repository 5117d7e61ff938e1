package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/facemood/internal/database"
	"github.com/kozaktomas/facemood/internal/pipeline"
)

func TestRecognizeHandler_Image(t *testing.T) {
	tests := []struct {
		name         string
		path         string
		image        string
		wantOutcome  string
		wantLabel    string
		wantRecorded bool
	}{
		{"known face", "/api/v1/recognize", "ana.jpg", "embedded", "Ana Gómez", true},
		{"known face without recording", "/api/v1/recognize?record=false", "ana.jpg", "embedded", "Ana Gómez", false},
		{"stranger", "/api/v1/recognize", "luis.jpg", "embedded", "Unknown", false},
		{"no face", "/api/v1/recognize", "blank", "no_face", "Unknown", false},
		{"extraction failure", "/api/v1/recognize", "corrupt.jpg", "extraction_failed", "Unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			recorder := httptest.NewRecorder()
			env.recognize.Recognize(recorder, multipartRequest(t, tt.path, nil, []byte(tt.image)))

			assertStatusCode(t, recorder, http.StatusOK)
			var resp RecognizeResponse
			parseJSONResponse(t, recorder, &resp)

			if resp.Outcome != tt.wantOutcome {
				t.Errorf("expected outcome %s, got %s", tt.wantOutcome, resp.Outcome)
			}
			if resp.Match.Label != tt.wantLabel {
				t.Errorf("expected label %s, got %s", tt.wantLabel, resp.Match.Label)
			}
			if resp.Recorded != tt.wantRecorded {
				t.Errorf("expected recorded=%v, got %v", tt.wantRecorded, resp.Recorded)
			}

			events := env.store.Detections()
			if tt.wantRecorded {
				if len(events) != 1 || events[0].Emotion != "happy" || events[0].Confidence != 88 {
					t.Errorf("unexpected detections %+v", events)
				}
			} else if len(events) != 0 {
				t.Errorf("expected no detections, got %+v", events)
			}
		})
	}
}

func TestRecognizeHandler_Embedding(t *testing.T) {
	env := newTestEnv(t)

	recorder := httptest.NewRecorder()
	env.recognize.Recognize(recorder, jsonRequest(t, "POST", "/api/v1/recognize", RecognizeRequest{
		Embedding:  []float32{1, 0},
		Emotion:    "sad",
		Confidence: 61.5,
	}))

	assertStatusCode(t, recorder, http.StatusOK)
	var resp RecognizeResponse
	parseJSONResponse(t, recorder, &resp)
	if !resp.Match.Matched || resp.Match.IdentityID != 1 || !resp.Recorded {
		t.Errorf("expected recorded match with identity 1, got %+v", resp)
	}

	events := env.store.Detections()
	if len(events) != 1 || events[0].Emotion != "sad" || events[0].Confidence != 61.5 {
		t.Errorf("unexpected detections %+v", events)
	}
}

func TestRecognizeHandler_EmbeddingDefaultsToUnknownEmotion(t *testing.T) {
	env := newTestEnv(t)

	recorder := httptest.NewRecorder()
	env.recognize.Recognize(recorder, jsonRequest(t, "POST", "/api/v1/recognize", RecognizeRequest{Embedding: []float32{1, 0}}))

	assertStatusCode(t, recorder, http.StatusOK)
	events := env.store.Detections()
	if len(events) != 1 || events[0].Emotion != pipeline.UnknownEmotion || events[0].Confidence != 0 {
		t.Errorf("expected one Unknown detection, got %+v", events)
	}
}

func TestRecognizeHandler_Errors(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(env *testEnv)
		req    func(t *testing.T) *http.Request
		status int
	}{
		{
			name:   "missing embedding",
			req:    func(t *testing.T) *http.Request { return jsonRequest(t, "POST", "/api/v1/recognize", map[string]any{}) },
			status: http.StatusBadRequest,
		},
		{
			name: "wrong dimension",
			req: func(t *testing.T) *http.Request {
				return jsonRequest(t, "POST", "/api/v1/recognize", RecognizeRequest{Embedding: []float32{1, 0, 0}})
			},
			status: http.StatusUnprocessableEntity,
		},
		{
			name: "wrong dimension from image",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/api/v1/recognize", nil, []byte("three.jpg"))
			},
			status: http.StatusUnprocessableEntity,
		},
		{
			name:  "storage unavailable on record",
			setup: func(env *testEnv) { env.store.RecordDetectionError = database.ErrStorageUnavailable },
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/api/v1/recognize", nil, []byte("ana.jpg"))
			},
			status: http.StatusServiceUnavailable,
		},
		{
			name:   "missing image",
			req:    func(t *testing.T) *http.Request { return multipartRequest(t, "/api/v1/recognize", nil, nil) },
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			if tt.setup != nil {
				tt.setup(env)
			}
			recorder := httptest.NewRecorder()
			env.recognize.Recognize(recorder, tt.req(t))

			assertStatusCode(t, recorder, tt.status)
		})
	}
}

func TestRecognizeHandler_RefreshIndex(t *testing.T) {
	env := newTestEnv(t)
	env.store.AddIdentity(database.Identity{Name: "Luis", Surname: "Vega", Contact: "luis@example.com", Embedding: []float32{0, 1}})

	recorder := httptest.NewRecorder()
	env.recognize.RefreshIndex(recorder, httptest.NewRequest("POST", "/api/v1/index/refresh", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var resp IndexStatusResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.Identities != 2 || resp.LoadedAt == "" {
		t.Errorf("unexpected index status %+v", resp)
	}

	env.store.ListIdentitiesError = database.ErrStorageUnavailable
	recorder = httptest.NewRecorder()
	env.recognize.RefreshIndex(recorder, httptest.NewRequest("POST", "/api/v1/index/refresh", nil))
	assertStatusCode(t, recorder, http.StatusServiceUnavailable)
}
