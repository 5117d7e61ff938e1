package reporting

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/facemood/internal/database"
	"github.com/kozaktomas/facemood/internal/database/mock"
)

var base = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func seededStore(t *testing.T) (*mock.MockStore, int64) {
	t.Helper()
	store := mock.NewMockStore()
	id := store.AddIdentity(database.Identity{Name: "Ana", Surname: "Gómez", Contact: "ana@example.com", Embedding: []float32{1, 0}})
	other := store.AddIdentity(database.Identity{Name: "Luis", Surname: "Vega", Contact: "luis@example.com", Embedding: []float32{0, 1}})

	events := []struct {
		emotion    string
		confidence float64
	}{
		{"happy", 90}, {"sad", 60}, {"happy", 90}, {"sad", 60}, {"happy", 90},
	}
	for i, e := range events {
		store.AddDetection(database.DetectionEvent{
			IdentityID: id,
			Emotion:    e.emotion,
			Confidence: e.confidence,
			DetectedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	store.AddDetection(database.DetectionEvent{IdentityID: other, Emotion: "angry", Confidence: 40, DetectedAt: base})
	return store, id
}

func TestHistory_MostRecentFirst(t *testing.T) {
	store, id := seededStore(t)
	svc := NewService(store)

	events, err := svc.History(context.Background(), id)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(events) != 5 {
		t.Fatalf("expected 5 events, got %d", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].DetectedAt.After(events[i-1].DetectedAt) {
			t.Errorf("event %d is newer than event %d", i, i-1)
		}
	}
	if !events[0].DetectedAt.Equal(base.Add(4 * time.Minute)) {
		t.Errorf("expected newest event first, got %v", events[0].DetectedAt)
	}
}

func TestEmotionCounts(t *testing.T) {
	store, id := seededStore(t)
	svc := NewService(store)

	counts, err := svc.EmotionCounts(context.Background(), id)
	if err != nil {
		t.Fatalf("EmotionCounts failed: %v", err)
	}
	if len(counts) != 2 || counts["happy"] != 3 || counts["sad"] != 2 {
		t.Errorf("expected happy=3 sad=2, got %v", counts)
	}
}

func TestMeanConfidenceByEmotion(t *testing.T) {
	store, id := seededStore(t)
	svc := NewService(store)

	means, err := svc.MeanConfidenceByEmotion(context.Background(), id)
	if err != nil {
		t.Fatalf("MeanConfidenceByEmotion failed: %v", err)
	}
	tests := map[string]float64{"happy": 90, "sad": 60}
	for label, want := range tests {
		if math.Abs(means[label]-want) > 1e-9 {
			t.Errorf("mean[%s]: expected %f, got %f", label, want, means[label])
		}
	}
}

func TestNoEvents(t *testing.T) {
	store := mock.NewMockStore()
	id := store.AddIdentity(database.Identity{Name: "Eva", Contact: "eva@example.com", Embedding: []float32{1, 0}})
	svc := NewService(store)
	ctx := context.Background()

	counts, err := svc.EmotionCounts(ctx, id)
	if err != nil || len(counts) != 0 {
		t.Errorf("expected empty counts, got %v (err %v)", counts, err)
	}
	means, err := svc.MeanConfidenceByEmotion(ctx, id)
	if err != nil || len(means) != 0 {
		t.Errorf("expected empty means, got %v (err %v)", means, err)
	}

	report, err := svc.Summary(ctx, id)
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if report.Total != 0 || report.FirstSeen != nil || report.LastSeen != nil || report.DominantEmotion != "" {
		t.Errorf("expected empty report, got %+v", report)
	}
}

func TestSummary(t *testing.T) {
	store, id := seededStore(t)
	svc := NewService(store)

	report, err := svc.Summary(context.Background(), id)
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if report.Label != "Ana Gómez" || report.Total != 5 {
		t.Errorf("unexpected report header %+v", report)
	}
	if report.DominantEmotion != "happy" {
		t.Errorf("expected dominant happy, got %q", report.DominantEmotion)
	}
	if report.FirstSeen == nil || !report.FirstSeen.Equal(base) {
		t.Errorf("expected first seen %v, got %v", base, report.FirstSeen)
	}
	if report.LastSeen == nil || !report.LastSeen.Equal(base.Add(4*time.Minute)) {
		t.Errorf("expected last seen %v, got %v", base.Add(4*time.Minute), report.LastSeen)
	}
}

func TestDominant_TieIsAlphabetical(t *testing.T) {
	if got := dominant(map[string]int{"sad": 2, "happy": 2, "fear": 1}); got != "happy" {
		t.Errorf("expected happy, got %q", got)
	}
}

func TestUnknownIdentity(t *testing.T) {
	svc := NewService(mock.NewMockStore())
	ctx := context.Background()

	if _, err := svc.History(ctx, 42); !errors.Is(err, database.ErrIdentityNotFound) {
		t.Errorf("History: expected ErrIdentityNotFound, got %v", err)
	}
	if _, err := svc.EmotionCounts(ctx, 42); !errors.Is(err, database.ErrIdentityNotFound) {
		t.Errorf("EmotionCounts: expected ErrIdentityNotFound, got %v", err)
	}
	if _, err := svc.Summary(ctx, 42); !errors.Is(err, database.ErrIdentityNotFound) {
		t.Errorf("Summary: expected ErrIdentityNotFound, got %v", err)
	}
}

func TestStorageError(t *testing.T) {
	store, id := seededStore(t)
	store.ListDetectionsError = database.ErrStorageUnavailable
	svc := NewService(store)

	if _, err := svc.History(context.Background(), id); !errors.Is(err, database.ErrStorageUnavailable) {
		t.Errorf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestWriteCSV(t *testing.T) {
	events := []database.DetectionEvent{
		{ID: 2, IdentityID: 1, Emotion: "sad", Confidence: 60, SessionID: "s-1", DetectedAt: base.Add(time.Minute)},
		{ID: 1, IdentityID: 1, Emotion: "happy", Confidence: 90.456, DetectedAt: base},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, events); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	want := strings.Join([]string{
		"id,identity_id,emotion,confidence,session_id,detected_at",
		"2,1,sad,60.00,s-1,2026-03-14T09:01:00Z",
		"1,1,happy,90.46,,2026-03-14T09:00:00Z",
		"",
	}, "\n")
	if buf.String() != want {
		t.Errorf("unexpected CSV:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	if buf.String() != "id,identity_id,emotion,confidence,session_id,detected_at\n" {
		t.Errorf("expected header only, got %q", buf.String())
	}
}
