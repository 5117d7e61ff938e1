package enrollment

import (
	"context"
	"database/sql/driver"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"github.com/kozaktomas/facemood/internal/database"
	"github.com/kozaktomas/facemood/internal/database/mock"
	"github.com/kozaktomas/facemood/internal/facematch"
	"github.com/kozaktomas/facemood/internal/pipeline"
)

const threshold = 0.35

// unitAt returns a 2D unit vector at cosine distance d from (1, 0).
func unitAt(d float64) []float32 {
	theta := math.Acos(1 - d)
	return []float32{float32(math.Cos(theta)), float32(math.Sin(theta))}
}

func request(contact string, embedding []float32) Request {
	return Request{Name: "Ana", Surname: "Gómez", Contact: contact, Embedding: embedding}
}

func TestEnroll_Success(t *testing.T) {
	store := mock.NewMockStore()
	svc := NewService(store, nil, 2, threshold)

	id, err := svc.Enroll(context.Background(), Request{
		Name:      "  Ana ",
		Surname:   "Gómez",
		Contact:   " Ana@Example.COM ",
		Embedding: unitAt(0),
	})
	if err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}

	identity, err := store.GetIdentity(context.Background(), id)
	if err != nil {
		t.Fatalf("GetIdentity failed: %v", err)
	}
	if identity.Name != "Ana" || identity.Contact != "ana@example.com" {
		t.Errorf("expected trimmed and normalized fields, got %+v", identity)
	}
}

func TestEnroll_DuplicateDecision(t *testing.T) {
	tests := []struct {
		name      string
		distance  float64
		threshold float64
		wantDup   bool
	}{
		{"close face rejected", 0.1, threshold, true},
		{"distant face accepted", 0.5, threshold, false},
		{"identical face rejected", 0, threshold, true},
		{"independent lower threshold accepts", 0.1, 0.05, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := mock.NewMockStore()
			svc := NewService(store, nil, 2, tt.threshold)

			firstID, err := svc.Enroll(ctx, request("first@example.com", unitAt(0)))
			if err != nil {
				t.Fatalf("first Enroll failed: %v", err)
			}

			_, err = svc.Enroll(ctx, request("second@example.com", unitAt(tt.distance)))
			count, _ := store.CountIdentities(ctx)

			if !tt.wantDup {
				if err != nil {
					t.Fatalf("second Enroll failed: %v", err)
				}
				if count != 2 {
					t.Errorf("expected 2 identities, got %d", count)
				}
				return
			}

			if !errors.Is(err, ErrDuplicateFace) {
				t.Fatalf("expected ErrDuplicateFace, got %v", err)
			}
			var dup *DuplicateFaceError
			if !errors.As(err, &dup) {
				t.Fatalf("expected *DuplicateFaceError, got %T", err)
			}
			if dup.IdentityID != firstID {
				t.Errorf("expected match with %d, got %d", firstID, dup.IdentityID)
			}
			if math.Abs(dup.Distance-tt.distance) > 1e-5 {
				t.Errorf("expected distance %.2f, got %v", tt.distance, dup.Distance)
			}
			if count != 1 {
				t.Errorf("expected no record written, got %d identities", count)
			}
		})
	}
}

func TestEnroll_DuplicateContact(t *testing.T) {
	ctx := context.Background()
	store := mock.NewMockStore()
	svc := NewService(store, nil, 2, threshold)

	if _, err := svc.Enroll(ctx, request("same@example.com", unitAt(0))); err != nil {
		t.Fatalf("first Enroll failed: %v", err)
	}

	_, err := svc.Enroll(ctx, request("SAME@example.com", unitAt(1.5)))
	if !errors.Is(err, database.ErrDuplicateContact) {
		t.Fatalf("expected ErrDuplicateContact, got %v", err)
	}
	if errors.Is(err, ErrDuplicateFace) {
		t.Error("dissimilar faces must not be reported as duplicate faces")
	}
}

func TestEnroll_Validation(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantErr error
	}{
		{"missing name", Request{Surname: "G", Contact: "a@b.c", Embedding: unitAt(0)}, ErrInvalidRequest},
		{"missing surname", Request{Name: "A", Contact: "a@b.c", Embedding: unitAt(0)}, ErrInvalidRequest},
		{"blank contact", Request{Name: "A", Surname: "G", Contact: "   ", Embedding: unitAt(0)}, ErrInvalidRequest},
		{"missing embedding", Request{Name: "A", Surname: "G", Contact: "a@b.c"}, ErrInvalidRequest},
		{"wrong dimension", Request{Name: "A", Surname: "G", Contact: "a@b.c", Embedding: []float32{1, 0, 0}}, facematch.ErrDimensionMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := mock.NewMockStore()
			svc := NewService(store, nil, 2, threshold)

			if _, err := svc.Enroll(context.Background(), tt.req); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if count, _ := store.CountIdentities(context.Background()); count != 0 {
				t.Errorf("expected nothing written, got %d", count)
			}
		})
	}
}

func TestEnroll_MixedStoredDimensions(t *testing.T) {
	store := mock.NewMockStore()
	store.AddIdentity(database.Identity{Name: "Old", Surname: "Model", Contact: "old@example.com", Embedding: []float32{1, 0, 0}})
	svc := NewService(store, nil, 0, threshold)

	_, err := svc.Enroll(context.Background(), request("new@example.com", unitAt(0.5)))
	if !errors.Is(err, facematch.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestEnroll_StorageUnavailable(t *testing.T) {
	store := mock.NewMockStore()
	store.EnrollError = database.StorageError("insert identity", driver.ErrBadConn)
	svc := NewService(store, nil, 2, threshold)

	_, err := svc.Enroll(context.Background(), request("a@example.com", unitAt(0)))
	if !errors.Is(err, database.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestEnroll_ConcurrentSameFace(t *testing.T) {
	ctx := context.Background()
	store := mock.NewMockStore()
	svc := NewService(store, nil, 2, threshold)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			contact := string(rune('a'+i)) + "@example.com"
			_, errs[i] = svc.Enroll(ctx, request(contact, unitAt(0.01*float64(i%2))))
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case !errors.Is(err, ErrDuplicateFace):
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("expected exactly 1 enrollment to succeed, got %d", succeeded)
	}
}

type stubEmbedder struct {
	vec []float32
	err error
}

func (e stubEmbedder) Embed(context.Context, []byte) ([]float32, error) {
	return e.vec, e.err
}

func TestEnrollImage(t *testing.T) {
	tests := []struct {
		name     string
		embedder ImageEmbedder
		wantErr  error
		stored   int
	}{
		{"face embedded", stubEmbedder{vec: unitAt(0)}, nil, 1},
		{"no face aborts", stubEmbedder{err: pipeline.ErrNoFaceDetected}, pipeline.ErrNoFaceDetected, 0},
		{"extraction failure aborts", stubEmbedder{err: pipeline.ErrExtractionFailed}, pipeline.ErrExtractionFailed, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := mock.NewMockStore()
			svc := NewService(store, tt.embedder, 2, threshold)

			_, err := svc.EnrollImage(context.Background(), request("a@example.com", nil), []byte("jpeg"))
			if tt.wantErr == nil && err != nil {
				t.Fatalf("EnrollImage failed: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if count, _ := store.CountIdentities(context.Background()); count != tt.stored {
				t.Errorf("expected %d identities, got %d", tt.stored, count)
			}
		})
	}
}

func TestEnrollImage_ValidatesBeforeExtraction(t *testing.T) {
	svc := NewService(mock.NewMockStore(), stubEmbedder{err: errors.New("must not be called")}, 2, threshold)

	_, err := svc.EnrollImage(context.Background(), Request{Name: "A"}, []byte("jpeg"))
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestEnrollImage_NotConfigured(t *testing.T) {
	svc := NewService(mock.NewMockStore(), nil, 2, threshold)
	if _, err := svc.EnrollImage(context.Background(), request("a@example.com", nil), []byte("jpeg")); err == nil {
		t.Error("expected error without an embedder")
	}
}

// basis returns the i-th standard basis vector of length dim, nudged by eps along the next axis.
func basis(dim, i int, eps float32) []float32 {
	v := make([]float32, dim)
	v[i] = 1
	v[(i+1)%dim] = eps
	return v
}

func TestAudit(t *testing.T) {
	ctx := context.Background()
	store := mock.NewMockStore()
	for i := range 6 {
		store.AddIdentity(database.Identity{Name: "P", Surname: string(rune('A' + i)), Contact: string(rune('a'+i)) + "@x", Embedding: basis(8, i, 0)})
	}
	// Planted near-duplicates of identities 1 and 4.
	nearFirst := store.AddIdentity(database.Identity{Name: "Q", Surname: "A", Contact: "qa@x", Embedding: basis(8, 0, 0.05)})
	nearFourth := store.AddIdentity(database.Identity{Name: "Q", Surname: "D", Contact: "qd@x", Embedding: basis(8, 3, 0.3)})

	svc := NewService(store, nil, 8, threshold)
	indexPath := filepath.Join(t.TempDir(), "audit.hnsw")

	progress := 0
	pairs, err := svc.Audit(ctx, AuditOptions{Neighbors: 4, IndexPath: indexPath, Progress: func(done, total int) {
		progress = done
		if total != 8 {
			t.Errorf("expected total 8, got %d", total)
		}
	}})
	if err != nil {
		t.Fatalf("Audit failed: %v", err)
	}
	if progress != 8 {
		t.Errorf("expected progress to reach 8, got %d", progress)
	}

	if len(pairs) != 2 {
		t.Fatalf("expected 2 duplicate pairs, got %d: %+v", len(pairs), pairs)
	}
	if pairs[0].First.ID != 1 || pairs[0].Second.ID != nearFirst {
		t.Errorf("expected closest pair (1, %d), got (%d, %d)", nearFirst, pairs[0].First.ID, pairs[0].Second.ID)
	}
	if pairs[1].First.ID != 4 || pairs[1].Second.ID != nearFourth {
		t.Errorf("expected second pair (4, %d), got (%d, %d)", nearFourth, pairs[1].First.ID, pairs[1].Second.ID)
	}
	if pairs[0].Distance >= pairs[1].Distance {
		t.Errorf("expected pairs ordered by distance, got %v then %v", pairs[0].Distance, pairs[1].Distance)
	}

	// A second audit reuses the persisted graph and reports the same pairs.
	again, err := svc.Audit(ctx, AuditOptions{Neighbors: 4, IndexPath: indexPath})
	if err != nil {
		t.Fatalf("second Audit failed: %v", err)
	}
	if len(again) != 2 {
		t.Errorf("expected 2 pairs from persisted index, got %d", len(again))
	}
}

func TestAudit_TooFewIdentities(t *testing.T) {
	store := mock.NewMockStore()
	store.AddIdentity(database.Identity{Name: "A", Surname: "B", Contact: "a@x", Embedding: unitAt(0)})

	pairs, err := NewService(store, nil, 2, threshold).Audit(context.Background(), AuditOptions{})
	if err != nil || len(pairs) != 0 {
		t.Errorf("expected no pairs and no error, got %v, %v", pairs, err)
	}
}
