package enrollment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kozaktomas/facemood/internal/database"
	"github.com/kozaktomas/facemood/internal/facematch"
)

var (
	// ErrDuplicateFace is returned when an enrolled face is closer than the duplicate threshold.
	ErrDuplicateFace = errors.New("face is already enrolled")
	// ErrInvalidRequest is returned for missing or malformed enrollment fields.
	ErrInvalidRequest = errors.New("invalid enrollment request")
)

// DuplicateFaceError identifies the enrolled identity that blocked an enrollment.
type DuplicateFaceError struct {
	IdentityID int64
	Label      string
	Distance   float64
}

func (e *DuplicateFaceError) Error() string {
	return fmt.Sprintf("%s: matches identity %d (%s) at distance %.4f", ErrDuplicateFace, e.IdentityID, e.Label, e.Distance)
}

func (e *DuplicateFaceError) Is(target error) bool {
	return target == ErrDuplicateFace
}

// ImageEmbedder produces an embedding for a raw image, failing when no face is usable.
type ImageEmbedder interface {
	Embed(ctx context.Context, image []byte) ([]float32, error)
}

// Request holds the identity fields to enroll.
type Request struct {
	Name      string    `json:"name"`
	Surname   string    `json:"surname"`
	Contact   string    `json:"contact"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// Service enrolls identities, rejecting faces that are already enrolled.
type Service struct {
	store              database.IdentityWriter
	embedder           ImageEmbedder
	dim                int
	duplicateThreshold float64
}

// NewService creates an enrollment service. dim is the deployment's embedding length;
// 0 disables the length check. embedder may be nil when only raw embeddings are enrolled.
func NewService(store database.IdentityWriter, embedder ImageEmbedder, dim int, duplicateThreshold float64) *Service {
	return &Service{
		store:              store,
		embedder:           embedder,
		dim:                dim,
		duplicateThreshold: duplicateThreshold,
	}
}

// DuplicateThreshold returns the distance below which two faces are considered the same.
func (s *Service) DuplicateThreshold() float64 {
	return s.duplicateThreshold
}

// Enroll validates req, checks it against every persisted identity and inserts it.
// The duplicate check runs inside the store's enrollment lock, so two concurrent
// enrollments of the same face cannot both pass it.
func (s *Service) Enroll(ctx context.Context, req Request) (int64, error) {
	identity, err := s.validate(req)
	if err != nil {
		return 0, err
	}

	id, err := s.store.EnrollIdentity(ctx, identity, s.duplicateGuard(identity.Embedding))
	if err != nil {
		return 0, fmt.Errorf("enroll %s: %w", identity.Contact, err)
	}
	return id, nil
}

// EnrollImage extracts the embedding from image and enrolls it. A frame without
// a usable face aborts with the pipeline error and nothing is written.
func (s *Service) EnrollImage(ctx context.Context, req Request, image []byte) (int64, error) {
	if s.embedder == nil {
		return 0, errors.New("enrollment from images is not configured")
	}
	if _, err := validateFields(req); err != nil {
		return 0, err
	}

	vec, err := s.embedder.Embed(ctx, image)
	if err != nil {
		return 0, err
	}
	req.Embedding = vec
	return s.Enroll(ctx, req)
}

func (s *Service) validate(req Request) (database.NewIdentity, error) {
	identity, err := validateFields(req)
	if err != nil {
		return identity, err
	}
	if len(identity.Embedding) == 0 {
		return identity, fmt.Errorf("%w: embedding required", ErrInvalidRequest)
	}
	if s.dim > 0 {
		if err := facematch.CheckDimension(identity.Embedding, s.dim); err != nil {
			return identity, err
		}
	}
	return identity, nil
}

func validateFields(req Request) (database.NewIdentity, error) {
	identity := database.NewIdentity{
		Name:      strings.TrimSpace(req.Name),
		Surname:   strings.TrimSpace(req.Surname),
		Contact:   facematch.NormalizeContact(req.Contact),
		Embedding: req.Embedding,
	}

	var missing []string
	if identity.Name == "" {
		missing = append(missing, "name")
	}
	if identity.Surname == "" {
		missing = append(missing, "surname")
	}
	if identity.Contact == "" {
		missing = append(missing, "contact")
	}
	if len(missing) > 0 {
		return identity, fmt.Errorf("%w: %s required", ErrInvalidRequest, strings.Join(missing, ", "))
	}
	return identity, nil
}

// duplicateGuard rejects embedding when its nearest persisted identity is closer
// than the duplicate threshold.
func (s *Service) duplicateGuard(embedding []float32) database.EnrollGuard {
	return func(existing []database.Identity) error {
		index, err := facematch.NewIndex(database.IndexEntries(existing))
		if err != nil {
			return fmt.Errorf("stored identities: %w", err)
		}
		match, ok, err := index.Nearest(embedding)
		if err != nil {
			return err
		}
		if ok && match.Distance < s.duplicateThreshold {
			return &DuplicateFaceError{
				IdentityID: match.Entry.ID,
				Label:      match.Entry.Label,
				Distance:   match.Distance,
			}
		}
		return nil
	}
}
