// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/facemood/internal/database"
	"github.com/kozaktomas/facemood/internal/facematch"
)

// MockStore is an in-memory implementation of database.Store
type MockStore struct {
	mu           sync.RWMutex
	identities   []database.Identity
	detections   []database.DetectionEvent
	nextID       int64
	nextEventID  int64
	embeddingDim int
	closed       bool

	// Now supplies timestamps; defaults to time.Now
	Now func() time.Time

	// Error injection
	ListIdentitiesError  error
	GetIdentityError     error
	CountIdentitiesError error
	EnrollError          error
	DeleteError          error
	ListDetectionsError  error
	CountDetectionsError error
	RecordDetectionError error
	EnsureDimError       error
}

// NewMockStore creates a new empty mock store
func NewMockStore() *MockStore {
	return &MockStore{
		nextID:      1,
		nextEventID: 1,
	}
}

var _ database.Store = (*MockStore)(nil)

func (m *MockStore) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// AddIdentity adds an identity directly, bypassing the enrollment guard.
// Returns the assigned ID.
func (m *MockStore) AddIdentity(identity database.Identity) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if identity.ID == 0 {
		identity.ID = m.nextID
	}
	if identity.ID >= m.nextID {
		m.nextID = identity.ID + 1
	}
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = m.now()
	}
	m.identities = append(m.identities, identity)
	return identity.ID
}

// AddDetection adds a detection event directly with the given timestamp.
func (m *MockStore) AddDetection(event database.DetectionEvent) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if event.ID == 0 {
		event.ID = m.nextEventID
	}
	if event.ID >= m.nextEventID {
		m.nextEventID = event.ID + 1
	}
	m.detections = append(m.detections, event)
	return event.ID
}

// Detections returns a copy of all recorded detection events in insertion order
func (m *MockStore) Detections() []database.DetectionEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.DetectionEvent, len(m.detections))
	copy(out, m.detections)
	return out
}

// EmbeddingDim returns the dimensionality recorded by EnsureEmbeddingDim
func (m *MockStore) EmbeddingDim() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.embeddingDim
}

// Closed reports whether Close was called
func (m *MockStore) Closed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// ListIdentities returns all identities ordered by ID
func (m *MockStore) ListIdentities(ctx context.Context) ([]database.Identity, error) {
	if m.ListIdentitiesError != nil {
		return nil, m.ListIdentitiesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedIdentities(), nil
}

func (m *MockStore) sortedIdentities() []database.Identity {
	out := make([]database.Identity, len(m.identities))
	copy(out, m.identities)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetIdentity retrieves an identity by ID
func (m *MockStore) GetIdentity(ctx context.Context, id int64) (*database.Identity, error) {
	if m.GetIdentityError != nil {
		return nil, m.GetIdentityError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.identities {
		if m.identities[i].ID == id {
			identity := m.identities[i]
			return &identity, nil
		}
	}
	return nil, fmt.Errorf("identity %d: %w", id, database.ErrIdentityNotFound)
}

// CountIdentities returns the number of identities
func (m *MockStore) CountIdentities(ctx context.Context) (int, error) {
	if m.CountIdentitiesError != nil {
		return 0, m.CountIdentitiesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.identities), nil
}

// EnrollIdentity runs the guard and inserts under the store lock
func (m *MockStore) EnrollIdentity(ctx context.Context, identity database.NewIdentity, guard database.EnrollGuard) (int64, error) {
	if m.EnrollError != nil {
		return 0, m.EnrollError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if guard != nil {
		if err := guard(m.sortedIdentities()); err != nil {
			return 0, err
		}
	}

	for i := range m.identities {
		if m.identities[i].Contact == identity.Contact {
			return 0, fmt.Errorf("insert identity: %w", database.ErrDuplicateContact)
		}
	}

	id := m.nextID
	m.nextID++
	embedding := make([]float32, len(identity.Embedding))
	copy(embedding, identity.Embedding)
	m.identities = append(m.identities, database.Identity{
		ID:        id,
		Name:      identity.Name,
		Surname:   identity.Surname,
		Contact:   identity.Contact,
		Embedding: embedding,
		CreatedAt: m.now(),
	})
	return id, nil
}

// DeleteIdentity removes an identity and its detection events
func (m *MockStore) DeleteIdentity(ctx context.Context, id int64) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := -1
	for i := range m.identities {
		if m.identities[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("identity %d: %w", id, database.ErrIdentityNotFound)
	}
	m.identities = append(m.identities[:idx], m.identities[idx+1:]...)

	kept := m.detections[:0]
	for _, e := range m.detections {
		if e.IdentityID != id {
			kept = append(kept, e)
		}
	}
	m.detections = kept
	return nil
}

// ListDetections returns events for an identity, most recent first
func (m *MockStore) ListDetections(ctx context.Context, identityID int64) ([]database.DetectionEvent, error) {
	if m.ListDetectionsError != nil {
		return nil, m.ListDetectionsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var events []database.DetectionEvent
	for _, e := range m.detections {
		if e.IdentityID == identityID {
			events = append(events, e)
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].DetectedAt.Equal(events[j].DetectedAt) {
			return events[i].ID > events[j].ID
		}
		return events[i].DetectedAt.After(events[j].DetectedAt)
	})
	return events, nil
}

// CountDetections returns the number of detection events
func (m *MockStore) CountDetections(ctx context.Context) (int, error) {
	if m.CountDetectionsError != nil {
		return 0, m.CountDetectionsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.detections), nil
}

// RecordDetection appends a detection event
func (m *MockStore) RecordDetection(ctx context.Context, event database.NewDetection) (int64, error) {
	if m.RecordDetectionError != nil {
		return 0, m.RecordDetectionError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextEventID
	m.nextEventID++
	m.detections = append(m.detections, database.DetectionEvent{
		ID:         id,
		IdentityID: event.IdentityID,
		Emotion:    event.Emotion,
		Confidence: event.Confidence,
		SessionID:  event.SessionID,
		DetectedAt: m.now(),
	})
	return id, nil
}

// EnsureEmbeddingDim records dim on first call and rejects a different one later
func (m *MockStore) EnsureEmbeddingDim(ctx context.Context, dim int) error {
	if m.EnsureDimError != nil {
		return m.EnsureDimError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.embeddingDim == 0 {
		m.embeddingDim = dim
		return nil
	}
	if m.embeddingDim != dim {
		return fmt.Errorf("%w: store has %d, configured %d", facematch.ErrDimensionMismatch, m.embeddingDim, dim)
	}
	return nil
}

// Close marks the store closed
func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
