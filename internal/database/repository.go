package database

import (
	"context"
)

// IdentityReader provides read-only access to enrolled identities
type IdentityReader interface {
	// ListIdentities returns all identities ordered by ID (enrollment order)
	ListIdentities(ctx context.Context) ([]Identity, error)
	// GetIdentity retrieves an identity by ID, returns ErrIdentityNotFound if missing
	GetIdentity(ctx context.Context, id int64) (*Identity, error)
	// CountIdentities returns the total number of enrolled identities
	CountIdentities(ctx context.Context) (int, error)
}

// IdentityWriter provides write access to identities
type IdentityWriter interface {
	IdentityReader

	// EnrollIdentity inserts a new identity atomically with respect to other enrollments.
	// The guard sees every identity persisted at that instant; if it returns an error
	// nothing is written and that error is returned unchanged.
	// A contact that already exists yields ErrDuplicateContact.
	EnrollIdentity(ctx context.Context, identity NewIdentity, guard EnrollGuard) (int64, error)

	// DeleteIdentity removes an identity together with its detection events.
	// Returns ErrIdentityNotFound if no identity has that ID.
	DeleteIdentity(ctx context.Context, id int64) error
}

// DetectionReader provides read-only access to detection events
type DetectionReader interface {
	// ListDetections returns events for an identity, most recent first
	ListDetections(ctx context.Context, identityID int64) ([]DetectionEvent, error)
	// CountDetections returns the total number of detection events
	CountDetections(ctx context.Context) (int, error)
}

// DetectionWriter provides write access to detection events
type DetectionWriter interface {
	DetectionReader

	// RecordDetection appends an immutable detection event and returns its ID
	RecordDetection(ctx context.Context, event NewDetection) (int64, error)
}

// Store is the full storage contract implemented by every backend
type Store interface {
	IdentityWriter
	DetectionWriter

	// EnsureEmbeddingDim records the deployment's embedding dimensionality on first use
	// and returns facematch.ErrDimensionMismatch if a different one was recorded before.
	EnsureEmbeddingDim(ctx context.Context, dim int) error

	// Close releases the underlying connections
	Close() error
}
