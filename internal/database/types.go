package database

import (
	"time"
)

// Identity represents an enrolled person stored in the database
type Identity struct {
	ID        int64
	Name      string
	Surname   string
	Contact   string // Unique across identities (normalized: trimmed, lowercase)
	Embedding []float32
	CreatedAt time.Time
}

// Label returns the display name used in recognition results.
func (i *Identity) Label() string {
	switch {
	case i.Surname == "":
		return i.Name
	case i.Name == "":
		return i.Surname
	}
	return i.Name + " " + i.Surname
}

// NewIdentity is the input for enrolling an identity. ID and CreatedAt are assigned by storage.
type NewIdentity struct {
	Name      string
	Surname   string
	Contact   string
	Embedding []float32
}

// DetectionEvent represents one recognized frame with its emotion tag
type DetectionEvent struct {
	ID         int64
	IdentityID int64
	Emotion    string
	Confidence float64 // 0-100 as reported by the classifier
	SessionID  string  // Capture session or API request (may be empty)
	DetectedAt time.Time
}

// NewDetection is the input for recording a detection event.
type NewDetection struct {
	IdentityID int64
	Emotion    string
	Confidence float64
	SessionID  string
}

// EnrollGuard inspects the identities persisted at the instant of an enrollment
// and returns a non-nil error to abort it. Stores call it while holding their
// enrollment lock, so nothing can be inserted between the check and the write.
type EnrollGuard func(existing []Identity) error

// Setting keys stored in the settings table
const (
	SettingEmbeddingDim = "embedding_dim"
)
