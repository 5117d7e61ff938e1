package recognition

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kozaktomas/facemood/internal/database"
	"github.com/kozaktomas/facemood/internal/facematch"
)

// IdentityIndex is the cached snapshot of enrolled identities used on the recognition
// hot path. It does not see enrollments made after the last Refresh.
type IdentityIndex struct {
	store database.IdentityReader

	mu       sync.RWMutex
	index    *facematch.Index
	loadedAt time.Time
}

func NewIdentityIndex(store database.IdentityReader) *IdentityIndex {
	return &IdentityIndex{store: store}
}

// Refresh reloads every identity from storage and swaps the snapshot atomically.
// On failure the previous snapshot is kept.
func (x *IdentityIndex) Refresh(ctx context.Context) error {
	identities, err := x.store.ListIdentities(ctx)
	if err != nil {
		return fmt.Errorf("load identities: %w", err)
	}

	index, err := facematch.NewIndex(database.IndexEntries(identities))
	if err != nil {
		return fmt.Errorf("build identity index: %w", err)
	}

	x.mu.Lock()
	x.index = index
	x.loadedAt = time.Now()
	x.mu.Unlock()
	return nil
}

// Snapshot returns the current immutable index; nil before the first Refresh.
func (x *IdentityIndex) Snapshot() *facematch.Index {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.index
}

// Len returns the number of identities in the snapshot.
func (x *IdentityIndex) Len() int {
	return x.Snapshot().Len()
}

// LoadedAt returns when the snapshot was last refreshed.
func (x *IdentityIndex) LoadedAt() time.Time {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.loadedAt
}

// Recognize matches embedding against the current snapshot.
func (x *IdentityIndex) Recognize(embedding []float32, threshold float64) (MatchResult, error) {
	return Recognize(x.Snapshot(), embedding, threshold)
}
