package enrollment

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/kozaktomas/facemood/internal/database"
)

// DuplicatePair is two enrolled identities whose faces are closer than the duplicate threshold.
type DuplicatePair struct {
	First    database.Identity
	Second   database.Identity
	Distance float64
}

// AuditOptions controls a near-duplicate audit.
type AuditOptions struct {
	// Neighbors is the number of HNSW candidates inspected per identity.
	Neighbors int
	// IndexPath optionally persists the HNSW graph between audits.
	IndexPath string
	// Progress is called after each identity is inspected.
	Progress func(done, total int)
}

// Audit finds pairs of enrolled identities that would have been rejected as duplicates
// of each other, e.g. enrolled before the threshold was tightened. Candidates come from
// an HNSW graph; every reported distance is exact. Pairs are ordered by distance.
func (s *Service) Audit(ctx context.Context, opts AuditOptions) ([]DuplicatePair, error) {
	identities, err := s.store.ListIdentities(ctx)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	if len(identities) < 2 {
		return nil, nil
	}

	neighbors := opts.Neighbors
	if neighbors <= 0 {
		neighbors = database.HNSWDefaultCandidates
	}

	index, err := s.auditIndex(identities, opts.IndexPath)
	if err != nil {
		return nil, err
	}

	seen := make(map[[2]int64]bool)
	var pairs []DuplicatePair
	for i := range identities {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		self := identities[i]
		if len(self.Embedding) == 0 {
			continue
		}
		ids, distances, err := index.Search(self.Embedding, neighbors+1)
		if err != nil {
			return nil, fmt.Errorf("search neighbors of %d: %w", self.ID, err)
		}

		for j, id := range ids {
			if id == self.ID || distances[j] >= s.duplicateThreshold {
				continue
			}
			key := [2]int64{min(self.ID, id), max(self.ID, id)}
			if seen[key] {
				continue
			}
			seen[key] = true

			other := index.Get(id)
			if other == nil {
				continue
			}
			first, second := self, *other
			if first.ID > second.ID {
				first, second = second, first
			}
			pairs = append(pairs, DuplicatePair{First: first, Second: second, Distance: distances[j]})
		}

		if opts.Progress != nil {
			opts.Progress(i+1, len(identities))
		}
	}

	sort.SliceStable(pairs, func(a, b int) bool {
		return pairs[a].Distance < pairs[b].Distance
	})
	return pairs, nil
}

// auditIndex loads a persisted graph when it still describes identities, otherwise
// builds one and saves it when a path is configured.
func (s *Service) auditIndex(identities []database.Identity, path string) (*database.HNSWIndex, error) {
	index := database.NewHNSWIndex()

	if path != "" {
		if meta, err := database.LoadHNSWMetadata(path); err == nil && meta.IsFresh(identities) {
			err := index.Load(path, identities)
			if err == nil {
				return index, nil
			}
			log.Printf("Warning: failed to load HNSW index %s, rebuilding: %v", path, err)
		}
	}

	if err := index.Build(identities); err != nil {
		return nil, err
	}

	if path != "" {
		if err := index.SaveWithMetadata(path, database.MetadataFor(identities)); err != nil {
			log.Printf("Warning: failed to save HNSW index %s: %v", path, err)
		}
	}
	return index, nil
}
