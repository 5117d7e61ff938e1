package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/facemood/internal/facematch"
)

// HNSWIndexMetadata stores metadata for validating cached HNSW indexes.
type HNSWIndexMetadata struct {
	IdentityCount int64     `json:"identity_count"`
	MaxIdentityID int64     `json:"max_identity_id"`
	BuildTime     time.Time `json:"build_time"`
	Version       int       `json:"version"`
}

const hnswMetadataVersion = 1

// ErrHNSWNotBuilt is returned when searching an index with no graph.
var ErrHNSWNotBuilt = errors.New("index not initialized")

// HNSWIndex wraps an HNSW graph over identity embeddings. It is only used to
// generate near-duplicate candidates; distances it reports are recomputed exactly.
type HNSWIndex struct {
	graph      *hnsw.Graph[int64]
	idToEntity map[int64]*Identity
	mu         sync.RWMutex
}

// NewHNSWIndex creates a new empty HNSW index.
func NewHNSWIndex() *HNSWIndex {
	return &HNSWIndex{
		idToEntity: make(map[int64]*Identity),
	}
}

func newGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors)
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.CosineDistance
	return g
}

// Build builds the index from identities. Identities must share one dimensionality.
func (h *HNSWIndex) Build(identities []Identity) error {
	if _, err := facematch.NewIndex(IndexEntries(identities)); err != nil {
		return fmt.Errorf("building HNSW index: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.idToEntity = make(map[int64]*Identity, len(identities))
	if len(identities) == 0 {
		h.graph = nil
		return nil
	}

	g := newGraph()
	for i := range identities {
		identity := &identities[i]
		if len(identity.Embedding) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(identity.ID, identity.Embedding))
		h.idToEntity[identity.ID] = identity
	}

	h.graph = g
	return nil
}

// Search finds up to k approximate nearest neighbors of query.
// Returns identity IDs and their exact cosine distances.
func (h *HNSWIndex) Search(query []float32, k int) ([]int64, []float64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil {
		return nil, nil, ErrHNSWNotBuilt
	}

	neighbors := h.graph.Search(query, k)
	ids := make([]int64, 0, len(neighbors))
	distances := make([]float64, 0, len(neighbors))

	for _, n := range neighbors {
		d, err := facematch.Distance(query, n.Value)
		if err != nil {
			return nil, nil, err
		}
		ids = append(ids, n.Key)
		distances = append(distances, d)
	}

	return ids, distances, nil
}

// Get returns the identity for a given ID.
func (h *HNSWIndex) Get(id int64) *Identity {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.idToEntity[id]
}

// Count returns the number of indexed identities.
func (h *HNSWIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.idToEntity)
}

// SaveWithMetadata persists the graph to path and metadata to path+".meta".
func (h *HNSWIndex) SaveWithMetadata(path string, metadata HNSWIndexMetadata) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil {
		// Remove existing files if index is empty (best-effort cleanup).
		_ = os.Remove(path)
		_ = os.Remove(path + ".meta")
		return nil
	}

	f, err := os.Create(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create HNSW index file: %w", err)
	}
	defer f.Close()

	if err := h.graph.Export(f); err != nil {
		return fmt.Errorf("failed to export HNSW graph: %w", err)
	}

	metadata.Version = hnswMetadataVersion
	metaData, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := os.WriteFile(path+".meta", metaData, 0600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}

	return nil
}

// LoadHNSWMetadata loads metadata from a separate .meta file.
func LoadHNSWMetadata(path string) (HNSWIndexMetadata, error) {
	var metadata HNSWIndexMetadata

	data, err := os.ReadFile(path + ".meta") //nolint:gosec // path is from trusted config
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata file: %w", err)
	}

	if err := json.Unmarshal(data, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return metadata, nil
}

// IsFresh reports whether metadata describes the given identity set.
func (m HNSWIndexMetadata) IsFresh(identities []Identity) bool {
	if m.Version != hnswMetadataVersion || m.IdentityCount != int64(len(identities)) {
		return false
	}
	var maxID int64
	for i := range identities {
		maxID = max(maxID, identities[i].ID)
	}
	return m.MaxIdentityID == maxID
}

// MetadataFor returns the metadata describing identities at the current time.
func MetadataFor(identities []Identity) HNSWIndexMetadata {
	var maxID int64
	for i := range identities {
		maxID = max(maxID, identities[i].ID)
	}
	return HNSWIndexMetadata{
		IdentityCount: int64(len(identities)),
		MaxIdentityID: maxID,
		BuildTime:     time.Now(),
	}
}

// Load restores a graph saved by SaveWithMetadata and attaches identities to it.
func (h *HNSWIndex) Load(path string, identities []Identity) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("HNSW index file not found: %s", path)
	}

	saved, err := hnsw.LoadSavedGraph[int64](path)
	if err != nil {
		return fmt.Errorf("failed to load HNSW index: %w", err)
	}

	h.graph = saved.Graph
	h.idToEntity = make(map[int64]*Identity, len(identities))
	for i := range identities {
		h.idToEntity[identities[i].ID] = &identities[i]
	}

	return nil
}
