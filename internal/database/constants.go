package database

// HNSW index parameters for the near-duplicate audit
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size.
	HNSWEfSearch = 100

	// HNSWDefaultCandidates is how many neighbors the audit inspects per identity.
	HNSWDefaultCandidates = 8
)
