package facematch

import "fmt"

// Entry is one enrolled embedding in an Index.
type Entry struct {
	ID        int64
	Label     string
	Embedding []float32
}

// Match is the nearest entry for a query and its distance.
type Match struct {
	Entry    Entry
	Distance float64
}

// Index is an immutable, load-ordered set of embeddings searched by linear scan.
type Index struct {
	entries []Entry
	dim     int
}

// NewIndex builds an index from entries, preserving their order.
// All entries must share one dimensionality.
func NewIndex(entries []Entry) (*Index, error) {
	idx := &Index{entries: make([]Entry, 0, len(entries))}
	for _, e := range entries {
		if len(idx.entries) == 0 {
			idx.dim = len(e.Embedding)
		} else if len(e.Embedding) != idx.dim {
			return nil, fmt.Errorf("%w: entry %d has %d values, index has %d",
				ErrDimensionMismatch, e.ID, len(e.Embedding), idx.dim)
		}
		idx.entries = append(idx.entries, e)
	}
	return idx, nil
}

// Len returns the number of entries.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.entries)
}

// Dim returns the shared embedding length, or 0 for an empty index.
func (idx *Index) Dim() int {
	if idx == nil {
		return 0
	}
	return idx.dim
}

// Entries returns a copy of the entries in load order.
func (idx *Index) Entries() []Entry {
	if idx == nil {
		return nil
	}
	out := make([]Entry, len(idx.entries))
	copy(out, idx.entries)
	return out
}

// Nearest returns the entry with the strictly smallest distance to query.
// On ties the first entry in load order wins. ok is false when the index is empty.
func (idx *Index) Nearest(query []float32) (match Match, ok bool, err error) {
	if idx.Len() == 0 {
		return Match{}, false, nil
	}

	for i := range idx.entries {
		d, err := Distance(query, idx.entries[i].Embedding)
		if err != nil {
			return Match{}, false, fmt.Errorf("comparing with entry %d: %w", idx.entries[i].ID, err)
		}
		if !ok || d < match.Distance {
			match = Match{Entry: idx.entries[i], Distance: d}
			ok = true
		}
	}

	return match, ok, nil
}
