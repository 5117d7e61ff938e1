package database

import (
	"fmt"
	"strings"

	"github.com/kozaktomas/facemood/internal/facematch"
	"github.com/pgvector/pgvector-go"
)

// EncodeEmbedding serializes an embedding in the textual array form "[v1,v2,...]"
// used by every backend's embedding column.
func EncodeEmbedding(embedding []float32) string {
	return pgvector.NewVector(embedding).String()
}

// DecodeEmbedding parses the textual array form back into a vector.
// Whitespace after separators is accepted so rows written by other tools still load.
func DecodeEmbedding(s string) ([]float32, error) {
	s = strings.Join(strings.Fields(s), "")
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, fmt.Errorf("invalid embedding text %q", truncate(s, 32))
	}
	if s == "[]" {
		return []float32{}, nil
	}

	var vec pgvector.Vector
	if err := vec.Scan(s); err != nil {
		return nil, fmt.Errorf("parse embedding: %w", err)
	}
	return vec.Slice(), nil
}

// IndexEntries converts identities into matching index entries, preserving order.
func IndexEntries(identities []Identity) []facematch.Entry {
	entries := make([]facematch.Entry, len(identities))
	for i := range identities {
		entries[i] = facematch.Entry{
			ID:        identities[i].ID,
			Label:     identities[i].Label(),
			Embedding: identities[i].Embedding,
		}
	}
	return entries
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
