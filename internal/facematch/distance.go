package facematch

import (
	"errors"
	"fmt"
	"math"
)

// Epsilon is added to the norm product so zero vectors never divide by zero.
const Epsilon = 1e-8

// ErrDimensionMismatch is returned when two embeddings of different length are compared.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Distance computes the cosine distance between two embeddings:
// 1 - (a·b) / (|a|*|b| + Epsilon).
// Returns a value in [0, 2] where 0 means identical direction and 2 means opposite.
// A zero-norm vector yields 1.
func Distance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB)+Epsilon), nil
}

// CheckDimension verifies an embedding has the expected length.
func CheckDimension(embedding []float32, dim int) error {
	if len(embedding) != dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(embedding), dim)
	}
	return nil
}
