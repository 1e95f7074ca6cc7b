package ai

import (
	"errors"
	"math"
)

// ErrDimensionMismatch indicates a cosine similarity call over vectors of
// different lengths. This is a programming error and is never swallowed.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// CosineSimilarity computes the cosine of the angle between two equal-length
// vectors. Returns 0 for zero-magnitude vectors.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
