package embedding

import (
	"context"
	"math"
)

// Embedder maps text to a fixed-dimension vector. The ingestion worker
// and the query surface must share the same implementation and
// dimension; switching either requires re-embedding the whole index.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Cosine returns the cosine similarity of two vectors in [-1, 1].
// Mismatched dimensions or zero vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Truncate cuts text to at most maxRunes runes. A non-positive limit
// leaves the text untouched.
func Truncate(text string, maxRunes int) string {
	if maxRunes <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes])
}
