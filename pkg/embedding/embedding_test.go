package embedding_test

import (
	"math"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/comind-network/cogindex/pkg/embedding"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{
			name:     "identical vectors",
			a:        []float32{1, 2, 3},
			b:        []float32{1, 2, 3},
			expected: 1,
		},
		{
			name:     "opposite vectors",
			a:        []float32{1, 0},
			b:        []float32{-1, 0},
			expected: -1,
		},
		{
			name:     "orthogonal vectors",
			a:        []float32{1, 0},
			b:        []float32{0, 1},
			expected: 0,
		},
		{
			name:     "scaled vectors keep similarity",
			a:        []float32{1, 2},
			b:        []float32{2, 4},
			expected: 1,
		},
		{
			name:     "dimension mismatch",
			a:        []float32{1, 2, 3},
			b:        []float32{1, 2},
			expected: 0,
		},
		{
			name:     "zero vector",
			a:        []float32{0, 0},
			b:        []float32{1, 1},
			expected: 0,
		},
		{
			name:     "empty vectors",
			a:        nil,
			b:        nil,
			expected: 0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := embedding.Cosine(tc.a, tc.b)
			gt.True(t, math.Abs(got-tc.expected) < 1e-9)
		})
	}
}

func TestTruncate(t *testing.T) {
	gt.Equal(t, embedding.Truncate("hello", 10), "hello")
	gt.Equal(t, embedding.Truncate("hello", 3), "hel")
	gt.Equal(t, embedding.Truncate("hello", 0), "hello")
	gt.Equal(t, embedding.Truncate("日本語のテキスト", 3), "日本語")
}
