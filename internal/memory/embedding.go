package memory

import (
	"context"
	"math"
	"strings"
)

// SimpleEmbedding is a deterministic hash-based embedding generator.
// Texts sharing words land close together under cosine similarity.
type SimpleEmbedding struct {
	dimensions int
}

// NewSimpleEmbedding creates a simple hash-based embedding generator
func NewSimpleEmbedding(dimensions int) *SimpleEmbedding {
	if dimensions <= 0 {
		dimensions = 128
	}
	return &SimpleEmbedding{dimensions: dimensions}
}

// Generate creates a unit-length embedding with earlier words weighted higher
func (e *SimpleEmbedding) Generate(ctx context.Context, text string) ([]float32, error) {
	words := strings.Fields(strings.ToLower(strings.TrimSpace(text)))
	embedding := make([]float32, e.dimensions)

	for i, word := range words {
		h := simpleHash(word)
		position := float32(i) / float32(len(words))
		weight := 1.0 / (1.0 + position)

		embedding[h%uint32(e.dimensions)] += weight
		embedding[(h>>8)%uint32(e.dimensions)] += weight / 2
	}

	normalize(embedding)
	return embedding, nil
}

// Dimensions returns the embedding vector dimensionality
func (e *SimpleEmbedding) Dimensions() int {
	return e.dimensions
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Mismatched or zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func normalize(v []float32) {
	var magnitude float64
	for _, val := range v {
		magnitude += float64(val) * float64(val)
	}
	magnitude = math.Sqrt(magnitude)
	if magnitude == 0 {
		return
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / magnitude)
	}
}

// simpleHash computes a simple hash for a string
func simpleHash(s string) uint32 {
	hash := uint32(0)
	for _, c := range s {
		hash = hash*31 + uint32(c)
	}
	return hash
}
