// Package vector provides the semantic index used for advisory
// similar-commitment recall. Vectors are never a source of numeric truth;
// the ledger in internal/store is authoritative.
package vector

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"
)

// Dimension is the embedding dimensionality used across the index.
const Dimension = 768

// Embedder turns text into a fixed-length unit-norm vector.
type Embedder interface {
	Embed(text string) ([]float64, error)
	Dimension() int
}

// HashEmbedder derives a deterministic pseudo-embedding from a hash of the
// text. Two runs over the same text always yield the same vector, which keeps
// upserts idempotent and the index fully testable offline. The vectors carry
// no semantic meaning; swap in a model-backed Embedder for real recall.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder creates a HashEmbedder producing Dimension-length vectors.
func NewHashEmbedder() *HashEmbedder {
	return &HashEmbedder{dim: Dimension}
}

// Dimension implements the Embedder interface.
func (e *HashEmbedder) Dimension() int {
	return e.dim
}

// Embed implements the Embedder interface. The sha256 of the text seeds a
// PRNG whose normal draws are normalized to unit length.
func (e *HashEmbedder) Embed(text string) ([]float64, error) {
	if text == "" {
		return nil, fmt.Errorf("embed: empty text")
	}

	sum := sha256.Sum256([]byte(text))
	seed := int64(binary.BigEndian.Uint64(sum[:8]))
	rng := rand.New(rand.NewSource(seed))

	vec := make([]float64, e.dim)
	var norm float64
	for i := range vec {
		v := rng.NormFloat64()
		vec[i] = v
		norm += v * v
	}

	norm = math.Sqrt(norm)
	if norm == 0 {
		return nil, fmt.Errorf("embed: degenerate vector")
	}
	for i := range vec {
		vec[i] /= norm
	}

	return vec, nil
}

// CosineSimilarity computes similarity between two vectors.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

var _ Embedder = (*HashEmbedder)(nil)
