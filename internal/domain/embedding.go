package domain

import (
	"fmt"
	"math"
)

// normTolerance is the accepted deviation from unit length for a
// normalized embedding.
const normTolerance = 1e-3

// Embedding é um vetor de características faciais, sempre L2-normalizado.
// Embeddings produced by different strategies (different dimensions) are
// not comparable.
type Embedding []float32

// Dim returns the embedding dimension.
func (e Embedding) Dim() int {
	return len(e)
}

// Norm returns the L2 norm of the embedding.
func (e Embedding) Norm() float64 {
	var sum float64
	for _, v := range e {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// IsZero reports whether every component is zero. A zero embedding is the
// defined output of an extractor whose raw features had zero norm.
func (e Embedding) IsZero() bool {
	for _, v := range e {
		if v != 0 {
			return false
		}
	}
	return true
}

// Validate checks that the embedding has the expected dimension and is
// either unit length or the zero vector.
func (e Embedding) Validate(expectedDim int) error {
	if len(e) != expectedDim {
		return fmt.Errorf("embedding dimension %d, expected %d: %w", len(e), expectedDim, ErrEmbeddingDimension)
	}
	if e.IsZero() {
		return nil
	}
	if math.Abs(e.Norm()-1.0) > normTolerance {
		return fmt.Errorf("embedding norm %.6f is not unit length: %w", e.Norm(), ErrEmbeddingCorrupt)
	}
	return nil
}

// Normalize returns a unit-length copy of v. A zero-norm input yields the
// zero vector of the same length instead of dividing by zero.
func Normalize(v []float32) Embedding {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}

	out := make(Embedding, len(v))
	if sum == 0 {
		return out
	}

	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
