// Package match implements the dual-metric accept/reject rule used to
// decide whether two face embeddings belong to the same person.
package match

import (
	"fmt"
	"math"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

// Default thresholds. The AND of both metrics is deliberately more
// conservative than either alone to suppress false accepts.
const (
	DefaultSimilarityThreshold = 0.75
	DefaultDistanceThreshold   = 0.80
)

// Result holds both metrics for a single comparison.
type Result struct {
	Similarity float64 `json:"similarity"`
	Distance   float64 `json:"distance"`
}

// Decider compares embeddings and applies the dual-threshold rule.
type Decider struct {
	simThreshold  float64
	distThreshold float64
}

func NewDecider() *Decider {
	return &Decider{
		simThreshold:  DefaultSimilarityThreshold,
		distThreshold: DefaultDistanceThreshold,
	}
}

func (d *Decider) WithThresholds(similarity, distance float64) *Decider {
	d.simThreshold = similarity
	d.distThreshold = distance
	return d
}

// Compare computes cosine similarity remapped to [0,1] and Euclidean
// distance. Inputs are unit vectors, so the dot product alone is the
// cosine and (dot+1)/2 is the remap. Dimension mismatch is a hard error,
// never a silent zero score.
func (d *Decider) Compare(a, b domain.Embedding) (Result, error) {
	if len(a) != len(b) || len(a) == 0 {
		return Result{}, fmt.Errorf("compare %d-dim with %d-dim: %w", len(a), len(b), domain.ErrEmbeddingDimension)
	}

	var dot, sqDist float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		diff := av - bv
		sqDist += diff * diff
	}

	// Clamp against float drift before remapping.
	if dot > 1 {
		dot = 1
	} else if dot < -1 {
		dot = -1
	}

	return Result{
		Similarity: (dot + 1) / 2,
		Distance:   math.Sqrt(sqDist),
	}, nil
}

// Decide accepts only if both similarity and distance pass their
// thresholds.
func (d *Decider) Decide(a, b domain.Embedding) (bool, error) {
	res, err := d.Compare(a, b)
	if err != nil {
		return false, err
	}
	return res.Similarity >= d.simThreshold && res.Distance <= d.distThreshold, nil
}

// Similarity is the remapped cosine similarity between two equal-length
// vectors, shared with the identity store's best-match scan.
func Similarity(a, b domain.Embedding) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	if dot > 1 {
		dot = 1
	} else if dot < -1 {
		dot = -1
	}
	return (dot + 1) / 2
}
