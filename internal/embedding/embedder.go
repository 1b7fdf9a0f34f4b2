// Package embedding converts cropped face images into fixed-length,
// L2-normalized feature vectors. Two interchangeable strategies exist: a
// handcrafted histogram/edge extractor and a projection network loaded
// from a weights blob. Vectors from different strategies are not
// comparable.
package embedding

import (
	"fmt"
	"image"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

// Source extracts an embedding from a face crop. Implementations are pure
// over their model state, which may be lazily loaded once and cached for
// the process lifetime.
type Source interface {
	// Embed returns an L2-normalized vector of Dim() length. Errors wrap
	// domain.ErrNoFace, domain.ErrModelUnavailable or
	// domain.ErrInvalidImage.
	Embed(img image.Image) (domain.Embedding, error)

	// Dim is the fixed output dimension of this strategy.
	Dim() int

	// Name identifies the strategy; embeddings are only comparable within
	// the same name.
	Name() string
}

// SourceType selects an embedding strategy.
type SourceType string

const (
	// SourceTypeHistogram is the handcrafted extractor. No model asset.
	SourceTypeHistogram SourceType = "histogram"
	// SourceTypeProjection is the learned-network stand-in backed by a
	// weights blob.
	SourceTypeProjection SourceType = "projection"
)

// New creates a Source by type.
//
// Environment variables (via internal/config):
//   - EMBEDDER_TYPE: "histogram" or "projection" (default: "histogram")
//   - MODEL_PATH: weights blob for the projection strategy
func New(sourceType SourceType, modelPath string) (Source, error) {
	switch sourceType {
	case SourceTypeProjection:
		return NewProjection(modelPath), nil

	case SourceTypeHistogram, "":
		return NewHistogram(), nil

	default:
		return nil, fmt.Errorf("unknown embedder type: %s (supported: %s, %s)",
			sourceType, SourceTypeHistogram, SourceTypeProjection)
	}
}
