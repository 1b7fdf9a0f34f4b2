package embedding

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"
	"os"
	"sync"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

const (
	projectionDim   = 128
	projectionInput = inputSize * inputSize

	// weightsMagic identifies a projection weights blob.
	weightsMagic = "PJW1"
)

// Projection runs a single dense layer with tanh activation over the
// flattened normalized face crop. It stands in for a learned CNN: the
// engine only depends on the protocol (image in, fixed-dim unit vector
// out), so a real network can replace it without touching callers.
//
// The weights blob is loaded lazily on first use and cached for the
// process lifetime. A failed load does not crash: every call surfaces
// domain.ErrModelUnavailable and the next call retries the load.
type Projection struct {
	path string

	mu      sync.Mutex
	weights []float32 // row-major, projectionDim rows x projectionInput cols
	bias    []float32
}

func NewProjection(modelPath string) *Projection {
	return &Projection{path: modelPath}
}

var _ Source = (*Projection)(nil)

func (p *Projection) Name() string { return string(SourceTypeProjection) }

func (p *Projection) Dim() int { return projectionDim }

func (p *Projection) Embed(img image.Image) (domain.Embedding, error) {
	if img == nil {
		return nil, fmt.Errorf("nil image: %w", domain.ErrInvalidImage)
	}

	weights, bias, err := p.model()
	if err != nil {
		return nil, domain.ErrModelUnavailable.WithError(err)
	}

	grid, err := grayscale(img)
	if err != nil {
		return nil, fmt.Errorf("normalize image: %w", err)
	}

	// Flatten and center around zero so the projection sees signed input.
	input := make([]float64, 0, projectionInput)
	for _, row := range grid {
		for _, v := range row {
			input = append(input, v*2-1)
		}
	}

	raw := make([]float32, projectionDim)
	for i := 0; i < projectionDim; i++ {
		row := weights[i*projectionInput : (i+1)*projectionInput]
		sum := float64(bias[i])
		for j, x := range input {
			sum += float64(row[j]) * x
		}
		raw[i] = float32(math.Tanh(sum))
	}

	return domain.Normalize(raw), nil
}

// model returns the cached weights, loading them on first use. Load
// failures are returned but not cached, so a later call can succeed once
// the asset becomes available.
func (p *Projection) model() ([]float32, []float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.weights != nil {
		return p.weights, p.bias, nil
	}

	weights, bias, err := loadWeights(p.path)
	if err != nil {
		return nil, nil, err
	}

	p.weights = weights
	p.bias = bias
	return p.weights, p.bias, nil
}

// loadWeights parses a weights blob: 4-byte magic, uint32 input dim,
// uint32 output dim, then (out*in) weight float32s followed by out bias
// float32s, all little-endian.
func loadWeights(path string) ([]float32, []float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open model %s: %w", path, err)
	}
	defer f.Close()

	magic := make([]byte, 4)
	if _, err := f.Read(magic); err != nil || string(magic) != weightsMagic {
		return nil, nil, fmt.Errorf("model %s: bad magic", path)
	}

	var inDim, outDim uint32
	if err := binary.Read(f, binary.LittleEndian, &inDim); err != nil {
		return nil, nil, fmt.Errorf("model %s: read input dim: %w", path, err)
	}
	if err := binary.Read(f, binary.LittleEndian, &outDim); err != nil {
		return nil, nil, fmt.Errorf("model %s: read output dim: %w", path, err)
	}
	if inDim != projectionInput || outDim != projectionDim {
		return nil, nil, fmt.Errorf("model %s: geometry %dx%d, expected %dx%d",
			path, inDim, outDim, projectionInput, projectionDim)
	}

	weights := make([]float32, int(inDim)*int(outDim))
	if err := binary.Read(f, binary.LittleEndian, &weights); err != nil {
		return nil, nil, fmt.Errorf("model %s: read weights: %w", path, err)
	}

	bias := make([]float32, outDim)
	if err := binary.Read(f, binary.LittleEndian, &bias); err != nil {
		return nil, nil, fmt.Errorf("model %s: read bias: %w", path, err)
	}

	return weights, bias, nil
}
