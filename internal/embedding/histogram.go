package embedding

import (
	"fmt"
	"image"
	"math"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

const (
	histogramDim = 256

	// 4x4 regions of 8-bin intensity histograms.
	intensityGrid = 4
	intensityBins = 8

	// 8x8 regions of 2-bin edge orientation energy.
	edgeGrid = 8
	edgeBins = 2
)

// Histogram is the handcrafted strategy: per-region intensity histograms
// plus per-region edge-orientation energy. Discriminative enough for
// device-local populations and requires no model asset.
type Histogram struct{}

func NewHistogram() *Histogram {
	return &Histogram{}
}

var _ Source = (*Histogram)(nil)

func (h *Histogram) Name() string { return string(SourceTypeHistogram) }

func (h *Histogram) Dim() int { return histogramDim }

func (h *Histogram) Embed(img image.Image) (domain.Embedding, error) {
	if img == nil {
		return nil, fmt.Errorf("nil image: %w", domain.ErrInvalidImage)
	}

	grid, err := grayscale(img)
	if err != nil {
		return nil, fmt.Errorf("normalize image: %w", err)
	}

	raw := make([]float32, 0, histogramDim)
	raw = append(raw, intensityHistograms(grid)...)
	raw = append(raw, edgeFeatures(grid)...)

	return domain.Normalize(raw), nil
}

// intensityHistograms computes an 8-bin histogram for each cell of a 4x4
// partition, each histogram normalized by its cell's pixel count.
func intensityHistograms(grid [][]float64) []float32 {
	cell := inputSize / intensityGrid
	features := make([]float32, 0, intensityGrid*intensityGrid*intensityBins)

	for gy := 0; gy < intensityGrid; gy++ {
		for gx := 0; gx < intensityGrid; gx++ {
			var hist [intensityBins]float64
			for y := gy * cell; y < (gy+1)*cell; y++ {
				for x := gx * cell; x < (gx+1)*cell; x++ {
					bin := int(grid[y][x] * intensityBins)
					if bin >= intensityBins {
						bin = intensityBins - 1
					}
					hist[bin]++
				}
			}
			total := float64(cell * cell)
			for _, count := range hist {
				features = append(features, float32(count/total))
			}
		}
	}
	return features
}

// edgeFeatures accumulates horizontal and vertical gradient energy per
// cell of an 8x8 partition.
func edgeFeatures(grid [][]float64) []float32 {
	gx, gy := gradients(grid)
	cell := inputSize / edgeGrid
	features := make([]float32, 0, edgeGrid*edgeGrid*edgeBins)

	for ry := 0; ry < edgeGrid; ry++ {
		for rx := 0; rx < edgeGrid; rx++ {
			var horizontal, vertical float64
			for y := ry * cell; y < (ry+1)*cell; y++ {
				for x := rx * cell; x < (rx+1)*cell; x++ {
					horizontal += math.Abs(gx[y][x])
					vertical += math.Abs(gy[y][x])
				}
			}
			total := float64(cell * cell)
			features = append(features, float32(horizontal/total), float32(vertical/total))
		}
	}
	return features
}
