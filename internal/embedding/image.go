package embedding

import (
	"image"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

// inputSize is the geometry every strategy normalizes to before feature
// extraction. Resizing is deterministic so the same image always yields
// the same vector.
const inputSize = 64

// grayscale converts an image region to an inputSize x inputSize grid of
// intensities in [0,1] using nearest-neighbor sampling and the ITU-R
// luma weights.
func grayscale(img image.Image) ([][]float64, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, domain.ErrInvalidImage
	}

	grid := make([][]float64, inputSize)
	for y := range grid {
		row := make([]float64, inputSize)
		srcY := bounds.Min.Y + y*h/inputSize
		for x := range row {
			srcX := bounds.Min.X + x*w/inputSize
			r, g, b, _ := img.At(srcX, srcY).RGBA()
			row[x] = (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 65535.0
		}
		grid[y] = row
	}
	return grid, nil
}

// gradients returns horizontal and vertical central differences of a
// grayscale grid. Border pixels are zero.
func gradients(grid [][]float64) (gx, gy [][]float64) {
	n := len(grid)
	gx = make([][]float64, n)
	gy = make([][]float64, n)
	for y := 0; y < n; y++ {
		gx[y] = make([]float64, n)
		gy[y] = make([]float64, n)
	}

	for y := 1; y < n-1; y++ {
		for x := 1; x < n-1; x++ {
			gx[y][x] = grid[y][x+1] - grid[y][x-1]
			gy[y][x] = grid[y+1][x] - grid[y-1][x]
		}
	}
	return gx, gy
}
