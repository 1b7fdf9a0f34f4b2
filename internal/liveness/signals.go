package liveness

import (
	"image"
	"math"
)

// signals holds the raw anti-spoof measurements for one frame.
type signals struct {
	variance   float64 // grayscale variance; prints and screens flatten it
	edge       float64 // natural edge density
	texture    float64 // local binary pattern complexity
	reflection float64 // near-saturated highlight fraction; screen glare
	sizeRatio  float64 // subject area relative to the frame
}

// measure computes all signals in one pass over the frame.
func measure(img image.Image) signals {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w < 3 || h < 3 {
		return signals{}
	}

	var sum, sumSq float64
	var highlights, bright int
	count := 0

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray := grayAt(img, x, y)
			sum += gray
			sumSq += gray * gray
			if gray > 245 {
				highlights++
			}
			if gray > 90 {
				bright++
			}
			count++
		}
	}

	mean := sum / float64(count)
	return signals{
		variance:   (sumSq / float64(count)) - mean*mean,
		edge:       edgeDensity(img),
		texture:    textureComplexity(img),
		reflection: float64(highlights) / float64(count),
		sizeRatio:  float64(bright) / float64(count),
	}
}

// confidence combines the signals into a [0,1] liveness score. Texture,
// edges and variance vote for a live subject; saturated highlights vote
// against it. An implausible subject size caps the score.
func (s signals) confidence() float64 {
	score := normalize(s.variance, 0, 4000)*0.35 +
		clamp01(s.edge*4)*0.25 +
		s.texture*0.30 +
		(1-clamp01(s.reflection*20))*0.10

	// A face filling almost none or all of the frame is a replay artifact
	// as often as a framing problem; cap rather than zero it.
	if s.sizeRatio < 0.05 || s.sizeRatio > 0.98 {
		score = math.Min(score, 0.45)
	}

	return clamp01(score)
}

// edgeDensity applies central-difference gradients and counts pixels above
// a fixed edge threshold.
func edgeDensity(img image.Image) float64 {
	bounds := img.Bounds()

	edges, total := 0, 0
	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		for x := bounds.Min.X + 1; x < bounds.Max.X-1; x++ {
			gx := grayAt(img, x+1, y) - grayAt(img, x-1, y)
			gy := grayAt(img, x, y+1) - grayAt(img, x, y-1)
			if math.Sqrt(gx*gx+gy*gy) > 30 {
				edges++
			}
			total++
		}
	}

	if total == 0 {
		return 0
	}
	return float64(edges) / float64(total)
}

// textureComplexity samples 8-neighbor local binary patterns at regular
// intervals and normalizes the mean pattern value.
func textureComplexity(img image.Image) float64 {
	bounds := img.Bounds()

	var acc float64
	samples := 0

	const step = 8
	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y += step {
		for x := bounds.Min.X + 1; x < bounds.Max.X-1; x += step {
			center := grayAt(img, x, y)

			var pattern uint8
			neighbors := [8][2]int{
				{x - 1, y - 1}, {x, y - 1}, {x + 1, y - 1}, {x + 1, y},
				{x + 1, y + 1}, {x, y + 1}, {x - 1, y + 1}, {x - 1, y},
			}
			for bit, n := range neighbors {
				if grayAt(img, n[0], n[1]) >= center {
					pattern |= 1 << bit
				}
			}

			acc += float64(pattern)
			samples++
		}
	}

	if samples == 0 {
		return 0
	}
	return normalize(acc/float64(samples), 0, 255)
}

func grayAt(img image.Image, x, y int) float64 {
	r, g, b, _ := img.At(x, y).RGBA()
	return (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 256.0
}

func normalize(value, min, max float64) float64 {
	if max <= min {
		return 0
	}
	return clamp01((value - min) / (max - min))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
