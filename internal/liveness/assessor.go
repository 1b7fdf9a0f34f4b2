// Package liveness scores face captures for anti-spoofing. All failure
// paths are fail-closed: an assessor that cannot reach a verdict reports
// not-live with zero confidence, never an error to the caller.
package liveness

import (
	"fmt"
	"image"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

const (
	// DefaultThreshold biases toward rejecting spoofs; deliberately higher
	// than a naive 0.5.
	DefaultThreshold = 0.85

	// consistencyBound is the maximum allowed confidence spread across a
	// burst. High variance across frames is itself a spoof signal, e.g.
	// screen glare flicker.
	consistencyBound = 0.3

	// burstLiveFraction is the minimum share of individually live frames
	// in a burst.
	burstLiveFraction = 0.8

	// minBurstFrames is the minimum burst length for a multi-frame
	// verdict.
	minBurstFrames = 3
)

const failClosedMessage = "liveness detection failed"

// scoreFunc produces a confidence and raw signals for one frame. It is a
// seam for tests; production uses the heuristic classifier.
type scoreFunc func(img image.Image) (float64, signals, error)

// Assessor applies a fixed acceptance threshold over per-frame scores.
type Assessor struct {
	threshold float64
	score     scoreFunc
}

func NewAssessor() *Assessor {
	return &Assessor{
		threshold: DefaultThreshold,
		score:     heuristicScore,
	}
}

func (a *Assessor) WithThreshold(threshold float64) *Assessor {
	a.threshold = threshold
	return a
}

func heuristicScore(img image.Image) (float64, signals, error) {
	if img == nil {
		return 0, signals{}, fmt.Errorf("nil frame: %w", domain.ErrInvalidImage)
	}
	bounds := img.Bounds()
	if bounds.Dx() < 3 || bounds.Dy() < 3 {
		return 0, signals{}, fmt.Errorf("frame %dx%d too small: %w", bounds.Dx(), bounds.Dy(), domain.ErrInvalidImage)
	}

	s := measure(img)
	return s.confidence(), s, nil
}

// Assess scores a single frame against the acceptance threshold.
func (a *Assessor) Assess(img image.Image) domain.LivenessResult {
	confidence, s, err := a.score(img)
	if err != nil {
		return domain.LivenessResult{Message: failClosedMessage}
	}

	return domain.LivenessResult{
		IsLive:          confidence >= a.threshold,
		Confidence:      confidence,
		Message:         a.diagnostic(confidence),
		TextureScore:    s.texture,
		ReflectionScore: s.reflection,
		SizeRatio:       s.sizeRatio,
	}
}

// AssessBurst scores a short frame sequence. The burst is live only if
// the mean confidence passes the threshold, at least 80% of frames are
// individually live, and the confidence spread stays inside the
// consistency bound. Fewer than three frames never pass.
func (a *Assessor) AssessBurst(frames []image.Image) domain.LivenessResult {
	if len(frames) < minBurstFrames {
		return domain.LivenessResult{
			Message: fmt.Sprintf("need at least %d frames, got %d", minBurstFrames, len(frames)),
		}
	}

	var sum float64
	minConf, maxConf := 1.0, 0.0
	liveFrames := 0

	for _, frame := range frames {
		confidence, _, err := a.score(frame)
		if err != nil {
			return domain.LivenessResult{Message: failClosedMessage}
		}

		sum += confidence
		if confidence < minConf {
			minConf = confidence
		}
		if confidence > maxConf {
			maxConf = confidence
		}
		if confidence >= a.threshold {
			liveFrames++
		}
	}

	mean := sum / float64(len(frames))

	// The consistency check rules even when the mean passes.
	if maxConf-minConf >= consistencyBound {
		return domain.LivenessResult{
			Confidence: mean,
			Message:    "inconsistent readings across frames, possible replay",
		}
	}

	liveShare := float64(liveFrames) / float64(len(frames))
	isLive := mean >= a.threshold && liveShare >= burstLiveFraction

	result := domain.LivenessResult{
		IsLive:     isLive,
		Confidence: mean,
		Message:    a.diagnostic(mean),
	}
	if !isLive && liveShare < burstLiveFraction {
		result.Message = fmt.Sprintf("only %d of %d frames read as live", liveFrames, len(frames))
	}
	return result
}

// diagnostic buckets a confidence into a human-readable verdict.
func (a *Assessor) diagnostic(confidence float64) string {
	switch {
	case confidence >= 0.95:
		return "high confidence real"
	case confidence >= a.threshold:
		return "real"
	case confidence >= 0.7:
		return "uncertain"
	case confidence >= 0.5:
		return "possible spoof"
	default:
		return "spoof detected"
	}
}
