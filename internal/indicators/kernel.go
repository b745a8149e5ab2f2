// Package indicators implements the Indicator Kernel (C1): turning raw
// optical-flow and subject-tracking features into the five numeric
// indicators the rest of the pipeline classifies and advises on.
package indicators

import (
	"math"

	"shootcoach/internal/model"
)

// Config holds the normalization constants the kernel uses. Defaults
// mirror the original heuristic analyzer exactly.
type Config struct {
	// BeatAlignmentWindowS bounds how far a motion event can be from the
	// nearest beat and still score above zero.
	BeatAlignmentWindowS float64
	// SmoothnessNormalizationFactor scales acceleration variance before
	// the exponential-decay smoothness score is computed.
	SmoothnessNormalizationFactor float64
	// FramePctChangeNormalization is the relative area change treated as
	// "maximum" (clamped to 1.0 beyond this).
	FramePctChangeNormalization float64
}

// DefaultConfig returns the kernel's stock normalization constants.
func DefaultConfig() Config {
	return Config{
		BeatAlignmentWindowS:          0.1,
		SmoothnessNormalizationFactor: 100.0,
		FramePctChangeNormalization:   0.5,
	}
}

// Kernel computes HeuristicOutput indicators from raw features.
type Kernel struct {
	cfg Config
}

// New builds a Kernel with the given config (zero value uses DefaultConfig).
func New(cfg Config) *Kernel {
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	return &Kernel{cfg: cfg}
}

// FlowVector is a single optical-flow sample (vx, vy) in px/frame.
type FlowVector struct {
	VX, VY float64
}

// Inputs bundles everything one analysis window needs to produce a
// HeuristicOutput.
type Inputs struct {
	VideoID          string
	TimeRange        model.TimeRange
	AvgSpeedPxPerS   float64
	FlowVectors      []FlowVector
	BBoxSequence     []model.BBox
	MotionTimestamps []float64
	BeatTimestamps   []float64
}

// Compute derives the full indicator vector for one analysis window.
func (k *Kernel) Compute(in Inputs) model.HeuristicOutput {
	return model.HeuristicOutput{
		VideoID:            in.VideoID,
		TimeRange:          in.TimeRange,
		AvgMotionPxPerS:    k.AvgMotion(in.AvgSpeedPxPerS),
		FramePctChange:     k.FramePctChange(in.BBoxSequence),
		MotionSmoothness:   k.MotionSmoothness(in.FlowVectors),
		SubjectOccupancy:   k.SubjectOccupancy(in.BBoxSequence),
		BeatAlignmentScore: k.BeatAlignment(in.MotionTimestamps, in.BeatTimestamps),
	}
}

// AvgMotion clamps the upstream speed estimate to be non-negative.
func (k *Kernel) AvgMotion(avgSpeedPxPerS float64) float64 {
	return math.Max(0.0, avgSpeedPxPerS)
}

// FramePctChange measures the average relative change in subject bbox
// area between consecutive frames, normalized to [0, 1].
func (k *Kernel) FramePctChange(bboxes []model.BBox) float64 {
	if len(bboxes) < 2 {
		return 0.0
	}
	var changes []float64
	for i := 1; i < len(bboxes); i++ {
		prevArea := bboxes[i-1].Area()
		currArea := bboxes[i].Area()
		switch {
		case prevArea > 0:
			changes = append(changes, math.Abs(currArea-prevArea)/prevArea)
		case currArea > 0:
			changes = append(changes, 1.0)
		}
	}
	if len(changes) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, c := range changes {
		sum += c
	}
	avg := sum / float64(len(changes))
	normalized := math.Min(1.0, avg/k.cfg.FramePctChangeNormalization)
	return clamp01(normalized)
}

// MotionSmoothness derives a [0, 1] smoothness score from the variance of
// frame-to-frame velocity changes (acceleration). Fewer than three flow
// vectors isn't enough signal, so it falls back to a neutral 0.5.
func (k *Kernel) MotionSmoothness(flow []FlowVector) float64 {
	if len(flow) < 3 {
		return 0.5
	}
	velocities := make([]float64, len(flow))
	for i, v := range flow {
		velocities[i] = math.Sqrt(v.VX*v.VX + v.VY*v.VY)
	}
	accelerations := make([]float64, 0, len(velocities)-1)
	for i := 1; i < len(velocities); i++ {
		accelerations = append(accelerations, velocities[i]-velocities[i-1])
	}
	if len(accelerations) == 0 {
		return 0.5
	}
	sum := 0.0
	for _, a := range accelerations {
		sum += a
	}
	mean := sum / float64(len(accelerations))
	variance := 0.0
	for _, a := range accelerations {
		d := a - mean
		variance += d * d
	}
	variance /= float64(len(accelerations))
	smoothness := math.Exp(-variance / k.cfg.SmoothnessNormalizationFactor)
	return clamp01(smoothness)
}

// SubjectOccupancy is the mean subject bbox area across the window.
func (k *Kernel) SubjectOccupancy(bboxes []model.BBox) float64 {
	if len(bboxes) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, b := range bboxes {
		sum += b.Area()
	}
	return clamp01(sum / float64(len(bboxes)))
}

// BeatAlignment scores how closely motion events line up with audio beats.
// Absent data on either side returns a neutral 0.5 rather than penalizing
// shots with no detected beats.
func (k *Kernel) BeatAlignment(motionTimestamps, beatTimestamps []float64) float64 {
	if len(motionTimestamps) == 0 || len(beatTimestamps) == 0 {
		return 0.5
	}
	window := k.cfg.BeatAlignmentWindowS
	sum := 0.0
	for _, mt := range motionTimestamps {
		minDist := math.Inf(1)
		for _, bt := range beatTimestamps {
			if d := math.Abs(mt - bt); d < minDist {
				minDist = d
			}
		}
		if minDist <= window {
			sum += 1.0 - (minDist / window)
		}
	}
	return clamp01(sum / float64(len(motionTimestamps)))
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
