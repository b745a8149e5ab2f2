// Package motion implements the Motion Classifier (C2): a rule-based
// decision tree that maps the Indicator Kernel's output, plus an optional
// dominant direction, onto a MotionType, SpeedProfile and SuggestedScale.
package motion

import "shootcoach/internal/model"

// Config holds the numeric thresholds the decision tree is built from.
// Values mirror the original rule set exactly.
type Config struct {
	StaticThreshold            float64 // px/s below which the shot is static
	SlowMotionThreshold        float64
	FastMotionThreshold        float64
	DollyThreshold             float64 // frame_pct_change above which a dolly is plausible
	SignificantChangeThreshold float64
	HorizontalTolerance        float64 // degrees from 0/180 considered a pan
	VerticalTolerance          float64 // degrees from 90/270 considered a tilt
	HandheldSmoothnessThreshold float64
	ExtremeCloseupThreshold    float64
	CloseupThreshold           float64
	MediumThreshold            float64
}

// DefaultConfig returns the classifier's stock thresholds.
func DefaultConfig() Config {
	return Config{
		StaticThreshold:              5.0,
		SlowMotionThreshold:          50.0,
		FastMotionThreshold:          200.0,
		DollyThreshold:               0.05,
		SignificantChangeThreshold:   0.15,
		HorizontalTolerance:          30.0,
		VerticalTolerance:            30.0,
		HandheldSmoothnessThreshold:  0.5,
		ExtremeCloseupThreshold:      0.5,
		CloseupThreshold:             0.25,
		MediumThreshold:              0.1,
	}
}

// Classifier applies the motion-type decision tree.
type Classifier struct {
	cfg Config
}

// New builds a Classifier. The zero Config uses DefaultConfig.
func New(cfg Config) *Classifier {
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	return &Classifier{cfg: cfg}
}

// Infer applies the decision tree described in the original motion-rules
// implementation:
//  1. very low motion -> static
//  2. low smoothness -> handheld
//  3. a large frame_pct_change -> dolly in/out (direction guessed from occupancy)
//  4/5. a clear horizontal/vertical direction -> pan/tilt
//  6. sustained tracked motion -> track
//  7. default -> handheld, or static if motion never exceeded the slow threshold
func (c *Classifier) Infer(h model.HeuristicOutput, primaryDirectionDeg *float64) model.MotionType {
	cfg := c.cfg

	if h.AvgMotionPxPerS < cfg.StaticThreshold {
		return model.MotionStatic
	}

	if h.MotionSmoothness < cfg.HandheldSmoothnessThreshold {
		return model.MotionHandheld
	}

	if h.FramePctChange > cfg.DollyThreshold && h.FramePctChange > cfg.SignificantChangeThreshold {
		if h.SubjectOccupancy > 0.3 {
			return model.MotionDollyIn
		}
		return model.MotionDollyOut
	}

	if primaryDirectionDeg != nil {
		direction := normalizeAngle(*primaryDirectionDeg)
		if c.isHorizontal(direction) {
			return model.MotionPan
		}
		if c.isVertical(direction) {
			return model.MotionTilt
		}
	}

	if h.SubjectOccupancy > 0.1 && h.AvgMotionPxPerS > cfg.SlowMotionThreshold && h.MotionSmoothness > 0.6 {
		return model.MotionTrack
	}

	if h.AvgMotionPxPerS > cfg.SlowMotionThreshold {
		return model.MotionHandheld
	}

	return model.MotionStatic
}

func (c *Classifier) isHorizontal(direction float64) bool {
	tol := c.cfg.HorizontalTolerance
	return direction < tol || direction > 360-tol || absf(direction-180) < tol
}

func (c *Classifier) isVertical(direction float64) bool {
	tol := c.cfg.VerticalTolerance
	return absf(direction-90) < tol || absf(direction-270) < tol
}

// InferSpeedProfile derives the speed shape of the shot.
func (c *Classifier) InferSpeedProfile(h model.HeuristicOutput, mt model.MotionType) model.SpeedProfile {
	switch mt {
	case model.MotionStatic, model.MotionHandheld:
		return model.SpeedLinear
	}
	switch {
	case h.MotionSmoothness > 0.8:
		return model.SpeedEaseInOut
	case h.MotionSmoothness > 0.6:
		if h.FramePctChange > 0.1 {
			return model.SpeedEaseIn
		}
		return model.SpeedEaseOut
	default:
		return model.SpeedLinear
	}
}

// InferSuggestedScale recommends a framing scale from subject occupancy.
func (c *Classifier) InferSuggestedScale(subjectOccupancy float64) model.SuggestedScale {
	switch {
	case subjectOccupancy >= c.cfg.ExtremeCloseupThreshold:
		return model.ScaleExtremeCloseup
	case subjectOccupancy >= c.cfg.CloseupThreshold:
		return model.ScaleCloseup
	case subjectOccupancy >= c.cfg.MediumThreshold:
		return model.ScaleMedium
	default:
		return model.ScaleWide
	}
}

// Confidence scores how reliable the Infer result is, boosted for clean
// static/dolly signals and smooth motion, penalized for jittery motion.
func (c *Classifier) Confidence(h model.HeuristicOutput, mt model.MotionType) float64 {
	confidence := 0.5

	if mt == model.MotionStatic && h.AvgMotionPxPerS < c.cfg.StaticThreshold {
		confidence += 0.3
	}

	switch {
	case h.MotionSmoothness > 0.7:
		confidence += 0.15
	case h.MotionSmoothness > 0.5:
		confidence += 0.1
	}

	if (mt == model.MotionDollyIn || mt == model.MotionDollyOut) && h.FramePctChange > c.cfg.SignificantChangeThreshold {
		confidence += 0.2
	}

	if h.MotionSmoothness < 0.3 {
		confidence -= 0.1
	}

	return clamp01(confidence)
}

func normalizeAngle(deg float64) float64 {
	d := deg
	for d < 0 {
		d += 360
	}
	for d >= 360 {
		d -= 360
	}
	return d
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
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
