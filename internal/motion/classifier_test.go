package motion

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"shootcoach/internal/model"
)

func TestInfer_Static(t *testing.T) {
	c := New(DefaultConfig())
	h := model.HeuristicOutput{AvgMotionPxPerS: 1.0, MotionSmoothness: 0.9}
	assert.Equal(t, model.MotionStatic, c.Infer(h, nil))
}

func TestInfer_Handheld(t *testing.T) {
	c := New(DefaultConfig())
	h := model.HeuristicOutput{AvgMotionPxPerS: 60, MotionSmoothness: 0.2}
	assert.Equal(t, model.MotionHandheld, c.Infer(h, nil))
}

func TestInfer_DollyIn(t *testing.T) {
	c := New(DefaultConfig())
	h := model.HeuristicOutput{
		AvgMotionPxPerS:  60,
		MotionSmoothness: 0.8,
		FramePctChange:   0.3,
		SubjectOccupancy: 0.5,
	}
	assert.Equal(t, model.MotionDollyIn, c.Infer(h, nil))
}

func TestInfer_DollyOut(t *testing.T) {
	c := New(DefaultConfig())
	h := model.HeuristicOutput{
		AvgMotionPxPerS:  60,
		MotionSmoothness: 0.8,
		FramePctChange:   0.3,
		SubjectOccupancy: 0.1,
	}
	assert.Equal(t, model.MotionDollyOut, c.Infer(h, nil))
}

func TestInfer_Pan(t *testing.T) {
	c := New(DefaultConfig())
	h := model.HeuristicOutput{AvgMotionPxPerS: 60, MotionSmoothness: 0.8}
	dir := 5.0
	assert.Equal(t, model.MotionPan, c.Infer(h, &dir))
}

func TestInfer_Tilt(t *testing.T) {
	c := New(DefaultConfig())
	h := model.HeuristicOutput{AvgMotionPxPerS: 60, MotionSmoothness: 0.8}
	dir := 95.0
	assert.Equal(t, model.MotionTilt, c.Infer(h, &dir))
}

func TestInfer_Track(t *testing.T) {
	c := New(DefaultConfig())
	h := model.HeuristicOutput{
		AvgMotionPxPerS:  60,
		MotionSmoothness: 0.8,
		SubjectOccupancy: 0.2,
	}
	dir := 45.0 // ambiguous, falls through pan/tilt checks
	assert.Equal(t, model.MotionTrack, c.Infer(h, &dir))
}

func TestInferSuggestedScale(t *testing.T) {
	c := New(DefaultConfig())
	assert.Equal(t, model.ScaleExtremeCloseup, c.InferSuggestedScale(0.6))
	assert.Equal(t, model.ScaleCloseup, c.InferSuggestedScale(0.3))
	assert.Equal(t, model.ScaleMedium, c.InferSuggestedScale(0.15))
	assert.Equal(t, model.ScaleWide, c.InferSuggestedScale(0.01))
}

func TestConfidence_ClampedToUnitRange(t *testing.T) {
	c := New(DefaultConfig())
	h := model.HeuristicOutput{
		AvgMotionPxPerS:  1,
		MotionSmoothness: 0.9,
		FramePctChange:   0.3,
	}
	confidence := c.Confidence(h, model.MotionDollyIn)
	assert.LessOrEqual(t, confidence, 1.0)
	assert.GreaterOrEqual(t, confidence, 0.0)
}
