package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"shootcoach/internal/model"
)

func TestMotionSmoothness_InsufficientData(t *testing.T) {
	k := New(DefaultConfig())
	assert.Equal(t, 0.5, k.MotionSmoothness(nil))
	assert.Equal(t, 0.5, k.MotionSmoothness([]FlowVector{{1, 1}, {2, 2}}))
}

func TestMotionSmoothness_SteadyMotionIsSmooth(t *testing.T) {
	k := New(DefaultConfig())
	steady := []FlowVector{{5, 0}, {5, 0}, {5, 0}, {5, 0}, {5, 0}}
	erratic := []FlowVector{{0, 0}, {20, 0}, {0, 0}, {25, 0}, {1, 0}}

	steadyScore := k.MotionSmoothness(steady)
	erraticScore := k.MotionSmoothness(erratic)

	assert.InDelta(t, 1.0, steadyScore, 1e-9)
	assert.Less(t, erraticScore, steadyScore)
}

func TestFramePctChange(t *testing.T) {
	k := New(DefaultConfig())
	assert.Equal(t, 0.0, k.FramePctChange(nil))
	assert.Equal(t, 0.0, k.FramePctChange([]model.BBox{{W: 0.2, H: 0.2}}))

	grown := []model.BBox{{W: 0.2, H: 0.2}, {W: 0.4, H: 0.2}}
	assert.InDelta(t, 1.0, k.FramePctChange(grown), 1e-9)
}

func TestSubjectOccupancy(t *testing.T) {
	k := New(DefaultConfig())
	assert.Equal(t, 0.0, k.SubjectOccupancy(nil))
	boxes := []model.BBox{{W: 0.2, H: 0.2}, {W: 0.4, H: 0.4}}
	assert.InDelta(t, 0.1, k.SubjectOccupancy(boxes), 1e-9)
}

func TestBeatAlignment(t *testing.T) {
	k := New(DefaultConfig())
	assert.Equal(t, 0.5, k.BeatAlignment(nil, []float64{1.0}))
	assert.Equal(t, 0.5, k.BeatAlignment([]float64{1.0}, nil))

	// Perfect alignment
	assert.InDelta(t, 1.0, k.BeatAlignment([]float64{2.0}, []float64{2.0}), 1e-9)

	// Outside the window scores zero.
	assert.InDelta(t, 0.0, k.BeatAlignment([]float64{2.0}, []float64{3.0}), 1e-9)
}

func TestCompute(t *testing.T) {
	k := New(DefaultConfig())
	out := k.Compute(Inputs{
		VideoID:        "vid-1",
		TimeRange:      model.TimeRange{Start: 0, End: 2},
		AvgSpeedPxPerS: -5, // clamped to zero
	})
	assert.Equal(t, 0.0, out.AvgMotionPxPerS)
	assert.Equal(t, "vid-1", out.VideoID)
}
