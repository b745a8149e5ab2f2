package advice

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"shootcoach/internal/model"
)

func TestGenerateAdvice_LowConfidenceShortCircuits(t *testing.T) {
	e := New(DefaultConfig())
	out := e.GenerateAdvice(AnalysisResult{Confidence: 0.2}, nil, 0, "consumer", nil, false)
	assert.Len(t, out, 1)
	assert.Equal(t, lowConfidenceStatus, out[0])
}

func TestGenerateAdvice_StabilityCriticalFiresAfterConsistentCycles(t *testing.T) {
	e := New(DefaultConfig())
	result := AnalysisResult{
		MotionSmoothness: 0.1,
		AvgSpeedPxFrame:  1,
		Confidence:       0.9,
	}

	var lastOut []Payload
	for i := 0; i < 4; i++ {
		lastOut = e.GenerateAdvice(result, nil, float64(i)*10, "consumer", nil, false)
	}

	found := false
	for _, p := range lastOut {
		if p.Category == CategoryStability && p.Priority == PriorityCritical {
			found = true
		}
	}
	assert.True(t, found, "expected a critical stability warning once the hysteresis/consistency gates are satisfied")
}

func TestGenerateAdvice_AppliesSmoothingAndSuppressesAfterAnomaly(t *testing.T) {
	e := New(DefaultConfig())
	steady := AnalysisResult{MotionSmoothness: 0.8, AvgSpeedPxFrame: 10, Confidence: 0.9}

	for i := 0; i < 3; i++ {
		e.GenerateAdvice(steady, nil, float64(i), "consumer", nil, true)
	}

	spike := AnalysisResult{MotionSmoothness: 0.01, AvgSpeedPxFrame: 500, Confidence: 0.9}
	out := e.GenerateAdvice(spike, nil, 10, "consumer", nil, true)
	assert.Nil(t, out, "an anomalous sample should be suppressed for AnomalySuppressCycles")
}

func TestGenerateAdvice_SubjectLostTracksUntilRecovered(t *testing.T) {
	e := New(DefaultConfig())
	lost := AnalysisResult{Confidence: 0.9, SubjectLost: true}

	out := e.GenerateAdvice(lost, nil, 0, "consumer", nil, false)
	assert.True(t, e.IsSubjectLost())
	foundLost := false
	for _, p := range out {
		if p.Message == subjectLost.Primary {
			foundLost = true
		}
	}
	assert.True(t, foundLost)

	recovered := AnalysisResult{Confidence: 0.9, SubjectLost: false, SubjectOccupancy: 0.3}
	e.GenerateAdvice(recovered, nil, 1, "consumer", nil, false)
	assert.False(t, e.IsSubjectLost())
}

func TestGenerateAdvice_BeatNowWithinWindow(t *testing.T) {
	e := New(DefaultConfig())
	result := AnalysisResult{MotionSmoothness: 0.9, AvgSpeedPxFrame: 10, Confidence: 0.9}

	out := e.GenerateAdvice(result, []float64{0.05}, 0, "consumer", nil, false)
	found := false
	for _, p := range out {
		if p.Category == CategoryBeat && p.Message == beatNow.Primary {
			found = true
		}
	}
	assert.True(t, found)
}

func TestGenerateAdvice_EquipmentTelephotoShake(t *testing.T) {
	e := New(DefaultConfig())
	result := AnalysisResult{MotionSmoothness: 0.2, AvgSpeedPxFrame: 10, Confidence: 0.9}
	focal := 85.0

	var lastOut []Payload
	for i := 0; i < 3; i++ {
		lastOut = e.GenerateAdvice(result, nil, float64(i)*10, "professional", &focal, false)
	}

	found := false
	for _, p := range lastOut {
		if p.Category == CategoryEquipment && p.Message == telephotoShake.Primary {
			found = true
		}
	}
	assert.True(t, found)
}

func TestReset_ClearsMotionTypeAndSubjectLost(t *testing.T) {
	e := New(DefaultConfig())
	e.GenerateAdvice(AnalysisResult{Confidence: 0.9, SubjectLost: true}, nil, 0, "consumer", nil, false)
	e.Reset()
	assert.Equal(t, model.MotionStatic, e.MotionType())
	assert.False(t, e.IsSubjectLost())
}
