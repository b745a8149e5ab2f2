package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"shootcoach/internal/model"
)

func validMetadata() model.MetadataOutput {
	return model.MetadataOutput{
		VideoID:    "clip-1",
		TimeRange:  model.TimeRange{Start: 0, End: 2},
		MotionType: model.MotionDollyIn,
		MotionParams: model.MotionParams{
			DurationS:        2,
			FramePctChange:   0.2,
			SpeedProfile:     model.SpeedLinear,
			MotionSmoothness: 0.8,
		},
		Framing: model.FramingData{
			SubjectBBox:      model.BBox{X: 0.3, Y: 0.3, W: 0.4, H: 0.4},
			SubjectOccupancy: 0.16,
			SuggestedScale:   model.ScaleMedium,
		},
		BeatAlignmentScore: 0.5,
		Confidence:         0.8,
		Explainability:     "该镜头为推镜头，运动流畅。主体占画面约16%，构图均衡。",
	}
}

func TestMetadata_ValidPasses(t *testing.T) {
	v := New()
	assert.NoError(t, v.Metadata(validMetadata()))
}

func TestMetadata_RejectsOutOfRangeConfidence(t *testing.T) {
	v := New()
	m := validMetadata()
	m.Confidence = 1.5
	assert.Error(t, v.Metadata(m))
}

func TestMetadata_RejectsEndBeforeStart(t *testing.T) {
	v := New()
	m := validMetadata()
	m.TimeRange = model.TimeRange{Start: 5, End: 1}
	assert.Error(t, v.Metadata(m))
}

func TestRealtimeEvent_RequiresMatchingPayload(t *testing.T) {
	v := New()
	err := v.RealtimeEvent(RealtimeEnvelope{
		SessionID: "123e4567-e89b-42d3-a456-426614174000",
		Type:      EventFrameSubmit,
		SentAtS:   1.0,
	})
	assert.Error(t, err)

	err = v.RealtimeEvent(RealtimeEnvelope{
		SessionID:   "123e4567-e89b-42d3-a456-426614174000",
		Type:        EventFrameSubmit,
		SentAtS:     1.0,
		FrameSubmit: &FrameSubmitPayload{TimestampS: 1.0, FlowMagnitude: 2.0},
	})
	assert.NoError(t, err)
}

func TestRealtimeEvent_RejectsMissingSessionID(t *testing.T) {
	v := New()
	err := v.RealtimeEvent(RealtimeEnvelope{Type: EventHeartbeat})
	assert.Error(t, err)
}
