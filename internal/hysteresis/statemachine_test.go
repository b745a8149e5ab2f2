package hysteresis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"shootcoach/internal/model"
	"shootcoach/internal/motion"
)

func TestStateMachine_RequiresConsistentInferenceToSwitch(t *testing.T) {
	sm := NewStateMachine(DefaultStateMachineConfig(), motion.New(motion.DefaultConfig()))
	assert.Equal(t, model.MotionStatic, sm.CurrentState())

	dolly := model.HeuristicOutput{
		AvgMotionPxPerS:  60,
		MotionSmoothness: 0.8,
		FramePctChange:   0.3,
		SubjectOccupancy: 0.5,
	}

	sm.Update(dolly, nil)
	// One cycle isn't enough; ConsistencyRequired is 2.
	assert.Equal(t, model.MotionStatic, sm.CurrentState())

	sm.Update(dolly, nil)
	assert.Equal(t, model.MotionDollyIn, sm.CurrentState())
}

func TestStateMachine_SuppressionRulesFollowMotionType(t *testing.T) {
	sm := NewStateMachine(DefaultStateMachineConfig(), motion.New(motion.DefaultConfig()))
	sm.ForceState(model.MotionDollyIn, 0.9)
	assert.True(t, sm.ShouldSuppress("subject_size_change"))
	assert.False(t, sm.ShouldSuppress("horizontal_drift"))
}

func TestStateMachine_Reset(t *testing.T) {
	sm := NewStateMachine(DefaultStateMachineConfig(), motion.New(motion.DefaultConfig()))
	sm.ForceState(model.MotionPan, 0.8)
	sm.Reset()
	assert.Equal(t, model.MotionStatic, sm.CurrentState())
	assert.Equal(t, 0.0, sm.StateConfidence())
}
