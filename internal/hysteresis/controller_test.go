package hysteresis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckThreshold_HysteresisPreventsFlapping(t *testing.T) {
	c := New(DefaultConfig())
	// lower_is_worse: enter=0.4, exit=0.5
	assert.False(t, c.CheckThreshold("stability", 0.6, 0.4, 0.5, true))
	assert.True(t, c.CheckThreshold("stability", 0.35, 0.4, 0.5, true))
	// Still "worse" zone (between exit/enter) should stay in warning.
	assert.True(t, c.CheckThreshold("stability", 0.45, 0.4, 0.5, true))
	// Only clears once above exit threshold.
	assert.False(t, c.CheckThreshold("stability", 0.55, 0.4, 0.5, true))
}

func TestCheckThresholdMultiLevel(t *testing.T) {
	c := New(DefaultConfig())
	cfg := DefaultConfig()
	state := c.CheckThresholdMultiLevel("stability", 0.2, cfg.StabilityCriticalEnter, cfg.StabilityCriticalExit, cfg.StabilityWarningEnter, cfg.StabilityWarningExit, true)
	assert.Equal(t, StateCritical, state)

	// Needs to rise above critical_exit to leave critical.
	state = c.CheckThresholdMultiLevel("stability", 0.40, cfg.StabilityCriticalEnter, cfg.StabilityCriticalExit, cfg.StabilityWarningEnter, cfg.StabilityWarningExit, true)
	assert.Equal(t, StateCritical, state)

	state = c.CheckThresholdMultiLevel("stability", 0.5, cfg.StabilityCriticalEnter, cfg.StabilityCriticalExit, cfg.StabilityWarningEnter, cfg.StabilityWarningExit, true)
	assert.Equal(t, StateWarning, state)
}

func TestIsConsistent_RequiresConsecutiveCycles(t *testing.T) {
	c := New(DefaultConfig())
	assert.False(t, c.IsConsistent("speed", true))
	assert.True(t, c.IsConsistent("speed", true))
}

func TestCooldown(t *testing.T) {
	c := New(DefaultConfig())
	assert.False(t, c.IsOnCooldown("beat", 0))
	c.RecordAdvice("beat", 10.0)
	assert.True(t, c.IsOnCooldown("beat", 12.0))
	assert.False(t, c.IsOnCooldown("beat", 20.0))
}

func TestReset(t *testing.T) {
	c := New(DefaultConfig())
	c.CheckThreshold("stability", 0.1, 0.4, 0.5, true)
	c.Reset("")
	assert.Equal(t, StateNormal, c.GetState("stability"))
}
