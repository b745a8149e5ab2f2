// Package advice implements the Advice Engine (C5): turns smoothed,
// hysteresis-gated indicators into a prioritized, anti-flicker list of
// coaching messages for the active realtime session.
package advice

import "time"

// Priority ranks how urgently a message should reach the shooter.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityWarning  Priority = "warning"
	PriorityInfo     Priority = "info"
	PriorityPositive Priority = "positive"
)

// Category groups advice for suppression, cooldown and motion-type
// filtering purposes.
type Category string

const (
	CategoryStability   Category = "stability"
	CategorySpeed       Category = "speed"
	CategoryComposition Category = "composition"
	CategoryBeat        Category = "beat"
	CategoryEquipment   Category = "equipment"
)

// Payload is a single piece of coaching advice ready to send to a client.
type Payload struct {
	Priority          Priority
	Category          Category
	Message           string
	AdvancedMessage   string // populated only for professional-device recipients
	TriggerHaptic     bool
	SuppressDuration  time.Duration
}
