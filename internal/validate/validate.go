// Package validate applies struct-tag validation to the two schema-bound
// payloads that cross a pipeline boundary: C6's MetadataOutput before it
// reaches the Instruction Generator, and C9's realtime event envelopes
// before they reach a connected client.
package validate

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"shootcoach/internal/model"
)

// Validator wraps a single go-playground/validator instance, matching the
// one-validator-per-process shape of the monorepo's event validator.
type Validator struct {
	v *validator.Validate
}

// New builds a Validator with standard struct validation rules.
func New() *Validator {
	return &Validator{v: validator.New()}
}

// Metadata validates a C6 MetadataOutput against its struct tags (the
// time range's ordering is covered by gtfield) plus the cross-field bbox
// invariant struct tags can't express: x+w and y+h must not exceed 1.
func (val *Validator) Metadata(m model.MetadataOutput) error {
	if err := val.v.Struct(m); err != nil {
		return fmt.Errorf("metadata validation failed: %w", err)
	}
	if b := m.Framing.SubjectBBox; b.X+b.W > 1+1e-9 || b.Y+b.H > 1+1e-9 {
		return fmt.Errorf("metadata validation failed: subject bbox extends past the unit square")
	}
	return nil
}

// RealtimeEventType identifies the kind of envelope flowing over a
// realtime session's bidirectional stream.
type RealtimeEventType string

const (
	EventFrameSubmit    RealtimeEventType = "frame-submit"
	EventAdviceBatch    RealtimeEventType = "advice-batch"
	EventHeartbeat      RealtimeEventType = "heartbeat"
	EventSessionControl RealtimeEventType = "session-control"
)

// RealtimeEnvelope is the session-scoped wrapper every realtime message is
// validated against before being acted upon or forwarded.
type RealtimeEnvelope struct {
	SessionID string            `validate:"required,uuid4"`
	Type      RealtimeEventType `validate:"required"`
	Seq       uint64            `validate:"gte=0"`
	SentAtS   float64           `validate:"gte=0"`

	FrameSubmit    *FrameSubmitPayload    `validate:"omitempty"`
	AdviceBatch    *AdviceBatchPayload    `validate:"omitempty"`
	SessionControl *SessionControlPayload `validate:"omitempty"`
}

// FrameSubmitPayload carries one client-submitted optical-flow frame.
type FrameSubmitPayload struct {
	TimestampS    float64 `validate:"gte=0"`
	FlowMagnitude float64 `validate:"gte=0"`
}

// AdviceBatchPayload carries the advice list produced for one analysis cycle.
type AdviceBatchPayload struct {
	Count int `validate:"gte=0"`
}

// SessionControlPayload carries session lifecycle requests (start/stop/resume).
type SessionControlPayload struct {
	Action string `validate:"required,oneof=start stop resume"`
}

// RealtimeEvent validates one envelope's structure and, for payload-bearing
// types, checks the matching payload is actually present.
func (val *Validator) RealtimeEvent(e RealtimeEnvelope) error {
	if err := val.v.Struct(e); err != nil {
		return fmt.Errorf("realtime event validation failed: %w", err)
	}
	return val.validatePayloadPresence(e)
}

func (val *Validator) validatePayloadPresence(e RealtimeEnvelope) error {
	switch e.Type {
	case EventFrameSubmit:
		if e.FrameSubmit == nil {
			return fmt.Errorf("frame-submit payload is required for frame-submit events")
		}
	case EventAdviceBatch:
		if e.AdviceBatch == nil {
			return fmt.Errorf("advice-batch payload is required for advice-batch events")
		}
	case EventSessionControl:
		if e.SessionControl == nil {
			return fmt.Errorf("session-control payload is required for session-control events")
		}
	case EventHeartbeat:
		// no payload expected
	default:
		return fmt.Errorf("unknown realtime event type: %s", e.Type)
	}
	return nil
}
