// Package model holds the data types shared across every pipeline stage:
// the raw optical-flow features coming out of frame analysis, the
// heuristic indicators derived from them, and the motion/advice enums
// both pipelines classify against.
package model

// BBox is a normalized (0-1) bounding box, matching the coordinate space
// the upstream detector contract emits.
type BBox struct {
	X float64 `validate:"gte=0,lte=1"`
	Y float64 `validate:"gte=0,lte=1"`
	W float64 `validate:"gt=0,lte=1"`
	H float64 `validate:"gt=0,lte=1"`
}

// Area returns the normalized area of the box.
func (b BBox) Area() float64 {
	return b.W * b.H
}

// MotionType is the camera motion classification produced by C2.
type MotionType string

const (
	MotionStatic   MotionType = "static"
	MotionHandheld MotionType = "handheld"
	MotionDollyIn  MotionType = "dolly_in"
	MotionDollyOut MotionType = "dolly_out"
	MotionPan      MotionType = "pan"
	MotionTilt     MotionType = "tilt"
	MotionTrack    MotionType = "track"
)

// SpeedProfile describes the shape of motion speed over the shot.
type SpeedProfile string

const (
	SpeedLinear     SpeedProfile = "linear"
	SpeedEaseIn     SpeedProfile = "ease_in"
	SpeedEaseOut    SpeedProfile = "ease_out"
	SpeedEaseInOut  SpeedProfile = "ease_in_out"
)

// SuggestedScale is the framing scale C6 recommends from subject occupancy.
type SuggestedScale string

const (
	ScaleWide           SuggestedScale = "wide"
	ScaleMedium         SuggestedScale = "medium"
	ScaleCloseup        SuggestedScale = "closeup"
	ScaleExtremeCloseup SuggestedScale = "extreme_closeup"
)

// TimeRange is an inclusive [Start, End] window in seconds of source video.
type TimeRange struct {
	Start float64 `validate:"gte=0"`
	End   float64 `validate:"gtfield=Start"`
}

// HeuristicOutput is the indicator vector computed by C1 for one analysis
// window, consumed by C2 (motion classification) and C6 (metadata).
type HeuristicOutput struct {
	VideoID            string
	TimeRange          TimeRange
	AvgMotionPxPerS     float64
	FramePctChange      float64
	MotionSmoothness    float64
	SubjectOccupancy    float64
	BeatAlignmentScore  float64
}

// OpticalFlowFrame is one sampled frame's worth of raw tracking data, the
// input C1 aggregates over a window.
type OpticalFlowFrame struct {
	TimestampS    float64
	FlowMagnitude float64 // px/frame average optical flow magnitude
	SubjectBBox   *BBox   // nil when the subject was not detected this frame
}

// ExifData is optional shot metadata recovered from the source file,
// consumed by C6 as extra context for the LLM enhancement stage.
type ExifData struct {
	FocalLengthMM  *float64
	CameraModel    string
	ShutterSpeedS  *float64
	ISO            *int
}

// MotionParams describes a clip's camera motion in metadata form.
type MotionParams struct {
	DurationS        float64      `validate:"gt=0"`
	FramePctChange   float64      `validate:"gte=0,lte=1"`
	SpeedProfile     SpeedProfile `validate:"required,oneof=linear ease_in ease_out ease_in_out"`
	MotionSmoothness float64      `validate:"gte=0,lte=1"`
}

// FramingData describes a clip's subject composition.
type FramingData struct {
	SubjectBBox      BBox           `validate:"required"`
	SubjectOccupancy float64        `validate:"gte=0,lte=1"`
	SuggestedScale   SuggestedScale `validate:"required,oneof=wide medium closeup extreme_closeup"`
}

// MetadataOutput is C6's synthesized record for one analyzed clip,
// combining rule-based inference with optional LLM enhancement.
type MetadataOutput struct {
	VideoID            string       `validate:"required"`
	TimeRange          TimeRange    `validate:"required"`
	MotionType         MotionType   `validate:"required,oneof=static handheld dolly_in dolly_out pan tilt track"`
	MotionParams       MotionParams `validate:"required"`
	Framing            FramingData  `validate:"required"`
	BeatAlignmentScore float64      `validate:"gte=0,lte=1"`
	Confidence         float64      `validate:"gte=0,lte=1"`
	Explainability     string       `validate:"required,max=500"`
}

// AdvancedParams is the Layer 3 (Advanced) section of an instruction card:
// adjustable parameters and professional tips.
type AdvancedParams struct {
	TargetOccupancy string
	DurationS       float64
	SpeedCurve      string
	Stabilization   string
	Notes           []string
}

// InstructionCard is C7's three-layer shooting advice output.
type InstructionCard struct {
	VideoID  string
	Primary  []string
	Explain  string
	Advanced AdvancedParams
}
