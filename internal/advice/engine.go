package advice

import (
	"fmt"
	"math"
	"time"

	"shootcoach/internal/hysteresis"
	"shootcoach/internal/model"
	"shootcoach/internal/motion"
	"shootcoach/internal/smoothing"
)

// Config holds the advice engine's trigger thresholds. Defaults mirror
// the original realtime advisor exactly.
type Config struct {
	StabilityCriticalThreshold float64
	StabilityWarningThreshold  float64

	SpeedWarningThreshold    float64
	SpeedCVWarningThreshold  float64
	SpeedOptimalMin          float64
	SpeedOptimalMax          float64

	SubjectDeviationThreshold float64
	SubjectOccupancyMax       float64
	SubjectOccupancyMin       float64

	BeatUpcomingWindowS float64
	BeatNowWindowS       float64

	TelephotoFocalLengthMM        float64
	TelephotoSmoothnessThreshold  float64

	MinConfidence float64
}

// DefaultConfig returns the engine's stock thresholds.
func DefaultConfig() Config {
	return Config{
		StabilityCriticalThreshold: 0.4,
		StabilityWarningThreshold:  0.7,

		SpeedWarningThreshold:   20.0,
		SpeedCVWarningThreshold: 0.5,
		SpeedOptimalMin:         5.0,
		SpeedOptimalMax:         15.0,

		SubjectDeviationThreshold: 0.2,
		SubjectOccupancyMax:       0.8,
		SubjectOccupancyMin:       0.1,

		BeatUpcomingWindowS: 0.5,
		BeatNowWindowS:      0.1,

		TelephotoFocalLengthMM:       50.0,
		TelephotoSmoothnessThreshold: 0.5,

		MinConfidence: 0.5,
	}
}

// AnalysisResult is one realtime analysis cycle's indicator snapshot,
// before smoothing.
type AnalysisResult struct {
	AvgSpeedPxFrame     float64
	SpeedVariance       float64
	MotionSmoothness    float64
	PrimaryDirectionDeg float64
	SubjectBBox         *model.BBox
	SubjectOccupancy    float64
	SubjectLost         bool
	Confidence          float64
}

// Engine generates prioritized, anti-flicker advice from a stream of
// AnalysisResults for a single realtime session. Not safe for concurrent
// use — each session owns one Engine.
type Engine struct {
	cfg Config

	stateMachine *hysteresis.StateMachine
	hyst         *hysteresis.Controller
	smoother     *smoothing.Filter

	subjectLostSince *float64
}

// New builds an Engine with the given config (zero value uses DefaultConfig).
func New(cfg Config) *Engine {
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	return &Engine{
		cfg:          cfg,
		stateMachine: hysteresis.NewStateMachine(hysteresis.DefaultStateMachineConfig(), motion.New(motion.DefaultConfig())),
		hyst:         hysteresis.New(hysteresis.DefaultConfig()),
		smoother:     smoothing.New(smoothing.DefaultConfig()),
	}
}

// GenerateAdvice produces the advice list for one analysis cycle.
// deviceType is "consumer" or "professional"; professional recipients
// also receive AdvancedMessage text where available.
func (e *Engine) GenerateAdvice(result AnalysisResult, beatTimestamps []float64, currentTime float64, deviceType string, focalLengthMM *float64, applySmoothing bool) []Payload {
	if result.Confidence < e.cfg.MinConfidence {
		return []Payload{lowConfidenceStatus}
	}

	motionSmoothness := result.MotionSmoothness
	avgSpeed := result.AvgSpeedPxFrame
	speedVariance := result.SpeedVariance
	primaryDirection := result.PrimaryDirectionDeg
	subjectOccupancy := result.SubjectOccupancy

	if applySmoothing {
		smoothed := e.smoother.Update(smoothing.Indicators{
			MotionSmoothness:    motionSmoothness,
			AvgSpeed:            avgSpeed,
			SpeedVariance:       speedVariance,
			PrimaryDirectionDeg: primaryDirection,
			SubjectOccupancy:    subjectOccupancy,
			Confidence:          result.Confidence,
		})
		if e.smoother.IsSuppressed() {
			return nil
		}
		motionSmoothness = smoothed.MotionSmoothness
		avgSpeed = smoothed.AvgSpeed
		speedVariance = smoothed.SpeedVariance
		primaryDirection = smoothed.PrimaryDirectionDeg
		subjectOccupancy = smoothed.SubjectOccupancy
	}

	heuristic := model.HeuristicOutput{
		VideoID:          "realtime",
		TimeRange:        model.TimeRange{Start: currentTime, End: currentTime + 0.5},
		AvgMotionPxPerS:  avgSpeed * 30, // assume 30fps when converting px/frame to px/s
		MotionSmoothness: motionSmoothness,
		SubjectOccupancy: subjectOccupancy,
	}
	e.stateMachine.Update(heuristic, &primaryDirection)

	var out []Payload

	if p := e.stabilityAdvice(motionSmoothness, deviceType, currentTime); p != nil {
		out = append(out, *p)
	}
	if p := e.speedAdvice(avgSpeed, speedVariance, currentTime); p != nil {
		out = append(out, *p)
	}
	out = append(out, e.compositionAdvice(result.SubjectBBox, subjectOccupancy, primaryDirection, result.SubjectLost, currentTime)...)
	if len(beatTimestamps) > 0 {
		if p := e.beatAdvice(beatTimestamps, currentTime); p != nil {
			out = append(out, *p)
		}
	}
	if p := e.equipmentAdvice(motionSmoothness, focalLengthMM, currentTime); p != nil {
		out = append(out, *p)
	}

	return out
}

func (e *Engine) stabilityAdvice(motionSmoothness float64, deviceType string, currentTime float64) *Payload {
	category := string(CategoryStability)
	if e.hyst.IsOnCooldown(category, currentTime) {
		return nil
	}
	if e.stateMachine.ShouldSuppress(category) {
		return nil
	}

	state := e.hyst.CheckThresholdMultiLevel(
		category, motionSmoothness,
		e.cfg.StabilityCriticalThreshold-0.05, e.cfg.StabilityCriticalThreshold+0.05,
		e.cfg.StabilityWarningThreshold-0.05, e.cfg.StabilityWarningThreshold+0.05,
		true,
	)

	if state != hysteresis.StateCritical {
		shouldTrigger := state == hysteresis.StateWarning
		if !e.hyst.IsConsistent(category, shouldTrigger) {
			if state != hysteresis.StateNormal || motionSmoothness <= e.cfg.StabilityWarningThreshold {
				return nil
			}
		}
	}

	switch state {
	case hysteresis.StateCritical:
		p := &Payload{
			Priority:         PriorityCritical,
			Category:         CategoryStability,
			Message:          stabilityCritical.Primary,
			TriggerHaptic:    true,
			SuppressDuration: secs(5),
		}
		if deviceType == "professional" {
			p.AdvancedMessage = stabilityCritical.Advanced
		}
		e.hyst.RecordAdvice(category, currentTime)
		return p
	case hysteresis.StateWarning:
		e.hyst.RecordAdvice(category, currentTime)
		return &Payload{Priority: PriorityWarning, Category: CategoryStability, Message: stabilityWarning.Primary, SuppressDuration: secs(3)}
	default:
		if motionSmoothness > e.cfg.StabilityWarningThreshold {
			positiveCategory := category + "_positive"
			if !e.hyst.IsOnCooldown(positiveCategory, currentTime) {
				e.hyst.RecordAdvice(positiveCategory, currentTime)
				return &Payload{Priority: PriorityPositive, Category: CategoryStability, Message: stabilityPositive.Primary, SuppressDuration: secs(3)}
			}
		}
		return nil
	}
}

func (e *Engine) speedAdvice(avgSpeed, speedVariance float64, currentTime float64) *Payload {
	category := string(CategorySpeed)
	if e.hyst.IsOnCooldown(category, currentTime) {
		return nil
	}
	if e.stateMachine.ShouldSuppress(category) {
		return nil
	}

	var cv float64
	if avgSpeed > 0 {
		cv = math.Sqrt(speedVariance) / avgSpeed
	}

	isTooFast := e.hyst.CheckThreshold(category+"_fast", avgSpeed, e.cfg.SpeedWarningThreshold+2, e.cfg.SpeedWarningThreshold-2, false)
	if isTooFast {
		if e.hyst.IsConsistent(category+"_fast", true) {
			e.hyst.RecordAdvice(category, currentTime)
			return &Payload{Priority: PriorityWarning, Category: CategorySpeed, Message: speedTooFast.Primary, SuppressDuration: secs(3)}
		}
		return nil
	}

	if cv > e.cfg.SpeedCVWarningThreshold {
		if e.hyst.IsConsistent(category+"_uneven", true) {
			e.hyst.RecordAdvice(category, currentTime)
			return &Payload{Priority: PriorityWarning, Category: CategorySpeed, Message: speedUneven.Primary, SuppressDuration: secs(3)}
		}
		return nil
	}

	isOptimal := avgSpeed >= e.cfg.SpeedOptimalMin && avgSpeed <= e.cfg.SpeedOptimalMax && cv < e.cfg.SpeedCVWarningThreshold
	if isOptimal {
		positiveCategory := category + "_positive"
		if !e.hyst.IsOnCooldown(positiveCategory, currentTime) {
			e.hyst.RecordAdvice(positiveCategory, currentTime)
			return &Payload{Priority: PriorityPositive, Category: CategorySpeed, Message: speedPerfect.Primary, SuppressDuration: secs(3)}
		}
	}
	return nil
}

func (e *Engine) compositionAdvice(bbox *model.BBox, subjectOccupancy, primaryDirectionDeg float64, isSubjectLost bool, currentTime float64) []Payload {
	category := string(CategoryComposition)
	var out []Payload

	if isSubjectLost {
		if e.subjectLostSince == nil {
			t := currentTime
			e.subjectLostSince = &t
			lostCategory := category + "_lost"
			if !e.hyst.IsOnCooldown(lostCategory, currentTime) {
				e.hyst.RecordAdvice(lostCategory, currentTime)
				out = append(out, Payload{Priority: PriorityWarning, Category: CategoryComposition, Message: subjectLost.Primary, SuppressDuration: secs(5)})
			}
		}
		return out
	}
	e.subjectLostSince = nil

	if p := e.directionHintAdvice(primaryDirectionDeg, currentTime); p != nil {
		out = append(out, *p)
	}

	if bbox != nil && !e.stateMachine.ShouldSuppress("horizontal_drift") && !e.stateMachine.ShouldSuppress("vertical_drift") {
		if p := e.subjectPositionAdvice(*bbox, currentTime); p != nil {
			out = append(out, *p)
		}
	}

	if !e.stateMachine.ShouldSuppress("subject_size_change") {
		if p := e.occupancyAdvice(subjectOccupancy, currentTime); p != nil {
			out = append(out, *p)
		}
	}

	return out
}

func (e *Engine) directionHintAdvice(primaryDirectionDeg, currentTime float64) *Payload {
	category := string(CategoryComposition) + "_direction"
	if e.hyst.IsOnCooldown(category, currentTime) {
		return nil
	}

	key, ok := angleToDirectionKey(primaryDirectionDeg)
	if !ok {
		return nil
	}

	state := e.stateMachine.CurrentState()
	if state == model.MotionStatic || state == model.MotionHandheld {
		return nil
	}

	name := directionNames[key]
	avoid := avoidDirections[key]
	e.hyst.RecordAdvice(category, currentTime)
	return &Payload{
		Priority:         PriorityInfo,
		Category:         CategoryComposition,
		Message:          fmt.Sprintf(directionHint.Primary, name, avoid),
		SuppressDuration: secs(3),
	}
}

func angleToDirectionKey(angleDeg float64) (string, bool) {
	angle := math.Mod(angleDeg, 360)
	if angle < 0 {
		angle += 360
	}
	switch {
	case angle >= 45 && angle < 135:
		return "down", true
	case angle >= 135 && angle < 225:
		return "left", true
	case angle >= 225 && angle < 315:
		return "up", true
	case angle >= 315 || angle < 45:
		return "right", true
	}
	return "", false
}

func (e *Engine) subjectPositionAdvice(bbox model.BBox, currentTime float64) *Payload {
	category := string(CategoryComposition) + "_position"
	if e.hyst.IsOnCooldown(category, currentTime) {
		return nil
	}

	centerX := bbox.X + bbox.W/2
	centerY := bbox.Y + bbox.H/2

	distToCenter := math.Hypot(centerX-0.5, centerY-0.5)
	minThirds := math.Inf(1)
	for _, tx := range []float64{1.0 / 3, 2.0 / 3} {
		for _, ty := range []float64{1.0 / 3, 2.0 / 3} {
			if d := math.Hypot(centerX-tx, centerY-ty); d < minThirds {
				minThirds = d
			}
		}
	}
	minDist := math.Min(distToCenter, minThirds)
	if minDist <= e.cfg.SubjectDeviationThreshold {
		return nil
	}

	var direction string
	switch {
	case centerX < 0.4:
		direction = "右"
	case centerX > 0.6:
		direction = "左"
	case centerY < 0.4:
		direction = "下"
	case centerY > 0.6:
		direction = "上"
	default:
		return nil
	}

	if !e.hyst.IsConsistent(category, true) {
		return nil
	}
	e.hyst.RecordAdvice(category, currentTime)
	return &Payload{
		Priority:         PriorityWarning,
		Category:         CategoryComposition,
		Message:          fmt.Sprintf(subjectOffCenter.Primary, direction),
		SuppressDuration: secs(3),
	}
}

func (e *Engine) occupancyAdvice(subjectOccupancy, currentTime float64) *Payload {
	category := string(CategoryComposition) + "_occupancy"
	if e.hyst.IsOnCooldown(category, currentTime) {
		return nil
	}

	switch {
	case subjectOccupancy > e.cfg.SubjectOccupancyMax:
		if e.hyst.IsConsistent(category+"_large", true) {
			e.hyst.RecordAdvice(category, currentTime)
			return &Payload{Priority: PriorityWarning, Category: CategoryComposition, Message: subjectTooLarge.Primary, SuppressDuration: secs(3)}
		}
	case subjectOccupancy < e.cfg.SubjectOccupancyMin:
		if e.hyst.IsConsistent(category+"_small", true) {
			e.hyst.RecordAdvice(category, currentTime)
			return &Payload{Priority: PriorityWarning, Category: CategoryComposition, Message: subjectTooSmall.Primary, SuppressDuration: secs(3)}
		}
	}
	return nil
}

func (e *Engine) beatAdvice(beatTimestamps []float64, currentTime float64) *Payload {
	category := string(CategoryBeat)
	if e.hyst.IsOnCooldown(category, currentTime) {
		return nil
	}

	nearest := math.Inf(1)
	found := false
	for _, t := range beatTimestamps {
		if t >= currentTime && t-currentTime < nearest {
			nearest = t - currentTime
			found = true
		}
	}
	if !found {
		return nil
	}

	switch {
	case nearest <= e.cfg.BeatNowWindowS:
		e.hyst.RecordAdvice(category, currentTime)
		return &Payload{Priority: PriorityInfo, Category: CategoryBeat, Message: beatNow.Primary, SuppressDuration: secs(2)}
	case nearest <= e.cfg.BeatUpcomingWindowS:
		e.hyst.RecordAdvice(category, currentTime)
		return &Payload{Priority: PriorityInfo, Category: CategoryBeat, Message: beatUpcoming.Primary, SuppressDuration: secs(2)}
	}
	return nil
}

func (e *Engine) equipmentAdvice(motionSmoothness float64, focalLengthMM *float64, currentTime float64) *Payload {
	category := string(CategoryEquipment)
	if e.hyst.IsOnCooldown(category, currentTime) {
		return nil
	}

	if focalLengthMM != nil && *focalLengthMM > e.cfg.TelephotoFocalLengthMM && motionSmoothness < e.cfg.TelephotoSmoothnessThreshold {
		if e.hyst.IsConsistent(category+"_telephoto", true) {
			e.hyst.RecordAdvice(category, currentTime)
			return &Payload{Priority: PriorityWarning, Category: CategoryEquipment, Message: telephotoShake.Primary, SuppressDuration: secs(5)}
		}
	}

	if motionSmoothness < e.cfg.StabilityCriticalThreshold {
		if e.hyst.IsConsistent(category+"_stabilization", true) {
			e.hyst.RecordAdvice(category, currentTime)
			return &Payload{Priority: PriorityInfo, Category: CategoryEquipment, Message: stabilizationSuggestion.Primary, SuppressDuration: secs(5)}
		}
	}
	return nil
}

// Reset clears all engine state: smoothing, hysteresis, motion state
// machine and subject-lost tracking.
func (e *Engine) Reset() {
	e.smoother.Reset()
	e.hyst.Reset("")
	e.stateMachine.Reset()
	e.subjectLostSince = nil
}

// MotionType returns the engine's currently committed motion classification.
func (e *Engine) MotionType() model.MotionType {
	return e.stateMachine.CurrentState()
}

// IsSubjectLost reports whether the subject is currently in the lost state.
func (e *Engine) IsSubjectLost() bool {
	return e.subjectLostSince != nil
}

func secs(n float64) time.Duration {
	return time.Duration(n * float64(time.Second))
}
