// Package realtime implements the Realtime Analyzer (C9): per-session
// frame-buffer decoding, adaptive optical-flow estimation, subject
// tracking and environment feature extraction under a hard latency
// budget. Heavier vision work (real Farneback/Lucas-Kanade flow, a real
// subject detector) is a contract boundary in the original system; here
// it is reimplemented as lightweight block-matching / edge-density
// estimators in the same adaptive two-tier shape, so the degraded-mode
// and confidence logic this package owns has real signal to react to.
package realtime

import (
	"math"

	"shootcoach/internal/advice"
	"shootcoach/internal/indicators"
	"shootcoach/internal/model"
)

// Config tunes buffering, resize target and adaptive-degradation
// thresholds. Defaults mirror RealtimeAnalyzerConfig exactly.
type Config struct {
	BufferCapacity      int
	MinReadyFrames      int
	TargetWidth         int
	TargetHeight        int
	CenterRegionOnly    bool
	UseSparseFlow       bool
	LatencyThresholdMs  float64
	LatencyHistorySize  int

	SubjectTracker SubjectTrackerConfig
	Flow           FlowConfig
}

// DefaultConfig returns the analyzer's stock tuning.
func DefaultConfig() Config {
	return Config{
		BufferCapacity:     10,
		MinReadyFrames:     5,
		TargetWidth:        320,
		TargetHeight:       240,
		LatencyThresholdMs: 500,
		LatencyHistorySize: 5,
		SubjectTracker:     DefaultSubjectTrackerConfig(),
		Flow:               DefaultFlowConfig(),
	}
}

// AnalysisResult is one analysis cycle's full output: the raw indicators
// feeding C3/C4/C5 plus the realtime-only environment/latency signals.
type AnalysisResult struct {
	AvgSpeedPxFrame     float64
	SpeedVariance       float64
	MotionSmoothness    float64
	PrimaryDirectionDeg float64

	SubjectBBox      *model.BBox
	SubjectOccupancy float64
	SubjectLost      bool

	Environment       EnvironmentFeatures
	AnalysisLatencyMs float64
	Confidence        float64
}

// ToAdviceInput projects the fields the Advice Engine (C5) consumes.
func (r AnalysisResult) ToAdviceInput() advice.AnalysisResult {
	return advice.AnalysisResult{
		AvgSpeedPxFrame:     r.AvgSpeedPxFrame,
		SpeedVariance:       r.SpeedVariance,
		MotionSmoothness:    r.MotionSmoothness,
		PrimaryDirectionDeg: r.PrimaryDirectionDeg,
		SubjectBBox:         r.SubjectBBox,
		SubjectOccupancy:    r.SubjectOccupancy,
		SubjectLost:         r.SubjectLost,
		Confidence:          r.Confidence,
	}
}

// Analyzer holds one session's buffering, degradation and tracking state.
// Not safe for concurrent use — the spec assigns one analysis task per
// session, so a single Analyzer is only ever driven from that task.
type Analyzer struct {
	cfg     Config
	buffer  *FrameBuffer
	kernel  *indicators.Kernel
	tracker *SubjectTracker

	degraded       bool
	latencyHistory []float64
}

// New builds an Analyzer with the given config (zero value uses DefaultConfig).
func New(cfg Config) *Analyzer {
	if cfg.BufferCapacity == 0 {
		cfg = DefaultConfig()
	}
	return &Analyzer{
		cfg:     cfg,
		buffer:  NewFrameBuffer(cfg.BufferCapacity),
		kernel:  indicators.New(indicators.DefaultConfig()),
		tracker: NewSubjectTracker(cfg.SubjectTracker),
	}
}

// Submit decodes a Base64 JPEG frame batch and adds the successfully
// decoded frames to the sliding buffer.
func (a *Analyzer) Submit(b64Frames []string, fps float64, startTimestampS float64) int {
	frames := DecodeFrameBuffer(b64Frames, fps, startTimestampS)
	a.buffer.AddAll(frames)
	return len(frames)
}

// Ready reports whether enough frames are buffered for an analysis cycle.
func (a *Analyzer) Ready() bool {
	return a.buffer.Ready(a.cfg.MinReadyFrames)
}

// AnalyzeBuffer runs one full analysis cycle over the currently buffered
// frames. Fewer than MinReadyFrames frames yields a low-confidence,
// near-zero result rather than an error, matching the original's
// insufficient-data fallback.
func (a *Analyzer) AnalyzeBuffer() AnalysisResult {
	frames := a.buffer.Frames()
	if len(frames) < a.cfg.MinReadyFrames {
		return AnalysisResult{MotionSmoothness: 0.5, Environment: neutralEnvironment()}
	}

	resized := make([]*grayFrame, len(frames))
	for i, f := range frames {
		img := resizeToTarget(f.Img, a.cfg.TargetWidth, a.cfg.TargetHeight)
		resized[i] = toGray(img)
	}

	algo := AlgorithmDense
	if a.degraded || a.cfg.UseSparseFlow {
		algo = AlgorithmSparse
	}

	latencyMs := estimateLatencyMs(len(frames), algo)
	a.recordLatency(latencyMs)

	flow := computeFlow(resized, a.cfg.Flow, algo)
	smoothness := a.kernel.MotionSmoothness(flow.FlowVectors)
	speedVariance := speedVarianceOf(flow.FlowVectors)

	lastImg := resizeToTarget(frames[len(frames)-1].Img, a.cfg.TargetWidth, a.cfg.TargetHeight)
	bbox, occupancy, lost := a.tracker.Update(resized[len(resized)-1])
	env := computeEnvironment(lastImg)

	confidence := confidenceOf(len(frames), len(flow.FlowVectors), bbox != nil)

	return AnalysisResult{
		AvgSpeedPxFrame:     flow.AvgSpeedPxFrame,
		SpeedVariance:       speedVariance,
		MotionSmoothness:    smoothness,
		PrimaryDirectionDeg: flow.PrimaryDirectionDeg,
		SubjectBBox:         bbox,
		SubjectOccupancy:    occupancy,
		SubjectLost:         lost,
		Environment:         env,
		AnalysisLatencyMs:   latencyMs,
		Confidence:          confidence,
	}
}

// estimateLatencyMs is a deterministic proxy for wall-clock analysis cost:
// 40ms per buffered frame, scaled by 0.3 for the sparse tier.
// A real deployment would time the actual computeFlow call; this keeps
// the degradation state machine exercised without relying on wall-clock
// timing in tests.
func estimateLatencyMs(frameCount int, algo Algorithm) float64 {
	base := float64(frameCount) * 40
	if algo == AlgorithmSparse {
		return base * 0.3
	}
	return base
}

func (a *Analyzer) recordLatency(latencyMs float64) {
	size := a.cfg.LatencyHistorySize
	if size <= 0 {
		size = 5
	}
	a.latencyHistory = append(a.latencyHistory, latencyMs)
	if len(a.latencyHistory) > size {
		a.latencyHistory = a.latencyHistory[len(a.latencyHistory)-size:]
	}
	a.checkDegradation()
}

func (a *Analyzer) checkDegradation() {
	if len(a.latencyHistory) < 2 {
		return
	}
	sum := 0.0
	for _, l := range a.latencyHistory {
		sum += l
	}
	avg := sum / float64(len(a.latencyHistory))

	threshold := a.cfg.LatencyThresholdMs
	switch {
	case avg > threshold:
		a.degraded = true
	case avg < threshold*0.5:
		a.degraded = false
	}
}

// ShouldDegrade reports whether the analyzer is currently in sparse-flow
// degraded mode.
func (a *Analyzer) ShouldDegrade() bool {
	return a.degraded
}

func speedVarianceOf(vectors []indicators.FlowVector) float64 {
	if len(vectors) < 2 {
		return 0
	}
	mags := make([]float64, len(vectors))
	for i, v := range vectors {
		mags[i] = math.Hypot(v.VX, v.VY)
	}
	m := mean(mags)
	variance := 0.0
	for _, mg := range mags {
		d := mg - m
		variance += d * d
	}
	return variance / float64(len(mags))
}

func confidenceOf(frameCount, flowVectorCount int, hasSubject bool) float64 {
	var frameConf float64
	switch {
	case frameCount < 5:
		frameConf = float64(frameCount) / 5.0
	case frameCount <= 10:
		frameConf = 1.0
	default:
		frameConf = 0.9
	}

	var flowConf float64
	switch {
	case flowVectorCount < 2:
		flowConf = 0.3
	case flowVectorCount < 5:
		flowConf = 0.7
	default:
		flowConf = 1.0
	}

	subjectConf := 0.8
	if hasSubject {
		subjectConf = 1.0
	}

	return clamp01(frameConf*0.4 + flowConf*0.4 + subjectConf*0.2)
}

// Reset clears all per-session state, matching a session's explicit reset
// on reconnect-from-scratch.
func (a *Analyzer) Reset() {
	a.buffer.Clear()
	a.tracker.Reset()
	a.degraded = false
	a.latencyHistory = nil
}
