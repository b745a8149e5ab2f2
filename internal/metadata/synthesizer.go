// Package metadata implements the Metadata Synthesizer (C6): combines
// rule-based motion classification with optional LLM enhancement to
// produce a confidence-scored, schema-validated MetadataOutput.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"shootcoach/internal/model"
	"shootcoach/internal/modelclient"
	"shootcoach/internal/motion"
	"shootcoach/internal/retry"
	"shootcoach/internal/validate"
)

// Config tunes the synthesizer's LLM usage, fallback and validation behavior.
type Config struct {
	UseLLM          bool
	FallbackToRules bool
	ValidateOutput  bool
	AutoFixInvalid  bool
}

// DefaultConfig returns the synthesizer's stock behavior: LLM enhancement
// on, falling back to rules on failure, output validated and auto-fixed.
func DefaultConfig() Config {
	return Config{
		UseLLM:          true,
		FallbackToRules: true,
		ValidateOutput:  true,
		AutoFixInvalid:  true,
	}
}

// Synthesizer produces MetadataOutput for one analyzed clip.
type Synthesizer struct {
	cfg        Config
	classifier *motion.Classifier
	provider   modelclient.Provider // nil disables LLM enhancement regardless of cfg.UseLLM
	executor   *retry.Executor
	validator  *validate.Validator
}

// New builds a Synthesizer. A nil provider disables LLM enhancement.
func New(cfg Config, classifier *motion.Classifier, provider modelclient.Provider, executor *retry.Executor) *Synthesizer {
	if classifier == nil {
		classifier = motion.New(motion.DefaultConfig())
	}
	if executor == nil {
		executor = retry.New(retry.DefaultConfig("metadata-llm"))
	}
	return &Synthesizer{
		cfg:        cfg,
		classifier: classifier,
		provider:   provider,
		executor:   executor,
		validator:  validate.New(),
	}
}

type llmResult struct {
	motionType      *model.MotionType
	speedProfile    *model.SpeedProfile
	suggestedScale  *model.SuggestedScale
	confidence      *float64
	explainability  string
}

// Process generates MetadataOutput for one heuristic indicator window.
func (s *Synthesizer) Process(ctx context.Context, h model.HeuristicOutput, exif *model.ExifData, primaryDirectionDeg *float64) (model.MetadataOutput, error) {
	motionType := s.classifier.Infer(h, primaryDirectionDeg)
	speedProfile := s.classifier.InferSpeedProfile(h, motionType)
	suggestedScale := s.classifier.InferSuggestedScale(h.SubjectOccupancy)
	ruleConfidence := s.classifier.Confidence(h, motionType)

	var llm *llmResult
	if s.cfg.UseLLM && s.provider != nil {
		result, err := s.enhanceWithLLM(ctx, h, exif)
		if err != nil && !s.cfg.FallbackToRules {
			return model.MetadataOutput{}, fmt.Errorf("llm enhancement: %w", err)
		}
		llm = result
	}

	motionType, speedProfile, suggestedScale, llmConfidence, llmExplainability := mergeLLM(motionType, speedProfile, suggestedScale, llm)

	confidence := calculateFinalConfidence(ruleConfidence, llmConfidence, h)
	explainability := generateExplainability(motionType, h, llmExplainability)

	out := model.MetadataOutput{
		VideoID:    h.VideoID,
		TimeRange:  h.TimeRange,
		MotionType: motionType,
		MotionParams: model.MotionParams{
			DurationS:        h.TimeRange.End - h.TimeRange.Start,
			FramePctChange:   h.FramePctChange,
			SpeedProfile:     speedProfile,
			MotionSmoothness: h.MotionSmoothness,
		},
		Framing: model.FramingData{
			SubjectBBox:      averageBBox(h.SubjectOccupancy),
			SubjectOccupancy: h.SubjectOccupancy,
			SuggestedScale:   suggestedScale,
		},
		BeatAlignmentScore: h.BeatAlignmentScore,
		Confidence:         confidence,
		Explainability:     explainability,
	}

	if !s.cfg.ValidateOutput {
		return out, nil
	}

	if err := s.validator.Metadata(out); err == nil {
		return out, nil
	}

	if !s.cfg.AutoFixInvalid {
		return model.MetadataOutput{}, fmt.Errorf("metadata failed validation: %w", s.validator.Metadata(out))
	}

	fixed := autoFix(out)
	if err := s.validator.Metadata(fixed); err != nil {
		return model.MetadataOutput{}, fmt.Errorf("metadata failed validation after auto-fix: %w", err)
	}
	return fixed, nil
}

func (s *Synthesizer) enhanceWithLLM(ctx context.Context, h model.HeuristicOutput, exif *model.ExifData) (*llmResult, error) {
	var parsed *llmResult
	err := s.executor.Do(ctx, func(ctx context.Context) error {
		result, err := s.provider.Complete(ctx, buildCompletionRequest(h, exif))
		if err != nil {
			return err
		}
		r, err := parseLLMResponse(result)
		if err != nil {
			return err
		}
		parsed = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return parsed, nil
}

func buildCompletionRequest(h model.HeuristicOutput, exif *model.ExifData) modelclient.CompletionRequest {
	var sb strings.Builder
	fmt.Fprintf(&sb, "motion_smoothness=%.2f frame_pct_change=%.2f subject_occupancy=%.2f beat_alignment=%.2f",
		h.MotionSmoothness, h.FramePctChange, h.SubjectOccupancy, h.BeatAlignmentScore)
	if exif != nil && exif.FocalLengthMM != nil {
		fmt.Fprintf(&sb, " focal_length_mm=%.0f", *exif.FocalLengthMM)
	}
	return modelclient.CompletionRequest{
		Messages: []modelclient.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: sb.String()},
		},
		Temperature: 0.3,
		MaxTokens:   256,
	}
}

const systemPrompt = "你是视频拍摄顾问，请根据给定的运动指标生成简短的中文解释。"

// llmJSON is the structured shape the model is asked to answer in. Fields
// are pointers so a response that omits one (or the whole schema) leaves
// that slot nil rather than zero-valuing an enum.
type llmJSON struct {
	MotionType     *string  `json:"motion_type"`
	SpeedProfile   *string  `json:"speed_profile"`
	SuggestedScale *string  `json:"suggested_scale"`
	Confidence     *float64 `json:"confidence"`
	Explainability *string  `json:"explainability"`
}

var fencedBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)```")

// extractJSON tries, in order: the whole trimmed text as raw JSON, the
// first fenced code block, then the first balanced {...} substring. This
// mirrors models that wrap their JSON answer in prose or markdown fencing
// instead of returning it bare.
func extractJSON(text string) (llmJSON, error) {
	var parsed llmJSON
	if err := json.Unmarshal([]byte(text), &parsed); err == nil {
		return parsed, nil
	}
	if m := fencedBlockPattern.FindStringSubmatch(text); m != nil {
		if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &parsed); err == nil {
			return parsed, nil
		}
	}
	if obj := firstBalancedObject(text); obj != "" {
		if err := json.Unmarshal([]byte(obj), &parsed); err == nil {
			return parsed, nil
		}
	}
	return llmJSON{}, fmt.Errorf("no parseable JSON object in model response")
}

// firstBalancedObject scans for the first top-level {...} span, tracking
// brace depth and skipping braces that appear inside quoted strings.
func firstBalancedObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

func isValidMotionType(mt model.MotionType) bool {
	switch mt {
	case model.MotionStatic, model.MotionHandheld, model.MotionDollyIn, model.MotionDollyOut, model.MotionPan, model.MotionTilt, model.MotionTrack:
		return true
	default:
		return false
	}
}

func isValidSpeedProfile(sp model.SpeedProfile) bool {
	switch sp {
	case model.SpeedLinear, model.SpeedEaseIn, model.SpeedEaseOut, model.SpeedEaseInOut:
		return true
	default:
		return false
	}
}

func isValidSuggestedScale(sc model.SuggestedScale) bool {
	switch sc {
	case model.ScaleWide, model.ScaleMedium, model.ScaleCloseup, model.ScaleExtremeCloseup:
		return true
	default:
		return false
	}
}

// parseLLMResponse parses the model's answer as JSON (raw, fenced, or
// embedded in prose) and lifts any structured fields it recognizes into an
// llmResult. An unparseable response is a retryable error — the caller's
// retry executor re-attempts the call rather than silently discarding the
// model's contribution, matching _normalize_llm_result's strictness.
func parseLLMResponse(result modelclient.CompletionResult) (*llmResult, error) {
	text := strings.TrimSpace(result.Text)
	if text == "" {
		return nil, fmt.Errorf("empty model response")
	}

	parsed, err := extractJSON(text)
	if err != nil {
		return nil, err
	}

	r := &llmResult{}
	if parsed.MotionType != nil {
		if mt := model.MotionType(*parsed.MotionType); isValidMotionType(mt) {
			r.motionType = &mt
		}
	}
	if parsed.SpeedProfile != nil {
		if sp := model.SpeedProfile(*parsed.SpeedProfile); isValidSpeedProfile(sp) {
			r.speedProfile = &sp
		}
	}
	if parsed.SuggestedScale != nil {
		if sc := model.SuggestedScale(*parsed.SuggestedScale); isValidSuggestedScale(sc) {
			r.suggestedScale = &sc
		}
	}

	conf := result.Confidence
	if parsed.Confidence != nil {
		conf = *parsed.Confidence
	}
	r.confidence = &conf

	if parsed.Explainability != nil && strings.TrimSpace(*parsed.Explainability) != "" {
		r.explainability = *parsed.Explainability
	}

	return r, nil
}

func mergeLLM(motionType model.MotionType, speedProfile model.SpeedProfile, suggestedScale model.SuggestedScale, llm *llmResult) (model.MotionType, model.SpeedProfile, model.SuggestedScale, *float64, string) {
	if llm == nil {
		return motionType, speedProfile, suggestedScale, nil, ""
	}
	if llm.motionType != nil {
		motionType = *llm.motionType
	}
	if llm.speedProfile != nil {
		speedProfile = *llm.speedProfile
	}
	if llm.suggestedScale != nil {
		suggestedScale = *llm.suggestedScale
	}
	return motionType, speedProfile, suggestedScale, llm.confidence, llm.explainability
}

// calculateFinalConfidence blends rule-based and LLM confidence (LLM
// weighted higher, 0.6 vs 0.4), then nudges the result by data-quality
// signals: smoother motion raises it, extreme frame-change ratios and
// boundary values lower it, strong beat alignment raises it slightly.
func calculateFinalConfidence(ruleConfidence float64, llmConfidence *float64, h model.HeuristicOutput) float64 {
	confidence := ruleConfidence
	if llmConfidence != nil {
		confidence = 0.4*ruleConfidence + 0.6**llmConfidence
	}

	confidence += 0.1 * (h.MotionSmoothness - 0.5)

	if h.FramePctChange < 0.01 || h.FramePctChange > 0.95 {
		confidence -= 0.05
	}
	if h.BeatAlignmentScore > 0.7 {
		confidence += 0.05
	}

	return clamp01(confidence)
}

var motionDescriptions = map[model.MotionType]string{
	model.MotionStatic:   "静态镜头",
	model.MotionDollyIn:  "推镜头",
	model.MotionDollyOut: "拉镜头",
	model.MotionPan:      "横摇镜头",
	model.MotionTilt:     "纵摇镜头",
	model.MotionTrack:    "跟踪镜头",
	model.MotionHandheld: "手持镜头",
}

// generateExplainability prefers a usable LLM explanation (long enough to
// be meaningful, truncated if it exceeds the schema's 500-char cap) and
// otherwise builds a deterministic two-sentence explanation from the rule
// based indicators.
func generateExplainability(motionType model.MotionType, h model.HeuristicOutput, llmExplainability string) string {
	if trimmed := strings.TrimSpace(llmExplainability); len(trimmed) > 10 {
		if r := []rune(llmExplainability); len(r) > 500 {
			return string(r[:497]) + "..."
		}
		return llmExplainability
	}
	return defaultExplainability(motionType, h)
}

func defaultExplainability(motionType model.MotionType, h model.HeuristicOutput) string {
	desc := motionDescriptions[motionType]
	if desc == "" {
		desc = "未知运动类型"
	}

	smoothnessDesc := "略有抖动"
	switch {
	case h.MotionSmoothness > 0.7:
		smoothnessDesc = "平滑"
	case h.MotionSmoothness > 0.4:
		smoothnessDesc = "中等流畅度"
	}

	var sentence1 string
	switch motionType {
	case model.MotionStatic:
		sentence1 = fmt.Sprintf("该镜头为%s，画面稳定无明显运动。", desc)
	case model.MotionDollyIn, model.MotionDollyOut:
		direction := "推进"
		if motionType == model.MotionDollyOut {
			direction = "拉远"
		}
		speedDesc := "快速"
		switch {
		case h.FramePctChange < 0.1:
			speedDesc = "缓慢"
		case h.FramePctChange <= 0.25:
			speedDesc = "中速"
		}
		sentence1 = fmt.Sprintf("该镜头为%s%s，运动%s。", speedDesc, direction, smoothnessDesc)
	case model.MotionPan:
		sentence1 = fmt.Sprintf("该镜头为横向摇移，运动%s，适合展示宽广场景。", smoothnessDesc)
	case model.MotionTilt:
		sentence1 = fmt.Sprintf("该镜头为纵向摇移，运动%s，适合展示高度变化。", smoothnessDesc)
	case model.MotionTrack:
		sentence1 = fmt.Sprintf("该镜头为跟踪运动，运动%s，持续跟随主体。", smoothnessDesc)
	case model.MotionHandheld:
		sentence1 = "该镜头呈现手持拍摄特征，具有自然的运动感。"
	default:
		sentence1 = fmt.Sprintf("该镜头为%s，运动%s。", desc, smoothnessDesc)
	}

	occupancyPct := int(h.SubjectOccupancy * 100)
	var compositionAdvice string
	switch {
	case h.SubjectOccupancy >= 0.5:
		compositionAdvice = fmt.Sprintf("主体占画面约%d%%，构图紧凑", occupancyPct)
	case h.SubjectOccupancy >= 0.25:
		compositionAdvice = fmt.Sprintf("主体占画面约%d%%，构图适中", occupancyPct)
	case h.SubjectOccupancy >= 0.1:
		compositionAdvice = fmt.Sprintf("主体占画面约%d%%，留有环境空间", occupancyPct)
	default:
		compositionAdvice = fmt.Sprintf("主体占画面约%d%%，以环境为主", occupancyPct)
	}

	techniqueHint := "建议增加稳定措施或采用静态拍摄"
	switch {
	case h.MotionSmoothness > 0.7:
		techniqueHint = "建议使用滑轨或稳定器保持流畅"
	case h.MotionSmoothness > 0.4:
		techniqueHint = "可配合云台使用"
	}

	rhythmHint := ""
	if h.BeatAlignmentScore > 0.7 {
		rhythmHint = "，节奏感强"
	}

	sentence2 := fmt.Sprintf("%s%s，%s。", compositionAdvice, rhythmHint, techniqueHint)
	return sentence1 + sentence2
}

// averageBBox estimates a centered subject bbox from occupancy alone,
// since HeuristicOutput doesn't carry a raw bbox sequence. Assumes a 4:3
// subject aspect ratio, matching the original's estimate.
func averageBBox(occupancy float64) model.BBox {
	if occupancy <= 0 {
		return model.BBox{X: 0.4, Y: 0.4, W: 0.2, H: 0.2}
	}
	h := math.Min(1.0, math.Sqrt(3*occupancy/4))
	w := math.Min(1.0, 4*h/3)
	x := math.Max(0.0, (1.0-w)/2)
	y := math.Max(0.0, (1.0-h)/2)
	return model.BBox{X: x, Y: y, W: w, H: h}
}

// autoFix clamps out-of-range numeric fields to schema-valid bounds,
// matching the original's best-effort repair before failing the pipeline.
func autoFix(m model.MetadataOutput) model.MetadataOutput {
	m.Confidence = clamp01(m.Confidence)
	m.BeatAlignmentScore = clamp01(m.BeatAlignmentScore)
	m.MotionParams.FramePctChange = clamp01(m.MotionParams.FramePctChange)
	m.MotionParams.MotionSmoothness = clamp01(m.MotionParams.MotionSmoothness)
	if m.MotionParams.DurationS <= 0 {
		m.MotionParams.DurationS = 0.001
	}
	m.Framing.SubjectOccupancy = clamp01(m.Framing.SubjectOccupancy)
	m.Framing.SubjectBBox = normalizeBBox(m.Framing.SubjectBBox)

	if m.TimeRange.Start < 0 {
		m.TimeRange.Start = 0
	}
	if m.TimeRange.End <= m.TimeRange.Start {
		m.TimeRange.End = m.TimeRange.Start + 1.0
	}

	if r := []rune(m.Explainability); len(r) > 500 {
		m.Explainability = string(r[:497]) + "..."
	}
	return m
}

func normalizeBBox(b model.BBox) model.BBox {
	b.X = clamp01(b.X)
	b.Y = clamp01(b.Y)
	if b.W <= 0 {
		b.W = 0.01
	}
	if b.H <= 0 {
		b.H = 0.01
	}
	if b.X+b.W > 1 {
		b.W = 1 - b.X
	}
	if b.Y+b.H > 1 {
		b.H = 1 - b.Y
	}
	return b
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
