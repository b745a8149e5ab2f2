// Package instruction implements the Instruction Card Generator (C7):
// renders a C6 MetadataOutput into the three-layer Chinese-language
// shooting advice card — Primary (actionable lines), Explain (rationale),
// Advanced (adjustable parameters and professional tips).
package instruction

import (
	"fmt"

	"shootcoach/internal/model"
)

// Config holds the text-mapping thresholds, matching the original
// generator's defaults exactly.
type Config struct {
	SlowThreshold              float64
	FastThreshold              float64
	HighSmoothnessThreshold    float64
	LowSmoothnessThreshold     float64
	HighConfidenceThreshold    float64
	MediumConfidenceThreshold  float64
}

// DefaultConfig returns the generator's stock thresholds.
func DefaultConfig() Config {
	return Config{
		SlowThreshold:             0.1,
		FastThreshold:             0.25,
		HighSmoothnessThreshold:   0.7,
		LowSmoothnessThreshold:    0.4,
		HighConfidenceThreshold:   0.75,
		MediumConfidenceThreshold: 0.55,
	}
}

// Generator renders InstructionCards from MetadataOutput.
type Generator struct {
	cfg Config
}

// New builds a Generator. The zero Config uses DefaultConfig.
func New(cfg Config) *Generator {
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	return &Generator{cfg: cfg}
}

// Generate renders the complete three-layer instruction card.
func (g *Generator) Generate(m model.MetadataOutput) model.InstructionCard {
	return model.InstructionCard{
		VideoID:  m.VideoID,
		Primary:  g.generatePrimary(m),
		Explain:  g.generateExplain(m),
		Advanced: g.generateAdvanced(m),
	}
}

var actionTypeChinese = map[model.MotionType]string{
	model.MotionDollyIn:  "推镜头",
	model.MotionDollyOut: "拉镜头",
	model.MotionPan:      "横摇镜头",
	model.MotionTilt:     "纵摇镜头",
	model.MotionTrack:    "跟踪镜头",
	model.MotionHandheld: "手持镜头",
	model.MotionStatic:   "静态镜头",
}

func (g *Generator) generatePrimary(m model.MetadataOutput) []string {
	lines := make([]string, 0, 4)

	lines = append(lines, fmt.Sprintf("时间段 %.1fs - %.1fs：%s",
		m.TimeRange.Start, m.TimeRange.End, actionType(m.MotionType)))

	speedDesc := g.mapSpeedDescription(m.MotionParams.FramePctChange, m.MotionType)
	lines = append(lines, fmt.Sprintf("运动方式：%s，持续 %.1f 秒", speedDesc, m.MotionParams.DurationS))

	lines = append(lines, g.mapEquipmentSuggestion(m.MotionParams.MotionSmoothness))

	switch {
	case m.Confidence > g.cfg.HighConfidenceThreshold:
		lines = append(lines, fmt.Sprintf("置信度：%.0f%%，推荐执行", m.Confidence*100))
	case m.Confidence >= g.cfg.MediumConfidenceThreshold:
		lines = append(lines, fmt.Sprintf("置信度：%.0f%%，请尝试并拍摄两条版本", m.Confidence*100))
	default:
		lines = append(lines, fmt.Sprintf("置信度：%.0f%%，建议人工确认。备选：%s", m.Confidence*100, alternativeSuggestion(m.MotionType)))
	}

	return lines
}

func actionType(mt model.MotionType) string {
	if s, ok := actionTypeChinese[mt]; ok {
		return s
	}
	return "未知镜头类型"
}

var alternativeSuggestions = map[model.MotionType]string{
	model.MotionDollyIn:  "静态特写或缓慢推进",
	model.MotionDollyOut: "静态全景或缓慢拉远",
	model.MotionPan:      "静态拍摄或分段横摇",
	model.MotionTilt:     "静态拍摄或分段纵摇",
	model.MotionTrack:    "固定机位跟拍或手持跟踪",
	model.MotionHandheld: "三脚架固定拍摄",
	model.MotionStatic:   "保持当前静态拍摄",
}

func alternativeSuggestion(mt model.MotionType) string {
	if s, ok := alternativeSuggestions[mt]; ok {
		return s
	}
	return "静态拍摄"
}

// mapSpeedDescription maps frame_pct_change + motion type to a Chinese
// speed phrase: slow/medium/fast prefix plus a direction word, matching
// Requirements 5.5-5.7 of the original generator.
func (g *Generator) mapSpeedDescription(framePctChange float64, mt model.MotionType) string {
	if mt == model.MotionStatic {
		return "静止"
	}

	direction := "运动"
	switch mt {
	case model.MotionDollyIn:
		direction = "推进"
	case model.MotionDollyOut:
		direction = "拉远"
	case model.MotionPan:
		direction = "横移"
	case model.MotionTilt:
		direction = "纵移"
	case model.MotionTrack:
		direction = "跟踪"
	case model.MotionHandheld:
		direction = "手持移动"
	}

	switch {
	case framePctChange < g.cfg.SlowThreshold:
		return "缓慢" + direction
	case framePctChange <= g.cfg.FastThreshold:
		return "中速" + direction
	default:
		if mt == model.MotionDollyIn || mt == model.MotionDollyOut {
			return "快速" + direction + "或换镜头"
		}
		return "快速" + direction
	}
}

func (g *Generator) speedCategory(framePctChange float64) string {
	switch {
	case framePctChange < g.cfg.SlowThreshold:
		return "slow"
	case framePctChange <= g.cfg.FastThreshold:
		return "medium"
	default:
		return "fast"
	}
}

// mapEquipmentSuggestion maps motion_smoothness to a stabilization
// recommendation, matching Requirements 5.8-5.10.
func (g *Generator) mapEquipmentSuggestion(motionSmoothness float64) string {
	switch {
	case motionSmoothness > g.cfg.HighSmoothnessThreshold:
		return "建议使用滑轨/电动滑轨/三轴稳定器"
	case motionSmoothness >= g.cfg.LowSmoothnessThreshold:
		return "建议手持配合云台/稳定器使用"
	default:
		return "建议使用三脚架静态拍摄或减少运动幅度"
	}
}

func (g *Generator) equipmentCategory(motionSmoothness float64) string {
	switch {
	case motionSmoothness > g.cfg.HighSmoothnessThreshold:
		return "professional"
	case motionSmoothness >= g.cfg.LowSmoothnessThreshold:
		return "handheld_gimbal"
	default:
		return "static"
	}
}

func (g *Generator) stabilizationRecommendation(motionSmoothness float64, mt model.MotionType) string {
	switch g.equipmentCategory(motionSmoothness) {
	case "professional":
		switch mt {
		case model.MotionDollyIn, model.MotionDollyOut:
			return "电动滑轨或轨道车"
		case model.MotionTrack:
			return "三轴稳定器或斯坦尼康"
		case model.MotionPan, model.MotionTilt:
			return "电动云台或液压云台"
		default:
			return "三轴稳定器"
		}
	case "handheld_gimbal":
		if mt == model.MotionHandheld {
			return "手持稳定器"
		}
		return "手持云台"
	default:
		if mt == model.MotionStatic {
			return "三脚架"
		}
		return "三脚架或独脚架"
	}
}

func (g *Generator) generateExplain(m model.MetadataOutput) string {
	explanation := g.explainMotionType(m.MotionType, m.MotionParams.FramePctChange, m.MotionParams.MotionSmoothness)
	explanation += g.explainFraming(m.Framing.SubjectOccupancy, m.Framing.SuggestedScale)
	if m.BeatAlignmentScore > 0.5 {
		explanation += explainRhythm(m.BeatAlignmentScore)
	}
	return explanation
}

func (g *Generator) explainMotionType(mt model.MotionType, framePctChange, motionSmoothness float64) string {
	smoothnessDesc := "需要稳定"
	switch {
	case motionSmoothness > 0.7:
		smoothnessDesc = "流畅"
	case motionSmoothness > 0.4:
		smoothnessDesc = "适中"
	}

	switch mt {
	case model.MotionDollyIn:
		return fmt.Sprintf("画面呈现向前推进的特征，主体逐渐放大，运动%s。", smoothnessDesc)
	case model.MotionDollyOut:
		return fmt.Sprintf("画面呈现向后拉远的特征，展示更多环境，运动%s。", smoothnessDesc)
	case model.MotionPan:
		return fmt.Sprintf("画面呈现水平横移特征，适合展示宽广场景，运动%s。", smoothnessDesc)
	case model.MotionTilt:
		return fmt.Sprintf("画面呈现垂直移动特征，适合展示高度变化，运动%s。", smoothnessDesc)
	case model.MotionTrack:
		return fmt.Sprintf("画面呈现跟随主体运动的特征，保持主体在画面中的位置，运动%s。", smoothnessDesc)
	case model.MotionHandheld:
		return "画面呈现手持拍摄的自然晃动特征，具有临场感。"
	case model.MotionStatic:
		return "画面稳定无明显运动，适合静态构图或等待动作发生。"
	default:
		return fmt.Sprintf("检测到%s类型的镜头运动。", mt)
	}
}

var scaleDescriptions = map[model.SuggestedScale]string{
	model.ScaleExtremeCloseup: "特写",
	model.ScaleCloseup:        "近景",
	model.ScaleMedium:         "中景",
	model.ScaleWide:           "远景/全景",
}

func (g *Generator) explainFraming(subjectOccupancy float64, scale model.SuggestedScale) string {
	occupancyPct := int(subjectOccupancy * 100)
	scaleDesc := scaleDescriptions[scale]
	if scaleDesc == "" {
		scaleDesc = "中景"
	}

	switch {
	case subjectOccupancy >= 0.5:
		return fmt.Sprintf("主体占画面约%d%%，构图紧凑，建议%s拍摄以突出主体细节。", occupancyPct, scaleDesc)
	case subjectOccupancy >= 0.25:
		return fmt.Sprintf("主体占画面约%d%%，构图均衡，建议%s拍摄以平衡主体与环境。", occupancyPct, scaleDesc)
	case subjectOccupancy >= 0.1:
		return fmt.Sprintf("主体占画面约%d%%，环境占比较大，建议%s拍摄以展示场景氛围。", occupancyPct, scaleDesc)
	default:
		return fmt.Sprintf("主体占画面约%d%%，以环境为主，建议%s拍摄以呈现整体场景。", occupancyPct, scaleDesc)
	}
}

func explainRhythm(beatAlignment float64) string {
	switch {
	case beatAlignment > 0.8:
		return "镜头运动与音乐节拍高度同步，建议保持这种节奏感。"
	case beatAlignment > 0.6:
		return "镜头运动与音乐节拍较为同步，可适当强化节奏配合。"
	default:
		return "镜头运动与音乐节拍有一定关联，可考虑调整以增强节奏感。"
	}
}

var targetOccupancyRanges = map[model.SuggestedScale]string{
	model.ScaleExtremeCloseup: "60%-80%",
	model.ScaleCloseup:        "40%-60%",
	model.ScaleMedium:         "20%-40%",
	model.ScaleWide:           "5%-20%",
}

var speedCurveDescriptions = map[model.SpeedProfile]string{
	model.SpeedEaseIn:    "渐入（开始慢，逐渐加速）",
	model.SpeedEaseOut:   "渐出（开始快，逐渐减速）",
	model.SpeedEaseInOut: "渐入渐出（两端慢，中间快）",
	model.SpeedLinear:    "线性（匀速运动）",
}

func (g *Generator) generateAdvanced(m model.MetadataOutput) model.AdvancedParams {
	targetRange, ok := targetOccupancyRanges[m.Framing.SuggestedScale]
	if !ok {
		targetRange = "20%-40%"
	}
	targetOccupancy := fmt.Sprintf("当前%d%%，目标%s", int(m.Framing.SubjectOccupancy*100), targetRange)

	speedCurve, ok := speedCurveDescriptions[m.MotionParams.SpeedProfile]
	if !ok {
		speedCurve = "线性"
	}

	return model.AdvancedParams{
		TargetOccupancy: targetOccupancy,
		DurationS:       m.MotionParams.DurationS,
		SpeedCurve:      speedCurve,
		Stabilization:   g.stabilizationRecommendation(m.MotionParams.MotionSmoothness, m.MotionType),
		Notes:           g.professionalNotes(m),
	}
}

func (g *Generator) professionalNotes(m model.MetadataOutput) []string {
	var notes []string

	if estimate := estimatePhysicalMovement(m.MotionType, m.MotionParams.FramePctChange, m.MotionParams.DurationS); estimate != "" {
		notes = append(notes, estimate)
	}
	if lens := suggestLens(m.Framing.SuggestedScale, m.MotionType); lens != "" {
		notes = append(notes, lens)
	}
	if m.BeatAlignmentScore > 0.5 {
		notes = append(notes, "注意与音乐节拍配合，可在节拍点开始或结束运动")
	}
	if m.MotionParams.MotionSmoothness < 0.5 {
		notes = append(notes, "当前运动较为抖动，建议增加稳定措施或降低运动速度")
	}
	if tip := compositionTip(m.Framing.SuggestedScale); tip != "" {
		notes = append(notes, tip)
	}

	return notes
}

// estimatePhysicalMovement gives a rough, explicitly-approximate physical
// distance/angle estimate from the frame-change ratio, matching the
// original's back-of-envelope conversion factors.
func estimatePhysicalMovement(mt model.MotionType, framePctChange, durationS float64) string {
	switch mt {
	case model.MotionStatic:
		return ""
	case model.MotionDollyIn, model.MotionDollyOut:
		distanceM := framePctChange * 5.0
		var speedMS float64
		if durationS > 0 {
			speedMS = distanceM / durationS
		}
		return fmt.Sprintf("预估移动距离约 %.1fm，速度约 %.2fm/s", distanceM, speedMS)
	case model.MotionPan, model.MotionTilt:
		angleDeg := framePctChange * 150
		var angularSpeed float64
		if durationS > 0 {
			angularSpeed = angleDeg / durationS
		}
		direction := "垂直"
		if mt == model.MotionPan {
			direction = "水平"
		}
		return fmt.Sprintf("预估%s旋转约 %.0f°，角速度约 %.1f°/s", direction, angleDeg, angularSpeed)
	case model.MotionTrack:
		distanceM := framePctChange * 3.0
		return fmt.Sprintf("预估跟踪距离约 %.1fm", distanceM)
	default:
		return ""
	}
}

var lensFocalSuggestions = map[model.SuggestedScale]string{
	model.ScaleExtremeCloseup: "85-135mm 或微距镜头",
	model.ScaleCloseup:        "50-85mm",
	model.ScaleMedium:         "35-50mm",
	model.ScaleWide:           "16-35mm 广角镜头",
}

func suggestLens(scale model.SuggestedScale, mt model.MotionType) string {
	base, ok := lensFocalSuggestions[scale]
	if !ok {
		return ""
	}
	switch mt {
	case model.MotionDollyIn, model.MotionDollyOut:
		return fmt.Sprintf("建议焦段：%s，推拉镜头可考虑变焦镜头配合", base)
	case model.MotionHandheld:
		return fmt.Sprintf("建议焦段：%s，手持拍摄建议使用防抖镜头", base)
	default:
		return fmt.Sprintf("建议焦段：%s", base)
	}
}

var compositionTips = map[model.SuggestedScale]string{
	model.ScaleExtremeCloseup: "特写构图注意眼神光和皮肤质感",
	model.ScaleCloseup:        "近景构图注意头部空间和视线方向",
	model.ScaleMedium:         "中景构图注意人物与环境的平衡",
	model.ScaleWide:           "远景构图注意前景元素和景深层次",
}

func compositionTip(scale model.SuggestedScale) string {
	return compositionTips[scale]
}
