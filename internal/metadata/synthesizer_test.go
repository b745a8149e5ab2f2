package metadata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shootcoach/internal/model"
	"shootcoach/internal/modelclient"
	"shootcoach/internal/retry"
)

func dollyInHeuristics() model.HeuristicOutput {
	return model.HeuristicOutput{
		VideoID:            "clip-1",
		TimeRange:          model.TimeRange{Start: 0, End: 3},
		AvgMotionPxPerS:     60,
		FramePctChange:      0.2,
		MotionSmoothness:    0.85,
		SubjectOccupancy:    0.4,
		BeatAlignmentScore:  0.3,
	}
}

func TestProcess_RuleBasedOnlyProducesValidMetadata(t *testing.T) {
	s := New(Config{ValidateOutput: true, AutoFixInvalid: true}, nil, nil, nil)
	out, err := s.Process(context.Background(), dollyInHeuristics(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, model.MotionDollyIn, out.MotionType)
	assert.NotEmpty(t, out.Explainability)
	assert.True(t, out.Confidence >= 0 && out.Confidence <= 1)
}

func TestProcess_LLMEnhancementSuppliesExplainability(t *testing.T) {
	stub := modelclient.StubProvider{Response: `{"explainability":"推镜头流畅自然，建议保持当前速度完成构图。"}`}
	s := New(DefaultConfig(), nil, stub, nil)
	out, err := s.Process(context.Background(), dollyInHeuristics(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "推镜头流畅自然，建议保持当前速度完成构图。", out.Explainability)
}

// easeInHeuristics reproduces the dolly-in case where the rule-based
// classifier lands on ease_in (smoothness <= 0.8, frame_pct_change > 0.1)
// so a model override to ease_in_out is observable.
func easeInHeuristics() model.HeuristicOutput {
	return model.HeuristicOutput{
		VideoID:            "clip-2",
		TimeRange:          model.TimeRange{Start: 0, End: 3},
		AvgMotionPxPerS:    60,
		FramePctChange:     0.2,
		MotionSmoothness:   0.78,
		SubjectOccupancy:   0.4,
		BeatAlignmentScore: 0.3,
	}
}

func TestProcess_RuleBasedOnly_EaseInHeuristicsYieldEaseIn(t *testing.T) {
	s := New(Config{ValidateOutput: true, AutoFixInvalid: true}, nil, nil, nil)
	out, err := s.Process(context.Background(), easeInHeuristics(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, model.SpeedEaseIn, out.MotionParams.SpeedProfile)
}

func TestProcess_LLMJSONResponseOverridesSpeedProfile(t *testing.T) {
	stub := modelclient.StubProvider{Response: `{"motion_type":"dolly_in","speed_profile":"ease_in_out","suggested_scale":"medium","confidence":0.9,"explainability":"平滑推进，建议保持匀速。"}`}
	s := New(DefaultConfig(), nil, stub, nil)
	out, err := s.Process(context.Background(), easeInHeuristics(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, model.SpeedEaseInOut, out.MotionParams.SpeedProfile)
	assert.Equal(t, model.ScaleMedium, out.Framing.SuggestedScale)
	assert.Equal(t, "平滑推进，建议保持匀速。", out.Explainability)
}

func TestProcess_LLMFencedJSONBlockIsParsed(t *testing.T) {
	stub := modelclient.StubProvider{Response: "这是分析结果：\n```json\n{\"speed_profile\":\"ease_in_out\"}\n```\n谢谢。"}
	s := New(DefaultConfig(), nil, stub, nil)
	out, err := s.Process(context.Background(), easeInHeuristics(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, model.SpeedEaseInOut, out.MotionParams.SpeedProfile)
}

func TestProcess_LLMUnparseableResponseFallsBackToRules(t *testing.T) {
	stub := modelclient.StubProvider{Response: "推镜头流畅自然，建议保持当前速度完成构图。"}
	s := New(DefaultConfig(), nil, stub, nil)
	out, err := s.Process(context.Background(), easeInHeuristics(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, model.SpeedEaseIn, out.MotionParams.SpeedProfile)
	assert.NotEqual(t, stub.Response, out.Explainability)
}

func TestParseLLMResponse_ExtractsBalancedObjectFromProse(t *testing.T) {
	result := modelclient.CompletionResult{
		Text:       `分析如下 {"motion_type": "pan", "confidence": 0.7} 结束。`,
		Confidence: 0.4,
	}
	r, err := parseLLMResponse(result)
	require.NoError(t, err)
	require.NotNil(t, r.motionType)
	assert.Equal(t, model.MotionPan, *r.motionType)
	assert.InDelta(t, 0.7, *r.confidence, 1e-9)
}

func TestParseLLMResponse_UnparseableTextIsRetryableError(t *testing.T) {
	_, err := parseLLMResponse(modelclient.CompletionResult{Text: "no json here at all"})
	require.Error(t, err)
	assert.True(t, retry.ShouldRetry(err))
}

func TestParseLLMResponse_InvalidEnumValuesAreIgnored(t *testing.T) {
	result := modelclient.CompletionResult{Text: `{"motion_type":"teleport","speed_profile":"warp"}`}
	r, err := parseLLMResponse(result)
	require.NoError(t, err)
	assert.Nil(t, r.motionType)
	assert.Nil(t, r.speedProfile)
}

func TestProcess_AutoFixClampsOutOfRangeDuration(t *testing.T) {
	s := New(Config{ValidateOutput: true, AutoFixInvalid: true}, nil, nil, nil)
	h := dollyInHeuristics()
	h.TimeRange = model.TimeRange{Start: 5, End: 5} // zero duration, needs fixing
	out, err := s.Process(context.Background(), h, nil, nil)
	require.NoError(t, err)
	assert.Greater(t, out.MotionParams.DurationS, 0.0)
	assert.Greater(t, out.TimeRange.End, out.TimeRange.Start)
}

func TestCalculateFinalConfidence_BlendsAndAdjusts(t *testing.T) {
	h := model.HeuristicOutput{MotionSmoothness: 0.8, FramePctChange: 0.2, BeatAlignmentScore: 0.8}
	llmConf := 0.9
	got := calculateFinalConfidence(0.5, &llmConf, h)
	assert.InDelta(t, 0.4*0.5+0.6*0.9+0.1*(0.8-0.5)+0.05, got, 1e-9)
}

func TestAverageBBox_ZeroOccupancyReturnsDefault(t *testing.T) {
	b := averageBBox(0)
	assert.Equal(t, model.BBox{X: 0.4, Y: 0.4, W: 0.2, H: 0.2}, b)
}
