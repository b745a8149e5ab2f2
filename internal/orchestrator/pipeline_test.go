package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shootcoach/internal/metadata"
	"shootcoach/internal/model"
)

type fakeUploader struct {
	out UploaderOutput
	err error
}

func (f fakeUploader) Process(ctx context.Context, videoPath, videoID string) (UploaderOutput, error) {
	return f.out, f.err
}

type fakeFeatureExtractor struct {
	out FeatureOutput
	err error
}

func (f fakeFeatureExtractor) Process(ctx context.Context, in UploaderOutput) (FeatureOutput, error) {
	return f.out, f.err
}

func smoothDollyInFeatures() FeatureOutput {
	return FeatureOutput{
		AvgSpeedPxPerS: 60,
		BBoxSequence: []model.BBox{
			{X: 0.3, Y: 0.3, W: 0.2, H: 0.2},
			{X: 0.28, Y: 0.28, W: 0.24, H: 0.24},
			{X: 0.26, Y: 0.26, W: 0.3, H: 0.3},
		},
		MotionTimestamps: []float64{1.0, 2.0},
		BeatTimestamps:   []float64{1.05, 2.02},
	}
}

func TestRun_HappyPathReachesCompletedWithConfidenceAction(t *testing.T) {
	uploader := fakeUploader{out: UploaderOutput{VideoID: "clip-1", DurationS: 3.0}}
	extractor := fakeFeatureExtractor{out: smoothDollyInFeatures()}
	synthesizer := metadata.New(metadata.Config{ValidateOutput: true, AutoFixInvalid: true}, nil, nil, nil)

	p := New(DefaultConfig(), uploader, extractor, synthesizer, nil)

	var stages []Stage
	result := p.Run(context.Background(), "video.mp4", "clip-1", func(pr Progress) {
		stages = append(stages, pr.Stage)
	})

	require.NoError(t, result.Err)
	assert.Equal(t, "clip-1", result.JobID)
	assert.Equal(t, StageCompleted, stages[len(stages)-1])
	assert.NotEmpty(t, result.InstructionCard.Primary)
	assert.Contains(t, []ConfidenceAction{ActionProceed, ActionWarn, ActionManual}, result.ConfidenceAction)
}

func TestRun_UploadFailureReportsFailedStage(t *testing.T) {
	uploader := fakeUploader{err: errors.New("disk full")}
	extractor := fakeFeatureExtractor{}
	synthesizer := metadata.New(metadata.DefaultConfig(), nil, nil, nil)

	cfg := DefaultConfig()
	p := New(cfg, uploader, extractor, synthesizer, nil)

	var lastStage Stage
	result := p.Run(context.Background(), "video.mp4", "clip-2", func(pr Progress) {
		lastStage = pr.Stage
	})

	require.Error(t, result.Err)
	assert.Equal(t, StageFailed, lastStage)
}

func TestRun_FeatureExtractionFailureRetainsUploadOutput(t *testing.T) {
	uploader := fakeUploader{out: UploaderOutput{VideoID: "clip-3", DurationS: 4.5}}
	extractor := fakeFeatureExtractor{err: errors.New("tracker crashed")}
	synthesizer := metadata.New(metadata.DefaultConfig(), nil, nil, nil)

	p := New(DefaultConfig(), uploader, extractor, synthesizer, nil)
	result := p.Run(context.Background(), "video.mp4", "clip-3", nil)

	require.Error(t, result.Err)
	assert.Equal(t, "clip-3", result.JobID)
	// The upload stage already completed before feature extraction failed;
	// that partial output must survive onto the failed Result.
	assert.Equal(t, 4.5, result.UploaderOutput.DurationS)
}

func TestRun_CanceledContextReportsCancelled(t *testing.T) {
	uploader := fakeUploader{err: context.Canceled}
	extractor := fakeFeatureExtractor{}
	synthesizer := metadata.New(metadata.DefaultConfig(), nil, nil, nil)

	p := New(DefaultConfig(), uploader, extractor, synthesizer, nil)
	result := p.Run(context.Background(), "video.mp4", "clip-4", nil)

	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "cancelled")
}

func TestHandleConfidence_Thresholds(t *testing.T) {
	p := New(DefaultConfig(), fakeUploader{}, fakeFeatureExtractor{}, metadata.New(metadata.DefaultConfig(), nil, nil, nil), nil)
	assert.Equal(t, ActionProceed, p.handleConfidence(0.9))
	assert.Equal(t, ActionWarn, p.handleConfidence(0.6))
	assert.Equal(t, ActionManual, p.handleConfidence(0.3))
}

func TestRunBatch_ProcessesAllJobsConcurrently(t *testing.T) {
	uploader := fakeUploader{out: UploaderOutput{DurationS: 2.0}}
	extractor := fakeFeatureExtractor{out: smoothDollyInFeatures()}
	synthesizer := metadata.New(metadata.DefaultConfig(), nil, nil, nil)
	p := New(DefaultConfig(), uploader, extractor, synthesizer, nil)

	jobs := []Job{{VideoPath: "a.mp4", VideoID: "a"}, {VideoPath: "b.mp4", VideoID: "b"}, {VideoPath: "c.mp4", VideoID: "c"}}
	results, err := p.RunBatch(context.Background(), jobs, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, job := range jobs {
		assert.Equal(t, job.VideoID, results[i].JobID)
	}
}
