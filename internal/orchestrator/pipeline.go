// Package orchestrator implements the Offline Orchestrator (C8): runs one
// video through Upload -> Feature Extraction -> Heuristic Analysis ->
// Metadata Synthesis -> Instruction Generation, with per-stage retry,
// confidence gating and schema validation.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"shootcoach/internal/config"
	"shootcoach/internal/indicators"
	"shootcoach/internal/instruction"
	"shootcoach/internal/logging"
	"shootcoach/internal/metadata"
	"shootcoach/internal/model"
	"shootcoach/internal/retry"
	"shootcoach/internal/validate"
)

// UploaderOutput is what the upload/preprocessing stage contributes: a
// normalized video plus any EXIF metadata recovered from the source file.
// No concrete uploader is implemented here — see the Uploader interface.
type UploaderOutput struct {
	VideoID   string
	DurationS float64
	Exif      *model.ExifData
}

// FeatureOutput is the raw per-frame tracking data the feature extraction
// stage contributes, consumed directly by the Indicator Kernel (C1).
type FeatureOutput struct {
	AvgSpeedPxPerS      float64
	FlowVectors         []indicators.FlowVector
	BBoxSequence        []model.BBox
	MotionTimestamps    []float64
	BeatTimestamps      []float64
	PrimaryDirectionDeg *float64
}

// Uploader is the contract for video ingestion/preprocessing. No concrete
// implementation ships here: a deployment wires in whatever transcoding or
// storage-backed uploader it uses.
type Uploader interface {
	Process(ctx context.Context, videoPath, videoID string) (UploaderOutput, error)
}

// FeatureExtractor is the contract for optical-flow / pose / detector
// feature extraction. No concrete implementation ships here.
type FeatureExtractor interface {
	Process(ctx context.Context, in UploaderOutput) (FeatureOutput, error)
}

// ConfidenceAction tells a caller what to do with a finished pipeline run
// based on its final confidence score.
type ConfidenceAction string

const (
	ActionProceed ConfidenceAction = "proceed"
	ActionWarn    ConfidenceAction = "warn"
	ActionManual  ConfidenceAction = "manual"
)

// Config tunes the pipeline's concurrency, confidence gating and
// validation behavior. Defaults match the original orchestrator exactly.
type Config struct {
	MaxConcurrentJobs int

	HighConfidenceThreshold   float64
	MediumConfidenceThreshold float64

	ValidateMetadata    bool
	AutoCompleteMissing bool
}

// DefaultConfig returns the orchestrator's stock tuning.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentJobs:         4,
		HighConfidenceThreshold:   0.75,
		MediumConfidenceThreshold: 0.55,
		ValidateMetadata:          true,
		AutoCompleteMissing:       true,
	}
}

// ConfigFromSettings maps the process-wide orchestrator settings onto a
// Pipeline Config, so cmd entrypoints only need to load config once.
func ConfigFromSettings(s config.OrchestratorSettings) Config {
	cfg := DefaultConfig()
	cfg.MaxConcurrentJobs = s.MaxConcurrentJobs
	cfg.HighConfidenceThreshold = s.MinConfidenceProc
	cfg.MediumConfidenceThreshold = s.MinConfidenceManual
	return cfg
}

// Stage identifies a pipeline step for progress reporting.
type Stage string

const (
	StageUpload                 Stage = "upload"
	StageFeatureExtraction      Stage = "feature_extraction"
	StageHeuristicAnalysis      Stage = "heuristic_analysis"
	StageMetadataSynthesis      Stage = "metadata_synthesis"
	StageInstructionGeneration  Stage = "instruction_generation"
	StageCompleted              Stage = "completed"
	StageFailed                 Stage = "failed"
)

// Progress is one progress report emitted during pipeline execution.
type Progress struct {
	JobID      string
	Stage      Stage
	ProgressPct float64
	Message    string
}

// ProgressFunc receives progress reports; nil is a valid no-op callback.
type ProgressFunc func(Progress)

// Result is everything a completed (or failed) pipeline run produced.
type Result struct {
	JobID            string
	UploaderOutput   UploaderOutput
	FeatureOutput    FeatureOutput
	HeuristicOutput  model.HeuristicOutput
	MetadataOutput   model.MetadataOutput
	InstructionCard  model.InstructionCard
	ConfidenceAction ConfidenceAction
	Err              error
}

// Pipeline wires the five offline stages together behind retry executors.
type Pipeline struct {
	cfg Config

	uploader         Uploader
	featureExtractor FeatureExtractor
	kernel           *indicators.Kernel
	synthesizer      *metadata.Synthesizer
	generator        *instruction.Generator
	validator        *validate.Validator

	uploadExecutor  *retry.Executor
	featureExecutor *retry.Executor

	logger logging.Logger
}

// New builds a Pipeline. uploader and featureExtractor are the only two
// external-service contracts the caller must supply; every downstream
// stage is self-contained.
func New(cfg Config, uploader Uploader, featureExtractor FeatureExtractor, synthesizer *metadata.Synthesizer, logger logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewLoggerWithComponent("orchestrator")
	}
	return &Pipeline{
		cfg:              cfg,
		uploader:         uploader,
		featureExtractor: featureExtractor,
		kernel:           indicators.New(indicators.DefaultConfig()),
		synthesizer:      synthesizer,
		generator:        instruction.New(instruction.DefaultConfig()),
		validator:        validate.New(),
		uploadExecutor:   retry.New(withLogger(retry.DefaultConfig("uploader"), logger)),
		featureExecutor:  retry.New(withLogger(retry.DefaultConfig("feature-extractor"), logger)),
		logger:           logger,
	}
}

func withLogger(cfg retry.Config, logger logging.Logger) retry.Config {
	cfg.Logger = logger
	return cfg
}

// Run executes the complete pipeline for one video, reporting progress
// through report (nil is fine) and never returning an error itself —
// failures are captured in Result.Err so a batch run (see RunBatch) can
// continue processing other jobs.
func (p *Pipeline) Run(ctx context.Context, videoPath, videoID string, report ProgressFunc) Result {
	jobID := videoID
	if jobID == "" {
		jobID = uuid.NewString()
	}
	result := Result{JobID: jobID}

	emit := func(stage Stage, pct float64, message string) {
		if report != nil {
			report(Progress{JobID: jobID, Stage: stage, ProgressPct: pct, Message: message})
		}
	}

	emit(StageUpload, 0, "开始处理视频...")
	var uploaderOutput UploaderOutput
	err := p.uploadExecutor.Do(ctx, func(ctx context.Context) error {
		var innerErr error
		uploaderOutput, innerErr = p.uploader.Process(ctx, videoPath, jobID)
		return innerErr
	})
	if err != nil {
		return p.fail(result, fmt.Errorf("upload stage: %w", err), emit)
	}
	result.UploaderOutput = uploaderOutput
	emit(StageUpload, 20, "视频预处理完成")

	emit(StageFeatureExtraction, 20, "正在提取特征...")
	var featureOutput FeatureOutput
	err = p.featureExecutor.Do(ctx, func(ctx context.Context) error {
		var innerErr error
		featureOutput, innerErr = p.featureExtractor.Process(ctx, uploaderOutput)
		return innerErr
	})
	if err != nil {
		return p.fail(result, fmt.Errorf("feature extraction stage: %w", err), emit)
	}
	result.FeatureOutput = featureOutput
	emit(StageFeatureExtraction, 50, "特征提取完成")

	emit(StageHeuristicAnalysis, 50, "正在分析运动特征...")
	heuristicOutput := p.kernel.Compute(indicators.Inputs{
		VideoID:          jobID,
		TimeRange:        model.TimeRange{Start: 0, End: uploaderOutput.DurationS},
		AvgSpeedPxPerS:   featureOutput.AvgSpeedPxPerS,
		FlowVectors:      featureOutput.FlowVectors,
		BBoxSequence:     featureOutput.BBoxSequence,
		MotionTimestamps: featureOutput.MotionTimestamps,
		BeatTimestamps:   featureOutput.BeatTimestamps,
	})
	result.HeuristicOutput = heuristicOutput
	emit(StageHeuristicAnalysis, 70, "运动分析完成")

	emit(StageMetadataSynthesis, 70, "正在生成元数据...")
	metadataOutput, err := p.synthesizer.Process(ctx, heuristicOutput, uploaderOutput.Exif, featureOutput.PrimaryDirectionDeg)
	if err != nil {
		return p.fail(result, fmt.Errorf("metadata synthesis stage: %w", err), emit)
	}

	if p.cfg.ValidateMetadata {
		if verr := p.validator.Metadata(metadataOutput); verr != nil {
			p.logger.WithFields(logging.Fields{"job_id": jobID, "error": verr.Error()}).Warn("metadata validation failed")
			if p.cfg.AutoCompleteMissing {
				metadataOutput.Confidence = clamp01(metadataOutput.Confidence)
				metadataOutput.BeatAlignmentScore = clamp01(metadataOutput.BeatAlignmentScore)
			}
		}
	}
	result.MetadataOutput = metadataOutput
	emit(StageMetadataSynthesis, 85, "元数据生成完成")

	emit(StageInstructionGeneration, 85, "正在生成拍摄指令...")
	card := p.generator.Generate(metadataOutput)
	card.VideoID = jobID
	result.InstructionCard = card
	result.ConfidenceAction = p.handleConfidence(metadataOutput.Confidence)

	emit(StageCompleted, 100, "分析完成")
	return result
}

// fail attaches err to the result accumulated so far and returns it as-is,
// so a caller always sees every stage output that actually completed
// rather than losing them to a fresh zero-value Result — matching
// orchestrator.py's result.error = str(e); return result. A context
// cancellation is reported with a "cancelled: " prefix ahead of the
// stage's wrapped error text, since it isn't really that stage's failure.
func (p *Pipeline) fail(result Result, err error, emit func(Stage, float64, string)) Result {
	if errors.Is(err, context.Canceled) {
		err = fmt.Errorf("cancelled: %w", err)
	}
	p.logger.WithFields(logging.Fields{"job_id": result.JobID, "error": err.Error()}).Error("pipeline failed")
	emit(StageFailed, 0, fmt.Sprintf("处理失败: %v", err))
	result.Err = err
	return result
}

// handleConfidence maps a final confidence score onto an action, matching
// Requirements 7.4-7.6: >0.75 proceed, 0.55-0.75 warn, <0.55 manual review.
func (p *Pipeline) handleConfidence(confidence float64) ConfidenceAction {
	switch {
	case confidence > p.cfg.HighConfidenceThreshold:
		return ActionProceed
	case confidence >= p.cfg.MediumConfidenceThreshold:
		return ActionWarn
	default:
		return ActionManual
	}
}

// ConfidenceMessage returns the user-facing message for a confidence
// action, or "" for ActionProceed.
func ConfidenceMessage(action ConfidenceAction) string {
	switch action {
	case ActionWarn:
		return "请尝试并拍摄两条版本"
	case ActionManual:
		return "置信度较低，建议人工确认后再执行"
	default:
		return ""
	}
}

// Job is one unit of work for RunBatch.
type Job struct {
	VideoPath string
	VideoID   string
}

// RunBatch processes jobs concurrently, bounded by Config.MaxConcurrentJobs,
// returning one Result per job in submission order. A single job's failure
// doesn't cancel the others — see Result.Err.
func (p *Pipeline) RunBatch(ctx context.Context, jobs []Job, report ProgressFunc) ([]Result, error) {
	results := make([]Result, len(jobs))

	g, ctx := errgroup.WithContext(ctx)
	limit := p.cfg.MaxConcurrentJobs
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			results[i] = p.Run(ctx, job.VideoPath, job.VideoID, report)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, fmt.Errorf("batch run: %w", err)
	}
	return results, nil
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
