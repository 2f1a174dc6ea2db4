package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/priyadarshi7/ZenLearn/internal/artifact"
	"github.com/priyadarshi7/ZenLearn/internal/audio"
	"github.com/priyadarshi7/ZenLearn/internal/reaction"
	"github.com/priyadarshi7/ZenLearn/pkg/models"
)

// Stage names, used as error prefixes and log attributes.
const (
	StageTranscription = "transcription"
	StageGeneration    = "reaction generation"
	StageSynthesis     = "speech synthesis"
	StageSave          = "saving artifact"
)

// Pipeline runs transcribe -> generate -> synthesize for one stored clip.
type Pipeline struct {
	transcriber     models.Transcriber
	generator       models.ReactionGenerator
	synthesizer     models.Synthesizer
	artifacts       *artifact.Store
	prompt          *reaction.Prompt
	fallbackEmotion string
	stageTimeout    time.Duration
}

// PipelineConfig carries the collaborators of a Pipeline.
type PipelineConfig struct {
	Transcriber     models.Transcriber
	Generator       models.ReactionGenerator
	Synthesizer     models.Synthesizer
	Artifacts       *artifact.Store
	Prompt          *reaction.Prompt
	FallbackEmotion string
	StageTimeout    time.Duration
}

// NewPipeline creates a Pipeline. A nil Prompt selects the built-in audience prompt.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	prompt := cfg.Prompt
	if prompt == nil {
		prompt = reaction.DefaultPrompt()
	}
	return &Pipeline{
		transcriber:     cfg.Transcriber,
		generator:       cfg.Generator,
		synthesizer:     cfg.Synthesizer,
		artifacts:       cfg.Artifacts,
		prompt:          prompt,
		fallbackEmotion: cfg.FallbackEmotion,
		stageTimeout:    cfg.StageTimeout,
	}
}

// DefaultVoice is the synthesizer's voice for jobs that name none.
func (p *Pipeline) DefaultVoice() string { return p.synthesizer.DefaultVoice() }

// Run processes the clip at inputPath for jobID and returns the finished result.
// Errors are prefixed with the failing stage, e.g. "speech synthesis failed: ...".
func (p *Pipeline) Run(ctx context.Context, jobID uuid.UUID, inputPath, voice string) (*models.ReactionResult, error) {
	start := time.Now()
	logger := slog.With("job_id", jobID)

	var inputDuration float64
	if d, err := audio.ProbeMP3(inputPath); err != nil {
		logger.Warn("probing input duration", "error", err)
	} else {
		inputDuration = d.Seconds()
	}

	var transcript string
	err := p.stage(ctx, logger, StageTranscription, func(ctx context.Context) error {
		var err error
		transcript, err = p.transcriber.Transcribe(ctx, inputPath)
		return err
	})
	if err != nil {
		return nil, err
	}

	var raw string
	err = p.stage(ctx, logger, StageGeneration, func(ctx context.Context) error {
		prompt, err := p.prompt.Render(transcript)
		if err != nil {
			return err
		}
		raw, err = p.generator.Generate(ctx, prompt)
		return err
	})
	if err != nil {
		return nil, err
	}

	parsed := reaction.Parse(raw, p.fallbackEmotion)

	// The audio body is read while the synthesis deadline is still live, so
	// saving happens inside the synthesis stage and its error is reported separately.
	var audioFile string
	var saveErr error
	err = p.stage(ctx, logger, StageSynthesis, func(stageCtx context.Context) error {
		stream, err := p.synthesizer.Synthesize(stageCtx, parsed.Text, voice)
		if err != nil {
			return err
		}
		defer stream.Close()
		audioFile, saveErr = p.artifacts.SaveReaction(jobID, stream)
		if saveErr != nil && ctx.Err() == nil && errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
			saveErr = fmt.Errorf("%w after %s: %w", ErrStageTimeout, p.stageTimeout, saveErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if saveErr != nil {
		logger.Error("stage failed", "stage", StageSave, "error", saveErr)
		return nil, fmt.Errorf("%s failed: %w", StageSave, saveErr)
	}

	result := &models.ReactionResult{
		Transcript:     transcript,
		Emotion:        parsed.Emotion,
		ReactionText:   parsed.Text,
		AudioFile:      audioFile,
		AudioURL:       artifact.ReactionURL(audioFile),
		ProcessingTime: time.Since(start).Seconds(),
		InputDuration:  inputDuration,
	}
	logger.Info("pipeline completed",
		"emotion", result.Emotion,
		"audio_file", result.AudioFile,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// stage runs fn under the per-stage timeout and prefixes any error with the stage name.
func (p *Pipeline) stage(ctx context.Context, logger *slog.Logger, name string, fn func(context.Context) error) error {
	stageCtx := ctx
	if p.stageTimeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, p.stageTimeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(stageCtx)
	if err == nil {
		logger.Debug("stage completed", "stage", name, "duration_ms", time.Since(start).Milliseconds())
		return nil
	}

	if ctx.Err() == nil && errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %s: %w", ErrStageTimeout, p.stageTimeout, err)
	}
	logger.Error("stage failed", "stage", name, "error", err, "duration_ms", time.Since(start).Milliseconds())
	return fmt.Errorf("%s failed: %w", name, err)
}
