package pipeline

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/storyreel/storyreel/internal/batch"
	"github.com/storyreel/storyreel/internal/domain"
	"github.com/storyreel/storyreel/internal/redact"
	"github.com/storyreel/storyreel/internal/retry"
)

// renderJob renders one scene job end to end: parent clip generation under
// the retry policy, dependent sub-shots, and the final mux. The returned
// error is non-nil only for cancellation; every other failure is recorded on
// the outcome so the batch always yields one outcome per job.
func (p *Pipeline) renderJob(ctx context.Context, runDir string, limit int, job domain.SceneJob, refFrame string) (domain.GenerationOutcome, error) {
	outcome := domain.GenerationOutcome{
		SceneID:  job.SceneID,
		Position: job.Position,
		Params:   job.ResolvedParams(),
	}

	artifact, attempts, err := p.generateClip(ctx, runDir, job, refFrame)
	outcome.Attempts = attempts
	if err != nil {
		if ctx.Err() != nil {
			return domain.GenerationOutcome{}, ctx.Err()
		}
		outcome.Err = classifyRunError(err)
		p.logger.Warn("scene generation failed",
			"scene_id", job.SceneID,
			"attempts", attempts,
			"error", redact.Error(err))
		return outcome, nil
	}

	if len(job.SubShots) == 0 {
		outcome.Success = true
		outcome.Artifact = artifact
		return outcome, nil
	}
	return p.renderSubShots(ctx, runDir, limit, job, artifact, outcome)
}

// generateClip runs the generation and download calls for the parent clip,
// returning the local path of the finished file and the number of generation
// attempts spent. A dialogue rejection flips the prompt to its stripped form
// for the remainder of the run.
func (p *Pipeline) generateClip(ctx context.Context, runDir string, job domain.SceneJob, refFrame string) (string, int, error) {
	imagePaths := []string{job.ImagePath}
	if refFrame != "" {
		imagePaths = append(imagePaths, refFrame)
	}
	params := job.ResolvedParams()

	var (
		attempts      int
		stripDialogue bool
	)
	handle, err := retry.Do(ctx, p.policy(), func(ctx context.Context, attempt retry.Attempt) (domain.ArtifactHandle, error) {
		attempts = attempt.Number
		if attempt.Mutate {
			stripDialogue = true
			p.logger.Info("retrying with dialogue stripped from prompt",
				"scene_id", job.SceneID,
				"attempt", attempt.Number)
		}
		if err := p.acquire(ctx); err != nil {
			return domain.ArtifactHandle{}, err
		}
		return p.generator.ImageToVideo(ctx, domain.GenerationRequest{
			SceneID:    job.SceneID,
			Prompt:     job.BuildPrompt(!stripDialogue),
			ImagePaths: imagePaths,
			Params:     params,
		})
	})
	if err != nil {
		return "", attempts, err
	}

	path, err := p.downloadArtifact(ctx, handle, runDir)
	if err != nil {
		return "", attempts, err
	}
	return path, attempts, nil
}

// downloadArtifact fetches a finished clip under the retry policy. The
// mutation channel does not apply here; downloads carry no prompt.
func (p *Pipeline) downloadArtifact(ctx context.Context, handle domain.ArtifactHandle, destDir string) (string, error) {
	return retry.Do(ctx, p.policy(), func(ctx context.Context, _ retry.Attempt) (string, error) {
		return p.generator.DownloadArtifact(ctx, handle, destDir)
	})
}

// renderSubShots generates each sub-shot from a frame of the parent clip and
// concatenates the parent plus successful subs into the scene's final
// artifact. The parent clip is never discarded: if the sub-shot input frame
// cannot be extracted the scene degrades to the parent alone, and a failed
// mux records the parent path alongside the failure.
func (p *Pipeline) renderSubShots(ctx context.Context, runDir string, limit int, job domain.SceneJob, parentArtifact string, outcome domain.GenerationOutcome) (domain.GenerationOutcome, error) {
	outcome.ParentArtifact = parentArtifact

	subFrame, err := p.frames.ExtractFrame(ctx, parentArtifact, p.config.FrameIndex)
	if err != nil {
		if ctx.Err() != nil {
			return domain.GenerationOutcome{}, ctx.Err()
		}
		p.logger.Warn("sub-shot input frame extraction failed, keeping parent clip only",
			"scene_id", job.SceneID,
			"error", err)
		svcErr := domain.WrapServiceError(domain.ErrorKindUnknown, "ffmpeg", "extract", err)
		for _, sub := range job.SubShots {
			outcome.SubOutcomes = append(outcome.SubOutcomes, domain.SubOutcome{Label: sub.Label, Err: svcErr})
			outcome.FailedSubItems = append(outcome.FailedSubItems, sub.Label)
		}
		outcome.Success = true
		outcome.Artifact = parentArtifact
		return outcome, nil
	}

	subOutcomes, err := batch.Run(ctx, limit, job.SubShots,
		func(ctx context.Context, _ int, sub domain.SubShot) (domain.SubOutcome, error) {
			return p.generateSubShot(ctx, runDir, job, sub, subFrame)
		})
	if err != nil {
		return domain.GenerationOutcome{}, err
	}

	clips := []string{parentArtifact}
	for _, sub := range subOutcomes {
		outcome.SubOutcomes = append(outcome.SubOutcomes, sub)
		if sub.Success {
			clips = append(clips, sub.Artifact)
		} else {
			outcome.FailedSubItems = append(outcome.FailedSubItems, sub.Label)
		}
	}

	if len(clips) == 1 {
		outcome.Success = true
		outcome.Artifact = parentArtifact
		return outcome, nil
	}

	muxed, err := p.muxer.Concatenate(ctx, clips, filepath.Join(runDir, job.SceneID+"-final.mp4"))
	if err != nil {
		if ctx.Err() != nil {
			return domain.GenerationOutcome{}, ctx.Err()
		}
		p.logger.Warn("clip concatenation failed",
			"scene_id", job.SceneID,
			"clips", len(clips),
			"error", err)
		outcome.Err = domain.WrapServiceError(domain.ErrorKindMuxFailure, "ffmpeg", "mux", err)
		return outcome, nil
	}
	outcome.Success = true
	outcome.Artifact = muxed
	return outcome, nil
}

// generateSubShot renders one dependent sub-clip from the parent frame. Sub
// prompts are free text with no structured dialogue, so the mutation channel
// is ignored. The returned error is non-nil only for cancellation.
func (p *Pipeline) generateSubShot(ctx context.Context, runDir string, job domain.SceneJob, sub domain.SubShot, subFrame string) (domain.SubOutcome, error) {
	params := job.ResolvedParams().Merge(sub.Params)

	handle, err := retry.Do(ctx, p.policy(), func(ctx context.Context, _ retry.Attempt) (domain.ArtifactHandle, error) {
		if err := p.acquire(ctx); err != nil {
			return domain.ArtifactHandle{}, err
		}
		return p.generator.ImageToVideo(ctx, domain.GenerationRequest{
			SceneID:    job.SceneID + "/" + sub.Label,
			Prompt:     sub.Prompt,
			ImagePaths: []string{subFrame},
			Params:     params,
		})
	})
	if err == nil {
		var path string
		path, err = p.downloadArtifact(ctx, handle, runDir)
		if err == nil {
			return domain.SubOutcome{Label: sub.Label, Success: true, Artifact: path}, nil
		}
	}
	if ctx.Err() != nil {
		return domain.SubOutcome{}, ctx.Err()
	}
	p.logger.Warn("sub-shot generation failed",
		"scene_id", job.SceneID,
		"sub_shot", sub.Label,
		"error", redact.Error(err))
	return domain.SubOutcome{Label: sub.Label, Err: classifyRunError(err)}, nil
}

// acquire blocks on the rate limiter when one is configured.
func (p *Pipeline) acquire(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	return p.limiter.Acquire(ctx)
}

// ClassifyGenerationError maps a generation failure onto the retry classes:
// context errors and fatal kinds stop the attempts, a dialogue rejection
// earns its single mutating retry, and everything else, including errors
// that were never classified at a service boundary, goes through the
// backoff loop.
func ClassifyGenerationError(err error) retry.Class {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return retry.ClassFatal
	}
	svcErr, ok := domain.AsServiceError(err)
	if !ok {
		return retry.ClassRetryable
	}
	switch {
	case svcErr.Kind.Recoverable():
		return retry.ClassRecoverable
	case svcErr.Kind.Retryable():
		return retry.ClassRetryable
	default:
		return retry.ClassFatal
	}
}

// classifyRunError shapes a terminal render failure for the outcome record.
// Exhaustion keeps the failing service's identity under the orchestrator's
// exhausted kind; unclassified errors get the unknown wrapper.
func classifyRunError(err error) *domain.ServiceError {
	if errors.Is(err, retry.ErrExhausted) {
		service, stage := "pipeline", "generate"
		if inner, ok := domain.AsServiceError(err); ok {
			service, stage = inner.Service, inner.Stage
		}
		return domain.WrapServiceError(domain.ErrorKindExhausted, service, stage, err)
	}
	return domain.ServiceErrorFrom(err)
}
