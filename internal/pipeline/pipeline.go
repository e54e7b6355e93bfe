package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/storyreel/storyreel/internal/batch"
	"github.com/storyreel/storyreel/internal/continuity"
	"github.com/storyreel/storyreel/internal/domain"
	"github.com/storyreel/storyreel/internal/retry"
)

// Constructor validation errors.
var (
	// ErrNilGenerator is returned when no generation collaborator is provided.
	ErrNilGenerator = errors.New("generator cannot be nil")

	// ErrNilFrameExtractor is returned when no frame extractor is provided.
	ErrNilFrameExtractor = errors.New("frame extractor cannot be nil")

	// ErrNilMuxer is returned when no muxer is provided.
	ErrNilMuxer = errors.New("muxer cannot be nil")

	// ErrNilLogger is returned when no logger is provided.
	ErrNilLogger = errors.New("logger cannot be nil")
)

// Generator produces video clips from generation requests and fetches the
// finished artifacts. Provider failures are *domain.ServiceError values;
// context cancellation surfaces as the plain context error.
type Generator interface {
	ImageToVideo(ctx context.Context, req domain.GenerationRequest) (domain.ArtifactHandle, error)
	DownloadArtifact(ctx context.Context, handle domain.ArtifactHandle, destDir string) (string, error)
}

// FrameExtractor pulls a single frame from a finished clip. A negative
// frameIndex counts from the end of the clip.
type FrameExtractor interface {
	ExtractFrame(ctx context.Context, artifactPath string, frameIndex int) (string, error)
}

// Muxer concatenates clips into one file, preserving input order.
type Muxer interface {
	Concatenate(ctx context.Context, orderedPaths []string, outputPath string) (string, error)
}

// RateLimiter throttles generation call starts. Acquire blocks until a new
// start is admissible or ctx is cancelled.
type RateLimiter interface {
	Acquire(ctx context.Context) error
}

// ProgressReporter receives coarse progress updates during a run.
type ProgressReporter interface {
	Progress(pct int, message string)
}

// Config carries the run-independent pipeline settings.
type Config struct {
	// MaxConcurrentClips bounds simultaneous generation calls; a render
	// request may override it per run.
	MaxConcurrentClips int

	// FrameIndex selects the frame extracted for continuity seeding and
	// sub-shot input. Negative counts from the end of the clip.
	FrameIndex int

	// OutputDir is the root under which each run gets its own directory.
	OutputDir string

	// DefaultUseFrame is the resolver's answer when no judge is configured
	// or the judge is unavailable.
	DefaultUseFrame bool

	// Retry is the base policy for generation and download calls. A nil
	// classifier is replaced with ClassifyGenerationError.
	Retry retry.Policy
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentClips: 2,
		FrameIndex:         -1,
		OutputDir:          "out",
		DefaultUseFrame:    true,
		Retry:              retry.DefaultPolicy(),
	}
}

// Deps are the pipeline's collaborators. Generator, Frames, and Muxer are
// required; Judge and Limiter are optional.
type Deps struct {
	Generator Generator
	Frames    FrameExtractor
	Muxer     Muxer
	Judge     continuity.Judge
	Limiter   RateLimiter
}

// Pipeline renders scene sequences. Safe for concurrent runs; all per-run
// state lives on the stack of Run.
type Pipeline struct {
	generator Generator
	frames    FrameExtractor
	muxer     Muxer
	judge     continuity.Judge
	limiter   RateLimiter
	config    Config
	logger    *slog.Logger
}

// New creates a Pipeline, validating required collaborators and applying
// config defaults.
func New(deps Deps, config Config, logger *slog.Logger) (*Pipeline, error) {
	if deps.Generator == nil {
		return nil, ErrNilGenerator
	}
	if deps.Frames == nil {
		return nil, ErrNilFrameExtractor
	}
	if deps.Muxer == nil {
		return nil, ErrNilMuxer
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	defaults := DefaultConfig()
	if config.MaxConcurrentClips < 1 {
		config.MaxConcurrentClips = defaults.MaxConcurrentClips
	}
	if config.OutputDir == "" {
		config.OutputDir = defaults.OutputDir
	}
	return &Pipeline{
		generator: deps.Generator,
		frames:    deps.Frames,
		muxer:     deps.Muxer,
		judge:     deps.Judge,
		limiter:   deps.Limiter,
		config:    config,
		logger:    logger.With("component", "render_pipeline"),
	}, nil
}

// Run renders every scene in the request and returns one outcome per scene
// plus aggregate tallies. Individual scene failures are recorded in the
// report, not returned as errors; Run only fails when the run as a whole
// cannot proceed (cancellation, unusable output directory).
func (p *Pipeline) Run(ctx context.Context, req *domain.RenderRequest, reporter ProgressReporter) (*domain.RenderReport, error) {
	if req == nil || len(req.Scenes) == 0 {
		return nil, domain.ErrNoScenes
	}
	start := time.Now()

	runDir := filepath.Join(p.config.OutputDir, req.ID.String())
	if err := os.MkdirAll(runDir, 0o750); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}

	limit := req.Options.MaxConcurrentClips
	if limit < 1 {
		limit = p.config.MaxConcurrentClips
	}

	p.logger.Info("render run started",
		"request_id", req.ID,
		"scenes", len(req.Scenes),
		"continuity", req.Options.Continuity,
		"smart_judge", req.Options.SmartJudge,
		"max_concurrent_clips", limit)

	var (
		outcomes []domain.GenerationOutcome
		err      error
	)
	if req.Options.Continuity {
		outcomes, err = p.runSequential(ctx, runDir, limit, req, reporter)
	} else {
		outcomes, err = p.runParallel(ctx, runDir, limit, req, reporter)
	}
	if err != nil {
		return nil, err
	}

	report := domain.BuildReport(outcomes, time.Since(start))
	p.logger.Info("render run finished",
		"request_id", req.ID,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"elapsed", report.Elapsed)
	return report, nil
}

// runSequential processes scenes strictly in order, feeding each success
// forward as the next scene's continuity candidate. A failed scene resets
// the chain: the next judgment sees no previous artifact and short-circuits
// to no continuity.
func (p *Pipeline) runSequential(ctx context.Context, runDir string, limit int, req *domain.RenderRequest, reporter ProgressReporter) ([]domain.GenerationOutcome, error) {
	resolver := p.newResolver(req.Options)
	total := len(req.Scenes)
	outcomes := make([]domain.GenerationOutcome, total)

	var (
		prevMeta     *domain.SceneMeta
		prevArtifact string
	)
	for i, job := range req.Scenes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		report(reporter, i*100/total, fmt.Sprintf("scene %d of %d", i+1, total))

		refFrame := ""
		judgment := resolver.Judge(ctx, prevMeta, job.Meta)
		if judgment.UsePrevFrame && prevArtifact != "" {
			framePath, err := p.frames.ExtractFrame(ctx, prevArtifact, p.config.FrameIndex)
			switch {
			case err == nil:
				refFrame = framePath
			case ctx.Err() != nil:
				return nil, ctx.Err()
			default:
				p.logger.Warn("reference frame extraction failed, generating without continuity",
					"scene_id", job.SceneID,
					"prev_artifact", prevArtifact,
					"error", err)
			}
		}

		outcome, err := p.renderJob(ctx, runDir, limit, job, refFrame)
		if err != nil {
			return nil, err
		}
		outcomes[i] = outcome

		if outcome.Success {
			meta := job.Meta
			prevMeta = &meta
			prevArtifact = outcome.Artifact
		} else {
			prevMeta = nil
			prevArtifact = ""
		}
	}
	return outcomes, nil
}

// runParallel renders scenes concurrently under the batch bound. Outcome
// order matches scene order regardless of completion order.
func (p *Pipeline) runParallel(ctx context.Context, runDir string, limit int, req *domain.RenderRequest, reporter ProgressReporter) ([]domain.GenerationOutcome, error) {
	total := len(req.Scenes)
	report(reporter, 0, fmt.Sprintf("rendering %d scenes", total))

	var done atomic.Int64
	return batch.Run(ctx, limit, req.Scenes,
		func(ctx context.Context, _ int, job domain.SceneJob) (domain.GenerationOutcome, error) {
			outcome, err := p.renderJob(ctx, runDir, limit, job, "")
			if err != nil {
				return domain.GenerationOutcome{}, err
			}
			n := int(done.Add(1))
			report(reporter, n*100/total, fmt.Sprintf("completed %d of %d scenes", n, total))
			return outcome, nil
		})
}

// newResolver builds the per-run continuity resolver. The smart judge is
// only consulted when the request asks for it.
func (p *Pipeline) newResolver(opts domain.RenderOptions) *continuity.Resolver {
	var judge continuity.Judge
	if opts.SmartJudge {
		judge = p.judge
	}
	return continuity.NewResolver(judge, p.config.DefaultUseFrame, p.logger)
}

// policy returns the retry policy with pipeline defaults filled in.
func (p *Pipeline) policy() retry.Policy {
	policy := p.config.Retry
	if policy.Classify == nil {
		policy.Classify = ClassifyGenerationError
	}
	if policy.Logger == nil {
		policy.Logger = p.logger
	}
	return policy
}

func report(r ProgressReporter, pct int, message string) {
	if r != nil {
		r.Progress(pct, message)
	}
}
