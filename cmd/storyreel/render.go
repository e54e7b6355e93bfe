package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/storyreel/storyreel/internal/config"
	"github.com/storyreel/storyreel/internal/continuity"
	"github.com/storyreel/storyreel/internal/domain"
	"github.com/storyreel/storyreel/internal/events"
	"github.com/storyreel/storyreel/internal/pipeline"
	"github.com/storyreel/storyreel/internal/platform/ffmpeg"
	"github.com/storyreel/storyreel/internal/platform/gemini"
	"github.com/storyreel/storyreel/internal/platform/logger"
	"github.com/storyreel/storyreel/internal/platform/veo"
	"github.com/storyreel/storyreel/internal/ratelimit"
	"github.com/storyreel/storyreel/internal/retry"
	"github.com/storyreel/storyreel/internal/service"
	"github.com/storyreel/storyreel/internal/task"
)

// renderFlags holds the command line overrides for a render run. Unset flags
// fall back to the loaded configuration.
type renderFlags struct {
	configPath  string
	continuity  bool
	smartJudge  bool
	concurrency int
	outputDir   string
	asJSON      bool
}

func newRenderCmd() *cobra.Command {
	var flags renderFlags

	cmd := &cobra.Command{
		Use:   "render <script-file>",
		Short: "Render a scene script synchronously",
		Long: `Render parses a screenplay-style scene script and renders every scene
into a video clip, printing progress as it goes. The command blocks until
the render finishes and exits non-zero if any scene failed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, args[0], flags)
		},
	}

	cmd.Flags().StringVar(&flags.configPath, "config", "", "config file to load instead of the default lookup")
	cmd.Flags().BoolVar(&flags.continuity, "continuity", true, "render scenes sequentially with frame continuity")
	cmd.Flags().BoolVar(&flags.smartJudge, "smart-judge", false, "consult the LLM judge per scene pair instead of the default")
	cmd.Flags().IntVar(&flags.concurrency, "concurrency", 0, "max concurrent clip generations (0 uses the configured value)")
	cmd.Flags().StringVar(&flags.outputDir, "output", "", "output directory (overrides the configured value)")
	cmd.Flags().BoolVar(&flags.asJSON, "json", false, "print the full render report as JSON")

	return cmd
}

func runRender(cmd *cobra.Command, scriptPath string, flags renderFlags) error {
	cfg, err := loadRenderConfig(flags)
	if err != nil {
		return err
	}

	log := logger.SetupCLI(cfg.Server.LogLevel)

	scriptText, err := os.ReadFile(scriptPath)
	if err != nil {
		return fmt.Errorf("failed to read script file: %w", err)
	}

	opts := renderOptions(cmd, cfg, flags)

	// Ctrl-C cancels the run; in-flight generations stop at the next
	// context check.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := buildRenderService(ctx, cfg, opts.SmartJudge, log)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	report, err := svc.RenderScript(ctx, string(scriptText), opts, progressPrinter{out: out})
	if err != nil {
		return err
	}

	if flags.asJSON {
		if err := printReportJSON(out, report); err != nil {
			return err
		}
	} else {
		printReport(out, report)
	}

	if report.Failed > 0 {
		return fmt.Errorf("%d of %d scenes failed", report.Failed, report.Failed+report.Succeeded)
	}
	return nil
}

// loadRenderConfig loads configuration from the explicit --config path when
// given, otherwise through the default lookup, and applies flag overrides.
func loadRenderConfig(flags renderFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flags.configPath != "" {
		cfg, err = config.LoadFrom(flags.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if flags.outputDir != "" {
		cfg.Video.OutputDir = flags.outputDir
	}
	return cfg, nil
}

// renderOptions derives the per-run options: configuration supplies the
// defaults, flags override only when explicitly set on the command line.
func renderOptions(cmd *cobra.Command, cfg *config.Config, flags renderFlags) domain.RenderOptions {
	opts := domain.RenderOptions{
		Continuity:         cfg.Continuity.Enabled,
		SmartJudge:         cfg.Continuity.SmartJudge,
		MaxConcurrentClips: flags.concurrency,
	}
	if cmd.Flags().Changed("continuity") {
		opts.Continuity = flags.continuity
	}
	if cmd.Flags().Changed("smart-judge") {
		opts.SmartJudge = flags.smartJudge
	}
	return opts
}

// buildRenderService wires the render pipeline and its collaborators the
// same way the server does, for a single synchronous run.
func buildRenderService(ctx context.Context, cfg *config.Config, smartJudge bool, log *slog.Logger) (service.RenderService, error) {
	generator, err := veo.NewClient(veo.Options{
		APIKey:       cfg.Video.APIKey,
		BaseURL:      cfg.Video.BaseURL,
		Model:        cfg.Video.ModelName,
		PollInterval: cfg.Video.PollInterval(),
		PollTimeout:  cfg.Video.PollTimeout(),
		Logger:       log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize video client: %w", err)
	}

	media := ffmpeg.NewTool(ffmpeg.Options{
		BinaryPath:  cfg.Media.FFmpegPath,
		WorkDir:     cfg.Media.WorkDir,
		FrameWidth:  cfg.Media.FrameWidth,
		FrameHeight: cfg.Media.FrameHeight,
		Logger:      log,
	})

	var limiter pipeline.RateLimiter
	if cfg.Generation.RateLimit.Enabled {
		limiter, err = ratelimit.New(cfg.Generation.RateLimit.MaxRequests, cfg.Generation.RateLimit.Window())
		if err != nil {
			return nil, fmt.Errorf("failed to initialize rate limiter: %w", err)
		}
	}

	var judge continuity.Judge
	if smartJudge {
		judge = setupJudge(ctx, cfg, log)
	}

	renderPipeline, err := pipeline.New(pipeline.Deps{
		Generator: generator,
		Frames:    media,
		Muxer:     media,
		Judge:     judge,
		Limiter:   limiter,
	}, pipeline.Config{
		MaxConcurrentClips: cfg.Generation.MaxConcurrentClips,
		FrameIndex:         cfg.Generation.FrameIndex,
		OutputDir:          cfg.Video.OutputDir,
		DefaultUseFrame:    cfg.Continuity.DefaultUseFrame,
		Retry: retry.Policy{
			MaxAttempts:   cfg.Generation.Retry.MaxAttempts,
			BaseDelay:     cfg.Generation.Retry.BaseDelay(),
			BackoffFactor: cfg.Generation.Retry.BackoffFactor,
		},
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create render pipeline: %w", err)
	}

	// The service requires a task submitter even though the synchronous
	// path never schedules anything; an idle manager satisfies it.
	manager := task.NewManager(task.ManagerConfig{MaxConcurrentTasks: 1}, events.NewInMemoryEventEmitter(log), log)

	return service.NewRenderService(renderPipeline, manager, log)
}

// setupJudge builds the LLM continuity judge, degrading to nil (default
// continuity behavior) when the key is missing or construction fails.
func setupJudge(ctx context.Context, cfg *config.Config, log *slog.Logger) continuity.Judge {
	if cfg.LLM.GeminiAPIKey == "" {
		log.Warn("Smart continuity judging requested but no Gemini API key configured, using default continuity")
		return nil
	}
	judge, err := gemini.NewContinuityJudge(ctx, log, cfg.LLM)
	if err != nil {
		log.Warn("Continuity judge unavailable, using default continuity", "error", err)
		return nil
	}
	return judge
}

// progressPrinter writes render progress as plain lines.
type progressPrinter struct {
	out io.Writer
}

func (p progressPrinter) Progress(pct int, message string) {
	fmt.Fprintf(p.out, "[%3d%%] %s\n", pct, message)
}

func printReport(w io.Writer, report *domain.RenderReport) {
	total := report.Succeeded + report.Failed
	fmt.Fprintf(w, "\nRendered %d of %d scenes in %s\n",
		report.Succeeded, total, report.Elapsed.Round(time.Second))
	for _, outcome := range report.Outcomes {
		if outcome.Success {
			fmt.Fprintf(w, "  %s: %s\n", outcome.SceneID, outcome.Artifact)
			continue
		}
		reason := "unknown error"
		if outcome.Err != nil {
			reason = outcome.Err.Message
		}
		fmt.Fprintf(w, "  %s: FAILED (%s)\n", outcome.SceneID, reason)
	}
}

func printReportJSON(w io.Writer, report *domain.RenderReport) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
