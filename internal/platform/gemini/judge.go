package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"text/template"

	"google.golang.org/genai"

	"github.com/storyreel/storyreel/internal/config"
	"github.com/storyreel/storyreel/internal/continuity"
	"github.com/storyreel/storyreel/internal/domain"
	"github.com/storyreel/storyreel/internal/retry"
)

// generator abstracts the model call so the judgment flow can be tested
// without network access.
type generator interface {
	generate(ctx context.Context, prompt string) (string, error)
}

// ContinuityJudge implements the continuity.Judge interface using Google's
// Gemini API to label the relationship between consecutive scenes.
type ContinuityJudge struct {
	// logger is used for structured logging
	logger *slog.Logger

	// config contains LLM-specific configuration
	config config.LLMConfig

	// promptTemplate is the parsed template for creating prompts
	promptTemplate *template.Template

	// gen performs the actual model call
	gen generator

	// policy governs retries of transient API failures
	policy retry.Policy
}

// NewContinuityJudge creates a new instance of ContinuityJudge with the
// provided dependencies, or an error if the configuration is unusable.
func NewContinuityJudge(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*ContinuityJudge, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	// Validate configuration
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", ErrInvalidConfig)
	}

	promptTemplate, err := template.New("continuity").Parse(continuityPromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt template: %v", ErrInvalidConfig, err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", ErrInvalidConfig, err)
	}

	judgeLogger := logger.With("component", "continuity_judge")

	return &ContinuityJudge{
		logger:         judgeLogger,
		config:         cfg,
		promptTemplate: promptTemplate,
		gen:            &genaiGenerator{client: client, model: cfg.ModelName},
		policy:         judgeRetryPolicy(cfg, judgeLogger),
	}, nil
}

// classifyAPIError treats safety blocks and empty responses as permanent and
// everything else as transient.
func classifyAPIError(err error) retry.Class {
	if errors.Is(err, ErrContentBlocked) || errors.Is(err, ErrEmptyResponse) {
		return retry.ClassFatal
	}
	return retry.ClassRetryable
}

// judgeRetryPolicy retries transient API errors with exponential backoff.
func judgeRetryPolicy(cfg config.LLMConfig, logger *slog.Logger) retry.Policy {
	return retry.Policy{
		MaxAttempts:   cfg.MaxRetries + 1,
		BaseDelay:     cfg.BaseDelay(),
		BackoffFactor: 2,
		Classify:      classifyAPIError,
		Logger:        logger,
	}
}

// JudgeContinuity renders the prompt for the scene pair, calls the model and
// parses its verdict. Errors are returned to the resolver, which falls back
// to its configured default.
func (j *ContinuityJudge) JudgeContinuity(ctx context.Context, prev, curr domain.SceneMeta) (continuity.Judgment, error) {
	prompt, err := j.renderPrompt(prev, curr)
	if err != nil {
		return continuity.Judgment{}, err
	}

	j.logger.Debug("requesting continuity verdict",
		"prev_scene", prev.SceneID,
		"curr_scene", curr.SceneID,
		"model", j.config.ModelName,
		"prompt_length", len(prompt))

	raw, err := retry.Do(ctx, j.policy, func(ctx context.Context, attempt retry.Attempt) (string, error) {
		return j.gen.generate(ctx, prompt)
	})
	if err != nil {
		return continuity.Judgment{}, fmt.Errorf("continuity verdict failed: %w", err)
	}

	judgment, err := parseVerdict(raw)
	if err != nil {
		j.logger.Warn("continuity verdict unparsable",
			"prev_scene", prev.SceneID,
			"curr_scene", curr.SceneID,
			"error", err)
		return continuity.Judgment{}, err
	}

	j.logger.Debug("continuity verdict received",
		"prev_scene", prev.SceneID,
		"curr_scene", curr.SceneID,
		"classification", judgment.Classification,
		"use_prev_frame", judgment.UsePrevFrame,
		"confidence", judgment.Confidence)
	return judgment, nil
}

// genaiGenerator calls the Gemini API in JSON response mode.
type genaiGenerator struct {
	client *genai.Client
	model  string
}

func (g *genaiGenerator) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.2),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return "", ErrContentBlocked
	}
	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Ensure ContinuityJudge implements continuity.Judge
var _ continuity.Judge = (*ContinuityJudge)(nil)
