package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" validate:"required"`
	Task       TaskConfig       `mapstructure:"task" validate:"required"`
	Generation GenerationConfig `mapstructure:"generation" validate:"required"`
	Continuity ContinuityConfig `mapstructure:"continuity"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Video      VideoConfig      `mapstructure:"video" validate:"required"`
	Media      MediaConfig      `mapstructure:"media" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	// LogFile mirrors log output to a file when set
	LogFile string `mapstructure:"log_file"`
}

// TaskConfig contains task manager settings.
type TaskConfig struct {
	MaxConcurrentTasks   int `mapstructure:"max_concurrent_tasks" validate:"required,gt=0,lte=64"`
	RetentionHours       int `mapstructure:"retention_hours" validate:"gte=0"`
	SweepIntervalMinutes int `mapstructure:"sweep_interval_minutes" validate:"gte=0"`
}

// Retention returns how long finished tasks stay queryable.
// Zero disables sweeping.
func (c TaskConfig) Retention() time.Duration {
	return time.Duration(c.RetentionHours) * time.Hour
}

// SweepInterval returns how often the task sweeper runs.
func (c TaskConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMinutes) * time.Minute
}

// GenerationConfig contains clip generation settings.
type GenerationConfig struct {
	// MaxConcurrentClips bounds concurrent clip generations within one render
	// when continuity is off
	MaxConcurrentClips int `mapstructure:"max_concurrent_clips" validate:"required,gt=0,lte=16"`

	// FrameIndex selects which frame seeds the next clip; negative counts
	// from the end of the previous clip
	FrameIndex int `mapstructure:"frame_index"`

	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Retry     RetryConfig     `mapstructure:"retry"`
}

// RateLimitConfig contains provider rate limiting settings.
type RateLimitConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxRequests   int  `mapstructure:"max_requests" validate:"gt=0"`
	WindowSeconds int  `mapstructure:"window_seconds" validate:"gt=0"`
}

// Window returns the sliding window duration.
func (c RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// RetryConfig contains retry policy settings for clip generation.
type RetryConfig struct {
	MaxAttempts      int     `mapstructure:"max_attempts" validate:"required,gt=0,lte=10"`
	BaseDelaySeconds int     `mapstructure:"base_delay_seconds" validate:"required,gt=0"`
	BackoffFactor    float64 `mapstructure:"backoff_factor" validate:"required,gte=1"`
}

// BaseDelay returns the delay before the first retry.
func (c RetryConfig) BaseDelay() time.Duration {
	return time.Duration(c.BaseDelaySeconds) * time.Second
}

// ContinuityConfig contains scene continuity settings.
type ContinuityConfig struct {
	// Enabled turns frame continuity between consecutive scenes on
	Enabled bool `mapstructure:"enabled"`

	// SmartJudge consults the LLM judge per scene pair instead of always
	// applying the default
	SmartJudge bool `mapstructure:"smart_judge"`

	// DefaultUseFrame is the judgment applied when no judge decides
	DefaultUseFrame bool `mapstructure:"default_use_frame"`
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	GeminiAPIKey     string `mapstructure:"gemini_api_key"`
	ModelName        string `mapstructure:"model_name" validate:"required"`
	MaxRetries       int    `mapstructure:"max_retries" validate:"gte=0"`
	BaseDelaySeconds int    `mapstructure:"base_delay_seconds" validate:"gt=0"`
}

// BaseDelay returns the delay before the first judge retry.
func (c LLMConfig) BaseDelay() time.Duration {
	return time.Duration(c.BaseDelaySeconds) * time.Second
}

// VideoConfig contains video generation provider settings.
type VideoConfig struct {
	APIKey              string `mapstructure:"api_key" validate:"required"`
	BaseURL             string `mapstructure:"base_url" validate:"required,url"`
	ModelName           string `mapstructure:"model_name" validate:"required"`
	PollIntervalSeconds int    `mapstructure:"poll_interval_seconds" validate:"required,gt=0"`
	PollTimeoutSeconds  int    `mapstructure:"poll_timeout_seconds" validate:"required,gt=0"`
	OutputDir           string `mapstructure:"output_dir" validate:"required"`
}

// PollInterval returns how often pending operations are polled.
func (c VideoConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// PollTimeout returns how long a single generation may stay pending.
func (c VideoConfig) PollTimeout() time.Duration {
	return time.Duration(c.PollTimeoutSeconds) * time.Second
}

// MediaConfig contains local media tooling settings.
type MediaConfig struct {
	FFmpegPath  string `mapstructure:"ffmpeg_path" validate:"required"`
	WorkDir     string `mapstructure:"work_dir" validate:"required"`
	FrameWidth  int    `mapstructure:"frame_width" validate:"gt=0"`
	FrameHeight int    `mapstructure:"frame_height" validate:"gt=0"`
}
