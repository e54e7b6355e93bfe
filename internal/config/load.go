package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional
// config.yaml in the working directory. Environment variables take precedence
// over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom behaves like Load but reads the config file at the given path.
// Unlike the implicit config.yaml lookup, an explicitly named file must
// exist.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix("STORYREEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every config key with its default so environment
// overrides are visible to Unmarshal even without a config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_file", "")

	v.SetDefault("task.max_concurrent_tasks", 3)
	v.SetDefault("task.retention_hours", 24)
	v.SetDefault("task.sweep_interval_minutes", 60)

	v.SetDefault("generation.max_concurrent_clips", 2)
	v.SetDefault("generation.frame_index", -1)
	v.SetDefault("generation.rate_limit.enabled", true)
	v.SetDefault("generation.rate_limit.max_requests", 10)
	v.SetDefault("generation.rate_limit.window_seconds", 60)
	v.SetDefault("generation.retry.max_attempts", 3)
	v.SetDefault("generation.retry.base_delay_seconds", 2)
	v.SetDefault("generation.retry.backoff_factor", 2.0)

	v.SetDefault("continuity.enabled", true)
	v.SetDefault("continuity.smart_judge", false)
	v.SetDefault("continuity.default_use_frame", true)

	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.base_delay_seconds", 1)

	v.SetDefault("video.api_key", "")
	v.SetDefault("video.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("video.model_name", "veo-2.0-generate-001")
	v.SetDefault("video.poll_interval_seconds", 5)
	v.SetDefault("video.poll_timeout_seconds", 600)
	v.SetDefault("video.output_dir", "out")

	v.SetDefault("media.ffmpeg_path", "ffmpeg")
	v.SetDefault("media.work_dir", ".storyreel")
	v.SetDefault("media.frame_width", 1280)
	v.SetDefault("media.frame_height", 720)
}
