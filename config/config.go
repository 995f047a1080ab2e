// Package config loads loop settings from defaults, an optional YAML file and
// TASKLOOP_ environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Gurpartap/taskloop/agentreact"
	"github.com/Gurpartap/taskloop/compaction"
	"github.com/Gurpartap/taskloop/logging"
	"github.com/Gurpartap/taskloop/plan"
)

// EnvPrefix namespaces environment overrides, e.g. TASKLOOP_MAX_ITERATIONS.
const EnvPrefix = "TASKLOOP"

var ErrInvalidConfig = errors.New("config is invalid")

type Config struct {
	ThresholdRounds             int           `mapstructure:"threshold_rounds"`
	ThresholdTokens             int           `mapstructure:"threshold_tokens"`
	RetentionCount              int           `mapstructure:"retention_count"`
	ConsecutiveFailureThreshold int           `mapstructure:"consecutive_failure_threshold"`
	MaxIterations               int           `mapstructure:"max_iterations"`
	MaxReplans                  int           `mapstructure:"max_replans"`
	MaxDuration                 time.Duration `mapstructure:"max_duration"`
	ModelTimeout                time.Duration `mapstructure:"model_timeout"`
	ToolTimeout                 time.Duration `mapstructure:"tool_timeout"`
	ConfirmTimeout              time.Duration `mapstructure:"confirm_timeout"`
	ModelRetries                int           `mapstructure:"model_retries"`
	ToolRetries                 int           `mapstructure:"tool_retries"`
	SkillsDir                   string        `mapstructure:"skills_dir"`
	WatchSkills                 bool          `mapstructure:"watch_skills"`
	LogLevel                    string        `mapstructure:"log_level"`
	LogFormat                   string        `mapstructure:"log_format"`
}

func Default() Config {
	return Config{
		ThresholdRounds:             compaction.DefaultThresholdRounds,
		ThresholdTokens:             compaction.DefaultThresholdTokens,
		RetentionCount:              compaction.DefaultRetentionCount,
		ConsecutiveFailureThreshold: plan.DefaultConsecutiveFailureThreshold,
		MaxIterations:               agentreact.DefaultMaxIterations,
		MaxReplans:                  agentreact.DefaultMaxReplans,
		MaxDuration:                 agentreact.DefaultMaxDuration,
		ModelTimeout:                agentreact.DefaultModelTimeout,
		ToolTimeout:                 agentreact.DefaultToolTimeout,
		ConfirmTimeout:              agentreact.DefaultConfirmTimeout,
		ModelRetries:                agentreact.DefaultModelRetries,
		LogLevel:                    "info",
		LogFormat:                   string(logging.FormatText),
	}
}

// Load resolves the configuration. path may be empty; a named file that
// cannot be read is an error. Environment variables win over the file.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %q: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, defaults Config) {
	v.SetDefault("threshold_rounds", defaults.ThresholdRounds)
	v.SetDefault("threshold_tokens", defaults.ThresholdTokens)
	v.SetDefault("retention_count", defaults.RetentionCount)
	v.SetDefault("consecutive_failure_threshold", defaults.ConsecutiveFailureThreshold)
	v.SetDefault("max_iterations", defaults.MaxIterations)
	v.SetDefault("max_replans", defaults.MaxReplans)
	v.SetDefault("max_duration", defaults.MaxDuration)
	v.SetDefault("model_timeout", defaults.ModelTimeout)
	v.SetDefault("tool_timeout", defaults.ToolTimeout)
	v.SetDefault("confirm_timeout", defaults.ConfirmTimeout)
	v.SetDefault("model_retries", defaults.ModelRetries)
	v.SetDefault("tool_retries", defaults.ToolRetries)
	v.SetDefault("skills_dir", defaults.SkillsDir)
	v.SetDefault("watch_skills", defaults.WatchSkills)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("log_format", defaults.LogFormat)
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	invalid := func(field, reason string, value any) {
		errs = append(errs, fmt.Errorf("%w: field=%s reason=%s value=%v", ErrInvalidConfig, field, reason, value))
	}

	if c.ThresholdRounds < 0 {
		invalid("threshold_rounds", "negative", c.ThresholdRounds)
	}
	if c.ThresholdTokens < 0 {
		invalid("threshold_tokens", "negative", c.ThresholdTokens)
	}
	if c.RetentionCount < 0 {
		invalid("retention_count", "negative", c.RetentionCount)
	}
	if c.ConsecutiveFailureThreshold < 1 {
		invalid("consecutive_failure_threshold", "must_be_positive", c.ConsecutiveFailureThreshold)
	}
	if c.MaxIterations < 1 {
		invalid("max_iterations", "must_be_positive", c.MaxIterations)
	}
	if c.MaxReplans < 0 {
		invalid("max_replans", "negative", c.MaxReplans)
	}
	for field, value := range map[string]time.Duration{
		"max_duration":    c.MaxDuration,
		"model_timeout":   c.ModelTimeout,
		"tool_timeout":    c.ToolTimeout,
		"confirm_timeout": c.ConfirmTimeout,
	} {
		if value < 0 {
			invalid(field, "negative", value)
		}
	}
	if c.ModelRetries < 0 {
		invalid("model_retries", "negative", c.ModelRetries)
	}
	if c.ToolRetries < 0 {
		invalid("tool_retries", "negative", c.ToolRetries)
	}
	if c.WatchSkills && c.SkillsDir == "" {
		invalid("watch_skills", "requires_skills_dir", c.WatchSkills)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("%w: field=log_level: %w", ErrInvalidConfig, err))
	}
	if _, err := logging.ParseFormat(c.LogFormat); err != nil {
		errs = append(errs, fmt.Errorf("%w: field=log_format: %w", ErrInvalidConfig, err))
	}
	return errors.Join(errs...)
}

// CompactionConfig projects the compaction thresholds.
func (c Config) CompactionConfig() compaction.Config {
	return compaction.Config{
		ThresholdRounds: c.ThresholdRounds,
		ThresholdTokens: c.ThresholdTokens,
		RetentionCount:  c.RetentionCount,
	}
}

// LoopConfig projects the per-turn limits.
func (c Config) LoopConfig() agentreact.Config {
	loop := agentreact.DefaultConfig()
	loop.ConsecutiveFailureThreshold = c.ConsecutiveFailureThreshold
	loop.MaxIterations = c.MaxIterations
	loop.MaxReplans = c.MaxReplans
	loop.MaxDuration = c.MaxDuration
	loop.ModelTimeout = c.ModelTimeout
	loop.ToolTimeout = c.ToolTimeout
	loop.ConfirmTimeout = c.ConfirmTimeout
	loop.ModelRetries = c.ModelRetries
	loop.ToolRetries = c.ToolRetries
	loop.Compaction = c.CompactionConfig()
	return loop
}

// Logger builds the process logger described by LogLevel and LogFormat.
func (c Config) Logger(output io.Writer) (*slog.Logger, error) {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(c.LogFormat)
	if err != nil {
		return nil, err
	}
	return logging.New(output, format, level), nil
}
