package agentreact

import (
	"fmt"
	"time"

	"github.com/Gurpartap/taskloop/compaction"
	"github.com/Gurpartap/taskloop/plan"
)

const (
	DefaultMaxIterations  = 20
	DefaultMaxReplans     = 2
	DefaultMaxDuration    = 10 * time.Minute
	DefaultModelTimeout   = 60 * time.Second
	DefaultToolTimeout    = 30 * time.Second
	DefaultConfirmTimeout = 2 * time.Minute
	DefaultModelRetries   = 2

	DefaultSystemPrompt = "You are an autonomous assistant that completes tasks by calling tools. " +
		"Work step by step, use tools to do real work, and reply with a final answer only when the task is done."
)

// Config bounds one turn. Zero durations disable the matching timeout.
type Config struct {
	ConsecutiveFailureThreshold int
	MaxIterations               int
	MaxReplans                  int
	MaxDuration                 time.Duration
	ModelTimeout                time.Duration
	ToolTimeout                 time.Duration
	ConfirmTimeout              time.Duration
	// ModelRetries and ToolRetries are extra attempts after a retryable failure.
	ModelRetries int
	ToolRetries  int
	Compaction   compaction.Config
	SystemPrompt string
}

func DefaultConfig() Config {
	return Config{
		ConsecutiveFailureThreshold: plan.DefaultConsecutiveFailureThreshold,
		MaxIterations:               DefaultMaxIterations,
		MaxReplans:                  DefaultMaxReplans,
		MaxDuration:                 DefaultMaxDuration,
		ModelTimeout:                DefaultModelTimeout,
		ToolTimeout:                 DefaultToolTimeout,
		ConfirmTimeout:              DefaultConfirmTimeout,
		ModelRetries:                DefaultModelRetries,
		Compaction:                  compaction.DefaultConfig(),
		SystemPrompt:                DefaultSystemPrompt,
	}
}

// Validate reports the first out-of-range field.
func (c Config) Validate() error {
	switch {
	case c.ConsecutiveFailureThreshold < 1:
		return fmt.Errorf("%w: field=consecutive_failure_threshold reason=must_be_positive value=%d", ErrInvalidConfig, c.ConsecutiveFailureThreshold)
	case c.MaxIterations < 1:
		return fmt.Errorf("%w: field=max_iterations reason=must_be_positive value=%d", ErrInvalidConfig, c.MaxIterations)
	case c.MaxReplans < 0:
		return fmt.Errorf("%w: field=max_replans reason=negative value=%d", ErrInvalidConfig, c.MaxReplans)
	case c.MaxDuration < 0, c.ModelTimeout < 0, c.ToolTimeout < 0, c.ConfirmTimeout < 0:
		return fmt.Errorf("%w: field=timeouts reason=negative", ErrInvalidConfig)
	case c.ModelRetries < 0 || c.ToolRetries < 0:
		return fmt.Errorf("%w: field=retries reason=negative", ErrInvalidConfig)
	case c.Compaction.RetentionCount < 0:
		return fmt.Errorf("%w: field=retention_count reason=negative value=%d", ErrInvalidConfig, c.Compaction.RetentionCount)
	}
	return nil
}
