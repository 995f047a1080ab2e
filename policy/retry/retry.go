// Package retry decorates the model transport and tool executor with bounded,
// error-only retries.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/Gurpartap/taskloop/agent"
)

// Config controls retry behavior for wrapped model and tool execution calls.
// A nil ShouldRetry retries only agent.IsRetryable errors, so fatal transport
// errors and context errors are returned at once.
type Config struct {
	MaxAttempts int
	ShouldRetry func(error) bool
	// Backoff is the pause before the second attempt; it doubles per attempt.
	Backoff time.Duration
	Logger  *slog.Logger
}

// WrapModel wraps a model with deterministic, error-only retries.
func WrapModel(model agent.Model, cfg Config) agent.Model {
	if model == nil {
		return nil
	}
	return &modelWrapper{
		next: model,
		cfg:  cfg,
	}
}

type modelWrapper struct {
	next agent.Model
	cfg  Config
}

func (w *modelWrapper) Generate(ctx context.Context, request agent.ModelRequest) (agent.Response, error) {
	var response agent.Response
	err := run(ctx, w.cfg, "model", func() error {
		var err error
		response, err = w.next.Generate(ctx, request)
		return err
	})
	if err != nil {
		return nil, err
	}
	return response, nil
}

// WrapToolExecutor wraps a tool executor with deterministic, error-only retries.
func WrapToolExecutor(executor agent.ToolExecutor, cfg Config) agent.ToolExecutor {
	if executor == nil {
		return nil
	}
	return &toolExecutorWrapper{
		next: executor,
		cfg:  cfg,
	}
}

type toolExecutorWrapper struct {
	next agent.ToolExecutor
	cfg  Config
}

func (w *toolExecutorWrapper) Execute(ctx context.Context, call agent.ToolCall) (agent.ToolResult, error) {
	var result agent.ToolResult
	err := run(ctx, w.cfg, "tool:"+call.Name, func() error {
		var err error
		result, err = w.next.Execute(ctx, call)
		return err
	})
	if err != nil {
		return agent.ToolResult{}, err
	}
	return result, nil
}

func run(ctx context.Context, cfg Config, target string, attemptFn func() error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	attempts := normalizedAttempts(cfg.MaxAttempts)
	delay := cfg.Backoff
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := attemptFn()
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt == attempts || !shouldRetry(ctx, cfg, err) {
			break
		}
		if cfg.Logger != nil {
			cfg.Logger.Debug("retrying after error",
				slog.String("target", target),
				slog.Int("attempt", attempt),
				slog.Any("error", err),
			)
		}
		if !wait(ctx, delay) {
			break
		}
		delay *= 2
	}
	return lastErr
}

func wait(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return true
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func normalizedAttempts(maxAttempts int) int {
	if maxAttempts < 1 {
		return 1
	}
	return maxAttempts
}

func shouldRetry(ctx context.Context, cfg Config, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if cfg.ShouldRetry == nil {
		return agent.IsRetryable(err)
	}
	return cfg.ShouldRetry(err)
}
