// Package compaction keeps a transcript inside its token budget by archiving
// older messages behind a model-written summary.
package compaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Gurpartap/taskloop/agent"
	"github.com/Gurpartap/taskloop/tokens"
)

const (
	DefaultThresholdRounds = 20
	DefaultThresholdTokens = 8000
	DefaultRetentionCount  = 6

	// SummaryMessageName tags the synthetic leading entry of a compacted transcript.
	SummaryMessageName = "conversation_summary"
)

var (
	// ErrMissingSummarizer is returned when New is called without a summarizer.
	ErrMissingSummarizer = errors.New("missing summarizer")
	// ErrSummaryFailed is returned when no summary could be produced after the retry.
	ErrSummaryFailed = errors.New("summary generation failed")
	// ErrInvalidRetention is returned for negative retention counts.
	ErrInvalidRetention = errors.New("retention count must not be negative")
)

// Config holds the compaction thresholds. It is never mutated after construction.
type Config struct {
	ThresholdRounds int `mapstructure:"threshold_rounds"`
	ThresholdTokens int `mapstructure:"threshold_tokens"`
	RetentionCount  int `mapstructure:"retention_count"`
}

func DefaultConfig() Config {
	return Config{
		ThresholdRounds: DefaultThresholdRounds,
		ThresholdTokens: DefaultThresholdTokens,
		RetentionCount:  DefaultRetentionCount,
	}
}

// Trigger names the threshold that made compaction necessary.
type Trigger string

const (
	TriggerNone   Trigger = ""
	TriggerRounds Trigger = "rounds"
	TriggerTokens Trigger = "tokens"
)

// Result is the outcome of one Compress call.
type Result struct {
	Recent     []agent.Message
	Archived   []agent.Message
	Summary    string
	Compressed []agent.Message
}

// Summarizer produces a natural-language digest of archived messages.
type Summarizer interface {
	Summarize(ctx context.Context, messages []agent.Message) (string, error)
}

// Compressor decides when a transcript must shrink and shrinks it.
type Compressor struct {
	cfg        Config
	counter    tokens.Counter
	summarizer Summarizer
	logger     *slog.Logger
}

func New(cfg Config, summarizer Summarizer, counter tokens.Counter, logger *slog.Logger) (*Compressor, error) {
	if summarizer == nil {
		return nil, fmt.Errorf("new compressor: %w", ErrMissingSummarizer)
	}
	if cfg.RetentionCount < 0 {
		return nil, fmt.Errorf("new compressor: %w: value=%d", ErrInvalidRetention, cfg.RetentionCount)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Compressor{
		cfg:        cfg,
		counter:    counter,
		summarizer: summarizer,
		logger:     logger,
	}, nil
}

// Config returns the thresholds the compressor was built with.
func (c *Compressor) Config() Config {
	return c.cfg
}

// ShouldCompress reports whether the transcript exceeds the round or token
// threshold. Non-positive thresholds are disabled.
func (c *Compressor) ShouldCompress(messages []agent.Message) (bool, Trigger) {
	if c.cfg.ThresholdRounds > 0 && len(messages) > c.cfg.ThresholdRounds {
		return true, TriggerRounds
	}
	if c.cfg.ThresholdTokens > 0 && c.counter.CountMessages(messages) > c.cfg.ThresholdTokens {
		return true, TriggerTokens
	}
	return false, TriggerNone
}

// Compress keeps the last retention messages verbatim and replaces the rest
// with one summary entry. A failed summary is retried once; if it still fails
// the error is returned and the transcript must be kept as is.
func (c *Compressor) Compress(ctx context.Context, messages []agent.Message, retention int) (Result, error) {
	if retention < 0 {
		return Result{}, fmt.Errorf("compress: %w: value=%d", ErrInvalidRetention, retention)
	}
	if len(messages) <= retention {
		return Result{
			Recent:     agent.CloneMessages(messages),
			Archived:   []agent.Message{},
			Compressed: agent.CloneMessages(messages),
		}, nil
	}

	split := len(messages) - retention
	archived := agent.CloneMessages(messages[:split])
	recent := agent.CloneMessages(messages[split:])

	summary, err := c.summarizeWithRetry(ctx, archived)
	if err != nil {
		return Result{}, err
	}

	compressed := make([]agent.Message, 0, len(recent)+1)
	compressed = append(compressed, SummaryMessage(summary))
	compressed = append(compressed, agent.CloneMessages(recent)...)

	c.logger.Debug("transcript compacted",
		slog.Int("archived", len(archived)),
		slog.Int("retained", len(recent)),
		slog.Int("summary_tokens", c.counter.Count(summary)),
	)
	return Result{
		Recent:     recent,
		Archived:   archived,
		Summary:    summary,
		Compressed: compressed,
	}, nil
}

func (c *Compressor) summarizeWithRetry(ctx context.Context, archived []agent.Message) (string, error) {
	var errs []error
	for attempt := 1; attempt <= 2; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", errors.Join(append(errs, ctxErr)...)
		}
		summary, err := c.summarizer.Summarize(ctx, agent.CloneMessages(archived))
		if err == nil && summary != "" {
			return summary, nil
		}
		if err == nil {
			err = errors.New("summarizer returned empty summary")
		}
		errs = append(errs, fmt.Errorf("attempt %d: %w", attempt, err))
		c.logger.Warn("summary attempt failed", slog.Int("attempt", attempt), slog.Any("error", err))
		if ctx.Err() != nil {
			break
		}
	}
	return "", fmt.Errorf("%w: archived=%d: %w", ErrSummaryFailed, len(archived), errors.Join(errs...))
}

// SummaryMessage builds the synthetic leading entry that carries a summary.
func SummaryMessage(summary string) agent.Message {
	return agent.Message{
		Role:    agent.RoleSystem,
		Name:    SummaryMessageName,
		Content: "Summary of earlier conversation:\n" + summary,
	}
}
