package agentreact

import (
	"context"
	"encoding/json"
	"regexp"
	"slices"

	"github.com/Gurpartap/taskloop/agent"
)

// RiskClassifier marks tool calls that need confirmation before they run.
type RiskClassifier interface {
	IsHighRisk(call agent.ToolCall) bool
}

// RiskClassifierFunc adapts a function to RiskClassifier.
type RiskClassifierFunc func(call agent.ToolCall) bool

func (f RiskClassifierFunc) IsHighRisk(call agent.ToolCall) bool {
	return f(call)
}

// ToolNameRisk adapts a name-based check such as registry.Registry.IsHighRisk.
func ToolNameRisk(isHighRisk func(name string) bool) RiskClassifier {
	return RiskClassifierFunc(func(call agent.ToolCall) bool {
		return isHighRisk(call.Name)
	})
}

// AnyRisk reports a call as high-risk when any classifier does.
func AnyRisk(classifiers ...RiskClassifier) RiskClassifier {
	return RiskClassifierFunc(func(call agent.ToolCall) bool {
		for _, classifier := range classifiers {
			if classifier != nil && classifier.IsHighRisk(call) {
				return true
			}
		}
		return false
	})
}

// PatternRisk flags calls by tool name or by a pattern found in their
// JSON-encoded arguments.
type PatternRisk struct {
	Tools    []string
	Patterns []*regexp.Regexp
}

// DefaultRiskPatterns matches package installation and destructive commands.
func DefaultRiskPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(pip3?|npm|pnpm|yarn|gem|cargo|brew|apt(-get)?|yum|dnf|apk)\s+(install|add|remove|uninstall)\b`),
		regexp.MustCompile(`(?i)\bgo\s+install\b`),
		regexp.MustCompile(`\brm\s+-[a-zA-Z]*[rf][a-zA-Z]*\b`),
		regexp.MustCompile(`(?i)\bgit\s+push\b.*(--force|-f\b)`),
		regexp.MustCompile(`(?i)\bgit\s+reset\s+--hard\b`),
		regexp.MustCompile(`(?i)\b(drop|truncate)\s+(table|database)\b`),
		regexp.MustCompile(`(?i)\bmkfs(\.\w+)?\b|\bdd\s+if=`),
	}
}

func DefaultRiskClassifier() PatternRisk {
	return PatternRisk{Patterns: DefaultRiskPatterns()}
}

func (r PatternRisk) IsHighRisk(call agent.ToolCall) bool {
	if slices.Contains(r.Tools, call.Name) {
		return true
	}
	if len(r.Patterns) == 0 || len(call.Arguments) == 0 {
		return false
	}
	encoded, err := json.Marshal(call.Arguments)
	if err != nil {
		return true
	}
	for _, pattern := range r.Patterns {
		if pattern.Match(encoded) {
			return true
		}
	}
	return false
}

// Confirmer asks an external party to approve a high-risk call. The loop
// bounds each call with Config.ConfirmTimeout; a timeout, an error or false
// is a denial.
type Confirmer interface {
	Confirm(ctx context.Context, call agent.ToolCall) (bool, error)
}

// ConfirmerFunc adapts a function to Confirmer.
type ConfirmerFunc func(ctx context.Context, call agent.ToolCall) (bool, error)

func (f ConfirmerFunc) Confirm(ctx context.Context, call agent.ToolCall) (bool, error) {
	return f(ctx, call)
}
