package compaction

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Gurpartap/taskloop/agent"
)

// ErrMissingModel is returned when a ModelSummarizer is built without a model.
var ErrMissingModel = errors.New("missing model")

const summaryInstruction = "Provide a concise summary of this conversation segment. " +
	"Preserve the user's goal, decisions taken, files and identifiers mentioned, " +
	"tool results that later steps depend on, and any work still pending."

// ModelSummarizer asks the LLM transport for a digest with one completion request.
type ModelSummarizer struct {
	model agent.Model
}

func NewModelSummarizer(model agent.Model) (*ModelSummarizer, error) {
	if model == nil {
		return nil, fmt.Errorf("new model summarizer: %w", ErrMissingModel)
	}
	return &ModelSummarizer{model: model}, nil
}

func (s *ModelSummarizer) Summarize(ctx context.Context, messages []agent.Message) (string, error) {
	response, err := s.model.Generate(ctx, agent.ModelRequest{
		Messages: []agent.Message{
			{Role: agent.RoleSystem, Content: summaryInstruction},
			{Role: agent.RoleUser, Content: renderTranscript(messages)},
		},
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(agent.ResponseText(response))
	if text == "" {
		return "", errors.New("model returned no summary text")
	}
	return text, nil
}

func renderTranscript(messages []agent.Message) string {
	var sb strings.Builder
	sb.WriteString("CONVERSATION:\n")
	for _, message := range messages {
		switch {
		case message.Role == agent.RoleTool:
			fmt.Fprintf(&sb, "tool %s result: %s\n", message.Name, message.Content)
		case len(message.ToolCalls) > 0:
			names := make([]string, len(message.ToolCalls))
			for i, call := range message.ToolCalls {
				names[i] = call.Name
			}
			fmt.Fprintf(&sb, "%s: %s [called: %s]\n", message.Role, message.Content, strings.Join(names, ", "))
		default:
			fmt.Fprintf(&sb, "%s: %s\n", message.Role, message.Content)
		}
	}
	return sb.String()
}
