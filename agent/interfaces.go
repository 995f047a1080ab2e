package agent

import "context"

// ModelRequest is the completion input submitted to the LLM transport.
type ModelRequest struct {
	Messages []Message
	Tools    []ToolDefinition
}

// Model is the LLM transport. Implementations return TransportError to
// distinguish retryable from fatal failures.
type Model interface {
	Generate(ctx context.Context, request ModelRequest) (Response, error)
}

// ToolExecutor resolves and executes tool calls.
type ToolExecutor interface {
	Execute(ctx context.Context, call ToolCall) (ToolResult, error)
}

// SessionStore persists per-session transcripts between turns.
// Save uses optimistic concurrency based on Session.Version and bumps it by one on success.
type SessionStore interface {
	Save(ctx context.Context, session Session) error
	Load(ctx context.Context, id SessionID) (Session, error)
}

// EventSink receives normalized runtime events.
type EventSink interface {
	Publish(ctx context.Context, event Event) error
}

// NoopEventSink discards every event.
type NoopEventSink struct{}

func (NoopEventSink) Publish(context.Context, Event) error {
	return nil
}
