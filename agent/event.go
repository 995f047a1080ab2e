package agent

// EventType is emitted by the loop for observability and streaming.
type EventType string

const (
	EventTypeTurnStarted       EventType = "turn_started"
	EventTypePhaseChanged      EventType = "phase_changed"
	EventTypeAssistantMessage  EventType = "assistant_message"
	EventTypeToolResult        EventType = "tool_result"
	EventTypeToolRejected      EventType = "tool_rejected"
	EventTypeContextCompacted  EventType = "context_compacted"
	EventTypePlanCreated       EventType = "plan_created"
	EventTypeReplanned         EventType = "replanned"
	EventTypeCompletionSuspect EventType = "completion_suspect"
	EventTypeTurnConcluded     EventType = "turn_concluded"
	EventTypeTurnAborted       EventType = "turn_aborted"
	EventTypeTurnCancelled     EventType = "turn_cancelled"
)

// Event is intentionally compact so adapters can map it to logs, metrics, or streams.
type Event struct {
	SessionID   SessionID   `json:"session_id"`
	TurnID      string      `json:"turn_id"`
	Iteration   int         `json:"iteration"`
	Type        EventType   `json:"type"`
	Phase       string      `json:"phase,omitempty"`
	Message     *Message    `json:"message,omitempty"`
	ToolResult  *ToolResult `json:"tool_result,omitempty"`
	Description string      `json:"description,omitempty"`
}

// CloneEvent returns a deep copy of an event.
func CloneEvent(in Event) Event {
	out := in
	if in.Message != nil {
		message := CloneMessage(*in.Message)
		out.Message = &message
	}
	if in.ToolResult != nil {
		result := *in.ToolResult
		out.ToolResult = &result
	}
	return out
}
