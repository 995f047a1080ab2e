package agent

// ToolDefinition declares a callable capability exposed to the model.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

// ToolCall is requested by the model and executed by a ToolExecutor.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ToolFailureReason classifies why a tool call produced an error result.
type ToolFailureReason string

const (
	ToolFailureReasonUnknownTool      ToolFailureReason = "unknown_tool"
	ToolFailureReasonInvalidArguments ToolFailureReason = "invalid_arguments"
	ToolFailureReasonExecutorError    ToolFailureReason = "executor_error"
	ToolFailureReasonTimeout          ToolFailureReason = "timeout"
	ToolFailureReasonDisallowed       ToolFailureReason = "disallowed"
	ToolFailureReasonDenied           ToolFailureReason = "confirmation_denied"
)

// ToolResult is the normalized output produced by a tool execution.
type ToolResult struct {
	CallID        string            `json:"call_id"`
	Name          string            `json:"name"`
	Content       string            `json:"content"`
	IsError       bool              `json:"is_error,omitempty"`
	FailureReason ToolFailureReason `json:"failure_reason,omitempty"`
}

// ToolResultMessage converts a tool result to a transcript message.
func ToolResultMessage(result ToolResult) Message {
	return Message{
		Role:       RoleTool,
		Name:       result.Name,
		ToolCallID: result.CallID,
		Content:    result.Content,
	}
}

// ToolErrorResult builds the error result fed back to the model when a call fails
// or is rejected before execution.
func ToolErrorResult(call ToolCall, reason ToolFailureReason, detail string) ToolResult {
	content := string(reason)
	if detail != "" {
		content = string(reason) + ": " + detail
	}
	return ToolResult{
		CallID:        call.ID,
		Name:          call.Name,
		Content:       content,
		IsError:       true,
		FailureReason: reason,
	}
}

// CloneToolCall returns a deep copy of a tool call.
func CloneToolCall(in ToolCall) ToolCall {
	out := in
	if in.Arguments != nil {
		out.Arguments = cloneStringAnyMap(in.Arguments)
	}
	return out
}

// CloneToolDefinitions returns deep copies of tool definitions.
func CloneToolDefinitions(in []ToolDefinition) []ToolDefinition {
	if in == nil {
		return nil
	}
	out := make([]ToolDefinition, len(in))
	for i := range in {
		out[i] = in[i]
		if in[i].InputSchema != nil {
			out[i].InputSchema = cloneStringAnyMap(in[i].InputSchema)
		}
	}
	return out
}

func cloneStringAnyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = cloneValue(value)
	}
	return out
}

func cloneValue(in any) any {
	switch value := in.(type) {
	case map[string]any:
		return cloneStringAnyMap(value)
	case []any:
		out := make([]any, len(value))
		for i := range value {
			out[i] = cloneValue(value[i])
		}
		return out
	case []string:
		out := make([]string, len(value))
		copy(out, value)
		return out
	default:
		return value
	}
}
