package agent

// Response is the tagged result of one completion request. It is either a
// ToolCallResponse or a TextResponse; callers switch on the concrete type.
type Response interface {
	isResponse()
}

// ToolCallResponse requests one or more tool invocations. Content carries any
// reasoning text the model emitted next to the calls.
type ToolCallResponse struct {
	Content string
	Calls   []ToolCall
}

// TextResponse is a free-text, final-answer-shaped completion.
type TextResponse struct {
	Content string
}

func (ToolCallResponse) isResponse() {}

func (TextResponse) isResponse() {}

// AssistantMessage renders a response as the transcript entry it produces.
func AssistantMessage(response Response) Message {
	switch r := response.(type) {
	case ToolCallResponse:
		calls := make([]ToolCall, len(r.Calls))
		for i := range r.Calls {
			calls[i] = CloneToolCall(r.Calls[i])
		}
		return Message{Role: RoleAssistant, Content: r.Content, ToolCalls: calls}
	case TextResponse:
		return Message{Role: RoleAssistant, Content: r.Content}
	default:
		return Message{Role: RoleAssistant}
	}
}

// ResponseText returns the natural-language portion of a response.
func ResponseText(response Response) string {
	switch r := response.(type) {
	case ToolCallResponse:
		return r.Content
	case TextResponse:
		return r.Content
	default:
		return ""
	}
}
