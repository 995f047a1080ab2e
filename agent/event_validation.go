package agent

import "fmt"

// ValidateEvent checks event payload invariants before publish boundaries.
func ValidateEvent(event Event) error {
	if event.Type == "" {
		return fmt.Errorf("%w: field=type reason=empty", ErrEventInvalid)
	}
	if event.SessionID == "" {
		return fmt.Errorf("%w: field=session_id reason=empty type=%s", ErrEventInvalid, event.Type)
	}
	if event.Iteration < 0 {
		return fmt.Errorf(
			"%w: field=iteration reason=negative value=%d type=%s session_id=%q",
			ErrEventInvalid,
			event.Iteration,
			event.Type,
			event.SessionID,
		)
	}

	switch event.Type {
	case EventTypeAssistantMessage:
		if event.Message == nil {
			return fmt.Errorf(
				"%w: field=message reason=nil type=%s session_id=%q iteration=%d",
				ErrEventInvalid,
				event.Type,
				event.SessionID,
				event.Iteration,
			)
		}
	case EventTypeToolResult, EventTypeToolRejected:
		if event.ToolResult == nil {
			return fmt.Errorf(
				"%w: field=tool_result reason=nil type=%s session_id=%q iteration=%d",
				ErrEventInvalid,
				event.Type,
				event.SessionID,
				event.Iteration,
			)
		}
	case EventTypePhaseChanged:
		if event.Phase == "" {
			return fmt.Errorf(
				"%w: field=phase reason=empty type=%s session_id=%q iteration=%d",
				ErrEventInvalid,
				event.Type,
				event.SessionID,
				event.Iteration,
			)
		}
	}
	return nil
}
