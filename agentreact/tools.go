package agentreact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/Gurpartap/taskloop/agent"
)

const traceDetailLimit = 200

func (t *turn) runTools(response agent.ToolCallResponse) Phase {
	calls := make([]agent.ToolCall, len(response.Calls))
	for i, call := range response.Calls {
		calls[i] = agent.CloneToolCall(call)
		if calls[i].ID == "" {
			calls[i].ID = "call_" + t.l.newID()
		}
	}
	message := agent.AssistantMessage(agent.ToolCallResponse{Content: response.Content, Calls: calls})
	t.transcript = append(t.transcript, message)
	t.publish(agent.Event{Type: agent.EventTypeAssistantMessage, Message: &message})

	for i, call := range calls {
		result, stopped := t.runTool(call)
		if stopped {
			// Every requested call still gets a result entry so the stored
			// transcript stays well formed.
			for _, skipped := range calls[i:] {
				t.transcript = append(t.transcript, agent.ToolResultMessage(
					agent.ToolErrorResult(skipped, agent.ToolFailureReasonExecutorError, "turn stopped before the call completed"),
				))
			}
			next, _ := t.checkStop()
			return next
		}
		t.transcript = append(t.transcript, agent.ToolResultMessage(result))
	}
	return PhaseValidateResult
}

// runTool takes one call through plan constraints, definition checks, the
// risk gate and execution. stopped reports that the turn context ended before
// an outcome could be recorded.
func (t *turn) runTool(call agent.ToolCall) (agent.ToolResult, bool) {
	if t.ctx.Err() != nil {
		return agent.ToolResult{}, true
	}
	t.result.ToolCalls++

	if t.validator != nil {
		if ok, reason := t.validator.IsToolAllowed(call.Name); !ok {
			t.l.logger.Warn("tool call rejected by plan constraints",
				slog.String("session_id", string(t.session.ID)),
				slog.String("tool", call.Name),
				slog.String("reason", reason),
			)
			result := agent.ToolErrorResult(call, agent.ToolFailureReasonDisallowed, reason)
			t.recordOutcome(call.Name, result)
			t.publish(agent.Event{Type: agent.EventTypeToolRejected, ToolResult: &result})
			return result, false
		}
	}

	definition, ok := t.l.definitions[call.Name]
	if !ok {
		result := agent.ToolErrorResult(call, agent.ToolFailureReasonUnknownTool, fmt.Sprintf("tool %q is not available", call.Name))
		t.recordOutcome(call.Name, result)
		t.publish(agent.Event{Type: agent.EventTypeToolResult, ToolResult: &result})
		return result, false
	}
	if err := agent.ValidateToolArguments(call, definition); err != nil {
		result := agent.ToolErrorResult(call, agent.ToolFailureReasonInvalidArguments, err.Error())
		t.recordOutcome(call.Name, result)
		t.publish(agent.Event{Type: agent.EventTypeToolResult, ToolResult: &result})
		return result, false
	}

	if t.l.risk.IsHighRisk(call) {
		approved, detail := t.confirm(call)
		if t.ctx.Err() != nil {
			return agent.ToolResult{}, true
		}
		if !approved {
			result := agent.ToolErrorResult(call, agent.ToolFailureReasonDenied, detail)
			t.recordDenial(call.Name, result)
			t.publish(agent.Event{Type: agent.EventTypeToolResult, ToolResult: &result})
			return result, false
		}
	}

	ctx, cancel := withOptionalTimeout(t.ctx, t.l.cfg.ToolTimeout)
	execCall := agent.CloneToolCall(call)
	result, err := await(ctx, func(ctx context.Context) (agent.ToolResult, error) {
		return t.l.tools.Execute(ctx, execCall)
	})
	cancel()
	if err != nil {
		if t.ctx.Err() != nil {
			return agent.ToolResult{}, true
		}
		reason := agent.ToolFailureReasonExecutorError
		if errors.Is(err, context.DeadlineExceeded) {
			reason = agent.ToolFailureReasonTimeout
		}
		t.l.logger.Warn("tool execution failed",
			slog.String("session_id", string(t.session.ID)),
			slog.String("tool", call.Name),
			slog.String("reason", string(reason)),
			slog.Any("error", err),
		)
		result = agent.ToolErrorResult(call, reason, err.Error())
	} else if identityErr := validateToolResultIdentity(call, result); identityErr != nil {
		t.l.logger.Warn("tool execution failed",
			slog.String("session_id", string(t.session.ID)),
			slog.String("tool", call.Name),
			slog.Any("error", identityErr),
		)
		result = agent.ToolErrorResult(call, agent.ToolFailureReasonExecutorError, identityErr.Error())
	} else {
		result.CallID = call.ID
		result.Name = call.Name
	}

	t.recordOutcome(call.Name, result)
	t.publish(agent.Event{Type: agent.EventTypeToolResult, ToolResult: &result})
	return result, false
}

// confirm asks the confirmer about a high-risk call. A missing confirmer, an
// error, a timeout and a refusal are all denials.
func (t *turn) confirm(call agent.ToolCall) (bool, string) {
	if t.l.confirmer == nil {
		return false, "high-risk call requires confirmation and no confirmer is configured"
	}
	ctx, cancel := withOptionalTimeout(t.ctx, t.l.cfg.ConfirmTimeout)
	defer cancel()

	confirmCall := agent.CloneToolCall(call)
	approved, err := await(ctx, func(ctx context.Context) (bool, error) {
		return t.l.confirmer.Confirm(ctx, confirmCall)
	})
	switch {
	case ctx.Err() != nil && t.ctx.Err() == nil:
		return false, "confirmation timed out"
	case err != nil:
		return false, "confirmation failed: " + err.Error()
	case !approved:
		return false, "confirmation refused"
	default:
		return true, ""
	}
}

// recordOutcome feeds an executed or rejected call into plan state. A step
// that closes a milestone triggers its validation.
func (t *turn) recordOutcome(tool string, result agent.ToolResult) {
	success := !result.IsError
	if !success {
		t.failedCalls++
	}
	t.trace(TraceStep{Phase: PhaseExecute, Tool: tool, Success: success, Detail: clip(result.Content)})
	if t.state == nil {
		return
	}

	progress := t.l.planCtx.UpdateFromToolResult(t.state, tool, success, result.Content)
	if progress.Milestone == "" {
		return
	}
	ok, detail := t.l.planCtx.CheckMilestone(t.state, progress.Milestone)
	t.trace(TraceStep{
		Phase:   PhaseValidateResult,
		Success: ok,
		Detail:  fmt.Sprintf("milestone %s: %s", progress.Milestone, detail),
	})
}

func (t *turn) recordDenial(tool string, result agent.ToolResult) {
	t.deniedCalls++
	t.l.logger.Info("high-risk tool call denied",
		slog.String("session_id", string(t.session.ID)),
		slog.String("tool", tool),
		slog.String("detail", result.Content),
	)
	t.trace(TraceStep{Phase: PhaseExecute, Tool: tool, Detail: clip(result.Content)})
	if t.state != nil {
		t.l.planCtx.RecordDenial(t.state)
	}
}

func validateToolResultIdentity(call agent.ToolCall, result agent.ToolResult) error {
	if result.CallID != "" && result.CallID != call.ID {
		return fmt.Errorf("tool result call id mismatch: got=%q want=%q", result.CallID, call.ID)
	}
	if result.Name != "" && result.Name != call.Name {
		return fmt.Errorf("tool result name mismatch: got=%q want=%q", result.Name, call.Name)
	}
	return nil
}

func clip(text string) string {
	if utf8.RuneCountInString(text) <= traceDetailLimit {
		return text
	}
	runes := []rune(text)
	return string(runes[:traceDetailLimit]) + "..."
}
