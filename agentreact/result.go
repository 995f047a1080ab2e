package agentreact

import (
	"fmt"
	"strings"

	"github.com/Gurpartap/taskloop/agent"
	"github.com/Gurpartap/taskloop/analyzer"
	"github.com/Gurpartap/taskloop/plan"
)

// Outcome is the terminal state surfaced to the caller.
type Outcome string

const (
	OutcomeConcluded Outcome = "concluded"
	OutcomeAborted   Outcome = "aborted"
	OutcomeCancelled Outcome = "cancelled"
)

// TraceStep records one observable step of a turn.
type TraceStep struct {
	Iteration int
	Phase     Phase
	Tool      string
	Success   bool
	Detail    string
}

// TurnResult is what HandleTurn returns for one user message.
type TurnResult struct {
	SessionID   agent.SessionID
	TurnID      string
	Outcome     Outcome
	Answer      string
	Summary     string
	AbortReason string
	Analysis    analyzer.TaskAnalysis
	Skill       string
	Plan        *plan.StructuredPlan
	Trace       []TraceStep
	Iterations  int
	ToolCalls   int
	Replans     int
	Compactions int
}

// summary renders the completion summary shown next to the answer.
func (t *turn) summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Outcome: %s after %d iteration(s)\n", t.phaseOutcome(), t.result.Iterations)
	if t.result.Skill != "" {
		fmt.Fprintf(&b, "Skill: %s\n", t.result.Skill)
	}
	if t.state != nil {
		p := t.state.Plan
		fmt.Fprintf(&b, "Goal: %s\n", p.Goal)
		fmt.Fprintf(&b, "Plan version: %d\n", p.Version)
		fmt.Fprintf(&b, "Steps: %d/%d (%d successful tool results)\n",
			t.state.CurrentStep, t.state.TotalSteps, len(t.state.Completed))
		fmt.Fprintf(&b, "Replans: %d\n", t.state.Replans)
		if len(p.Milestones) > 0 {
			statuses := make([]string, len(p.Milestones))
			for i, m := range p.Milestones {
				statuses[i] = fmt.Sprintf("%s=%s", m.ID, m.Status)
			}
			fmt.Fprintf(&b, "Milestones: %s\n", strings.Join(statuses, ", "))
		}
	}
	fmt.Fprintf(&b, "Tool calls: %d (failed %d, denied %d)\n", t.result.ToolCalls, t.failedCalls, t.deniedCalls)
	if t.result.Compactions > 0 {
		fmt.Fprintf(&b, "Compactions: %d\n", t.result.Compactions)
	}
	for _, note := range t.notes {
		fmt.Fprintf(&b, "Note: %s\n", note)
	}
	if t.result.AbortReason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", t.result.AbortReason)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (t *turn) phaseOutcome() Outcome {
	if t.phase == PhaseAbort {
		return OutcomeAborted
	}
	return OutcomeConcluded
}
