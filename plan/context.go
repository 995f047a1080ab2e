package plan

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultConsecutiveFailureThreshold is used when NewContext gets a non-positive threshold.
const DefaultConsecutiveFailureThreshold = 3

const completedOutputPreview = 120

type ReplanReason string

const (
	ReplanNone                ReplanReason = ""
	ReplanMilestoneFailure    ReplanReason = "milestone_failure"
	ReplanConsecutiveFailures ReplanReason = "consecutive_failures"
)

// Progress describes what one tool result did to the plan.
type Progress struct {
	StepCompleted bool
	Step          Step
	// Milestone is set when the completed step closes a milestone that still
	// needs validation.
	Milestone string
}

// Context renders and updates PlanState. It holds no per-plan state, so one
// Context can serve every session.
type Context struct {
	threshold  int
	now        func() time.Time
	milestones MilestoneValidator
}

type ContextOption func(*Context)

// WithClock overrides the clock used for outcome and adjustment timestamps.
func WithClock(now func() time.Time) ContextOption {
	return func(c *Context) {
		if now != nil {
			c.now = now
		}
	}
}

func NewContext(consecutiveFailureThreshold int, opts ...ContextOption) *Context {
	if consecutiveFailureThreshold <= 0 {
		consecutiveFailureThreshold = DefaultConsecutiveFailureThreshold
	}
	c := &Context{
		threshold: consecutiveFailureThreshold,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Context) Threshold() int {
	return c.threshold
}

// BuildReactContext renders the fixed-structure status block injected into
// the next model request.
func (c *Context) BuildReactContext(s *State) string {
	var b strings.Builder
	b.WriteString("## Plan Status\n")
	fmt.Fprintf(&b, "Goal: %s\n", s.Plan.Goal)
	fmt.Fprintf(&b, "Progress: %d/%d steps\n", s.CurrentStep, s.TotalSteps)

	b.WriteString("\n### Plan\n")
	b.WriteString(s.Plan.Render())
	b.WriteString("\n\n### Completed Steps\n")
	if len(s.Completed) == 0 {
		b.WriteString("(none)\n")
	}
	for i, outcome := range s.Completed {
		if !outcome.Success {
			continue
		}
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, outcome.Tool, preview(outcome.Output))
	}

	b.WriteString("\n### Next Step\n")
	if step, ok := s.NextStep(); ok {
		fmt.Fprintf(&b, "%d. %s", step.Index+1, step.Description)
		if step.Tool != "" {
			fmt.Fprintf(&b, " [tool: %s]", step.Tool)
		}
		b.WriteByte('\n')
	} else {
		b.WriteString("All planned steps are done. Give the final answer.\n")
	}

	if s.FailedCount > 0 {
		fmt.Fprintf(&b, "\nConsecutive failures: %d/%d\n", s.FailedCount, c.threshold)
	}
	if s.LastAdjustment != nil {
		fmt.Fprintf(&b, "\nLast adjustment: %s\n", s.LastAdjustment.Reason)
	}
	return strings.TrimRight(b.String(), "\n")
}

func preview(output string) string {
	output = strings.Join(strings.Fields(output), " ")
	if output == "" {
		return "ok"
	}
	if utf8.RuneCountInString(output) <= completedOutputPreview {
		return output
	}
	runes := []rune(output)
	return string(runes[:completedOutputPreview]) + "..."
}

// ShouldReplan reports whether the plan must be regenerated. A rejected
// milestone takes precedence over the consecutive failure streak.
func (c *Context) ShouldReplan(s *State) (bool, ReplanReason) {
	if s.MilestoneFailures > 0 {
		return true, ReplanMilestoneFailure
	}
	if s.FailedCount >= c.threshold {
		return true, ReplanConsecutiveFailures
	}
	return false, ReplanNone
}

// UpdateFromToolResult records one tool outcome. Success appends a completed
// record and clears the failure streak; failure only extends the streak. The
// new values are computed first and assigned together so a caller never sees
// half of an update.
func (c *Context) UpdateFromToolResult(s *State, toolName string, success bool, output string) Progress {
	if !success {
		s.FailedCount++
		return Progress{}
	}

	outcome := StepOutcome{
		Step:    s.CurrentStep,
		Tool:    toolName,
		Success: true,
		Output:  output,
		At:      c.now(),
	}
	progress := Progress{}
	nextStep := s.CurrentStep
	if step, ok := s.NextStep(); ok && (step.Tool == "" || step.Tool == toolName) {
		progress.StepCompleted = true
		progress.Step = step
		nextStep++
		if m, ok := s.Plan.Milestone(step.Milestone); ok && m.Status != MilestoneSatisfied {
			progress.Milestone = m.ID
		}
	}

	completed := append(s.Completed, outcome)
	s.Completed = completed
	s.CurrentStep = nextStep
	s.FailedCount = 0
	return progress
}

// CheckMilestone validates milestone id against the evidence gathered since
// it opened. Satisfied milestones open the next evidence window; a rejection
// is recorded as a plan-level failure.
func (c *Context) CheckMilestone(s *State, id string) (bool, string) {
	index := -1
	for i, m := range s.Plan.Milestones {
		if m.ID == id {
			index = i
			break
		}
	}
	if index < 0 {
		return false, fmt.Sprintf("unknown milestone %q", id)
	}

	start := min(max(s.MilestoneOpenedAt, 0), len(s.Completed))
	ok, detail := c.milestones.Validate(s.Plan.Milestones[index], s.Completed[start:])
	if ok {
		s.Plan.Milestones[index].Status = MilestoneSatisfied
		s.MilestoneOpenedAt = len(s.Completed)
		return true, detail
	}
	s.Plan.Milestones[index].Status = MilestoneFailed
	c.RecordMilestoneFailure(s, id)
	return false, detail
}

// CheckRemainingMilestones validates every unsatisfied milestone against all
// evidence of the plan. It returns the ids that failed.
func (c *Context) CheckRemainingMilestones(s *State) []string {
	var failed []string
	for i, m := range s.Plan.Milestones {
		if m.Status == MilestoneSatisfied {
			continue
		}
		if ok, _ := c.milestones.Validate(m, s.Completed); ok {
			s.Plan.Milestones[i].Status = MilestoneSatisfied
			continue
		}
		s.Plan.Milestones[i].Status = MilestoneFailed
		c.RecordMilestoneFailure(s, m.ID)
		failed = append(failed, m.ID)
	}
	return failed
}

// RecordMilestoneFailure registers a rejected milestone. FailedCount is untouched.
func (c *Context) RecordMilestoneFailure(s *State, id string) {
	s.MilestoneFailures++
	s.FailedMilestone = id
}

// RecordDenial registers a refused or timed-out confirmation. Denials are not
// tool failures and do not extend the streak.
func (c *Context) RecordDenial(s *State) {
	s.DeniedCount++
}

// ApplyReplan swaps in regenerated steps. Goal, skill binding and tool
// constraints of the running plan are preserved, milestones already satisfied
// stay satisfied, and both failure counters reset.
func (c *Context) ApplyReplan(s *State, next StructuredPlan, reason string) error {
	current := s.Plan
	next = Normalize(next)
	next.Goal = current.Goal
	next.SkillBinding = current.SkillBinding
	next.Constraints = current.Clone().Constraints
	next.Version = current.Version + 1

	if len(next.Milestones) == 0 {
		next.Milestones = current.Clone().Milestones
	}
	for i, m := range next.Milestones {
		previous, ok := current.Milestone(m.ID)
		switch {
		case ok && previous.Status == MilestoneSatisfied:
			next.Milestones[i].Status = MilestoneSatisfied
		default:
			next.Milestones[i].Status = MilestonePending
		}
	}

	if err := Validate(next); err != nil {
		return fmt.Errorf("apply replan: %w", err)
	}

	s.Plan = next
	s.CurrentStep = 0
	s.TotalSteps = len(next.Steps)
	s.FailedCount = 0
	s.MilestoneFailures = 0
	s.FailedMilestone = ""
	s.MilestoneOpenedAt = len(s.Completed)
	s.Replans++
	s.LastAdjustment = &Adjustment{At: c.now(), Reason: reason}
	return nil
}

// RecordReplanFailure spends one replan on an attempt that produced no usable
// plan. The running plan stays in place and both failure counters reset so
// the next replan needs fresh evidence.
func (c *Context) RecordReplanFailure(s *State, reason string) {
	s.FailedCount = 0
	s.MilestoneFailures = 0
	s.FailedMilestone = ""
	s.Replans++
	s.LastAdjustment = &Adjustment{At: c.now(), Reason: reason}
}
