package plan

import (
	"slices"
	"time"
)

// Adjustment records when and why a plan was last changed.
type Adjustment struct {
	At     time.Time
	Reason string
}

// State is the runtime companion of a StructuredPlan. It is owned by one turn
// and mutated only through Context.
type State struct {
	OriginalPlan string
	Plan         StructuredPlan
	CurrentStep  int
	TotalSteps   int
	Completed    []StepOutcome

	// FailedCount is the consecutive tool failure streak. MilestoneFailures
	// counts milestone rejections since the last replan. They never affect
	// each other.
	FailedCount       int
	MilestoneFailures int
	FailedMilestone   string
	DeniedCount       int
	Replans           int

	// MilestoneOpenedAt indexes Completed where evidence for the current
	// milestone starts.
	MilestoneOpenedAt int
	LastAdjustment    *Adjustment
}

// NewState starts execution state for p.
func NewState(p StructuredPlan) *State {
	p = Normalize(p)
	return &State{
		OriginalPlan: p.Render(),
		Plan:         p,
		TotalSteps:   len(p.Steps),
	}
}

// NextStep returns the step the plan expects next.
func (s *State) NextStep() (Step, bool) {
	if s.CurrentStep < 0 || s.CurrentStep >= len(s.Plan.Steps) {
		return Step{}, false
	}
	return s.Plan.Steps[s.CurrentStep], true
}

// PendingMilestones returns the ids of milestones not yet satisfied, in order.
func (s *State) PendingMilestones() []string {
	var pending []string
	for _, m := range s.Plan.Milestones {
		if m.Status != MilestoneSatisfied {
			pending = append(pending, m.ID)
		}
	}
	return pending
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	cloned := *s
	cloned.Plan = s.Plan.Clone()
	cloned.Completed = slices.Clone(s.Completed)
	if s.LastAdjustment != nil {
		adjustment := *s.LastAdjustment
		cloned.LastAdjustment = &adjustment
	}
	return &cloned
}
