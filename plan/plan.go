// Package plan holds structured plans, the validators that guard them and the
// runtime state that tracks their execution.
package plan

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var ErrPlanInvalid = errors.New("plan is invalid")

// ToolConstraints restricts tool use while a plan executes. An empty Allowed
// list means no allow-list restriction. Forbidden always wins over Allowed.
// Entries may be exact names or glob patterns such as "mcp_*".
type ToolConstraints struct {
	Allowed   []string
	Forbidden []string
}

type MilestoneStatus string

const (
	MilestonePending   MilestoneStatus = "pending"
	MilestoneSatisfied MilestoneStatus = "satisfied"
	MilestoneFailed    MilestoneStatus = "failed"
)

// Criteria are the checkable completion conditions of a milestone. The zero
// value requires at least one successful step since the milestone opened.
type Criteria struct {
	RequiredTools      []string
	MinSuccessfulSteps int
	OutputContains     []string
}

func (c Criteria) isZero() bool {
	return len(c.RequiredTools) == 0 && c.MinSuccessfulSteps == 0 && len(c.OutputContains) == 0
}

type Milestone struct {
	ID          string
	Description string
	Criteria    Criteria
	Status      MilestoneStatus
}

// Step is one planned action. Milestone names the milestone the step closes.
type Step struct {
	Index       int
	Description string
	Tool        string
	Milestone   string
}

type StructuredPlan struct {
	Version      int
	Goal         string
	SkillBinding string
	Constraints  ToolConstraints
	Milestones   []Milestone
	Steps        []Step
}

// Clone returns a deep copy of p.
func (p StructuredPlan) Clone() StructuredPlan {
	cloned := p
	cloned.Constraints = ToolConstraints{
		Allowed:   slices.Clone(p.Constraints.Allowed),
		Forbidden: slices.Clone(p.Constraints.Forbidden),
	}
	cloned.Steps = slices.Clone(p.Steps)
	if p.Milestones != nil {
		cloned.Milestones = make([]Milestone, len(p.Milestones))
		for i, m := range p.Milestones {
			m.Criteria = Criteria{
				RequiredTools:      slices.Clone(m.Criteria.RequiredTools),
				MinSuccessfulSteps: m.Criteria.MinSuccessfulSteps,
				OutputContains:     slices.Clone(m.Criteria.OutputContains),
			}
			cloned.Milestones[i] = m
		}
	}
	return cloned
}

// Milestone returns the milestone with the given id.
func (p StructuredPlan) Milestone(id string) (Milestone, bool) {
	for _, m := range p.Milestones {
		if m.ID == id {
			return m, true
		}
	}
	return Milestone{}, false
}

// Render returns the plan as the text block injected into model requests.
func (p StructuredPlan) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n", p.Goal)
	if p.SkillBinding != "" {
		fmt.Fprintf(&b, "Skill: %s\n", p.SkillBinding)
	}
	if len(p.Constraints.Allowed) > 0 {
		fmt.Fprintf(&b, "Allowed tools: %s\n", strings.Join(p.Constraints.Allowed, ", "))
	}
	if len(p.Constraints.Forbidden) > 0 {
		fmt.Fprintf(&b, "Forbidden tools: %s\n", strings.Join(p.Constraints.Forbidden, ", "))
	}
	b.WriteString("Steps:\n")
	for _, step := range p.Steps {
		fmt.Fprintf(&b, "%d. %s", step.Index+1, step.Description)
		if step.Tool != "" {
			fmt.Fprintf(&b, " [tool: %s]", step.Tool)
		}
		if step.Milestone != "" {
			fmt.Fprintf(&b, " (milestone: %s)", step.Milestone)
		}
		b.WriteByte('\n')
	}
	if len(p.Milestones) > 0 {
		b.WriteString("Milestones:\n")
		for _, m := range p.Milestones {
			fmt.Fprintf(&b, "- %s [%s]: %s\n", m.ID, m.Status, m.Description)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Normalize reindexes steps and marks unset milestone statuses pending.
func Normalize(p StructuredPlan) StructuredPlan {
	normalized := p.Clone()
	for i := range normalized.Steps {
		normalized.Steps[i].Index = i
	}
	for i := range normalized.Milestones {
		if normalized.Milestones[i].Status == "" {
			normalized.Milestones[i].Status = MilestonePending
		}
	}
	return normalized
}

// Validate rejects plans the loop cannot execute. Contradictory constraints
// are an allow-list whose every entry is also forbidden; a partial overlap is
// tolerated because forbidden takes precedence.
func Validate(p StructuredPlan) error {
	if strings.TrimSpace(p.Goal) == "" {
		return fmt.Errorf("%w: field=goal reason=empty", ErrPlanInvalid)
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("%w: field=steps reason=empty", ErrPlanInvalid)
	}

	seen := make(map[string]struct{}, len(p.Milestones))
	for i, m := range p.Milestones {
		if strings.TrimSpace(m.ID) == "" {
			return fmt.Errorf("%w: field=milestones[%d].id reason=empty", ErrPlanInvalid, i)
		}
		if _, dup := seen[m.ID]; dup {
			return fmt.Errorf("%w: field=milestones[%d].id reason=duplicate id=%q", ErrPlanInvalid, i, m.ID)
		}
		if m.Criteria.MinSuccessfulSteps < 0 {
			return fmt.Errorf("%w: field=milestones[%d].criteria reason=negative_min_steps id=%q", ErrPlanInvalid, i, m.ID)
		}
		seen[m.ID] = struct{}{}
	}
	for i, step := range p.Steps {
		if strings.TrimSpace(step.Description) == "" && step.Tool == "" {
			return fmt.Errorf("%w: field=steps[%d] reason=empty", ErrPlanInvalid, i)
		}
		if step.Milestone == "" {
			continue
		}
		if _, ok := seen[step.Milestone]; !ok {
			return fmt.Errorf("%w: field=steps[%d].milestone reason=unknown id=%q", ErrPlanInvalid, i, step.Milestone)
		}
	}

	validator, err := NewToolValidator(p.Constraints)
	if err != nil {
		return err
	}
	if len(p.Constraints.Allowed) > 0 {
		reachable := false
		for _, name := range p.Constraints.Allowed {
			if !validator.forbids(name) {
				reachable = true
				break
			}
		}
		if !reachable {
			return fmt.Errorf("%w: field=constraints reason=contradictory allowed=%v forbidden=%v", ErrPlanInvalid, p.Constraints.Allowed, p.Constraints.Forbidden)
		}
	}
	return nil
}
