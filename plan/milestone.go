package plan

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// StepOutcome records one tool result observed while a plan executed.
type StepOutcome struct {
	Step    int
	Tool    string
	Success bool
	Output  string
	At      time.Time
}

// MilestoneValidator checks milestone criteria against execution evidence.
type MilestoneValidator struct{}

// Validate reports whether evidence satisfies m. Failed outcomes in evidence
// are ignored; only successful steps count toward any criterion.
func (MilestoneValidator) Validate(m Milestone, evidence []StepOutcome) (bool, string) {
	var successes []StepOutcome
	for _, outcome := range evidence {
		if outcome.Success {
			successes = append(successes, outcome)
		}
	}

	if m.Criteria.isZero() {
		if len(successes) == 0 {
			return false, "no successful step since milestone opened"
		}
		return true, fmt.Sprintf("%d successful step(s)", len(successes))
	}

	var missing []string
	if len(successes) < m.Criteria.MinSuccessfulSteps {
		missing = append(missing, fmt.Sprintf("successful steps %d < %d", len(successes), m.Criteria.MinSuccessfulSteps))
	}
	for _, tool := range m.Criteria.RequiredTools {
		used := slices.ContainsFunc(successes, func(o StepOutcome) bool { return o.Tool == tool })
		if !used {
			missing = append(missing, "tool "+tool+" not used")
		}
	}
	for _, needle := range m.Criteria.OutputContains {
		found := slices.ContainsFunc(successes, func(o StepOutcome) bool { return strings.Contains(o.Output, needle) })
		if !found {
			missing = append(missing, fmt.Sprintf("output missing %q", needle))
		}
	}
	if len(missing) > 0 {
		return false, strings.Join(missing, "; ")
	}
	return true, "criteria met"
}
