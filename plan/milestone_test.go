package plan

import (
	"strings"
	"testing"
)

func TestMilestoneValidator(t *testing.T) {
	t.Parallel()

	evidence := []StepOutcome{
		{Tool: "read_file", Success: true, Output: "rows=42"},
		{Tool: "write_file", Success: true, Output: "wrote report.pptx"},
	}

	tests := []struct {
		name      string
		criteria  Criteria
		evidence  []StepOutcome
		satisfied bool
		detail    string
	}{
		{name: "zero criteria with success", evidence: evidence, satisfied: true},
		{name: "zero criteria without evidence", satisfied: false, detail: "no successful step"},
		{name: "required tool used", criteria: Criteria{RequiredTools: []string{"write_file"}}, evidence: evidence, satisfied: true},
		{name: "required tool missing", criteria: Criteria{RequiredTools: []string{"upload"}}, evidence: evidence, detail: "tool upload not used"},
		{name: "min steps met", criteria: Criteria{MinSuccessfulSteps: 2}, evidence: evidence, satisfied: true},
		{name: "min steps short", criteria: Criteria{MinSuccessfulSteps: 3}, evidence: evidence, detail: "successful steps 2 < 3"},
		{name: "output contains", criteria: Criteria{OutputContains: []string{"report.pptx"}}, evidence: evidence, satisfied: true},
		{name: "output missing", criteria: Criteria{OutputContains: []string{"summary.pdf"}}, evidence: evidence, detail: `output missing "summary.pdf"`},
		{
			name:     "failed outcomes ignored",
			criteria: Criteria{RequiredTools: []string{"write_file"}},
			evidence: []StepOutcome{{Tool: "write_file", Success: false}},
			detail:   "tool write_file not used",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			satisfied, detail := MilestoneValidator{}.Validate(Milestone{ID: "m", Criteria: tc.criteria}, tc.evidence)
			if satisfied != tc.satisfied {
				t.Fatalf("unexpected result: got=%v want=%v detail=%q", satisfied, tc.satisfied, detail)
			}
			if tc.detail != "" && !strings.Contains(detail, tc.detail) {
				t.Fatalf("detail %q does not contain %q", detail, tc.detail)
			}
		})
	}
}
