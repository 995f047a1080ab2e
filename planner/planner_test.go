package planner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Gurpartap/taskloop/adapters/modeltest"
	"github.com/Gurpartap/taskloop/agent"
	"github.com/Gurpartap/taskloop/plan"
	"github.com/Gurpartap/taskloop/skills"
)

const yamlPlan = "Here is the plan.\n```yaml\n" +
	"goal: build the deck\n" +
	"forbidden_tools: [shell]\n" +
	"milestones:\n" +
	"  - id: deck\n" +
	"    description: deck saved\n" +
	"    criteria:\n" +
	"      required_tools: [write_file]\n" +
	"steps:\n" +
	"  - description: read the outline\n" +
	"    tool: read_file\n" +
	"  - description: write the deck\n" +
	"    tool: write_file\n" +
	"    milestone: deck\n" +
	"```\n"

func TestPlanDecodesYAMLBlockAndSeedsSkillConstraints(t *testing.T) {
	t.Parallel()

	model := modeltest.NewScriptedModel(modeltest.Text(yamlPlan))
	p, err := NewModelPlanner(model, nil)
	if err != nil {
		t.Fatalf("new planner: %v", err)
	}

	skill := skills.Metadata{Name: "pptx", Description: "slides", AllowedTools: []string{"read_file", "write_file"}}
	got, err := p.Plan(context.Background(), Request{
		Message: "/pptx outline.md",
		Skill:   &skill,
		Tools:   []agent.ToolDefinition{{Name: "read_file", Description: "reads"}},
	})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}

	if got.Goal != "build the deck" || got.SkillBinding != "pptx" || got.Version != 1 {
		t.Fatalf("unexpected plan header: %+v", got)
	}
	if strings.Join(got.Constraints.Allowed, ",") != "read_file,write_file" {
		t.Fatalf("unexpected allowed tools: %v", got.Constraints.Allowed)
	}
	if strings.Join(got.Constraints.Forbidden, ",") != "shell" {
		t.Fatalf("unexpected forbidden tools: %v", got.Constraints.Forbidden)
	}
	if len(got.Steps) != 2 || got.Steps[1].Index != 1 || got.Steps[1].Milestone != "deck" {
		t.Fatalf("unexpected steps: %+v", got.Steps)
	}
	if got.Milestones[0].Status != plan.MilestonePending {
		t.Fatalf("unexpected milestone status: %q", got.Milestones[0].Status)
	}

	requests := model.Requests()
	if len(requests) != 1 || len(requests[0].Tools) != 0 {
		t.Fatalf("unexpected planner requests: %+v", requests)
	}
	prompt := requests[0].Messages[1].Content
	if !strings.Contains(prompt, "Only these tools may be used: read_file, write_file") || !strings.Contains(prompt, "- read_file: reads") {
		t.Fatalf("prompt missing skill or tools:\n%s", prompt)
	}
}

func TestPlanDecodesJSONAndFallsBackToMessageGoal(t *testing.T) {
	t.Parallel()

	body := "```json\n{\"steps\": [{\"description\": \"list files\", \"tool\": \"list_dir\"}]}\n```"
	p, err := NewModelPlanner(modeltest.NewScriptedModel(modeltest.Text(body)), nil)
	if err != nil {
		t.Fatalf("new planner: %v", err)
	}
	got, err := p.Plan(context.Background(), Request{Message: "  tidy the workspace "})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if got.Goal != "tidy the workspace" || len(got.Steps) != 1 || got.Steps[0].Tool != "list_dir" {
		t.Fatalf("unexpected plan: %+v", got)
	}
	if len(got.Constraints.Allowed) != 0 {
		t.Fatalf("unbound plan must not restrict tools: %v", got.Constraints.Allowed)
	}
}

func TestPlanRejectsMalformedPlans(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		body  string
		skill *skills.Metadata
	}{
		{name: "not yaml", body: "```yaml\nsteps: [unterminated\n```"},
		{name: "empty block", body: "```yaml\n\n```"},
		{name: "no steps", body: "goal: nothing to do\n"},
		{
			name:  "contradictory constraints",
			body:  "forbidden_tools: [write_file]\nsteps:\n  - description: write\n    tool: write_file\n",
			skill: &skills.Metadata{Name: "pptx", AllowedTools: []string{"write_file"}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			p, err := NewModelPlanner(modeltest.NewScriptedModel(modeltest.Text(tc.body)), nil)
			if err != nil {
				t.Fatalf("new planner: %v", err)
			}
			_, err = p.Plan(context.Background(), Request{Message: "do it", Skill: tc.skill})
			if !errors.Is(err, plan.ErrPlanInvalid) {
				t.Fatalf("expected ErrPlanInvalid, got %v", err)
			}
		})
	}
}

func TestPlanSurfacesTransportErrors(t *testing.T) {
	t.Parallel()

	fatal := agent.Fatal(errors.New("auth rejected"))
	p, err := NewModelPlanner(modeltest.NewScriptedModel(modeltest.Fail(fatal)), nil)
	if err != nil {
		t.Fatalf("new planner: %v", err)
	}
	_, err = p.Plan(context.Background(), Request{Message: "do it"})
	if !errors.Is(err, agent.ErrTransportFatal) {
		t.Fatalf("expected fatal transport error, got %v", err)
	}
}

func TestPlanRejectsToolCallResponse(t *testing.T) {
	t.Parallel()

	p, err := NewModelPlanner(modeltest.NewScriptedModel(modeltest.Call("c1", "read_file", nil)), nil)
	if err != nil {
		t.Fatalf("new planner: %v", err)
	}
	if _, err := p.Plan(context.Background(), Request{Message: "do it"}); !errors.Is(err, ErrUnexpectedResponse) {
		t.Fatalf("expected ErrUnexpectedResponse, got %v", err)
	}
}

func TestReplanReturnsRegeneratedSteps(t *testing.T) {
	t.Parallel()

	body := "```yaml\nsteps:\n  - description: retry with smaller file\n    tool: write_file\n```"
	model := modeltest.NewScriptedModel(modeltest.Text(body))
	p, err := NewModelPlanner(model, nil)
	if err != nil {
		t.Fatalf("new planner: %v", err)
	}

	current := plan.Normalize(plan.StructuredPlan{
		Goal:  "build the deck",
		Steps: []plan.Step{{Description: "write the deck", Tool: "write_file"}},
	})
	next, err := p.Replan(context.Background(), ReplanRequest{
		Plan:      current,
		Reason:    plan.ReplanConsecutiveFailures,
		Detail:    "disk full",
		Completed: []plan.StepOutcome{{Tool: "read_file", Success: true}},
	})
	if err != nil {
		t.Fatalf("replan: %v", err)
	}
	if next.Goal != "build the deck" || len(next.Steps) != 1 || next.Steps[0].Description != "retry with smaller file" {
		t.Fatalf("unexpected replan: %+v", next)
	}

	prompt := model.Requests()[0].Messages[1].Content
	for _, want := range []string{"Reason for replanning: consecutive_failures", "Detail: disk full", "1. read_file"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("replan prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestReplanRejectsEmptySteps(t *testing.T) {
	t.Parallel()

	p, err := NewModelPlanner(modeltest.NewScriptedModel(modeltest.Text("steps: []")), nil)
	if err != nil {
		t.Fatalf("new planner: %v", err)
	}
	if _, err := p.Replan(context.Background(), ReplanRequest{Plan: plan.StructuredPlan{Goal: "g"}}); !errors.Is(err, plan.ErrPlanInvalid) {
		t.Fatalf("expected ErrPlanInvalid, got %v", err)
	}
}

func TestNewModelPlannerRequiresModel(t *testing.T) {
	t.Parallel()

	if _, err := NewModelPlanner(nil, nil); !errors.Is(err, ErrMissingModel) {
		t.Fatalf("expected ErrMissingModel, got %v", err)
	}
}
