// Package planner turns a user turn into a StructuredPlan and regenerates
// plan steps after failures, using the model as the plan author.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Gurpartap/taskloop/agent"
	"github.com/Gurpartap/taskloop/analyzer"
	"github.com/Gurpartap/taskloop/plan"
	"github.com/Gurpartap/taskloop/skills"
)

var (
	ErrMissingModel       = errors.New("missing model")
	ErrUnexpectedResponse = errors.New("planner received a tool call instead of a plan")
)

// Request carries what the planner knows about a new turn.
type Request struct {
	Message  string
	Analysis analyzer.TaskAnalysis
	Skill    *skills.Metadata
	Tools    []agent.ToolDefinition
}

// ReplanRequest carries the failing plan and the evidence gathered so far.
type ReplanRequest struct {
	Plan      plan.StructuredPlan
	Reason    plan.ReplanReason
	Detail    string
	Completed []plan.StepOutcome
	Tools     []agent.ToolDefinition
}

// Planner materializes and regenerates plans. Plan returns an error wrapping
// plan.ErrPlanInvalid when the produced plan cannot be executed.
type Planner interface {
	Plan(ctx context.Context, request Request) (plan.StructuredPlan, error)
	Replan(ctx context.Context, request ReplanRequest) (plan.StructuredPlan, error)
}

// ModelPlanner asks the model for a plan block and decodes it.
type ModelPlanner struct {
	model  agent.Model
	logger *slog.Logger
}

func NewModelPlanner(model agent.Model, logger *slog.Logger) (*ModelPlanner, error) {
	if model == nil {
		return nil, fmt.Errorf("new planner: %w", ErrMissingModel)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ModelPlanner{model: model, logger: logger}, nil
}

func (p *ModelPlanner) Plan(ctx context.Context, request Request) (plan.StructuredPlan, error) {
	text, err := p.complete(ctx, planInstruction, renderPlanPrompt(request))
	if err != nil {
		return plan.StructuredPlan{}, fmt.Errorf("plan: %w", err)
	}
	doc, err := decodePlanBlock(text)
	if err != nil {
		return plan.StructuredPlan{}, fmt.Errorf("plan: %w", err)
	}

	goal := strings.TrimSpace(doc.Goal)
	if goal == "" {
		goal = strings.TrimSpace(request.Message)
	}
	result := doc.toPlan()
	result.Version = 1
	result.Goal = goal
	if request.Skill != nil {
		result.SkillBinding = request.Skill.Name
		result.Constraints.Allowed = append([]string(nil), request.Skill.AllowedTools...)
	}
	result = plan.Normalize(result)
	if err := plan.Validate(result); err != nil {
		return plan.StructuredPlan{}, fmt.Errorf("plan: %w", err)
	}

	p.logger.Debug("plan created",
		slog.Int("steps", len(result.Steps)),
		slog.Int("milestones", len(result.Milestones)),
		slog.String("skill", result.SkillBinding),
	)
	return result, nil
}

// Replan returns regenerated steps. Goal, skill binding and constraints of
// the returned plan are placeholders; plan.Context.ApplyReplan keeps the
// running plan's values.
func (p *ModelPlanner) Replan(ctx context.Context, request ReplanRequest) (plan.StructuredPlan, error) {
	text, err := p.complete(ctx, replanInstruction, renderReplanPrompt(request))
	if err != nil {
		return plan.StructuredPlan{}, fmt.Errorf("replan: %w", err)
	}
	doc, err := decodePlanBlock(text)
	if err != nil {
		return plan.StructuredPlan{}, fmt.Errorf("replan: %w", err)
	}
	next := doc.toPlan()
	next.Goal = request.Plan.Goal
	if len(next.Steps) == 0 {
		return plan.StructuredPlan{}, fmt.Errorf("replan: %w: field=steps reason=empty", plan.ErrPlanInvalid)
	}
	return next, nil
}

func (p *ModelPlanner) complete(ctx context.Context, instruction, prompt string) (string, error) {
	response, err := p.model.Generate(ctx, agent.ModelRequest{
		Messages: []agent.Message{
			{Role: agent.RoleSystem, Content: instruction},
			{Role: agent.RoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}
	text, ok := response.(agent.TextResponse)
	if !ok {
		return "", ErrUnexpectedResponse
	}
	return text.Content, nil
}
