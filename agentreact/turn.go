package agentreact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/Gurpartap/taskloop/agent"
	"github.com/Gurpartap/taskloop/analyzer"
	"github.com/Gurpartap/taskloop/compaction"
	"github.com/Gurpartap/taskloop/plan"
	"github.com/Gurpartap/taskloop/planner"
	"github.com/Gurpartap/taskloop/skills"
)

const (
	planStatusMessageName = "plan_status"

	correctionPrompt = "You reported the task as done, but no tool has been called in this turn. " +
		"Nothing has been executed yet. Use the available tools to actually perform the work, " +
		"or state plainly that you have not done it."
)

// turn is the mutable state of one HandleTurn call. It is confined to the
// goroutine running the turn.
type turn struct {
	l       *Loop
	ctx     context.Context
	parent  context.Context
	session agent.Session
	message string

	transcript []agent.Message
	result     TurnResult

	phase     Phase
	iteration int
	task      string
	skill     *skills.Metadata
	state     *plan.State
	validator *plan.ToolValidator

	replanReason plan.ReplanReason
	corrected    bool
	finalAnswer  string
	failedCalls  int
	deniedCalls  int
	notes        []string

	abortErr  error
	cancelErr error
	errs      []error
}

func (t *turn) run() (TurnResult, error) {
	t.publish(agent.Event{Type: agent.EventTypeTurnStarted, Description: t.message})

	next := PhaseAnalyze
	for {
		if err := validatePhaseTransition(t.phase, next); err != nil {
			// An illegal edge ends the turn instead of running an undefined phase.
			t.abortErr = errors.Join(t.abortErr, err)
			next = PhaseAbort
		}
		t.phase = next
		t.publish(agent.Event{Type: agent.EventTypePhaseChanged, Phase: string(next)})
		if isTerminalPhase(next) {
			return t.finish()
		}
		next = t.step(next)
	}
}

func (t *turn) step(phase Phase) Phase {
	switch phase {
	case PhaseAnalyze:
		return t.analyze()
	case PhasePlan:
		return t.plan()
	case PhaseExecute:
		return t.execute()
	case PhaseValidateResult:
		return t.validate()
	case PhaseReplan:
		return t.replan()
	default:
		return t.abort(fmt.Errorf("%w: no handler for phase %q", ErrInvalidPhaseTransition, phase))
	}
}

func (t *turn) analyze() Phase {
	if next, stop := t.checkStop(); stop {
		return next
	}

	t.task = t.message
	if name, args := analyzer.ParseSkillCommand(t.message); name != "" {
		t.bindSkill(name, args)
	}
	t.result.Analysis = t.l.analyzer.Analyze(t.task)
	t.transcript = append(t.transcript, agent.Message{Role: agent.RoleUser, Content: t.message})
	t.trace(TraceStep{
		Phase:   PhaseAnalyze,
		Success: true,
		Detail: fmt.Sprintf("complexity=%s needs_plan=%t confidence=%.2f",
			t.result.Analysis.Complexity, t.result.Analysis.NeedsPlan, t.result.Analysis.Confidence),
	})

	if t.result.Analysis.NeedsPlan || t.skill != nil {
		return PhasePlan
	}
	return PhaseExecute
}

// bindSkill attaches a user-invocable skill named by a slash command. Unknown
// skills leave the turn unbound and the message is handled as typed.
func (t *turn) bindSkill(name, args string) {
	if t.l.skills == nil {
		return
	}
	meta, err := t.l.skills.Get(name)
	if err != nil {
		t.l.logger.Debug("skill command not bound", slog.String("skill", name), slog.Any("error", err))
		return
	}
	if !meta.UserInvocable {
		t.l.logger.Debug("skill is not user invocable", slog.String("skill", name))
		return
	}

	t.skill = &meta
	t.result.Skill = meta.Name
	t.task = args
	if t.task == "" {
		t.task = meta.Description
	}
}

func (t *turn) plan() Phase {
	request := planner.Request{
		Message:  t.task,
		Analysis: t.result.Analysis,
		Skill:    t.skillCopy(),
		Tools:    agent.CloneToolDefinitions(t.l.toolList),
	}
	ctx, cancel := withOptionalTimeout(t.ctx, t.l.cfg.ModelTimeout)
	produced, err := await(ctx, func(ctx context.Context) (plan.StructuredPlan, error) {
		return t.l.planner.Plan(ctx, request)
	})
	cancel()

	var validator *plan.ToolValidator
	if err == nil {
		produced, validator, err = t.seedPlan(produced)
	}
	if err != nil {
		if next, stop := t.checkStop(); stop {
			return next
		}
		if errors.Is(err, agent.ErrTransportFatal) {
			return t.abort(fmt.Errorf("%w: %w", ErrModelFatal, err))
		}
		t.l.logger.Warn("plan rejected, continuing without a plan",
			slog.String("session_id", string(t.session.ID)),
			slog.Any("error", err),
		)
		t.note("no structured plan: " + err.Error())
		t.trace(TraceStep{Phase: PhasePlan, Detail: err.Error()})
		t.validator = t.skillValidator()
		return PhaseExecute
	}

	t.state = plan.NewState(produced)
	t.validator = validator
	t.publish(agent.Event{Type: agent.EventTypePlanCreated, Description: t.state.OriginalPlan})
	t.trace(TraceStep{
		Phase:   PhasePlan,
		Success: true,
		Detail:  fmt.Sprintf("steps=%d milestones=%d", len(produced.Steps), len(produced.Milestones)),
	})
	return PhaseExecute
}

// seedPlan binds the active skill and its allowed tools, then checks the
// plan is executable before the turn commits to it.
func (t *turn) seedPlan(p plan.StructuredPlan) (plan.StructuredPlan, *plan.ToolValidator, error) {
	if p.Version < 1 {
		p.Version = 1
	}
	if t.skill != nil {
		p.SkillBinding = t.skill.Name
		if len(p.Constraints.Allowed) == 0 {
			p.Constraints.Allowed = slices.Clone(t.skill.AllowedTools)
		}
	}
	p = plan.Normalize(p)
	if err := plan.Validate(p); err != nil {
		return plan.StructuredPlan{}, nil, err
	}
	validator, err := plan.NewToolValidator(p.Constraints)
	if err != nil {
		return plan.StructuredPlan{}, nil, err
	}
	return p, validator, nil
}

// skillValidator enforces a bound skill's allowed tools when the turn runs
// without a plan.
func (t *turn) skillValidator() *plan.ToolValidator {
	if t.skill == nil || len(t.skill.AllowedTools) == 0 {
		return nil
	}
	validator, err := plan.NewToolValidator(plan.ToolConstraints{Allowed: slices.Clone(t.skill.AllowedTools)})
	if err != nil {
		t.l.logger.Warn("skill allowed tools are unusable",
			slog.String("skill", t.skill.Name),
			slog.Any("error", err),
		)
		return nil
	}
	return validator
}

func (t *turn) execute() Phase {
	if next, stop := t.checkStop(); stop {
		return next
	}
	if t.iteration >= t.l.cfg.MaxIterations {
		return t.abort(fmt.Errorf("%w: max_iterations=%d", ErrIterationLimit, t.l.cfg.MaxIterations))
	}
	t.iteration++
	t.result.Iterations = t.iteration

	t.maybeCompact()
	if next, stop := t.checkStop(); stop {
		return next
	}

	request := t.request()
	ctx, cancel := withOptionalTimeout(t.ctx, t.l.cfg.ModelTimeout)
	response, err := await(ctx, func(ctx context.Context) (agent.Response, error) {
		return t.l.model.Generate(ctx, request)
	})
	cancel()
	if err != nil {
		return t.modelFailed(err)
	}

	switch r := response.(type) {
	case agent.ToolCallResponse:
		if len(r.Calls) > 0 {
			return t.runTools(r)
		}
		return t.handleAnswer(r)
	case agent.TextResponse:
		return t.handleAnswer(r)
	default:
		return t.abort(fmt.Errorf("%w: unexpected response type %T", ErrModelFatal, response))
	}
}

// modelFailed feeds a timed-out or retryable model failure into plan
// bookkeeping. Anything else ends the turn.
func (t *turn) modelFailed(err error) Phase {
	if next, stop := t.checkStop(); stop {
		return next
	}
	if !errors.Is(err, context.DeadlineExceeded) && !agent.IsRetryable(err) {
		return t.abort(fmt.Errorf("%w: %w", ErrModelFatal, err))
	}

	t.l.logger.Warn("model request failed",
		slog.String("session_id", string(t.session.ID)),
		slog.Int("iteration", t.iteration),
		slog.Any("error", err),
	)
	t.trace(TraceStep{Phase: PhaseExecute, Detail: "model: " + err.Error()})
	if t.state != nil {
		t.l.planCtx.UpdateFromToolResult(t.state, "", false, err.Error())
	}
	return PhaseValidateResult
}

func (t *turn) handleAnswer(response agent.Response) Phase {
	text := agent.ResponseText(response)
	message := agent.AssistantMessage(response)
	t.transcript = append(t.transcript, message)
	t.publish(agent.Event{Type: agent.EventTypeAssistantMessage, Message: &message})

	if !t.corrected && t.result.ToolCalls == 0 {
		if claimed, indicators := t.l.claims.Detect(text); claimed {
			t.corrected = true
			t.transcript = append(t.transcript, agent.Message{Role: agent.RoleUser, Content: correctionPrompt})
			detail := "completion claimed without tool evidence: " + joinIndicators(indicators)
			t.l.logger.Info("completion claim without tool evidence",
				slog.String("session_id", string(t.session.ID)),
				slog.Int("iteration", t.iteration),
			)
			t.publish(agent.Event{Type: agent.EventTypeCompletionSuspect, Description: detail})
			t.trace(TraceStep{Phase: PhaseExecute, Detail: detail})
			return PhaseExecute
		}
	}

	t.finalAnswer = text
	if t.state != nil && len(t.state.PendingMilestones()) > 0 {
		failed := t.l.planCtx.CheckRemainingMilestones(t.state)
		if len(failed) > 0 {
			detail := "milestones not satisfied: " + strings.Join(failed, ", ")
			t.trace(TraceStep{Phase: PhaseValidateResult, Detail: detail})
			if t.state.Replans < t.l.cfg.MaxReplans {
				t.replanReason = plan.ReplanMilestoneFailure
				return PhaseReplan
			}
			t.note(detail)
		}
	}
	return PhaseConclude
}

func (t *turn) validate() Phase {
	if next, stop := t.checkStop(); stop {
		return next
	}
	if t.state == nil {
		return PhaseExecute
	}
	if replan, reason := t.l.planCtx.ShouldReplan(t.state); replan {
		t.replanReason = reason
		return PhaseReplan
	}
	return PhaseExecute
}

func (t *turn) replan() Phase {
	if next, stop := t.checkStop(); stop {
		return next
	}
	reason := t.replanReason
	detail := t.replanDetail(reason)
	if t.state.Replans >= t.l.cfg.MaxReplans {
		return t.abort(fmt.Errorf("%w: max_replans=%d last=%s",
			ErrReplanBudgetExhausted, t.l.cfg.MaxReplans, detail))
	}

	request := planner.ReplanRequest{
		Plan:      t.state.Plan.Clone(),
		Reason:    reason,
		Detail:    detail,
		Completed: slices.Clone(t.state.Completed),
		Tools:     agent.CloneToolDefinitions(t.l.toolList),
	}
	ctx, cancel := withOptionalTimeout(t.ctx, t.l.cfg.ModelTimeout)
	regenerated, err := await(ctx, func(ctx context.Context) (plan.StructuredPlan, error) {
		return t.l.planner.Replan(ctx, request)
	})
	cancel()
	if err == nil {
		err = t.l.planCtx.ApplyReplan(t.state, regenerated, detail)
	}
	if err != nil {
		if next, stop := t.checkStop(); stop {
			return next
		}
		if errors.Is(err, agent.ErrTransportFatal) {
			return t.abort(fmt.Errorf("%w: %w", ErrModelFatal, err))
		}
		t.l.logger.Warn("replan failed, keeping current plan",
			slog.String("session_id", string(t.session.ID)),
			slog.String("reason", string(reason)),
			slog.Any("error", err),
		)
		t.l.planCtx.RecordReplanFailure(t.state, detail)
		t.trace(TraceStep{Phase: PhaseReplan, Detail: "replan failed: " + err.Error()})
		return PhaseExecute
	}

	t.replanReason = plan.ReplanNone
	t.publish(agent.Event{
		Type:        agent.EventTypeReplanned,
		Description: fmt.Sprintf("version=%d reason=%s", t.state.Plan.Version, reason),
	})
	t.trace(TraceStep{Phase: PhaseReplan, Success: true, Detail: detail})
	return PhaseExecute
}

func (t *turn) replanDetail(reason plan.ReplanReason) string {
	switch reason {
	case plan.ReplanMilestoneFailure:
		return fmt.Sprintf("milestone %q failed", t.state.FailedMilestone)
	case plan.ReplanConsecutiveFailures:
		return fmt.Sprintf("%d consecutive failures", t.state.FailedCount)
	default:
		return "replan requested"
	}
}

func (t *turn) maybeCompact() {
	compress, trigger := t.l.compressor.ShouldCompress(t.transcript)
	if !compress {
		return
	}

	ctx, cancel := withOptionalTimeout(t.ctx, t.l.cfg.ModelTimeout)
	defer cancel()
	messages := agent.CloneMessages(t.transcript)
	retention := retentionFor(messages, t.l.compressor.Config().RetentionCount)
	result, err := await(ctx, func(ctx context.Context) (compaction.Result, error) {
		return t.l.compressor.Compress(ctx, messages, retention)
	})
	if err != nil {
		t.l.logger.Warn("context compaction failed, keeping transcript",
			slog.String("session_id", string(t.session.ID)),
			slog.Any("error", err),
		)
		return
	}
	if len(result.Archived) == 0 {
		return
	}

	t.transcript = result.Compressed
	t.result.Compactions++
	detail := fmt.Sprintf("trigger=%s archived=%d retained=%d", trigger, len(result.Archived), len(result.Recent))
	t.publish(agent.Event{Type: agent.EventTypeContextCompacted, Description: detail})
	t.trace(TraceStep{Phase: PhaseExecute, Success: true, Detail: "compacted: " + detail})
}

// retentionFor widens the retained tail so it never starts with a tool
// result separated from the assistant message that requested it.
func retentionFor(messages []agent.Message, retention int) int {
	if retention <= 0 {
		return retention
	}
	for retention < len(messages) && messages[len(messages)-retention].Role == agent.RoleTool {
		retention++
	}
	return retention
}

func (t *turn) request() agent.ModelRequest {
	messages := make([]agent.Message, 0, len(t.transcript)+2)
	messages = append(messages, agent.Message{Role: agent.RoleSystem, Content: t.systemPrompt()})
	messages = append(messages, agent.CloneMessages(t.transcript)...)
	if t.state != nil {
		messages = append(messages, agent.Message{
			Role:    agent.RoleSystem,
			Name:    planStatusMessageName,
			Content: t.l.planCtx.BuildReactContext(t.state),
		})
	}
	return agent.ModelRequest{Messages: messages, Tools: t.offeredTools()}
}

// offeredTools hides tools the plan forbids. Calls to hidden tools are still
// rejected at execution time.
func (t *turn) offeredTools() []agent.ToolDefinition {
	if t.validator == nil {
		return agent.CloneToolDefinitions(t.l.toolList)
	}
	var offered []agent.ToolDefinition
	for _, definition := range t.l.toolList {
		if ok, _ := t.validator.IsToolAllowed(definition.Name); ok {
			offered = append(offered, definition)
		}
	}
	return agent.CloneToolDefinitions(offered)
}

func (t *turn) systemPrompt() string {
	var b strings.Builder
	b.WriteString(t.l.cfg.SystemPrompt)

	if t.skill != nil {
		fmt.Fprintf(&b, "\n\n## Active skill: %s\n", t.skill.Name)
		if t.skill.Description != "" {
			b.WriteString(t.skill.Description + "\n")
		}
		if t.skill.Path != "" {
			fmt.Fprintf(&b, "Skill document: %s\n", t.skill.Path)
		}
		if len(t.skill.AllowedTools) > 0 {
			fmt.Fprintf(&b, "Allowed tools: %s\n", strings.Join(t.skill.AllowedTools, ", "))
		}
		return b.String()
	}

	if t.l.skills == nil {
		return b.String()
	}
	var listed []string
	for _, meta := range t.l.skills.ListAll() {
		if meta.DisableModelInvocation {
			continue
		}
		listed = append(listed, fmt.Sprintf("- %s: %s", meta.Name, meta.Description))
	}
	if len(listed) > 0 {
		b.WriteString("\n\n## Available skills\n")
		b.WriteString(strings.Join(listed, "\n"))
	}
	return b.String()
}

// checkStop maps a done turn context to its terminal phase. The turn's own
// wall-clock budget aborts; cancellation by the caller cancels.
func (t *turn) checkStop() (Phase, bool) {
	if t.ctx.Err() == nil {
		return "", false
	}
	if t.parent.Err() == nil && errors.Is(context.Cause(t.ctx), ErrDeadlineExceeded) {
		return t.abort(fmt.Errorf("%w: max_duration=%s", ErrDeadlineExceeded, t.l.cfg.MaxDuration)), true
	}
	t.cancelErr = t.parent.Err()
	if t.cancelErr == nil {
		t.cancelErr = t.ctx.Err()
	}
	return PhaseCancelled, true
}

func (t *turn) abort(err error) Phase {
	t.abortErr = errors.Join(t.abortErr, err)
	return PhaseAbort
}

func (t *turn) finish() (TurnResult, error) {
	if t.state != nil {
		p := t.state.Plan.Clone()
		t.result.Plan = &p
		t.result.Replans = t.state.Replans
	}

	switch t.phase {
	case PhaseConclude:
		t.result.Outcome = OutcomeConcluded
		t.result.Answer = t.finalAnswer
		t.result.Summary = t.summary()
		t.save()
		t.publish(agent.Event{Type: agent.EventTypeTurnConcluded, Description: t.result.Summary})
		t.l.logger.Info("turn concluded",
			slog.String("session_id", string(t.session.ID)),
			slog.String("turn_id", t.result.TurnID),
			slog.Int("iterations", t.result.Iterations),
			slog.Int("tool_calls", t.result.ToolCalls),
			slog.Int("replans", t.result.Replans),
		)
		return t.result, errors.Join(t.errs...)

	case PhaseAbort:
		t.result.Outcome = OutcomeAborted
		t.result.AbortReason = t.abortErr.Error()
		t.result.Answer = "Task aborted: " + t.result.AbortReason
		t.result.Summary = t.summary()
		t.transcript = append(t.transcript, agent.Message{Role: agent.RoleAssistant, Content: t.result.Answer})
		t.save()
		t.publish(agent.Event{Type: agent.EventTypeTurnAborted, Description: t.result.AbortReason})
		t.l.logger.Warn("turn aborted",
			slog.String("session_id", string(t.session.ID)),
			slog.String("turn_id", t.result.TurnID),
			slog.Int("iterations", t.result.Iterations),
			slog.Any("error", t.abortErr),
		)
		abortErr := fmt.Errorf("turn %s aborted: %w", t.result.TurnID, t.abortErr)
		return t.result, errors.Join(append([]error{abortErr}, t.errs...)...)

	default:
		// A cancelled turn leaves the stored session untouched.
		t.result.Outcome = OutcomeCancelled
		t.publish(agent.Event{Type: agent.EventTypeTurnCancelled})
		t.l.logger.Info("turn cancelled",
			slog.String("session_id", string(t.session.ID)),
			slog.String("turn_id", t.result.TurnID),
		)
		cancelErr := t.cancelErr
		if cancelErr == nil {
			cancelErr = context.Canceled
		}
		return t.result, errors.Join(append([]error{cancelErr}, t.errs...)...)
	}
}

func (t *turn) save() {
	session := t.session
	session.Messages = agent.CloneMessages(t.transcript)
	session.Turns++
	if err := t.l.sessions.Save(context.WithoutCancel(t.ctx), session); err != nil {
		t.errs = append(t.errs, fmt.Errorf("save session %q: %w", session.ID, err))
	}
}

func (t *turn) publish(event agent.Event) {
	event.SessionID = t.session.ID
	event.TurnID = t.result.TurnID
	event.Iteration = t.iteration
	if err := publishEvent(context.WithoutCancel(t.ctx), t.l.events, event); err != nil {
		t.errs = append(t.errs, err)
	}
}

func (t *turn) trace(step TraceStep) {
	step.Iteration = t.iteration
	t.result.Trace = append(t.result.Trace, step)
}

func (t *turn) note(note string) {
	t.notes = append(t.notes, note)
}

func (t *turn) skillCopy() *skills.Metadata {
	if t.skill == nil {
		return nil
	}
	meta := t.skill.Clone()
	return &meta
}

func joinIndicators(indicators []analyzer.Indicator) string {
	names := make([]string, len(indicators))
	for i, indicator := range indicators {
		names[i] = string(indicator)
	}
	return strings.Join(names, ",")
}
