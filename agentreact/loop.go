// Package agentreact runs one user turn through the plan-aware ReAct state
// machine: analyze, plan, execute, validate, replan, then conclude or abort.
package agentreact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Gurpartap/taskloop/agent"
	"github.com/Gurpartap/taskloop/analyzer"
	"github.com/Gurpartap/taskloop/compaction"
	"github.com/Gurpartap/taskloop/plan"
	"github.com/Gurpartap/taskloop/planner"
	"github.com/Gurpartap/taskloop/policy/retry"
	"github.com/Gurpartap/taskloop/skills"
	"github.com/Gurpartap/taskloop/tokens"
)

// Dependencies are the collaborators of a Loop. Model, Tools and Sessions
// are required; every other field has a default.
type Dependencies struct {
	Model           agent.Model
	Tools           agent.ToolExecutor
	ToolDefinitions []agent.ToolDefinition
	Sessions        agent.SessionStore

	Skills     skills.Registry
	Planner    planner.Planner
	Compressor *compaction.Compressor
	Analyzer   *analyzer.Analyzer
	Claims     *analyzer.ClaimDetector
	Risk       RiskClassifier
	Confirmer  Confirmer
	Events     agent.EventSink
	Logger     *slog.Logger
	Clock      func() time.Time
	NewID      func() string
}

// Loop owns the shared, read-only collaborators. Per-turn state lives in a
// turn value, so one Loop serves every session.
type Loop struct {
	cfg         Config
	model       agent.Model
	tools       agent.ToolExecutor
	toolList    []agent.ToolDefinition
	definitions map[string]agent.ToolDefinition
	sessions    agent.SessionStore
	skills      skills.Registry
	planner     planner.Planner
	compressor  *compaction.Compressor
	analyzer    *analyzer.Analyzer
	claims      *analyzer.ClaimDetector
	planCtx     *plan.Context
	risk        RiskClassifier
	confirmer   Confirmer
	events      agent.EventSink
	logger      *slog.Logger
	newID       func() string
	locks       sessionLocks
}

func New(cfg Config, deps Dependencies) (*Loop, error) {
	if deps.Model == nil {
		return nil, fmt.Errorf("new loop: %w", ErrMissingModel)
	}
	if deps.Tools == nil {
		return nil, fmt.Errorf("new loop: %w", ErrMissingToolExecutor)
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("new loop: %w", ErrMissingSessionStore)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new loop: %w", err)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	model := retry.WrapModel(deps.Model, retry.Config{MaxAttempts: cfg.ModelRetries + 1, Logger: logger})
	tools := retry.WrapToolExecutor(deps.Tools, retry.Config{MaxAttempts: cfg.ToolRetries + 1, Logger: logger})

	turnPlanner := deps.Planner
	if turnPlanner == nil {
		modelPlanner, err := planner.NewModelPlanner(model, logger)
		if err != nil {
			return nil, fmt.Errorf("new loop: %w", err)
		}
		turnPlanner = modelPlanner
	}
	compressor := deps.Compressor
	if compressor == nil {
		summarizer, err := compaction.NewModelSummarizer(model)
		if err != nil {
			return nil, fmt.Errorf("new loop: %w", err)
		}
		compressor, err = compaction.New(cfg.Compaction, summarizer, tokens.New(), logger)
		if err != nil {
			return nil, fmt.Errorf("new loop: %w", err)
		}
	}
	taskAnalyzer := deps.Analyzer
	if taskAnalyzer == nil {
		taskAnalyzer = analyzer.New()
	}
	claims := deps.Claims
	if claims == nil {
		claims = analyzer.NewClaimDetector(nil)
	}
	var risk RiskClassifier = DefaultRiskClassifier()
	if deps.Risk != nil {
		risk = deps.Risk
	}
	var events agent.EventSink = agent.NoopEventSink{}
	if deps.Events != nil {
		events = deps.Events
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}

	return &Loop{
		cfg:         cfg,
		model:       model,
		tools:       tools,
		toolList:    agent.CloneToolDefinitions(deps.ToolDefinitions),
		definitions: agent.IndexToolDefinitions(deps.ToolDefinitions),
		sessions:    deps.Sessions,
		skills:      deps.Skills,
		planner:     turnPlanner,
		compressor:  compressor,
		analyzer:    taskAnalyzer,
		claims:      claims,
		planCtx:     plan.NewContext(cfg.ConsecutiveFailureThreshold, plan.WithClock(clock)),
		risk:        risk,
		confirmer:   deps.Confirmer,
		events:      events,
		logger:      logger,
		newID:       newID,
	}, nil
}

// HandleTurn runs one user message for a session and returns the final answer
// with the trace of steps taken. Turns of one session run one at a time;
// different sessions run independently. An aborted or cancelled turn returns
// its result together with an error naming the cause.
func (l *Loop) HandleTurn(ctx context.Context, sessionID agent.SessionID, message string) (TurnResult, error) {
	if ctx == nil {
		return TurnResult{}, agent.ErrContextNil
	}
	if sessionID == "" {
		return TurnResult{}, agent.ErrInvalidSessionID
	}

	release, err := l.locks.acquire(ctx, sessionID)
	if err != nil {
		return TurnResult{SessionID: sessionID, Outcome: OutcomeCancelled}, err
	}
	defer release()

	var (
		turnCtx context.Context
		cancel  context.CancelFunc
	)
	if l.cfg.MaxDuration > 0 {
		turnCtx, cancel = context.WithTimeoutCause(ctx, l.cfg.MaxDuration, ErrDeadlineExceeded)
	} else {
		turnCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	session, err := l.sessions.Load(turnCtx, sessionID)
	switch {
	case errors.Is(err, agent.ErrSessionNotFound):
		session = agent.Session{ID: sessionID}
	case err != nil:
		if ctxErr := contextCancellationError(ctx, err); ctxErr != nil {
			return TurnResult{SessionID: sessionID, Outcome: OutcomeCancelled}, ctxErr
		}
		return TurnResult{SessionID: sessionID}, fmt.Errorf("load session %q: %w", sessionID, err)
	}

	t := &turn{
		l:          l,
		ctx:        turnCtx,
		parent:     ctx,
		session:    session,
		message:    message,
		transcript: agent.CloneMessages(session.Messages),
		result: TurnResult{
			SessionID: sessionID,
			TurnID:    l.newID(),
		},
	}
	return t.run()
}

func publishEvent(ctx context.Context, sink agent.EventSink, event agent.Event) error {
	if err := agent.ValidateEvent(event); err != nil {
		return err
	}
	if err := sink.Publish(ctx, event); err != nil {
		return errors.Join(
			agent.ErrEventPublish,
			fmt.Errorf(
				"type=%s session_id=%s iteration=%d: %w",
				event.Type,
				event.SessionID,
				event.Iteration,
				err,
			),
		)
	}
	return nil
}

func contextCancellationError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	switch {
	case errors.Is(err, context.Canceled):
		return context.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return context.DeadlineExceeded
	default:
		return nil
	}
}

// await runs call on its own goroutine so a collaborator that ignores ctx
// cannot hold the turn past ctx. An abandoned call finishes in the background
// and its outcome is discarded.
func await[T any](ctx context.Context, call func(context.Context) (T, error)) (T, error) {
	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		value, err := call(ctx)
		done <- outcome{value: value, err: err}
	}()
	select {
	case out := <-done:
		return out.value, out.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func withOptionalTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
