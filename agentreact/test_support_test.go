package agentreact_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Gurpartap/taskloop/adapters/modeltest"
	"github.com/Gurpartap/taskloop/agent"
	"github.com/Gurpartap/taskloop/agentreact"
	eventinginmem "github.com/Gurpartap/taskloop/eventing/inmem"
	"github.com/Gurpartap/taskloop/plan"
	"github.com/Gurpartap/taskloop/planner"
	sessioninmem "github.com/Gurpartap/taskloop/sessionstore/inmem"
	"github.com/Gurpartap/taskloop/skills"
	"github.com/Gurpartap/taskloop/tooling/registry"
)

type fakePlanner struct {
	mu        sync.Mutex
	plan      plan.StructuredPlan
	planErr   error
	replans   []plan.StructuredPlan
	replanErr error

	requests       []planner.Request
	replanRequests []planner.ReplanRequest
}

var _ planner.Planner = (*fakePlanner)(nil)

func (p *fakePlanner) Plan(_ context.Context, request planner.Request) (plan.StructuredPlan, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, request)
	if p.planErr != nil {
		return plan.StructuredPlan{}, p.planErr
	}
	return p.plan.Clone(), nil
}

func (p *fakePlanner) Replan(_ context.Context, request planner.ReplanRequest) (plan.StructuredPlan, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replanRequests = append(p.replanRequests, request)
	if p.replanErr != nil {
		return plan.StructuredPlan{}, p.replanErr
	}
	if len(p.replans) == 0 {
		return plan.StructuredPlan{}, errors.New("no replan scripted")
	}
	next := p.replans[0]
	p.replans = p.replans[1:]
	return next.Clone(), nil
}

func (p *fakePlanner) Requests() []planner.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]planner.Request(nil), p.requests...)
}

func (p *fakePlanner) ReplanRequests() []planner.ReplanRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]planner.ReplanRequest(nil), p.replanRequests...)
}

// countingTool returns a tool whose handler echoes a fixed output and counts
// its invocations.
func countingTool(name, output string, calls *atomic.Int64) registry.Tool {
	return registry.Tool{
		Definition: agent.ToolDefinition{Name: name, Description: name + " tool"},
		Handler: func(context.Context, map[string]any) (string, error) {
			if calls != nil {
				calls.Add(1)
			}
			return output, nil
		},
	}
}

func lookupTool() registry.Tool {
	return registry.Tool{
		Definition: agent.ToolDefinition{
			Name: "lookup",
			InputSchema: map[string]any{
				"type":     "object",
				"required": []any{"q"},
				"properties": map[string]any{
					"q": map[string]any{"type": "string"},
				},
			},
		},
		Handler: func(_ context.Context, args map[string]any) (string, error) {
			return "result_for=" + args["q"].(string), nil
		},
	}
}

type harness struct {
	loop    *agentreact.Loop
	model   *modeltest.ScriptedModel
	store   *sessioninmem.Store
	events  *eventinginmem.Sink
	planner *fakePlanner
}

type harnessOptions struct {
	cfg       *agentreact.Config
	planner   *fakePlanner
	skills    skills.Registry
	confirmer agentreact.Confirmer
	tools     []registry.Tool
	events    agent.EventSink
	store     *sessioninmem.Store
}

func testConfig() agentreact.Config {
	cfg := agentreact.DefaultConfig()
	cfg.ModelRetries = 0
	cfg.MaxDuration = 5 * time.Second
	return cfg
}

func newHarness(t *testing.T, model *modeltest.ScriptedModel, opts harnessOptions) harness {
	t.Helper()

	cfg := testConfig()
	if opts.cfg != nil {
		cfg = *opts.cfg
	}
	tools, err := registry.New(opts.tools...)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	store := opts.store
	if store == nil {
		store = sessioninmem.New()
	}
	events := eventinginmem.New()
	var sink agent.EventSink = events
	if opts.events != nil {
		sink = opts.events
	}
	fake := opts.planner
	if fake == nil {
		fake = &fakePlanner{}
	}

	var ids atomic.Int64
	loop, err := agentreact.New(cfg, agentreact.Dependencies{
		Model:           model,
		Tools:           tools,
		ToolDefinitions: tools.Definitions(),
		Sessions:        store,
		Skills:          opts.skills,
		Planner:         fake,
		Confirmer:       opts.confirmer,
		Risk:            agentreact.AnyRisk(agentreact.DefaultRiskClassifier(), agentreact.ToolNameRisk(tools.IsHighRisk)),
		Events:          sink,
		NewID: func() string {
			return fmt.Sprintf("id-%d", ids.Add(1))
		},
	})
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}
	return harness{loop: loop, model: model, store: store, events: events, planner: fake}
}

func mustSkills(t *testing.T, metas ...skills.Metadata) *skills.Static {
	t.Helper()
	static, err := skills.NewStatic(metas...)
	if err != nil {
		t.Fatalf("new static skills: %v", err)
	}
	return static
}

func hasTrace(trace []agentreact.TraceStep, match func(agentreact.TraceStep) bool) bool {
	for _, step := range trace {
		if match(step) {
			return true
		}
	}
	return false
}

// ctxIgnoringModel blocks its first Generate call until release is closed,
// whatever happens to the request context.
type ctxIgnoringModel struct {
	release chan struct{}
	answer  string
	calls   atomic.Int64
}

func (m *ctxIgnoringModel) Generate(context.Context, agent.ModelRequest) (agent.Response, error) {
	if m.calls.Add(1) == 1 {
		<-m.release
	}
	return agent.TextResponse{Content: m.answer}, nil
}

func newLoop(t *testing.T, cfg agentreact.Config, model agent.Model, tools ...registry.Tool) *agentreact.Loop {
	t.Helper()

	executor, err := registry.New(tools...)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	loop, err := agentreact.New(cfg, agentreact.Dependencies{
		Model:           model,
		Tools:           executor,
		ToolDefinitions: executor.Definitions(),
		Sessions:        sessioninmem.New(),
		Planner:         &fakePlanner{},
	})
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}
	return loop
}
