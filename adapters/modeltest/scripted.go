// Package modeltest provides a deterministic agent.Model for tests.
package modeltest

import (
	"context"
	"fmt"
	"sync"

	"github.com/Gurpartap/taskloop/agent"
)

// Step configures one model turn in a scripted sequence.
type Step struct {
	Response agent.Response
	Err      error
	// Block makes the step wait for context cancellation before answering.
	Block bool
}

// Text is shorthand for a final-answer step.
func Text(content string) Step {
	return Step{Response: agent.TextResponse{Content: content}}
}

// Call is shorthand for a single tool-call step.
func Call(id, name string, arguments map[string]any) Step {
	return Step{Response: agent.ToolCallResponse{
		Calls: []agent.ToolCall{{ID: id, Name: name, Arguments: arguments}},
	}}
}

// Fail is shorthand for a step that returns err.
func Fail(err error) Step {
	return Step{Err: err}
}

// ScriptedModel replays steps in order and records every request it receives.
type ScriptedModel struct {
	mu       sync.Mutex
	index    int
	steps    []Step
	requests []agent.ModelRequest
}

func NewScriptedModel(steps ...Step) *ScriptedModel {
	cloned := make([]Step, len(steps))
	copy(cloned, steps)
	return &ScriptedModel{steps: cloned}
}

var _ agent.Model = (*ScriptedModel)(nil)

func (m *ScriptedModel) Generate(ctx context.Context, request agent.ModelRequest) (agent.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, agent.ModelRequest{
		Messages: agent.CloneMessages(request.Messages),
		Tools:    agent.CloneToolDefinitions(request.Tools),
	})
	if m.index >= len(m.steps) {
		m.mu.Unlock()
		return nil, agent.Fatal(fmt.Errorf("script exhausted at call %d", m.index+1))
	}
	current := m.steps[m.index]
	m.index++
	m.mu.Unlock()

	if current.Block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if current.Err != nil {
		return nil, current.Err
	}
	return current.Response, nil
}

// Requests returns copies of every request received so far.
func (m *ScriptedModel) Requests() []agent.ModelRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]agent.ModelRequest, len(m.requests))
	for i := range m.requests {
		out[i] = agent.ModelRequest{
			Messages: agent.CloneMessages(m.requests[i].Messages),
			Tools:    agent.CloneToolDefinitions(m.requests[i].Tools),
		}
	}
	return out
}

// Calls returns how many times Generate was invoked.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
