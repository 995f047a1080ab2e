// Package registry is a map-backed agent.ToolExecutor that also publishes
// tool definitions and risk flags to the loop.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Gurpartap/taskloop/agent"
)

var (
	ErrToolUnregistered = errors.New("tool is not registered")
	ErrNilHandler       = errors.New("tool handler is nil")
	ErrToolNameEmpty    = errors.New("tool name is empty")
)

// Handler executes one tool call using parsed arguments.
type Handler func(ctx context.Context, arguments map[string]any) (string, error)

// Tool binds a definition to its handler. HighRisk tools need confirmation
// before they run.
type Tool struct {
	Definition agent.ToolDefinition
	Handler    Handler
	HighRisk   bool
}

// Registry stores tools by name and executes tool calls.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func New(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, tool := range tools {
		if err := r.Register(tool); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds or replaces a tool.
func (r *Registry) Register(tool Tool) error {
	if tool.Definition.Name == "" {
		return ErrToolNameEmpty
	}
	if tool.Handler == nil {
		return fmt.Errorf("%w: %q", ErrNilHandler, tool.Definition.Name)
	}
	tool.Definition = agent.CloneToolDefinitions([]agent.ToolDefinition{tool.Definition})[0]

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Definition.Name] = tool
	return nil
}

// Definitions returns the registered definitions sorted by name.
func (r *Registry) Definitions() []agent.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	definitions := make([]agent.ToolDefinition, 0, len(r.tools))
	for _, tool := range r.tools {
		definitions = append(definitions, tool.Definition)
	}
	sort.Slice(definitions, func(i, j int) bool { return definitions[i].Name < definitions[j].Name })
	return agent.CloneToolDefinitions(definitions)
}

// IsHighRisk reports whether the named tool was registered as high-risk.
func (r *Registry) IsHighRisk(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name].HighRisk
}

func (r *Registry) Execute(ctx context.Context, call agent.ToolCall) (agent.ToolResult, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return agent.ToolResult{}, ctxErr
	}
	if call.Name == "" {
		return agent.ToolResult{}, fmt.Errorf("%w: call %q", ErrToolNameEmpty, call.ID)
	}

	r.mu.RLock()
	tool, ok := r.tools[call.Name]
	r.mu.RUnlock()
	if !ok {
		return agent.ToolResult{}, fmt.Errorf("%w: %q", ErrToolUnregistered, call.Name)
	}

	content, err := tool.Handler(ctx, agent.CloneToolCall(call).Arguments)
	if err != nil {
		return agent.ToolResult{}, err
	}

	return agent.ToolResult{
		CallID:  call.ID,
		Name:    call.Name,
		Content: content,
	}, nil
}
