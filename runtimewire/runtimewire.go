// Package runtimewire assembles a ready-to-use loop from configuration and
// the caller's model, tools and confirmer.
package runtimewire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Gurpartap/taskloop/agent"
	"github.com/Gurpartap/taskloop/agentreact"
	"github.com/Gurpartap/taskloop/config"
	"github.com/Gurpartap/taskloop/eventing/logsink"
	sessioninmem "github.com/Gurpartap/taskloop/sessionstore/inmem"
	"github.com/Gurpartap/taskloop/skills"
	"github.com/Gurpartap/taskloop/tooling/registry"
)

var (
	ErrMissingModel  = errors.New("missing model")
	ErrMissingLogger = errors.New("missing logger")
)

// Dependencies are the pieces the process supplies. Sessions defaults to an
// in-memory store.
type Dependencies struct {
	Model     agent.Model
	Tools     []registry.Tool
	Confirmer agentreact.Confirmer
	Sessions  agent.SessionStore
	Events    []agent.EventSink
	Logger    *slog.Logger
}

// Runtime owns the loop and the background skill watcher.
type Runtime struct {
	Loop     *agentreact.Loop
	Tools    *registry.Registry
	Sessions agent.SessionStore
	Skills   *skills.FS

	logger    *slog.Logger
	stopWatch context.CancelFunc
	watchDone chan struct{}
	closeOnce sync.Once
}

func New(ctx context.Context, cfg config.Config, deps Dependencies) (*Runtime, error) {
	if deps.Model == nil {
		return nil, fmt.Errorf("new runtime: %w", ErrMissingModel)
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("new runtime: %w", ErrMissingLogger)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new runtime config: %w", err)
	}

	tools, err := registry.New(deps.Tools...)
	if err != nil {
		return nil, fmt.Errorf("new runtime tools: %w", err)
	}
	sessions := deps.Sessions
	if sessions == nil {
		sessions = sessioninmem.New()
	}

	r := &Runtime{
		Tools:    tools,
		Sessions: sessions,
		logger:   deps.Logger,
	}

	loopDeps := agentreact.Dependencies{
		Model:           deps.Model,
		Tools:           tools,
		ToolDefinitions: tools.Definitions(),
		Sessions:        sessions,
		Confirmer:       deps.Confirmer,
		Risk:            agentreact.AnyRisk(agentreact.DefaultRiskClassifier(), agentreact.ToolNameRisk(tools.IsHighRisk)),
		Events:          append(logsink.Fanout{logsink.New(deps.Logger)}, deps.Events...),
		Logger:          deps.Logger,
	}
	if cfg.SkillsDir != "" {
		fsSkills, err := skills.NewFS(ctx, cfg.SkillsDir, deps.Logger)
		if err != nil {
			return nil, fmt.Errorf("new runtime skills: %w", err)
		}
		r.Skills = fsSkills
		loopDeps.Skills = fsSkills
	}

	loop, err := agentreact.New(cfg.LoopConfig(), loopDeps)
	if err != nil {
		return nil, fmt.Errorf("new runtime loop: %w", err)
	}
	r.Loop = loop

	if cfg.WatchSkills && r.Skills != nil {
		r.startWatch()
	}
	deps.Logger.Info("runtime ready",
		slog.Int("tools", len(loopDeps.ToolDefinitions)),
		slog.String("skills_dir", cfg.SkillsDir),
		slog.Bool("watch_skills", cfg.WatchSkills),
	)
	return r, nil
}

func (r *Runtime) startWatch() {
	watchCtx, cancel := context.WithCancel(context.Background())
	r.stopWatch = cancel
	r.watchDone = make(chan struct{})
	go func() {
		defer close(r.watchDone)
		if err := r.Skills.Watch(watchCtx); err != nil {
			r.logger.Error("skills watcher stopped", slog.Any("error", err))
		}
	}()
}

// HandleTurn forwards to the loop.
func (r *Runtime) HandleTurn(ctx context.Context, sessionID agent.SessionID, message string) (agentreact.TurnResult, error) {
	return r.Loop.HandleTurn(ctx, sessionID, message)
}

// Close stops the skill watcher and waits for it to exit.
func (r *Runtime) Close() {
	r.closeOnce.Do(func() {
		if r.stopWatch == nil {
			return
		}
		r.stopWatch()
		<-r.watchDone
	})
}
