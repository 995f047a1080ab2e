package runtimewire_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Gurpartap/taskloop/adapters/modeltest"
	"github.com/Gurpartap/taskloop/agent"
	"github.com/Gurpartap/taskloop/config"
	eventinginmem "github.com/Gurpartap/taskloop/eventing/inmem"
	"github.com/Gurpartap/taskloop/logging"
	"github.com/Gurpartap/taskloop/runtimewire"
	"github.com/Gurpartap/taskloop/tooling/registry"
)

func writeSkill(t *testing.T, root, name, body string) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir skill: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(body), 0o600); err != nil {
		t.Fatalf("write skill: %v", err)
	}
}

func TestNew_RunsTurnWithSkillsAndEventLogging(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeSkill(t, root, "notes", "---\nname: notes\ndescription: Take notes\n---\nWrite notes.\n")

	cfg := config.Default()
	cfg.SkillsDir = root
	cfg.WatchSkills = true
	cfg.ModelRetries = 0

	var logs bytes.Buffer
	logger := logging.New(&logs, logging.FormatJSON, slog.LevelDebug)
	events := eventinginmem.New()
	model := modeltest.NewScriptedModel(
		modeltest.Call("c1", "echo", map[string]any{"text": "hi"}),
		modeltest.Text("Echoed."),
	)

	runtime, err := runtimewire.New(context.Background(), cfg, runtimewire.Dependencies{
		Model: model,
		Tools: []registry.Tool{{
			Definition: agent.ToolDefinition{Name: "echo"},
			Handler: func(_ context.Context, args map[string]any) (string, error) {
				return args["text"].(string), nil
			},
		}},
		Events: []agent.EventSink{events},
		Logger: logger,
	})
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	defer runtime.Close()

	if _, err := runtime.Skills.Get("notes"); err != nil {
		t.Fatalf("skill not loaded: %v", err)
	}

	result, err := runtime.HandleTurn(context.Background(), "s1", "echo hi")
	if err != nil {
		t.Fatalf("handle turn: %v", err)
	}
	if result.Answer != "Echoed." || result.ToolCalls != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if events.Count(agent.EventTypeTurnConcluded) != 1 {
		t.Fatalf("extra sink missed events: %v", events.Types())
	}
	if !strings.Contains(model.Requests()[0].Messages[0].Content, "- notes: Take notes") {
		t.Fatalf("skill not offered to the model")
	}

	runtime.Close()
	runtime.Close()
	if !strings.Contains(logs.String(), `"msg":"turn event"`) {
		t.Fatalf("runtime events not logged: %s", logs.String())
	}
}

func TestNew_ValidatesInputs(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.DiscardHandler)
	model := modeltest.NewScriptedModel()

	if _, err := runtimewire.New(context.Background(), config.Default(), runtimewire.Dependencies{Logger: logger}); !errors.Is(err, runtimewire.ErrMissingModel) {
		t.Fatalf("expected missing model, got %v", err)
	}
	if _, err := runtimewire.New(context.Background(), config.Default(), runtimewire.Dependencies{Model: model}); !errors.Is(err, runtimewire.ErrMissingLogger) {
		t.Fatalf("expected missing logger, got %v", err)
	}

	bad := config.Default()
	bad.MaxIterations = 0
	if _, err := runtimewire.New(context.Background(), bad, runtimewire.Dependencies{Model: model, Logger: logger}); !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("expected invalid config, got %v", err)
	}
}
