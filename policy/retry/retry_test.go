package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gurpartap/taskloop/agent"
)

type modelFunc func(context.Context, agent.ModelRequest) (agent.Response, error)

func (f modelFunc) Generate(ctx context.Context, request agent.ModelRequest) (agent.Response, error) {
	return f(ctx, request)
}

type executorFunc func(context.Context, agent.ToolCall) (agent.ToolResult, error)

func (f executorFunc) Execute(ctx context.Context, call agent.ToolCall) (agent.ToolResult, error) {
	return f(ctx, call)
}

func TestWrapModel_RetryableFailTwiceThenSucceed(t *testing.T) {
	t.Parallel()

	attempts := 0
	model := modelFunc(func(_ context.Context, _ agent.ModelRequest) (agent.Response, error) {
		attempts++
		if attempts < 3 {
			return nil, agent.Retryable(errors.New("rate limited"))
		}
		return agent.TextResponse{Content: "ok"}, nil
	})

	response, err := WrapModel(model, Config{MaxAttempts: 3}).Generate(context.Background(), agent.ModelRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("unexpected attempts: %d", attempts)
	}
	if text, ok := response.(agent.TextResponse); !ok || text.Content != "ok" {
		t.Fatalf("unexpected response: %#v", response)
	}
}

func TestWrapModel_ExhaustedReturnsLastError(t *testing.T) {
	t.Parallel()

	attempts := 0
	model := modelFunc(func(_ context.Context, _ agent.ModelRequest) (agent.Response, error) {
		attempts++
		return nil, agent.Retryable(errors.New("overloaded"))
	})

	response, err := WrapModel(model, Config{MaxAttempts: 2}).Generate(context.Background(), agent.ModelRequest{})
	if !agent.IsRetryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
	if response != nil {
		t.Fatalf("expected nil response, got %#v", response)
	}
	if attempts != 2 {
		t.Fatalf("unexpected attempts: %d", attempts)
	}
}

func TestWrapModel_DoesNotRetryFatalOrUnclassifiedErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
	}{
		{name: "fatal", err: agent.Fatal(errors.New("invalid api key"))},
		{name: "unclassified", err: errors.New("boom")},
		{name: "canceled", err: context.Canceled},
		{name: "deadline", err: context.DeadlineExceeded},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			attempts := 0
			model := modelFunc(func(_ context.Context, _ agent.ModelRequest) (agent.Response, error) {
				attempts++
				return nil, tc.err
			})
			_, err := WrapModel(model, Config{MaxAttempts: 5}).Generate(context.Background(), agent.ModelRequest{})
			if !errors.Is(err, tc.err) {
				t.Fatalf("expected %v, got %v", tc.err, err)
			}
			if attempts != 1 {
				t.Fatalf("unexpected attempts: %d", attempts)
			}
		})
	}
}

func TestWrapModel_CustomShouldRetry(t *testing.T) {
	t.Parallel()

	attempts := 0
	model := modelFunc(func(_ context.Context, _ agent.ModelRequest) (agent.Response, error) {
		attempts++
		return nil, errors.New("flaky")
	})
	cfg := Config{MaxAttempts: 4, ShouldRetry: func(error) bool { return true }}
	if _, err := WrapModel(model, cfg).Generate(context.Background(), agent.ModelRequest{}); err == nil {
		t.Fatalf("expected error")
	}
	if attempts != 4 {
		t.Fatalf("unexpected attempts: %d", attempts)
	}
}

func TestWrapModel_ContextDoneStopsWithoutAttempt(t *testing.T) {
	t.Parallel()

	attempts := 0
	model := modelFunc(func(_ context.Context, _ agent.ModelRequest) (agent.Response, error) {
		attempts++
		return nil, errors.New("unexpected call")
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := WrapModel(model, Config{MaxAttempts: 5}).Generate(ctx, agent.ModelRequest{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempts != 0 {
		t.Fatalf("unexpected attempts: %d", attempts)
	}
}

func TestWrapModel_CancelDuringBackoffStops(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	model := modelFunc(func(_ context.Context, _ agent.ModelRequest) (agent.Response, error) {
		attempts++
		cancel()
		return nil, agent.Retryable(errors.New("rate limited"))
	})

	_, err := WrapModel(model, Config{MaxAttempts: 3, Backoff: time.Hour}).Generate(ctx, agent.ModelRequest{})
	if !agent.IsRetryable(err) {
		t.Fatalf("expected last retryable error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("unexpected attempts: %d", attempts)
	}
}

func TestWrapToolExecutor_RetriesRetryableOnly(t *testing.T) {
	t.Parallel()

	attempts := 0
	executor := executorFunc(func(_ context.Context, call agent.ToolCall) (agent.ToolResult, error) {
		attempts++
		if attempts == 1 {
			return agent.ToolResult{}, agent.Retryable(errors.New("connection reset"))
		}
		return agent.ToolResult{CallID: call.ID, Name: call.Name, Content: "done"}, nil
	})

	result, err := WrapToolExecutor(executor, Config{MaxAttempts: 2}).Execute(context.Background(), agent.ToolCall{ID: "c1", Name: "fetch"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 2 || result.Content != "done" || result.CallID != "c1" {
		t.Fatalf("unexpected result after %d attempts: %+v", attempts, result)
	}
}

func TestWrapToolExecutor_FatalReturnsZeroResult(t *testing.T) {
	t.Parallel()

	attempts := 0
	executor := executorFunc(func(_ context.Context, _ agent.ToolCall) (agent.ToolResult, error) {
		attempts++
		return agent.ToolResult{Content: "partial"}, errors.New("exit status 1")
	})

	result, err := WrapToolExecutor(executor, Config{MaxAttempts: 3}).Execute(context.Background(), agent.ToolCall{Name: "shell"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if attempts != 1 || result != (agent.ToolResult{}) {
		t.Fatalf("unexpected attempts=%d result=%+v", attempts, result)
	}
}

func TestWrapNilReturnsNil(t *testing.T) {
	t.Parallel()

	if WrapModel(nil, Config{}) != nil {
		t.Fatalf("expected nil model wrapper")
	}
	if WrapToolExecutor(nil, Config{}) != nil {
		t.Fatalf("expected nil executor wrapper")
	}
}
