// Package logsink writes runtime events to a slog logger.
package logsink

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/Gurpartap/taskloop/agent"
)

// Sink logs every event at debug level as one JSON payload.
type Sink struct {
	logger *slog.Logger
}

var _ agent.EventSink = Sink{}

// New returns nil for a nil logger so callers can fall back to a no-op sink.
func New(logger *slog.Logger) agent.EventSink {
	if logger == nil {
		return nil
	}
	return Sink{logger: logger}
}

func (s Sink) Publish(ctx context.Context, event agent.Event) error {
	if ctx == nil {
		return agent.ErrContextNil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if !s.logger.Enabled(ctx, slog.LevelDebug) {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "turn event",
		slog.String("session_id", string(event.SessionID)),
		slog.String("type", string(event.Type)),
		slog.String("event", string(payload)),
	)
	return nil
}

// Fanout publishes each event to every sink in order and joins their errors.
type Fanout []agent.EventSink

func (f Fanout) Publish(ctx context.Context, event agent.Event) error {
	var errs []error
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
