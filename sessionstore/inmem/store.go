// Package inmem keeps session transcripts in memory with optimistic version checks.
package inmem

import (
	"context"
	"fmt"
	"sync"

	"github.com/Gurpartap/taskloop/agent"
)

// Store holds one Session per ID. Every read and write copies the session so
// callers never share a transcript with the store.
type Store struct {
	mu       sync.RWMutex
	sessions map[agent.SessionID]agent.Session
}

var _ agent.SessionStore = (*Store)(nil)

func New() *Store {
	return &Store{sessions: map[agent.SessionID]agent.Session{}}
}

// Save creates a session when its Version is 0 and no session exists, or
// replaces the stored one when the versions match. The stored copy gets the
// next version; a stale version fails with agent.ErrSessionVersionConflict.
func (s *Store) Save(ctx context.Context, session agent.Session) error {
	if ctx == nil {
		return agent.ErrContextNil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if session.ID == "" {
		return agent.ErrInvalidSessionID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.sessions[session.ID]
	switch {
	case !exists:
		if session.Version != 0 {
			return fmt.Errorf(
				"%w: session %q expected version 0 on create, got %d",
				agent.ErrSessionVersionConflict,
				session.ID,
				session.Version,
			)
		}
		next := agent.CloneSession(session)
		next.Version = 1
		s.sessions[session.ID] = next
		return nil
	case session.Version != current.Version:
		return fmt.Errorf(
			"%w: session %q expected version %d, got %d",
			agent.ErrSessionVersionConflict,
			session.ID,
			current.Version,
			session.Version,
		)
	default:
		next := agent.CloneSession(session)
		next.Version = current.Version + 1
		s.sessions[session.ID] = next
		return nil
	}
}

// Load returns a copy of the session or agent.ErrSessionNotFound.
func (s *Store) Load(ctx context.Context, id agent.SessionID) (agent.Session, error) {
	if ctx == nil {
		return agent.Session{}, agent.ErrContextNil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return agent.Session{}, ctxErr
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return agent.Session{}, fmt.Errorf("%w: %q", agent.ErrSessionNotFound, id)
	}
	return agent.CloneSession(session), nil
}
