package agentreact

import (
	"context"
	"sync"

	"github.com/Gurpartap/taskloop/agent"
)

// sessionLocks serializes turns per session. Entries are dropped once no
// turn holds or waits for them.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[agent.SessionID]*sessionLock
}

type sessionLock struct {
	held chan struct{}
	refs int
}

func (s *sessionLocks) acquire(ctx context.Context, id agent.SessionID) (func(), error) {
	s.mu.Lock()
	if s.locks == nil {
		s.locks = map[agent.SessionID]*sessionLock{}
	}
	lock, ok := s.locks[id]
	if !ok {
		lock = &sessionLock{held: make(chan struct{}, 1)}
		s.locks[id] = lock
	}
	lock.refs++
	s.mu.Unlock()

	select {
	case lock.held <- struct{}{}:
		return func() {
			<-lock.held
			s.drop(id, lock)
		}, nil
	case <-ctx.Done():
		s.drop(id, lock)
		return nil, ctx.Err()
	}
}

func (s *sessionLocks) drop(id agent.SessionID, lock *sessionLock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(s.locks, id)
	}
}
