package socket

import (
	"sync"

	"github.com/google/uuid"
)

// Scope groups the listeners one view attaches so that unmounting the view
// removes them without touching listeners owned by other views.
type Scope struct {
	manager *Manager

	mu     sync.Mutex
	ids    []uuid.UUID
	closed bool
}

func (s *Scope) On(event string, fn Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.ids = append(s.ids, s.manager.attach(event, fn))
}

func (s *Scope) Close() {
	s.mu.Lock()
	ids := s.ids
	s.ids = nil
	s.closed = true
	s.mu.Unlock()

	s.manager.detach(ids)
}
