// Package session holds the signed-in identity for a client process and the
// registration handshake every realtime view performs.
package session

import (
	"sync"

	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/models"
)

type Identity struct {
	UserID string
	Name   string
	Role   models.Role
	Token  string
}

type State struct {
	Identity Identity
	LoggedIn bool
}

// Action is one of Login, Logout or TokenRefreshed.
type Action interface {
	apply(State) State
}

type Login struct {
	Identity Identity
}

func (a Login) apply(State) State {
	return State{Identity: a.Identity, LoggedIn: true}
}

type Logout struct{}

func (Logout) apply(State) State {
	return State{}
}

type TokenRefreshed struct {
	Token string
}

func (a TokenRefreshed) apply(s State) State {
	if !s.LoggedIn {
		return s
	}
	s.Identity.Token = a.Token
	return s
}

// Store is the process-wide session container. State only changes through
// Dispatch; readers get value snapshots.
type Store struct {
	mu          sync.Mutex
	state       State
	subscribers map[int]func(prev, next State)
	nextSub     int
}

func NewStore() *Store {
	return &Store{subscribers: make(map[int]func(prev, next State))}
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Store) Identity() Identity {
	return s.State().Identity
}

func (s *Store) Dispatch(action Action) State {
	s.mu.Lock()
	prev := s.state
	next := action.apply(prev)
	s.state = next
	subs := make([]func(prev, next State), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(prev, next)
	}
	return next
}

// Subscribe registers fn for every dispatched action and returns the
// function that removes it.
func (s *Store) Subscribe(fn func(prev, next State)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// OnLogout calls fn whenever a signed-in session ends.
func (s *Store) OnLogout(fn func()) func() {
	return s.Subscribe(func(prev, next State) {
		if prev.LoggedIn && !next.LoggedIn {
			fn()
		}
	})
}
