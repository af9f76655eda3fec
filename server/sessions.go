package server

import (
	"errors"
	"sync"

	"github.com/chazu/loadpath/interp"
)

// SessionHeader selects the interpreter a request runs against. Requests
// without it use the default session.
const SessionHeader = "Loadpath-Session"

// ErrNoSessionFactory is returned by Create when the server was built
// without WithSessionFactory.
var ErrNoSessionFactory = errors.New("sessions are not enabled")

// Session is an interpreter addressable by ID.
type Session struct {
	ID     string
	Name   string
	Interp *interp.Interpreter
}

// SessionStore manages sessions. The default session is never destroyed.
type SessionStore struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	defaultID string
	factory   func() *interp.Interpreter
}

// NewSessionStore creates a store whose default session wraps it.
func NewSessionStore(it *interp.Interpreter, factory func() *interp.Interpreter) *SessionStore {
	s := &SessionStore{
		sessions: make(map[string]*Session),
		factory:  factory,
	}
	def := &Session{ID: it.ID().String(), Name: "default", Interp: it}
	s.sessions[def.ID] = def
	s.defaultID = def.ID
	return s
}

// Default returns the default session.
func (s *SessionStore) Default() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[s.defaultID]
}

// Create creates a new session with an optional name. The factory runs
// on the caller's goroutine; a fresh interpreter shares nothing yet.
func (s *SessionStore) Create(name string) (*Session, error) {
	if s.factory == nil {
		return nil, ErrNoSessionFactory
	}
	it := s.factory()
	session := &Session{ID: it.ID().String(), Name: name, Interp: it}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	log.Debugf("created session %s (%s)", session.ID, name)
	return session, nil
}

// Get retrieves a session by ID. An empty ID selects the default session.
func (s *SessionStore) Get(id string) (*Session, bool) {
	if id == "" {
		return s.Default(), true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	return session, ok
}

// Remove unregisters a session and returns it. The default session cannot
// be removed.
func (s *SessionStore) Remove(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == s.defaultID {
		return nil, false
	}
	session, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	return session, ok
}

// Len returns the number of sessions, including the default one.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
