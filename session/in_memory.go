package session

import (
	"context"
	"errors"
	"sync"

	"github.com/lunara/reportmesh/core"
)

var (
	// ErrNotFound is returned when no session exists for a key.
	ErrNotFound = errors.New("session not found")
	// ErrAlreadyExists is returned by Create for a key already in use.
	ErrAlreadyExists = errors.New("session already exists")
)

// InMemoryStore is a volatile SessionStore implementation storing sessions in
// a process local map. It is safe for concurrent access and best suited for
// tests or single-process servers. Each returned session is cloned to prevent
// external mutation of internal state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[core.SessionKey]*core.Session
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[core.SessionKey]*core.Session)}
}

// Create allocates a new empty session for key.
func (s *InMemoryStore) Create(_ context.Context, key core.SessionKey) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[key]; ok {
		return nil, ErrAlreadyExists
	}

	sess := core.NewSession(key)
	s.sessions[key] = sess

	return sess.Clone(), nil
}

// Get returns a clone of an existing session.
func (s *InMemoryStore) Get(_ context.Context, key core.SessionKey) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[key]
	if !ok {
		return nil, ErrNotFound
	}

	return sess.Clone(), nil
}

// AppendEvent adds an event to an existing session.
func (s *InMemoryStore) AppendEvent(_ context.Context, key core.SessionKey, ev core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[key]
	if !ok {
		return ErrNotFound
	}

	sess.AddEvent(ev)

	return nil
}

// ApplyDelta merges a key/value delta into the session state.
func (s *InMemoryStore) ApplyDelta(_ context.Context, key core.SessionKey, delta map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[key]
	if !ok {
		return ErrNotFound
	}

	sess.ApplyStateDelta(delta)

	return nil
}

// Delete drops the session. Deleting an unknown key is a no-op.
func (s *InMemoryStore) Delete(_ context.Context, key core.SessionKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, key)

	return nil
}
