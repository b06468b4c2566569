package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// SessionKey identifies one backing conversation: the application it belongs
// to, the user and the session id. Artifact stores scope objects by the same
// triple.
type SessionKey struct {
	AppName   string `json:"app_name"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

// String renders the key as app/user/session.
func (k SessionKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.AppName, k.UserID, k.SessionID)
}

// IsZero reports whether no session id has been assigned.
func (k SessionKey) IsZero() bool { return k.SessionID == "" }

// Session is a conversational container tracking mutable key/value state plus
// an ordered event history. It is safe for concurrent access.
//
// Contract:
//   - State mutations update Updated timestamp
//   - GetEvents returns a defensive copy to avoid external mutation
//   - GetConversationHistory excludes partial streaming fragments and
//     content-less control events
type Session struct {
	Key     SessionKey     `json:"key"`
	State   map[string]any `json:"state"`
	Events  []Event        `json:"events"`
	Created time.Time      `json:"created"`
	Updated time.Time      `json:"updated"`
	mu      sync.RWMutex
}

// NewSession creates a new empty session for key.
func NewSession(key SessionKey) *Session {
	now := time.Now().UTC()
	return &Session{Key: key, State: map[string]any{}, Events: []Event{}, Created: now, Updated: now}
}

// GetState returns the value and existence flag for a state key.
func (s *Session) GetState(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.State[key]

	return v, ok
}

// SetState sets a key/value pair updating the Updated timestamp.
func (s *Session) SetState(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.State[key] = value
	s.Updated = time.Now().UTC()
}

// ApplyStateDelta merges the provided key/value pairs into State.
func (s *Session) ApplyStateDelta(delta map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range delta {
		s.State[k] = v
	}

	s.Updated = time.Now().UTC()
}

// AddEvent appends an event to the history updating Updated timestamp.
func (s *Session) AddEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Events = append(s.Events, ev)
	s.Updated = time.Now().UTC()
}

// GetEvents returns a defensive copy of the full event slice.
func (s *Session) GetEvents() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]Event, len(s.Events))
	copy(events, s.Events)

	return events
}

// GetConversationHistory returns events suitable as model context.
func (s *Session) GetConversationHistory() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]Event, 0, len(s.Events))

	for _, ev := range s.Events {
		if ev.Content == nil || ev.IsPartial() {
			continue
		}

		res = append(res, ev)
	}

	return res
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clone := &Session{
		Key:     s.Key,
		State:   make(map[string]any, len(s.State)),
		Events:  make([]Event, len(s.Events)),
		Created: s.Created,
		Updated: s.Updated,
	}

	for k, v := range s.State {
		clone.State[k] = v
	}

	copy(clone.Events, s.Events)

	return clone
}

// SessionStore persists backing sessions and their event history.
type SessionStore interface {
	Create(ctx context.Context, key SessionKey) (*Session, error)
	Get(ctx context.Context, key SessionKey) (*Session, error)
	AppendEvent(ctx context.Context, key SessionKey, event Event) error
	ApplyDelta(ctx context.Context, key SessionKey, delta map[string]any) error
	Delete(ctx context.Context, key SessionKey) error
}
