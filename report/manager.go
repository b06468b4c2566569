package report

import (
	"context"
	"sync"
	"time"

	"github.com/lunara/reportmesh/core"
	"github.com/lunara/reportmesh/logging"
)

// Session is the in-memory state of one report scope: the backing runtime
// session plus the blocks and reconciler queues built on top of it.
type Session struct {
	userID  string
	scopeID string

	acc *Accumulator
	rec *Reconciler

	mu      sync.Mutex
	key     core.SessionKey
	created time.Time
	fresh   bool
	busy    bool
}

// Key returns the backing session key. It is zero before the first turn.
func (s *Session) Key() core.SessionKey {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.key
}

// CreatedAt returns when the backing session was opened.
func (s *Session) CreatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.created
}

// Fresh reports whether state was reset for the current turn.
func (s *Session) Fresh() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.fresh
}

// Blocks returns every block accumulated in this session.
func (s *Session) Blocks() []core.Block { return s.acc.Snapshot() }

// Accumulator returns the session's block list.
func (s *Session) Accumulator() *Accumulator { return s.acc }

// Reconciler returns the session's chart reconciler.
func (s *Session) Reconciler() *Reconciler { return s.rec }

func (s *Session) release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.busy = false
}

// Manager owns the report sessions of one engine, keyed by user and scope.
type Manager struct {
	runtime Runtime
	recOpts []func(o *ReconcilerOptions)
	logger  logging.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a manager opening backing sessions on runtime.
func NewManager(runtime Runtime, logger logging.Logger, recOpts ...func(o *ReconcilerOptions)) *Manager {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	return &Manager{
		runtime:  runtime,
		recOpts:  recOpts,
		logger:   logger,
		now:      time.Now,
		sessions: map[string]*Session{},
	}
}

// Acquire returns the session for the scope, marked busy for one turn.
// A new backing session is opened when none exists or forceNew is set; the
// in-memory state is reset only after that succeeds. The caller must call
// Release when the turn ends.
func (m *Manager) Acquire(ctx context.Context, userID, scopeID string, forceNew bool) (*Session, error) {
	sess := m.lookupOrInit(userID, scopeID)

	sess.mu.Lock()
	if sess.busy {
		sess.mu.Unlock()
		return nil, ErrTurnInProgress
	}

	sess.busy = true
	needsNew := forceNew || sess.key.IsZero()
	sess.fresh = false
	sess.mu.Unlock()

	if !needsNew {
		return sess, nil
	}

	key, err := m.runtime.CreateSession(ctx, userID)
	if err != nil {
		sess.release()
		return nil, &SessionInitError{UserID: userID, ScopeID: scopeID, Err: err}
	}

	sess.acc.Reset()
	sess.rec.Reset()

	sess.mu.Lock()
	sess.key = key
	sess.created = m.now().UTC()
	sess.fresh = true
	sess.mu.Unlock()

	m.logger.Info("report.session.created", "user_id", userID, "scope_id", scopeID, "session_id", key.SessionID, "forced", forceNew)

	return sess, nil
}

// Release ends the turn started by Acquire.
func (m *Manager) Release(sess *Session) {
	if sess != nil {
		sess.release()
	}
}

// Lookup returns the session for the scope if one exists.
func (m *Manager) Lookup(userID, scopeID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[scopeKey(userID, scopeID)]

	return sess, ok
}

// Drop forgets the session one user holds on a scope.
func (m *Manager) Drop(userID, scopeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, scopeKey(userID, scopeID))
}

// DropScope forgets the sessions every user holds on a scope, typically
// after its report was deleted. A turn still running keeps its session
// until it ends. It returns the number of sessions dropped.
func (m *Manager) DropScope(scopeID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	dropped := 0

	for k, sess := range m.sessions {
		if sess.scopeID == scopeID {
			delete(m.sessions, k)
			dropped++
		}
	}

	if dropped > 0 {
		m.logger.Info("report.session.dropped", "scope_id", scopeID, "sessions", dropped)
	}

	return dropped
}

func (m *Manager) lookupOrInit(userID, scopeID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := scopeKey(userID, scopeID)
	if sess, ok := m.sessions[k]; ok {
		return sess
	}

	acc := NewAccumulator()
	sess := &Session{
		userID:  userID,
		scopeID: scopeID,
		acc:     acc,
		rec:     NewReconciler(acc, m.recOpts...),
	}
	m.sessions[k] = sess

	return sess
}

func scopeKey(userID, scopeID string) string { return userID + "\x00" + scopeID }
