package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lunara/reportmesh/core"
	"github.com/lunara/reportmesh/session"
)

// SessionStore implements core.SessionStore on the sessions and events
// tables so backing conversations survive restarts.
type SessionStore struct {
	store *Store
}

var _ core.SessionStore = (*SessionStore)(nil)

const keyFilter = `app_name = ? AND user_id = ? AND session_id = ?`

func (s *SessionStore) Create(ctx context.Context, key core.SessionKey) (*core.Session, error) {
	sess := core.NewSession(key)
	now := s.store.stamp()

	_, err := s.store.db.ExecContext(ctx,
		`INSERT INTO sessions (app_name, user_id, session_id, state, created_at, updated_at) VALUES (?, ?, ?, '{}', ?, ?)`,
		key.AppName, key.UserID, key.SessionID, now, now,
	)
	if err != nil {
		if exists, _ := s.exists(ctx, key); exists {
			return nil, session.ErrAlreadyExists
		}

		return nil, fmt.Errorf("failed to create session %s: %w", key, err)
	}

	sess.Created, _ = parseTime(now)
	sess.Updated = sess.Created

	return sess, nil
}

func (s *SessionStore) Get(ctx context.Context, key core.SessionKey) (*core.Session, error) {
	var state, created, updated string

	err := s.store.db.QueryRowContext(ctx,
		`SELECT state, created_at, updated_at FROM sessions WHERE `+keyFilter,
		key.AppName, key.UserID, key.SessionID,
	).Scan(&state, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", key, err)
	}

	sess := core.NewSession(key)
	if err := json.Unmarshal([]byte(state), &sess.State); err != nil {
		return nil, fmt.Errorf("session %s state: %w", key, err)
	}

	if sess.State == nil {
		sess.State = map[string]any{}
	}

	if sess.Created, err = parseTime(created); err != nil {
		return nil, err
	}

	if sess.Updated, err = parseTime(updated); err != nil {
		return nil, err
	}

	rows, err := s.store.db.QueryContext(ctx,
		`SELECT payload FROM events WHERE `+keyFilter+` ORDER BY seq`,
		key.AppName, key.UserID, key.SessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load events of %s: %w", key, err)
	}
	defer rows.Close()

	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		var ev core.Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, fmt.Errorf("failed to decode event: %w", err)
		}

		sess.Events = append(sess.Events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load events of %s: %w", key, err)
	}

	return sess, nil
}

func (s *SessionStore) AppendEvent(ctx context.Context, key core.SessionKey, ev core.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	res, err := tx.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE `+keyFilter,
		s.store.stamp(), key.AppName, key.UserID, key.SessionID)
	if err != nil {
		return fmt.Errorf("failed to touch session %s: %w", key, err)
	}

	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to touch session %s: %w", key, err)
	} else if n == 0 {
		return session.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO events (event_id, app_name, user_id, session_id, payload) VALUES (?, ?, ?, ?, ?)`,
		ev.ID, key.AppName, key.UserID, key.SessionID, string(payload),
	); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit event: %w", err)
	}

	return nil
}

func (s *SessionStore) ApplyDelta(ctx context.Context, key core.SessionKey, delta map[string]any) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	var raw string

	err = tx.QueryRowContext(ctx, `SELECT state FROM sessions WHERE `+keyFilter,
		key.AppName, key.UserID, key.SessionID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return session.ErrNotFound
	}

	if err != nil {
		return fmt.Errorf("failed to read state of %s: %w", key, err)
	}

	state := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return fmt.Errorf("session %s state: %w", key, err)
	}

	if state == nil {
		state = map[string]any{}
	}

	for k, v := range delta {
		state[k] = v
	}

	encoded, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET state = ?, updated_at = ? WHERE `+keyFilter,
		string(encoded), s.store.stamp(), key.AppName, key.UserID, key.SessionID,
	); err != nil {
		return fmt.Errorf("failed to write state of %s: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit state: %w", err)
	}

	return nil
}

// Delete removes the session and its events. Unknown keys are a no-op.
func (s *SessionStore) Delete(ctx context.Context, key core.SessionKey) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	for _, stmt := range []string{
		`DELETE FROM events WHERE ` + keyFilter,
		`DELETE FROM sessions WHERE ` + keyFilter,
	} {
		if _, err := tx.ExecContext(ctx, stmt, key.AppName, key.UserID, key.SessionID); err != nil {
			return fmt.Errorf("failed to delete session %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}

	return nil
}

func (s *SessionStore) exists(ctx context.Context, key core.SessionKey) (bool, error) {
	var n int

	err := s.store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE `+keyFilter,
		key.AppName, key.UserID, key.SessionID).Scan(&n)

	return n > 0, err
}
