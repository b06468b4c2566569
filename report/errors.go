package report

import (
	"errors"
	"fmt"
)

var (
	// ErrReportNotFound is returned by a Repository when no report has the id.
	ErrReportNotFound = errors.New("report not found")

	// ErrTurnInProgress is returned when a second turn starts on a scope whose
	// previous turn has not finished.
	ErrTurnInProgress = errors.New("a generate turn is already running for this report")

	// ErrClassificationAnomaly marks a runtime event with no recognizable
	// payload. It is only ever logged.
	ErrClassificationAnomaly = errors.New("unclassifiable runtime event")
)

// SessionInitError reports that no backing session could be opened. The
// turn is aborted.
type SessionInitError struct {
	UserID  string
	ScopeID string
	Err     error
}

func (e *SessionInitError) Error() string {
	return fmt.Sprintf("session init failed for %s/%s: %v", e.UserID, e.ScopeID, e.Err)
}

func (e *SessionInitError) Unwrap() error { return e.Err }

// RuntimeStreamError reports that the agent runtime failed mid stream.
// Blocks produced before the failure are kept.
type RuntimeStreamError struct {
	SessionID string
	Err       error
}

func (e *RuntimeStreamError) Error() string {
	return fmt.Sprintf("agent runtime failed in session %s: %v", e.SessionID, e.Err)
}

func (e *RuntimeStreamError) Unwrap() error { return e.Err }

// ArtifactStoreError reports a failed artifact store sweep. It never fails
// the turn.
type ArtifactStoreError struct {
	Op  string
	Key string
	Err error
}

func (e *ArtifactStoreError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("artifact store %s: %v", e.Op, e.Err)
	}

	return fmt.Sprintf("artifact store %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *ArtifactStoreError) Unwrap() error { return e.Err }
