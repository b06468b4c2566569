// Package code defines the code execution sandbox contract used by agents
// whose model cannot run code natively.
package code

import (
	"context"

	"github.com/lunara/reportmesh/core"
)

// Request is one code snippet to run on behalf of a session.
type Request struct {
	Code     string
	Language string
	Session  core.SessionKey
}

// Result captures a finished execution. Files holds artifacts the snippet
// wrote to its working directory; callers persist them out-of-band.
type Result struct {
	Outcome string
	Output  string
	Files   []core.Artifact
}

// OK reports whether the snippet completed successfully.
func (r Result) OK() bool { return r.Outcome == core.OutcomeOK }

// Executor runs code snippets. Execute returns an error only when the
// sandbox itself fails; snippet failures are reported through Outcome.
type Executor interface {
	Execute(ctx context.Context, req Request) (Result, error)
}
