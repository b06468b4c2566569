package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lunara/reportmesh/agent"
	"github.com/lunara/reportmesh/artifact"
	"github.com/lunara/reportmesh/code"
	"github.com/lunara/reportmesh/core"
	"github.com/lunara/reportmesh/logging"
	"github.com/lunara/reportmesh/session"
	"github.com/lunara/reportmesh/tool"
)

// DefaultAppName scopes backing sessions and artifacts of the report builder.
const DefaultAppName = "lunara_report_builder"

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	AppName string
	// MaxModelCalls limits the number of model calls per turn. 0 disables the limit.
	MaxModelCalls int
	// EventBufferSize sets channel buffering for events.
	EventBufferSize int
	// SessionStore persists backing sessions and their events.
	SessionStore core.SessionStore
	// ArtifactStore receives files written by code execution.
	ArtifactStore core.ArtifactStore
	// CodeExecutor runs code for agents whose model lacks native execution.
	CodeExecutor code.Executor
	Logger       logging.Logger
	// Now is the clock used for session names.
	Now func() time.Time
}

// Runner drives multi-agent turns for backing sessions: it resolves the
// active agent, calls its model, dispatches tool calls, follows transfers and
// persists every final event. Public methods are safe for concurrent use;
// turns on the same session must not overlap.
type Runner struct {
	root *agent.Agent

	appName         string
	maxModelCalls   int
	eventBufferSize int

	sessionStore  core.SessionStore
	artifactStore core.ArtifactStore
	codeExecutor  code.Executor
	logger        logging.Logger
	now           func() time.Time
}

// New constructs a Runner for the agent tree rooted at root.
func New(root *agent.Agent, optFns ...func(o *Options)) *Runner {
	opts := Options{
		AppName:         DefaultAppName,
		MaxModelCalls:   25,
		EventBufferSize: 100,
		SessionStore:    session.NewInMemoryStore(),
		ArtifactStore:   artifact.NewInMemoryStore(),
		Logger:          logging.NoOpLogger{},
		Now:             time.Now,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Runner{
		root:            root,
		appName:         opts.AppName,
		maxModelCalls:   opts.MaxModelCalls,
		eventBufferSize: opts.EventBufferSize,
		sessionStore:    opts.SessionStore,
		artifactStore:   opts.ArtifactStore,
		codeExecutor:    opts.CodeExecutor,
		logger:          opts.Logger,
		now:             opts.Now,
	}
}

// AppName returns the application scope of sessions created by this runner.
func (r *Runner) AppName() string { return r.appName }

// ArtifactStore returns the store code execution writes to.
func (r *Runner) ArtifactStore() core.ArtifactStore { return r.artifactStore }

// SessionStore returns the backing session store.
func (r *Runner) SessionStore() core.SessionStore { return r.sessionStore }

// CreateSession opens a new backing session for userID named
// report_<user>_<timestamp>_<suffix>.
func (r *Runner) CreateSession(ctx context.Context, userID string) (core.SessionKey, error) {
	key := core.SessionKey{
		AppName:   r.appName,
		UserID:    userID,
		SessionID: fmt.Sprintf("report_%s_%s_%s", userID, r.now().Format("20060102_150405"), strings.SplitN(uuid.NewString(), "-", 2)[0]),
	}

	if _, err := r.sessionStore.Create(ctx, key); err != nil {
		return core.SessionKey{}, fmt.Errorf("create session %s: %w", key, err)
	}

	r.logger.Info("runner.session.created", "session_id", key.SessionID, "user_id", userID)

	return key, nil
}

// Run starts a turn on an existing session. Events arrive in order on the
// first channel; a fatal failure is delivered on the second. Both channels
// close when the turn ends. tools attach to agents that accept turn tools.
func (r *Runner) Run(ctx context.Context, key core.SessionKey, message string, tools []tool.Tool) (<-chan core.Event, <-chan error) {
	events := make(chan core.Event, r.eventBufferSize)
	errs := make(chan error, 1)

	t := &turn{
		runner:       r,
		ctx:          ctx,
		key:          key,
		invocationID: core.NewID(),
		turnTools:    tools,
		budget:       core.NewCallBudget(r.maxModelCalls),
		out:          events,
		logger:       logging.With(r.logger, "session_id", key.SessionID),
	}

	go func() {
		defer close(events)
		defer close(errs)

		if err := t.run(message); err != nil {
			t.logger.Warn("runner.turn.failed", "error", err)
			errs <- err
		}
	}()

	return events, errs
}
