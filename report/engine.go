package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/lunara/reportmesh/core"
	"github.com/lunara/reportmesh/dataset"
	"github.com/lunara/reportmesh/logging"
	"github.com/lunara/reportmesh/observability"
	"github.com/lunara/reportmesh/tool"
)

// Runtime is the agent runtime driving one conversation turn. Run streams
// the turn's events; the error channel carries at most one failure and both
// channels close when the turn ends.
type Runtime interface {
	CreateSession(ctx context.Context, userID string) (core.SessionKey, error)
	Run(ctx context.Context, key core.SessionKey, message string, tools []tool.Tool) (<-chan core.Event, <-chan error)
}

// Options configures an Engine.
type Options struct {
	// MaxConcurrentTurns bounds turns running across all scopes.
	MaxConcurrentTurns int64
	// OutputBufferSize is the capacity of the channel Generate returns.
	OutputBufferSize int
	Reconciler       []func(o *ReconcilerOptions)
	Logger           logging.Logger
	Metrics          *observability.Metrics
	Tracer           *observability.Tracer
}

// GenerateRequest is one user turn against a report scope.
type GenerateRequest struct {
	UserID  string
	ScopeID string
	Prompt  string
	// ForceNewSession discards the scope's session state before the turn.
	ForceNewSession bool
}

// Engine turns the runtime's event stream into ordered output events and
// report blocks, one scope at a time.
type Engine struct {
	runtime   Runtime
	artifacts core.ArtifactStore
	datasets  dataset.Store
	manager   *Manager
	sem       *semaphore.Weighted
	opts      Options
}

// NewEngine creates an engine. artifacts must be the store the runtime's
// code sandbox writes to.
func NewEngine(runtime Runtime, artifacts core.ArtifactStore, datasets dataset.Store, optFns ...func(o *Options)) *Engine {
	opts := Options{
		MaxConcurrentTurns: 8,
		OutputBufferSize:   64,
		Logger:             logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	if opts.MaxConcurrentTurns <= 0 {
		opts.MaxConcurrentTurns = 1
	}

	recOpts := append([]func(o *ReconcilerOptions){func(o *ReconcilerOptions) {
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
	}}, opts.Reconciler...)

	return &Engine{
		runtime:   runtime,
		artifacts: artifacts,
		datasets:  datasets,
		manager:   NewManager(runtime, opts.Logger, recOpts...),
		sem:       semaphore.NewWeighted(opts.MaxConcurrentTurns),
		opts:      opts,
	}
}

// Sessions returns the engine's session manager.
func (e *Engine) Sessions() *Manager { return e.manager }

// Generate runs one turn and streams its output. The stream ends with a
// done event listing the blocks this turn produced, unless the session
// could not be opened or ctx was cancelled.
func (e *Engine) Generate(ctx context.Context, req GenerateRequest) <-chan OutputEvent {
	out := make(chan OutputEvent, e.opts.OutputBufferSize)

	go func() {
		defer close(out)

		e.runTurn(ctx, req, out)
	}()

	return out
}

func (e *Engine) runTurn(ctx context.Context, req GenerateRequest, out chan<- OutputEvent) {
	start := time.Now()
	logger := logging.With(e.opts.Logger, "user_id", req.UserID, "scope_id", req.ScopeID)

	ctx, span := e.opts.Tracer.TraceTurn(ctx, req.UserID, req.ScopeID)
	defer span.End()

	t := &turn{engine: e, ctx: ctx, out: out, logger: logger}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer e.sem.Release(1)

	sess, err := e.manager.Acquire(ctx, req.UserID, req.ScopeID, req.ForceNewSession)
	if err != nil {
		if errors.Is(err, ErrTurnInProgress) {
			e.opts.Metrics.TurnRejected()
		}

		logger.Error("report.turn.rejected", "error", err.Error())
		observability.RecordError(span, err)
		t.send(errorEvent(err))

		return
	}
	defer e.manager.Release(sess)

	e.opts.Metrics.TurnStarted()

	key := sess.Key()
	span.SetAttributes(attribute.String("report.session_id", key.SessionID), attribute.Bool("report.fresh_session", sess.Fresh()))

	t.sess = sess
	t.logger = logging.With(logger, "session_id", key.SessionID)

	status := t.run(key, req.Prompt, span)
	e.opts.Metrics.TurnFinished(status, time.Since(start).Seconds())
}

// turn holds the per-call state of Generate.
type turn struct {
	engine *Engine
	ctx    context.Context
	out    chan<- OutputEvent
	logger logging.Logger
	sess   *Session

	// lastEmitted is the id of the newest block already sent.
	lastEmitted int
}

func (t *turn) run(key core.SessionKey, prompt string, span trace.Span) string {
	e := t.engine

	if n := t.sess.rec.BeginTurn(); n > 0 {
		t.logger.Warn("report.turn.titles_expired", "count", n)
	}

	mark := t.sess.acc.Mark()
	t.lastEmitted = mark

	events, errs := e.runtime.Run(t.ctx, key, prompt, Tools(t.sess, e.datasets))

	for ev := range events {
		t.handle(ev)
	}

	var streamErr error

	for err := range errs {
		if err != nil && streamErr == nil {
			streamErr = err
		}
	}

	status := "ok"

	if streamErr != nil {
		status = "error"
		if t.ctx.Err() != nil {
			status = "cancelled"
		}

		rsErr := &RuntimeStreamError{SessionID: key.SessionID, Err: streamErr}
		t.logger.Error("report.turn.stream_failed", "error", streamErr.Error())
		observability.RecordError(span, rsErr)
		t.send(errorEvent(rsErr))
	}

	if t.ctx.Err() == nil {
		t.sweep(key)
	} else {
		status = "cancelled"
	}

	if flushed := t.sess.rec.Flush(); len(flushed) > 0 {
		t.logger.Info("report.reconciler.flushed", "charts", len(flushed))
	}

	t.emitBlocks()

	blocks := t.sess.acc.Since(mark)
	t.send(doneEvent(blocks))

	t.logger.Info("report.turn.completed", "status", status, "blocks", len(blocks),
		"pending_titles", len(t.sess.rec.PendingTitles()), "unassigned_images", t.sess.rec.UnassignedImages())

	return status
}

func (t *turn) handle(ev core.Event) {
	if ev.IsError() && !ev.IsPartial() {
		msg := "agent runtime reported an error"
		if ev.ErrorMessage != nil {
			msg = *ev.ErrorMessage
		}

		t.send(OutputEvent{Type: OutputError, Message: msg})
	}

	for _, raw := range SplitEvent(ev) {
		c := Classify(raw)

		switch c.Kind {
		case KindNarration:
			t.send(narrationEvent(c.Text, c.Author))
		case KindReasoning:
			t.send(thoughtEvent(c.Text))
		case KindToolCall:
			t.engine.opts.Metrics.ToolCalled(c.ToolName)
			t.send(statusEvent(fmt.Sprintf("calling %s", c.ToolName)))
		case KindToolResult:
			if c.ToolError != "" {
				t.logger.Warn("report.tool.failed", "tool", c.ToolName, "error", c.ToolError)
			}
		case KindCode:
			t.send(codeEvent(c.Code, c.Language))
		case KindCodeResult:
			t.send(codeResultEvent(c.Output, c.Outcome))
		case KindInlineArtifact:
			arrival, ok := t.sess.rec.OnImageArrived(c.Data, c.MimeType, c.SourceKey)
			if ok {
				t.engine.opts.Metrics.ImageSurfaced("inline")
				t.send(imageEvent(arrival))
			}
		default:
			t.logger.Debug("report.event.dropped", "author", raw.Author, "error", ErrClassificationAnomaly.Error())
		}

		t.emitBlocks()
	}

	// Tool side effects land while the call is being answered.
	t.emitBlocks()
}

func (t *turn) sweep(key core.SessionKey) {
	ctx, span := t.engine.opts.Tracer.TraceSweep(t.ctx, key.SessionID)
	defer span.End()

	arrivals, err := t.sess.rec.Sweep(ctx, t.engine.artifacts, key, func(a Arrival) {
		t.engine.opts.Metrics.ImageSurfaced("store")
		t.send(imageEvent(a))
		t.emitBlocks()
	})

	span.SetAttributes(attribute.Int("report.sweep.arrivals", len(arrivals)))

	if err != nil {
		t.engine.opts.Metrics.SweepFailed()
		observability.RecordError(span, err)
		t.logger.Warn("report.sweep.failed", "error", err.Error())
	}
}

func (t *turn) emitBlocks() {
	for _, b := range t.sess.acc.Since(t.lastEmitted) {
		t.lastEmitted = b.ID
		t.engine.opts.Metrics.BlockCreated(string(b.Type))
		t.send(blockEvent(b))
	}
}

func (t *turn) send(ev OutputEvent) {
	select {
	case t.out <- ev:
	case <-t.ctx.Done():
	}
}
