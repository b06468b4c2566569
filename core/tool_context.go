package core

import (
	"context"
	"fmt"

	"github.com/lunara/reportmesh/logging"
)

// ToolContext provides a constrained, auditable surface for tool
// implementations invoked by an agent. It accumulates EventActions (state
// deltas, transfers, artifact diffs) without directly mutating the
// underlying session until the runtime applies them.
type ToolContext struct {
	ctx            context.Context
	sessionKey     SessionKey
	functionCallID string
	agentName      string
	artifacts      ArtifactStore
	eventActions   EventActions
	logger         logging.Logger
}

// ToolContextOption customizes a ToolContext.
type ToolContextOption func(*ToolContext)

// WithToolArtifactStore binds the artifact store tools may read and write.
func WithToolArtifactStore(store ArtifactStore) ToolContextOption {
	return func(tc *ToolContext) { tc.artifacts = store }
}

// WithToolLogger sets the logger used by the tool invocation.
func WithToolLogger(l logging.Logger) ToolContextOption {
	return func(tc *ToolContext) {
		if l != nil {
			tc.logger = l
		}
	}
}

// NewToolContext constructs a tool context bound to a session, the calling
// agent and a unique functionCallID.
func NewToolContext(ctx context.Context, key SessionKey, agentName, functionCallID string, optFns ...ToolContextOption) *ToolContext {
	if ctx == nil {
		ctx = context.Background()
	}

	tc := &ToolContext{
		ctx:            ctx,
		sessionKey:     key,
		functionCallID: functionCallID,
		agentName:      agentName,
		eventActions:   EventActions{},
		logger:         logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(tc)
	}

	return tc
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// Logger returns the invocation logger scoped to the call.
func (tc *ToolContext) Logger() logging.Logger {
	return logging.With(tc.logger, "session_id", tc.sessionKey.SessionID, "function_call_id", tc.functionCallID)
}

// SessionKey returns the backing session the tool runs in.
func (tc *ToolContext) SessionKey() SessionKey { return tc.sessionKey }

// FunctionCallID returns the function call ID associated with the tool invocation.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// AgentName returns the name of the agent that issued the call.
func (tc *ToolContext) AgentName() string { return tc.agentName }

// Actions returns the event actions accumulated in the tool context.
func (tc *ToolContext) Actions() *EventActions { return &tc.eventActions }

// SetState records a state mutation to be applied with the response event.
func (tc *ToolContext) SetState(k string, v any) {
	if tc.eventActions.StateDelta == nil {
		tc.eventActions.StateDelta = map[string]any{}
	}

	tc.eventActions.StateDelta[k] = v
}

// TransferToAgent signals orchestration to hand off control to another agent.
func (tc *ToolContext) TransferToAgent(name string) {
	tc.eventActions.TransferToAgent = &name
	tc.logger.Info("tool.transfer.request", "from_agent", tc.agentName, "to_agent", name, "function_call_id", tc.functionCallID)
}

// SaveArtifact persists an artifact and records its size for emission.
func (tc *ToolContext) SaveArtifact(a Artifact) error {
	if tc.artifacts == nil {
		return fmt.Errorf("artifact store not configured")
	}

	if err := tc.artifacts.Save(tc.ctx, tc.sessionKey, a); err != nil {
		return err
	}

	if tc.eventActions.ArtifactDelta == nil {
		tc.eventActions.ArtifactDelta = map[string]int{}
	}

	tc.eventActions.ArtifactDelta[a.Name] = len(a.Data)

	return nil
}

// LoadArtifact retrieves a persisted artifact by name.
func (tc *ToolContext) LoadArtifact(name string) (Artifact, error) {
	if tc.artifacts == nil {
		return Artifact{}, fmt.Errorf("artifact store not configured")
	}

	return tc.artifacts.Load(tc.ctx, tc.sessionKey, name)
}

// ListArtifacts returns artifact names stored for the session.
func (tc *ToolContext) ListArtifacts() ([]string, error) {
	if tc.artifacts == nil {
		return nil, fmt.Errorf("artifact store not configured")
	}

	return tc.artifacts.ListKeys(tc.ctx, tc.sessionKey)
}

// ApplyActions merges accumulated EventActions into the provided event.
func (tc *ToolContext) ApplyActions(ev *Event) {
	if len(tc.eventActions.StateDelta) > 0 {
		if ev.Actions.StateDelta == nil {
			ev.Actions.StateDelta = map[string]any{}
		}

		for k, v := range tc.eventActions.StateDelta {
			ev.Actions.StateDelta[k] = v
		}
	}

	if len(tc.eventActions.ArtifactDelta) > 0 {
		if ev.Actions.ArtifactDelta == nil {
			ev.Actions.ArtifactDelta = map[string]int{}
		}

		for k, v := range tc.eventActions.ArtifactDelta {
			ev.Actions.ArtifactDelta[k] = v
		}
	}

	if tc.eventActions.TransferToAgent != nil {
		ev.Actions.TransferToAgent = tc.eventActions.TransferToAgent
	}
}
