package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/lunara/reportmesh/core"
	"github.com/lunara/reportmesh/tool"
)

// Step is one scripted action of a runtime turn. Exactly one field is set.
type Step struct {
	Event    *core.Event
	Call     *ToolCall
	Artifact *core.Artifact
	Err      error
}

// ToolCall invokes a tool handed to Run and emits call and response events.
type ToolCall struct {
	Name string
	Args map[string]any
}

// Emit returns a step emitting ev.
func Emit(ev core.Event) Step { return Step{Event: &ev} }

// Call returns a step invoking the named tool.
func Call(name string, args map[string]any) Step {
	return Step{Call: &ToolCall{Name: name, Args: args}}
}

// WriteArtifact returns a step writing a file to the artifact store without
// emitting an event, as a sandbox does.
func WriteArtifact(name, mimeType string, data []byte) Step {
	return Step{Artifact: &core.Artifact{Name: name, MimeType: mimeType, Data: data}}
}

// Fail returns a step ending the stream with err.
func Fail(err error) Step { return Step{Err: err} }

// ScriptedRuntime replays one script per Run call.
type ScriptedRuntime struct {
	AppName   string
	Artifacts core.ArtifactStore
	// CreateErr, when set, fails every CreateSession call.
	CreateErr error

	mu       sync.Mutex
	turns    [][]Step
	turn     int
	sessions []core.SessionKey
	messages []string
	results  []any
}

// NewScriptedRuntime creates a runtime answering successive Run calls with
// the given scripts.
func NewScriptedRuntime(artifacts core.ArtifactStore, turns ...[]Step) *ScriptedRuntime {
	return &ScriptedRuntime{AppName: "test_app", Artifacts: artifacts, turns: turns}
}

// SetCreateErr changes the CreateSession failure.
func (r *ScriptedRuntime) SetCreateErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.CreateErr = err
}

// CreateSession returns a fresh key numbered by creation order.
func (r *ScriptedRuntime) CreateSession(_ context.Context, userID string) (core.SessionKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.CreateErr != nil {
		return core.SessionKey{}, r.CreateErr
	}

	key := core.SessionKey{AppName: r.AppName, UserID: userID, SessionID: fmt.Sprintf("report_%s_%d", userID, len(r.sessions)+1)}
	r.sessions = append(r.sessions, key)

	return key, nil
}

// Run replays the next script.
func (r *ScriptedRuntime) Run(ctx context.Context, key core.SessionKey, message string, tools []tool.Tool) (<-chan core.Event, <-chan error) {
	r.mu.Lock()

	var steps []Step
	if r.turn < len(r.turns) {
		steps = r.turns[r.turn]
	}

	r.turn++
	r.messages = append(r.messages, message)
	r.mu.Unlock()

	events := make(chan core.Event, len(steps)*2+1)
	errs := make(chan error, 1)

	registry := tool.Index(tools)

	go func() {
		defer close(events)
		defer close(errs)

		for i, step := range steps {
			if err := ctx.Err(); err != nil {
				errs <- err
				return
			}

			switch {
			case step.Event != nil:
				events <- *step.Event
			case step.Artifact != nil:
				if err := r.Artifacts.Save(ctx, key, *step.Artifact); err != nil {
					errs <- err
					return
				}
			case step.Call != nil:
				callID := fmt.Sprintf("call_%d", i+1)
				args, _ := json.Marshal(step.Call.Args)
				events <- core.NewFunctionCallEvent("data_tools", callID, step.Call.Name, string(args))

				impl, ok := registry[step.Call.Name]
				if !ok {
					errs <- fmt.Errorf("tool %s not provided", step.Call.Name)
					return
				}

				tc := core.NewToolContext(ctx, key, "data_tools", callID, core.WithToolArtifactStore(r.Artifacts))
				result, err := impl.Call(tc, step.Call.Args)

				r.mu.Lock()
				r.results = append(r.results, result)
				r.mu.Unlock()

				events <- core.NewFunctionResponseEvent("data_tools", callID, step.Call.Name, result, err)
			case step.Err != nil:
				errs <- step.Err
				return
			}
		}
	}()

	return events, errs
}

// Sessions returns created session keys in order.
func (r *ScriptedRuntime) Sessions() []core.SessionKey {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]core.SessionKey(nil), r.sessions...)
}

// Messages returns the prompts passed to Run in order.
func (r *ScriptedRuntime) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.messages...)
}

// Results returns tool results in call order.
func (r *ScriptedRuntime) Results() []any {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]any(nil), r.results...)
}
