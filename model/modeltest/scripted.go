// Package modeltest provides deterministic model.Model implementations for
// runtime and engine tests.
package modeltest

import (
	"context"
	"fmt"
	"sync"

	"github.com/lunara/reportmesh/core"
	"github.com/lunara/reportmesh/model"
)

// Step configures one model call in a scripted sequence. Partials are
// emitted before the final content.
type Step struct {
	Partials []core.Content
	Content  core.Content
	Err      error
}

// Text returns a step answering with plain narration.
func Text(text string) Step {
	return Step{Content: core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: text}}}}
}

// Call returns a step issuing a single function call.
func Call(id, name, args string) Step {
	return Step{Content: core.Content{Role: "assistant", Parts: []core.Part{
		core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: id, Name: name, Arguments: args}},
	}}}
}

// Parts returns a step answering with the given parts.
func Parts(parts ...core.Part) Step {
	return Step{Content: core.Content{Role: "assistant", Parts: parts}}
}

// ScriptedModel replays steps in order and records every request it sees.
type ScriptedModel struct {
	mu       sync.Mutex
	index    int
	steps    []Step
	requests []model.Request
	info     model.Info
}

var _ model.Model = (*ScriptedModel)(nil)

// NewScriptedModel creates a model that answers with steps in order.
func NewScriptedModel(steps ...Step) *ScriptedModel {
	cloned := make([]Step, len(steps))
	copy(cloned, steps)

	return &ScriptedModel{
		steps: cloned,
		info:  model.Info{Name: "scripted", Provider: "test", SupportsTools: true},
	}
}

// WithCodeExecution marks the model as running code natively.
func (m *ScriptedModel) WithCodeExecution() *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.info.SupportsCodeExecution = true

	return m
}

// Generate emits the next scripted step. An exhausted script is an error.
func (m *ScriptedModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)

	var (
		step Step
		err  error
	)

	if m.index >= len(m.steps) {
		err = fmt.Errorf("script exhausted at step %d", m.index+1)
	} else {
		step = m.steps[m.index]
	}
	m.index++
	m.mu.Unlock()

	out := make(chan model.Response, len(step.Partials)+1)
	errCh := make(chan error, 1)

	defer close(out)
	defer close(errCh)

	if err == nil {
		err = step.Err
	}

	if err == nil {
		err = ctx.Err()
	}

	if err != nil {
		errCh <- err
		return out, errCh
	}

	for _, p := range step.Partials {
		out <- model.Response{Partial: true, Content: p}
	}

	content := step.Content
	if content.Role == "" {
		content.Role = "assistant"
	}

	out <- model.Response{Content: content, FinishReason: "stop"}

	return out, errCh
}

// Info reports the scripted model metadata.
func (m *ScriptedModel) Info() model.Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.info
}

// Requests returns the requests received so far.
func (m *ScriptedModel) Requests() []model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.Request, len(m.requests))
	copy(out, m.requests)

	return out
}

// Calls returns how many times Generate was invoked.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.index
}
