package testutil

import (
	"github.com/lunara/reportmesh/core"
)

// EventBuilder provides a fluent helper for constructing events in tests.
// Example:
//
//	ev := NewEventBuilder().Author("code_executor").Code("print(1)").CodeResult(core.OutcomeOK, "1").Build()
//
// Parts are kept in the order they were added.
type EventBuilder struct {
	author       string
	invocationID string
	id           string
	role         string
	parts        []core.Part
	partial      *bool
	actions      core.EventActions
	errMessage   *string
}

// NewEventBuilder creates a builder with default author "agent".
func NewEventBuilder() *EventBuilder { return &EventBuilder{author: "agent"} }

// Author sets the author name for the event (chainable).
func (b *EventBuilder) Author(a string) *EventBuilder { b.author = a; return b }

// Invocation sets the invocation ID associated with the event (chainable).
func (b *EventBuilder) Invocation(id string) *EventBuilder { b.invocationID = id; return b }

// ID overrides the auto-generated event ID (chainable).
func (b *EventBuilder) ID(id string) *EventBuilder { b.id = id; return b }

// Role overrides the content role (chainable).
func (b *EventBuilder) Role(r string) *EventBuilder { b.role = r; return b }

// Partial marks the event as a streaming chunk (chainable).
func (b *EventBuilder) Partial(p bool) *EventBuilder { b.partial = &p; return b }

// Text appends a narration part (chainable).
func (b *EventBuilder) Text(t string) *EventBuilder {
	b.parts = append(b.parts, core.TextPart{Text: t})
	return b
}

// Thought appends a reasoning part (chainable).
func (b *EventBuilder) Thought(t string) *EventBuilder {
	b.parts = append(b.parts, core.TextPart{Text: t, Thought: true})
	return b
}

// FunctionCall adds a function call part (chainable).
func (b *EventBuilder) FunctionCall(id, name, args string) *EventBuilder {
	b.parts = append(b.parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: id, Name: name, Arguments: args}})
	return b
}

// FunctionResponse adds a function response part (chainable).
func (b *EventBuilder) FunctionResponse(id, name string, result any, err error) *EventBuilder {
	fr := core.FunctionResponse{ID: id, Name: name, Response: result}
	if err != nil {
		fr.Error = err.Error()
	}

	b.parts = append(b.parts, core.FunctionResponsePart{FunctionResponse: fr})

	return b
}

// Code appends generated source (chainable).
func (b *EventBuilder) Code(src string) *EventBuilder {
	b.parts = append(b.parts, core.ExecutableCodePart{Code: src, Language: "python"})
	return b
}

// CodeResult appends a code execution result (chainable).
func (b *EventBuilder) CodeResult(outcome, output string) *EventBuilder {
	b.parts = append(b.parts, core.CodeExecutionResultPart{Outcome: outcome, Output: output})
	return b
}

// Image appends an inline binary artifact (chainable).
func (b *EventBuilder) Image(mimeType string, data []byte, name string) *EventBuilder {
	b.parts = append(b.parts, core.InlineDataPart{MimeType: mimeType, Data: data, Name: name})
	return b
}

// AddPart appends a custom content part (chainable).
func (b *EventBuilder) AddPart(p core.Part) *EventBuilder {
	b.parts = append(b.parts, p)
	return b
}

// Transfer sets the target agent for a transfer action (chainable).
func (b *EventBuilder) Transfer(to string) *EventBuilder { b.actions.TransferToAgent = &to; return b }

// Error marks the event as an error event (chainable).
func (b *EventBuilder) Error(msg string) *EventBuilder { b.errMessage = &msg; return b }

// Build constructs the core.Event value.
func (b *EventBuilder) Build() core.Event {
	ev := core.NewEvent(b.invocationID, b.author)
	if b.id != "" {
		ev.ID = b.id
	}

	ev.Partial = b.partial
	ev.Actions = b.actions
	ev.ErrorMessage = b.errMessage

	if len(b.parts) > 0 {
		role := b.role
		if role == "" {
			role = "assistant"
		}

		parts := make([]core.Part, len(b.parts))
		copy(parts, b.parts)
		ev.Content = &core.Content{Role: role, Parts: parts}
	}

	return ev
}
