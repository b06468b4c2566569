package core

import (
	"time"

	"github.com/google/uuid"
)

// EventActions encodes orchestration signals attached to an Event. All fields
// are optional so absence can be distinguished from zero values.
type EventActions struct {
	StateDelta      map[string]any `json:"state_delta,omitempty"`
	ArtifactDelta   map[string]int `json:"artifact_delta,omitempty"`
	TransferToAgent *string        `json:"transfer_to_agent,omitempty"`
}

// Event is the unit the agent runtime emits for a turn. After emission it
// should be treated as immutable. It captures:
//   - Correlation (InvocationID, ID, Author)
//   - Conversational content (optional role-based Parts)
//   - Orchestration directives (Actions)
//   - Error metadata
//
// Content may be nil for control or error-only events. A single event may
// carry several parts; consumers that need one payload per unit split it
// first (see report.SplitEvent).
type Event struct {
	ID           string       `json:"id"`
	InvocationID string       `json:"invocation_id"`
	Author       string       `json:"author"`
	Actions      EventActions `json:"actions"`
	Timestamp    time.Time    `json:"timestamp"`
	Content      *Content     `json:"content,omitempty"`
	Partial      *bool        `json:"partial,omitempty"`
	TurnComplete *bool        `json:"turn_complete,omitempty"`
	ErrorCode    *string      `json:"error_code,omitempty"`
	ErrorMessage *string      `json:"error_message,omitempty"`
}

// NewEvent creates a bare event authored by 'author' bound to an invocation.
func NewEvent(invocationID, author string) Event {
	return Event{
		ID:           NewID(),
		InvocationID: invocationID,
		Author:       author,
		Timestamp:    time.Now().UTC(),
		Actions:      EventActions{},
	}
}

// NewContentEvent creates an event carrying the given role and parts.
func NewContentEvent(invocationID, author, role string, parts ...Part) Event {
	e := NewEvent(invocationID, author)
	e.Content = &Content{Role: role, Parts: parts}

	return e
}

// NewUserMessageEvent creates a user-authored text message event.
func NewUserMessageEvent(invocationID, message string) Event {
	return NewContentEvent(invocationID, "user", "user", TextPart{Text: message})
}

// NewFunctionCallEvent represents an agent requesting execution of a named tool.
func NewFunctionCallEvent(author, id, functionName, args string) Event {
	return NewContentEvent("", author, "assistant", FunctionCallPart{
		FunctionCall: FunctionCall{ID: id, Name: functionName, Arguments: args},
	})
}

// NewFunctionResponseEvent records the result (or error) of a tool invocation.
// If err is non-nil its message is copied into the response Error field.
func NewFunctionResponseEvent(author, id, functionName string, result any, err error) Event {
	fr := FunctionResponse{ID: id, Name: functionName, Response: result}
	if err != nil {
		fr.Error = err.Error()
	}

	return NewContentEvent("", author, "tool", FunctionResponsePart{FunctionResponse: fr})
}

// NewCodeEvent records source code produced by a code-executing agent.
func NewCodeEvent(author, code, language string) Event {
	return NewContentEvent("", author, "assistant", ExecutableCodePart{Code: code, Language: language})
}

// NewCodeResultEvent records the outcome of a code execution.
func NewCodeResultEvent(author, outcome, output string) Event {
	return NewContentEvent("", author, "tool", CodeExecutionResultPart{Outcome: outcome, Output: output})
}

// NewID generates a new unique identifier for events.
func NewID() string { return uuid.NewString() }

// IsPartial reports whether this event is a streaming fragment.
func (e Event) IsPartial() bool { return e.Partial != nil && *e.Partial }

// IsError reports whether the event carries error metadata.
func (e Event) IsError() bool { return e.ErrorCode != nil || e.ErrorMessage != nil }

// GetFunctionCalls returns any FunctionCall parts contained within the event
// content preserving their original order.
func (e Event) GetFunctionCalls() []FunctionCall {
	if e.Content == nil {
		return nil
	}

	var calls []FunctionCall

	for _, p := range e.Content.Parts {
		if fc, ok := p.(FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}

	return calls
}

// GetFunctionResponses returns any FunctionResponse parts contained within the
// event content preserving their original order.
func (e Event) GetFunctionResponses() []FunctionResponse {
	if e.Content == nil {
		return nil
	}

	var responses []FunctionResponse

	for _, p := range e.Content.Parts {
		if fr, ok := p.(FunctionResponsePart); ok {
			responses = append(responses, fr.FunctionResponse)
		}
	}

	return responses
}

// HasTrailingCodeExecutionResult reports whether the last part is a code
// execution result, meaning the model must be consulted again to interpret it.
func (e Event) HasTrailingCodeExecutionResult() bool {
	if e.Content == nil || len(e.Content.Parts) == 0 {
		return false
	}

	_, ok := e.Content.Parts[len(e.Content.Parts)-1].(CodeExecutionResultPart)

	return ok
}

// IsFinalResponse reports whether the event completes an agent turn: no
// pending tool calls or responses, not partial, no trailing code result.
func (e Event) IsFinalResponse() bool {
	return len(e.GetFunctionCalls()) == 0 &&
		len(e.GetFunctionResponses()) == 0 &&
		!e.IsPartial() &&
		!e.HasTrailingCodeExecutionResult()
}
