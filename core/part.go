package core

// Part represents a polymorphic segment of role-based content. Concrete part
// types implement the unexported isPart marker enabling a closed set. Each
// part carries exactly one kind of payload, so a single Part is the unit the
// report classifier inspects.
type Part interface{ isPart() }

// TextPart is a plain text content segment. Thought marks internal model
// reasoning that must never be shown as narration.
type TextPart struct {
	Text     string         `json:"text"`               // Plain UTF-8 text
	Thought  bool           `json:"thought,omitempty"`  // Internal reasoning rather than user-facing narration
	Metadata map[string]any `json:"metadata,omitempty"` // Optional producer-provided metadata
}

// isPart implements the Part interface for TextPart.
func (TextPart) isPart() {}

// FunctionCall describes a tool/function invocation request.
type FunctionCall struct {
	ID        string `json:"id,omitempty"`        // Optional stable id (can be supplied later)
	Name      string `json:"name"`                // Tool / function name
	Arguments string `json:"arguments,omitempty"` // Serialized argument payload (e.g. JSON)
}

// FunctionCallPart wraps a FunctionCall as a content part.
type FunctionCallPart struct {
	FunctionCall FunctionCall
	Metadata     map[string]any
}

// isPart implements the Part interface for FunctionCallPart.
func (FunctionCallPart) isPart() {}

// FunctionResponse describes the outcome of a function call.
type FunctionResponse struct {
	ID       string `json:"id,omitempty"`       // Matches originating FunctionCall ID
	Name     string `json:"name"`               // Function name
	Response any    `json:"response,omitempty"` // Successful result (any shape)
	Error    string `json:"error,omitempty"`    // Populated on failure
}

// FunctionResponsePart wraps a FunctionResponse as a content part.
type FunctionResponsePart struct {
	FunctionResponse FunctionResponse
	Metadata         map[string]any
}

// isPart implements the Part interface for FunctionResponsePart.
func (FunctionResponsePart) isPart() {}

// ExecutableCodePart carries source code a code-executing agent produced.
type ExecutableCodePart struct {
	Code     string `json:"code"`
	Language string `json:"language,omitempty"` // e.g. "python"; empty when unknown
}

// isPart implements the Part interface for ExecutableCodePart.
func (ExecutableCodePart) isPart() {}

// Code execution outcomes. Values mirror the vendor neutral names used by
// model adapters so they can be passed through untouched.
const (
	OutcomeOK               = "OUTCOME_OK"
	OutcomeFailed           = "OUTCOME_FAILED"
	OutcomeDeadlineExceeded = "OUTCOME_DEADLINE_EXCEEDED"
)

// CodeExecutionResultPart carries the captured output of a code execution.
type CodeExecutionResultPart struct {
	Outcome string `json:"outcome"`
	Output  string `json:"output"`
}

// isPart implements the Part interface for CodeExecutionResultPart.
func (CodeExecutionResultPart) isPart() {}

// InlineDataPart is a binary payload (typically a rendered chart image)
// embedded directly in the event stream.
type InlineDataPart struct {
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"`
	Name     string `json:"name,omitempty"` // Optional display name / artifact key
}

// isPart implements the Part interface for InlineDataPart.
func (InlineDataPart) isPart() {}

// Content holds role + ordered parts.
type Content struct {
	Role  string `json:"role,omitempty"` // Conversation role (user, assistant, tool, system,...)
	Parts []Part `json:"parts"`          // Ordered heterogeneous parts
}

// Text concatenates all non-thought text parts.
func (c Content) Text() string {
	var out string
	for _, p := range c.Parts {
		if tp, ok := p.(TextPart); ok && !tp.Thought {
			out += tp.Text
		}
	}
	return out
}
