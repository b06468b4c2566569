package report

import (
	"strings"

	"github.com/lunara/reportmesh/core"
)

// Kind is the semantic category of one runtime payload.
type Kind int

// Event kinds. KindNone marks payloads the dispatcher skips.
const (
	KindNone Kind = iota
	KindNarration
	KindReasoning
	KindToolCall
	KindToolResult
	KindCode
	KindCodeResult
	KindInlineArtifact
)

var kindNames = [...]string{
	KindNone:           "none",
	KindNarration:      "narration",
	KindReasoning:      "reasoning",
	KindToolCall:       "tool_call",
	KindToolResult:     "tool_result",
	KindCode:           "code",
	KindCodeResult:     "code_result",
	KindInlineArtifact: "inline_artifact",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}

	return kindNames[k]
}

// RawEvent is one payload of a runtime event together with its author.
// Exactly one part is carried.
type RawEvent struct {
	Author string
	Part   core.Part
}

// SplitEvent breaks a runtime event into one RawEvent per content part.
// Streaming fragments and content-less events yield nothing.
func SplitEvent(ev core.Event) []RawEvent {
	if ev.IsPartial() || ev.Content == nil {
		return nil
	}

	out := make([]RawEvent, 0, len(ev.Content.Parts))
	for _, p := range ev.Content.Parts {
		out = append(out, RawEvent{Author: ev.Author, Part: p})
	}

	return out
}

// Classified is the normalized payload of a RawEvent. Only the fields
// belonging to Kind are set.
type Classified struct {
	Kind   Kind
	Author string

	// Narration and reasoning.
	Text string

	// Tool call and tool result.
	ToolName  string
	CallID    string
	Arguments string
	Result    any
	ToolError string

	// Generated code and its execution result.
	Code     string
	Language string
	Outcome  string
	Output   string

	// Inline artifact.
	MimeType  string
	Data      []byte
	SourceKey string
}

// Classify maps a RawEvent to its Kind and payload. Empty or unknown payloads
// classify as KindNone.
func Classify(raw RawEvent) Classified {
	c := Classified{Author: raw.Author}

	switch p := raw.Part.(type) {
	case core.TextPart:
		if strings.TrimSpace(p.Text) == "" {
			return c
		}

		c.Text = p.Text
		c.Kind = KindNarration

		if p.Thought {
			c.Kind = KindReasoning
		}
	case core.FunctionCallPart:
		if p.FunctionCall.Name == "" {
			return c
		}

		c.Kind = KindToolCall
		c.ToolName = p.FunctionCall.Name
		c.CallID = p.FunctionCall.ID
		c.Arguments = p.FunctionCall.Arguments
	case core.FunctionResponsePart:
		if p.FunctionResponse.Name == "" {
			return c
		}

		c.Kind = KindToolResult
		c.ToolName = p.FunctionResponse.Name
		c.CallID = p.FunctionResponse.ID
		c.Result = p.FunctionResponse.Response
		c.ToolError = p.FunctionResponse.Error
	case core.ExecutableCodePart:
		if strings.TrimSpace(p.Code) == "" {
			return c
		}

		c.Kind = KindCode
		c.Code = p.Code
		c.Language = p.Language
	case core.CodeExecutionResultPart:
		if p.Outcome == "" && p.Output == "" {
			return c
		}

		c.Kind = KindCodeResult
		c.Outcome = p.Outcome
		c.Output = p.Output
	case core.InlineDataPart:
		if len(p.Data) == 0 {
			return c
		}

		c.Kind = KindInlineArtifact
		c.MimeType = p.MimeType
		c.Data = p.Data
		c.SourceKey = p.Name
	}

	return c
}
