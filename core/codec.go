package core

import (
	"encoding/json"
	"fmt"
)

// Part kinds used by the JSON encoding of Content.
const (
	partKindText             = "text"
	partKindFunctionCall     = "function_call"
	partKindFunctionResponse = "function_response"
	partKindExecutableCode   = "executable_code"
	partKindCodeResult       = "code_execution_result"
	partKindInlineData       = "inline_data"
)

// wirePart is the tagged envelope used to persist a Part. Exactly one payload
// field is set, matching Kind.
type wirePart struct {
	Kind             string                   `json:"kind"`
	Text             *TextPart                `json:"text,omitempty"`
	FunctionCall     *FunctionCall            `json:"function_call,omitempty"`
	FunctionResponse *FunctionResponse        `json:"function_response,omitempty"`
	ExecutableCode   *ExecutableCodePart      `json:"executable_code,omitempty"`
	CodeResult       *CodeExecutionResultPart `json:"code_execution_result,omitempty"`
	InlineData       *InlineDataPart          `json:"inline_data,omitempty"`
}

type wireContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []wirePart `json:"parts"`
}

// MarshalJSON encodes Content with a discriminator per part so it can be
// decoded back into the closed Part union.
func (c Content) MarshalJSON() ([]byte, error) {
	wc := wireContent{Role: c.Role, Parts: make([]wirePart, 0, len(c.Parts))}

	for _, p := range c.Parts {
		switch pt := p.(type) {
		case TextPart:
			wc.Parts = append(wc.Parts, wirePart{Kind: partKindText, Text: &pt})
		case FunctionCallPart:
			wc.Parts = append(wc.Parts, wirePart{Kind: partKindFunctionCall, FunctionCall: &pt.FunctionCall})
		case FunctionResponsePart:
			wc.Parts = append(wc.Parts, wirePart{Kind: partKindFunctionResponse, FunctionResponse: &pt.FunctionResponse})
		case ExecutableCodePart:
			wc.Parts = append(wc.Parts, wirePart{Kind: partKindExecutableCode, ExecutableCode: &pt})
		case CodeExecutionResultPart:
			wc.Parts = append(wc.Parts, wirePart{Kind: partKindCodeResult, CodeResult: &pt})
		case InlineDataPart:
			wc.Parts = append(wc.Parts, wirePart{Kind: partKindInlineData, InlineData: &pt})
		default:
			return nil, fmt.Errorf("unsupported part type %T", p)
		}
	}

	return json.Marshal(wc)
}

// UnmarshalJSON decodes the tagged encoding produced by MarshalJSON. Unknown
// kinds are skipped so newer writers do not break older readers.
func (c *Content) UnmarshalJSON(data []byte) error {
	var wc wireContent
	if err := json.Unmarshal(data, &wc); err != nil {
		return err
	}

	c.Role = wc.Role
	c.Parts = make([]Part, 0, len(wc.Parts))

	for _, wp := range wc.Parts {
		switch {
		case wp.Kind == partKindText && wp.Text != nil:
			c.Parts = append(c.Parts, *wp.Text)
		case wp.Kind == partKindFunctionCall && wp.FunctionCall != nil:
			c.Parts = append(c.Parts, FunctionCallPart{FunctionCall: *wp.FunctionCall})
		case wp.Kind == partKindFunctionResponse && wp.FunctionResponse != nil:
			c.Parts = append(c.Parts, FunctionResponsePart{FunctionResponse: *wp.FunctionResponse})
		case wp.Kind == partKindExecutableCode && wp.ExecutableCode != nil:
			c.Parts = append(c.Parts, *wp.ExecutableCode)
		case wp.Kind == partKindCodeResult && wp.CodeResult != nil:
			c.Parts = append(c.Parts, *wp.CodeResult)
		case wp.Kind == partKindInlineData && wp.InlineData != nil:
			c.Parts = append(c.Parts, *wp.InlineData)
		}
	}

	return nil
}
