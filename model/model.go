package model

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lunara/reportmesh/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// Request captures the normalized model input produced by the runtime.
type Request struct {
	Instructions string           `json:"instructions"` // System instructions for the model
	Contents     []core.Content   `json:"contents"`     // Conversation converted to provider messages
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`

	// CodeExecution asks the provider to run generated code server side.
	// Only honored when Info().SupportsCodeExecution is true.
	CodeExecution bool `json:"code_execution,omitempty"`

	// IncludeThoughts requests reasoning parts (TextPart.Thought) when the
	// provider can expose them.
	IncludeThoughts bool `json:"include_thoughts,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"`
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name                  string `json:"name"`
	Provider              string `json:"provider"` // "openai", "anthropic", "gemini", ...
	SupportsTools         bool   `json:"supports_tools"`
	SupportsCodeExecution bool   `json:"supports_code_execution"`
}

// Model is the minimal interface required by the runtime to drive generation.
// The response channel is closed when generation ends; the error channel
// carries at most one error.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Collect drains a Generate call and returns the final (non-partial)
// response. When the provider only streamed partials, their parts are
// concatenated into one response.
func Collect(ctx context.Context, respCh <-chan Response, errCh <-chan error) (Response, error) {
	var (
		final    *Response
		partials []core.Part
	)

	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}

			if r.Partial {
				partials = append(partials, r.Content.Parts...)
				continue
			}

			rc := r
			final = &rc
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}

			if err != nil {
				return Response{}, err
			}
		}
	}

	if final != nil {
		return *final, nil
	}

	if len(partials) == 0 {
		return Response{}, fmt.Errorf("model returned no response")
	}

	return Response{Content: core.Content{Role: "assistant", Parts: partials}, FinishReason: "stop"}, nil
}

// FunctionResponseText renders a tool result as the JSON document handed
// back to a provider.
func FunctionResponseText(fr core.FunctionResponse) string {
	var payload any

	if fr.Error != "" {
		payload = map[string]any{"error": fr.Error}
	} else if s, ok := fr.Response.(string); ok {
		return s
	} else {
		payload = fr.Response
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("%v", payload)
	}

	return string(b)
}

// CodeTranscript renders code and code results as text for providers
// without native code execution parts.
func CodeTranscript(p core.Part) (string, bool) {
	switch pt := p.(type) {
	case core.ExecutableCodePart:
		lang := pt.Language
		if lang == "" {
			lang = "python"
		}

		return fmt.Sprintf("```%s\n%s\n```", lang, pt.Code), true
	case core.CodeExecutionResultPart:
		return fmt.Sprintf("Code execution result (%s):\n%s", pt.Outcome, pt.Output), true
	case core.InlineDataPart:
		return fmt.Sprintf("[%s artifact %s]", pt.MimeType, pt.Name), true
	default:
		return "", false
	}
}
