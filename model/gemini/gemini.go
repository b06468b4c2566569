// Package gemini provides a model.Model backed by the Gemini API through the
// Google Gen AI SDK. It is the only adapter with native code execution: when
// a request asks for it the model runs Python server side and returns the
// code, its result and any rendered images as parts.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/lunara/reportmesh/core"
	"github.com/lunara/reportmesh/model"
)

// generator is the subset of *genai.Models used by the adapter.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Options configures the Gemini adapter.
type Options struct {
	Model           string
	APIKey          string
	Temperature     float32
	MaxOutputTokens int32
}

// Model wraps the Gemini API behind model.Model.
type Model struct {
	gen  generator
	opts Options
}

func defaultOptions() Options {
	return Options{
		Model:           "gemini-2.5-flash",
		Temperature:     0.2,
		MaxOutputTokens: 8192,
	}
}

// NewModel creates a Gemini model. The API key falls back to GOOGLE_API_KEY
// / GEMINI_API_KEY as resolved by the SDK.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &Model{gen: client.Models, opts: opts}, nil
}

func newModelWithGenerator(gen generator, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{gen: gen, opts: opts}
}

// Generate issues one GenerateContent call and emits a single final response.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		resp, err := m.gen.GenerateContent(ctx, m.opts.Model, toContents(req.Contents), m.buildConfig(req))
		if err != nil {
			errCh <- fmt.Errorf("gemini api error: %w", err)
			return
		}

		r, err := fromResponse(resp, req.IncludeThoughts)
		if err != nil {
			errCh <- err
			return
		}

		out <- r
	}()

	return out, errCh
}

func (m *Model) buildConfig(req model.Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(m.opts.Temperature),
		MaxOutputTokens: m.opts.MaxOutputTokens,
	}

	if req.Instructions != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.Instructions}}}
	}

	if req.IncludeThoughts {
		cfg.ThinkingConfig = &genai.ThinkingConfig{IncludeThoughts: true}
	}

	if req.CodeExecution {
		cfg.Tools = append(cfg.Tools, &genai.Tool{CodeExecution: &genai.ToolCodeExecution{}})
	}

	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  toSchema(t.Function.Parameters),
			})
		}

		cfg.Tools = append(cfg.Tools, &genai.Tool{FunctionDeclarations: decls})
	}

	return cfg
}

// toContents maps normalized contents to Gemini contents. Tool responses
// travel with the user role; assistant content uses the model role.
func toContents(contents []core.Content) []*genai.Content {
	out := make([]*genai.Content, 0, len(contents))

	for _, c := range contents {
		if c.Role == "system" {
			continue
		}

		gc := &genai.Content{Role: genai.RoleUser}
		if c.Role == "assistant" {
			gc.Role = genai.RoleModel
		}

		for _, p := range c.Parts {
			if gp := toPart(p); gp != nil {
				gc.Parts = append(gc.Parts, gp)
			}
		}

		if len(gc.Parts) > 0 {
			out = append(out, gc)
		}
	}

	return out
}

func toPart(p core.Part) *genai.Part {
	switch pt := p.(type) {
	case core.TextPart:
		if pt.Thought || pt.Text == "" {
			return nil
		}

		return &genai.Part{Text: pt.Text}
	case core.FunctionCallPart:
		args := map[string]any{}
		if pt.FunctionCall.Arguments != "" {
			_ = json.Unmarshal([]byte(pt.FunctionCall.Arguments), &args)
		}

		return &genai.Part{FunctionCall: &genai.FunctionCall{ID: pt.FunctionCall.ID, Name: pt.FunctionCall.Name, Args: args}}
	case core.FunctionResponsePart:
		return &genai.Part{FunctionResponse: &genai.FunctionResponse{
			ID:       pt.FunctionResponse.ID,
			Name:     pt.FunctionResponse.Name,
			Response: responseMap(pt.FunctionResponse),
		}}
	case core.ExecutableCodePart:
		return &genai.Part{ExecutableCode: &genai.ExecutableCode{Code: pt.Code, Language: genai.LanguagePython}}
	case core.CodeExecutionResultPart:
		return &genai.Part{CodeExecutionResult: &genai.CodeExecutionResult{Outcome: genai.Outcome(pt.Outcome), Output: pt.Output}}
	case core.InlineDataPart:
		return &genai.Part{InlineData: &genai.Blob{MIMEType: pt.MimeType, Data: pt.Data, DisplayName: pt.Name}}
	default:
		return nil
	}
}

// responseMap shapes a tool result as the object Gemini expects. Errors go
// under "error", non-object results under "result".
func responseMap(fr core.FunctionResponse) map[string]any {
	if fr.Error != "" {
		return map[string]any{"error": fr.Error}
	}

	if m, ok := fr.Response.(map[string]any); ok {
		return m
	}

	// Round-trip through JSON so structs become maps.
	if b, err := json.Marshal(fr.Response); err == nil {
		var m map[string]any
		if json.Unmarshal(b, &m) == nil && m != nil {
			return m
		}
	}

	return map[string]any{"result": fr.Response}
}

func fromResponse(resp *genai.GenerateContentResponse, includeThoughts bool) (model.Response, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return model.Response{}, errors.New("gemini returned no candidates")
	}

	cand := resp.Candidates[0]

	var parts []core.Part

	if cand.Content != nil {
		for _, p := range cand.Content.Parts {
			if cp := fromPart(p, includeThoughts); cp != nil {
				parts = append(parts, cp)
			}
		}
	}

	r := model.Response{
		ID:           resp.ResponseID,
		Content:      core.Content{Role: "assistant", Parts: parts},
		FinishReason: strings.ToLower(string(cand.FinishReason)),
	}

	if u := resp.UsageMetadata; u != nil {
		r.Usage = &model.TokenUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}

	return r, nil
}

func fromPart(p *genai.Part, includeThoughts bool) core.Part {
	switch {
	case p == nil:
		return nil
	case p.FunctionCall != nil:
		args, err := json.Marshal(p.FunctionCall.Args)
		if err != nil {
			args = []byte("{}")
		}

		id := p.FunctionCall.ID
		if id == "" {
			id = "call_" + core.NewID()
		}

		return core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: id, Name: p.FunctionCall.Name, Arguments: string(args)}}
	case p.ExecutableCode != nil:
		return core.ExecutableCodePart{Code: p.ExecutableCode.Code, Language: strings.ToLower(string(p.ExecutableCode.Language))}
	case p.CodeExecutionResult != nil:
		return core.CodeExecutionResultPart{Outcome: string(p.CodeExecutionResult.Outcome), Output: p.CodeExecutionResult.Output}
	case p.InlineData != nil:
		return core.InlineDataPart{MimeType: p.InlineData.MIMEType, Data: p.InlineData.Data, Name: p.InlineData.DisplayName}
	case p.Text != "":
		if p.Thought && !includeThoughts {
			return nil
		}

		return core.TextPart{Text: p.Text, Thought: p.Thought}
	default:
		return nil
	}
}

// toSchema converts a JSON Schema map to Gemini's Schema type.
func toSchema(schemaMap map[string]any) *genai.Schema {
	if schemaMap == nil {
		return nil
	}

	schema := &genai.Schema{}

	if t, ok := schemaMap["type"].(string); ok {
		schema.Type = genai.Type(strings.ToUpper(t))
	}

	if desc, ok := schemaMap["description"].(string); ok {
		schema.Description = desc
	}

	schema.Enum = stringList(schemaMap["enum"])
	schema.Required = stringList(schemaMap["required"])

	if props, ok := schemaMap["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				schema.Properties[name] = toSchema(propMap)
			}
		}
	}

	if items, ok := schemaMap["items"].(map[string]any); ok {
		schema.Items = toSchema(items)
	}

	return schema
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, e := range list {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}

		return out
	default:
		return nil
	}
}

// Info returns metadata describing this Gemini model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:                  m.opts.Model,
		Provider:              "gemini",
		SupportsTools:         true,
		SupportsCodeExecution: true,
	}
}
