package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/lunara/reportmesh/core"
	"github.com/lunara/reportmesh/model"
)

func generate(m *Model, req model.Request) (model.Response, error) {
	respCh, errCh := m.Generate(context.Background(), req)
	return model.Collect(context.Background(), respCh, errCh)
}

type fakeGenerator struct {
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	resp     *genai.GenerateContentResponse
	err      error
}

func (f *fakeGenerator) GenerateContent(_ context.Context, _ string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.contents = contents
	f.config = config

	return f.resp, f.err
}

func TestGenerate_MapsCodeExecutionParts(t *testing.T) {
	gen := &fakeGenerator{resp: &genai.GenerateContentResponse{
		ResponseID: "r1",
		Candidates: []*genai.Candidate{{
			FinishReason: genai.FinishReasonStop,
			Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{
				{Text: "planning the chart", Thought: true},
				{ExecutableCode: &genai.ExecutableCode{Code: "plt.savefig('chart_1.png')", Language: genai.LanguagePython}},
				{CodeExecutionResult: &genai.CodeExecutionResult{Outcome: genai.OutcomeOK, Output: "done"}},
				{InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte{1, 2}}},
				{Text: "Here is the chart."},
			}},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 3, CandidatesTokenCount: 4, TotalTokenCount: 7},
	}}

	resp, err := generate(newModelWithGenerator(gen), model.Request{
		Instructions:    "Run analysis.",
		CodeExecution:   true,
		IncludeThoughts: true,
	})
	require.NoError(t, err)

	parts := resp.Content.Parts
	require.Len(t, parts, 5)
	assert.Equal(t, core.TextPart{Text: "planning the chart", Thought: true}, parts[0])
	assert.Equal(t, core.ExecutableCodePart{Code: "plt.savefig('chart_1.png')", Language: "python"}, parts[1])
	assert.Equal(t, core.CodeExecutionResultPart{Outcome: core.OutcomeOK, Output: "done"}, parts[2])
	assert.Equal(t, core.InlineDataPart{MimeType: "image/png", Data: []byte{1, 2}}, parts[3])
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 7, resp.Usage.TotalTokens)

	require.NotNil(t, gen.config.SystemInstruction)
	assert.Equal(t, "Run analysis.", gen.config.SystemInstruction.Parts[0].Text)
	require.Len(t, gen.config.Tools, 1)
	assert.NotNil(t, gen.config.Tools[0].CodeExecution)
	assert.True(t, gen.config.ThinkingConfig.IncludeThoughts)
}

func TestGenerate_DropsThoughtsUnlessRequested(t *testing.T) {
	gen := &fakeGenerator{resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{{Text: "secret", Thought: true}, {Text: "visible"}}},
	}}}}

	resp, err := generate(newModelWithGenerator(gen), model.Request{})
	require.NoError(t, err)
	assert.Equal(t, []core.Part{core.TextPart{Text: "visible"}}, resp.Content.Parts)
}

func TestGenerate_FunctionCallsAndTools(t *testing.T) {
	gen := &fakeGenerator{resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{{FunctionCall: &genai.FunctionCall{Name: "add_chart_block", Args: map[string]any{"title": "Revenue"}}}}},
	}}}}

	req := model.Request{
		Contents: []core.Content{
			{Role: "user", Parts: []core.Part{core.TextPart{Text: "chart it"}}},
			{Role: "assistant", Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "c1", Name: "list_artifacts", Arguments: `{}`}}}},
			{Role: "tool", Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: "c1", Name: "list_artifacts", Response: []int{1}}}}},
		},
		Tools: []model.ToolDefinition{{Type: "function", Function: model.FunctionDefinition{
			Name: "add_chart_block",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"title": map[string]any{"type": "string"}},
				"required":   []string{"title"},
			},
		}}},
	}

	resp, err := generate(newModelWithGenerator(gen), req)
	require.NoError(t, err)

	fc := resp.Content.Parts[0].(core.FunctionCallPart).FunctionCall
	assert.Equal(t, "add_chart_block", fc.Name)
	assert.JSONEq(t, `{"title":"Revenue"}`, fc.Arguments)
	assert.NotEmpty(t, fc.ID)

	require.Len(t, gen.contents, 3)
	assert.Equal(t, genai.RoleModel, gen.contents[1].Role)
	assert.Equal(t, genai.RoleUser, gen.contents[2].Role)
	assert.Equal(t, map[string]any{"result": []int{1}}, gen.contents[2].Parts[0].FunctionResponse.Response)

	decl := gen.config.Tools[0].FunctionDeclarations[0]
	assert.Equal(t, genai.TypeObject, decl.Parameters.Type)
	assert.Equal(t, []string{"title"}, decl.Parameters.Required)
	assert.Equal(t, genai.TypeString, decl.Parameters.Properties["title"].Type)
}

func TestGenerate_Errors(t *testing.T) {
	_, err := generate(newModelWithGenerator(&fakeGenerator{err: errors.New("quota")}), model.Request{})
	assert.ErrorContains(t, err, "quota")

	_, err = generate(newModelWithGenerator(&fakeGenerator{resp: &genai.GenerateContentResponse{}}), model.Request{})
	assert.ErrorContains(t, err, "no candidates")
}

func TestInfo(t *testing.T) {
	info := newModelWithGenerator(&fakeGenerator{}, func(o *Options) { o.Model = "gemini-2.5-pro" }).Info()
	assert.Equal(t, "gemini-2.5-pro", info.Name)
	assert.True(t, info.SupportsCodeExecution)
}
