package anthropic

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunara/reportmesh/core"
	"github.com/lunara/reportmesh/model"
)

func TestBuildMessages_ToolResultsFollowToolUse(t *testing.T) {
	contents := []core.Content{
		{Role: "user", Parts: []core.Part{core.TextPart{Text: "Build a report"}}},
		{Role: "assistant", Parts: []core.Part{
			core.TextPart{Text: "Looking up data"},
			core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "t1", Name: "get_artifact_data", Arguments: `{"artifact_id":3}`}},
		}},
		{Role: "tool", Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{
			ID: "t1", Name: "get_artifact_data", Error: "Artifact 3 not found",
		}}}},
		{Role: "assistant", Parts: []core.Part{core.TextPart{Text: "Done"}}},
	}

	msgs := buildMessages(contents)
	require.Len(t, msgs, 4)

	raw, err := json.Marshal(msgs)
	require.NoError(t, err)

	var decoded []struct {
		Role    string           `json:"role"`
		Content []map[string]any `json:"content"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, "user", decoded[0].Role)
	assert.Equal(t, "assistant", decoded[1].Role)
	assert.Equal(t, "tool_use", decoded[1].Content[1]["type"])
	assert.Equal(t, "user", decoded[2].Role)
	assert.Equal(t, "tool_result", decoded[2].Content[0]["type"])
	assert.Equal(t, true, decoded[2].Content[0]["is_error"])
	assert.Equal(t, "assistant", decoded[3].Role)
}

func TestBuildMessages_MergesConsecutiveUserTurns(t *testing.T) {
	msgs := buildMessages([]core.Content{
		{Role: "user", Parts: []core.Part{core.TextPart{Text: "a"}}},
		{Role: "tool", Parts: []core.Part{core.CodeExecutionResultPart{Outcome: core.OutcomeOK, Output: "1"}}},
	})
	require.Len(t, msgs, 1)
	assert.Len(t, msgs[0].Content, 2)
}

func TestBuildTools_CopiesSchemaAndDescription(t *testing.T) {
	tools := buildTools([]model.ToolDefinition{{
		Type: "function",
		Function: model.FunctionDefinition{
			Name:        "add_kpi_block",
			Description: "Add a KPI",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"title": map[string]any{"type": "string"}},
				"required":   []any{"title"},
			},
		},
	}})
	require.Len(t, tools, 1)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, []string{"title"}, tools[0].OfTool.InputSchema.Required)
	assert.Equal(t, "add_kpi_block", tools[0].OfTool.Name)
}

func TestSystemBlocks(t *testing.T) {
	blocks := systemBlocks(model.Request{
		Instructions: "be brief",
		Contents:     []core.Content{{Role: "system", Parts: []core.Part{core.TextPart{Text: "extra"}}}},
	})
	require.Len(t, blocks, 2)
	assert.Equal(t, "extra", blocks[1].Text)
}
