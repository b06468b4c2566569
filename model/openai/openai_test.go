package openai

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunara/reportmesh/core"
	"github.com/lunara/reportmesh/model"
)

func TestBuildMessages_AttachesToolResponsesAfterCalls(t *testing.T) {
	req := model.Request{
		Instructions: "You build reports.",
		Contents: []core.Content{
			{Role: "user", Parts: []core.Part{core.TextPart{Text: "Show revenue"}}},
			{Role: "assistant", Parts: []core.Part{
				core.TextPart{Text: "hidden", Thought: true},
				core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "c1", Name: "list_artifacts"}},
			}},
			{Role: "tool", Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{
				ID: "c1", Name: "list_artifacts", Response: map[string]any{"count": 0},
			}}}},
			{Role: "assistant", Parts: []core.Part{core.ExecutableCodePart{Code: "print(1)"}}},
			{Role: "tool", Parts: []core.Part{core.CodeExecutionResultPart{Outcome: core.OutcomeOK, Output: "1"}}},
		},
	}

	msgs := buildMessages(req)
	require.Len(t, msgs, 6)

	raw, err := json.Marshal(msgs)
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	roles := make([]string, len(decoded))
	for i, m := range decoded {
		roles[i], _ = m["role"].(string)
	}
	assert.Equal(t, []string{"system", "user", "assistant", "tool", "assistant", "user"}, roles)
	assert.Equal(t, "c1", decoded[3]["tool_call_id"])
	assert.JSONEq(t, `{"count":0}`, decoded[3]["content"].(string))
	assert.Contains(t, decoded[4]["content"], "print(1)")
	assert.NotContains(t, string(raw), "hidden")
}

func TestFinalParts_OrdersToolCallsByIndex(t *testing.T) {
	parts := finalParts("ok", map[int64]*aggCall{
		1: {id: "b", name: "second"},
		0: {id: "a", name: "first", args: `{"x":1}`},
	})
	require.Len(t, parts, 3)
	assert.Equal(t, core.TextPart{Text: "ok"}, parts[0])
	assert.Equal(t, "first", parts[1].(core.FunctionCallPart).FunctionCall.Name)
	assert.Equal(t, "second", parts[2].(core.FunctionCallPart).FunctionCall.Name)
}

func TestInfo(t *testing.T) {
	m := NewModel(func(o *Options) { o.Model = "gpt-4o"; o.APIKey = "test" })
	info := m.Info()
	assert.Equal(t, "gpt-4o", info.Name)
	assert.Equal(t, "openai", info.Provider)
	assert.False(t, info.SupportsCodeExecution)
}
