package report

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunara/reportmesh/core"
)

func TestOutputEvent_MarshalJSON(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	b := core.Block{ID: 3, Type: core.BlockKPI, Title: "Revenue", Content: "$1M", CreatedAt: at}

	tests := []struct {
		ev   OutputEvent
		want string
	}{
		{narrationEvent("Done.", "report_agent"), `{"type":"narration","text":"Done.","author":"report_agent"}`},
		{thoughtEvent("hmm"), `{"type":"thought","text":"hmm"}`},
		{codeEvent("print(1)", "python"), `{"type":"code","text":"print(1)","language":"python"}`},
		{codeResultEvent("1", core.OutcomeOK), `{"type":"code_result","output":"1","outcome":"OUTCOME_OK"}`},
		{imageEvent(Arrival{MimeType: "image/png", Data: []byte("b1"), Key: "chart_1.png"}), `{"type":"image","mime_type":"image/png","data":"YjE=","source_key":"chart_1.png"}`},
		{statusEvent("calling add_block"), `{"type":"status","text":"calling add_block"}`},
		{OutputEvent{Type: OutputError, Message: "boom"}, `{"type":"error","message":"boom"}`},
		{doneEvent(nil), `{"type":"done","blocks":[]}`},
		{blockEvent(b), `{"type":"block","block":{"id":3,"type":"kpi","title":"Revenue","content":"$1M","createdAt":"2025-01-02T03:04:05Z"}}`},
	}

	for _, tt := range tests {
		t.Run(string(tt.ev.Type), func(t *testing.T) {
			raw, err := json.Marshal(tt.ev)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(raw))
		})
	}

	_, err := json.Marshal(OutputEvent{Type: "bogus"})
	assert.Error(t, err)
}
