package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunara/reportmesh/config"
	"github.com/lunara/reportmesh/core"
	"github.com/lunara/reportmesh/report"
)

func TestRootCommandTree(t *testing.T) {
	root := buildRootCmd()

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"serve", "generate", "reports"} {
		assert.True(t, names[want], want)
	}

	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestGenerateRequiresReport(t *testing.T) {
	root := buildRootCmd()
	root.SetArgs([]string{"generate", "hello"})
	root.SetOut(&bytes.Buffer{})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--report")
}

func TestReportsCreateAndList(t *testing.T) {
	t.Setenv("REPORTMESH_DB", filepath.Join(t.TempDir(), "reports.db"))

	var out bytes.Buffer

	root := buildRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"--config", "", "reports", "create", "Q3", "Review"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), `created report 1 "Q3 Review"`)

	out.Reset()

	root = buildRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"--config", "", "reports", "list"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "ID")
	assert.Contains(t, out.String(), "Q3 Review")
}

func TestPrintEvent(t *testing.T) {
	block := core.Block{ID: 2, Type: core.BlockKPI, Title: "Revenue", Content: "$1M", CreatedAt: time.Now()}

	cases := []struct {
		ev   report.OutputEvent
		want string
	}{
		{report.OutputEvent{Type: report.OutputNarration, Author: "report_agent", Text: "hi"}, "report_agent: hi\n"},
		{report.OutputEvent{Type: report.OutputStatus, Text: "calling add_kpi_block"}, "... calling add_kpi_block\n"},
		{report.OutputEvent{Type: report.OutputBlock, Block: &block}, "+ block #2 kpi \"Revenue\"\n"},
		{report.OutputEvent{Type: report.OutputDone, Blocks: []core.Block{block}}, "done: 1 new block(s)\n"},
	}

	for _, tc := range cases {
		var buf bytes.Buffer
		require.NoError(t, printEvent(&buf, tc.ev, false))
		assert.Equal(t, tc.want, buf.String())
	}

	var buf bytes.Buffer
	require.NoError(t, printEvent(&buf, report.OutputEvent{Type: report.OutputError, Message: "boom"}, true))
	assert.JSONEq(t, `{"type":"error","message":"boom"}`, buf.String())
}

func TestNewModel_UnknownProvider(t *testing.T) {
	_, err := newModel(context.Background(), config.ModelConfig{Provider: "cohere"}, config.APIKeys{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported model provider")
}

func TestNewTeam_OpenAIRoles(t *testing.T) {
	models := config.ModelsConfig{
		Root:         config.ModelConfig{Provider: config.ProviderOpenAI, Model: "gpt-4o"},
		CodeExecutor: config.ModelConfig{Provider: config.ProviderAnthropic, Model: "claude-sonnet-4-5"},
		APIKeys:      config.APIKeys{OpenAI: "sk-test", Anthropic: "sk-ant-test"},
	}

	root, err := newTeam(context.Background(), models)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", root.Model().Info().Name)
	assert.Len(t, root.SubAgents(), 2)
}
