package local

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunara/reportmesh/code"
	"github.com/lunara/reportmesh/core"
)

func newShellExecutor(t *testing.T, optFns ...func(o *Options)) *Executor {
	t.Helper()

	return New(append([]func(o *Options){func(o *Options) {
		o.Command = []string{"sh"}
		o.ScriptName = "main.sh"
		o.TempDir = t.TempDir()
	}}, optFns...)...)
}

func TestExecute_CollectsImages(t *testing.T) {
	e := newShellExecutor(t)

	res, err := e.Execute(context.Background(), code.Request{Code: "echo insight\nprintf 'b1' > chart_1.png\nprintf 'x' > notes.txt\n"})
	require.NoError(t, err)

	assert.True(t, res.OK())
	assert.Equal(t, "insight\n", res.Output)
	require.Len(t, res.Files, 1)
	assert.Equal(t, "chart_1.png", res.Files[0].Name)
	assert.Equal(t, "image/png", res.Files[0].MimeType)
	assert.Equal(t, []byte("b1"), res.Files[0].Data)
}

func TestExecute_FailedSnippet(t *testing.T) {
	res, err := newShellExecutor(t).Execute(context.Background(), code.Request{Code: "echo oops >&2\nexit 3\n"})
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeFailed, res.Outcome)
	assert.Contains(t, res.Output, "oops")
}

func TestExecute_Timeout(t *testing.T) {
	e := newShellExecutor(t, func(o *Options) { o.Timeout = 50 * time.Millisecond })

	res, err := e.Execute(context.Background(), code.Request{Code: "exec sleep 5\n"})
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeDeadlineExceeded, res.Outcome)
}

func TestExecute_TruncatesOutput(t *testing.T) {
	e := newShellExecutor(t, func(o *Options) { o.MaxOutputBytes = 4 })

	res, err := e.Execute(context.Background(), code.Request{Code: "echo 123456789\n"})
	require.NoError(t, err)
	assert.Equal(t, "1234\n...[truncated]", res.Output)
}

func TestExecute_MissingInterpreter(t *testing.T) {
	e := New(func(o *Options) {
		o.Command = []string{"definitely-not-an-interpreter"}
		o.TempDir = t.TempDir()
	})

	_, err := e.Execute(context.Background(), code.Request{Code: "print(1)"})
	assert.Error(t, err)
}
