// Package local runs code snippets in a host subprocess, one scratch
// directory per execution. Files left behind with a collected extension are
// returned as artifacts.
package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lunara/reportmesh/code"
	"github.com/lunara/reportmesh/core"
	"github.com/lunara/reportmesh/logging"
)

// Options configures the local executor.
type Options struct {
	// Command is the interpreter invocation; the script path is appended.
	Command        []string
	ScriptName     string
	Timeout        time.Duration
	MaxOutputBytes int
	// Extensions lists file suffixes collected as artifacts.
	Extensions []string
	// TempDir is the parent of per-execution scratch directories.
	TempDir string
	Logger  logging.Logger
}

// Executor runs snippets with a local interpreter.
type Executor struct {
	opts Options
}

var _ code.Executor = (*Executor)(nil)

// New creates a local executor. Defaults run python3 with a 60s timeout and
// collect PNG, JPEG and SVG output.
func New(optFns ...func(o *Options)) *Executor {
	opts := Options{
		Command:        []string{"python3"},
		ScriptName:     "main.py",
		Timeout:        60 * time.Second,
		MaxOutputBytes: 64 * 1024,
		Extensions:     []string{".png", ".jpg", ".jpeg", ".svg"},
		Logger:         logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Executor{opts: opts}
}

// Execute writes the snippet to a scratch directory and runs it there.
func (e *Executor) Execute(ctx context.Context, req code.Request) (code.Result, error) {
	if len(e.opts.Command) == 0 {
		return code.Result{}, errors.New("local executor: no command configured")
	}

	dir, err := os.MkdirTemp(e.opts.TempDir, "reportmesh-exec-")
	if err != nil {
		return code.Result{}, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	script := filepath.Join(dir, e.opts.ScriptName)
	if err := os.WriteFile(script, []byte(req.Code), 0o600); err != nil {
		return code.Result{}, fmt.Errorf("write script: %w", err)
	}

	runCtx := ctx
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	args := append(append([]string{}, e.opts.Command[1:]...), e.opts.ScriptName)
	cmd := exec.CommandContext(runCtx, e.opts.Command[0], args...)
	cmd.Dir = dir
	cmd.WaitDelay = time.Second

	start := time.Now()
	output, runErr := cmd.CombinedOutput()

	res := code.Result{Outcome: core.OutcomeOK, Output: e.truncate(output)}

	switch {
	case runErr == nil:
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		res.Outcome = core.OutcomeDeadlineExceeded
	default:
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return code.Result{}, fmt.Errorf("run %s: %w", e.opts.Command[0], runErr)
		}

		res.Outcome = core.OutcomeFailed
	}

	files, err := e.collect(dir)
	if err != nil {
		return code.Result{}, err
	}

	res.Files = files

	e.opts.Logger.Info("code.execution.completed",
		"session_id", req.Session.SessionID,
		"outcome", res.Outcome,
		"files", len(files),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return res, nil
}

func (e *Executor) truncate(out []byte) string {
	if e.opts.MaxOutputBytes > 0 && len(out) > e.opts.MaxOutputBytes {
		return string(out[:e.opts.MaxOutputBytes]) + "\n...[truncated]"
	}

	return string(out)
}

// collect reads produced files in name order.
func (e *Executor) collect(dir string) ([]core.Artifact, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scratch dir: %w", err)
	}

	var files []core.Artifact

	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == e.opts.ScriptName || !e.collected(entry.Name()) {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}

		files = append(files, core.Artifact{
			Name:     entry.Name(),
			MimeType: core.DetectMimeType(entry.Name()),
			Data:     data,
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	return files, nil
}

func (e *Executor) collected(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range e.opts.Extensions {
		if ext == want {
			return true
		}
	}

	return false
}
