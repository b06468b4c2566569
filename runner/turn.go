package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"time"

	"github.com/lunara/reportmesh/agent"
	"github.com/lunara/reportmesh/core"
	"github.com/lunara/reportmesh/logging"
	"github.com/lunara/reportmesh/model"
	"github.com/lunara/reportmesh/tool"
)

// turn is the state of one Run call.
type turn struct {
	runner       *Runner
	ctx          context.Context
	key          core.SessionKey
	invocationID string
	turnTools    []tool.Tool
	budget       *core.CallBudget
	out          chan<- core.Event
	logger       logging.Logger
}

func (t *turn) run(message string) error {
	if _, err := t.runner.sessionStore.Get(t.ctx, t.key); err != nil {
		return fmt.Errorf("load session %s: %w", t.key, err)
	}

	if err := t.runner.sessionStore.AppendEvent(t.ctx, t.key, core.NewUserMessageEvent(t.invocationID, message)); err != nil {
		return fmt.Errorf("append user message: %w", err)
	}

	current := t.runner.root

	for {
		if err := t.ctx.Err(); err != nil {
			return err
		}

		registry, native := t.toolsFor(current)

		ev, err := t.callModel(current, registry, native)
		if err != nil {
			return err
		}

		if err := t.emit(ev); err != nil {
			return err
		}

		calls := ev.GetFunctionCalls()
		if len(calls) == 0 {
			if ev.HasTrailingCodeExecutionResult() {
				continue
			}

			parent := current.Parent()
			if parent == nil {
				t.logger.Debug("runner.turn.completed", "model_calls", t.budget.Used())
				return nil
			}

			t.logger.Debug("runner.agent.returned", "from", current.Name(), "to", parent.Name())
			current = parent

			continue
		}

		var transfer string

		for _, fc := range calls {
			respEv, err := t.dispatch(current, registry, fc)
			if err != nil {
				return err
			}

			if target := respEv.Actions.TransferToAgent; target != nil && *target != "" {
				transfer = *target
			}
		}

		if transfer != "" {
			next := t.runner.root.FindAgent(transfer)
			if next == nil {
				t.logger.Warn("runner.transfer.unknown_agent", "target", transfer)
				continue
			}

			t.logger.Info("runner.agent.transferred", "from", current.Name(), "to", next.Name())
			current = next
		}
	}
}

// toolsFor assembles the tool registry for a. Agents using native code
// execution get no function tools since providers reject the combination.
func (t *turn) toolsFor(a *agent.Agent) (map[string]tool.Tool, bool) {
	native := a.CodeExecution() && a.Model().Info().SupportsCodeExecution
	if native {
		return map[string]tool.Tool{}, true
	}

	tools := a.Tools()
	if a.AcceptsTurnTools() {
		tools = append(tools, t.turnTools...)
	}

	if targets := a.TransferTargets(); len(targets) > 0 {
		tools = append(tools, tool.NewTransferToAgentTool(targets...))
	}

	if a.CodeExecution() && t.runner.codeExecutor != nil {
		tools = append(tools, newExecuteCodeTool(t.runner.codeExecutor))
	}

	return tool.Index(tools), false
}

// callModel runs one model request for a and returns the final event.
// Partial chunks are forwarded without persistence.
func (t *turn) callModel(a *agent.Agent, registry map[string]tool.Tool, native bool) (core.Event, error) {
	sess, err := t.runner.sessionStore.Get(t.ctx, t.key)
	if err != nil {
		return core.Event{}, fmt.Errorf("refresh session %s: %w", t.key, err)
	}

	state := sess.Clone().State
	if state == nil {
		state = map[string]any{}
	}

	instructions, err := a.ResolveInstructions(state)
	if err != nil {
		return core.Event{}, fmt.Errorf("resolve instructions for %s: %w", a.Name(), err)
	}

	req := model.Request{
		Instructions:    instructions,
		Contents:        historyContents(sess),
		Tools:           definitions(registry),
		Stream:          true,
		CodeExecution:   native,
		IncludeThoughts: a.IncludeThoughts(),
	}

	if err := t.budget.Spend(); err != nil {
		return core.Event{}, err
	}

	start := time.Now()
	llm := a.Model()
	respCh, errCh := llm.Generate(t.ctx, req)

	var (
		final    *model.Response
		partials []core.Part
		genErr   error
	)

	for respCh != nil || errCh != nil {
		select {
		case <-t.ctx.Done():
			return core.Event{}, t.ctx.Err()
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}

			if resp.Partial {
				partials = append(partials, resp.Content.Parts...)

				ev := t.newEvent(a, resp.Content)
				partial := true
				ev.Partial = &partial

				if err := t.send(ev); err != nil {
					return core.Event{}, err
				}

				continue
			}

			r := resp
			final = &r
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}

			if err != nil && genErr == nil {
				genErr = err
			}
		}
	}

	tokens := 0
	if final != nil && final.Usage != nil {
		tokens = final.Usage.TotalTokens
	}

	logging.LogModelCall(t.logger, llm.Info().Name, tokens, time.Since(start), genErr)

	if genErr != nil {
		return core.Event{}, fmt.Errorf("model %s (%s): %w", llm.Info().Name, a.Name(), genErr)
	}

	if final == nil {
		if len(partials) == 0 {
			return core.Event{}, fmt.Errorf("model %s (%s) returned no response", llm.Info().Name, a.Name())
		}

		final = &model.Response{Content: core.Content{Role: "assistant", Parts: partials}}
	}

	ev := t.newEvent(a, final.Content)
	if len(ev.GetFunctionCalls()) == 0 {
		complete := true
		ev.TurnComplete = &complete
	}

	return ev, nil
}

func (t *turn) newEvent(a *agent.Agent, content core.Content) core.Event {
	if content.Role == "" {
		content.Role = "assistant"
	}

	return core.NewContentEvent(t.invocationID, a.Name(), content.Role, content.Parts...)
}

// dispatch executes one function call and emits its response event. Code
// execution calls are bracketed by code and code result events.
func (t *turn) dispatch(a *agent.Agent, registry map[string]tool.Tool, fc core.FunctionCall) (core.Event, error) {
	args, argErr := decodeArgs(fc.Arguments)

	if fc.Name == ExecuteCodeToolName && argErr == nil {
		src, _ := args["code"].(string)
		lang, _ := args["language"].(string)

		if err := t.emit(t.stamp(core.NewCodeEvent(a.Name(), src, lang))); err != nil {
			return core.Event{}, err
		}
	}

	tc := core.NewToolContext(t.ctx, t.key, a.Name(), fc.ID,
		core.WithToolArtifactStore(t.runner.artifactStore),
		core.WithToolLogger(t.logger),
	)

	start := time.Now()

	var (
		result any
		err    error
	)

	if argErr != nil {
		err = tool.NewToolError(fc.Name, argErr.Error(), tool.CodeValidation)
	} else {
		result, err = invoke(registry, tc, fc.Name, args)
	}

	if p := (*panicErr)(nil); errors.As(err, &p) {
		t.logger.Error("runner.tool.panic", "agent", a.Name(), "tool", fc.Name, "recover", p.val)
	}

	logging.LogToolCall(t.logger, fc.Name, time.Since(start), err)

	if out, ok := result.(codeOutcome); ok && fc.Name == ExecuteCodeToolName {
		if emitErr := t.emit(t.stamp(core.NewCodeResultEvent(a.Name(), out.Outcome, out.Output))); emitErr != nil {
			return core.Event{}, emitErr
		}
	}

	respEv := t.stamp(core.NewFunctionResponseEvent(a.Name(), fc.ID, fc.Name, result, err))
	tc.ApplyActions(&respEv)

	if err := t.emit(respEv); err != nil {
		return core.Event{}, err
	}

	return respEv, nil
}

func (t *turn) stamp(ev core.Event) core.Event {
	ev.InvocationID = t.invocationID
	return ev
}

// emit persists a final event (state delta first) and delivers it.
func (t *turn) emit(ev core.Event) error {
	if len(ev.Actions.StateDelta) > 0 {
		if err := t.runner.sessionStore.ApplyDelta(t.ctx, t.key, ev.Actions.StateDelta); err != nil {
			return fmt.Errorf("apply state delta: %w", err)
		}
	}

	if err := t.runner.sessionStore.AppendEvent(t.ctx, t.key, ev); err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	return t.send(ev)
}

func (t *turn) send(ev core.Event) error {
	select {
	case <-t.ctx.Done():
		return t.ctx.Err()
	case t.out <- ev:
		return nil
	}
}

func decodeArgs(raw string) (map[string]any, error) {
	args := map[string]any{}
	if raw == "" {
		return args, nil
	}

	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("failed to unmarshal args: %w", err)
	}

	return args, nil
}

// invoke looks up and calls a tool, converting panics to errors.
func invoke(registry map[string]tool.Tool, tc *core.ToolContext, name string, args map[string]any) (result any, err error) {
	impl, ok := registry[name]
	if !ok {
		return nil, tool.NewToolError(name, fmt.Sprintf("tool %s not found", name), tool.CodeNotFound)
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &panicErr{val: r, stack: debug.Stack()}
		}
	}()

	return impl.Call(tc, args)
}

type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string { return fmt.Sprintf("panic recovered: %v", p.val) }

func definitions(registry map[string]tool.Tool) []model.ToolDefinition {
	if len(registry) == 0 {
		return nil
	}

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}

	sort.Strings(names)

	defs := make([]model.ToolDefinition, 0, len(names))
	for _, name := range names {
		t := registry[name]
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}

	return defs
}

// historyContents converts persisted events into model contents.
func historyContents(sess *core.Session) []core.Content {
	events := sess.GetConversationHistory()
	contents := make([]core.Content, 0, len(events))

	for _, ev := range events {
		contents = append(contents, *ev.Content)
	}

	return contents
}
