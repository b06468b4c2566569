package agent

import (
	"fmt"
	"sync"

	"github.com/lunara/reportmesh/internal/util"
	"github.com/lunara/reportmesh/model"
	"github.com/lunara/reportmesh/tool"
)

var renderTemplate = util.RenderTemplate

// Options configures an Agent instance.
//
// Use functional options with New to override defaults.
type Options struct {
	Description     string
	Instruction     Instruction
	Tools           []tool.Tool
	CodeExecution   bool // agent runs code; natively or through the runner's executor
	IncludeThoughts bool
	AcceptTurnTools bool // per-turn tools handed to the runner attach to this agent
	AllowTransfer   bool
}

// Agent is a declarative model-driven participant in a multi-agent turn.
// Hierarchy methods are goroutine-safe.
type Agent struct {
	name            string
	description     string
	llm             model.Model
	instruction     Instruction
	tools           []tool.Tool
	codeExecution   bool
	includeThoughts bool
	acceptTurnTools bool
	allowTransfer   bool

	mu        sync.RWMutex
	parent    *Agent
	subAgents []*Agent
}

// New creates an agent named name backed by llm.
func New(name string, llm model.Model, optFns ...func(o *Options)) *Agent {
	opts := Options{
		Description:   fmt.Sprintf("Agent %s", name),
		Instruction:   NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		AllowTransfer: true,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	tools := make([]tool.Tool, len(opts.Tools))
	copy(tools, opts.Tools)

	return &Agent{
		name:            name,
		description:     opts.Description,
		llm:             llm,
		instruction:     opts.Instruction,
		tools:           tools,
		codeExecution:   opts.CodeExecution,
		includeThoughts: opts.IncludeThoughts,
		acceptTurnTools: opts.AcceptTurnTools,
		allowTransfer:   opts.AllowTransfer,
	}
}

// Name returns the agent name used as event author.
func (a *Agent) Name() string { return a.name }

// Description returns what the agent is for; shown to the parent when it
// decides where to transfer.
func (a *Agent) Description() string { return a.description }

// Model returns the language model driving the agent.
func (a *Agent) Model() model.Model { return a.llm }

// Tools returns a copy of the agent's static tools.
func (a *Agent) Tools() []tool.Tool {
	out := make([]tool.Tool, len(a.tools))
	copy(out, a.tools)

	return out
}

// CodeExecution reports whether the agent runs analysis code.
func (a *Agent) CodeExecution() bool { return a.codeExecution }

// IncludeThoughts reports whether reasoning parts are requested.
func (a *Agent) IncludeThoughts() bool { return a.includeThoughts }

// AcceptsTurnTools reports whether per-turn tools attach to this agent.
func (a *Agent) AcceptsTurnTools() bool { return a.acceptTurnTools }

// ResolveInstructions produces the system prompt for the given session state.
func (a *Agent) ResolveInstructions(state map[string]any) (string, error) {
	return a.instruction.Resolve(state)
}

// SetSubAgents replaces the child set and assigns this agent as parent. A
// child already attached elsewhere is rejected.
func (a *Agent) SetSubAgents(children ...*Agent) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, child := range children {
		if child == a {
			return fmt.Errorf("agent %s cannot be its own sub-agent", a.name)
		}

		if p := child.Parent(); p != nil && p != a {
			return fmt.Errorf("agent %s already has parent %s", child.name, p.name)
		}
	}

	for _, child := range a.subAgents {
		child.setParent(nil)
	}

	a.subAgents = nil

	for _, child := range children {
		child.setParent(a)
		a.subAgents = append(a.subAgents, child)
	}

	return nil
}

func (a *Agent) setParent(p *Agent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.parent = p
}

// Parent returns the parent agent or nil for the root.
func (a *Agent) Parent() *Agent {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.parent
}

// SubAgents returns a shallow copy of the child agents.
func (a *Agent) SubAgents() []*Agent {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]*Agent, len(a.subAgents))
	copy(out, a.subAgents)

	return out
}

// FindAgent performs a depth-first search over the subtree rooted at this
// agent (including itself). Returns nil if no match is found.
func (a *Agent) FindAgent(name string) *Agent {
	if a.name == name {
		return a
	}

	for _, child := range a.SubAgents() {
		if found := child.FindAgent(name); found != nil {
			return found
		}
	}

	return nil
}

// TransferTargets lists the agents this agent may hand control to: its
// sub-agents followed by its parent.
func (a *Agent) TransferTargets() []string {
	if !a.allowTransfer {
		return nil
	}

	var targets []string
	for _, child := range a.SubAgents() {
		targets = append(targets, child.name)
	}

	if p := a.Parent(); p != nil {
		targets = append(targets, p.name)
	}

	return targets
}
