package tool

import (
	"fmt"
	"slices"

	"github.com/lunara/reportmesh/core"
)

// TransferToAgentName is the reserved tool name the runtime watches for.
const TransferToAgentName = "transfer_to_agent"

// transferToAgentTool requests orchestration transfer to a named agent.
type transferToAgentTool struct {
	targets []string
}

// NewTransferToAgentTool constructs the transfer tool. When targets is
// non-empty the schema enumerates them and unknown names are rejected.
func NewTransferToAgentTool(targets ...string) Tool {
	return &transferToAgentTool{targets: targets}
}

func (t *transferToAgentTool) Name() string { return TransferToAgentName }

func (t *transferToAgentTool) Description() string {
	return "Transfer control to another agent by name. Use when another agent is better suited for the next step."
}

func (t *transferToAgentTool) Parameters() map[string]any {
	agent := map[string]any{"type": "string", "description": "Target agent name"}
	if len(t.targets) > 0 {
		agent["enum"] = t.targets
	}

	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"agent_name": agent},
		"required":   []string{"agent_name"},
	}
}

func (t *transferToAgentTool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	agentName, _ := args["agent_name"].(string)
	if agentName == "" {
		return nil, NewToolError(TransferToAgentName, "field 'agent_name' must be a non-empty string", CodeValidation)
	}

	if len(t.targets) > 0 && !slices.Contains(t.targets, agentName) {
		return nil, NewToolError(TransferToAgentName, fmt.Sprintf("unknown agent %q", agentName), CodeNotFound)
	}

	tc.TransferToAgent(agentName)

	return map[string]any{"transferred": true, "agent_name": agentName}, nil
}
