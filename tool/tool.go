// Package tool implements the function / tool calling subsystem that lets agents
// invoke structured capabilities (dataset lookups, report block mutations,
// code execution) with schema validated arguments and consistent error
// handling.
package tool

import (
	"fmt"

	"github.com/lunara/reportmesh/core"
	"github.com/lunara/reportmesh/internal/util"
)

// Tool is a capability the runtime offers to models through function
// calling. FunctionTool validates arguments against Parameters before its
// handler runs; other implementations validate their own input.
type Tool interface {
	// Name is the snake_case function name models call.
	Name() string
	// Description tells the model when the tool applies.
	Description() string
	// Parameters is the JSON schema of the argument object.
	Parameters() map[string]any
	// Call runs the tool with arguments decoded from the model's JSON. A
	// returned *ToolError goes back to the model as a function response
	// error and never aborts the turn.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// Error codes carried by ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodeNotFound   = "NOT_FOUND"
)

// Index maps tools by name. Later tools with a duplicate name win.
func Index(tools ...[]Tool) map[string]Tool {
	out := map[string]Tool{}

	for _, set := range tools {
		for _, t := range set {
			out[t.Name()] = t
		}
	}

	return out
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string      `json:"tool"`              // Name of the tool that failed
	Message string      `json:"message"`           // Error message
	Code    string      `json:"code"`              // Error code for categorization
	Details interface{} `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
