package runner

import (
	"fmt"
	"path"
	"strings"

	"github.com/lunara/reportmesh/code"
	"github.com/lunara/reportmesh/core"
	"github.com/lunara/reportmesh/tool"
)

// ExecuteCodeToolName is the function exposed to code executing agents whose
// model has no native code execution.
const ExecuteCodeToolName = "execute_code"

// codeOutcome is the function response of execute_code.
type codeOutcome struct {
	Outcome string   `json:"outcome"`
	Output  string   `json:"output"`
	Files   []string `json:"files,omitempty"`
}

func newExecuteCodeTool(exec code.Executor) tool.Tool {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"code": map[string]any{
				"type":        "string",
				"description": "Python source to run. Save charts as PNG files in the working directory.",
			},
			"language": map[string]any{
				"type":        "string",
				"description": "Source language, defaults to python",
			},
		},
		"required": []string{"code"},
	}

	return tool.NewFunctionTool(ExecuteCodeToolName, "Execute Python code for analysis and chart rendering", params,
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			src, _ := args["code"].(string)

			lang, _ := args["language"].(string)
			if lang == "" {
				lang = "python"
			}

			res, err := exec.Execute(tc.Context(), code.Request{Code: src, Language: lang, Session: tc.SessionKey()})
			if err != nil {
				return nil, err
			}

			out := codeOutcome{Outcome: res.Outcome, Output: res.Output}

			if len(res.Files) == 0 {
				return out, nil
			}

			existing, err := tc.ListArtifacts()
			if err != nil {
				return nil, fmt.Errorf("list artifacts: %w", err)
			}

			taken := make(map[string]bool, len(existing))
			for _, name := range existing {
				taken[name] = true
			}

			for _, f := range res.Files {
				f.Name = uniqueName(f.Name, taken)
				taken[f.Name] = true

				if err := tc.SaveArtifact(f); err != nil {
					return nil, fmt.Errorf("save artifact %s: %w", f.Name, err)
				}

				out.Files = append(out.Files, f.Name)
			}

			return out, nil
		})
}

// uniqueName keeps artifact keys distinct across executions so a rerun that
// writes chart_1.png again does not collide with an already surfaced key.
func uniqueName(name string, taken map[string]bool) string {
	if !taken[name] {
		return name
	}

	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)

	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", base, i, ext)
		if !taken[candidate] {
			return candidate
		}
	}
}
