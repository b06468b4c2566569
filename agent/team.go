package agent

import (
	"github.com/lunara/reportmesh/model"
)

// Report team agent names.
const (
	RootAgentName         = "report_agent"
	DataToolsAgentName    = "data_tools"
	CodeExecutorAgentName = "code_executor"
)

const rootInstruction = `You are a report generation AI for Lunara BI.
{{if .report_name}}You are working on the report "{{.report_name}}".
{{end}}
You have two specialized sub-agents:
1. data_tools: lists saved data artifacts, fetches their rows and adds blocks to the report
2. code_executor: runs Python code for analysis and charts

Workflow:
1. Ask data_tools to list available artifacts
2. Ask data_tools to get the data you need
3. Ask code_executor to analyze the data or create charts
4. Ask data_tools to add the results to the report

Hand control over with transfer_to_agent. Be helpful and insightful in your analysis.`

const dataToolsInstruction = `You manage data artifacts and report blocks.

Available tools:
- list_artifacts(): list all saved artifacts
- get_artifact_data(artifact_id): get the full data of an artifact
- add_text_block, add_kpi_block, add_table_block: add content to the report
- add_chart_block(title, filename): declare a chart; the rendered image is attached automatically
- add_block(block_type, content, title): generic form of the above

When you are done, transfer back to report_agent.`

const codeExecutorInstruction = `You are a Python code executor. When given data and a task:
1. Write Python code using pandas, matplotlib, numpy
2. Execute the code to analyze data or create charts
3. Return the results

For charts, use matplotlib with clean styling and save each figure to a PNG
file named chart_<n>.png. For analysis, use pandas and print key insights.`

// TeamModels assigns a model per report team role. Nil roles fall back to
// Root.
type TeamModels struct {
	Root         model.Model
	DataTools    model.Model
	CodeExecutor model.Model
}

// NewReportTeam builds the report_agent hierarchy and returns its root.
func NewReportTeam(models TeamModels) (*Agent, error) {
	dataModel := models.DataTools
	if dataModel == nil {
		dataModel = models.Root
	}

	codeModel := models.CodeExecutor
	if codeModel == nil {
		codeModel = models.Root
	}

	codeExecutor := New(CodeExecutorAgentName, codeModel, func(o *Options) {
		o.Description = "Executes Python code for data analysis and chart generation. Use this for pandas analysis, matplotlib charts, and calculations."
		o.Instruction = NewInstructionFromText(codeExecutorInstruction)
		o.CodeExecution = true
		o.IncludeThoughts = true
	})

	dataTools := New(DataToolsAgentName, dataModel, func(o *Options) {
		o.Description = "Manages artifacts and report blocks. Use this to list/get artifacts and add blocks to the report."
		o.Instruction = NewInstructionFromText(dataToolsInstruction)
		o.AcceptTurnTools = true
	})

	root := New(RootAgentName, models.Root, func(o *Options) {
		o.Description = "Generates data reports with charts and analysis"
		o.Instruction = NewInstructionFromText(rootInstruction)
		o.IncludeThoughts = true
	})

	if err := root.SetSubAgents(dataTools, codeExecutor); err != nil {
		return nil, err
	}

	return root, nil
}
