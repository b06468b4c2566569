package report

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/lunara/reportmesh/core"
	"github.com/lunara/reportmesh/dataset"
	"github.com/lunara/reportmesh/tool"
)

// Tool names exposed to the agent runtime.
const (
	ListArtifactsToolName   = "list_artifacts"
	GetArtifactDataToolName = "get_artifact_data"
	AddTextBlockToolName    = "add_text_block"
	AddKPIBlockToolName     = "add_kpi_block"
	AddTableBlockToolName   = "add_table_block"
	AddChartBlockToolName   = "add_chart_block"
	AddBlockToolName        = "add_block"
)

type textBlockArgs struct {
	Title   string `json:"title" description:"Section heading"`
	Content string `json:"content" description:"Markdown body"`
}

type kpiBlockArgs struct {
	Title string `json:"title" description:"Metric label"`
	Value string `json:"value" description:"Formatted metric value, e.g. $1.2M"`
}

type tableBlockArgs struct {
	Title string `json:"title" description:"Table caption"`
	Data  string `json:"data" description:"JSON array of row objects"`
}

type chartBlockArgs struct {
	Title    string  `json:"title" description:"Chart caption"`
	Filename *string `json:"filename" description:"Name of the image file the chart was saved as, if known"`
}

type blockArgs struct {
	BlockType string `json:"block_type" description:"Kind of block" enum:"text,kpi,table,chart"`
	Content   string `json:"content,omitempty" description:"Markdown, KPI value, JSON rows or base64 image. Empty for a chart rendered by code"`
	Title     string `json:"title" description:"Block title"`
}

type artifactDataArgs struct {
	ArtifactID int64 `json:"artifact_id" description:"Id returned by list_artifacts"`
}

type noArgs struct{}

// toolSurface exposes one report session to the agent runtime. Every
// mutation of the session's blocks goes through it.
type toolSurface struct {
	sess     *Session
	datasets dataset.Store
}

// Tools returns the callable operations bound to sess. datasets may be nil,
// in which case the dataset tools report an error to the model.
func Tools(sess *Session, datasets dataset.Store) []tool.Tool {
	s := &toolSurface{sess: sess, datasets: datasets}

	return []tool.Tool{
		tool.NewFunctionToolFromStruct(ListArtifactsToolName,
			"List saved query results available for the report, newest first.",
			noArgs{}, s.listArtifacts),
		tool.NewFunctionToolFromStruct(GetArtifactDataToolName,
			"Fetch the SQL and result rows of a saved query result.",
			artifactDataArgs{}, s.getArtifactData),
		tool.NewFunctionToolFromStruct(AddTextBlockToolName,
			"Add a markdown text block to the report.",
			textBlockArgs{}, s.addTextBlock),
		tool.NewFunctionToolFromStruct(AddKPIBlockToolName,
			"Add a KPI block showing one headline value.",
			kpiBlockArgs{}, s.addKPIBlock),
		tool.NewFunctionToolFromStruct(AddTableBlockToolName,
			"Add a table block from JSON rows.",
			tableBlockArgs{}, s.addTableBlock),
		tool.NewFunctionToolFromStruct(AddChartBlockToolName,
			"Attach a chart rendered by code execution to the report under the given title.",
			chartBlockArgs{}, s.addChartBlock),
		tool.NewFunctionToolFromStruct(AddBlockToolName,
			"Add a block of any type to the report.",
			blockArgs{}, s.addBlock),
	}
}

func (s *toolSurface) listArtifacts(tc *core.ToolContext, _ map[string]any) (any, error) {
	if s.datasets == nil {
		return map[string]any{"error": "no saved query results are configured"}, nil
	}

	list, err := s.datasets.List(tc.Context())
	if err != nil {
		return map[string]any{"error": err.Error()}, nil
	}

	items := make([]map[string]any, 0, len(list))
	for _, d := range list {
		items = append(items, map[string]any{
			"id":         d.ID,
			"name":       d.Name,
			"created_at": d.CreatedAt,
		})
	}

	return map[string]any{"artifacts": items, "count": len(items)}, nil
}

func (s *toolSurface) getArtifactData(tc *core.ToolContext, args map[string]any) (any, error) {
	id, err := intArg(args, "artifact_id")
	if err != nil {
		return nil, tool.NewToolError(GetArtifactDataToolName, err.Error(), tool.CodeValidation)
	}

	if s.datasets == nil {
		return map[string]any{"error": fmt.Sprintf("Artifact %d not found", id)}, nil
	}

	d, err := s.datasets.Get(tc.Context(), id)
	if errors.Is(err, dataset.ErrNotFound) {
		return map[string]any{"error": fmt.Sprintf("Artifact %d not found", id)}, nil
	}

	if err != nil {
		return map[string]any{"error": err.Error()}, nil
	}

	rows, err := d.Rows()
	if err != nil {
		rows = []any{}
	}

	return map[string]any{
		"id":         d.ID,
		"name":       d.Name,
		"sql":        d.SQL,
		"data":       rows,
		"created_at": d.CreatedAt,
	}, nil
}

func (s *toolSurface) addTextBlock(_ *core.ToolContext, args map[string]any) (any, error) {
	return s.appendBlock(core.BlockText, stringArg(args, "title"), stringArg(args, "content"))
}

func (s *toolSurface) addKPIBlock(_ *core.ToolContext, args map[string]any) (any, error) {
	return s.appendBlock(core.BlockKPI, stringArg(args, "title"), stringArg(args, "value"))
}

func (s *toolSurface) addTableBlock(_ *core.ToolContext, args map[string]any) (any, error) {
	data := stringArg(args, "data")
	if !json.Valid([]byte(data)) {
		return nil, tool.NewToolError(AddTableBlockToolName, "data must be valid JSON", tool.CodeValidation)
	}

	return s.appendBlock(core.BlockTable, stringArg(args, "title"), data)
}

func (s *toolSurface) addChartBlock(_ *core.ToolContext, args map[string]any) (any, error) {
	return s.declareChart(stringArg(args, "title"), stringArg(args, "filename")), nil
}

func (s *toolSurface) addBlock(_ *core.ToolContext, args map[string]any) (any, error) {
	bt, err := core.ParseBlockType(stringArg(args, "block_type"))
	if err != nil {
		return nil, tool.NewToolError(AddBlockToolName, err.Error(), tool.CodeValidation)
	}

	title, content := stringArg(args, "title"), stringArg(args, "content")

	switch bt {
	case core.BlockTable:
		if !json.Valid([]byte(content)) {
			return nil, tool.NewToolError(AddBlockToolName, "table content must be valid JSON", tool.CodeValidation)
		}
	case core.BlockChart:
		if strings.TrimSpace(content) == "" {
			return s.declareChart(title, ""), nil
		}

		if _, err := base64.StdEncoding.DecodeString(content); err != nil {
			return nil, tool.NewToolError(AddBlockToolName, "chart content must be base64 encoded", tool.CodeValidation)
		}
	}

	return s.appendBlock(bt, title, content)
}

func (s *toolSurface) appendBlock(bt core.BlockType, title, content string) (any, error) {
	b := s.sess.acc.Append(bt, title, content)

	return success(b.ID), nil
}

func (s *toolSurface) declareChart(title, hint string) map[string]any {
	b, ok := s.sess.rec.DeclareChart(title, hint)
	if ok {
		return success(b.ID)
	}

	return map[string]any{
		"status":  "pending",
		"pending": true,
		"message": "chart title recorded; it is attached when the rendered image arrives",
	}
}

func success(blockID int) map[string]any {
	return map[string]any{"status": "success", "block_id": blockID}
}

func stringArg(args map[string]any, name string) string {
	switch v := args[name].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func intArg(args map[string]any, name string) (int64, error) {
	switch v := args[name].(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%s must be an integer", name)
		}

		return int64(v), nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("%s is required", name)
	}
}
