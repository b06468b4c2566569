package observability

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_TurnLifecycle(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.TurnStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveTurns))

	m.TurnFinished("ok", 2.5)
	m.TurnRejected()

	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveTurns))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TurnCounter.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TurnCounter.WithLabelValues("rejected")))
}

func TestMetrics_Blocks(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.BlockCreated("chart")
	m.BlockCreated("chart")
	m.BlockCreated("text")

	expected := `
		# HELP reportmesh_blocks_total Total number of report blocks created by type
		# TYPE reportmesh_blocks_total counter
		reportmesh_blocks_total{type="chart"} 2
		reportmesh_blocks_total{type="text"} 1
	`
	require.NoError(t, testutil.CollectAndCompare(m.BlockCounter, strings.NewReader(expected)))
}

func TestMetrics_Artifacts(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ImageSurfaced("inline")
	m.ImageSurfaced("store")
	m.DuplicateArtifact()
	m.TitlesExpired(2)
	m.TitlesExpired(0)
	m.SweepFailed()
	m.ToolCalled("add_chart_block")

	assert.Equal(t, 2, testutil.CollectAndCount(m.ImageCounter))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DuplicateArtifactCounter))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ExpiredTitleCounter))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SweepErrorCounter))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolCallCounter.WithLabelValues("add_chart_block")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.TurnStarted()
		m.TurnFinished("ok", 1)
		m.BlockCreated("text")
		m.RecordHTTPRequest("GET", "/v1/reports", "200", 0.1)
	})
}

func TestMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)

	assert.Panics(t, func() { NewMetrics(reg) })
}
