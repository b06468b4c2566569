package sqlstore

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunara/reportmesh/core"
	"github.com/lunara/reportmesh/dataset"
	"github.com/lunara/reportmesh/internal/testutil"
	"github.com/lunara/reportmesh/report"
	"github.com/lunara/reportmesh/session"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestDatasetStore(t *testing.T) {
	ctx := context.Background()
	ds := openTestStore(t).Datasets()

	base := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)

	rev, err := ds.Save(ctx, dataset.Dataset{Name: "revenue", SQL: "SELECT 1", Data: json.RawMessage(`[{"v":1}]`), CreatedAt: base})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rev.ID)

	_, err = ds.Save(ctx, dataset.Dataset{Name: "churn", CreatedAt: base.Add(time.Hour)})
	require.NoError(t, err)

	_, err = ds.Save(ctx, dataset.Dataset{Name: "bad", Data: json.RawMessage(`{`)})
	assert.Error(t, err)

	list, err := ds.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "churn", list[0].Name)
	assert.Equal(t, base, list[1].CreatedAt)

	got, err := ds.Get(ctx, rev.ID)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", got.SQL)
	assert.JSONEq(t, `[{"v":1}]`, string(got.Data))

	empty, err := ds.Get(ctx, 2)
	require.NoError(t, err)
	rows, err := empty.Rows()
	require.NoError(t, err)
	assert.Equal(t, []any{}, rows)

	_, err = ds.Get(ctx, 404)
	assert.ErrorIs(t, err, dataset.ErrNotFound)
}

func TestDatasetStore_ReadsLegacyTimestamps(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.DB().ExecContext(ctx,
		`INSERT INTO artifacts (name, sql_query, data, created_at) VALUES ('old', 'SELECT 2', '[]', '2024-12-31T23:59:59.123456')`)
	require.NoError(t, err)

	list, err := s.Datasets().List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, time.Date(2024, 12, 31, 23, 59, 59, 123456000, time.UTC), list[0].CreatedAt)
}

func TestReportRepository(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	tick := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	repo := s.Reports()

	q1, err := repo.Create(ctx, "Q1")
	require.NoError(t, err)
	assert.Equal(t, "Q1", q1.Name)
	assert.Empty(t, q1.Blocks)

	q2, err := repo.Create(ctx, "Q2")
	require.NoError(t, err)

	at := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	turn := []core.Block{
		{ID: 1, Type: core.BlockText, Title: "Intro", Content: "hello", CreatedAt: at},
		{ID: 2, Type: core.BlockChart, Title: "Revenue", Content: "YjE=", CreatedAt: at},
	}

	updated, err := repo.AppendBlocks(ctx, q1.ID, turn)
	require.NoError(t, err)
	assert.Len(t, updated.Blocks, 2)

	updated, err = repo.AppendBlocks(ctx, q1.ID, []core.Block{{ID: 3, Type: core.BlockKPI, Title: "Total", Content: "$1M", CreatedAt: at}})
	require.NoError(t, err)
	require.Len(t, updated.Blocks, 3)

	got, err := repo.Get(ctx, q1.ID)
	require.NoError(t, err)
	assert.Equal(t, append(turn, core.Block{ID: 3, Type: core.BlockKPI, Title: "Total", Content: "$1M", CreatedAt: at}), got.Blocks)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, q1.ID, list[0].ID)

	name := "Q2 final"
	renamed, err := repo.Update(ctx, q2.ID, report.Update{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Q2 final", renamed.Name)

	require.NoError(t, repo.Delete(ctx, q2.ID))
	assert.ErrorIs(t, repo.Delete(ctx, q2.ID), report.ErrReportNotFound)

	_, err = repo.Get(ctx, q2.ID)
	assert.ErrorIs(t, err, report.ErrReportNotFound)

	_, err = repo.AppendBlocks(ctx, q2.ID, turn)
	assert.ErrorIs(t, err, report.ErrReportNotFound)
}

func TestReportRepository_DecodesLegacyBlocks(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.DB().ExecContext(ctx,
		`INSERT INTO reports (name, blocks, created_at, updated_at) VALUES ('legacy', ?, '2025-01-01T00:00:00', '2025-01-01T00:00:00')`,
		`[{"id":1,"type":"text","title":"Intro","content":"x","created_at":"2025-01-01T10:00:00.5"}]`)
	require.NoError(t, err)

	rep, err := s.Reports().Get(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rep.Blocks, 1)
	assert.Equal(t, time.Date(2025, 1, 1, 10, 0, 0, 500000000, time.UTC), rep.Blocks[0].CreatedAt)
}

func TestSessionStore(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t).Sessions()
	key := core.SessionKey{AppName: "app", UserID: "ana", SessionID: "report_ana_1"}

	_, err := store.Get(ctx, key)
	assert.ErrorIs(t, err, session.ErrNotFound)

	_, err = store.Create(ctx, key)
	require.NoError(t, err)

	_, err = store.Create(ctx, key)
	assert.ErrorIs(t, err, session.ErrAlreadyExists)

	require.NoError(t, store.AppendEvent(ctx, key, core.NewUserMessageEvent("inv", "Build a report")))
	require.NoError(t, store.AppendEvent(ctx, key, core.NewCodeResultEvent("code_executor", core.OutcomeOK, "done")))
	require.NoError(t, store.AppendEvent(ctx, key, testutil.NewEventBuilder().Author("code_executor").Image("image/png", []byte("b1"), "chart_1.png").Build()))
	require.NoError(t, store.ApplyDelta(ctx, key, map[string]any{"report_name": "Q1"}))
	require.NoError(t, store.ApplyDelta(ctx, key, map[string]any{"turns": 2}))

	sess, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"report_name": "Q1", "turns": 2.0}, sess.State)

	events := sess.GetEvents()
	require.Len(t, events, 3)
	assert.Equal(t, "Build a report", events[0].Content.Text())
	assert.Equal(t, core.CodeExecutionResultPart{Outcome: core.OutcomeOK, Output: "done"}, events[1].Content.Parts[0])
	assert.Equal(t, []byte("b1"), events[2].Content.Parts[0].(core.InlineDataPart).Data)

	missing := core.SessionKey{AppName: "app", UserID: "ana", SessionID: "nope"}
	assert.ErrorIs(t, store.AppendEvent(ctx, missing, core.NewUserMessageEvent("", "x")), session.ErrNotFound)
	assert.ErrorIs(t, store.ApplyDelta(ctx, missing, map[string]any{"a": 1}), session.ErrNotFound)

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.NoError(t, store.Delete(ctx, key))
}
