package report

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunara/reportmesh/core"
)

func TestInMemoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	tick := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time {
		tick = tick.Add(time.Minute)
		return tick
	}

	q1, err := repo.Create(ctx, "Q1 review")
	require.NoError(t, err)
	assert.Equal(t, int64(1), q1.ID)
	assert.Empty(t, q1.Blocks)

	q2, err := repo.Create(ctx, "Q2 review")
	require.NoError(t, err)

	turn := []core.Block{{ID: 1, Type: core.BlockText, Title: "Intro"}}
	updated, err := repo.AppendBlocks(ctx, q1.ID, turn)
	require.NoError(t, err)
	require.Len(t, updated.Blocks, 1)

	updated, err = repo.AppendBlocks(ctx, q1.ID, []core.Block{{ID: 2, Type: core.BlockKPI, Title: "Revenue"}})
	require.NoError(t, err)
	assert.Len(t, updated.Blocks, 2)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, q1.ID, list[0].ID)
	assert.Equal(t, q2.ID, list[1].ID)

	name := "Q1 final"
	renamed, err := repo.Update(ctx, q1.ID, Update{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Q1 final", renamed.Name)
	assert.Len(t, renamed.Blocks, 2)

	cleared, err := repo.Update(ctx, q1.ID, Update{Blocks: []core.Block{}})
	require.NoError(t, err)
	assert.Empty(t, cleared.Blocks)

	require.NoError(t, repo.Delete(ctx, q2.ID))
	_, err = repo.Get(ctx, q2.ID)
	assert.ErrorIs(t, err, ErrReportNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, q2.ID), ErrReportNotFound)

	_, err = repo.AppendBlocks(ctx, 99, turn)
	assert.ErrorIs(t, err, ErrReportNotFound)

	_, err = repo.Update(ctx, 99, Update{Name: &name})
	assert.ErrorIs(t, err, ErrReportNotFound)
}

func TestInMemoryRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	rep, err := repo.Create(ctx, "r")
	require.NoError(t, err)
	_, err = repo.AppendBlocks(ctx, rep.ID, []core.Block{{ID: 1, Title: "a"}})
	require.NoError(t, err)

	got, err := repo.Get(ctx, rep.ID)
	require.NoError(t, err)
	got.Blocks[0].Title = "mutated"

	again, err := repo.Get(ctx, rep.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", again.Blocks[0].Title)
}
