package dataset

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	first, err := s.Save(ctx, Dataset{Name: "revenue", SQL: "SELECT 1", Data: json.RawMessage(`[{"q":"Q1","v":10}]`), CreatedAt: base})
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.ID)

	second, err := s.Save(ctx, Dataset{Name: "churn", CreatedAt: base.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.ID)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "churn", list[0].Name)
	assert.Equal(t, "revenue", list[1].Name)

	got, err := s.Get(ctx, 1)
	require.NoError(t, err)
	rows, err := got.Rows()
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"q": "Q1", "v": 10.0}}, rows)

	empty, err := s.Get(ctx, 2)
	require.NoError(t, err)
	rows, err = empty.Rows()
	require.NoError(t, err)
	assert.Equal(t, []any{}, rows)

	_, err = s.Get(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRows_InvalidJSON(t *testing.T) {
	_, err := Dataset{Data: json.RawMessage(`{`)}.Rows()
	assert.Error(t, err)
}
