package session

import (
	"context"
	"testing"

	"github.com/lunara/reportmesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Interface compliance (compile-time assertion)
var _ core.SessionStore = (*InMemoryStore)(nil)

func TestInMemoryStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	key := core.SessionKey{AppName: "app", UserID: "u", SessionID: "s1"}

	_, err := store.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.AppendEvent(ctx, key, core.NewUserMessageEvent("inv", "hi")), ErrNotFound)

	sess, err := store.Create(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, key, sess.Key)

	_, err = store.Create(ctx, key)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	require.NoError(t, store.AppendEvent(ctx, key, core.NewUserMessageEvent("inv", "hi")))
	require.NoError(t, store.ApplyDelta(ctx, key, map[string]any{"agent": "data_tools"}))

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Len(t, got.Events, 1)
	v, ok := got.GetState("agent")
	assert.True(t, ok)
	assert.Equal(t, "data_tools", v)

	got.AddEvent(core.NewContentEvent("", "x", "assistant", core.TextPart{Text: "mutation"}))
	again, _ := store.Get(ctx, key)
	assert.Len(t, again.Events, 1, "returned sessions are clones")

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
}
