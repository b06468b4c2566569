package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapArtifactStore struct {
	mu   sync.Mutex
	data map[string]Artifact
}

func (m *mapArtifactStore) Save(_ context.Context, key SessionKey, a Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string]Artifact{}
	}
	m.data[key.String()+"/"+a.Name] = a
	return nil
}

func (m *mapArtifactStore) Load(_ context.Context, key SessionKey, name string) (Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.data[key.String()+"/"+name]
	if !ok {
		return Artifact{}, fmt.Errorf("missing %s", name)
	}
	return a, nil
}

func (m *mapArtifactStore) ListKeys(_ context.Context, key SessionKey) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	prefix := key.String() + "/"
	for k, a := range m.data {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			names = append(names, a.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *mapArtifactStore) Delete(_ context.Context, key SessionKey, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key.String()+"/"+name)
	return nil
}

func TestSession_ApplyStateDeltaAndClone(t *testing.T) {
	s := NewSession(SessionKey{AppName: "app", UserID: "u", SessionID: "s1"})

	s.ApplyStateDelta(map[string]any{"a": 1, "b": "x"})
	if v, ok := s.GetState("a"); !ok || v.(int) != 1 {
		t.Fatalf("State not applied: %+v", s.State)
	}

	clone := s.Clone()
	if clone == s {
		t.Error("Clone should be a different pointer")
	}

	clone.SetState("c", 2)
	if _, exists := s.GetState("c"); exists {
		t.Error("Original should not have clone's new key")
	}
}

func TestSession_HistorySkipsPartialAndControlEvents(t *testing.T) {
	s := NewSession(SessionKey{SessionID: "s2"})
	partial := true
	p := messageEvent("agent", "frag")
	p.Partial = &partial

	s.AddEvent(NewUserMessageEvent("inv", "hi"))
	s.AddEvent(p)
	s.AddEvent(errorEvent("X", "y"))
	s.AddEvent(messageEvent("agent", "hello"))

	assert.Len(t, s.GetEvents(), 4)
	assert.Len(t, s.GetConversationHistory(), 2)

	all := s.GetEvents()
	all[0].Author = "changed"
	assert.Equal(t, "user", s.GetEvents()[0].Author)
}

func TestSessionKey(t *testing.T) {
	k := SessionKey{AppName: "a", UserID: "u", SessionID: "s"}
	assert.Equal(t, "a/u/s", k.String())
	assert.False(t, k.IsZero())
	assert.True(t, SessionKey{AppName: "a"}.IsZero())
}

func TestToolContext_ArtifactsAndActions(t *testing.T) {
	store := &mapArtifactStore{}
	key := SessionKey{AppName: "app", UserID: "u", SessionID: "s"}
	tc := NewToolContext(context.Background(), key, "code_executor", "fc-1", WithToolArtifactStore(store))

	require.NoError(t, tc.SaveArtifact(Artifact{Name: "chart_1.png", MimeType: "image/png", Data: []byte("img")}))
	names, err := tc.ListArtifacts()
	require.NoError(t, err)
	assert.Equal(t, []string{"chart_1.png"}, names)

	a, err := tc.LoadArtifact("chart_1.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("img"), a.Data)

	tc.SetState("k", "v")
	tc.TransferToAgent("data_tools")

	ev := NewFunctionResponseEvent("report_agent", "fc-1", "transfer_to_agent", nil, nil)
	tc.ApplyActions(&ev)
	require.NotNil(t, ev.Actions.TransferToAgent)
	assert.Equal(t, "data_tools", *ev.Actions.TransferToAgent)
	assert.Equal(t, "v", ev.Actions.StateDelta["k"])
	assert.Equal(t, 3, ev.Actions.ArtifactDelta["chart_1.png"])
}

func TestToolContext_NoArtifactStore(t *testing.T) {
	tc := NewToolContext(context.Background(), SessionKey{SessionID: "s"}, "a", "fc")
	assert.Error(t, tc.SaveArtifact(Artifact{Name: "x"}))
	_, err := tc.ListArtifacts()
	assert.Error(t, err)
}

func TestCallBudget(t *testing.T) {
	b := NewCallBudget(2)
	require.NoError(t, b.Spend())
	assert.Equal(t, 1, b.Remaining())
	require.NoError(t, b.Spend())

	err := b.Spend()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrModelCallLimit))
	assert.Equal(t, 3, b.Used())
	assert.Equal(t, 0, b.Remaining())

	unlimited := NewCallBudget(0)
	for range 50 {
		require.NoError(t, unlimited.Spend())
	}
	assert.Equal(t, -1, unlimited.Remaining())
}

func TestBlock_JSON(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	b := Block{ID: 3, Type: BlockKPI, Title: "Revenue", Content: "$1.2M", CreatedAt: ts}

	raw, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":3,"type":"kpi","title":"Revenue","content":"$1.2M","createdAt":"2024-03-01T10:00:00Z"}`, string(raw))

	var out Block
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, b, out)
}

func TestBlock_DecodesLegacyCreatedAt(t *testing.T) {
	var b Block
	err := json.Unmarshal([]byte(`{"id":1,"type":"text","title":"Intro","content":"# Hi","created_at":"2024-03-01T10:00:00.123456"}`), &b)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 123456000, time.UTC), b.CreatedAt)

	err = json.Unmarshal([]byte(`{"id":1,"type":"text","created_at":"yesterday"}`), &b)
	assert.Error(t, err)
}

func TestParseBlockType(t *testing.T) {
	bt, err := ParseBlockType("chart")
	require.NoError(t, err)
	assert.Equal(t, BlockChart, bt)

	_, err = ParseBlockType("video")
	assert.Error(t, err)
}

func TestDetectMimeType(t *testing.T) {
	assert.Equal(t, "image/png", DetectMimeType("chart_1.png"))
	assert.Equal(t, "application/octet-stream", DetectMimeType("blob"))
}
