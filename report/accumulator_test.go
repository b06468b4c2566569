package report

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunara/reportmesh/core"
)

func TestAccumulator_AssignsIncreasingIDsAndTimes(t *testing.T) {
	acc := NewAccumulator()
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	acc.now = func() time.Time { return fixed }

	a := acc.Append(core.BlockText, "Intro", "hello")
	b := acc.Append(core.BlockKPI, "Revenue", "$1M")

	assert.Equal(t, 1, a.ID)
	assert.Equal(t, 2, b.ID)
	assert.True(t, b.CreatedAt.After(a.CreatedAt))
	assert.Equal(t, 2, acc.Len())
}

func TestAccumulator_WindowReturnsOnlyNewBlocks(t *testing.T) {
	acc := NewAccumulator()
	for i := 0; i < 3; i++ {
		acc.Append(core.BlockText, "old", "")
	}

	mark := acc.Mark()
	acc.Append(core.BlockTable, "new 1", "[]")
	acc.Append(core.BlockText, "new 2", "")

	got := acc.Since(mark)
	require.Len(t, got, 2)
	assert.Equal(t, "new 1", got[0].Title)
	assert.Equal(t, "new 2", got[1].Title)
	assert.Len(t, acc.Snapshot(), 5)
}

func TestAccumulator_Reset(t *testing.T) {
	acc := NewAccumulator()
	a := acc.Append(core.BlockText, "a", "")
	acc.Reset()

	assert.Equal(t, 0, acc.Len())
	assert.Equal(t, 1, acc.Mark())

	b := acc.Append(core.BlockText, "b", "")
	assert.Equal(t, 2, b.ID)
	assert.True(t, b.CreatedAt.After(a.CreatedAt))
	assert.Equal(t, []core.Block{b}, acc.Snapshot())
}

func TestAccumulator_ConcurrentAppends(t *testing.T) {
	acc := NewAccumulator()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acc.Append(core.BlockText, "t", "")
		}()
	}
	wg.Wait()

	blocks := acc.Snapshot()
	require.Len(t, blocks, 50)

	for i := 1; i < len(blocks); i++ {
		assert.Equal(t, blocks[i-1].ID+1, blocks[i].ID)
		assert.True(t, blocks[i].CreatedAt.After(blocks[i-1].CreatedAt))
	}
}
