package report

import (
	"sync"
	"time"

	"github.com/lunara/reportmesh/core"
)

// Accumulator is the append-only, ordered block list of one report session.
// Ids and timestamps are assigned under a single lock so both are strictly
// increasing.
type Accumulator struct {
	mu     sync.Mutex
	blocks []core.Block
	lastID int
	lastAt time.Time
	now    func() time.Time
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{now: time.Now}
}

// Append stores a new block and returns it with its id and timestamp set.
func (a *Accumulator) Append(blockType core.BlockType, title, content string) core.Block {
	a.mu.Lock()
	defer a.mu.Unlock()

	at := a.now().UTC()
	if !at.After(a.lastAt) {
		at = a.lastAt.Add(time.Nanosecond)
	}

	a.lastID++
	a.lastAt = at

	b := core.Block{ID: a.lastID, Type: blockType, Title: title, Content: content, CreatedAt: at}
	a.blocks = append(a.blocks, b)

	return b
}

// Snapshot returns a copy of every block in insertion order.
func (a *Accumulator) Snapshot() []core.Block {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]core.Block(nil), a.blocks...)
}

// Len returns the number of blocks.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.blocks)
}

// Mark returns the id of the newest block. Blocks appended later compare
// greater, which is what Since filters on.
func (a *Accumulator) Mark() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.lastID
}

// Since returns the blocks appended after mark was taken.
func (a *Accumulator) Since(mark int) []core.Block {
	return FilterWindow(a.Snapshot(), mark)
}

// Reset drops every block. Numbering and timestamps continue from the last
// block so ids stay unique within the report the session belongs to.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.blocks = nil
}

// FilterWindow keeps blocks whose id is greater than mark.
func FilterWindow(blocks []core.Block, mark int) []core.Block {
	out := make([]core.Block, 0, len(blocks))

	for _, b := range blocks {
		if b.ID > mark {
			out = append(out, b)
		}
	}

	return out
}
