package core

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrModelCallLimit is returned once a turn exceeds its model call budget.
var ErrModelCallLimit = errors.New("model call limit exceeded")

// CallBudget counts model calls within one turn. A zero max is unlimited.
type CallBudget struct {
	max  int64
	used atomic.Int64
}

// NewCallBudget creates a budget allowing max calls.
func NewCallBudget(max int) *CallBudget {
	return &CallBudget{max: int64(max)}
}

// Spend records one call and fails once the budget is exceeded.
func (b *CallBudget) Spend() error {
	n := b.used.Add(1)
	if b.max > 0 && n > b.max {
		return fmt.Errorf("%w: max %d", ErrModelCallLimit, b.max)
	}

	return nil
}

// Used returns the number of calls recorded, including a rejected one.
func (b *CallBudget) Used() int { return int(b.used.Load()) }

// Remaining returns the calls left, or -1 when unlimited.
func (b *CallBudget) Remaining() int {
	if b.max == 0 {
		return -1
	}

	return max(int(b.max-b.used.Load()), 0)
}
