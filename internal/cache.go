package anttop

import (
	"context"
)

// StateLister lists load test executions
type StateLister interface {
	ExecutionStates(ctx context.Context, page, size int) ([]ExecutionState, error)
}

// Cache keeps the last execution list so the key picker does not hit the
// backend on every redraw
type Cache struct {
	StateLister
	Size int

	states []ExecutionState
}

func (c *Cache) GetStates(ctx context.Context) ([]ExecutionState, error) {
	if c.states == nil {
		states, err := c.StateLister.ExecutionStates(ctx, 1, max(c.Size, 1))
		if err != nil {
			return nil, err
		}
		if states == nil {
			states = []ExecutionState{}
		}
		c.states = states
	}
	return c.states, nil
}

func (c *Cache) NumberOfStates() int {
	return len(c.states)
}

func (c *Cache) MaxKeyLen() int {
	maxKeyLen := 0
	for _, s := range c.states {
		if len(s.LoadTestKey) > maxKeyLen {
			maxKeyLen = len(s.LoadTestKey)
		}
	}
	return maxKeyLen
}

// store replaces the cached list with one fetched elsewhere
func (c *Cache) store(states []ExecutionState) {
	if states == nil {
		states = []ExecutionState{}
	}
	c.states = states
}

func (c *Cache) clear() {
	c.states = nil
}
