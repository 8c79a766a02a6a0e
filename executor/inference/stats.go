package inference

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/brensch/othello0/game"
)

type evaluator interface {
	Evaluate(state *game.GameState) ([]float32, float32, error)
}

// RuntimeStats is a snapshot of Counters.
type RuntimeStats struct {
	TotalCalls    int64
	TotalErrors   int64
	TotalRunNanos int64
	AvgRunMs      float64
}

// Counters aggregates evaluator calls. One Counters is usually shared by
// every worker's Counted evaluator.
type Counters struct {
	calls    atomic.Int64
	errors   atomic.Int64
	runNanos atomic.Int64
}

func (c *Counters) Stats() RuntimeStats {
	st := RuntimeStats{
		TotalCalls:    c.calls.Load(),
		TotalErrors:   c.errors.Load(),
		TotalRunNanos: c.runNanos.Load(),
	}
	if st.TotalCalls > 0 {
		st.AvgRunMs = (float64(st.TotalRunNanos) / 1e6) / float64(st.TotalCalls)
	}
	return st
}

// Counted wraps an evaluator and records every call in Counters.
type Counted struct {
	inner    evaluator
	counters *Counters
}

func NewCounted(inner evaluator, counters *Counters) *Counted {
	return &Counted{inner: inner, counters: counters}
}

func (c *Counted) Evaluate(state *game.GameState) ([]float32, float32, error) {
	start := time.Now()
	policy, value, err := c.inner.Evaluate(state)
	c.counters.runNanos.Add(int64(time.Since(start)))
	c.counters.calls.Add(1)
	if err != nil {
		c.counters.errors.Add(1)
	}
	return policy, value, err
}

// Close closes the wrapped evaluator if it holds resources.
func (c *Counted) Close() error {
	if closer, ok := c.inner.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
