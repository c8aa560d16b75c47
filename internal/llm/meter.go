package llm

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrBudgetExhausted is returned by a Meter once its call budget is spent.
// Callers treat it like any other per-item failure: the finding or chunk
// it interrupted is downgraded or skipped, never the whole run.
var ErrBudgetExhausted = errors.New("model call budget exhausted")

// Meter wraps an Invoker with call and token accounting, plus an optional
// hard cap on call count. One Meter per plugin gives per-plugin stats;
// stacking a run-level Meter underneath enforces the run budget.
type Meter struct {
	inner Invoker

	// MaxCalls caps total calls through this meter (0 = unlimited)
	MaxCalls int64

	calls        atomic.Int64
	inputTokens  atomic.Int64
	outputTokens atomic.Int64
}

// NewMeter wraps inner. maxCalls <= 0 means unlimited.
func NewMeter(inner Invoker, maxCalls int64) *Meter {
	return &Meter{inner: inner, MaxCalls: maxCalls}
}

// Invoke implements Invoker.
func (m *Meter) Invoke(ctx context.Context, req Request) (*Response, error) {
	// Reserve the slot atomically so concurrent callers cannot slip past
	// the cap between a check and an increment
	if n := m.calls.Add(1); m.MaxCalls > 0 && n > m.MaxCalls {
		m.calls.Add(-1)
		return nil, fmt.Errorf("%w (limit %d)", ErrBudgetExhausted, m.MaxCalls)
	}

	resp, err := m.inner.Invoke(ctx, req)
	if err != nil {
		return nil, err
	}

	m.inputTokens.Add(resp.Usage.InputTokens)
	m.outputTokens.Add(resp.Usage.OutputTokens)
	return resp, nil
}

// Calls returns the number of calls attempted through this meter.
func (m *Meter) Calls() int64 { return m.calls.Load() }

// Tokens returns cumulative input and output token counts.
func (m *Meter) Tokens() (input, output int64) {
	return m.inputTokens.Load(), m.outputTokens.Load()
}
