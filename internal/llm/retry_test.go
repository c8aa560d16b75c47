package llm

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:            2,
		InitialBackoff:        time.Millisecond,
		MaxBackoff:            5 * time.Millisecond,
		BackoffMultiplier:     2.0,
		Timeout:               time.Second,
		CircuitBreakerEnabled: false,
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	g := newGuards(testRetryConfig(), 0)

	attempts := 0
	err := g.do(context.Background(), "test_op", func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("503 service unavailable")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryStopsOnNonRetriableError(t *testing.T) {
	g := newGuards(testRetryConfig(), 0)

	attempts := 0
	err := g.do(context.Background(), "test_op", func(ctx context.Context) error {
		attempts++
		return errors.New("401 invalid api key")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts, "no retry on auth failure")
}

func TestRetryExhaustsAttempts(t *testing.T) {
	g := newGuards(testRetryConfig(), 0)

	attempts := 0
	err := g.do(context.Background(), "test_op", func(ctx context.Context) error {
		attempts++
		return errors.New("429 rate limit")
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts, "1 initial + 2 retries")
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, 2, 50*time.Millisecond)

	for i := 0; i < 3; i++ {
		require.NoError(t, cb.Allow(), "request %d should be allowed", i)
		cb.RecordFailure()
	}

	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)

	// After the open timeout the breaker probes in half-open state
	time.Sleep(60 * time.Millisecond)
	require.NoError(t, cb.Allow(), "half-open probe should be allowed")

	// Enough successes close the circuit again
	cb.RecordSuccess()
	cb.RecordSuccess()
	state, _, _ := cb.GetMetrics()
	assert.Equal(t, CircuitClosed, state)
}

func TestCircuitBreakerReopensOnHalfOpenFailure(t *testing.T) {
	cb := NewCircuitBreaker(1, 1, 10*time.Millisecond)

	cb.RecordFailure()
	time.Sleep(15 * time.Millisecond)
	require.NoError(t, cb.Allow(), "half-open probe should be allowed")
	cb.RecordFailure()

	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen, "failure in half-open must reopen the circuit")
}

func TestIsRetriableError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retriable bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"rate limit", errors.New("429 Too Many Requests"), true},
		{"server error", errors.New("HTTP 502 bad gateway"), true},
		{"overloaded", errors.New("anthropic: overloaded_error"), true},
		{"connection reset", errors.New("read tcp: connection reset by peer"), true},
		{"auth", errors.New("401 unauthorized"), false},
		{"bad request", errors.New("400 invalid request body"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retriable, isRetriableError(tt.err))
		})
	}
}

func TestMockInvokerScripting(t *testing.T) {
	mock := NewMockInvoker().
		Respond("math/extract", `[{"expression": "2 + 2 = 5"}]`).
		Fail("spelling", errors.New("model unavailable"))

	resp, err := mock.Invoke(context.Background(), Request{Operation: "math/extract"})
	require.NoError(t, err)
	assert.Equal(t, `[{"expression": "2 + 2 = 5"}]`, resp.Content)

	_, err = mock.Invoke(context.Background(), Request{Operation: "spelling/extract"})
	require.Error(t, err, "expected scripted failure")

	// Unmatched operations yield an empty array
	resp, err = mock.Invoke(context.Background(), Request{Operation: "forecast/extract"})
	require.NoError(t, err)
	assert.Equal(t, "[]", resp.Content)

	assert.Equal(t, 3, mock.CallCount())
}

func TestMeterAccountsAndEnforcesBudget(t *testing.T) {
	meter := NewMeter(NewMockInvoker().Respond("op", "result text here"), 2)

	for i := 0; i < 2; i++ {
		_, err := meter.Invoke(context.Background(), Request{Operation: "op", Prompt: "some prompt"})
		require.NoError(t, err)
	}

	_, err := meter.Invoke(context.Background(), Request{Operation: "op"})
	assert.ErrorIs(t, err, ErrBudgetExhausted)

	assert.Equal(t, int64(2), meter.Calls(), "exhausted attempt is not counted")
	in, out := meter.Tokens()
	assert.Positive(t, in)
	assert.Positive(t, out)
}

func TestMeterBudgetHoldsUnderConcurrency(t *testing.T) {
	mock := NewMockInvoker().Respond("op", "ok")
	meter := NewMeter(mock, 5)

	var wg sync.WaitGroup
	var succeeded atomic.Int64
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := meter.Invoke(context.Background(), Request{Operation: "op"}); err == nil {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(5), succeeded.Load(), "exactly the budgeted calls succeed")
	assert.Equal(t, int64(5), meter.Calls())
	assert.Equal(t, 5, mock.CallCount(), "no call slips past the cap to the backend")
}
