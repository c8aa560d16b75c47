package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// RetryConfig holds retry configuration for model API calls
type RetryConfig struct {
	MaxRetries        int           // Maximum number of retries (default: 3)
	InitialBackoff    time.Duration // Initial backoff duration (default: 1s)
	MaxBackoff        time.Duration // Maximum backoff duration (default: 30s)
	BackoffMultiplier float64       // Backoff multiplier (default: 2.0)
	Timeout           time.Duration // Per-request timeout (default: 60s)

	// Circuit breaker settings
	CircuitBreakerEnabled bool          // Enable circuit breaker (default: true)
	FailureThreshold      int           // Failures before opening circuit (default: 5)
	SuccessThreshold      int           // Successes in half-open before closing (default: 2)
	OpenTimeout           time.Duration // How long to keep circuit open (default: 30s)

	// Concurrency limit. Model calls are the scarce, rate-limited resource
	// in a run; everything upstream fans out, so the cap lives here.
	MaxConcurrentCalls int // Maximum concurrent model API calls (default: 3, 0 = unlimited)
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:            3,
		InitialBackoff:        1 * time.Second,
		MaxBackoff:            30 * time.Second,
		BackoffMultiplier:     2.0,
		Timeout:               60 * time.Second,
		CircuitBreakerEnabled: true,
		FailureThreshold:      5,
		SuccessThreshold:      2,
		OpenTimeout:           30 * time.Second,
		MaxConcurrentCalls:    3,
	}
}

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // Normal operation, requests pass through
	CircuitOpen                         // Too many failures, block requests (fail fast)
	CircuitHalfOpen                     // Testing recovery, allow limited requests
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "CLOSED"
	case CircuitOpen:
		return "OPEN"
	case CircuitHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// ErrCircuitOpen is returned when the circuit breaker is open
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker implements the circuit breaker pattern to prevent cascading failures
type CircuitBreaker struct {
	mu sync.Mutex

	state            CircuitState
	failureCount     int
	successCount     int
	lastFailureTime  time.Time
	lastStateChange  time.Time
	failureThreshold int
	successThreshold int
	openTimeout      time.Duration
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration
func NewCircuitBreaker(failureThreshold, successThreshold int, openTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:            CircuitClosed,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		openTimeout:      openTimeout,
		lastStateChange:  time.Now(),
	}
}

// Allow checks if a request should be allowed through the circuit breaker.
// Returns an error if the circuit is open and hasn't timed out yet.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return nil

	case CircuitOpen:
		// Check if we should transition to half-open
		if time.Since(cb.lastFailureTime) > cb.openTimeout {
			cb.transitionToHalfOpen()
			return nil
		}
		// Circuit is still open, fail fast
		return ErrCircuitOpen

	case CircuitHalfOpen:
		// In half-open state, allow one request through to probe
		return nil

	default:
		return ErrCircuitOpen
	}
}

// RecordSuccess records a successful request
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		if cb.failureCount > 0 {
			cb.failureCount = 0
		}
	case CircuitHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.transitionToClosed()
		}
	}
}

// RecordFailure records a failed request
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailureTime = time.Now()

	switch cb.state {
	case CircuitClosed:
		cb.failureCount++
		if cb.failureCount >= cb.failureThreshold {
			cb.transitionToOpen()
		}
	case CircuitHalfOpen:
		// Any failure in half-open immediately opens the circuit
		cb.transitionToOpen()
	}
}

// GetMetrics returns current metrics (for monitoring/logging)
func (cb *CircuitBreaker) GetMetrics() (state CircuitState, failures, successes int) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state, cb.failureCount, cb.successCount
}

// transitionToClosed moves the circuit to closed state (must be called with lock held)
func (cb *CircuitBreaker) transitionToClosed() {
	oldState := cb.state
	cb.state = CircuitClosed
	cb.failureCount = 0
	cb.successCount = 0
	cb.lastStateChange = time.Now()
	fmt.Printf("Circuit breaker state transition: %s → %s (failures reset)\n", oldState, cb.state)
}

// transitionToOpen moves the circuit to open state (must be called with lock held)
func (cb *CircuitBreaker) transitionToOpen() {
	oldState := cb.state
	cb.state = CircuitOpen
	cb.successCount = 0
	cb.lastStateChange = time.Now()
	fmt.Printf("Circuit breaker state transition: %s → %s (failures=%d, will reopen in %v)\n",
		oldState, cb.state, cb.failureCount, cb.openTimeout)
}

// transitionToHalfOpen moves the circuit to half-open state (must be called with lock held)
func (cb *CircuitBreaker) transitionToHalfOpen() {
	oldState := cb.state
	cb.state = CircuitHalfOpen
	cb.successCount = 0
	cb.lastStateChange = time.Now()
	fmt.Printf("Circuit breaker state transition: %s → %s (probing for recovery)\n", oldState, cb.state)
}

// guards bundles the client-side protections both backends share: the
// concurrency semaphore, the request-rate limiter, the circuit breaker,
// and retry with exponential backoff.
type guards struct {
	retry   RetryConfig
	breaker *CircuitBreaker
	sem     *semaphore.Weighted
	limiter *rate.Limiter
}

func newGuards(retry RetryConfig, requestsPerSecond float64) *guards {
	if retry.MaxRetries == 0 {
		retry = DefaultRetryConfig()
	}

	g := &guards{retry: retry}

	if retry.CircuitBreakerEnabled {
		g.breaker = NewCircuitBreaker(retry.FailureThreshold, retry.SuccessThreshold, retry.OpenTimeout)
	}
	if retry.MaxConcurrentCalls > 0 {
		g.sem = semaphore.NewWeighted(int64(retry.MaxConcurrentCalls))
	}
	if requestsPerSecond > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}

	return g
}

// do executes an operation with the concurrency cap, rate limit, circuit
// breaker, and retry with exponential backoff. fn receives a context with
// the per-attempt timeout applied.
func (g *guards) do(ctx context.Context, operation string, fn func(context.Context) error) error {
	if g.sem != nil {
		if err := g.sem.Acquire(ctx, 1); err != nil {
			return fmt.Errorf("failed to acquire concurrency slot for %s: %w", operation, err)
		}
		defer g.sem.Release(1)
	}

	var lastErr error
	backoff := g.retry.InitialBackoff

	for attempt := 0; attempt <= g.retry.MaxRetries; attempt++ {
		// Check circuit breaker before attempting the request
		if g.breaker != nil {
			if err := g.breaker.Allow(); err != nil {
				state, failures, _ := g.breaker.GetMetrics()
				fmt.Fprintf(os.Stderr, "model API %s blocked by circuit breaker (state=%s, failures=%d)\n",
					operation, state, failures)
				return fmt.Errorf("%s failed: %w", operation, err)
			}
		}

		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("%s failed: rate limiter wait: %w", operation, err)
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, g.retry.Timeout)
		err := fn(attemptCtx)
		cancel()

		if err == nil {
			if g.breaker != nil {
				g.breaker.RecordSuccess()
			}
			if attempt > 0 {
				fmt.Printf("model API %s succeeded after %d retries\n", operation, attempt)
			}
			return nil
		}

		lastErr = err

		// Non-retriable errors (auth failures, bad requests) shouldn't
		// count against the circuit breaker
		if g.breaker != nil && isRetriableError(err) {
			g.breaker.RecordFailure()
		}

		if !isRetriableError(err) {
			fmt.Fprintf(os.Stderr, "model API %s failed with non-retriable error: %v\n", operation, err)
			return err
		}

		if attempt == g.retry.MaxRetries {
			break
		}

		if ctx.Err() != nil {
			return fmt.Errorf("%s failed: context canceled: %w", operation, ctx.Err())
		}

		fmt.Printf("model API %s failed (attempt %d/%d), retrying in %v: %v\n",
			operation, attempt+1, g.retry.MaxRetries+1, backoff, err)

		select {
		case <-time.After(backoff):
			backoff = time.Duration(float64(backoff) * g.retry.BackoffMultiplier)
			if backoff > g.retry.MaxBackoff {
				backoff = g.retry.MaxBackoff
			}
		case <-ctx.Done():
			return fmt.Errorf("%s failed: context canceled during backoff: %w", operation, ctx.Err())
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, g.retry.MaxRetries+1, lastErr)
}

// isRetriableError determines if an error is retriable (transient)
func isRetriableError(err error) bool {
	if err == nil {
		return false
	}

	// Timed-out attempts are retriable
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// The SDKs wrap HTTP status errors; check the error string for
	// transient status codes
	errStr := err.Error()

	// Rate limits (429) are retriable
	if strings.Contains(errStr, "429") || strings.Contains(errStr, "rate limit") {
		return true
	}

	// Server errors (5xx) are retriable
	if strings.Contains(errStr, "500") || strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") || strings.Contains(errStr, "504") ||
		strings.Contains(errStr, "overloaded") {
		return true
	}

	// Connection errors are retriable
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "EOF") || strings.Contains(errStr, "timeout") {
		return true
	}

	return false
}
