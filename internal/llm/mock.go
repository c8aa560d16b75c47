package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockInvoker is a scripted Invoker for tests and local debugging; it
// never calls an external model.
//
// Responses are matched by operation prefix. Unmatched operations return
// an empty JSON array, which every plugin treats as "nothing found".
type MockInvoker struct {
	mu sync.Mutex

	// Responses maps an operation prefix to the canned response content
	Responses map[string]string

	// Errors maps an operation prefix to an error to return instead
	Errors map[string]error

	// Calls records every request, in order
	Calls []Request
}

// NewMockInvoker creates an empty mock.
func NewMockInvoker() *MockInvoker {
	return &MockInvoker{
		Responses: map[string]string{},
		Errors:    map[string]error{},
	}
}

// Respond registers a canned response for operations starting with prefix.
func (m *MockInvoker) Respond(prefix, content string) *MockInvoker {
	m.Responses[prefix] = content
	return m
}

// Fail registers an error for operations starting with prefix.
func (m *MockInvoker) Fail(prefix string, err error) *MockInvoker {
	m.Errors[prefix] = err
	return m
}

// Invoke implements Invoker.
func (m *MockInvoker) Invoke(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, req)

	for prefix, err := range m.Errors {
		if strings.HasPrefix(req.Operation, prefix) {
			return nil, fmt.Errorf("mock invoker: %w", err)
		}
	}
	for prefix, content := range m.Responses {
		if strings.HasPrefix(req.Operation, prefix) {
			return &Response{
				Content: content,
				Usage:   Usage{InputTokens: int64(len(req.Prompt) / 4), OutputTokens: int64(len(content) / 4)},
			}, nil
		}
	}

	return &Response{Content: "[]"}, nil
}

// CallCount returns the number of recorded calls.
func (m *MockInvoker) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
