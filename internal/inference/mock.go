package inference

import (
	"context"
	"sync"
)

// MockClient is a configurable inference client for tests and wiring
// without a live provider.
type MockClient struct {
	// InferFunc, when set, handles every call.
	InferFunc func(ctx context.Context, req Request) (Result, error)

	// Responses maps a counterparty name to a canned result when
	// InferFunc is nil.
	Responses map[string]Result

	// Default is returned when no canned response matches.
	Default Result

	mu    sync.Mutex
	calls []Request
}

var _ Client = (*MockClient)(nil)

// Infer returns the configured response for the request.
func (m *MockClient) Infer(ctx context.Context, req Request) (Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if m.InferFunc != nil {
		return m.InferFunc(ctx, req)
	}

	if result, ok := m.Responses[req.Counterparty]; ok {
		return result, nil
	}
	return m.Default, nil
}

// Calls returns a copy of all requests seen so far.
func (m *MockClient) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of inference calls made.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
