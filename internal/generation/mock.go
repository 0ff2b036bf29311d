package generation

import (
	"context"
	"fmt"
	"sync"
)

// MockStep is one scripted outcome of a MockBackend call.
type MockStep struct {
	Text string
	Err  error
}

// MockBackend returns scripted outcomes in order, then simulated replies.
// It records every request it receives.
type MockBackend struct {
	name string

	mu    sync.Mutex
	steps []MockStep
	calls []Request
}

// NewMockBackend creates a mock backend. With no steps every call succeeds.
func NewMockBackend(name string, steps ...MockStep) *MockBackend {
	if name == "" {
		name = "mock"
	}
	return &MockBackend{name: name, steps: steps}
}

// Name returns the backend's identifier.
func (m *MockBackend) Name() string {
	return m.name
}

// Complete returns the next scripted outcome.
func (m *MockBackend) Complete(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.calls)
	m.calls = append(m.calls, req)
	if n < len(m.steps) {
		step := m.steps[n]
		return step.Text, step.Err
	}

	if req.Input == HealthCheckInput {
		return "2", nil
	}
	model := req.Model
	if model == "" {
		model = "mock-v1"
	}
	return fmt.Sprintf("[%s] simulated reply %d", model, n+1), nil
}

// Calls returns a copy of the requests received so far.
func (m *MockBackend) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of requests received so far.
func (m *MockBackend) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
