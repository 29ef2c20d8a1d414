package testutil

import (
	"context"
	"sync"

	"formula-gateway/internal/models"
)

// Reply is one scripted answer of a MockProvider.
type Reply struct {
	Text string
	Err  error
}

// MockProvider implements provider.Provider for testing. Replies are served
// in order; once exhausted the last reply repeats.
type MockProvider struct {
	CompleteFunc func(ctx context.Context, apiKey string, req models.ModelRequest) (string, error)

	mu       sync.Mutex
	replies  []Reply
	requests []models.ModelRequest
	keys     []string
}

// NewMockProvider creates a mock serving the given replies.
func NewMockProvider(replies ...Reply) *MockProvider {
	return &MockProvider{replies: replies}
}

func (m *MockProvider) Name() string {
	return "mock"
}

func (m *MockProvider) Complete(ctx context.Context, apiKey string, req models.ModelRequest) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.keys = append(m.keys, apiKey)
	idx := len(m.requests) - 1
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, apiKey, req)
	}
	if len(m.replies) == 0 {
		return "", nil
	}
	if idx >= len(m.replies) {
		idx = len(m.replies) - 1
	}
	return m.replies[idx].Text, m.replies[idx].Err
}

// Calls returns how many times Complete was invoked.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// LastRequest returns the most recent request, if any.
func (m *MockProvider) LastRequest() (models.ModelRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return models.ModelRequest{}, false
	}
	return m.requests[len(m.requests)-1], true
}

// LastKey returns the API key passed with the most recent call.
func (m *MockProvider) LastKey() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.keys) == 0 {
		return ""
	}
	return m.keys[len(m.keys)-1]
}
