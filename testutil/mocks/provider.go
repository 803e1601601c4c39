// MockProvider is a scriptable test double for the completion provider.
//
// It supports fixed replies, scripted reply sequences and error injection.
package mocks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gyasis/smalltalk-sub002/llm"
	"github.com/gyasis/smalltalk-sub002/types"
)

// MockProviderCall records a single completion call.
type MockProviderCall struct {
	Request  *llm.Request
	Response *llm.Response
	Error    error
}

// MockProvider implements llm.Provider with configurable behavior.
type MockProvider struct {
	mu sync.Mutex

	name      string
	model     string
	responses []string
	next      int
	usage     types.TokenUsage
	err       error
	healthErr error

	completionFunc func(ctx context.Context, req *llm.Request) (*llm.Response, error)

	delay     time.Duration
	failAfter int // fail calls after the Nth
	callCount int

	calls []MockProviderCall
}

var _ llm.Provider = (*MockProvider)(nil)

// NewMockProvider creates a MockProvider with a default response.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		name:      "mock",
		model:     "mock-model",
		responses: []string{"Mock response"},
		usage: types.TokenUsage{
			PromptTokens:     10,
			CompletionTokens: 20,
			TotalTokens:      30,
		},
	}
}

// WithName sets the provider name.
func (m *MockProvider) WithName(name string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.name = name
	return m
}

// WithModel sets the model reported on responses.
func (m *MockProvider) WithModel(model string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.model = model
	return m
}

// WithResponse sets a single fixed reply.
func (m *MockProvider) WithResponse(text string) *MockProvider {
	return m.WithResponses(text)
}

// WithResponses scripts a reply sequence. Each call consumes the next entry;
// once the script runs out the last entry repeats.
func (m *MockProvider) WithResponses(texts ...string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = texts
	m.next = 0
	return m
}

// WithError makes every completion fail with err.
func (m *MockProvider) WithError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithHealthError makes HealthCheck fail with err.
func (m *MockProvider) WithHealthError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthErr = err
	return m
}

// WithTokenUsage sets the usage reported on responses.
func (m *MockProvider) WithTokenUsage(prompt, completion int) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage = types.TokenUsage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
	return m
}

// WithDelay makes each completion sleep before answering. The sleep honors
// context cancellation.
func (m *MockProvider) WithDelay(d time.Duration) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithFailAfter lets the first n calls succeed and fails the rest.
func (m *MockProvider) WithFailAfter(n int) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
	return m
}

// WithCompletionFunc overrides completion handling entirely.
func (m *MockProvider) WithCompletionFunc(fn func(ctx context.Context, req *llm.Request) (*llm.Response, error)) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completionFunc = fn
	return m
}

// Name returns the configured provider name.
func (m *MockProvider) Name() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.name
}

// Completion answers with the scripted reply or the configured error.
func (m *MockProvider) Completion(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.callCount++

	if m.failAfter > 0 && m.callCount > m.failAfter {
		err := errors.New("mock provider: configured to fail after N calls")
		if m.err != nil {
			err = m.err
		}
		m.calls = append(m.calls, MockProviderCall{Request: req, Error: err})
		return nil, err
	}

	if m.err != nil && m.failAfter == 0 {
		m.calls = append(m.calls, MockProviderCall{Request: req, Error: m.err})
		return nil, m.err
	}

	if m.completionFunc != nil {
		resp, err := m.completionFunc(ctx, req)
		m.calls = append(m.calls, MockProviderCall{Request: req, Response: resp, Error: err})
		return resp, err
	}

	text := ""
	if len(m.responses) > 0 {
		if m.next >= len(m.responses) {
			m.next = len(m.responses) - 1
		}
		text = m.responses[m.next]
		m.next++
	}

	model := m.model
	if model == "" && req != nil {
		model = req.Model
	}

	resp := &llm.Response{
		Text:     text,
		Model:    model,
		Provider: m.name,
		Usage:    m.usage,
	}
	m.calls = append(m.calls, MockProviderCall{Request: req, Response: resp})
	return resp, nil
}

// HealthCheck reports the configured health state.
func (m *MockProvider) HealthCheck(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthErr
}

// Calls returns a copy of the recorded calls.
func (m *MockProvider) Calls() []MockProviderCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockProviderCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many completions were attempted.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastPrompt returns the prompt of the most recent call, or "".
func (m *MockProvider) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.calls) - 1; i >= 0; i-- {
		if m.calls[i].Request != nil {
			return m.calls[i].Request.Prompt
		}
	}
	return ""
}

// Reset clears recorded calls and rewinds the reply script.
func (m *MockProvider) Reset() *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.callCount = 0
	m.next = 0
	return m
}
