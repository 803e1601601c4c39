package llm

import (
	"context"

	"github.com/gyasis/smalltalk-sub002/types"
)

// Request is a single completion request. The pipeline's analytical prompts
// are self-contained strings, so there is no message history here.
type Request struct {
	Model       string  `json:"model"`
	System      string  `json:"system,omitempty"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// Response is a single completion result.
type Response struct {
	Text     string           `json:"text"`
	Model    string           `json:"model,omitempty"`
	Provider string           `json:"provider,omitempty"`
	Usage    types.TokenUsage `json:"usage,omitempty"`
	// Cached marks responses served from the completion cache.
	Cached bool `json:"cached,omitempty"`
}

// Provider produces text completions. Implementations classify failures into
// *types.Error with an accurate Retryable flag so wrappers can decide what to
// do; they never retry internally.
type Provider interface {
	// Name returns the provider identifier.
	Name() string
	// Completion generates a single text blob for the request.
	Completion(ctx context.Context, req *Request) (*Response, error)
	// HealthCheck verifies the provider is reachable.
	HealthCheck(ctx context.Context) error
}
