// Package smalltalk provides a top-level convenience entry point for
// assembling a conversation node with minimal boilerplate.
//
// Usage:
//
//	node, err := smalltalk.New(smalltalk.WithOpenAI("gpt-4o-mini"))
//	node, err := smalltalk.New(smalltalk.WithAnthropic("claude-3-5-sonnet-20241022"))
//	node, err := smalltalk.New(smalltalk.WithProvider(myProvider))
//
// A node built with no provider at all is also valid: every routing
// strategy then runs on its deterministic fallback path, which is useful
// for offline development and tests.
package smalltalk

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/gyasis/smalltalk-sub002/learning"
	"github.com/gyasis/smalltalk-sub002/llm"
	"github.com/gyasis/smalltalk-sub002/orchestrator"
)

// Option configures the node created by New.
type Option func(*options)

type options struct {
	provider llm.Provider
	logger   *zap.Logger
	config   *orchestrator.Config
	store    learning.Store

	// Provider shortcut fields, used when provider is nil.
	providerName string
	model        string
	apiKey       string
}

// WithProvider sets a pre-built completion provider.
func WithProvider(p llm.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithOpenAI routes completions through an OpenAI-compatible endpoint
// using the given model. The API key is read from the OPENAI_API_KEY
// environment variable unless WithAPIKey overrides it.
func WithOpenAI(model string) Option {
	return func(o *options) {
		o.providerName = "openai"
		o.model = model
		if o.apiKey == "" {
			o.apiKey = os.Getenv("OPENAI_API_KEY")
		}
	}
}

// WithAnthropic routes completions through the Anthropic messages API
// using the given model. The API key is read from the ANTHROPIC_API_KEY
// environment variable unless WithAPIKey overrides it.
func WithAnthropic(model string) Option {
	return func(o *options) {
		o.providerName = "anthropic"
		o.model = model
		if o.apiKey == "" {
			o.apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
}

// WithModel overrides the model set by a provider shortcut.
func WithModel(model string) Option {
	return func(o *options) { o.model = model }
}

// WithAPIKey overrides the API key for provider shortcuts.
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// WithLogger sets a custom zap logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithConfig overrides the orchestrator tuning.
func WithConfig(cfg orchestrator.Config) Option {
	return func(o *options) { o.config = &cfg }
}

// WithStore persists learned user behavior in the given store instead of
// process memory. The caller keeps ownership of the store and closes it
// after the node.
func WithStore(store learning.Store) Option {
	return func(o *options) { o.store = store }
}

// New assembles a conversation node with minimal configuration.
func New(opts ...Option) (*orchestrator.Orchestrator, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	p := o.provider
	if p == nil && o.providerName != "" {
		if o.apiKey == "" {
			return nil, fmt.Errorf("api key is required for %s: set the environment variable or use WithAPIKey", o.providerName)
		}
		cfg := &llm.Config{APIKey: o.apiKey, Model: o.model}
		switch o.providerName {
		case "anthropic":
			p = llm.NewAnthropicProvider(cfg, o.logger)
		default:
			p = llm.NewOpenAIProvider(cfg, o.logger)
		}
	}
	if p == nil && o.model != "" {
		return nil, fmt.Errorf("model %q needs a provider: use WithOpenAI, WithAnthropic, or WithProvider", o.model)
	}

	var orchOpts []orchestrator.Option
	if o.store != nil {
		orchOpts = append(orchOpts, orchestrator.WithLearner(learning.NewLearner(o.store, nil, o.logger)))
	}
	return orchestrator.New(p, o.config, o.logger, orchOpts...), nil
}
