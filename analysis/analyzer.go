package analysis

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gyasis/smalltalk-sub002/llm"
)

const defaultSystemPrompt = "You are a precise multi-agent routing analyst. " +
	"Answer strictly in the requested field format."

// Analyzer runs decision prompts against a text-generation provider and
// validates replies against the decision's schema. Callers treat any returned
// error as the trigger for their deterministic fallback.
type Analyzer struct {
	provider    llm.Provider
	system      string
	model       string
	temperature float64
	maxTokens   int
	logger      *zap.Logger
}

// AnalyzerOption customizes an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithModel overrides the provider's default model.
func WithModel(model string) AnalyzerOption {
	return func(a *Analyzer) { a.model = model }
}

// WithTemperature sets the sampling temperature for decision prompts.
func WithTemperature(t float64) AnalyzerOption {
	return func(a *Analyzer) { a.temperature = t }
}

// WithMaxTokens caps the reply length.
func WithMaxTokens(n int) AnalyzerOption {
	return func(a *Analyzer) { a.maxTokens = n }
}

// WithSystemPrompt replaces the default system prompt.
func WithSystemPrompt(system string) AnalyzerOption {
	return func(a *Analyzer) { a.system = system }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) AnalyzerOption {
	return func(a *Analyzer) { a.logger = logger }
}

// NewAnalyzer creates an Analyzer on top of a provider.
func NewAnalyzer(provider llm.Provider, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		provider:    provider,
		system:      defaultSystemPrompt,
		temperature: 0.3,
		maxTokens:   1024,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With(zap.String("component", "analysis"))
	return a
}

// Decide sends a decision prompt and validates the reply against schema.
// The schema's format instructions are appended to the prompt so every
// component shares one response contract.
func (a *Analyzer) Decide(ctx context.Context, schema *Schema, prompt string) (*Result, error) {
	var sb strings.Builder
	sb.WriteString(prompt)
	if !strings.HasSuffix(prompt, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(schema.PromptInstructions())

	start := time.Now()
	resp, err := a.provider.Completion(ctx, &llm.Request{
		Model:       a.model,
		System:      a.system,
		Prompt:      sb.String(),
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
	})
	if err != nil {
		a.logger.Warn("decision call failed",
			zap.String("decision", schema.Decision()),
			zap.Error(err),
		)
		return nil, err
	}

	result, err := schema.Validate(resp.Text)
	if err != nil {
		a.logger.Warn("decision reply malformed",
			zap.String("decision", schema.Decision()),
			zap.Int("reply_len", len(resp.Text)),
			zap.Error(err),
		)
		return nil, err
	}

	a.logger.Debug("decision ok",
		zap.String("decision", schema.Decision()),
		zap.Duration("latency", time.Since(start)),
		zap.Bool("cached", resp.Cached),
	)
	return result, nil
}
