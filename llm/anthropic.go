package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/gyasis/smalltalk-sub002/types"
)

// anthropicVersion pins the Anthropic API revision sent with every request.
const anthropicVersion = "2023-06-01"

// DefaultAnthropicConfig returns provider defaults for the Anthropic API.
func DefaultAnthropicConfig() *Config {
	return &Config{
		BaseURL:     "https://api.anthropic.com",
		Model:       "claude-3-5-sonnet-20241022",
		Temperature: 0.3,
		MaxTokens:   1024,
		Timeout:     2 * time.Minute,
	}
}

// AnthropicProvider talks to the Anthropic messages API. The wire format
// differs from OpenAI-compatible endpoints in three ways that matter here:
// authentication uses the x-api-key header rather than a bearer token, the
// system prompt travels as a top-level field instead of a message, and
// max_tokens is mandatory.
type AnthropicProvider struct {
	config  *Config
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

var _ Provider = (*AnthropicProvider)(nil)

// NewAnthropicProvider creates a provider for the Anthropic messages API.
func NewAnthropicProvider(config *Config, logger *zap.Logger) *AnthropicProvider {
	if config == nil {
		config = DefaultAnthropicConfig()
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultAnthropicConfig().BaseURL
	}
	if config.Model == "" {
		config.Model = DefaultAnthropicConfig().Model
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var limiter *rate.Limiter
	if config.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimitRPS), 1)
	}

	return &AnthropicProvider{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		limiter: limiter,
		logger:  logger.With(zap.String("component", "llm_anthropic")),
	}
}

// Name implements Provider.
func (p *AnthropicProvider) Name() string { return "anthropic" }

// anthropicContent is one block of a message. Only text blocks are produced
// or consumed here.
type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	Model   string             `json:"model"`
	Content []anthropicContent `json:"content"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Completion implements Provider.
func (p *AnthropicProvider) Completion(ctx context.Context, req *Request) (*Response, error) {
	if req == nil || req.Prompt == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "empty prompt").WithProvider(p.Name())
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, types.NewError(types.ErrTimeout, "rate limit wait canceled").
				WithProvider(p.Name()).WithCause(err)
		}
	}

	model := req.Model
	if model == "" {
		model = p.config.Model
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = p.config.Temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}
	if maxTokens == 0 {
		// The messages API rejects requests without max_tokens.
		maxTokens = DefaultAnthropicConfig().MaxTokens
	}

	body, err := json.Marshal(anthropicRequest{
		Model: model,
		Messages: []anthropicMessage{{
			Role:    "user",
			Content: []anthropicContent{{Type: "text", Text: req.Prompt}},
		}},
		System:      req.System,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "marshal request").
			WithProvider(p.Name()).WithCause(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.config.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "build request").
			WithProvider(p.Name()).WithCause(err)
	}
	p.setHeaders(httpReq)

	start := time.Now()
	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, p.classifyTransport(err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, 10<<20))
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "read response").
			WithProvider(p.Name()).WithRetryable(true).WithCause(err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, p.classifyStatus(httpResp.StatusCode, data)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "decode response").
			WithProvider(p.Name()).WithRetryable(true).WithCause(err)
	}
	if parsed.Error != nil {
		return nil, types.NewError(types.ErrUpstreamError, parsed.Error.Message).
			WithProvider(p.Name())
	}

	var text string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return nil, types.NewError(types.ErrUpstreamError, "no text content in response").
			WithProvider(p.Name()).WithRetryable(true)
	}

	totalTokens := parsed.Usage.InputTokens + parsed.Usage.OutputTokens
	p.logger.Debug("completion ok",
		zap.String("model", model),
		zap.Duration("latency", time.Since(start)),
		zap.Int("total_tokens", totalTokens),
	)

	return &Response{
		Text:     text,
		Model:    parsed.Model,
		Provider: p.Name(),
		Usage: types.TokenUsage{
			PromptTokens:     parsed.Usage.InputTokens,
			CompletionTokens: parsed.Usage.OutputTokens,
			TotalTokens:      totalTokens,
		},
	}, nil
}

// HealthCheck implements Provider.
func (p *AnthropicProvider) HealthCheck(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.BaseURL+"/v1/models", nil)
	if err != nil {
		return err
	}
	p.setHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return p.classifyTransport(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode >= 500 {
		return types.NewError(types.ErrProviderUnavailable,
			fmt.Sprintf("health check status %d", resp.StatusCode)).
			WithProvider(p.Name()).WithRetryable(true)
	}
	return nil
}

func (p *AnthropicProvider) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("anthropic-version", anthropicVersion)
	if p.config.APIKey != "" {
		req.Header.Set("x-api-key", p.config.APIKey)
	}
}

// classifyTransport maps transport failures onto structured errors.
func (p *AnthropicProvider) classifyTransport(err error) error {
	if errors.Is(err, context.Canceled) {
		return types.NewError(types.ErrTimeout, "request canceled").
			WithProvider(p.Name()).WithCause(err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewError(types.ErrTimeout, "request deadline exceeded").
			WithProvider(p.Name()).WithRetryable(true).WithCause(err)
	}
	return types.NewError(types.ErrProviderUnavailable, "transport failure").
		WithProvider(p.Name()).WithRetryable(true).WithCause(err)
}

// classifyStatus maps HTTP status codes onto structured errors. Anthropic
// additionally uses 529 for overload, which is treated like any 5xx.
func (p *AnthropicProvider) classifyStatus(status int, body []byte) error {
	message := fmt.Sprintf("status %d", status)
	var parsed anthropicResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil {
		message = parsed.Error.Message
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return types.NewError(types.ErrAuthentication, message).
			WithProvider(p.Name()).WithHTTPStatus(status)
	case status == http.StatusTooManyRequests:
		return types.NewError(types.ErrRateLimited, message).
			WithProvider(p.Name()).WithHTTPStatus(status).WithRetryable(true)
	case status == http.StatusBadRequest:
		return types.NewError(types.ErrInvalidRequest, message).
			WithProvider(p.Name()).WithHTTPStatus(status)
	case status >= 500:
		return types.NewError(types.ErrUpstreamError, message).
			WithProvider(p.Name()).WithHTTPStatus(status).WithRetryable(true)
	default:
		return types.NewError(types.ErrUpstreamError, message).
			WithProvider(p.Name()).WithHTTPStatus(status)
	}
}
