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

// Config configures the OpenAI-compatible provider.
type Config struct {
	BaseURL     string        `json:"base_url"`
	APIKey      string        `json:"api_key"`
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Timeout     time.Duration `json:"timeout"`
	// RateLimitRPS throttles outbound calls. Zero disables throttling.
	RateLimitRPS float64 `json:"rate_limit_rps"`
}

// DefaultConfig returns sensible provider defaults.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:     "https://api.openai.com/v1",
		Model:       "gpt-4",
		Temperature: 0.3,
		MaxTokens:   1024,
		Timeout:     2 * time.Minute,
	}
}

// OpenAIProvider talks to any OpenAI-compatible chat completion endpoint.
type OpenAIProvider struct {
	config  *Config
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

var _ Provider = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates a provider for an OpenAI-compatible endpoint.
func NewOpenAIProvider(config *Config, logger *zap.Logger) *OpenAIProvider {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultConfig().BaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var limiter *rate.Limiter
	if config.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimitRPS), 1)
	}

	return &OpenAIProvider{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		limiter: limiter,
		logger:  logger.With(zap.String("component", "llm_openai")),
	}
}

// Name implements Provider.
func (p *OpenAIProvider) Name() string { return "openai" }

// chatMessage mirrors the wire format of /chat/completions.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Completion implements Provider.
func (p *OpenAIProvider) Completion(ctx context.Context, req *Request) (*Response, error) {
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

	var messages []chatMessage
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "marshal request").
			WithProvider(p.Name()).WithCause(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "build request").
			WithProvider(p.Name()).WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}

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

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "decode response").
			WithProvider(p.Name()).WithRetryable(true).WithCause(err)
	}
	if parsed.Error != nil {
		return nil, types.NewError(types.ErrUpstreamError, parsed.Error.Message).
			WithProvider(p.Name())
	}
	if len(parsed.Choices) == 0 {
		return nil, types.NewError(types.ErrUpstreamError, "no choices in response").
			WithProvider(p.Name()).WithRetryable(true)
	}

	p.logger.Debug("completion ok",
		zap.String("model", model),
		zap.Duration("latency", time.Since(start)),
		zap.Int("total_tokens", parsed.Usage.TotalTokens),
	)

	return &Response{
		Text:     parsed.Choices[0].Message.Content,
		Model:    parsed.Model,
		Provider: p.Name(),
		Usage: types.TokenUsage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
	}, nil
}

// HealthCheck implements Provider.
func (p *OpenAIProvider) HealthCheck(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.BaseURL+"/models", nil)
	if err != nil {
		return err
	}
	if p.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}

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

// classifyTransport maps transport failures onto structured errors.
func (p *OpenAIProvider) classifyTransport(err error) error {
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

// classifyStatus maps HTTP status codes onto structured errors.
func (p *OpenAIProvider) classifyStatus(status int, body []byte) error {
	message := fmt.Sprintf("status %d", status)
	var parsed chatResponse
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
