package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gyasis/smalltalk-sub002/types"
)

func newChatServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *OpenAIProvider) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	provider := NewOpenAIProvider(&Config{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Model:   "gpt-4",
		Timeout: 5 * time.Second,
	}, zap.NewNop())
	return srv, provider
}

func TestOpenAIProvider_Completion_Success(t *testing.T) {
	var gotAuth string
	var gotBody chatRequest

	_, provider := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-4-0613",
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "OVERALL_MATCH: 82"}},
			},
			"usage": map[string]int{
				"prompt_tokens":     120,
				"completion_tokens": 8,
				"total_tokens":      128,
			},
		})
	})

	resp, err := provider.Completion(context.Background(), &Request{
		System: "You are a routing analyst.",
		Prompt: "Evaluate the team.",
	})
	require.NoError(t, err)

	assert.Equal(t, "OVERALL_MATCH: 82", resp.Text)
	assert.Equal(t, "gpt-4-0613", resp.Model)
	assert.Equal(t, "openai", resp.Provider)
	assert.Equal(t, 128, resp.Usage.TotalTokens)
	assert.False(t, resp.Cached)

	assert.Equal(t, "Bearer test-key", gotAuth)
	require.Len(t, gotBody.Messages, 2)
	assert.Equal(t, "system", gotBody.Messages[0].Role)
	assert.Equal(t, "user", gotBody.Messages[1].Role)
	assert.Equal(t, "gpt-4", gotBody.Model)
}

func TestOpenAIProvider_Completion_EmptyPrompt(t *testing.T) {
	provider := NewOpenAIProvider(nil, nil)

	_, err := provider.Completion(context.Background(), &Request{})
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))
}

func TestOpenAIProvider_Completion_StatusClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCode  types.ErrorCode
		retryable bool
	}{
		{"unauthorized", http.StatusUnauthorized, types.ErrAuthentication, false},
		{"forbidden", http.StatusForbidden, types.ErrAuthentication, false},
		{"rate limited", http.StatusTooManyRequests, types.ErrRateLimited, true},
		{"bad request", http.StatusBadRequest, types.ErrInvalidRequest, false},
		{"server error", http.StatusInternalServerError, types.ErrUpstreamError, true},
		{"bad gateway", http.StatusBadGateway, types.ErrUpstreamError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, provider := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]string{"message": "upstream says no", "type": "test"},
				})
			})

			_, err := provider.Completion(context.Background(), &Request{Prompt: "hi"})
			require.Error(t, err)
			assert.True(t, types.IsErrorCode(err, tt.wantCode), "got %v", err)
			assert.Equal(t, tt.retryable, types.IsRetryable(err))
			assert.Contains(t, err.Error(), "upstream says no")
		})
	}
}

func TestOpenAIProvider_Completion_NoChoices(t *testing.T) {
	_, provider := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	})

	_, err := provider.Completion(context.Background(), &Request{Prompt: "hi"})
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrUpstreamError))
	assert.True(t, types.IsRetryable(err))
}

func TestOpenAIProvider_Completion_TransportFailure(t *testing.T) {
	srv, provider := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	_, err := provider.Completion(context.Background(), &Request{Prompt: "hi"})
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrProviderUnavailable))
	assert.True(t, types.IsRetryable(err))
}

func TestOpenAIProvider_Completion_ContextCanceled(t *testing.T) {
	_, provider := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := provider.Completion(ctx, &Request{Prompt: "hi"})
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrTimeout))
	assert.False(t, types.IsRetryable(err))
}

func TestOpenAIProvider_HealthCheck(t *testing.T) {
	_, healthy := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})
	assert.NoError(t, healthy.HealthCheck(context.Background()))

	_, down := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	err := down.HealthCheck(context.Background())
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrProviderUnavailable))
}
