package mocks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyasis/smalltalk-sub002/llm"
)

func TestMockProvider_ScriptedResponses(t *testing.T) {
	t.Parallel()

	p := NewMockProvider().WithResponses("first", "second")
	ctx := context.Background()

	resp, err := p.Completion(ctx, &llm.Request{Prompt: "q1"})
	require.NoError(t, err)
	assert.Equal(t, "first", resp.Text)

	resp, err = p.Completion(ctx, &llm.Request{Prompt: "q2"})
	require.NoError(t, err)
	assert.Equal(t, "second", resp.Text)

	// The script is exhausted, so the last entry repeats.
	resp, err = p.Completion(ctx, &llm.Request{Prompt: "q3"})
	require.NoError(t, err)
	assert.Equal(t, "second", resp.Text)

	assert.Equal(t, 3, p.CallCount())
	assert.Equal(t, "q3", p.LastPrompt())
}

func TestMockProvider_FailAfter(t *testing.T) {
	t.Parallel()

	p := NewMockProvider().WithFailAfter(2)
	ctx := context.Background()

	_, err := p.Completion(ctx, &llm.Request{Prompt: "a"})
	require.NoError(t, err)
	_, err = p.Completion(ctx, &llm.Request{Prompt: "b"})
	require.NoError(t, err)
	_, err = p.Completion(ctx, &llm.Request{Prompt: "c"})
	assert.Error(t, err)
}

func TestMockProvider_ErrorInjection(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	p := NewMockProvider().WithError(boom)

	_, err := p.Completion(context.Background(), &llm.Request{Prompt: "q"})
	assert.ErrorIs(t, err, boom)

	calls := p.Calls()
	require.Len(t, calls, 1)
	assert.ErrorIs(t, calls[0].Error, boom)
}

func TestMockProvider_DelayHonorsContext(t *testing.T) {
	t.Parallel()

	p := NewMockProvider().WithDelay(5 * time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.Completion(ctx, &llm.Request{Prompt: "q"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMockProvider_Reset(t *testing.T) {
	t.Parallel()

	p := NewMockProvider().WithResponses("one", "two")
	ctx := context.Background()

	_, err := p.Completion(ctx, &llm.Request{Prompt: "q"})
	require.NoError(t, err)

	p.Reset()
	assert.Zero(t, p.CallCount())

	resp, err := p.Completion(ctx, &llm.Request{Prompt: "q"})
	require.NoError(t, err)
	assert.Equal(t, "one", resp.Text)
}
