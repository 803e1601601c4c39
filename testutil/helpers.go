package testutil

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/gyasis/smalltalk-sub002/events"
)

// ===== Context helpers =====

// TestContext returns a context that expires with a 30 second budget and is
// cancelled when the test finishes.
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestContextWithTimeout returns a test context with a custom timeout.
func TestContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// CancelledContext returns a context that is already cancelled.
func CancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// ===== Async helpers =====

// WaitFor polls condition every 10ms until it returns true or the timeout
// passes, and reports whether the condition held.
func WaitFor(condition func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return condition()
}

// WaitForChannel receives one value from ch or gives up after the timeout.
// The second return reports whether a value arrived.
func WaitForChannel[T any](ch <-chan T, timeout time.Duration) (T, bool) {
	select {
	case v, ok := <-ch:
		return v, ok
	case <-time.After(timeout):
		var zero T
		return zero, false
	}
}

// WaitForEvent discards events from ch until one of the wanted type arrives
// or the timeout passes.
func WaitForEvent(ch <-chan events.Event, want events.Type, timeout time.Duration) (events.Event, bool) {
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events.Event{}, false
			}
			if ev.Type == want {
				return ev, true
			}
		case <-deadline:
			return events.Event{}, false
		}
	}
}

// ===== Event helpers =====

// DrainEvents returns every event currently buffered on ch without blocking.
func DrainEvents(ch <-chan events.Event) []events.Event {
	var drained []events.Event
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return drained
			}
			drained = append(drained, ev)
		default:
			return drained
		}
	}
}

// CollectChunks drains ch and returns the text of each buffered response
// chunk in publication order. Other event types are discarded.
func CollectChunks(ch <-chan events.Event) []string {
	var chunks []string
	for _, ev := range DrainEvents(ch) {
		if ev.Type == events.ResponseChunk {
			chunks = append(chunks, ev.Text)
		}
	}
	return chunks
}

// CollectText drains ch and joins the buffered response chunks into the
// single string a reader of the stream would have seen.
func CollectText(ch <-chan events.Event) string {
	return strings.Join(CollectChunks(ch), "")
}

// ===== Data helpers =====

// MustJSON serializes v and fails the test on error.
func MustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("MustJSON: %v", err)
	}
	return string(data)
}

// MustParseJSON deserializes s into T and fails the test on error.
func MustParseJSON[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("MustParseJSON: %v", err)
	}
	return v
}
