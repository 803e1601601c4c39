// MockWorker is a scriptable test double for conversational workers.
//
// It supports fixed replies, scripted reply sequences, capability profiles
// and error injection.
package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gyasis/smalltalk-sub002/types"
)

// MockWorkerCall records a single Respond call.
type MockWorkerCall struct {
	Prompt string
	Shared map[string]string
}

// MockWorker implements types.Worker and types.Profiled with configurable
// behavior. A nil profile makes registration fall back to derivation from
// the worker's name and role.
type MockWorker struct {
	mu sync.Mutex

	name    string
	profile *types.WorkerProfile
	replies []string
	next    int
	err     error

	respondFunc func(ctx context.Context, prompt string, shared map[string]string) (string, error)

	delay     time.Duration
	callCount int
	calls     []MockWorkerCall
}

var (
	_ types.Worker   = (*MockWorker)(nil)
	_ types.Profiled = (*MockWorker)(nil)
)

// NewMockWorker creates a MockWorker that answers with a reply derived from
// its name.
func NewMockWorker(name string) *MockWorker {
	return &MockWorker{
		name:    name,
		replies: []string{fmt.Sprintf("%s: mock reply", name)},
	}
}

// WithReply sets a single fixed reply.
func (w *MockWorker) WithReply(text string) *MockWorker {
	return w.WithReplies(text)
}

// WithReplies scripts a reply sequence. Each call consumes the next entry;
// once the script runs out the last entry repeats.
func (w *MockWorker) WithReplies(texts ...string) *MockWorker {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.replies = texts
	w.next = 0
	return w
}

// WithProfile sets the capability profile returned by Profile.
func (w *MockWorker) WithProfile(profile *types.WorkerProfile) *MockWorker {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.profile = profile
	return w
}

// WithError makes every Respond call fail with err.
func (w *MockWorker) WithError(err error) *MockWorker {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.err = err
	return w
}

// WithDelay makes each Respond call sleep before answering. The sleep honors
// context cancellation.
func (w *MockWorker) WithDelay(d time.Duration) *MockWorker {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.delay = d
	return w
}

// WithRespondFunc overrides response handling entirely.
func (w *MockWorker) WithRespondFunc(fn func(ctx context.Context, prompt string, shared map[string]string) (string, error)) *MockWorker {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.respondFunc = fn
	return w
}

// Name returns the worker's name.
func (w *MockWorker) Name() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.name
}

// Profile returns the configured capability profile, or nil when none was
// set.
func (w *MockWorker) Profile() *types.WorkerProfile {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.profile
}

// Respond answers with the scripted reply or the configured error.
func (w *MockWorker) Respond(ctx context.Context, prompt string, shared map[string]string) (string, error) {
	w.mu.Lock()
	delay := w.delay
	fn := w.respondFunc
	w.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	w.mu.Lock()
	w.callCount++
	w.calls = append(w.calls, MockWorkerCall{
		Prompt: prompt,
		Shared: copyShared(shared),
	})
	err := w.err
	var reply string
	if len(w.replies) > 0 {
		if w.next >= len(w.replies) {
			w.next = len(w.replies) - 1
		}
		reply = w.replies[w.next]
		w.next++
	}
	w.mu.Unlock()

	if fn != nil {
		return fn(ctx, prompt, shared)
	}
	if err != nil {
		return "", err
	}
	return reply, nil
}

// Calls returns a copy of the recorded calls.
func (w *MockWorker) Calls() []MockWorkerCall {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]MockWorkerCall, len(w.calls))
	copy(out, w.calls)
	return out
}

// CallCount returns how many Respond calls were made.
func (w *MockWorker) CallCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.callCount
}

// LastPrompt returns the prompt of the most recent call, or "".
func (w *MockWorker) LastPrompt() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.calls) == 0 {
		return ""
	}
	return w.calls[len(w.calls)-1].Prompt
}

// Reset clears recorded calls and rewinds the reply script.
func (w *MockWorker) Reset() *MockWorker {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = nil
	w.callCount = 0
	w.next = 0
	return w
}

// copyShared snapshots the shared-context map so later mutation by the
// engine does not rewrite recorded calls.
func copyShared(shared map[string]string) map[string]string {
	if shared == nil {
		return nil
	}
	out := make(map[string]string, len(shared))
	for k, v := range shared {
		out[k] = v
	}
	return out
}
