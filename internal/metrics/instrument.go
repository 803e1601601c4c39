package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/gyasis/smalltalk-sub002/learning"
	"github.com/gyasis/smalltalk-sub002/llm"
	"github.com/gyasis/smalltalk-sub002/types"
)

// =============================================================================
// Provider instrumentation
// =============================================================================

// InstrumentedProvider wraps a Provider and records request counts, latency,
// token usage and cost for every completion.
type InstrumentedProvider struct {
	inner     llm.Provider
	collector *Collector
}

var _ llm.Provider = (*InstrumentedProvider)(nil)

// InstrumentProvider wraps inner so its completions feed collector.
func InstrumentProvider(inner llm.Provider, collector *Collector) *InstrumentedProvider {
	return &InstrumentedProvider{inner: inner, collector: collector}
}

// Name returns the wrapped provider's identifier.
func (p *InstrumentedProvider) Name() string {
	return p.inner.Name()
}

// Completion delegates to the wrapped provider and records the outcome.
func (p *InstrumentedProvider) Completion(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	var model string
	if req != nil {
		model = req.Model
	}

	start := time.Now()
	resp, err := p.inner.Completion(ctx, req)

	status := "ok"
	var usage types.TokenUsage
	switch {
	case err != nil:
		status = "error"
	case resp != nil:
		usage = resp.Usage
		if resp.Cached {
			status = "cached"
		}
		if resp.Model != "" {
			model = resp.Model
		}
	}
	p.collector.RecordProviderRequest(p.inner.Name(), model, status, time.Since(start), usage)

	return resp, err
}

// HealthCheck delegates to the wrapped provider.
func (p *InstrumentedProvider) HealthCheck(ctx context.Context) error {
	return p.inner.HealthCheck(ctx)
}

// =============================================================================
// Store instrumentation
// =============================================================================

// InstrumentedStore wraps a behavior store and records per-operation counts
// and latency. A missing model counts as a miss, not an error.
type InstrumentedStore struct {
	inner     learning.Store
	backend   string
	collector *Collector
}

var _ learning.Store = (*InstrumentedStore)(nil)

// InstrumentStore wraps inner so its operations feed collector. backend
// labels the series, typically the configured store driver name.
func InstrumentStore(inner learning.Store, backend string, collector *Collector) *InstrumentedStore {
	return &InstrumentedStore{inner: inner, backend: backend, collector: collector}
}

// Load reads a model through the wrapped store.
func (s *InstrumentedStore) Load(ctx context.Context, userID string) (*types.UserBehaviorModel, error) {
	start := time.Now()
	model, err := s.inner.Load(ctx, userID)
	status := "ok"
	switch {
	case errors.Is(err, learning.ErrModelNotFound):
		status = "miss"
	case err != nil:
		status = "error"
	}
	s.collector.RecordStoreOp(s.backend, "load", status, time.Since(start))
	return model, err
}

// Save writes a model through the wrapped store.
func (s *InstrumentedStore) Save(ctx context.Context, model *types.UserBehaviorModel) error {
	start := time.Now()
	err := s.inner.Save(ctx, model)
	s.collector.RecordStoreOp(s.backend, "save", opStatus(err), time.Since(start))
	return err
}

// Users lists stored user ids through the wrapped store.
func (s *InstrumentedStore) Users(ctx context.Context) ([]string, error) {
	start := time.Now()
	users, err := s.inner.Users(ctx)
	s.collector.RecordStoreOp(s.backend, "list", opStatus(err), time.Since(start))
	return users, err
}

// Ping checks the wrapped store's backend.
func (s *InstrumentedStore) Ping(ctx context.Context) error {
	start := time.Now()
	err := s.inner.Ping(ctx)
	s.collector.RecordStoreOp(s.backend, "ping", opStatus(err), time.Since(start))
	return err
}

// Close releases the wrapped store's resources.
func (s *InstrumentedStore) Close() error {
	return s.inner.Close()
}

func opStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
