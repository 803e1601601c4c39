package llm

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/gyasis/smalltalk-sub002/types"
)

// RetryPolicy configures exponential backoff for provider calls.
type RetryPolicy struct {
	MaxRetries   int           `json:"max_retries"`
	InitialDelay time.Duration `json:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
	Multiplier   float64       `json:"multiplier"`
	// Jitter spreads delays by ±25% so herds of callers do not retry in step.
	Jitter bool `json:"jitter"`
	// OnRetry is invoked before each retry sleep.
	OnRetry func(attempt int, err error, delay time.Duration) `json:"-"`
}

// DefaultRetryPolicy returns the default retry policy.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:   3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// RetryProvider wraps a Provider with retry on retryable errors. Errors the
// inner provider marks non-retryable pass through untouched.
type RetryProvider struct {
	inner  Provider
	policy *RetryPolicy
	logger *zap.Logger
}

var _ Provider = (*RetryProvider)(nil)

// NewRetryProvider wraps inner with the given policy.
func NewRetryProvider(inner Provider, policy *RetryPolicy, logger *zap.Logger) *RetryProvider {
	if policy == nil {
		policy = DefaultRetryPolicy()
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = time.Second
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = 30 * time.Second
	}
	if policy.Multiplier < 1.0 {
		policy.Multiplier = 2.0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryProvider{
		inner:  inner,
		policy: policy,
		logger: logger.With(zap.String("component", "llm_retry")),
	}
}

// Name implements Provider.
func (r *RetryProvider) Name() string { return r.inner.Name() }

// HealthCheck implements Provider. Health probes are not retried.
func (r *RetryProvider) HealthCheck(ctx context.Context) error {
	return r.inner.HealthCheck(ctx)
}

// Completion implements Provider with backoff on retryable failures.
func (r *RetryProvider) Completion(ctx context.Context, req *Request) (*Response, error) {
	var lastErr error

	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.calculateDelay(attempt)

			r.logger.Debug("retrying completion",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", r.policy.MaxRetries),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			if r.policy.OnRetry != nil {
				r.policy.OnRetry(attempt, lastErr, delay)
			}

			select {
			case <-ctx.Done():
				return nil, types.NewError(types.ErrTimeout, "retry canceled").WithCause(ctx.Err())
			case <-time.After(delay):
			}
		}

		resp, err := r.inner.Completion(ctx, req)
		if err == nil {
			if attempt > 0 {
				r.logger.Info("completion succeeded after retry", zap.Int("attempt", attempt))
			}
			return resp, nil
		}

		lastErr = err
		if !types.IsRetryable(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("completion failed after %d retries: %w", r.policy.MaxRetries, lastErr)
}

// calculateDelay computes the exponential backoff delay for an attempt.
func (r *RetryProvider) calculateDelay(attempt int) time.Duration {
	delay := float64(r.policy.InitialDelay) * math.Pow(r.policy.Multiplier, float64(attempt-1))
	if delay > float64(r.policy.MaxDelay) {
		delay = float64(r.policy.MaxDelay)
	}
	if r.policy.Jitter {
		jitter := delay * 0.25
		delay += (rand.Float64()*2 - 1) * jitter
	}
	if delay < float64(r.policy.InitialDelay) {
		delay = float64(r.policy.InitialDelay)
	}
	return time.Duration(delay)
}
