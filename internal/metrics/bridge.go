package metrics

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gyasis/smalltalk-sub002/events"
)

// =============================================================================
// Event bridge
// =============================================================================

// Bridge maps pipeline events onto the Collector's series. Events do not
// carry everything a label set needs, so the bridge keeps a little state per
// live plan: the routed pattern for run counters and step start times for
// duration histograms. State is dropped when the plan finishes.
type Bridge struct {
	collector *Collector
	logger    *zap.Logger

	mu   sync.Mutex
	runs map[string]*runState // keyed by plan id
}

type runState struct {
	pattern     string
	stepStarted map[string]time.Time
}

// NewBridge creates a Bridge feeding collector.
func NewBridge(collector *Collector, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		collector: collector,
		logger:    logger.With(zap.String("component", "metrics_bridge")),
		runs:      make(map[string]*runState),
	}
}

// Consume drains events from ch until it closes or ctx is cancelled. Run it
// on its own goroutine against a bus subscription.
func (b *Bridge) Consume(ctx context.Context, ch <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			b.Handle(event)
		}
	}
}

// Handle records the metrics for a single event.
func (b *Bridge) Handle(event events.Event) {
	switch event.Type {
	case events.RoutingDecision:
		pattern, _ := event.Data["pattern"].(string)
		confidence := asFloat(event.Data["confidence"])
		fallback, _ := event.Data["fallback"].(bool)
		b.collector.RecordRoutingDecision(pattern, fallback, confidence)
		b.collector.RecordAnalysisFallbacks(asInt(event.Data["fallback_analyses"]))
		b.rememberPattern(event.PlanID, pattern)

	case events.PlanStarted:
		pattern, _ := event.Data["pattern"].(string)
		b.rememberPattern(event.PlanID, pattern)

	case events.StepStarted:
		b.markStepStart(event.PlanID, event.StepID, event.Timestamp)

	case events.StepCompleted:
		b.collector.RecordStep(event.Worker, b.takeStepDuration(event.PlanID, event.StepID, event.Timestamp))

	case events.ResponseChunk:
		b.collector.RecordChunk(event.Worker)

	case events.UserInterrupted:
		kind, _ := event.Data["interruption_type"].(string)
		b.collector.RecordInterruption(kind)

	case events.PlanAdapted:
		kind, _ := event.Data["kind"].(string)
		applied, _ := event.Data["applied"].(bool)
		b.collector.RecordAdaptation(kind, applied)

	case events.PlanCompleted:
		b.collector.RecordRun(b.forget(event.PlanID), "completed")

	case events.PlanFailed:
		b.collector.RecordRun(b.forget(event.PlanID), "failed")
	}
}

func (b *Bridge) rememberPattern(planID, pattern string) {
	if planID == "" || pattern == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state(planID).pattern = pattern
}

func (b *Bridge) markStepStart(planID, stepID string, at time.Time) {
	if planID == "" || stepID == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state(planID).stepStarted[stepID] = at
}

// takeStepDuration returns the elapsed time since the step's start event, or
// zero when the bridge never saw the start.
func (b *Bridge) takeStepDuration(planID, stepID string, at time.Time) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	run, ok := b.runs[planID]
	if !ok {
		return 0
	}
	started, ok := run.stepStarted[stepID]
	if !ok {
		return 0
	}
	delete(run.stepStarted, stepID)
	return at.Sub(started)
}

// forget drops the plan's state and returns its pattern for the run counter.
func (b *Bridge) forget(planID string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	run, ok := b.runs[planID]
	if !ok {
		return "unknown"
	}
	delete(b.runs, planID)
	if run.pattern == "" {
		return "unknown"
	}
	return run.pattern
}

// state must be called with b.mu held.
func (b *Bridge) state(planID string) *runState {
	run, ok := b.runs[planID]
	if !ok {
		run = &runState{stepStarted: make(map[string]time.Time)}
		b.runs[planID] = run
	}
	return run
}

// asFloat reads a numeric event payload value. Payloads arriving over the
// wire decode numbers as float64; in-process payloads keep their Go types.
func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}
