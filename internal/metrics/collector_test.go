package metrics

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/gyasis/smalltalk-sub002/types"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.routingDecisions)
	assert.NotNil(t, collector.routingConfidence)
	assert.NotNil(t, collector.analysisFallbacks)
	assert.NotNil(t, collector.stepsTotal)
	assert.NotNil(t, collector.runsTotal)
	assert.NotNil(t, collector.providerRequests)
	assert.NotNil(t, collector.storeOps)
	assert.NotNil(t, collector.httpRequests)
}

func TestNewCollector_NilLogger(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), nil)
	assert.NotNil(t, collector)
}

func TestCollector_RecordRoutingDecision(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordRoutingDecision("sequential-handoff", true, 0.6)
	collector.RecordRoutingDecision("parallel-experts", false, 0.9)

	count := testutil.CollectAndCount(collector.routingDecisions)
	assert.Equal(t, 2, count)

	confidenceCount := testutil.CollectAndCount(collector.routingConfidence)
	assert.Equal(t, 2, confidenceCount)
}

func TestCollector_RecordAnalysisFallbacks(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordAnalysisFallbacks(3)
	collector.RecordAnalysisFallbacks(0)

	assert.InDelta(t, 3.0, testutil.ToFloat64(collector.analysisFallbacks), 0.001)
}

func TestCollector_RecordStep(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	// Duration unknown: only the counter moves.
	collector.RecordStep("ada", 0)
	assert.Equal(t, 1, testutil.CollectAndCount(collector.stepsTotal))
	assert.Equal(t, 0, testutil.CollectAndCount(collector.stepDuration))

	collector.RecordStep("ada", 2*time.Second)
	assert.Equal(t, 1, testutil.CollectAndCount(collector.stepsTotal))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.stepDuration))
}

func TestCollector_RecordRunAndInterruption(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordRun("sequential-handoff", "completed")
	collector.RecordRun("sequential-handoff", "failed")
	collector.RecordInterruption("pause")
	collector.RecordAdaptation("remove", true)

	assert.Equal(t, 2, testutil.CollectAndCount(collector.runsTotal))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.interruptions))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.adaptations))
}

func TestCollector_RecordProviderRequest(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordProviderRequest("openai", "gpt-4o-mini", "ok", 500*time.Millisecond, types.TokenUsage{
		PromptTokens:     100,
		CompletionTokens: 50,
		Cost:             0.01,
	})

	assert.Greater(t, testutil.CollectAndCount(collector.providerRequests), 0)
	assert.Equal(t, 2, testutil.CollectAndCount(collector.providerTokens))
	assert.Greater(t, testutil.CollectAndCount(collector.providerCost), 0)

	// Zero usage must not create token series.
	collector.RecordProviderRequest("openai", "gpt-4o-mini", "error", 10*time.Millisecond, types.TokenUsage{})
	assert.Equal(t, 2, testutil.CollectAndCount(collector.providerTokens))
}

func TestCollector_RecordStoreOp(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordStoreOp("redis", "load", "ok", 5*time.Millisecond)
	collector.RecordStoreOp("redis", "load", "miss", 3*time.Millisecond)

	assert.Equal(t, 2, testutil.CollectAndCount(collector.storeOps))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.storeOpDuration))
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordHTTPRequest("GET", "/healthz", 200, 10*time.Millisecond)
	collector.RecordHTTPRequest("GET", "/healthz", 503, 5*time.Millisecond)

	assert.Equal(t, 2, testutil.CollectAndCount(collector.httpRequests))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.httpDuration))
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			collector.RecordRoutingDecision("sequential-handoff", false, 0.8)
			collector.RecordStep("ada", 100*time.Millisecond)
			collector.RecordInterruption("stop")
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	assert.Greater(t, testutil.CollectAndCount(collector.routingDecisions), 0)
	assert.Greater(t, testutil.CollectAndCount(collector.stepsTotal), 0)
	assert.Greater(t, testutil.CollectAndCount(collector.interruptions), 0)
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, "2xx", statusCode(204))
	assert.Equal(t, "3xx", statusCode(301))
	assert.Equal(t, "4xx", statusCode(404))
	assert.Equal(t, "5xx", statusCode(502))
	assert.Equal(t, "unknown", statusCode(99))
}
