package predict

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_FirstSampleSeeds(t *testing.T) {
	s := NewStore(0.2, nil)
	s.ObserveRun([]string{"Ada"}, "sequential-handoff", Outcome{
		Success:      true,
		ResponseTime: 100 * time.Millisecond,
	})

	m, ok := s.Worker("Ada")
	require.True(t, ok)
	assert.Equal(t, 1, m.Utilization)
	assert.Equal(t, 1.0, m.SuccessRate)
	assert.Equal(t, 0.0, m.InterruptionRate)
	assert.Equal(t, 100*time.Millisecond, m.AvgResponseTime)

	p, ok := s.Pattern("sequential-handoff")
	require.True(t, ok)
	assert.Equal(t, 1, p.Utilization)
}

func TestStore_ExponentialSmoothing(t *testing.T) {
	s := NewStore(0.2, nil)
	s.ObserveRun([]string{"Ada"}, "", Outcome{Success: true, ResponseTime: 100 * time.Millisecond})
	s.ObserveRun([]string{"Ada"}, "", Outcome{Success: false, ResponseTime: 200 * time.Millisecond})

	m, _ := s.Worker("Ada")
	assert.InDelta(t, 0.8, m.SuccessRate, 1e-9, "1.0*(1-0.2) + 0.0*0.2")
	assert.Equal(t, 120*time.Millisecond, m.AvgResponseTime, "100*(1-0.2) + 200*0.2")

	s.ObserveRun([]string{"Ada"}, "", Outcome{Success: false, Interrupted: true})
	m, _ = s.Worker("Ada")
	assert.InDelta(t, 0.64, m.SuccessRate, 1e-9)
	assert.InDelta(t, 0.2, m.InterruptionRate, 1e-9)
	assert.Equal(t, 3, m.Utilization)
}

func TestStore_SatisfactionIndependentOfRuns(t *testing.T) {
	s := NewStore(0.2, nil)
	s.ObserveSatisfaction([]string{"Ada"}, "debate-discussion", 0.9)

	m, ok := s.Worker("Ada")
	require.True(t, ok)
	assert.Equal(t, 0, m.Utilization, "satisfaction alone is not a run")
	assert.Equal(t, 1, m.SatisfactionSamples)
	assert.InDelta(t, 0.9, m.Satisfaction, 1e-9)

	s.ObserveSatisfaction([]string{"Ada"}, "", 0.4)
	m, _ = s.Worker("Ada")
	assert.InDelta(t, 0.8, m.Satisfaction, 1e-9, "0.9*(1-0.2) + 0.4*0.2")
}

func TestStore_SatisfactionClamped(t *testing.T) {
	s := NewStore(0.2, nil)
	s.ObserveSatisfaction([]string{"Ada"}, "", 3.5)
	m, _ := s.Worker("Ada")
	assert.Equal(t, 1.0, m.Satisfaction)

	s2 := NewStore(0.2, nil)
	s2.ObserveSatisfaction([]string{"Ada"}, "", -2)
	m2, _ := s2.Worker("Ada")
	assert.Equal(t, 0.0, m2.Satisfaction)
}

func TestStore_UnknownKey(t *testing.T) {
	s := NewStore(0.2, nil)
	_, ok := s.Worker("nobody")
	assert.False(t, ok)
	_, ok = s.Pattern("no-pattern")
	assert.False(t, ok)
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := NewStore(0.2, nil)
	s.ObserveRun([]string{"Ada"}, "", Outcome{Success: true})

	m, _ := s.Worker("Ada")
	m.SuccessRate = 0

	again, _ := s.Worker("Ada")
	assert.Equal(t, 1.0, again.SuccessRate)
}

func TestStore_TotalRuns(t *testing.T) {
	s := NewStore(0.2, nil)
	s.ObserveRun([]string{"Ada", "Bert"}, "sequential-handoff", Outcome{Success: true})
	s.ObserveRun([]string{"Ada"}, "sequential-handoff", Outcome{Success: true})

	assert.Equal(t, 2, s.TotalRuns(), "one run regardless of worker count")
	m, _ := s.Worker("Ada")
	assert.Equal(t, 2, m.Utilization)
}

func TestNewStore_AlphaBounds(t *testing.T) {
	assert.Equal(t, 0.2, NewStore(0, nil).Alpha())
	assert.Equal(t, 0.2, NewStore(0.9, nil).Alpha())
	assert.Equal(t, 0.05, NewStore(0.01, nil).Alpha())
	assert.Equal(t, 0.3, NewStore(0.3, nil).Alpha())
}
