package predict

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/gyasis/smalltalk-sub002/types"
)

func testExtractor() *Extractor {
	return NewExtractor("", nil, WithTokenCounter(types.NewEstimateTokenizer()))
}

func TestExtract_Basics(t *testing.T) {
	e := testExtractor()
	at := time.Date(2025, 3, 1, 14, 30, 0, 0, time.UTC)

	f := e.Extract("fix this bug in the parser", at, nil, nil)
	assert.Greater(t, f.TokenCount, 0)
	assert.Equal(t, 14, f.HourOfDay)
	assert.Equal(t, "coding", f.RequestType)
	assert.Equal(t, 0.5, f.HistoricalSatisfaction, "neutral prior for unknown users")
	assert.Equal(t, 0.0, f.InterruptionTendency)
}

func TestExtract_RequestTypeBuckets(t *testing.T) {
	e := testExtractor()
	at := time.Now()

	cases := []struct {
		request string
		want    string
	}{
		{"implement a parser for this format", "coding"},
		{"analyze these results", "analysis"},
		{"write a short story about rain", "creative"},
		{"plan the release milestones", "planning"},
		{"critique my essay", "review"},
		{"explain the difference between the two", "question"},
		{"greetings", "general"},
	}
	for _, tc := range cases {
		f := e.Extract(tc.request, at, nil, nil)
		assert.Equal(t, tc.want, f.RequestType, tc.request)
	}
}

func TestExtract_ComplexityMarkers(t *testing.T) {
	e := testExtractor()
	at := time.Now()

	simple := e.Extract("hi", at, nil, nil)
	assert.Less(t, simple.Complexity, 0.3)

	long := strings.Repeat("design a distributed architecture with trade-off analysis ", 80)
	complexReq := e.Extract(long, at, nil, nil)
	assert.GreaterOrEqual(t, complexReq.Complexity, 0.7)
	assert.LessOrEqual(t, complexReq.Complexity, 1.0)
}

func TestExtract_ScoresFromAnalyses(t *testing.T) {
	e := testExtractor()
	analyses := []*types.SkillsMatchAnalysis{
		{WorkerName: "Ada", OverallMatch: 0.8},
		{WorkerName: "Bert", OverallMatch: 0.4},
	}

	f := e.Extract("question", time.Now(), analyses, nil)
	assert.Equal(t, 0.8, f.TopSkillScore)
	assert.InDelta(t, 0.04, f.SkillScoreVariance, 1e-9)
}

func TestExtract_BehaviorTendencies(t *testing.T) {
	e := testExtractor()
	behavior := types.NewUserBehaviorModel("u1")
	behavior.InterruptionFrequency = 0.6
	behavior.FeedbackCount = 4
	behavior.PositiveCount = 3

	f := e.Extract("question", time.Now(), nil, behavior)
	assert.Equal(t, 0.6, f.InterruptionTendency)
	assert.InDelta(t, 0.75, f.HistoricalSatisfaction, 1e-9)
}

func TestVariance_Degenerate(t *testing.T) {
	assert.Equal(t, 0.0, variance(nil))
	assert.Equal(t, 0.0, variance([]float64{0.7}))
	assert.Equal(t, 0.0, variance([]float64{0.5, 0.5, 0.5}))
}

func TestTiktokenCounter_FallsBackWhenUnavailable(t *testing.T) {
	c := newTiktokenCounter("no-such-encoding", zap.NewNop())

	n := c.CountTokens("four score and seven years ago")
	assert.Greater(t, n, 0, "estimator keeps counting when the encoding is missing")
}
