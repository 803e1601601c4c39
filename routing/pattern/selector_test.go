package pattern

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyasis/smalltalk-sub002/analysis"
	"github.com/gyasis/smalltalk-sub002/llm"
	"github.com/gyasis/smalltalk-sub002/types"
)

// routingStub answers selection prompts and opportunity prompts differently,
// so concurrent opportunity calls cannot race a reply queue.
type routingStub struct {
	mu          sync.Mutex
	selection   string
	opportunity string
	err         error
	calls       int
}

func (r *routingStub) Name() string { return "routing-stub" }

func (r *routingStub) Completion(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()

	if r.err != nil {
		return nil, r.err
	}
	if strings.Contains(req.Prompt, "Template catalog") {
		return &llm.Response{Text: r.selection}, nil
	}
	return &llm.Response{Text: r.opportunity}, nil
}

func (r *routingStub) HealthCheck(ctx context.Context) error { return nil }

func rankedAnalyses(names ...string) []*types.SkillsMatchAnalysis {
	out := make([]*types.SkillsMatchAnalysis, len(names))
	for i, name := range names {
		out[i] = &types.SkillsMatchAnalysis{
			WorkerName:         name,
			OverallMatch:       1.0 - float64(i)*0.1,
			CollaborationScore: 0.6,
			Rank:               i + 1,
		}
	}
	return out
}

func TestSelector_Select_EmptyAnalyses(t *testing.T) {
	s := NewSelector(nil, nil, nil)

	_, err := s.Select(context.Background(), "request", nil)
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrNoSuitableWorker))
}

func TestSelector_Select_HonorsReply(t *testing.T) {
	stub := &routingStub{
		selection: `RECOMMENDED_PATTERN: debate-discussion
SELECTED_WORKERS: Alpha, Beta
CONFIDENCE: 80
REASONING: contested question
ALTERNATIVE_PATTERNS: review-refinement, made-up-pattern
RISK: positions may harden`,
		opportunity: "SYNERGY_SCORE: 70",
	}
	s := NewSelector(analysis.NewAnalyzer(stub), nil, nil)

	rec, err := s.Select(context.Background(), "which database should we pick?",
		rankedAnalyses("Alpha", "Beta", "Gamma"))
	require.NoError(t, err)

	assert.Equal(t, DebateDiscussion, rec.Pattern)
	assert.Equal(t, []string{"Alpha", "Beta"}, rec.Workers)
	assert.InDelta(t, 0.8, rec.Confidence, 1e-9)
	assert.Equal(t, "contested question", rec.Reasoning)
	assert.Equal(t, "positions may harden", rec.Risk)
	assert.False(t, rec.Fallback)

	// Unknown alternatives are dropped, known ones kept.
	assert.Equal(t, []string{ReviewRefinement}, rec.Alternatives)

	// Debate over two workers: five template steps, all bound to Alpha/Beta.
	require.Len(t, rec.Steps, 5)
	var total time.Duration
	for _, step := range rec.Steps {
		assert.Contains(t, []string{"Alpha", "Beta"}, step.Worker)
		total += step.Duration
	}
	assert.Equal(t, total, rec.EstimatedDuration)
}

func TestSelector_Select_UnknownPatternFallsBack(t *testing.T) {
	stub := &routingStub{
		selection:   "RECOMMENDED_PATTERN: round-robin\nSELECTED_WORKERS: Alpha, Beta",
		opportunity: "SYNERGY_SCORE: 70",
	}
	s := NewSelector(analysis.NewAnalyzer(stub), nil, nil)

	rec, err := s.Select(context.Background(), "request", rankedAnalyses("Alpha", "Beta", "Gamma"))
	require.NoError(t, err)

	assert.Equal(t, SequentialHandoff, rec.Pattern)
	assert.Equal(t, []string{"Alpha", "Beta"}, rec.Workers, "top two by rank")
	assert.Equal(t, 0.6, rec.Confidence)
	assert.True(t, rec.Fallback)
}

func TestSelector_Select_UnknownWorkerFallsBack(t *testing.T) {
	stub := &routingStub{
		selection:   "RECOMMENDED_PATTERN: debate-discussion\nSELECTED_WORKERS: Alpha, Nobody",
		opportunity: "SYNERGY_SCORE: 70",
	}
	s := NewSelector(analysis.NewAnalyzer(stub), nil, nil)

	rec, err := s.Select(context.Background(), "request", rankedAnalyses("Alpha", "Beta"))
	require.NoError(t, err)
	assert.True(t, rec.Fallback)
	assert.Equal(t, SequentialHandoff, rec.Pattern)
}

func TestSelector_Select_TooFewWorkersFallsBack(t *testing.T) {
	stub := &routingStub{
		selection:   "RECOMMENDED_PATTERN: debate-discussion\nSELECTED_WORKERS: Alpha",
		opportunity: "SYNERGY_SCORE: 70",
	}
	s := NewSelector(analysis.NewAnalyzer(stub), nil, nil)

	rec, err := s.Select(context.Background(), "request", rankedAnalyses("Alpha", "Beta"))
	require.NoError(t, err)
	assert.True(t, rec.Fallback)
}

func TestSelector_Select_TruncatesOverMax(t *testing.T) {
	stub := &routingStub{
		selection:   "RECOMMENDED_PATTERN: debate-discussion\nSELECTED_WORKERS: A, B, C, D",
		opportunity: "SYNERGY_SCORE: 70",
	}
	s := NewSelector(analysis.NewAnalyzer(stub), nil, nil)

	rec, err := s.Select(context.Background(), "request", rankedAnalyses("A", "B", "C", "D"))
	require.NoError(t, err)

	assert.Equal(t, DebateDiscussion, rec.Pattern)
	assert.Equal(t, []string{"A", "B", "C"}, rec.Workers, "debate caps at three workers")
}

func TestSelector_Select_ProviderErrorFallsBack(t *testing.T) {
	stub := &routingStub{err: types.NewError(types.ErrProviderUnavailable, "down")}
	s := NewSelector(analysis.NewAnalyzer(stub), nil, nil)

	rec, err := s.Select(context.Background(), "request", rankedAnalyses("Alpha", "Beta"))
	require.NoError(t, err, "analysis failure never surfaces")
	assert.True(t, rec.Fallback)
	assert.Equal(t, []string{"Alpha", "Beta"}, rec.Workers)
}

func TestSelector_Select_NilAnalyzer(t *testing.T) {
	s := NewSelector(nil, nil, nil)

	rec, err := s.Select(context.Background(), "request", rankedAnalyses("Alpha"))
	require.NoError(t, err)

	assert.True(t, rec.Fallback)
	assert.Equal(t, []string{"Alpha"}, rec.Workers, "single candidate still routes")
	require.Len(t, rec.Steps, 1)
	assert.NotEmpty(t, rec.Alternatives)
	assert.Equal(t, rec.Steps[0].Duration, rec.EstimatedDuration)
}

func TestSelector_Select_FallbackDeterminism(t *testing.T) {
	s := NewSelector(nil, nil, nil)

	first, err := s.Select(context.Background(), "request", rankedAnalyses("Alpha", "Beta"))
	require.NoError(t, err)
	second, err := s.Select(context.Background(), "request", rankedAnalyses("Alpha", "Beta"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
