package adapt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyasis/smalltalk-sub002/analysis"
	"github.com/gyasis/smalltalk-sub002/llm"
	"github.com/gyasis/smalltalk-sub002/types"
)

type fixedProvider struct {
	reply string
	err   error
}

func (p *fixedProvider) Name() string { return "fixed" }

func (p *fixedProvider) Completion(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &llm.Response{Text: p.reply, Provider: p.Name()}, nil
}

func (p *fixedProvider) HealthCheck(ctx context.Context) error { return p.err }

func runningState() *types.ExecutionState {
	return &types.ExecutionState{
		Plan: &types.ExecutionPlan{
			ID:        "plan-1",
			SessionID: "s1",
			UserID:    "u1",
			Workers:   []string{"ada", "bert"},
			Steps: []types.PlanStep{
				{ID: "step-1", Worker: "ada", Action: "research the topic", Prompt: "dig in"},
				{ID: "step-2", Worker: "bert", Action: "draft the summary", Prompt: "write it up"},
			},
			Pattern:   "sequential-handoff",
			Request:   "summarize the quarterly numbers",
			CreatedAt: time.Now(),
		},
		CurrentStep: 1,
		Status:      types.StatusRunning,
	}
}

func negativeEvent() *types.FeedbackEvent {
	return &types.FeedbackEvent{
		UserID:    "u1",
		SessionID: "s1",
		Worker:    "bert",
		Pattern:   "sequential-handoff",
		Kind:      types.FeedbackExplicit,
		Sentiment: types.SentimentNegative,
		Message:   "this draft misses the point",
		Timestamp: time.Now(),
	}
}

func plannerWith(reply string, err error) *Planner {
	analyzer := analysis.NewAnalyzer(&fixedProvider{reply: reply, err: err})
	return NewPlanner(analyzer, nil, nil)
}

func TestPlanner_ProposesAdaptation(t *testing.T) {
	reply := "ADAPTATION_KIND: replace\n" +
		"CONFIDENCE: 85\n" +
		"REASON: the draft step keeps disappointing this user\n" +
		"AFFECTED_STEPS: step-2\n" +
		"ESTIMATED_IMPROVEMENT: 40\n" +
		"RISK_LEVEL: medium\n" +
		"PREDICTED_SATISFACTION: 70\n"
	planner := plannerWith(reply, nil)

	adaptation := planner.Propose(context.Background(), runningState(), negativeEvent())
	require.NotNil(t, adaptation)

	assert.Equal(t, types.AdaptReplace, adaptation.Kind)
	assert.InDelta(t, 0.85, adaptation.Confidence, 1e-9)
	assert.Equal(t, "the draft step keeps disappointing this user", adaptation.Reason)
	assert.Equal(t, []string{"step-2"}, adaptation.AffectedSteps)
	assert.InDelta(t, 0.40, adaptation.EstimatedImprovement, 1e-9)
	assert.Equal(t, types.SeverityMedium, adaptation.RiskLevel)
	assert.InDelta(t, 0.70, adaptation.PredictedSatisfaction, 1e-9)

	assert.True(t, planner.Accept(adaptation))
}

func TestPlanner_LowConfidenceRejected(t *testing.T) {
	reply := "ADAPTATION_KIND: reorder\nCONFIDENCE: 50\n"
	planner := plannerWith(reply, nil)

	adaptation := planner.Propose(context.Background(), runningState(), negativeEvent())
	require.NotNil(t, adaptation)
	assert.InDelta(t, 0.5, adaptation.Confidence, 1e-9)

	// The proposal exists but must not be applied.
	assert.False(t, planner.Accept(adaptation))
}

func TestPlanner_GateIsExclusive(t *testing.T) {
	reply := "ADAPTATION_KIND: reorder\nCONFIDENCE: 70\n"
	planner := plannerWith(reply, nil)

	adaptation := planner.Propose(context.Background(), runningState(), negativeEvent())
	require.NotNil(t, adaptation)
	assert.False(t, planner.Accept(adaptation), "exactly at the gate must not pass")
}

func TestPlanner_UnknownKindDropped(t *testing.T) {
	reply := "ADAPTATION_KIND: explode\nCONFIDENCE: 90\n"
	planner := plannerWith(reply, nil)

	assert.Nil(t, planner.Propose(context.Background(), runningState(), negativeEvent()))
}

func TestPlanner_AnalysisFailureIsSilentNoOp(t *testing.T) {
	planner := plannerWith("", errors.New("provider offline"))

	assert.Nil(t, planner.Propose(context.Background(), runningState(), negativeEvent()))
}

func TestPlanner_MalformedReplyDropped(t *testing.T) {
	// Missing the required CONFIDENCE field.
	planner := plannerWith("ADAPTATION_KIND: remove\n", nil)

	assert.Nil(t, planner.Propose(context.Background(), runningState(), negativeEvent()))
}

func TestPlanner_UnknownStepsFiltered(t *testing.T) {
	reply := "ADAPTATION_KIND: remove\n" +
		"CONFIDENCE: 80\n" +
		"AFFECTED_STEPS: step-2, step-9, bogus\n"
	planner := plannerWith(reply, nil)

	adaptation := planner.Propose(context.Background(), runningState(), negativeEvent())
	require.NotNil(t, adaptation)
	assert.Equal(t, []string{"step-2"}, adaptation.AffectedSteps)
}

func TestPlanner_RiskDefaultsToLow(t *testing.T) {
	reply := "ADAPTATION_KIND: insert\nCONFIDENCE: 75\nRISK_LEVEL: who knows\n"
	planner := plannerWith(reply, nil)

	adaptation := planner.Propose(context.Background(), runningState(), negativeEvent())
	require.NotNil(t, adaptation)
	assert.Equal(t, types.SeverityLow, adaptation.RiskLevel)
}

func TestPlanner_NilAnalyzerNeverProposes(t *testing.T) {
	planner := NewPlanner(nil, nil, nil)

	assert.Nil(t, planner.Propose(context.Background(), runningState(), negativeEvent()))
}

func TestPlanner_NilStateOrEvent(t *testing.T) {
	planner := plannerWith("ADAPTATION_KIND: reorder\nCONFIDENCE: 90\n", nil)

	assert.Nil(t, planner.Propose(context.Background(), nil, negativeEvent()))
	assert.Nil(t, planner.Propose(context.Background(), runningState(), nil))
	assert.Nil(t, planner.Propose(context.Background(), &types.ExecutionState{}, negativeEvent()))
}

func TestPlanner_CustomGate(t *testing.T) {
	analyzer := analysis.NewAnalyzer(&fixedProvider{reply: "ADAPTATION_KIND: reorder\nCONFIDENCE: 60\n"})
	planner := NewPlanner(analyzer, &Config{ConfidenceGate: 0.5}, nil)

	adaptation := planner.Propose(context.Background(), runningState(), negativeEvent())
	require.NotNil(t, adaptation)
	assert.True(t, planner.Accept(adaptation))
}
