package learning

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyasis/smalltalk-sub002/types"
)

func newTestLearner() *Learner {
	return NewLearner(NewMemoryStore(), nil, nil)
}

func feedback(userID, worker, pattern string, kind types.FeedbackKind, sentiment types.Sentiment) *types.FeedbackEvent {
	return &types.FeedbackEvent{
		UserID:    userID,
		Worker:    worker,
		Pattern:   pattern,
		Kind:      kind,
		Sentiment: sentiment,
	}
}

func TestLearner_FirstFeedbackCreatesModel(t *testing.T) {
	ctx := context.Background()
	learner := newTestLearner()

	model, err := learner.Ingest(ctx, feedback("u1", "ada", "sequential-handoff", types.FeedbackExplicit, types.SentimentPositive))
	require.NoError(t, err)

	assert.Equal(t, "u1", model.UserID)
	assert.Equal(t, 1, model.FeedbackCount)
	assert.Equal(t, 1, model.PositiveCount)
	assert.Equal(t, 0.55, model.WorkerPreferences["ada"])
	assert.Equal(t, 0.55, model.PatternPreferences["sequential-handoff"])
	assert.InDelta(t, 0.02, model.LearningConfidence, 1e-9)

	stored, err := learner.Model(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.FeedbackCount)
}

func TestLearner_NegativeFeedbackNudgesDown(t *testing.T) {
	ctx := context.Background()
	learner := newTestLearner()

	model, err := learner.Ingest(ctx, feedback("u1", "bert", "debate-discussion", types.FeedbackExplicit, types.SentimentNegative))
	require.NoError(t, err)

	assert.Equal(t, 0.45, model.WorkerPreferences["bert"])
	assert.Equal(t, 0.45, model.PatternPreferences["debate-discussion"])
	assert.Equal(t, 0, model.PositiveCount)
}

func TestLearner_NeutralFeedbackLeavesPreferences(t *testing.T) {
	ctx := context.Background()
	learner := newTestLearner()

	model, err := learner.Ingest(ctx, feedback("u1", "ada", "solo", types.FeedbackImplicit, types.SentimentNeutral))
	require.NoError(t, err)

	assert.Empty(t, model.WorkerPreferences)
	assert.Empty(t, model.PatternPreferences)
	assert.Equal(t, 1, model.FeedbackCount)
}

func TestLearner_PreferencesClamped(t *testing.T) {
	ctx := context.Background()
	learner := newTestLearner()

	var model *types.UserBehaviorModel
	var err error
	for i := 0; i < 15; i++ {
		model, err = learner.Ingest(ctx, feedback("u1", "ada", "", types.FeedbackExplicit, types.SentimentPositive))
		require.NoError(t, err)
	}
	assert.Equal(t, 1.0, model.WorkerPreferences["ada"])

	for i := 0; i < 30; i++ {
		model, err = learner.Ingest(ctx, feedback("u1", "ada", "", types.FeedbackExplicit, types.SentimentNegative))
		require.NoError(t, err)
	}
	assert.Equal(t, 0.0, model.WorkerPreferences["ada"])
}

func TestLearner_InterruptionFrequencySmoothing(t *testing.T) {
	ctx := context.Background()
	learner := newTestLearner()

	// First event seeds the EMA directly.
	model, err := learner.Ingest(ctx, feedback("u1", "ada", "", types.FeedbackInterruption, types.SentimentNegative))
	require.NoError(t, err)
	assert.Equal(t, 1.0, model.InterruptionFrequency)

	// A calm event decays it: 1.0*0.8 + 0*0.2.
	model, err = learner.Ingest(ctx, feedback("u1", "ada", "", types.FeedbackExplicit, types.SentimentPositive))
	require.NoError(t, err)
	assert.InDelta(t, 0.8, model.InterruptionFrequency, 1e-9)

	model, err = learner.Ingest(ctx, feedback("u1", "ada", "", types.FeedbackInterruption, types.SentimentNegative))
	require.NoError(t, err)
	assert.InDelta(t, 0.84, model.InterruptionFrequency, 1e-9)
}

func TestLearner_SessionDurationSmoothing(t *testing.T) {
	ctx := context.Background()
	learner := newTestLearner()

	first := feedback("u1", "", "", types.FeedbackCompletion, types.SentimentNeutral)
	first.SessionDuration = 5 * time.Minute
	model, err := learner.Ingest(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, model.AvgSessionDuration)

	// 5m*0.8 + 10m*0.2 = 6m.
	second := feedback("u1", "", "", types.FeedbackCompletion, types.SentimentNeutral)
	second.SessionDuration = 10 * time.Minute
	model, err = learner.Ingest(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, 6*time.Minute, model.AvgSessionDuration)

	// Events without a duration leave the average alone.
	model, err = learner.Ingest(ctx, feedback("u1", "ada", "", types.FeedbackExplicit, types.SentimentPositive))
	require.NoError(t, err)
	assert.Equal(t, 6*time.Minute, model.AvgSessionDuration)
}

func TestLearner_SatisfactionKeywords(t *testing.T) {
	ctx := context.Background()
	learner := newTestLearner()

	event := feedback("u1", "ada", "", types.FeedbackSatisfaction, types.SentimentPositive)
	event.Message = "Thanks, this was concise and accurate"
	model, err := learner.Ingest(ctx, event)
	require.NoError(t, err)

	assert.Equal(t, []string{"thanks", "thank", "concise", "accurate"}, model.SatisfactionDrivers)
	assert.Empty(t, model.FrustrationTriggers)
}

func TestLearner_FrustrationKeywords(t *testing.T) {
	ctx := context.Background()
	learner := newTestLearner()

	event := feedback("u1", "bert", "", types.FeedbackExplicit, types.SentimentNegative)
	event.Message = "too slow and the answer was wrong"
	model, err := learner.Ingest(ctx, event)
	require.NoError(t, err)

	assert.Equal(t, []string{"slow", "wrong"}, model.FrustrationTriggers)
	assert.Empty(t, model.SatisfactionDrivers)
}

func TestLearner_MixedFeedbackScansBothVocabularies(t *testing.T) {
	ctx := context.Background()
	learner := newTestLearner()

	event := feedback("u1", "ada", "", types.FeedbackExplicit, types.SentimentMixed)
	event.Message = "great answer but delivery was slow"
	model, err := learner.Ingest(ctx, event)
	require.NoError(t, err)

	assert.Equal(t, []string{"great"}, model.SatisfactionDrivers)
	assert.Equal(t, []string{"slow"}, model.FrustrationTriggers)
}

func TestLearner_KeywordListsEvictOldest(t *testing.T) {
	ctx := context.Background()
	learner := newTestLearner()

	first := feedback("u1", "ada", "", types.FeedbackSatisfaction, types.SentimentPositive)
	first.Message = "thanks, great and perfect"
	_, err := learner.Ingest(ctx, first)
	require.NoError(t, err)

	second := feedback("u1", "ada", "", types.FeedbackSatisfaction, types.SentimentPositive)
	second.Message = "helpful, clear and fast"
	model, err := learner.Ingest(ctx, second)
	require.NoError(t, err)

	// Seven hits total; the two oldest fall off the bounded list.
	assert.Equal(t, []string{"great", "perfect", "helpful", "clear", "fast"}, model.SatisfactionDrivers)
}

func TestLearner_KeywordsNotDuplicated(t *testing.T) {
	ctx := context.Background()
	learner := newTestLearner()

	for i := 0; i < 3; i++ {
		event := feedback("u1", "ada", "", types.FeedbackSatisfaction, types.SentimentPositive)
		event.Message = "very helpful"
		_, err := learner.Ingest(ctx, event)
		require.NoError(t, err)
	}

	model, err := learner.Model(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"helpful"}, model.SatisfactionDrivers)
}

func TestLearner_PatternBecomesActionableAtThree(t *testing.T) {
	ctx := context.Background()
	learner := newTestLearner()

	var model *types.UserBehaviorModel
	var err error
	for i := 0; i < 3; i++ {
		model, err = learner.Ingest(ctx, feedback("u1", "bert", "", types.FeedbackExplicit, types.SentimentNegative))
		require.NoError(t, err)
	}

	key := types.PatternKey(types.FeedbackExplicit, "bert", types.SentimentNegative)
	pat := model.Patterns[key]
	require.NotNil(t, pat)
	assert.Equal(t, 3, pat.Occurrences)
	assert.True(t, pat.Actionable)
	assert.Equal(t, "reduce reliance on bert or pair them with a reviewer", pat.Recommendation)
}

func TestLearner_PatternBelowThresholdNotActionable(t *testing.T) {
	ctx := context.Background()
	learner := newTestLearner()

	var model *types.UserBehaviorModel
	var err error
	for i := 0; i < 2; i++ {
		model, err = learner.Ingest(ctx, feedback("u1", "ada", "", types.FeedbackExplicit, types.SentimentPositive))
		require.NoError(t, err)
	}

	pat := model.Patterns[types.PatternKey(types.FeedbackExplicit, "ada", types.SentimentPositive)]
	require.NotNil(t, pat)
	assert.False(t, pat.Actionable)
	assert.Empty(t, pat.Recommendation)
}

func TestLearner_InterruptionPatternRecommendation(t *testing.T) {
	ctx := context.Background()
	learner := newTestLearner()

	var model *types.UserBehaviorModel
	var err error
	for i := 0; i < 3; i++ {
		model, err = learner.Ingest(ctx, feedback("u1", "ada", "", types.FeedbackInterruption, types.SentimentNegative))
		require.NoError(t, err)
	}

	pat := model.Patterns[types.PatternKey(types.FeedbackInterruption, "ada", types.SentimentNegative)]
	require.NotNil(t, pat)
	assert.Equal(t, "add checkpoints before handing work to ada", pat.Recommendation)
}

func TestLearner_NoWorkerNoPattern(t *testing.T) {
	ctx := context.Background()
	learner := newTestLearner()

	model, err := learner.Ingest(ctx, feedback("u1", "", "", types.FeedbackSatisfaction, types.SentimentPositive))
	require.NoError(t, err)
	assert.Empty(t, model.Patterns)
}

func TestLearner_PreferenceShiftInsight(t *testing.T) {
	ctx := context.Background()
	learner := newTestLearner()

	var model *types.UserBehaviorModel
	var err error
	for i := 0; i < 24; i++ {
		model, err = learner.Ingest(ctx, feedback("u7", "ada", "", types.FeedbackExplicit, types.SentimentPositive))
		require.NoError(t, err)
	}
	for i := 0; i < 20; i++ {
		model, err = learner.Ingest(ctx, feedback("u7", "ada", "", types.FeedbackExplicit, types.SentimentNegative))
		require.NoError(t, err)
	}

	// The recent window went negative while the all-time ratio is still
	// majority positive. One insight records the swing; repeats in the
	// same direction do not stack.
	require.Len(t, model.Insights, 1)
	insight := model.Insights[0]
	assert.Equal(t, types.InsightPreferenceShift, insight.Kind)
	assert.Equal(t, "u7", insight.UserID)
	assert.Less(t, insight.Delta, 0.0)
	assert.NotEmpty(t, insight.Description)
	assert.NotEmpty(t, insight.ID)
}

func TestLearner_NoInsightBeforeWindowFills(t *testing.T) {
	ctx := context.Background()
	learner := newTestLearner()

	var model *types.UserBehaviorModel
	var err error
	for i := 0; i < 10; i++ {
		model, err = learner.Ingest(ctx, feedback("u1", "ada", "", types.FeedbackExplicit, types.SentimentPositive))
		require.NoError(t, err)
	}
	for i := 0; i < 10; i++ {
		model, err = learner.Ingest(ctx, feedback("u1", "ada", "", types.FeedbackExplicit, types.SentimentNegative))
		require.NoError(t, err)
	}

	assert.Empty(t, model.Insights)
}

func TestLearner_RecentSentimentsBounded(t *testing.T) {
	ctx := context.Background()
	learner := newTestLearner()

	var model *types.UserBehaviorModel
	var err error
	for i := 0; i < 30; i++ {
		model, err = learner.Ingest(ctx, feedback("u1", "ada", "", types.FeedbackExplicit, types.SentimentNeutral))
		require.NoError(t, err)
	}

	assert.Len(t, model.RecentSentiments, 20)
	assert.Equal(t, 30, model.FeedbackCount)
}

func TestLearner_LearningConfidenceRamps(t *testing.T) {
	ctx := context.Background()
	learner := newTestLearner()

	var model *types.UserBehaviorModel
	var err error
	for i := 0; i < 25; i++ {
		model, err = learner.Ingest(ctx, feedback("u1", "ada", "", types.FeedbackImplicit, types.SentimentNeutral))
		require.NoError(t, err)
	}
	assert.InDelta(t, 0.5, model.LearningConfidence, 1e-9)

	for i := 0; i < 30; i++ {
		model, err = learner.Ingest(ctx, feedback("u1", "ada", "", types.FeedbackImplicit, types.SentimentNeutral))
		require.NoError(t, err)
	}
	assert.Equal(t, 1.0, model.LearningConfidence)
}

func TestLearner_RejectsEventWithoutUser(t *testing.T) {
	ctx := context.Background()
	learner := newTestLearner()

	_, err := learner.Ingest(ctx, nil)
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))

	_, err = learner.Ingest(ctx, feedback("", "ada", "", types.FeedbackExplicit, types.SentimentPositive))
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))
}

func TestLearner_EventTimestampStampsModel(t *testing.T) {
	ctx := context.Background()
	learner := newTestLearner()

	at := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	event := feedback("u1", "ada", "", types.FeedbackExplicit, types.SentimentPositive)
	event.Timestamp = at

	model, err := learner.Ingest(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, at, model.UpdatedAt)
}
