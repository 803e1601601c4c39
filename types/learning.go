package types

import (
	"fmt"
	"time"
)

// FeedbackKind classifies how a feedback event reached the system.
type FeedbackKind string

const (
	FeedbackExplicit     FeedbackKind = "explicit"
	FeedbackImplicit     FeedbackKind = "implicit"
	FeedbackInterruption FeedbackKind = "interruption"
	FeedbackSatisfaction FeedbackKind = "satisfaction"
	FeedbackCompletion   FeedbackKind = "completion"
)

// Sentiment is the polarity of a feedback event.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
	SentimentMixed    Sentiment = "mixed"
)

// FeedbackEvent ties one piece of user feedback to a worker and pattern.
type FeedbackEvent struct {
	ID        string       `json:"id"`
	SessionID string       `json:"session_id,omitempty"`
	UserID    string       `json:"user_id"`
	Worker    string       `json:"worker,omitempty"`
	Pattern   string       `json:"pattern,omitempty"`
	Kind      FeedbackKind `json:"kind"`
	Sentiment Sentiment    `json:"sentiment"`
	Message   string       `json:"message,omitempty"`
	// SessionDuration, when set, feeds the session-duration EMA.
	SessionDuration time.Duration `json:"session_duration,omitempty"`
	Timestamp       time.Time     `json:"timestamp"`
}

// BehaviorPattern counts recurring (kind, worker, sentiment) tuples. At three
// occurrences it becomes actionable and carries a generated recommendation.
type BehaviorPattern struct {
	Kind           FeedbackKind `json:"kind"`
	Worker         string       `json:"worker"`
	Sentiment      Sentiment    `json:"sentiment"`
	Occurrences    int          `json:"occurrences"`
	Actionable     bool         `json:"actionable"`
	Recommendation string       `json:"recommendation,omitempty"`
	LastSeen       time.Time    `json:"last_seen"`
}

// PatternKey builds the tuple key for a behavior pattern.
func PatternKey(kind FeedbackKind, worker string, sentiment Sentiment) string {
	return fmt.Sprintf("%s|%s|%s", kind, worker, sentiment)
}

// LearningInsight is a derived observation about a user, such as a
// preference shift between the recent and all-time sentiment ratios.
type LearningInsight struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Kind        string    `json:"kind"`
	Description string    `json:"description"`
	Delta       float64   `json:"delta"`
	CreatedAt   time.Time `json:"created_at"`
}

// InsightPreferenceShift marks a divergence between recent and long-term
// positive-sentiment ratios.
const InsightPreferenceShift = "preference_shift"

// UserBehaviorModel is the durable per-user record of preferences and
// tendencies learned from feedback. Created on first feedback, updated
// incrementally, never deleted.
type UserBehaviorModel struct {
	UserID string `json:"user_id"`

	// Preference scores per worker and per pattern, each in [0,1].
	WorkerPreferences  map[string]float64 `json:"worker_preferences"`
	PatternPreferences map[string]float64 `json:"pattern_preferences"`

	// Exponentially smoothed tendencies.
	InterruptionFrequency float64       `json:"interruption_frequency"`
	AvgSessionDuration    time.Duration `json:"avg_session_duration"`

	// Bounded keyword lists, at most 5 entries, oldest evicted first.
	SatisfactionDrivers []string `json:"satisfaction_drivers,omitempty"`
	FrustrationTriggers []string `json:"frustration_triggers,omitempty"`

	LearningConfidence float64 `json:"learning_confidence"`

	// Sentiment bookkeeping for the preference-shift insight.
	FeedbackCount    int         `json:"feedback_count"`
	PositiveCount    int         `json:"positive_count"`
	RecentSentiments []Sentiment `json:"recent_sentiments,omitempty"` // last 20

	Patterns map[string]*BehaviorPattern `json:"patterns,omitempty"`
	Insights []LearningInsight           `json:"insights,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUserBehaviorModel initializes an empty model for a user.
func NewUserBehaviorModel(userID string) *UserBehaviorModel {
	now := time.Now()
	return &UserBehaviorModel{
		UserID:             userID,
		WorkerPreferences:  make(map[string]float64),
		PatternPreferences: make(map[string]float64),
		Patterns:           make(map[string]*BehaviorPattern),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// Clone returns a deep copy so stores can hand out models without sharing
// mutable state.
func (m *UserBehaviorModel) Clone() *UserBehaviorModel {
	if m == nil {
		return nil
	}
	cp := *m
	cp.WorkerPreferences = make(map[string]float64, len(m.WorkerPreferences))
	for k, v := range m.WorkerPreferences {
		cp.WorkerPreferences[k] = v
	}
	cp.PatternPreferences = make(map[string]float64, len(m.PatternPreferences))
	for k, v := range m.PatternPreferences {
		cp.PatternPreferences[k] = v
	}
	cp.SatisfactionDrivers = append([]string(nil), m.SatisfactionDrivers...)
	cp.FrustrationTriggers = append([]string(nil), m.FrustrationTriggers...)
	cp.RecentSentiments = append([]Sentiment(nil), m.RecentSentiments...)
	cp.Insights = append([]LearningInsight(nil), m.Insights...)
	cp.Patterns = make(map[string]*BehaviorPattern, len(m.Patterns))
	for k, v := range m.Patterns {
		pat := *v
		cp.Patterns[k] = &pat
	}
	return &cp
}

// AdaptationKind names the plan change an adaptation proposes.
type AdaptationKind string

const (
	AdaptReorder  AdaptationKind = "reorder"
	AdaptReplace  AdaptationKind = "replace"
	AdaptInsert   AdaptationKind = "insert"
	AdaptRemove   AdaptationKind = "remove"
	AdaptRedesign AdaptationKind = "redesign"
)

// PlanAdaptation proposes a change to a live plan. Applied only when
// Confidence exceeds the orchestrator's gate; otherwise a silent no-op.
type PlanAdaptation struct {
	Kind                  AdaptationKind `json:"kind"`
	Reason                string         `json:"reason"`
	Confidence            float64        `json:"confidence"`
	AffectedSteps         []string       `json:"affected_steps,omitempty"`
	EstimatedImprovement  float64        `json:"estimated_improvement"`
	RiskLevel             RiskSeverity   `json:"risk_level"`
	PredictedSatisfaction float64        `json:"predicted_satisfaction"`
}
