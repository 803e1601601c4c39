package learning

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gyasis/smalltalk-sub002/types"
)

// Config controls the learner's update rules.
type Config struct {
	// PreferenceStep is the nudge applied to a worker or pattern
	// preference per feedback event.
	PreferenceStep float64 `json:"preference_step" yaml:"preference_step"`

	// MaxKeywords bounds the satisfaction-driver and frustration-trigger lists.
	MaxKeywords int `json:"max_keywords" yaml:"max_keywords"`

	// PatternThreshold is the occurrence count at which a
	// (kind, worker, sentiment) tuple becomes an actionable pattern.
	PatternThreshold int `json:"pattern_threshold" yaml:"pattern_threshold"`

	// RecentWindow is how many sentiments feed the shift comparison.
	RecentWindow int `json:"recent_window" yaml:"recent_window"`

	// ShiftThreshold is the recent-vs-all-time divergence that emits
	// a preference-shift insight.
	ShiftThreshold float64 `json:"shift_threshold" yaml:"shift_threshold"`

	// MaxInsights bounds the stored insight history.
	MaxInsights int `json:"max_insights" yaml:"max_insights"`

	// Alpha is the smoothing factor for the tendency EMAs.
	Alpha float64 `json:"alpha" yaml:"alpha"`

	// ConfidenceRamp is the feedback count at which learning
	// confidence reaches 1.0.
	ConfidenceRamp int `json:"confidence_ramp" yaml:"confidence_ramp"`
}

// DefaultConfig returns the standard learner tuning.
func DefaultConfig() *Config {
	return &Config{
		PreferenceStep:   0.05,
		MaxKeywords:      5,
		PatternThreshold: 3,
		RecentWindow:     20,
		ShiftThreshold:   0.3,
		MaxInsights:      10,
		Alpha:            0.2,
		ConfidenceRamp:   50,
	}
}

// Keyword vocabularies scanned against feedback messages.
var (
	satisfactionKeywords = []string{
		"thanks", "thank", "great", "perfect", "helpful",
		"clear", "fast", "detailed", "concise", "accurate",
	}
	frustrationKeywords = []string{
		"slow", "wrong", "confusing", "repetitive", "vague",
		"verbose", "off-topic", "stop", "incorrect", "unhelpful",
	}
)

// Learner folds feedback events into durable per-user behavior models.
type Learner struct {
	store  Store
	config *Config
	logger *zap.Logger
}

// NewLearner creates a learner backed by the given store.
func NewLearner(store Store, config *Config, logger *zap.Logger) *Learner {
	if store == nil {
		store = NewMemoryStore()
	}
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Learner{
		store:  store,
		config: config,
		logger: logger.With(zap.String("component", "feedback_learner")),
	}
}

// Store exposes the backing store, mainly for query surfaces.
func (l *Learner) Store() Store {
	return l.store
}

// Model returns the current behavior model for a user.
func (l *Learner) Model(ctx context.Context, userID string) (*types.UserBehaviorModel, error) {
	return l.store.Load(ctx, userID)
}

// Ingest folds one feedback event into the user's behavior model and
// persists the result. A model is created on the user's first event.
func (l *Learner) Ingest(ctx context.Context, event *types.FeedbackEvent) (*types.UserBehaviorModel, error) {
	if event == nil || event.UserID == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "feedback event requires a user id")
	}

	model, err := l.store.Load(ctx, event.UserID)
	if errors.Is(err, ErrModelNotFound) {
		model = types.NewUserBehaviorModel(event.UserID)
	} else if err != nil {
		return nil, fmt.Errorf("failed to load behavior model: %w", err)
	}

	now := event.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	l.apply(model, event, now)

	if err := l.store.Save(ctx, model); err != nil {
		return nil, fmt.Errorf("failed to save behavior model: %w", err)
	}

	l.logger.Debug("feedback ingested",
		zap.String("user_id", event.UserID),
		zap.String("kind", string(event.Kind)),
		zap.String("sentiment", string(event.Sentiment)),
		zap.Int("feedback_count", model.FeedbackCount))

	return model, nil
}

// apply mutates the model in place with every update rule.
func (l *Learner) apply(model *types.UserBehaviorModel, event *types.FeedbackEvent, now time.Time) {
	first := model.FeedbackCount == 0

	delta := 0.0
	switch event.Sentiment {
	case types.SentimentPositive:
		delta = l.config.PreferenceStep
	case types.SentimentNegative:
		delta = -l.config.PreferenceStep
	}
	if delta != 0 {
		if event.Worker != "" {
			nudge(model.WorkerPreferences, event.Worker, delta)
		}
		if event.Pattern != "" {
			nudge(model.PatternPreferences, event.Pattern, delta)
		}
	}

	interruption := 0.0
	if event.Kind == types.FeedbackInterruption {
		interruption = 1.0
	}
	if first {
		model.InterruptionFrequency = interruption
	} else {
		model.InterruptionFrequency = ema(model.InterruptionFrequency, interruption, l.config.Alpha)
	}

	if event.SessionDuration > 0 {
		if model.AvgSessionDuration == 0 {
			model.AvgSessionDuration = event.SessionDuration
		} else {
			smoothed := ema(float64(model.AvgSessionDuration), float64(event.SessionDuration), l.config.Alpha)
			model.AvgSessionDuration = time.Duration(smoothed)
		}
	}

	l.collectKeywords(model, event)
	l.trackPattern(model, event, now)

	model.FeedbackCount++
	if event.Sentiment == types.SentimentPositive {
		model.PositiveCount++
	}
	model.RecentSentiments = append(model.RecentSentiments, event.Sentiment)
	if len(model.RecentSentiments) > l.config.RecentWindow {
		model.RecentSentiments = model.RecentSentiments[len(model.RecentSentiments)-l.config.RecentWindow:]
	}

	l.checkShift(model, now)

	model.LearningConfidence = clampUnit(float64(model.FeedbackCount) / float64(l.config.ConfidenceRamp))
	model.UpdatedAt = now
}

// collectKeywords scans the message against the vocabulary matching the
// event's polarity. Mixed feedback scans both vocabularies.
func (l *Learner) collectKeywords(model *types.UserBehaviorModel, event *types.FeedbackEvent) {
	if event.Message == "" {
		return
	}
	text := strings.ToLower(event.Message)

	switch event.Sentiment {
	case types.SentimentPositive:
		model.SatisfactionDrivers = appendHits(model.SatisfactionDrivers, text, satisfactionKeywords, l.config.MaxKeywords)
	case types.SentimentNegative:
		model.FrustrationTriggers = appendHits(model.FrustrationTriggers, text, frustrationKeywords, l.config.MaxKeywords)
	case types.SentimentMixed:
		model.SatisfactionDrivers = appendHits(model.SatisfactionDrivers, text, satisfactionKeywords, l.config.MaxKeywords)
		model.FrustrationTriggers = appendHits(model.FrustrationTriggers, text, frustrationKeywords, l.config.MaxKeywords)
	}
}

// trackPattern counts the (kind, worker, sentiment) tuple and promotes it
// to an actionable pattern at the configured threshold. Events without a
// worker describe no routing pattern and are skipped.
func (l *Learner) trackPattern(model *types.UserBehaviorModel, event *types.FeedbackEvent, now time.Time) {
	if event.Worker == "" {
		return
	}

	key := types.PatternKey(event.Kind, event.Worker, event.Sentiment)
	pat, ok := model.Patterns[key]
	if !ok {
		pat = &types.BehaviorPattern{
			Kind:      event.Kind,
			Worker:    event.Worker,
			Sentiment: event.Sentiment,
		}
		model.Patterns[key] = pat
	}

	pat.Occurrences++
	pat.LastSeen = now

	if !pat.Actionable && pat.Occurrences >= l.config.PatternThreshold {
		pat.Actionable = true
		pat.Recommendation = recommendationFor(pat)
		l.logger.Info("behavior pattern became actionable",
			zap.String("user_id", model.UserID),
			zap.String("pattern", key),
			zap.String("recommendation", pat.Recommendation))
	}
}

// checkShift compares the recent positive-sentiment ratio against the
// all-time ratio and records an insight when they diverge. Repeated
// divergence in the same direction stays a single insight.
func (l *Learner) checkShift(model *types.UserBehaviorModel, now time.Time) {
	if model.FeedbackCount <= l.config.RecentWindow {
		return
	}

	recent := positiveRatio(model.RecentSentiments)
	allTime := float64(model.PositiveCount) / float64(model.FeedbackCount)
	delta := recent - allTime
	if math.Abs(delta) <= l.config.ShiftThreshold {
		return
	}

	if last := lastShiftInsight(model.Insights); last != nil && sameSign(last.Delta, delta) {
		return
	}

	insight := types.LearningInsight{
		ID:     uuid.New().String(),
		UserID: model.UserID,
		Kind:   types.InsightPreferenceShift,
		Description: fmt.Sprintf("positive-feedback ratio over the last %d events is %.2f versus %.2f all-time",
			len(model.RecentSentiments), recent, allTime),
		Delta:     delta,
		CreatedAt: now,
	}
	model.Insights = append(model.Insights, insight)
	if len(model.Insights) > l.config.MaxInsights {
		model.Insights = model.Insights[len(model.Insights)-l.config.MaxInsights:]
	}

	l.logger.Info("preference shift detected",
		zap.String("user_id", model.UserID),
		zap.Float64("delta", delta))
}

// recommendationFor phrases the routing advice for an actionable pattern.
func recommendationFor(pat *types.BehaviorPattern) string {
	switch pat.Sentiment {
	case types.SentimentPositive:
		return fmt.Sprintf("route more %s work to %s", pat.Kind, pat.Worker)
	case types.SentimentNegative:
		if pat.Kind == types.FeedbackInterruption {
			return fmt.Sprintf("add checkpoints before handing work to %s", pat.Worker)
		}
		return fmt.Sprintf("reduce reliance on %s or pair them with a reviewer", pat.Worker)
	default:
		return fmt.Sprintf("watch %s feedback involving %s", pat.Kind, pat.Worker)
	}
}

// nudge moves a preference score, seeding unseen keys at the neutral 0.5.
func nudge(prefs map[string]float64, key string, delta float64) {
	score, ok := prefs[key]
	if !ok {
		score = 0.5
	}
	prefs[key] = clampUnit(score + delta)
}

// appendHits adds vocabulary words found in text, skipping duplicates and
// evicting the oldest entries beyond the limit.
func appendHits(list []string, text string, vocab []string, limit int) []string {
	for _, word := range vocab {
		if !strings.Contains(text, word) {
			continue
		}
		if containsWord(list, word) {
			continue
		}
		list = append(list, word)
	}
	if limit > 0 && len(list) > limit {
		list = list[len(list)-limit:]
	}
	return list
}

func containsWord(list []string, word string) bool {
	for _, w := range list {
		if w == word {
			return true
		}
	}
	return false
}

func positiveRatio(sentiments []types.Sentiment) float64 {
	if len(sentiments) == 0 {
		return 0
	}
	positive := 0
	for _, s := range sentiments {
		if s == types.SentimentPositive {
			positive++
		}
	}
	return float64(positive) / float64(len(sentiments))
}

func lastShiftInsight(insights []types.LearningInsight) *types.LearningInsight {
	for i := len(insights) - 1; i >= 0; i-- {
		if insights[i].Kind == types.InsightPreferenceShift {
			return &insights[i]
		}
	}
	return nil
}

func sameSign(a, b float64) bool {
	return (a >= 0) == (b >= 0)
}

func ema(old, sample, alpha float64) float64 {
	return old*(1-alpha) + sample*alpha
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
