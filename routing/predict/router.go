package predict

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gyasis/smalltalk-sub002/analysis"
	"github.com/gyasis/smalltalk-sub002/routing/pattern"
	"github.com/gyasis/smalltalk-sub002/types"
)

// Config tunes prediction thresholds.
type Config struct {
	// Alpha is the EMA smoothing factor for the metrics store.
	Alpha float64 `json:"alpha"`
	// SingleExpertThreshold is the top-match score above which a
	// single-expert alternative is offered.
	SingleExpertThreshold float64 `json:"single_expert_threshold"`
	// DebateComplexityThreshold is the complexity at or above which a debate
	// alternative is offered.
	DebateComplexityThreshold float64 `json:"debate_complexity_threshold"`
	// QualifyingMatch is the overall match a worker needs to count toward the
	// extended-team alternative.
	QualifyingMatch float64 `json:"qualifying_match"`
	// LowConfidence marks a primary route as risky below this confidence.
	LowConfidence float64 `json:"low_confidence"`
	// WeakPreference marks a user-preference mismatch below this score.
	WeakPreference float64 `json:"weak_preference"`
	// MaxAlternatives caps the alternative list.
	MaxAlternatives int `json:"max_alternatives"`
	// MaxTeamSize caps the extended-team alternative.
	MaxTeamSize int `json:"max_team_size"`
	// TokenEncoding names the tiktoken encoding for feature extraction.
	TokenEncoding string `json:"token_encoding"`
}

// DefaultConfig returns standard prediction settings.
func DefaultConfig() *Config {
	return &Config{
		Alpha:                     defaultAlpha,
		SingleExpertThreshold:     0.8,
		DebateComplexityThreshold: 0.7,
		QualifyingMatch:           0.6,
		LowConfidence:             0.5,
		WeakPreference:            0.3,
		MaxAlternatives:           3,
		MaxTeamSize:               5,
		TokenEncoding:             defaultEncoding,
	}
}

// SingleExpert labels the one-worker route alternative. It is a route label,
// not a collaboration template.
const SingleExpert = "single-expert"

const singleExpertDuration = 2 * time.Minute

// Input carries everything Predict blends: the request, the live analysis
// output and the user's history. Recommendation, Sequence and Behavior may be
// nil.
type Input struct {
	Request        string
	UserID         string
	Analyses       []*types.SkillsMatchAnalysis
	Recommendation *types.CollaborationRecommendation
	Sequence       *types.OptimizedSequence
	Behavior       *types.UserBehaviorModel
}

// Router emits routing predictions from live scores plus historical metrics.
type Router struct {
	config    *Config
	store     *Store
	extractor *Extractor
	analyzer  *analysis.Analyzer
	logger    *zap.Logger
}

// hintSchema asks for qualitative additions only; every structural part of
// the prediction is computed deterministically.
var hintSchema = analysis.NewSchema("routing_hints").
	List("OPTIMIZATION_HINTS").WithHint("short imperative suggestions").
	List("RISK_FACTORS")

// NewRouter creates a Router with its own metrics store. The analyzer is
// optional and only contributes qualitative hints; a nil analyzer keeps
// predictions fully deterministic.
func NewRouter(analyzer *analysis.Analyzer, config *Config, logger *zap.Logger) *Router {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		config:    config,
		store:     NewStore(config.Alpha, logger),
		extractor: NewExtractor(config.TokenEncoding, logger),
		analyzer:  analyzer,
		logger:    logger.With(zap.String("component", "predictive_router")),
	}
}

// Metrics exposes the store so callers can feed run outcomes back in.
func (r *Router) Metrics() *Store { return r.store }

// Predict builds the routing prediction for one request. An empty analysis
// set is fatal; everything else degrades to deterministic output.
func (r *Router) Predict(ctx context.Context, in *Input) (*types.RoutingPrediction, error) {
	if in == nil || len(in.Analyses) == 0 {
		return nil, types.NewError(types.ErrNoSuitableWorker, "no analyses to route")
	}

	ranked := rankedAnalyses(in.Analyses)
	features := r.extractor.Extract(in.Request, time.Now(), ranked, in.Behavior)

	primary := r.primaryRoute(in, ranked)
	prediction := &types.RoutingPrediction{
		Primary:           primary,
		Alternatives:      r.alternatives(in, features, ranked, primary),
		RiskFactors:       r.riskFactors(in, primary),
		OptimizationHints: r.hints(in, features, ranked, primary),
		SafeStepIndices:   safeIndices(in.Sequence),
	}

	if r.analyzer != nil {
		r.addQualitative(ctx, in, features, prediction)
	}

	r.logger.Debug("prediction built",
		zap.Strings("workers", primary.Workers),
		zap.String("pattern", primary.Pattern),
		zap.Float64("confidence", primary.Confidence),
		zap.Int("alternatives", len(prediction.Alternatives)),
	)
	return prediction, nil
}

func (r *Router) primaryRoute(in *Input, ranked []*types.SkillsMatchAnalysis) types.RouteOption {
	workers := []string{ranked[0].WorkerName}
	patternName := SingleExpert
	confidence := ranked[0].Confidence
	reason := "best skills match"

	if rec := in.Recommendation; rec != nil && len(rec.Workers) > 0 {
		workers = rec.Workers
		patternName = rec.Pattern
		confidence = rec.Confidence
		reason = "recommended collaboration pattern"
	}

	return types.RouteOption{
		Workers:               workers,
		Pattern:               patternName,
		Confidence:            confidence,
		PredictedSatisfaction: r.predictSatisfaction(workers, patternName, in.Behavior),
		PredictedDuration:     r.predictDuration(in),
		Reason:                reason,
	}
}

// predictSatisfaction averages whatever signals exist: user preferences for
// the chosen workers and pattern, then observed satisfaction EMAs. With no
// history at all the estimate is the 0.5 neutral prior.
func (r *Router) predictSatisfaction(workers []string, patternName string, behavior *types.UserBehaviorModel) float64 {
	var signals []float64
	if behavior != nil {
		for _, w := range workers {
			if v, ok := behavior.WorkerPreferences[w]; ok {
				signals = append(signals, v)
			}
		}
		if v, ok := behavior.PatternPreferences[patternName]; ok {
			signals = append(signals, v)
		}
	}
	for _, w := range workers {
		if m, ok := r.store.Worker(w); ok && m.SatisfactionSamples > 0 {
			signals = append(signals, m.Satisfaction)
		}
	}
	if m, ok := r.store.Pattern(patternName); ok && m.SatisfactionSamples > 0 {
		signals = append(signals, m.Satisfaction)
	}
	if len(signals) == 0 {
		return 0.5
	}
	var sum float64
	for _, v := range signals {
		sum += v
	}
	return clamp01(sum / float64(len(signals)))
}

// predictDuration starts from the planned duration and, when every step's
// worker has an observed response time, blends in the historical estimate.
func (r *Router) predictDuration(in *Input) time.Duration {
	var base time.Duration
	if in.Sequence != nil && in.Sequence.TotalDuration > 0 {
		base = in.Sequence.TotalDuration
	} else if in.Recommendation != nil {
		base = in.Recommendation.EstimatedDuration
	}

	if in.Sequence == nil || len(in.Sequence.Steps) == 0 {
		return base
	}
	var historical time.Duration
	for _, step := range in.Sequence.Steps {
		m, ok := r.store.Worker(step.Worker)
		if !ok || m.AvgResponseTime <= 0 {
			return base
		}
		historical += m.AvgResponseTime
	}
	if base <= 0 {
		return historical
	}
	return (base + historical) / 2
}

func (r *Router) alternatives(in *Input, features types.RequestFeatures, ranked []*types.SkillsMatchAnalysis, primary types.RouteOption) []types.RouteOption {
	var alts []types.RouteOption

	top := ranked[0]
	if top.OverallMatch > r.config.SingleExpertThreshold {
		alts = append(alts, types.RouteOption{
			Workers:               []string{top.WorkerName},
			Pattern:               SingleExpert,
			Confidence:            top.OverallMatch,
			PredictedSatisfaction: r.predictSatisfaction([]string{top.WorkerName}, SingleExpert, in.Behavior),
			PredictedDuration:     r.singleExpertDuration(top.WorkerName),
			Reason: fmt.Sprintf("top match %.2f clears the %.2f single-expert bar",
				top.OverallMatch, r.config.SingleExpertThreshold),
		})
	}

	if features.Complexity >= r.config.DebateComplexityThreshold && len(ranked) >= 2 {
		workers := workerNames(ranked[:min(3, len(ranked))])
		alts = append(alts, types.RouteOption{
			Workers:               workers,
			Pattern:               pattern.DebateDiscussion,
			Confidence:            features.Complexity,
			PredictedSatisfaction: r.predictSatisfaction(workers, pattern.DebateDiscussion, in.Behavior),
			PredictedDuration:     templateDuration(pattern.DebateDiscussion),
			Reason: fmt.Sprintf("complexity %.2f favors adversarial discussion",
				features.Complexity),
		})
	}

	if qualified := qualifyingNames(ranked, r.config.QualifyingMatch); len(qualified) > len(primary.Workers) {
		workers := qualified[:min(r.config.MaxTeamSize, len(qualified))]
		alts = append(alts, types.RouteOption{
			Workers:               workers,
			Pattern:               pattern.ParallelSynthesis,
			Confidence:            r.config.QualifyingMatch,
			PredictedSatisfaction: r.predictSatisfaction(workers, pattern.ParallelSynthesis, in.Behavior),
			PredictedDuration:     templateDuration(pattern.ParallelSynthesis),
			Reason: fmt.Sprintf("%d workers match above %.2f, an extended team is viable",
				len(qualified), r.config.QualifyingMatch),
		})
	}

	alts = dropSameRoute(alts, primary)
	if len(alts) > r.config.MaxAlternatives {
		alts = alts[:r.config.MaxAlternatives]
	}
	return alts
}

func (r *Router) singleExpertDuration(worker string) time.Duration {
	if m, ok := r.store.Worker(worker); ok && m.AvgResponseTime > 0 {
		return m.AvgResponseTime
	}
	return singleExpertDuration
}

// riskFactors lists deterministic routing risks in a fixed order: confidence,
// preference mismatches, failure streaks, overload.
func (r *Router) riskFactors(in *Input, primary types.RouteOption) []string {
	var risks []string

	if primary.Confidence < r.config.LowConfidence {
		risks = append(risks, fmt.Sprintf("low routing confidence (%.2f)", primary.Confidence))
	}

	if b := in.Behavior; b != nil {
		for _, w := range primary.Workers {
			if v, ok := b.WorkerPreferences[w]; ok && v < r.config.WeakPreference {
				risks = append(risks, fmt.Sprintf("user preference for %s is weak (%.2f)", w, v))
			}
		}
		if v, ok := b.PatternPreferences[primary.Pattern]; ok && v < r.config.WeakPreference {
			risks = append(risks, fmt.Sprintf("user preference for pattern %s is weak (%.2f)", primary.Pattern, v))
		}
	}

	for _, w := range primary.Workers {
		if m, ok := r.store.Worker(w); ok && m.Utilization >= 3 && m.SuccessRate < 0.5 {
			risks = append(risks, fmt.Sprintf("%s has a recent failure streak (success rate %.2f)", w, m.SuccessRate))
		}
	}

	if total := r.store.TotalRuns(); total >= 4 {
		for _, w := range primary.Workers {
			if m, ok := r.store.Worker(w); ok && float64(m.Utilization) > float64(total)*0.5 {
				risks = append(risks, fmt.Sprintf("%s is carrying most recent runs (%d of %d)", w, m.Utilization, total))
			}
		}
	}
	return risks
}

func (r *Router) hints(in *Input, features types.RequestFeatures, ranked []*types.SkillsMatchAnalysis, primary types.RouteOption) []string {
	var hints []string

	if ranked[0].OverallMatch > r.config.SingleExpertThreshold && len(primary.Workers) > 1 {
		hints = append(hints, fmt.Sprintf("%s alone could handle this request", ranked[0].WorkerName))
	}
	if features.Complexity < 0.3 && len(primary.Workers) > 2 {
		hints = append(hints, "low complexity, a smaller team would answer faster")
	}
	if features.InterruptionTendency > 0.5 {
		hints = append(hints, "user interrupts often, prefer interruption-safe steps")
	}
	if in.Sequence != nil && len(in.Sequence.Steps) > 0 && len(in.Sequence.SafeSteps) == 0 {
		hints = append(hints, "no step is safe to interrupt, add checkpoints")
	}
	return hints
}

// addQualitative appends model-suggested hints and risks on top of the
// deterministic ones. Failures leave the prediction untouched.
func (r *Router) addQualitative(ctx context.Context, in *Input, features types.RequestFeatures, prediction *types.RoutingPrediction) {
	var sb strings.Builder
	sb.WriteString("Suggest routing optimizations for this request.\n\n")
	sb.WriteString("Request:\n")
	sb.WriteString(in.Request)
	fmt.Fprintf(&sb, "\n\nChosen route: %s with %s\n",
		prediction.Primary.Pattern, strings.Join(prediction.Primary.Workers, ", "))
	fmt.Fprintf(&sb, "Request type: %s, complexity %.2f, top match %.2f\n",
		features.RequestType, features.Complexity, features.TopSkillScore)

	result, err := r.analyzer.Decide(ctx, hintSchema, sb.String())
	if err != nil {
		r.logger.Warn("qualitative hints unavailable", zap.Error(err))
		return
	}
	prediction.OptimizationHints = mergeDistinct(prediction.OptimizationHints, result.List("OPTIMIZATION_HINTS"), 5)
	prediction.RiskFactors = mergeDistinct(prediction.RiskFactors, result.List("RISK_FACTORS"), 6)
}

// rankedAnalyses orders a copy by rank ascending, best first. Unranked input
// keeps its original order.
func rankedAnalyses(analyses []*types.SkillsMatchAnalysis) []*types.SkillsMatchAnalysis {
	out := append([]*types.SkillsMatchAnalysis(nil), analyses...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out
}

func workerNames(analyses []*types.SkillsMatchAnalysis) []string {
	names := make([]string, len(analyses))
	for i, a := range analyses {
		names[i] = a.WorkerName
	}
	return names
}

func qualifyingNames(ranked []*types.SkillsMatchAnalysis, threshold float64) []string {
	var names []string
	for _, a := range ranked {
		if a.OverallMatch >= threshold {
			names = append(names, a.WorkerName)
		}
	}
	return names
}

func templateDuration(name string) time.Duration {
	tpl, ok := pattern.Lookup(name)
	if !ok {
		return 0
	}
	var total time.Duration
	for _, step := range tpl.Steps {
		total += step.Duration
	}
	return total
}

func safeIndices(seq *types.OptimizedSequence) []int {
	if seq == nil {
		return nil
	}
	var out []int
	for i, step := range seq.Steps {
		if step.Safety == types.SafetySafe {
			out = append(out, i)
		}
	}
	return out
}

func dropSameRoute(alts []types.RouteOption, primary types.RouteOption) []types.RouteOption {
	kept := alts[:0]
	for _, alt := range alts {
		if alt.Pattern == primary.Pattern && sameNames(alt.Workers, primary.Workers) {
			continue
		}
		kept = append(kept, alt)
	}
	return kept
}

func sameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}

func mergeDistinct(base, extra []string, limit int) []string {
	seen := make(map[string]bool, len(base))
	for _, s := range base {
		seen[strings.ToLower(s)] = true
	}
	for _, s := range extra {
		key := strings.ToLower(strings.TrimSpace(s))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		base = append(base, strings.TrimSpace(s))
	}
	if len(base) > limit {
		base = base[:limit]
	}
	return base
}
