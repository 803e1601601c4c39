package types

import "time"

// SkillsMatchAnalysis scores one (request, worker) pair. Recomputed per
// request and never persisted.
type SkillsMatchAnalysis struct {
	WorkerName string `json:"worker_name"`

	// Weighted sub-scores, each in [0,1].
	PrimarySkillScore  float64 `json:"primary_skill_score"`
	DomainScore        float64 `json:"domain_score"`
	TaskTypeScore      float64 `json:"task_type_score"`
	CollaborationScore float64 `json:"collaboration_score"`

	OverallMatch         float64  `json:"overall_match"`
	Confidence           float64  `json:"confidence"`
	EstimatedPerformance float64  `json:"estimated_performance"`
	RiskFactors          []string `json:"risk_factors,omitempty"`
	CollaborationPotential []string `json:"collaboration_potential,omitempty"`

	// Rank is unique within one analysis batch: 1..N, 1 is best.
	Rank int `json:"rank"`

	Reasoning string `json:"reasoning,omitempty"`

	// Fallback is set when the deterministic keyword-overlap path produced
	// this analysis instead of the text-generation service.
	Fallback bool `json:"fallback,omitempty"`
}

// ResolvedStep is a collaboration template step with its symbolic role bound
// to a concrete worker.
type ResolvedStep struct {
	Role     string        `json:"role"`
	Worker   string        `json:"worker"`
	Action   string        `json:"action"`
	Duration time.Duration `json:"duration"`
}

// CollaborationRecommendation is the chosen pattern resolved to concrete
// workers. Built per request.
type CollaborationRecommendation struct {
	Pattern           string         `json:"pattern"`
	Workers           []string       `json:"workers"`
	Confidence        float64        `json:"confidence"`
	Reasoning         string         `json:"reasoning,omitempty"`
	Steps             []ResolvedStep `json:"steps"`
	EstimatedDuration time.Duration  `json:"estimated_duration"`
	Risk              string         `json:"risk,omitempty"`
	Alternatives      []string       `json:"alternatives,omitempty"`
	Fallback          bool           `json:"fallback,omitempty"`
}

// RouteOption is one candidate routing outcome.
type RouteOption struct {
	Workers               []string      `json:"workers"`
	Pattern               string        `json:"pattern"`
	Confidence            float64       `json:"confidence"`
	PredictedSatisfaction float64       `json:"predicted_satisfaction"`
	PredictedDuration     time.Duration `json:"predicted_duration"`
	Reason                string        `json:"reason,omitempty"`
}

// RoutingPrediction blends live skill scores with historical metrics into a
// primary route and ranked alternatives. Ephemeral, per request.
type RoutingPrediction struct {
	Primary           RouteOption   `json:"primary"`
	Alternatives      []RouteOption `json:"alternatives,omitempty"` // at most 3
	RiskFactors       []string      `json:"risk_factors,omitempty"`
	OptimizationHints []string      `json:"optimization_hints,omitempty"`
	SafeStepIndices   []int         `json:"safe_step_indices,omitempty"`
}

// RequestFeatures is the small feature set extracted from a request before
// prediction.
type RequestFeatures struct {
	TokenCount             int     `json:"token_count"`
	Complexity             float64 `json:"complexity"`
	TopSkillScore          float64 `json:"top_skill_score"`
	SkillScoreVariance     float64 `json:"skill_score_variance"`
	InterruptionTendency   float64 `json:"interruption_tendency"`
	HistoricalSatisfaction float64 `json:"historical_satisfaction"`
	HourOfDay              int     `json:"hour_of_day"`
	RequestType            string  `json:"request_type"`
}
