package skills

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/gyasis/smalltalk-sub002/analysis"
	"github.com/gyasis/smalltalk-sub002/types"
)

// Config tunes the sub-score mix. Weights are normalized before use, so they
// express proportions rather than hard values.
type Config struct {
	PrimarySkillWeight  float64 `json:"primary_skill_weight"`
	DomainWeight        float64 `json:"domain_weight"`
	TaskTypeWeight      float64 `json:"task_type_weight"`
	CollaborationWeight float64 `json:"collaboration_weight"`
	// FallbackConfidence is reported by the keyword-overlap path.
	FallbackConfidence float64 `json:"fallback_confidence"`
	// RecentTurns caps how much conversation history rides into the prompt.
	RecentTurns int `json:"recent_turns"`
}

// DefaultConfig returns the standard sub-score mix.
func DefaultConfig() *Config {
	return &Config{
		PrimarySkillWeight:  0.40,
		DomainWeight:        0.25,
		TaskTypeWeight:      0.20,
		CollaborationWeight: 0.15,
		FallbackConfidence:  0.6,
		RecentTurns:         3,
	}
}

var matchSchema = analysis.NewSchema("skills_match").
	RequireInt("PRIMARY_SKILL_SCORE").
	RequireInt("DOMAIN_SCORE").
	RequireInt("TASK_TYPE_SCORE").
	RequireInt("COLLABORATION_SCORE").
	Int("CONFIDENCE").
	Int("ESTIMATED_PERFORMANCE").
	List("RISK_FACTORS").
	List("COLLABORATION_POTENTIAL").
	Text("REASONING")

const matchPromptTemplate = `Evaluate how well the worker below matches the user request.

User request:
%s
%s
Worker profile:
- Name: %s
- Primary skills: %s
- Secondary skills: %s
- Domain expertise: %s
- Task types: %s
- Complexity level: %s

Score the worker on primary skill fit, domain fit, task type fit and
collaboration fit.`

// Matcher scores workers against requests.
type Matcher struct {
	analyzer *analysis.Analyzer
	config   *Config
	logger   *zap.Logger
}

// NewMatcher creates a Matcher. A nil analyzer forces the fallback path for
// every request, which keeps the pipeline usable without a provider.
func NewMatcher(analyzer *analysis.Analyzer, config *Config, logger *zap.Logger) *Matcher {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{
		analyzer: analyzer,
		config:   config,
		logger:   logger.With(zap.String("component", "skills_matcher")),
	}
}

// Match scores every worker in the roster and returns them ranked descending
// by overall match, each with a unique rank starting at 1. An empty roster is
// fatal: no fallback produces a worker out of thin air.
func (m *Matcher) Match(ctx context.Context, request string, profiles []*types.WorkerProfile, recent []types.Turn) ([]*types.SkillsMatchAnalysis, error) {
	if len(profiles) == 0 {
		return nil, types.NewError(types.ErrNoSuitableWorker, "worker roster is empty")
	}

	analyses := make([]*types.SkillsMatchAnalysis, 0, len(profiles))
	for _, profile := range profiles {
		a := m.scoreWorker(ctx, request, profile, recent)
		analyses = append(analyses, a)
	}

	rankAnalyses(analyses)
	return analyses, nil
}

// scoreWorker runs one decision prompt, falling back to keyword overlap on
// any failure.
func (m *Matcher) scoreWorker(ctx context.Context, request string, profile *types.WorkerProfile, recent []types.Turn) *types.SkillsMatchAnalysis {
	if m.analyzer == nil {
		return m.fallbackAnalysis(request, profile)
	}

	prompt := fmt.Sprintf(matchPromptTemplate,
		request,
		formatRecent(recent, m.config.RecentTurns),
		profile.Name,
		strings.Join(profile.PrimarySkills, ", "),
		strings.Join(profile.SecondarySkills, ", "),
		strings.Join(profile.DomainExpertise, ", "),
		strings.Join(profile.TaskTypes, ", "),
		profile.Complexity,
	)

	result, err := m.analyzer.Decide(ctx, matchSchema, prompt)
	if err != nil {
		m.logger.Warn("skills analysis unavailable, using keyword fallback",
			zap.String("worker", profile.Name),
			zap.Error(err),
		)
		return m.fallbackAnalysis(request, profile)
	}

	a := &types.SkillsMatchAnalysis{
		WorkerName:             profile.Name,
		PrimarySkillScore:      result.Score("PRIMARY_SKILL_SCORE"),
		DomainScore:            result.Score("DOMAIN_SCORE"),
		TaskTypeScore:          result.Score("TASK_TYPE_SCORE"),
		CollaborationScore:     result.Score("COLLABORATION_SCORE"),
		Confidence:             result.Score("CONFIDENCE"),
		EstimatedPerformance:   result.Score("ESTIMATED_PERFORMANCE"),
		RiskFactors:            result.List("RISK_FACTORS"),
		CollaborationPotential: result.List("COLLABORATION_POTENTIAL"),
		Reasoning:              result.Text("REASONING"),
	}
	a.OverallMatch = m.weightedOverall(a)
	return a
}

// weightedOverall combines the four sub-scores with normalized weights.
func (m *Matcher) weightedOverall(a *types.SkillsMatchAnalysis) float64 {
	total := m.config.PrimarySkillWeight + m.config.DomainWeight +
		m.config.TaskTypeWeight + m.config.CollaborationWeight
	if total <= 0 {
		total = 1
	}
	overall := (a.PrimarySkillScore*m.config.PrimarySkillWeight +
		a.DomainScore*m.config.DomainWeight +
		a.TaskTypeScore*m.config.TaskTypeWeight +
		a.CollaborationScore*m.config.CollaborationWeight) / total
	return analysis.Clamp01(overall)
}

// rankAnalyses sorts descending by overall match and assigns ranks 1..N.
// The sort is stable so equal scores keep roster order, which keeps repeated
// fallback runs byte-for-byte identical.
func rankAnalyses(analyses []*types.SkillsMatchAnalysis) {
	sort.SliceStable(analyses, func(i, j int) bool {
		return analyses[i].OverallMatch > analyses[j].OverallMatch
	})
	for i, a := range analyses {
		a.Rank = i + 1
	}
}

// formatRecent renders the last n turns as context lines, empty when there is
// no history.
func formatRecent(recent []types.Turn, n int) string {
	if len(recent) == 0 || n <= 0 {
		return ""
	}
	if len(recent) > n {
		recent = recent[len(recent)-n:]
	}
	var sb strings.Builder
	sb.WriteString("\nRecent conversation:\n")
	for _, turn := range recent {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", turn.Role, turn.Content))
	}
	return sb.String()
}
