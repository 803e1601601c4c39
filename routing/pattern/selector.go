package pattern

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gyasis/smalltalk-sub002/analysis"
	"github.com/gyasis/smalltalk-sub002/types"
)

// Config tunes pattern selection.
type Config struct {
	// TopWorkers caps how many ranked candidates are offered to the model.
	TopWorkers int `json:"top_workers"`
	// FallbackConfidence is reported by the sequential-handoff fallback.
	FallbackConfidence float64 `json:"fallback_confidence"`
	// OpportunityConcurrency bounds concurrent synergy calls.
	OpportunityConcurrency int `json:"opportunity_concurrency"`
	// MaxAlternatives caps the alternative pattern list.
	MaxAlternatives int `json:"max_alternatives"`
}

// DefaultConfig returns standard selection settings.
func DefaultConfig() *Config {
	return &Config{
		TopWorkers:             5,
		FallbackConfidence:     0.6,
		OpportunityConcurrency: 4,
		MaxAlternatives:        2,
	}
}

var selectionSchema = analysis.NewSchema("pattern_selection").
	RequireText("RECOMMENDED_PATTERN").WithHint("one template name from the catalog").
	RequireList("SELECTED_WORKERS").WithHint("worker names from the candidate list").
	Int("CONFIDENCE").
	Text("REASONING").
	List("ALTERNATIVE_PATTERNS").
	Text("RISK")

const selectionPromptTemplate = `Choose a collaboration template and the workers to fill it.

User request:
%s

Ranked candidate workers:
%s
Collaboration signals:
%s
Template catalog:
%s`

// Selector chooses collaboration patterns.
type Selector struct {
	analyzer *analysis.Analyzer
	config   *Config
	logger   *zap.Logger
}

// NewSelector creates a Selector. A nil analyzer always selects the fallback.
func NewSelector(analyzer *analysis.Analyzer, config *Config, logger *zap.Logger) *Selector {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{
		analyzer: analyzer,
		config:   config,
		logger:   logger.With(zap.String("component", "pattern_selector")),
	}
}

// Select recommends a pattern over the ranked analyses. Any reply the
// registry cannot honor, a template name it does not know or a worker the
// candidate set does not contain, degrades to sequential-handoff over the top
// two workers.
func (s *Selector) Select(ctx context.Context, request string, analyses []*types.SkillsMatchAnalysis) (*types.CollaborationRecommendation, error) {
	if len(analyses) == 0 {
		return nil, types.NewError(types.ErrNoSuitableWorker, "no analyses to select a pattern from")
	}

	candidates := topByRank(analyses, s.config.TopWorkers)
	if s.analyzer == nil {
		return s.fallbackRecommendation(candidates), nil
	}

	opportunities := s.Opportunities(ctx, request, candidates)

	result, err := s.analyzer.Decide(ctx, selectionSchema,
		s.buildSelectionPrompt(request, candidates, opportunities))
	if err != nil {
		s.logger.Warn("pattern selection unavailable, using sequential fallback", zap.Error(err))
		return s.fallbackRecommendation(candidates), nil
	}

	template, ok := Lookup(result.Text("RECOMMENDED_PATTERN"))
	if !ok {
		s.logger.Warn("unknown pattern in reply, using sequential fallback",
			zap.String("pattern", result.Text("RECOMMENDED_PATTERN")),
		)
		return s.fallbackRecommendation(candidates), nil
	}

	workers, ok := matchWorkers(result.List("SELECTED_WORKERS"), candidates)
	if !ok || len(workers) < template.MinWorkers {
		s.logger.Warn("reply workers cannot be honored, using sequential fallback",
			zap.Strings("selected", result.List("SELECTED_WORKERS")),
		)
		return s.fallbackRecommendation(candidates), nil
	}
	if len(workers) > template.MaxWorkers {
		workers = workers[:template.MaxWorkers]
	}

	steps := ResolveSteps(template, workers)
	risk := result.Text("RISK")
	if risk == "" {
		risk = strings.Join(template.Risks, "; ")
	}

	return &types.CollaborationRecommendation{
		Pattern:           template.Name,
		Workers:           workers,
		Confidence:        result.Score("CONFIDENCE"),
		Reasoning:         result.Text("REASONING"),
		Steps:             steps,
		EstimatedDuration: totalDuration(steps),
		Risk:              risk,
		Alternatives:      s.alternatives(result.List("ALTERNATIVE_PATTERNS"), template.Name),
	}, nil
}

// fallbackRecommendation is the deterministic degradation path: the top two
// workers in sequential-handoff at the fixed fallback confidence.
func (s *Selector) fallbackRecommendation(candidates []*types.SkillsMatchAnalysis) *types.CollaborationRecommendation {
	template, _ := Lookup(SequentialHandoff)

	n := 2
	if len(candidates) < n {
		n = len(candidates)
	}
	workers := make([]string, n)
	for i := 0; i < n; i++ {
		workers[i] = candidates[i].WorkerName
	}

	steps := ResolveSteps(template, workers)
	return &types.CollaborationRecommendation{
		Pattern:           template.Name,
		Workers:           workers,
		Confidence:        s.config.FallbackConfidence,
		Reasoning:         "fallback: sequential handoff over the top-ranked workers",
		Steps:             steps,
		EstimatedDuration: totalDuration(steps),
		Risk:              strings.Join(template.Risks, "; "),
		Alternatives:      s.alternatives(nil, template.Name),
		Fallback:          true,
	}
}

func (s *Selector) buildSelectionPrompt(request string, candidates []*types.SkillsMatchAnalysis, opportunities []Opportunity) string {
	var workerLines strings.Builder
	for _, a := range candidates {
		fmt.Fprintf(&workerLines, "%d. %s (overall match %.2f)\n", a.Rank, a.WorkerName, a.OverallMatch)
	}

	var signalLines strings.Builder
	for _, o := range opportunities {
		fmt.Fprintf(&signalLines, "- %s: synergy %.2f\n", strings.Join(o.Workers, " + "), o.Synergy)
	}
	if signalLines.Len() == 0 {
		signalLines.WriteString("- none\n")
	}

	var catalogLines strings.Builder
	for _, t := range Templates() {
		fmt.Fprintf(&catalogLines, "- %s: %s (suits: %s; %d-%d workers)\n",
			t.Name, t.Description, strings.Join(t.SuitableFor, ", "), t.MinWorkers, t.MaxWorkers)
	}

	return fmt.Sprintf(selectionPromptTemplate,
		request, workerLines.String(), signalLines.String(), catalogLines.String())
}

// alternatives filters reply suggestions to known templates, excluding the
// chosen one; with nothing usable it falls back to registry order.
func (s *Selector) alternatives(suggested []string, chosen string) []string {
	var out []string
	seen := map[string]struct{}{chosen: {}}
	appendName := func(name string) {
		if len(out) >= s.config.MaxAlternatives {
			return
		}
		if t, ok := Lookup(name); ok {
			if _, dup := seen[t.Name]; !dup {
				seen[t.Name] = struct{}{}
				out = append(out, t.Name)
			}
		}
	}

	for _, name := range suggested {
		appendName(name)
	}
	if len(out) == 0 {
		for _, name := range TemplateNames() {
			appendName(name)
		}
	}
	return out
}

// topByRank returns up to n analyses ordered by rank ascending.
func topByRank(analyses []*types.SkillsMatchAnalysis, n int) []*types.SkillsMatchAnalysis {
	sorted := append([]*types.SkillsMatchAnalysis(nil), analyses...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Rank < sorted[j].Rank })
	if n > 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// matchWorkers maps reply names onto candidate names case-insensitively.
// Any name outside the candidate set rejects the whole reply.
func matchWorkers(selected []string, candidates []*types.SkillsMatchAnalysis) ([]string, bool) {
	canonical := make(map[string]string, len(candidates))
	for _, a := range candidates {
		canonical[strings.ToLower(a.WorkerName)] = a.WorkerName
	}

	var out []string
	seen := make(map[string]struct{})
	for _, name := range selected {
		match, ok := canonical[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, false
		}
		if _, dup := seen[match]; dup {
			continue
		}
		seen[match] = struct{}{}
		out = append(out, match)
	}
	return out, len(out) > 0
}

func totalDuration(steps []types.ResolvedStep) time.Duration {
	var total time.Duration
	for _, s := range steps {
		total += s.Duration
	}
	return total
}
