package pattern

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gyasis/smalltalk-sub002/analysis"
	"github.com/gyasis/smalltalk-sub002/types"
)

// Opportunity scores how well a specific worker group would collaborate on a
// request.
type Opportunity struct {
	Workers         []string `json:"workers"`
	Synergy         float64  `json:"synergy"`
	Complementarity []string `json:"complementarity,omitempty"`
	Reasoning       string   `json:"reasoning,omitempty"`
	Fallback        bool     `json:"fallback,omitempty"`
}

var opportunitySchema = analysis.NewSchema("collaboration_opportunity").
	RequireInt("SYNERGY_SCORE").
	List("COMPLEMENTARITY").
	Text("REASONING")

const opportunityPromptTemplate = `Assess how well these workers would collaborate on the request.

User request:
%s

Workers:
%s

Rate their combined synergy and name what each contributes that the others lack.`

// Opportunities scores every worker pair among the candidates, plus the top
// triple when at least three candidates exist. Calls run concurrently with a
// bounded group; output order is deterministic regardless of completion
// order.
func (s *Selector) Opportunities(ctx context.Context, request string, analyses []*types.SkillsMatchAnalysis) []Opportunity {
	groups := opportunityGroups(analyses)
	if len(groups) == 0 {
		return nil
	}

	results := make([]Opportunity, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.OpportunityConcurrency)

	for i, members := range groups {
		g.Go(func() error {
			results[i] = s.scoreOpportunity(gctx, request, members)
			return nil
		})
	}
	// Workers never return errors; scoring failures become fallbacks.
	_ = g.Wait()

	return results
}

// opportunityGroups enumerates index groups: all pairs in candidate order,
// then the leading triple.
func opportunityGroups(analyses []*types.SkillsMatchAnalysis) [][]*types.SkillsMatchAnalysis {
	var groups [][]*types.SkillsMatchAnalysis
	for i := 0; i < len(analyses); i++ {
		for j := i + 1; j < len(analyses); j++ {
			groups = append(groups, []*types.SkillsMatchAnalysis{analyses[i], analyses[j]})
		}
	}
	if len(analyses) >= 3 {
		groups = append(groups, []*types.SkillsMatchAnalysis{analyses[0], analyses[1], analyses[2]})
	}
	return groups
}

func (s *Selector) scoreOpportunity(ctx context.Context, request string, members []*types.SkillsMatchAnalysis) Opportunity {
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.WorkerName
	}

	if s.analyzer == nil {
		return fallbackOpportunity(names, members)
	}

	var lines strings.Builder
	for _, m := range members {
		fmt.Fprintf(&lines, "- %s (overall match %.2f, collaboration %.2f)\n",
			m.WorkerName, m.OverallMatch, m.CollaborationScore)
	}

	result, err := s.analyzer.Decide(ctx, opportunitySchema,
		fmt.Sprintf(opportunityPromptTemplate, request, lines.String()))
	if err != nil {
		s.logger.Debug("opportunity analysis unavailable, using fallback",
			zap.Strings("workers", names),
			zap.Error(err),
		)
		return fallbackOpportunity(names, members)
	}

	return Opportunity{
		Workers:         names,
		Synergy:         result.Score("SYNERGY_SCORE"),
		Complementarity: result.List("COMPLEMENTARITY"),
		Reasoning:       result.Text("REASONING"),
	}
}

// fallbackOpportunity derives synergy from the members' collaboration
// sub-scores. Deterministic for identical inputs.
func fallbackOpportunity(names []string, members []*types.SkillsMatchAnalysis) Opportunity {
	var sum float64
	var potential []string
	seen := make(map[string]struct{})
	for _, m := range members {
		sum += m.CollaborationScore
		for _, p := range m.CollaborationPotential {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			if len(potential) < 3 {
				potential = append(potential, p)
			}
		}
	}

	return Opportunity{
		Workers:         names,
		Synergy:         analysis.Clamp01(sum / float64(len(members))),
		Complementarity: potential,
		Reasoning:       "collaboration-score average fallback",
		Fallback:        true,
	}
}
