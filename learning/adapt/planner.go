// Package adapt turns live feedback on a running plan into confidence-gated
// adaptation proposals. A proposal below the gate, or an analysis that fails
// or comes back malformed, leaves the plan untouched.
package adapt

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/gyasis/smalltalk-sub002/analysis"
	"github.com/gyasis/smalltalk-sub002/types"
)

// Config controls adaptation acceptance.
type Config struct {
	// ConfidenceGate is the score a proposal must exceed to be applied.
	ConfidenceGate float64 `json:"confidence_gate" yaml:"confidence_gate"`
}

// DefaultConfig returns the standard planner tuning.
func DefaultConfig() *Config {
	return &Config{ConfidenceGate: 0.7}
}

// adaptationSchema is the decision contract for plan adaptations.
var adaptationSchema = analysis.NewSchema("plan_adaptation").
	RequireText("ADAPTATION_KIND").WithHint("one of reorder, replace, insert, remove, redesign").
	RequireInt("CONFIDENCE").
	Text("REASON").
	List("AFFECTED_STEPS").WithHint("step ids from the plan, comma-separated").
	Int("ESTIMATED_IMPROVEMENT").
	Text("RISK_LEVEL").WithHint("low, medium, high or critical").
	Int("PREDICTED_SATISFACTION")

// Planner asks whether and how a live plan should change after feedback.
type Planner struct {
	analyzer *analysis.Analyzer
	config   *Config
	logger   *zap.Logger
}

// NewPlanner creates an adaptive planner. A nil analyzer disables proposals.
func NewPlanner(analyzer *analysis.Analyzer, config *Config, logger *zap.Logger) *Planner {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{
		analyzer: analyzer,
		config:   config,
		logger:   logger.With(zap.String("component", "adaptive_planner")),
	}
}

// Propose returns an adaptation for the running plan, or nil when the
// analyzer is absent, fails, or answers with an unusable reply. A nil
// proposal means the plan stays as it is.
func (p *Planner) Propose(ctx context.Context, state *types.ExecutionState, event *types.FeedbackEvent) *types.PlanAdaptation {
	if p.analyzer == nil || state == nil || state.Plan == nil || event == nil {
		return nil
	}

	result, err := p.analyzer.Decide(ctx, adaptationSchema, p.prompt(state, event))
	if err != nil {
		p.logger.Warn("adaptation analysis failed, keeping plan", zap.Error(err))
		return nil
	}

	kind, ok := parseKind(result.Text("ADAPTATION_KIND"))
	if !ok {
		p.logger.Warn("unknown adaptation kind, keeping plan",
			zap.String("kind", result.Text("ADAPTATION_KIND")))
		return nil
	}

	adaptation := &types.PlanAdaptation{
		Kind:                  kind,
		Reason:                result.Text("REASON"),
		Confidence:            result.Score("CONFIDENCE"),
		AffectedSteps:         knownSteps(state.Plan, result.List("AFFECTED_STEPS")),
		EstimatedImprovement:  result.Score("ESTIMATED_IMPROVEMENT"),
		RiskLevel:             parseRisk(result.Text("RISK_LEVEL")),
		PredictedSatisfaction: result.Score("PREDICTED_SATISFACTION"),
	}

	p.logger.Debug("adaptation proposed",
		zap.String("session_id", state.Plan.SessionID),
		zap.String("kind", string(adaptation.Kind)),
		zap.Float64("confidence", adaptation.Confidence))

	return adaptation
}

// Accept reports whether a proposal clears the confidence gate.
func (p *Planner) Accept(a *types.PlanAdaptation) bool {
	return a != nil && a.Confidence > p.config.ConfidenceGate
}

// prompt renders the running plan and the fresh feedback for the decision.
func (p *Planner) prompt(state *types.ExecutionState, event *types.FeedbackEvent) string {
	var sb strings.Builder
	sb.WriteString("A live multi-step plan just received user feedback. ")
	sb.WriteString("Decide whether the remaining steps should change.\n\n")
	fmt.Fprintf(&sb, "Request: %s\n", state.Plan.Request)
	fmt.Fprintf(&sb, "Status: %s, step %d of %d\n", state.Status, state.CurrentStep+1, len(state.Plan.Steps))
	sb.WriteString("Steps:\n")
	for i, step := range state.Plan.Steps {
		marker := " "
		if i == state.CurrentStep {
			marker = ">"
		}
		fmt.Fprintf(&sb, "%s %s: %s handles %q\n", marker, step.ID, step.Worker, step.Action)
	}
	fmt.Fprintf(&sb, "\nFeedback (%s, %s): %s\n", event.Kind, event.Sentiment, event.Message)
	return sb.String()
}

// parseKind maps the decision's kind field onto a known adaptation kind.
func parseKind(raw string) (types.AdaptationKind, bool) {
	kind := types.AdaptationKind(strings.ToLower(strings.TrimSpace(raw)))
	switch kind {
	case types.AdaptReorder, types.AdaptReplace, types.AdaptInsert, types.AdaptRemove, types.AdaptRedesign:
		return kind, true
	}
	return "", false
}

// parseRisk grades the risk field, defaulting to low.
func parseRisk(raw string) types.RiskSeverity {
	text := strings.ToLower(raw)
	switch {
	case strings.Contains(text, "critical"):
		return types.SeverityCritical
	case strings.Contains(text, "high"):
		return types.SeverityHigh
	case strings.Contains(text, "medium"):
		return types.SeverityMedium
	default:
		return types.SeverityLow
	}
}

// knownSteps keeps only step ids that exist in the plan.
func knownSteps(plan *types.ExecutionPlan, ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	known := make(map[string]struct{}, len(plan.Steps))
	for _, step := range plan.Steps {
		known[step.ID] = struct{}{}
	}
	kept := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := known[id]; ok {
			kept = append(kept, id)
		}
	}
	return kept
}
