package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/gyasis/smalltalk-sub002/events"
	"github.com/gyasis/smalltalk-sub002/types"
)

// FeedbackReport summarizes what one feedback event changed.
type FeedbackReport struct {
	Model      *types.UserBehaviorModel `json:"model"`
	Adaptation *types.PlanAdaptation    `json:"adaptation,omitempty"`
	Applied    bool                     `json:"applied"`
	Note       string                   `json:"note"`
}

// HandleFeedback folds one feedback event into the user's behavior model,
// scores satisfaction into the routing metrics, and asks the adaptive
// planner whether the session's live plan should change. Proposals below the
// confidence gate are reported but never applied.
func (o *Orchestrator) HandleFeedback(ctx context.Context, event *types.FeedbackEvent) (*FeedbackReport, error) {
	model, err := o.learner.Ingest(ctx, event)
	if err != nil {
		return nil, err
	}

	report := &FeedbackReport{Model: model, Note: "no adaptation applied"}
	if event.SessionID == "" {
		return report, nil
	}

	state, err := o.engine.State(event.SessionID)
	if err != nil {
		return report, nil
	}
	if score, ok := satisfactionScore(event.Sentiment); ok && state.Plan != nil {
		o.metrics.ObserveSatisfaction(state.Plan.Workers, state.Plan.Pattern, score)
	}
	if state.Status.Terminal() {
		return report, nil
	}

	adaptation := o.planner.Propose(ctx, state, event)
	report.Adaptation = adaptation
	if !o.planner.Accept(adaptation) {
		if adaptation != nil {
			o.logger.Info("adaptation below confidence gate, plan unchanged",
				zap.String("session_id", event.SessionID),
				zap.String("kind", string(adaptation.Kind)),
				zap.Float64("confidence", adaptation.Confidence),
			)
		}
		return report, nil
	}

	report.Applied, report.Note = o.applyAdaptation(event.SessionID, adaptation)
	o.bus.Publish(events.Event{
		Type:      events.PlanAdapted,
		SessionID: event.SessionID,
		Text:      adaptation.Reason,
		Data: map[string]any{
			"kind":       string(adaptation.Kind),
			"confidence": adaptation.Confidence,
			"applied":    report.Applied,
		},
	})
	o.logger.Info("plan adaptation",
		zap.String("session_id", event.SessionID),
		zap.String("kind", string(adaptation.Kind)),
		zap.Bool("applied", report.Applied),
	)
	return report, nil
}

// applyAdaptation executes step-level adaptations on the live plan. Kinds
// that would need new step content are surfaced for a replan instead of
// being guessed at here.
func (o *Orchestrator) applyAdaptation(sessionID string, a *types.PlanAdaptation) (bool, string) {
	switch a.Kind {
	case types.AdaptRemove:
		if len(a.AffectedSteps) == 0 {
			return false, "adaptation named no steps to remove"
		}
		drop := make(map[string]struct{}, len(a.AffectedSteps))
		for _, id := range a.AffectedSteps {
			drop[id] = struct{}{}
		}
		err := o.engine.RewriteSteps(sessionID, func(remaining []types.PlanStep) []types.PlanStep {
			kept := make([]types.PlanStep, 0, len(remaining))
			for _, step := range remaining {
				if _, ok := drop[step.ID]; !ok {
					kept = append(kept, step)
				}
			}
			return kept
		})
		if err != nil {
			return false, err.Error()
		}
		return true, "removed steps " + strings.Join(a.AffectedSteps, ", ")

	case types.AdaptReorder:
		if len(a.AffectedSteps) == 0 {
			return false, "adaptation named no steps to reorder"
		}
		err := o.engine.RewriteSteps(sessionID, func(remaining []types.PlanStep) []types.PlanStep {
			front := make([]types.PlanStep, 0, len(remaining))
			taken := make(map[string]struct{}, len(a.AffectedSteps))
			for _, id := range a.AffectedSteps {
				for _, step := range remaining {
					if step.ID == id {
						front = append(front, step)
						taken[id] = struct{}{}
						break
					}
				}
			}
			for _, step := range remaining {
				if _, ok := taken[step.ID]; !ok {
					front = append(front, step)
				}
			}
			return front
		})
		if err != nil {
			return false, err.Error()
		}
		return true, "reordered remaining steps"

	default:
		return false, fmt.Sprintf("%s adaptation needs a replan", a.Kind)
	}
}

// satisfactionScore maps feedback sentiment onto the satisfaction scale.
// Neutral feedback carries no signal.
func satisfactionScore(sentiment types.Sentiment) (float64, bool) {
	switch sentiment {
	case types.SentimentPositive:
		return 1, true
	case types.SentimentNegative:
		return 0, true
	}
	return 0, false
}
