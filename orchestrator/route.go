package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gyasis/smalltalk-sub002/events"
	"github.com/gyasis/smalltalk-sub002/routing/predict"
	"github.com/gyasis/smalltalk-sub002/types"
)

// Request is one user request to route and execute.
type Request struct {
	SessionID string       `json:"session_id"`
	UserID    string       `json:"user_id,omitempty"`
	Text      string       `json:"text"`
	Recent    []types.Turn `json:"recent,omitempty"`
}

// Decision is the merged routing outcome for one request: the selected
// workers and pattern, the blended confidence and duration, the strategy
// outputs it was merged from, and an execution plan ready to start.
type Decision struct {
	Workers        []string                           `json:"workers"`
	Pattern        string                             `json:"pattern"`
	Confidence     float64                            `json:"confidence"`
	Duration       time.Duration                      `json:"duration"`
	Reasoning      string                             `json:"reasoning,omitempty"`
	Analyses       []*types.SkillsMatchAnalysis       `json:"analyses,omitempty"`
	Prediction     *types.RoutingPrediction           `json:"prediction,omitempty"`
	Recommendation *types.CollaborationRecommendation `json:"recommendation,omitempty"`
	Sequence       *types.OptimizedSequence           `json:"sequence,omitempty"`
	Plan           *types.ExecutionPlan               `json:"plan"`
}

// Route runs the four strategies for one request and merges their outputs
// into a decision. Skills matching and prediction go first, then pattern
// selection and sequence optimization over the scored roster. Route never
// starts the engine, so it doubles as a recommendation preview.
func (o *Orchestrator) Route(ctx context.Context, req *Request) (*Decision, error) {
	if req == nil || strings.TrimSpace(req.Text) == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "routing requires a request text")
	}
	if req.SessionID == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "routing requires a session id")
	}

	profiles := o.profiles(req.SessionID)
	recent := o.recentTurns(req)

	analyses, err := o.skills.Match(ctx, req.Text, profiles, recent)
	if err != nil {
		return nil, err
	}

	var behavior *types.UserBehaviorModel
	if req.UserID != "" {
		if model, err := o.learner.Model(ctx, req.UserID); err == nil {
			behavior = model
		}
	}

	prediction, err := o.predictor.Predict(ctx, &predict.Input{
		Request:  req.Text,
		UserID:   req.UserID,
		Analyses: analyses,
		Behavior: behavior,
	})
	if err != nil {
		return nil, err
	}

	rec, err := o.patterns.Select(ctx, req.Text, analyses)
	if err != nil {
		return nil, err
	}
	seq, err := o.sequences.Optimize(ctx, req.Text, rec, analyses)
	if err != nil {
		return nil, err
	}

	decision := o.merge(req, analyses, prediction, rec, seq)

	o.bus.Publish(events.Event{
		Type:      events.RoutingDecision,
		SessionID: req.SessionID,
		PlanID:    decision.Plan.ID,
		Text:      decision.Reasoning,
		Data: map[string]any{
			"workers":           decision.Workers,
			"pattern":           decision.Pattern,
			"confidence":        decision.Confidence,
			"fallback":          rec.Fallback,
			"fallback_analyses": countFallbackAnalyses(analyses),
		},
	})
	o.logger.Info("routing decision",
		zap.String("session_id", req.SessionID),
		zap.Strings("workers", decision.Workers),
		zap.String("pattern", decision.Pattern),
		zap.Float64("confidence", decision.Confidence),
	)
	return decision, nil
}

// merge folds the strategy outputs into one decision. The recommendation
// names the workers and pattern; confidence takes the stronger of the
// selector's and the predictor's scores; duration prefers the predictive
// estimate and falls back to the optimizer's total.
func (o *Orchestrator) merge(req *Request, analyses []*types.SkillsMatchAnalysis, prediction *types.RoutingPrediction, rec *types.CollaborationRecommendation, seq *types.OptimizedSequence) *Decision {
	confidence := rec.Confidence
	reasoning := rec.Reasoning
	var predicted time.Duration
	if prediction != nil {
		confidence = max(confidence, prediction.Primary.Confidence)
		predicted = prediction.Primary.PredictedDuration
		if reasoning == "" {
			reasoning = prediction.Primary.Reason
		}
	}

	duration := predicted
	if duration <= 0 && seq != nil {
		duration = seq.TotalDuration
	}

	workers := append([]string(nil), rec.Workers...)
	return &Decision{
		Workers:        workers,
		Pattern:        rec.Pattern,
		Confidence:     confidence,
		Duration:       duration,
		Reasoning:      reasoning,
		Analyses:       analyses,
		Prediction:     prediction,
		Recommendation: rec,
		Sequence:       seq,
		Plan:           o.buildPlan(req, workers, rec, seq),
	}
}

// buildPlan lays the selected workers out as one step per worker. Every
// step carries the raw request; accumulated outputs travel in the shared
// context under output keys.
func (o *Orchestrator) buildPlan(req *Request, workers []string, rec *types.CollaborationRecommendation, seq *types.OptimizedSequence) *types.ExecutionPlan {
	steps := make([]types.PlanStep, 0, len(workers))
	for i, name := range workers {
		steps = append(steps, types.PlanStep{
			ID:     fmt.Sprintf("step-%d", i+1),
			Worker: name,
			Action: actionFor(name, rec, seq),
			Prompt: req.Text,
		})
	}
	return &types.ExecutionPlan{
		ID:                 uuid.NewString(),
		SessionID:          req.SessionID,
		UserID:             req.UserID,
		Workers:            append([]string(nil), workers...),
		Steps:              steps,
		Pattern:            rec.Pattern,
		InterruptionPoints: safePoints(seq, len(steps)),
		Request:            req.Text,
		SharedContext:      map[string]string{"request": req.Text},
		CreatedAt:          time.Now(),
	}
}

// actionFor picks the step action for a worker from the optimized sequence,
// then from the recommendation's resolved steps.
func actionFor(name string, rec *types.CollaborationRecommendation, seq *types.OptimizedSequence) string {
	if seq != nil {
		for _, step := range seq.Steps {
			if step.Worker == name && step.Action != "" {
				return step.Action
			}
		}
	}
	if rec != nil {
		for _, step := range rec.Steps {
			if step.Worker == name && step.Action != "" {
				return step.Action
			}
		}
	}
	return "respond"
}

// safePoints maps the sequence's interruption-safe steps onto plan step
// indices.
func safePoints(seq *types.OptimizedSequence, planLen int) []int {
	if seq == nil {
		return nil
	}
	var points []int
	for i, step := range seq.Steps {
		if i >= planLen {
			break
		}
		if step.Safety == types.SafetySafe {
			points = append(points, i)
		}
	}
	return points
}

// countFallbackAnalyses reports how many analyses the keyword fallback
// produced instead of the analyzer.
func countFallbackAnalyses(analyses []*types.SkillsMatchAnalysis) int {
	n := 0
	for _, a := range analyses {
		if a != nil && a.Fallback {
			n++
		}
	}
	return n
}

// profiles snapshots the session roster's worker profiles.
func (o *Orchestrator) profiles(sessionID string) []*types.WorkerProfile {
	entries := o.registry.List(sessionID)
	profiles := make([]*types.WorkerProfile, 0, len(entries))
	for _, entry := range entries {
		profiles = append(profiles, entry.Profile)
	}
	return profiles
}

// recentTurns extends the caller's history with contextual operator lines
// captured since the last routing call.
func (o *Orchestrator) recentTurns(req *Request) []types.Turn {
	turns := append([]types.Turn(nil), req.Recent...)
	o.mu.Lock()
	s := o.sessions[req.SessionID]
	o.mu.Unlock()
	if s == nil {
		return turns
	}
	for _, line := range s.drain() {
		turns = append(turns, types.NewTurn(types.RoleUser, "operator", line))
	}
	return turns
}
