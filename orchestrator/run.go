package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/gyasis/smalltalk-sub002/engine"
	"github.com/gyasis/smalltalk-sub002/routing/predict"
	"github.com/gyasis/smalltalk-sub002/types"
)

// RunResult couples a routing decision with the outcome of driving its plan.
// Dispatch results that replan carry the fresh decision; plain resumes leave
// Decision nil.
type RunResult struct {
	Decision *Decision       `json:"decision,omitempty"`
	Outcome  *engine.Outcome `json:"outcome"`
}

// Run routes the request and drives the resulting plan until it completes,
// fails, or an interruption parks it. The session's monitor wiring is in
// place before the first chunk streams, so operator input can interrupt
// from the start.
func (o *Orchestrator) Run(ctx context.Context, req *Request) (*RunResult, error) {
	decision, err := o.Route(ctx, req)
	if err != nil {
		return nil, err
	}
	o.sessionFor(req.SessionID)

	outcome, err := o.engine.Execute(ctx, decision.Plan)
	if err != nil {
		return nil, err
	}
	o.observe(outcome)
	return &RunResult{Decision: decision, Outcome: outcome}, nil
}

// Resume continues a parked run.
func (o *Orchestrator) Resume(ctx context.Context, sessionID string) (*engine.Outcome, error) {
	outcome, err := o.engine.Resume(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	o.observe(outcome)
	return outcome, nil
}

// SwapWorker reroutes the parked run's remaining steps to another registered
// worker and resumes it.
func (o *Orchestrator) SwapWorker(ctx context.Context, sessionID, target string) (*engine.Outcome, error) {
	if err := o.engine.ReplaceWorker(sessionID, target); err != nil {
		return nil, err
	}
	return o.Resume(ctx, sessionID)
}

// Replan abandons the parked run and routes a fresh plan for the same
// request, folding the operator's new direction into the request text.
func (o *Orchestrator) Replan(ctx context.Context, sessionID, direction string) (*RunResult, error) {
	state, err := o.engine.State(sessionID)
	if err != nil {
		return nil, err
	}
	if state.Status.Terminal() {
		return nil, types.NewError(types.ErrInvalidTransition,
			fmt.Sprintf("cannot replan a %s run", state.Status))
	}
	if _, err := o.engine.Abandon(sessionID, "superseded by a replanned run"); err != nil {
		return nil, err
	}

	text := state.Plan.Request
	if direction = strings.TrimSpace(direction); direction != "" {
		text = text + "\nNew direction: " + direction
	}
	return o.Run(ctx, &Request{
		SessionID: sessionID,
		UserID:    state.Plan.UserID,
		Text:      text,
	})
}

// AnswerClarification folds the operator's answer into the parked run's
// shared context and resumes it.
func (o *Orchestrator) AnswerClarification(ctx context.Context, sessionID, answer string) (*engine.Outcome, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "clarification answer is empty")
	}
	if err := o.engine.AmendContext(sessionID, "clarification", answer); err != nil {
		return nil, err
	}
	return o.Resume(ctx, sessionID)
}

// Dispatch acts on a parked outcome's follow-up request: it resumes paused
// runs, swaps workers and resumes, or replans with the operator's direction.
// Clarifications and terminal outcomes come back untouched for the caller
// to resolve.
func (o *Orchestrator) Dispatch(ctx context.Context, outcome *engine.Outcome) (*RunResult, error) {
	if outcome == nil || outcome.State == nil || outcome.State.Plan == nil {
		return nil, types.NewError(types.ErrInvalidRequest, "dispatch requires an outcome with a plan")
	}
	sessionID := outcome.State.Plan.SessionID
	intr := outcome.Interruption

	switch outcome.Request {
	case engine.FollowUpResume:
		out, err := o.Resume(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		return &RunResult{Outcome: out}, nil
	case engine.FollowUpSwapWorker:
		target := ""
		if intr != nil {
			target = intr.TargetWorker
		}
		out, err := o.SwapWorker(ctx, sessionID, target)
		if err != nil {
			return nil, err
		}
		return &RunResult{Outcome: out}, nil
	case engine.FollowUpReplan, engine.FollowUpNewPlan:
		direction := ""
		if intr != nil {
			direction = intr.Redirection
			if direction == "" && outcome.Request == engine.FollowUpReplan {
				direction = intr.Message
			}
		}
		return o.Replan(ctx, sessionID, direction)
	default:
		return &RunResult{Outcome: outcome}, nil
	}
}

// observe feeds a terminal outcome into the routing metrics.
func (o *Orchestrator) observe(outcome *engine.Outcome) {
	if !outcome.Terminal() {
		return
	}
	state := outcome.State
	if state.Plan == nil {
		return
	}
	result := predict.Outcome{
		Success:     state.Status == types.StatusCompleted,
		Interrupted: len(state.Interruptions) > 0,
	}
	if state.FinishedAt != nil {
		result.ResponseTime = state.FinishedAt.Sub(state.StartedAt)
	}
	o.metrics.ObserveRun(state.Plan.Workers, state.Plan.Pattern, result)
}
