package engine

import "github.com/gyasis/smalltalk-sub002/types"

// FollowUp tells the caller what an ended leg of a run asks of it. It
// replaces exception-driven interruption handling with an explicit tagged
// result.
type FollowUp string

const (
	// FollowUpNone means the run reached a terminal status.
	FollowUpNone FollowUp = ""
	// FollowUpResume means the run paused and waits for an explicit resume.
	FollowUpResume FollowUp = "await_resume"
	// FollowUpClarify means a question should be surfaced to the operator;
	// the plan is unchanged and resumable.
	FollowUpClarify FollowUp = "answer_clarification"
	// FollowUpReplan means the operator redirected the run; the caller
	// should replan using the interruption's direction text.
	FollowUpReplan FollowUp = "replan_with_direction"
	// FollowUpSwapWorker means the operator asked for a different worker.
	FollowUpSwapWorker FollowUp = "swap_worker"
	// FollowUpNewPlan means the operator discarded the plan entirely.
	FollowUpNewPlan FollowUp = "build_new_plan"
)

// Outcome reports how one leg of a run ended: completed, failed, or stopped
// at a checkpoint by an operator signal.
type Outcome struct {
	// State is a snapshot taken when the leg ended.
	State *types.ExecutionState
	// Interruption is the signal that ended the leg, nil on completion and
	// failure.
	Interruption *types.Interruption
	// Request is the follow-up the caller should perform.
	Request FollowUp
}

// Terminal reports whether the run is finished for good.
func (o *Outcome) Terminal() bool {
	return o != nil && o.State != nil && o.State.Status.Terminal()
}
