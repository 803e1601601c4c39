package types

import "time"

// ExecutionStatus is the lifecycle status of one session's run.
type ExecutionStatus string

const (
	StatusRunning     ExecutionStatus = "running"
	StatusPaused      ExecutionStatus = "paused"
	StatusInterrupted ExecutionStatus = "interrupted"
	StatusCompleted   ExecutionStatus = "completed"
	StatusFailed      ExecutionStatus = "failed"
)

// Terminal reports whether the status ends the run.
func (s ExecutionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// legalTransitions enumerates the allowed status edges. Paused never jumps to
// completed without an intervening running.
var legalTransitions = map[ExecutionStatus][]ExecutionStatus{
	StatusRunning:     {StatusPaused, StatusInterrupted, StatusCompleted, StatusFailed},
	StatusPaused:      {StatusRunning, StatusFailed},
	StatusInterrupted: {StatusRunning, StatusPaused, StatusFailed},
}

// CanTransitionTo reports whether the edge s -> next is legal.
func (s ExecutionStatus) CanTransitionTo(next ExecutionStatus) bool {
	for _, allowed := range legalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PlanStep is one per-worker unit of an execution plan.
type PlanStep struct {
	ID     string `json:"id"`
	Worker string `json:"worker"`
	Action string `json:"action,omitempty"`
	Prompt string `json:"prompt"`
}

// ExecutionPlan is the concrete, ordered list of per-worker steps derived
// from a chosen pattern for one request. Created once per request; owned by
// the execution engine for the run's duration.
type ExecutionPlan struct {
	ID                 string            `json:"id"`
	SessionID          string            `json:"session_id"`
	UserID             string            `json:"user_id,omitempty"`
	Workers            []string          `json:"workers"`
	Steps              []PlanStep        `json:"steps"`
	Pattern            string            `json:"pattern"`
	InterruptionPoints []int             `json:"interruption_points,omitempty"`
	Request            string            `json:"request"`
	SharedContext      map[string]string `json:"shared_context,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
}

// InterruptionType classifies an operator signal.
type InterruptionType string

const (
	InterruptStop        InterruptionType = "stop"
	InterruptRedirect    InterruptionType = "redirect"
	InterruptAgentSwitch InterruptionType = "agent_switch"
	InterruptNewPlan     InterruptionType = "new_plan"
	InterruptClarify     InterruptionType = "clarification"
	InterruptPause       InterruptionType = "pause"
)

// Interruption is an operator-originated signal that can alter or halt a
// running plan. Created by the activity monitor, consumed once by the engine.
type Interruption struct {
	SessionID    string           `json:"session_id"`
	Type         InterruptionType `json:"type"`
	Message      string           `json:"message"`
	Timestamp    time.Time        `json:"timestamp"`
	TargetWorker string           `json:"target_worker,omitempty"`
	Redirection  string           `json:"redirection,omitempty"`
}

// ExecutionState is the single mutable record of one session's run. Mutated
// only by the execution engine; callers receive snapshots.
type ExecutionState struct {
	Plan          *ExecutionPlan  `json:"plan"`
	CurrentStep   int             `json:"current_step"`
	Status        ExecutionStatus `json:"status"`
	StartedAt     time.Time       `json:"started_at"`
	PausedAt      *time.Time      `json:"paused_at,omitempty"`
	ResumedAt     *time.Time      `json:"resumed_at,omitempty"`
	FinishedAt    *time.Time      `json:"finished_at,omitempty"`
	Interruptions []Interruption  `json:"interruptions,omitempty"`
	StepOutputs   map[string]string `json:"step_outputs,omitempty"`
	LastError     string          `json:"last_error,omitempty"`
}

// Snapshot returns a deep copy safe to hand outside the engine.
func (s *ExecutionState) Snapshot() *ExecutionState {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Interruptions = append([]Interruption(nil), s.Interruptions...)
	if s.StepOutputs != nil {
		cp.StepOutputs = make(map[string]string, len(s.StepOutputs))
		for k, v := range s.StepOutputs {
			cp.StepOutputs[k] = v
		}
	}
	if s.Plan != nil {
		plan := *s.Plan
		plan.Workers = append([]string(nil), s.Plan.Workers...)
		plan.Steps = append([]PlanStep(nil), s.Plan.Steps...)
		cp.Plan = &plan
	}
	return &cp
}
