package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gyasis/smalltalk-sub002/events"
	"github.com/gyasis/smalltalk-sub002/types"
	"github.com/gyasis/smalltalk-sub002/worker"
)

// Config controls streaming granularity and archive size.
type Config struct {
	// ChunkWords is how many words each streamed chunk carries.
	ChunkWords int `json:"chunk_words" yaml:"chunk_words"`
	// ChunkDelay is the pause between streamed chunks. Zero disables the
	// pause entirely.
	ChunkDelay time.Duration `json:"chunk_delay" yaml:"chunk_delay"`
	// QueueSize bounds each run's pending interruption queue.
	QueueSize int `json:"queue_size" yaml:"queue_size"`
	// HistoryLimit bounds the terminal-run archive.
	HistoryLimit int `json:"history_limit" yaml:"history_limit"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		ChunkWords:   12,
		ChunkDelay:   25 * time.Millisecond,
		QueueSize:    16,
		HistoryLimit: 32,
	}
}

// run is one session's live execution slot.
type run struct {
	mu      sync.Mutex
	state   *types.ExecutionState
	pending chan *types.Interruption
	driving bool
}

// Engine executes plans step by step, one live run per session, many
// sessions per process. Steps run strictly in array order regardless of any
// dependency metadata on the originating sequence.
type Engine struct {
	registry *worker.Registry
	bus      *events.Bus
	config   Config
	logger   *zap.Logger

	mu       sync.Mutex
	sessions map[string]*run
	archive  []*types.ExecutionState
}

// NewEngine creates an execution engine.
func NewEngine(registry *worker.Registry, bus *events.Bus, config Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if registry == nil {
		registry = worker.NewRegistry(nil)
	}
	if bus == nil {
		bus = events.NewBus(events.DefaultConfig(), nil)
	}
	if config.ChunkWords <= 0 {
		config.ChunkWords = DefaultConfig().ChunkWords
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultConfig().QueueSize
	}
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = DefaultConfig().HistoryLimit
	}
	return &Engine{
		registry: registry,
		bus:      bus,
		config:   config,
		logger:   logger.With(zap.String("component", "execution_engine")),
		sessions: make(map[string]*run),
	}
}

// Execute starts a run for plan's session and drives it until it completes,
// fails, or stops at a checkpoint. The outcome carries the state snapshot
// and, when an operator signal ended the leg, the interruption plus the
// follow-up the caller should take. A session with a live run is busy.
func (e *Engine) Execute(ctx context.Context, plan *types.ExecutionPlan) (*Outcome, error) {
	if plan == nil {
		return nil, types.NewError(types.ErrInvalidRequest, "execution plan is nil")
	}
	if plan.SessionID == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "execution plan has no session id")
	}
	if len(plan.Steps) == 0 {
		return nil, types.NewError(types.ErrInvalidRequest, "execution plan has no steps")
	}

	r := &run{
		state: &types.ExecutionState{
			Plan:        plan,
			Status:      types.StatusRunning,
			StartedAt:   time.Now(),
			StepOutputs: make(map[string]string),
		},
		pending: make(chan *types.Interruption, e.config.QueueSize),
		driving: true,
	}

	e.mu.Lock()
	if _, exists := e.sessions[plan.SessionID]; exists {
		e.mu.Unlock()
		return nil, types.NewError(types.ErrSessionBusy,
			fmt.Sprintf("session %s already has a live run", plan.SessionID))
	}
	e.sessions[plan.SessionID] = r
	e.mu.Unlock()

	e.logger.Info("execution started",
		zap.String("session_id", plan.SessionID),
		zap.String("plan_id", plan.ID),
		zap.String("pattern", plan.Pattern),
		zap.Int("steps", len(plan.Steps)),
	)
	e.bus.Publish(events.Event{
		Type:      events.PlanStarted,
		SessionID: plan.SessionID,
		PlanID:    plan.ID,
		Data:      map[string]any{"pattern": plan.Pattern, "steps": len(plan.Steps)},
	})

	return e.drive(ctx, r), nil
}

// Resume continues a paused or interrupted run from its current step. It is
// the only edge from paused back to running.
func (e *Engine) Resume(ctx context.Context, sessionID string) (*Outcome, error) {
	r, err := e.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.driving {
		r.mu.Unlock()
		return nil, types.NewError(types.ErrSessionBusy,
			fmt.Sprintf("session %s is mid-run", sessionID))
	}
	if !r.state.Status.CanTransitionTo(types.StatusRunning) {
		status := r.state.Status
		r.mu.Unlock()
		return nil, types.NewError(types.ErrInvalidTransition,
			fmt.Sprintf("cannot resume a %s run", status))
	}
	now := time.Now()
	r.state.Status = types.StatusRunning
	r.state.ResumedAt = &now
	r.driving = true
	planID := r.state.Plan.ID
	step := r.state.CurrentStep
	r.mu.Unlock()

	e.logger.Info("execution resumed",
		zap.String("session_id", sessionID),
		zap.Int("step", step),
	)
	e.bus.Publish(events.Event{
		Type:      events.PlanResumed,
		SessionID: sessionID,
		PlanID:    planID,
		Data:      map[string]any{"step": step},
	})

	return e.drive(ctx, r), nil
}

// Interrupt queues an operator signal for the session's next checkpoint. A
// full queue drops the signal with a warning rather than blocking the
// caller.
func (e *Engine) Interrupt(sessionID string, intr *types.Interruption) error {
	if intr == nil {
		return types.NewError(types.ErrInvalidRequest, "interruption is nil")
	}
	r, err := e.lookup(sessionID)
	if err != nil {
		return err
	}

	intr.SessionID = sessionID
	if intr.Timestamp.IsZero() {
		intr.Timestamp = time.Now()
	}

	select {
	case r.pending <- intr:
		return nil
	default:
		e.logger.Warn("interruption queue full, signal dropped",
			zap.String("session_id", sessionID),
			zap.String("type", string(intr.Type)),
		)
		return nil
	}
}

// ReplaceWorker swaps the current step's worker, and every later step held
// by that same worker, to target. The run must be paused or interrupted and
// target must already be registered for the session.
func (e *Engine) ReplaceWorker(sessionID, target string) error {
	if target == "" {
		return types.NewError(types.ErrInvalidRequest, "target worker is empty")
	}
	r, err := e.lookup(sessionID)
	if err != nil {
		return err
	}
	if _, err := e.registry.Get(sessionID, target); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.driving || r.state.Status == types.StatusRunning {
		return types.NewError(types.ErrInvalidTransition,
			"worker swap requires a paused or interrupted run")
	}
	steps := r.state.Plan.Steps
	if r.state.CurrentStep >= len(steps) {
		return types.NewError(types.ErrInvalidRequest, "no remaining steps to reassign")
	}

	previous := steps[r.state.CurrentStep].Worker
	if previous == target {
		return nil
	}
	for i := r.state.CurrentStep; i < len(steps); i++ {
		if steps[i].Worker == previous {
			steps[i].Worker = target
		}
	}
	r.state.Plan.Workers = distinctWorkers(steps)

	e.logger.Info("worker swapped",
		zap.String("session_id", sessionID),
		zap.String("from", previous),
		zap.String("to", target),
		zap.Int("step", r.state.CurrentStep),
	)
	return nil
}

// RewriteSteps hands the not-yet-executed tail of a live plan to rewrite and
// installs whatever it returns in place of those steps. Executed steps are
// never touched. The rewrite runs under the run lock, so it must not block.
func (e *Engine) RewriteSteps(sessionID string, rewrite func(remaining []types.PlanStep) []types.PlanStep) error {
	if rewrite == nil {
		return types.NewError(types.ErrInvalidRequest, "rewrite is nil")
	}
	r, err := e.lookup(sessionID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Status.Terminal() {
		return types.NewError(types.ErrInvalidTransition,
			fmt.Sprintf("cannot rewrite a %s run", r.state.Status))
	}

	steps := r.state.Plan.Steps
	idx := min(r.state.CurrentStep, len(steps))
	remaining := make([]types.PlanStep, len(steps)-idx)
	copy(remaining, steps[idx:])

	replacement := rewrite(remaining)
	rebuilt := make([]types.PlanStep, 0, idx+len(replacement))
	rebuilt = append(rebuilt, steps[:idx]...)
	rebuilt = append(rebuilt, replacement...)
	r.state.Plan.Steps = rebuilt
	r.state.Plan.Workers = distinctWorkers(rebuilt)

	e.logger.Info("plan steps rewritten",
		zap.String("session_id", sessionID),
		zap.Int("executed", idx),
		zap.Int("before", len(steps)-idx),
		zap.Int("after", len(replacement)),
	)
	return nil
}

// AmendContext adds one key to a run's shared context so later steps can see
// it, such as an operator's answer to a clarification.
func (e *Engine) AmendContext(sessionID, key, value string) error {
	if key == "" {
		return types.NewError(types.ErrInvalidRequest, "context key is empty")
	}
	r, err := e.lookup(sessionID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Status.Terminal() {
		return types.NewError(types.ErrInvalidTransition,
			fmt.Sprintf("cannot amend a %s run", r.state.Status))
	}
	if r.state.Plan.SharedContext == nil {
		r.state.Plan.SharedContext = make(map[string]string, 1)
	}
	r.state.Plan.SharedContext[key] = value
	return nil
}

// Abandon fails a paused or interrupted run so its session slot can host a
// fresh plan, recording reason as the final error.
func (e *Engine) Abandon(sessionID, reason string) (*types.ExecutionState, error) {
	r, err := e.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.driving {
		r.mu.Unlock()
		return nil, types.NewError(types.ErrSessionBusy,
			fmt.Sprintf("session %s is mid-run", sessionID))
	}
	if !r.state.Status.CanTransitionTo(types.StatusFailed) {
		status := r.state.Status
		r.mu.Unlock()
		return nil, types.NewError(types.ErrInvalidTransition,
			fmt.Sprintf("cannot abandon a %s run", status))
	}
	if reason == "" {
		reason = "abandoned"
	}
	now := time.Now()
	r.state.Status = types.StatusFailed
	r.state.LastError = reason
	r.state.FinishedAt = &now
	snap := r.state.Snapshot()
	r.mu.Unlock()

	e.logger.Info("execution abandoned",
		zap.String("session_id", sessionID),
		zap.String("reason", reason),
	)
	e.bus.Publish(events.Event{
		Type:      events.PlanFailed,
		SessionID: sessionID,
		PlanID:    snap.Plan.ID,
		Text:      reason,
	})
	e.retire(snap)
	return snap, nil
}

// State returns a snapshot of a session's live run, falling back to the most
// recent archived run for that session.
func (e *Engine) State(sessionID string) (*types.ExecutionState, error) {
	e.mu.Lock()
	r, live := e.sessions[sessionID]
	var archived *types.ExecutionState
	if !live {
		for i := len(e.archive) - 1; i >= 0; i-- {
			if e.archive[i].Plan != nil && e.archive[i].Plan.SessionID == sessionID {
				archived = e.archive[i]
				break
			}
		}
	}
	e.mu.Unlock()

	if live {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.state.Snapshot(), nil
	}
	if archived != nil {
		return archived.Snapshot(), nil
	}
	return nil, types.NewError(types.ErrSessionNotFound,
		fmt.Sprintf("no run recorded for session %s", sessionID))
}

// Sessions returns the live session ids, sorted.
func (e *Engine) Sessions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.sessions))
	for id := range e.sessions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// History returns archived terminal runs, oldest first.
func (e *Engine) History() []*types.ExecutionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*types.ExecutionState, len(e.archive))
	for i, s := range e.archive {
		out[i] = s.Snapshot()
	}
	return out
}

// drive runs steps from the state's current index until the run ends or a
// checkpoint stops it.
func (e *Engine) drive(ctx context.Context, r *run) *Outcome {
	for {
		r.mu.Lock()
		state := r.state
		if state.Status != types.StatusRunning {
			r.driving = false
			snap := state.Snapshot()
			r.mu.Unlock()
			return &Outcome{State: snap}
		}
		if state.CurrentStep >= len(state.Plan.Steps) {
			r.mu.Unlock()
			return e.complete(r)
		}
		index := state.CurrentStep
		step := state.Plan.Steps[index]
		sessionID := state.Plan.SessionID
		planID := state.Plan.ID
		prompt := step.Prompt
		if prompt == "" {
			prompt = state.Plan.Request
		}
		shared := copyShared(state.Plan.SharedContext)
		r.mu.Unlock()

		if out := e.checkpoint(ctx, r); out != nil {
			return out
		}

		e.bus.Publish(events.Event{
			Type:      events.StepStarted,
			SessionID: sessionID,
			PlanID:    planID,
			StepID:    step.ID,
			Worker:    step.Worker,
			Data:      map[string]any{"step": index},
		})
		e.logger.Debug("step started",
			zap.String("session_id", sessionID),
			zap.String("step_id", step.ID),
			zap.String("worker", step.Worker),
		)

		entry, err := e.registry.Get(sessionID, step.Worker)
		if err != nil {
			return e.fail(r, err)
		}

		text, err := entry.Worker.Respond(ctx, prompt, shared)
		if err != nil {
			return e.fail(r, types.NewError(types.ErrStepFailed,
				fmt.Sprintf("step %s (%s) failed", step.ID, step.Worker)).WithCause(err))
		}

		for _, chunk := range splitChunks(text, e.config.ChunkWords) {
			if out := e.checkpoint(ctx, r); out != nil {
				return out
			}
			e.bus.Publish(events.Event{
				Type:      events.ResponseChunk,
				SessionID: sessionID,
				PlanID:    planID,
				StepID:    step.ID,
				Worker:    step.Worker,
				Text:      chunk,
			})
			if e.config.ChunkDelay > 0 {
				select {
				case <-time.After(e.config.ChunkDelay):
				case <-ctx.Done():
				}
			}
		}

		r.mu.Lock()
		r.state.StepOutputs[step.ID] = text
		if r.state.Plan.SharedContext == nil {
			r.state.Plan.SharedContext = make(map[string]string)
		}
		r.state.Plan.SharedContext["output:"+step.ID] = text
		r.state.CurrentStep++
		r.mu.Unlock()

		e.bus.Publish(events.Event{
			Type:      events.StepCompleted,
			SessionID: sessionID,
			PlanID:    planID,
			StepID:    step.ID,
			Worker:    step.Worker,
			Data:      map[string]any{"chars": len(text)},
		})
	}
}

// checkpoint is the cooperative cancellation point, taken before every chunk
// and at every step boundary. It returns nil when the run should continue.
func (e *Engine) checkpoint(ctx context.Context, r *run) *Outcome {
	if err := ctx.Err(); err != nil {
		return e.fail(r, err)
	}
	select {
	case intr := <-r.pending:
		return e.interrupted(r, intr)
	default:
		return nil
	}
}

// interrupted records an operator signal, transitions the run and maps the
// signal type to the follow-up the caller should take.
func (e *Engine) interrupted(r *run, intr *types.Interruption) *Outcome {
	next := types.StatusPaused
	follow := FollowUpResume
	switch intr.Type {
	case types.InterruptStop, types.InterruptPause:
	case types.InterruptClarify:
		follow = FollowUpClarify
	case types.InterruptRedirect:
		next = types.StatusInterrupted
		follow = FollowUpReplan
	case types.InterruptAgentSwitch:
		next = types.StatusInterrupted
		follow = FollowUpSwapWorker
	case types.InterruptNewPlan:
		next = types.StatusInterrupted
		follow = FollowUpNewPlan
	}

	r.mu.Lock()
	now := time.Now()
	r.state.Interruptions = append(r.state.Interruptions, *intr)
	r.state.Status = next
	if next == types.StatusPaused {
		r.state.PausedAt = &now
	}
	r.driving = false
	snap := r.state.Snapshot()
	r.mu.Unlock()

	e.logger.Info("execution interrupted",
		zap.String("session_id", snap.Plan.SessionID),
		zap.String("type", string(intr.Type)),
		zap.Int("step", snap.CurrentStep),
	)
	e.bus.Publish(events.Event{
		Type:      events.UserInterrupted,
		SessionID: snap.Plan.SessionID,
		PlanID:    snap.Plan.ID,
		Text:      intr.Message,
		Data: map[string]any{
			"interruption_type": string(intr.Type),
			"step":              snap.CurrentStep,
		},
	})
	if next == types.StatusPaused {
		e.bus.Publish(events.Event{
			Type:      events.PlanPaused,
			SessionID: snap.Plan.SessionID,
			PlanID:    snap.Plan.ID,
		})
	}

	return &Outcome{State: snap, Interruption: intr, Request: follow}
}

// complete finishes a run whose steps are exhausted.
func (e *Engine) complete(r *run) *Outcome {
	r.mu.Lock()
	now := time.Now()
	r.state.Status = types.StatusCompleted
	r.state.FinishedAt = &now
	r.driving = false
	snap := r.state.Snapshot()
	r.mu.Unlock()

	e.logger.Info("execution completed",
		zap.String("session_id", snap.Plan.SessionID),
		zap.String("plan_id", snap.Plan.ID),
		zap.Int("steps", len(snap.Plan.Steps)),
	)
	e.bus.Publish(events.Event{
		Type:      events.PlanCompleted,
		SessionID: snap.Plan.SessionID,
		PlanID:    snap.Plan.ID,
	})
	e.retire(snap)
	return &Outcome{State: snap}
}

// fail ends a run with a terminal failed status.
func (e *Engine) fail(r *run, cause error) *Outcome {
	r.mu.Lock()
	now := time.Now()
	r.state.Status = types.StatusFailed
	r.state.LastError = cause.Error()
	r.state.FinishedAt = &now
	r.driving = false
	snap := r.state.Snapshot()
	r.mu.Unlock()

	e.logger.Error("execution failed",
		zap.String("session_id", snap.Plan.SessionID),
		zap.String("plan_id", snap.Plan.ID),
		zap.Int("step", snap.CurrentStep),
		zap.Error(cause),
	)
	e.bus.Publish(events.Event{
		Type:      events.PlanFailed,
		SessionID: snap.Plan.SessionID,
		PlanID:    snap.Plan.ID,
		Text:      cause.Error(),
	})
	e.retire(snap)
	return &Outcome{State: snap}
}

// retire moves a terminal run from the live map to the bounded archive.
func (e *Engine) retire(snap *types.ExecutionState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sessions, snap.Plan.SessionID)
	e.archive = append(e.archive, snap)
	if len(e.archive) > e.config.HistoryLimit {
		trimmed := make([]*types.ExecutionState, e.config.HistoryLimit)
		copy(trimmed, e.archive[len(e.archive)-e.config.HistoryLimit:])
		e.archive = trimmed
	}
}

func (e *Engine) lookup(sessionID string) (*run, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if r, ok := e.sessions[sessionID]; ok {
		return r, nil
	}
	return nil, types.NewError(types.ErrSessionNotFound,
		fmt.Sprintf("no live run for session %s", sessionID))
}

func copyShared(src map[string]string) map[string]string {
	out := make(map[string]string, len(src)+1)
	for k, v := range src {
		out[k] = v
	}
	return out
}

// splitChunks cuts text into groups of words. An all-whitespace text yields
// no chunks.
func splitChunks(text string, words int) []string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}
	out := make([]string, 0, (len(fields)+words-1)/words)
	for i := 0; i < len(fields); i += words {
		out = append(out, strings.Join(fields[i:min(i+words, len(fields))], " "))
	}
	return out
}

func distinctWorkers(steps []types.PlanStep) []string {
	seen := make(map[string]struct{}, len(steps))
	out := make([]string, 0, len(steps))
	for _, s := range steps {
		if _, ok := seen[s.Worker]; ok {
			continue
		}
		seen[s.Worker] = struct{}{}
		out = append(out, s.Worker)
	}
	return out
}
