package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyasis/smalltalk-sub002/analysis"
	"github.com/gyasis/smalltalk-sub002/engine"
	"github.com/gyasis/smalltalk-sub002/events"
	"github.com/gyasis/smalltalk-sub002/learning/adapt"
	"github.com/gyasis/smalltalk-sub002/llm"
	"github.com/gyasis/smalltalk-sub002/routing/predict"
	"github.com/gyasis/smalltalk-sub002/types"
)

// scriptedWorker answers with a fixed hook so tests can interrupt at exact
// points of a run.
type scriptedWorker struct {
	name    string
	mu      sync.Mutex
	calls   int
	respond func(call int, prompt string, shared map[string]string) (string, error)
}

func (w *scriptedWorker) Name() string { return w.name }

func (w *scriptedWorker) Respond(_ context.Context, prompt string, shared map[string]string) (string, error) {
	w.mu.Lock()
	w.calls++
	call := w.calls
	w.mu.Unlock()
	if w.respond != nil {
		return w.respond(call, prompt, shared)
	}
	return fmt.Sprintf("%s answer %d", w.name, call), nil
}

func (w *scriptedWorker) callCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}

// queueProvider pops one scripted reply per completion call.
type queueProvider struct {
	replies []string
	calls   int
}

func (q *queueProvider) Name() string { return "queue" }

func (q *queueProvider) Completion(context.Context, *llm.Request) (*llm.Response, error) {
	q.calls++
	if len(q.replies) == 0 {
		return &llm.Response{Text: ""}, nil
	}
	reply := q.replies[0]
	q.replies = q.replies[1:]
	return &llm.Response{Text: reply}, nil
}

func (q *queueProvider) HealthCheck(context.Context) error { return nil }

func newTestOrchestrator(t *testing.T, opts ...Option) *Orchestrator {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Engine.ChunkDelay = 0
	o := New(nil, &cfg, nil, opts...)
	t.Cleanup(o.Close)
	return o
}

// briefRequest overlaps ada's skills twice over, bert's once and cleo's not
// at all, so the fallback ranking is always ada, bert, cleo.
const briefRequest = "research the budget and draft the report"

func teamProfiles() map[string]*types.WorkerProfile {
	return map[string]*types.WorkerProfile{
		"ada": {
			Name:            "ada",
			PrimarySkills:   []string{"research", "budget"},
			DomainExpertise: []string{"budget"},
			TaskTypes:       []string{"analysis"},
			Complexity:      types.ComplexityIntermediate,
		},
		"bert": {
			Name:          "bert",
			PrimarySkills: []string{"draft", "report"},
			TaskTypes:     []string{"writing"},
			Complexity:    types.ComplexityIntermediate,
		},
		"cleo": {
			Name:          "cleo",
			PrimarySkills: []string{"painting"},
			TaskTypes:     []string{"art"},
			Complexity:    types.ComplexityBasic,
		},
	}
}

func registerTeam(t *testing.T, o *Orchestrator, sessionID string, workers ...*scriptedWorker) {
	t.Helper()
	profiles := teamProfiles()
	for _, w := range workers {
		require.NoError(t, o.RegisterWorker(sessionID, w, "", profiles[w.name]))
	}
}

func drainEvents(ch <-chan events.Event) []events.Event {
	var out []events.Event
	for {
		select {
		case e := <-ch:
			out = append(out, e)
		default:
			return out
		}
	}
}

func countType(all []events.Event, typ events.Type) int {
	n := 0
	for _, e := range all {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func TestOrchestrator_RunCompletesOnFallbackPipeline(t *testing.T) {
	o := newTestOrchestrator(t)
	ada := &scriptedWorker{name: "ada"}
	bert := &scriptedWorker{name: "bert", respond: func(_ int, prompt string, shared map[string]string) (string, error) {
		assert.Equal(t, briefRequest, prompt)
		assert.Equal(t, briefRequest, shared["request"])
		assert.NotEmpty(t, shared["output:step-1"])
		return "final report", nil
	}}
	cleo := &scriptedWorker{name: "cleo"}
	registerTeam(t, o, "sess-run", ada, bert, cleo)

	ch, stop := o.Events().Subscribe()
	defer stop()

	res, err := o.Run(context.Background(), &Request{SessionID: "sess-run", UserID: "u1", Text: briefRequest})
	require.NoError(t, err)

	decision := res.Decision
	require.NotNil(t, decision)
	assert.Equal(t, []string{"ada", "bert"}, decision.Workers)
	assert.Equal(t, "sequential-handoff", decision.Pattern)
	require.Len(t, decision.Analyses, 3)
	assert.Equal(t, "ada", decision.Analyses[0].WorkerName)

	wantConfidence := max(decision.Recommendation.Confidence, decision.Prediction.Primary.Confidence)
	assert.Equal(t, wantConfidence, decision.Confidence)
	wantDuration := decision.Prediction.Primary.PredictedDuration
	if wantDuration <= 0 {
		wantDuration = decision.Sequence.TotalDuration
	}
	assert.Equal(t, wantDuration, decision.Duration)

	plan := decision.Plan
	require.NotNil(t, plan)
	assert.NotEmpty(t, plan.ID)
	assert.Equal(t, "sess-run", plan.SessionID)
	assert.Equal(t, "u1", plan.UserID)
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, "step-1", plan.Steps[0].ID)
	assert.Equal(t, "ada", plan.Steps[0].Worker)
	assert.Equal(t, "step-2", plan.Steps[1].ID)
	assert.Equal(t, "bert", plan.Steps[1].Worker)

	require.NotNil(t, res.Outcome)
	assert.Equal(t, types.StatusCompleted, res.Outcome.State.Status)
	assert.Len(t, res.Outcome.State.StepOutputs, 2)
	assert.Equal(t, 1, ada.callCount())
	assert.Equal(t, 1, bert.callCount())
	assert.Zero(t, cleo.callCount())

	assert.Empty(t, o.Sessions())
	archived, err := o.SessionState("sess-run")
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, archived.Status)

	assert.Equal(t, 1, o.Metrics().TotalRuns())
	_, ok := o.Metrics().Worker("ada")
	assert.True(t, ok)

	all := drainEvents(ch)
	assert.Equal(t, 1, countType(all, events.RoutingDecision))
	assert.Equal(t, 1, countType(all, events.PlanStarted))
	assert.Equal(t, 1, countType(all, events.PlanCompleted))
	assert.Equal(t, 2, countType(all, events.StepStarted))
	assert.Equal(t, 2, countType(all, events.StepCompleted))
	require.NotEmpty(t, all)
	assert.Equal(t, events.RoutingDecision, all[0].Type)
}

func TestOrchestrator_RoutePreviewDoesNotStartARun(t *testing.T) {
	o := newTestOrchestrator(t)
	registerTeam(t, o, "sess-prev", &scriptedWorker{name: "ada"}, &scriptedWorker{name: "bert"})

	decision, err := o.Route(context.Background(), &Request{SessionID: "sess-prev", Text: briefRequest})
	require.NoError(t, err)
	require.NotNil(t, decision.Plan)

	assert.Empty(t, o.Sessions())
	_, err = o.SessionState("sess-prev")
	assert.True(t, types.IsErrorCode(err, types.ErrSessionNotFound))
}

func TestOrchestrator_RouteValidation(t *testing.T) {
	o := newTestOrchestrator(t)

	_, err := o.Route(context.Background(), nil)
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))

	_, err = o.Route(context.Background(), &Request{SessionID: "s", Text: "   "})
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))

	_, err = o.Route(context.Background(), &Request{Text: "hello"})
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))

	_, err = o.Route(context.Background(), &Request{SessionID: "sess-none", Text: "hello"})
	assert.True(t, types.IsErrorCode(err, types.ErrNoSuitableWorker))
}

type stubSkills struct {
	analyses []*types.SkillsMatchAnalysis
	recent   []types.Turn
}

func (s *stubSkills) Match(_ context.Context, _ string, _ []*types.WorkerProfile, recent []types.Turn) ([]*types.SkillsMatchAnalysis, error) {
	s.recent = recent
	return s.analyses, nil
}

type stubPredictor struct {
	prediction *types.RoutingPrediction
}

func (s *stubPredictor) Predict(context.Context, *predict.Input) (*types.RoutingPrediction, error) {
	return s.prediction, nil
}

func TestOrchestrator_MergeRules(t *testing.T) {
	analyses := []*types.SkillsMatchAnalysis{
		{WorkerName: "ada", OverallMatch: 0.9, Confidence: 0.8, Rank: 1},
		{WorkerName: "bert", OverallMatch: 0.7, Confidence: 0.8, Rank: 2},
	}

	t.Run("predictor wins confidence and duration", func(t *testing.T) {
		o := newTestOrchestrator(t,
			WithSkillsAnalyzer(&stubSkills{analyses: analyses}),
			WithRoutePredictor(&stubPredictor{prediction: &types.RoutingPrediction{
				Primary: types.RouteOption{
					Workers:           []string{"ada"},
					Pattern:           "single-expert",
					Confidence:        0.95,
					PredictedDuration: 42 * time.Second,
				},
			}}),
		)

		decision, err := o.Route(context.Background(), &Request{SessionID: "sess-m1", Text: "anything"})
		require.NoError(t, err)
		// The selector still names the team; prediction sharpens the numbers.
		assert.Equal(t, []string{"ada", "bert"}, decision.Workers)
		assert.Equal(t, "sequential-handoff", decision.Pattern)
		assert.Equal(t, 0.95, decision.Confidence)
		assert.Equal(t, 42*time.Second, decision.Duration)
	})

	t.Run("selector wins when prediction is weaker", func(t *testing.T) {
		o := newTestOrchestrator(t,
			WithSkillsAnalyzer(&stubSkills{analyses: analyses}),
			WithRoutePredictor(&stubPredictor{prediction: &types.RoutingPrediction{
				Primary: types.RouteOption{Workers: []string{"ada"}, Confidence: 0.2},
			}}),
		)

		decision, err := o.Route(context.Background(), &Request{SessionID: "sess-m2", Text: "anything"})
		require.NoError(t, err)
		assert.Equal(t, decision.Recommendation.Confidence, decision.Confidence)
		assert.Equal(t, decision.Sequence.TotalDuration, decision.Duration)
		assert.Positive(t, decision.Duration)
	})
}

func TestOrchestrator_OperatorStopParksTheRun(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine.ChunkWords = 2
	cfg.Engine.ChunkDelay = 5 * time.Millisecond
	o := New(nil, &cfg, nil)
	t.Cleanup(o.Close)

	ada := &scriptedWorker{name: "ada", respond: func(call int, _ string, _ map[string]string) (string, error) {
		if call == 1 {
			return strings.TrimSpace(strings.Repeat("word ", 120)), nil
		}
		return "short answer", nil
	}}
	bert := &scriptedWorker{name: "bert"}
	registerTeam(t, o, "sess-stop", ada, bert)

	type result struct {
		res *RunResult
		err error
	}
	done := make(chan result, 1)
	go func() {
		res, err := o.Run(context.Background(), &Request{SessionID: "sess-stop", Text: briefRequest})
		done <- result{res, err}
	}()

	require.Eventually(t, func() bool {
		for _, id := range o.Sessions() {
			if id == "sess-stop" {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)

	o.InjectOperatorLine("sess-stop", "STOP")

	var got result
	select {
	case got = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not park after the stop line")
	}
	require.NoError(t, got.err)

	state := got.res.Outcome.State
	assert.Equal(t, types.StatusPaused, state.Status)
	assert.Equal(t, engine.FollowUpResume, got.res.Outcome.Request)
	require.Len(t, state.Interruptions, 1)
	assert.Equal(t, types.InterruptStop, state.Interruptions[0].Type)
	assert.Equal(t, "sess-stop", state.Interruptions[0].SessionID)
	assert.Zero(t, bert.callCount())
	assert.Empty(t, state.StepOutputs)

	out, err := o.Resume(context.Background(), "sess-stop")
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, out.State.Status)
	assert.Equal(t, 2, ada.callCount())
	assert.Equal(t, 1, bert.callCount())
}

func TestOrchestrator_DispatchSwapsWorkerAndResumes(t *testing.T) {
	o := newTestOrchestrator(t)
	ada := &scriptedWorker{name: "ada"}
	bert := &scriptedWorker{name: "bert"}
	cleo := &scriptedWorker{name: "cleo"}
	registerTeam(t, o, "sess-swap", ada, bert, cleo)

	ada.respond = func(call int, _ string, _ map[string]string) (string, error) {
		if call == 1 {
			require.NoError(t, o.Interrupt("sess-swap", &types.Interruption{
				Type:         types.InterruptAgentSwitch,
				TargetWorker: "cleo",
				Message:      "@cleo take over",
			}))
		}
		return "notes", nil
	}

	res, err := o.Run(context.Background(), &Request{SessionID: "sess-swap", Text: briefRequest})
	require.NoError(t, err)
	require.Equal(t, types.StatusInterrupted, res.Outcome.State.Status)
	require.Equal(t, engine.FollowUpSwapWorker, res.Outcome.Request)

	dispatched, err := o.Dispatch(context.Background(), res.Outcome)
	require.NoError(t, err)
	require.NotNil(t, dispatched.Outcome)
	assert.Nil(t, dispatched.Decision)
	assert.Equal(t, types.StatusCompleted, dispatched.Outcome.State.Status)
	assert.Equal(t, []string{"cleo", "bert"}, dispatched.Outcome.State.Plan.Workers)
	assert.Equal(t, 1, ada.callCount())
	assert.Equal(t, 1, cleo.callCount())
	assert.Equal(t, 1, bert.callCount())
}

func TestOrchestrator_DispatchReplansWithDirection(t *testing.T) {
	o := newTestOrchestrator(t)
	ada := &scriptedWorker{name: "ada"}
	bert := &scriptedWorker{name: "bert"}
	registerTeam(t, o, "sess-re", ada, bert)

	ada.respond = func(call int, _ string, _ map[string]string) (string, error) {
		if call == 1 {
			require.NoError(t, o.Interrupt("sess-re", &types.Interruption{
				Type:        types.InterruptRedirect,
				Redirection: "focus on the costs",
			}))
		}
		return "notes", nil
	}

	res, err := o.Run(context.Background(), &Request{SessionID: "sess-re", UserID: "u2", Text: briefRequest})
	require.NoError(t, err)
	require.Equal(t, engine.FollowUpReplan, res.Outcome.Request)

	dispatched, err := o.Dispatch(context.Background(), res.Outcome)
	require.NoError(t, err)
	require.NotNil(t, dispatched.Decision)
	assert.Contains(t, dispatched.Decision.Plan.Request, briefRequest)
	assert.Contains(t, dispatched.Decision.Plan.Request, "New direction: focus on the costs")
	assert.Equal(t, "u2", dispatched.Decision.Plan.UserID)
	assert.Equal(t, types.StatusCompleted, dispatched.Outcome.State.Status)
	assert.Equal(t, 2, ada.callCount())

	history := o.History()
	require.Len(t, history, 2)
	assert.Equal(t, types.StatusFailed, history[0].Status)
	assert.Contains(t, history[0].LastError, "replanned")
	assert.Equal(t, types.StatusCompleted, history[1].Status)
}

func TestOrchestrator_AnswerClarificationResumesWithContext(t *testing.T) {
	o := newTestOrchestrator(t)
	ada := &scriptedWorker{name: "ada"}
	bert := &scriptedWorker{name: "bert", respond: func(_ int, _ string, shared map[string]string) (string, error) {
		assert.Equal(t, "Q3", shared["clarification"])
		return "report for Q3", nil
	}}
	registerTeam(t, o, "sess-cl", ada, bert)

	ada.respond = func(call int, _ string, _ map[string]string) (string, error) {
		if call == 1 {
			require.NoError(t, o.Interrupt("sess-cl", &types.Interruption{
				Type:    types.InterruptClarify,
				Message: "which quarter?",
			}))
		}
		return "notes", nil
	}

	res, err := o.Run(context.Background(), &Request{SessionID: "sess-cl", Text: briefRequest})
	require.NoError(t, err)
	require.Equal(t, engine.FollowUpClarify, res.Outcome.Request)

	// Dispatch cannot answer a question; the outcome comes back untouched.
	same, err := o.Dispatch(context.Background(), res.Outcome)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPaused, same.Outcome.State.Status)

	_, err = o.AnswerClarification(context.Background(), "sess-cl", "   ")
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))

	out, err := o.AnswerClarification(context.Background(), "sess-cl", "Q3")
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, out.State.Status)
	assert.Equal(t, 1, bert.callCount())
}

const lowConfidenceAdaptation = `ADAPTATION_KIND: reorder
CONFIDENCE: 50
REASON: the review might work better first
AFFECTED_STEPS: step-2
RISK_LEVEL: low
ESTIMATED_IMPROVEMENT: 20
PREDICTED_SATISFACTION: 55`

func TestOrchestrator_FeedbackBelowGateLeavesPlanUntouched(t *testing.T) {
	provider := &queueProvider{replies: []string{lowConfidenceAdaptation}}
	planner := adapt.NewPlanner(analysis.NewAnalyzer(provider), nil, nil)
	o := newTestOrchestrator(t, WithPlanner(planner))

	ada := &scriptedWorker{name: "ada"}
	bert := &scriptedWorker{name: "bert"}
	registerTeam(t, o, "sess-fb", ada, bert)
	ada.respond = func(call int, _ string, _ map[string]string) (string, error) {
		if call == 1 {
			require.NoError(t, o.Interrupt("sess-fb", &types.Interruption{Type: types.InterruptPause}))
		}
		return "notes", nil
	}

	res, err := o.Run(context.Background(), &Request{SessionID: "sess-fb", UserID: "u7", Text: briefRequest})
	require.NoError(t, err)
	require.Equal(t, types.StatusPaused, res.Outcome.State.Status)

	ch, stop := o.Events().Subscribe()
	defer stop()

	report, err := o.HandleFeedback(context.Background(), &types.FeedbackEvent{
		UserID:    "u7",
		SessionID: "sess-fb",
		Kind:      types.FeedbackExplicit,
		Sentiment: types.SentimentNegative,
		Message:   "this is drifting off course",
	})
	require.NoError(t, err)
	assert.False(t, report.Applied)
	assert.Equal(t, "no adaptation applied", report.Note)
	require.NotNil(t, report.Adaptation)
	assert.Equal(t, types.AdaptReorder, report.Adaptation.Kind)
	assert.InDelta(t, 0.5, report.Adaptation.Confidence, 1e-9)
	require.NotNil(t, report.Model)
	assert.Equal(t, "u7", report.Model.UserID)
	assert.Equal(t, 1, report.Model.FeedbackCount)

	assert.Zero(t, countType(drainEvents(ch), events.PlanAdapted))

	// The plan is untouched, so resuming still runs both steps.
	out, err := o.Resume(context.Background(), "sess-fb")
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, out.State.Status)
	assert.Equal(t, 1, bert.callCount())
}

const removeAdaptation = `ADAPTATION_KIND: remove
CONFIDENCE: 90
REASON: the drafting step is redundant now
AFFECTED_STEPS: step-2
RISK_LEVEL: medium
ESTIMATED_IMPROVEMENT: 30
PREDICTED_SATISFACTION: 80`

func TestOrchestrator_FeedbackAboveGateRemovesSteps(t *testing.T) {
	provider := &queueProvider{replies: []string{removeAdaptation}}
	planner := adapt.NewPlanner(analysis.NewAnalyzer(provider), nil, nil)
	o := newTestOrchestrator(t, WithPlanner(planner))

	ada := &scriptedWorker{name: "ada"}
	bert := &scriptedWorker{name: "bert"}
	registerTeam(t, o, "sess-ad", ada, bert)
	ada.respond = func(call int, _ string, _ map[string]string) (string, error) {
		if call == 1 {
			require.NoError(t, o.Interrupt("sess-ad", &types.Interruption{Type: types.InterruptPause}))
		}
		return "notes", nil
	}

	res, err := o.Run(context.Background(), &Request{SessionID: "sess-ad", UserID: "u8", Text: briefRequest})
	require.NoError(t, err)
	require.Equal(t, types.StatusPaused, res.Outcome.State.Status)

	ch, stop := o.Events().Subscribe()
	defer stop()

	report, err := o.HandleFeedback(context.Background(), &types.FeedbackEvent{
		UserID:    "u8",
		SessionID: "sess-ad",
		Kind:      types.FeedbackExplicit,
		Sentiment: types.SentimentNegative,
		Message:   "skip the drafting, just give me the research",
	})
	require.NoError(t, err)
	assert.True(t, report.Applied)
	assert.Equal(t, "removed steps step-2", report.Note)

	all := drainEvents(ch)
	require.Equal(t, 1, countType(all, events.PlanAdapted))
	for _, e := range all {
		if e.Type == events.PlanAdapted {
			assert.Equal(t, true, e.Data["applied"])
			assert.Equal(t, "remove", e.Data["kind"])
		}
	}

	_, ok := o.Metrics().Worker("ada")
	assert.True(t, ok)

	out, err := o.Resume(context.Background(), "sess-ad")
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, out.State.Status)
	assert.Zero(t, bert.callCount())
	assert.Contains(t, out.State.StepOutputs, "step-1")
	assert.NotContains(t, out.State.StepOutputs, "step-2")
	assert.Equal(t, []string{"ada"}, out.State.Plan.Workers)
}

func TestOrchestrator_FeedbackWithoutSessionOnlyLearns(t *testing.T) {
	o := newTestOrchestrator(t)

	_, err := o.BehaviorModel(context.Background(), "u9")
	require.Error(t, err)

	report, err := o.HandleFeedback(context.Background(), &types.FeedbackEvent{
		UserID:    "u9",
		Kind:      types.FeedbackExplicit,
		Sentiment: types.SentimentPositive,
		Message:   "great work",
	})
	require.NoError(t, err)
	assert.False(t, report.Applied)
	assert.Equal(t, "no adaptation applied", report.Note)
	assert.Nil(t, report.Adaptation)

	model, err := o.BehaviorModel(context.Background(), "u9")
	require.NoError(t, err)
	assert.Equal(t, 1, model.FeedbackCount)

	_, err = o.HandleFeedback(context.Background(), &types.FeedbackEvent{Message: "no user"})
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))
}

func TestOrchestrator_ContextualLinesFoldIntoNextRoute(t *testing.T) {
	o := newTestOrchestrator(t)

	o.InjectOperatorLine("sess-ctx", "keep the tone formal")

	require.Eventually(t, func() bool {
		o.mu.Lock()
		s := o.sessions["sess-ctx"]
		o.mu.Unlock()
		if s == nil {
			return false
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.contextual) == 1
	}, 2*time.Second, 5*time.Millisecond)

	turns := o.recentTurns(&Request{SessionID: "sess-ctx"})
	require.Len(t, turns, 1)
	assert.Equal(t, types.RoleUser, turns[0].Role)
	assert.Equal(t, "operator", turns[0].Speaker)
	assert.Equal(t, "keep the tone formal", turns[0].Content)

	// The backlog drains on use.
	assert.Empty(t, o.recentTurns(&Request{SessionID: "sess-ctx"}))
}

func TestOrchestrator_BusySessionRejected(t *testing.T) {
	o := newTestOrchestrator(t)
	ada := &scriptedWorker{name: "ada"}
	bert := &scriptedWorker{name: "bert"}
	registerTeam(t, o, "sess-busy", ada, bert)
	ada.respond = func(call int, _ string, _ map[string]string) (string, error) {
		if call == 1 {
			require.NoError(t, o.Interrupt("sess-busy", &types.Interruption{Type: types.InterruptPause}))
		}
		return "notes", nil
	}

	res, err := o.Run(context.Background(), &Request{SessionID: "sess-busy", Text: briefRequest})
	require.NoError(t, err)
	require.Equal(t, types.StatusPaused, res.Outcome.State.Status)

	_, err = o.Run(context.Background(), &Request{SessionID: "sess-busy", Text: briefRequest})
	assert.True(t, types.IsErrorCode(err, types.ErrSessionBusy))

	_, err = o.Resume(context.Background(), "sess-busy")
	require.NoError(t, err)
}

func TestOrchestrator_RosterManagement(t *testing.T) {
	o := newTestOrchestrator(t)
	registerTeam(t, o, "sess-r", &scriptedWorker{name: "ada"}, &scriptedWorker{name: "bert"})

	entries := o.Roster("sess-r")
	require.Len(t, entries, 2)
	assert.Equal(t, "ada", entries[0].Worker.Name())

	require.NoError(t, o.UnregisterWorker("sess-r", "bert"))
	assert.Len(t, o.Roster("sess-r"), 1)

	err := o.RegisterWorker("sess-r", &scriptedWorker{name: "ada"}, "", nil)
	require.Error(t, err)
}
