package orchestrator

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/gyasis/smalltalk-sub002/analysis"
	"github.com/gyasis/smalltalk-sub002/engine"
	"github.com/gyasis/smalltalk-sub002/events"
	"github.com/gyasis/smalltalk-sub002/learning"
	"github.com/gyasis/smalltalk-sub002/learning/adapt"
	"github.com/gyasis/smalltalk-sub002/llm"
	"github.com/gyasis/smalltalk-sub002/monitor"
	"github.com/gyasis/smalltalk-sub002/routing/pattern"
	"github.com/gyasis/smalltalk-sub002/routing/predict"
	"github.com/gyasis/smalltalk-sub002/routing/sequence"
	"github.com/gyasis/smalltalk-sub002/routing/skills"
	"github.com/gyasis/smalltalk-sub002/types"
	"github.com/gyasis/smalltalk-sub002/worker"
)

// Config tunes the orchestrator and the components it builds by default.
type Config struct {
	// Engine configures response streaming and run history retention.
	Engine engine.Config `json:"engine" yaml:"engine"`
	// Bus configures the event fan-out buffers.
	Bus events.Config `json:"bus" yaml:"bus"`
	// ContextBacklog caps how many contextual operator lines a session
	// retains for its next routing call.
	ContextBacklog int `json:"context_backlog" yaml:"context_backlog"`
	// LineBacklog is the buffer between operator sources and the monitor.
	LineBacklog int `json:"line_backlog" yaml:"line_backlog"`
}

// DefaultConfig returns the standard orchestrator tuning.
func DefaultConfig() Config {
	return Config{
		Engine:         engine.DefaultConfig(),
		Bus:            events.DefaultConfig(),
		ContextBacklog: 10,
		LineBacklog:    16,
	}
}

// Option overrides one of the orchestrator's strategies or collaborators.
type Option func(*Orchestrator)

// WithSkillsAnalyzer swaps the skills matching strategy.
func WithSkillsAnalyzer(s SkillsAnalyzer) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.skills = s
		}
	}
}

// WithPatternStrategy swaps the collaboration pattern strategy.
func WithPatternStrategy(p PatternStrategy) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.patterns = p
		}
	}
}

// WithSequenceStrategy swaps the sequence optimization strategy.
func WithSequenceStrategy(s SequenceStrategy) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.sequences = s
		}
	}
}

// WithRoutePredictor swaps the predictive routing strategy.
func WithRoutePredictor(r RoutePredictor) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.predictor = r
		}
	}
}

// WithLearner swaps the feedback learner, for a custom model store.
func WithLearner(l *learning.Learner) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.learner = l
		}
	}
}

// WithPlanner swaps the adaptive planner, for a custom confidence gate.
func WithPlanner(p *adapt.Planner) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.planner = p
		}
	}
}

// session is the per-session monitor wiring: a line feed bound to a
// dedicated monitor, plus the contextual backlog for the next routing call.
type session struct {
	lines  chan string
	cancel context.CancelFunc

	mu         sync.Mutex
	contextual []string
}

func (s *session) remember(line string, limit int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contextual = append(s.contextual, line)
	if limit > 0 && len(s.contextual) > limit {
		s.contextual = s.contextual[len(s.contextual)-limit:]
	}
}

func (s *session) drain() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.contextual
	s.contextual = nil
	return out
}

// Orchestrator routes requests to worker teams and drives their execution.
type Orchestrator struct {
	config   Config
	logger   *zap.Logger
	registry *worker.Registry
	engine   *engine.Engine
	bus      *events.Bus
	learner  *learning.Learner
	planner  *adapt.Planner
	metrics  *predict.Store

	skills    SkillsAnalyzer
	patterns  PatternStrategy
	sequences SequenceStrategy
	predictor RoutePredictor

	mu       sync.Mutex
	sessions map[string]*session
}

// New assembles an orchestrator around one LLM provider. A nil provider
// keeps every strategy on its deterministic fallback path, which is also
// how tests exercise the full pipeline without a backend.
func New(provider llm.Provider, config *Config, logger *zap.Logger, opts ...Option) *Orchestrator {
	if config == nil {
		def := DefaultConfig()
		config = &def
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var analyzer *analysis.Analyzer
	if provider != nil {
		analyzer = analysis.NewAnalyzer(provider, analysis.WithLogger(logger))
	}

	registry := worker.NewRegistry(logger)
	bus := events.NewBus(config.Bus, logger)

	o := &Orchestrator{
		config:    *config,
		logger:    logger.With(zap.String("component", "orchestrator")),
		registry:  registry,
		engine:    engine.NewEngine(registry, bus, config.Engine, logger),
		bus:       bus,
		learner:   learning.NewLearner(nil, nil, logger),
		planner:   adapt.NewPlanner(analyzer, nil, logger),
		skills:    skills.NewMatcher(analyzer, nil, logger),
		patterns:  pattern.NewSelector(analyzer, nil, logger),
		sequences: sequence.NewOptimizer(analyzer, nil, logger),
		predictor: predict.NewRouter(analyzer, nil, logger),
		sessions:  make(map[string]*session),
	}
	if o.config.ContextBacklog <= 0 {
		o.config.ContextBacklog = DefaultConfig().ContextBacklog
	}
	if o.config.LineBacklog <= 0 {
		o.config.LineBacklog = DefaultConfig().LineBacklog
	}
	for _, opt := range opts {
		opt(o)
	}

	// Run outcomes feed the predictor's metrics when it exposes them;
	// otherwise they accumulate in a standalone store.
	if router, ok := o.predictor.(*predict.Router); ok {
		o.metrics = router.Metrics()
	} else {
		o.metrics = predict.NewStore(0, logger)
	}
	return o
}

// RegisterWorker adds a worker to a session's roster. A nil profile is
// derived from the worker's name and role.
func (o *Orchestrator) RegisterWorker(sessionID string, w types.Worker, role string, profile *types.WorkerProfile) error {
	return o.registry.Register(sessionID, w, role, profile)
}

// UnregisterWorker removes a worker from a session's roster.
func (o *Orchestrator) UnregisterWorker(sessionID, name string) error {
	return o.registry.Unregister(sessionID, name)
}

// Roster lists a session's registered workers in registration order.
func (o *Orchestrator) Roster(sessionID string) []*worker.Entry {
	return o.registry.List(sessionID)
}

// AttachOperator streams an external line source, such as stdin or a
// websocket, into the session's monitor feed until the source ends or ctx
// is canceled.
func (o *Orchestrator) AttachOperator(ctx context.Context, sessionID string, src monitor.LineSource) {
	s := o.sessionFor(sessionID)
	go func() {
		for {
			line, err := src.ReadLine(ctx)
			if err != nil {
				return
			}
			select {
			case s.lines <- line:
			case <-ctx.Done():
				return
			}
		}
	}()
}

// InjectOperatorLine feeds one operator line into the session's monitor.
// A full feed drops the line rather than blocking the caller.
func (o *Orchestrator) InjectOperatorLine(sessionID, line string) {
	s := o.sessionFor(sessionID)
	select {
	case s.lines <- line:
	default:
		o.logger.Warn("operator feed full, line dropped",
			zap.String("session_id", sessionID))
	}
}

// Interrupt delivers a programmatic interruption to the session's live run,
// bypassing text classification. API callers use this when the client has
// already decided what the operator meant.
func (o *Orchestrator) Interrupt(sessionID string, intr *types.Interruption) error {
	return o.engine.Interrupt(sessionID, intr)
}

// CloseSession releases the session's monitor and pump. A parked run keeps
// its engine slot and can still be resumed, which re-opens the session.
func (o *Orchestrator) CloseSession(sessionID string) {
	o.mu.Lock()
	s, ok := o.sessions[sessionID]
	delete(o.sessions, sessionID)
	o.mu.Unlock()
	if ok {
		s.cancel()
	}
}

// Close releases every session and shuts the event bus down.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	sessions := o.sessions
	o.sessions = make(map[string]*session)
	o.mu.Unlock()
	for _, s := range sessions {
		s.cancel()
	}
	o.bus.Close()
}

// BehaviorModel returns the learned behavior model for a user.
func (o *Orchestrator) BehaviorModel(ctx context.Context, userID string) (*types.UserBehaviorModel, error) {
	return o.learner.Model(ctx, userID)
}

// SessionState reports the live or most recent archived run for a session.
func (o *Orchestrator) SessionState(sessionID string) (*types.ExecutionState, error) {
	return o.engine.State(sessionID)
}

// Sessions lists the sessions with live runs, sorted.
func (o *Orchestrator) Sessions() []string {
	return o.engine.Sessions()
}

// History returns archived terminal runs, oldest first.
func (o *Orchestrator) History() []*types.ExecutionState {
	return o.engine.History()
}

// Metrics exposes the routing outcome store.
func (o *Orchestrator) Metrics() *predict.Store {
	return o.metrics
}

// Events exposes the event bus so callers can subscribe to the run stream.
func (o *Orchestrator) Events() *events.Bus {
	return o.bus
}

// sessionFor returns the session wiring, creating monitor, feed and pump on
// first use.
func (o *Orchestrator) sessionFor(sessionID string) *session {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok := o.sessions[sessionID]; ok {
		return s
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		lines:  make(chan string, o.config.LineBacklog),
		cancel: cancel,
	}
	o.sessions[sessionID] = s

	m := monitor.NewMonitor(o.logger)
	m.Watch(ctx, sessionID, monitor.NewChanSource(s.lines))
	go o.pump(ctx, sessionID, s, m)
	return s
}

// pump forwards the session's interruptions into the engine and retains
// plain contextual lines for the next routing call.
func (o *Orchestrator) pump(ctx context.Context, sessionID string, s *session, m *monitor.Monitor) {
	for {
		select {
		case <-ctx.Done():
			return
		case intr := <-m.Interruptions():
			if intr == nil {
				continue
			}
			if err := o.engine.Interrupt(sessionID, intr); err != nil {
				o.logger.Debug("interruption arrived with no live run",
					zap.String("session_id", sessionID),
					zap.String("type", string(intr.Type)))
			}
		case line := <-m.Contextual():
			if line != "" {
				s.remember(line, o.config.ContextBacklog)
			}
		}
	}
}
