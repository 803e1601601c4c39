package predict

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultAlpha = 0.2
	minAlpha     = 0.05
	maxAlpha     = 0.5
)

// RouteMetrics are the smoothed observations for one worker or one pattern.
type RouteMetrics struct {
	// Utilization counts runs this key participated in.
	Utilization int `json:"utilization"`
	// SuccessRate, Satisfaction and InterruptionRate are EMAs in [0,1].
	SuccessRate      float64 `json:"success_rate"`
	Satisfaction     float64 `json:"satisfaction"`
	InterruptionRate float64 `json:"interruption_rate"`
	// AvgResponseTime is the EMA over observed run times.
	AvgResponseTime time.Duration `json:"avg_response_time"`
	// SatisfactionSamples counts satisfaction observations, which arrive
	// independently of runs.
	SatisfactionSamples int       `json:"satisfaction_samples"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Outcome is one completed run observation.
type Outcome struct {
	Success      bool
	Interrupted  bool
	ResponseTime time.Duration
}

// Store keeps smoothed routing metrics keyed by worker name and by pattern
// name. Updates follow new = old*(1-alpha) + sample*alpha; the first sample
// for a key seeds the metric directly so a cold start is not dragged toward
// zero.
type Store struct {
	mu       sync.RWMutex
	alpha    float64
	runs     int
	workers  map[string]*RouteMetrics
	patterns map[string]*RouteMetrics
	logger   *zap.Logger
}

// NewStore creates an empty metrics store. Alpha outside (0, 0.5] falls back
// to the 0.2 default; values below 0.05 are raised to 0.05.
func NewStore(alpha float64, logger *zap.Logger) *Store {
	if alpha <= 0 || alpha > maxAlpha {
		alpha = defaultAlpha
	}
	if alpha < minAlpha {
		alpha = minAlpha
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		alpha:    alpha,
		workers:  make(map[string]*RouteMetrics),
		patterns: make(map[string]*RouteMetrics),
		logger:   logger.With(zap.String("component", "route_metrics")),
	}
}

// Alpha returns the smoothing factor in use.
func (s *Store) Alpha() float64 { return s.alpha }

// ObserveRun records one completed run for the given workers and pattern.
func (s *Store) ObserveRun(workers []string, patternName string, outcome Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs++
	for _, w := range workers {
		s.observe(s.metric(s.workers, w), outcome)
	}
	if patternName != "" {
		s.observe(s.metric(s.patterns, patternName), outcome)
	}
	s.logger.Debug("run observed",
		zap.Strings("workers", workers),
		zap.String("pattern", patternName),
		zap.Bool("success", outcome.Success),
		zap.Bool("interrupted", outcome.Interrupted),
	)
}

// ObserveSatisfaction folds a satisfaction score in [0,1] into the named
// workers and pattern.
func (s *Store) ObserveSatisfaction(workers []string, patternName string, score float64) {
	score = clamp01(score)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range workers {
		s.observeSatisfaction(s.metric(s.workers, w), score)
	}
	if patternName != "" {
		s.observeSatisfaction(s.metric(s.patterns, patternName), score)
	}
}

// Worker returns a copy of the metrics for a worker name.
func (s *Store) Worker(name string) (RouteMetrics, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.workers[name]
	if !ok {
		return RouteMetrics{}, false
	}
	return *m, true
}

// Pattern returns a copy of the metrics for a pattern name.
func (s *Store) Pattern(name string) (RouteMetrics, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.patterns[name]
	if !ok {
		return RouteMetrics{}, false
	}
	return *m, true
}

// TotalRuns returns how many runs the store has observed.
func (s *Store) TotalRuns() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runs
}

func (s *Store) metric(byKey map[string]*RouteMetrics, key string) *RouteMetrics {
	m, ok := byKey[key]
	if !ok {
		m = &RouteMetrics{}
		byKey[key] = m
	}
	return m
}

func (s *Store) observe(m *RouteMetrics, outcome Outcome) {
	success := 0.0
	if outcome.Success {
		success = 1.0
	}
	interrupted := 0.0
	if outcome.Interrupted {
		interrupted = 1.0
	}

	if m.Utilization == 0 {
		m.SuccessRate = success
		m.InterruptionRate = interrupted
		m.AvgResponseTime = outcome.ResponseTime
	} else {
		m.SuccessRate = ema(m.SuccessRate, success, s.alpha)
		m.InterruptionRate = ema(m.InterruptionRate, interrupted, s.alpha)
		m.AvgResponseTime = time.Duration(ema(float64(m.AvgResponseTime), float64(outcome.ResponseTime), s.alpha))
	}
	m.Utilization++
	m.UpdatedAt = time.Now()
}

func (s *Store) observeSatisfaction(m *RouteMetrics, score float64) {
	if m.SatisfactionSamples == 0 {
		m.Satisfaction = score
	} else {
		m.Satisfaction = ema(m.Satisfaction, score, s.alpha)
	}
	m.SatisfactionSamples++
	m.UpdatedAt = time.Now()
}

func ema(old, sample, alpha float64) float64 {
	return old*(1-alpha) + sample*alpha
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
