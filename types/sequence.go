package types

import "time"

// InterruptionSafety annotates how safely a step can be interrupted.
type InterruptionSafety string

const (
	SafetySafe      InterruptionSafety = "safe"
	SafetyWarning   InterruptionSafety = "warning"
	SafetyDangerous InterruptionSafety = "dangerous"
)

// RiskType classifies a free-text risk statement.
type RiskType string

const (
	RiskDependency         RiskType = "dependency"
	RiskTiming             RiskType = "timing"
	RiskContextLoss        RiskType = "context_loss"
	RiskAgentOverload      RiskType = "agent_overload"
	RiskInterruptionDamage RiskType = "interruption_damage"
)

// RiskSeverity grades a risk by the intensity of its wording.
type RiskSeverity string

const (
	SeverityLow      RiskSeverity = "low"
	SeverityMedium   RiskSeverity = "medium"
	SeverityHigh     RiskSeverity = "high"
	SeverityCritical RiskSeverity = "critical"
)

// SequenceStep is one fully specified unit of work in an optimized sequence.
type SequenceStep struct {
	ID           string             `json:"id"`
	Worker       string             `json:"worker"`
	Action       string             `json:"action"`
	DependsOn    []string           `json:"depends_on,omitempty"`
	Duration     time.Duration      `json:"duration"`
	Priority     int                `json:"priority"` // 1..10
	Safety       InterruptionSafety `json:"safety"`
	ContextNeeds []string           `json:"context_needs,omitempty"`
	ExpectedOutput string           `json:"expected_output,omitempty"`
	QualityCheckpoints []string     `json:"quality_checkpoints,omitempty"`
}

// SequenceRisk is a classified risk with a canned mitigation.
type SequenceRisk struct {
	Type        RiskType     `json:"type"`
	Severity    RiskSeverity `json:"severity"`
	Description string       `json:"description"`
	Mitigation  string       `json:"mitigation"`
}

// OptimizedSequence is the step plan for one request, with mechanically
// derived speed and quality alternatives. Not persisted beyond the run.
//
// DependsOn metadata is advisory: the execution engine runs steps strictly in
// slice order.
type OptimizedSequence struct {
	Steps         []SequenceStep `json:"steps"`
	TotalDuration time.Duration  `json:"total_duration"`
	SafeSteps     []string       `json:"safe_steps,omitempty"` // ids safe to interrupt
	Risks         []SequenceRisk `json:"risks,omitempty"`
	Fallback      bool           `json:"fallback,omitempty"`

	SpeedAlternative   *OptimizedSequence `json:"speed_alternative,omitempty"`
	QualityAlternative *OptimizedSequence `json:"quality_alternative,omitempty"`
}

// RecomputeTotals refreshes TotalDuration and the safe-step id list from the
// current steps.
func (s *OptimizedSequence) RecomputeTotals() {
	var total time.Duration
	safe := s.SafeSteps[:0]
	for _, step := range s.Steps {
		total += step.Duration
		if step.Safety == SafetySafe {
			safe = append(safe, step.ID)
		}
	}
	s.TotalDuration = total
	s.SafeSteps = safe
}
