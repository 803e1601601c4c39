package sequence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gyasis/smalltalk-sub002/analysis"
	"github.com/gyasis/smalltalk-sub002/types"
)

// Config tunes sequence optimization.
type Config struct {
	// QualityPriorityThreshold marks steps that get a review step in the
	// quality variant.
	QualityPriorityThreshold int `json:"quality_priority_threshold"`
	// FallbackStepDuration is the per-step estimate of the fallback sequence.
	FallbackStepDuration time.Duration `json:"fallback_step_duration"`
	// MinStepSeconds and MaxStepSeconds clamp replied durations.
	MinStepSeconds int `json:"min_step_seconds"`
	MaxStepSeconds int `json:"max_step_seconds"`
}

// DefaultConfig returns standard optimization settings.
func DefaultConfig() *Config {
	return &Config{
		QualityPriorityThreshold: 7,
		FallbackStepDuration:     2 * time.Minute,
		MinStepSeconds:           5,
		MaxStepSeconds:           3600,
	}
}

// Optimizer builds optimized sequences.
type Optimizer struct {
	analyzer *analysis.Analyzer
	config   *Config
	logger   *zap.Logger
}

// NewOptimizer creates an Optimizer. A nil analyzer always produces the
// deterministic fallback sequence.
func NewOptimizer(analyzer *analysis.Analyzer, config *Config, logger *zap.Logger) *Optimizer {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Optimizer{
		analyzer: analyzer,
		config:   config,
		logger:   logger.With(zap.String("component", "sequence_optimizer")),
	}
}

// Optimize specifies every step of the recommendation and attaches the speed
// and quality variants. Analysis failures degrade to the fallback sequence,
// never to an error; only an unusable recommendation is fatal.
func (o *Optimizer) Optimize(ctx context.Context, request string, rec *types.CollaborationRecommendation, analyses []*types.SkillsMatchAnalysis) (*types.OptimizedSequence, error) {
	if rec == nil || len(rec.Workers) == 0 {
		return nil, types.NewError(types.ErrNoSuitableWorker, "recommendation has no workers")
	}

	skeleton := o.skeletonSteps(rec)

	seq := o.refineSteps(ctx, request, rec, analyses, skeleton)
	if seq == nil {
		seq = o.fallbackSequence(rec)
	}

	seq.RecomputeTotals()
	o.attachVariants(seq, rec.Workers)
	return seq, nil
}

// skeletonSteps derives the step outline the model refines: the resolved
// template steps when present, otherwise one step per worker.
func (o *Optimizer) skeletonSteps(rec *types.CollaborationRecommendation) []types.ResolvedStep {
	if len(rec.Steps) > 0 {
		return rec.Steps
	}
	steps := make([]types.ResolvedStep, len(rec.Workers))
	for i, name := range rec.Workers {
		steps[i] = types.ResolvedStep{
			Worker:   name,
			Action:   "address the request and hand off",
			Duration: o.config.FallbackStepDuration,
		}
	}
	return steps
}

// refineSteps runs the per-step decision. Nil means the caller should use the
// fallback sequence.
func (o *Optimizer) refineSteps(ctx context.Context, request string, rec *types.CollaborationRecommendation, analyses []*types.SkillsMatchAnalysis, skeleton []types.ResolvedStep) *types.OptimizedSequence {
	if o.analyzer == nil {
		return nil
	}

	schema := buildStepSchema(len(skeleton))
	result, err := o.analyzer.Decide(ctx, schema, o.buildPrompt(request, rec, analyses, skeleton))
	if err != nil {
		o.logger.Warn("sequence analysis unavailable, using fallback sequence", zap.Error(err))
		return nil
	}

	seq := &types.OptimizedSequence{}
	for i, sk := range skeleton {
		id := stepID(i)
		secs := clampInt(result.Int(field(i, "DURATION_SECONDS")),
			o.config.MinStepSeconds, o.config.MaxStepSeconds)

		step := types.SequenceStep{
			ID:                 id,
			Worker:             sk.Worker,
			Action:             sk.Action,
			DependsOn:          o.dependsOn(result.List(field(i, "DEPENDS_ON")), i),
			Duration:           time.Duration(secs) * time.Second,
			Priority:           clampInt(result.Int(field(i, "PRIORITY")), 1, 10),
			Safety:             parseSafety(result.Text(field(i, "SAFETY"))),
			ContextNeeds:       result.List(field(i, "CONTEXT")),
			ExpectedOutput:     result.Text(field(i, "EXPECTED_OUTPUT")),
			QualityCheckpoints: result.List(field(i, "CHECKPOINTS")),
		}
		if len(step.ContextNeeds) == 0 {
			step.ContextNeeds = defaultContext(i)
		}
		if step.ExpectedOutput == "" {
			step.ExpectedOutput = "contribution toward the request"
		}
		if len(step.QualityCheckpoints) == 0 {
			step.QualityCheckpoints = []string{"output complete"}
		}
		seq.Steps = append(seq.Steps, step)
	}

	seq.Risks = ClassifyRisks(result.List("RISK_FACTORS"))
	if len(seq.Risks) == 0 {
		seq.Risks = ClassifyRisks(splitRiskText(rec.Risk))
	}
	return seq
}

// fallbackSequence is the deterministic degradation path: one
// interruption-safe step per selected worker, strictly chained.
func (o *Optimizer) fallbackSequence(rec *types.CollaborationRecommendation) *types.OptimizedSequence {
	seq := &types.OptimizedSequence{Fallback: true}
	for i, name := range rec.Workers {
		seq.Steps = append(seq.Steps, types.SequenceStep{
			ID:                 stepID(i),
			Worker:             name,
			Action:             "address the request and hand off",
			DependsOn:          chainDependency(i),
			Duration:           o.config.FallbackStepDuration,
			Priority:           5,
			Safety:             types.SafetySafe,
			ContextNeeds:       defaultContext(i),
			ExpectedOutput:     "partial answer toward the request",
			QualityCheckpoints: []string{"output complete"},
		})
	}
	seq.Risks = ClassifyRisks(splitRiskText(rec.Risk))
	return seq
}

func (o *Optimizer) attachVariants(seq *types.OptimizedSequence, workers []string) {
	seq.SpeedAlternative = SpeedVariant(seq)
	seq.QualityAlternative = QualityVariant(seq, workers, o.config.QualityPriorityThreshold)
}

// dependsOn keeps replied dependencies that reference earlier steps, falling
// back to the strict chain when nothing valid remains.
func (o *Optimizer) dependsOn(replied []string, index int) []string {
	var valid []string
	for _, dep := range replied {
		dep = strings.ToLower(strings.TrimSpace(dep))
		for j := 0; j < index; j++ {
			if dep == stepID(j) {
				valid = append(valid, dep)
				break
			}
		}
	}
	if len(valid) > 0 {
		return valid
	}
	return chainDependency(index)
}

func (o *Optimizer) buildPrompt(request string, rec *types.CollaborationRecommendation, analyses []*types.SkillsMatchAnalysis, skeleton []types.ResolvedStep) string {
	var sb strings.Builder
	sb.WriteString("Specify the execution sequence for this collaboration.\n\n")
	sb.WriteString("User request:\n")
	sb.WriteString(request)
	sb.WriteString("\n\nPattern: ")
	sb.WriteString(rec.Pattern)
	sb.WriteString("\n\nSteps to specify:\n")
	for i, sk := range skeleton {
		fmt.Fprintf(&sb, "%s: %s does %q\n", stepID(i), sk.Worker, sk.Action)
	}
	if len(analyses) > 0 {
		sb.WriteString("\nWorker signals:\n")
		for _, a := range analyses {
			fmt.Fprintf(&sb, "- %s: overall match %.2f", a.WorkerName, a.OverallMatch)
			if len(a.RiskFactors) > 0 {
				fmt.Fprintf(&sb, ", risks: %s", strings.Join(a.RiskFactors, ", "))
			}
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\nGive each step a realistic duration, a priority, its interruption safety,")
	sb.WriteString(" needed context, expected output and quality checkpoints.")
	sb.WriteString(" Then list sequence-level risk factors.")
	return sb.String()
}

// buildStepSchema declares the indexed per-step fields plus sequence-level
// risks. Durations and priorities are required; a reply without them is
// malformed and triggers the fallback sequence.
func buildStepSchema(n int) *analysis.Schema {
	schema := analysis.NewSchema("sequence_optimization")
	for i := 0; i < n; i++ {
		schema.RequireInt(field(i, "DURATION_SECONDS")).
			RequireInt(field(i, "PRIORITY")).WithHint("integer 1-10").
			Text(field(i, "SAFETY")).WithHint("safe, warning or dangerous").
			List(field(i, "DEPENDS_ON")).WithHint("earlier step ids such as step-1").
			List(field(i, "CONTEXT")).
			Text(field(i, "EXPECTED_OUTPUT")).
			List(field(i, "CHECKPOINTS"))
	}
	schema.List("RISK_FACTORS")
	return schema
}

func field(index int, suffix string) string {
	return fmt.Sprintf("STEP_%d_%s", index+1, suffix)
}

func stepID(index int) string {
	return fmt.Sprintf("step-%d", index+1)
}

func chainDependency(index int) []string {
	if index == 0 {
		return nil
	}
	return []string{stepID(index - 1)}
}

func defaultContext(index int) []string {
	if index == 0 {
		return []string{"original request"}
	}
	return []string{"original request", "output of " + stepID(index-1)}
}

func parseSafety(value string) types.InterruptionSafety {
	lower := strings.ToLower(value)
	switch {
	case strings.Contains(lower, "danger"):
		return types.SafetyDangerous
	case strings.Contains(lower, "warn") || strings.Contains(lower, "caution"):
		return types.SafetyWarning
	default:
		return types.SafetySafe
	}
}

func splitRiskText(risk string) []string {
	if strings.TrimSpace(risk) == "" {
		return nil
	}
	return strings.Split(risk, ";")
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
