package sequence

import (
	"fmt"
	"time"

	"github.com/gyasis/smalltalk-sub002/types"
)

const (
	reviewStepDuration = time.Minute
	reviewStepPriority = 5
)

// SpeedVariant derives the faster alternative: every duration scaled to
// exactly 80% and quality checkpoints truncated to the first one. The scale
// uses integer duration arithmetic (d*4/5) so the variant total is exactly
// 0.8 times the base total.
func SpeedVariant(base *types.OptimizedSequence) *types.OptimizedSequence {
	variant := &types.OptimizedSequence{
		Steps:    cloneSteps(base.Steps),
		Risks:    append([]types.SequenceRisk(nil), base.Risks...),
		Fallback: base.Fallback,
	}
	for i := range variant.Steps {
		variant.Steps[i].Duration = variant.Steps[i].Duration * 4 / 5
		if len(variant.Steps[i].QualityCheckpoints) > 1 {
			variant.Steps[i].QualityCheckpoints = variant.Steps[i].QualityCheckpoints[:1]
		}
	}
	variant.RecomputeTotals()
	return variant
}

// QualityVariant derives the more thorough alternative: after every step with
// priority at or above threshold, the next worker in the rotation reviews that
// step's output. With a single worker the author reviews its own step.
func QualityVariant(base *types.OptimizedSequence, workers []string, threshold int) *types.OptimizedSequence {
	variant := &types.OptimizedSequence{
		Risks:    append([]types.SequenceRisk(nil), base.Risks...),
		Fallback: base.Fallback,
	}

	for _, step := range cloneSteps(base.Steps) {
		variant.Steps = append(variant.Steps, step)
		if step.Priority < threshold {
			continue
		}
		variant.Steps = append(variant.Steps, types.SequenceStep{
			ID:                 "review-" + step.ID,
			Worker:             nextWorker(workers, step.Worker),
			Action:             fmt.Sprintf("review the output of %q", step.Action),
			DependsOn:          []string{step.ID},
			Duration:           reviewStepDuration,
			Priority:           reviewStepPriority,
			Safety:             types.SafetySafe,
			ContextNeeds:       []string{"output of " + step.ID},
			ExpectedOutput:     "review notes and required fixes",
			QualityCheckpoints: []string{"flagged issues resolved"},
		})
	}
	variant.RecomputeTotals()
	return variant
}

// nextWorker returns the worker after current in rotation order, wrapping
// around; unknown or single-entry rosters return current.
func nextWorker(workers []string, current string) string {
	if len(workers) < 2 {
		return current
	}
	for i, name := range workers {
		if name == current {
			return workers[(i+1)%len(workers)]
		}
	}
	return current
}

func cloneSteps(steps []types.SequenceStep) []types.SequenceStep {
	out := make([]types.SequenceStep, len(steps))
	for i, s := range steps {
		out[i] = s
		out[i].DependsOn = append([]string(nil), s.DependsOn...)
		out[i].ContextNeeds = append([]string(nil), s.ContextNeeds...)
		out[i].QualityCheckpoints = append([]string(nil), s.QualityCheckpoints...)
	}
	return out
}
