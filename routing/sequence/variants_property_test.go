package sequence

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/gyasis/smalltalk-sub002/types"
)

func sequenceFromDurations(durations []int) *types.OptimizedSequence {
	seq := &types.OptimizedSequence{}
	for i, secs := range durations {
		seq.Steps = append(seq.Steps, types.SequenceStep{
			ID:                 stepID(i),
			Worker:             fmt.Sprintf("worker-%d", i%3),
			Action:             "work",
			Duration:           time.Duration(secs) * time.Second,
			Priority:           (i % 10) + 1,
			Safety:             types.SafetySafe,
			QualityCheckpoints: []string{"first", "second", "third"},
		})
	}
	seq.RecomputeTotals()
	return seq
}

func TestProperty_SpeedVariantScalesExactly(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("speed variant total is exactly 80% of the base total", prop.ForAll(
		func(durations []int) bool {
			base := sequenceFromDurations(durations)
			speed := SpeedVariant(base)

			if speed.TotalDuration != base.TotalDuration*4/5 {
				t.Logf("total mismatch: base %v, speed %v", base.TotalDuration, speed.TotalDuration)
				return false
			}
			if len(speed.Steps) != len(base.Steps) {
				t.Logf("step count changed: %d -> %d", len(base.Steps), len(speed.Steps))
				return false
			}
			for i, step := range speed.Steps {
				if step.ID != base.Steps[i].ID {
					t.Logf("step order changed at %d", i)
					return false
				}
				if len(step.QualityCheckpoints) > 1 {
					t.Logf("step %s kept %d checkpoints", step.ID, len(step.QualityCheckpoints))
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(5, 3600)), // whole-second step durations
	))

	properties.TestingRun(t)
}

func TestProperty_SpeedVariantLeavesBaseUntouched(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("deriving the speed variant does not mutate the base", prop.ForAll(
		func(durations []int) bool {
			base := sequenceFromDurations(durations)
			before := base.TotalDuration

			SpeedVariant(base)

			if base.TotalDuration != before {
				t.Logf("base total changed: %v -> %v", before, base.TotalDuration)
				return false
			}
			for _, step := range base.Steps {
				if len(step.QualityCheckpoints) != 3 {
					t.Logf("base step %s lost checkpoints", step.ID)
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(5, 3600)),
	))

	properties.TestingRun(t)
}

func TestProperty_QualityVariantAddsReviewSteps(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("quality variant adds one review step per high-priority step", prop.ForAll(
		func(durations []int, threshold int) bool {
			base := sequenceFromDurations(durations)
			quality := QualityVariant(base, []string{"Ada", "Bert"}, threshold)

			high := 0
			for _, step := range base.Steps {
				if step.Priority >= threshold {
					high++
				}
			}

			if len(quality.Steps) != len(base.Steps)+high {
				t.Logf("expected %d steps, got %d", len(base.Steps)+high, len(quality.Steps))
				return false
			}
			if len(quality.Steps) < len(base.Steps) {
				t.Logf("quality variant dropped steps")
				return false
			}

			// Every review step follows its subject and depends on it.
			for i, step := range quality.Steps {
				if !isReviewStep(step.ID) {
					continue
				}
				if i == 0 {
					t.Logf("review step %s has no subject before it", step.ID)
					return false
				}
				subject := quality.Steps[i-1]
				if step.ID != "review-"+subject.ID {
					t.Logf("review step %s does not follow its subject %s", step.ID, subject.ID)
					return false
				}
				if len(step.DependsOn) != 1 || step.DependsOn[0] != subject.ID {
					t.Logf("review step %s does not depend on %s", step.ID, subject.ID)
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(5, 3600)), // whole-second step durations
		gen.IntRange(1, 11),                // review threshold
	))

	properties.TestingRun(t)
}

func isReviewStep(id string) bool {
	return len(id) > len("review-") && id[:len("review-")] == "review-"
}
