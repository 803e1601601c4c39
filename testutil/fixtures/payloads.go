// Structured analysis reply factories for tests.
//
// Each factory renders the field-per-line reply format the analysis package
// parses, so routing tests can script provider output without embedding raw
// multi-line strings.
package fixtures

import (
	"fmt"
	"strings"
)

// SkillsMatchPayload renders a skills match reply with the given scores.
func SkillsMatchPayload(primary, domain, taskType, collaboration, confidence int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "PRIMARY_SKILL_SCORE: %d\n", primary)
	fmt.Fprintf(&sb, "DOMAIN_SCORE: %d\n", domain)
	fmt.Fprintf(&sb, "TASK_TYPE_SCORE: %d\n", taskType)
	fmt.Fprintf(&sb, "COLLABORATION_SCORE: %d\n", collaboration)
	fmt.Fprintf(&sb, "CONFIDENCE: %d\n", confidence)
	sb.WriteString("REASONING: scripted match for tests\n")
	return sb.String()
}

// PatternSelectionPayload renders a pattern selection reply naming the
// template and the workers to run it with.
func PatternSelectionPayload(pattern string, confidence int, workers ...string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "RECOMMENDED_PATTERN: %s\n", pattern)
	fmt.Fprintf(&sb, "SELECTED_WORKERS: %s\n", strings.Join(workers, ", "))
	fmt.Fprintf(&sb, "CONFIDENCE: %d\n", confidence)
	sb.WriteString("REASONING: scripted selection for tests\n")
	return sb.String()
}

// SequencePayload renders a sequence optimization reply assigning each step
// the given duration in seconds. Priorities default to 5.
func SequencePayload(durationsSeconds ...int) string {
	var sb strings.Builder
	for i, secs := range durationsSeconds {
		fmt.Fprintf(&sb, "STEP_%d_DURATION_SECONDS: %d\n", i+1, secs)
		fmt.Fprintf(&sb, "STEP_%d_PRIORITY: 5\n", i+1)
		fmt.Fprintf(&sb, "STEP_%d_SAFETY: safe\n", i+1)
	}
	return sb.String()
}

// AdaptationPayload renders a plan adaptation reply.
func AdaptationPayload(kind string, confidence int, affectedSteps ...string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "ADAPTATION_KIND: %s\n", kind)
	fmt.Fprintf(&sb, "CONFIDENCE: %d\n", confidence)
	sb.WriteString("REASON: scripted adaptation for tests\n")
	if len(affectedSteps) > 0 {
		fmt.Fprintf(&sb, "AFFECTED_STEPS: %s\n", strings.Join(affectedSteps, ", "))
	}
	return sb.String()
}

// RoutingHintsPayload renders an optimization hints reply.
func RoutingHintsPayload(hints ...string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "OPTIMIZATION_HINTS: %s\n", strings.Join(hints, ", "))
	return sb.String()
}
