package sequence

import (
	"strings"

	"github.com/gyasis/smalltalk-sub002/types"
)

// riskKeywords map statement keywords onto risk types, checked in order.
var riskKeywords = []struct {
	riskType types.RiskType
	words    []string
}{
	{types.RiskDependency, []string{"depend", "handoff", "hand-off", "blocked", "prerequisite", "inherit"}},
	{types.RiskContextLoss, []string{"context", "memory", "forget", "lost", "loses"}},
	{types.RiskAgentOverload, []string{"overload", "capacity", "too many", "burden", "bottleneck", "busy"}},
	{types.RiskInterruptionDamage, []string{"interrupt", "abort", "cancel", "partial", "mid-stream"}},
	{types.RiskTiming, []string{"timing", "time", "slow", "delay", "latency", "deadline", "loop"}},
}

// severityKeywords grade a statement by its intensity words.
var severityKeywords = []struct {
	severity types.RiskSeverity
	words    []string
}{
	{types.SeverityCritical, []string{"critical", "severe", "fatal"}},
	{types.SeverityHigh, []string{"high", "major", "serious"}},
	{types.SeverityMedium, []string{"medium", "moderate"}},
}

// mitigations are fixed per risk type.
var mitigations = map[types.RiskType]string{
	types.RiskDependency:         "serialize dependent steps and verify handoff output before continuing",
	types.RiskTiming:             "budget extra time and surface progress early",
	types.RiskContextLoss:        "carry shared context summaries forward between steps",
	types.RiskAgentOverload:      "redistribute steps or cap assignments per worker",
	types.RiskInterruptionDamage: "interrupt only at step boundaries and checkpoint partial output",
}

// ClassifyRisk buckets a free-text risk statement into a typed risk with a
// severity and a canned mitigation. Statements matching no type keywords
// default to timing, the broadest bucket.
func ClassifyRisk(description string) types.SequenceRisk {
	lower := strings.ToLower(description)

	riskType := types.RiskTiming
	for _, rk := range riskKeywords {
		if containsAny(lower, rk.words) {
			riskType = rk.riskType
			break
		}
	}

	severity := types.SeverityLow
	for _, sk := range severityKeywords {
		if containsAny(lower, sk.words) {
			severity = sk.severity
			break
		}
	}

	return types.SequenceRisk{
		Type:        riskType,
		Severity:    severity,
		Description: strings.TrimSpace(description),
		Mitigation:  mitigations[riskType],
	}
}

// ClassifyRisks classifies a batch of statements, dropping empties.
func ClassifyRisks(descriptions []string) []types.SequenceRisk {
	var out []types.SequenceRisk
	for _, d := range descriptions {
		if strings.TrimSpace(d) == "" {
			continue
		}
		out = append(out, ClassifyRisk(d))
	}
	return out
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
