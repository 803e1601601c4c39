package worker

import (
	"strings"

	"github.com/gyasis/smalltalk-sub002/types"
)

// archetype maps name/role keywords onto a capability profile template.
type archetype struct {
	keywords              []string
	primarySkills         []string
	secondarySkills       []string
	domainExpertise       []string
	taskTypes             []string
	complexity            types.ComplexityLevel
	interruptionTolerance float64
	contextPreservation   float64
}

// archetypes are checked in order; the first keyword hit wins. More specific
// roles come before broader ones so "code reviewer" derives as a reviewer,
// not a coder.
var archetypes = []archetype{
	{
		keywords:              []string{"review", "critic", "qa", "quality", "editor"},
		primarySkills:         []string{"review", "critique", "quality assurance"},
		secondarySkills:       []string{"analysis", "editing"},
		domainExpertise:       []string{"quality"},
		taskTypes:             []string{"review", "refinement"},
		complexity:            types.ComplexityAdvanced,
		interruptionTolerance: 0.7,
		contextPreservation:   0.8,
	},
	{
		keywords:              []string{"research", "analyst", "analy", "data", "scien"},
		primarySkills:         []string{"research", "analysis", "data interpretation"},
		secondarySkills:       []string{"summarization", "fact checking"},
		domainExpertise:       []string{"research"},
		taskTypes:             []string{"analysis", "investigation"},
		complexity:            types.ComplexityAdvanced,
		interruptionTolerance: 0.5,
		contextPreservation:   0.9,
	},
	{
		keywords:              []string{"writ", "creative", "content", "author", "story"},
		primarySkills:         []string{"writing", "storytelling", "editing"},
		secondarySkills:       []string{"brainstorming", "tone adaptation"},
		domainExpertise:       []string{"creative"},
		taskTypes:             []string{"creation", "drafting"},
		complexity:            types.ComplexityIntermediate,
		interruptionTolerance: 0.4,
		contextPreservation:   0.7,
	},
	{
		keywords:              []string{"cod", "engineer", "developer", "program", "tech", "architect"},
		primarySkills:         []string{"programming", "debugging", "system design"},
		secondarySkills:       []string{"documentation", "testing"},
		domainExpertise:       []string{"software"},
		taskTypes:             []string{"implementation", "troubleshooting"},
		complexity:            types.ComplexityExpert,
		interruptionTolerance: 0.3,
		contextPreservation:   0.9,
	},
	{
		keywords:              []string{"coordinat", "manager", "lead", "moderat", "facilitat", "synthesiz", "chief", "head"},
		primarySkills:         []string{"coordination", "synthesis", "planning"},
		secondarySkills:       []string{"delegation", "summarization"},
		domainExpertise:       []string{"leadership"},
		taskTypes:             []string{"coordination", "synthesis"},
		complexity:            types.ComplexityAdvanced,
		interruptionTolerance: 0.8,
		contextPreservation:   0.6,
	},
	{
		keywords:              []string{"teach", "tutor", "explain", "mentor"},
		primarySkills:         []string{"explanation", "teaching", "simplification"},
		secondarySkills:       []string{"examples", "patience"},
		domainExpertise:       []string{"education"},
		taskTypes:             []string{"explanation", "guidance"},
		complexity:            types.ComplexityIntermediate,
		interruptionTolerance: 0.8,
		contextPreservation:   0.5,
	},
}

// generalist is the profile template for names no archetype matches.
var generalist = archetype{
	primarySkills:         []string{"general assistance", "conversation"},
	secondarySkills:       []string{"summarization"},
	domainExpertise:       []string{"general"},
	taskTypes:             []string{"conversation"},
	complexity:            types.ComplexityIntermediate,
	interruptionTolerance: 0.6,
	contextPreservation:   0.6,
}

const defaultConfidenceThreshold = 0.6

// DeriveProfile builds a capability profile from a worker's name and an
// optional role hint. Matching is case-insensitive substring search over both.
func DeriveProfile(name, role string) *types.WorkerProfile {
	haystack := strings.ToLower(name + " " + role)

	matched := generalist
	for _, a := range archetypes {
		if containsAny(haystack, a.keywords) {
			matched = a
			break
		}
	}

	return &types.WorkerProfile{
		Name:                  name,
		PrimarySkills:         append([]string(nil), matched.primarySkills...),
		SecondarySkills:       append([]string(nil), matched.secondarySkills...),
		DomainExpertise:       append([]string(nil), matched.domainExpertise...),
		TaskTypes:             append([]string(nil), matched.taskTypes...),
		Complexity:            matched.complexity,
		InterruptionTolerance: matched.interruptionTolerance,
		ContextPreservation:   matched.contextPreservation,
		ConfidenceThreshold:   defaultConfidenceThreshold,
	}
}

// leadershipKeywords mark workers suited to synthesizer and moderator roles.
var leadershipKeywords = []string{
	"lead", "coordinat", "manager", "moderat", "synthesiz", "facilitat", "chief", "head",
}

// MatchesLeadership reports whether a worker name suggests a synthesis or
// moderation role.
func MatchesLeadership(name string) bool {
	return containsAny(strings.ToLower(name), leadershipKeywords)
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
