// Worker profile factories for tests.
package fixtures

import "github.com/gyasis/smalltalk-sub002/types"

// ResearcherProfile returns a research-oriented capability profile.
func ResearcherProfile(name string) *types.WorkerProfile {
	return &types.WorkerProfile{
		Name:                  name,
		PrimarySkills:         []string{"research", "analysis", "data interpretation"},
		SecondarySkills:       []string{"summarization", "fact checking"},
		DomainExpertise:       []string{"research"},
		TaskTypes:             []string{"analysis", "investigation"},
		Complexity:            types.ComplexityAdvanced,
		InterruptionTolerance: 0.5,
		ContextPreservation:   0.9,
		ConfidenceThreshold:   0.6,
	}
}

// WriterProfile returns a creative-writing capability profile.
func WriterProfile(name string) *types.WorkerProfile {
	return &types.WorkerProfile{
		Name:                  name,
		PrimarySkills:         []string{"writing", "storytelling", "editing"},
		SecondarySkills:       []string{"brainstorming", "tone adaptation"},
		DomainExpertise:       []string{"creative"},
		TaskTypes:             []string{"creation", "drafting"},
		Complexity:            types.ComplexityIntermediate,
		InterruptionTolerance: 0.4,
		ContextPreservation:   0.7,
		ConfidenceThreshold:   0.6,
	}
}

// EngineerProfile returns a software-engineering capability profile.
func EngineerProfile(name string) *types.WorkerProfile {
	return &types.WorkerProfile{
		Name:                  name,
		PrimarySkills:         []string{"programming", "debugging", "system design"},
		SecondarySkills:       []string{"documentation", "testing"},
		DomainExpertise:       []string{"software"},
		TaskTypes:             []string{"implementation", "troubleshooting"},
		Complexity:            types.ComplexityExpert,
		InterruptionTolerance: 0.3,
		ContextPreservation:   0.9,
		ConfidenceThreshold:   0.6,
	}
}

// CoordinatorProfile returns a leadership capability profile suited for
// synthesis and moderation roles.
func CoordinatorProfile(name string) *types.WorkerProfile {
	return &types.WorkerProfile{
		Name:                  name,
		PrimarySkills:         []string{"coordination", "synthesis", "planning"},
		SecondarySkills:       []string{"delegation", "summarization"},
		DomainExpertise:       []string{"leadership"},
		TaskTypes:             []string{"coordination", "synthesis"},
		Complexity:            types.ComplexityAdvanced,
		InterruptionTolerance: 0.8,
		ContextPreservation:   0.6,
		ConfidenceThreshold:   0.6,
	}
}

// GeneralistProfile returns the fallback profile shape used for workers with
// no recognizable specialty.
func GeneralistProfile(name string) *types.WorkerProfile {
	return &types.WorkerProfile{
		Name:                  name,
		PrimarySkills:         []string{"general assistance", "conversation"},
		SecondarySkills:       []string{"summarization"},
		DomainExpertise:       []string{"general"},
		TaskTypes:             []string{"conversation"},
		Complexity:            types.ComplexityIntermediate,
		InterruptionTolerance: 0.6,
		ContextPreservation:   0.6,
		ConfidenceThreshold:   0.6,
	}
}
