package types

import "context"

// =============================================================================
// Minimal Worker Contract
// =============================================================================
// Worker is the smallest contract a conversational worker must satisfy to be
// routable: an identity and the ability to answer a prompt. Prompt
// construction, tool use and memory are the worker's own concern.
//
// The types package is the lowest-level package with no internal dependencies,
// so placing the interface here avoids circular imports between the worker
// roster, the routing packages and the execution engine.
// =============================================================================

// Worker is the minimal conversational worker contract.
type Worker interface {
	// Name returns the worker's unique display name.
	Name() string
	// Respond produces a natural-language answer to prompt. The shared map
	// carries session context accumulated by earlier steps.
	Respond(ctx context.Context, prompt string, shared map[string]string) (string, error)
}

// Profiled is an optional interface for workers that declare their own
// capability profile. Workers without one get a profile auto-derived from
// name and role keywords at registration.
type Profiled interface {
	Profile() *WorkerProfile
}

// ComplexityLevel describes the hardest task tier a worker handles well.
type ComplexityLevel string

const (
	ComplexityBasic        ComplexityLevel = "basic"
	ComplexityIntermediate ComplexityLevel = "intermediate"
	ComplexityAdvanced     ComplexityLevel = "advanced"
	ComplexityExpert       ComplexityLevel = "expert"
)

// WorkerProfile captures a worker's capabilities for routing decisions.
// Created at registration, immutable thereafter.
type WorkerProfile struct {
	Name                  string          `json:"name"`
	PrimarySkills         []string        `json:"primary_skills"`
	SecondarySkills       []string        `json:"secondary_skills,omitempty"`
	DomainExpertise       []string        `json:"domain_expertise,omitempty"`
	TaskTypes             []string        `json:"task_types,omitempty"`
	Complexity            ComplexityLevel `json:"complexity"`
	InterruptionTolerance float64         `json:"interruption_tolerance"`
	ContextPreservation   float64         `json:"context_preservation"`
	ConfidenceThreshold   float64         `json:"confidence_threshold"`
}

// AllSkills returns the profile's primary and secondary skills plus domain
// expertise as one flat list, used by keyword-overlap fallbacks.
func (p *WorkerProfile) AllSkills() []string {
	out := make([]string, 0, len(p.PrimarySkills)+len(p.SecondarySkills)+len(p.DomainExpertise))
	out = append(out, p.PrimarySkills...)
	out = append(out, p.SecondarySkills...)
	out = append(out, p.DomainExpertise...)
	return out
}

// Clone returns a deep copy so registries can hand out profiles without
// exposing their internal state to mutation.
func (p *WorkerProfile) Clone() *WorkerProfile {
	if p == nil {
		return nil
	}
	cp := *p
	cp.PrimarySkills = append([]string(nil), p.PrimarySkills...)
	cp.SecondarySkills = append([]string(nil), p.SecondarySkills...)
	cp.DomainExpertise = append([]string(nil), p.DomainExpertise...)
	cp.TaskTypes = append([]string(nil), p.TaskTypes...)
	return &cp
}
