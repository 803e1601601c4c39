package pattern

import (
	"strings"
	"time"
)

// Template names. The registry is fixed at startup; there is no dynamic
// template loading.
const (
	SequentialHandoff      = "sequential-handoff"
	ParallelSynthesis      = "parallel-synthesis"
	DebateDiscussion       = "debate-discussion"
	SpecialistConsultation = "specialist-consultation"
	ReviewRefinement       = "review-refinement"
)

// Symbolic participant roles used in template steps.
const (
	RoleAll         = "all"
	RoleLead        = "lead"
	RolePrimary     = "primary"
	RoleAgent1      = "agent-1"
	RoleAgent2      = "agent-2"
	RoleSpecialists = "specialists"
	RoleReviewers   = "reviewers"
	RoleSynthesizer = "synthesizer"
	RoleModerator   = "moderator"
)

// TemplateStep is one symbolic step of a collaboration template. Roles that
// resolve to several workers expand to one concrete step per worker.
type TemplateStep struct {
	Role     string
	Action   string
	Duration time.Duration
}

// Template describes one way a group of workers can share a request.
type Template struct {
	Name            string
	Description     string
	SuitableFor     []string
	MinWorkers      int
	MaxWorkers      int
	Steps           []TemplateStep
	Benefits        []string
	Risks           []string
	SuccessCriteria []string
}

// registry holds the five templates in a fixed order.
var registry = []*Template{
	{
		Name:        SequentialHandoff,
		Description: "workers take turns, each building on the previous contribution",
		SuitableFor: []string{"step-by-step tasks", "drafting", "layered analysis"},
		MinWorkers:  2,
		MaxWorkers:  4,
		Steps: []TemplateStep{
			{Role: RoleAll, Action: "contribute and hand off to the next worker", Duration: 2 * time.Minute},
		},
		Benefits:        []string{"clear ownership per turn", "context accumulates naturally"},
		Risks:           []string{"context loss at handoffs", "latecomers inherit early mistakes"},
		SuccessCriteria: []string{"each turn visibly builds on the last"},
	},
	{
		Name:        ParallelSynthesis,
		Description: "specialists draft independently, a synthesizer merges the drafts",
		SuitableFor: []string{"broad questions", "brainstorming", "multi-angle analysis"},
		MinWorkers:  2,
		MaxWorkers:  5,
		Steps: []TemplateStep{
			{Role: RoleSpecialists, Action: "draft an independent answer", Duration: 2 * time.Minute},
			{Role: RoleSynthesizer, Action: "merge the drafts into one answer", Duration: 90 * time.Second},
		},
		Benefits:        []string{"diverse viewpoints", "no anchoring between drafts"},
		Risks:           []string{"redundant work", "synthesis may flatten nuance"},
		SuccessCriteria: []string{"final answer covers every draft's strongest point"},
	},
	{
		Name:        DebateDiscussion,
		Description: "two workers argue opposing positions, a moderator concludes",
		SuitableFor: []string{"contested questions", "trade-off decisions", "evaluations"},
		MinWorkers:  2,
		MaxWorkers:  3,
		Steps: []TemplateStep{
			{Role: RoleAgent1, Action: "present the opening position", Duration: 90 * time.Second},
			{Role: RoleAgent2, Action: "present a counter position", Duration: 90 * time.Second},
			{Role: RoleAgent1, Action: "rebut and refine", Duration: time.Minute},
			{Role: RoleAgent2, Action: "rebut and refine", Duration: time.Minute},
			{Role: RoleModerator, Action: "weigh both positions and conclude", Duration: 90 * time.Second},
		},
		Benefits:        []string{"assumptions get challenged", "conclusion carries explicit trade-offs"},
		Risks:           []string{"positions may polarize", "slowest pattern per insight"},
		SuccessCriteria: []string{"conclusion addresses the strongest counterargument"},
	},
	{
		Name:        SpecialistConsultation,
		Description: "a lead frames the problem, specialists answer, the lead integrates",
		SuitableFor: []string{"cross-domain requests", "expert lookups"},
		MinWorkers:  2,
		MaxWorkers:  5,
		Steps: []TemplateStep{
			{Role: RoleLead, Action: "frame the problem and route questions to specialists", Duration: time.Minute},
			{Role: RoleSpecialists, Action: "answer within their specialty", Duration: 2 * time.Minute},
			{Role: RoleLead, Action: "integrate specialist input into one answer", Duration: 90 * time.Second},
		},
		Benefits:        []string{"deep answers where they matter", "one accountable integrator"},
		Risks:           []string{"lead becomes a bottleneck", "specialists may talk past the question"},
		SuccessCriteria: []string{"every specialist point survives into the integrated answer"},
	},
	{
		Name:        ReviewRefinement,
		Description: "one worker drafts, reviewers critique, the author applies fixes",
		SuitableFor: []string{"quality-sensitive output", "final polish", "verification"},
		MinWorkers:  2,
		MaxWorkers:  4,
		Steps: []TemplateStep{
			{Role: RoleAgent1, Action: "produce the initial draft", Duration: 2 * time.Minute},
			{Role: RoleReviewers, Action: "review the draft and flag issues", Duration: 90 * time.Second},
			{Role: RoleAgent1, Action: "apply the review feedback", Duration: 90 * time.Second},
		},
		Benefits:        []string{"defects caught before delivery", "author keeps a single voice"},
		Risks:           []string{"review rounds can loop", "harsh reviews slow the author"},
		SuccessCriteria: []string{"flagged issues are resolved or explicitly declined"},
	},
}

// Templates returns the registry in its fixed order.
func Templates() []*Template {
	return registry
}

// TemplateNames returns the registry's names in order.
func TemplateNames() []string {
	names := make([]string, len(registry))
	for i, t := range registry {
		names[i] = t.Name
	}
	return names
}

// Lookup finds a template by name, tolerating case and separator variation
// ("Sequential Handoff" resolves like "sequential-handoff").
func Lookup(name string) (*Template, bool) {
	normalized := normalizeName(name)
	for _, t := range registry {
		if t.Name == normalized {
			return t, true
		}
	}
	return nil, false
}

func normalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "_", "-")
	name = strings.ReplaceAll(name, " ", "-")
	return name
}
