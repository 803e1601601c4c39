package pattern

import (
	"github.com/gyasis/smalltalk-sub002/types"
	"github.com/gyasis/smalltalk-sub002/worker"
)

// resolveRole maps a symbolic role onto concrete worker names. The rule table
// is fixed:
//
//	all                    -> every selected worker
//	lead, primary, agent-1 -> first worker
//	agent-2                -> second worker (first when there is no second)
//	specialists, reviewers -> all but the first (the first when alone)
//	synthesizer, moderator -> first leadership-keyword match, else the first
//
// Unknown roles resolve to the first worker so a template typo degrades
// instead of dropping a step.
func resolveRole(role string, workers []string) []string {
	if len(workers) == 0 {
		return nil
	}
	switch role {
	case RoleAll:
		return workers
	case RoleLead, RolePrimary, RoleAgent1:
		return workers[:1]
	case RoleAgent2:
		if len(workers) >= 2 {
			return workers[1:2]
		}
		return workers[:1]
	case RoleSpecialists, RoleReviewers:
		if len(workers) >= 2 {
			return workers[1:]
		}
		return workers[:1]
	case RoleSynthesizer, RoleModerator:
		for _, name := range workers {
			if worker.MatchesLeadership(name) {
				return []string{name}
			}
		}
		return workers[:1]
	default:
		return workers[:1]
	}
}

// ResolveSteps expands a template's symbolic steps into concrete per-worker
// steps, preserving template order.
func ResolveSteps(t *Template, workers []string) []types.ResolvedStep {
	var steps []types.ResolvedStep
	for _, ts := range t.Steps {
		for _, name := range resolveRole(ts.Role, workers) {
			steps = append(steps, types.ResolvedStep{
				Role:     ts.Role,
				Worker:   name,
				Action:   ts.Action,
				Duration: ts.Duration,
			})
		}
	}
	return steps
}
