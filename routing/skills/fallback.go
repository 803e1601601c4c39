package skills

import (
	"regexp"
	"strings"

	"github.com/gyasis/smalltalk-sub002/types"
)

var wordPattern = regexp.MustCompile(`[a-z0-9]+`)

// Tokenize lowercases text and splits it into alphanumeric word tokens.
func Tokenize(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		tokens[w] = struct{}{}
	}
	return tokens
}

// overlapScore measures how many of the tag tokens appear in the request
// tokens, in [0,1]. Tags with no tokens score zero.
func overlapScore(requestTokens map[string]struct{}, tags []string) float64 {
	var total, hits int
	for _, tag := range tags {
		for _, w := range wordPattern.FindAllString(strings.ToLower(tag), -1) {
			total++
			if _, ok := requestTokens[w]; ok {
				hits++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// fallbackAnalysis computes the deterministic keyword-overlap score used when
// the text service cannot be consulted. Same inputs always produce the same
// output.
func (m *Matcher) fallbackAnalysis(request string, profile *types.WorkerProfile) *types.SkillsMatchAnalysis {
	requestTokens := Tokenize(request)

	a := &types.SkillsMatchAnalysis{
		WorkerName:         profile.Name,
		PrimarySkillScore:  overlapScore(requestTokens, profile.PrimarySkills),
		DomainScore:        overlapScore(requestTokens, profile.DomainExpertise),
		TaskTypeScore:      overlapScore(requestTokens, profile.TaskTypes),
		CollaborationScore: 0.5,
		Confidence:         m.config.FallbackConfidence,
		Reasoning:          "keyword-overlap fallback: scored by token intersection with skill tags",
		Fallback:           true,
	}
	a.OverallMatch = m.weightedOverall(a)
	a.EstimatedPerformance = a.OverallMatch
	return a
}
