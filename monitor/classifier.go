package monitor

import (
	"regexp"
	"strings"

	"github.com/gyasis/smalltalk-sub002/types"
)

// Ordered rule groups. Declaration order is evaluation order, so a line
// carrying an @mention classifies as an agent switch even when it also
// contains a pause word.
var (
	stopRe     = regexp.MustCompile(`(?i)\b(stop|abort|cancel|halt)\b`)
	redirectRe = regexp.MustCompile(`(?i)\b(instead(?: of)?|redirect|refocus|focus on|rather than|change (?:direction|course|topic)|pivot(?: to)?)\b`)
	mentionRe  = regexp.MustCompile(`@([A-Za-z][A-Za-z0-9_-]*)`)
	switchRe   = regexp.MustCompile(`(?i)\b(?:switch to|talk to|hand (?:this |it )?(?:over |off )?to)\s+([A-Za-z][A-Za-z0-9_-]*)`)
	newPlanRe  = regexp.MustCompile(`(?i)\b(new plan|replan|re-plan|start (?:over|again|fresh)|from scratch|different approach|rethink)\b`)
	clarifyRe  = regexp.MustCompile(`(?i)(\?\s*$|^\s*(?:what|why|how|when|where|who|which|can you|could you|do you|clarify)\b)`)
	pauseRe    = regexp.MustCompile(`(?i)\b(pause|hold on|hang on|wait|one (?:sec|second|moment)|give me a (?:sec|second|minute|moment))\b`)

	politeRe = regexp.MustCompile(`(?i)\b(please|let's|lets|now|just)\b`)
)

// fallbackKeywords backstops the regex groups for looser phrasings.
// Checked in order; substring match on the lowercased line.
var fallbackKeywords = []struct {
	keyword string
	itype   types.InterruptionType
}{
	{"enough", types.InterruptStop},
	{"quit", types.InterruptStop},
	{"wrong direction", types.InterruptRedirect},
	{"off track", types.InterruptRedirect},
	{"someone else", types.InterruptAgentSwitch},
	{"different agent", types.InterruptAgentSwitch},
	{"scrap", types.InterruptNewPlan},
	{"redo", types.InterruptNewPlan},
	{"confused", types.InterruptClarify},
	{"unclear", types.InterruptClarify},
	{"moment", types.InterruptPause},
	{"minute", types.InterruptPause},
}

// Match is a classified operator line.
type Match struct {
	Type types.InterruptionType
	// TargetWorker is set for agent switches naming a worker.
	TargetWorker string
	// Redirection is the new-direction text for redirects, with the
	// trigger words stripped out.
	Redirection string
}

// Classify runs the ordered rule groups over one line. The second return
// is false for lines that are plain conversational input.
func Classify(line string) (Match, bool) {
	switch {
	case stopRe.MatchString(line):
		return Match{Type: types.InterruptStop}, true
	case redirectRe.MatchString(line):
		return Match{Type: types.InterruptRedirect, Redirection: stripRedirectTriggers(line)}, true
	case mentionRe.MatchString(line) || switchRe.MatchString(line):
		return Match{Type: types.InterruptAgentSwitch, TargetWorker: extractTarget(line)}, true
	case newPlanRe.MatchString(line):
		return Match{Type: types.InterruptNewPlan}, true
	case clarifyRe.MatchString(line):
		return Match{Type: types.InterruptClarify}, true
	case pauseRe.MatchString(line):
		return Match{Type: types.InterruptPause}, true
	}

	lower := strings.ToLower(line)
	for _, fb := range fallbackKeywords {
		if strings.Contains(lower, fb.keyword) {
			m := Match{Type: fb.itype}
			if fb.itype == types.InterruptRedirect {
				m.Redirection = stripRedirectTriggers(line)
			}
			if fb.itype == types.InterruptAgentSwitch {
				m.TargetWorker = extractTarget(line)
			}
			return m, true
		}
	}

	return Match{}, false
}

// stripRedirectTriggers removes the trigger and filler words so only the
// requested direction remains.
func stripRedirectTriggers(line string) string {
	text := redirectRe.ReplaceAllString(line, "")
	text = politeRe.ReplaceAllString(text, "")
	text = strings.Join(strings.Fields(text), " ")
	return strings.Trim(text, " ,.:;-")
}

// extractTarget pulls the worker name from an @mention or a switch phrase.
func extractTarget(line string) string {
	if m := mentionRe.FindStringSubmatch(line); m != nil {
		return m[1]
	}
	if m := switchRe.FindStringSubmatch(line); m != nil {
		return m[1]
	}
	return ""
}
