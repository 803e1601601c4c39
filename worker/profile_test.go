package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gyasis/smalltalk-sub002/types"
)

func TestDeriveProfile_Archetypes(t *testing.T) {
	tests := []struct {
		name       string
		role       string
		wantSkill  string
		complexity types.ComplexityLevel
	}{
		{"ResearchBot", "", "research", types.ComplexityAdvanced},
		{"Wordsmith", "creative writer", "writing", types.ComplexityIntermediate},
		{"Ada", "senior engineer", "programming", types.ComplexityExpert},
		{"Reviewer", "", "review", types.ComplexityAdvanced},
		{"TeamLead", "", "coordination", types.ComplexityAdvanced},
		{"Tutor", "", "explanation", types.ComplexityIntermediate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DeriveProfile(tt.name, tt.role)
			assert.Equal(t, tt.name, p.Name)
			assert.Contains(t, p.PrimarySkills, tt.wantSkill)
			assert.Equal(t, tt.complexity, p.Complexity)
			assert.Equal(t, 0.6, p.ConfidenceThreshold)
		})
	}
}

func TestDeriveProfile_Generalist(t *testing.T) {
	p := DeriveProfile("Zorp", "")
	assert.Contains(t, p.PrimarySkills, "general assistance")
	assert.Equal(t, types.ComplexityIntermediate, p.Complexity)
}

func TestDeriveProfile_SpecificBeforeBroad(t *testing.T) {
	// "code reviewer" mentions both code and review; review wins.
	p := DeriveProfile("CodeReviewer", "code reviewer")
	assert.Contains(t, p.PrimarySkills, "review")
}

func TestDeriveProfile_ScoresInRange(t *testing.T) {
	names := []string{"ResearchBot", "Wordsmith", "Ada", "Reviewer", "TeamLead", "Tutor", "Zorp"}
	for _, name := range names {
		p := DeriveProfile(name, "")
		assert.GreaterOrEqual(t, p.InterruptionTolerance, 0.0, name)
		assert.LessOrEqual(t, p.InterruptionTolerance, 1.0, name)
		assert.GreaterOrEqual(t, p.ContextPreservation, 0.0, name)
		assert.LessOrEqual(t, p.ContextPreservation, 1.0, name)
	}
}

func TestMatchesLeadership(t *testing.T) {
	assert.True(t, MatchesLeadership("TeamLead"))
	assert.True(t, MatchesLeadership("moderator"))
	assert.True(t, MatchesLeadership("Synthesizer"))
	assert.False(t, MatchesLeadership("ResearchBot"))
	assert.False(t, MatchesLeadership(""))
}
