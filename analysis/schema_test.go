package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyasis/smalltalk-sub002/types"
)

func testSchema() *Schema {
	return NewSchema("skills_match").
		RequireInt("OVERALL_MATCH").
		Int("CONFIDENCE").
		List("RISK_FACTORS").
		Text("REASONING")
}

func TestSchema_PromptInstructions(t *testing.T) {
	text := testSchema().PromptInstructions()

	assert.Contains(t, text, "OVERALL_MATCH: <integer 0-100> (required)")
	assert.Contains(t, text, "RISK_FACTORS: <comma-separated list>")
	assert.Contains(t, text, "FIELD_NAME: value")
}

func TestSchema_WithHint(t *testing.T) {
	s := NewSchema("d").Text("REQUEST_TYPE").WithHint("one of: analysis, creative, technical")
	assert.Contains(t, s.PromptInstructions(), "one of: analysis, creative, technical")
}

func TestSchema_Validate_OK(t *testing.T) {
	result, err := testSchema().Validate(`OVERALL_MATCH: 82
CONFIDENCE: 70
RISK_FACTORS: [timing, context loss]
REASONING: good overlap`)
	require.NoError(t, err)

	assert.Equal(t, 82, result.Int("OVERALL_MATCH"))
	assert.InDelta(t, 0.82, result.Score("OVERALL_MATCH"), 1e-9)
	assert.Equal(t, []string{"timing", "context loss"}, result.List("RISK_FACTORS"))
	assert.Equal(t, "good overlap", result.Text("REASONING"))
}

func TestSchema_Validate_MissingRequired(t *testing.T) {
	_, err := testSchema().Validate("CONFIDENCE: 70")
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrMalformedAnalysis))
	assert.Contains(t, err.Error(), "OVERALL_MATCH")
}

func TestSchema_Validate_RequiredIntWithoutDigits(t *testing.T) {
	_, err := testSchema().Validate("OVERALL_MATCH: very high")
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrMalformedAnalysis))
}

func TestSchema_Validate_OptionalDefaults(t *testing.T) {
	result, err := testSchema().Validate("OVERALL_MATCH: 82")
	require.NoError(t, err)

	assert.Equal(t, 50, result.Int("CONFIDENCE"), "absent optional int defaults to 50")
	assert.InDelta(t, 0.5, result.Score("CONFIDENCE"), 1e-9)
	assert.Empty(t, result.List("RISK_FACTORS"))
	assert.Empty(t, result.Text("REASONING"))
	assert.False(t, result.Has("REASONING"))
}

func TestResult_ScoreClamped(t *testing.T) {
	result, err := NewSchema("d").RequireInt("V").Validate("V: 140")
	require.NoError(t, err)
	assert.Equal(t, 1.0, result.Score("V"))

	result, err = NewSchema("d").RequireInt("V").Validate("V: -20")
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.Score("V"))
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-0.5))
	assert.Equal(t, 0.25, Clamp01(0.25))
	assert.Equal(t, 1.0, Clamp01(1.5))
}
