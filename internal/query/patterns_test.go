package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternsCombinedMatchesAnyKeyword(t *testing.T) {
	plan, err := Compile("auth token", false)
	require.NoError(t, err)

	combined, perTerm := plan.Patterns()
	require.NotNil(t, combined)
	assert.True(t, combined.MatchString("the auth module"))
	assert.True(t, combined.MatchString("a TOKEN value"))
	assert.False(t, combined.MatchString("nothing relevant here"))
	assert.NotEmpty(t, perTerm)
}

func TestPatternsPerTermCoversCompoundSubTokens(t *testing.T) {
	plan, err := Compile("getHTTPClient", false)
	require.NoError(t, err)

	_, perTerm := plan.Patterns()
	var matchedShort bool
	for _, pat := range perTerm {
		if pat.Regexp.MatchString("client") {
			matchedShort = true
		}
	}
	assert.True(t, matchedShort, "expected a sub-token pattern to match a compound word fragment")
}

func TestPatternsRespectsMaxPatterns(t *testing.T) {
	plan, err := Compile("alpha beta gamma whitelist getHTTPClient", false)
	require.NoError(t, err)

	_, perTerm := plan.Patterns()
	assert.LessOrEqual(t, len(perTerm), MaxPatterns)
}

func TestPatternsDeterministicOrdering(t *testing.T) {
	plan, err := Compile("alpha beta gamma", false)
	require.NoError(t, err)

	_, first := plan.Patterns()
	_, second := plan.Patterns()
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Regexp.String(), second[i].Regexp.String())
	}
}
