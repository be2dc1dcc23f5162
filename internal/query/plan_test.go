package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileImplicitOr(t *testing.T) {
	plan, err := Compile("auth config", false)
	require.NoError(t, err)

	or, ok := plan.AST.(*Or)
	require.True(t, ok, "implicit whitespace combination must parse as Or, got %T", plan.AST)
	_ = or
	assert.False(t, plan.HasRequiredAnywhere())
}

func TestCompileRequiredTerm(t *testing.T) {
	// A leading + only forces AND against the *next* factor when that next
	// factor also carries an explicit +/- prefix; a bare trailing factor
	// still combines via implicit OR (Elasticsearch "must" + "should").
	plan, err := Compile("+auth config", false)
	require.NoError(t, err)
	assert.True(t, plan.HasRequiredAnywhere())

	or, ok := plan.AST.(*Or)
	require.True(t, ok, "got %T", plan.AST)
	left, ok := or.Left.(*Term)
	require.True(t, ok)
	assert.True(t, left.Required)
}

func TestCompileRequiredThenExcludedForcesAnd(t *testing.T) {
	plan, err := Compile("+auth -config", false)
	require.NoError(t, err)

	and, ok := plan.AST.(*And)
	require.True(t, ok, "an explicit +/- prefix on the next factor must force And, got %T", plan.AST)
	_ = and
}

func TestCompileExcludedTerm(t *testing.T) {
	plan, err := Compile("auth -deprecated", false)
	require.NoError(t, err)
	assert.Contains(t, plan.ExcludedKeywords, "deprecated")
	assert.False(t, plan.OnlyExcluded())
}

func TestCompileOnlyExcludedTerms(t *testing.T) {
	plan, err := Compile("-deprecated", false)
	require.NoError(t, err)
	assert.True(t, plan.OnlyExcluded())
}

func TestCompileExactPhrase(t *testing.T) {
	plan, err := Compile(`"exact phrase here"`, false)
	require.NoError(t, err)

	term, ok := plan.AST.(*Term)
	require.True(t, ok)
	assert.True(t, term.Exact)
	assert.Equal(t, []string{"exact phrase here"}, term.Keywords)
}

func TestCompileExactModeWrapsWholeQuery(t *testing.T) {
	plan, err := Compile(`any + weird -syntax`, true)
	require.NoError(t, err)
	term, ok := plan.AST.(*Term)
	require.True(t, ok)
	assert.True(t, term.Exact)
	assert.Equal(t, []string{"any + weird -syntax"}, term.Keywords)
}

func TestCompileDenseTermIndex(t *testing.T) {
	plan, err := Compile("auth token auth", false)
	require.NoError(t, err)
	seen := make(map[int]bool)
	for _, idx := range plan.TermIndex {
		assert.False(t, seen[idx], "index %d reused", idx)
		seen[idx] = true
	}
	for i := 0; i < len(plan.TermIndex); i++ {
		assert.Contains(t, seen, i, "indices must be dense 0..N-1")
	}
}

func TestCompileFieldFilterExtraction(t *testing.T) {
	plan, err := Compile("search file:main.go", false)
	require.NoError(t, err)
	assert.Contains(t, plan.Filters.FilePatterns, "main.go")
}
