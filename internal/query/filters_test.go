package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFiltersRemovesFilterTerms(t *testing.T) {
	plan, err := Compile("auth ext:go lang:python", false)
	require.NoError(t, err)

	assert.Contains(t, plan.Filters.Extensions, "go")
	assert.Contains(t, plan.Filters.Languages, "python")
	assert.False(t, plan.Universal)

	var fields []string
	walkTerms(plan.AST, func(tm *Term) {
		fields = append(fields, tm.Field)
	})
	for _, f := range fields {
		assert.False(t, isFilterField(f), "filter field %q should have been extracted out of the AST", f)
	}
}

func TestExtractFiltersAllFiltersBecomesUniversal(t *testing.T) {
	plan, err := Compile("ext:go lang:python", false)
	require.NoError(t, err)
	assert.True(t, plan.Universal)
}

func TestNormalizeLanguageName(t *testing.T) {
	cases := map[string]string{
		"js":  "javascript",
		"ts":  "typescript",
		"py":  "python",
		"rs":  "rust",
		"rb":  "ruby",
		"cs":  "csharp",
		"cc":  "cpp",
		"hpp": "c",
		"go":  "go",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeLanguageName(in), in)
	}
}

func TestFiltersMatchesFileExtension(t *testing.T) {
	f := &Filters{Extensions: []string{"go"}}
	assert.True(t, f.MatchesFile("internal/query/plan.go"))
	assert.False(t, f.MatchesFile("internal/query/plan.rs"))
}

func TestFiltersMatchesFileLanguage(t *testing.T) {
	f := &Filters{Languages: []string{"javascript"}}
	assert.True(t, f.MatchesFile("web/app.js"))
	assert.True(t, f.MatchesFile("web/app.jsx"))
	assert.False(t, f.MatchesFile("web/app.py"))
}

func TestFiltersMatchesFileDir(t *testing.T) {
	f := &Filters{DirPatterns: []string{"internal/query"}}
	assert.True(t, f.MatchesFile("internal/query/plan.go"))
	assert.False(t, f.MatchesFile("internal/block/extract.go"))
}

func TestFiltersIsEmpty(t *testing.T) {
	var f Filters
	assert.True(t, f.IsEmpty())
	f.Extensions = append(f.Extensions, "go")
	assert.False(t, f.IsEmpty())
}
