package rank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/codeprobe/internal/tokenizer"
)

func TestRankOrdersMoreRelevantDocumentFirst(t *testing.T) {
	results := []Result{
		{File: "unrelated.go", Code: "func Unrelated() {}", NodeType: "function_declaration", StartLine: 1, EndLine: 1},
		{File: "auth.go", Code: "func Authenticate(user string) error { return checkAuth(user) }", NodeType: "function_declaration", StartLine: 1, EndLine: 1},
	}

	ranked := Rank(results, []string{"authenticate"}, false)

	require.Len(t, ranked, 2)
	assert.Equal(t, "auth.go", ranked[0].File)
	assert.Equal(t, 1, ranked[0].Rank)
	assert.Equal(t, 2, ranked[1].Rank)
}

func TestRankAppliesFunctionMultiplierOverComment(t *testing.T) {
	results := []Result{
		{File: "a.go", Code: "// authenticate the user", NodeType: "line_comment", StartLine: 1, EndLine: 1},
		{File: "b.go", Code: "func authenticate() {}", NodeType: "function_declaration", StartLine: 1, EndLine: 1},
	}

	ranked := Rank(results, []string{"authenticate"}, false)

	require.Len(t, ranked, 2)
	assert.Equal(t, "function_declaration", ranked[0].NodeType)
}

func TestRankPenalizesTestNodesWhenAllowed(t *testing.T) {
	results := []Result{
		{File: "a_test.go", Code: "func TestAuthenticate(t *testing.T) {}", NodeType: "function_declaration_test", StartLine: 1, EndLine: 1},
		{File: "a.go", Code: "func authenticate() {}", NodeType: "function_declaration", StartLine: 1, EndLine: 1},
	}

	ranked := Rank(results, []string{"authenticate"}, true)

	require.Len(t, ranked, 2)
	assert.Equal(t, "a.go", ranked[0].File)
}

func TestRankEmptyInput(t *testing.T) {
	ranked := Rank(nil, []string{"anything"}, false)
	assert.Empty(t, ranked)
}

func TestRankUsesPreTokenizedContentWhenPresent(t *testing.T) {
	stems := tokenizer.TokenizeAndStem("authenticate user")
	results := []Result{
		{File: "a.go", Code: "irrelevant raw text", TokenizedContent: stems, NodeType: "function_declaration", StartLine: 1, EndLine: 1},
	}
	ranked := Rank(results, []string{"authenticate"}, false)
	require.Len(t, ranked, 1)
	assert.Greater(t, ranked[0].BM25, 0.0)
}
