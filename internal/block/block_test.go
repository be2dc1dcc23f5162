package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/codeprobe/internal/parserpool"
)

const sampleGo = `package sample

// Add returns the sum of a and b.
func Add(a, b int) int {
	return a + b
}

func TestAdd(t *testing.T) {
	if Add(1, 2) != 3 {
		t.Fatal("bad sum")
	}
}
`

func TestExtractReturnsFunctionBlockForMatchedLine(t *testing.T) {
	cache := parserpool.NewTreeCache()
	blocks, err := Extract(cache, "sample.go", "go", []byte(sampleGo), map[int]bool{5: true}, true, false)
	require.NoError(t, err)
	require.NotEmpty(t, blocks)

	found := false
	for _, b := range blocks {
		if b.NodeType == "function_declaration" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestExtractMergesLeadingCommentWithFunction(t *testing.T) {
	cache := parserpool.NewTreeCache()
	// line 3 is the doc comment directly above Add.
	blocks, err := Extract(cache, "sample.go", "go", []byte(sampleGo), map[int]bool{3: true}, true, false)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, "function_declaration", blocks[0].NodeType)
	assert.LessOrEqual(t, blocks[0].StartRow, 2) // 0-based row of the comment line
}

func TestExtractDropsTestNodesWhenNotAllowed(t *testing.T) {
	cache := parserpool.NewTreeCache()
	// line 8 is inside TestAdd.
	blocks, err := Extract(cache, "sample_test.go", "go", []byte(sampleGo), map[int]bool{8: true}, false, false)
	require.NoError(t, err)
	assert.Empty(t, blocks)
}

func TestExtractKeepsTestNodesWhenAllowed(t *testing.T) {
	cache := parserpool.NewTreeCache()
	blocks, err := Extract(cache, "sample_test.go", "go", []byte(sampleGo), map[int]bool{8: true}, true, false)
	require.NoError(t, err)
	assert.NotEmpty(t, blocks)
}

func TestExtractUnsupportedLanguageReturnsNoBlocks(t *testing.T) {
	cache := parserpool.NewTreeCache()
	blocks, err := Extract(cache, "script.sh", "bash", []byte("echo hi\n"), map[int]bool{1: true}, true, false)
	require.NoError(t, err)
	assert.Nil(t, blocks)
}

func TestExtractDedupesOverlappingLinesToOneBlock(t *testing.T) {
	cache := parserpool.NewTreeCache()
	blocks, err := Extract(cache, "sample.go", "go", []byte(sampleGo), map[int]bool{4: true, 5: true}, true, false)
	require.NoError(t, err)
	assert.Len(t, blocks, 1)
}

const sampleGoVarBlock = `package sample

var (
	a = 1
	b = 2
)
`

const sampleGoLocalStruct = `package sample

func build() interface{} {
	type localResult struct {
		Value int
	}
	return localResult{Value: 1}
}
`

func TestExtractFillsParentForNonFunctionBlockInsideFunction(t *testing.T) {
	cache := parserpool.NewTreeCache()
	// line 4 is the "type localResult struct" body, nested inside build().
	blocks, err := Extract(cache, "sample.go", "go", []byte(sampleGoLocalStruct), map[int]bool{4: true}, true, false)
	require.NoError(t, err)
	require.NotEmpty(t, blocks)

	found := false
	for _, b := range blocks {
		if b.NodeType == "type_declaration" || b.NodeType == "type_spec" {
			found = true
			assert.True(t, b.HasParent)
			assert.Equal(t, "function_declaration", b.ParentNodeType)
		}
	}
	assert.True(t, found)
}

func TestExtractNoMergeKeepsOverlappingBlocks(t *testing.T) {
	cache := parserpool.NewTreeCache()
	// Line 3 ("var (") resolves to the whole var_declaration (rows 2-5);
	// line 4 ("a = 1") resolves to its own narrower var_spec (row 3), which
	// sits entirely inside the declaration's span — a genuine overlap.
	merged, err := Extract(cache, "sample.go", "go", []byte(sampleGoVarBlock), map[int]bool{3: true, 4: true}, true, false)
	require.NoError(t, err)
	assert.Len(t, merged, 1)

	noMerge, err := Extract(cache, "sample.go", "go", []byte(sampleGoVarBlock), map[int]bool{3: true, 4: true}, true, true)
	require.NoError(t, err)
	assert.Len(t, noMerge, 2)
}
