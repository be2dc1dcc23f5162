package searchcore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

const sampleGo = `package sample

// Add returns the sum of a and b.
func Add(a, b int) int {
	return a + b
}

// Sub returns the difference of a and b.
func Sub(a, b int) int {
	return a - b
}
`

const sampleRuby = `def add(a, b)
  a + b
end
`

func setupTree(t *testing.T) string {
	root := t.TempDir()
	writeFile(t, root, "math.go", sampleGo)
	writeFile(t, root, "math.rb", sampleRuby)
	writeFile(t, root, "README.md", "a project about math add functions\n")
	return root
}

func TestSearchFindsFunctionBlockByTerm(t *testing.T) {
	root := setupTree(t)
	core := NewCore()

	got, err := core.Search(context.Background(), SearchParams{
		Root: root, Queries: []string{"Add"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, got.Results)

	found := false
	for _, r := range got.Results {
		if r.File == "math.go" && r.NodeType == "function_declaration" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestSearchFilesOnlyReturnsWholeFile(t *testing.T) {
	root := setupTree(t)
	core := NewCore()

	got, err := core.Search(context.Background(), SearchParams{
		Root: root, Queries: []string{"Add"}, FilesOnly: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, got.Results)
	for _, r := range got.Results {
		assert.Equal(t, "file", r.NodeType)
	}
}

func TestSearchNoMergeKeepsOverlappingBlocks(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "vars.go", `package sample

var (
	Added = 1
	Subbed = 2
)
`)
	core := NewCore()

	merged, err := core.Search(context.Background(), SearchParams{
		Root: root, Queries: []string{"Added Subbed"}, NoMerge: false,
	})
	require.NoError(t, err)

	noMerge, err := core.Search(context.Background(), SearchParams{
		Root: root, Queries: []string{"Added Subbed"}, NoMerge: true,
	})
	require.NoError(t, err)

	assert.LessOrEqual(t, len(merged.Results), len(noMerge.Results))
}

func TestSearchUnregisteredLanguageFallsBackToContextLines(t *testing.T) {
	root := setupTree(t)
	core := NewCore()

	got, err := core.Search(context.Background(), SearchParams{
		Root: root, Queries: []string{"add"}, AllowTests: true,
	})
	require.NoError(t, err)

	found := false
	for _, r := range got.Results {
		if r.File == "math.rb" {
			found = true
			assert.Equal(t, "unknown_node", r.NodeType)
		}
	}
	assert.True(t, found)
}

func TestSearchIncludeFilenamesMatchesOnPathAlone(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "authhandler.go", "package sample\n\nfunc Handle() {}\n")

	core := NewCore()
	got, err := core.Search(context.Background(), SearchParams{
		Root: root, Queries: []string{"authhandler"}, IncludeFilenames: true, FilesOnly: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, got.Results)
	assert.Equal(t, "authhandler.go", got.Results[0].File)
}

func TestSearchSessionIDDedupsAcrossCalls(t *testing.T) {
	root := setupTree(t)
	core := NewCore()

	params := SearchParams{Root: root, Queries: []string{"Add"}, SessionID: "sess-1"}

	first, err := core.Search(context.Background(), params)
	require.NoError(t, err)
	require.NotEmpty(t, first.Results)

	second, err := core.Search(context.Background(), params)
	require.NoError(t, err)

	for _, r := range second.Results {
		assert.NotEqual(t, "math.go", r.File)
	}
	assert.Less(t, len(second.Results), len(first.Results))
}

func TestSearchMaxResultsLimitsOutputAndRecordsSkipped(t *testing.T) {
	root := setupTree(t)
	core := NewCore()

	got, err := core.Search(context.Background(), SearchParams{
		Root: root, Queries: []string{"Add Sub"}, MaxResults: 1,
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(got.Results), 1)
	assert.True(t, got.LimitsApplied)
	assert.NotEmpty(t, got.SkippedFiles)
}

func TestSearchRequiredTermMustBePresentEverywhere(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package sample\n\nfunc HandleHTTP() {\n\tclient := \"http client\"\n\t_ = client\n}\n")
	writeFile(t, root, "b.go", "package sample\n\nfunc HandlePlain() {\n\tclient := \"just a client\"\n\t_ = client\n}\n")
	core := NewCore()

	got, err := core.Search(context.Background(), SearchParams{
		Root: root, Queries: []string{"+http client"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, got.Results)
	for _, r := range got.Results {
		assert.Equal(t, "a.go", r.File)
	}
}

func TestSearchBlockEvaluatorDropsBlocksMissingOneRequiredTerm(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "svc.go", `package sample

func checkAuth() {
	auth := true
	_ = auth
}

func renewSession() {
	session := true
	_ = session
}
`)
	core := NewCore()

	got, err := core.Search(context.Background(), SearchParams{
		Root: root, Queries: []string{"+auth +session"},
	})
	require.NoError(t, err)
	assert.Empty(t, got.Results)
}

func TestSearchFrequencySearchReturnsResults(t *testing.T) {
	root := setupTree(t)
	core := NewCore()

	got, err := core.Search(context.Background(), SearchParams{
		Root: root, Queries: []string{"Add"}, FrequencySearch: true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, got.Results)
}

func TestExtractWholeFileWhenNoLineGiven(t *testing.T) {
	root := setupTree(t)
	core := NewCore()

	res, err := core.Extract(context.Background(), ExtractParams{
		FilePath: filepath.Join(root, "math.go"),
	})
	require.NoError(t, err)
	assert.Equal(t, "file", res.NodeType)
	assert.Equal(t, sampleGo, res.Code)
}

func TestExtractResolvesLineToEnclosingFunction(t *testing.T) {
	root := setupTree(t)
	core := NewCore()

	line := 4
	res, err := core.Extract(context.Background(), ExtractParams{
		FilePath: filepath.Join(root, "math.go"), Line: &line,
	})
	require.NoError(t, err)
	assert.Equal(t, "function_declaration", res.NodeType)
}

func TestExtractFallsBackToContextLinesForUnregisteredLanguage(t *testing.T) {
	root := setupTree(t)
	core := NewCore()

	line := 1
	res, err := core.Extract(context.Background(), ExtractParams{
		FilePath: filepath.Join(root, "math.rb"), Line: &line, ContextLines: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "unknown_node", res.NodeType)
	assert.Equal(t, 1, res.StartLine)
}

func TestExtractOutOfBoundsLineReturnsNonRecoverableError(t *testing.T) {
	root := setupTree(t)
	core := NewCore()

	line := 9999
	_, err := core.Extract(context.Background(), ExtractParams{
		FilePath: filepath.Join(root, "math.go"), Line: &line,
	})
	require.Error(t, err)
}
