package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKDLDefaults(t *testing.T) {
	cfg, err := parseKDL("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 100, cfg.Search.MaxResults)
	assert.Equal(t, 0, cfg.Search.MaxTokens)
	assert.False(t, cfg.Search.Frequency)
	assert.Equal(t, "", cfg.Search.Reranker)
	assert.Equal(t, 3, cfg.Extract.ContextLines)
}

func TestParseKDLOverridesSearchFields(t *testing.T) {
	content := `
search {
    max_results 25
    max_tokens 8000
    max_bytes 50000
    frequency true
    reranker "ms-marco-minilm-l6"
    allow_tests true
    no_gitignore true
}
`
	cfg, err := parseKDL(content)
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Search.MaxResults)
	assert.Equal(t, 8000, cfg.Search.MaxTokens)
	assert.Equal(t, 50000, cfg.Search.MaxBytes)
	assert.True(t, cfg.Search.Frequency)
	assert.Equal(t, "ms-marco-minilm-l6", cfg.Search.Reranker)
	assert.True(t, cfg.Search.AllowTests)
	assert.True(t, cfg.Search.NoGitignore)
}

func TestParseKDLOverridesExtractAndPerformance(t *testing.T) {
	content := `
extract {
    context_lines 5
    allow_tests true
}
performance {
    tree_cache_size 200
}
`
	cfg, err := parseKDL(content)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Extract.ContextLines)
	assert.True(t, cfg.Extract.AllowTests)
	assert.Equal(t, 200, cfg.Performance.TreeCacheSize)
}

func TestLoadReturnsDefaultsWhenFileAbsent(t *testing.T) {
	root := t.TempDir()
	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadReadsFileFromProjectRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".codeprobe.kdl"), []byte(`
search {
    max_results 7
}
`), 0o644))

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Search.MaxResults)
}
