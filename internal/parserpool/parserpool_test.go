package parserpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/standardbeagle/codeprobe/internal/langcap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestAcquireReleaseRoundTrip(t *testing.T) {
	p, err := Acquire("go")
	require.NoError(t, err)
	require.NotNil(t, p)
	Release("go", p)
}

func TestAcquireUnsupportedLanguage(t *testing.T) {
	_, err := Acquire("cobol")
	assert.Error(t, err)
}

func TestTreeCacheHitsOnUnchangedContent(t *testing.T) {
	cache := NewTreeCache()
	content := []byte("package main\nfunc main() {}\n")

	tree, err := Parse(cache, "main.go", "go", content)
	require.NoError(t, err)
	require.NotNil(t, tree)

	cached, ok := cache.Get("main.go", content)
	assert.True(t, ok)
	assert.Same(t, tree, cached)
}

func TestTreeCacheMissesOnChangedContent(t *testing.T) {
	cache := NewTreeCache()
	cache.Put("main.go", []byte("a"), nil)
	_, ok := cache.Get("main.go", []byte("b"))
	assert.False(t, ok)
}

func TestWarmUpIsIdempotent(t *testing.T) {
	WarmUp(langcap.TierCritical)
	WarmUp(langcap.TierCritical)
}
