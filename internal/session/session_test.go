package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePathStripsLeadingDotSlash(t *testing.T) {
	assert.Equal(t, "internal/query/plan.go", NormalizePath("./internal/query/plan.go"))
	assert.Equal(t, "internal/query/plan.go", NormalizePath("internal/query/plan.go"))
}

func TestBlockKeyFormat(t *testing.T) {
	assert.Equal(t, "internal/query/plan.go:10-20", BlockKey("./internal/query/plan.go", 10, 20))
}

func TestLoadAbsentCacheBehavesEmpty(t *testing.T) {
	c := Load("new-session-never-seen", QueryHash("http client"))
	assert.False(t, c.IsCached("main.go:1-5"))
}

func TestLoadReturnsSameCacheForSameKey(t *testing.T) {
	qh := QueryHash("auth config")
	c1 := Load("session-a", qh)
	c1.Add("main.go:1-5")

	c2 := Load("session-a", qh)
	assert.True(t, c2.IsCached("main.go:1-5"))
}

func TestLoadIsolatesDifferentQueryHashes(t *testing.T) {
	c1 := Load("session-b", QueryHash("query-one"))
	c1.Add("main.go:1-5")

	c2 := Load("session-b", QueryHash("query-two"))
	assert.False(t, c2.IsCached("main.go:1-5"))
}

func TestEmptySessionIDAlwaysFresh(t *testing.T) {
	c1 := Load("", QueryHash("q"))
	c1.Add("main.go:1-5")

	c2 := Load("", QueryHash("q"))
	assert.False(t, c2.IsCached("main.go:1-5"))
}

func TestFilterMatchedLinesRemovesLinesInsideCachedBlock(t *testing.T) {
	sessionID := "filter-session"
	query := "auth"
	cache := Load(sessionID, QueryHash(query))
	cache.Add(BlockKey("main.go", 10, 20))

	matches := map[int]map[int]bool{
		0: {12: true, 30: true},
	}

	skipped := FilterMatchedLines(matches, "main.go", sessionID, query, []BlockRange{{Start: 10, End: 20}})

	assert.Equal(t, 1, skipped)
	assert.False(t, matches[0][12])
	assert.True(t, matches[0][30])
}

func TestFilterMatchedLinesNoopForNewSession(t *testing.T) {
	matches := map[int]map[int]bool{
		0: {12: true},
	}
	skipped := FilterMatchedLines(matches, "main.go", "totally-new-session", "auth", []BlockRange{{Start: 10, End: 20}})
	assert.Equal(t, 0, skipped)
	assert.True(t, matches[0][12])
}
