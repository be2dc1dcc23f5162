package limiter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/codeprobe/internal/tokencount"
)

func TestApplyNoLimitsPassesThroughUnmodified(t *testing.T) {
	candidates := []Candidate{
		{File: "a.go", Code: "aaaa", Rank: 2, HasRank: true, BM25Score: 1},
		{File: "b.go", Code: "bbbb", Rank: 1, HasRank: true, BM25Score: 1},
	}
	result := Apply(candidates, Limits{})
	assert.Len(t, result.Results, 2)
	assert.False(t, result.LimitsApplied)
}

func TestApplyMaxResultsZeroReturnsNothing(t *testing.T) {
	candidates := []Candidate{
		{File: "a.go", Code: "aaaa", Rank: 1, HasRank: true, BM25Score: 1},
	}
	result := Apply(candidates, Limits{MaxResults: 0, MaxBytes: 100})
	assert.Empty(t, result.Results)
	assert.True(t, result.LimitsApplied)
}

func TestApplySortsByRankAscendingUnrankedLast(t *testing.T) {
	candidates := []Candidate{
		{File: "unranked.go", Code: "x", HasRank: false},
		{File: "second.go", Code: "y", Rank: 2, HasRank: true},
		{File: "first.go", Code: "z", Rank: 1, HasRank: true},
	}
	result := Apply(candidates, Limits{MaxResults: 10})
	require.Len(t, result.Results, 3)
	assert.Equal(t, "first.go", result.Results[0].File)
	assert.Equal(t, "second.go", result.Results[1].File)
	assert.Equal(t, "unranked.go", result.Results[2].File)
}

func TestApplyRespectsMaxResults(t *testing.T) {
	candidates := []Candidate{
		{File: "a.go", Code: "x", Rank: 1, HasRank: true, BM25Score: 1},
		{File: "b.go", Code: "y", Rank: 2, HasRank: true, BM25Score: 1},
		{File: "c.go", Code: "z", Rank: 3, HasRank: true, BM25Score: 1},
	}
	result := Apply(candidates, Limits{MaxResults: 2})
	require.Len(t, result.Results, 2)
	assert.Equal(t, "a.go", result.Results[0].File)
	assert.Equal(t, "b.go", result.Results[1].File)
	require.Len(t, result.SkippedFiles, 1)
	assert.Equal(t, "c.go", result.SkippedFiles[0].File)
}

func TestApplyRespectsMaxBytes(t *testing.T) {
	candidates := []Candidate{
		{File: "a.go", Code: "12345", Rank: 1, HasRank: true, BM25Score: 1},
		{File: "b.go", Code: "67890", Rank: 2, HasRank: true, BM25Score: 1},
	}
	result := Apply(candidates, Limits{MaxBytes: 6})
	require.Len(t, result.Results, 1)
	assert.Equal(t, "a.go", result.Results[0].File)
	assert.True(t, result.LimitsApplied)
}

func TestApplyRespectsMaxTokens(t *testing.T) {
	firstCode := "the quick brown fox jumps over the lazy dog"
	secondCode := "the quick brown fox jumps over the lazy dog again and again and again and again"
	candidates := []Candidate{
		{File: "a.go", Code: firstCode, Rank: 1, HasRank: true, BM25Score: 1},
		{File: "b.go", Code: secondCode, Rank: 2, HasRank: true, BM25Score: 1},
	}
	// Budget enough for the first candidate alone but not both.
	budget := tokencount.Count(firstCode)
	result := Apply(candidates, Limits{MaxTokens: budget})
	require.Len(t, result.Results, 1)
	assert.Equal(t, "a.go", result.Results[0].File)
}

func TestApplyDoesNotRecordZeroScoreSkipsAsSkippedFiles(t *testing.T) {
	candidates := []Candidate{
		{File: "a.go", Code: "x", Rank: 1, HasRank: true, BM25Score: 1},
		{File: "b.go", Code: "y", HasRank: false, BM25Score: 0},
	}
	result := Apply(candidates, Limits{MaxResults: 1})
	require.Len(t, result.Results, 1)
	assert.Empty(t, result.SkippedFiles)
}
