// Package limiter implements apply_limits of spec.md §4.11: a three-axis
// (result count, raw bytes, model tokens) greedy insertion over
// rank-ordered results.
package limiter

import (
	"sort"

	"github.com/standardbeagle/codeprobe/internal/tokencount"
)

// Candidate is the subset of a ranked SearchResult the Limiter needs.
// Index lets a caller that builds Candidate from a richer result slice (as
// searchcore does) recover the full result after limiting without the
// Limiter needing to know that shape.
type Candidate struct {
	Index     int
	File      string
	Code      string
	Rank      int
	HasRank   bool
	BM25Score float64
}

// Result is the {results, skipped_files, limits_applied} triple the
// contract returns.
type Result struct {
	Results       []Candidate
	SkippedFiles  []Candidate
	LimitsApplied bool
}

// Limits bounds a search: zero means "no limit" for that axis, except
// MaxResults where zero means "return nothing" per spec.md. When all three
// are zero no limit is set at all and every candidate passes through.
type Limits struct {
	MaxResults int
	MaxBytes   int
	MaxTokens  int
}

func (l Limits) anySet() bool {
	return l.MaxResults > 0 || l.MaxBytes > 0 || l.MaxTokens > 0
}

// Apply sorts candidates by rank ascending (unranked last), then inserts
// greedily as long as the running total stays within every set limit. A
// skipped candidate that already has a rank and a nonzero BM25 score is
// recorded in SkippedFiles; everything else is silently dropped.
func Apply(candidates []Candidate, limits Limits) Result {
	if !limits.anySet() {
		return Result{Results: candidates}
	}
	if limits.MaxResults == 0 {
		return Result{Results: nil, LimitsApplied: true}
	}

	ordered := append([]Candidate(nil), candidates...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].HasRank {
			return false
		}
		if !ordered[j].HasRank {
			return true
		}
		return ordered[i].Rank < ordered[j].Rank
	})

	var out Result
	var bytesUsed, tokensUsed int

	for _, c := range ordered {
		byteLen := len(c.Code)
		tokenLen := tokencount.Count(c.Code)

		if limits.MaxResults > 0 && len(out.Results) >= limits.MaxResults {
			out.LimitsApplied = true
			maybeSkip(&out, c)
			continue
		}
		if limits.MaxBytes > 0 && bytesUsed+byteLen > limits.MaxBytes {
			out.LimitsApplied = true
			maybeSkip(&out, c)
			continue
		}
		if limits.MaxTokens > 0 && tokensUsed+tokenLen > limits.MaxTokens {
			out.LimitsApplied = true
			maybeSkip(&out, c)
			continue
		}

		out.Results = append(out.Results, c)
		bytesUsed += byteLen
		tokensUsed += tokenLen
	}

	return out
}

func maybeSkip(out *Result, c Candidate) {
	if c.HasRank && c.BM25Score != 0 {
		out.SkippedFiles = append(out.SkippedFiles, c)
	}
}
