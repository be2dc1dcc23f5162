// Package searchcore wires the Query Compiler, File List Cache, Content
// Matcher, Session Cache, Block Extractor, Ranker, and Limiter into the two
// public operations of spec.md §6: search() and extract(). File-level work
// (the directory walk's per-file matching, and per-file block extraction)
// runs on a work-stealing worker pool per spec.md §5; AST traversal within
// one file stays single-threaded. Grounded on
// original_source/src/search/search_execution.rs's two-pass
// (match-then-extract) pipeline shape.
package searchcore

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/codeprobe/internal/block"
	"github.com/standardbeagle/codeprobe/internal/debug"
	"github.com/standardbeagle/codeprobe/internal/discovery"
	cperrors "github.com/standardbeagle/codeprobe/internal/errors"
	"github.com/standardbeagle/codeprobe/internal/langcap"
	"github.com/standardbeagle/codeprobe/internal/limiter"
	"github.com/standardbeagle/codeprobe/internal/match"
	"github.com/standardbeagle/codeprobe/internal/parserpool"
	"github.com/standardbeagle/codeprobe/internal/query"
	"github.com/standardbeagle/codeprobe/internal/rank"
	"github.com/standardbeagle/codeprobe/internal/session"
	"github.com/standardbeagle/codeprobe/internal/tokenizer"
)

// SearchResult is the shape spec.md §3 describes, shared by search() and
// extract().
type SearchResult struct {
	File      string
	StartLine int
	EndLine   int
	NodeType  string
	Code      string

	Rank    int
	Score   float64
	BM25    float64
	HasRank bool

	ParentNodeType  string
	ParentStartLine int
	ParentEndLine   int
	HasParent       bool
}

// LimitedSearchResults is the {results, skipped_files, limits_applied}
// triple search() returns.
type LimitedSearchResults struct {
	Results       []SearchResult
	SkippedFiles  []SearchResult
	LimitsApplied bool
}

// Core owns the shared, process-lifetime resources spec.md §5 describes:
// the File List Cache and the Tree Cache. One Core should be shared across
// every search()/extract() call in a process.
type Core struct {
	Discovery *discovery.Cache
	Trees     *parserpool.TreeCache

	warmUpOnce sync.Once
}

// NewCore builds a Core with fresh, empty shared caches.
func NewCore() *Core {
	return &Core{Discovery: discovery.NewCache(), Trees: parserpool.NewTreeCache()}
}

// warmUp implements the "smart pre-warming" of spec.md §4.7: on this Core's
// first Search, the discovered file list is scanned for observed
// extensions and the Parser Pool is pre-warmed up through the highest tier
// actually present, instead of blindly warming every registered language.
func (c *Core) warmUp(files []string) {
	c.warmUpOnce.Do(func() {
		maxTier := langcap.TierCritical
		seen := false
		for _, f := range files {
			ext := strings.TrimPrefix(filepath.Ext(f), ".")
			lc := langcap.ForExtension(ext)
			if lc == nil {
				continue
			}
			seen = true
			if lc.Tier > maxTier {
				maxTier = lc.Tier
			}
		}
		if !seen {
			return
		}
		debug.Discovery("pre-warming parser pool up through tier %d", maxTier)
		parserpool.WarmUp(maxTier)
	})
}

// bertRerankers are the BERT-model reranker names original_source accepts.
// No ONNX/BERT runtime appears anywhere in the retrieved pack, so these
// fall back to the BM25 path below with a debug note, mirroring the
// original's own "feature not compiled in" fallback behavior.
var bertRerankers = map[string]bool{
	"ms-marco-tinybert": true, "ms-marco-minilm-l6": true, "ms-marco-minilm-l12": true,
}

// frequencyCandidateCap bounds how many match-count-ranked candidate files
// frequency_search lets through to the expensive Block Extraction pass.
const frequencyCandidateCap = 500

// defaultContextLines is used when a caller's context_lines is unset (<=0).
const defaultContextLines = 3

// SearchParams is the parameter set of spec.md §6's search() operation.
type SearchParams struct {
	Root             string
	Queries          []string
	FilesOnly        bool
	CustomIgnores    []string
	IncludeFilenames bool
	Reranker         string
	FrequencySearch  bool
	MaxResults       int
	MaxBytes         int
	MaxTokens        int
	AllowTests       bool
	Exact            bool
	NoMerge          bool
	SessionID        string
}

// fileCandidate is one file that survived discovery, binary rejection, and
// the combined-pattern fast reject, carrying everything later stages need.
type fileCandidate struct {
	path            string
	content         []byte
	language        string
	matchedLines    map[int]map[int]bool // term index -> set of 1-based lines
	excludedPresent map[string]bool      // excluded keyword -> present anywhere in file
	matchCount      int
}

// blockMatchedIndices projects fc's file-level matchedLines onto the
// 1-based [startLine, endLine] range, returning the set of term indices
// whose matched lines fall within it. This is the Block Evaluator's
// per-block predicate input of spec.md §4.9.
func blockMatchedIndices(fc fileCandidate, startLine, endLine int) map[int]bool {
	out := make(map[int]bool, len(fc.matchedLines))
	for idx, lines := range fc.matchedLines {
		for line := range lines {
			if line >= startLine && line <= endLine {
				out[idx] = true
				break
			}
		}
	}
	return out
}

// Search implements spec.md §6's search(): compile the query, discover
// candidate files, match content in parallel, extract and rank blocks, then
// apply the three-axis Limiter.
func (c *Core) Search(ctx context.Context, p SearchParams) (LimitedSearchResults, error) {
	combinedQuery := strings.Join(p.Queries, " ")
	plan, err := query.Compile(combinedQuery, p.Exact)
	if err != nil {
		return LimitedSearchResults{}, cperrors.QueryParse(combinedQuery, err)
	}

	if bertRerankers[p.Reranker] {
		debug.Rank("reranker %q requested but no BERT runtime is available in this build; falling back to BM25", p.Reranker)
	}

	files, err := c.Discovery.List(p.Root, discovery.Options{
		AllowTests:    p.AllowTests,
		CustomIgnores: p.CustomIgnores,
		Languages:     plan.Filters.Languages,
		Extensions:    plan.Filters.Extensions,
	})
	if err != nil {
		return LimitedSearchResults{}, cperrors.FileIO("discover", p.Root, err)
	}

	if !plan.Filters.IsEmpty() {
		filtered := make([]string, 0, len(files))
		for _, f := range files {
			if plan.Filters.MatchesFile(f) {
				filtered = append(filtered, f)
			}
		}
		files = filtered
	}

	c.warmUp(files)

	combined, perTerm := plan.Patterns()
	excludedPatterns := compileExcludedPatterns(plan)

	candidates, err := c.matchFiles(ctx, p.Root, files, plan, combined, perTerm, excludedPatterns)
	if err != nil {
		return LimitedSearchResults{}, err
	}

	if p.FrequencySearch {
		sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].matchCount > candidates[j].matchCount })
		if len(candidates) > frequencyCandidateCap {
			debug.Match("frequency_search: capping %d candidate files to top %d by match count", len(candidates), frequencyCandidateCap)
			candidates = candidates[:frequencyCandidateCap]
		}
	}

	var flatResults []rank.Result
	if p.FilesOnly {
		flatResults = filesOnlyResults(candidates)
	} else {
		flatResults, err = c.extractBlocks(ctx, candidates, plan, combinedQuery, p)
		if err != nil {
			return LimitedSearchResults{}, err
		}
	}

	ranked := rank.Rank(flatResults, p.Queries, p.AllowTests)
	return applyLimits(ranked, p), nil
}

// matchFiles reads and matches every candidate file on a bounded
// work-stealing pool, per spec.md §5. Per-file I/O and parse errors are
// recoverable: the file is skipped and the walk continues.
func (c *Core) matchFiles(ctx context.Context, root string, files []string, plan *query.Plan, combined *regexp.Regexp, perTerm []query.Pattern, excludedPatterns map[string]*regexp.Regexp) ([]fileCandidate, error) {
	results := make([]*fileCandidate, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerLimit())

	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			full := filepath.Join(root, f)
			content, err := os.ReadFile(full)
			if err != nil {
				debug.Match("skip %s: %v", f, err)
				return nil
			}
			if match.IsBinary(f, content) {
				return nil
			}
			if !plan.Universal && combined != nil && !combined.Match(content) {
				return nil
			}

			matchedLines := make(map[int]map[int]bool)
			total := 0
			for _, pat := range perTerm {
				res := match.Match(f, content, pat.Regexp)
				for line := range res.Lines {
					for idx := range pat.TermIndices {
						if matchedLines[idx] == nil {
							matchedLines[idx] = make(map[int]bool)
						}
						matchedLines[idx][line] = true
					}
					total++
				}
			}

			fileMatched := make(map[int]bool, len(matchedLines))
			for idx, lines := range matchedLines {
				if len(lines) > 0 {
					fileMatched[idx] = true
				}
			}

			excludedPresent := make(map[string]bool, len(excludedPatterns))
			for kw, re := range excludedPatterns {
				excludedPresent[kw] = re.Match(content)
			}

			if !plan.Evaluate(fileMatched, excludedPresent, false) {
				return nil
			}

			results[i] = &fileCandidate{
				path:            f,
				content:         content,
				language:        languageOf(f),
				matchedLines:    matchedLines,
				excludedPresent: excludedPresent,
				matchCount:      total,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]fileCandidate, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

func compileExcludedPatterns(plan *query.Plan) map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp, len(plan.ExcludedKeywords))
	for kw := range plan.ExcludedKeywords {
		out[kw] = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(kw))
	}
	return out
}

func languageOf(path string) string {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	lc := langcap.ForExtension(ext)
	if lc == nil {
		return ""
	}
	return lc.Name
}

// filesOnlyResults implements the files_only short-circuit: one
// whole-file result per matched file, skipping Block Extraction and the
// Ranker's node-type boost entirely (node_type stays "file", multiplier
// 1.0).
func filesOnlyResults(candidates []fileCandidate) []rank.Result {
	out := make([]rank.Result, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, rank.Result{
			File:      c.path,
			StartLine: 1,
			EndLine:   countLines(c.content),
			NodeType:  "file",
			Code:      string(c.content),
		})
	}
	return out
}

// extractBlocks runs Block Extraction per candidate file on a bounded
// worker pool, applying the Session Cache's block-key filter and the Block
// Evaluator's per-block predicate check before a block is surfaced, per
// spec.md §5/§6/§4.9.
func (c *Core) extractBlocks(ctx context.Context, candidates []fileCandidate, plan *query.Plan, combinedQuery string, p SearchParams) ([]rank.Result, error) {
	perFile := make([][]rank.Result, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerLimit())

	for i, fc := range candidates {
		i, fc := i, fc
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			lineNumbers := make(map[int]bool)
			for _, lines := range fc.matchedLines {
				for line := range lines {
					lineNumbers[line] = true
				}
			}
			if len(lineNumbers) == 0 {
				return nil
			}

			var results []rank.Result
			if fc.language != "" {
				blocks, err := block.Extract(c.Trees, fc.path, fc.language, fc.content, lineNumbers, p.AllowTests, p.NoMerge)
				if err != nil {
					debug.Block("extract failed for %s: %v", fc.path, err)
				}
				blocks = filterBlocksByPredicate(plan, fc, blocks)
				if p.SessionID != "" {
					blocks = filterSessionCached(fc.path, p.SessionID, combinedQuery, blocks)
				}
				results = blocksToResults(fc, blocks, p.IncludeFilenames)
			} else {
				results = fallbackResults(fc, plan, lineNumbers, defaultContextLines, p.NoMerge, p.IncludeFilenames)
			}

			perFile[i] = results
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []rank.Result
	for _, rs := range perFile {
		out = append(out, rs...)
	}
	return out, nil
}

// filterBlocksByPredicate is the Block Evaluator of spec.md §2/§4.9: a block
// surviving the file-level predicate still needs its own matched-line set,
// projected through blockMatchedIndices, to satisfy plan on its own —
// otherwise a file can pass by combining required terms found in different,
// unrelated blocks.
func filterBlocksByPredicate(plan *query.Plan, fc fileCandidate, blocks []block.CodeBlock) []block.CodeBlock {
	kept := make([]block.CodeBlock, 0, len(blocks))
	for _, b := range blocks {
		matched := blockMatchedIndices(fc, b.StartRow+1, b.EndRow+1)
		if plan.Evaluate(matched, fc.excludedPresent, false) {
			kept = append(kept, b)
		}
	}
	return kept
}

func blocksToResults(fc fileCandidate, blocks []block.CodeBlock, includeFilenames bool) []rank.Result {
	out := make([]rank.Result, 0, len(blocks))
	for _, b := range blocks {
		code := extractByteRange(fc.content, b.StartByte, b.EndByte)
		r := rank.Result{
			File:      fc.path,
			StartLine: b.StartRow + 1,
			EndLine:   b.EndRow + 1,
			NodeType:  b.NodeType,
			Code:      code,
		}
		if b.HasParent {
			r.ParentNodeType = b.ParentNodeType
			r.ParentStartLine = b.ParentStartRow + 1
			r.ParentEndLine = b.ParentEndRow + 1
			r.HasParent = true
		}
		if includeFilenames {
			r.TokenizedContent = withFilenameTokens(fc.path, code)
		}
		out = append(out, r)
	}
	return out
}

// withFilenameTokens implements the include_filenames supplemented feature:
// the Ranker's document additionally indexes the file's path tokens as if
// they were content, so query terms found in the path add to a block's BM25
// score. It applies only to blocks of files whose content already matched;
// a file whose path alone matches the query is not surfaced.
func withFilenameTokens(path, code string) []string {
	doc := "// Filename: " + path + "\n" + code
	return tokenizer.TokenizeAndStem(doc)
}

type lineRange struct{ start, end int }

// fallbackResults builds SearchResults directly from line ranges for
// files whose extension has no registered Capability (Ruby, and any
// extension langcap does not know, such as .md), per the
// extract() context_lines fallback supplemented feature, generalised here
// to every matched line of a file rather than just extract()'s single line.
// Each range is subject to the same Block Evaluator predicate check
// tree-sitter-backed blocks get in filterBlocksByPredicate.
func fallbackResults(fc fileCandidate, plan *query.Plan, lineNumbers map[int]bool, contextLines int, noMerge, includeFilenames bool) []rank.Result {
	total := countLines(fc.content)
	lines := sortedKeys(lineNumbers)

	ranges := make([]lineRange, 0, len(lines))
	for _, l := range lines {
		s, e := contextRange(l, total, contextLines)
		ranges = append(ranges, lineRange{s, e})
	}
	if !noMerge {
		ranges = mergeLineRanges(ranges)
	}

	out := make([]rank.Result, 0, len(ranges))
	for _, r := range ranges {
		matched := blockMatchedIndices(fc, r.start, r.end)
		if !plan.Evaluate(matched, fc.excludedPresent, false) {
			continue
		}
		code := extractLineRange(fc.content, r.start, r.end)
		res := rank.Result{
			File:      fc.path,
			StartLine: r.start,
			EndLine:   r.end,
			NodeType:  "unknown_node",
			Code:      code,
		}
		if includeFilenames {
			res.TokenizedContent = withFilenameTokens(fc.path, code)
		}
		out = append(out, res)
	}
	return out
}

func mergeLineRanges(ranges []lineRange) []lineRange {
	if len(ranges) == 0 {
		return ranges
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].start < ranges[j].start })
	out := []lineRange{ranges[0]}
	for _, r := range ranges[1:] {
		last := &out[len(out)-1]
		if r.start <= last.end+1 {
			if r.end > last.end {
				last.end = r.end
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

// filterSessionCached drops blocks already returned to this sessionID for
// this query in a prior call — the Session Cache collaborator's early
// filter of spec.md §6 — and records every newly-surfaced block so a later
// call in the same session skips it too.
func filterSessionCached(path, sessionID, queryStr string, blocks []block.CodeBlock) []block.CodeBlock {
	if sessionID == "" || len(blocks) == 0 {
		return blocks
	}

	blockLines := make([]session.BlockRange, len(blocks))
	matches := make(map[int]map[int]bool, len(blocks))
	for i, b := range blocks {
		start, end := b.StartRow+1, b.EndRow+1
		blockLines[i] = session.BlockRange{Start: start, End: end}
		matches[i] = map[int]bool{start: true}
	}

	session.FilterMatchedLines(matches, path, sessionID, queryStr, blockLines)

	cache := session.Load(sessionID, session.QueryHash(queryStr))
	kept := make([]block.CodeBlock, 0, len(blocks))
	for i, b := range blocks {
		if !matches[i][b.StartRow+1] {
			continue // filtered out: already returned earlier in this session
		}
		cache.Add(session.BlockKey(path, b.StartRow+1, b.EndRow+1))
		kept = append(kept, b)
	}
	_ = cache.Save()
	return kept
}

// applyLimits converts ranked results to Limiter candidates, applies the
// three-axis limit, and maps the survivors back to full SearchResults.
func applyLimits(ranked []rank.Result, p SearchParams) LimitedSearchResults {
	candidates := make([]limiter.Candidate, len(ranked))
	for i, r := range ranked {
		candidates[i] = limiter.Candidate{
			Index: i, File: r.File, Code: r.Code, Rank: r.Rank, HasRank: r.HasRank, BM25Score: r.BM25,
		}
	}

	limited := limiter.Apply(candidates, limiter.Limits{
		MaxResults: p.MaxResults, MaxBytes: p.MaxBytes, MaxTokens: p.MaxTokens,
	})

	toResult := func(c limiter.Candidate) SearchResult {
		r := ranked[c.Index]
		return SearchResult{
			File: r.File, StartLine: r.StartLine, EndLine: r.EndLine,
			NodeType: r.NodeType, Code: r.Code,
			Rank: r.Rank, Score: r.Score, BM25: r.BM25, HasRank: r.HasRank,
			ParentNodeType: r.ParentNodeType, ParentStartLine: r.ParentStartLine,
			ParentEndLine: r.ParentEndLine, HasParent: r.HasParent,
		}
	}

	out := LimitedSearchResults{LimitsApplied: limited.LimitsApplied}
	for _, c := range limited.Results {
		out.Results = append(out.Results, toResult(c))
	}
	for _, c := range limited.SkippedFiles {
		out.SkippedFiles = append(out.SkippedFiles, toResult(c))
	}
	return out
}

// ExtractParams is the parameter set of spec.md §6's extract() operation.
type ExtractParams struct {
	FilePath     string
	Line         *int // 1-based; nil means "whole file"
	AllowTests   bool
	ContextLines int
}

// Extract implements spec.md §6's extract(): with no line, return the
// whole file as one SearchResult; with a line, resolve it to its enclosing
// acceptable-parent block, falling back to a context_lines range when the
// line's language has no Capability or resolves to nothing acceptable. A
// line outside the file's range is a non-recoverable error per §7.
func (c *Core) Extract(ctx context.Context, p ExtractParams) (SearchResult, error) {
	content, err := os.ReadFile(p.FilePath)
	if err != nil {
		return SearchResult{}, cperrors.FileIO("read", p.FilePath, err)
	}
	total := countLines(content)

	if p.Line == nil {
		return SearchResult{
			File: p.FilePath, StartLine: 1, EndLine: total,
			NodeType: "file", Code: string(content),
		}, nil
	}

	line := *p.Line
	if line < 1 || line > total {
		return SearchResult{}, cperrors.OutOfBounds(p.FilePath, line, total)
	}

	contextLines := p.ContextLines
	if contextLines <= 0 {
		contextLines = defaultContextLines
	}

	if lang := languageOf(p.FilePath); lang != "" {
		blocks, err := block.Extract(c.Trees, p.FilePath, lang, content, map[int]bool{line: true}, p.AllowTests, false)
		if err != nil {
			debug.Block("extract failed for %s: %v", p.FilePath, err)
		}
		if lc := langcap.ForLanguage(lang); len(blocks) > 0 && lc != nil && lc.IsAcceptableParent(blocks[0].NodeType) {
			b := blocks[0]
			res := SearchResult{
				File: p.FilePath, StartLine: b.StartRow + 1, EndLine: b.EndRow + 1,
				NodeType: b.NodeType, Code: extractByteRange(content, b.StartByte, b.EndByte),
			}
			if b.HasParent {
				res.ParentNodeType = b.ParentNodeType
				res.ParentStartLine = b.ParentStartRow + 1
				res.ParentEndLine = b.ParentEndRow + 1
				res.HasParent = true
			}
			return res, nil
		}
	}

	start, end := contextRange(line, total, contextLines)
	return SearchResult{
		File: p.FilePath, StartLine: start, EndLine: end,
		NodeType: "unknown_node", Code: extractLineRange(content, start, end),
	}, nil
}

func workerLimit() int {
	n := runtime.NumCPU()
	if n < 4 {
		return 4
	}
	return n
}

func countLines(content []byte) int {
	n := 1
	for _, b := range content {
		if b == '\n' {
			n++
		}
	}
	return n
}

func sortedKeys(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func contextRange(line, total, contextLines int) (start, end int) {
	start = line - contextLines
	if start < 1 {
		start = 1
	}
	end = line + contextLines
	if end > total {
		end = total
	}
	return start, end
}

func extractByteRange(content []byte, start, end uint) string {
	if end > uint(len(content)) || start > end {
		return ""
	}
	return string(content[start:end])
}

func extractLineRange(content []byte, start, end int) string {
	lines := strings.Split(string(content), "\n")
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return ""
	}
	return strings.Join(lines[start-1:end], "\n")
}
