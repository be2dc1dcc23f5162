package query

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/standardbeagle/codeprobe/internal/tokenizer"
)

// Plan is the compiled form of a search query, per spec.md §3 QueryPlan. It
// is immutable after Compile returns and safe for concurrent Evaluate calls.
type Plan struct {
	AST      Expr
	Filters  *Filters
	Universal bool

	// TermIndex maps every non-excluded keyword to a dense index in
	// 0..N-1. Excluded terms never receive an index: they're checked
	// directly against matched content, not against the matched-index set.
	TermIndex map[string]int

	ExcludedKeywords map[string]bool
	RequiredIndices  map[int]bool
	SpecialIndices   map[int]bool

	hasRequiredAnywhere bool
	onlyExcluded        bool

	cache   *lru.Cache[uint64, bool]
	cacheMu sync.Mutex
}

const evalCacheSize = 4096

// Compile parses query, extracts filters, and builds the dense term index
// plus memoization cache described in spec.md §4.2. If exact is true the
// entire query string is treated as one verbatim phrase.
func Compile(queryStr string, exact bool) (*Plan, error) {
	ast, err := parseQuery(queryStr, exact)
	if err != nil {
		return nil, err
	}

	filters, simplified := extractFilters(ast)

	universal := false
	if simplified == nil {
		simplified = &Term{Keywords: []string{"."}}
		universal = true
	}

	plan := &Plan{
		AST:              simplified,
		Filters:          filters,
		Universal:        universal,
		TermIndex:        make(map[string]int),
		ExcludedKeywords: make(map[string]bool),
		RequiredIndices:  make(map[int]bool),
		SpecialIndices:   make(map[int]bool),
	}

	var ordered []*Term
	walkTerms(simplified, func(t *Term) {
		ordered = append(ordered, t)
	})

	for _, t := range ordered {
		if t.Excluded {
			for _, kw := range t.Keywords {
				plan.ExcludedKeywords[kw] = true
			}
			continue
		}
		for _, kw := range t.Keywords {
			if _, ok := plan.TermIndex[kw]; ok {
				continue
			}
			idx := len(plan.TermIndex)
			plan.TermIndex[kw] = idx
			if t.Required {
				plan.RequiredIndices[idx] = true
			}
			if tokenizer.IsSpecialCase(kw) {
				plan.SpecialIndices[idx] = true
			}
		}
	}

	plan.hasRequiredAnywhere = hasRequiredTerm(simplified)
	plan.onlyExcluded = isOnlyExcludedTerms(simplified)

	cache, err := lru.New[uint64, bool](evalCacheSize)
	if err != nil {
		return nil, err
	}
	plan.cache = cache

	return plan, nil
}

// HasRequiredAnywhere reports whether the compiled AST contains at least one
// required, non-excluded term.
func (p *Plan) HasRequiredAnywhere() bool { return p.hasRequiredAnywhere }

// OnlyExcluded reports whether every term in the compiled AST is excluded,
// meaning the query matches everything not containing those terms.
func (p *Plan) OnlyExcluded() bool { return p.onlyExcluded }
