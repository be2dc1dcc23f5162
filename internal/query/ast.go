// Package query implements the Query Compiler, AST evaluator, and Pattern
// Generator of spec.md §4.2–§4.4.
package query

// Expr is the AST node variant of spec.md §3: a Term, an And, or an Or of
// two sub-expressions.
type Expr interface {
	isExpr()
}

// Term is a search term carrying zero or more tokenised keywords, an
// optional field name, and the required/excluded/exact flags. excluded and
// required are never both true (enforced by the parser: a term carries at
// most one leading prefix).
type Term struct {
	Keywords []string
	Field    string
	Required bool
	Excluded bool
	Exact    bool
}

// And is the logical conjunction of two sub-expressions.
type And struct {
	Left, Right Expr
}

// Or is the logical disjunction of two sub-expressions.
type Or struct {
	Left, Right Expr
}

func (*Term) isExpr() {}
func (*And) isExpr()  {}
func (*Or) isExpr()   {}

// walkTerms calls fn for every Term node in the tree, depth-first.
func walkTerms(e Expr, fn func(*Term)) {
	switch n := e.(type) {
	case *Term:
		fn(n)
	case *And:
		walkTerms(n.Left, fn)
		walkTerms(n.Right, fn)
	case *Or:
		walkTerms(n.Left, fn)
		walkTerms(n.Right, fn)
	}
}

// hasRequiredTerm reports whether the AST contains a required, non-excluded
// term anywhere.
func hasRequiredTerm(e Expr) bool {
	found := false
	walkTerms(e, func(t *Term) {
		if t.Required && !t.Excluded {
			found = true
		}
	})
	return found
}

// isOnlyExcludedTerms reports whether every Term in the AST is excluded.
func isOnlyExcludedTerms(e Expr) bool {
	all := true
	any := false
	walkTerms(e, func(t *Term) {
		any = true
		if !t.Excluded {
			all = false
		}
	})
	return any && all
}

// collectRequiredKeywords gathers the keywords of required, non-excluded
// terms. An Or branch can never guarantee a term is required, matching the
// original implementation's conservative collection rule.
func collectRequiredKeywords(e Expr, out map[string]bool) {
	switch n := e.(type) {
	case *Term:
		if n.Required && !n.Excluded {
			for _, kw := range n.Keywords {
				out[kw] = true
			}
		}
	case *And:
		collectRequiredKeywords(n.Left, out)
		collectRequiredKeywords(n.Right, out)
	case *Or:
		// OR cannot guarantee either side is present; collect nothing.
	}
}

// updateExact recursively marks every Term in the tree as exact. The parser
// does not call it: an exact=true query is compiled to a single exact Term.
func updateExact(e Expr) {
	walkTerms(e, func(t *Term) {
		t.Exact = true
	})
}
