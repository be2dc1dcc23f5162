package query

import (
	"encoding/binary"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Evaluate reports whether a file whose matched keyword indices are given by
// matched (see Plan.TermIndex) and whose excluded keywords found in content
// are given by excludedPresent satisfies the compiled query.
//
// Whenever the AST has a required term, every required keyword must be
// matched, however the query combines it with optional terms.
//
// When ignoreNegatives is true, excluded terms are skipped entirely and, if
// the AST has at least one required term anywhere, only required terms are
// consulted: a fast path for a caller that only needs to know a file is
// plausible, not which of its optional terms matched.
func (p *Plan) Evaluate(matched map[int]bool, excludedPresent map[string]bool, ignoreNegatives bool) bool {
	if p.hasRequiredAnywhere {
		for idx := range p.RequiredIndices {
			if !matched[idx] {
				return false
			}
		}
	}
	if ignoreNegatives && p.hasRequiredAnywhere {
		required := make(map[string]bool)
		collectRequiredKeywords(p.AST, required)
		for kw := range required {
			idx, ok := p.TermIndex[kw]
			if !ok || !matched[idx] {
				return false
			}
		}
		return true
	}

	key := p.cacheKey(matched, excludedPresent, ignoreNegatives)
	p.cacheMu.Lock()
	if v, ok := p.cache.Get(key); ok {
		p.cacheMu.Unlock()
		return v
	}
	p.cacheMu.Unlock()

	result := evaluate(p.AST, p.TermIndex, matched, excludedPresent, ignoreNegatives, p.hasRequiredAnywhere)

	p.cacheMu.Lock()
	p.cache.Add(key, result)
	p.cacheMu.Unlock()

	return result
}

func evaluate(e Expr, termIndex map[string]int, matched map[int]bool, excludedPresent map[string]bool, ignoreNegatives bool, hasRequiredAnywhere bool) bool {
	switch n := e.(type) {
	case *Term:
		if len(n.Keywords) == 0 {
			return n.Excluded
		}

		allPresent := func() bool {
			for _, kw := range n.Keywords {
				idx, ok := termIndex[kw]
				if !ok || !matched[idx] {
					return false
				}
			}
			return true
		}

		if n.Excluded {
			if ignoreNegatives {
				return true
			}
			for _, kw := range n.Keywords {
				if excludedPresent[kw] {
					return false
				}
			}
			return true
		}

		if n.Required {
			if ignoreNegatives {
				return true
			}
			return allPresent()
		}

		// Optional: if a required term exists anywhere in the query, an
		// absent optional term doesn't fail the match. Otherwise enforce
		// AND-within-term (every keyword of this term must be present).
		if hasRequiredAnywhere {
			return true
		}
		anyPresent := false
		for _, kw := range n.Keywords {
			if idx, ok := termIndex[kw]; ok && matched[idx] {
				anyPresent = true
				break
			}
		}
		if !anyPresent {
			return false
		}
		return allPresent()
	case *And:
		return evaluate(n.Left, termIndex, matched, excludedPresent, ignoreNegatives, hasRequiredAnywhere) &&
			evaluate(n.Right, termIndex, matched, excludedPresent, ignoreNegatives, hasRequiredAnywhere)
	case *Or:
		return evaluate(n.Left, termIndex, matched, excludedPresent, ignoreNegatives, hasRequiredAnywhere) ||
			evaluate(n.Right, termIndex, matched, excludedPresent, ignoreNegatives, hasRequiredAnywhere)
	}
	return false
}

// cacheKey hashes the matched index set, together with which of the query's
// own excluded keywords are present, into a stable 64-bit key for
// memoization. Both sets are small (bounded by distinct query keywords), so
// sorting before hashing is cheap and keeps the key order-independent.
func (p *Plan) cacheKey(matched map[int]bool, excludedPresent map[string]bool, ignoreNegatives bool) uint64 {
	indices := make([]int, 0, len(matched))
	for idx := range matched {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	buf := make([]byte, 0, 4*len(indices)+len(p.ExcludedKeywords)+1)
	for _, idx := range indices {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(idx))
		buf = append(buf, b[:]...)
	}

	var excluded []string
	for kw := range p.ExcludedKeywords {
		if excludedPresent[kw] {
			excluded = append(excluded, kw)
		}
	}
	sort.Strings(excluded)
	buf = append(buf, []byte(strings.Join(excluded, "\x00"))...)

	if ignoreNegatives {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return xxhash.Sum64(buf)
}
