// Package tokenizer implements the Tokeniser of spec.md §4.1: splitting
// identifiers on case/separator boundaries, Porter2 stemming, stop-word
// dropping, and a process-wide "preserve as special" override.
package tokenizer

import (
	"strings"
	"sync"
	"unicode"

	"github.com/surgebase/porter2"
)

// stopWords is the compile-time stop-word list dropped by Tokenize but kept
// by TokenizeAndStem.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "has": true,
	"have": true, "in": true, "is": true, "it": true, "of": true, "on": true,
	"or": true, "that": true, "the": true, "this": true, "to": true,
	"was": true, "will": true, "with": true,
}

// specialCase is the process-wide bag of identifiers that must bypass
// tokenisation and stemming entirely. It is seeded with a handful of
// well-known offenders and may be extended at runtime by the Query Compiler
// when it sees a quoted or excluded term (§9).
var (
	specialCaseMu sync.RWMutex
	specialCase   = map[string]bool{
		"jwtmiddleware": true,
		"grpc":          true,
		"oauth2":        true,
		"graphql":       true,
		"ipv4":          true,
		"ipv6":          true,
		"md5":           true,
		"sha256":        true,
		"utf8":          true,
		"base64":        true,
	}
)

// AddSpecialCase registers s (case-insensitively) as a special-case term
// that must never be tokenised or stemmed. Safe for concurrent use.
func AddSpecialCase(s string) {
	specialCaseMu.Lock()
	defer specialCaseMu.Unlock()
	specialCase[strings.ToLower(s)] = true
}

// IsSpecialCase reports whether s is a member of the process-wide
// special-case bag.
func IsSpecialCase(s string) bool {
	specialCaseMu.RLock()
	defer specialCaseMu.RUnlock()
	return specialCase[strings.ToLower(s)]
}

// SplitCamelCase splits s into its camelCase / ALLCAPS->Word / separator
// parts without stemming. It is also the first step of Tokenize and
// TokenizeAndStem.
func SplitCamelCase(s string) []string {
	var parts []string
	var cur []rune

	flush := func() {
		if len(cur) > 0 {
			parts = append(parts, string(cur))
			cur = cur[:0]
		}
	}

	runes := []rune(s)
	for i, r := range runes {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case i > 0 && unicode.IsUpper(r) && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])):
			// lower->Upper (or digit->Upper) transition: camelCase boundary
			flush()
			cur = append(cur, r)
		case i > 0 && unicode.IsUpper(r) && i+1 < len(runes) && unicode.IsLower(runes[i+1]) &&
			unicode.IsUpper(runes[i-1]):
			// ALLCAPS->Word transition: the last upper letter starts the new word
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}

// stem returns the Porter2 stem of a lowercase word.
func stem(word string) string {
	if len(word) < 3 {
		return word
	}
	return porter2.Stem(word)
}

// TokenizeAndStem returns the lowercase, stemmed tokens of s without
// dropping stop-words. Special-case input is returned verbatim as a single
// token.
func TokenizeAndStem(s string) []string {
	if IsSpecialCase(s) {
		return []string{strings.ToLower(s)}
	}

	parts := SplitCamelCase(s)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, stem(p))
	}
	return out
}

// Tokenize returns the lowercase, stemmed tokens of s after dropping
// stop-words. Special-case input bypasses both stemming and stop-word
// dropping, matching §4.1.
func Tokenize(s string) []string {
	if IsSpecialCase(s) {
		return []string{strings.ToLower(s)}
	}

	parts := SplitCamelCase(s)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if stopWords[p] {
			continue
		}
		out = append(out, stem(p))
	}
	return out
}

// commonSubwords seeds SplitCompoundWordForFiltering's dictionary-free
// splitter: frequent English sub-words that show up inside compound
// identifiers (whitelist -> white, list). This is not a dictionary of all
// English words — it exists only to seed extra regex patterns (§4.4 rule 3),
// so false negatives just mean fewer candidate patterns, not incorrect
// results.
var commonSubwords = []string{
	"white", "black", "list", "space", "time", "stamp", "name", "key",
	"value", "data", "base", "line", "file", "path", "read", "write",
	"check", "point", "back", "end", "front", "node", "root", "type",
	"build", "run", "test", "case", "work", "flow", "store", "cache",
	"pool", "lock", "free", "safe", "sync", "async", "auth", "user",
	"role", "group", "admin", "host", "port", "addr", "proto", "text",
	"byte", "bit", "map", "set", "list", "queue", "stack", "tree",
	"graph", "index", "table", "row", "column", "field", "record",
}

// SplitCompoundWordForFiltering attempts to split a long identifier into
// dictionary sub-tokens (e.g. whitelist -> white, list), used only to seed
// additional regex patterns (§4.4). Returns nil if no split is found.
func SplitCompoundWordForFiltering(s string) []string {
	lower := strings.ToLower(s)
	if len(lower) < 6 {
		return nil
	}

	for _, first := range commonSubwords {
		if !strings.HasPrefix(lower, first) {
			continue
		}
		rest := lower[len(first):]
		if len(rest) < 3 {
			continue
		}
		for _, second := range commonSubwords {
			if rest == second {
				return []string{first, second}
			}
		}
	}
	return nil
}
