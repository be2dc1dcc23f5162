package query

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/standardbeagle/codeprobe/internal/tokenizer"
)

// MaxPatterns caps the number of per-term/per-token regexes generated for a
// single plan, per spec.md §4.4.
const MaxPatterns = 5000

// maxCombinedTerms caps how many keywords feed the single combined regex
// used for the fast reject-a-file pass.
const maxCombinedTerms = 1000

// Pattern pairs a compiled regex with the set of term indices it can satisfy,
// so the discovery/match layer can update Plan.Evaluate's matched set
// directly from a regex match without re-tokenizing.
type Pattern struct {
	Regexp      *regexp.Regexp
	TermIndices map[int]bool
	Specificity int
}

// Patterns returns the combined reject-fast regex and the ordered, deduped
// per-term patterns for p, per spec.md §4.4: one core pattern per keyword,
// plus a pattern per compound sub-token (>=3 chars) so that
// "whitelist" also matches files containing only "white" or "list".
func (p *Plan) Patterns() (combined *regexp.Regexp, perTerm []Pattern) {
	keywords := make([]string, 0, len(p.TermIndex))
	for kw := range p.TermIndex {
		keywords = append(keywords, kw)
	}
	sort.Strings(keywords)

	combined = buildCombinedPattern(keywords)

	type candidate struct {
		text    string
		indices map[int]bool
	}
	byText := make(map[string]*candidate)
	var order []string

	addCandidate := func(text string, idx int) {
		if text == "" {
			return
		}
		c, ok := byText[text]
		if !ok {
			c = &candidate{text: text, indices: make(map[int]bool)}
			byText[text] = c
			order = append(order, text)
		}
		c.indices[idx] = true
	}

	for _, kw := range keywords {
		idx := p.TermIndex[kw]
		addCandidate(kw, idx)
		for _, sub := range tokenizer.SplitCompoundWordForFiltering(kw) {
			if len(sub) >= 3 {
				addCandidate(sub, idx)
			}
		}
	}

	// Dedup by term-index set: keep at most the 2 most specific (longest
	// text) patterns per non-singleton index set, since sub-tokens of the
	// same compound word collapse to the same set.
	bySet := make(map[string][]candidate)
	keyOf := func(indices map[int]bool) string {
		var idxs []int
		for i := range indices {
			idxs = append(idxs, i)
		}
		sort.Ints(idxs)
		var sb strings.Builder
		for _, i := range idxs {
			sb.WriteString(strconv.Itoa(i))
			sb.WriteByte(',')
		}
		return sb.String()
	}

	for _, text := range order {
		c := byText[text]
		k := keyOf(c.indices)
		bySet[k] = append(bySet[k], *c)
	}

	var final []candidate
	for _, group := range bySet {
		sort.Slice(group, func(i, j int) bool { return len(group[i].text) > len(group[j].text) })
		if len(group) > 2 {
			group = group[:2]
		}
		final = append(final, group...)
	}

	sort.Slice(final, func(i, j int) bool {
		minA, minB := minIndex(final[i].indices), minIndex(final[j].indices)
		if minA != minB {
			return minA < minB
		}
		if len(final[i].text) != len(final[j].text) {
			return len(final[i].text) > len(final[j].text)
		}
		return final[i].text < final[j].text
	})

	if len(final) > MaxPatterns {
		final = final[:MaxPatterns]
	}

	for _, c := range final {
		re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(c.text))
		if err != nil {
			continue
		}
		perTerm = append(perTerm, Pattern{
			Regexp:      re,
			TermIndices: c.indices,
			Specificity: len(c.text),
		})
	}

	return combined, perTerm
}

func buildCombinedPattern(keywords []string) *regexp.Regexp {
	if len(keywords) == 0 {
		return regexp.MustCompile(`(?i).`)
	}
	capped := keywords
	if len(capped) > maxCombinedTerms {
		capped = capped[:maxCombinedTerms]
	}
	parts := make([]string, 0, len(capped))
	for _, kw := range capped {
		parts = append(parts, regexp.QuoteMeta(kw))
	}
	return regexp.MustCompile(`(?i)(` + strings.Join(parts, "|") + `)`)
}

func minIndex(indices map[int]bool) int {
	min := -1
	for i := range indices {
		if min == -1 || i < min {
			min = i
		}
	}
	return min
}

