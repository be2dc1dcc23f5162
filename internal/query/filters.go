package query

import (
	"path/filepath"
	"strings"
)

// Filters holds the file-selection predicates extracted out of the AST at
// plan time (spec.md §3 SearchFilters / §4.2 filter extraction).
type Filters struct {
	FilePatterns []string
	Extensions   []string
	FileTypes    []string
	DirPatterns  []string
	Languages    []string
}

// IsEmpty reports whether no filter is active; an empty Filters matches
// every path.
func (f *Filters) IsEmpty() bool {
	return len(f.FilePatterns) == 0 && len(f.Extensions) == 0 &&
		len(f.FileTypes) == 0 && len(f.DirPatterns) == 0 && len(f.Languages) == 0
}

var filterFields = map[string]bool{
	"file": true, "path": true,
	"ext": true, "extension": true,
	"type": true,
	"dir":  true, "directory": true,
	"lang": true, "language": true,
}

func isFilterField(field string) bool {
	return filterFields[strings.ToLower(field)]
}

// addFilter folds one field:value Term's keywords into the Filters,
// normalising to lowercase and splitting comma-separated values.
func (f *Filters) addFilter(field string, keywords []string) {
	switch strings.ToLower(field) {
	case "file", "path":
		f.FilePatterns = append(f.FilePatterns, keywords...)
	case "ext", "extension":
		for _, v := range keywords {
			for _, ext := range strings.Split(v, ",") {
				ext = strings.TrimSpace(ext)
				if ext == "" {
					continue
				}
				ext = strings.TrimPrefix(ext, ".")
				f.Extensions = append(f.Extensions, strings.ToLower(ext))
			}
		}
	case "type":
		for _, v := range keywords {
			for _, ft := range strings.Split(v, ",") {
				ft = strings.TrimSpace(ft)
				if ft != "" {
					f.FileTypes = append(f.FileTypes, strings.ToLower(ft))
				}
			}
		}
	case "dir", "directory":
		f.DirPatterns = append(f.DirPatterns, keywords...)
	case "lang", "language":
		for _, v := range keywords {
			for _, lang := range strings.Split(v, ",") {
				lang = strings.TrimSpace(lang)
				if lang != "" {
					f.Languages = append(f.Languages, normalizeLanguageName(lang))
				}
			}
		}
	}
}

// normalizeLanguageName canonicalises common abbreviations ("js" ->
// "javascript"), per spec.md §3.
func normalizeLanguageName(lang string) string {
	switch strings.ToLower(lang) {
	case "rs":
		return "rust"
	case "js", "jsx":
		return "javascript"
	case "ts", "tsx":
		return "typescript"
	case "py":
		return "python"
	case "rb":
		return "ruby"
	case "cs":
		return "csharp"
	case "cpp", "cc", "cxx":
		return "cpp"
	case "h", "hpp", "hxx":
		return "c"
	default:
		return strings.ToLower(lang)
	}
}

var typeExtensions = map[string][]string{
	"rust":       {"rs"},
	"js":         {"js", "jsx", "mjs", "cjs"},
	"javascript": {"js", "jsx", "mjs", "cjs"},
	"ts":         {"ts", "tsx"},
	"typescript": {"ts", "tsx"},
	"python":     {"py", "pyi", "pyw"},
	"py":         {"py", "pyi", "pyw"},
	"java":       {"java"},
	"c":          {"c", "h"},
	"cpp":        {"cpp", "cxx", "cc", "hpp", "hxx"},
	"cxx":        {"cpp", "cxx", "cc", "hpp", "hxx"},
	"go":         {"go"},
	"ruby":       {"rb", "rake"},
	"rb":         {"rb", "rake"},
	"php":        {"php", "phtml"},
	"csharp":     {"cs"},
	"zig":        {"zig"},
}

func extensionsForTypeOrLanguage(name string) []string {
	return typeExtensions[strings.ToLower(name)]
}

// MatchesFile reports whether path satisfies every active filter, per
// spec.md §4.5. An empty Filters always matches.
func (f *Filters) MatchesFile(path string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))

	if len(f.Extensions) > 0 {
		if ext == "" || !contains(f.Extensions, ext) {
			return false
		}
	}

	if len(f.FilePatterns) > 0 {
		if !anyGlobOrSubstringMatch(f.FilePatterns, path) {
			return false
		}
	}

	if len(f.DirPatterns) > 0 {
		dir := filepath.Dir(path)
		if !anyGlobOrSubstringMatch(f.DirPatterns, dir) {
			return false
		}
	}

	if len(f.FileTypes) > 0 {
		if ext == "" || !anyExtensionMatches(f.FileTypes, ext) {
			return false
		}
	}

	if len(f.Languages) > 0 {
		if ext == "" || !anyExtensionMatches(f.Languages, ext) {
			return false
		}
	}

	return true
}

func anyExtensionMatches(names []string, ext string) bool {
	for _, n := range names {
		if contains(extensionsForTypeOrLanguage(n), ext) {
			return true
		}
	}
	return false
}

func anyGlobOrSubstringMatch(patterns []string, path string) bool {
	for _, pat := range patterns {
		if ok, err := filepath.Match(pat, path); err == nil && ok {
			return true
		}
		if strings.Contains(path, pat) {
			return true
		}
	}
	return false
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// extractFilters walks the AST once, removing any Term whose field names a
// filter field and folding it into a Filters. Returns the simplified AST,
// which is nil if every Term was a filter.
func extractFilters(e Expr) (*Filters, Expr) {
	filters := &Filters{}
	simplified := simplify(e, filters)
	return filters, simplified
}

func simplify(e Expr, filters *Filters) Expr {
	switch n := e.(type) {
	case *Term:
		if n.Field != "" && isFilterField(n.Field) {
			filters.addFilter(n.Field, n.Keywords)
			return nil
		}
		return n
	case *And:
		left := simplify(n.Left, filters)
		right := simplify(n.Right, filters)
		switch {
		case left != nil && right != nil:
			return &And{Left: left, Right: right}
		case left != nil:
			return left
		case right != nil:
			return right
		default:
			return nil
		}
	case *Or:
		left := simplify(n.Left, filters)
		right := simplify(n.Right, filters)
		switch {
		case left != nil && right != nil:
			return &Or{Left: left, Right: right}
		case left != nil:
			return left
		case right != nil:
			return right
		default:
			return nil
		}
	}
	return nil
}
