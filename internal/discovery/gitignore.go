package discovery

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// gitignoreParser parses .gitignore-style pattern files, adapted from the
// teacher's config.GitignoreParser: patterns are classified into fast paths
// (exact/prefix/suffix) so most lines never touch a regex.
type gitignoreParser struct {
	patterns   []gitignorePattern
	regexCache sync.Map
}

type patternType int

const (
	patternExact patternType = iota
	patternPrefix
	patternSuffix
	patternWildcard
)

type gitignorePattern struct {
	negate      bool
	directory   bool
	absolute    bool
	patternType patternType
	prefix      string
	suffix      string
	compiled    *regexp.Regexp
}

func newGitignoreParser() *gitignoreParser {
	return &gitignoreParser{}
}

func (gp *gitignoreParser) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return nil // absence is not an error
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		gp.addPattern(line)
	}
	return scanner.Err()
}

func (gp *gitignoreParser) addPattern(line string) {
	var p gitignorePattern
	if strings.HasPrefix(line, "!") {
		p.negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.directory = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		p.absolute = true
		line = line[1:]
	}

	switch {
	case !strings.ContainsAny(line, "*?["):
		p.patternType = patternExact
		p.prefix, p.suffix = line, line
	case strings.Contains(line, "*") && !strings.ContainsAny(line, "?[") &&
		strings.HasPrefix(line, "*") && !strings.Contains(line[1:], "*"):
		p.patternType = patternSuffix
		p.suffix = line[1:]
	case strings.Contains(line, "*") && !strings.ContainsAny(line, "?[") &&
		strings.HasSuffix(line, "*") && !strings.Contains(line[:len(line)-1], "*"):
		p.patternType = patternPrefix
		p.prefix = line[:len(line)-1]
	default:
		p.patternType = patternWildcard
		regexStr := globToRegex(line)
		if cached, ok := gp.regexCache.Load(regexStr); ok {
			p.compiled = cached.(*regexp.Regexp)
		} else if compiled, err := regexp.Compile(regexStr); err == nil {
			gp.regexCache.Store(regexStr, compiled)
			p.compiled = compiled
		}
	}

	gp.patterns = append(gp.patterns, p)
}

func globToRegex(pattern string) string {
	regex := regexp.QuoteMeta(pattern)
	regex = strings.ReplaceAll(regex, `\*`, `.*`)
	regex = strings.ReplaceAll(regex, `\?`, `.`)
	regex = strings.ReplaceAll(regex, `\[`, `[`)
	regex = strings.ReplaceAll(regex, `\]`, `]`)
	return "^" + regex + "$"
}

// shouldIgnore reports whether relPath (forward-slash, relative to the walk
// root) is ignored, applying patterns in file order so later negations undo
// earlier matches — matching git's own semantics.
func (gp *gitignoreParser) shouldIgnore(relPath string, isDir bool) bool {
	relPath = filepath.ToSlash(relPath)
	ignored := false
	base := filepath.Base(relPath)

	for _, p := range gp.patterns {
		if matchesPattern(p, relPath, base, isDir) {
			ignored = !p.negate
		}
	}
	return ignored
}

func matchesPattern(p gitignorePattern, relPath, base string, isDir bool) bool {
	if p.directory && !isDir {
		// A directory-only pattern still matches files inside it.
		return pathHasIgnoredAncestor(p, relPath)
	}

	candidate := base
	if p.absolute || strings.Contains(relPath, "/") && (p.patternType == patternWildcard) {
		candidate = relPath
	}

	switch p.patternType {
	case patternExact:
		return candidate == p.prefix || relPath == p.prefix
	case patternPrefix:
		return strings.HasPrefix(candidate, p.prefix)
	case patternSuffix:
		return strings.HasSuffix(candidate, p.suffix)
	case patternWildcard:
		if p.compiled == nil {
			return false
		}
		return p.compiled.MatchString(candidate) || p.compiled.MatchString(relPath)
	}
	return false
}

func pathHasIgnoredAncestor(p gitignorePattern, relPath string) bool {
	parts := strings.Split(relPath, "/")
	for i := range parts {
		segment := parts[i]
		switch p.patternType {
		case patternExact:
			if segment == p.prefix {
				return true
			}
		case patternPrefix:
			if strings.HasPrefix(segment, p.prefix) {
				return true
			}
		case patternSuffix:
			if strings.HasSuffix(segment, p.suffix) {
				return true
			}
		case patternWildcard:
			if p.compiled != nil && p.compiled.MatchString(segment) {
				return true
			}
		}
	}
	return false
}
