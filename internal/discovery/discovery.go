// Package discovery implements the File List Cache of spec.md §4.5: a
// gitignore-aware directory walk, custom ignore patterns, language/extension
// filtering, and a process-lifetime cache keyed by (path, allow_tests,
// hash(custom_ignores)).
package discovery

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/codeprobe/internal/debug"
	"github.com/standardbeagle/codeprobe/internal/langcap"
)

// builtinIgnoreDirs are always skipped regardless of .gitignore content.
var builtinIgnoreDirs = map[string]bool{
	".git": true, "node_modules": true, "target": true, "dist": true,
	"build": true, "vendor": true, ".idea": true, ".vscode": true,
	"__pycache__": true, ".venv": true, "venv": true,
}

var builtinIgnoreExtensions = map[string]bool{
	"exe": true, "dll": true, "so": true, "dylib": true, "bin": true,
	"o": true, "a": true, "class": true, "jar": true, "pyc": true,
	"png": true, "jpg": true, "jpeg": true, "gif": true, "ico": true,
	"woff": true, "woff2": true, "ttf": true, "zip": true, "tar": true,
	"gz": true, "pdf": true,
}

type cacheKeyParts struct {
	path       string
	allowTests bool
	ignoreHash uint64
}

func (k cacheKeyParts) String() string {
	return k.path + "\x00" + boolTag(k.allowTests) + "\x00" + uintTag(k.ignoreHash)
}

func boolTag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func uintTag(u uint64) string {
	buf := make([]byte, 0, 20)
	if u == 0 {
		return "0"
	}
	for u > 0 {
		buf = append([]byte{byte('0' + u%10)}, buf...)
		u /= 10
	}
	return string(buf)
}

// Cache is the process-lifetime File List Cache. One instance should be
// shared across every search() call in a process.
type Cache struct {
	mu      sync.Mutex
	entries map[string][]string
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string][]string)}
}

// Options controls one discovery walk, per spec.md §4.5.
type Options struct {
	AllowTests     bool
	NoGitignore    bool
	CustomIgnores  []string
	Languages      []string // canonical language names; empty means all
	Extensions     []string // bare extensions (no dot); empty means all
}

func hashIgnores(ignores []string) uint64 {
	sorted := append([]string(nil), ignores...)
	sort.Strings(sorted)
	return xxhash.Sum64String(strings.Join(sorted, "\x00"))
}

// List returns every file under root that survives gitignore/custom-ignore
// filtering and the allow-tests/language/extension filters, using the
// cached result when an identical (root, allow_tests, custom ignore set)
// walk has already run in this process.
func (c *Cache) List(root string, opts Options) ([]string, error) {
	key := cacheKeyParts{path: root, allowTests: opts.AllowTests, ignoreHash: hashIgnores(opts.CustomIgnores)}

	c.mu.Lock()
	if cached, ok := c.entries[key.String()]; ok {
		c.mu.Unlock()
		return filterLanguagesAndExtensions(cached, opts), nil
	}
	c.mu.Unlock()

	files, err := walk(root, opts)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key.String()] = files
	c.mu.Unlock()

	debug.Discovery("walked %s: %d files (allow_tests=%v)", root, len(files), opts.AllowTests)
	return filterLanguagesAndExtensions(files, opts), nil
}

func walk(root string, opts Options) ([]string, error) {
	var gp *gitignoreParser
	if !opts.NoGitignore {
		gp = newGitignoreParser()
		_ = gp.loadFile(filepath.Join(root, ".gitignore"))
		_ = gp.loadFile(filepath.Join(root, ".git", "info", "exclude"))
	}

	var out []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		if rel == "." {
			return nil
		}

		if info.IsDir() {
			if builtinIgnoreDirs[info.Name()] {
				return filepath.SkipDir
			}
			if gp != nil && gp.shouldIgnore(rel, true) {
				return filepath.SkipDir
			}
			if matchesAnyGlob(opts.CustomIgnores, rel, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if gp != nil && gp.shouldIgnore(rel, false) {
			return nil
		}
		if matchesAnyGlob(opts.CustomIgnores, rel, false) {
			return nil
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
		if builtinIgnoreExtensions[ext] {
			return nil
		}
		if !opts.AllowTests && looksLikeTestFile(rel) {
			return nil
		}

		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func matchesAnyGlob(patterns []string, relPath string, isDir bool) bool {
	for _, pat := range patterns {
		if ok, _ := doublestar.Match(pat, relPath); ok {
			return true
		}
		if isDir {
			if ok, _ := doublestar.Match(pat, relPath+"/**"); ok {
				return true
			}
		}
	}
	return false
}

func looksLikeTestFile(relPath string) bool {
	ext := strings.TrimPrefix(filepath.Ext(relPath), ".")
	cap := langcap.ForExtension(ext)
	if cap == nil {
		return false
	}
	return cap.IsTestNode("", relPath)
}

func filterLanguagesAndExtensions(files []string, opts Options) []string {
	if len(opts.Languages) == 0 && len(opts.Extensions) == 0 {
		return files
	}
	langSet := make(map[string]bool, len(opts.Languages))
	for _, l := range opts.Languages {
		langSet[strings.ToLower(l)] = true
	}
	extSet := make(map[string]bool, len(opts.Extensions))
	for _, e := range opts.Extensions {
		extSet[strings.ToLower(strings.TrimPrefix(e, "."))] = true
	}

	out := make([]string, 0, len(files))
	for _, f := range files {
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(f), "."))
		if len(extSet) > 0 && !extSet[ext] {
			continue
		}
		if len(langSet) > 0 {
			cap := langcap.ForExtension(ext)
			if cap == nil || !langSet[cap.Name] {
				continue
			}
		}
		out = append(out, f)
	}
	return out
}

// FindMatchingFilenames returns every discovered path that contains query
// as a case-insensitive substring of the whole path, per spec.md's
// find_matching_filenames operation (a filename-only search mode distinct
// from content matching).
func FindMatchingFilenames(files []string, query string) []string {
	q := strings.ToLower(query)
	var out []string
	for _, f := range files {
		if strings.Contains(strings.ToLower(f), q) {
			out = append(out, f)
		}
	}
	return out
}
