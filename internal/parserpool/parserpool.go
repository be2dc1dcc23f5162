// Package parserpool owns the per-language tree-sitter Parser Pool and the
// content-hash-keyed Tree Cache described in spec.md §4.7. Each language
// gets its own sync.Pool so that parallel file-level workers parsing
// different languages never contend on the same parser, mirroring the
// teacher's per-language parserPoolData design.
package parserpool

import (
	"os"
	"runtime"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/codeprobe/internal/debug"
	"github.com/standardbeagle/codeprobe/internal/errors"
	"github.com/standardbeagle/codeprobe/internal/langcap"
)

type langPool struct {
	pool sync.Pool
	once sync.Once
}

var (
	poolsMu sync.Mutex
	pools   = map[string]*langPool{}
)

// poolSize returns the target concurrent-parser count per language:
// NumCPU, overridable via PROBE_PARSER_POOL_SIZE, floored at 4.
func poolSize() int {
	if v := os.Getenv("PROBE_PARSER_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	n := runtime.NumCPU()
	if n < 4 {
		return 4
	}
	return n
}

func poolFor(language string) *langPool {
	poolsMu.Lock()
	defer poolsMu.Unlock()
	p, ok := pools[language]
	if !ok {
		p = &langPool{}
		pools[language] = p
	}
	return p
}

func newParser(grammar *tree_sitter.Language) *tree_sitter.Parser {
	p := tree_sitter.NewParser()
	_ = p.SetLanguage(grammar)
	return p
}

// Acquire returns a ready-to-use *tree_sitter.Parser for the given language
// name, creating the language's pool on first use. Call Release when done.
func Acquire(language string) (*tree_sitter.Parser, error) {
	lc := langcap.ForLanguage(language)
	if lc == nil || lc.GetGrammar() == nil {
		return nil, errors.Unsupported(language, "")
	}

	lp := poolFor(language)
	lp.once.Do(func() {
		lp.pool.New = func() any {
			debug.Log("PARSERPOOL", "creating parser for %s", language)
			return newParser(lc.GetGrammar())
		}
	})

	p, ok := lp.pool.Get().(*tree_sitter.Parser)
	if !ok || p == nil {
		p = newParser(lc.GetGrammar())
	}
	return p, nil
}

// Release returns a parser to its language pool. A parser that panicked
// mid-parse is simply not returned by the caller (see Parse), which leaves
// the pool to create a fresh replacement on next Acquire — the
// same non-poisoning semantics as the teacher's sync.Pool usage.
func Release(language string, p *tree_sitter.Parser) {
	if p == nil {
		return
	}
	poolFor(language).pool.Put(p)
}

// WarmUp pre-creates poolSize() parsers per capability tier at or above
// minTier and returns them to their pools, amortising first-use latency
// across the first wave of parallel file workers; disabled by setting
// PROBE_NO_PARSER_WARMUP=1.
func WarmUp(minTier langcap.Tier) {
	if os.Getenv("PROBE_NO_PARSER_WARMUP") != "" {
		return
	}
	n := poolSize()
	for _, lc := range langcap.All() {
		if lc.Tier > minTier || lc.GetGrammar() == nil {
			continue
		}
		warmed := make([]*tree_sitter.Parser, 0, n)
		for i := 0; i < n; i++ {
			p, err := Acquire(lc.Name)
			if err != nil {
				break
			}
			warmed = append(warmed, p)
		}
		for _, p := range warmed {
			Release(lc.Name, p)
		}
	}
}

// treeCacheEntry pairs a parsed tree with the content hash it was built
// from, so a later request with identical content skips reparsing.
type treeCacheEntry struct {
	hash uint64
	tree *tree_sitter.Tree
}

// TreeCache memoizes parsed trees for as long as its owner keeps it
// (searchcore.Core keeps one for its own lifetime). It holds one slot per
// path and stores the content hash beside the tree, so a changed file is a
// miss; two files with identical content keep independent cache slots
// because ranking and block output reference the file they came from.
type TreeCache struct {
	mu      sync.Mutex
	entries map[string]treeCacheEntry
}

func NewTreeCache() *TreeCache {
	return &TreeCache{entries: make(map[string]treeCacheEntry)}
}

// Get returns the cached tree for path if its content hash still matches,
// and false otherwise (cache miss or stale content).
func (c *TreeCache) Get(path string, content []byte) (*tree_sitter.Tree, bool) {
	h := xxhash.Sum64(content)
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[path]
	if !ok || e.hash != h {
		return nil, false
	}
	return e.tree, true
}

// Put stores tree as the cached parse of path's content.
func (c *TreeCache) Put(path string, content []byte, tree *tree_sitter.Tree) {
	h := xxhash.Sum64(content)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = treeCacheEntry{hash: h, tree: tree}
}

// Parse returns a tree for path/content, reusing a cached tree when content
// is unchanged and otherwise parsing fresh via a pooled parser for
// language.
func Parse(cache *TreeCache, path, language string, content []byte) (*tree_sitter.Tree, error) {
	if cache != nil {
		if tree, ok := cache.Get(path, content); ok {
			return tree, nil
		}
	}

	p, err := Acquire(language)
	if err != nil {
		return nil, err
	}

	tree := p.Parse(content, nil)
	Release(language, p)
	if tree == nil {
		return nil, errors.TreeSitterParse(path, nil)
	}

	if cache != nil {
		cache.Put(path, content, tree)
	}
	return tree, nil
}
