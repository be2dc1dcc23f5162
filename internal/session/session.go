// Package session defines the Session Cache collaborator interface of
// spec.md §6: the core only calls load/is_cached/add/save/filter_matched_lines
// and never interprets the cache's storage format. The default
// implementation is an in-memory, lock-free cache grounded on the teacher's
// internal/cache.MetricsCache sync.Map design, scoped down to block-key
// membership instead of TTL'd metric values.
package session

import (
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Cache is the collaborator interface the core depends on. Implementations
// may back this with a file, a database, or (the default) nothing at all.
type Cache interface {
	IsCached(blockKey string) bool
	Add(blockKey string)
	Save() error
}

// NormalizePath strips a leading "./" so block keys are stable regardless of
// how a caller's path walk produced its paths.
func NormalizePath(path string) string {
	return strings.TrimPrefix(path, "./")
}

// BlockKey builds the "<normalised-path>:<start>-<end>" key the core and
// cache implementations share, with start/end as 1-based inclusive lines.
func BlockKey(path string, startLine, endLine int) string {
	var b strings.Builder
	p := NormalizePath(path)
	b.Grow(len(p) + 16)
	b.WriteString(p)
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(startLine))
	b.WriteByte('-')
	b.WriteString(strconv.Itoa(endLine))
	return b.String()
}

// QueryHash hashes a query string into the same namespace used to key
// per-session caches, keeping the core's (session_id, query_hash) lookup
// deterministic without giving the core any insight into cache storage.
func QueryHash(query string) uint64 {
	return xxhash.Sum64String(query)
}

// memCache is the default in-memory Cache: membership only, no TTL, no
// persistence. A new memCache behaves exactly like an absent cache (every
// IsCached call misses) until blocks are added.
type memCache struct {
	keys sync.Map // map[string]struct{}
}

func newMemCache() *memCache {
	return &memCache{}
}

func (c *memCache) IsCached(blockKey string) bool {
	_, ok := c.keys.Load(blockKey)
	return ok
}

func (c *memCache) Add(blockKey string) {
	c.keys.Store(blockKey, struct{}{})
}

func (c *memCache) Save() error {
	return nil // in-memory cache has nothing to flush
}

// store holds one Cache per (session_id, query_hash) pair for the process
// lifetime, since the core never persists the cache itself.
var (
	storeMu sync.Mutex
	store   = map[string]Cache{}
)

func storeKey(sessionID string, queryHash uint64) string {
	return sessionID + "\x00" + strconv.FormatUint(queryHash, 10)
}

// Load returns the Cache for (sessionID, queryHash), creating an empty one
// on first access — an absent cache behaves as empty, per spec.md §6.
func Load(sessionID string, queryHash uint64) Cache {
	if sessionID == "" {
		return newMemCache()
	}
	key := storeKey(sessionID, queryHash)

	storeMu.Lock()
	defer storeMu.Unlock()
	c, ok := store[key]
	if !ok {
		c = newMemCache()
		store[key] = c
	}
	return c
}

// FilterMatchedLines mutates matches in place (term-index → set of 1-based
// lines), removing any line that falls inside a block already recorded by
// the cache for this (sessionID, query). blockLines supplies the full
// [start,end] line range for every block the caller knows about in this
// file, so a matched line can be tested for membership within a cached
// span even though the cache itself only stores block keys, not ranges.
// Returns the number of lines removed across all term indices.
func FilterMatchedLines(matches map[int]map[int]bool, path, sessionID, query string, blockLines []BlockRange) int {
	cache := Load(sessionID, QueryHash(query))
	skipped := 0

	for _, br := range blockLines {
		key := BlockKey(path, br.Start, br.End)
		if !cache.IsCached(key) {
			continue
		}
		for _, lines := range matches {
			for line := range lines {
				if line >= br.Start && line <= br.End {
					delete(lines, line)
					skipped++
				}
			}
		}
	}
	return skipped
}

// BlockRange is a 1-based inclusive line span a caller wants tested against
// the cache.
type BlockRange struct {
	Start, End int
}
