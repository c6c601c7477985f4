package catalogapi

import (
	"os"
	"sync"
	"time"

	"github.com/segmentio/encoding/json"
	"github.com/shishobooks/seiri/pkg/source"
)

// queryCache is an on-disk cache of catalog answers keyed by query string.
// Entries expire after the configured TTL; a best-effort cache, so load and
// save failures just mean re-querying.
type queryCache struct {
	path string
	ttl  time.Duration

	mu      sync.Mutex
	loaded  bool
	entries map[string]cacheEntry
}

type cacheEntry struct {
	Timestamp  int64              `json:"timestamp"`
	Candidates []source.Candidate `json:"candidates"`
}

func newQueryCache(path string, ttl time.Duration) *queryCache {
	return &queryCache{path: path, ttl: ttl}
}

func (c *queryCache) get(key string) ([]source.Candidate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.path == "" || c.ttl <= 0 {
		return nil, false
	}
	c.load()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Since(time.Unix(entry.Timestamp, 0)) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return entry.Candidates, true
}

func (c *queryCache) put(key string, cands []source.Candidate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.path == "" || c.ttl <= 0 {
		return
	}
	c.load()

	c.entries[key] = cacheEntry{Timestamp: time.Now().Unix(), Candidates: cands}

	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(c.path, data, 0o644)
}

// load reads the cache file once, dropping entries that already expired.
func (c *queryCache) load() {
	if c.loaded {
		return
	}
	c.loaded = true
	c.entries = map[string]cacheEntry{}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return
	}
	var stored map[string]cacheEntry
	if err := json.Unmarshal(data, &stored); err != nil {
		return
	}
	for key, entry := range stored {
		if time.Since(time.Unix(entry.Timestamp, 0)) <= c.ttl {
			c.entries[key] = entry
		}
	}
}
