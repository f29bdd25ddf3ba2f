package insights

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/seo-optimizer/siteanalyzer/report"
)

const (
	DefaultCacheTTL     = time.Hour
	DefaultCacheSize    = 1000
	fingerprintTextSize = 200
)

// Cache entry with expiration
type cacheEntry struct {
	suggestions []string
	timestamp   time.Time
}

// CacheStats describes the suggestion cache.
type CacheStats struct {
	Entries int           `json:"entries"`
	Hits    int64         `json:"hits"`
	Misses  int64         `json:"misses"`
	TTL     time.Duration `json:"ttl"`
}

// Cache holds AI suggestions keyed by content fingerprint. It is shared
// across runs and safe for concurrent use.
type Cache struct {
	mu              sync.RWMutex
	entries         map[string]cacheEntry
	ttl             time.Duration
	maxSize         int
	cleanupInterval time.Duration
	hits, misses    int64
	now             func() time.Time
	stop            chan struct{}
	stopOnce        sync.Once
}

// NewCache creates a cache and starts its cleanup goroutine. Call Close to
// stop it.
func NewCache(ttl time.Duration, maxSize int) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	c := &Cache{
		entries:         make(map[string]cacheEntry),
		ttl:             ttl,
		maxSize:         maxSize,
		cleanupInterval: 5 * time.Minute,
		now:             time.Now,
		stop:            make(chan struct{}),
	}
	go c.periodicCleanup()
	return c
}

// Close stops the cleanup goroutine.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache) periodicCleanup() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.Cleanup()
		}
	}
}

// Get returns the cached suggestions for key if they have not expired.
func (c *Cache) Get(key string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, found := c.entries[key]
	if found && c.now().Sub(entry.timestamp) < c.ttl {
		c.hits++
		return append([]string(nil), entry.suggestions...), true
	}
	c.misses++
	return nil, false
}

// Put stores suggestions under key.
func (c *Cache) Put(key string, suggestions []string) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{suggestions: append([]string(nil), suggestions...), timestamp: c.now()}
	over := len(c.entries) > c.maxSize
	c.mu.Unlock()
	if over {
		c.Cleanup()
	}
}

// Delete removes key.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Cleanup removes expired entries and then the oldest ones until the cache
// is within its size limit.
func (c *Cache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, entry := range c.entries {
		if now.Sub(entry.timestamp) >= c.ttl {
			delete(c.entries, key)
		}
	}
	if len(c.entries) <= c.maxSize {
		return
	}

	type keyed struct {
		key       string
		timestamp time.Time
	}
	entries := make([]keyed, 0, len(c.entries))
	for key, entry := range c.entries {
		entries = append(entries, keyed{key, entry.timestamp})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].timestamp.Before(entries[j].timestamp)
	})
	for i := 0; i < len(entries)-c.maxSize; i++ {
		delete(c.entries, entries[i].key)
	}
}

// Stats returns the current cache statistics.
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{Entries: len(c.entries), Hits: c.hits, Misses: c.misses, TTL: c.ttl}
}

// Fingerprint identifies the content a suggestion set was generated for:
// URL, title, meta description, first heading, the start of the first
// paragraph and the issue categories, bucketed by the hour of now.
func Fingerprint(page *report.PageAnalysisResult, now time.Time) string {
	var firstParagraph string
	if len(page.Paragraphs) > 0 {
		firstParagraph = page.Paragraphs[0]
		if r := []rune(firstParagraph); len(r) > fingerprintTextSize {
			firstParagraph = string(r[:fingerprintTextSize])
		}
	}

	categories := make(map[string]bool)
	for _, issue := range page.Issues {
		categories[issue.Category] = true
	}
	sorted := make([]string, 0, len(categories))
	for cat := range categories {
		sorted = append(sorted, cat)
	}
	sort.Strings(sorted)

	h := sha256.New()
	for _, part := range []string{
		page.URL,
		page.Title,
		page.MetaDescription,
		page.FirstHeading(),
		firstParagraph,
		strings.Join(sorted, ","),
		now.UTC().Truncate(time.Hour).Format(time.RFC3339),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
