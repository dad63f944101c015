// README: Process-local quote cache with TTL and opportunistic eviction.
package pricing

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
)

type cacheEntry struct {
	quote     Quote
	expiresAt time.Time
}

// Cache holds recent quotes keyed by route+cargo signature. It is purely a
// performance optimization: cleared on restart, safe to lose. Injected into
// the Service rather than accessed as a global.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

func (c *Cache) Get(key string) (Quote, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || c.now().After(e.expiresAt) {
		return Quote{}, false
	}
	return e.quote, true
}

func (c *Cache) Put(key string, q Quote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	// Opportunistic eviction keeps the map bounded without a sweeper goroutine.
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = cacheEntry{quote: q, expiresAt: now.Add(c.ttl)}
}

// CacheKey derives a stable signature from the quote-relevant fields. Distance
// is rounded to the kilometer and text is normalized so trivial re-entry
// differences still hit.
func CacheKey(in QuoteInput) string {
	sig := strings.Join([]string{
		normalize(in.OriginCity),
		normalize(in.DestinationCity),
		fmt.Sprintf("%d", int64(math.Round(in.DistanceKm))),
		normalize(in.CargoCategory),
		normalize(in.Description),
	}, "|")
	sum := sha1.Sum([]byte(sig))
	return hex.EncodeToString(sum[:])
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
