package decision

import (
	"strings"
	"sync"
	"time"
)

// Cache holds completed decisions for the idempotency retention window.
// Resubmitting a decided identifier returns the cached decision verbatim,
// without re-invoking any adapter.
type Cache struct {
	mu   sync.RWMutex
	data map[string]Decision
	ttl  time.Duration
}

func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{data: make(map[string]Decision), ttl: ttl}
}

func (c *Cache) Set(d Decision) {
	id := strings.TrimSpace(d.SignalID)
	if id == "" {
		return
	}
	c.mu.Lock()
	c.data[id] = d
	c.mu.Unlock()
}

func (c *Cache) Get(signalID string, now time.Time) (Decision, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.data[strings.TrimSpace(signalID)]
	if !ok {
		return Decision{}, false
	}
	if now.Sub(d.DecidedAt) > c.ttl {
		return Decision{}, false
	}
	return d, true
}

// Prune drops decisions past the retention window and returns how many went.
func (c *Cache) Prune(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for id, d := range c.data {
		if now.Sub(d.DecidedAt) > c.ttl {
			delete(c.data, id)
			removed++
		}
	}
	return removed
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// TTL exposes the retention window so the store prune can stay in step.
func (c *Cache) TTL() time.Duration { return c.ttl }
