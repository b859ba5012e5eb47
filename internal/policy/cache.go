package policy

import (
	"sync"
	"time"
)

// cache is a thread-safe single-value TTL cache for the resolved policy.
// There is no push invalidation: updates invalidate explicitly, and stale
// reads are bounded by the TTL.
type cache struct {
	mu        sync.RWMutex
	value     *Policy
	expiresAt time.Time
	ttl       time.Duration
}

func newCache(ttl time.Duration) *cache {
	return &cache{ttl: ttl}
}

// get returns the cached policy, or nil when empty or expired.
func (c *cache) get() *Policy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.value == nil || time.Now().After(c.expiresAt) {
		return nil
	}
	return c.value
}

// set stores a policy with a fresh TTL.
func (c *cache) set(p *Policy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = p
	c.expiresAt = time.Now().Add(c.ttl)
}

// invalidate drops the cached value.
func (c *cache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = nil
}
