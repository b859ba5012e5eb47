package httpx

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// LimiterConfig tunes the per-client request limiter.
type LimiterConfig struct {
	// RequestsPerSecond is the steady-state refill rate of each bucket.
	RequestsPerSecond int
	// Burst is the bucket capacity.
	Burst int
	// StaleAfter evicts buckets idle for at least this long; sweeps run at
	// half this interval.
	StaleAfter time.Duration
}

type clientBucket struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// ClientLimiter enforces a token bucket per client IP.
type ClientLimiter struct {
	cfg LimiterConfig

	mu      sync.Mutex
	clients map[string]*clientBucket
}

// NewClientLimiter creates a ClientLimiter and starts its eviction sweep.
func NewClientLimiter(cfg LimiterConfig) *ClientLimiter {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 10 * time.Minute
	}
	cl := &ClientLimiter{cfg: cfg, clients: make(map[string]*clientBucket)}
	go cl.sweep()
	return cl
}

func (cl *ClientLimiter) sweep() {
	tick := time.NewTicker(cl.cfg.StaleAfter / 2)
	defer tick.Stop()
	for range tick.C {
		cl.mu.Lock()
		for ip, b := range cl.clients {
			if time.Since(b.lastSeen) > cl.cfg.StaleAfter {
				delete(cl.clients, ip)
			}
		}
		cl.mu.Unlock()
	}
}

func (cl *ClientLimiter) allow(ip string) bool {
	cl.mu.Lock()
	b, ok := cl.clients[ip]
	if !ok {
		b = &clientBucket{
			bucket: rate.NewLimiter(rate.Limit(cl.cfg.RequestsPerSecond), cl.cfg.Burst),
		}
		cl.clients[ip] = b
	}
	b.lastSeen = time.Now()
	cl.mu.Unlock()

	return b.bucket.Allow()
}

// Middleware rejects requests over the client's budget with 429 and a
// Retry-After hint.
func (cl *ClientLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cl.allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
