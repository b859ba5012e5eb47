package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func limitedRouter(cfg LimiterConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewClientLimiter(cfg).Middleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestClientLimiterThrottlesBursts(t *testing.T) {
	r := limitedRouter(LimiterConfig{RequestsPerSecond: 1, Burst: 2})

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "203.0.113.7:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Fatalf("burst of 2 should pass, got %v", codes)
	}
	throttled := false
	for _, code := range codes[2:] {
		if code == http.StatusTooManyRequests {
			throttled = true
		}
	}
	if !throttled {
		t.Errorf("expected a 429 after the burst, got %v", codes)
	}
}

func TestClientLimiterIsolatesClients(t *testing.T) {
	r := limitedRouter(LimiterConfig{RequestsPerSecond: 1, Burst: 1})

	first := httptest.NewRequest(http.MethodGet, "/ping", nil)
	first.RemoteAddr = "198.51.100.1:1000"
	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, first)

	second := httptest.NewRequest(http.MethodGet, "/ping", nil)
	second.RemoteAddr = "198.51.100.2:1000"
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, second)

	if w1.Code != http.StatusOK || w2.Code != http.StatusOK {
		t.Errorf("distinct clients must not share a bucket: %d, %d", w1.Code, w2.Code)
	}
}

func TestClientLimiterEvictsStaleBuckets(t *testing.T) {
	cl := NewClientLimiter(LimiterConfig{RequestsPerSecond: 1, Burst: 1, StaleAfter: 20 * time.Millisecond})
	cl.allow("192.0.2.9")

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		cl.mu.Lock()
		n := len(cl.clients)
		cl.mu.Unlock()
		if n == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("stale bucket was not evicted")
}
