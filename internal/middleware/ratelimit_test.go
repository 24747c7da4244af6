package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sharedlists/sharedlists/internal/config"
)

// ---------------------------------------------------------------------------
// Config constructors
// ---------------------------------------------------------------------------

func TestRateLimitConfigFrom(t *testing.T) {
	cfg := RateLimitConfigFrom(config.RateLimitingConfig{RequestsPerMinute: 120, Burst: 20})
	if cfg.RequestsPerMinute != 120 {
		t.Errorf("RequestsPerMinute = %d, want 120", cfg.RequestsPerMinute)
	}
	if cfg.BurstSize != 20 {
		t.Errorf("BurstSize = %d, want 20", cfg.BurstSize)
	}
	if cfg.CleanupInterval != 5*time.Minute {
		t.Errorf("CleanupInterval = %v, want 5m", cfg.CleanupInterval)
	}
}

func TestLoginRateLimitConfig(t *testing.T) {
	cfg := LoginRateLimitConfig()
	if cfg.RequestsPerMinute != 10 || cfg.BurstSize != 5 {
		t.Errorf("LoginRateLimitConfig = %+v, want 10 rpm / burst 5", cfg)
	}
}

// ---------------------------------------------------------------------------
// RateLimiter.Allow
// ---------------------------------------------------------------------------

func newTestLimiter(rpm, burst int) *RateLimiter {
	return NewRateLimiter(RateLimitConfig{
		RequestsPerMinute: rpm,
		BurstSize:         burst,
		CleanupInterval:   time.Hour, // Don't clean up during tests
	})
}

func TestRateLimiter_AllowsUpToBurstSize(t *testing.T) {
	rl := newTestLimiter(1, 3)
	defer rl.Stop()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := rl.Allow(ctx, "client")
		if err != nil || !res.Allowed {
			t.Fatalf("request %d: allowed=%v err=%v, want allowed", i+1, res.Allowed, err)
		}
		if res.Remaining != 2-i {
			t.Errorf("request %d: remaining = %d, want %d", i+1, res.Remaining, 2-i)
		}
	}
	res, _ := rl.Allow(ctx, "client")
	if res.Allowed {
		t.Error("request beyond burst was allowed")
	}
	if res.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want positive", res.RetryAfter)
	}
}

func TestRateLimiter_TokensRefillOverTime(t *testing.T) {
	rl := newTestLimiter(6000, 1) // 100 tokens per second
	defer rl.Stop()
	ctx := context.Background()

	rl.Allow(ctx, "client")
	if res, _ := rl.Allow(ctx, "client"); res.Allowed {
		t.Fatal("second immediate request should be blocked")
	}
	time.Sleep(30 * time.Millisecond)
	if res, _ := rl.Allow(ctx, "client"); !res.Allowed {
		t.Error("request after refill should be allowed")
	}
}

func TestRateLimiter_DifferentKeysAreIndependent(t *testing.T) {
	rl := newTestLimiter(1, 1)
	defer rl.Stop()
	ctx := context.Background()

	rl.Allow(ctx, "a")
	if res, _ := rl.Allow(ctx, "b"); !res.Allowed {
		t.Error("key b should not be affected by key a")
	}
}

func TestRateLimiter_CleanupRemovesStaleEntries(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{
		RequestsPerMinute: 600,
		BurstSize:         10,
		CleanupInterval:   10 * time.Millisecond,
	})
	defer rl.Stop()

	rl.Allow(context.Background(), "stale-client")

	rl.mu.Lock()
	if entry, ok := rl.entries["stale-client"]; ok {
		entry.lastUpdate = time.Now().Add(-11 * time.Minute)
	}
	rl.mu.Unlock()

	time.Sleep(60 * time.Millisecond)

	rl.mu.Lock()
	_, stillPresent := rl.entries["stale-client"]
	rl.mu.Unlock()
	if stillPresent {
		t.Error("expected stale-client entry to be evicted by cleanup goroutine")
	}
}

// ---------------------------------------------------------------------------
// getRateLimitKey
// ---------------------------------------------------------------------------

func TestGetRateLimitKey(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:9999"
	c.Request = req

	if key := getRateLimitKey(c); key != "ip:10.0.0.1" {
		t.Errorf("key = %q, want ip:10.0.0.1", key)
	}

	c.Set(AccountIDKey, "acct-1")
	if key := getRateLimitKey(c); key != "account:acct-1" {
		t.Errorf("key = %q, want account:acct-1", key)
	}
}

// ---------------------------------------------------------------------------
// RateLimitMiddleware
// ---------------------------------------------------------------------------

func newRateLimitRouter(limiter Limiter) *gin.Engine {
	r := gin.New()
	r.Use(RateLimitMiddleware(limiter))
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func sendFrom(r *gin.Engine, addr string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = addr
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitMiddleware_Allowed(t *testing.T) {
	rl := newTestLimiter(120, 10)
	defer rl.Stop()

	w := sendFrom(newRateLimitRouter(rl), "10.0.0.1:1234")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("X-RateLimit-Limit"); got != "120" {
		t.Errorf("X-RateLimit-Limit = %q, want 120", got)
	}
	if got := w.Header().Get("X-RateLimit-Remaining"); got != "9" {
		t.Errorf("X-RateLimit-Remaining = %q, want 9", got)
	}
}

func TestRateLimitMiddleware_Blocked(t *testing.T) {
	rl := newTestLimiter(1, 1)
	defer rl.Stop()
	r := newRateLimitRouter(rl)

	if w := sendFrom(r, "10.0.0.2:1234"); w.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", w.Code)
	}
	w := sendFrom(r, "10.0.0.2:1234")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", w.Code)
	}
	retry, err := strconv.Atoi(w.Header().Get("Retry-After"))
	if err != nil || retry < 1 || retry > 60 {
		t.Errorf("Retry-After = %q, want 1..60", w.Header().Get("Retry-After"))
	}
}

func TestRateLimitMiddleware_RedisUnavailableFailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	limiter := NewRedisLimiter(client, RateLimitConfig{RequestsPerMinute: 1, BurstSize: 1}, "test")
	if limiter.Limit() != 1 {
		t.Errorf("Limit() = %d, want 1", limiter.Limit())
	}

	r := newRateLimitRouter(limiter)
	for i := 0; i < 3; i++ {
		if w := sendFrom(r, "10.0.0.5:1234"); w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200 when redis is down", i+1, w.Code)
		}
	}
}

func TestNewLimiter(t *testing.T) {
	limits := RateLimitConfig{RequestsPerMinute: 60, BurstSize: 5, CleanupInterval: time.Hour}

	l, stop, err := NewLimiter(config.RateLimitingConfig{}, limits, "api")
	if err != nil {
		t.Fatalf("NewLimiter() error: %v", err)
	}
	if _, ok := l.(*RateLimiter); !ok {
		t.Errorf("limiter = %T, want *RateLimiter without redis_url", l)
	}
	stop()

	l, stop, err = NewLimiter(config.RateLimitingConfig{RedisURL: "redis://127.0.0.1:6379/0"}, limits, "api")
	if err != nil {
		t.Fatalf("NewLimiter(redis) error: %v", err)
	}
	if _, ok := l.(*RedisLimiter); !ok {
		t.Errorf("limiter = %T, want *RedisLimiter", l)
	}
	stop()

	if _, _, err := NewLimiter(config.RateLimitingConfig{RedisURL: "::bad"}, limits, "api"); err == nil {
		t.Error("expected error for malformed redis_url")
	}
}
