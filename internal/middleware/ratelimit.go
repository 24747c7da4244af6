// ratelimit.go provides Gin middleware that enforces per-client token-bucket rate limits,
// returning 429 responses when the configured requests-per-minute threshold is exceeded.
// Two limiters share the middleware: an in-process bucket map for a single replica, and a
// Redis-backed limiter shared by every replica.
package middleware

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"github.com/sharedlists/sharedlists/internal/config"
)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// RequestsPerMinute is the maximum number of requests allowed per minute
	RequestsPerMinute int
	// BurstSize is the maximum burst of requests allowed
	BurstSize int
	// CleanupInterval is how often the in-process limiter drops idle clients
	CleanupInterval time.Duration
}

// RateLimitConfigFrom builds the general API limit from configuration
func RateLimitConfigFrom(cfg config.RateLimitingConfig) RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: cfg.RequestsPerMinute,
		BurstSize:         cfg.Burst,
		CleanupInterval:   5 * time.Minute,
	}
}

// LoginRateLimitConfig returns stricter limits for login and registration
func LoginRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 10,
		BurstSize:         5,
		CleanupInterval:   5 * time.Minute,
	}
}

// RateLimitResult is the verdict for one request
type RateLimitResult struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether the client identified by key may make another request
type Limiter interface {
	Allow(ctx context.Context, key string) (RateLimitResult, error)
	// Limit is the advertised requests-per-minute
	Limit() int
}

// rateLimitEntry tracks request counts for a single client
type rateLimitEntry struct {
	tokens     float64
	lastUpdate time.Time
}

// RateLimiter implements an in-process token bucket limiter
type RateLimiter struct {
	config  RateLimitConfig
	entries map[string]*rateLimitEntry
	mu      sync.Mutex
	stopCh  chan struct{}
}

// NewRateLimiter creates a new rate limiter with the given config
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		config:  config,
		entries: make(map[string]*rateLimitEntry),
		stopCh:  make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

// cleanup periodically removes idle entries
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now()
			for key, entry := range rl.entries {
				if now.Sub(entry.lastUpdate) > 10*time.Minute {
					delete(rl.entries, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

// Stop stops the cleanup goroutine
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// Limit implements Limiter
func (rl *RateLimiter) Limit() int {
	return rl.config.RequestsPerMinute
}

// Allow implements Limiter. It never fails.
func (rl *RateLimiter) Allow(_ context.Context, key string) (RateLimitResult, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	perSecond := float64(rl.config.RequestsPerMinute) / 60.0
	entry, exists := rl.entries[key]

	if !exists {
		entry = &rateLimitEntry{tokens: float64(rl.config.BurstSize), lastUpdate: now}
		rl.entries[key] = entry
	} else {
		elapsed := now.Sub(entry.lastUpdate)
		entry.tokens = math.Min(float64(rl.config.BurstSize), entry.tokens+elapsed.Seconds()*perSecond)
		entry.lastUpdate = now
	}

	if entry.tokens >= 1 {
		entry.tokens--
		return RateLimitResult{Allowed: true, Remaining: int(entry.tokens)}, nil
	}

	res := RateLimitResult{Remaining: 0, RetryAfter: time.Minute}
	if perSecond > 0 {
		res.RetryAfter = time.Duration((1 - entry.tokens) / perSecond * float64(time.Second))
	}
	return res, nil
}

// RedisLimiter is a Limiter whose buckets live in Redis, so all replicas share them
type RedisLimiter struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
	rpm     int
	prefix  string
}

// NewRedisLimiter creates a RedisLimiter. prefix separates independent limits that
// share one Redis, e.g. "api" and "login".
func NewRedisLimiter(client *redis.Client, cfg RateLimitConfig, prefix string) *RedisLimiter {
	return &RedisLimiter{
		limiter: redis_rate.NewLimiter(client),
		limit: redis_rate.Limit{
			Rate:   cfg.RequestsPerMinute,
			Burst:  cfg.BurstSize,
			Period: time.Minute,
		},
		rpm:    cfg.RequestsPerMinute,
		prefix: "ratelimit:" + prefix + ":",
	}
}

// Limit implements Limiter
func (l *RedisLimiter) Limit() int {
	return l.rpm
}

// Allow implements Limiter
func (l *RedisLimiter) Allow(ctx context.Context, key string) (RateLimitResult, error) {
	res, err := l.limiter.Allow(ctx, l.prefix+key, l.limit)
	if err != nil {
		return RateLimitResult{}, err
	}
	out := RateLimitResult{Allowed: res.Allowed > 0, Remaining: res.Remaining}
	if res.RetryAfter > 0 {
		out.RetryAfter = res.RetryAfter
	}
	return out, nil
}

// NewLimiter picks the Redis limiter when a Redis URL is configured and the
// in-process one otherwise. The returned stop function releases its resources.
func NewLimiter(cfg config.RateLimitingConfig, limits RateLimitConfig, prefix string) (Limiter, func(), error) {
	if cfg.RedisURL == "" {
		rl := NewRateLimiter(limits)
		return rl, rl.Stop, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewClient(opts)
	return NewRedisLimiter(client, limits, prefix), func() { _ = client.Close() }, nil
}

// RateLimitMiddleware creates a Gin middleware that rate limits requests. When the
// limiter itself fails the request is let through; an unreachable Redis must not take
// the API down with it.
func RateLimitMiddleware(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := getRateLimitKey(c)

		res, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			slog.Warn("rate limiter unavailable, allowing request", "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

		if !res.Allowed {
			retry := int(math.Ceil(res.RetryAfter.Seconds()))
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": retry,
			})
			return
		}

		c.Next()
	}
}

// getRateLimitKey determines the key to use for rate limiting
// Priority: authenticated account > client IP
func getRateLimitKey(c *gin.Context) string {
	if id := c.GetString(AccountIDKey); id != "" {
		return "account:" + id
	}

	ip := c.ClientIP()
	if ip == "" {
		ip = c.Request.RemoteAddr
	}
	return "ip:" + ip
}
