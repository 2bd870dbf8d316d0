package middlewares

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// LimiterStore counts hits per key inside a fixed window.
type LimiterStore interface {
	// Hit records one request and returns the count so far in the current
	// window plus the time until that window closes.
	Hit(ctx context.Context, key string, window time.Duration) (count int64, resetIn time.Duration, err error)
}

type RateLimiter struct {
	store  LimiterStore
	window time.Duration
	limit  int
	prefix string
}

func NewRateLimiter(store LimiterStore, prefix string, limit int, window time.Duration) *RateLimiter {
	if store == nil {
		store = NewMemoryLimiterStore()
	}
	if limit <= 0 {
		limit = 20
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		store:  store,
		limit:  limit,
		window: window,
		prefix: prefix,
	}
}

// RateLimiterMiddleware enforces the limit for a derived key. A failing store
// lets the request through.
func (rl *RateLimiter) RateLimiterMiddleware(keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)

		if key == "" {
			// fallback to IP if key cannot be derived
			key = clientIP(c)
		}

		count, resetIn, err := rl.store.Hit(c.Request.Context(), "ratelimit:"+rl.prefix+":"+key, rl.window)
		if err != nil {
			slog.Default().WarnContext(c.Request.Context(), "rate_limit_store_failed", "err", err)
			c.Next()
			return
		}

		if count > int64(rl.limit) {
			retryAfter := int(resetIn.Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}

			c.Header("Retry-After", strconv.Itoa(retryAfter))
			abortJSON(c, http.StatusTooManyRequests, "rate_limited", "Too many requests. Please try again shortly.")
			return
		}

		c.Next()
	}
}

// MemoryLimiterStore is the single-process fallback when redis is not configured.
type MemoryLimiterStore struct {
	mu      sync.Mutex
	now     func() time.Time
	clients map[string]*clientBucket
}

type clientBucket struct {
	count     int64
	windowEnd time.Time
}

func NewMemoryLimiterStore() *MemoryLimiterStore {
	return &MemoryLimiterStore{
		now:     time.Now,
		clients: make(map[string]*clientBucket),
	}
}

func (s *MemoryLimiterStore) Hit(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.clients[key]
	if !ok || now.After(b.windowEnd) {
		b = &clientBucket{windowEnd: now.Add(window)}
		s.clients[key] = b
	}

	b.count++
	return b.count, b.windowEnd.Sub(now), nil
}

// WindowCounter is satisfied by *redisclient.Client.
type WindowCounter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// RedisLimiterStore shares counters across API replicas.
type RedisLimiterStore struct {
	counter WindowCounter
}

func NewRedisLimiterStore(counter WindowCounter) *RedisLimiterStore {
	return &RedisLimiterStore{counter: counter}
}

func (s *RedisLimiterStore) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	return s.counter.IncrWindow(ctx, key, window)
}

// helper functions

// for unauthenticated endpoints: rate limit by IP
func KeyByIP(c *gin.Context) string {
	return clientIP(c)
}

// For authenticated endpoints: rate limit by userID if available
func KeyByUserOrIP(c *gin.Context) string {
	id, ok := UserIDFromContext(c)

	if ok && id != "" {
		return "user:" + id
	}

	return clientIP(c)
}

func clientIP(c *gin.Context) string {
	// Gin's ClientIP respects X-Forwarded-For / X-Real-IP if configured.
	ip := c.ClientIP()

	host, _, err := net.SplitHostPort(ip)

	if err == nil && host != "" {
		return host
	}

	return ip
}
