package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// RateLimitStrategy selects the limiting algorithm
type RateLimitStrategy string

const (
	// FixedWindow counts requests per aligned window in Redis. Bursts of up
	// to twice the limit are possible across a window boundary.
	FixedWindow RateLimitStrategy = "fixed_window"

	// SlidingWindow keeps one sorted-set entry per request in Redis
	SlidingWindow RateLimitStrategy = "sliding_window"

	// TokenBucket refills Limit tokens per Window, evaluated atomically in Redis
	TokenBucket RateLimitStrategy = "token_bucket"

	// Local is an in-process token bucket for single-instance deployments
	Local RateLimitStrategy = "local"
)

// ParseStrategy maps a config value to a strategy, defaulting to SlidingWindow
func ParseStrategy(s string) RateLimitStrategy {
	switch RateLimitStrategy(s) {
	case FixedWindow, SlidingWindow, TokenBucket, Local:
		return RateLimitStrategy(s)
	}
	return SlidingWindow
}

// RateLimitConfig holds configuration for the rate limiter
type RateLimitConfig struct {
	Strategy RateLimitStrategy
	Limit    int
	Window   time.Duration

	// KeyFunc generates the rate limit key (default: IP and path)
	KeyFunc func(*gin.Context) string

	// ErrorHandler writes the response when the limit is exceeded
	ErrorHandler func(*gin.Context)

	// SkipFunc exempts requests from limiting
	SkipFunc func(*gin.Context) bool
}

type decision struct {
	allowed   bool
	remaining int
	reset     time.Time
}

type limiterBackend interface {
	take(ctx context.Context, key string) (decision, error)
}

// RateLimiter limits requests per key
type RateLimiter struct {
	config  *RateLimitConfig
	backend limiterBackend
}

// NewRateLimiter creates a rate limiter. Redis strategies fall back to Local
// when redisClient is nil.
func NewRateLimiter(redisClient *redis.Client, config *RateLimitConfig) *RateLimiter {
	if config.KeyFunc == nil {
		config.KeyFunc = IPAndPathKey
	}
	if config.ErrorHandler == nil {
		config.ErrorHandler = defaultErrorHandler
	}
	if config.SkipFunc == nil {
		config.SkipFunc = func(*gin.Context) bool { return false }
	}

	var backend limiterBackend
	switch {
	case config.Strategy == Local || redisClient == nil:
		backend = newLocalBackend(config.Limit, config.Window)
	case config.Strategy == FixedWindow:
		backend = &fixedWindow{redis: redisClient, limit: config.Limit, window: config.Window}
	case config.Strategy == TokenBucket:
		backend = &tokenBucket{redis: redisClient, limit: config.Limit, window: config.Window}
	default:
		backend = &slidingWindow{redis: redisClient, limit: config.Limit, window: config.Window}
	}
	return &RateLimiter{config: config, backend: backend}
}

// Middleware returns the gin handler
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.config.SkipFunc(c) {
			c.Next()
			return
		}

		d, err := rl.backend.take(c.Request.Context(), rl.config.KeyFunc(c))
		if err != nil {
			log.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.config.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(d.reset.Unix(), 10))

		if !d.allowed {
			retryAfter := int64(math.Ceil(time.Until(d.reset).Seconds()))
			if retryAfter < 0 {
				retryAfter = 0
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			rl.config.ErrorHandler(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

type fixedWindow struct {
	redis  *redis.Client
	limit  int
	window time.Duration
}

func (f *fixedWindow) take(ctx context.Context, key string) (decision, error) {
	start := time.Now().Truncate(f.window)
	windowKey := fmt.Sprintf("%s:%d", key, start.Unix())

	pipe := f.redis.TxPipeline()
	incr := pipe.Incr(ctx, windowKey)
	pipe.Expire(ctx, windowKey, f.window*2)
	if _, err := pipe.Exec(ctx); err != nil {
		return decision{}, err
	}

	count := int(incr.Val())
	return decision{
		allowed:   count <= f.limit,
		remaining: max(f.limit-count, 0),
		reset:     start.Add(f.window),
	}, nil
}

type slidingWindow struct {
	redis  *redis.Client
	limit  int
	window time.Duration
}

func (s *slidingWindow) take(ctx context.Context, key string) (decision, error) {
	now := time.Now()
	cutoff := now.Add(-s.window).UnixNano()

	pipe := s.redis.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(cutoff, 10))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: now.UnixNano()})
	card := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, s.window*2)
	if _, err := pipe.Exec(ctx); err != nil {
		return decision{}, err
	}

	count := int(card.Val())
	return decision{
		allowed:   count <= s.limit,
		remaining: max(s.limit-count, 0),
		reset:     now.Add(s.window),
	}, nil
}

// tokenBucketScript refills and takes one token in a single round trip.
// KEYS: tokens, last refill. ARGV: tokens per ms, capacity, now ms, ttl ms.
var tokenBucketScript = redis.NewScript(`
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])
local tokens = tonumber(redis.call("GET", KEYS[1]))
if tokens == nil then tokens = capacity end
local last = tonumber(redis.call("GET", KEYS[2]))
if last == nil then last = now end
tokens = math.min(capacity, tokens + math.max(0, now - last) * rate)
local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end
redis.call("SET", KEYS[1], tostring(tokens), "PX", ttl)
redis.call("SET", KEYS[2], tostring(now), "PX", ttl)
return {allowed, math.floor(tokens)}
`)

type tokenBucket struct {
	redis  *redis.Client
	limit  int
	window time.Duration
}

func (t *tokenBucket) take(ctx context.Context, key string) (decision, error) {
	now := time.Now()
	perMs := float64(t.limit) / float64(t.window.Milliseconds())

	res, err := tokenBucketScript.Run(ctx, t.redis,
		[]string{key + ":tokens", key + ":last_refill"},
		strconv.FormatFloat(perMs, 'f', -1, 64), t.limit, now.UnixMilli(), (t.window * 2).Milliseconds(),
	).Int64Slice()
	if err != nil {
		return decision{}, err
	}

	d := decision{allowed: res[0] == 1, remaining: int(res[1]), reset: now}
	if !d.allowed {
		d.reset = now.Add(time.Duration(float64(time.Millisecond) / perMs))
	}
	return d, nil
}

type localBackend struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	every    rate.Limit
	burst    int
}

func newLocalBackend(limit int, window time.Duration) *localBackend {
	return &localBackend{
		limiters: make(map[string]*rate.Limiter),
		every:    rate.Every(window / time.Duration(max(limit, 1))),
		burst:    limit,
	}
}

func (l *localBackend) take(_ context.Context, key string) (decision, error) {
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.every, l.burst)
		l.limiters[key] = lim
	}
	l.mu.Unlock()

	now := time.Now()
	allowed := lim.AllowN(now, 1)
	tokens := lim.TokensAt(now)
	d := decision{allowed: allowed, remaining: max(int(tokens), 0), reset: now}
	if tokens < 1 {
		d.reset = now.Add(time.Duration((1 - tokens) / float64(l.every) * float64(time.Second)))
	}
	return d, nil
}

func defaultErrorHandler(c *gin.Context) {
	c.JSON(http.StatusTooManyRequests, gin.H{
		"code":    http.StatusTooManyRequests,
		"message": "Rate limit exceeded. Please try again later.",
	})
}

// IPAndPathKey keys requests by client IP and path
func IPAndPathKey(c *gin.Context) string {
	return fmt.Sprintf("rate_limit:%s:%s", c.ClientIP(), c.Request.URL.Path)
}

// UserOrIPKey keys requests by signed-in uid, falling back to client IP
func UserOrIPKey(c *gin.Context) string {
	if u := CurrentUser(c); u != nil {
		return fmt.Sprintf("rate_limit:user:%s:%s", u.UID, c.FullPath())
	}
	return fmt.Sprintf("rate_limit:ip:%s:%s", c.ClientIP(), c.FullPath())
}

// SkipHealthCheck exempts the health endpoint
func SkipHealthCheck(c *gin.Context) bool {
	return c.Request.URL.Path == "/health"
}
