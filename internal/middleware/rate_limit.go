package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/folio/internal/logger"
)

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// rateLimitScript is an atomic sliding window over a sorted set of
// millisecond timestamps.
var rateLimitScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local window_start = now - window

redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
local count = redis.call('ZCARD', key)

if count < limit then
    redis.call('ZADD', key, now, now .. ':' .. math.random(1000000))
    redis.call('EXPIRE', key, math.ceil(window / 1000) + 1)
    return {1, limit - count - 1, 0}
else
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    local reset_at = 0
    if #oldest >= 2 then
        reset_at = tonumber(oldest[2]) + window
    end
    return {0, 0, reset_at}
end
`)

// RedisLimiter is a sliding-window limiter shared across server instances.
type RedisLimiter struct {
	client redis.Scripter
	limit  int
	window time.Duration
	prefix string
	now    func() time.Time
}

// NewRedisLimiter allows limit requests per window for each key.
func NewRedisLimiter(client redis.Scripter, limit int, window time.Duration, prefix string) *RedisLimiter {
	if limit <= 0 {
		limit = 5
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RedisLimiter{client: client, limit: limit, window: window, prefix: prefix, now: time.Now}
}

// Allow implements Limiter.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now().UnixMilli()
	result, err := rateLimitScript.Run(ctx, l.client, []string{l.prefix + key},
		l.limit, l.window.Milliseconds(), now,
	).Int64Slice()
	if err != nil {
		return Decision{}, err
	}
	if len(result) != 3 {
		return Decision{}, fmt.Errorf("unexpected rate limit reply %v", result)
	}

	decision := Decision{
		Allowed:   result[0] == 1,
		Limit:     l.limit,
		Remaining: int(result[1]),
	}
	if !decision.Allowed {
		decision.RetryAfter = time.Duration(result[2]-now) * time.Millisecond
		if decision.RetryAfter < time.Second {
			decision.RetryAfter = time.Second
		}
	}
	return decision, nil
}

// RateLimitConfig configures the RateLimit middleware.
type RateLimitConfig struct {
	Message string
	// OnLimited writes the rejection. The default aborts with a JSON error.
	OnLimited func(c *gin.Context, d Decision, message string)
}

// RateLimit limits requests per client IP. A nil limiter or a limiter error
// lets the request through.
func RateLimit(limiter Limiter, cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Message == "" {
		cfg.Message = "Too many requests, please try again later."
	}
	if cfg.OnLimited == nil {
		cfg.OnLimited = func(c *gin.Context, _ Decision, message string) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": message})
		}
	}
	log := logger.Component("ratelimit")

	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 500*time.Millisecond)
		decision, err := limiter.Allow(ctx, c.ClientIP())
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

		if !decision.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(decision.RetryAfter.Round(time.Second)/time.Second)))
			cfg.OnLimited(c, decision, cfg.Message)
			c.Abort()
			return
		}
		c.Next()
	}
}
