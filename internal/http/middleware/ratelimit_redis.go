package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window limiter on Redis INCR/EXPIRE. Without a Redis client it falls
// back to a per-process window.
// key format: rl:<scope>:<window_seconds>:<identifier>
type RateLimiter struct {
	client *redis.Client
	local  *localLimiter
}

func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client, local: newLocalLimiter()}
}

// PerIP limits requests by client address.
func (l *RateLimiter) PerIP(maxRequests int, window time.Duration) gin.HandlerFunc {
	return l.limit("ip", maxRequests, window, func(c *gin.Context) string { return c.ClientIP() })
}

// PerUser limits requests by authenticated user. Must run after JWT.
func (l *RateLimiter) PerUser(maxRequests int, window time.Duration) gin.HandlerFunc {
	return l.limit("user", maxRequests, window, func(c *gin.Context) string { return c.GetString(ContextUserID) })
}

func (l *RateLimiter) limit(scope string, maxRequests int, window time.Duration, ident func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := ident(c)
		if id == "" || maxRequests <= 0 {
			c.Next()
			return
		}
		key := "rl:" + scope + ":" + strconv.FormatInt(int64(window.Seconds()), 10) + ":" + id

		var (
			val int64
			err error
		)
		if l.client != nil {
			val, err = l.incr(c.Request.Context(), key, window)
		}
		if l.client == nil || err != nil {
			if err != nil {
				// on Redis error, fall back to the local window but set header
				c.Header("X-RateLimit-Error", "redis-error")
			}
			val = l.local.incr(key, window)
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(max(0, int64(maxRequests)-val), 10))
		if val > int64(maxRequests) {
			RLBlocked.WithLabelValues(scope + ":" + c.FullPath()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": int(window.Seconds()),
			})
			return
		}
		RLRequests.WithLabelValues(scope + ":" + c.FullPath()).Inc()
		c.Next()
	}
}

func (l *RateLimiter) incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	val, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if val == 1 {
		// first increment, set expiry
		l.client.Expire(ctx, key, window)
	}
	return val, nil
}
