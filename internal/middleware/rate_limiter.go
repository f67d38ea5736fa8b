package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RateLimiter applies a per-client-IP token bucket to the whole router.
func RateLimiter(r rate.Limit, b int) gin.HandlerFunc {
	var visitors = make(map[string]*rate.Limiter)
	var mu sync.Mutex

	getVisitor := func(ip string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		limiter, exists := visitors[ip]
		if !exists {
			limiter = rate.NewLimiter(r, b)
			visitors[ip] = limiter
		}
		return limiter
	}

	return func(c *gin.Context) {
		if !getVisitor(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// LoginGuard is a Redis sliding-window limiter for the credential
// endpoints, shared across server instances so an attacker cannot
// spread attempts over replicas.
type LoginGuard struct {
	redis    *redis.Client
	attempts int
	window   time.Duration
}

func NewLoginGuard(client *redis.Client, attempts int, window time.Duration) *LoginGuard {
	return &LoginGuard{redis: client, attempts: attempts, window: window}
}

func (g *LoginGuard) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("login_guard:%s", c.ClientIP())

		allowed, err := g.allow(c.Request.Context(), key)
		if err != nil {
			// fail open: losing the guard is better than locking
			// everyone out when Redis is unreachable
			c.Header("X-RateLimit-Error", "true")
			c.Next()
			return
		}
		if !allowed {
			c.Header("X-RateLimit-Limit", strconv.Itoa(g.attempts))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"message":     "Too many attempts.",
				"retry_after": g.window.Seconds(),
			})
			return
		}
		c.Next()
	}
}

func (g *LoginGuard) allow(ctx context.Context, key string) (bool, error) {
	now := time.Now().UnixNano()
	windowStart := now - g.window.Nanoseconds()

	pipe := g.redis.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now), Member: now})
	pipe.Expire(ctx, key, g.window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("login guard pipeline: %w", err)
	}
	return countCmd.Val() < int64(g.attempts), nil
}
