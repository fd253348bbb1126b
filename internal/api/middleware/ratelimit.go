package middleware

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/sreesaivardhan/SecureGov-sub000/internal/db"
	"github.com/sreesaivardhan/SecureGov-sub000/internal/service"
)

const (
	rateLimitRequests = 30
	rateLimitWindow   = 60 * time.Second

	authFailureThreshold = 5
	authFailureWindow    = 5 * time.Minute
	authLockoutDuration  = 15 * time.Minute
)

// RateLimiter throttles request rates and locks out clients that keep
// failing authentication. Backed by Redis sorted sets; when Redis is not
// configured the limiter is simply absent and everything passes.
type RateLimiter struct {
	redis *db.RedisDB
}

// NewRateLimiter returns nil when rdb is nil, which disables limiting.
func NewRateLimiter(rdb *db.RedisDB) *RateLimiter {
	if rdb == nil {
		return nil
	}
	return &RateLimiter{redis: rdb}
}

// allow records one hit in the sliding window behind key and reports whether
// the caller is still under limit. Redis trouble fails open.
func (l *RateLimiter) allow(ctx context.Context, key string, limit int, window time.Duration) bool {
	now := time.Now()
	member := strconv.FormatInt(now.UnixNano(), 10)

	pipe := l.redis.Client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(now.Add(-window).UnixNano(), 10))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: member})
	count := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[RateLimit] redis pipeline failed, allowing request: %v", err)
		return true
	}
	return count.Val() <= int64(limit)
}

// AllowRequest records one request for the principal and reports whether it
// is still inside the sliding window. A nil limiter allows everything, so a
// missing Redis never blocks traffic.
func (l *RateLimiter) AllowRequest(ctx context.Context, principalID string) bool {
	if l == nil {
		return true
	}
	return l.allow(ctx, "ratelimit:user:"+principalID, rateLimitRequests, rateLimitWindow)
}

// RecordAuthFailure counts one failed authentication for ip and arms the
// lockout once the threshold is crossed.
func (l *RateLimiter) RecordAuthFailure(ctx context.Context, ip string) {
	key := "authfail:" + ip
	now := time.Now()

	pipe := l.redis.Client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(now.Add(-authFailureWindow).UnixNano(), 10))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: strconv.FormatInt(now.UnixNano(), 10)})
	count := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, authFailureWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[RateLimit] failed to record auth failure: %v", err)
		return
	}
	if count.Val() >= authFailureThreshold {
		if err := l.redis.Client.Set(ctx, "authlock:"+ip, "1", authLockoutDuration).Err(); err != nil {
			log.Printf("[RateLimit] failed to arm lockout for %s: %v", ip, err)
			return
		}
		log.Printf("⚠️ [RateLimit] Locked out %s after %d failed auth attempts", ip, count.Val())
	}
}

// LockedOut reports whether ip is inside an auth-failure lockout.
func (l *RateLimiter) LockedOut(ctx context.Context, ip string) bool {
	n, err := l.redis.Client.Exists(ctx, "authlock:"+ip).Result()
	if err != nil {
		return false
	}
	return n > 0
}

// RequestLimiter is the slice of RateLimiter the request-budget middleware
// needs.
type RequestLimiter interface {
	AllowRequest(ctx context.Context, principalID string) bool
}

// RateLimitMiddleware enforces the per-principal request budget. It runs
// after AuthMiddleware so the window follows the authenticated identity
// rather than the client address; unauthenticated traffic is covered by the
// failed-auth lockout instead.
func RateLimitMiddleware(limiter RequestLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		principal := GetPrincipal(c)
		if principal == nil {
			c.Next()
			return
		}
		if !limiter.AllowRequest(c.Request.Context(), principal.UserID) {
			abortWithServiceError(c, service.ErrRateLimited)
			return
		}
		c.Next()
	}
}
