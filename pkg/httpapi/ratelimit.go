package httpapi

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/codeready-toolchain/grantfinder/pkg/apperrors"
)

// keyStrategy selects whether a route is rate-limited by authenticated
// user or by remote address (§4.10: "remote-address keying for
// unauthenticated routes, authenticated-user keying for authenticated
// routes"). Every rate-limited route requires auth and uses
// limitPerUser; the unauthenticated /health* and /api/system/info
// routes carry no limiter, so limitPerRemoteAddr is currently unused.
type keyStrategy int

const (
	limitPerUser keyStrategy = iota
	limitPerRemoteAddr
)

// RateLimiter enforces the §6 per-route request quotas against Redis,
// using the same INCR+EXPIRE fixed-window pattern wisbric-nightowl's
// auth rate limiter uses for login attempts.
type RateLimiter struct {
	rdb *redis.Client
}

func NewRateLimiter(rdb *redis.Client) *RateLimiter {
	return &RateLimiter{rdb: rdb}
}

// Middleware enforces at most limit requests per window for the route's
// key (subject or remote addr), returning QUOTA (429) with Retry-After
// on overflow.
func (l *RateLimiter) Middleware(strategy keyStrategy, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		var key string
		switch strategy {
		case limitPerUser:
			key = subjectFrom(c)
			if key == "" {
				key = c.ClientIP()
			}
		default:
			key = c.ClientIP()
		}

		redisKey := fmt.Sprintf("grantfinder:ratelimit:%s:%s", c.FullPath(), key)
		count, retryAfter, err := l.incrementWindow(c.Request.Context(), redisKey, window)
		if err != nil {
			// Redis unavailable degrades to allow-through rather than
			// blocking every request (§4.11 fail-open for non-critical
			// dependencies).
			c.Next()
			return
		}

		if count > int64(limit) {
			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			writeError(c, apperrors.New(apperrors.KindQuota, "rate limit exceeded").
				WithDetails(map[string]any{"limit": limit, "window_seconds": int(window.Seconds())}))
			return
		}

		c.Next()
	}
}

// incrementWindow bumps redisKey's counter and sets its expiry on first
// increment, via a pipeline exactly like wisbric-nightowl's Record.
func (l *RateLimiter) incrementWindow(ctx context.Context, key string, window time.Duration) (int64, int, error) {
	pipe := l.rdb.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}

	ttl, err := l.rdb.TTL(ctx, key).Result()
	if err != nil {
		ttl = window
	}
	return incr.Val(), int(ttl.Seconds()), nil
}
