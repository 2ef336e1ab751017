package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// RateLimit returns a fixed-window limiter keyed on client IP and route,
// backed by Redis so the window is shared across instances.  When rdb is
// nil (Redis unreachable at startup) or a Redis call fails, the limiter
// fails open: slowing attackers is worth less than refusing legitimate
// logins during a cache outage.  The brute-force backstop is the account
// lockout, not this limiter.
func RateLimit(rdb *redis.Client, prefix string, max int, window time.Duration) echo.MiddlewareFunc {
	if rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error { return next(c) }
		}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := fmt.Sprintf("%s:%s:%s", prefix, c.RealIP(), c.Path())
			ctx := c.Request().Context()

			count, err := rdb.Incr(ctx, key).Result()
			if err != nil {
				c.Logger().Warnf("[ratelimit] redis error for key=%s: %v", key, err)
				return next(c)
			}
			if count == 1 {
				// First hit in this window owns the expiry.
				if err := rdb.Expire(ctx, key, window).Err(); err != nil {
					c.Logger().Warnf("[ratelimit] expire failed for key=%s: %v", key, err)
				}
			}
			if count > int64(max) {
				ttl, _ := rdb.TTL(ctx, key).Result()
				if ttl > 0 {
					c.Response().Header().Set("Retry-After", fmt.Sprintf("%d", int(ttl.Seconds())))
				}
				return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "too many attempts, please try again later"})
			}
			return next(c)
		}
	}
}
