package security

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	limiterpkg "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// NewRateLimiter allows perMinute requests per client IP.
func NewRateLimiter(perMinute int64) *limiterpkg.Limiter {
	rate := limiterpkg.Rate{
		Period: time.Minute,
		Limit:  perMinute,
	}
	return limiterpkg.New(memory.NewStore(), rate)
}

// RateLimitMiddleware rejects clients that exceeded the limiter's rate.
func RateLimitMiddleware(limiter *limiterpkg.Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			context, err := limiter.Get(c.Request().Context(), ip)
			if err != nil {
				slog.Error("Rate limiter lookup failed", "error", err, "ip", ip)
				return c.JSON(http.StatusInternalServerError, map[string]string{
					"error": "rate limit error",
				})
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.FormatInt(context.Limit, 10))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(context.Remaining, 10))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(context.Reset, 10))

			if context.Reached {
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"error": "Rate limit exceeded. Please try again later.",
				})
			}

			return next(c)
		}
	}
}
