package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"photovault/internal/cache"
)

// RateLimit allows limit requests per window for each user (or client IP
// when unauthenticated) using a fixed redis window. Redis errors let the
// request through.
func RateLimit(client redis.Cmdable, scope string, limit int, window time.Duration, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil || limit <= 0 {
			c.Next()
			return
		}

		subject := "ip:" + c.ClientIP()
		if user, ok := CurrentUser(c); ok {
			subject = "user:" + user.ID
		}
		slot := time.Now().UnixNano() / int64(window)
		key := "ratelimit:" + scope + ":" + subject + ":" + strconv.FormatInt(slot, 10)

		count, err := cache.IncrWindow(c.Request.Context(), client, key, window)
		if err != nil {
			log.Warn().Err(err).Str("scope", scope).Msg("rate limiter unavailable")
			c.Next()
			return
		}

		remaining := int64(limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(limit) {
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
			return
		}

		c.Next()
	}
}
