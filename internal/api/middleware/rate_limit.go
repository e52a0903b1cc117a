package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"praxihub/backend/pkg/redis"
	"praxihub/backend/pkg/response"
)

// RateLimit allows limit requests per window for each caller on a route.
// Signed-in callers are keyed by user id, anonymous ones by client IP.
// Without Redis, or when Redis errors, requests pass.
func RateLimit(rdb *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	retryAfter := strconv.Itoa(int(window.Seconds()))

	return func(c *gin.Context) {
		if rdb == nil || limit <= 0 {
			c.Next()
			return
		}

		caller := "ip:" + c.ClientIP()
		if uid := c.GetString(CtxUserID); uid != "" {
			caller = "user:" + uid
		}
		key := "rate_limit:" + c.FullPath() + ":" + caller

		allowed, err := rdb.CheckRateLimit(c.Request.Context(), key, limit, window)
		if err != nil || allowed {
			c.Next()
			return
		}

		c.Header("Retry-After", retryAfter)
		response.Error(c, http.StatusTooManyRequests, 10004, "too many requests, try again later")
		c.Abort()
	}
}
