package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"agent-wallet-service/pkg/cache"
	"agent-wallet-service/pkg/response"

	"go.uber.org/zap"
)

const rateLimitNamespace = "ratelimit"

// RateLimiter counts requests per client IP in Redis and blocks a client
// for blockDuration once it exceeds limit within window. It fails open when
// Redis is unavailable.
func RateLimiter(c *cache.Cache, limit int, window, blockDuration time.Duration, keyPrefix string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			key := keyPrefix + ":ip:" + clientIP(r)
			blockKey := key + ":blocked"

			// Check if already blocked
			if blocked, _ := c.Get(ctx, rateLimitNamespace, blockKey); blocked == "1" {
				ttl, _ := c.GetTTL(ctx, rateLimitNamespace, blockKey)
				w.Header().Set("Retry-After", strconv.Itoa(int(ttl.Seconds())))
				response.Error(w, http.StatusTooManyRequests, "Too Many Requests. Try again in "+ttl.String())
				return
			}

			count, err := c.IncrWithExpire(ctx, rateLimitNamespace, key, window)
			if err != nil {
				logger.Warn("rate limiter unavailable, allowing request", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			if count > int64(limit) {
				_ = c.Set(ctx, rateLimitNamespace, blockKey, "1", blockDuration)
				w.Header().Set("Retry-After", strconv.Itoa(int(blockDuration.Seconds())))
				response.Error(w, http.StatusTooManyRequests, "Too Many Requests. Blocked for "+blockDuration.String())
				return
			}

			ttl, _ := c.GetTTL(ctx, rateLimitNamespace, key)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(limit-int(count)))
			w.Header().Set("X-RateLimit-Reset", strconv.Itoa(int(ttl.Seconds())))

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		ip = r.RemoteAddr
	}
	return strings.TrimSpace(strings.Split(ip, ",")[0])
}
