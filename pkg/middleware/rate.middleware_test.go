package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"agent-wallet-service/pkg/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func do(h http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/prompt", nil)
	req.Header.Set("X-Forwarded-For", ip)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiterBlocksAfterLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	c := cache.NewCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	h := RateLimiter(c, 2, time.Minute, 5*time.Minute, "prompt", zap.NewNop())(okHandler())

	assert.Equal(t, http.StatusOK, do(h, "10.0.0.1").Code)
	rec := do(h, "10.0.0.1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = do(h, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "300", rec.Header().Get("Retry-After"))

	// still blocked even after the counting window
	mr.FastForward(2 * time.Minute)
	assert.Equal(t, http.StatusTooManyRequests, do(h, "10.0.0.1").Code)

	// other clients are unaffected
	assert.Equal(t, http.StatusOK, do(h, "10.0.0.2, 172.16.0.1").Code)
}

func TestRateLimiterFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	c := cache.NewCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	h := RateLimiter(c, 1, time.Minute, time.Minute, "prompt", zap.NewNop())(okHandler())
	mr.Close()

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(h, "10.0.0.1").Code)
	}
}
