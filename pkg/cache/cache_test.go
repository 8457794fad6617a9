package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := NewCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestJSONRoundTripAndMiss(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	var out []string
	assert.ErrorIs(t, c.GetJSON(ctx, "ns", "k", &out), ErrMiss)

	require.NoError(t, c.SetJSON(ctx, "ns", "k", []string{"a", "b"}, time.Minute))
	assert.True(t, mr.Exists("ns:k"))

	require.NoError(t, c.GetJSON(ctx, "ns", "k", &out))
	assert.Equal(t, []string{"a", "b"}, out)

	require.NoError(t, c.Delete(ctx, "ns", "k"))
	assert.ErrorIs(t, c.GetJSON(ctx, "ns", "k", &out), ErrMiss)
}

func TestIncrWithExpire(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		n, err := c.IncrWithExpire(ctx, "rl", "ip:1", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}
	assert.Equal(t, time.Minute, mr.TTL("rl:ip:1"))

	mr.FastForward(2 * time.Minute)
	n, err := c.IncrWithExpire(ctx, "rl", "ip:1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
