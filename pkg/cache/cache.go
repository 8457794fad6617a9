package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by GetJSON when the key does not exist.
var ErrMiss = errors.New("cache miss")

type Cache struct {
	client redis.UniversalClient // works with both single and cluster
}

func NewCache(addrs []string, password string, db int, useCluster bool) *Cache {
	var rdb redis.UniversalClient

	if useCluster && len(addrs) > 1 {
		rdb = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:    addrs,
			Password: password,
		})
	} else {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addrs[0],
			Password: password,
			DB:       db,
		})
	}

	return &Cache{client: rdb}
}

func NewCacheFromClient(client redis.UniversalClient) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Client() redis.UniversalClient {
	return c.client
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}

func (c *Cache) Set(ctx context.Context, namespace, key string, value interface{}, ttl time.Duration) error {
	return c.client.Set(ctx, namespace+":"+key, value, ttl).Err()
}

func (c *Cache) Get(ctx context.Context, namespace, key string) (string, error) {
	return c.client.Get(ctx, namespace+":"+key).Result()
}

func (c *Cache) Delete(ctx context.Context, namespace, key string) error {
	return c.client.Del(ctx, namespace+":"+key).Err()
}

func (c *Cache) GetTTL(ctx context.Context, namespace, key string) (time.Duration, error) {
	return c.client.TTL(ctx, namespace+":"+key).Result()
}

func (c *Cache) SetJSON(ctx context.Context, namespace, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Set(ctx, namespace, key, data, ttl)
}

func (c *Cache) GetJSON(ctx context.Context, namespace, key string, dest interface{}) error {
	raw, err := c.client.Get(ctx, namespace+":"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func (c *Cache) IncrWithExpire(ctx context.Context, namespace, key string, window time.Duration) (int64, error) {
	countKey := namespace + ":" + key

	cnt, err := c.client.Incr(ctx, countKey).Result()
	if err != nil {
		return 0, err
	}

	// If it's the first time the key is incremented, set its TTL
	if cnt == 1 {
		_ = c.client.Expire(ctx, countKey, window).Err()
	}

	return cnt, nil
}
