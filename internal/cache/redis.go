package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kalviumcommunity/FocusRoom/internal"
)

// Cache is a small JSON cache over Redis, used for team member stats.
// A nil *Cache is a valid no-op cache so callers never branch on
// whether Redis is configured.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger internal.Logger
}

func New(addr, password string, ttl time.Duration, logger internal.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Cache{client: client, ttl: ttl, logger: logger}, nil
}

// GetJSON reports whether the key was present and unmarshalled into v.
func (c *Cache) GetJSON(ctx context.Context, key string, v any) bool {
	if c == nil {
		return false
	}
	raw, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warnf("cache: get %s failed: %v", key, err)
		}
		return false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		c.logger.Warnf("cache: bad payload for %s: %v", key, err)
		return false
	}
	return true
}

func (c *Cache) SetJSON(ctx context.Context, key string, v any) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.Warnf("cache: marshal for %s failed: %v", key, err)
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warnf("cache: set %s failed: %v", key, err)
	}
}

func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if c == nil || len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warnf("cache: delete failed: %v", err)
	}
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
