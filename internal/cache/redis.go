package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "ragchat:retrieval:"
	generationKey = keyPrefix + "generation"
	pingTimeout   = 5 * time.Second
)

// RedisCache stores retrievals under a generation number. Invalidation bumps
// the generation so earlier entries are never read again and expire by TTL.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to addr and verifies the connection.
func NewRedisCache(addr, password string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return &RedisCache{client: client}, nil
}

func (c *RedisCache) GetRetrieval(ctx context.Context, key string) (*Retrieval, Entry, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, Entry{}, err
	}
	entry := Entry{Key: key, Generation: gen}

	data, err := c.client.Get(ctx, entryKey(entry)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, entry, nil
	}
	if err != nil {
		return nil, entry, err
	}

	var result Retrieval
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, entry, fmt.Errorf("decode cached retrieval: %w", err)
	}
	return &result, entry, nil
}

func (c *RedisCache) SetRetrieval(ctx context.Context, entry Entry, result *Retrieval, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, entryKey(entry), data, ttl).Err()
}

// InvalidateDocument retires every cached retrieval. A new or replaced
// document can rank into any query's results, so name is not used to narrow
// the set.
func (c *RedisCache) InvalidateDocument(ctx context.Context, name string) error {
	return c.client.Incr(ctx, generationKey).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func entryKey(e Entry) string {
	return keyPrefix + strconv.FormatInt(e.Generation, 10) + ":" + e.Key
}
