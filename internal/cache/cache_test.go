package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-chatbot/internal/logger"
)

func TestNoOpCache(t *testing.T) {
	c := NewNoOpCache()
	ctx := context.Background()

	result, entry, err := c.GetRetrieval(ctx, "key")
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, "key", entry.Key)

	err = c.SetRetrieval(ctx, entry, &Retrieval{Chunks: []Chunk{{Name: "a.pdf", Content: "text"}}}, time.Hour)
	require.NoError(t, err)

	// Nothing was actually stored.
	result, _, err = c.GetRetrieval(ctx, "key")
	require.NoError(t, err)
	assert.Nil(t, result)

	assert.NoError(t, c.InvalidateDocument(ctx, "a.pdf"))
	assert.NoError(t, c.Close())
}

func TestGenerateCacheKey(t *testing.T) {
	base := GenerateCacheKey("What is the policy?", 5)

	assert.Len(t, base, 64)
	assert.Equal(t, base, GenerateCacheKey("  what IS the\tpolicy?  ", 5), "case and spacing are normalized")
	assert.NotEqual(t, base, GenerateCacheKey("What is the policy?", 3), "k is part of the key")
	assert.NotEqual(t, base, GenerateCacheKey("What is the procedure?", 5))
}

func TestNewFallsBackToNoOp(t *testing.T) {
	log := logger.Discard()

	_, ok := New("", "", log).(*NoOpCache)
	assert.True(t, ok, "empty address disables caching")

	// Nothing listens on port 1; the ping fails and caching is disabled.
	_, ok = New("127.0.0.1:1", "", log).(*NoOpCache)
	assert.True(t, ok, "unreachable redis disables caching")
}

func newTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(mr.Addr(), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCache(t *testing.T) {
	stored := &Retrieval{Chunks: []Chunk{{Name: "a.pdf", Index: 2, Content: "excerpt", Metadata: map[string]string{"title": "A"}, Score: 0.5}}}

	tests := []struct {
		name string
		run  func(t *testing.T, ctx context.Context, c *RedisCache, mr *miniredis.Miniredis) *Retrieval
		want *Retrieval
	}{
		{
			name: "miss on empty cache",
			run: func(t *testing.T, ctx context.Context, c *RedisCache, _ *miniredis.Miniredis) *Retrieval {
				got, entry, err := c.GetRetrieval(ctx, "k")
				require.NoError(t, err)
				assert.Equal(t, Entry{Key: "k"}, entry)
				return got
			},
		},
		{
			name: "set then get",
			run: func(t *testing.T, ctx context.Context, c *RedisCache, _ *miniredis.Miniredis) *Retrieval {
				_, entry, err := c.GetRetrieval(ctx, "k")
				require.NoError(t, err)
				require.NoError(t, c.SetRetrieval(ctx, entry, stored, time.Minute))
				got, _, err := c.GetRetrieval(ctx, "k")
				require.NoError(t, err)
				return got
			},
			want: stored,
		},
		{
			name: "invalidation retires existing entries",
			run: func(t *testing.T, ctx context.Context, c *RedisCache, _ *miniredis.Miniredis) *Retrieval {
				_, entry, err := c.GetRetrieval(ctx, "k")
				require.NoError(t, err)
				require.NoError(t, c.SetRetrieval(ctx, entry, stored, time.Minute))
				require.NoError(t, c.InvalidateDocument(ctx, "a.pdf"))
				got, next, err := c.GetRetrieval(ctx, "k")
				require.NoError(t, err)
				assert.Equal(t, entry.Generation+1, next.Generation)
				return got
			},
		},
		{
			name: "write started before invalidation is never read",
			run: func(t *testing.T, ctx context.Context, c *RedisCache, _ *miniredis.Miniredis) *Retrieval {
				_, entry, err := c.GetRetrieval(ctx, "k")
				require.NoError(t, err)
				require.NoError(t, c.InvalidateDocument(ctx, "a.pdf"))
				require.NoError(t, c.SetRetrieval(ctx, entry, stored, time.Minute))
				got, _, err := c.GetRetrieval(ctx, "k")
				require.NoError(t, err)
				return got
			},
		},
		{
			name: "entries expire after ttl",
			run: func(t *testing.T, ctx context.Context, c *RedisCache, mr *miniredis.Miniredis) *Retrieval {
				_, entry, err := c.GetRetrieval(ctx, "k")
				require.NoError(t, err)
				require.NoError(t, c.SetRetrieval(ctx, entry, stored, time.Minute))
				mr.FastForward(2 * time.Minute)
				got, _, err := c.GetRetrieval(ctx, "k")
				require.NoError(t, err)
				return got
			},
		},
		{
			name: "keys are independent",
			run: func(t *testing.T, ctx context.Context, c *RedisCache, _ *miniredis.Miniredis) *Retrieval {
				_, entry, err := c.GetRetrieval(ctx, "k")
				require.NoError(t, err)
				require.NoError(t, c.SetRetrieval(ctx, entry, stored, time.Minute))
				got, _, err := c.GetRetrieval(ctx, "other")
				require.NoError(t, err)
				return got
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, mr := newTestRedis(t)
			got := tt.run(t, context.Background(), c, mr)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRedisCacheCorruptEntry(t *testing.T) {
	c, mr := newTestRedis(t)
	require.NoError(t, mr.Set(keyPrefix+"0:k", "not json"))

	got, entry, err := c.GetRetrieval(context.Background(), "k")
	require.Error(t, err)
	assert.Nil(t, got)
	assert.Equal(t, Entry{Key: "k"}, entry)
}

func TestRedisCacheUnreachableAfterConnect(t *testing.T) {
	c, mr := newTestRedis(t)
	mr.Close()

	_, _, err := c.GetRetrieval(context.Background(), "k")
	assert.Error(t, err)
}
