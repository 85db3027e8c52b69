// Package cache stores retrieval results so repeated questions skip the
// embedding and vector search round trip.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Cache provides retrieval result caching.
type Cache interface {
	// GetRetrieval returns the cached result for key, or nil on a miss,
	// together with the Entry a result computed after the miss is stored
	// under.
	GetRetrieval(ctx context.Context, key string) (*Retrieval, Entry, error)

	// SetRetrieval stores a result with TTL under an Entry returned by
	// GetRetrieval. If the cache was invalidated in between, the result
	// lands where no later lookup reads it.
	SetRetrieval(ctx context.Context, entry Entry, result *Retrieval, ttl time.Duration) error

	// InvalidateDocument drops cached results that a change to the named
	// document may affect.
	InvalidateDocument(ctx context.Context, name string) error

	// Close closes the cache connection.
	Close() error
}

// Entry pins a cache key to the invalidation generation it was looked up in.
type Entry struct {
	Key        string
	Generation int64
}

// Retrieval is a cached similarity search result.
type Retrieval struct {
	Chunks []Chunk `json:"chunks"`
}

// Chunk is one cached knowledge chunk.
type Chunk struct {
	Name     string            `json:"name"`
	Index    int               `json:"index"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Score    float32           `json:"score"`
}

// GenerateCacheKey derives a stable key from a normalized query and the
// number of results requested.
func GenerateCacheKey(query string, k int) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%s", k, normalized)))
	return hex.EncodeToString(sum[:])
}

// New returns a Redis cache, or a NoOpCache when addr is empty or Redis is
// unreachable.
func New(addr, password string, log *slog.Logger) Cache {
	if addr == "" {
		log.Info("retrieval cache disabled")
		return NewNoOpCache()
	}
	c, err := NewRedisCache(addr, password)
	if err != nil {
		log.Warn("redis unavailable, caching disabled", "addr", addr, "err", err)
		return NewNoOpCache()
	}
	log.Info("retrieval cache enabled", "addr", addr)
	return c
}
