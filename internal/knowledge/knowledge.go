// Package knowledge stores document text as embedded chunks and answers
// similarity queries over them. Chunks are tagged with the document name so
// a document can be replaced by removing everything under its name.
package knowledge

import (
	"context"
	"strconv"
)

// Metadata keys set on every stored chunk.
const (
	MetaName  = "name"
	MetaChunk = "chunk"
)

// Result is one chunk returned by a similarity query.
type Result struct {
	Name     string
	Chunk    int
	Content  string
	Metadata map[string]string
	Score    float32
}

// Store is the knowledge base used by ingestion and retrieval.
// Implementations must be safe for concurrent use.
type Store interface {
	// Add chunks, embeds and stores text under name. It returns the number of
	// chunks written.
	Add(ctx context.Context, name, text string, metadata map[string]string) (int, error)
	// RemoveByName deletes every chunk stored under name. The boolean reports
	// whether anything was removed.
	RemoveByName(ctx context.Context, name string) (bool, error)
	// Query returns at most k chunks most similar to text, best first.
	Query(ctx context.Context, text string, k int) ([]Result, error)
}

func chunkID(name string, index int) string {
	return name + "#" + strconv.Itoa(index)
}

func chunkMetadata(name string, index int, metadata map[string]string) map[string]string {
	md := make(map[string]string, len(metadata)+2)
	for k, v := range metadata {
		md[k] = v
	}
	md[MetaName] = name
	md[MetaChunk] = strconv.Itoa(index)
	return md
}
