package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"rag-chatbot/internal/chunker"
	"rag-chatbot/internal/embeddings"
)

const (
	collectionName = "pdf_documents"
	exportFile     = "chromem.gob.gz"
)

// ChromemStore keeps the knowledge base in process with chromem-go and, when
// a directory is configured, exports it to disk after every change.
type ChromemStore struct {
	mu         sync.Mutex
	db         *chromem.DB
	collection *chromem.Collection
	embedFunc  chromem.EmbeddingFunc
	chunking   chunker.Options
	dir        string
	log        *slog.Logger
}

// NewChromemStore creates a store. An existing export under dir is loaded;
// an empty dir keeps everything in memory.
func NewChromemStore(embedder embeddings.Embedder, chunking chunker.Options, dir string, log *slog.Logger) (*ChromemStore, error) {
	db := chromem.NewDB()
	ef := embeddings.ToChromemFunc(embedder)

	col, err := db.GetOrCreateCollection(collectionName, nil, ef)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	s := &ChromemStore{
		db:         db,
		collection: col,
		embedFunc:  ef,
		chunking:   chunking,
		dir:        dir,
		log:        log.With("component", "knowledge", "provider", "chromem"),
	}
	if dir != "" {
		if err := s.load(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *ChromemStore) Add(ctx context.Context, name, text string, metadata map[string]string) (int, error) {
	chunks := chunker.ChunkText(text, s.chunking)
	if len(chunks) == 0 {
		return 0, nil
	}

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromem.Document{
			ID:       chunkID(name, c.Index),
			Content:  c.Text,
			Metadata: chunkMetadata(name, c.Index, metadata),
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.collection.AddDocuments(ctx, docs, 1); err != nil {
		return 0, fmt.Errorf("add documents: %w", err)
	}
	if err := s.persist(); err != nil {
		return len(docs), err
	}
	return len(docs), nil
}

func (s *ChromemStore) RemoveByName(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.collection.GetByID(ctx, chunkID(name, 0)); err != nil {
		return false, nil
	}
	if err := s.collection.Delete(ctx, map[string]string{MetaName: name}, nil); err != nil {
		return false, fmt.Errorf("delete %q: %w", name, err)
	}
	if err := s.persist(); err != nil {
		return true, err
	}
	return true, nil
}

func (s *ChromemStore) Query(ctx context.Context, text string, k int) ([]Result, error) {
	if k <= 0 {
		k = 5
	}
	// chromem-go requires nResults <= collection size.
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	k = min(k, count)

	res, err := s.collection.Query(ctx, text, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	out := make([]Result, len(res))
	for i, r := range res {
		idx, _ := strconv.Atoi(r.Metadata[MetaChunk])
		md := make(map[string]string, len(r.Metadata))
		for key, v := range r.Metadata {
			if key != MetaName && key != MetaChunk {
				md[key] = v
			}
		}
		out[i] = Result{
			Name:     r.Metadata[MetaName],
			Chunk:    idx,
			Content:  r.Content,
			Metadata: md,
			Score:    r.Similarity,
		}
	}
	return out, nil
}

// Count returns the number of stored chunks.
func (s *ChromemStore) Count() int {
	return s.collection.Count()
}

func (s *ChromemStore) persist() error {
	if s.dir == "" {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create knowledge dir: %w", err)
	}
	if err := s.db.ExportToFile(filepath.Join(s.dir, exportFile), true, ""); err != nil {
		return fmt.Errorf("export knowledge: %w", err)
	}
	return nil
}

func (s *ChromemStore) load() error {
	path := filepath.Join(s.dir, exportFile)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := s.db.ImportFromFile(path, ""); err != nil {
		return fmt.Errorf("import knowledge: %w", err)
	}

	// Re-acquire collection reference after import.
	col := s.db.GetCollection(collectionName, s.embedFunc)
	if col == nil {
		return fmt.Errorf("collection %q not found after import", collectionName)
	}
	s.collection = col
	s.log.Info("knowledge loaded", "path", path, "chunks", col.Count())
	return nil
}
