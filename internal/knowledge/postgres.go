package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"

	"rag-chatbot/internal/chunker"
	"rag-chatbot/internal/embeddings"
)

// PostgresStore keeps chunks and their embeddings in Postgres with pgvector.
type PostgresStore struct {
	db         *sql.DB
	embedder   embeddings.Embedder
	chunking   chunker.Options
	dimensions int
	log        *slog.Logger
}

// NewPostgres connects to dsn and creates the schema when missing.
func NewPostgres(ctx context.Context, dsn string, embedder embeddings.Embedder, chunking chunker.Options, dimensions int, log *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	s := &PostgresStore{
		db:         db,
		embedder:   embedder,
		chunking:   chunking,
		dimensions: dimensions,
		log:        log.With("component", "knowledge", "provider", "postgres"),
	}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	// Advisory lock keeps concurrently starting replicas from racing on DDL.
	const lockID = 715202401

	var acquired bool
	err := s.db.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, lockID).Scan(&acquired)
	if err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	if !acquired {
		// Another replica is migrating; wait briefly and skip
		time.Sleep(2 * time.Second)
		return nil
	}
	defer func() {
		_, _ = s.db.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, lockID)
	}()

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS knowledge_chunks (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			ord INT NOT NULL,
			content TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			embedding vector(%d) NOT NULL,
			created_at TIMESTAMPTZ DEFAULT now()
		)`, s.dimensions),
		`CREATE INDEX IF NOT EXISTS knowledge_chunks_name_idx ON knowledge_chunks (name)`,
		`CREATE INDEX IF NOT EXISTS knowledge_chunks_embedding_idx
			ON knowledge_chunks USING ivfflat (embedding vector_cosine_ops)
			WITH (lists = 100)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Add(ctx context.Context, name, text string, metadata map[string]string) (int, error) {
	chunks := chunker.ChunkText(text, s.chunking)
	if len(chunks) == 0 {
		return 0, nil
	}

	rows := insertRows{}
	for _, c := range chunks {
		vec, err := s.embedder.Embed(ctx, c.Text)
		if err != nil {
			return 0, fmt.Errorf("embed chunk %d of %q: %w", c.Index, name, err)
		}
		rows.add(c, vec)
	}

	md, err := json.Marshal(metadata)
	if err != nil {
		return 0, fmt.Errorf("encode metadata: %w", err)
	}
	if metadata == nil {
		md = []byte("{}")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO knowledge_chunks (id, name, ord, content, metadata, embedding)
		SELECT u.id, $1, u.ord, u.content, $2::jsonb, u.embedding::vector
		FROM unnest($3::uuid[], $4::int[], $5::text[], $6::text[]) AS u(id, ord, content, embedding)`,
		name, string(md), pq.Array(rows.ids), pq.Array(rows.ords), pq.Array(rows.contents), pq.Array(rows.vectors))
	if err != nil {
		return 0, fmt.Errorf("insert chunks for %q: %w", name, err)
	}
	return len(chunks), nil
}

func (s *PostgresStore) RemoveByName(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM knowledge_chunks WHERE name = $1`, name)
	if err != nil {
		return false, fmt.Errorf("delete %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return true, nil
	}
	return n > 0, nil
}

func (s *PostgresStore) Query(ctx context.Context, text string, k int) ([]Result, error) {
	if k <= 0 {
		k = 5
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, ord, content, metadata, 1 - (embedding <=> $1::vector) AS similarity
		FROM knowledge_chunks
		ORDER BY embedding <=> $1::vector
		LIMIT $2`, vectorToString(vec), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			r  Result
			md []byte
		)
		if err := rows.Scan(&r.Name, &r.Chunk, &r.Content, &md, &r.Score); err != nil {
			return nil, err
		}
		if len(md) > 0 {
			if err := json.Unmarshal(md, &r.Metadata); err != nil {
				s.log.Warn("invalid chunk metadata", "name", r.Name, "chunk", r.Chunk, "err", err)
			}
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// insertRows holds column arrays for a single unnest insert.
type insertRows struct {
	ids      []string
	ords     []int64
	contents []string
	vectors  []string
}

func (r *insertRows) add(c chunker.Chunk, vec embeddings.Vector) {
	r.ids = append(r.ids, uuid.NewString())
	r.ords = append(r.ords, int64(c.Index))
	r.contents = append(r.contents, c.Text)
	r.vectors = append(r.vectors, vectorToString(vec))
}

// vectorToString converts a Vector to pgvector's text format "[0.1,0.2,...]".
func vectorToString(v embeddings.Vector) string {
	if len(v) == 0 {
		return "[]"
	}
	parts := make([]string, len(v))
	for i, val := range v {
		parts[i] = strconv.FormatFloat(float64(val), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
