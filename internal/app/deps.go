package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/openai/openai-go/v3"

	"rag-chatbot/internal/agent"
	"rag-chatbot/internal/cache"
	"rag-chatbot/internal/chunker"
	"rag-chatbot/internal/config"
	"rag-chatbot/internal/embeddings"
	"rag-chatbot/internal/ingest"
	"rag-chatbot/internal/knowledge"
	"rag-chatbot/internal/llm"
	"rag-chatbot/internal/logger"
	"rag-chatbot/internal/metrics"
	"rag-chatbot/internal/parser"
	"rag-chatbot/internal/queue"
	"rag-chatbot/internal/session"
)

// Deps bundles the runtime dependencies shared by the HTTP handlers.
type Deps struct {
	Config    config.Config
	Log       *slog.Logger
	Parser    *parser.Parser
	Knowledge knowledge.Store
	Sessions  *session.Store
	Embedder  embeddings.Embedder
	LLM       llm.Client
	Cache     cache.Cache
	Queue     queue.Queue
	Metrics   *metrics.Metrics
	Agent     *agent.Agent
	Ingest    *ingest.Coordinator

	closers []func() error
}

// Build loads env, config, and shared components.
func Build(ctx context.Context) (*Deps, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return Assemble(ctx, cfg, logger.New(cfg.LogLevel))
}

// Assemble wires components for an already loaded configuration. On error
// everything opened so far is closed.
func Assemble(ctx context.Context, cfg config.Config, log *slog.Logger) (d *Deps, err error) {
	d = &Deps{Config: cfg, Log: log, Metrics: metrics.New(), Parser: parser.New(log)}
	defer func() {
		if err != nil {
			d.Close()
			d = nil
		}
	}()

	if d.Embedder, err = buildEmbedder(cfg, log); err != nil {
		return d, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	if d.Knowledge, err = d.buildKnowledge(ctx, cfg, log); err != nil {
		return d, fmt.Errorf("failed to initialize knowledge store: %w", err)
	}
	if d.Sessions, err = session.Open(cfg.SessionsDBPath); err != nil {
		return d, fmt.Errorf("failed to open session store: %w", err)
	}
	d.closers = append(d.closers, d.Sessions.Close)
	if d.LLM, err = buildLLM(cfg, log); err != nil {
		return d, fmt.Errorf("failed to initialize LLM: %w", err)
	}
	d.Cache = cache.New(cfg.RedisAddr, cfg.RedisPassword, log)
	d.closers = append(d.closers, d.Cache.Close)
	if d.Queue, err = d.buildQueue(cfg, log); err != nil {
		return d, fmt.Errorf("failed to initialize queue: %w", err)
	}

	d.Agent = agent.New(d.Knowledge, d.LLM, d.Sessions, d.Cache, d.Metrics, agent.Config{
		MaxResults:      cfg.KnowledgeMaxResults,
		HistoryMessages: cfg.HistoryMessages,
		CacheTTL:        time.Duration(cfg.CacheTTL) * time.Second,
	}, log)
	d.Ingest = ingest.New(d.Knowledge, d.Queue, d.Metrics, log)
	return d, nil
}

// Close releases connections in reverse order of creation.
func (d *Deps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

func (d *Deps) buildKnowledge(ctx context.Context, cfg config.Config, log *slog.Logger) (knowledge.Store, error) {
	chunking := chunker.Options{MaxTokens: cfg.ChunkMaxTokens, Overlap: cfg.ChunkOverlap}
	switch cfg.KnowledgeProvider {
	case "postgres":
		if cfg.DBURL == "" {
			return nil, fmt.Errorf("DB_URL is required when KNOWLEDGE_PROVIDER=postgres")
		}
		st, err := knowledge.NewPostgres(ctx, cfg.DBURL, d.Embedder, chunking, cfg.EmbeddingDimensions, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres: %w", err)
		}
		d.closers = append(d.closers, st.Close)
		log.Info("using Postgres knowledge store")
		return st, nil
	case "chromem":
		st, err := knowledge.NewChromemStore(d.Embedder, chunking, cfg.KnowledgeDir(), log)
		if err != nil {
			return nil, err
		}
		log.Info("using chromem knowledge store", "dir", cfg.KnowledgeDir(), "chunks", st.Count())
		return st, nil
	default:
		return nil, fmt.Errorf("invalid KNOWLEDGE_PROVIDER: %s (valid options: chromem, postgres)", cfg.KnowledgeProvider)
	}
}

func (d *Deps) buildQueue(cfg config.Config, log *slog.Logger) (queue.Queue, error) {
	switch cfg.QueueProvider {
	case "nats":
		if cfg.QueueURL == "" {
			return nil, fmt.Errorf("QUEUE_URL is required when QUEUE_PROVIDER=nats")
		}
		nc, err := queue.ConnectNATS(cfg.QueueURL, log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		d.closers = append(d.closers, func() error { return nc.Drain() })
		log.Info("using NATS queue")
		return queue.NewNATS(log, nc), nil
	case "local":
		log.Info("using in-process queue")
		return queue.NewLocal(log, queue.LocalOptions{}), nil
	default:
		return nil, fmt.Errorf("invalid QUEUE_PROVIDER: %s (valid options: local, nats)", cfg.QueueProvider)
	}
}

func buildLLM(cfg config.Config, log *slog.Logger) (llm.Client, error) {
	switch cfg.LLMProvider {
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER=openai")
		}
		client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:      cfg.OpenAIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			Model:       cfg.LLMModel,
			Temperature: cfg.LLMTemperature,
			MaxTokens:   cfg.LLMMaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OpenAI client: %w", err)
		}
		log.Info("using OpenAI LLM client", "model", cfg.LLMModel)
		return client, nil
	case "stub":
		log.Warn("using stub LLM client; answers are not generated by a model")
		return llm.NewStubClient(), nil
	default:
		return nil, fmt.Errorf("invalid LLM_PROVIDER: %s (valid options: openai, stub)", cfg.LLMProvider)
	}
}

func buildEmbedder(cfg config.Config, log *slog.Logger) (embeddings.Embedder, error) {
	switch cfg.LLMProvider {
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER=openai")
		}
		embedder, err := embeddings.NewOpenAIEmbedder(cfg.OpenAIKey, cfg.OpenAIBaseURL, openai.EmbeddingModel(cfg.EmbeddingModel), cfg.EmbeddingDimensions)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OpenAI embedder: %w", err)
		}
		log.Info("using OpenAI embedder", "model", cfg.EmbeddingModel)
		return embedder, nil
	case "stub":
		log.Info("using hashing embedder", "dimensions", cfg.EmbeddingDimensions)
		return embeddings.NewHashEmbedder(cfg.EmbeddingDimensions), nil
	default:
		return nil, fmt.Errorf("invalid LLM_PROVIDER: %s (valid options: openai, stub)", cfg.LLMProvider)
	}
}
