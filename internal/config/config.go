package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
)

// Config holds runtime configuration for the chat service.
type Config struct {
	// Server
	Port     int    `env:"PORT" envDefault:"8000" validate:"min=1,max=65535"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Upload limits
	MaxUploadSize int64 `env:"MAX_UPLOAD_SIZE" envDefault:"10485760" validate:"min=1,max=10485760"` // 10MB in bytes, the parser limit

	// Local state (knowledge export, session database)
	DataDir        string `env:"DATA_DIR" envDefault:"data"`
	SessionsDBPath string `env:"SESSIONS_DB_PATH"` // defaults to DATA_DIR/sessions.db

	// Knowledge store
	KnowledgeProvider   string `env:"KNOWLEDGE_PROVIDER" envDefault:"chromem" validate:"oneof=chromem postgres"`
	DBURL               string `env:"DB_URL"`
	KnowledgeMaxResults int    `env:"KNOWLEDGE_MAX_RESULTS" envDefault:"5" validate:"min=1,max=50"`
	ChunkMaxTokens      int    `env:"CHUNK_MAX_TOKENS" envDefault:"400" validate:"min=1"`
	ChunkOverlap        int    `env:"CHUNK_OVERLAP" envDefault:"80" validate:"min=0,ltfield=ChunkMaxTokens"`

	// Conversation history
	HistoryMessages int `env:"HISTORY_MESSAGES" envDefault:"20" validate:"min=0"`

	// LLM & Embeddings
	LLMProvider         string  `env:"LLM_PROVIDER" envDefault:"openai" validate:"oneof=openai stub"` // "openai" (uses OpenAI API) or "stub" (for local runs and tests)
	OpenAIKey           string  `env:"OPENAI_API_KEY"`
	OpenAIBaseURL       string  `env:"OPENAI_BASE_URL"`
	LLMModel            string  `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	LLMTemperature      float64 `env:"LLM_TEMPERATURE" envDefault:"0.7" validate:"gte=0,lte=2"`
	LLMMaxTokens        int     `env:"LLM_MAX_TOKENS" envDefault:"1024" validate:"min=1,max=128000"`
	EmbeddingModel      string  `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
	EmbeddingDimensions int     `env:"EMBEDDING_DIMENSIONS" envDefault:"1536" validate:"min=1"`

	// Cache
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	CacheTTL      int    `env:"CACHE_TTL" envDefault:"600" validate:"min=0"` // seconds

	// Queue
	QueueProvider string `env:"QUEUE_PROVIDER" envDefault:"local" validate:"oneof=local nats"`
	QueueURL      string `env:"QUEUE_URL"`
}

var validate = validator.New()

// Load reads configuration from environment variables with defaults.
func Load() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		slog.Warn("failed to parse env; using defaults where set", "err", err)
	}
	cfg.OpenAIKey = strings.TrimSpace(cfg.OpenAIKey)
	if cfg.SessionsDBPath == "" {
		cfg.SessionsDBPath = filepath.Join(cfg.DataDir, "sessions.db")
	}
	return cfg
}

// Validate checks value ranges and provider requirements.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.LLMProvider == "openai" && strings.TrimSpace(c.OpenAIKey) == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER=openai")
	}
	if c.KnowledgeProvider == "postgres" && c.DBURL == "" {
		return fmt.Errorf("DB_URL is required when KNOWLEDGE_PROVIDER=postgres")
	}
	if c.QueueProvider == "nats" && c.QueueURL == "" {
		return fmt.Errorf("QUEUE_URL is required when QUEUE_PROVIDER=nats")
	}
	return nil
}

// KnowledgeDir is where the embedded vector store persists its export.
func (c Config) KnowledgeDir() string {
	return filepath.Join(c.DataDir, "knowledge")
}
