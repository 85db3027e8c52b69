package app

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-chatbot/internal/config"
	"rag-chatbot/internal/knowledge"
	"rag-chatbot/internal/logger"
)

func offlineConfig(t *testing.T) config.Config {
	dir := t.TempDir()
	return config.Config{
		Port:                8000,
		MaxUploadSize:       10 << 20,
		DataDir:             dir,
		SessionsDBPath:      filepath.Join(dir, "sessions.db"),
		KnowledgeProvider:   "chromem",
		KnowledgeMaxResults: 5,
		ChunkMaxTokens:      400,
		ChunkOverlap:        80,
		HistoryMessages:     20,
		LLMProvider:         "stub",
		LLMTemperature:      0.7,
		LLMMaxTokens:        1024,
		EmbeddingDimensions: 256,
		CacheTTL:            600,
		QueueProvider:       "local",
	}
}

func TestAssembleOffline(t *testing.T) {
	cfg := offlineConfig(t)
	require.NoError(t, cfg.Validate())

	d, err := Assemble(context.Background(), cfg, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	assert.IsType(t, &knowledge.ChromemStore{}, d.Knowledge)
	assert.NotNil(t, d.Agent)
	assert.NotNil(t, d.Ingest)
	assert.NotNil(t, d.Parser)
	assert.NotNil(t, d.Metrics)
	assert.FileExists(t, cfg.SessionsDBPath)
}

func TestAssembleInvalidProviders(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"unknown knowledge provider", func(c *config.Config) { c.KnowledgeProvider = "lancedb" }, "invalid KNOWLEDGE_PROVIDER"},
		{"postgres without url", func(c *config.Config) { c.KnowledgeProvider = "postgres" }, "DB_URL is required"},
		{"unknown queue provider", func(c *config.Config) { c.QueueProvider = "kafka" }, "invalid QUEUE_PROVIDER"},
		{"openai without key", func(c *config.Config) { c.LLMProvider = "openai" }, "OPENAI_API_KEY is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := offlineConfig(t)
			tt.mutate(&cfg)
			d, err := Assemble(context.Background(), cfg, logger.Discard())
			require.Error(t, err)
			assert.Nil(t, d)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), err.Error())
		})
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	d, err := Assemble(context.Background(), offlineConfig(t), logger.Discard())
	require.NoError(t, err)
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
}
