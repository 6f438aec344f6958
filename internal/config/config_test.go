package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsite-rag/internal/models"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("TEST_EMBED_KEY", "secret-token")

	path := writeConfig(t, `
embed_llm:
  base_url: "http://localhost:11434/v1"
  key: "${TEST_EMBED_KEY}"
  model: "nomic-embed-text"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-token", cfg.EmbedLLM.Key)
	assert.Equal(t, "nomic-embed-text", cfg.EmbedLLM.Model)
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, "{}\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, float64(2), cfg.Server.RateLimitRPS)
	assert.Equal(t, 20, cfg.Server.RateLimitBurst)
	assert.Equal(t, "./chromemdb", cfg.VectorDB.Path)
	assert.Equal(t, "doc_chunks", cfg.VectorDB.Collection)
	assert.Equal(t, 1000, cfg.RAG.ChunkSize)
	assert.Equal(t, 200, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 5, cfg.RAG.TopK)
	assert.InDelta(t, 0.3, float64(cfg.RAG.MinScore), 1e-6)
	assert.Equal(t, 32, cfg.RAG.EmbedBatchSize)
	assert.Equal(t, 4, cfg.RAG.MaxAttempts)
	assert.Equal(t, 1000, cfg.RAG.MaxAnswerTokens)
	assert.InDelta(t, 0.35, cfg.RAG.ValidationThreshold, 1e-9)
	assert.Equal(t, models.DefaultFallbackMessage, cfg.RAG.FallbackMessage)
	assert.Empty(t, cfg.Database.DSN)
}

func TestLoadConfigOverlapClampedToChunkSize(t *testing.T) {
	path := writeConfig(t, `
rag:
  chunk_size: 500
  chunk_overlap: 600
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.RAG.ChunkSize)
	assert.Equal(t, 100, cfg.RAG.ChunkOverlap)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a map\n")
	_, err := LoadConfig(path)
	require.Error(t, err)
}
