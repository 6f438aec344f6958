package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"docsite-rag/internal/models"
)

// Config is the root application configuration, loaded from a YAML file with
// ${ENV} placeholders expanded from the process environment.
type Config struct {
	Server    ServerConfig   `yaml:"server"`
	Database  DatabaseConfig `yaml:"database"`
	EmbedLLM  LLMConfig      `yaml:"embed_llm"`
	InferLLM  LLMConfig      `yaml:"inference_llm"`
	VectorDB  VectorDBConfig `yaml:"vector_db"`
	RAG       RAGConfig      `yaml:"rag"`
}

type ServerConfig struct {
	Addr           string  `yaml:"addr"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
}

// DatabaseConfig configures the optional relational history store. An empty
// DSN disables history persistence without affecting query behavior.
type DatabaseConfig struct {
	DSN   string `yaml:"dsn"`
	Debug bool   `yaml:"debug"`
}

// LLMConfig holds connection details for an OpenAI-compatible provider,
// used both for embeddings and for inference.
type LLMConfig struct {
	BaseURL     string `yaml:"base_url"`
	Key         string `yaml:"key"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

type VectorDBConfig struct {
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
	InMemory   bool   `yaml:"in_memory"`
}

// RAGConfig holds the tunables of the retrieval and grounding pipeline.
// Chunk size and overlap are in characters.
type RAGConfig struct {
	ChunkSize           int     `yaml:"chunk_size"`
	ChunkOverlap        int     `yaml:"chunk_overlap"`
	TopK                int     `yaml:"top_k"`
	MinScore            float32 `yaml:"min_score"`
	EmbedBatchSize      int     `yaml:"embed_batch_size"`
	MaxAttempts         int     `yaml:"max_attempts"`
	MaxAnswerTokens     int     `yaml:"max_answer_tokens"`
	ValidationThreshold float64 `yaml:"validation_threshold"`
	FallbackMessage     string  `yaml:"fallback_message"`
}

// LoadConfig reads the YAML config at path, expanding ${ENV} references so
// credentials can stay out of the file itself.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.RateLimitRPS <= 0 {
		cfg.Server.RateLimitRPS = 2
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 20
	}
	if cfg.EmbedLLM.TimeoutSecs <= 0 {
		cfg.EmbedLLM.TimeoutSecs = 30
	}
	if cfg.InferLLM.TimeoutSecs <= 0 {
		cfg.InferLLM.TimeoutSecs = 60
	}
	if cfg.VectorDB.Path == "" {
		cfg.VectorDB.Path = "./chromemdb"
	}
	if cfg.VectorDB.Collection == "" {
		cfg.VectorDB.Collection = "doc_chunks"
	}
	if cfg.RAG.ChunkSize <= 0 {
		cfg.RAG.ChunkSize = 1000
	}
	if cfg.RAG.ChunkOverlap < 0 || cfg.RAG.ChunkOverlap >= cfg.RAG.ChunkSize {
		cfg.RAG.ChunkOverlap = cfg.RAG.ChunkSize / 5
	}
	if cfg.RAG.ChunkOverlap == 0 {
		cfg.RAG.ChunkOverlap = 200
	}
	if cfg.RAG.TopK <= 0 {
		cfg.RAG.TopK = 5
	}
	if cfg.RAG.MinScore <= 0 {
		cfg.RAG.MinScore = 0.3
	}
	if cfg.RAG.EmbedBatchSize <= 0 {
		cfg.RAG.EmbedBatchSize = 32
	}
	if cfg.RAG.MaxAttempts <= 0 {
		cfg.RAG.MaxAttempts = 4
	}
	if cfg.RAG.MaxAnswerTokens <= 0 {
		cfg.RAG.MaxAnswerTokens = 1000
	}
	if cfg.RAG.ValidationThreshold <= 0 {
		cfg.RAG.ValidationThreshold = 0.35
	}
	if cfg.RAG.FallbackMessage == "" {
		cfg.RAG.FallbackMessage = models.DefaultFallbackMessage
	}
}
