package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"docsite-rag/internal/config"
)

// ErrUnavailable is returned once the provider has exhausted all retry
// attempts. Callers must surface it, never substitute zero vectors.
var ErrUnavailable = errors.New("embedding provider unavailable")

// NewOpenAIEmbedder builds a langchaingo embedder against an OpenAI-compatible
// endpoint (OpenRouter, Ollama's OpenAI facade, etc.).
func NewOpenAIEmbedder(cfg *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithEmbeddingModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("initializing embedding LLM: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return embedder, nil
}

// Client wraps a langchaingo embedder with request batching, per-call
// timeouts and bounded exponential backoff. Document and query embedding stay
// separate so asymmetric models keep their two modes.
type Client struct {
	embedder    embeddings.Embedder
	batchSize   int
	maxAttempts int
	timeout     time.Duration
	log         zerolog.Logger
}

func NewClient(embedder embeddings.Embedder, batchSize, maxAttempts int, timeout time.Duration, log zerolog.Logger) *Client {
	if batchSize <= 0 {
		batchSize = 32
	}
	if maxAttempts <= 0 {
		maxAttempts = 4
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		embedder:    embedder,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
		timeout:     timeout,
		log:         log,
	}
}

// EmbedDocuments returns one vector per input text, in input order. Requests
// are split into batches to respect provider payload limits.
func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		batch := texts[start:end]

		var batchVectors [][]float32
		err := c.withRetry(ctx, func() error {
			callCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			var err error
			batchVectors, err = c.embedder.EmbedDocuments(callCtx, batch)
			return err
		})
		if err != nil {
			return nil, err
		}
		if len(batchVectors) != len(batch) {
			return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrUnavailable, len(batchVectors), len(batch))
		}
		vectors = append(vectors, batchVectors...)
	}
	return vectors, nil
}

// EmbedQuery embeds a single query in query mode.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	var vector []float32
	err := c.withRetry(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		var err error
		vector, err = c.embedder.EmbedQuery(callCtx, text)
		return err
	})
	if err != nil {
		return nil, err
	}
	return vector, nil
}

// withRetry runs op under the shared backoff policy: exponential delay with
// jitter, bounded attempt count, aborted early when ctx is canceled.
func (c *Client) withRetry(ctx context.Context, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 10 * time.Second

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		if err := op(); err != nil {
			c.log.Warn().Err(err).Int("attempt", attempt).Msg("embedding call failed")
			return err
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.maxAttempts-1)), ctx))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
