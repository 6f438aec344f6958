package llmservice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"docsite-rag/internal/config"
	"docsite-rag/internal/models"
)

// ErrGenerationUnavailable is returned when the LLM call fails or times out.
// The API layer maps it to a retry-later message; no answer is fabricated.
var ErrGenerationUnavailable = errors.New("generation unavailable")

// Generator produces a grounded answer from a query and its context set.
type Generator interface {
	Generate(ctx context.Context, query string, contextSet []models.RetrievalResult) (models.Answer, error)
}

// OpenAIGenerator calls an OpenAI-compatible chat completion endpoint through
// langchaingo with low temperature for consistent, factual answers.
type OpenAIGenerator struct {
	model     llms.Model
	timeout   time.Duration
	maxTokens int
	fallback  string
	log       zerolog.Logger
}

func NewOpenAIGenerator(cfg *config.LLMConfig, maxTokens int, fallback string, log zerolog.Logger) (*OpenAIGenerator, error) {
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("initializing inference LLM: %w", err)
	}
	return &OpenAIGenerator{
		model:     llm,
		timeout:   time.Duration(cfg.TimeoutSecs) * time.Second,
		maxTokens: maxTokens,
		fallback:  fallback,
		log:       log,
	}, nil
}

// Generate builds the grounded prompt and calls the model. An empty context
// set short-circuits to the fixed fallback without any LLM call, so nothing
// can be hallucinated when nothing was retrieved.
func (g *OpenAIGenerator) Generate(ctx context.Context, query string, contextSet []models.RetrievalResult) (models.Answer, error) {
	if len(contextSet) == 0 {
		return models.Answer{Text: g.fallback, Fallback: true}, nil
	}

	messages := BuildMessages(query, contextSet, g.fallback)

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.model.GenerateContent(callCtx, messages,
		llms.WithTemperature(0.1),
		llms.WithMaxTokens(g.maxTokens),
	)
	if err != nil {
		return models.Answer{}, fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return models.Answer{}, fmt.Errorf("%w: empty response", ErrGenerationUnavailable)
	}

	choice := resp.Choices[0]
	return models.Answer{
		Text:         strings.TrimSpace(choice.Content),
		UsedChunkIDs: models.ChunkIDs(contextSet),
		TokenCount:   tokenCount(choice.GenerationInfo),
	}, nil
}

// tokenCount pulls the completion token count out of the provider's
// generation info, falling back to the total when that is all we get.
func tokenCount(info map[string]any) int {
	for _, key := range []string{"CompletionTokens", "TotalTokens"} {
		switch v := info[key].(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 0
}
