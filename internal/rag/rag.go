package rag

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"docsite-rag/internal/history"
	"docsite-rag/internal/models"
	"docsite-rag/internal/validator"
)

// Retriever fixes the context set for a query.
type Retriever interface {
	Retrieve(ctx context.Context, queryText, selectedText string, topK int, minScore float32) ([]models.RetrievalResult, error)
}

// Generator produces a grounded draft answer.
type Generator interface {
	Generate(ctx context.Context, query string, contextSet []models.RetrievalResult) (models.Answer, error)
}

// Validator decides whether a draft answer is supported by its context.
type Validator interface {
	Validate(answer string, contextSet []models.RetrievalResult) validator.Outcome
}

// History is the optional write-only audit store.
type History interface {
	RecordQuery(ctx context.Context, query *history.UserQuery) error
	RecordResponse(ctx context.Context, response *history.Response) error
}

// Pipeline runs one query through retrieve → generate → validate → persist.
// Each request executes sequentially with no shared mutable state, so one
// Pipeline value serves concurrent requests.
type Pipeline struct {
	retriever Retriever
	generator Generator
	validator Validator
	history   History // nil disables persistence

	topK     int
	minScore float32
	fallback string
	log      zerolog.Logger
}

type Option func(*Pipeline)

// WithHistory enables audit persistence.
func WithHistory(h History) Option {
	return func(p *Pipeline) { p.history = h }
}

func NewPipeline(r Retriever, g Generator, v Validator, topK int, minScore float32, fallback string, log zerolog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		retriever: r,
		generator: g,
		validator: v,
		topK:      topK,
		minScore:  minScore,
		fallback:  fallback,
		log:       log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result is the delivered outcome of one query.
type Result struct {
	QueryID       uuid.UUID
	Answer        string
	Sources       []models.Source
	Confidence    float64
	Accepted      bool
	TokenCount    int
	SelectionOnly bool
}

// Ask runs the full pipeline for one query. The query moves through
// RECEIVED → RETRIEVED → GENERATED → VALIDATED → DELIVERED; any typed
// upstream failure surfaces before DELIVERED and nothing is persisted.
func (p *Pipeline) Ask(ctx context.Context, sessionID uuid.UUID, message, selectedText string) (*Result, error) {
	queryID := uuid.New()
	start := time.Now()
	log := p.log.With().Stringer("query_id", queryID).Logger()
	log.Info().Str("stage", "received").Msg("query received")

	contextSet, err := p.retriever.Retrieve(ctx, message, selectedText, p.topK, p.minScore)
	if err != nil {
		log.Error().Err(err).Str("stage", "retrieved").Dur("latency", time.Since(start)).Msg("retrieval failed")
		return nil, err
	}
	log.Info().Str("stage", "retrieved").Int("chunks", len(contextSet)).Dur("latency", time.Since(start)).Msg("context set fixed")

	answer, err := p.generator.Generate(ctx, message, contextSet)
	if err != nil {
		log.Error().Err(err).Str("stage", "generated").Dur("latency", time.Since(start)).Msg("generation failed")
		return nil, err
	}
	log.Info().Str("stage", "generated").Bool("fallback", answer.Fallback).Int("tokens", answer.TokenCount).Dur("latency", time.Since(start)).Msg("draft answer ready")

	outcome := p.validator.Validate(answer.Text, contextSet)
	finalAnswer := answer.Text
	if !outcome.Accepted {
		finalAnswer = p.fallback
	}
	log.Info().Str("stage", "validated").Bool("accepted", outcome.Accepted).Float64("confidence", outcome.Confidence).Dur("latency", time.Since(start)).Msg("answer validated")

	selectionOnly := models.IsSelectionOnly(contextSet)
	result := &Result{
		QueryID:       queryID,
		Answer:        finalAnswer,
		Confidence:    outcome.Confidence,
		Accepted:      outcome.Accepted,
		TokenCount:    answer.TokenCount,
		SelectionOnly: selectionOnly,
	}
	if !selectionOnly {
		result.Sources = models.SourcesOf(contextSet)
	}

	p.persist(ctx, sessionID, message, selectedText, contextSet, result, selectionOnly)

	log.Info().Str("stage", "delivered").Dur("latency", time.Since(start)).Msg("query delivered")
	return result, nil
}

// Search runs retrieval only, for the search endpoint.
func (p *Pipeline) Search(ctx context.Context, query string, topK int) ([]models.RetrievalResult, error) {
	if topK <= 0 {
		topK = p.topK
	}
	return p.retriever.Retrieve(ctx, query, "", topK, p.minScore)
}

// persist writes the query and its validated response. Persistence is
// write-mostly audit data; failures are logged, not surfaced, so history
// outages cannot break answering.
func (p *Pipeline) persist(ctx context.Context, sessionID uuid.UUID, message, selectedText string, contextSet []models.RetrievalResult, result *Result, selectionOnly bool) {
	if p.history == nil {
		return
	}

	var chunkIDs []string
	if !selectionOnly {
		chunkIDs = models.ChunkIDs(contextSet)
	}

	query := &history.UserQuery{
		QueryID:         result.QueryID,
		SessionID:       sessionID,
		Content:         message,
		SelectedText:    selectedText,
		Timestamp:       time.Now().UTC(),
		ContextChunkIDs: chunkIDs,
	}
	if err := p.history.RecordQuery(ctx, query); err != nil {
		p.log.Warn().Err(err).Stringer("query_id", result.QueryID).Msg("failed to record query")
		return
	}

	response := &history.Response{
		ResponseID:      uuid.New(),
		QueryID:         result.QueryID,
		Content:         result.Answer,
		SourceChunkIDs:  chunkIDs,
		ConfidenceScore: result.Confidence,
		Timestamp:       time.Now().UTC(),
		TokenCount:      result.TokenCount,
	}
	if err := p.history.RecordResponse(ctx, response); err != nil {
		p.log.Warn().Err(err).Stringer("query_id", result.QueryID).Msg("failed to record response")
	}
}
