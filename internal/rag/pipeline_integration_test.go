package rag

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsite-rag/internal/chunker"
	"docsite-rag/internal/models"
	"docsite-rag/internal/parser"
	"docsite-rag/internal/retriever"
	"docsite-rag/internal/validator"
	"docsite-rag/internal/vectorstore"
)

// constEmbedder maps every text to the same unit vector, so anything ingested
// is a perfect match for any query.
type constEmbedder struct{}

func (constEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

// echoGenerator answers with a fixed grounded sentence, mirroring the real
// generator's empty-context short-circuit.
type echoGenerator struct {
	text  string
	calls int
}

func (g *echoGenerator) Generate(_ context.Context, _ string, contextSet []models.RetrievalResult) (models.Answer, error) {
	if len(contextSet) == 0 {
		return models.Answer{Text: fallback, Fallback: true}, nil
	}
	g.calls++
	return models.Answer{Text: g.text, UsedChunkIDs: models.ChunkIDs(contextSet)}, nil
}

func newWiredPipeline(t *testing.T, store *vectorstore.Store, gen Generator) *Pipeline {
	t.Helper()
	return NewPipeline(
		retriever.New(constEmbedder{}, store, zerolog.Nop()),
		gen,
		validator.New(0.35, fallback),
		5, 0.3, fallback, zerolog.Nop(),
	)
}

func ingestSentence(t *testing.T, store *vectorstore.Store, sourcePath, text string) {
	t.Helper()
	chunks := chunker.New(1000, 200).Chunk(&parser.Document{
		SourcePath: sourcePath,
		Sections:   []parser.Section{{HeadingPath: []string{"Facts"}, Text: text}},
	})
	require.Len(t, chunks, 1)
	require.NoError(t, store.ReplaceSource(context.Background(), sourcePath, chunks, [][]float32{{1, 0, 0}}))
}

func TestPipelineAnswersFromIngestedDocument(t *testing.T) {
	store, err := vectorstore.New("", "it_chunks", true, zerolog.Nop())
	require.NoError(t, err)
	ingestSentence(t, store, "sky.md", "The sky is blue.")

	gen := &echoGenerator{text: "The sky is blue [S1]."}
	p := newWiredPipeline(t, store, gen)

	result, err := p.Ask(context.Background(), uuid.New(), "What color is the sky?", "")
	require.NoError(t, err)

	assert.True(t, result.Accepted)
	assert.Equal(t, "The sky is blue [S1].", result.Answer)
	assert.Greater(t, result.Confidence, 0.35)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "sky.md", result.Sources[0].SourcePath)
	assert.Equal(t, []string{"Facts"}, result.Sources[0].HeadingPath)
	assert.Equal(t, 1, gen.calls)
}

func TestPipelineEmptyCorpusYieldsFallbackWithoutGeneration(t *testing.T) {
	store, err := vectorstore.New("", "it_empty", true, zerolog.Nop())
	require.NoError(t, err)

	gen := &echoGenerator{text: "should never be produced"}
	p := newWiredPipeline(t, store, gen)

	result, err := p.Ask(context.Background(), uuid.New(), "What color is the sky?", "")
	require.NoError(t, err)

	assert.Equal(t, fallback, result.Answer)
	assert.True(t, result.Accepted)
	assert.Zero(t, result.Confidence)
	assert.Empty(t, result.Sources)
	assert.Zero(t, gen.calls, "an empty context set must not reach the model")
}

func TestPipelineSelectedTextScopesAnswer(t *testing.T) {
	store, err := vectorstore.New("", "it_selection", true, zerolog.Nop())
	require.NoError(t, err)
	// The corpus contains unrelated content; selection mode must ignore it.
	ingestSentence(t, store, "other.md", "Completely unrelated corpus material.")

	gen := &echoGenerator{text: "The capital is Paris."}
	p := newWiredPipeline(t, store, gen)

	result, err := p.Ask(context.Background(), uuid.New(), "What is the capital?", "The capital is Paris.")
	require.NoError(t, err)

	assert.True(t, result.SelectionOnly)
	assert.True(t, result.Accepted)
	assert.Equal(t, "The capital is Paris.", result.Answer)
	assert.Empty(t, result.Sources)
}
