package retriever

import (
	"context"

	"github.com/rs/zerolog"

	"docsite-rag/internal/models"
)

// Embedder embeds a query in query mode.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Index is the nearest-neighbor lookup side of the vector store.
type Index interface {
	Query(ctx context.Context, vector []float32, topK int, filter map[string]string) ([]models.RetrievalResult, error)
}

// Retriever turns a user query into an ordered context set.
type Retriever struct {
	embedder Embedder
	index    Index
	log      zerolog.Logger
}

func New(embedder Embedder, index Index, log zerolog.Logger) *Retriever {
	return &Retriever{embedder: embedder, index: index, log: log}
}

// Retrieve returns the context set for a query, descending by score.
//
// When selectedText is non-empty the selection itself is the sole context:
// the vector store is never queried and the single synthetic result carries
// score 1. Otherwise the query is embedded, the index queried for topK
// nearest chunks, and results below minScore dropped. An empty result set is
// a valid outcome, not an error. Equal scores keep the index's return order.
//
// An embedding failure is surfaced to the caller; an index failure degrades
// to an empty context set so the pipeline can take the fallback path.
func (r *Retriever) Retrieve(ctx context.Context, queryText, selectedText string, topK int, minScore float32) ([]models.RetrievalResult, error) {
	if selectedText != "" {
		return []models.RetrievalResult{{
			Chunk: models.Chunk{
				ID:         models.SelectionChunkID,
				Text:       selectedText,
				SourcePath: models.SelectionSourcePath,
			},
			Score: 1,
		}}, nil
	}

	vector, err := r.embedder.EmbedQuery(ctx, queryText)
	if err != nil {
		return nil, err
	}

	results, err := r.index.Query(ctx, vector, topK, nil)
	if err != nil {
		r.log.Warn().Err(err).Msg("vector store query failed, proceeding with empty context")
		return nil, nil
	}

	filtered := results[:0]
	for _, res := range results {
		if res.Score >= minScore {
			filtered = append(filtered, res)
		}
	}
	return filtered, nil
}
