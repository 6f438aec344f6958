package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	chromem "github.com/philippgille/chromem-go"
	"github.com/rs/zerolog"

	"docsite-rag/internal/models"
)

// ErrSourceInconsistent marks a source path whose delete-then-upsert cycle
// failed partway. The source must be re-ingested wholesale.
var ErrSourceInconsistent = errors.New("vector store source inconsistent")

const (
	metaSourcePath  = "source_path"
	metaHeadingPath = "heading_path"
	metaPosition    = "position"

	// headingSep joins heading path elements inside chromem's flat
	// string-to-string metadata.
	headingSep = " > "
)

// Store wraps a chromem-go collection as the vector index. Metadata carries
// source path and heading path alongside each vector so retrieval results are
// citable without a second lookup.
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
	log        zerolog.Logger
}

// New opens (or creates) the collection. inMemory is used by tests and
// dry runs; the server uses the persistent form.
func New(path, collectionName string, inMemory bool, log zerolog.Logger) (*Store, error) {
	var db *chromem.DB
	var err error
	if inMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("opening vector database: %w", err)
		}
	}

	collection, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("creating collection %s: %w", collectionName, err)
	}

	return &Store{db: db, collection: collection, log: log}, nil
}

// Upsert stores one vector per chunk, keyed by chunk ID. Existing IDs are
// overwritten.
func (s *Store) Upsert(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d != %d", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(chunks))
	for i, chunk := range chunks {
		docs[i] = chromem.Document{
			ID:        chunk.ID,
			Content:   chunk.Text,
			Embedding: vectors[i],
			Metadata: map[string]string{
				metaSourcePath:  chunk.SourcePath,
				metaHeadingPath: strings.Join(chunk.HeadingPath, headingSep),
				metaPosition:    strconv.Itoa(chunk.Position),
			},
		}
	}

	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("adding documents: %w", err)
	}
	return nil
}

// Query returns up to topK nearest chunks by cosine similarity, in the order
// the underlying index ranks them. topK is clamped to the collection size;
// an empty collection yields an empty result, not an error.
func (s *Store) Query(ctx context.Context, vector []float32, topK int, filter map[string]string) ([]models.RetrievalResult, error) {
	count := s.collection.Count()
	if count == 0 || topK <= 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}

	results, err := s.collection.QueryEmbedding(ctx, vector, topK, filter, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection: %w", err)
	}

	out := make([]models.RetrievalResult, 0, len(results))
	for _, r := range results {
		score := r.Similarity
		if score < 0 {
			score = 0
		}
		out = append(out, models.RetrievalResult{
			Chunk: models.Chunk{
				ID:          r.ID,
				Text:        r.Content,
				SourcePath:  r.Metadata[metaSourcePath],
				HeadingPath: splitHeadingPath(r.Metadata[metaHeadingPath]),
				Position:    atoiOrZero(r.Metadata[metaPosition]),
			},
			Score: score,
		})
	}
	return out, nil
}

// DeleteBySource removes every chunk stored for the given source path.
func (s *Store) DeleteBySource(ctx context.Context, sourcePath string) error {
	if s.collection.Count() == 0 {
		return nil
	}
	err := s.collection.Delete(ctx, map[string]string{metaSourcePath: sourcePath}, nil)
	if err != nil {
		return fmt.Errorf("deleting source %s: %w", sourcePath, err)
	}
	return nil
}

// ReplaceSource swaps the stored chunk set of a source path for the given
// one. The delete and upsert form one logical unit: a failure partway marks
// the source inconsistent and the caller must retry the whole source, never
// commit part of it.
func (s *Store) ReplaceSource(ctx context.Context, sourcePath string, chunks []models.Chunk, vectors [][]float32) error {
	if err := s.DeleteBySource(ctx, sourcePath); err != nil {
		return fmt.Errorf("%w: %v", ErrSourceInconsistent, err)
	}
	if err := s.Upsert(ctx, chunks, vectors); err != nil {
		return fmt.Errorf("%w: %v", ErrSourceInconsistent, err)
	}
	s.log.Debug().Str("source", sourcePath).Int("chunks", len(chunks)).Msg("replaced source in vector store")
	return nil
}

// Count reports the number of stored chunks.
func (s *Store) Count() int {
	return s.collection.Count()
}

func splitHeadingPath(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, headingSep)
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
