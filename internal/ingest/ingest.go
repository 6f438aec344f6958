package ingest

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/rs/zerolog"

	"docsite-rag/internal/embedding"
	"docsite-rag/internal/models"
	"docsite-rag/internal/parser"
)

// Chunker splits a parsed document into retrieval chunks.
type Chunker interface {
	Chunk(doc *parser.Document) []models.Chunk
}

// Embedder embeds document chunks in document mode.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Index is the write side of the vector store.
type Index interface {
	ReplaceSource(ctx context.Context, sourcePath string, chunks []models.Chunk, vectors [][]float32) error
}

// Summary reports what one ingestion run did.
type Summary struct {
	Sources int
	Chunks  int
	Skipped int
	// Failed lists source paths whose vector store replacement did not
	// complete; they must be re-ingested wholesale.
	Failed []string
}

// Ingester runs the offline ingestion batch: parse → chunk → embed →
// replace-source upsert, one source path at a time so two re-ingestions of
// the same document can never interleave.
type Ingester struct {
	chunker  Chunker
	embedder Embedder
	index    Index
	log      zerolog.Logger
}

func New(chunker Chunker, embedder Embedder, index Index, log zerolog.Logger) *Ingester {
	return &Ingester{chunker: chunker, embedder: embedder, index: index, log: log}
}

// IngestDir scans root for supported document formats and ingests each one.
// Unparseable or empty documents are skipped and logged, never fatal to the
// batch. An exhausted embedding provider aborts the run, since every
// remaining source would fail the same way.
func (ing *Ingester) IngestDir(ctx context.Context, root string) (Summary, error) {
	var summary Summary

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !parser.Supported(filepath.Ext(path)) {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		sourcePath, relErr := filepath.Rel(root, path)
		if relErr != nil {
			sourcePath = path
		}

		count, ingestErr := ing.ingestFile(ctx, path, sourcePath)
		switch {
		case errors.Is(ingestErr, embedding.ErrUnavailable):
			return ingestErr
		case ingestErr != nil:
			ing.log.Error().Err(ingestErr).Str("source", sourcePath).Msg("source failed, marked for retry")
			summary.Failed = append(summary.Failed, sourcePath)
			return nil
		case count == 0:
			ing.log.Warn().Str("source", sourcePath).Msg("document empty or unparseable, skipped")
			summary.Skipped++
			return nil
		}

		summary.Sources++
		summary.Chunks += count
		ing.log.Info().Str("source", sourcePath).Int("chunks", count).Msg("source ingested")
		return nil
	})

	return summary, err
}

// ingestFile processes one document. Re-running on unchanged content derives
// the same chunk IDs and leaves exactly the new chunk set in the store.
func (ing *Ingester) ingestFile(ctx context.Context, path, sourcePath string) (int, error) {
	doc, err := parser.Parse(path)
	if err != nil {
		ing.log.Warn().Err(err).Str("source", sourcePath).Msg("parse failed, skipping document")
		return 0, nil
	}
	// Chunk IDs derive from the root-relative source path so they stay
	// stable across machines and re-ingestions.
	doc.SourcePath = sourcePath

	chunks := ing.chunker.Chunk(doc)
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := ing.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return 0, err
	}

	if err := ing.index.ReplaceSource(ctx, sourcePath, chunks, vectors); err != nil {
		return 0, err
	}
	return len(chunks), nil
}
