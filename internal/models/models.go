package models

// Chunk is the atomic retrieval unit: a bounded span of source document text
// with a stable, content-derived identity.
type Chunk struct {
	ID          string
	Text        string
	SourcePath  string
	HeadingPath []string
	Position    int
}

// RetrievalResult pairs a chunk with its similarity score in [0,1].
type RetrievalResult struct {
	Chunk Chunk
	Score float32
}

// Answer is the generator output for a single query.
type Answer struct {
	Text         string
	UsedChunkIDs []string
	TokenCount   int
	// Fallback marks the fixed "not found" answer produced without an LLM call.
	Fallback bool
}

// Source identifies where an answer came from, for citation display.
type Source struct {
	SourcePath  string   `json:"source_path"`
	HeadingPath []string `json:"heading_path"`
}

// SourceOf builds citation sources from retrieval results, skipping the
// synthetic selection chunk.
func SourcesOf(results []RetrievalResult) []Source {
	var sources []Source
	for _, r := range results {
		if r.Chunk.ID == SelectionChunkID {
			continue
		}
		sources = append(sources, Source{
			SourcePath:  r.Chunk.SourcePath,
			HeadingPath: r.Chunk.HeadingPath,
		})
	}
	return sources
}

// ChunkIDs returns the chunk IDs of the results in order.
func ChunkIDs(results []RetrievalResult) []string {
	if len(results) == 0 {
		return nil
	}
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.Chunk.ID
	}
	return ids
}

// IsSelectionOnly reports whether the context set is the synthetic chunk built
// from user-selected text rather than vector store results.
func IsSelectionOnly(results []RetrievalResult) bool {
	return len(results) == 1 && results[0].Chunk.ID == SelectionChunkID
}
