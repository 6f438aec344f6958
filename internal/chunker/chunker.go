package chunker

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"docsite-rag/internal/models"
	"docsite-rag/internal/parser"
)

const (
	defaultMaxChars = 1000
	defaultOverlap  = 200
)

// Chunker splits parsed documents into retrieval chunks. Semantic boundaries
// (the parser's heading sections) are honored first; oversized sections are
// then split to the character budget with trailing overlap carried into the
// next chunk so answers spanning a boundary remain retrievable.
type Chunker struct {
	maxChars int
	overlap  int
}

func New(maxChars, overlap int) *Chunker {
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	if overlap < 0 {
		overlap = 0
	}
	// The clean-break lookback may pull a piece boundary back by up to a
	// tenth of the budget; overlap must stay below that reduced piece size
	// or the split cannot advance.
	if overlap+maxChars/10 >= maxChars {
		overlap = maxChars / 2
	}
	return &Chunker{maxChars: maxChars, overlap: overlap}
}

// Chunk produces the ordered chunk sequence for a document. Chunking is
// deterministic: identical input yields identical IDs and text.
func (c *Chunker) Chunk(doc *parser.Document) []models.Chunk {
	var chunks []models.Chunk
	position := 0
	for _, section := range doc.Sections {
		for _, piece := range c.split(section.Text) {
			chunks = append(chunks, models.Chunk{
				ID:          chunkID(doc.SourcePath, position, piece),
				Text:        piece,
				SourcePath:  doc.SourcePath,
				HeadingPath: section.HeadingPath,
				Position:    position,
			})
			position++
		}
	}
	return chunks
}

// split cuts content into pieces of at most maxChars, preferring a whitespace
// or sentence break near the boundary, with overlap characters repeated at
// the start of the following piece.
func (c *Chunker) split(content string) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	if len(content) <= c.maxChars {
		return []string{content}
	}

	var pieces []string
	start := 0
	for start < len(content) {
		end := min(start+c.maxChars, len(content))

		// Look for a clean break within the last tenth of the piece.
		if end < len(content) {
			lookBack := min(c.maxChars/10, end-start)
			for i := end - 1; i >= end-lookBack && i > start; i-- {
				if content[i] == ' ' || content[i] == '\n' || content[i] == '.' {
					end = i + 1
					break
				}
			}
		}

		piece := strings.TrimSpace(content[start:end])
		if piece != "" {
			pieces = append(pieces, piece)
		}

		if end >= len(content) {
			break
		}
		// Overlap must never move the next start at or before the current
		// one; drop it for this boundary rather than stall.
		next := end - c.overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return pieces
}

// chunkID derives a stable identifier from the source path, chunk position
// and a digest of the text, so re-ingesting unchanged content yields the same
// ID and changed content gets a new one.
func chunkID(sourcePath string, position int, text string) string {
	sum := sha256.Sum256([]byte(text))
	name := fmt.Sprintf("%s#%d#%x", sourcePath, position, sum[:8])
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}
