package history

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ChatSession groups the queries of one frontend conversation. Sessions are
// deactivated, never deleted, while queries still reference them.
type ChatSession struct {
	bun.BaseModel `bun:"table:chat_sessions,alias:cs"`

	SessionID uuid.UUID      `bun:"session_id,pk,type:uuid"`
	UserID    string         `bun:"user_id,nullzero"`
	CreatedAt time.Time      `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time      `bun:"updated_at,notnull,default:current_timestamp"`
	IsActive  bool           `bun:"is_active,notnull,default:true"`
	Metadata  map[string]any `bun:"metadata,type:jsonb,nullzero"`
}

// UserQuery records one incoming question with the context chunk IDs the
// retriever fixed for it.
type UserQuery struct {
	bun.BaseModel `bun:"table:user_queries,alias:uq"`

	QueryID         uuid.UUID `bun:"query_id,pk,type:uuid"`
	SessionID       uuid.UUID `bun:"session_id,notnull,type:uuid"`
	Content         string    `bun:"content,notnull"`
	SelectedText    string    `bun:"selected_text,nullzero"`
	Timestamp       time.Time `bun:"timestamp,notnull,default:current_timestamp"`
	ContextChunkIDs []string  `bun:"context_chunk_ids,array"`
}

// Response records the validated answer for a query. SourceChunkIDs is
// always a subset of the query's context chunk IDs.
type Response struct {
	bun.BaseModel `bun:"table:responses,alias:r"`

	ResponseID      uuid.UUID `bun:"response_id,pk,type:uuid"`
	QueryID         uuid.UUID `bun:"query_id,notnull,type:uuid"`
	Content         string    `bun:"content,notnull"`
	SourceChunkIDs  []string  `bun:"source_chunk_ids,array"`
	ConfidenceScore float64   `bun:"confidence_score,notnull"`
	Timestamp       time.Time `bun:"timestamp,notnull,default:current_timestamp"`
	TokenCount      int       `bun:"token_count"`
}
