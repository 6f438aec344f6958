package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"docsite-rag/internal/config"
)

// ErrSessionNotFound is returned when a session ID references no row.
var ErrSessionNotFound = errors.New("session not found")

// Store persists sessions, queries and responses in Postgres. The pipeline
// only writes; nothing here feeds back into answer generation.
type Store struct {
	db *bun.DB
}

// Connect opens the Postgres connection for the history store.
func Connect(cfg *config.DatabaseConfig) *Store {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
	db := bun.NewDB(sqldb, pgdialect.New())
	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return &Store{db: db}
}

// Init creates the three tables if they do not exist. Responses cascade on
// query deletion; sessions are referenced, not cascaded, since they are only
// ever deactivated.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().
		Model((*ChatSession)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("creating chat_sessions: %w", err)
	}

	if _, err := s.db.NewCreateTable().
		Model((*UserQuery)(nil)).
		IfNotExists().
		ForeignKey(`("session_id") REFERENCES "chat_sessions" ("session_id")`).
		Exec(ctx); err != nil {
		return fmt.Errorf("creating user_queries: %w", err)
	}

	if _, err := s.db.NewCreateTable().
		Model((*Response)(nil)).
		IfNotExists().
		ForeignKey(`("query_id") REFERENCES "user_queries" ("query_id") ON DELETE CASCADE`).
		Exec(ctx); err != nil {
		return fmt.Errorf("creating responses: %w", err)
	}

	return nil
}

// Ping verifies the database connection, for health reporting.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateSession inserts a new active session.
func (s *Store) CreateSession(ctx context.Context, userID string) (*ChatSession, error) {
	now := time.Now().UTC()
	session := &ChatSession{
		SessionID: uuid.New(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
		IsActive:  true,
	}
	if _, err := s.db.NewInsert().Model(session).Exec(ctx); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return session, nil
}

// GetSession loads a session by ID.
func (s *Store) GetSession(ctx context.Context, id uuid.UUID) (*ChatSession, error) {
	session := new(ChatSession)
	err := s.db.NewSelect().Model(session).Where("session_id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	return session, nil
}

// TouchSession bumps a session's updated_at.
func (s *Store) TouchSession(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.NewUpdate().
		Model((*ChatSession)(nil)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("session_id = ?", id).
		Exec(ctx)
	return err
}

// DeactivateSession marks a session inactive. The row stays while queries
// reference it.
func (s *Store) DeactivateSession(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.NewUpdate().
		Model((*ChatSession)(nil)).
		Set("is_active = false").
		Set("updated_at = ?", time.Now().UTC()).
		Where("session_id = ?", id).
		Exec(ctx)
	return err
}

// RecordQuery inserts a user query row.
func (s *Store) RecordQuery(ctx context.Context, query *UserQuery) error {
	if _, err := s.db.NewInsert().Model(query).Exec(ctx); err != nil {
		return fmt.Errorf("recording query: %w", err)
	}
	return nil
}

// RecordResponse inserts a response row.
func (s *Store) RecordResponse(ctx context.Context, response *Response) error {
	if _, err := s.db.NewInsert().Model(response).Exec(ctx); err != nil {
		return fmt.Errorf("recording response: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
