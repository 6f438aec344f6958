package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"docsite-rag/internal/history"
	"docsite-rag/internal/models"
	"docsite-rag/internal/rag"
)

// Pipeline is the query-answering core behind the HTTP surface.
type Pipeline interface {
	Ask(ctx context.Context, sessionID uuid.UUID, message, selectedText string) (*rag.Result, error)
	Search(ctx context.Context, query string, topK int) ([]models.RetrievalResult, error)
}

// SessionStore manages chat sessions; nil disables history-backed sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, userID string) (*history.ChatSession, error)
	GetSession(ctx context.Context, id uuid.UUID) (*history.ChatSession, error)
	TouchSession(ctx context.Context, id uuid.UUID) error
	Ping(ctx context.Context) error
}

// ServerConfig wires the API server's collaborators.
type ServerConfig struct {
	Logger     zerolog.Logger
	Pipeline   Pipeline
	Sessions   SessionStore // optional
	ChunkCount func() int   // vector store size, for health reporting
	RateRPS    float64
	RateBurst  int
}

// Server exposes the JSON API.
type Server struct {
	handler http.Handler
	limiter *rateLimiter
}

// NewServer builds the router and middleware stack. Health stays outside the
// rate limiter so probes are never throttled.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Pipeline == nil {
		return nil, errors.New("pipeline is required")
	}

	h := &handlers{
		log:        cfg.Logger,
		pipeline:   cfg.Pipeline,
		sessions:   cfg.Sessions,
		chunkCount: cfg.ChunkCount,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", h.chat)
	mux.HandleFunc("POST /api/search", h.search)
	mux.HandleFunc("POST /api/selected-text-question", h.selectedText)

	rps := cfg.RateRPS
	if rps <= 0 {
		rps = 2
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 20
	}
	rl := newRateLimiter(rps, burst)

	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.Logger)(handler)
	handler = loggingMiddleware(cfg.Logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(cfg.Logger)(handler)

	top := http.NewServeMux()
	top.HandleFunc("GET /api/health", h.health)
	top.Handle("/", handler)

	return &Server{handler: top, limiter: rl}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Close releases the server's background resources. Safe to call more than
// once.
func (s *Server) Close() {
	s.limiter.stop()
}
