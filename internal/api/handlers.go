package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"docsite-rag/internal/history"
	"docsite-rag/internal/models"
)

const (
	maxMessageChars  = 4000
	maxSelectedChars = 8000
)

type handlers struct {
	log        zerolog.Logger
	pipeline   Pipeline
	sessions   SessionStore
	chunkCount func() int
}

type chatRequest struct {
	Message      string `json:"message"`
	SelectedText string `json:"selected_text,omitempty"`
	SessionID    string `json:"session_id,omitempty"`
}

type chatResponse struct {
	Answer     string          `json:"answer"`
	Sources    []models.Source `json:"sources"`
	Confidence float64         `json:"confidence"`
	SessionID  string          `json:"session_id,omitempty"`
}

func (h *handlers) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		writeErrorMessage(w, http.StatusBadRequest, "message is required")
		return
	}
	if len(req.Message) > maxMessageChars {
		writeErrorMessage(w, http.StatusBadRequest, "message is too long")
		return
	}
	if len(req.SelectedText) > maxSelectedChars {
		writeErrorMessage(w, http.StatusBadRequest, "selected text is too long")
		return
	}

	sessionID, ok := h.resolveSession(r.Context(), w, req.SessionID)
	if !ok {
		return
	}

	result, err := h.pipeline.Ask(r.Context(), sessionID, req.Message, req.SelectedText)
	if err != nil {
		h.log.Error().Err(err).Msg("chat request failed")
		writeUpstreamError(w, err)
		return
	}

	resp := chatResponse{
		Answer:     result.Answer,
		Sources:    result.Sources,
		Confidence: result.Confidence,
	}
	if resp.Sources == nil {
		resp.Sources = []models.Source{}
	}
	if h.sessions != nil {
		resp.SessionID = sessionID.String()
	}
	_ = writeJSON(w, http.StatusOK, resp)
}

type selectedTextRequest struct {
	Question     string `json:"question"`
	SelectedText string `json:"selected_text"`
	SessionID    string `json:"session_id,omitempty"`
}

// selectedText answers strictly from the passage the reader highlighted.
// The vector store is never consulted, so answers carry no sources.
func (h *handlers) selectedText(w http.ResponseWriter, r *http.Request) {
	var req selectedTextRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Question = strings.TrimSpace(req.Question)
	req.SelectedText = strings.TrimSpace(req.SelectedText)
	switch {
	case req.Question == "":
		writeErrorMessage(w, http.StatusBadRequest, "question is required")
		return
	case req.SelectedText == "":
		writeErrorMessage(w, http.StatusBadRequest, "selected_text is required")
		return
	case len(req.Question) > maxMessageChars:
		writeErrorMessage(w, http.StatusBadRequest, "question is too long")
		return
	case len(req.SelectedText) > maxSelectedChars:
		writeErrorMessage(w, http.StatusBadRequest, "selected text is too long")
		return
	}

	sessionID := uuid.New()
	if req.SessionID != "" && h.sessions != nil {
		parsed, err := uuid.Parse(req.SessionID)
		if err != nil {
			writeErrorMessage(w, http.StatusBadRequest, "invalid session_id")
			return
		}
		if _, err := h.sessions.GetSession(r.Context(), parsed); err != nil {
			if errors.Is(err, history.ErrSessionNotFound) {
				writeErrorMessage(w, http.StatusNotFound, "session not found")
				return
			}
			h.log.Error().Err(err).Msg("session lookup failed")
			writeErrorMessage(w, http.StatusInternalServerError, msgInternal)
			return
		}
		sessionID = parsed
	}

	result, err := h.pipeline.Ask(r.Context(), sessionID, req.Question, req.SelectedText)
	if err != nil {
		h.log.Error().Err(err).Msg("selected-text request failed")
		writeUpstreamError(w, err)
		return
	}

	resp := chatResponse{
		Answer:     result.Answer,
		Sources:    []models.Source{},
		Confidence: result.Confidence,
	}
	if h.sessions != nil {
		resp.SessionID = sessionID.String()
	}
	_ = writeJSON(w, http.StatusOK, resp)
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

type searchResult struct {
	ChunkID     string   `json:"chunk_id"`
	Text        string   `json:"text"`
	SourcePath  string   `json:"source_path"`
	HeadingPath []string `json:"heading_path"`
	Position    int      `json:"position"`
	Score       float32  `json:"score"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

// search exposes retrieval without generation, for debugging relevance.
func (h *handlers) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeErrorMessage(w, http.StatusBadRequest, "query is required")
		return
	}
	if len(req.Query) > maxMessageChars {
		writeErrorMessage(w, http.StatusBadRequest, "query is too long")
		return
	}

	results, err := h.pipeline.Search(r.Context(), req.Query, req.TopK)
	if err != nil {
		h.log.Error().Err(err).Msg("search request failed")
		writeUpstreamError(w, err)
		return
	}

	resp := searchResponse{Results: make([]searchResult, 0, len(results))}
	for _, res := range results {
		resp.Results = append(resp.Results, searchResult{
			ChunkID:     res.Chunk.ID,
			Text:        res.Chunk.Text,
			SourcePath:  res.Chunk.SourcePath,
			HeadingPath: res.Chunk.HeadingPath,
			Position:    res.Chunk.Position,
			Score:       res.Score,
		})
	}
	_ = writeJSON(w, http.StatusOK, resp)
}

type healthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
	Chunks   int               `json:"chunks"`
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:   "ok",
		Services: map[string]string{"vector_store": "connected"},
	}
	if h.chunkCount != nil {
		resp.Chunks = h.chunkCount()
	}

	if h.sessions == nil {
		resp.Services["database"] = "disabled"
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.sessions.Ping(ctx); err != nil {
			resp.Services["database"] = "error"
			resp.Status = "degraded"
		} else {
			resp.Services["database"] = "connected"
		}
	}

	_ = writeJSON(w, http.StatusOK, resp)
}

// resolveSession returns the session to attribute the query to. Unknown or
// missing IDs start a fresh session; malformed IDs are rejected. Without a
// session store every query gets a throwaway ID.
func (h *handlers) resolveSession(ctx context.Context, w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	if h.sessions == nil {
		return uuid.New(), true
	}

	if raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeErrorMessage(w, http.StatusBadRequest, "invalid session_id")
			return uuid.Nil, false
		}
		_, err = h.sessions.GetSession(ctx, id)
		if err == nil {
			if touchErr := h.sessions.TouchSession(ctx, id); touchErr != nil {
				h.log.Warn().Err(touchErr).Stringer("session_id", id).Msg("failed to touch session")
			}
			return id, true
		}
		if !errors.Is(err, history.ErrSessionNotFound) {
			h.log.Error().Err(err).Msg("session lookup failed")
			writeErrorMessage(w, http.StatusInternalServerError, msgInternal)
			return uuid.Nil, false
		}
	}

	session, err := h.sessions.CreateSession(ctx, "")
	if err != nil {
		h.log.Error().Err(err).Msg("failed to create session")
		writeErrorMessage(w, http.StatusInternalServerError, msgInternal)
		return uuid.Nil, false
	}
	return session.SessionID, true
}
