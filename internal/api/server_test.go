package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsite-rag/internal/embedding"
	"docsite-rag/internal/history"
	"docsite-rag/internal/models"
	"docsite-rag/internal/rag"
)

type fakePipeline struct {
	result        *rag.Result
	askErr        error
	searchResults []models.RetrievalResult
	searchErr     error
	gotSession    uuid.UUID
	gotMessage    string
	gotSelected   string
}

func (f *fakePipeline) Ask(_ context.Context, sessionID uuid.UUID, message, selectedText string) (*rag.Result, error) {
	f.gotSession = sessionID
	f.gotMessage = message
	f.gotSelected = selectedText
	if f.askErr != nil {
		return nil, f.askErr
	}
	return f.result, nil
}

func (f *fakePipeline) Search(_ context.Context, _ string, _ int) ([]models.RetrievalResult, error) {
	return f.searchResults, f.searchErr
}

type fakeSessions struct {
	known   map[uuid.UUID]bool
	created []uuid.UUID
	pingErr error
	getErr  error
}

func (f *fakeSessions) CreateSession(_ context.Context, _ string) (*history.ChatSession, error) {
	id := uuid.New()
	f.created = append(f.created, id)
	return &history.ChatSession{SessionID: id, IsActive: true}, nil
}

func (f *fakeSessions) GetSession(_ context.Context, id uuid.UUID) (*history.ChatSession, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if !f.known[id] {
		return nil, history.ErrSessionNotFound
	}
	return &history.ChatSession{SessionID: id, IsActive: true}, nil
}

func (f *fakeSessions) TouchSession(_ context.Context, _ uuid.UUID) error { return nil }

func (f *fakeSessions) Ping(_ context.Context) error { return f.pingErr }

func okResult() *rag.Result {
	return &rag.Result{
		QueryID:    uuid.New(),
		Answer:     "grounded answer",
		Sources:    []models.Source{{SourcePath: "guide.md", HeadingPath: []string{"Guide"}}},
		Confidence: 0.8,
		Accepted:   true,
	}
}

func newTestServer(t *testing.T, pipeline Pipeline, sessions SessionStore) *Server {
	t.Helper()
	srv, err := NewServer(ServerConfig{
		Logger:     zerolog.Nop(),
		Pipeline:   pipeline,
		Sessions:   sessions,
		ChunkCount: func() int { return 7 },
		RateRPS:    100,
		RateBurst:  100,
	})
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestChatHappyPath(t *testing.T) {
	pipeline := &fakePipeline{result: okResult()}
	sessions := &fakeSessions{}
	srv := newTestServer(t, pipeline, sessions)

	rec := doJSON(t, srv, http.MethodPost, "/api/chat", map[string]any{"message": "how do I install?"})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[chatResponse](t, rec)
	assert.Equal(t, "grounded answer", resp.Answer)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "guide.md", resp.Sources[0].SourcePath)
	assert.InDelta(t, 0.8, resp.Confidence, 1e-9)
	assert.NotEmpty(t, resp.SessionID)

	assert.Equal(t, "how do I install?", pipeline.gotMessage)
	require.Len(t, sessions.created, 1)
	assert.Equal(t, sessions.created[0], pipeline.gotSession)
}

func TestChatWithoutSessionStore(t *testing.T) {
	pipeline := &fakePipeline{result: okResult()}
	srv := newTestServer(t, pipeline, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/chat", map[string]any{"message": "hello"})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[chatResponse](t, rec)
	assert.Empty(t, resp.SessionID)
	assert.NotEqual(t, uuid.Nil, pipeline.gotSession)
}

func TestChatResumesKnownSession(t *testing.T) {
	known := uuid.New()
	pipeline := &fakePipeline{result: okResult()}
	sessions := &fakeSessions{known: map[uuid.UUID]bool{known: true}}
	srv := newTestServer(t, pipeline, sessions)

	rec := doJSON(t, srv, http.MethodPost, "/api/chat", map[string]any{
		"message":    "continue",
		"session_id": known.String(),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[chatResponse](t, rec)
	assert.Equal(t, known.String(), resp.SessionID)
	assert.Empty(t, sessions.created)
}

func TestChatUnknownSessionStartsFresh(t *testing.T) {
	pipeline := &fakePipeline{result: okResult()}
	sessions := &fakeSessions{}
	srv := newTestServer(t, pipeline, sessions)

	rec := doJSON(t, srv, http.MethodPost, "/api/chat", map[string]any{
		"message":    "continue",
		"session_id": uuid.NewString(),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, sessions.created, 1)

	resp := decodeBody[chatResponse](t, rec)
	assert.Equal(t, sessions.created[0].String(), resp.SessionID)
}

func TestChatValidation(t *testing.T) {
	srv := newTestServer(t, &fakePipeline{result: okResult()}, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/chat", map[string]any{"message": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	long := make([]byte, maxMessageChars+1)
	for i := range long {
		long[i] = 'x'
	}
	rec = doJSON(t, srv, http.MethodPost, "/api/chat", map[string]any{"message": string(long)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatInvalidSessionID(t *testing.T) {
	srv := newTestServer(t, &fakePipeline{result: okResult()}, &fakeSessions{})
	rec := doJSON(t, srv, http.MethodPost, "/api/chat", map[string]any{
		"message":    "hello",
		"session_id": "not-a-uuid",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatUpstreamUnavailableMapsTo503(t *testing.T) {
	pipeline := &fakePipeline{askErr: embedding.ErrUnavailable}
	srv := newTestServer(t, pipeline, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/chat", map[string]any{"message": "hello"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	resp := decodeBody[errorResponse](t, rec)
	assert.Equal(t, msgUnavailable, resp.Error)
	assert.NotContains(t, rec.Body.String(), "embedding")
}

func TestChatInternalErrorIsOpaque(t *testing.T) {
	pipeline := &fakePipeline{askErr: errors.New("pq: connection refused at 10.0.0.3")}
	srv := newTestServer(t, pipeline, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/chat", map[string]any{"message": "hello"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.3")
}

func TestSelectedTextHappyPath(t *testing.T) {
	result := okResult()
	result.Sources = nil
	result.SelectionOnly = true
	pipeline := &fakePipeline{result: result}
	srv := newTestServer(t, pipeline, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/selected-text-question", map[string]any{
		"question":      "what does this mean?",
		"selected_text": "a highlighted passage",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[chatResponse](t, rec)
	assert.Equal(t, "grounded answer", resp.Answer)
	assert.Empty(t, resp.Sources)
	assert.Equal(t, "a highlighted passage", pipeline.gotSelected)
}

func TestSelectedTextValidation(t *testing.T) {
	srv := newTestServer(t, &fakePipeline{result: okResult()}, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/selected-text-question", map[string]any{
		"question": "what does this mean?",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/selected-text-question", map[string]any{
		"selected_text": "passage",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSelectedTextUnknownSessionIs404(t *testing.T) {
	srv := newTestServer(t, &fakePipeline{result: okResult()}, &fakeSessions{})

	rec := doJSON(t, srv, http.MethodPost, "/api/selected-text-question", map[string]any{
		"question":      "what does this mean?",
		"selected_text": "passage",
		"session_id":    uuid.NewString(),
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearchReturnsResults(t *testing.T) {
	pipeline := &fakePipeline{searchResults: []models.RetrievalResult{
		{Chunk: models.Chunk{ID: "c1", Text: "body", SourcePath: "a.md", HeadingPath: []string{"A"}, Position: 2}, Score: 0.9},
	}}
	srv := newTestServer(t, pipeline, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/search", map[string]any{"query": "body"})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[searchResponse](t, rec)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "c1", resp.Results[0].ChunkID)
	assert.Equal(t, "a.md", resp.Results[0].SourcePath)
	assert.Equal(t, 2, resp.Results[0].Position)
	assert.InDelta(t, 0.9, float64(resp.Results[0].Score), 1e-6)
}

func TestSearchEmptyQuery(t *testing.T) {
	srv := newTestServer(t, &fakePipeline{}, nil)
	rec := doJSON(t, srv, http.MethodPost, "/api/search", map[string]any{"query": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthWithoutDatabase(t *testing.T) {
	srv := newTestServer(t, &fakePipeline{}, nil)
	rec := doJSON(t, srv, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[healthResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "disabled", resp.Services["database"])
	assert.Equal(t, "connected", resp.Services["vector_store"])
	assert.Equal(t, 7, resp.Chunks)
}

func TestHealthDegradedOnDatabaseError(t *testing.T) {
	srv := newTestServer(t, &fakePipeline{}, &fakeSessions{pingErr: errors.New("down")})
	rec := doJSON(t, srv, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[healthResponse](t, rec)
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "error", resp.Services["database"])
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &fakePipeline{}, nil)
	rec := doJSON(t, srv, http.MethodGet, "/api/chat", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRateLimitExceeded(t *testing.T) {
	pipeline := &fakePipeline{result: okResult()}
	srv, err := NewServer(ServerConfig{
		Logger:    zerolog.Nop(),
		Pipeline:  pipeline,
		RateRPS:   1,
		RateBurst: 1,
	})
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	first := doJSON(t, srv, http.MethodPost, "/api/chat", map[string]any{"message": "one"})
	assert.Equal(t, http.StatusOK, first.Code)

	second := doJSON(t, srv, http.MethodPost, "/api/chat", map[string]any{"message": "two"})
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestHealthBypassesRateLimit(t *testing.T) {
	srv, err := NewServer(ServerConfig{
		Logger:    zerolog.Nop(),
		Pipeline:  &fakePipeline{},
		RateRPS:   1,
		RateBurst: 1,
	})
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	for i := 0; i < 5; i++ {
		rec := doJSON(t, srv, http.MethodGet, "/api/health", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestCloseStopsEvictionAndIsIdempotent(t *testing.T) {
	srv := newTestServer(t, &fakePipeline{result: okResult()}, nil)
	srv.Close()
	srv.Close()

	select {
	case <-srv.limiter.done:
	default:
		t.Fatal("eviction goroutine was not signalled to stop")
	}

	// The limiter still answers after shutdown of its background loop.
	assert.True(t, srv.limiter.allow("198.51.100.7"))
}
