package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"docsite-rag/internal/embedding"
	"docsite-rag/internal/llmservice"
)

const (
	msgInternal    = "Something went wrong. Please try again."
	msgUnavailable = "The answering service is temporarily unavailable. Please try again shortly."
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes to a buffer first so a marshalling failure never leaves a
// half-written body behind a 200 status line.
func writeJSON(w http.ResponseWriter, status int, v any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, msgInternal, http.StatusInternalServerError)
		return err
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

func writeErrorMessage(w http.ResponseWriter, status int, message string) {
	_ = writeJSON(w, status, errorResponse{Error: message})
}

// writeUpstreamError maps pipeline failures onto user-safe responses.
// Provider details never reach the client.
func writeUpstreamError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, embedding.ErrUnavailable),
		errors.Is(err, llmservice.ErrGenerationUnavailable):
		writeErrorMessage(w, http.StatusServiceUnavailable, msgUnavailable)
	default:
		writeErrorMessage(w, http.StatusInternalServerError, msgInternal)
	}
}

// decodeJSON reads a request body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
