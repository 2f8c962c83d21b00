// internal/api/handler.go
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/speakloop/backend/internal/domain/counter"
	"github.com/speakloop/backend/internal/domain/phrase"
	practicesession "github.com/speakloop/backend/internal/domain/practice_session"
	"github.com/speakloop/backend/internal/id"
	"github.com/speakloop/backend/internal/service"
	"github.com/speakloop/backend/internal/store"
)

// Handler holds all dependencies needed by HTTP handlers.
// Instead of relying on package-level globals, every handler method
// receives its dependencies through this struct.
type Handler struct {
	store    *store.SQLiteStore
	progress *service.ProgressService
	logger   *slog.Logger
}

// NewHandler creates a Handler with the given dependencies.
func NewHandler(s *store.SQLiteStore, progress *service.ProgressService, logger *slog.Logger) *Handler {
	return &Handler{
		store:    s,
		progress: progress,
		logger:   logger,
	}
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON reads the request body into v. On failure it writes a 400 and
// returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	return true
}

// pathID reads an ID path parameter. A malformed ID gets a 400 and false.
func pathID(w http.ResponseWriter, r *http.Request, key string) (string, bool) {
	v := r.PathValue(key)
	if !id.Valid(v) {
		http.Error(w, "invalid "+key, http.StatusBadRequest)
		return "", false
	}
	return v, true
}

// handleStoreError checks for common store errors and writes the appropriate
// HTTP response. Returns true if an error was handled (caller should return).
func (h *Handler) handleStoreError(w http.ResponseWriter, err error, entity string) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, entity+" not found", http.StatusNotFound)
		return true
	}
	h.logger.Error("store error", "error", err, "entity", entity)
	http.Error(w, "internal error", http.StatusInternalServerError)
	return true
}

// handleServiceError maps session and selection errors onto status codes.
func (h *Handler) handleServiceError(w http.ResponseWriter, err error, entity string) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		http.Error(w, "session not found", http.StatusNotFound)
	case errors.Is(err, practicesession.ErrNotInSession):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, practicesession.ErrFinished):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, practicesession.ErrUnknownMode),
		errors.Is(err, practicesession.ErrUnknownSubMode),
		errors.Is(err, practicesession.ErrInvalidConfig),
		errors.Is(err, phrase.ErrEmptyText):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, counter.ErrFlushFailed):
		h.logger.Warn("flush failed", "error", err, "entity", entity)
		http.Error(w, "progress not saved yet; it will be retried", http.StatusServiceUnavailable)
	default:
		return h.handleStoreError(w, err, entity)
	}
	return true
}
