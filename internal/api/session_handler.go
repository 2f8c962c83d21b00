package api

import (
	"net/http"

	practicesession "github.com/speakloop/backend/internal/domain/practice_session"
	"github.com/speakloop/backend/internal/service"
)

// ── Request / Response types ────────────────────────────────────────────────

type CreateSessionRequest struct {
	UserID           string `json:"user_id"`
	Language         string `json:"language"`
	Mode             string `json:"mode"`
	SubMode          string `json:"sub_mode,omitempty"`
	Count            int    `json:"count,omitempty"`
	MaxRepetitions   *int   `json:"max_repetitions,omitempty"`
	ExcludeDoneToday bool   `json:"exclude_done_today"`
	Order            string `json:"order,omitempty"`
}

type TapRequest struct {
	PhraseID string `json:"phrase_id"`
}

type AnswerRequest struct {
	PhraseID string `json:"phrase_id"`
	Correct  bool   `json:"correct"`
}

// ── Handlers ────────────────────────────────────────────────────────────────

// POST /sessions
//
// A selection that finds nothing still answers 200 with an empty id and an
// outcome of no_candidates, all_done or filtered_out.
func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" || req.Language == "" {
		http.Error(w, "user_id and language are required", http.StatusBadRequest)
		return
	}
	if req.Count < 0 {
		http.Error(w, "count must not be negative", http.StatusBadRequest)
		return
	}

	view, err := h.progress.StartSession(r.Context(), service.StartRequest{
		UserID:           req.UserID,
		Language:         req.Language,
		Mode:             practicesession.Mode(req.Mode),
		SubMode:          practicesession.SubMode(req.SubMode),
		Count:            req.Count,
		MaxRepetitions:   req.MaxRepetitions,
		ExcludeDoneToday: req.ExcludeDoneToday,
		Order:            practicesession.Order(req.Order),
	})
	if h.handleServiceError(w, err, "user") {
		return
	}

	status := http.StatusOK
	if view.ID != "" {
		status = http.StatusCreated
	}
	respondJSON(w, status, view)
}

// GET /sessions/{sessionID}
func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathID(w, r, "sessionID")
	if !ok {
		return
	}
	view, err := h.progress.GetSession(sessionID)
	if h.handleServiceError(w, err, "session") {
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// POST /sessions/{sessionID}/taps
func (h *Handler) tap(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathID(w, r, "sessionID")
	if !ok {
		return
	}
	var req TapRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.PhraseID == "" {
		http.Error(w, "phrase_id is required", http.StatusBadRequest)
		return
	}

	res, err := h.progress.Tap(r.Context(), sessionID, req.PhraseID)
	if h.handleServiceError(w, err, "session") {
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// POST /sessions/{sessionID}/answers
func (h *Handler) answer(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathID(w, r, "sessionID")
	if !ok {
		return
	}
	var req AnswerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.PhraseID == "" {
		http.Error(w, "phrase_id is required", http.StatusBadRequest)
		return
	}

	res, err := h.progress.Answer(r.Context(), sessionID, req.PhraseID, req.Correct)
	if h.handleServiceError(w, err, "session") {
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// POST /sessions/{sessionID}/next
func (h *Handler) next(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathID(w, r, "sessionID")
	if !ok {
		return
	}
	view, err := h.progress.Next(r.Context(), sessionID)
	if h.handleServiceError(w, err, "session") {
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// POST /sessions/{sessionID}/finish
func (h *Handler) finish(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathID(w, r, "sessionID")
	if !ok {
		return
	}
	summary, err := h.progress.Finish(r.Context(), sessionID)
	if h.handleServiceError(w, err, "session") {
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// DELETE /sessions/{sessionID}
func (h *Handler) abandon(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathID(w, r, "sessionID")
	if !ok {
		return
	}
	if h.handleServiceError(w, h.progress.Abandon(sessionID), "session") {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
