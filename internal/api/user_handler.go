package api

import (
	"net/http"
	"time"

	"github.com/speakloop/backend/internal/domain/calendar"
	"github.com/speakloop/backend/internal/domain/level"
	"github.com/speakloop/backend/internal/domain/phrase"
)

// ── Request / Response types ────────────────────────────────────────────────

type CreateUserRequest struct {
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

type UpdateUserSettingsRequest struct {
	Timezone           string `json:"timezone"`
	IncludePreexisting bool   `json:"include_preexisting"`
}

type UserResponse struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Timezone           string     `json:"timezone"`
	EffectiveTimezone  string     `json:"effective_timezone"`
	CreatedAt          time.Time  `json:"created_at"`
	PracticeStartAt    *time.Time `json:"practice_start_at,omitempty"`
	IncludePreexisting bool       `json:"include_preexisting"`
}

type CreatePhraseRequest struct {
	Language    string `json:"language"`
	Text        string `json:"text"`
	Translation string `json:"translation"`
}

type PhraseResponse struct {
	ID               string      `json:"id"`
	Language         string      `json:"language"`
	Text             string      `json:"text"`
	Translation      string      `json:"translation"`
	CorrectCount     int         `json:"correct_count"`
	TotalRepetitions int         `json:"total_repetitions"`
	DailyRepetitions int         `json:"daily_repetitions"`
	LastActivityAt   *time.Time  `json:"last_activity_at,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	Level            level.Level `json:"level"`
}

func toUserResponse(u *phrase.User) UserResponse {
	return UserResponse{
		ID:                 u.ID,
		Name:               u.Name,
		Timezone:           u.Timezone,
		EffectiveTimezone:  u.Zone().Name,
		CreatedAt:          u.CreatedAt,
		PracticeStartAt:    u.PracticeStartAt,
		IncludePreexisting: u.IncludePreexisting,
	}
}

func toPhraseResponse(p *phrase.Phrase, now time.Time, loc *time.Location) PhraseResponse {
	return PhraseResponse{
		ID:               p.ID,
		Language:         p.Language,
		Text:             p.Text,
		Translation:      p.Translation,
		CorrectCount:     p.CorrectCount,
		TotalRepetitions: p.TotalRepetitions,
		DailyRepetitions: p.DailyAsOf(now, loc),
		LastActivityAt:   p.LastActivityAt,
		CreatedAt:        p.CreatedAt,
		Level:            p.Level(),
	}
}

// validTimezone rejects non-empty names that do not resolve.
func validTimezone(w http.ResponseWriter, tz string) bool {
	if tz != "" && !calendar.IsValidTimezone(tz) {
		http.Error(w, "invalid timezone", http.StatusBadRequest)
		return false
	}
	return true
}

// ── Handlers ────────────────────────────────────────────────────────────────

// POST /users
func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	if !validTimezone(w, req.Timezone) {
		return
	}
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}

	u := phrase.NewUser(req.Name, req.Timezone, time.Now())
	if h.handleStoreError(w, h.store.SaveUser(r.Context(), u), "user") {
		return
	}

	respondJSON(w, http.StatusCreated, toUserResponse(u))
}

// GET /users/{userID}
func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	u, err := h.store.GetUser(r.Context(), userID)
	if h.handleStoreError(w, err, "user") {
		return
	}
	respondJSON(w, http.StatusOK, toUserResponse(u))
}

// PATCH /users/{userID}/settings
func (h *Handler) updateUserSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	var req UpdateUserSettingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Timezone == "" {
		http.Error(w, "timezone is required", http.StatusBadRequest)
		return
	}
	if !validTimezone(w, req.Timezone) {
		return
	}

	err := h.store.UpdateUserSettings(r.Context(), userID, req.Timezone, req.IncludePreexisting)
	if h.handleStoreError(w, err, "user") {
		return
	}

	u, err := h.store.GetUser(r.Context(), userID)
	if h.handleStoreError(w, err, "user") {
		return
	}
	respondJSON(w, http.StatusOK, toUserResponse(u))
}

// GET /users/{userID}/streak
func (h *Handler) getStreak(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	view, err := h.progress.Streak(r.Context(), userID)
	if h.handleStoreError(w, err, "user") {
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// GET /users/{userID}/levels?language=en
func (h *Handler) getLevelSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	language := r.URL.Query().Get("language")
	if language == "" {
		http.Error(w, "language is required", http.StatusBadRequest)
		return
	}

	buckets, err := h.progress.LevelSummary(r.Context(), userID, language)
	if h.handleStoreError(w, err, "user") {
		return
	}
	respondJSON(w, http.StatusOK, buckets)
}

// POST /users/{userID}/phrases
func (h *Handler) createPhrase(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	u, err := h.store.GetUser(r.Context(), userID)
	if h.handleStoreError(w, err, "user") {
		return
	}

	var req CreatePhraseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Language == "" {
		http.Error(w, "language is required", http.StatusBadRequest)
		return
	}

	now := time.Now()
	p, err := phrase.New(u.ID, req.Language, req.Text, req.Translation, now)
	if h.handleServiceError(w, err, "phrase") {
		return
	}
	if h.handleStoreError(w, h.store.SavePhrase(r.Context(), p), "phrase") {
		return
	}

	respondJSON(w, http.StatusCreated, toPhraseResponse(p, now, u.Zone().Location))
}

// GET /users/{userID}/phrases?language=en
func (h *Handler) listPhrases(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	u, err := h.store.GetUser(r.Context(), userID)
	if h.handleStoreError(w, err, "user") {
		return
	}
	language := r.URL.Query().Get("language")
	if language == "" {
		http.Error(w, "language is required", http.StatusBadRequest)
		return
	}

	phrases, err := h.store.ListPhrases(r.Context(), u.ID, language)
	if h.handleStoreError(w, err, "phrase") {
		return
	}

	now := time.Now()
	loc := u.Zone().Location
	response := make([]PhraseResponse, len(phrases))
	for i := range phrases {
		response[i] = toPhraseResponse(&phrases[i], now, loc)
	}
	respondJSON(w, http.StatusOK, response)
}

// GET /levels
func (h *Handler) listLevels(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, level.Ladder())
}
