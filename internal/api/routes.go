// internal/api/routes.go
package api

import "net/http"

func RegisterRoutes(mux *http.ServeMux, h *Handler) {
	// Users
	mux.HandleFunc("POST /users", h.createUser)
	mux.HandleFunc("GET /users/{userID}", h.getUser)
	mux.HandleFunc("PATCH /users/{userID}/settings", h.updateUserSettings)
	mux.HandleFunc("GET /users/{userID}/streak", h.getStreak)
	mux.HandleFunc("GET /users/{userID}/levels", h.getLevelSummary)

	// Phrases
	mux.HandleFunc("POST /users/{userID}/phrases", h.createPhrase)
	mux.HandleFunc("GET /users/{userID}/phrases", h.listPhrases)

	// Sessions
	mux.HandleFunc("POST /sessions", h.createSession)
	mux.HandleFunc("GET /sessions/{sessionID}", h.getSession)
	mux.HandleFunc("POST /sessions/{sessionID}/taps", h.tap)
	mux.HandleFunc("POST /sessions/{sessionID}/answers", h.answer)
	mux.HandleFunc("POST /sessions/{sessionID}/next", h.next)
	mux.HandleFunc("POST /sessions/{sessionID}/finish", h.finish)
	mux.HandleFunc("DELETE /sessions/{sessionID}", h.abandon)

	// Reference data
	mux.HandleFunc("GET /levels", h.listLevels)
	mux.HandleFunc("GET /leaderboard", h.getLeaderboard)
}
