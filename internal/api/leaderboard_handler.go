package api

import (
	"net/http"
	"strconv"

	"github.com/speakloop/backend/internal/domain/ranking"
)

// GET /leaderboard?language=en&period=weekly&user_id=...&limit=10
func (h *Handler) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	language := q.Get("language")
	if language == "" {
		http.Error(w, "language is required", http.StatusBadRequest)
		return
	}

	period, err := ranking.ParsePeriod(q.Get("period"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	limit := 0
	if v := q.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil {
			http.Error(w, "limit must be an integer", http.StatusBadRequest)
			return
		}
	}

	view, err := h.progress.Leaderboard(r.Context(), language, period, q.Get("user_id"), limit)
	if h.handleStoreError(w, err, "leaderboard") {
		return
	}
	respondJSON(w, http.StatusOK, view)
}
