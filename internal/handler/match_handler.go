package handler

import (
	"net/http"
	"strconv"

	"github.com/oakmund/conquer/api/internal/auth"
	"github.com/oakmund/conquer/api/internal/repository"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
	defaultLeaderboard  = 50
)

// MatchHandler handles match history and leaderboard endpoints.
type MatchHandler struct {
	matchRepo   repository.MatchRepository
	userRepo    repository.UserRepository
	leaderboard repository.LeaderboardCache
}

// NewMatchHandler creates a MatchHandler.
func NewMatchHandler(matchRepo repository.MatchRepository, userRepo repository.UserRepository, leaderboard repository.LeaderboardCache) *MatchHandler {
	return &MatchHandler{matchRepo: matchRepo, userRepo: userRepo, leaderboard: leaderboard}
}

// GetMatch handles GET /api/v1/matches/{id}
func (h *MatchHandler) GetMatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	match, err := h.matchRepo.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if match == nil {
		writeError(w, http.StatusNotFound, "match not found")
		return
	}
	writeJSON(w, http.StatusOK, match)
}

// ListMyMatches handles GET /api/v1/matches — the caller's match history.
func (h *MatchHandler) ListMyMatches(w http.ResponseWriter, r *http.Request) {
	if auth.IsGuestFromContext(r.Context()) {
		writeError(w, http.StatusForbidden, "guests have no match history")
		return
	}
	userID := auth.UserIDFromContext(r.Context())

	limit := defaultHistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		if n > maxHistoryLimit {
			n = maxHistoryLimit
		}
		limit = n
	}

	matches, err := h.matchRepo.ListByUser(r.Context(), userID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

// Leaderboard handles GET /api/v1/leaderboard
func (h *MatchHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	n := defaultLeaderboard
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		if v < n {
			n = v
		}
	}

	entries, err := h.leaderboard.Top(r.Context(), n)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// The sorted set stores only IDs and ratings; fill names in from Postgres.
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.UserID)
	}
	users, err := h.userRepo.FindByIDs(r.Context(), ids)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.DisplayName
	}
	for i := range entries {
		entries[i].DisplayName = names[entries[i].UserID]
	}

	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": entries})
}
