package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/potluck-games/dicepot/internal/model"
	"github.com/potluck-games/dicepot/internal/repository"
)

// LeaderboardHandler serves the ranked listings.
type LeaderboardHandler struct {
	store repository.Store
}

// NewLeaderboardHandler creates a LeaderboardHandler.
func NewLeaderboardHandler(store repository.Store) *LeaderboardHandler {
	return &LeaderboardHandler{store: store}
}

// GetLeaderboard handles GET /leaderboard/{period} for daily, weekly, or
// alltime. A period with no recorded games yet returns an empty board.
func (h *LeaderboardHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	period := r.PathValue("period")
	if !model.ValidPeriod(period) {
		writeError(w, http.StatusBadRequest, "period must be daily, weekly, or alltime")
		return
	}

	lb, err := h.store.GetLeaderboard(r.Context(), period)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusOK, &model.Leaderboard{
			Period:    period,
			Entries:   []model.LeaderboardEntry{},
			UpdatedAt: time.Now().UTC(),
		})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, lb)
}
