package handler

import (
	"errors"
	"net/http"

	"github.com/potluck-games/dicepot/internal/auth"
	"github.com/potluck-games/dicepot/internal/model"
	"github.com/potluck-games/dicepot/internal/service"
)

// GameHandler handles room lifecycle endpoints.
type GameHandler struct {
	roomSvc *service.RoomService
}

// NewGameHandler creates a GameHandler.
func NewGameHandler(roomSvc *service.RoomService) *GameHandler {
	return &GameHandler{roomSvc: roomSvc}
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNotHost), errors.Is(err, service.ErrNotInRoom):
		return http.StatusForbidden
	case errors.Is(err, service.ErrGameFull),
		errors.Is(err, service.ErrAlreadyStarted),
		errors.Is(err, service.ErrNotEnoughPlayers),
		errors.Is(err, service.ErrInvalidSettings),
		errors.Is(err, service.ErrInvalidStrategy),
		errors.Is(err, service.ErrRoomNotPlaying):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// CreateRoom handles POST /games
func (h *GameHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	ident := auth.IdentityFromContext(r.Context())
	var req struct {
		Settings *model.Settings `json:"settings,omitempty"`
	}
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	room, err := h.roomSvc.CreateRoom(r.Context(), ident.UserID, ident.DisplayName, req.Settings)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"code": room.Code,
		"room": room,
	})
}

// GetRoom handles GET /games/{code}: members only.
func (h *GameHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	userID := auth.UserIDFromContext(r.Context())

	room, err := h.roomSvc.GetRoom(r.Context(), code)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if !room.IsMember(userID) {
		writeError(w, http.StatusForbidden, "you are not a member of this room")
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// JoinRoom handles POST /games/{code}/join: idempotent for members.
func (h *GameHandler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	ident := auth.IdentityFromContext(r.Context())

	room, err := h.roomSvc.JoinRoom(r.Context(), code, ident.UserID, ident.DisplayName)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// AddAI handles POST /games/{code}/ai: host only.
func (h *GameHandler) AddAI(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	userID := auth.UserIDFromContext(r.Context())

	var req struct {
		Name     string `json:"name"`
		Strategy string `json:"strategy"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	room, err := h.roomSvc.AddAI(r.Context(), code, userID, req.Name, req.Strategy)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// StartGame handles POST /games/{code}/start: host only, needs 2+ players.
func (h *GameHandler) StartGame(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	userID := auth.UserIDFromContext(r.Context())

	room, err := h.roomSvc.StartGame(r.Context(), code, userID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// LeaveRoom handles POST /games/{code}/leave
func (h *GameHandler) LeaveRoom(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	userID := auth.UserIDFromContext(r.Context())

	if err := h.roomSvc.LeaveRoom(r.Context(), code, userID); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "left"})
}

// RemovePlayer handles DELETE /games/{code}/players/{pid}: self or host.
func (h *GameHandler) RemovePlayer(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	targetID := r.PathValue("pid")
	userID := auth.UserIDFromContext(r.Context())

	if err := h.roomSvc.RemovePlayer(r.Context(), code, userID, targetID); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// Forfeit handles POST /games/{code}/forfeit
func (h *GameHandler) Forfeit(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	userID := auth.UserIDFromContext(r.Context())

	if err := h.roomSvc.Forfeit(r.Context(), code, userID); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "forfeited"})
}

// SetStrategy handles POST /games/{code}/strategy: the caller's AI takeover
// strategy.
func (h *GameHandler) SetStrategy(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	userID := auth.UserIDFromContext(r.Context())

	var req struct {
		Strategy string `json:"strategy"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.roomSvc.SetStrategy(r.Context(), code, userID, req.Strategy); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}
