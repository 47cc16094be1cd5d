// Package repository defines the persistence surface the core depends on.
// Each room has a single writer (its orchestrator), so implementations only
// need last-write-wins semantics on a room record.
package repository

import (
	"context"
	"errors"

	"github.com/potluck-games/dicepot/internal/model"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Store is the only persistence interface the core uses. The in-memory
// implementation is the default; postgres and redis are drop-ins.
type Store interface {
	// GetGame returns the room with the given code, or ErrNotFound.
	GetGame(ctx context.Context, code string) (*model.Room, error)
	// CreateGame stores a new room; the code must be unused.
	CreateGame(ctx context.Context, room *model.Room) (*model.Room, error)
	// UpdateGame overwrites the room record (last write wins).
	UpdateGame(ctx context.Context, room *model.Room) (*model.Room, error)
	// GetUserActiveGames lists unfinished rooms the user belongs to.
	GetUserActiveGames(ctx context.Context, userID string) ([]*model.Room, error)

	GetUser(ctx context.Context, id string) (*model.User, error)
	UpsertUser(ctx context.Context, user *model.User) (*model.User, error)

	GetLeaderboard(ctx context.Context, period string) (*model.Leaderboard, error)
	UpsertLeaderboard(ctx context.Context, lb *model.Leaderboard) (*model.Leaderboard, error)
}
