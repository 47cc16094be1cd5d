package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/potluck-games/dicepot/internal/model"
	"github.com/potluck-games/dicepot/internal/repository"
)

// Store implements repository.Store on PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a postgres-backed Store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

var _ repository.Store = (*Store)(nil)

func (s *Store) GetGame(ctx context.Context, code string) (*model.Room, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM rooms WHERE code = $1`, code).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room %s: %w", code, err)
	}
	return decodeRoom(data)
}

func (s *Store) CreateGame(ctx context.Context, room *model.Room) (*model.Room, error) {
	data, err := json.Marshal(room)
	if err != nil {
		return nil, fmt.Errorf("encode room: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO rooms (code, data, status, player_ids, updated_at)
		 VALUES ($1, $2, $3, $4, now())`,
		room.Code, data, room.Status, pq.Array(playerIDs(room)))
	if err != nil {
		return nil, fmt.Errorf("create room %s: %w", room.Code, err)
	}
	return room, nil
}

func (s *Store) UpdateGame(ctx context.Context, room *model.Room) (*model.Room, error) {
	data, err := json.Marshal(room)
	if err != nil {
		return nil, fmt.Errorf("encode room: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE rooms SET data = $2, status = $3, player_ids = $4, updated_at = now()
		 WHERE code = $1`,
		room.Code, data, room.Status, pq.Array(playerIDs(room)))
	if err != nil {
		return nil, fmt.Errorf("update room %s: %w", room.Code, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, repository.ErrNotFound
	}
	return room, nil
}

func (s *Store) GetUserActiveGames(ctx context.Context, userID string) ([]*model.Room, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM rooms WHERE status != 'finished' AND $1 = ANY(player_ids)
		 ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("active rooms for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []*model.Room
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		room, err := decodeRoom(data)
		if err != nil {
			return nil, err
		}
		out = append(out, room)
	}
	return out, rows.Err()
}

func (s *Store) GetUser(ctx context.Context, id string) (*model.User, error) {
	u := &model.User{ID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT provider, provider_id, display_name, avatar_url,
		        games_played, games_won, total_banked, highest_turn,
		        created_at, updated_at
		 FROM users WHERE id = $1`, id).
		Scan(&u.Provider, &u.ProviderID, &u.DisplayName, &u.AvatarURL,
			&u.Stats.GamesPlayed, &u.Stats.GamesWon, &u.Stats.TotalBanked,
			&u.Stats.HighestTurn, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return u, nil
}

func (s *Store) UpsertUser(ctx context.Context, user *model.User) (*model.User, error) {
	now := time.Now().UTC()
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO users (id, provider, provider_id, display_name, avatar_url,
		                    games_played, games_won, total_banked, highest_turn,
		                    created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		 ON CONFLICT (id) DO UPDATE SET
		   display_name = EXCLUDED.display_name,
		   avatar_url   = EXCLUDED.avatar_url,
		   games_played = EXCLUDED.games_played,
		   games_won    = EXCLUDED.games_won,
		   total_banked = EXCLUDED.total_banked,
		   highest_turn = EXCLUDED.highest_turn,
		   updated_at   = EXCLUDED.updated_at
		 RETURNING created_at, updated_at`,
		user.ID, user.Provider, user.ProviderID, user.DisplayName, user.AvatarURL,
		user.Stats.GamesPlayed, user.Stats.GamesWon, user.Stats.TotalBanked,
		user.Stats.HighestTurn, now).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert user %s: %w", user.ID, err)
	}
	return user, nil
}

func (s *Store) GetLeaderboard(ctx context.Context, period string) (*model.Leaderboard, error) {
	var data []byte
	var updatedAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT entries, updated_at FROM leaderboards WHERE period = $1`, period).
		Scan(&data, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get leaderboard %s: %w", period, err)
	}
	lb := &model.Leaderboard{Period: period, UpdatedAt: updatedAt}
	if err := json.Unmarshal(data, &lb.Entries); err != nil {
		return nil, fmt.Errorf("decode leaderboard %s: %w", period, err)
	}
	return lb, nil
}

func (s *Store) UpsertLeaderboard(ctx context.Context, lb *model.Leaderboard) (*model.Leaderboard, error) {
	data, err := json.Marshal(lb.Entries)
	if err != nil {
		return nil, fmt.Errorf("encode leaderboard: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO leaderboards (period, entries, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (period) DO UPDATE SET entries = EXCLUDED.entries, updated_at = now()`,
		lb.Period, data)
	if err != nil {
		return nil, fmt.Errorf("upsert leaderboard %s: %w", lb.Period, err)
	}
	return lb, nil
}

func decodeRoom(data []byte) (*model.Room, error) {
	room := &model.Room{}
	if err := json.Unmarshal(data, room); err != nil {
		return nil, fmt.Errorf("decode room: %w", err)
	}
	return room, nil
}

func playerIDs(room *model.Room) []string {
	ids := make([]string, len(room.Players))
	for i, p := range room.Players {
		ids[i] = p.UserID
	}
	return ids
}
