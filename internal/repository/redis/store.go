package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/potluck-games/dicepot/internal/model"
	"github.com/potluck-games/dicepot/internal/repository"
)

// finishedRoomTTL garbage-collects finished room records.
const finishedRoomTTL = 24 * time.Hour

// Key patterns.
func roomKey(code string) string       { return "room:" + code }
func userKey(id string) string         { return "user:" + id }
func userRoomsKey(id string) string    { return "user:" + id + ":rooms" }
func leaderboardKey(p string) string   { return "leaderboard:" + p }
func leaderboardMetaKey(p string) string { return "leaderboard:" + p + ":meta" }

// Store implements repository.Store on Redis.
type Store struct {
	c *Client
}

// NewStore creates a redis-backed Store.
func NewStore(c *Client) *Store {
	return &Store{c: c}
}

var _ repository.Store = (*Store)(nil)

func (s *Store) GetGame(ctx context.Context, code string) (*model.Room, error) {
	data, err := s.c.rdb.Get(ctx, roomKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room %s: %w", code, err)
	}
	room := &model.Room{}
	if err := json.Unmarshal(data, room); err != nil {
		return nil, fmt.Errorf("decode room %s: %w", code, err)
	}
	return room, nil
}

func (s *Store) CreateGame(ctx context.Context, room *model.Room) (*model.Room, error) {
	data, err := json.Marshal(room)
	if err != nil {
		return nil, fmt.Errorf("encode room: %w", err)
	}
	ok, err := s.c.rdb.SetNX(ctx, roomKey(room.Code), data, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("create room %s: %w", room.Code, err)
	}
	if !ok {
		return nil, fmt.Errorf("room %s already exists", room.Code)
	}
	s.indexMembers(ctx, room)
	return room, nil
}

func (s *Store) UpdateGame(ctx context.Context, room *model.Room) (*model.Room, error) {
	data, err := json.Marshal(room)
	if err != nil {
		return nil, fmt.Errorf("encode room: %w", err)
	}
	var ttl time.Duration
	if room.Status == model.StatusFinished {
		ttl = finishedRoomTTL
	}
	if err := s.c.rdb.Set(ctx, roomKey(room.Code), data, ttl).Err(); err != nil {
		return nil, fmt.Errorf("update room %s: %w", room.Code, err)
	}
	s.indexMembers(ctx, room)
	return room, nil
}

// indexMembers keeps the per-user active-room sets in sync with the room
// record. Finished rooms drop out of every member's set.
func (s *Store) indexMembers(ctx context.Context, room *model.Room) {
	pipe := s.c.rdb.Pipeline()
	for _, p := range room.Players {
		if room.Status == model.StatusFinished {
			pipe.SRem(ctx, userRoomsKey(p.UserID), room.Code)
		} else {
			pipe.SAdd(ctx, userRoomsKey(p.UserID), room.Code)
		}
	}
	pipe.Exec(ctx)
}

func (s *Store) GetUserActiveGames(ctx context.Context, userID string) ([]*model.Room, error) {
	codes, err := s.c.rdb.SMembers(ctx, userRoomsKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("active rooms for %s: %w", userID, err)
	}
	var out []*model.Room
	for _, code := range codes {
		room, err := s.GetGame(ctx, code)
		if errors.Is(err, repository.ErrNotFound) {
			s.c.rdb.SRem(ctx, userRoomsKey(userID), code)
			continue
		}
		if err != nil {
			return nil, err
		}
		if room.Status == model.StatusFinished || !room.IsMember(userID) {
			s.c.rdb.SRem(ctx, userRoomsKey(userID), code)
			continue
		}
		out = append(out, room)
	}
	return out, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*model.User, error) {
	data, err := s.c.rdb.Get(ctx, userKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	u := &model.User{}
	if err := json.Unmarshal(data, u); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", id, err)
	}
	return u, nil
}

func (s *Store) UpsertUser(ctx context.Context, user *model.User) (*model.User, error) {
	now := time.Now().UTC()
	if existing, err := s.GetUser(ctx, user.ID); err == nil {
		user.CreatedAt = existing.CreatedAt
	} else if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	data, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("encode user: %w", err)
	}
	if err := s.c.rdb.Set(ctx, userKey(user.ID), data, 0).Err(); err != nil {
		return nil, fmt.Errorf("upsert user %s: %w", user.ID, err)
	}
	return user, nil
}

func (s *Store) GetLeaderboard(ctx context.Context, period string) (*model.Leaderboard, error) {
	zs, err := s.c.rdb.ZRevRangeWithScores(ctx, leaderboardKey(period), 0, 99).Result()
	if err != nil {
		return nil, fmt.Errorf("get leaderboard %s: %w", period, err)
	}
	if len(zs) == 0 {
		return nil, repository.ErrNotFound
	}
	meta, err := s.c.rdb.HGetAll(ctx, leaderboardMetaKey(period)).Result()
	if err != nil {
		return nil, fmt.Errorf("leaderboard meta %s: %w", period, err)
	}

	lb := &model.Leaderboard{Period: period, UpdatedAt: time.Now().UTC()}
	for _, z := range zs {
		userID, _ := z.Member.(string)
		entry := model.LeaderboardEntry{UserID: userID, Score: int(z.Score)}
		if raw, ok := meta[userID]; ok {
			json.Unmarshal([]byte(raw), &entry)
			entry.UserID = userID
			entry.Score = int(z.Score)
		}
		lb.Entries = append(lb.Entries, entry)
	}
	return lb, nil
}

func (s *Store) UpsertLeaderboard(ctx context.Context, lb *model.Leaderboard) (*model.Leaderboard, error) {
	pipe := s.c.rdb.Pipeline()
	for _, e := range lb.Entries {
		pipe.ZAdd(ctx, leaderboardKey(lb.Period), redis.Z{Score: float64(e.Score), Member: e.UserID})
		meta, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("encode leaderboard entry: %w", err)
		}
		pipe.HSet(ctx, leaderboardMetaKey(lb.Period), e.UserID, meta)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("upsert leaderboard %s: %w", lb.Period, err)
	}
	return lb, nil
}
