// Package memory provides the default in-process Store. Records are cloned
// on the way in and out so callers never share mutable state with the store.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/potluck-games/dicepot/internal/model"
	"github.com/potluck-games/dicepot/internal/repository"
)

// Store is a mutex-guarded in-memory Store implementation.
type Store struct {
	mu           sync.RWMutex
	rooms        map[string]*model.Room
	users        map[string]*model.User
	leaderboards map[string]*model.Leaderboard
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		rooms:        make(map[string]*model.Room),
		users:        make(map[string]*model.User),
		leaderboards: make(map[string]*model.Leaderboard),
	}
}

var _ repository.Store = (*Store)(nil)

func (s *Store) GetGame(_ context.Context, code string) (*model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return room.Clone(), nil
}

func (s *Store) CreateGame(_ context.Context, room *model.Room) (*model.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.Code]; ok {
		return nil, fmt.Errorf("room %s already exists", room.Code)
	}
	s.rooms[room.Code] = room.Clone()
	return room, nil
}

func (s *Store) UpdateGame(_ context.Context, room *model.Room) (*model.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.Code]; !ok {
		return nil, repository.ErrNotFound
	}
	s.rooms[room.Code] = room.Clone()
	return room, nil
}

func (s *Store) GetUserActiveGames(_ context.Context, userID string) ([]*model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Room
	for _, room := range s.rooms {
		if room.Status != model.StatusFinished && room.IsMember(userID) {
			out = append(out, room.Clone())
		}
	}
	return out, nil
}

func (s *Store) GetUser(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) UpsertUser(_ context.Context, user *model.User) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *user
	now := time.Now().UTC()
	if existing, ok := s.users[user.ID]; ok {
		cp.CreatedAt = existing.CreatedAt
	} else if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	s.users[user.ID] = &cp
	out := cp
	return &out, nil
}

func (s *Store) GetLeaderboard(_ context.Context, period string) (*model.Leaderboard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lb, ok := s.leaderboards[period]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *lb
	cp.Entries = append([]model.LeaderboardEntry(nil), lb.Entries...)
	return &cp, nil
}

func (s *Store) UpsertLeaderboard(_ context.Context, lb *model.Leaderboard) (*model.Leaderboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *lb
	cp.Entries = append([]model.LeaderboardEntry(nil), lb.Entries...)
	cp.UpdatedAt = time.Now().UTC()
	s.leaderboards[lb.Period] = &cp
	return lb, nil
}
