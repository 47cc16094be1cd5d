package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/potluck-games/dicepot/internal/model"
	"github.com/potluck-games/dicepot/internal/repository"
	"github.com/potluck-games/dicepot/pkg/tenk"
)

// recordedEvent is one broadcast captured by the recording broadcaster.
type recordedEvent struct {
	Room     string
	PlayerID string // empty for room-wide multicast
	Event    string
	Data     any
}

// recordingBroadcaster captures events for assertions.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (b *recordingBroadcaster) EmitToRoom(code, event string, data any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{Room: code, Event: event, Data: data})
}

func (b *recordingBroadcaster) EmitToPlayer(code, playerID, event string, data any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{Room: code, PlayerID: playerID, Event: event, Data: data})
}

// all returns a snapshot of the captured events.
func (b *recordingBroadcaster) all() []recordedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]recordedEvent(nil), b.events...)
}

// ofType returns the captured events with the given type.
func (b *recordingBroadcaster) ofType(event string) []recordedEvent {
	var out []recordedEvent
	for _, e := range b.all() {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// indexOf returns the position of the first event of the given type, or -1.
func (b *recordingBroadcaster) indexOf(event string) int {
	for i, e := range b.all() {
		if e.Event == event {
			return i
		}
	}
	return -1
}

func (b *recordingBroadcaster) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}

var errStoreDown = errors.New("store down")

// failingStore wraps a Store and fails writes on demand.
type failingStore struct {
	repository.Store
	failUpdates bool
}

func (s *failingStore) UpdateGame(ctx context.Context, room *model.Room) (*model.Room, error) {
	if s.failUpdates {
		return nil, errStoreDown
	}
	return s.Store.UpdateGame(ctx, room)
}

// occupiedStore reports every room code as taken.
type occupiedStore struct {
	repository.Store
}

func (s occupiedStore) GetGame(context.Context, string) (*model.Room, error) {
	return &model.Room{}, nil
}

// testPlayers builds n seated room players named p1..pn; the first is human
// and connected, the rest as configured.
func humanPlayer(id, name string) model.RoomPlayer {
	return model.RoomPlayer{
		UserID:             id,
		Name:               name,
		AITakeoverStrategy: model.StrategyBalanced,
		Connected:          true,
		JoinedAt:           time.Now(),
	}
}

func aiPlayer(id, name, strategy string) model.RoomPlayer {
	return model.RoomPlayer{
		UserID:     id,
		Name:       name,
		IsAI:       true,
		AIStrategy: strategy,
		Connected:  true,
		JoinedAt:   time.Now(),
	}
}

// playingRoom builds a room in playing status with a fresh game over the
// given members.
func playingRoom(code string, settings model.Settings, members ...model.RoomPlayer) *model.Room {
	players := make([]tenk.Player, len(members))
	for i, m := range members {
		players[i] = tenk.Player{ID: m.UserID, Name: m.Name, IsAI: m.IsAI, AIStrategy: m.AIStrategy}
	}
	now := time.Now()
	return &model.Room{
		Code:      code,
		ID:        "room-" + code,
		HostID:    members[0].UserID,
		Status:    model.StatusPlaying,
		Players:   members,
		Settings:  settings,
		Game:      tenk.NewGame(players, settings.TargetScore, settings.EntryThreshold, now),
		CreatedAt: now,
		StartedAt: &now,
	}
}
