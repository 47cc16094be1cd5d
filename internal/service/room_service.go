package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/potluck-games/dicepot/internal/model"
	"github.com/potluck-games/dicepot/internal/repository"
	"github.com/potluck-games/dicepot/pkg/tenk"
)

// Room codes avoid the ambiguous glyphs 0/O/1/I/L.
const (
	roomCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	roomCodeLength   = 6
	roomCodeAttempts = 10
)

// Turn timer bounds in seconds; zero disables the timer.
const (
	minTurnTimerSec = 5
	maxTurnTimerSec = 300
)

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrGameFull           = errors.New("room is full")
	ErrAlreadyStarted     = errors.New("game has already started")
	ErrNotHost            = errors.New("only the host can do that")
	ErrNotEnoughPlayers   = errors.New("need at least 2 players to start")
	ErrInvalidSettings    = errors.New("invalid settings")
	ErrInvalidStrategy    = errors.New("unknown strategy")
	ErrCodeSpaceExhausted = errors.New("could not allocate a room code")
)

// RoomService is the lobby layer: it creates and populates rooms, starts
// games, and owns the registry of live orchestrators. Once a room is
// playing, every mutation is delegated to its orchestrator.
type RoomService struct {
	store  repository.Store
	bcast  Broadcaster
	timers *TurnTimerManager

	mu    sync.Mutex
	rooms map[string]*RoomOrchestrator
	// locks serializes waiting-room read-modify-write cycles per code;
	// playing rooms are already serialized by their worker.
	locks map[string]*sync.Mutex
	rng   *rand.Rand
}

// NewRoomService creates the lobby service and its turn timer manager.
func NewRoomService(store repository.Store, bcast Broadcaster) *RoomService {
	s := &RoomService{
		store: store,
		bcast: bcast,
		rooms: make(map[string]*RoomOrchestrator),
		locks: make(map[string]*sync.Mutex),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	s.timers = NewTurnTimerManager(bcast, s.routeTimeout)
	return s
}

// Timers exposes the turn timer manager (the session layer pauses through it).
func (s *RoomService) Timers() *TurnTimerManager {
	return s.timers
}

func (s *RoomService) routeTimeout(code, playerID string) {
	if o := s.orchestrator(code); o != nil {
		o.HandleTimeout(playerID)
	}
}

func (s *RoomService) orchestrator(code string) *RoomOrchestrator {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms[code]
}

// lockRoom acquires the per-code lobby lock and returns its release func.
func (s *RoomService) lockRoom(code string) func() {
	s.mu.Lock()
	l, ok := s.locks[code]
	if !ok {
		l = &sync.Mutex{}
		s.locks[code] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// ValidateSettings checks the room parameter bounds.
func ValidateSettings(st model.Settings) error {
	if st.TargetScore < tenk.MinTargetScore {
		return fmt.Errorf("%w: target score must be at least %d", ErrInvalidSettings, tenk.MinTargetScore)
	}
	if st.EntryThreshold < 0 {
		return fmt.Errorf("%w: entry threshold must not be negative", ErrInvalidSettings)
	}
	if st.MaxTurnTimerSec != 0 && (st.MaxTurnTimerSec < minTurnTimerSec || st.MaxTurnTimerSec > maxTurnTimerSec) {
		return fmt.Errorf("%w: turn timer must be 0 or between %d and %d seconds", ErrInvalidSettings, minTurnTimerSec, maxTurnTimerSec)
	}
	return nil
}

// CreateRoom allocates a code and creates a waiting room with the caller as
// host.
func (s *RoomService) CreateRoom(ctx context.Context, hostID, hostName string, settings *model.Settings) (*model.Room, error) {
	st := model.DefaultSettings()
	if settings != nil {
		st = *settings
	}
	if err := ValidateSettings(st); err != nil {
		return nil, err
	}

	code, err := s.generateCode(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	room := &model.Room{
		Code:   code,
		ID:     s.newID(),
		HostID: hostID,
		Status: model.StatusWaiting,
		Players: []model.RoomPlayer{{
			UserID:             hostID,
			Name:               hostName,
			AITakeoverStrategy: model.StrategyBalanced,
			JoinedAt:           now,
		}},
		Settings:  st,
		CreatedAt: now,
	}

	created, err := s.store.CreateGame(ctx, room)
	if err != nil {
		return nil, err
	}
	log.Info().Str("roomCode", code).Str("hostId", hostID).Msg("Room created")
	return created, nil
}

// generateCode draws codes by rejection sampling against the store.
func (s *RoomService) generateCode(ctx context.Context) (string, error) {
	for i := 0; i < roomCodeAttempts; i++ {
		code := s.randomCode()
		_, err := s.store.GetGame(ctx, code)
		if errors.Is(err, repository.ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", ErrCodeSpaceExhausted
}

func (s *RoomService) randomCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var b strings.Builder
	for i := 0; i < roomCodeLength; i++ {
		b.WriteByte(roomCodeAlphabet[s.rng.Intn(len(roomCodeAlphabet))])
	}
	return b.String()
}

func (s *RoomService) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("%08x%08x", s.rng.Uint32(), s.rng.Uint32())
}

// GetRoom returns a room by code.
func (s *RoomService) GetRoom(ctx context.Context, code string) (*model.Room, error) {
	room, err := s.store.GetGame(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	return room, err
}

// JoinRoom adds the caller to a waiting room. Rejoining members get the room
// back unchanged.
func (s *RoomService) JoinRoom(ctx context.Context, code, userID, name string) (*model.Room, error) {
	defer s.lockRoom(code)()
	room, err := s.GetRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	if room.IsMember(userID) {
		return room, nil
	}
	if room.Status != model.StatusWaiting {
		return nil, ErrAlreadyStarted
	}
	if len(room.Players) >= tenk.MaxPlayers {
		return nil, ErrGameFull
	}

	room.Players = append(room.Players, model.RoomPlayer{
		UserID:             userID,
		Name:               name,
		AITakeoverStrategy: model.StrategyBalanced,
		JoinedAt:           time.Now(),
	})
	updated, err := s.store.UpdateGame(ctx, room)
	if err != nil {
		return nil, err
	}
	s.bcast.EmitToRoom(code, EventPlayerJoined, map[string]any{
		"playerId": userID,
		"name":     name,
	})
	return updated, nil
}

// AddAI seats a computer player. Host only.
func (s *RoomService) AddAI(ctx context.Context, code, callerID, name, strategy string) (*model.Room, error) {
	defer s.lockRoom(code)()
	room, err := s.GetRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	if room.HostID != callerID {
		return nil, ErrNotHost
	}
	if room.Status != model.StatusWaiting {
		return nil, ErrAlreadyStarted
	}
	if len(room.Players) >= tenk.MaxPlayers {
		return nil, ErrGameFull
	}
	if strategy == "" {
		strategy = model.StrategyBalanced
	}
	if !validStrategy(strategy) {
		return nil, ErrInvalidStrategy
	}

	aiID := fmt.Sprintf("ai:%s:%d", code, len(room.Players))
	if name == "" {
		name = fmt.Sprintf("Bot %d", len(room.Players))
	}
	room.Players = append(room.Players, model.RoomPlayer{
		UserID:     aiID,
		Name:       name,
		IsAI:       true,
		AIStrategy: strategy,
		Connected:  true,
		JoinedAt:   time.Now(),
	})
	updated, err := s.store.UpdateGame(ctx, room)
	if err != nil {
		return nil, err
	}
	s.bcast.EmitToRoom(code, EventPlayerJoined, map[string]any{
		"playerId": aiID,
		"name":     name,
		"isAi":     true,
	})
	return updated, nil
}

// StartGame transitions a waiting room to playing and spawns its
// orchestrator. Host only; needs at least two seated players.
func (s *RoomService) StartGame(ctx context.Context, code, callerID string) (*model.Room, error) {
	defer s.lockRoom(code)()
	room, err := s.GetRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	if room.HostID != callerID {
		return nil, ErrNotHost
	}
	if room.Status != model.StatusWaiting {
		return nil, ErrAlreadyStarted
	}
	if len(room.Players) < tenk.MinPlayers {
		return nil, ErrNotEnoughPlayers
	}

	players := make([]tenk.Player, len(room.Players))
	for i, rp := range room.Players {
		players[i] = tenk.Player{
			ID:         rp.UserID,
			Name:       rp.Name,
			IsAI:       rp.IsAI,
			AIStrategy: rp.AIStrategy,
		}
	}

	now := time.Now()
	room.Status = model.StatusPlaying
	room.StartedAt = &now
	room.Game = tenk.NewGame(players, room.Settings.TargetScore, room.Settings.EntryThreshold, now)

	updated, err := s.store.UpdateGame(ctx, room)
	if err != nil {
		return nil, err
	}

	s.spawn(updated.Clone())
	log.Info().Str("roomCode", code).Int("players", len(players)).Msg("Game started")
	s.bcast.EmitToRoom(code, EventGameStarted, map[string]any{
		"room":      updated,
		"gameState": updated.Game,
	})
	return updated, nil
}

// spawn registers and starts an orchestrator for a playing room.
func (s *RoomService) spawn(room *model.Room) *RoomOrchestrator {
	s.mu.Lock()
	if o, ok := s.rooms[room.Code]; ok {
		s.mu.Unlock()
		return o
	}
	rng := rand.New(rand.NewSource(s.rng.Int63()))
	o := NewRoomOrchestrator(room, s.store, s.bcast, s.timers, rng, s.onRoomFinished)
	s.rooms[room.Code] = o
	s.mu.Unlock()
	o.Start()
	return o
}

// ensureOrchestrator resurrects the worker for a playing room loaded from
// the store, e.g. after a server restart.
func (s *RoomService) ensureOrchestrator(ctx context.Context, code string) *RoomOrchestrator {
	if o := s.orchestrator(code); o != nil {
		return o
	}
	room, err := s.GetRoom(ctx, code)
	if err != nil || room.Status != model.StatusPlaying {
		return nil
	}
	return s.spawn(room)
}

// LeaveRoom removes the caller. In a waiting room the seat disappears; in a
// playing room the seat continues under AI control.
func (s *RoomService) LeaveRoom(ctx context.Context, code, userID string) error {
	return s.removeMember(ctx, code, userID)
}

// RemovePlayer removes the target from the room; allowed for the target
// themselves or the host.
func (s *RoomService) RemovePlayer(ctx context.Context, code, callerID, targetID string) error {
	room, err := s.GetRoom(ctx, code)
	if err != nil {
		return err
	}
	if callerID != targetID && callerID != room.HostID {
		return ErrNotHost
	}
	return s.removeMember(ctx, code, targetID)
}

func (s *RoomService) removeMember(ctx context.Context, code, userID string) error {
	defer s.lockRoom(code)()
	room, err := s.GetRoom(ctx, code)
	if err != nil {
		return err
	}
	if !room.IsMember(userID) {
		return ErrNotInRoom
	}

	if room.Status == model.StatusPlaying {
		if o := s.ensureOrchestrator(ctx, code); o != nil {
			return o.Leave(ctx, userID)
		}
		return ErrRoomNotFound
	}

	for i := range room.Players {
		if room.Players[i].UserID == userID {
			room.Players = append(room.Players[:i], room.Players[i+1:]...)
			break
		}
	}

	hostChanged := false
	if room.HostID == userID {
		room.HostID = ""
		for i := range room.Players {
			if !room.Players[i].IsAI {
				room.HostID = room.Players[i].UserID
				hostChanged = true
				break
			}
		}
		if room.HostID == "" {
			// Nobody left to host; close the room.
			room.Status = model.StatusFinished
			now := time.Now()
			room.FinishedAt = &now
		}
	}

	if _, err := s.store.UpdateGame(ctx, room); err != nil {
		return err
	}
	s.bcast.EmitToRoom(code, EventPlayerLeft, map[string]any{"playerId": userID})
	if hostChanged {
		s.bcast.EmitToRoom(code, EventHostChanged, map[string]any{"hostId": room.HostID})
	}
	return nil
}

// Forfeit ends a playing game on behalf of the caller.
func (s *RoomService) Forfeit(ctx context.Context, code, userID string) error {
	room, err := s.GetRoom(ctx, code)
	if err != nil {
		return err
	}
	if room.Status != model.StatusPlaying {
		return ErrRoomNotPlaying
	}
	o := s.ensureOrchestrator(ctx, code)
	if o == nil {
		return ErrRoomNotFound
	}
	return o.Forfeit(ctx, userID)
}

// SetStrategy records the caller's AI takeover strategy.
func (s *RoomService) SetStrategy(ctx context.Context, code, userID, strategy string) error {
	if !validStrategy(strategy) {
		return ErrInvalidStrategy
	}
	defer s.lockRoom(code)()
	room, err := s.GetRoom(ctx, code)
	if err != nil {
		return err
	}
	if room.Status == model.StatusPlaying {
		if o := s.ensureOrchestrator(ctx, code); o != nil {
			return o.SetTakeoverStrategy(ctx, userID, strategy)
		}
		return ErrRoomNotFound
	}
	p := room.Player(userID)
	if p == nil {
		return ErrNotInRoom
	}
	p.AITakeoverStrategy = strategy
	_, err = s.store.UpdateGame(ctx, room)
	return err
}

// Chat posts a message to the room's chat log.
func (s *RoomService) Chat(ctx context.Context, code, userID, name, content string) error {
	defer s.lockRoom(code)()
	room, err := s.GetRoom(ctx, code)
	if err != nil {
		return err
	}
	if !room.IsMember(userID) {
		return ErrNotInRoom
	}
	if room.Status == model.StatusPlaying {
		if o := s.ensureOrchestrator(ctx, code); o != nil {
			o.Chat(userID, name, content)
			return nil
		}
		return ErrRoomNotFound
	}

	msg := model.ChatMessage{SenderID: userID, SenderName: name, Content: content, SentAt: time.Now()}
	room.AddChat(msg)
	if _, err := s.store.UpdateGame(ctx, room); err != nil {
		return err
	}
	s.bcast.EmitToRoom(code, EventChatMessage, msg)
	return nil
}

// HandleAction routes a client game action into the room worker.
func (s *RoomService) HandleAction(ctx context.Context, code, userID string, action ClientAction) {
	if o := s.ensureOrchestrator(ctx, code); o != nil {
		o.EnqueueAction(userID, action)
		return
	}
	s.bcast.EmitToPlayer(code, userID, EventActionError, map[string]any{"message": ErrRoomNotPlaying.Error()})
}

// ResumeControl routes a resume-control request into the room worker.
func (s *RoomService) ResumeControl(ctx context.Context, code, userID string) {
	if o := s.ensureOrchestrator(ctx, code); o != nil {
		o.ResumeControl(userID)
	}
}

// RequestGameState asks the room worker to resend the snapshot to one player.
func (s *RoomService) RequestGameState(ctx context.Context, code, userID string) {
	if o := s.ensureOrchestrator(ctx, code); o != nil {
		o.RequestState(userID)
	}
}

// HandleConnect records a socket joining the room.
func (s *RoomService) HandleConnect(ctx context.Context, code, userID string) {
	if o := s.ensureOrchestrator(ctx, code); o != nil {
		o.PlayerConnected(userID)
		return
	}
	room, err := s.GetRoom(ctx, code)
	if err != nil {
		return
	}
	if p := room.Player(userID); p != nil && !p.Connected {
		p.Connected = true
		if _, err := s.store.UpdateGame(ctx, room); err != nil {
			log.Error().Err(err).Str("roomCode", code).Msg("Failed to persist connect")
		}
	}
}

// HandleDisconnect records a socket leaving the room.
func (s *RoomService) HandleDisconnect(ctx context.Context, code, userID string) {
	if o := s.orchestrator(code); o != nil {
		o.PlayerDisconnected(userID)
		return
	}
	room, err := s.GetRoom(ctx, code)
	if err != nil {
		return
	}
	if p := room.Player(userID); p != nil && p.Connected {
		p.Connected = false
		if _, err := s.store.UpdateGame(ctx, room); err != nil {
			log.Error().Err(err).Str("roomCode", code).Msg("Failed to persist disconnect")
		}
	}
}

// Shutdown stops every live room worker.
func (s *RoomService) Shutdown() {
	s.mu.Lock()
	workers := make([]*RoomOrchestrator, 0, len(s.rooms))
	for _, o := range s.rooms {
		workers = append(workers, o)
	}
	s.mu.Unlock()
	for _, o := range workers {
		o.Stop()
	}
}

// onRoomFinished unregisters the worker and folds the result into user stats
// and the leaderboards.
func (s *RoomService) onRoomFinished(room *model.Room) {
	s.mu.Lock()
	delete(s.rooms, room.Code)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.updateStats(ctx, room)
	s.updateLeaderboards(ctx, room)
}

func (s *RoomService) updateStats(ctx context.Context, room *model.Room) {
	if room.Game == nil {
		return
	}
	for i := range room.Game.Players {
		gp := &room.Game.Players[i]
		if gp.IsAI {
			continue
		}
		user, err := s.store.GetUser(ctx, gp.ID)
		if err != nil {
			continue
		}
		user.Stats.GamesPlayed++
		user.Stats.TotalBanked += gp.Score
		if gp.BestTurn > user.Stats.HighestTurn {
			user.Stats.HighestTurn = gp.BestTurn
		}
		if room.WinnerID == gp.ID {
			user.Stats.GamesWon++
		}
		if _, err := s.store.UpsertUser(ctx, user); err != nil {
			log.Error().Err(err).Str("userId", gp.ID).Msg("Failed to update user stats")
		}
	}
}

func (s *RoomService) updateLeaderboards(ctx context.Context, room *model.Room) {
	if room.Game == nil {
		return
	}
	for _, period := range []string{model.PeriodDaily, model.PeriodWeekly, model.PeriodAllTime} {
		lb, err := s.store.GetLeaderboard(ctx, period)
		if errors.Is(err, repository.ErrNotFound) {
			lb = &model.Leaderboard{Period: period}
		} else if err != nil {
			log.Error().Err(err).Str("period", period).Msg("Failed to load leaderboard")
			continue
		}

		for i := range room.Game.Players {
			gp := &room.Game.Players[i]
			if gp.IsAI {
				continue
			}
			entry := findEntry(lb, gp.ID)
			if entry == nil {
				lb.Entries = append(lb.Entries, model.LeaderboardEntry{UserID: gp.ID, Name: gp.Name})
				entry = &lb.Entries[len(lb.Entries)-1]
			}
			entry.Score += gp.Score
			if room.WinnerID == gp.ID {
				entry.GamesWon++
			}
		}

		sort.SliceStable(lb.Entries, func(i, j int) bool {
			return lb.Entries[i].Score > lb.Entries[j].Score
		})
		if len(lb.Entries) > 100 {
			lb.Entries = lb.Entries[:100]
		}
		lb.UpdatedAt = time.Now()
		if _, err := s.store.UpsertLeaderboard(ctx, lb); err != nil {
			log.Error().Err(err).Str("period", period).Msg("Failed to update leaderboard")
		}
	}
}

func findEntry(lb *model.Leaderboard, userID string) *model.LeaderboardEntry {
	for i := range lb.Entries {
		if lb.Entries[i].UserID == userID {
			return &lb.Entries[i]
		}
	}
	return nil
}

func validStrategy(s string) bool {
	switch s {
	case model.StrategyConservative, model.StrategyBalanced, model.StrategyAggressive, model.StrategyChaos:
		return true
	}
	return false
}
