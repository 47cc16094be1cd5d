package service

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/potluck-games/dicepot/internal/bot"
	"github.com/potluck-games/dicepot/internal/model"
	"github.com/potluck-games/dicepot/internal/repository"
	"github.com/potluck-games/dicepot/pkg/tenk"
)

// Client action kinds accepted by a room.
const (
	ActionRoll             = "ROLL"
	ActionKeep             = "KEEP"
	ActionBank             = "BANK"
	ActionDeclineCarryover = "DECLINE_CARRYOVER"
	ActionDiceSelected     = "DICE_SELECTED"
	ActionResumeControl    = "RESUME_CONTROL"
)

var (
	ErrRoomNotPlaying = errors.New("room is not playing")
	ErrNotYourTurn    = errors.New("not your turn")
	ErrRoomPaused     = errors.New("game is paused")
	ErrNotInRoom      = errors.New("you are not in this room")
	ErrUnknownAction  = errors.New("unknown action")
	ErrPersistence    = errors.New("failed to save game state")
)

// Humanizing delays around AI play and bust presentation.
const (
	aiDelayMin   = 1000 * time.Millisecond
	aiDelayRange = 500 * time.Millisecond
	// bustPresentationDelay lets clients show the bust before the turn
	// rotates.
	bustPresentationDelay = 2 * time.Second
)

// ClientAction is one game action from a client (or the AI driving a seat).
type ClientAction struct {
	Kind string `json:"kind"`
	// Keep lists the kept die faces when Kind is KEEP.
	Keep []int `json:"keep,omitempty"`
}

type msgKind int

const (
	msgAction msgKind = iota
	msgTimeout
	msgAIStep
	msgEndTurn
	msgConnect
	msgDisconnect
	msgResumeControl
	msgChat
	msgForfeit
	msgRequestState
	msgLeave
	msgStrategy
)

type roomMsg struct {
	kind     msgKind
	playerID string
	name     string
	content  string
	action   ClientAction
	seq      uint64
	errc     chan error
}

// RoomOrchestrator owns the authoritative state of one playing room. All
// mutations flow through a single goroutine draining the inbox, so the room
// record never needs a lock. Mutations are applied to a clone and swapped in
// only after persistence succeeds.
type RoomOrchestrator struct {
	code   string
	store  repository.Store
	bcast  Broadcaster
	timers *TurnTimerManager
	rng    *rand.Rand
	logger zerolog.Logger

	inbox chan roomMsg
	done  chan struct{}
	stop  sync.Once

	// room is owned by the run loop; nothing else may touch it.
	room *model.Room

	// aiSeq invalidates scheduled AI steps; turnSeq invalidates deferred
	// END_TURN messages.
	aiSeq   uint64
	turnSeq uint64

	// onFinished is called once when the game completes, with a snapshot of
	// the finished room.
	onFinished func(room *model.Room)

	// Overridable in tests.
	aiDelay   func() time.Duration
	bustDelay time.Duration
	now       func() time.Time
}

// NewRoomOrchestrator creates the orchestrator for a room that has just
// entered playing status. rng must be dedicated to this room.
func NewRoomOrchestrator(room *model.Room, store repository.Store, bcast Broadcaster, timers *TurnTimerManager, rng *rand.Rand, onFinished func(*model.Room)) *RoomOrchestrator {
	o := &RoomOrchestrator{
		code:       room.Code,
		store:      store,
		bcast:      bcast,
		timers:     timers,
		rng:        rng,
		logger:     log.With().Str("roomCode", room.Code).Logger(),
		inbox:      make(chan roomMsg, 128),
		done:       make(chan struct{}),
		room:       room,
		onFinished: onFinished,
		bustDelay:  bustPresentationDelay,
		now:        time.Now,
	}
	o.aiDelay = func() time.Duration {
		return aiDelayMin + time.Duration(o.rng.Int63n(int64(aiDelayRange)))
	}
	return o
}

// Start launches the room worker and kicks off the first turn.
func (o *RoomOrchestrator) Start() {
	go o.run()
	o.enqueue(roomMsg{kind: msgEndTurn, seq: 0})
}

// Stop terminates the room worker. Queued messages are discarded.
func (o *RoomOrchestrator) Stop() {
	o.stop.Do(func() { close(o.done) })
}

// EnqueueAction submits a client game action. Outcomes are reported over the
// event channel, errors as actionError to the sender only.
func (o *RoomOrchestrator) EnqueueAction(playerID string, action ClientAction) {
	o.enqueue(roomMsg{kind: msgAction, playerID: playerID, action: action})
}

// ResumeControl lets a player reclaim a seat under AI takeover.
func (o *RoomOrchestrator) ResumeControl(playerID string) {
	o.enqueue(roomMsg{kind: msgResumeControl, playerID: playerID})
}

// RequestState sends the current snapshot to one player.
func (o *RoomOrchestrator) RequestState(playerID string) {
	o.enqueue(roomMsg{kind: msgRequestState, playerID: playerID})
}

// PlayerConnected records a socket joining the room.
func (o *RoomOrchestrator) PlayerConnected(playerID string) {
	o.enqueue(roomMsg{kind: msgConnect, playerID: playerID})
}

// PlayerDisconnected records a socket leaving the room.
func (o *RoomOrchestrator) PlayerDisconnected(playerID string) {
	o.enqueue(roomMsg{kind: msgDisconnect, playerID: playerID})
}

// Chat appends a chat message and multicasts it.
func (o *RoomOrchestrator) Chat(playerID, name, content string) {
	o.enqueue(roomMsg{kind: msgChat, playerID: playerID, name: name, content: content})
}

// HandleTimeout is the timer manager's callback for a turn timeout or an
// expired grace period. Stale callbacks are re-checked inside the worker.
func (o *RoomOrchestrator) HandleTimeout(playerID string) {
	o.enqueue(roomMsg{kind: msgTimeout, playerID: playerID})
}

// Forfeit ends the game; the winner is the highest score among the remaining
// players. Synchronous so the HTTP layer can report the result.
func (o *RoomOrchestrator) Forfeit(ctx context.Context, playerID string) error {
	return o.enqueueSync(ctx, roomMsg{kind: msgForfeit, playerID: playerID})
}

// Leave removes a member from a playing room; their seat keeps playing under
// AI control.
func (o *RoomOrchestrator) Leave(ctx context.Context, playerID string) error {
	return o.enqueueSync(ctx, roomMsg{kind: msgLeave, playerID: playerID})
}

// SetTakeoverStrategy updates the strategy that drives the player's seat
// after a timeout or takeover.
func (o *RoomOrchestrator) SetTakeoverStrategy(ctx context.Context, playerID, strategy string) error {
	return o.enqueueSync(ctx, roomMsg{kind: msgStrategy, playerID: playerID, name: strategy})
}

func (o *RoomOrchestrator) enqueueSync(ctx context.Context, msg roomMsg) error {
	msg.errc = make(chan error, 1)
	o.enqueue(msg)
	select {
	case err := <-msg.errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-o.done:
		// The handler may have finished the game and stopped the worker
		// right after replying; prefer the reply if it is there.
		select {
		case err := <-msg.errc:
			return err
		default:
			return ErrRoomNotPlaying
		}
	}
}

func (o *RoomOrchestrator) enqueue(msg roomMsg) {
	select {
	case o.inbox <- msg:
	case <-o.done:
		if msg.errc != nil {
			msg.errc <- ErrRoomNotPlaying
		}
	default:
		o.logger.Warn().Int("kind", int(msg.kind)).Msg("Room inbox full, dropping message")
		if msg.errc != nil {
			msg.errc <- ErrPersistence
		}
	}
}

func (o *RoomOrchestrator) run() {
	o.logger.Info().Msg("Room worker started")
	for {
		select {
		case <-o.done:
			o.logger.Info().Msg("Room worker stopped")
			return
		case msg := <-o.inbox:
			o.dispatch(msg)
			// Shutdown happens here, not inside the handlers, so that a
			// synchronous caller always gets its reply first.
			if o.room.Status == model.StatusFinished {
				o.Stop()
			}
		}
	}
}

func (o *RoomOrchestrator) dispatch(msg roomMsg) {
	switch msg.kind {
	case msgAction:
		o.handleAction(msg.playerID, msg.action)
	case msgTimeout:
		o.handleTimeout(msg.playerID)
	case msgAIStep:
		o.handleAIStep(msg.seq)
	case msgEndTurn:
		o.handleEndTurn(msg.seq)
	case msgConnect:
		o.handleConnect(msg.playerID)
	case msgDisconnect:
		o.handleDisconnect(msg.playerID)
	case msgResumeControl:
		o.handleResumeControl(msg.playerID)
	case msgChat:
		o.handleChat(msg.playerID, msg.name, msg.content)
	case msgForfeit:
		msg.errc <- o.handleForfeit(msg.playerID)
	case msgRequestState:
		o.handleRequestState(msg.playerID)
	case msgLeave:
		msg.errc <- o.handleLeave(msg.playerID)
	case msgStrategy:
		msg.errc <- o.handleSetStrategy(msg.playerID, msg.name)
	}
}

// handleAction validates and applies one game action from a client.
func (o *RoomOrchestrator) handleAction(playerID string, action ClientAction) {
	if o.room.Status != model.StatusPlaying || o.room.Game == nil {
		o.rejectAction(playerID, ErrRoomNotPlaying)
		return
	}
	if o.room.IsPaused {
		o.rejectAction(playerID, ErrRoomPaused)
		return
	}
	if action.Kind == ActionResumeControl {
		o.handleResumeControl(playerID)
		return
	}
	if o.room.Game.CurrentPlayer().ID != playerID {
		o.rejectAction(playerID, ErrNotYourTurn)
		return
	}

	if action.Kind == ActionDiceSelected {
		// A selection hint is not a mutation; it only feeds the debounced
		// activity reset.
		o.timers.RecordDebouncedActivity(o.code, playerID)
		return
	}

	o.applyAction(playerID, action)
}

// applyAction runs the engine on a clone, persists, and swaps the clone in.
// Dice are generated before any mutation so a persistence failure leaves no
// visible effect.
func (o *RoomOrchestrator) applyAction(playerID string, action ClientAction) {
	next := o.room.Clone()
	game := next.Game

	var err error
	switch action.Kind {
	case ActionRoll:
		roll := o.rollDice(game.Turn.DiceRemaining)
		err = game.Roll(roll)
	case ActionKeep:
		err = game.Keep(toHand(action.Keep))
	case ActionBank:
		err = game.Bank()
	case ActionDeclineCarryover:
		err = game.DeclineCarryover()
	default:
		err = ErrUnknownAction
	}
	if err != nil {
		o.rejectAction(playerID, err)
		return
	}

	if !o.persistAndSwap(next, playerID) {
		return
	}

	o.timers.RecordActivity(o.code, playerID)

	turn := &game.Turn
	o.bcast.EmitToRoom(o.code, EventGameStateUpdate, map[string]any{
		"gameState": game,
		"lastAction": map[string]any{
			"playerId": playerID,
			"action":   action.Kind,
			"flags": map[string]any{
				"busted":  turn.Busted,
				"banked":  turn.Banked,
				"hotDice": action.Kind == ActionKeep && turn.DiceRemaining == tenk.HandSize,
			},
		},
	})

	if turn.Phase == tenk.PhaseEnded {
		o.scheduleEndTurn(turn.Busted)
		return
	}
	if o.seatIsAIDriven(game.CurrentPlayer()) {
		o.scheduleAIStep()
	}
}

// scheduleEndTurn defers the rotation; a bust gets a short presentation
// pause first.
func (o *RoomOrchestrator) scheduleEndTurn(busted bool) {
	o.timers.StopTurn(o.code)
	o.aiSeq++ // any pending AI step belongs to the finished turn
	o.turnSeq++
	seq := o.turnSeq
	if !busted {
		o.enqueue(roomMsg{kind: msgEndTurn, seq: seq})
		return
	}
	time.AfterFunc(o.bustDelay, func() {
		o.enqueue(roomMsg{kind: msgEndTurn, seq: seq})
	})
}

// handleEndTurn rotates play after a frozen turn. seq guards against stale
// deferred rotations.
func (o *RoomOrchestrator) handleEndTurn(seq uint64) {
	if seq != o.turnSeq {
		return
	}
	if o.room.Status != model.StatusPlaying || o.room.Game == nil {
		return
	}

	game := o.room.Game
	if game.IsGameOver {
		return
	}
	if game.Turn.Phase != tenk.PhaseEnded {
		// Initial kick after game start: nothing to rotate, just arm the
		// first turn.
		o.armCurrentTurn()
		return
	}

	next := o.room.Clone()
	if err := next.Game.EndTurn(o.now()); err != nil {
		o.logger.Error().Err(err).Msg("End turn failed")
		return
	}

	if next.Game.IsGameOver {
		o.completeGame(next)
		return
	}

	// A takeover for a player who has since reconnected lapses once their
	// turn is over.
	if next.AIControlledPlayerID != "" {
		if p := next.Player(next.AIControlledPlayerID); p != nil && p.Connected &&
			next.Game.CurrentPlayer().ID != next.AIControlledPlayerID {
			next.AIControlledPlayerID = ""
		}
	}

	if !o.persistAndSwap(next, "") {
		return
	}

	game = o.room.Game
	cur := game.CurrentPlayer()
	o.bcast.EmitToRoom(o.code, EventTurnChanged, map[string]any{
		"currentPlayerIndex": game.CurrentPlayerIndex,
		"playerId":           cur.ID,
	})
	o.bcast.EmitToRoom(o.code, EventGameStateUpdate, map[string]any{
		"gameState": game,
		"lastAction": map[string]any{
			"playerId": cur.ID,
			"action":   "END_TURN",
		},
	})
	o.armCurrentTurn()
}

// armCurrentTurn schedules whatever drives the new current player: an AI
// step for AI-driven seats, the turn timer for humans.
func (o *RoomOrchestrator) armCurrentTurn() {
	if o.room.IsPaused {
		return
	}
	game := o.room.Game
	cur := game.CurrentPlayer()
	if o.seatIsAIDriven(cur) {
		o.scheduleAIStep()
		return
	}
	if o.room.Settings.MaxTurnTimerSec > 0 {
		timeout := time.Duration(o.room.Settings.MaxTurnTimerSec) * time.Second
		o.timers.StartTurn(o.code, cur.ID, timeout)
		if p := o.room.Player(cur.ID); p != nil && !p.Connected {
			o.timers.HandleDisconnect(o.code, cur.ID)
		}
	}
}

// handleTimeout converts a turn timeout or expired grace period into an AI
// takeover. Racing user actions may already have moved the turn on.
func (o *RoomOrchestrator) handleTimeout(playerID string) {
	if o.room.Status != model.StatusPlaying || o.room.Game == nil || o.room.IsPaused {
		return
	}
	game := o.room.Game
	cur := game.CurrentPlayer()
	if cur.ID != playerID || cur.IsAI || o.room.AIControlledPlayerID == playerID {
		return
	}

	next := o.room.Clone()
	next.AIControlledPlayerID = playerID
	if !o.persistAndSwap(next, "") {
		return
	}

	strategy := model.StrategyBalanced
	if p := o.room.Player(playerID); p != nil && p.AITakeoverStrategy != "" {
		strategy = p.AITakeoverStrategy
	}
	o.logger.Info().Str("playerId", playerID).Str("strategy", strategy).Msg("AI takeover")
	o.bcast.EmitToRoom(o.code, EventAITakeover, map[string]any{
		"playerId":   playerID,
		"aiStrategy": strategy,
	})
	o.scheduleAIStep()
}

// scheduleAIStep queues the AI's next move with a humanizing delay.
func (o *RoomOrchestrator) scheduleAIStep() {
	o.aiSeq++
	seq := o.aiSeq
	time.AfterFunc(o.aiDelay(), func() {
		o.enqueue(roomMsg{kind: msgAIStep, seq: seq})
	})
}

// handleAIStep performs one AI decision for the current seat. seq guards
// against steps cancelled by turn changes, pause, or resumed control.
func (o *RoomOrchestrator) handleAIStep(seq uint64) {
	if seq != o.aiSeq {
		return
	}
	if o.room.Status != model.StatusPlaying || o.room.Game == nil || o.room.IsPaused {
		return
	}
	game := o.room.Game
	if game.IsGameOver || game.Turn.Phase == tenk.PhaseEnded {
		return
	}
	cur := game.CurrentPlayer()
	if !o.seatIsAIDriven(cur) {
		return
	}

	strategy := o.strategyForSeat(cur)
	action := strategy.NextAction(bot.Context{
		Turn:           game.Turn.Clone(),
		IsOnBoard:      cur.IsOnBoard,
		EntryThreshold: game.EntryThreshold,
		TargetScore:    game.TargetScore,
		PlayerScore:    cur.Score,
		BestOpponent:   o.bestOpponentScore(game, game.CurrentPlayerIndex),
		IsFinalRound:   game.IsFinalRound,
	})

	o.applyAction(cur.ID, toClientAction(action))
}

func (o *RoomOrchestrator) strategyForSeat(p *tenk.Player) bot.Strategy {
	name := p.AIStrategy
	if !p.IsAI {
		name = model.StrategyBalanced
		if rp := o.room.Player(p.ID); rp != nil && rp.AITakeoverStrategy != "" {
			name = rp.AITakeoverStrategy
		}
	}
	return bot.ForName(name)
}

func (o *RoomOrchestrator) bestOpponentScore(game *tenk.GameState, seat int) int {
	best := 0
	for i := range game.Players {
		if i != seat && game.Players[i].Score > best {
			best = game.Players[i].Score
		}
	}
	return best
}

// handleConnect marks the member connected and resumes a paused room.
func (o *RoomOrchestrator) handleConnect(playerID string) {
	p := o.room.Player(playerID)
	if p == nil {
		return
	}

	next := o.room.Clone()
	next.Player(playerID).Connected = true
	resumed := false
	if next.IsPaused {
		next.IsPaused = false
		resumed = true
	}
	if !o.persistAndSwap(next, "") {
		return
	}

	if resumed {
		o.logger.Info().Str("playerId", playerID).Msg("Room resumed")
		o.bcast.EmitToRoom(o.code, EventGameResumed, map[string]any{"playerId": playerID})
		o.armCurrentTurn()
		return
	}
	if o.room.Game != nil && o.room.Game.CurrentPlayer().ID == playerID {
		o.timers.HandleReconnect(o.code, playerID)
	}
}

// handleDisconnect marks the member disconnected, starts the turn grace
// period if it was their turn, and pauses the room when the last human
// leaves.
func (o *RoomOrchestrator) handleDisconnect(playerID string) {
	p := o.room.Player(playerID)
	if p == nil || !p.Connected {
		return
	}

	next := o.room.Clone()
	next.Player(playerID).Connected = false

	anyHuman := false
	for i := range next.Players {
		if !next.Players[i].IsAI && next.Players[i].Connected {
			anyHuman = true
			break
		}
	}
	pausing := !anyHuman && next.Status == model.StatusPlaying
	if pausing {
		next.IsPaused = true
	}
	if !o.persistAndSwap(next, "") {
		return
	}

	if pausing {
		o.logger.Info().Msg("Last human disconnected, pausing room")
		o.aiSeq++ // cancel any scheduled AI step
		o.timers.PauseTimer(o.code)
		o.bcast.EmitToRoom(o.code, EventGamePaused, map[string]any{"playerId": playerID})
		return
	}
	if o.room.Game != nil && o.room.Game.CurrentPlayer().ID == playerID {
		o.timers.HandleDisconnect(o.code, playerID)
	}
}

// handleResumeControl clears an AI takeover while it is still the player's
// turn and restarts their timer.
func (o *RoomOrchestrator) handleResumeControl(playerID string) {
	if o.room.Status != model.StatusPlaying || o.room.Game == nil {
		return
	}
	if o.room.AIControlledPlayerID != playerID {
		return
	}
	if o.room.Game.CurrentPlayer().ID != playerID {
		return
	}

	next := o.room.Clone()
	next.AIControlledPlayerID = ""
	if !o.persistAndSwap(next, "") {
		return
	}

	o.aiSeq++ // cancel the pending AI step for this seat
	o.logger.Info().Str("playerId", playerID).Msg("Player resumed control")
	o.bcast.EmitToRoom(o.code, EventPlayerResumedControl, map[string]any{"playerId": playerID})
	if o.room.Settings.MaxTurnTimerSec > 0 {
		timeout := time.Duration(o.room.Settings.MaxTurnTimerSec) * time.Second
		o.timers.StartTurn(o.code, playerID, timeout)
	}
}

func (o *RoomOrchestrator) handleChat(playerID, name, content string) {
	if content == "" || !o.room.IsMember(playerID) {
		return
	}
	msg := model.ChatMessage{
		SenderID:   playerID,
		SenderName: name,
		Content:    content,
		SentAt:     o.now(),
	}
	next := o.room.Clone()
	next.AddChat(msg)
	if !o.persistAndSwap(next, "") {
		return
	}
	o.bcast.EmitToRoom(o.code, EventChatMessage, msg)
}

func (o *RoomOrchestrator) handleForfeit(playerID string) error {
	if o.room.Status != model.StatusPlaying || o.room.Game == nil {
		return ErrRoomNotPlaying
	}
	seat := o.room.Game.PlayerIndex(playerID)
	if seat < 0 {
		return ErrNotInRoom
	}

	next := o.room.Clone()
	if err := next.Game.Forfeit(seat); err != nil {
		return err
	}
	o.completeGame(next)
	return nil
}

// handleLeave removes the member; the seat stays in the game as a native AI
// driven by their takeover strategy. When no human members remain the game
// completes immediately.
func (o *RoomOrchestrator) handleLeave(playerID string) error {
	if o.room.Status != model.StatusPlaying || o.room.Game == nil {
		return ErrRoomNotPlaying
	}
	leaving := o.room.Player(playerID)
	if leaving == nil {
		return ErrNotInRoom
	}
	strategy := leaving.AITakeoverStrategy
	if strategy == "" {
		strategy = model.StrategyBalanced
	}

	next := o.room.Clone()
	if seat := next.Game.PlayerIndex(playerID); seat >= 0 {
		next.Game.Players[seat].IsAI = true
		next.Game.Players[seat].AIStrategy = strategy
	}
	for i := range next.Players {
		if next.Players[i].UserID == playerID {
			next.Players = append(next.Players[:i], next.Players[i+1:]...)
			break
		}
	}

	hostChanged := false
	if next.HostID == playerID && len(next.Players) > 0 {
		next.HostID = next.Players[0].UserID
		hostChanged = true
	}

	anyHuman := false
	for i := range next.Players {
		if !next.Players[i].IsAI {
			anyHuman = true
			break
		}
	}
	if !anyHuman {
		next.Game.Turn.Phase = tenk.PhaseEnded
		next.Game.IsGameOver = true
		next.Game.WinnerIndex = bestSeat(next.Game)
		o.completeGame(next)
		return nil
	}

	if !o.persistAndSwap(next, "") {
		return ErrPersistence
	}

	o.bcast.EmitToRoom(o.code, EventPlayerLeft, map[string]any{"playerId": playerID})
	if hostChanged {
		o.bcast.EmitToRoom(o.code, EventHostChanged, map[string]any{"hostId": o.room.HostID})
	}
	if o.room.Game.CurrentPlayer().ID == playerID {
		o.timers.StopTurn(o.code)
		o.scheduleAIStep()
	}
	return nil
}

// handleSetStrategy updates the member's AI takeover strategy.
func (o *RoomOrchestrator) handleSetStrategy(playerID, strategy string) error {
	p := o.room.Player(playerID)
	if p == nil {
		return ErrNotInRoom
	}
	next := o.room.Clone()
	next.Player(playerID).AITakeoverStrategy = strategy
	if !o.persistAndSwap(next, "") {
		return ErrPersistence
	}
	return nil
}

// bestSeat picks the highest score, lowest seat on ties.
func bestSeat(g *tenk.GameState) int {
	best := 0
	for i := 1; i < len(g.Players); i++ {
		if g.Players[i].Score > g.Players[best].Score {
			best = i
		}
	}
	return best
}

func (o *RoomOrchestrator) handleRequestState(playerID string) {
	if o.room.Game == nil {
		return
	}
	o.bcast.EmitToPlayer(o.code, playerID, EventGameStateUpdate, map[string]any{
		"gameState": o.room.Game,
	})
}

// completeGame finalizes the room record for a finished game and persists
// it. The run loop stops the worker once the handler returns.
func (o *RoomOrchestrator) completeGame(next *model.Room) {
	now := o.now()
	next.Status = model.StatusFinished
	next.FinishedAt = &now
	next.IsPaused = false
	next.AIControlledPlayerID = ""

	var winner *tenk.Player
	if idx := next.Game.WinnerIndex; idx >= 0 {
		winner = &next.Game.Players[idx]
		next.WinnerID = winner.ID
	}

	if !o.persistAndSwap(next, "") {
		return
	}

	o.timers.StopTurn(o.code)
	o.aiSeq++
	o.turnSeq++

	o.logger.Info().Str("winnerId", next.WinnerID).Msg("Game ended")
	o.bcast.EmitToRoom(o.code, EventGameEnded, map[string]any{
		"winner":     winner,
		"winnerId":   next.WinnerID,
		"finalState": o.room.Game,
	})

	if o.onFinished != nil {
		o.onFinished(o.room.Clone())
	}
}

// persistAndSwap writes the clone through the store and installs it as the
// authoritative record. On failure the previous state stays; if a player is
// named, they get an actionError.
func (o *RoomOrchestrator) persistAndSwap(next *model.Room, playerID string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := o.store.UpdateGame(ctx, next); err != nil {
		o.logger.Error().Err(err).Msg("Persistence failed, action rejected")
		if playerID != "" {
			o.rejectAction(playerID, ErrPersistence)
		}
		return false
	}
	o.room = next
	return true
}

// rejectAction reports a failed action to the offending client only.
func (o *RoomOrchestrator) rejectAction(playerID string, err error) {
	o.bcast.EmitToPlayer(o.code, playerID, EventActionError, map[string]any{
		"message": err.Error(),
	})
}

func (o *RoomOrchestrator) seatIsAIDriven(p *tenk.Player) bool {
	return p.IsAI || o.room.AIControlledPlayerID == p.ID
}

func (o *RoomOrchestrator) rollDice(n int) tenk.Hand {
	roll := make(tenk.Hand, n)
	for i := range roll {
		roll[i] = tenk.Face(o.rng.Intn(6) + 1)
	}
	return roll
}

func toHand(faces []int) tenk.Hand {
	hand := make(tenk.Hand, len(faces))
	for i, f := range faces {
		hand[i] = tenk.Face(f)
	}
	return hand
}

func toClientAction(a bot.Action) ClientAction {
	switch a.Kind {
	case bot.ActionRoll:
		return ClientAction{Kind: ActionRoll}
	case bot.ActionKeep:
		keep := make([]int, len(a.Keep))
		for i, f := range a.Keep {
			keep[i] = int(f)
		}
		return ClientAction{Kind: ActionKeep, Keep: keep}
	case bot.ActionBank:
		return ClientAction{Kind: ActionBank}
	default:
		return ClientAction{Kind: ActionDeclineCarryover}
	}
}
