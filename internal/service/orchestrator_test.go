package service

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/potluck-games/dicepot/internal/model"
	"github.com/potluck-games/dicepot/internal/repository/memory"
	"github.com/potluck-games/dicepot/pkg/tenk"
)

// newTestOrchestrator seeds the store with the room and returns an
// orchestrator whose handlers are driven synchronously (the worker loop is
// not started).
func newTestOrchestrator(t *testing.T, room *model.Room) (*RoomOrchestrator, *memory.Store, *recordingBroadcaster) {
	t.Helper()
	store := memory.New()
	if _, err := store.CreateGame(context.Background(), room); err != nil {
		t.Fatalf("seed room: %v", err)
	}
	rec := &recordingBroadcaster{}
	timers := NewTurnTimerManager(rec, nil)
	o := NewRoomOrchestrator(room.Clone(), store, rec, timers, rand.New(rand.NewSource(7)), nil)
	return o, store, rec
}

func defaultTestSettings() model.Settings {
	return model.Settings{TargetScore: 10000, EntryThreshold: 650}
}

func TestOrchestrator_RejectsWrongTurn(t *testing.T) {
	room := playingRoom("WRNGTN", defaultTestSettings(), humanPlayer("p1", "Ann"), humanPlayer("p2", "Ben"))
	o, _, rec := newTestOrchestrator(t, room)

	o.handleAction("p2", ClientAction{Kind: ActionRoll})

	errs := rec.ofType(EventActionError)
	require.Len(t, errs, 1)
	assert.Equal(t, "p2", errs[0].PlayerID)
	assert.Equal(t, tenk.PhaseRolling, o.room.Game.Turn.Phase)
}

func TestOrchestrator_RollProducesSnapshot(t *testing.T) {
	room := playingRoom("ROLLOK", defaultTestSettings(), humanPlayer("p1", "Ann"), humanPlayer("p2", "Ben"))
	o, store, rec := newTestOrchestrator(t, room)

	o.handleAction("p1", ClientAction{Kind: ActionRoll})

	updates := rec.ofType(EventGameStateUpdate)
	require.Len(t, updates, 1)

	turn := o.room.Game.Turn
	require.Len(t, turn.CurrentRoll, 5)
	for _, f := range turn.CurrentRoll {
		assert.GreaterOrEqual(t, int(f), 1)
		assert.LessOrEqual(t, int(f), 6)
	}
	if turn.Busted {
		assert.Equal(t, tenk.PhaseEnded, turn.Phase)
	} else {
		assert.Equal(t, tenk.PhaseKeeping, turn.Phase)
	}

	// The persisted record matches the authoritative copy.
	stored, err := store.GetGame(context.Background(), "ROLLOK")
	require.NoError(t, err)
	assert.Equal(t, turn.Phase, stored.Game.Turn.Phase)
	assert.Equal(t, turn.CurrentRoll, stored.Game.Turn.CurrentRoll)
}

func TestOrchestrator_KeepThenBank(t *testing.T) {
	settings := defaultTestSettings()
	settings.EntryThreshold = 0
	room := playingRoom("KEPBNK", settings, humanPlayer("p1", "Ann"), humanPlayer("p2", "Ben"))
	room.Game.Turn.Phase = tenk.PhaseKeeping
	room.Game.Turn.CurrentRoll = tenk.Hand{1, 5, 2, 3, 6}
	o, _, rec := newTestOrchestrator(t, room)

	o.handleAction("p1", ClientAction{Kind: ActionKeep, Keep: []int{1}})
	require.Equal(t, tenk.PhaseDeciding, o.room.Game.Turn.Phase)
	assert.Equal(t, 100, o.room.Game.Turn.TurnScore)

	o.handleAction("p1", ClientAction{Kind: ActionBank})
	require.Equal(t, tenk.PhaseEnded, o.room.Game.Turn.Phase)
	assert.True(t, o.room.Game.Turn.Banked)
	assert.Equal(t, 100, o.room.Game.CurrentPlayer().Score)

	// A banked turn rotates without the bust presentation delay.
	o.handleEndTurn(o.turnSeq)
	assert.Equal(t, 1, o.room.Game.CurrentPlayerIndex)
	assert.NotEqual(t, -1, rec.indexOf(EventTurnChanged))
}

func TestOrchestrator_BankBelowEntryRejected(t *testing.T) {
	room := playingRoom("ENTRYG", defaultTestSettings(), humanPlayer("p1", "Ann"), humanPlayer("p2", "Ben"))
	room.Game.Turn.Phase = tenk.PhaseDeciding
	room.Game.Turn.TurnScore = 500
	room.Game.Turn.KeptDice = tenk.Hand{1, 1, 1, 1, 1}
	room.Game.Turn.DiceRemaining = 0
	o, _, rec := newTestOrchestrator(t, room)

	o.handleAction("p1", ClientAction{Kind: ActionBank})

	errs := rec.ofType(EventActionError)
	require.Len(t, errs, 1)
	assert.Equal(t, "p1", errs[0].PlayerID)
	assert.Equal(t, tenk.PhaseDeciding, o.room.Game.Turn.Phase)
	assert.Equal(t, 500, o.room.Game.Turn.TurnScore)
}

func TestOrchestrator_BustRotatesWithCarryover(t *testing.T) {
	room := playingRoom("BUSTCO", defaultTestSettings(), humanPlayer("p1", "Ann"), humanPlayer("p2", "Ben"))
	room.Game.Turn.Phase = tenk.PhaseEnded
	room.Game.Turn.Busted = true
	room.Game.Turn.LostScore = 400
	o, _, rec := newTestOrchestrator(t, room)

	o.handleEndTurn(o.turnSeq)

	game := o.room.Game
	assert.Equal(t, 1, game.CurrentPlayerIndex)
	assert.Equal(t, tenk.PhaseStealRequired, game.Turn.Phase)
	assert.Equal(t, 400, game.Turn.CarryoverPoints)
	assert.Equal(t, 5, game.Turn.DiceRemaining)
	assert.NotEqual(t, -1, rec.indexOf(EventTurnChanged))
}

func TestOrchestrator_StaleEndTurnIgnored(t *testing.T) {
	room := playingRoom("STALET", defaultTestSettings(), humanPlayer("p1", "Ann"), humanPlayer("p2", "Ben"))
	room.Game.Turn.Phase = tenk.PhaseEnded
	room.Game.Turn.Banked = true
	room.Game.Turn.TurnScore = 700
	o, _, _ := newTestOrchestrator(t, room)

	o.handleEndTurn(o.turnSeq + 1)
	assert.Equal(t, 0, o.room.Game.CurrentPlayerIndex)
}

func TestOrchestrator_TimeoutTriggersTakeover(t *testing.T) {
	room := playingRoom("TAKEOV", defaultTestSettings(),
		humanPlayer("p1", "Ann"), humanPlayer("p2", "Ben"))
	room.Players[0].AITakeoverStrategy = model.StrategyConservative
	o, _, rec := newTestOrchestrator(t, room)

	o.handleTimeout("p1")

	assert.Equal(t, "p1", o.room.AIControlledPlayerID)
	takeovers := rec.ofType(EventAITakeover)
	require.Len(t, takeovers, 1)
	data := takeovers[0].Data.(map[string]any)
	assert.Equal(t, "p1", data["playerId"])
	assert.Equal(t, model.StrategyConservative, data["aiStrategy"])

	// The aiTakeover event precedes the first snapshot the AI produces.
	o.handleAIStep(o.aiSeq)
	updIdx := rec.indexOf(EventGameStateUpdate)
	require.NotEqual(t, -1, updIdx)
	assert.Less(t, rec.indexOf(EventAITakeover), updIdx)

	// The AI acted for the taken-over seat.
	assert.NotEqual(t, tenk.PhaseRolling, o.room.Game.Turn.Phase)
}

func TestOrchestrator_AIStepSeqCancelled(t *testing.T) {
	room := playingRoom("AISEQC", defaultTestSettings(),
		aiPlayer("b1", "Bot", model.StrategyBalanced), humanPlayer("p2", "Ben"))
	o, _, rec := newTestOrchestrator(t, room)

	stale := o.aiSeq
	o.aiSeq++
	o.handleAIStep(stale)

	assert.Empty(t, rec.ofType(EventGameStateUpdate))
	assert.Equal(t, tenk.PhaseRolling, o.room.Game.Turn.Phase)
}

func TestOrchestrator_Forfeit(t *testing.T) {
	room := playingRoom("FORFEI", defaultTestSettings(), humanPlayer("p1", "Ann"), humanPlayer("p2", "Ben"))
	room.Game.Players[1].Score = 1200
	o, store, rec := newTestOrchestrator(t, room)

	require.NoError(t, o.handleForfeit("p1"))

	assert.Equal(t, model.StatusFinished, o.room.Status)
	assert.Equal(t, "p2", o.room.WinnerID)
	require.Len(t, rec.ofType(EventGameEnded), 1)

	stored, err := store.GetGame(context.Background(), "FORFEI")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFinished, stored.Status)

	// No further actions accepted.
	rec.reset()
	o.handleAction("p2", ClientAction{Kind: ActionRoll})
	require.Len(t, rec.ofType(EventActionError), 1)
}

func TestOrchestrator_PauseOnLastHumanDisconnect(t *testing.T) {
	room := playingRoom("PAUSER", defaultTestSettings(),
		humanPlayer("p1", "Ann"), aiPlayer("b1", "Bot", model.StrategyBalanced))
	o, _, rec := newTestOrchestrator(t, room)

	o.handleDisconnect("p1")
	assert.True(t, o.room.IsPaused)
	require.Len(t, rec.ofType(EventGamePaused), 1)

	// Actions are rejected while paused.
	o.handleAction("p1", ClientAction{Kind: ActionRoll})
	require.Len(t, rec.ofType(EventActionError), 1)

	o.handleConnect("p1")
	assert.False(t, o.room.IsPaused)
	require.Len(t, rec.ofType(EventGameResumed), 1)
}

func TestOrchestrator_ResumeControl(t *testing.T) {
	room := playingRoom("RESUME", defaultTestSettings(), humanPlayer("p1", "Ann"), humanPlayer("p2", "Ben"))
	room.AIControlledPlayerID = "p1"
	o, _, rec := newTestOrchestrator(t, room)

	before := o.aiSeq
	o.handleResumeControl("p1")

	assert.Empty(t, o.room.AIControlledPlayerID)
	assert.Greater(t, o.aiSeq, before)
	require.Len(t, rec.ofType(EventPlayerResumedControl), 1)
}

func TestOrchestrator_ResumeControlWrongPlayerIgnored(t *testing.T) {
	room := playingRoom("RESNOP", defaultTestSettings(), humanPlayer("p1", "Ann"), humanPlayer("p2", "Ben"))
	room.AIControlledPlayerID = "p1"
	o, _, rec := newTestOrchestrator(t, room)

	o.handleResumeControl("p2")
	assert.Equal(t, "p1", o.room.AIControlledPlayerID)
	assert.Empty(t, rec.ofType(EventPlayerResumedControl))
}

func TestOrchestrator_PersistenceFailureRejectsAction(t *testing.T) {
	room := playingRoom("PFAULT", defaultTestSettings(), humanPlayer("p1", "Ann"), humanPlayer("p2", "Ben"))
	o, store, rec := newTestOrchestrator(t, room)
	failing := &failingStore{Store: store, failUpdates: true}
	o.store = failing

	o.handleAction("p1", ClientAction{Kind: ActionRoll})

	require.Len(t, rec.ofType(EventActionError), 1)
	assert.Equal(t, tenk.PhaseRolling, o.room.Game.Turn.Phase)
	assert.Nil(t, o.room.Game.Turn.CurrentRoll)
}

func TestOrchestrator_LeaveConvertsSeatToAI(t *testing.T) {
	room := playingRoom("LEAVEG", defaultTestSettings(),
		humanPlayer("p1", "Ann"), humanPlayer("p2", "Ben"), humanPlayer("p3", "Cle"))
	room.Players[1].AITakeoverStrategy = model.StrategyAggressive
	o, _, rec := newTestOrchestrator(t, room)

	require.NoError(t, o.handleLeave("p2"))

	seat := o.room.Game.PlayerIndex("p2")
	require.GreaterOrEqual(t, seat, 0)
	assert.True(t, o.room.Game.Players[seat].IsAI)
	assert.Equal(t, model.StrategyAggressive, o.room.Game.Players[seat].AIStrategy)
	assert.False(t, o.room.IsMember("p2"))
	require.Len(t, rec.ofType(EventPlayerLeft), 1)
}

func TestOrchestrator_LastHumanLeaveEndsGame(t *testing.T) {
	room := playingRoom("LEAVLA", defaultTestSettings(),
		humanPlayer("p1", "Ann"), aiPlayer("b1", "Bot", model.StrategyBalanced))
	room.Game.Players[1].Score = 900
	o, _, rec := newTestOrchestrator(t, room)

	require.NoError(t, o.handleLeave("p1"))

	assert.Equal(t, model.StatusFinished, o.room.Status)
	assert.Equal(t, "b1", o.room.WinnerID)
	require.Len(t, rec.ofType(EventGameEnded), 1)
}

func TestOrchestrator_DiceSelectedIsNotAMutation(t *testing.T) {
	room := playingRoom("DICSEL", defaultTestSettings(), humanPlayer("p1", "Ann"), humanPlayer("p2", "Ben"))
	o, store, rec := newTestOrchestrator(t, room)

	o.handleAction("p1", ClientAction{Kind: ActionDiceSelected})

	assert.Empty(t, rec.ofType(EventGameStateUpdate))
	stored, err := store.GetGame(context.Background(), "DICSEL")
	require.NoError(t, err)
	assert.Equal(t, tenk.PhaseRolling, stored.Game.Turn.Phase)
}

func TestOrchestrator_HotDiceFlag(t *testing.T) {
	room := playingRoom("HOTDIC", defaultTestSettings(), humanPlayer("p1", "Ann"), humanPlayer("p2", "Ben"))
	room.Game.Turn.Phase = tenk.PhaseKeeping
	room.Game.Turn.CurrentRoll = tenk.Hand{1, 1, 1, 5, 5}
	o, _, rec := newTestOrchestrator(t, room)

	o.handleAction("p1", ClientAction{Kind: ActionKeep, Keep: []int{1, 1, 1, 5, 5}})

	turn := o.room.Game.Turn
	assert.Equal(t, 400, turn.TurnScore)
	assert.Equal(t, 5, turn.DiceRemaining)
	assert.Empty(t, turn.KeptDice)

	updates := rec.ofType(EventGameStateUpdate)
	require.Len(t, updates, 1)
	last := updates[0].Data.(map[string]any)["lastAction"].(map[string]any)
	flags := last["flags"].(map[string]any)
	assert.Equal(t, true, flags["hotDice"])
}

func TestOrchestrator_SyncForfeitRepliesBeforeShutdown(t *testing.T) {
	room := playingRoom("FINCAL", defaultTestSettings(), humanPlayer("p1", "Ann"), humanPlayer("p2", "Ben"))
	o, _, rec := newTestOrchestrator(t, room)

	var finished *model.Room
	o.onFinished = func(r *model.Room) { finished = r }
	o.Start()

	// The worker finishes the game on this message; the caller must still
	// get the success reply, not a shutdown error.
	require.NoError(t, o.Forfeit(context.Background(), "p1"))

	require.NotNil(t, finished)
	assert.Equal(t, model.StatusFinished, finished.Status)
	assert.Equal(t, "p2", finished.WinnerID)
	require.Len(t, rec.ofType(EventGameEnded), 1)

	select {
	case <-o.done:
	case <-time.After(time.Second):
		t.Fatal("worker should stop after the game ends")
	}
}

func TestOrchestrator_SyncLeaveLastHumanReplies(t *testing.T) {
	room := playingRoom("SYNCLV", defaultTestSettings(),
		humanPlayer("p1", "Ann"), aiPlayer("b1", "Bot", model.StrategyBalanced))
	o, store, _ := newTestOrchestrator(t, room)
	o.Start()

	require.NoError(t, o.Leave(context.Background(), "p1"))

	select {
	case <-o.done:
	case <-time.After(time.Second):
		t.Fatal("worker should stop after the game ends")
	}
	stored, err := store.GetGame(context.Background(), "SYNCLV")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFinished, stored.Status)
	assert.Equal(t, "b1", stored.WinnerID)
}
