package tenk

import (
	"errors"
	"time"
)

// Defaults and bounds for game settings.
const (
	DefaultTargetScore    = 10000
	DefaultEntryThreshold = 650
	MinTargetScore        = 1000
	MaxPlayers            = 6
	MinPlayers            = 2
	HandSize              = 5
)

var (
	// ErrTurnNotEnded is returned when the reducer is asked to rotate a
	// turn that is still live.
	ErrTurnNotEnded = errors.New("current turn has not ended")
	// ErrGameOver is returned for any action on a finished game.
	ErrGameOver = errors.New("game is over")
)

// Player is one seat in a game, in fixed rotation order.
type Player struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IsAI       bool   `json:"is_ai,omitempty"`
	AIStrategy string `json:"ai_strategy,omitempty"`
	Score      int    `json:"score"`
	// IsOnBoard is set once the player banks at least the entry threshold
	// of their own points in a single turn. It never flips back.
	IsOnBoard bool `json:"is_on_board"`
	// BestTurn is the highest score banked in a single turn.
	BestTurn int `json:"best_turn,omitempty"`
}

// GameState is the authoritative state of one game.
type GameState struct {
	Players            []Player  `json:"players"`
	CurrentPlayerIndex int       `json:"current_player_index"`
	Turn               TurnState `json:"turn"`
	TargetScore        int       `json:"target_score"`
	EntryThreshold     int       `json:"entry_threshold"`
	IsFinalRound       bool      `json:"is_final_round,omitempty"`
	// FinalRoundTriggeredBy is the index of the player who first crossed
	// the target score, or -1. The game ends when play returns to them.
	FinalRoundTriggeredBy int  `json:"final_round_triggered_by"`
	IsGameOver            bool `json:"is_game_over,omitempty"`
	WinnerIndex           int  `json:"winner_index"`
}

// NewGame builds a game from seated players. Order is fixed for the whole
// game; the first player starts with five fresh dice.
func NewGame(players []Player, targetScore, entryThreshold int, now time.Time) *GameState {
	if targetScore < MinTargetScore {
		targetScore = DefaultTargetScore
	}
	if entryThreshold < 0 {
		entryThreshold = DefaultEntryThreshold
	}
	return &GameState{
		Players:               append([]Player(nil), players...),
		CurrentPlayerIndex:    0,
		Turn:                  NewTurn(0, now),
		TargetScore:           targetScore,
		EntryThreshold:        entryThreshold,
		FinalRoundTriggeredBy: -1,
		WinnerIndex:           -1,
	}
}

// Clone returns a deep copy of the game state.
func (g *GameState) Clone() *GameState {
	out := *g
	out.Players = append([]Player(nil), g.Players...)
	out.Turn = g.Turn.Clone()
	return &out
}

// CurrentPlayer returns the player whose turn it is.
func (g *GameState) CurrentPlayer() *Player {
	return &g.Players[g.CurrentPlayerIndex]
}

// PlayerIndex returns the seat of the given player ID, or -1.
func (g *GameState) PlayerIndex(playerID string) int {
	for i := range g.Players {
		if g.Players[i].ID == playerID {
			return i
		}
	}
	return -1
}

// Roll applies a server-generated roll to the current turn.
func (g *GameState) Roll(roll Hand) error {
	if g.IsGameOver {
		return ErrGameOver
	}
	return g.Turn.ApplyRoll(roll)
}

// Keep applies a keep selection to the current turn.
func (g *GameState) Keep(keep Hand) error {
	if g.IsGameOver {
		return ErrGameOver
	}
	return g.Turn.ApplyKeep(keep)
}

// Bank commits the turn score to the current player, marking them on board
// if their own points cleared the entry threshold.
func (g *GameState) Bank() error {
	if g.IsGameOver {
		return ErrGameOver
	}
	p := g.CurrentPlayer()
	if err := g.Turn.ApplyBank(p.IsOnBoard, g.EntryThreshold); err != nil {
		return err
	}
	p.Score += g.Turn.TurnScore
	if g.Turn.TurnScore > p.BestTurn {
		p.BestTurn = g.Turn.TurnScore
	}
	if !p.IsOnBoard && g.Turn.OwnScore() >= g.EntryThreshold {
		p.IsOnBoard = true
	}
	return nil
}

// DeclineCarryover discards the pot before the first roll of a steal turn.
func (g *GameState) DeclineCarryover() error {
	if g.IsGameOver {
		return ErrGameOver
	}
	return g.Turn.ApplyDeclineCarryover()
}

// EndTurn rotates play after a frozen turn. A bust's lost points become the
// next player's pot; a banked score may trigger the final round; returning
// to the final-round trigger ends the game.
func (g *GameState) EndTurn(now time.Time) error {
	if g.IsGameOver {
		return ErrGameOver
	}
	if g.Turn.Phase != PhaseEnded {
		return ErrTurnNotEnded
	}

	pot := g.Turn.PotForNext()

	if !g.IsFinalRound {
		for i := range g.Players {
			if g.Players[i].Score >= g.TargetScore {
				g.IsFinalRound = true
				g.FinalRoundTriggeredBy = i
				break
			}
		}
	}

	next := (g.CurrentPlayerIndex + 1) % len(g.Players)
	if g.IsFinalRound && next == g.FinalRoundTriggeredBy {
		g.finish()
		return nil
	}

	g.CurrentPlayerIndex = next
	g.Turn = NewTurn(pot, now)
	return nil
}

// Forfeit ends the game immediately; the winner is the highest score among
// the remaining players, lowest seat on ties.
func (g *GameState) Forfeit(playerIdx int) error {
	if g.IsGameOver {
		return ErrGameOver
	}
	g.IsGameOver = true
	g.Turn.Phase = PhaseEnded
	g.WinnerIndex = -1
	best := -1
	for i := range g.Players {
		if i == playerIdx {
			continue
		}
		if g.Players[i].Score > best {
			best = g.Players[i].Score
			g.WinnerIndex = i
		}
	}
	return nil
}

// finish marks the game over and picks the winner: highest score, lowest
// seat on ties.
func (g *GameState) finish() {
	g.IsGameOver = true
	g.Turn.Phase = PhaseEnded
	g.WinnerIndex = 0
	for i := 1; i < len(g.Players); i++ {
		if g.Players[i].Score > g.Players[g.WinnerIndex].Score {
			g.WinnerIndex = i
		}
	}
}
