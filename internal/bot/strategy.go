// Package bot implements the AI policies that drive computer players and
// take over for absent humans. Each strategy is a pure decision function
// over the engine's turn state; the orchestrator rolls the dice.
package bot

import (
	"math"

	"github.com/potluck-games/dicepot/pkg/tenk"
)

// ActionKind is an AI decision.
type ActionKind string

const (
	ActionRoll             ActionKind = "roll"
	ActionKeep             ActionKind = "keep"
	ActionBank             ActionKind = "bank"
	ActionDeclineCarryover ActionKind = "decline_carryover"
)

// Action is one step the AI wants to take.
type Action struct {
	Kind ActionKind
	// Keep is the dice to keep when Kind is ActionKeep.
	Keep tenk.Hand
}

// Context is everything a strategy may consider. It is a snapshot; the
// strategy must not mutate Turn.
type Context struct {
	Turn           tenk.TurnState
	IsOnBoard      bool
	EntryThreshold int
	TargetScore    int
	PlayerScore    int
	BestOpponent   int
	IsFinalRound   bool
}

// Strategy decides the next action for its seat.
type Strategy interface {
	Name() string
	NextAction(ctx Context) Action
}

// ForName maps a strategy name to its implementation. Unknown names fall
// back to balanced so a takeover can always proceed.
func ForName(name string) Strategy {
	switch name {
	case "conservative":
		return &ConservativeStrategy{}
	case "aggressive":
		return &AggressiveStrategy{}
	case "chaos":
		return &ChaosStrategy{}
	default:
		return &BalancedStrategy{}
	}
}

// Names returns the closed set of strategy names.
func Names() []string {
	return []string{"conservative", "balanced", "aggressive", "chaos"}
}

// bustProbability is the chance a roll of n dice scores nothing. A die is
// dead unless it is a 1 or a 5; triples and straights only lower the real
// figure, so (4/6)^n is a usable upper bound for decision-making.
func bustProbability(n int) float64 {
	return math.Pow(4.0/6.0, float64(n))
}

// expectedRollScore is a rough expected keep value for a roll of n dice.
var expectedRollScore = [6]float64{0, 25, 50, 85, 130, 200}

// nextStep resolves the phases every strategy handles identically, and
// returns ok=false when the phase needs a strategy-specific decision.
func nextStep(ctx Context) (Action, bool) {
	t := &ctx.Turn
	switch t.Phase {
	case tenk.PhaseRolling:
		return Action{Kind: ActionRoll}, true
	case tenk.PhaseKeeping:
		// Locally optimal keep: everything the evaluator consumes.
		sc := tenk.Evaluate(t.CurrentRoll)
		return Action{Kind: ActionKeep, Keep: sc.Consumed}, true
	case tenk.PhaseDeciding:
		// Hot dice: five fresh dice with points already secured is
		// always worth another roll.
		if t.DiceRemaining == tenk.HandSize && t.TurnScore > 0 {
			return Action{Kind: ActionRoll}, true
		}
	}
	return Action{}, false
}

// canBank reports whether banking is legal for this seat right now.
func canBank(ctx Context) bool {
	t := &ctx.Turn
	if t.TurnScore <= 0 {
		return false
	}
	return ctx.IsOnBoard || t.OwnScore() >= ctx.EntryThreshold
}

// stealEV compares attempting the pot against a fresh start. Success means
// the first roll of five dice scores at all; the margin term weights how
// much of the pot the seat expects to actually keep.
func stealEV(ctx Context, margin float64) float64 {
	successP := 1 - bustProbability(ctx.Turn.DiceRemaining)
	return successP*float64(ctx.Turn.CarryoverPoints)*margin - (1-successP)*expectedRollScore[ctx.Turn.DiceRemaining]
}
