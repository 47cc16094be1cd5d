package bot

import "github.com/potluck-games/dicepot/pkg/tenk"

// BalancedStrategy weighs the expected value of another roll against the
// points at stake, with a hard rule to secure board entry once the
// threshold is within reach.
type BalancedStrategy struct{}

func (BalancedStrategy) Name() string { return "balanced" }

// diceCountBonus nudges the EV upward when many dice remain; partial rolls
// bust far more often than the raw (4/6)^n suggests they pay.
const diceCountBonus = 25

func (s BalancedStrategy) NextAction(ctx Context) Action {
	if a, ok := nextStep(ctx); ok {
		return a
	}
	t := &ctx.Turn

	if t.Phase == tenk.PhaseStealRequired {
		if stealEV(ctx, 1.0) > 0 {
			return Action{Kind: ActionRoll}
		}
		return Action{Kind: ActionDeclineCarryover}
	}

	// Deciding.
	if !canBank(ctx) {
		return Action{Kind: ActionRoll}
	}

	// Secure entry: once the seat's own points clear the threshold, bank
	// and get on the board, unless a nearly full hand makes stretching
	// for a bigger opening turn cheap.
	if !ctx.IsOnBoard && t.OwnScore() >= ctx.EntryThreshold {
		if t.DiceRemaining >= 4 && t.OwnScore()-ctx.EntryThreshold < 150 {
			return Action{Kind: ActionRoll}
		}
		return Action{Kind: ActionBank}
	}

	bustP := bustProbability(t.DiceRemaining)
	ev := (1-bustP)*expectedRollScore[t.DiceRemaining] - bustP*float64(t.TurnScore)
	ev += float64(t.DiceRemaining) * diceCountBonus
	if ev > 0 {
		return Action{Kind: ActionRoll}
	}
	return Action{Kind: ActionBank}
}
