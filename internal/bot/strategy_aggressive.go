package bot

import "github.com/potluck-games/dicepot/pkg/tenk"

// AggressiveStrategy chases huge turns. It keeps rolling until the turn
// score is enormous or the hand is nearly spent.
type AggressiveStrategy struct{}

func (AggressiveStrategy) Name() string { return "aggressive" }

const (
	aggressiveBankAt     = 3500
	aggressiveShortHand  = 2
	aggressiveShortScore = 1000
)

func (s AggressiveStrategy) NextAction(ctx Context) Action {
	if a, ok := nextStep(ctx); ok {
		return a
	}
	t := &ctx.Turn

	if t.Phase == tenk.PhaseStealRequired {
		// Pots are free upside; always attempt the steal.
		return Action{Kind: ActionRoll}
	}

	// Deciding.
	if !canBank(ctx) {
		return Action{Kind: ActionRoll}
	}
	if t.TurnScore >= aggressiveBankAt {
		return Action{Kind: ActionBank}
	}
	if t.DiceRemaining <= aggressiveShortHand && t.TurnScore >= aggressiveShortScore {
		return Action{Kind: ActionBank}
	}
	return Action{Kind: ActionRoll}
}
