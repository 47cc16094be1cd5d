package bot

import "github.com/potluck-games/dicepot/pkg/tenk"

// ChaosStrategy flips coins. It still obeys the hard rules (hot dice, entry
// gate, legal phases); only the free choices are random.
type ChaosStrategy struct{}

func (ChaosStrategy) Name() string { return "chaos" }

func (s ChaosStrategy) NextAction(ctx Context) Action {
	if a, ok := nextStep(ctx); ok {
		return a
	}
	t := &ctx.Turn

	if t.Phase == tenk.PhaseStealRequired {
		if botFloat64() < 0.75 {
			return Action{Kind: ActionRoll}
		}
		return Action{Kind: ActionDeclineCarryover}
	}

	// Deciding.
	if !canBank(ctx) {
		return Action{Kind: ActionRoll}
	}
	if botFloat64() < 0.5 {
		return Action{Kind: ActionBank}
	}
	return Action{Kind: ActionRoll}
}
