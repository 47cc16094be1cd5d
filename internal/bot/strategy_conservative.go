package bot

import "github.com/potluck-games/dicepot/pkg/tenk"

// ConservativeStrategy banks early and small. It locks in modest turns and
// only presses on when the dice strongly favor another roll.
type ConservativeStrategy struct{}

func (ConservativeStrategy) Name() string { return "conservative" }

const (
	conservativeBankAt = 300
	// A large unbanked turn score is a liability: busting hands it to the
	// next player as a pot.
	conservativeRiskCeil = 0.6
	conservativeBustCeil = 0.35
)

func (s ConservativeStrategy) NextAction(ctx Context) Action {
	if a, ok := nextStep(ctx); ok {
		return a
	}
	t := &ctx.Turn

	if t.Phase == tenk.PhaseStealRequired {
		// Only chase pots that are clearly worth the exposure.
		if stealEV(ctx, 0.8) > 0 {
			return Action{Kind: ActionRoll}
		}
		return Action{Kind: ActionDeclineCarryover}
	}

	// Deciding.
	if !canBank(ctx) {
		return Action{Kind: ActionRoll}
	}
	if t.TurnScore >= conservativeBankAt {
		// Banking a big score is still wrong when the table is safe: a
		// later bust would gift the accumulated pot, but with plenty of
		// dice and a low bust chance another roll dominates.
		risk := riskScore(t.TurnScore)
		if risk > conservativeRiskCeil && t.DiceRemaining > 2 && bustProbability(t.DiceRemaining) < conservativeBustCeil {
			return Action{Kind: ActionRoll}
		}
		return Action{Kind: ActionBank}
	}
	return Action{Kind: ActionRoll}
}

// riskScore maps a turn score onto [0,1): how painful losing it would be.
func riskScore(turnScore int) float64 {
	return float64(turnScore) / float64(turnScore+500)
}
