package bot

import (
	"testing"
	"time"

	"github.com/potluck-games/dicepot/pkg/tenk"
	"github.com/stretchr/testify/assert"
)

var testTime = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func decidingContext(turnScore, diceRemaining int, onBoard bool) Context {
	return Context{
		Turn: tenk.TurnState{
			Phase:         tenk.PhaseDeciding,
			TurnScore:     turnScore,
			DiceRemaining: diceRemaining,
		},
		IsOnBoard:      onBoard,
		EntryThreshold: 650,
		TargetScore:    10000,
	}
}

func TestAllStrategies_HotDiceAlwaysRoll(t *testing.T) {
	for _, name := range Names() {
		s := ForName(name)
		ctx := decidingContext(2000, 5, true)
		a := s.NextAction(ctx)
		assert.Equal(t, ActionRoll, a.Kind, "%s must roll hot dice", name)
	}
}

func TestAllStrategies_NeverBankBelowEntry(t *testing.T) {
	SeedBotRng(1)
	defer ResetBotRng()

	for _, name := range Names() {
		s := ForName(name)
		for i := 0; i < 50; i++ {
			ctx := decidingContext(400, 3, false)
			a := s.NextAction(ctx)
			assert.NotEqual(t, ActionBank, a.Kind, "%s banked below entry threshold", name)
		}
	}
}

func TestAllStrategies_KeepIsLocallyOptimal(t *testing.T) {
	roll := tenk.Hand{1, 1, 5, 3, 6}
	ctx := Context{
		Turn: tenk.TurnState{
			Phase:         tenk.PhaseKeeping,
			CurrentRoll:   roll,
			DiceRemaining: 5,
		},
		IsOnBoard: true,
	}
	want := tenk.Evaluate(roll).Consumed
	for _, name := range Names() {
		a := ForName(name).NextAction(ctx)
		assert.Equal(t, ActionKeep, a.Kind, "%s", name)
		assert.ElementsMatch(t, want, a.Keep, "%s keep", name)
	}
}

func TestAllStrategies_RollingPhaseRolls(t *testing.T) {
	for _, name := range Names() {
		ctx := Context{Turn: tenk.TurnState{Phase: tenk.PhaseRolling, DiceRemaining: 5}}
		a := ForName(name).NextAction(ctx)
		assert.Equal(t, ActionRoll, a.Kind, "%s", name)
	}
}

func TestConservative_BanksSmallTurns(t *testing.T) {
	s := ConservativeStrategy{}
	a := s.NextAction(decidingContext(350, 2, true))
	assert.Equal(t, ActionBank, a.Kind)
}

func TestConservative_RollsWhenSafeDespiteBigScore(t *testing.T) {
	s := ConservativeStrategy{}
	// 4 dice remaining: bust chance ~0.20, risk score well above 0.6.
	a := s.NextAction(decidingContext(2000, 4, true))
	assert.Equal(t, ActionRoll, a.Kind)
}

func TestBalanced_SecuresEntry(t *testing.T) {
	s := BalancedStrategy{}
	a := s.NextAction(decidingContext(700, 2, false))
	assert.Equal(t, ActionBank, a.Kind)

	// Near the threshold with a nearly full hand it stretches instead.
	a = s.NextAction(decidingContext(700, 4, false))
	assert.Equal(t, ActionRoll, a.Kind)
}

func TestBalanced_BanksBigScoreOnShortHand(t *testing.T) {
	s := BalancedStrategy{}
	a := s.NextAction(decidingContext(3000, 1, true))
	assert.Equal(t, ActionBank, a.Kind)
}

func TestAggressive_Thresholds(t *testing.T) {
	s := AggressiveStrategy{}
	assert.Equal(t, ActionRoll, s.NextAction(decidingContext(3000, 3, true)).Kind)
	assert.Equal(t, ActionBank, s.NextAction(decidingContext(3600, 3, true)).Kind)
	assert.Equal(t, ActionBank, s.NextAction(decidingContext(1200, 2, true)).Kind)
}

func TestAggressive_AlwaysAttemptsSteal(t *testing.T) {
	s := AggressiveStrategy{}
	ctx := Context{Turn: tenk.NewTurn(50, testTime), IsOnBoard: true}
	assert.Equal(t, ActionRoll, s.NextAction(ctx).Kind)
}

func TestChaos_OnlyLegalDecidingActions(t *testing.T) {
	SeedBotRng(42)
	defer ResetBotRng()

	s := ChaosStrategy{}
	sawBank, sawRoll := false, false
	for i := 0; i < 100; i++ {
		a := s.NextAction(decidingContext(800, 2, true))
		switch a.Kind {
		case ActionBank:
			sawBank = true
		case ActionRoll:
			sawRoll = true
		default:
			t.Fatalf("illegal deciding action %s", a.Kind)
		}
	}
	assert.True(t, sawBank, "chaos never banked in 100 decisions")
	assert.True(t, sawRoll, "chaos never rolled in 100 decisions")
}

func TestStealDecision_LargePotIsAttempted(t *testing.T) {
	for _, name := range Names() {
		if name == "chaos" {
			continue
		}
		ctx := Context{Turn: tenk.NewTurn(1000, testTime), IsOnBoard: true, EntryThreshold: 650}
		a := ForName(name).NextAction(ctx)
		assert.Equal(t, ActionRoll, a.Kind, "%s should chase a 1000-point pot", name)
	}
}

func TestForName_UnknownFallsBackToBalanced(t *testing.T) {
	assert.Equal(t, "balanced", ForName("does-not-exist").Name())
}
