package tenk

import (
	"errors"
	"fmt"
	"time"
)

// Phase is the per-turn state machine phase.
type Phase string

const (
	// PhaseRolling: no dice on the table; the player must roll.
	PhaseRolling Phase = "rolling"
	// PhaseKeeping: a scoring roll is on the table; the player must keep.
	PhaseKeeping Phase = "keeping"
	// PhaseDeciding: a keep was committed; bank or roll again.
	PhaseDeciding Phase = "deciding"
	// PhaseStealRequired: a pot from the previous player's bust is on the
	// table; the player rolls to try to claim it, or declines it first.
	PhaseStealRequired Phase = "steal_required"
	// PhaseEnded: the turn is frozen (banked or busted).
	PhaseEnded Phase = "ended"
)

var (
	// ErrPhaseViolation is returned when an action is illegal in the
	// current phase.
	ErrPhaseViolation = errors.New("action not allowed in current phase")
	// ErrBelowEntry is returned when a player not yet on the board tries
	// to bank less than the entry threshold of their own points.
	ErrBelowEntry = fmt.Errorf("%w: banked points below entry threshold", ErrPhaseViolation)
	// ErrNothingToBank is returned when banking with a zero turn score.
	ErrNothingToBank = fmt.Errorf("%w: nothing to bank", ErrPhaseViolation)
)

// TurnState is the state of the current player's turn.
//
// Invariant: len(KeptDice) + DiceRemaining == 5 except transiently while a
// roll sits unevaluated in CurrentRoll.
type TurnState struct {
	Phase            Phase     `json:"phase"`
	CurrentRoll      Hand      `json:"current_roll,omitempty"`
	KeptDice         Hand      `json:"kept_dice,omitempty"`
	TurnScore        int       `json:"turn_score"`
	DiceRemaining    int       `json:"dice_remaining"`
	CarryoverPoints  int       `json:"carryover_points,omitempty"`
	HasCarryover     bool      `json:"has_carryover,omitempty"`
	CarryoverClaimed bool      `json:"carryover_claimed,omitempty"`
	Busted           bool      `json:"busted,omitempty"`
	Banked           bool      `json:"banked,omitempty"`
	// LostScore is the turn score that was on the table when a bust ended
	// the turn. It seeds the next player's pot.
	LostScore int       `json:"lost_score,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// NewTurn starts a turn with five fresh dice. A positive carryover puts the
// turn in the steal phase.
func NewTurn(carryover int, now time.Time) TurnState {
	t := TurnState{
		Phase:         PhaseRolling,
		DiceRemaining: 5,
		StartedAt:     now,
	}
	if carryover > 0 {
		t.Phase = PhaseStealRequired
		t.HasCarryover = true
		t.CarryoverPoints = carryover
	}
	return t
}

// Clone returns an independent copy of the turn.
func (t TurnState) Clone() TurnState {
	t.CurrentRoll = t.CurrentRoll.Clone()
	t.KeptDice = t.KeptDice.Clone()
	return t
}

// CanRoll reports whether a roll is legal in the current phase.
func (t *TurnState) CanRoll() bool {
	switch t.Phase {
	case PhaseRolling, PhaseDeciding, PhaseStealRequired:
		return true
	}
	return false
}

// ApplyRoll places a server-generated roll on the table. A roll with no
// scoring shape is a bust: the turn ends, the accumulated score is lost, and
// any pot (claimed or not) is recorded in LostScore for the next player.
func (t *TurnState) ApplyRoll(roll Hand) error {
	if !t.CanRoll() {
		return ErrPhaseViolation
	}
	if len(roll) != t.DiceRemaining {
		return fmt.Errorf("roll size %d does not match dice remaining %d", len(roll), t.DiceRemaining)
	}
	t.CurrentRoll = roll.Clone()

	if Evaluate(roll).Points == 0 {
		t.Busted = true
		t.Phase = PhaseEnded
		t.LostScore = t.TurnScore
		if t.LostScore == 0 && t.HasCarryover && !t.CarryoverClaimed {
			// Busting the steal attempt itself passes the pot on intact.
			t.LostScore = t.CarryoverPoints
		}
		t.TurnScore = 0
		return nil
	}
	t.Phase = PhaseKeeping
	return nil
}

// ApplyKeep commits a keep selection from the current roll. The first
// scoring keep of a steal turn claims the pot into the turn score. Keeping
// the last die refreshes the hand to five ("hot dice").
func (t *TurnState) ApplyKeep(keep Hand) error {
	if t.Phase != PhaseKeeping {
		return ErrPhaseViolation
	}
	if err := ValidateKeep(t.CurrentRoll, keep); err != nil {
		return err
	}
	sc := Evaluate(keep)
	t.KeptDice = append(t.KeptDice, keep.Clone()...)
	t.TurnScore += sc.Points
	t.DiceRemaining -= len(keep)
	t.CurrentRoll = nil
	if t.DiceRemaining == 0 {
		// Hot dice: all five kept, the hand refreshes.
		t.DiceRemaining = 5
		t.KeptDice = nil
	}
	if t.HasCarryover && !t.CarryoverClaimed {
		t.CarryoverClaimed = true
		t.TurnScore += t.CarryoverPoints
	}
	t.Phase = PhaseDeciding
	return nil
}

// OwnScore is the turn score excluding a claimed pot; the entry threshold is
// judged against it.
func (t *TurnState) OwnScore() int {
	if t.CarryoverClaimed {
		return t.TurnScore - t.CarryoverPoints
	}
	return t.TurnScore
}

// ApplyBank freezes the turn with its score committed. Players not yet on
// the board must clear the entry threshold with their own points.
func (t *TurnState) ApplyBank(isOnBoard bool, entryThreshold int) error {
	if t.Phase != PhaseDeciding {
		return ErrPhaseViolation
	}
	if t.TurnScore <= 0 {
		return ErrNothingToBank
	}
	if !isOnBoard && t.OwnScore() < entryThreshold {
		return ErrBelowEntry
	}
	t.Banked = true
	t.Phase = PhaseEnded
	return nil
}

// ApplyDeclineCarryover discards the pot before any roll of a steal turn.
func (t *TurnState) ApplyDeclineCarryover() error {
	if t.Phase != PhaseStealRequired || t.CurrentRoll != nil || len(t.KeptDice) > 0 {
		return ErrPhaseViolation
	}
	t.CarryoverPoints = 0
	t.HasCarryover = false
	t.Phase = PhaseRolling
	return nil
}

// PotForNext returns the pot the next player inherits from this turn, zero
// if none. Only a bust seeds a pot; a banked turn consumes it.
func (t *TurnState) PotForNext() int {
	if t.Busted {
		return t.LostScore
	}
	return 0
}
