// Package tenk implements the rules engine for a push-your-luck dice game
// played to a target score: hand scoring, keep-selection validation, the
// per-turn state machine, and the whole-game reducer. Everything in this
// package is deterministic and free of I/O; dice are rolled by the caller.
package tenk

import "fmt"

// Face is a single die face, 1 through 6.
type Face int

// Hand is a bag of 1-5 die faces, in roll order.
type Hand []Face

// Clone returns an independent copy of the hand.
func (h Hand) Clone() Hand {
	if h == nil {
		return nil
	}
	out := make(Hand, len(h))
	copy(out, h)
	return out
}

// counts returns the multiplicity of each face, indexed 1..6.
func (h Hand) counts() [7]int {
	var c [7]int
	for _, f := range h {
		if f >= 1 && f <= 6 {
			c[f]++
		}
	}
	return c
}

// BreakdownItem is one scoring shape consumed from a hand.
type BreakdownItem struct {
	Description string `json:"description"`
	Points      int    `json:"points"`
	Faces       Hand   `json:"faces"`
}

// Score is the result of evaluating a hand.
//
// Consumed and Remaining partition the hand as multisets: Consumed is the
// exact subset accounted for by Points, Remaining scored nothing.
type Score struct {
	Points    int             `json:"points"`
	Consumed  Hand            `json:"consumed"`
	Remaining Hand            `json:"remaining"`
	Breakdown []BreakdownItem `json:"breakdown"`
}

// Evaluate scores a hand. Exactly one primary shape is chosen, in fixed
// priority order; leftover 1s and 5s are then scored individually. Within a
// shape the highest qualifying face wins. Points == 0 on a fresh roll means
// a bust.
//
// Shapes, highest priority first:
//
//	five of a kind   1000×face (five 1s score 5000)
//	large straight   1-5 or 2-6, 1500
//	four of a kind   200×face
//	small straight   a run of exactly four dice, 750
//	three of a kind  100×face, except three 1s score 300
//	singles          each 1 scores 100, each 5 scores 50
func Evaluate(hand Hand) Score {
	c := hand.counts()
	s := Score{}

	// Five of a kind requires all five dice.
	if len(hand) == 5 {
		for f := Face(6); f >= 1; f-- {
			if c[f] == 5 {
				pts := 1000 * int(f)
				if f == 1 {
					pts = 5000
				}
				s.add(fmt.Sprintf("five %ds", f), pts, repeat(f, 5))
				return s
			}
		}
		if isRun(c, 1, 5) {
			s.add("straight 1-5", 1500, Hand{1, 2, 3, 4, 5})
			return s
		}
		if isRun(c, 2, 6) {
			s.add("straight 2-6", 1500, Hand{2, 3, 4, 5, 6})
			return s
		}
	}

	for f := Face(6); f >= 1; f-- {
		if c[f] >= 4 {
			c[f] -= 4
			s.add(fmt.Sprintf("four %ds", f), 200*int(f), repeat(f, 4))
			s.scoreSingles(&c)
			s.sweepRemaining(c)
			return s
		}
	}

	// A small straight is a hand of exactly four consecutive faces; a
	// fifth die disqualifies it (the run can still be kept on its own).
	if len(hand) == 4 {
		for lo := Face(3); lo >= 1; lo-- {
			if isRun(c, lo, lo+3) {
				s.add(fmt.Sprintf("straight %d-%d", lo, lo+3), 750, Hand{lo, lo + 1, lo + 2, lo + 3})
				return s
			}
		}
	}

	for f := Face(6); f >= 1; f-- {
		if c[f] >= 3 {
			pts := 100 * int(f)
			if f == 1 {
				pts = 300
			}
			c[f] -= 3
			s.add(fmt.Sprintf("three %ds", f), pts, repeat(f, 3))
			s.scoreSingles(&c)
			s.sweepRemaining(c)
			return s
		}
	}

	s.scoreSingles(&c)
	s.sweepRemaining(c)
	return s
}

// add appends a breakdown item and accounts its faces as consumed.
func (s *Score) add(desc string, points int, faces Hand) {
	s.Points += points
	s.Consumed = append(s.Consumed, faces...)
	s.Breakdown = append(s.Breakdown, BreakdownItem{Description: desc, Points: points, Faces: faces})
}

// scoreSingles consumes leftover 1s (100 each) and 5s (50 each).
func (s *Score) scoreSingles(c *[7]int) {
	if n := c[1]; n > 0 {
		c[1] = 0
		s.add(singleDesc(1, n), 100*n, repeat(1, n))
	}
	if n := c[5]; n > 0 {
		c[5] = 0
		s.add(singleDesc(5, n), 50*n, repeat(5, n))
	}
}

// sweepRemaining moves all unconsumed faces into Remaining, lowest first.
func (s *Score) sweepRemaining(c [7]int) {
	for f := Face(1); f <= 6; f++ {
		for i := 0; i < c[f]; i++ {
			s.Remaining = append(s.Remaining, f)
		}
	}
}

func singleDesc(f Face, n int) string {
	if n == 1 {
		return fmt.Sprintf("single %d", f)
	}
	return fmt.Sprintf("%d single %ds", n, f)
}

// isRun reports whether every face in [lo, hi] appears exactly once.
func isRun(c [7]int, lo, hi Face) bool {
	for f := lo; f <= hi; f++ {
		if c[f] != 1 {
			return false
		}
	}
	return true
}

func repeat(f Face, n int) Hand {
	h := make(Hand, n)
	for i := range h {
		h[i] = f
	}
	return h
}
