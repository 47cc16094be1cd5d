package tenk

import "errors"

// Keep-selection validation errors. All three wrap ErrInvalidKeep so callers
// can match the family with errors.Is.
var (
	ErrInvalidKeep    = errors.New("invalid keep")
	ErrKeepEmpty      = wrapKeep("selection is empty")
	ErrKeepNotInRoll  = wrapKeep("selection is not part of the roll")
	ErrKeepNotScoring = wrapKeep("every kept die must score")
)

func wrapKeep(msg string) error {
	return &keepError{msg: msg}
}

type keepError struct{ msg string }

func (e *keepError) Error() string { return "invalid keep: " + e.msg }
func (e *keepError) Unwrap() error { return ErrInvalidKeep }

// ValidateKeep checks that keep is a legal selection from roll: nonempty, a
// sub-bag of the roll, and fully scoring (no kept die may be dead weight).
func ValidateKeep(roll, keep Hand) error {
	if len(keep) == 0 {
		return ErrKeepEmpty
	}
	rc := roll.counts()
	for _, f := range keep {
		if f < 1 || f > 6 || rc[f] == 0 {
			return ErrKeepNotInRoll
		}
		rc[f]--
	}
	sc := Evaluate(keep)
	if sc.Points == 0 || len(sc.Remaining) > 0 {
		return ErrKeepNotScoring
	}
	return nil
}

// runs that a selection can be building toward.
var straightRuns = [][]Face{
	{1, 2, 3, 4, 5},
	{2, 3, 4, 5, 6},
	{1, 2, 3, 4},
	{2, 3, 4, 5},
	{3, 4, 5, 6},
}

// SelectableIndices returns the indices of roll a client may toggle next,
// given the indices it has already selected. Selected indices are always
// returned (deselection is always allowed). An unselected index qualifies
// when adding it strictly improves the selection's score with no remainder,
// or when the grown selection is still a coherent prefix of a shape the roll
// can complete (a straight, an n-of-a-kind backed by at least a triple, or
// pure 1s and 5s).
func SelectableIndices(roll Hand, selected []int) []int {
	sel := make(map[int]bool, len(selected))
	var out []int
	for _, i := range selected {
		if i >= 0 && i < len(roll) && !sel[i] {
			sel[i] = true
			out = append(out, i)
		}
	}

	if len(sel) == 0 {
		for i, f := range roll {
			if faceOpensShape(roll, f) {
				out = append(out, i)
			}
		}
		return out
	}

	current := make(Hand, 0, len(sel))
	for i := range roll {
		if sel[i] {
			current = append(current, roll[i])
		}
	}
	base := Evaluate(current)

	for i, f := range roll {
		if sel[i] {
			continue
		}
		grown := append(current.Clone(), f)
		gs := Evaluate(grown)
		if gs.Points > base.Points && len(gs.Remaining) == 0 {
			out = append(out, i)
			continue
		}
		if coherentPrefix(roll, grown) {
			out = append(out, i)
		}
	}
	return out
}

// faceOpensShape reports whether a die of face f participates in any scoring
// shape of the roll: any 1 or 5, a face rolled at least three times, or a
// member of a straight the roll contains.
func faceOpensShape(roll Hand, f Face) bool {
	if f == 1 || f == 5 {
		return true
	}
	c := roll.counts()
	if c[f] >= 3 {
		return true
	}
	for _, run := range straightRuns {
		if !rollHasRun(c, run) {
			continue
		}
		for _, rf := range run {
			if rf == f {
				return true
			}
		}
	}
	return false
}

// coherentPrefix reports whether sel could still grow into a completable
// shape of the roll: distinct values inside a straight the roll contains, a
// single face the roll holds at least three of, or only 1s and 5s.
func coherentPrefix(roll, sel Hand) bool {
	rc := roll.counts()
	sc := sel.counts()

	onlyOnesAndFives := true
	distinct := true
	sameFace := Face(0)
	single := true
	for f := Face(1); f <= 6; f++ {
		if sc[f] == 0 {
			continue
		}
		if f != 1 && f != 5 {
			onlyOnesAndFives = false
		}
		if sc[f] > 1 {
			distinct = false
		}
		if sameFace == 0 {
			sameFace = f
		} else {
			single = false
		}
	}
	if onlyOnesAndFives {
		return true
	}
	if single && rc[sameFace] >= 3 {
		return true
	}
	if distinct {
		for _, run := range straightRuns {
			if rollHasRun(rc, run) && withinRun(sc, run) {
				return true
			}
		}
	}
	return false
}

// rollHasRun reports whether the roll holds every face of the run.
func rollHasRun(rc [7]int, run []Face) bool {
	for _, f := range run {
		if rc[f] == 0 {
			return false
		}
	}
	return true
}

// withinRun reports whether every selected face falls inside the run.
func withinRun(sc [7]int, run []Face) bool {
	in := [7]bool{}
	for _, f := range run {
		in[f] = true
	}
	for f := Face(1); f <= 6; f++ {
		if sc[f] > 0 && !in[f] {
			return false
		}
	}
	return true
}
