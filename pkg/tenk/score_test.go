package tenk

import (
	"errors"
	"testing"
)

func TestEvaluate_ScoringTable(t *testing.T) {
	tests := []struct {
		name      string
		hand      Hand
		points    int
		remaining Hand
	}{
		{"five ones", Hand{1, 1, 1, 1, 1}, 5000, nil},
		{"five sixes", Hand{6, 6, 6, 6, 6}, 6000, nil},
		{"five threes", Hand{3, 3, 3, 3, 3}, 3000, nil},
		{"large straight low", Hand{1, 2, 3, 4, 5}, 1500, nil},
		{"large straight high", Hand{2, 3, 4, 5, 6}, 1500, nil},
		{"large straight shuffled", Hand{5, 3, 1, 4, 2}, 1500, nil},
		{"near straight scores single one", Hand{1, 2, 3, 4, 6}, 100, Hand{2, 3, 4, 6}},
		{"four of a kind", Hand{4, 4, 4, 4}, 800, nil},
		{"four of a kind with residual one", Hand{4, 4, 4, 4, 1}, 900, nil},
		{"four of a kind with dead die", Hand{6, 6, 6, 6, 2}, 1200, Hand{2}},
		{"four ones follow the table", Hand{1, 1, 1, 1}, 200, nil},
		{"small straight", Hand{2, 3, 4, 5}, 750, nil},
		{"small straight low", Hand{1, 2, 3, 4}, 750, nil},
		{"small straight high", Hand{3, 4, 5, 6}, 750, nil},
		{"three threes with remainder", Hand{3, 3, 3, 2, 4}, 300, Hand{2, 4}},
		{"three ones score 300", Hand{1, 1, 1}, 300, nil},
		{"three ones and a five", Hand{1, 1, 1, 5}, 350, nil},
		{"triple with residual one and five", Hand{2, 2, 2, 1, 5}, 350, nil},
		{"singles only", Hand{1, 5, 2, 3, 3}, 150, Hand{2, 3, 3}},
		{"bust", Hand{2, 2, 3, 4, 6}, 0, Hand{2, 2, 3, 4, 6}},
		{"bust pair of sixes", Hand{6, 6, 3}, 0, Hand{3, 6, 6}},
		{"single five", Hand{5}, 50, nil},
		{"single two busts", Hand{2}, 0, Hand{2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := Evaluate(tt.hand)
			if sc.Points != tt.points {
				t.Errorf("points = %d, want %d", sc.Points, tt.points)
			}
			if !sameBag(sc.Remaining, tt.remaining) {
				t.Errorf("remaining = %v, want %v", sc.Remaining, tt.remaining)
			}
			if len(sc.Consumed)+len(sc.Remaining) != len(tt.hand) {
				t.Errorf("consumed %v + remaining %v does not partition %v", sc.Consumed, sc.Remaining, tt.hand)
			}
		})
	}
}

func TestEvaluate_BreakdownSumsToPoints(t *testing.T) {
	hands := []Hand{
		{1, 1, 1, 5, 5},
		{4, 4, 4, 4, 1},
		{2, 3, 4, 5},
		{1, 5, 2, 3, 3},
		{6, 6, 6, 6, 6},
		{2, 2, 3, 4, 6},
	}
	for _, h := range hands {
		sc := Evaluate(h)
		sum := 0
		var faces int
		for _, item := range sc.Breakdown {
			sum += item.Points
			faces += len(item.Faces)
		}
		if sum != sc.Points {
			t.Errorf("Evaluate(%v): breakdown sums to %d, points %d", h, sum, sc.Points)
		}
		if faces != len(sc.Consumed) {
			t.Errorf("Evaluate(%v): breakdown covers %d faces, consumed %d", h, faces, len(sc.Consumed))
		}
	}
}

func TestEvaluate_ConsumedIsIdempotent(t *testing.T) {
	// Rescoring the consumed subset must reproduce the points exactly,
	// with nothing left over.
	hands := []Hand{
		{1, 1, 1, 5, 5},
		{4, 4, 4, 4, 2},
		{3, 3, 3, 2, 4},
		{1, 2, 3, 4, 6},
		{2, 3, 4, 5, 6},
		{5, 5, 2, 3, 6},
	}
	for _, h := range hands {
		first := Evaluate(h)
		second := Evaluate(first.Consumed)
		if second.Points != first.Points {
			t.Errorf("Evaluate(%v).Consumed rescored to %d, want %d", h, second.Points, first.Points)
		}
		if len(second.Remaining) != 0 {
			t.Errorf("Evaluate(%v).Consumed left remainder %v", h, second.Remaining)
		}
	}
}

func TestEvaluate_ExhaustiveBustRule(t *testing.T) {
	// Any hand with no 1, no 5, no triple, and no straight scores zero.
	// Enumerate all 5-die hands over the bust-capable faces.
	faces := []Face{2, 3, 4, 6}
	var walk func(h Hand)
	walk = func(h Hand) {
		if len(h) == 5 {
			c := h.counts()
			for _, f := range faces {
				if c[f] >= 3 {
					return // triple, scores
				}
			}
			if sc := Evaluate(h); sc.Points != 0 {
				t.Errorf("Evaluate(%v) = %d, want bust", h, sc.Points)
			}
			return
		}
		for _, f := range faces {
			walk(append(h.Clone(), f))
		}
	}
	walk(nil)
}

func TestValidateKeep(t *testing.T) {
	roll := Hand{1, 1, 3, 5, 6}

	tests := []struct {
		name string
		keep Hand
		want error
	}{
		{"empty", nil, ErrKeepEmpty},
		{"not in roll", Hand{2}, ErrKeepNotInRoll},
		{"too many ones", Hand{1, 1, 1}, ErrKeepNotInRoll},
		{"dead die included", Hand{1, 3}, ErrKeepNotScoring},
		{"non scoring", Hand{3, 6}, ErrKeepNotScoring},
		{"single one", Hand{1}, nil},
		{"both ones and five", Hand{1, 1, 5}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKeep(roll, tt.keep)
			if !errors.Is(err, tt.want) {
				t.Errorf("ValidateKeep(%v, %v) = %v, want %v", roll, tt.keep, err, tt.want)
			}
			if tt.want != nil && !errors.Is(err, ErrInvalidKeep) {
				t.Errorf("error %v should wrap ErrInvalidKeep", err)
			}
		})
	}
}

func TestValidateKeep_LegalKeepsHaveNoRemainder(t *testing.T) {
	roll := Hand{1, 1, 1, 5, 5}
	keeps := []Hand{{1}, {5}, {1, 1}, {1, 1, 1}, {1, 1, 1, 5, 5}}
	for _, k := range keeps {
		if err := ValidateKeep(roll, k); err != nil {
			t.Errorf("ValidateKeep(%v, %v) = %v, want nil", roll, k, err)
			continue
		}
		if sc := Evaluate(k); len(sc.Remaining) != 0 {
			t.Errorf("legal keep %v left remainder %v", k, sc.Remaining)
		}
	}
}

// sameBag compares two hands as multisets.
func sameBag(a, b Hand) bool {
	if len(a) != len(b) {
		return false
	}
	return a.counts() == b.counts()
}
