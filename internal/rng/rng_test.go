package rng_test

import (
	"math/rand"
	"testing"

	"pgregory.net/rapid"

	"github.com/cory-johannsen/skirmish/internal/rng"
)

// fixedSrc returns val for every Intn call, ignoring the bound.
type fixedSrc struct{ val int }

func (f fixedSrc) Intn(_ int) int { return f.val }

// seededSrc is a deterministic PRNG source for distribution tests.
type seededSrc struct{ r *rand.Rand }

func (s seededSrc) Intn(n int) int { return s.r.Intn(n) }

func TestPercentRollBounds(t *testing.T) {
	if rng.PercentRoll(fixedSrc{val: 0}, 0) {
		t.Error("chance 0 must never succeed")
	}
	if !rng.PercentRoll(fixedSrc{val: 99}, 100) {
		t.Error("chance 100 must always succeed")
	}
}

func TestPercentRollStrictlyLess(t *testing.T) {
	// Draw equal to the chance is a failure; strictly below succeeds.
	if rng.PercentRoll(fixedSrc{val: 50}, 50) {
		t.Error("draw == chance must fail")
	}
	if !rng.PercentRoll(fixedSrc{val: 49}, 50) {
		t.Error("draw < chance must succeed")
	}
}

func TestWeightedIndexFirstCumulativeAtLeastDraw(t *testing.T) {
	// Weights [2, 3]: the cumulative boundary sits at 2/5 of the draw
	// space. Draws at or below it pick index 0; above it, index 1.
	const scale = 10_000
	cases := []struct {
		draw int
		want int
	}{
		{0, 0},
		{2 * scale, 0},   // exactly at the boundary: cumulative >= r
		{2*scale + 1, 1}, // just past the boundary
		{5 * scale, 1},   // top of the inclusive range
	}
	for _, tc := range cases {
		got := rng.WeightedIndex(fixedSrc{val: tc.draw}, []int{2, 3})
		if got != tc.want {
			t.Errorf("draw %d: got index %d, want %d", tc.draw, got, tc.want)
		}
	}
}

func TestWeightedIndexDefaultWeight(t *testing.T) {
	// Zero and negative weights count as 1, so both indices stay reachable.
	const scale = 10_000
	if got := rng.WeightedIndex(fixedSrc{val: scale}, []int{0, -5}); got != 0 {
		t.Errorf("got index %d, want 0", got)
	}
	if got := rng.WeightedIndex(fixedSrc{val: scale + 1}, []int{0, -5}); got != 1 {
		t.Errorf("got index %d, want 1", got)
	}
}

func TestWeightedIndexSingleChoice(t *testing.T) {
	if got := rng.WeightedIndex(fixedSrc{val: 0}, []int{7}); got != 0 {
		t.Errorf("got index %d, want 0", got)
	}
}

// TestWeightedIndexDistribution checks the documented property: with
// weights [1, 3], the second outcome is selected roughly 75% of the time.
func TestWeightedIndexDistribution(t *testing.T) {
	src := seededSrc{r: rand.New(rand.NewSource(42))}
	const trials = 20000

	second := 0
	for i := 0; i < trials; i++ {
		if rng.WeightedIndex(src, []int{1, 3}) == 1 {
			second++
		}
	}

	freq := float64(second) / float64(trials)
	if freq < 0.73 || freq > 0.77 {
		t.Errorf("second outcome frequency = %.4f, want ~0.75", freq)
	}
}

func TestPropertyWeightedIndexInRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		weights := rapid.SliceOfN(rapid.IntRange(-2, 10), 1, 8).Draw(t, "weights")
		draw := rapid.IntRange(0, 100).Draw(t, "draw")
		idx := rng.WeightedIndex(fixedSrc{val: draw}, weights)
		if idx < 0 || idx >= len(weights) {
			t.Fatalf("index %d out of range for %d weights", idx, len(weights))
		}
	})
}

func TestPropertyPercentRollMatchesComparison(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		chance := rapid.IntRange(1, 99).Draw(t, "chance")
		draw := rapid.IntRange(0, 99).Draw(t, "draw")
		got := rng.PercentRoll(fixedSrc{val: draw}, chance)
		if got != (draw < chance) {
			t.Fatalf("PercentRoll(draw=%d, chance=%d) = %v", draw, chance, got)
		}
	})
}

func TestCryptoSourceRange(t *testing.T) {
	src := rng.NewCryptoSource()
	for i := 0; i < 1000; i++ {
		v := src.Intn(10)
		if v < 0 || v >= 10 {
			t.Fatalf("Intn(10) returned %d", v)
		}
	}
}

func TestPickFollowsWeightedIndex(t *testing.T) {
	type choice struct {
		name   string
		weight int
	}
	choices := []choice{{"light", 1}, {"heavy", 3}}
	weight := func(c choice) int { return c.weight }

	// Draw 0 lands on the first cumulative weight.
	if got := rng.Pick(fixedSrc{val: 0}, choices, weight); got.name != "light" {
		t.Errorf("draw 0 picked %q, want light", got.name)
	}
	// A draw past the first cumulative weight lands on the second.
	if got := rng.Pick(fixedSrc{val: 20_000}, choices, weight); got.name != "heavy" {
		t.Errorf("high draw picked %q, want heavy", got.name)
	}
}
