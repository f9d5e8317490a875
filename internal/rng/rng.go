// Package rng provides the randomness abstraction for the skirmish engines:
// percent rolls for world events and weighted selection for random outcomes.
package rng

import "fmt"

// Source is the randomness provider for all engine rolls.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}

// PercentRoll reports whether a uniform draw in [0, 100) lands strictly
// below chance. A chance of 0 never succeeds; 100 always succeeds.
//
// Precondition: src must be non-nil; chance must be in [0, 100].
func PercentRoll(src Source, chance int) bool {
	if chance <= 0 {
		return false
	}
	if chance >= 100 {
		return true
	}
	return src.Intn(100) < chance
}

// weightScale is the fixed-point resolution of a weighted draw. The draw
// is effectively continuous over [0, total], so each outcome's share stays
// proportional to its weight even at tiny totals.
const weightScale = 10_000

// WeightedIndex selects an index from weights using inclusive
// cumulative-weight selection: draw r uniformly in [0, total], walk the
// weights accumulating, and return the first index whose cumulative weight
// is >= r. The last index is the fallback when no cumulative weight
// reaches r.
//
// Weights below 1 are treated as 1, so every entry stays selectable.
//
// Precondition: src must be non-nil; len(weights) > 0.
// Postcondition: Returns an index in [0, len(weights)).
func WeightedIndex(src Source, weights []int) int {
	if len(weights) == 0 {
		panic("rng: WeightedIndex called with no weights")
	}

	total := 0
	for _, w := range weights {
		if w < 1 {
			w = 1
		}
		total += w
	}

	// Fixed-point draw over [0, total] inclusive.
	r := src.Intn(total*weightScale + 1)

	cumulative := 0
	for i, w := range weights {
		if w < 1 {
			w = 1
		}
		cumulative += w * weightScale
		if cumulative >= r {
			return i
		}
	}
	return len(weights) - 1
}

// Pick selects one element from choices using WeightedIndex over the
// weights produced by weight. Weights below 1 count as 1.
//
// Precondition: src and weight must be non-nil; len(choices) > 0.
func Pick[T any](src Source, choices []T, weight func(T) int) T {
	weights := make([]int, len(choices))
	for i, c := range choices {
		weights[i] = weight(c)
	}
	return choices[WeightedIndex(src, weights)]
}

// mustPositive panics with a package-prefixed message when n <= 0.
func mustPositive(n int) {
	if n <= 0 {
		panic(fmt.Sprintf("rng: Intn called with n <= 0 (%d)", n))
	}
}
