// Package predicate evaluates pure conditions against a snapshot of a
// player's economy record and auxiliary counters. Evaluation is total: an
// unknown condition kind evaluates to false, never an error or panic.
package predicate

import "time"

// Kind is the closed set of condition kinds.
type Kind string

const (
	// KindCurrencyAtLeast holds when currency >= Value.
	KindCurrencyAtLeast Kind = "currency_at_least"
	// KindCurrencyAtMost holds when currency <= Value.
	KindCurrencyAtMost Kind = "currency_at_most"
	// KindHasItem holds when the held quantity of ItemID >= Value.
	KindHasItem Kind = "has_item"
	// KindLacksItem holds when the held quantity of ItemID < Value.
	KindLacksItem Kind = "lacks_item"
	// KindUsesAtLeast holds when the named usage counter >= Value.
	KindUsesAtLeast Kind = "uses_at_least"
	// KindCooldownElapsed holds when the named cooldown started at least
	// Duration ago, or was never started.
	KindCooldownElapsed Kind = "cooldown_elapsed"
)

// Condition is one predicate over a player snapshot.
type Condition struct {
	Kind Kind `yaml:"kind" json:"kind"`
	// Value is the threshold for currency, item, and usage kinds.
	Value int `yaml:"value" json:"value"`
	// ItemID names the item for has_item / lacks_item.
	ItemID string `yaml:"item_id" json:"itemId,omitempty"`
	// Counter names the usage counter or cooldown.
	Counter string `yaml:"counter" json:"counter,omitempty"`
	// Duration is the required elapsed time for cooldown_elapsed.
	Duration time.Duration `yaml:"duration" json:"duration,omitempty"`
}

// Snapshot is the read-only player state a Condition is evaluated against.
type Snapshot struct {
	// Currency is the player's balance.
	Currency int
	// Quantities maps item ID to held quantity.
	Quantities map[string]int
	// Usage maps counter name to count.
	Usage map[string]int
	// CooldownStarts maps cooldown name to its last start time.
	CooldownStarts map[string]time.Time
	// Now is the evaluation instant for cooldown checks.
	Now time.Time
}

// Evaluate reports whether c holds against s.
//
// Postcondition: Returns false for unknown kinds; never panics, even with
// nil maps in s.
func Evaluate(c Condition, s Snapshot) bool {
	switch c.Kind {
	case KindCurrencyAtLeast:
		return s.Currency >= c.Value
	case KindCurrencyAtMost:
		return s.Currency <= c.Value
	case KindHasItem:
		return s.Quantities[c.ItemID] >= c.Value
	case KindLacksItem:
		return s.Quantities[c.ItemID] < c.Value
	case KindUsesAtLeast:
		return s.Usage[c.Counter] >= c.Value
	case KindCooldownElapsed:
		start, ok := s.CooldownStarts[c.Counter]
		if !ok {
			return true
		}
		return s.Now.Sub(start) >= c.Duration
	default:
		return false
	}
}
