// Package ledger holds per-tenant economy state: player currency and
// inventory, the scheduled attack queue, claim bookkeeping, and the round
// counter. It normalizes the two historical inventory encodings into one
// structured form at the read boundary.
package ledger

import (
	"encoding/json"
	"fmt"
)

// Holding is the structured inventory entry for one item.
//
// Invariant: Quantity >= 0 and AttacksAvailable >= 0. For items that cannot
// attack, AttacksAvailable is 0; otherwise AttacksAvailable <= Quantity.
type Holding struct {
	Quantity         int `json:"quantity"`
	AttacksAvailable int `json:"attacksAvailable"`
}

// UnmarshalJSON accepts both the legacy bare-integer encoding (a plain
// quantity) and the structured pair. The conversion is one-way and
// idempotent: a bare integer n becomes {Quantity: n, AttacksAvailable: n}.
// Decoding is catalog-blind, so the attack budget of non-attack items is
// corrected by NormalizeInventory at the accessor boundary.
func (h *Holding) UnmarshalJSON(data []byte) error {
	var qty int
	if err := json.Unmarshal(data, &qty); err == nil {
		h.Quantity = qty
		h.AttacksAvailable = qty
		return nil
	}

	type structured Holding
	var s structured
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("ledger: holding is neither integer nor structured: %w", err)
	}
	*h = Holding(s)
	return nil
}

// PlayerEconomyRecord is one player's currency and inventory.
type PlayerEconomyRecord struct {
	// Currency is the player's balance. Never negative.
	Currency int `json:"currency"`
	// Inventory maps item ID to its holding.
	Inventory map[string]Holding `json:"inventory"`
}

// NewPlayerEconomyRecord returns an empty record.
func NewPlayerEconomyRecord() *PlayerEconomyRecord {
	return &PlayerEconomyRecord{Inventory: make(map[string]Holding)}
}

// AddCurrency applies a signed delta to the balance, flooring at 0.
//
// Postcondition: Currency >= 0; returns the new balance.
func (r *PlayerEconomyRecord) AddCurrency(delta int) int {
	r.Currency += delta
	if r.Currency < 0 {
		r.Currency = 0
	}
	return r.Currency
}

// AddItem increases the quantity for itemID by qty (floored at 0 on the
// way down). When canAttack is true the attack budget grows or shrinks by
// the same delta, clamped to [0, Quantity]; otherwise it is forced to 0.
//
// Postcondition: resulting Holding satisfies the package invariant.
func (r *PlayerEconomyRecord) AddItem(itemID string, qty int, canAttack bool) Holding {
	if r.Inventory == nil {
		r.Inventory = make(map[string]Holding)
	}
	h := r.Inventory[itemID]
	h.Quantity += qty
	if h.Quantity < 0 {
		h.Quantity = 0
	}
	if canAttack {
		h.AttacksAvailable += qty
		if h.AttacksAvailable < 0 {
			h.AttacksAvailable = 0
		}
		if h.AttacksAvailable > h.Quantity {
			h.AttacksAvailable = h.Quantity
		}
	} else {
		h.AttacksAvailable = 0
	}
	r.Inventory[itemID] = h
	return h
}

// ConsumeQuantity reduces the held quantity by n without touching the
// attack budget beyond the quantity clamp. Used when consumable attack
// items burn up at round resolution; their attacks were already spent at
// scheduling time.
//
// Postcondition: Quantity >= 0; AttacksAvailable <= Quantity.
func (r *PlayerEconomyRecord) ConsumeQuantity(itemID string, n int) Holding {
	if r.Inventory == nil {
		r.Inventory = make(map[string]Holding)
	}
	h := r.Inventory[itemID]
	h.Quantity -= n
	if h.Quantity < 0 {
		h.Quantity = 0
	}
	if h.AttacksAvailable > h.Quantity {
		h.AttacksAvailable = h.Quantity
	}
	r.Inventory[itemID] = h
	return h
}

// SetAttacksAvailable sets the attack budget for itemID, clamped to
// [0, Quantity].
func (r *PlayerEconomyRecord) SetAttacksAvailable(itemID string, n int) Holding {
	if r.Inventory == nil {
		r.Inventory = make(map[string]Holding)
	}
	h := r.Inventory[itemID]
	if n < 0 {
		n = 0
	}
	if n > h.Quantity {
		n = h.Quantity
	}
	h.AttacksAvailable = n
	r.Inventory[itemID] = h
	return h
}

// NormalizeInventory rewrites the record's holdings to satisfy the
// holding invariant against the item catalog: items canAttack reports
// false for carry no attack budget, and no budget exceeds its quantity.
// Idempotent; legacy bare-integer holdings decode with budget == quantity
// and are corrected here.
//
// Postcondition: for every holding, AttacksAvailable == 0 when the item
// cannot attack and AttacksAvailable <= Quantity otherwise.
func (r *PlayerEconomyRecord) NormalizeInventory(canAttack func(itemID string) bool) {
	for id, h := range r.Inventory {
		if !canAttack(id) {
			h.AttacksAvailable = 0
		} else if h.AttacksAvailable > h.Quantity {
			h.AttacksAvailable = h.Quantity
		}
		r.Inventory[id] = h
	}
}

// Quantity returns the held quantity for itemID (0 when absent).
func (r *PlayerEconomyRecord) Quantity(itemID string) int {
	return r.Inventory[itemID].Quantity
}

// Eligible reports whether the player participates in round processing:
// currency >= 1 or at least one item with quantity > 0.
func (r *PlayerEconomyRecord) Eligible() bool {
	if r.Currency >= 1 {
		return true
	}
	for _, h := range r.Inventory {
		if h.Quantity > 0 {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the record.
func (r *PlayerEconomyRecord) Clone() *PlayerEconomyRecord {
	out := &PlayerEconomyRecord{
		Currency:  r.Currency,
		Inventory: make(map[string]Holding, len(r.Inventory)),
	}
	for id, h := range r.Inventory {
		out.Inventory[id] = h
	}
	return out
}
