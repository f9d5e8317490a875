// Package round implements the round state machine and combat resolution:
// advancing the game's round counter, rolling the round's world event,
// computing per-player economic yield, and settling the queued attacks
// against defenses.
package round

import (
	"fmt"

	"github.com/cory-johannsen/skirmish/internal/game/ledger"
)

// State is the explicit round state. The persisted counter 1-3 maps to the
// playable states; counter 4 is the terminal awaiting-reset state.
type State int

const (
	// StateRound1 through StateRound3 are the playable rounds.
	StateRound1 State = iota + 1
	StateRound2
	StateRound3
	// StateAwaitingReset is terminal for play: resolving in this state
	// returns a reset-confirmation prompt instead of processing a round.
	StateAwaitingReset
)

// StateFor maps a persisted round counter to its State. Counters outside
// 1-4 clamp to the nearest valid state.
func StateFor(counter int) State {
	switch {
	case counter <= int(StateRound1):
		return StateRound1
	case counter >= int(StateAwaitingReset):
		return StateAwaitingReset
	default:
		return State(counter)
	}
}

// Playable reports whether rounds can still be resolved in this state.
func (s State) Playable() bool {
	return s >= StateRound1 && s <= StateRound3
}

// Next returns the state after resolving a playable round. AwaitingReset
// only transitions via reset.
func (s State) Next() State {
	if !s.Playable() {
		return StateAwaitingReset
	}
	return s + 1
}

func (s State) String() string {
	switch s {
	case StateRound1, StateRound2, StateRound3:
		return fmt.Sprintf("round%d", int(s))
	case StateAwaitingReset:
		return "awaiting_reset"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// EventType is the rolled world event for a round.
type EventType string

const (
	// EventGood pays each item's good yield.
	EventGood EventType = "good"
	// EventBad pays each item's bad yield.
	EventBad EventType = "bad"
)

// PlayerOutcome is one player's slice of a round result.
type PlayerOutcome struct {
	PlayerID        string         `json:"playerId"`
	StartingBalance int            `json:"startingBalance"`
	EndingBalance   int            `json:"endingBalance"`
	YieldBreakdown  map[string]int `json:"yieldBreakdown,omitempty"`
	AttacksReceived int            `json:"attacksReceived"`
	DamageDealt     int            `json:"damageDealt"`
}

// Standing is one row of the final ranking produced after round 3.
type Standing struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"playerId"`
	Currency int    `json:"currency"`
}

// Result is the outcome of one Advance call. Derived data: it is appended
// to the round history but never re-read by the engines.
type Result struct {
	// Round is the round counter that was resolved.
	Round int `json:"round"`
	// State is the state after this call.
	State State `json:"state"`
	// Event is the rolled world event; empty when AwaitingReset refused.
	Event EventType `json:"event,omitempty"`
	// Outcomes lists per-player results ordered by player ID.
	Outcomes []PlayerOutcome `json:"outcomes,omitempty"`
	// Standings carries the full final ranking after round 3.
	Standings []Standing `json:"standings,omitempty"`
	// AwaitingReset is true when resolution was refused because the game
	// has ended; Prompt carries the reset confirmation text.
	AwaitingReset bool   `json:"awaitingReset,omitempty"`
	Prompt        string `json:"prompt,omitempty"`
}

// stateOf is a convenience over the persisted counter.
func stateOf(st *ledger.TenantState) State {
	return StateFor(st.Round)
}
