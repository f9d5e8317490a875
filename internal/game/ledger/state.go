package ledger

import (
	"time"

	"github.com/google/uuid"
)

// RoundFirst is the opening playable round; RoundAwaitingReset is the
// terminal counter value where play stops until an explicit reset.
const (
	RoundFirst         = 1
	RoundAwaitingReset = 4
)

// AttackRecord is one scheduled, unresolved attack intent.
//
// Lifecycle: created when a player schedules an attack, consumed (and
// removed) when the round resolves. Records outside the valid numeric
// ranges are corrupt and are dropped at resolution, never applied.
type AttackRecord struct {
	ID              uuid.UUID `json:"id"`
	AttackerID      string    `json:"attackerId"`
	DefenderID      string    `json:"defenderId"`
	ItemID          string    `json:"itemId"`
	AttacksPlanned  int       `json:"attacksPlanned"`
	DamagePerAttack int       `json:"damagePerAttack"`
	TotalDamage     int       `json:"totalDamage"`
	Round           int       `json:"round"`
	CreatedAt       time.Time `json:"createdAt"`
}

// ClaimRecord tracks who has already received a limited reward action.
type ClaimRecord struct {
	// ClaimedBy lists player IDs for once_per_player limits.
	ClaimedBy []string `json:"claimedBy,omitempty"`
	// Claimant is the single winner for once_globally limits.
	Claimant string `json:"claimant,omitempty"`
}

// HasPlayer reports whether playerID already appears in ClaimedBy.
func (c ClaimRecord) HasPlayer(playerID string) bool {
	for _, id := range c.ClaimedBy {
		if id == playerID {
			return true
		}
	}
	return false
}

// TenantState is the full persisted economy state for one tenant.
type TenantState struct {
	// Players maps player ID to their economy record.
	Players map[string]*PlayerEconomyRecord `json:"players"`
	// AttackQueue holds this round's scheduled attacks.
	AttackQueue []AttackRecord `json:"attackQueue"`
	// Round is the current round counter: 1-3 playable, 4 awaiting reset.
	Round int `json:"round"`
	// Claims maps an action key to its claim bookkeeping.
	Claims map[string]ClaimRecord `json:"claims,omitempty"`
	// UsageCounters maps player ID to named usage counts.
	UsageCounters map[string]map[string]int `json:"usageCounters,omitempty"`
	// Cooldowns maps player ID to named cooldown start timestamps.
	Cooldowns map[string]map[string]time.Time `json:"cooldowns,omitempty"`
}

// NewTenantState returns a pristine state at round 1.
func NewTenantState() *TenantState {
	return &TenantState{
		Players: make(map[string]*PlayerEconomyRecord),
		Round:   RoundFirst,
	}
}

// Player returns the record for playerID, creating an empty one if absent.
func (s *TenantState) Player(playerID string) *PlayerEconomyRecord {
	if s.Players == nil {
		s.Players = make(map[string]*PlayerEconomyRecord)
	}
	rec, ok := s.Players[playerID]
	if !ok {
		rec = NewPlayerEconomyRecord()
		s.Players[playerID] = rec
	}
	return rec
}

// Claim returns the claim record for key (zero value when absent).
func (s *TenantState) Claim(key string) ClaimRecord {
	return s.Claims[key]
}

// SetClaim stores the claim record for key.
func (s *TenantState) SetClaim(key string, c ClaimRecord) {
	if s.Claims == nil {
		s.Claims = make(map[string]ClaimRecord)
	}
	s.Claims[key] = c
}

// UsageCount returns the named usage counter for playerID (0 when absent).
func (s *TenantState) UsageCount(playerID, name string) int {
	return s.UsageCounters[playerID][name]
}

// IncrementUsage bumps the named usage counter for playerID by one.
func (s *TenantState) IncrementUsage(playerID, name string) {
	if s.UsageCounters == nil {
		s.UsageCounters = make(map[string]map[string]int)
	}
	if s.UsageCounters[playerID] == nil {
		s.UsageCounters[playerID] = make(map[string]int)
	}
	s.UsageCounters[playerID][name]++
}

// CooldownStart returns the named cooldown timestamp for playerID and
// whether one is recorded.
func (s *TenantState) CooldownStart(playerID, name string) (time.Time, bool) {
	ts, ok := s.Cooldowns[playerID][name]
	return ts, ok
}

// TouchCooldown records now as the named cooldown start for playerID.
func (s *TenantState) TouchCooldown(playerID, name string, now time.Time) {
	if s.Cooldowns == nil {
		s.Cooldowns = make(map[string]map[string]time.Time)
	}
	if s.Cooldowns[playerID] == nil {
		s.Cooldowns[playerID] = make(map[string]time.Time)
	}
	s.Cooldowns[playerID][name] = now
}

// NormalizeInventory applies PlayerEconomyRecord.NormalizeInventory to
// every player, enforcing the holding invariant across the whole state.
func (s *TenantState) NormalizeInventory(canAttack func(itemID string) bool) {
	for _, rec := range s.Players {
		rec.NormalizeInventory(canAttack)
	}
}

// Reset restores the pristine round-1 state: zero currency, empty
// inventories, no queued attacks, no claims, no counters.
//
// Postcondition: Round == RoundFirst; every player record is empty.
func (s *TenantState) Reset() {
	for id := range s.Players {
		s.Players[id] = NewPlayerEconomyRecord()
	}
	s.AttackQueue = nil
	s.Claims = nil
	s.UsageCounters = nil
	s.Cooldowns = nil
	s.Round = RoundFirst
}

// Clone returns a deep copy of the state.
func (s *TenantState) Clone() *TenantState {
	out := &TenantState{
		Players: make(map[string]*PlayerEconomyRecord, len(s.Players)),
		Round:   s.Round,
	}
	for id, rec := range s.Players {
		out.Players[id] = rec.Clone()
	}
	if s.AttackQueue != nil {
		out.AttackQueue = make([]AttackRecord, len(s.AttackQueue))
		copy(out.AttackQueue, s.AttackQueue)
	}
	if s.Claims != nil {
		out.Claims = make(map[string]ClaimRecord, len(s.Claims))
		for k, c := range s.Claims {
			claimed := make([]string, len(c.ClaimedBy))
			copy(claimed, c.ClaimedBy)
			out.Claims[k] = ClaimRecord{ClaimedBy: claimed, Claimant: c.Claimant}
		}
	}
	if s.UsageCounters != nil {
		out.UsageCounters = make(map[string]map[string]int, len(s.UsageCounters))
		for id, counters := range s.UsageCounters {
			inner := make(map[string]int, len(counters))
			for name, n := range counters {
				inner[name] = n
			}
			out.UsageCounters[id] = inner
		}
	}
	if s.Cooldowns != nil {
		out.Cooldowns = make(map[string]map[string]time.Time, len(s.Cooldowns))
		for id, cds := range s.Cooldowns {
			inner := make(map[string]time.Time, len(cds))
			for name, ts := range cds {
				inner[name] = ts
			}
			out.Cooldowns[id] = inner
		}
	}
	return out
}
