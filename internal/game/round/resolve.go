package round

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/skirmish/internal/game/catalog"
	"github.com/cory-johannsen/skirmish/internal/game/ledger"
)

// validRecord reports whether a queued attack record is processable.
// Corrupt records — missing actor/target/item ids, an attack count outside
// [1, maxAttacks], or damage outside sane numeric range — are dropped,
// never applied.
func validRecord(rec ledger.AttackRecord, maxAttacks int) bool {
	if rec.AttackerID == "" || rec.DefenderID == "" || rec.ItemID == "" {
		return false
	}
	if rec.AttacksPlanned < 1 || rec.AttacksPlanned > maxAttacks {
		return false
	}
	if rec.TotalDamage < 0 || rec.DamagePerAttack < 0 {
		return false
	}
	return true
}

// defenseTotal sums defenseValue x ownedQuantity over the defender's
// current inventory.
func defenseTotal(rec *ledger.PlayerEconomyRecord, reg *catalog.Registry) int {
	total := 0
	for itemID, h := range rec.Inventory {
		if h.Quantity <= 0 {
			continue
		}
		def, ok := reg.Item(itemID)
		if !ok || def.DefenseValue == nil {
			continue
		}
		total += *def.DefenseValue * h.Quantity
	}
	return total
}

// resolveAttacks settles the tenant's attack queue in place:
//
//  1. Corrupt records are dropped (logged at warn) and never applied.
//  2. Valid records are grouped by defender.
//  3. Each defender takes netDamage = max(0, totalAttack - totalDefense)
//     off their currency, floored at 0.
//  4. Each attacker's consumable attack items lose AttacksPlanned quantity
//     (floored at 0); the attack budget was already spent at scheduling.
//  5. The queue is cleared only after damage and consumption complete.
//
// Postcondition: st.AttackQueue is empty; per-player damage aggregates are
// merged into outcomes.
func resolveAttacks(st *ledger.TenantState, reg *catalog.Registry, maxAttacks int, outcomes map[string]*PlayerOutcome, logger *zap.Logger) {
	var valid []ledger.AttackRecord
	for _, rec := range st.AttackQueue {
		if !validRecord(rec, maxAttacks) {
			logger.Warn("dropping corrupt attack record",
				zap.String("id", rec.ID.String()),
				zap.String("attacker", rec.AttackerID),
				zap.String("defender", rec.DefenderID),
				zap.String("item", rec.ItemID),
				zap.Int("attacks", rec.AttacksPlanned),
			)
			continue
		}
		valid = append(valid, rec)
	}

	// Group by defender.
	byDefender := make(map[string][]ledger.AttackRecord)
	for _, rec := range valid {
		byDefender[rec.DefenderID] = append(byDefender[rec.DefenderID], rec)
	}

	for defenderID, records := range byDefender {
		defender := st.Player(defenderID)

		totalAttack := 0
		for _, rec := range records {
			totalAttack += rec.TotalDamage
		}
		totalDefense := defenseTotal(defender, reg)

		netDamage := totalAttack - totalDefense
		if netDamage < 0 {
			netDamage = 0
		}
		defender.AddCurrency(-netDamage)

		out := outcomeFor(outcomes, defenderID)
		out.AttacksReceived += len(records)

		// DamageDealt reports each attacker's gross scheduled damage;
		// the defense offset applies to the defender as a whole.
		for _, rec := range records {
			outcomeFor(outcomes, rec.AttackerID).DamageDealt += rec.TotalDamage
		}

		logger.Debug("attacks resolved for defender",
			zap.String("defender", defenderID),
			zap.Int("attack", totalAttack),
			zap.Int("defense", totalDefense),
			zap.Int("net", netDamage),
		)
	}

	// Consume attacker items after all damage is applied.
	for _, rec := range valid {
		def, ok := reg.Item(rec.ItemID)
		if !ok || !def.Consumable {
			continue
		}
		st.Player(rec.AttackerID).ConsumeQuantity(rec.ItemID, rec.AttacksPlanned)
	}

	st.AttackQueue = nil
}

func outcomeFor(outcomes map[string]*PlayerOutcome, playerID string) *PlayerOutcome {
	out, ok := outcomes[playerID]
	if !ok {
		out = &PlayerOutcome{PlayerID: playerID}
		outcomes[playerID] = out
	}
	return out
}
