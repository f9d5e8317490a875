package round

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/skirmish/internal/config"
	"github.com/cory-johannsen/skirmish/internal/game/catalog"
	"github.com/cory-johannsen/skirmish/internal/game/ledger"
	"github.com/cory-johannsen/skirmish/internal/rng"
)

// ResetPrompt is the player-facing confirmation shown when a round advance
// is attempted after the game has ended.
const ResetPrompt = "The game has ended. Reset to start a new game from round 1."

// Scheduling errors are validation failures: reported to the player, no
// state mutated.
var (
	ErrUnknownItem        = catalog.ErrUnknownItem
	ErrNotAttackItem      = errors.New("item cannot attack")
	ErrBadAttackCount     = errors.New("attack count out of range")
	ErrNoAttacksAvailable = errors.New("not enough attacks available")
	ErrMissingTarget      = errors.New("missing attack target")
)

// History records resolved round results for display purposes. Appends are
// best-effort from the engine's point of view; failures are surfaced but a
// result is never rolled back.
type History interface {
	Append(ctx context.Context, tenantID string, result Result) error
	Clear(ctx context.Context, tenantID string) error
}

// NopHistory discards all history writes.
type NopHistory struct{}

// Append discards the result.
func (NopHistory) Append(context.Context, string, Result) error { return nil }

// Clear is a no-op.
func (NopHistory) Clear(context.Context, string) error { return nil }

// Engine advances game rounds and settles attacks for tenants. All state
// mutation happens inside the accessor's per-tenant critical section, so
// round advance and reset are serialized per tenant.
type Engine struct {
	accessor *ledger.Accessor
	catalog  *catalog.Registry
	src      rng.Source
	cfg      config.GameConfig
	history  History
	logger   *zap.Logger
	now      func() time.Time
}

// NewEngine creates a round Engine.
//
// Precondition: accessor, catalog, src, and logger must be non-nil.
// history may be nil, which disables history recording.
func NewEngine(accessor *ledger.Accessor, reg *catalog.Registry, src rng.Source, cfg config.GameConfig, history History, logger *zap.Logger) *Engine {
	if history == nil {
		history = NopHistory{}
	}
	return &Engine{
		accessor: accessor,
		catalog:  reg,
		src:      src,
		cfg:      cfg,
		history:  history,
		logger:   logger,
		now:      time.Now,
	}
}

// ScheduleAttack validates and enqueues an attack intent for the current
// round, spending the attacker's attack budget immediately.
//
// Postcondition: On success the returned record is appended to the
// tenant's queue and the attacker's AttacksAvailable is reduced by count.
// On error nothing is mutated.
func (e *Engine) ScheduleAttack(ctx context.Context, tenantID, attackerID, defenderID, itemID string, count int) (*ledger.AttackRecord, error) {
	if defenderID == "" {
		return nil, ErrMissingTarget
	}
	def, ok := e.catalog.Item(itemID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownItem, itemID)
	}
	if !def.CanAttack() {
		return nil, fmt.Errorf("%w: %q", ErrNotAttackItem, itemID)
	}
	if count < 1 || count > e.cfg.MaxAttacksPerRecord {
		return nil, fmt.Errorf("%w: %d", ErrBadAttackCount, count)
	}

	var rec ledger.AttackRecord
	err := e.accessor.Update(ctx, tenantID, func(st *ledger.TenantState) error {
		attacker := st.Player(attackerID)
		holding := attacker.Inventory[itemID]
		if holding.AttacksAvailable < count {
			return fmt.Errorf("%w: have %d, want %d", ErrNoAttacksAvailable, holding.AttacksAvailable, count)
		}
		attacker.SetAttacksAvailable(itemID, holding.AttacksAvailable-count)

		rec = ledger.AttackRecord{
			ID:              uuid.New(),
			AttackerID:      attackerID,
			DefenderID:      defenderID,
			ItemID:          itemID,
			AttacksPlanned:  count,
			DamagePerAttack: *def.AttackValue,
			TotalDamage:     count * *def.AttackValue,
			Round:           st.Round,
			CreatedAt:       e.now(),
		}
		st.AttackQueue = append(st.AttackQueue, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("attack scheduled",
		zap.String("tenant", tenantID),
		zap.String("attacker", attackerID),
		zap.String("defender", defenderID),
		zap.String("item", itemID),
		zap.Int("count", count),
		zap.Int("total_damage", rec.TotalDamage),
	)
	return &rec, nil
}

// Advance resolves the tenant's current round: rolls the world event, pays
// every eligible player's yield, settles the attack queue, and moves the
// round counter forward. Resolving while awaiting reset returns a
// confirmation prompt and mutates nothing.
//
// Postcondition: Returns a non-nil Result; state transitions follow
// exactly round1 -> round2 -> round3 -> awaiting_reset.
func (e *Engine) Advance(ctx context.Context, tenantID string) (*Result, error) {
	var result *Result
	err := e.accessor.Update(ctx, tenantID, func(st *ledger.TenantState) error {
		state := stateOf(st)
		if !state.Playable() {
			result = &Result{
				Round:         st.Round,
				State:         StateAwaitingReset,
				AwaitingReset: true,
				Prompt:        ResetPrompt,
			}
			return nil
		}

		chance := e.cfg.GoodEventChanceFor(int(state))
		good := rng.PercentRoll(e.src, chance)
		event := EventBad
		if good {
			event = EventGood
		}

		outcomes := make(map[string]*PlayerOutcome)

		// Yield pass: every eligible player's items pay out per the event.
		for playerID, rec := range st.Players {
			if !rec.Eligible() {
				continue
			}
			out := outcomeFor(outcomes, playerID)
			out.StartingBalance = rec.Currency

			total := 0
			for itemID, h := range rec.Inventory {
				if h.Quantity <= 0 {
					continue
				}
				def, ok := e.catalog.Item(itemID)
				if !ok {
					continue
				}
				perUnit, ok := def.YieldFor(good)
				if !ok {
					continue
				}
				yield := perUnit * h.Quantity
				if out.YieldBreakdown == nil {
					out.YieldBreakdown = make(map[string]int)
				}
				out.YieldBreakdown[itemID] += yield
				total += yield
			}
			rec.AddCurrency(total)
		}

		// Combat pass uses post-yield inventories.
		resolveAttacks(st, e.catalog, e.cfg.MaxAttacksPerRecord, outcomes, e.logger)

		for playerID, out := range outcomes {
			out.EndingBalance = st.Player(playerID).Currency
		}

		resolved := st.Round
		next := state.Next()
		st.Round = int(next)

		result = &Result{
			Round:    resolved,
			State:    next,
			Event:    event,
			Outcomes: sortedOutcomes(outcomes),
		}
		if next == StateAwaitingReset {
			result.Standings = standings(st)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.AwaitingReset {
		if err := e.history.Append(ctx, tenantID, *result); err != nil {
			e.logger.Warn("appending round history failed",
				zap.String("tenant", tenantID),
				zap.Error(err),
			)
		}
		e.logger.Info("round resolved",
			zap.String("tenant", tenantID),
			zap.Int("round", result.Round),
			zap.String("event", string(result.Event)),
			zap.String("next_state", result.State.String()),
			zap.Int("players", len(result.Outcomes)),
		)
	}
	return result, nil
}

// Reset restores the tenant to a pristine round-1 game: zero currencies,
// empty inventories, cleared attack queue and history.
//
// Postcondition: StateFor(counter) == StateRound1 regardless of prior state.
func (e *Engine) Reset(ctx context.Context, tenantID string) error {
	err := e.accessor.Update(ctx, tenantID, func(st *ledger.TenantState) error {
		st.Reset()
		return nil
	})
	if err != nil {
		return err
	}
	if err := e.history.Clear(ctx, tenantID); err != nil {
		e.logger.Warn("clearing round history failed",
			zap.String("tenant", tenantID),
			zap.Error(err),
		)
	}
	e.logger.Info("game reset", zap.String("tenant", tenantID))
	return nil
}

// State returns the tenant's current round state without mutating anything.
func (e *Engine) State(ctx context.Context, tenantID string) (State, error) {
	var s State
	err := e.accessor.View(ctx, tenantID, func(st *ledger.TenantState) error {
		s = stateOf(st)
		return nil
	})
	return s, err
}

func sortedOutcomes(outcomes map[string]*PlayerOutcome) []PlayerOutcome {
	out := make([]PlayerOutcome, 0, len(outcomes))
	for _, o := range outcomes {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out
}

// standings ranks every tracked player by ending currency, highest first.
// Ties keep player-ID order for determinism.
func standings(st *ledger.TenantState) []Standing {
	rows := make([]Standing, 0, len(st.Players))
	for playerID, rec := range st.Players {
		rows = append(rows, Standing{PlayerID: playerID, Currency: rec.Currency})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Currency != rows[j].Currency {
			return rows[i].Currency > rows[j].Currency
		}
		return rows[i].PlayerID < rows[j].PlayerID
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}
