package action

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/skirmish/internal/game/ledger"
	"github.com/cory-johannsen/skirmish/internal/game/predicate"
	"github.com/cory-johannsen/skirmish/internal/rng"
)

func (e *Executor) handleDisplayText(ctx context.Context, ec *execContext, step Step, depth int) (*Response, error) {
	return &Response{
		Title:    step.Config.Title,
		Body:     step.Config.Body,
		ImageURL: step.Config.ImageURL,
	}, nil
}

// handleFollowUpButton covers a button step that was not absorbed into a
// preceding display: it stands alone as a button-only response.
func (e *Executor) handleFollowUpButton(ctx context.Context, ec *execContext, step Step, depth int) (*Response, error) {
	return &Response{
		Button: &ButtonRef{Label: step.Config.ButtonLabel, TriggerID: step.Config.TargetTriggerID},
	}, nil
}

func (e *Executor) handleUpdateCurrency(ctx context.Context, ec *execContext, step Step, depth int) (*Response, error) {
	trig := ec.trig
	if _, err := e.accessor.AddCurrency(ctx, trig.TenantID, trig.PlayerID, step.Config.Amount); err != nil {
		return nil, fmt.Errorf("updating currency: %w", err)
	}
	return nil, nil
}

func (e *Executor) handleGiveCurrency(ctx context.Context, ec *execContext, step Step, depth int) (*Response, error) {
	trig := ec.trig
	granted := false
	err := e.accessor.Update(ctx, trig.TenantID, func(st *ledger.TenantState) error {
		if !claimGrant(st, claimKey(trig.TriggerID, step.Order), step.Config.ClaimLimit, trig.PlayerID) {
			return nil
		}
		st.Player(trig.PlayerID).AddCurrency(step.Config.Amount)
		granted = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("giving currency: %w", err)
	}
	if !granted {
		return &Response{Body: "This reward has already been claimed."}, nil
	}
	return &Response{Body: fmt.Sprintf("You received %d points.", step.Config.Amount)}, nil
}

func (e *Executor) handleGiveItem(ctx context.Context, ec *execContext, step Step, depth int) (*Response, error) {
	trig := ec.trig
	def, ok := e.catalog.Item(step.Config.ItemID)
	if !ok {
		e.logger.Warn("give_item references unknown item",
			zap.String("trigger", trig.TriggerID),
			zap.String("item", step.Config.ItemID))
		return &Response{Body: GenericFailureBody}, nil
	}
	qty := step.Config.Quantity
	if qty < 1 {
		qty = 1
	}

	granted := false
	err := e.accessor.Update(ctx, trig.TenantID, func(st *ledger.TenantState) error {
		if !claimGrant(st, claimKey(trig.TriggerID, step.Order), step.Config.ClaimLimit, trig.PlayerID) {
			return nil
		}
		st.Player(trig.PlayerID).AddItem(def.ID, qty, def.CanAttack())
		granted = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("giving item %q: %w", def.ID, err)
	}
	if !granted {
		return &Response{Body: "This reward has already been claimed."}, nil
	}
	return &Response{Body: fmt.Sprintf("You received %d x %s.", qty, def.Name)}, nil
}

func (e *Executor) handleConditional(ctx context.Context, ec *execContext, step Step, depth int) (*Response, error) {
	if step.Config.Condition == nil {
		e.logger.Warn("conditional step has no condition",
			zap.String("trigger", ec.trig.TriggerID),
			zap.Int("order", step.Order))
		return nil, nil
	}

	snap, err := e.snapshot(ctx, ec)
	if err != nil {
		return nil, fmt.Errorf("building condition snapshot: %w", err)
	}

	if predicate.Evaluate(*step.Config.Condition, snap) {
		return e.runBranch(ctx, ec, step.Config.OnSuccess, depth)
	}
	if len(step.Config.OnFailure) > 0 {
		return e.runBranch(ctx, ec, step.Config.OnFailure, depth)
	}
	if step.Config.FailureMessage != "" {
		return &Response{Body: step.Config.FailureMessage}, nil
	}
	return nil, nil
}

func (e *Executor) handleRandomOutcome(ctx context.Context, ec *execContext, step Step, depth int) (*Response, error) {
	outcomes := step.Config.Outcomes
	if len(outcomes) == 0 {
		return &Response{Body: "Nothing happens."}, nil
	}

	chosen := rng.Pick(e.src, outcomes, func(o Outcome) int { return o.Weight })
	e.logger.Debug("random outcome drawn",
		zap.String("trigger", ec.trig.TriggerID),
		zap.String("outcome", chosen.Name))

	if len(chosen.Steps) == 0 {
		if chosen.Name != "" {
			return &Response{Body: chosen.Name}, nil
		}
		return &Response{Body: "Nothing happens."}, nil
	}
	return e.runBranch(ctx, ec, chosen.Steps, depth)
}

// handleCheckPoints is silent on success: the player only hears back when
// the check refuses them. Later steps in the list still run either way.
func (e *Executor) handleCheckPoints(ctx context.Context, ec *execContext, step Step, depth int) (*Response, error) {
	msg, ok := e.invokeCollaborator(ec, step, func(c Collaborator) (string, bool) {
		return c.CheckPoints(ctx, ec.trig.TenantID, ec.trig.PlayerID, step.Config.Amount)
	})
	if ok {
		return nil, nil
	}
	if msg == "" {
		msg = "You don't have enough points for that."
	}
	return &Response{Body: msg}, nil
}

func (e *Executor) handleModifyPoints(ctx context.Context, ec *execContext, step Step, depth int) (*Response, error) {
	msg, ok := e.invokeCollaborator(ec, step, func(c Collaborator) (string, bool) {
		return c.ModifyPoints(ctx, ec.trig.TenantID, ec.trig.PlayerID, step.Config.Amount)
	})
	return collaboratorResponse(msg, ok, "Your points could not be updated."), nil
}

func (e *Executor) handleMovePlayer(ctx context.Context, ec *execContext, step Step, depth int) (*Response, error) {
	msg, ok := e.invokeCollaborator(ec, step, func(c Collaborator) (string, bool) {
		return c.MovePlayer(ctx, ec.trig.TenantID, ec.trig.PlayerID, step.Config.Direction)
	})
	return collaboratorResponse(msg, ok, "You can't go that way."), nil
}

func (e *Executor) handleStoreDisplay(ctx context.Context, ec *execContext, step Step, depth int) (*Response, error) {
	msg, ok := e.invokeCollaborator(ec, step, func(c Collaborator) (string, bool) {
		return c.StoreDisplay(ctx, ec.trig.TenantID, ec.trig.PlayerID)
	})
	return collaboratorResponse(msg, ok, "The store is closed right now."), nil
}

func (e *Executor) handleBuyItem(ctx context.Context, ec *execContext, step Step, depth int) (*Response, error) {
	msg, ok := e.invokeCollaborator(ec, step, func(c Collaborator) (string, bool) {
		return c.BuyItem(ctx, ec.trig.TenantID, ec.trig.PlayerID, step.Config.ItemID)
	})
	return collaboratorResponse(msg, ok, "You can't buy that right now."), nil
}

// invokeCollaborator guards against a missing collaborator: the step then
// refuses instead of failing the whole execution.
func (e *Executor) invokeCollaborator(ec *execContext, step Step, call func(Collaborator) (string, bool)) (string, bool) {
	if e.collab == nil {
		e.logger.Warn("collaborator step without collaborator",
			zap.String("trigger", ec.trig.TriggerID),
			zap.String("kind", string(step.Kind)))
		return "", false
	}
	return call(e.collab)
}

func collaboratorResponse(msg string, ok bool, refusal string) *Response {
	if !ok {
		if msg == "" {
			msg = refusal
		}
		return &Response{Body: msg}
	}
	if msg == "" {
		return nil
	}
	return &Response{Body: msg}
}

// snapshot captures the player's state for predicate evaluation. Currency
// and item quantities reflect side effects already committed by earlier
// steps; usage and cooldowns come from the invocation's prior state.
func (e *Executor) snapshot(ctx context.Context, ec *execContext) (predicate.Snapshot, error) {
	trig := ec.trig
	var snap predicate.Snapshot
	err := e.accessor.View(ctx, trig.TenantID, func(st *ledger.TenantState) error {
		rec := st.Player(trig.PlayerID)
		quantities := make(map[string]int, len(rec.Inventory))
		for id, h := range rec.Inventory {
			quantities[id] = h.Quantity
		}
		snap = predicate.Snapshot{
			Currency:       rec.Currency,
			Quantities:     quantities,
			Usage:          ec.priorUsage,
			CooldownStarts: ec.priorCooldowns,
			Now:            e.now(),
		}
		return nil
	})
	return snap, err
}

func claimKey(triggerID string, order int) string {
	return fmt.Sprintf("%s#%d", triggerID, order)
}

// claimGrant checks and records a claim under the caller's tenant lock.
// Returns true when the grant may proceed.
func claimGrant(st *ledger.TenantState, key string, limit ClaimLimit, playerID string) bool {
	switch limit {
	case ClaimOncePerPlayer:
		c := st.Claim(key)
		if c.HasPlayer(playerID) {
			return false
		}
		c.ClaimedBy = append(c.ClaimedBy, playerID)
		st.SetClaim(key, c)
		return true
	case ClaimOnceGlobally:
		c := st.Claim(key)
		if c.Claimant != "" {
			return false
		}
		c.Claimant = playerID
		st.SetClaim(key, c)
		return true
	default:
		// Unset and unknown limits grant freely.
		return true
	}
}
