package scripting

import (
	"context"

	lua "github.com/yuin/gopher-lua"
)

// Collaborator adapts a Manager to the action engine's collaborator
// surface: each method dispatches the matching Lua hook and folds a
// missing hook into a plain failure.
type Collaborator struct {
	manager *Manager
}

// NewCollaborator wraps manager.
//
// Precondition: manager must be non-nil.
func NewCollaborator(manager *Manager) *Collaborator {
	return &Collaborator{manager: manager}
}

func (c *Collaborator) invoke(tenantID, hook, playerID string, args ...lua.LValue) (string, bool) {
	msg, ok, found := c.manager.Invoke(tenantID, hook, playerID, args...)
	if !found {
		return "", false
	}
	return msg, ok
}

// CheckPoints asks the tenant script whether the player can cover amount.
func (c *Collaborator) CheckPoints(_ context.Context, tenantID, playerID string, amount int) (string, bool) {
	return c.invoke(tenantID, HookCheckPoints, playerID, lua.LNumber(amount))
}

// ModifyPoints applies a script-governed points delta.
func (c *Collaborator) ModifyPoints(_ context.Context, tenantID, playerID string, delta int) (string, bool) {
	return c.invoke(tenantID, HookModifyPoints, playerID, lua.LNumber(delta))
}

// MovePlayer asks the tenant script to move the player.
func (c *Collaborator) MovePlayer(_ context.Context, tenantID, playerID, direction string) (string, bool) {
	return c.invoke(tenantID, HookMovePlayer, playerID, lua.LString(direction))
}

// StoreDisplay renders the tenant's store listing.
func (c *Collaborator) StoreDisplay(_ context.Context, tenantID, playerID string) (string, bool) {
	return c.invoke(tenantID, HookStoreDisplay, playerID)
}

// BuyItem runs the tenant's purchase flow for itemID.
func (c *Collaborator) BuyItem(_ context.Context, tenantID, playerID, itemID string) (string, bool) {
	return c.invoke(tenantID, HookBuyItem, playerID, lua.LString(itemID))
}
