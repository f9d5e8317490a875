package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// RegisterModules registers the skirmish.* Lua table into L, exposing the
// injected ledger callbacks to collaborator scripts:
//
//	skirmish.get_currency(player_id) -> int
//	skirmish.add_currency(player_id, delta) -> int
//	skirmish.get_quantity(player_id, item_id) -> int
//	skirmish.grant_item(player_id, item_id, qty) -> bool
//
// tenantID is baked into each function, so a script always operates on
// the ledger of the tenant whose VM it runs in. The __global__ VM passes
// GlobalTenantID through; the callbacks decide what that means.
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: the skirmish global is defined in L.
func (m *Manager) RegisterModules(L *lua.LState, tenantID string) {
	mod := L.NewTable()

	L.SetField(mod, "get_currency", L.NewFunction(func(L *lua.LState) int {
		playerID := L.CheckString(1)
		if m.GetCurrency == nil {
			L.Push(lua.LNumber(0))
			return 1
		}
		L.Push(lua.LNumber(m.GetCurrency(tenantID, playerID)))
		return 1
	}))

	L.SetField(mod, "add_currency", L.NewFunction(func(L *lua.LState) int {
		playerID := L.CheckString(1)
		delta := L.CheckInt(2)
		if m.AddCurrency == nil {
			L.Push(lua.LNumber(0))
			return 1
		}
		L.Push(lua.LNumber(m.AddCurrency(tenantID, playerID, delta)))
		return 1
	}))

	L.SetField(mod, "get_quantity", L.NewFunction(func(L *lua.LState) int {
		playerID := L.CheckString(1)
		itemID := L.CheckString(2)
		if m.GetQuantity == nil {
			L.Push(lua.LNumber(0))
			return 1
		}
		L.Push(lua.LNumber(m.GetQuantity(tenantID, playerID, itemID)))
		return 1
	}))

	L.SetField(mod, "grant_item", L.NewFunction(func(L *lua.LState) int {
		playerID := L.CheckString(1)
		itemID := L.CheckString(2)
		qty := L.CheckInt(3)
		if m.GrantItem == nil {
			L.Push(lua.LFalse)
			return 1
		}
		if err := m.GrantItem(tenantID, playerID, itemID, qty); err != nil {
			m.logger.Warn("scripting: grant_item failed",
				zap.String("tenant", tenantID),
				zap.String("player", playerID),
				zap.String("item", itemID),
				zap.Error(err),
			)
			L.Push(lua.LFalse)
			return 1
		}
		L.Push(lua.LTrue)
		return 1
	}))

	L.SetGlobal("skirmish", mod)
}
