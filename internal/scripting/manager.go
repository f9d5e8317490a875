package scripting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// GlobalTenantID is the reserved key for shared scripts loaded via
// LoadGlobal. Invoke falls back to this VM when a tenant has no VM.
const GlobalTenantID = "__global__"

// Hook names the action engine dispatches to Lua collaborators.
const (
	HookCheckPoints  = "check_points"
	HookModifyPoints = "modify_points"
	HookMovePlayer   = "move_player"
	HookStoreDisplay = "store_display"
	HookBuyItem      = "buy_item"
)

// Manager owns one sandboxed LState per tenant and dispatches collaborator
// hooks. A hook returns a player-visible result string and a success flag.
//
// Manager is safe for concurrent Invoke after all LoadTenant calls
// complete. Each tenant's LState is single-threaded; the read lock
// serializes concurrent calls to the same tenant while allowing different
// tenants to run concurrently.
type Manager struct {
	mu      sync.RWMutex
	states  map[string]*lua.LState
	cancels map[string]context.CancelFunc
	logger  *zap.Logger

	// Injected after construction. nil = the matching skirmish.* Lua
	// function becomes a no-op returning zero values.
	GetCurrency func(tenantID, playerID string) int
	AddCurrency func(tenantID, playerID string, delta int) int
	GetQuantity func(tenantID, playerID, itemID string) int
	GrantItem   func(tenantID, playerID, itemID string, qty int) error
}

// NewManager creates a Manager.
//
// Precondition: logger must be non-nil.
// Postcondition: Returns a non-nil Manager with an empty tenant map.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		states:  make(map[string]*lua.LState),
		cancels: make(map[string]context.CancelFunc),
		logger:  logger,
	}
}

// LoadTenant creates a sandboxed VM for tenantID, registers the skirmish.*
// module, then executes every *.lua file in scriptDir in lexicographic order.
//
// Precondition: tenantID must be non-empty; scriptDir must be a readable directory.
// Postcondition: Tenant VM is registered; returns error on Lua load failure.
func (m *Manager) LoadTenant(tenantID, scriptDir string, instLimit int) error {
	return m.loadInto(tenantID, scriptDir, instLimit)
}

// LoadGlobal creates the "__global__" VM for shared collaborator scripts,
// used as an Invoke fallback for any tenant without its own VM.
//
// Precondition: scriptDir must be a readable directory.
// Postcondition: Global VM is registered; returns error on Lua load failure.
func (m *Manager) LoadGlobal(scriptDir string, instLimit int) error {
	return m.loadInto(GlobalTenantID, scriptDir, instLimit)
}

func (m *Manager) loadInto(key, scriptDir string, instLimit int) error {
	L, cancel := NewSandboxedState(instLimit)
	m.RegisterModules(L, key)

	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		cancel()
		L.Close()
		return fmt.Errorf("scripting: reading script dir %q for %q: %w", scriptDir, key, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	for _, path := range luaFiles {
		if err := L.DoFile(path); err != nil {
			cancel()
			L.Close()
			return fmt.Errorf("scripting: loading %q for %q: %w", path, key, err)
		}
	}

	m.mu.Lock()
	if old, ok := m.states[key]; ok {
		if oldCancel := m.cancels[key]; oldCancel != nil {
			oldCancel()
		}
		old.Close()
	}
	m.states[key] = L
	m.cancels[key] = cancel
	m.mu.Unlock()
	return nil
}

// Invoke calls the named hook in tenantID's VM, falling back to the
// __global__ VM. The hook receives the player ID plus args and must return
// (message, ok). A missing hook or VM yields ("", false, false); Lua
// runtime errors are logged at Warn level and reported as a failed hook.
//
// Postcondition: found is true iff the hook was defined and ran.
func (m *Manager) Invoke(tenantID, hook, playerID string, args ...lua.LValue) (message string, ok bool, found bool) {
	m.mu.RLock()
	L, exists := m.states[tenantID]
	if !exists {
		L = m.states[GlobalTenantID]
	}
	m.mu.RUnlock()

	if L == nil {
		m.logger.Info("scripting: no VM for tenant",
			zap.String("tenant", tenantID),
			zap.String("hook", hook),
		)
		return "", false, false
	}

	fn := L.GetGlobal(hook)
	if fn == lua.LNil {
		return "", false, false
	}

	callArgs := append([]lua.LValue{lua.LString(playerID)}, args...)
	if err := L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    2,
		Protect: true,
	}, callArgs...); err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("tenant", tenantID),
			zap.String("hook", hook),
			zap.Error(err),
		)
		return "", false, true
	}

	okVal := L.Get(-1)
	msgVal := L.Get(-2)
	L.Pop(2)

	return lua.LVAsString(msgVal), lua.LVAsBool(okVal), true
}

// Close shuts down all tenant VMs.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, L := range m.states {
		if cancel := m.cancels[key]; cancel != nil {
			cancel()
		}
		L.Close()
	}
	m.states = make(map[string]*lua.LState)
	m.cancels = make(map[string]context.CancelFunc)
}
