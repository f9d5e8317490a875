package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Accessor serializes all read-modify-write cycles on a tenant's state
// behind a per-tenant mutex, closing the lost-update window the engines
// would otherwise have on a shared external store. The guarantee is
// single-process only; the store's own versioning guards cross-process
// writers.
type Accessor struct {
	store     Store
	normalize func(*TenantState)

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewAccessor creates an Accessor over store.
//
// Precondition: store must be non-nil.
func NewAccessor(store Store) *Accessor {
	return &Accessor{
		store: store,
		locks: make(map[string]*sync.Mutex),
	}
}

// SetNormalizer installs a rewrite applied to every state the Accessor
// loads, before callers observe it. Update persists the normalized form,
// so legacy rows migrate on their next write.
//
// Precondition: call during wiring, before the Accessor is shared.
func (a *Accessor) SetNormalizer(fn func(*TenantState)) {
	a.normalize = fn
}

// InventoryNormalizer adapts a catalog lookup into the rewrite shape
// SetNormalizer takes, enforcing the holding invariant on loaded state.
func InventoryNormalizer(canAttack func(itemID string) bool) func(*TenantState) {
	return func(st *TenantState) { st.NormalizeInventory(canAttack) }
}

func (a *Accessor) tenantLock(tenantID string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.locks[tenantID]
	if !ok {
		l = &sync.Mutex{}
		a.locks[tenantID] = l
	}
	return l
}

// Update runs fn inside the tenant's critical section: load (creating a
// pristine state for unknown tenants), mutate, save. If fn returns an
// error the state is not saved.
//
// Precondition: fn must not retain the *TenantState beyond its call.
// Postcondition: On nil return, fn's mutations are persisted.
func (a *Accessor) Update(ctx context.Context, tenantID string, fn func(*TenantState) error) error {
	l := a.tenantLock(tenantID)
	l.Lock()
	defer l.Unlock()

	st, err := a.store.Load(ctx, tenantID)
	if errors.Is(err, ErrTenantNotFound) {
		st = NewTenantState()
	} else if err != nil {
		return fmt.Errorf("loading tenant %q: %w", tenantID, err)
	}
	if st.Round < RoundFirst {
		st.Round = RoundFirst
	}
	if a.normalize != nil {
		a.normalize(st)
	}

	if err := fn(st); err != nil {
		return err
	}

	if err := a.store.Save(ctx, tenantID, st); err != nil {
		return fmt.Errorf("saving tenant %q: %w", tenantID, err)
	}
	return nil
}

// View runs fn against a read-only snapshot of the tenant state without
// persisting anything afterwards. Unknown tenants see a pristine state.
func (a *Accessor) View(ctx context.Context, tenantID string, fn func(*TenantState) error) error {
	l := a.tenantLock(tenantID)
	l.Lock()
	defer l.Unlock()

	st, err := a.store.Load(ctx, tenantID)
	if errors.Is(err, ErrTenantNotFound) {
		st = NewTenantState()
	} else if err != nil {
		return fmt.Errorf("loading tenant %q: %w", tenantID, err)
	}
	if a.normalize != nil {
		a.normalize(st)
	}
	return fn(st)
}

// GetCurrency returns the player's balance.
func (a *Accessor) GetCurrency(ctx context.Context, tenantID, playerID string) (int, error) {
	var out int
	err := a.View(ctx, tenantID, func(st *TenantState) error {
		out = st.Player(playerID).Currency
		return nil
	})
	return out, err
}

// AddCurrency applies a signed delta to the player's balance, floored at 0,
// and returns the new balance.
func (a *Accessor) AddCurrency(ctx context.Context, tenantID, playerID string, delta int) (int, error) {
	var out int
	err := a.Update(ctx, tenantID, func(st *TenantState) error {
		out = st.Player(playerID).AddCurrency(delta)
		return nil
	})
	return out, err
}

// GetInventory returns a copy of the player's normalized inventory.
func (a *Accessor) GetInventory(ctx context.Context, tenantID, playerID string) (map[string]Holding, error) {
	var out map[string]Holding
	err := a.View(ctx, tenantID, func(st *TenantState) error {
		out = st.Player(playerID).Clone().Inventory
		return nil
	})
	return out, err
}

// AddItem increments the player's holding for itemID by qty. canAttack
// controls whether the attack budget tracks the quantity delta.
func (a *Accessor) AddItem(ctx context.Context, tenantID, playerID, itemID string, qty int, canAttack bool) (Holding, error) {
	var out Holding
	err := a.Update(ctx, tenantID, func(st *TenantState) error {
		out = st.Player(playerID).AddItem(itemID, qty, canAttack)
		return nil
	})
	return out, err
}

// SetAttacksAvailable sets the attack budget for the player's itemID,
// clamped to the held quantity.
func (a *Accessor) SetAttacksAvailable(ctx context.Context, tenantID, playerID, itemID string, n int) (Holding, error) {
	var out Holding
	err := a.Update(ctx, tenantID, func(st *TenantState) error {
		out = st.Player(playerID).SetAttacksAvailable(itemID, n)
		return nil
	})
	return out, err
}
