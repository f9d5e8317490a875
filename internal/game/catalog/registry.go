package catalog

import (
	"errors"
	"fmt"
)

// ErrUnknownItem is returned by callers resolving an item ID that is not
// in the registry.
var ErrUnknownItem = errors.New("unknown item")

// Registry holds all loaded item definitions indexed by ID. It is read-only
// to the engines after loading completes.
type Registry struct {
	items map[string]*ItemDefinition
}

// NewRegistry returns an empty Registry.
//
// Postcondition: the internal map is initialised.
func NewRegistry() *Registry {
	return &Registry{items: make(map[string]*ItemDefinition)}
}

// Register adds d to the registry.
//
// Precondition:  d must not be nil and must pass Validate.
// Postcondition: Item(d.ID) returns (d, true); returns error if d.ID already registered.
func (r *Registry) Register(d *ItemDefinition) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("catalog: Registry.Register: %w", err)
	}
	if _, exists := r.items[d.ID]; exists {
		return fmt.Errorf("catalog: Registry.Register: item ID %q already registered", d.ID)
	}
	r.items[d.ID] = d
	return nil
}

// Item returns the ItemDefinition for the given id and whether it was found.
//
// Postcondition: ok is true iff the id is registered.
func (r *Registry) Item(id string) (*ItemDefinition, bool) {
	d, ok := r.items[id]
	return d, ok
}

// CanAttack reports whether id names a registered item with an attack
// value. Unregistered ids cannot attack.
func (r *Registry) CanAttack(id string) bool {
	d, ok := r.items[id]
	return ok && d.CanAttack()
}

// All returns all registered definitions in unspecified order.
//
// Postcondition: len(result) == number of registered items.
func (r *Registry) All() []*ItemDefinition {
	out := make([]*ItemDefinition, 0, len(r.items))
	for _, d := range r.items {
		out = append(out, d)
	}
	return out
}

// LoadRegistry loads all item definitions from dir into a fresh Registry.
//
// Precondition: dir is a readable directory path.
func LoadRegistry(dir string) (*Registry, error) {
	items, err := LoadItems(dir)
	if err != nil {
		return nil, err
	}
	r := NewRegistry()
	for _, d := range items {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}
