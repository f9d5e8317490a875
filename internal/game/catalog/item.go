// Package catalog holds the static per-tenant item definitions consumed by
// the action and round engines: economic yields, attack/defense values, and
// consumability. Definitions are immutable once loaded.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ItemDefinition defines the static properties of a game item loaded from YAML.
// Yield and combat values are pointers: nil means the item has no value for
// that event or role.
type ItemDefinition struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	// GoodYield is the per-unit currency yield when the round event is good.
	GoodYield *int `yaml:"good_yield"`
	// BadYield is the per-unit currency yield when the round event is bad.
	BadYield *int `yaml:"bad_yield"`
	// AttackValue is the per-attack damage the item deals. nil = cannot attack.
	AttackValue *int `yaml:"attack_value"`
	// DefenseValue is the per-unit damage the item absorbs. nil = no defense.
	DefenseValue *int `yaml:"defense_value"`
	// Consumable items lose quantity when their scheduled attacks resolve.
	Consumable bool `yaml:"consumable"`
}

// CanAttack reports whether the item can be used to schedule attacks.
func (d *ItemDefinition) CanAttack() bool {
	return d.AttackValue != nil && *d.AttackValue > 0
}

// YieldFor returns the per-unit yield for the given event and whether the
// item has a yield defined for it.
//
// Postcondition: ok is false iff the matching yield is nil.
func (d *ItemDefinition) YieldFor(goodEvent bool) (int, bool) {
	v := d.BadYield
	if goodEvent {
		v = d.GoodYield
	}
	if v == nil {
		return 0, false
	}
	return *v, true
}

// Validate checks that the ItemDefinition satisfies its invariants.
//
// Precondition: d is non-nil.
// Postcondition: returns nil iff all fields are valid.
func (d *ItemDefinition) Validate() error {
	var errs []error
	if d.ID == "" {
		errs = append(errs, errors.New("ID must not be empty"))
	}
	if d.Name == "" {
		errs = append(errs, errors.New("Name must not be empty"))
	}
	if d.AttackValue != nil && *d.AttackValue < 0 {
		errs = append(errs, errors.New("AttackValue must be >= 0"))
	}
	if d.DefenseValue != nil && *d.DefenseValue < 0 {
		errs = append(errs, errors.New("DefenseValue must be >= 0"))
	}
	if d.Consumable && d.AttackValue == nil {
		errs = append(errs, errors.New("Consumable requires AttackValue"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("item validation failed: %v", errs)
	}
	return nil
}

// LoadItems reads all *.yaml and *.yml files from dir, parses each as an
// ItemDefinition, validates it, and returns the collected slice.
//
// Precondition: dir is a readable directory path.
// Postcondition: returns all valid ItemDefinitions or the first encountered error.
func LoadItems(dir string) ([]*ItemDefinition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("LoadItems: cannot read directory %q: %w", dir, err)
	}

	var items []*ItemDefinition
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("LoadItems: cannot read file %q: %w", path, err)
		}
		var d ItemDefinition
		if err := yaml.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("LoadItems: cannot parse file %q: %w", path, err)
		}
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("LoadItems: invalid item in %q: %w", path, err)
		}
		items = append(items, &d)
	}
	return items, nil
}
