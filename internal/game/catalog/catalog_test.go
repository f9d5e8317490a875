package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestItemValidate(t *testing.T) {
	valid := &ItemDefinition{ID: "raider", Name: "Raider", AttackValue: intPtr(25), Consumable: true}
	assert.NoError(t, valid.Validate())

	missingID := &ItemDefinition{Name: "Raider"}
	assert.Error(t, missingID.Validate())

	negAttack := &ItemDefinition{ID: "x", Name: "X", AttackValue: intPtr(-1)}
	assert.Error(t, negAttack.Validate())

	consumableNoAttack := &ItemDefinition{ID: "x", Name: "X", Consumable: true}
	assert.Error(t, consumableNoAttack.Validate())
}

func TestYieldFor(t *testing.T) {
	d := &ItemDefinition{ID: "farm", Name: "Farm", GoodYield: intPtr(10)}

	v, ok := d.YieldFor(true)
	assert.True(t, ok)
	assert.Equal(t, 10, v)

	_, ok = d.YieldFor(false)
	assert.False(t, ok, "no bad yield defined")
}

func TestCanAttack(t *testing.T) {
	assert.True(t, (&ItemDefinition{AttackValue: intPtr(5)}).CanAttack())
	assert.False(t, (&ItemDefinition{}).CanAttack())
	assert.False(t, (&ItemDefinition{AttackValue: intPtr(0)}).CanAttack())
}

func TestRegistryDuplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&ItemDefinition{ID: "farm", Name: "Farm"}))
	assert.Error(t, r.Register(&ItemDefinition{ID: "farm", Name: "Farm Again"}))

	d, ok := r.Item("farm")
	require.True(t, ok)
	assert.Equal(t, "Farm", d.Name)

	_, ok = r.Item("missing")
	assert.False(t, ok)
}

func TestLoadItemsFromDir(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "raider.yaml"), []byte(`
id: raider
name: Raider
description: A one-shot attack drone.
attack_value: 25
consumable: true
`), 0644)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(dir, "farm.yaml"), []byte(`
id: farm
name: Farm
good_yield: 10
bad_yield: -5
defense_value: 2
`), 0644)
	require.NoError(t, err)

	reg, err := LoadRegistry(dir)
	require.NoError(t, err)

	raider, ok := reg.Item("raider")
	require.True(t, ok)
	assert.True(t, raider.CanAttack())
	assert.True(t, raider.Consumable)
	assert.Equal(t, 25, *raider.AttackValue)

	farm, ok := reg.Item("farm")
	require.True(t, ok)
	good, ok := farm.YieldFor(true)
	require.True(t, ok)
	assert.Equal(t, 10, good)
	bad, ok := farm.YieldFor(false)
	require.True(t, ok)
	assert.Equal(t, -5, bad)
	assert.Len(t, reg.All(), 2)
}

func TestLoadItemsInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("id: [broken"), 0644)
	require.NoError(t, err)

	_, err = LoadItems(dir)
	assert.Error(t, err)
}

func TestLoadItemsMissingDir(t *testing.T) {
	_, err := LoadItems("/nonexistent/items")
	assert.Error(t, err)
}
