// Package action implements the action execution engine: an interpreter
// that runs an ordered list of typed, possibly-conditional actions for a
// single trigger and produces one primary response plus deferred
// follow-ups.
package action

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/skirmish/internal/game/predicate"
)

// Kind is the closed set of action kinds.
type Kind string

const (
	KindDisplayText    Kind = "display_text"
	KindUpdateCurrency Kind = "update_currency"
	KindGiveCurrency   Kind = "give_currency"
	KindGiveItem       Kind = "give_item"
	KindFollowUpButton Kind = "follow_up_button"
	KindConditional    Kind = "conditional"
	KindRandomOutcome  Kind = "random_outcome"
	KindStoreDisplay   Kind = "store_display"
	KindBuyItem        Kind = "buy_item"
	KindCheckPoints    Kind = "check_points"
	KindModifyPoints   Kind = "modify_points"
	KindMovePlayer     Kind = "move_player"
)

// ClaimLimit restricts how many times a reward action may be granted.
type ClaimLimit string

const (
	// ClaimUnlimited grants on every trigger.
	ClaimUnlimited ClaimLimit = "unlimited"
	// ClaimOncePerPlayer grants each player at most once.
	ClaimOncePerPlayer ClaimLimit = "once_per_player"
	// ClaimOnceGlobally grants one player exactly once, ever.
	ClaimOnceGlobally ClaimLimit = "once_globally"
)

// Outcome is one weighted branch of a random_outcome step.
type Outcome struct {
	Name string `yaml:"name" json:"name"`
	// Weight defaults to 1 when omitted or < 1.
	Weight int    `yaml:"weight" json:"weight"`
	Steps  []Step `yaml:"steps" json:"steps,omitempty"`
}

// StepConfig carries the per-kind settings of a step. Only the fields
// relevant to the step's Kind are read.
type StepConfig struct {
	// display_text
	Title    string `yaml:"title" json:"title,omitempty"`
	Body     string `yaml:"body" json:"body,omitempty"`
	ImageURL string `yaml:"image_url" json:"imageUrl,omitempty"`

	// update_currency / give_currency / modify_points
	Amount int `yaml:"amount" json:"amount,omitempty"`

	// give_item / buy_item
	ItemID   string `yaml:"item_id" json:"itemId,omitempty"`
	Quantity int    `yaml:"quantity" json:"quantity,omitempty"`

	// give_currency / give_item
	ClaimLimit ClaimLimit `yaml:"claim_limit" json:"claimLimit,omitempty"`

	// follow_up_button
	ButtonLabel     string `yaml:"button_label" json:"buttonLabel,omitempty"`
	TargetTriggerID string `yaml:"target_trigger_id" json:"targetTriggerId,omitempty"`

	// conditional
	Condition      *predicate.Condition `yaml:"condition" json:"condition,omitempty"`
	OnSuccess      []Step               `yaml:"on_success" json:"onSuccess,omitempty"`
	OnFailure      []Step               `yaml:"on_failure" json:"onFailure,omitempty"`
	FailureMessage string               `yaml:"failure_message" json:"failureMessage,omitempty"`

	// random_outcome
	Outcomes []Outcome `yaml:"outcomes" json:"outcomes,omitempty"`

	// move_player
	Direction string `yaml:"direction" json:"direction,omitempty"`
}

// Step is one typed action in a trigger's list. Steps execute in ascending
// Order.
type Step struct {
	Kind   Kind       `yaml:"kind" json:"kind"`
	Order  int        `yaml:"order" json:"order"`
	Config StepConfig `yaml:"config" json:"config"`
}

// Trigger is the authoritative input for one execution: the player and
// tenant plus the ordered action list.
type Trigger struct {
	TriggerID string `yaml:"trigger_id" json:"triggerId"`
	PlayerID  string `yaml:"-" json:"playerId"`
	TenantID  string `yaml:"-" json:"tenantId"`
	Steps     []Step `yaml:"steps" json:"steps"`
}

// SortedSteps returns the trigger's steps in ascending Order. The input
// slice is not modified.
func (t Trigger) SortedSteps() []Step {
	steps := make([]Step, len(t.Steps))
	copy(steps, t.Steps)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Order < steps[j].Order })
	return steps
}

// LoadTriggers reads all *.yaml and *.yml files from dir, parses each as a
// Trigger definition, and returns them indexed by TriggerID.
//
// Precondition: dir is a readable directory path.
// Postcondition: returns all triggers or the first encountered error.
func LoadTriggers(dir string) (map[string]Trigger, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("LoadTriggers: cannot read directory %q: %w", dir, err)
	}

	triggers := make(map[string]Trigger)
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("LoadTriggers: cannot read file %q: %w", path, err)
		}
		var trig Trigger
		if err := yaml.Unmarshal(data, &trig); err != nil {
			return nil, fmt.Errorf("LoadTriggers: cannot parse file %q: %w", path, err)
		}
		if trig.TriggerID == "" {
			return nil, fmt.Errorf("LoadTriggers: %q has no trigger_id", path)
		}
		if _, exists := triggers[trig.TriggerID]; exists {
			return nil, fmt.Errorf("LoadTriggers: duplicate trigger ID %q in %q", trig.TriggerID, path)
		}
		triggers[trig.TriggerID] = trig
	}
	return triggers, nil
}
