package action

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/skirmish/internal/config"
	"github.com/cory-johannsen/skirmish/internal/game/catalog"
	"github.com/cory-johannsen/skirmish/internal/game/ledger"
	"github.com/cory-johannsen/skirmish/internal/game/predicate"
)

// fixedSrc replays a scripted sequence of draws, reduced modulo n.
type fixedSrc struct {
	vals []int
	idx  int
}

func (f *fixedSrc) Intn(n int) int {
	if len(f.vals) == 0 {
		return 0
	}
	v := f.vals[f.idx%len(f.vals)]
	f.idx++
	return v % n
}

func intPtr(v int) *int { return &v }

func testRegistry(t *testing.T) *catalog.Registry {
	t.Helper()
	reg := catalog.NewRegistry()
	require.NoError(t, reg.Register(&catalog.ItemDefinition{
		ID: "farm", Name: "Farm", GoodYield: intPtr(10), BadYield: intPtr(-5),
	}))
	require.NoError(t, reg.Register(&catalog.ItemDefinition{
		ID: "raider", Name: "Raider", AttackValue: intPtr(25), Consumable: true,
	}))
	return reg
}

type executorEnv struct {
	exec     *Executor
	accessor *ledger.Accessor
	sent     chan Response
}

type chanSender struct{ ch chan Response }

func (s chanSender) Send(_ context.Context, _, _ string, r Response) error {
	s.ch <- r
	return nil
}

// fakeCollaborator returns canned results per hook.
type fakeCollaborator struct {
	checkMsg  string
	checkOK   bool
	modifyMsg string
	modifyOK  bool
	buyMsg    string
	buyOK     bool
}

func (f *fakeCollaborator) CheckPoints(context.Context, string, string, int) (string, bool) {
	return f.checkMsg, f.checkOK
}
func (f *fakeCollaborator) ModifyPoints(context.Context, string, string, int) (string, bool) {
	return f.modifyMsg, f.modifyOK
}
func (f *fakeCollaborator) MovePlayer(context.Context, string, string, string) (string, bool) {
	return "", false
}
func (f *fakeCollaborator) StoreDisplay(context.Context, string, string) (string, bool) {
	return "", false
}
func (f *fakeCollaborator) BuyItem(context.Context, string, string, string) (string, bool) {
	return f.buyMsg, f.buyOK
}

func newExecutorEnv(t *testing.T, src *fixedSrc, collab Collaborator) executorEnv {
	t.Helper()
	accessor := ledger.NewAccessor(ledger.NewMemoryStore())
	sent := make(chan Response, 8)
	cfg := config.GameConfig{FollowUpDelay: time.Millisecond}
	exec := NewExecutor(testRegistry(t), accessor, src, cfg, collab, chanSender{ch: sent}, zap.NewNop())
	return executorEnv{exec: exec, accessor: accessor, sent: sent}
}

func awaitDeferred(t *testing.T, ch chan Response) Response {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for deferred response")
		return Response{}
	}
}

func trigger(id string, steps ...Step) Trigger {
	return Trigger{TriggerID: id, PlayerID: "alice", TenantID: "guild-1", Steps: steps}
}

func TestExecuteBundlesButtonIntoPrecedingDisplay(t *testing.T) {
	env := newExecutorEnv(t, &fixedSrc{}, nil)
	trig := trigger("welcome",
		Step{Kind: KindDisplayText, Order: 1, Config: StepConfig{Title: "Welcome", Body: "Hello"}},
		Step{Kind: KindFollowUpButton, Order: 2, Config: StepConfig{ButtonLabel: "Continue", TargetTriggerID: "next"}},
		Step{Kind: KindDisplayText, Order: 3, Config: StepConfig{Body: "See you soon"}},
	)

	primary := env.exec.Execute(context.Background(), trig)

	assert.Equal(t, "Welcome", primary.Title)
	require.NotNil(t, primary.Button)
	assert.Equal(t, "Continue", primary.Button.Label)
	assert.Equal(t, "next", primary.Button.TriggerID)

	deferred := awaitDeferred(t, env.sent)
	assert.Equal(t, "See you soon", deferred.Body)
	assert.Nil(t, deferred.Button)
}

func TestExecuteRunsStepsInOrderFieldOrder(t *testing.T) {
	env := newExecutorEnv(t, &fixedSrc{}, nil)
	// The slice is deliberately out of order; the Order field governs.
	trig := trigger("ordered",
		Step{Kind: KindFollowUpButton, Order: 2, Config: StepConfig{ButtonLabel: "Go", TargetTriggerID: "next"}},
		Step{Kind: KindDisplayText, Order: 1, Config: StepConfig{Body: "First"}},
	)

	primary := env.exec.Execute(context.Background(), trig)

	assert.Equal(t, "First", primary.Body)
	require.NotNil(t, primary.Button, "button should bundle into the display once sorted")
}

func TestStandaloneFollowUpButton(t *testing.T) {
	env := newExecutorEnv(t, &fixedSrc{}, nil)
	trig := trigger("lone-button",
		Step{Kind: KindFollowUpButton, Order: 1, Config: StepConfig{ButtonLabel: "Go", TargetTriggerID: "next"}},
	)

	primary := env.exec.Execute(context.Background(), trig)

	assert.Empty(t, primary.Body)
	require.NotNil(t, primary.Button)
	assert.Equal(t, "next", primary.Button.TriggerID)
}

func TestGiveCurrencyOncePerPlayer(t *testing.T) {
	env := newExecutorEnv(t, &fixedSrc{}, nil)
	steps := []Step{{Kind: KindGiveCurrency, Order: 1, Config: StepConfig{Amount: 50, ClaimLimit: ClaimOncePerPlayer}}}

	first := env.exec.Execute(context.Background(), Trigger{TriggerID: "bonus", PlayerID: "alice", TenantID: "guild-1", Steps: steps})
	assert.Equal(t, "You received 50 points.", first.Body)

	second := env.exec.Execute(context.Background(), Trigger{TriggerID: "bonus", PlayerID: "alice", TenantID: "guild-1", Steps: steps})
	assert.Equal(t, "This reward has already been claimed.", second.Body)

	balance, err := env.accessor.GetCurrency(context.Background(), "guild-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, 50, balance, "repeat trigger must not grant twice")

	// A different player is still eligible.
	other := env.exec.Execute(context.Background(), Trigger{TriggerID: "bonus", PlayerID: "bob", TenantID: "guild-1", Steps: steps})
	assert.Equal(t, "You received 50 points.", other.Body)
}

func TestGiveCurrencyOnceGlobally(t *testing.T) {
	env := newExecutorEnv(t, &fixedSrc{}, nil)
	steps := []Step{{Kind: KindGiveCurrency, Order: 1, Config: StepConfig{Amount: 100, ClaimLimit: ClaimOnceGlobally}}}

	first := env.exec.Execute(context.Background(), Trigger{TriggerID: "jackpot", PlayerID: "alice", TenantID: "guild-1", Steps: steps})
	assert.Equal(t, "You received 100 points.", first.Body)

	second := env.exec.Execute(context.Background(), Trigger{TriggerID: "jackpot", PlayerID: "bob", TenantID: "guild-1", Steps: steps})
	assert.Equal(t, "This reward has already been claimed.", second.Body)

	balance, err := env.accessor.GetCurrency(context.Background(), "guild-1", "bob")
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestGiveItemTracksAttackBudget(t *testing.T) {
	env := newExecutorEnv(t, &fixedSrc{}, nil)
	trig := trigger("armory",
		Step{Kind: KindGiveItem, Order: 1, Config: StepConfig{ItemID: "raider", Quantity: 2}},
	)

	resp := env.exec.Execute(context.Background(), trig)
	assert.Equal(t, "You received 2 x Raider.", resp.Body)

	inv, err := env.accessor.GetInventory(context.Background(), "guild-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, inv["raider"].Quantity)
	assert.Equal(t, 2, inv["raider"].AttacksAvailable)
}

func TestGiveItemNonAttackHasNoBudget(t *testing.T) {
	env := newExecutorEnv(t, &fixedSrc{}, nil)
	trig := trigger("grant-farm",
		Step{Kind: KindGiveItem, Order: 1, Config: StepConfig{ItemID: "farm"}},
	)

	resp := env.exec.Execute(context.Background(), trig)
	assert.Equal(t, "You received 1 x Farm.", resp.Body)

	inv, err := env.accessor.GetInventory(context.Background(), "guild-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, inv["farm"].Quantity)
	assert.Zero(t, inv["farm"].AttacksAvailable)
}

func TestGiveItemUnknownItemFailsWithoutSideEffects(t *testing.T) {
	env := newExecutorEnv(t, &fixedSrc{}, nil)
	trig := trigger("broken",
		Step{Kind: KindGiveItem, Order: 1, Config: StepConfig{ItemID: "ghost"}},
	)

	resp := env.exec.Execute(context.Background(), trig)
	assert.Equal(t, GenericFailureBody, resp.Body)

	inv, err := env.accessor.GetInventory(context.Background(), "guild-1", "alice")
	require.NoError(t, err)
	assert.Empty(t, inv)
}

func TestUpdateCurrencyIsSilentAndFloorsAtZero(t *testing.T) {
	env := newExecutorEnv(t, &fixedSrc{}, nil)
	_, err := env.accessor.AddCurrency(context.Background(), "guild-1", "alice", 30)
	require.NoError(t, err)

	trig := trigger("tax",
		Step{Kind: KindUpdateCurrency, Order: 1, Config: StepConfig{Amount: -100}},
	)
	resp := env.exec.Execute(context.Background(), trig)
	assert.False(t, resp.HasContent(), "update_currency renders nothing")

	balance, err := env.accessor.GetCurrency(context.Background(), "guild-1", "alice")
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestConditionalRunsOnlyFirstBranchStep(t *testing.T) {
	env := newExecutorEnv(t, &fixedSrc{}, nil)
	_, err := env.accessor.AddCurrency(context.Background(), "guild-1", "alice", 20)
	require.NoError(t, err)

	trig := trigger("gate",
		Step{Kind: KindConditional, Order: 1, Config: StepConfig{
			Condition: &predicate.Condition{Kind: predicate.KindCurrencyAtLeast, Value: 10},
			OnSuccess: []Step{
				{Kind: KindGiveCurrency, Order: 1, Config: StepConfig{Amount: 5}},
				{Kind: KindGiveCurrency, Order: 2, Config: StepConfig{Amount: 1000}},
			},
		}},
	)

	resp := env.exec.Execute(context.Background(), trig)
	assert.Equal(t, "You received 5 points.", resp.Body)

	balance, err := env.accessor.GetCurrency(context.Background(), "guild-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, 25, balance, "only the first step of the branch runs")
}

func TestConditionalFailureMessage(t *testing.T) {
	env := newExecutorEnv(t, &fixedSrc{}, nil)
	trig := trigger("gate",
		Step{Kind: KindConditional, Order: 1, Config: StepConfig{
			Condition:      &predicate.Condition{Kind: predicate.KindCurrencyAtLeast, Value: 10},
			OnSuccess:      []Step{{Kind: KindGiveCurrency, Order: 1, Config: StepConfig{Amount: 5}}},
			FailureMessage: "You need at least 10 points.",
		}},
	)

	resp := env.exec.Execute(context.Background(), trig)
	assert.Equal(t, "You need at least 10 points.", resp.Body)

	balance, err := env.accessor.GetCurrency(context.Background(), "guild-1", "alice")
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestConditionalFailureBranchOverridesMessage(t *testing.T) {
	env := newExecutorEnv(t, &fixedSrc{}, nil)
	trig := trigger("gate",
		Step{Kind: KindConditional, Order: 1, Config: StepConfig{
			Condition:      &predicate.Condition{Kind: predicate.KindCurrencyAtLeast, Value: 10},
			OnFailure:      []Step{{Kind: KindDisplayText, Order: 1, Config: StepConfig{Body: "Come back richer."}}},
			FailureMessage: "unused",
		}},
	)

	resp := env.exec.Execute(context.Background(), trig)
	assert.Equal(t, "Come back richer.", resp.Body)
}

func TestRandomOutcomeDispatch(t *testing.T) {
	outcomes := []Outcome{
		{Name: "You found a coin!", Weight: 1},
		{Name: "big", Weight: 3, Steps: []Step{
			{Kind: KindGiveCurrency, Order: 1, Config: StepConfig{Amount: 10}},
		}},
	}

	t.Run("low draw picks the first outcome", func(t *testing.T) {
		env := newExecutorEnv(t, &fixedSrc{vals: []int{0}}, nil)
		trig := trigger("wheel", Step{Kind: KindRandomOutcome, Order: 1, Config: StepConfig{Outcomes: outcomes}})
		resp := env.exec.Execute(context.Background(), trig)
		assert.Equal(t, "You found a coin!", resp.Body, "outcome without steps falls back to its name")
	})

	t.Run("high draw picks the weighted outcome and runs its step", func(t *testing.T) {
		env := newExecutorEnv(t, &fixedSrc{vals: []int{39_999}}, nil)
		trig := trigger("wheel", Step{Kind: KindRandomOutcome, Order: 1, Config: StepConfig{Outcomes: outcomes}})
		resp := env.exec.Execute(context.Background(), trig)
		assert.Equal(t, "You received 10 points.", resp.Body)

		balance, err := env.accessor.GetCurrency(context.Background(), "guild-1", "alice")
		require.NoError(t, err)
		assert.Equal(t, 10, balance)
	})

	t.Run("empty outcome list yields the default message", func(t *testing.T) {
		env := newExecutorEnv(t, &fixedSrc{}, nil)
		trig := trigger("wheel", Step{Kind: KindRandomOutcome, Order: 1})
		resp := env.exec.Execute(context.Background(), trig)
		assert.Equal(t, "Nothing happens.", resp.Body)
	})
}

func TestCheckPointsSilentOnSuccess(t *testing.T) {
	env := newExecutorEnv(t, &fixedSrc{}, &fakeCollaborator{checkOK: true})
	trig := trigger("gate",
		Step{Kind: KindCheckPoints, Order: 1, Config: StepConfig{Amount: 10}},
		Step{Kind: KindDisplayText, Order: 2, Config: StepConfig{Body: "Welcome in."}},
	)

	resp := env.exec.Execute(context.Background(), trig)
	assert.Equal(t, "Welcome in.", resp.Body, "a passing check produces no response of its own")
}

func TestCheckPointsRefusalDoesNotAbortLaterSteps(t *testing.T) {
	env := newExecutorEnv(t, &fixedSrc{}, &fakeCollaborator{checkOK: false, checkMsg: "Not enough points."})
	trig := trigger("gate",
		Step{Kind: KindCheckPoints, Order: 1, Config: StepConfig{Amount: 10}},
		Step{Kind: KindDisplayText, Order: 2, Config: StepConfig{Body: "Welcome in."}},
	)

	resp := env.exec.Execute(context.Background(), trig)
	assert.Equal(t, "Not enough points.", resp.Body)

	deferred := awaitDeferred(t, env.sent)
	assert.Equal(t, "Welcome in.", deferred.Body, "later steps still run after a refusal")
}

func TestCollaboratorStepWithoutCollaboratorRefuses(t *testing.T) {
	env := newExecutorEnv(t, &fixedSrc{}, nil)
	trig := trigger("shop",
		Step{Kind: KindBuyItem, Order: 1, Config: StepConfig{ItemID: "raider"}},
	)

	resp := env.exec.Execute(context.Background(), trig)
	assert.Equal(t, "You can't buy that right now.", resp.Body)
}

func TestModifyPointsPropagatesMessage(t *testing.T) {
	env := newExecutorEnv(t, &fixedSrc{}, &fakeCollaborator{modifyOK: true, modifyMsg: "You now have 40 points."})
	trig := trigger("award",
		Step{Kind: KindModifyPoints, Order: 1, Config: StepConfig{Amount: 40}},
	)

	resp := env.exec.Execute(context.Background(), trig)
	assert.Equal(t, "You now have 40 points.", resp.Body)
}

func TestExecuteRecoversFromPanic(t *testing.T) {
	// A nil catalog makes give_item dereference nil; the executor must
	// convert the panic to the generic failure response.
	accessor := ledger.NewAccessor(ledger.NewMemoryStore())
	exec := NewExecutor(nil, accessor, &fixedSrc{}, config.GameConfig{}, nil, nil, zap.NewNop())

	resp := exec.Execute(context.Background(), trigger("boom",
		Step{Kind: KindGiveItem, Order: 1, Config: StepConfig{ItemID: "raider"}},
	))
	assert.Equal(t, GenericFailureBody, resp.Body)
}

func TestUnknownKindIsSkipped(t *testing.T) {
	env := newExecutorEnv(t, &fixedSrc{}, nil)
	trig := trigger("odd",
		Step{Kind: Kind("teleport"), Order: 1},
		Step{Kind: KindDisplayText, Order: 2, Config: StepConfig{Body: "Still here."}},
	)

	resp := env.exec.Execute(context.Background(), trig)
	assert.Equal(t, "Still here.", resp.Body)
}

func TestExecuteRecordsUsageAndCooldown(t *testing.T) {
	env := newExecutorEnv(t, &fixedSrc{}, nil)
	trig := trigger("daily",
		Step{Kind: KindDisplayText, Order: 1, Config: StepConfig{Body: "Hi"}},
	)
	env.exec.Execute(context.Background(), trig)
	env.exec.Execute(context.Background(), trig)

	err := env.accessor.View(context.Background(), "guild-1", func(st *ledger.TenantState) error {
		assert.Equal(t, 2, st.UsageCount("alice", "daily"))
		_, started := st.CooldownStart("alice", "daily")
		assert.True(t, started)
		return nil
	})
	require.NoError(t, err)
}

func TestCooldownGateIgnoresOwnTouch(t *testing.T) {
	env := newExecutorEnv(t, &fixedSrc{}, nil)
	trig := trigger("scavenge",
		Step{Kind: KindConditional, Order: 1, Config: StepConfig{
			Condition: &predicate.Condition{
				Kind:     predicate.KindCooldownElapsed,
				Counter:  "scavenge",
				Duration: time.Hour,
			},
			OnSuccess:      []Step{{Kind: KindGiveCurrency, Order: 1, Config: StepConfig{Amount: 15}}},
			FailureMessage: "Come back later.",
		}},
	)

	first := env.exec.Execute(context.Background(), trig)
	assert.Equal(t, "You received 15 points.", first.Body,
		"the cooldown this execution just started must not gate its own condition")

	second := env.exec.Execute(context.Background(), trig)
	assert.Equal(t, "Come back later.", second.Body)
}

func TestLoadTriggers(t *testing.T) {
	dir := t.TempDir()
	data := `trigger_id: welcome
steps:
  - kind: display_text
    order: 1
    config:
      title: Welcome
      body: Hello there
  - kind: give_currency
    order: 2
    config:
      amount: 25
      claim_limit: once_per_player
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "welcome.yaml"), []byte(data), 0o644))

	triggers, err := LoadTriggers(dir)
	require.NoError(t, err)
	require.Len(t, triggers, 1)

	trig := triggers["welcome"]
	require.Len(t, trig.Steps, 2)
	assert.Equal(t, KindDisplayText, trig.Steps[0].Kind)
	assert.Equal(t, ClaimOncePerPlayer, trig.Steps[1].Config.ClaimLimit)
	assert.Equal(t, 25, trig.Steps[1].Config.Amount)
}

func TestLoadTriggersRejectsDuplicates(t *testing.T) {
	dir := t.TempDir()
	body := "trigger_id: dup\nsteps: []\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(body), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte(body), 0o644))

	_, err := LoadTriggers(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate trigger ID")
}

// The dispatch table is populated in init; every declared kind must have
// an entry or steps of that kind would be silently skipped.
func TestDispatchTableCoversEveryKind(t *testing.T) {
	kinds := []Kind{
		KindDisplayText, KindUpdateCurrency, KindGiveCurrency, KindGiveItem,
		KindFollowUpButton, KindConditional, KindRandomOutcome,
		KindStoreDisplay, KindBuyItem, KindCheckPoints, KindModifyPoints,
		KindMovePlayer,
	}
	require.Len(t, handlers, len(kinds))
	for _, k := range kinds {
		assert.NotNil(t, handlers[k], "kind %q has no handler", k)
	}
}
