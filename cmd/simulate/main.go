// Package main provides an interactive simulator for trigger and round
// behavior against an in-memory ledger. It is a development tool: content
// authors can exercise a trigger file without a database or chat host.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cory-johannsen/skirmish/internal/config"
	"github.com/cory-johannsen/skirmish/internal/game/action"
	"github.com/cory-johannsen/skirmish/internal/game/catalog"
	"github.com/cory-johannsen/skirmish/internal/game/ledger"
	"github.com/cory-johannsen/skirmish/internal/game/round"
	"github.com/cory-johannsen/skirmish/internal/observability"
	"github.com/cory-johannsen/skirmish/internal/rng"
	"github.com/cory-johannsen/skirmish/internal/scripting"
)

const simTenant = "sim"

// stdoutSender prints deferred follow-up responses inline.
type stdoutSender struct{}

func (stdoutSender) Send(_ context.Context, _, playerID string, resp action.Response) error {
	printResponse(playerID, resp, "(follow-up)")
	return nil
}

func main() {
	itemsDir := flag.String("items", "content/items", "path to item YAML definitions")
	triggersDir := flag.String("triggers", "content/triggers", "path to trigger YAML definitions")
	scriptRoot := flag.String("scripts", "", "directory of collaborator Lua scripts; empty = disabled")
	flag.Parse()

	logger, err := observability.NewLogger(config.LoggingConfig{Level: "warn", Format: "console"})
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	reg, err := catalog.LoadRegistry(*itemsDir)
	if err != nil {
		log.Fatalf("loading item catalog: %v", err)
	}
	triggers, err := action.LoadTriggers(*triggersDir)
	if err != nil {
		log.Fatalf("loading triggers: %v", err)
	}

	accessor := ledger.NewAccessor(ledger.NewMemoryStore())
	accessor.SetNormalizer(ledger.InventoryNormalizer(reg.CanAttack))

	var collab action.Collaborator
	scriptMgr := scripting.NewManager(logger)
	defer scriptMgr.Close()
	if *scriptRoot != "" {
		scriptMgr.GetCurrency = func(tenantID, playerID string) int {
			balance, err := accessor.GetCurrency(context.Background(), tenantID, playerID)
			if err != nil {
				return 0
			}
			return balance
		}
		scriptMgr.AddCurrency = func(tenantID, playerID string, delta int) int {
			balance, err := accessor.AddCurrency(context.Background(), tenantID, playerID, delta)
			if err != nil {
				return 0
			}
			return balance
		}
		scriptMgr.GetQuantity = func(tenantID, playerID, itemID string) int {
			inv, err := accessor.GetInventory(context.Background(), tenantID, playerID)
			if err != nil {
				return 0
			}
			return inv[itemID].Quantity
		}
		scriptMgr.GrantItem = func(tenantID, playerID, itemID string, qty int) error {
			def, ok := reg.Item(itemID)
			if !ok {
				return catalog.ErrUnknownItem
			}
			_, err := accessor.AddItem(context.Background(), tenantID, playerID, def.ID, qty, def.CanAttack())
			return err
		}
		if err := scriptMgr.LoadGlobal(*scriptRoot, 0); err != nil {
			log.Fatalf("loading scripts: %v", err)
		}
		collab = scripting.NewCollaborator(scriptMgr)
	}

	src := rng.NewCryptoSource()
	gameCfg := config.GameConfig{
		FollowUpDelay:       200 * time.Millisecond,
		MaxAttacksPerRecord: 100,
	}
	executor := action.NewExecutor(reg, accessor, src, gameCfg, collab, stdoutSender{}, logger)
	engine := round.NewEngine(accessor, reg, src, gameCfg, nil, logger)

	fmt.Printf("loaded %d items, %d triggers\n", len(reg.All()), len(triggers))
	fmt.Println("commands: trigger <id> [player] | attack <attacker> <defender> <item> <count> | advance | reset | state | quit")

	scanner := bufio.NewScanner(os.Stdin)
	ctx := context.Background()
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "quit", "exit":
			return

		case "trigger":
			if len(fields) < 2 {
				fmt.Println("usage: trigger <id> [player]")
				continue
			}
			trig, ok := triggers[fields[1]]
			if !ok {
				fmt.Printf("unknown trigger %q\n", fields[1])
				continue
			}
			trig.TenantID = simTenant
			trig.PlayerID = "player1"
			if len(fields) > 2 {
				trig.PlayerID = fields[2]
			}
			resp := executor.Execute(ctx, trig)
			printResponse(trig.PlayerID, resp, "")
			// Give deferred responses a moment to print.
			time.Sleep(gameCfg.FollowUpDelay * 3)

		case "attack":
			if len(fields) != 5 {
				fmt.Println("usage: attack <attacker> <defender> <item> <count>")
				continue
			}
			count, err := strconv.Atoi(fields[4])
			if err != nil {
				fmt.Printf("bad count %q\n", fields[4])
				continue
			}
			rec, err := engine.ScheduleAttack(ctx, simTenant, fields[1], fields[2], fields[3], count)
			if err != nil {
				fmt.Printf("attack refused: %v\n", err)
				continue
			}
			fmt.Printf("scheduled: %d x %s for %d total damage\n", rec.AttacksPlanned, rec.ItemID, rec.TotalDamage)

		case "advance":
			result, err := engine.Advance(ctx, simTenant)
			if err != nil {
				fmt.Printf("advance failed: %v\n", err)
				continue
			}
			printResult(result)

		case "reset":
			if err := engine.Reset(ctx, simTenant); err != nil {
				fmt.Printf("reset failed: %v\n", err)
				continue
			}
			fmt.Println("game reset to round 1")

		case "state":
			printState(ctx, accessor, engine)

		default:
			fmt.Printf("unknown command %q\n", fields[0])
		}
	}
}

func printResponse(playerID string, resp action.Response, suffix string) {
	if !resp.HasContent() {
		fmt.Printf("[%s] (no response)%s\n", playerID, suffix)
		return
	}
	if resp.Title != "" {
		fmt.Printf("[%s] %s%s\n", playerID, resp.Title, suffix)
	}
	if resp.Body != "" {
		fmt.Printf("[%s] %s%s\n", playerID, resp.Body, suffix)
	}
	if resp.ImageURL != "" {
		fmt.Printf("[%s] image: %s\n", playerID, resp.ImageURL)
	}
	if resp.Button != nil {
		fmt.Printf("[%s] button: %q -> %s\n", playerID, resp.Button.Label, resp.Button.TriggerID)
	}
}

func printResult(result *round.Result) {
	if result.AwaitingReset && result.Event == "" {
		fmt.Println(result.Prompt)
		return
	}
	fmt.Printf("round %d resolved: %s event\n", result.Round, result.Event)
	for _, o := range result.Outcomes {
		fmt.Printf("  %s: %d -> %d (attacks received: %d, damage dealt: %d)\n",
			o.PlayerID, o.StartingBalance, o.EndingBalance, o.AttacksReceived, o.DamageDealt)
	}
	for _, s := range result.Standings {
		fmt.Printf("  #%d %s with %d\n", s.Rank, s.PlayerID, s.Currency)
	}
}

func printState(ctx context.Context, accessor *ledger.Accessor, engine *round.Engine) {
	state, err := engine.State(ctx, simTenant)
	if err != nil {
		fmt.Printf("state failed: %v\n", err)
		return
	}
	fmt.Printf("state: %s\n", state)
	err = accessor.View(ctx, simTenant, func(st *ledger.TenantState) error {
		ids := make([]string, 0, len(st.Players))
		for id := range st.Players {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			rec := st.Players[id]
			fmt.Printf("  %s: %d currency, %d items held\n", id, rec.Currency, len(rec.Inventory))
		}
		fmt.Printf("  %d attacks queued\n", len(st.AttackQueue))
		return nil
	})
	if err != nil {
		fmt.Printf("state failed: %v\n", err)
	}
}
