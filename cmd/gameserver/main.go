// Package main provides the game daemon: it connects the tenant ledger to
// PostgreSQL, boots the collaborator scripts, and advances every tenant's
// round on the configured cadence.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/skirmish/internal/config"
	"github.com/cory-johannsen/skirmish/internal/game/catalog"
	"github.com/cory-johannsen/skirmish/internal/game/ledger"
	"github.com/cory-johannsen/skirmish/internal/game/round"
	"github.com/cory-johannsen/skirmish/internal/observability"
	"github.com/cory-johannsen/skirmish/internal/rng"
	"github.com/cory-johannsen/skirmish/internal/scripting"
	"github.com/cory-johannsen/skirmish/internal/server"
	"github.com/cory-johannsen/skirmish/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting game daemon",
		zap.Duration("round_interval", cfg.Game.RoundInterval),
	)

	// Load the item catalog.
	catalogStart := time.Now()
	reg, err := catalog.LoadRegistry(cfg.Content.ItemsDir)
	if err != nil {
		logger.Fatal("loading item catalog", zap.Error(err))
	}
	logger.Info("item catalog loaded",
		zap.Int("items", len(reg.All())),
		zap.Duration("elapsed", time.Since(catalogStart)),
	)

	// Connect to PostgreSQL for tenant state persistence.
	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	defer pool.Close()
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Duration("elapsed", time.Since(dbStart)),
	)

	stateRepo := postgres.NewTenantStateRepository(pool.DB())
	historyRepo := postgres.NewRoundHistoryRepository(pool.DB(), cfg.Game.HistoryLimit)
	accessor := ledger.NewAccessor(stateRepo)
	accessor.SetNormalizer(ledger.InventoryNormalizer(reg.CanAttack))

	// Boot the collaborator scripts so a broken script fails the daemon at
	// startup rather than at the first trigger dispatched by an embedding
	// host.
	scriptMgr := scripting.NewManager(logger)
	defer scriptMgr.Close()
	if cfg.Scripting.ScriptRoot != "" {
		wireScriptCallbacks(scriptMgr, accessor, reg)
		if err := loadScripts(scriptMgr, cfg.Scripting); err != nil {
			logger.Fatal("loading collaborator scripts", zap.Error(err))
		}
	}

	src := rng.NewLoggedSource(rng.NewCryptoSource(), logger)
	engine := round.NewEngine(accessor, reg, src, cfg.Game, historyRepo, logger)
	ticker := server.NewRoundTicker(engine, stateRepo, cfg.Game.RoundInterval, logger)

	lc := server.NewLifecycle(logger)
	lc.Add("round-ticker", ticker)

	logger.Info("game daemon ready", zap.Duration("startup", time.Since(start)))
	if err := lc.Run(ctx); err != nil {
		logger.Error("daemon exited with error", zap.Error(err))
		os.Exit(1)
	}
}

// wireScriptCallbacks exposes ledger reads and grants to the Lua hooks.
func wireScriptCallbacks(mgr *scripting.Manager, accessor *ledger.Accessor, reg *catalog.Registry) {
	mgr.GetCurrency = func(tenantID, playerID string) int {
		balance, err := accessor.GetCurrency(context.Background(), tenantID, playerID)
		if err != nil {
			return 0
		}
		return balance
	}
	mgr.AddCurrency = func(tenantID, playerID string, delta int) int {
		balance, err := accessor.AddCurrency(context.Background(), tenantID, playerID, delta)
		if err != nil {
			return 0
		}
		return balance
	}
	mgr.GetQuantity = func(tenantID, playerID, itemID string) int {
		inv, err := accessor.GetInventory(context.Background(), tenantID, playerID)
		if err != nil {
			return 0
		}
		return inv[itemID].Quantity
	}
	mgr.GrantItem = func(tenantID, playerID, itemID string, qty int) error {
		def, ok := reg.Item(itemID)
		if !ok {
			return catalog.ErrUnknownItem
		}
		_, err := accessor.AddItem(context.Background(), tenantID, playerID, def.ID, qty, def.CanAttack())
		return err
	}
}

// loadScripts loads the shared scripts from the root directory and one VM
// per subdirectory of <root>/tenants.
func loadScripts(mgr *scripting.Manager, cfg config.ScriptingConfig) error {
	if err := mgr.LoadGlobal(cfg.ScriptRoot, cfg.InstructionLimit); err != nil {
		return err
	}

	tenantsDir := filepath.Join(cfg.ScriptRoot, "tenants")
	entries, err := os.ReadDir(tenantsDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if err := mgr.LoadTenant(entry.Name(), filepath.Join(tenantsDir, entry.Name()), cfg.InstructionLimit); err != nil {
			return err
		}
	}
	return nil
}
