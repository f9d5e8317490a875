package server

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/skirmish/internal/game/round"
)

// TenantLister enumerates the tenants with persisted game state.
type TenantLister interface {
	Tenants(ctx context.Context) ([]string, error)
}

// RoundTicker advances every known tenant's round on a fixed cadence. A
// tenant sitting at the reset gate is left alone until an operator or
// player confirms the reset.
type RoundTicker struct {
	engine   *round.Engine
	tenants  TenantLister
	interval time.Duration
	logger   *zap.Logger

	done     chan struct{}
	stopOnce sync.Once
}

// NewRoundTicker creates a RoundTicker.
//
// Precondition: engine, tenants, and logger must be non-nil; interval > 0.
func NewRoundTicker(engine *round.Engine, tenants TenantLister, interval time.Duration, logger *zap.Logger) *RoundTicker {
	return &RoundTicker{
		engine:   engine,
		tenants:  tenants,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start runs the tick loop until Stop is called.
func (t *RoundTicker) Start() error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return nil
		case <-ticker.C:
			t.tick()
		}
	}
}

// Stop terminates the tick loop. Safe to call more than once.
func (t *RoundTicker) Stop() {
	t.stopOnce.Do(func() { close(t.done) })
}

func (t *RoundTicker) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), t.interval)
	defer cancel()

	tenants, err := t.tenants.Tenants(ctx)
	if err != nil {
		t.logger.Error("listing tenants for round tick", zap.Error(err))
		return
	}

	for _, tenantID := range tenants {
		result, err := t.engine.Advance(ctx, tenantID)
		if err != nil {
			t.logger.Error("advancing round",
				zap.String("tenant", tenantID),
				zap.Error(err),
			)
			continue
		}
		if result.AwaitingReset && result.Event == "" {
			t.logger.Debug("tenant awaiting reset, round not advanced",
				zap.String("tenant", tenantID),
			)
			continue
		}
		t.logger.Info("round advanced",
			zap.String("tenant", tenantID),
			zap.Int("round", result.Round),
			zap.String("event", string(result.Event)),
		)
	}
}
