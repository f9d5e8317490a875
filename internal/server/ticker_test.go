package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/skirmish/internal/config"
	"github.com/cory-johannsen/skirmish/internal/game/catalog"
	"github.com/cory-johannsen/skirmish/internal/game/ledger"
	"github.com/cory-johannsen/skirmish/internal/game/round"
)

type staticLister struct{ ids []string }

func (s staticLister) Tenants(context.Context) ([]string, error) { return s.ids, nil }

// alwaysGood forces the percent roll to succeed so ticks are deterministic.
type alwaysGood struct{}

func (alwaysGood) Intn(int) int { return 0 }

func TestRoundTickerAdvancesRounds(t *testing.T) {
	accessor := ledger.NewAccessor(ledger.NewMemoryStore())
	reg := catalog.NewRegistry()
	cfg := config.GameConfig{MaxAttacksPerRecord: 10}
	engine := round.NewEngine(accessor, reg, alwaysGood{}, cfg, nil, zaptest.NewLogger(t))

	// Seed the tenant so it has state to advance.
	_, err := accessor.AddCurrency(context.Background(), "guild-1", "alice", 5)
	require.NoError(t, err)

	ticker := NewRoundTicker(engine, staticLister{ids: []string{"guild-1"}}, 20*time.Millisecond, zaptest.NewLogger(t))

	done := make(chan error, 1)
	go func() { done <- ticker.Start() }()

	require.Eventually(t, func() bool {
		state, err := engine.State(context.Background(), "guild-1")
		return err == nil && state == round.StateAwaitingReset
	}, 5*time.Second, 10*time.Millisecond, "three ticks should exhaust the playable rounds")

	ticker.Stop()
	ticker.Stop() // idempotent

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("ticker did not stop in time")
	}
}
