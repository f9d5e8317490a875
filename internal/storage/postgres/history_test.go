package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/skirmish/internal/game/round"
	"github.com/cory-johannsen/skirmish/internal/storage/postgres"
	"github.com/cory-johannsen/skirmish/internal/testutil"
)

func TestRoundHistoryRepository_AppendAndRecent(t *testing.T) {
	pool := testutil.NewPool(t)
	repo := postgres.NewRoundHistoryRepository(pool, 10)
	ctx := context.Background()
	tenant := uniqueTenant("history")

	for i := 1; i <= 3; i++ {
		res := round.Result{
			Round: i,
			Event: round.EventGood,
			Outcomes: []round.PlayerOutcome{
				{PlayerID: "alice", StartingBalance: i * 10, EndingBalance: i * 20},
			},
		}
		require.NoError(t, repo.Append(ctx, tenant, res))
	}

	results, err := repo.Recent(ctx, tenant, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 3, results[0].Round, "newest first")
	assert.Equal(t, 2, results[1].Round)
	assert.Equal(t, "alice", results[0].Outcomes[0].PlayerID)
}

func TestRoundHistoryRepository_TrimsToLimit(t *testing.T) {
	pool := testutil.NewPool(t)
	repo := postgres.NewRoundHistoryRepository(pool, 3)
	ctx := context.Background()
	tenant := uniqueTenant("history")

	for i := 1; i <= 6; i++ {
		require.NoError(t, repo.Append(ctx, tenant, round.Result{Round: i}))
	}

	results, err := repo.Recent(ctx, tenant, 10)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 6, results[0].Round)
	assert.Equal(t, 4, results[2].Round)
}

func TestRoundHistoryRepository_Clear(t *testing.T) {
	pool := testutil.NewPool(t)
	repo := postgres.NewRoundHistoryRepository(pool, 0)
	ctx := context.Background()
	tenant := uniqueTenant("history")
	other := uniqueTenant("other")

	require.NoError(t, repo.Append(ctx, tenant, round.Result{Round: 1}))
	require.NoError(t, repo.Append(ctx, other, round.Result{Round: 1}))

	require.NoError(t, repo.Clear(ctx, tenant))

	cleared, err := repo.Recent(ctx, tenant, 10)
	require.NoError(t, err)
	assert.Empty(t, cleared)

	kept, err := repo.Recent(ctx, other, 10)
	require.NoError(t, err)
	assert.Len(t, kept, 1, "other tenants are untouched")
}
