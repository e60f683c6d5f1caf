package database_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/whot/engine"
	"github.com/jason-s-yu/whot/internal/database"
	"github.com/jason-s-yu/whot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startArchive runs a throwaway Postgres. Set WHOT_PG_TESTS=1 to enable;
// it needs a Docker daemon.
func startArchive(t *testing.T) *database.Archive {
	t.Helper()
	if os.Getenv("WHOT_PG_TESTS") == "" {
		t.Skip("WHOT_PG_TESTS not set")
	}
	ctx := context.Background()
	pg, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("whot"),
		postgres.WithUsername("whot"),
		postgres.WithPassword("whot"),
		testcontainers.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connString, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	a, err := database.Open(ctx, connString)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	require.NoError(t, a.Migrate(ctx))
	return a
}

func TestArchive(t *testing.T) {
	a := startArchive(t)
	ctx := context.Background()
	started := time.Now().Add(-5 * time.Minute).UTC()

	res := models.MatchResult{
		RoomID:     uuid.NewString(),
		RoomCode:   "NAIJA-4821",
		GameMode:   engine.ModeClassic,
		WinnerID:   "p1",
		StartedAt:  started,
		FinishedAt: started.Add(5 * time.Minute),
		Players: []models.ResultPlayer{
			{ID: "p1", Name: "Ada", Score: 0},
			{ID: "p2", Name: "Tunde", Score: 23, CardsLeft: 2},
			{ID: "p3", Name: "Ngozi", Score: 14, CardsLeft: 3, Spectator: true},
		},
	}

	t.Run("Store", func(t *testing.T) {
		require.NoError(t, a.StoreMatchResult(ctx, res))
	})

	t.Run("Store_Duplicate", func(t *testing.T) {
		assert.ErrorIs(t, a.StoreMatchResult(ctx, res), database.ErrDuplicateResult)
	})

	t.Run("Load", func(t *testing.T) {
		got, err := a.MatchResult(ctx, res.RoomID)
		require.NoError(t, err)
		assert.Equal(t, res.RoomCode, got.RoomCode)
		assert.Equal(t, res.WinnerID, got.WinnerID)
		assert.Empty(t, got.TournamentID)
		assert.Equal(t, res.Players, got.Players)
		assert.WithinDuration(t, res.StartedAt, got.StartedAt, time.Millisecond)
	})

	t.Run("Load_Missing", func(t *testing.T) {
		_, err := a.MatchResult(ctx, uuid.NewString())
		assert.ErrorIs(t, err, database.ErrResultNotFound)
	})

	t.Run("PlayerWins", func(t *testing.T) {
		n, err := a.PlayerWins(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		n, err = a.PlayerWins(ctx, "p2")
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}
