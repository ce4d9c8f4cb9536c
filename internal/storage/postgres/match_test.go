package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/arena/internal/game/room"
	"github.com/cory-johannsen/arena/internal/history"
	"github.com/cory-johannsen/arena/internal/storage/postgres"
	"github.com/cory-johannsen/arena/internal/testutil"
)

func TestMatchRepository_SaveAndRecent(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	pc := testutil.NewPostgresContainer(t)
	pc.ApplyMigrations(t)
	repo := postgres.NewMatchRepository(pc.Pool.DB())
	ctx := context.Background()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, repo.SaveMatch(ctx, history.Match{
		Kind: room.KindDuel, Code: "r1", Round: 1,
		Players: []room.PlayerID{"a", "b"}, Winner: "a",
		Detail: "Rock/Scissors", FinishedAt: base,
	}))
	require.NoError(t, repo.SaveMatch(ctx, history.Match{
		Kind: room.KindDuel, Code: "r1", Round: 2,
		Players: []room.PlayerID{"a", "b"},
		Detail: "Paper/Paper", FinishedAt: base.Add(time.Minute),
	}))
	require.NoError(t, repo.SaveMatch(ctx, history.Match{
		Kind: room.KindBoard, Code: "r1",
		Players: []room.PlayerID{"x", "o"}, Winner: "x",
		Detail: "0,1,2", FinishedAt: base,
	}))

	got, err := repo.Recent(ctx, room.KindDuel, "r1", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(2), got[0].Round)
	assert.True(t, got[0].Draw())
	assert.Equal(t, room.PlayerID("a"), got[1].Winner)
	assert.Equal(t, []room.PlayerID{"a", "b"}, got[1].Players)

	got, err = repo.Recent(ctx, room.KindBoard, "R1", 10)
	require.NoError(t, err)
	assert.Empty(t, got, "room codes are case-sensitive")
}

func TestPool_HealthAndMonitor(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	pc := testutil.NewPostgresContainer(t)
	assert.NoError(t, pc.Pool.Health(context.Background(), 2*time.Second))

	pc.Pool.Interval = 10 * time.Millisecond
	done := make(chan error, 1)
	go func() { done <- pc.Pool.Start() }()
	time.Sleep(50 * time.Millisecond)
	pc.Pool.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop")
	}
	assert.Error(t, pc.Pool.Health(context.Background(), time.Second))
}

func TestRecorder_PersistsThroughRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	pc := testutil.NewPostgresContainer(t)
	pc.ApplyMigrations(t)
	repo := postgres.NewMatchRepository(pc.Pool.DB())

	rec := history.NewRecorder(repo, 8, 2*time.Second, zaptest.NewLogger(t))
	done := make(chan error, 1)
	go func() { done <- rec.Start() }()
	require.NoError(t, rec.Record(history.Match{
		Kind: room.KindBoard, Code: "flush", Players: []room.PlayerID{"x", "o"},
		Detail: "draw", FinishedAt: time.Now(),
	}))
	require.Eventually(t, func() bool {
		got, err := repo.Recent(context.Background(), room.KindBoard, "flush", 1)
		return err == nil && len(got) == 1
	}, 5*time.Second, 20*time.Millisecond)
	rec.Stop()
	require.NoError(t, <-done)
}
