//go:build integration

package pgmemory

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/inworld-ai/living-memories-unity-sub003/internal/value"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var (
	testPool *pgxpool.Pool
	testDSN  string
)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("memories_test"),
		postgres.WithUsername("memories"),
		postgres.WithPassword("memories"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		log.Fatalf("pgmemory: failed to start postgres container: %v", err)
	}

	testDSN, err = container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("pgmemory: failed to get connection string: %v", err)
	}
	testPool, err = pgxpool.New(ctx, testDSN)
	if err != nil {
		log.Fatalf("pgmemory: failed to create pool: %v", err)
	}
	if err := New(testPool).Migrate(ctx); err != nil {
		log.Fatalf("pgmemory: failed to migrate: %v", err)
	}

	code := m.Run()

	testPool.Close()
	if err := testcontainers.TerminateContainer(container); err != nil {
		log.Printf("pgmemory: failed to terminate container: %v", err)
	}
	os.Exit(code)
}

func TestIntegration_RecentAndSearch(t *testing.T) {
	ctx := context.Background()
	s := New(testPool)
	key := "it-" + t.Name()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	for i, text := range []string{"likes green tea", "lives in Oslo", "100% sure about tea", "owns a cat"} {
		require.NoError(t, s.Append(ctx, key, value.MemoryRecord{Text: text, At: base.Add(time.Duration(i) * time.Minute)}))
	}
	require.NoError(t, s.Append(ctx, "other-"+t.Name(), value.MemoryRecord{Text: "tea elsewhere"}))

	recent, err := s.Recent(ctx, key, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "100% sure about tea", recent[0].Text)
	assert.Equal(t, "owns a cat", recent[1].Text)
	assert.True(t, recent[1].At.Equal(base.Add(3*time.Minute)))

	found, err := s.Search(ctx, key, "TEA", 10)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "likes green tea", found[0].Text)

	found, err = s.Search(ctx, key, "100%", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "100% sure about tea", found[0].Text)

	none, err := s.Recent(ctx, "missing-"+t.Name(), 5)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestIntegration_OpenCustomTable(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, Config{DSN: testDSN, Table: "npc_memories"})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Append(ctx, "npc", value.MemoryRecord{Text: "met the player"}))
	recs, err := s.Recent(ctx, "npc", 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "met the player", recs[0].Text)
	assert.False(t, recs[0].At.IsZero())

	// Migrate is idempotent.
	require.NoError(t, s.Migrate(ctx))
}
