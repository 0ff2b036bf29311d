package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alienxp03/agora/internal/core"
	"github.com/alienxp03/agora/internal/engine"
	"github.com/alienxp03/agora/internal/generation"
	"github.com/alienxp03/agora/internal/storage"
)

func setupTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Initialize())

	registry := generation.NewRegistry()
	registry.Register(generation.NewMockBackend("mock"))
	return engine.New(store, generation.NewClient(registry, generation.DefaultPolicy(), generation.WithDefaultProvider("mock")))
}

func TestFindParticipant(t *testing.T) {
	eng := setupTestEngine(t)
	alice, err := eng.CreateParticipant(core.ParticipantInput{Name: "Alice"})
	require.NoError(t, err)

	for _, ref := range []string{alice.ID, alice.ID[:6], "alice", "ALICE"} {
		p, err := findParticipant(eng, ref)
		require.NoError(t, err, ref)
		assert.Equal(t, alice.ID, p.ID)
	}

	_, err = findParticipant(eng, "bob")
	assert.Error(t, err)
}

func TestFindDebateByPrefix(t *testing.T) {
	eng := setupTestEngine(t)
	d, err := eng.CreateDebate(core.NewDebateConfig{Topic: "Topic"})
	require.NoError(t, err)

	id, err := findDebateByPrefix(eng, core.ShortID(d.ID))
	require.NoError(t, err)
	assert.Equal(t, d.ID, id)

	_, err = findDebateByPrefix(eng, "zzzz")
	assert.Error(t, err)
}

func TestResolvePlan(t *testing.T) {
	eng := setupTestEngine(t)
	alice, err := eng.CreateParticipant(core.ParticipantInput{Name: "Alice"})
	require.NoError(t, err)

	plan, err := core.ParsePlanArgs([]string{"-", "Alice", alice.ID[:6]})
	require.NoError(t, err)
	resolved, err := resolvePlan(eng, plan)
	require.NoError(t, err)
	assert.Equal(t, core.RotationPlan{core.ConsumedSlot, alice.ID, alice.ID}, resolved)

	_, err = resolvePlan(eng, core.RotationPlan{"nobody"})
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
