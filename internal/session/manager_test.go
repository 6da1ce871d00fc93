package session

import (
	"context"
	"testing"
	"time"

	"github.com/fas-floormap/backend/internal/floor"
	"github.com/fas-floormap/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	opts := floor.DefaultOptions()
	opts.AutoStart = false
	opts.Sim.SpawnProbability = 0
	opts.Sim.Seed = 1
	m := NewManager(opts, nil)
	t.Cleanup(m.Shutdown)
	return m
}

func entities() []models.MapEntity {
	return []models.MapEntity{models.NewMapEntity("DEV", models.KindDevice, time.Time{})}
}

func TestManager_CreateAndGet(t *testing.T) {
	m := testManager(t)

	sess, err := m.CreateSession(entities(), "layout-1")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "layout-1", sess.LayoutID)
	assert.Equal(t, 1, sess.EntityCount)

	got, ok := m.GetSession(sess.ID)
	require.True(t, ok)
	assert.Equal(t, sess.ID, got.ID)

	f, ok := m.GetFloor(sess.ID)
	require.True(t, ok)
	snap, err := f.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sess.ID, snap.SessionID)
	require.Len(t, snap.Entities, 1)

	_, ok = m.GetSession("missing")
	assert.False(t, ok)
}

func TestManager_DeleteStopsFloor(t *testing.T) {
	m := testManager(t)
	sess, err := m.CreateSession(entities(), "")
	require.NoError(t, err)
	f, _ := m.GetFloor(sess.ID)

	require.NoError(t, m.DeleteSession(sess.ID))
	select {
	case <-f.Done():
	case <-time.After(time.Second):
		t.Fatal("floor still running")
	}
	assert.ErrorIs(t, m.DeleteSession(sess.ID), ErrNotFound)
	assert.Equal(t, 0, m.Count())
}

func TestManager_EvictsLeastRecentlyUsed(t *testing.T) {
	m := testManager(t)
	m.SetMaxSessions(2)

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	first, _ := m.CreateSession(entities(), "")
	clock = clock.Add(time.Minute)
	second, _ := m.CreateSession(entities(), "")
	clock = clock.Add(time.Minute)
	require.True(t, m.TouchSession(first.ID))

	clock = clock.Add(time.Minute)
	third, _ := m.CreateSession(entities(), "")

	assert.Equal(t, 2, m.Count())
	_, ok := m.GetSession(second.ID)
	assert.False(t, ok, "least recently used session is evicted")
	_, ok = m.GetSession(first.ID)
	assert.True(t, ok)
	_, ok = m.GetSession(third.ID)
	assert.True(t, ok)
}

func TestManager_CleanupOldSessions(t *testing.T) {
	m := testManager(t)
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	old, _ := m.CreateSession(entities(), "")
	clock = clock.Add(40 * time.Minute)
	fresh, _ := m.CreateSession(entities(), "")

	removed := m.CleanupOldSessions(SessionMaxAge)
	assert.Equal(t, 1, removed)
	_, ok := m.GetSession(old.ID)
	assert.False(t, ok)
	_, ok = m.GetSession(fresh.ID)
	assert.True(t, ok)
}

func TestManager_UpdateAndList(t *testing.T) {
	m := testManager(t)
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	a, _ := m.CreateSession(entities(), "a")
	clock = clock.Add(time.Second)
	b, _ := m.CreateSession(entities(), "b")

	require.True(t, m.UpdateSession(a.ID, func(s *models.FloorSession) { s.EditMode = true }))
	assert.False(t, m.UpdateSession("missing", func(*models.FloorSession) {}))

	list := m.ListSessions()
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)
	assert.True(t, list[0].EditMode)
	assert.Equal(t, b.ID, list[1].ID)
}
