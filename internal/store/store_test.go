package store

import (
	"fmt"
	"testing"

	"live-canvas/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rect(id string, left float64) models.ShapeRecord {
	return models.ShapeRecord{
		ObjectID: id,
		Kind:     models.KindRectangle,
		Left:     left,
		Top:      0,
		Width:    10,
		Height:   10,
	}
}

func TestObjectStore_GetSetDelete(t *testing.T) {
	s := New()

	_, ok := s.Get("a")
	assert.False(t, ok)

	s.Set("a", rect("a", 1))
	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1.0, got.Left)

	// Upsert replaces wholesale
	s.Set("a", rect("a", 2))
	got, _ = s.Get("a")
	assert.Equal(t, 2.0, got.Left)
	assert.Equal(t, 1, s.Len())

	_, ok = s.Delete("a")
	assert.True(t, ok)
	assert.Equal(t, 0, s.Len())

	// Deleting a missing object is a benign no-op
	_, ok = s.Delete("a")
	assert.False(t, ok)
}

func TestObjectStore_InsertionOrder(t *testing.T) {
	s := New()
	s.Set("a", rect("a", 1))
	s.Set("b", rect("b", 2))
	s.Set("c", rect("c", 3))

	// Replacing an existing record keeps its painter's-order position
	s.Set("a", rect("a", 10))

	entries := s.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "a", entries[0].ObjectID)
	assert.Equal(t, "b", entries[1].ObjectID)
	assert.Equal(t, "c", entries[2].ObjectID)
	assert.Equal(t, 10.0, entries[0].Record.Left)

	// Delete then re-insert appends at the end
	s.Delete("a")
	s.Set("a", rect("a", 20))
	entries = s.Entries()
	assert.Equal(t, []string{"b", "c", "a"}, []string{entries[0].ObjectID, entries[1].ObjectID, entries[2].ObjectID})
}

func TestObjectStore_LastWriteWins(t *testing.T) {
	// Replaying any fixed total order of commits must leave exactly the last
	// committed value per objectId, regardless of which actor produced it.
	s := New()
	ops := []models.CanvasOp{
		{Type: models.OpUpsert, ObjectID: "a", Record: ptr(rect("a", 1))},
		{Type: models.OpUpsert, ObjectID: "b", Record: ptr(rect("b", 1))},
		{Type: models.OpUpsert, ObjectID: "a", Record: ptr(rect("a", 2))},
		{Type: models.OpDelete, ObjectID: "b"},
		{Type: models.OpUpsert, ObjectID: "a", Record: ptr(rect("a", 3))},
	}
	for _, op := range ops {
		s.Apply(op)
	}

	entries := s.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].ObjectID)
	assert.Equal(t, 3.0, entries[0].Record.Left)
}

func TestObjectStore_ClearAllIdempotent(t *testing.T) {
	s := New()
	s.Set("a", rect("a", 1))
	s.Set("b", rect("b", 2))

	_, ok := s.ClearAll()
	assert.True(t, ok)
	assert.Equal(t, 0, s.Len())

	// Calling it again on an empty store still succeeds
	_, ok = s.ClearAll()
	assert.True(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestObjectStore_SnapshotRestore(t *testing.T) {
	s := New()
	s.Set("a", rect("a", 1))
	s.Set("b", rect("b", 2))

	snapshot := s.Snapshot()

	s.Set("c", rect("c", 3))
	s.Delete("a")

	s.Restore(snapshot)
	entries := s.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].ObjectID)
	assert.Equal(t, "b", entries[1].ObjectID)

	// The snapshot is an independent image: mutating the store afterwards
	// does not touch it.
	s.Set("a", rect("a", 99))
	assert.Equal(t, 1.0, snapshot[0].Record.Left)
}

func TestObjectStore_SeqAdvances(t *testing.T) {
	s := New()
	first := s.Set("a", rect("a", 1))
	second := s.Set("a", rect("a", 2))
	assert.Greater(t, second, first)

	third, ok := s.Delete("a")
	require.True(t, ok)
	assert.Greater(t, third, second)
}

func TestObjectStore_Watchers(t *testing.T) {
	s := New()
	var changes []Change
	s.Watch(func(c Change) { changes = append(changes, c) })

	s.Set("a", rect("a", 1))
	s.Delete("a")
	s.ClearAll()

	require.Len(t, changes, 3)
	assert.Equal(t, models.OpUpsert, changes[0].Op)
	assert.Equal(t, "a", changes[0].ObjectID)
	require.NotNil(t, changes[0].Record)
	assert.Equal(t, models.OpDelete, changes[1].Op)
	assert.Equal(t, models.OpClear, changes[2].Op)
}

func TestObjectStore_ManyObjectsDeterministic(t *testing.T) {
	s := New()
	for i := 0; i < 50; i++ {
		s.Set(fmt.Sprintf("obj-%02d", i), rect(fmt.Sprintf("obj-%02d", i), float64(i)))
	}
	entries := s.Entries()
	require.Len(t, entries, 50)
	for i, e := range entries {
		assert.Equal(t, fmt.Sprintf("obj-%02d", i), e.ObjectID)
	}
}

func ptr(r models.ShapeRecord) *models.ShapeRecord { return &r }
