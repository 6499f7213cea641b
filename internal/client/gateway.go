package client

import (
	"github.com/google/uuid"

	"live-canvas/internal/models"
)

/*
MUTATION GATEWAY

The single funnel through which local intent becomes a committed store
mutation. One logical edit is exactly one store operation, no matter how many
pointer samples produced it: a drag commits once on pointer-up, a placement
commits once.

Each commit:
 1. validates the payload (upserts only),
 2. applies to the local optimistic projection synchronously,
 3. records a (before, after) history entry and discards redo history,
 4. sends the op toward the authoritative store.

A rejected commit surfaces an error to the caller; an accepted one is never
silently dropped - if the transport is down it queues until resync.
*/

func newOpID() string { return uuid.NewString() }

// NewObjectID mints an objectId for a freshly drawn shape. ObjectIDs are
// immutable once assigned and never reused.
func NewObjectID() string { return uuid.NewString() }

// CommitUpsert validates record and commits it as a whole-record replace
// under record.ObjectID. Returns *models.ValidationError on a malformed
// payload.
func (e *Engine) CommitUpsert(record models.ShapeRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	before := e.local.Snapshot()
	e.local.Set(record.ObjectID, record)
	after := e.local.Snapshot()
	e.history.Record(HistoryEntry{Before: before, After: after})

	stored := record.Clone()
	e.sendOp(models.CanvasOp{
		OpID:     e.newOpID(),
		Type:     models.OpUpsert,
		ObjectID: record.ObjectID,
		Record:   &stored,
		ActorID:  e.actorID,
	})
	return nil
}

// CommitDelete removes objectID. Returns *models.NotFoundError when the
// object does not exist; callers may ignore it, the store is unchanged.
func (e *Engine) CommitDelete(objectID string) error {
	if objectID == "" {
		return &models.ValidationError{Reason: "objectId is empty"}
	}

	before := e.local.Snapshot()
	if _, ok := e.local.Delete(objectID); !ok {
		return &models.NotFoundError{ObjectID: objectID}
	}
	after := e.local.Snapshot()
	e.history.Record(HistoryEntry{Before: before, After: after})

	e.sendOp(models.CanvasOp{
		OpID:     e.newOpID(),
		Type:     models.OpDelete,
		ObjectID: objectID,
		ActorID:  e.actorID,
	})
	return nil
}

// CommitBulkClear removes every object, recording the entire prior store
// image as one history entry so a single undo restores everything. Calling
// it on an already-empty store succeeds and stays a no-op for peers.
func (e *Engine) CommitBulkClear() error {
	before := e.local.Snapshot()
	if _, ok := e.local.ClearAll(); !ok {
		return &models.ValidationError{Reason: "store not empty after clear"}
	}
	e.history.Record(HistoryEntry{Before: before, After: nil})

	e.sendOp(models.CanvasOp{
		OpID:    e.newOpID(),
		Type:    models.OpClear,
		ActorID: e.actorID,
	})
	return nil
}

// Undo re-applies the most recent entry's before-image. A no-op when the
// undo stack is empty.
func (e *Engine) Undo() {
	entry, ok := e.history.PopUndo()
	if !ok {
		return
	}
	e.applySnapshot(entry.Before)
}

// Redo re-applies the most recently undone entry's after-image. A no-op when
// the redo stack is empty.
func (e *Engine) Redo() {
	entry, ok := e.history.PopRedo()
	if !ok {
		return
	}
	e.applySnapshot(entry.After)
}

// applySnapshot transforms the store into the target image. The snapshot is
// a known-valid prior state, so it bypasses commit validation and history
// capture. Peers receive the difference as ordinary ops; locally the exact
// image (including painter's order) is restored.
func (e *Engine) applySnapshot(target []models.ObjectEntry) {
	current := e.local.Snapshot()

	want := make(map[string]models.ShapeRecord, len(target))
	for _, entry := range target {
		want[entry.ObjectID] = entry.Record
	}

	// Objects present now but absent from the target are deleted.
	for _, entry := range current {
		if _, keep := want[entry.ObjectID]; !keep {
			e.sendOp(models.CanvasOp{
				OpID:     e.newOpID(),
				Type:     models.OpDelete,
				ObjectID: entry.ObjectID,
				ActorID:  e.actorID,
			})
		}
	}

	// Objects changed or missing are upserted wholesale.
	have := make(map[string]models.ShapeRecord, len(current))
	for _, entry := range current {
		have[entry.ObjectID] = entry.Record
	}
	for _, entry := range target {
		if existing, ok := have[entry.ObjectID]; ok && recordsEqual(existing, entry.Record) {
			continue
		}
		stored := entry.Record.Clone()
		e.sendOp(models.CanvasOp{
			OpID:     e.newOpID(),
			Type:     models.OpUpsert,
			ObjectID: entry.ObjectID,
			Record:   &stored,
			ActorID:  e.actorID,
		})
	}

	e.local.Restore(target)
}

func recordsEqual(a, b models.ShapeRecord) bool {
	ab, errA := a.Serialize()
	bb, errB := b.Serialize()
	if errA != nil || errB != nil {
		return false
	}
	return string(ab) == string(bb)
}
