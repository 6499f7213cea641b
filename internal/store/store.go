package store

import (
	"sync"

	"live-canvas/internal/models"
)

/*
SHARED OBJECT STORE

An insertion-ordered mapping of objectId -> ShapeRecord. This is the only
authority for "what exists on the canvas": the server holds the authoritative
copy per room, and every client holds an optimistic projection of it.

Conflict policy: last-committed-wins per objectId, whole-record replace.
Concurrent edits to the same object by two participants silently drop one
side's change; concurrent edits to different objects never conflict. That is
a documented trade-off of this system, not a bug - there is no field-level
merge.

Insertion order is significant: Entries() is painter's order for rendering
and the deterministic iteration order for listings. Replacing a record keeps
its original position; only a fresh insert appends.
*/

// Change describes one applied mutation, delivered to watchers after the
// store has been updated.
type Change struct {
	Op  models.OpType
	Seq uint64

	ObjectID string
	Record   *models.ShapeRecord // set for upserts only
}

// ObjectStore is safe for concurrent use.
type ObjectStore struct {
	mu       sync.RWMutex
	records  map[string]models.ShapeRecord
	order    []string
	seq      uint64
	watchers []func(Change)
}

func New() *ObjectStore {
	return &ObjectStore{
		records: make(map[string]models.ShapeRecord),
	}
}

// Watch registers fn to be called after every successful mutation. Watchers
// must not mutate the store from inside the callback.
func (s *ObjectStore) Watch(fn func(Change)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, fn)
}

// Get returns the record for objectID, or ok=false when absent.
func (s *ObjectStore) Get(objectID string) (models.ShapeRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[objectID]
	if !ok {
		return models.ShapeRecord{}, false
	}
	return r.Clone(), true
}

// Set is an idempotent upsert replacing any prior record wholesale.
func (s *ObjectStore) Set(objectID string, record models.ShapeRecord) uint64 {
	s.mu.Lock()
	if _, exists := s.records[objectID]; !exists {
		s.order = append(s.order, objectID)
	}
	stored := record.Clone()
	s.records[objectID] = stored
	s.seq++
	change := Change{Op: models.OpUpsert, Seq: s.seq, ObjectID: objectID, Record: &stored}
	watchers := s.watchers
	s.mu.Unlock()

	s.notify(watchers, change)
	return change.Seq
}

// Delete removes objectID. It is a no-op returning false when absent.
func (s *ObjectStore) Delete(objectID string) (uint64, bool) {
	s.mu.Lock()
	if _, exists := s.records[objectID]; !exists {
		s.mu.Unlock()
		return 0, false
	}
	delete(s.records, objectID)
	s.removeFromOrder(objectID)
	s.seq++
	change := Change{Op: models.OpDelete, Seq: s.seq, ObjectID: objectID}
	watchers := s.watchers
	s.mu.Unlock()

	s.notify(watchers, change)
	return change.Seq, true
}

// ClearAll removes every record. It reports success only when the resulting
// store is empty, which makes a bulk reset idempotent and verifiable.
func (s *ObjectStore) ClearAll() (uint64, bool) {
	s.mu.Lock()
	s.records = make(map[string]models.ShapeRecord)
	s.order = s.order[:0]
	s.seq++
	change := Change{Op: models.OpClear, Seq: s.seq}
	watchers := s.watchers
	empty := len(s.records) == 0
	s.mu.Unlock()

	s.notify(watchers, change)
	return change.Seq, empty
}

// Len returns the number of records.
func (s *ObjectStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Seq returns the sequence number of the most recent mutation.
func (s *ObjectStore) Seq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}

// Entries returns the ordered (objectId, record) sequence: painter's order
// for rendering, deterministic order for panel listings. The returned slice
// is a deep copy and safe to hold.
func (s *ObjectStore) Entries() []models.ObjectEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ObjectEntry, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, models.ObjectEntry{ObjectID: id, Record: s.records[id].Clone()})
	}
	return out
}

// Snapshot is an alias for Entries used by the history manager, where the
// returned value is treated as an immutable store image.
func (s *ObjectStore) Snapshot() []models.ObjectEntry {
	return s.Entries()
}

// Restore replaces the entire contents of the store with the given snapshot,
// preserving the snapshot's order. Watchers are not notified per object; a
// single clear Change followed by no upserts would misrepresent the state,
// so Restore is silent - callers that need fan-out emit ops themselves.
func (s *ObjectStore) Restore(snapshot []models.ObjectEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]models.ShapeRecord, len(snapshot))
	s.order = make([]string, 0, len(snapshot))
	for _, e := range snapshot {
		if _, dup := s.records[e.ObjectID]; dup {
			continue
		}
		s.records[e.ObjectID] = e.Record.Clone()
		s.order = append(s.order, e.ObjectID)
	}
	s.seq++
}

// Apply replays one committed op in authoritative order. Unknown deletes are
// benign no-ops, matching the store contract.
func (s *ObjectStore) Apply(op models.CanvasOp) {
	switch op.Type {
	case models.OpUpsert:
		if op.Record != nil {
			s.Set(op.ObjectID, *op.Record)
		}
	case models.OpDelete:
		s.Delete(op.ObjectID)
	case models.OpClear:
		s.ClearAll()
	}
}

func (s *ObjectStore) removeFromOrder(objectID string) {
	for i, id := range s.order {
		if id == objectID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

func (s *ObjectStore) notify(watchers []func(Change), change Change) {
	for _, fn := range watchers {
		fn(change)
	}
}
