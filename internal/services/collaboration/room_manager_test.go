package collaboration

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"live-canvas/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The tests drive the hub's handlers directly instead of through the event
// loop goroutine, so every assertion runs after the handler returns.

type fakeCanvasRepo struct {
	mu      sync.Mutex
	objects map[string]map[string]models.ShapeRecord // roomID -> objectID -> record
	seeded  []models.ObjectEntry
	maxSeq  uint64
}

func newFakeCanvasRepo() *fakeCanvasRepo {
	return &fakeCanvasRepo{objects: make(map[string]map[string]models.ShapeRecord)}
}

func (f *fakeCanvasRepo) UpsertObject(ctx context.Context, roomID string, record models.ShapeRecord, seq uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects[roomID] == nil {
		f.objects[roomID] = make(map[string]models.ShapeRecord)
	}
	f.objects[roomID][record.ObjectID] = record
	return nil
}

func (f *fakeCanvasRepo) DeleteObject(ctx context.Context, roomID, objectID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects[roomID], objectID)
	return nil
}

func (f *fakeCanvasRepo) ClearRoom(ctx context.Context, roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, roomID)
	return nil
}

func (f *fakeCanvasRepo) LoadRoom(ctx context.Context, roomID string) ([]models.ObjectEntry, uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seeded, f.maxSeq, nil
}

func (f *fakeCanvasRepo) stored(roomID string) map[string]models.ShapeRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]models.ShapeRecord, len(f.objects[roomID]))
	for k, v := range f.objects[roomID] {
		out[k] = v
	}
	return out
}

func newHubSession(roomID, userID, name string) *Session {
	return &Session{
		Session: models.NewSession(roomID, userID, name),
		Send:    make(chan []byte, 32),
		Color:   "#ff5733",
	}
}

// drain decodes every envelope currently buffered on a session.
func drain(t *testing.T, s *Session) []models.Envelope {
	t.Helper()
	var out []models.Envelope
	for {
		select {
		case data := <-s.Send:
			var env models.Envelope
			require.NoError(t, json.Unmarshal(data, &env))
			out = append(out, env)
		default:
			return out
		}
	}
}

func testShape(id string, left float64) models.ShapeRecord {
	return models.ShapeRecord{
		ObjectID: id,
		Kind:     models.KindRectangle,
		Left:     left,
		Width:    10,
		Height:   10,
		Fill:     "#112233",
	}
}

func TestRegister_SendsSnapshotAndNotifiesPeers(t *testing.T) {
	rm := NewRoomManager()
	repo := newFakeCanvasRepo()
	repo.seeded = []models.ObjectEntry{
		{ObjectID: "persisted", Record: testShape("persisted", 5)},
	}
	repo.maxSeq = 3
	rm.SetCanvasRepository(repo)

	first := newHubSession("room-1", "u1", "Ada")
	rm.handleRegister(first)

	envs := drain(t, first)
	require.Len(t, envs, 1)
	assert.Equal(t, models.MessageTypeSync, envs[0].Type)
	require.Len(t, envs[0].Snapshot, 1, "persisted state hydrates the first join")
	assert.Equal(t, "persisted", envs[0].Snapshot[0].ObjectID)
	assert.Empty(t, envs[0].Others)

	second := newHubSession("room-1", "u2", "Grace")
	rm.handleRegister(second)

	// The newcomer gets the snapshot; the existing peer gets the join notice.
	envs = drain(t, second)
	require.Len(t, envs, 1)
	assert.Equal(t, models.MessageTypeSync, envs[0].Type)

	envs = drain(t, first)
	require.Len(t, envs, 1)
	assert.Equal(t, models.MessageTypeJoin, envs[0].Type)
	assert.Equal(t, second.ID, envs[0].SessionID)
	require.NotNil(t, envs[0].User)
	assert.Equal(t, "Grace", envs[0].User.Name)
}

func TestCommitOp_EchoesToEveryoneIncludingSender(t *testing.T) {
	rm := NewRoomManager()
	a := newHubSession("room-1", "u1", "Ada")
	b := newHubSession("room-1", "u2", "Grace")
	rm.handleRegister(a)
	rm.handleRegister(b)
	drain(t, a)
	drain(t, b)

	record := testShape("obj-1", 10)
	rm.handleInbound(inboundFrame{session: a, envelope: models.Envelope{
		Type: models.MessageTypeOp,
		Op:   &models.CanvasOp{OpID: "op-1", Type: models.OpUpsert, Record: &record},
	}})

	for _, s := range []*Session{a, b} {
		envs := drain(t, s)
		require.Len(t, envs, 1, "the op reaches every session, sender included")
		assert.Equal(t, models.MessageTypeOp, envs[0].Type)
		require.NotNil(t, envs[0].Op)
		assert.Equal(t, "op-1", envs[0].Op.OpID)
		assert.Equal(t, a.ID, envs[0].Op.ActorID)
		assert.Equal(t, uint64(1), envs[0].Op.Seq)
	}
}

func TestCommitOp_SequencesAndPersists(t *testing.T) {
	rm := NewRoomManager()
	repo := newFakeCanvasRepo()
	rm.SetCanvasRepository(repo)

	a := newHubSession("room-1", "u1", "Ada")
	rm.handleRegister(a)
	drain(t, a)

	for i, id := range []string{"x", "y", "x"} {
		record := testShape(id, float64(i))
		rm.handleInbound(inboundFrame{session: a, envelope: models.Envelope{
			Type: models.MessageTypeOp,
			Op:   &models.CanvasOp{OpID: "op", Type: models.OpUpsert, Record: &record},
		}})
	}

	envs := drain(t, a)
	require.Len(t, envs, 3)
	// Sequence numbers follow the commit order, replaces included
	assert.Equal(t, uint64(1), envs[0].Op.Seq)
	assert.Equal(t, uint64(2), envs[1].Op.Seq)
	assert.Equal(t, uint64(3), envs[2].Op.Seq)

	// The repository holds only the latest record per object
	stored := repo.stored("room-1")
	require.Len(t, stored, 2)
	assert.Equal(t, 2.0, stored["x"].Left, "the second write to x wins")
}

func TestCommitOp_DeleteMissingIsSilent(t *testing.T) {
	rm := NewRoomManager()
	a := newHubSession("room-1", "u1", "Ada")
	rm.handleRegister(a)
	drain(t, a)

	rm.handleInbound(inboundFrame{session: a, envelope: models.Envelope{
		Type: models.MessageTypeOp,
		Op:   &models.CanvasOp{OpID: "op-1", Type: models.OpDelete, ObjectID: "ghost"},
	}})

	assert.Empty(t, drain(t, a), "deleting an absent object neither errors nor fans out")
}

func TestCommitOp_RejectsMalformedUpsert(t *testing.T) {
	rm := NewRoomManager()
	a := newHubSession("room-1", "u1", "Ada")
	b := newHubSession("room-1", "u2", "Grace")
	rm.handleRegister(a)
	rm.handleRegister(b)
	drain(t, a)
	drain(t, b)

	bad := models.ShapeRecord{Kind: "blob"}
	rm.handleInbound(inboundFrame{session: a, envelope: models.Envelope{
		Type: models.MessageTypeOp,
		Op:   &models.CanvasOp{OpID: "op-1", Type: models.OpUpsert, Record: &bad},
	}})

	envs := drain(t, a)
	require.Len(t, envs, 1)
	assert.Equal(t, models.MessageTypeError, envs[0].Type)
	assert.NotEmpty(t, envs[0].Error)

	assert.Empty(t, drain(t, b), "a rejected op never reaches peers")
}

func TestPresence_FansOutToPeersOnly(t *testing.T) {
	rm := NewRoomManager()
	a := newHubSession("room-1", "u1", "Ada")
	b := newHubSession("room-1", "u2", "Grace")
	rm.handleRegister(a)
	rm.handleRegister(b)
	drain(t, a)
	drain(t, b)

	rm.handleInbound(inboundFrame{session: a, envelope: models.Envelope{
		Type: models.MessageTypePresence,
		Presence: &models.PresenceState{
			Cursor: &models.Point{X: 7, Y: 8},
			Mode:   models.ModeDrawing,
		},
	}})

	assert.Empty(t, drain(t, a), "presence is not echoed to its sender")

	envs := drain(t, b)
	require.Len(t, envs, 1)
	assert.Equal(t, models.MessageTypePresence, envs[0].Type)
	assert.Equal(t, a.ID, envs[0].SessionID)
	require.NotNil(t, envs[0].Presence)
	assert.Equal(t, 7.0, envs[0].Presence.Cursor.X)

	// A late joiner sees the stored awareness state in the sync envelope
	c := newHubSession("room-1", "u3", "Edsger")
	rm.handleRegister(c)
	envs = drain(t, c)
	require.Len(t, envs, 1)
	require.Contains(t, envs[0].Others, a.ID)
	assert.Equal(t, models.ModeDrawing, envs[0].Others[a.ID].Mode)
}

func TestBroadcast_RelayedNotStored(t *testing.T) {
	rm := NewRoomManager()
	a := newHubSession("room-1", "u1", "Ada")
	b := newHubSession("room-1", "u2", "Grace")
	rm.handleRegister(a)
	rm.handleRegister(b)
	drain(t, a)
	drain(t, b)

	rm.handleInbound(inboundFrame{session: a, envelope: models.Envelope{
		Type:  models.MessageTypeBroadcast,
		Event: &models.ReactionEvent{X: 1, Y: 2, Value: "🎉"},
	}})

	assert.Empty(t, drain(t, a))
	envs := drain(t, b)
	require.Len(t, envs, 1)
	assert.Equal(t, models.MessageTypeBroadcast, envs[0].Type)
	assert.Equal(t, "🎉", envs[0].Event.Value)

	// No replay for late joiners: the event left no trace
	c := newHubSession("room-1", "u3", "Edsger")
	rm.handleRegister(c)
	envs = drain(t, c)
	require.Len(t, envs, 1)
	assert.Equal(t, models.MessageTypeSync, envs[0].Type)
	assert.Empty(t, envs[0].Snapshot)
}

func TestUnregister_DropsPresenceAndNotifies(t *testing.T) {
	rm := NewRoomManager()
	a := newHubSession("room-1", "u1", "Ada")
	b := newHubSession("room-1", "u2", "Grace")
	rm.handleRegister(a)
	rm.handleRegister(b)
	drain(t, a)
	drain(t, b)

	rm.handleInbound(inboundFrame{session: a, envelope: models.Envelope{
		Type:     models.MessageTypePresence,
		Presence: &models.PresenceState{Mode: models.ModeDrawing},
	}})
	drain(t, b)

	rm.handleUnregister(a)

	envs := drain(t, b)
	require.Len(t, envs, 1)
	assert.Equal(t, models.MessageTypeLeave, envs[0].Type)
	assert.Equal(t, a.ID, envs[0].SessionID)

	// The departed session's awareness entry is gone for the next joiner
	c := newHubSession("room-1", "u3", "Edsger")
	rm.handleRegister(c)
	envs = drain(t, c)
	require.Len(t, envs, 1)
	assert.NotContains(t, envs[0].Others, a.ID)
}

func TestUnregister_LastSessionDropsRoom(t *testing.T) {
	rm := NewRoomManager()
	repo := newFakeCanvasRepo()
	rm.SetCanvasRepository(repo)

	a := newHubSession("room-1", "u1", "Ada")
	rm.handleRegister(a)
	drain(t, a)

	record := testShape("obj-1", 1)
	rm.handleInbound(inboundFrame{session: a, envelope: models.Envelope{
		Type: models.MessageTypeOp,
		Op:   &models.CanvasOp{OpID: "op-1", Type: models.OpUpsert, Record: &record},
	}})

	rm.handleUnregister(a)
	rm.mu.RLock()
	_, alive := rm.rooms["room-1"]
	rm.mu.RUnlock()
	assert.False(t, alive, "an empty room keeps no in-memory replica")

	// The committed object survived in the repository
	stored := repo.stored("room-1")
	assert.Contains(t, stored, "obj-1")

	// Unregistering twice is harmless
	rm.handleUnregister(a)
}

func TestRoomEntries_LiveAndFallback(t *testing.T) {
	rm := NewRoomManager()
	repo := newFakeCanvasRepo()
	repo.seeded = []models.ObjectEntry{{ObjectID: "cold", Record: testShape("cold", 1)}}
	rm.SetCanvasRepository(repo)

	// No live replica: served from the repository
	entries, err := rm.RoomEntries(context.Background(), "room-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "cold", entries[0].ObjectID)

	// With a live replica the authoritative store wins
	a := newHubSession("room-2", "u1", "Ada")
	rm.handleRegister(a)
	drain(t, a)
	record := testShape("hot", 2)
	rm.handleInbound(inboundFrame{session: a, envelope: models.Envelope{
		Type: models.MessageTypeOp,
		Op:   &models.CanvasOp{OpID: "op-1", Type: models.OpUpsert, Record: &record},
	}})

	entries, err = rm.RoomEntries(context.Background(), "room-2")
	require.NoError(t, err)
	require.Len(t, entries, 2, "seeded load plus the live commit")
}

func TestClearOp_EmptiesRoomAndRepository(t *testing.T) {
	rm := NewRoomManager()
	repo := newFakeCanvasRepo()
	rm.SetCanvasRepository(repo)

	a := newHubSession("room-1", "u1", "Ada")
	rm.handleRegister(a)
	drain(t, a)

	for _, id := range []string{"x", "y"} {
		record := testShape(id, 1)
		rm.handleInbound(inboundFrame{session: a, envelope: models.Envelope{
			Type: models.MessageTypeOp,
			Op:   &models.CanvasOp{OpID: "op", Type: models.OpUpsert, Record: &record},
		}})
	}
	drain(t, a)

	rm.handleInbound(inboundFrame{session: a, envelope: models.Envelope{
		Type: models.MessageTypeOp,
		Op:   &models.CanvasOp{OpID: "op-clear", Type: models.OpClear},
	}})

	envs := drain(t, a)
	require.Len(t, envs, 1)
	assert.Equal(t, models.OpClear, envs[0].Op.Type)

	entries, err := rm.RoomEntries(context.Background(), "room-1")
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Empty(t, repo.stored("room-1"))
}
