package client

import (
	"sync"
	"testing"
	"time"

	"live-canvas/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type presenceRecorder struct {
	mu     sync.Mutex
	states []models.PresenceState
}

func (r *presenceRecorder) record(state models.PresenceState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func (r *presenceRecorder) last() (models.PresenceState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.states) == 0 {
		return models.PresenceState{}, false
	}
	return r.states[len(r.states)-1], true
}

func (r *presenceRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

func TestPresence_CursorMovement(t *testing.T) {
	rec := &presenceRecorder{}
	p := NewPresencePublisher(rec.record, 0)

	p.SetCursor(50, 50)

	state, ok := rec.last()
	require.True(t, ok)
	require.NotNil(t, state.Cursor)
	assert.Equal(t, 50.0, state.Cursor.X)
	assert.Equal(t, 50.0, state.Cursor.Y)
}

func TestPresence_PointerLeaveClearsEverything(t *testing.T) {
	rec := &presenceRecorder{}
	p := NewPresencePublisher(rec.record, 0)

	p.SetMode(models.ModeChat)
	p.SetMessage("typing…")
	p.SetCursor(10, 20)

	p.PointerLeave()

	state, ok := rec.last()
	require.True(t, ok)
	assert.Nil(t, state.Cursor, "cursor must be absent for peers after leave")
	assert.Empty(t, state.Message)
	assert.Equal(t, models.ModeHidden, state.Mode)
}

func TestPresence_ModeAndMessagePublishAtomically(t *testing.T) {
	rec := &presenceRecorder{}
	p := NewPresencePublisher(rec.record, 0)

	p.SetCursor(1, 1)
	p.SetMode(models.ModeChat)
	p.SetMessage("hello")

	// Mode and message travel in the same state struct
	state, _ := rec.last()
	assert.Equal(t, models.ModeChat, state.Mode)
	assert.Equal(t, "hello", state.Message)

	// Leaving chat mode discards the message buffer
	p.SetMode(models.ModeReactionSelector)
	state, _ = rec.last()
	assert.Equal(t, models.ModeReactionSelector, state.Mode)
	assert.Empty(t, state.Message)
}

func TestPresence_DebounceCoalescesMovement(t *testing.T) {
	rec := &presenceRecorder{}
	p := NewPresencePublisher(rec.record, 20*time.Millisecond)
	defer p.Close()

	for i := 0; i < 50; i++ {
		p.SetCursor(float64(i), float64(i))
	}

	require.Eventually(t, func() bool { return rec.count() > 0 }, time.Second, 5*time.Millisecond)

	// One trailing publish carrying the latest coordinates, not fifty
	assert.Equal(t, 1, rec.count())
	state, _ := rec.last()
	require.NotNil(t, state.Cursor)
	assert.Equal(t, 49.0, state.Cursor.X)
}

func TestPresence_ModeBypassesDebounce(t *testing.T) {
	rec := &presenceRecorder{}
	p := NewPresencePublisher(rec.record, time.Hour)
	defer p.Close()

	p.SetCursor(5, 5)
	assert.Equal(t, 0, rec.count(), "movement alone waits out the debounce")

	p.SetMode(models.ModeReactionSelector)
	require.Equal(t, 1, rec.count(), "mode transitions publish immediately")
	state, _ := rec.last()
	assert.Equal(t, models.ModeReactionSelector, state.Mode)
	require.NotNil(t, state.Cursor, "the immediate publish carries the merged state")
}

func TestPresence_OthersLifecycle(t *testing.T) {
	p := NewPresencePublisher(func(models.PresenceState) {}, 0)

	p.AddParticipant("s2", models.UserInfo{ID: "u2", Name: "Ada", Color: "#ff0000"})
	p.AddParticipant("s1", models.UserInfo{ID: "u1", Name: "Grace", Color: "#00ff00"})
	p.ApplyRemote("s2", models.PresenceState{
		Cursor: &models.Point{X: 3, Y: 4},
		Mode:   models.ModeDrawing,
	})

	others := p.Others()
	require.Len(t, others, 2)
	assert.Equal(t, "s1", others[0].SessionID, "peers are ordered by session ID")
	assert.Equal(t, "s2", others[1].SessionID)
	require.NotNil(t, others[1].State.Cursor)
	assert.Equal(t, 3.0, others[1].State.Cursor.X)

	// State arriving before the join notification still creates the peer
	p.ApplyRemote("s3", models.PresenceState{Mode: models.ModeHidden})
	assert.Len(t, p.Others(), 3)

	p.RemoveParticipant("s2")
	others = p.Others()
	require.Len(t, others, 2)
	assert.Equal(t, "s1", others[0].SessionID)
	assert.Equal(t, "s3", others[1].SessionID)

	// A departed peer leaves nothing behind
	p.RemoveParticipant("s2")
	assert.Len(t, p.Others(), 2)
}
